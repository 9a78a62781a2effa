package navigation

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/loadlifter/aislenav/utils"
)

// HomingOptions describe one MoveToFrontDistance call.
type HomingOptions struct {
	TargetMM    float64
	ToleranceMM float64
	// MaintainCenter runs a channel alignment after every coarse drive.
	MaintainCenter bool
	// ExpectFrontWall is passed to those alignments.
	ExpectFrontWall bool
}

// MoveToFrontDistance drives forward or backward until the front distance is within ToleranceMM
// of TargetMM. A coarse phase sizes each drive from the error and the forward speed; a fine phase
// follows with short slices at reduced speed. It reports false when both phases run out, or
// when the front reading stays absent for more than the configured number of polls.
func (c *Controller) MoveToFrontDistance(ctx context.Context, opts HomingOptions) (bool, error) {
	params := c.cfg.Homing
	reached := false

	err := c.run(ctx, "move_to_front_distance", func(ctx context.Context) error {
		dropouts := 0
		// measure returns the front error, retrying absent readings. ok is false once the
		// dropout budget is spent.
		measure := func(ctx context.Context) (float64, bool, error) {
			for {
				front, err := c.readFront(ctx)
				if err != nil {
					return 0, false, errors.Wrap(err, "reading front distance")
				}
				if front.OK {
					return front.MM - opts.TargetMM, true, nil
				}
				dropouts++
				c.logDropout(ctx, "move_to_front_distance", "front", front, "dropouts", dropouts)
				if dropouts > params.MaxDropouts {
					return 0, false, nil
				}
				if err := c.sleep(ctx, c.pollInterval); err != nil {
					return 0, false, err
				}
			}
		}

		for i := 0; i < params.CoarseIterations; i++ {
			errMM, ok, err := measure(ctx)
			if err != nil || !ok {
				return err
			}
			if math.Abs(errMM) <= opts.ToleranceMM {
				reached = true
				return nil
			}
			seconds := utils.Clamp(math.Abs(errMM)/c.cfg.ForwardMMs, params.MinDriveS, params.MaxDriveS)
			c.logger.CDebugw(ctx, "homing coarse step", "iteration", i, "error_mm", errMM, "seconds", seconds)
			if err := c.homingStep(ctx, errMM, c.cfg.ForwardMMs, seconds); err != nil {
				return err
			}
			if opts.MaintainCenter {
				if _, err := c.AlignStorageChannel(ctx, AlignOptions{ExpectFrontWall: opts.ExpectFrontWall}); err != nil {
					return errors.Wrap(err, "recentering during homing")
				}
			}
		}

		fineSpeed := c.cfg.ForwardMMs * params.FineSpeedRatio
		for i := 0; i < params.FineIterations; i++ {
			errMM, ok, err := measure(ctx)
			if err != nil || !ok {
				return err
			}
			if math.Abs(errMM) <= opts.ToleranceMM {
				reached = true
				return nil
			}
			c.logger.CDebugw(ctx, "homing fine step", "iteration", i, "error_mm", errMM)
			if err := c.homingStep(ctx, errMM, fineSpeed, params.FineSliceS); err != nil {
				return err
			}
		}

		errMM, ok, err := measure(ctx)
		if err != nil || !ok {
			return err
		}
		reached = math.Abs(errMM) <= opts.ToleranceMM
		return nil
	})
	if err != nil {
		return false, err
	}
	c.logger.CInfow(ctx, "front homing finished", "target_mm", opts.TargetMM, "reached", reached)
	return reached, nil
}

// homingStep drives toward the target for seconds and settles. A positive error means the wall
// is too far away, so the robot drives forward.
func (c *Controller) homingStep(ctx context.Context, errMM, speed, seconds float64) error {
	if errMM < 0 {
		speed = -speed
	}
	if err := c.driveFor(ctx, speed, utils.SecondsToDuration(seconds)); err != nil {
		return err
	}
	return c.settle(ctx, c.cfg.Homing.SettleS)
}
