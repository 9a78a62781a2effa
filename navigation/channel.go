package navigation

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/loadlifter/aislenav/utils"
)

// AlignOutcome tells how an alignment ended.
type AlignOutcome int

const (
	// AlignFailed means neither active correction nor the final check succeeded.
	AlignFailed AlignOutcome = iota
	// AlignConverged means both axes were valid on consecutive iterations.
	AlignConverged
	// AlignAcceptedFallback means corrections ran out but the last stats were within tolerance.
	AlignAcceptedFallback
)

func (o AlignOutcome) String() string {
	switch o {
	case AlignConverged:
		return "converged"
	case AlignAcceptedFallback:
		return "accepted_fallback"
	default:
		return "failed"
	}
}

// AlignOptions tune one AlignStorageChannel call.
type AlignOptions struct {
	// ExpectFrontWall lets the front wall band compete with the side difference for centering.
	ExpectFrontWall bool
}

// AlignResult reports an alignment.
type AlignResult struct {
	Outcome     AlignOutcome
	Iterations  int
	Corrections int
	Last        ChannelStats
}

// Aligned reports whether the robot may be treated as centered and square.
func (r AlignResult) Aligned() bool {
	return r.Outcome != AlignFailed
}

// AlignStorageChannel squares the robot to the channel walls and then centers it between them.
// Orientation is corrected before lateral position on every iteration.
func (c *Controller) AlignStorageChannel(ctx context.Context, opts AlignOptions) (AlignResult, error) {
	params := c.cfg.Align
	var result AlignResult

	err := c.run(ctx, "align_storage_channel", func(ctx context.Context) error {
		orient := newCorrector("orientation", params.OrientTolDeg, params.OrientMarginDeg, params.StallLimit, c.rotateStep)
		lateral := newCorrector("lateral", params.LateralTolMM, params.LateralMarginMM, params.StallLimit, c.strafeStep)

		streak := 0
		for result.Iterations < params.MaxIterations {
			if err := ctx.Err(); err != nil {
				return err
			}
			samples, err := c.src.Snapshot(ctx)
			if err != nil {
				return errors.Wrap(err, "taking snapshot")
			}
			result.Iterations++
			st := ComputeChannelStats(samples, params)
			result.Last = st

			dropout := func() error {
				streak = 0
				c.logDropout(ctx, "align_storage_channel",
					"front_points", st.FrontCount, "left_points", st.LeftCount, "right_points", st.RightCount)
				return c.sleep(ctx, c.pollInterval)
			}
			if !st.OrientationDeg.OK {
				if err := dropout(); err != nil {
					return err
				}
				continue
			}

			orientStatus, err := orient.step(ctx, st.OrientationDeg.Value)
			if err != nil {
				return errors.Wrap(err, "rotating toward channel axis")
			}
			if orientStatus == statusCorrected {
				streak = 0
				result.Corrections++
				continue
			}

			// Squaring up needs only one wall; centering needs both sides or a front band.
			lat := st.LateralErrorMM(opts.ExpectFrontWall)
			if !lat.OK {
				if err := dropout(); err != nil {
					return err
				}
				continue
			}
			lateralStatus, err := lateral.step(ctx, lat.Value)
			if err != nil {
				return errors.Wrap(err, "strafing toward channel center")
			}
			if lateralStatus == statusCorrected {
				streak = 0
				result.Corrections++
				continue
			}

			if orientStatus != statusWithin || lateralStatus != statusWithin {
				c.logger.CDebugw(ctx, "alignment gave up correcting",
					"orientation", orientStatus, "lateral", lateralStatus)
				break
			}
			streak++
			c.logger.CDebugw(ctx, "alignment valid",
				"streak", streak, "orientation_deg", st.OrientationDeg.Value, "lateral_mm", lat.Value)
			if streak >= params.ValidStreak {
				result.Outcome = AlignConverged
				return nil
			}
			if err := c.sleep(ctx, c.pollInterval); err != nil {
				return err
			}
		}

		if withinFinalCheck(result.Last, params, opts.ExpectFrontWall) {
			result.Outcome = AlignAcceptedFallback
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	c.logger.CInfow(ctx, "channel alignment finished",
		"outcome", result.Outcome, "iterations", result.Iterations, "corrections", result.Corrections)
	return result, nil
}

// withinFinalCheck is the acceptance test applied to the last stats when corrections ran out.
func withinFinalCheck(st ChannelStats, params AlignConfig, expectFront bool) bool {
	if !st.OrientationDeg.OK || math.Abs(st.OrientationDeg.Value) > params.OrientTolDeg {
		return false
	}
	if !st.DiffMM.OK || math.Abs(st.DiffMM.Value) > params.LateralTolMM {
		return false
	}
	if st.SideBandAsymmetryMM.OK && math.Abs(st.SideBandAsymmetryMM.Value) > params.LateralTolMM {
		return false
	}
	if expectFront && st.FrontBandCenterMM.OK && math.Abs(st.FrontBandCenterMM.Value) > params.FrontBandTolMM {
		return false
	}
	return true
}

// rotateStep turns against an orientation error by at most RotateStepMaxDeg at the slow pulse.
func (c *Controller) rotateStep(ctx context.Context, errDeg float64) error {
	params := c.cfg.Align
	deg := math.Min(math.Abs(errDeg), params.RotateStepMaxDeg)
	pulse := NormalizePulse(c.cfg.YawSlow, c.cfg.Rotation.FallbackPulse)

	seconds := heuristicSecondsPerDeg * deg
	if dps, ok := c.profiles.Profile().DegPerSecond(pulse); ok {
		seconds = deg / dps
	}
	seconds = utils.Clamp(seconds, params.RotateMinS, params.RotateMaxS)

	// A positive error means the robot is turned left, so the step turns right.
	yaw := -pulse * utils.SignInt(errDeg)
	c.logger.CDebugw(ctx, "alignment rotate", "error_deg", errDeg, "step_deg", deg, "yaw", yaw, "seconds", seconds)
	if err := c.spin(ctx, yaw, utils.SecondsToDuration(seconds)); err != nil {
		return err
	}
	return c.settle(ctx, params.SettleS)
}

// strafeStep moves sideways toward the channel center. Pulse and duration grow with the error
// within their configured bounds.
func (c *Controller) strafeStep(ctx context.Context, errMM float64) error {
	params := c.cfg.Align
	mag := math.Abs(errMM)
	pulse := utils.ClampInt(int(math.Round(mag*params.StrafeGain)), params.StrafePulseMin, params.StrafePulseMax)
	seconds := params.StrafeMaxS
	if params.StrafeMMs > 0 {
		seconds = utils.Clamp(mag/params.StrafeMMs, params.StrafeMinS, params.StrafeMaxS)
	}

	strafe := c.base.StrafeLeft
	if errMM < 0 {
		strafe = c.base.StrafeRight
	}
	c.logger.CDebugw(ctx, "alignment strafe", "error_mm", errMM, "pulse", pulse, "seconds", seconds)
	err := c.hold(ctx, utils.SecondsToDuration(seconds), c.pollInterval, func(ctx context.Context) error {
		return strafe(ctx, pulse)
	})
	if err != nil {
		return err
	}
	return c.settle(ctx, params.SettleS)
}
