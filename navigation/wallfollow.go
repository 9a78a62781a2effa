package navigation

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/loadlifter/aislenav/components/rangefinder"
	"github.com/loadlifter/aislenav/utils"
)

// Event is what ended an opening-aware wall follow.
type Event string

const (
	// EventFrontStop means the front distance reached front_stop_mm.
	EventFrontStop Event = "front_stop"
	// EventRightOpen means the right side opened past right_open_mm while the detector was armed.
	EventRightOpen Event = "right_open"
)

// DefaultCenteredFrontMM is the front threshold CenteredForwardUntilFront uses when given none.
const DefaultCenteredFrontMM = 540.0

// OpeningOptions tune the right opening detector of FollowLeftUntilRightOpenOrFront.
type OpeningOptions struct {
	// RequireRearm starts the detector disarmed. It arms once the right distance drops below
	// RearmBelowMM.
	RequireRearm bool
	// RearmBelowMM overrides the configured re-arm threshold when positive.
	RearmBelowMM float64
}

// openingDetector reports an opening on one side with re-arm hysteresis, so a single spike
// seen while disarmed cannot fire.
type openingDetector struct {
	openMM       float64
	rearmBelowMM float64
	armed        bool
}

func newOpeningDetector(openMM, rearmBelowMM float64, requireRearm bool) *openingDetector {
	return &openingDetector{openMM: openMM, rearmBelowMM: rearmBelowMM, armed: !requireRearm}
}

// observe feeds one reading and returns true when the opening event fires.
func (d *openingDetector) observe(r rangefinder.Reading) bool {
	if !r.OK {
		return false
	}
	if !d.armed {
		if r.MM < d.rearmBelowMM {
			d.armed = true
		}
		return false
	}
	return r.MM >= d.openMM
}

// FollowLeftUntilStop holds left_target_mm off the left wall until the front distance reaches
// front_stop_mm.
func (c *Controller) FollowLeftUntilStop(ctx context.Context) error {
	return c.run(ctx, "follow_left_until_stop", func(ctx context.Context) error {
		_, err := c.follow(ctx, SideLeft, nil)
		return err
	})
}

// FollowRightUntilStop is FollowLeftUntilStop against the right wall.
func (c *Controller) FollowRightUntilStop(ctx context.Context) error {
	return c.run(ctx, "follow_right_until_stop", func(ctx context.Context) error {
		_, err := c.follow(ctx, SideRight, nil)
		return err
	})
}

// FollowLeftUntilRightOpenOrFront follows the left wall while watching the right side for an
// opening. It returns whichever event happens first.
func (c *Controller) FollowLeftUntilRightOpenOrFront(ctx context.Context, opts OpeningOptions) (Event, error) {
	rearm := opts.RearmBelowMM
	if rearm <= 0 {
		rearm = c.cfg.RearmBelowMM()
	}
	detector := newOpeningDetector(c.cfg.RightOpenMM, rearm, opts.RequireRearm)

	var event Event
	err := c.run(ctx, "follow_left_until_right_open_or_front", func(ctx context.Context) error {
		var err error
		event, err = c.follow(ctx, SideLeft, detector)
		return err
	})
	if err != nil {
		return "", err
	}
	c.logger.CInfow(ctx, "wall follow event", "event", event)
	return event, nil
}

// follow is the wall following loop shared by every follower. A nil detector disables opening
// detection.
func (c *Controller) follow(ctx context.Context, side Side, detector *openingDetector) (Event, error) {
	name := "follow_" + side.String()
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		front, err := c.readFront(ctx)
		if err != nil {
			return "", errors.Wrap(err, "reading front distance")
		}
		dist, err := c.readSide(ctx, side)
		if err != nil {
			return "", errors.Wrapf(err, "reading %s distance", side)
		}
		if !front.OK || !dist.OK {
			c.logDropout(ctx, name, "front", front, side.String(), dist)
			if err := c.sleep(ctx, c.pollInterval); err != nil {
				return "", err
			}
			continue
		}
		if front.MM <= c.cfg.FrontStopMM {
			c.logger.CDebugw(ctx, "front stop reached", "front_mm", front.MM)
			return EventFrontStop, nil
		}
		if detector != nil {
			opposite, err := c.readRight(ctx)
			if err != nil {
				return "", errors.Wrap(err, "reading right distance")
			}
			if detector.observe(opposite) {
				c.logger.CDebugw(ctx, "right opening detected", "right_mm", opposite.MM)
				return EventRightOpen, nil
			}
		}

		orient, err := c.readOrientation(ctx, side)
		if err != nil {
			return "", errors.Wrap(err, "reading orientation windows")
		}
		cmd := c.cfg.ComputeCommand(side, dist.MM, orient)
		if cmd.Guarded {
			c.logger.CDebugw(ctx, "wall guard engaged", "side", side, "distance_mm", dist.MM, "yaw", cmd.Yaw)
		}
		if err := c.base.Drive(ctx, cmd.ForwardMMs, cmd.Yaw); err != nil {
			return "", errors.Wrap(err, "driving")
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return "", err
		}
	}
}

func (c *Controller) readSide(ctx context.Context, side Side) (rangefinder.Reading, error) {
	if side == SideRight {
		return c.readRight(ctx)
	}
	return c.readLeft(ctx)
}

// CenteredForwardUntilFront drives forward, steering toward the middle of the channel, until the
// front distance is at most threshMM. A non-positive threshMM means DefaultCenteredFrontMM.
func (c *Controller) CenteredForwardUntilFront(ctx context.Context, threshMM float64) error {
	if threshMM <= 0 {
		threshMM = DefaultCenteredFrontMM
	}
	return c.run(ctx, "centered_forward_until_front", func(ctx context.Context) error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			front, err := c.readFront(ctx)
			if err != nil {
				return errors.Wrap(err, "reading front distance")
			}
			left, err := c.readLeft(ctx)
			if err != nil {
				return errors.Wrap(err, "reading left distance")
			}
			right, err := c.readRight(ctx)
			if err != nil {
				return errors.Wrap(err, "reading right distance")
			}
			if !front.OK || !left.OK || !right.OK {
				c.logDropout(ctx, "centered_forward", "front", front, "left", left, "right", right)
				if err := c.sleep(ctx, c.pollInterval); err != nil {
					return err
				}
				continue
			}
			if front.MM <= threshMM {
				return nil
			}
			if err := c.base.Drive(ctx, c.cfg.ForwardMMs, c.cfg.CenteringYaw(left.MM-right.MM)); err != nil {
				return errors.Wrap(err, "driving")
			}
			if err := c.sleep(ctx, c.pollInterval); err != nil {
				return err
			}
		}
	})
}

// TimedForward drives straight at forward_mm_s for the given number of seconds.
func (c *Controller) TimedForward(ctx context.Context, seconds float64) error {
	return c.run(ctx, "timed_forward", func(ctx context.Context) error {
		return c.driveFor(ctx, c.cfg.ForwardMMs, utils.SecondsToDuration(seconds))
	})
}

// driveFor repeats a straight drive command on the poll cadence until dur has elapsed.
func (c *Controller) driveFor(ctx context.Context, forwardMMs float64, dur time.Duration) error {
	return c.hold(ctx, dur, c.pollInterval, func(ctx context.Context) error {
		return errors.Wrap(c.base.Drive(ctx, forwardMMs, 0), "driving")
	})
}

// WaitForValidScan polls until every axis has a reading or the timeout passes, and reports
// which happened. It does not command the base.
func (c *Controller) WaitForValidScan(ctx context.Context, axes []rangefinder.Axis, timeout time.Duration) (bool, error) {
	for _, axis := range axes {
		if _, err := axis.Bearing(); err != nil {
			return false, err
		}
	}
	waitCtx, cancel := c.clk.WithTimeout(ctx, timeout)
	defer cancel()

	err := c.opMgr.WaitForSuccess(waitCtx, "wait_for_valid_scan", c.pollInterval, func(ctx context.Context) (bool, error) {
		for _, axis := range axes {
			r, err := c.readAxis(ctx, axis)
			if err != nil {
				return false, errors.Wrapf(err, "reading %s", axis)
			}
			if !r.OK {
				return false, nil
			}
		}
		return true, nil
	})
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		c.logger.Debugw("scan not valid before timeout", "axes", axes, "timeout", timeout)
		return false, nil
	default:
		return false, err
	}
}
