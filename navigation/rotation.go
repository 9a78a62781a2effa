package navigation

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/loadlifter/aislenav/navigation/turnprofile"
	"github.com/loadlifter/aislenav/utils"
)

// heuristicSecondsPerDeg allocates turn time when the calibration lacks a rate for either pulse.
const heuristicSecondsPerDeg = 0.012

// TurnDirection is the way a turn rotates the robot.
type TurnDirection int

const (
	// TurnLeft rotates counterclockwise seen from above, with positive yaw pulses.
	TurnLeft TurnDirection = iota
	// TurnRight rotates clockwise with negative yaw pulses.
	TurnRight
)

func (d TurnDirection) String() string {
	if d == TurnRight {
		return "right"
	}
	return "left"
}

func (d TurnDirection) opposite() TurnDirection {
	if d == TurnRight {
		return TurnLeft
	}
	return TurnRight
}

// TurnPlan is the time profile of one calibrated turn.
type TurnPlan struct {
	TargetDeg    float64
	Direction    TurnDirection
	Scale        float64
	BrakeDeg     float64
	EffectiveDeg float64

	FastYaw      int
	SlowYaw      int
	FastDuration time.Duration
	SlowDuration time.Duration

	// BrakeYaw counter-rotates against Direction. Zero disables the brake.
	BrakeYaw      int
	BrakeDuration time.Duration

	// Calibrated is set when both phase rates came from the calibration file.
	Calibrated bool
}

// Total returns the time spent yawing before the brake.
func (p TurnPlan) Total() time.Duration {
	return p.FastDuration + p.SlowDuration
}

// NormalizePulse turns a configured pulse into a positive integer magnitude. Values below one are
// read as fractions of 100, and a zero result selects fallback.
func NormalizePulse(v float64, fallback int) int {
	v = math.Abs(v)
	if v < 1 {
		v *= 100
	}
	pulse := int(math.Round(v))
	if pulse == 0 {
		return fallback
	}
	return pulse
}

// turnScale picks the scale factor for a turn of deg degrees.
func (cfg *Config) turnScale(deg float64) float64 {
	rot := cfg.Rotation
	switch {
	case deg >= 175 && rot.Scaling180 > 0:
		return rot.Scaling180
	case deg <= 95 && rot.Scaling90 > 0:
		return rot.Scaling90
	default:
		return rot.Scaling
	}
}

// PlanTurn computes the fast, slow and brake phases of a turn. A negative deg turns the other way.
// A nil profile selects the heuristic timing.
func (cfg *Config) PlanTurn(deg float64, dir TurnDirection, profile *turnprofile.Profile) TurnPlan {
	if deg < 0 {
		deg, dir = -deg, dir.opposite()
	}
	fast := NormalizePulse(cfg.YawFast, cfg.Rotation.FallbackPulse)
	slow := NormalizePulse(cfg.YawSlow, cfg.Rotation.FallbackPulse)
	brakeOpp := NormalizePulse(cfg.BrakeOpp, 0)

	plan := TurnPlan{TargetDeg: deg, Direction: dir, Scale: cfg.turnScale(deg)}
	if brakeDeg, ok := profile.BrakeDeg(brakeOpp, cfg.BrakeTimeS); ok {
		plan.BrakeDeg = brakeDeg
	}
	plan.EffectiveDeg = math.Max(0, (deg+plan.BrakeDeg)*plan.Scale)

	dpsFast, okFast := profile.DegPerSecond(fast)
	dpsSlow, okSlow := profile.DegPerSecond(slow)
	if okFast && okSlow {
		plan.Calibrated = true
		fastDeg := plan.EffectiveDeg * cfg.RatioFast
		plan.FastDuration = utils.SecondsToDuration(fastDeg / dpsFast)
		plan.SlowDuration = utils.SecondsToDuration((plan.EffectiveDeg - fastDeg) / dpsSlow)
	} else {
		total := heuristicSecondsPerDeg * plan.EffectiveDeg
		plan.FastDuration = utils.SecondsToDuration(total * cfg.RatioFast)
		plan.SlowDuration = utils.SecondsToDuration(total * (1 - cfg.RatioFast))
	}

	sign := 1
	if dir == TurnRight {
		sign = -1
	}
	plan.FastYaw = sign * fast
	plan.SlowYaw = sign * slow
	if brakeOpp != 0 && cfg.BrakeTimeS > 0 {
		plan.BrakeYaw = -sign * brakeOpp
		plan.BrakeDuration = utils.SecondsToDuration(cfg.BrakeTimeS)
	}
	return plan
}

// TurnPlan returns the plan RotateLeftDeg or RotateRightDeg would execute with the current
// calibration.
func (c *Controller) TurnPlan(deg float64, dir TurnDirection) TurnPlan {
	return c.cfg.PlanTurn(deg, dir, c.profiles.Profile())
}

// RotateLeftDeg turns the robot left by deg degrees.
func (c *Controller) RotateLeftDeg(ctx context.Context, deg float64) error {
	return c.rotate(ctx, deg, TurnLeft)
}

// RotateRightDeg turns the robot right by deg degrees.
func (c *Controller) RotateRightDeg(ctx context.Context, deg float64) error {
	return c.rotate(ctx, deg, TurnRight)
}

// RotateLeft180Calibrated turns the robot around to the left.
func (c *Controller) RotateLeft180Calibrated(ctx context.Context) error {
	return c.rotate(ctx, 180, TurnLeft)
}

func (c *Controller) rotate(ctx context.Context, deg float64, dir TurnDirection) error {
	plan := c.TurnPlan(deg, dir)
	return c.run(ctx, "rotate_"+plan.Direction.String(), func(ctx context.Context) error {
		c.logger.CDebugw(ctx, "turn planned",
			"target_deg", plan.TargetDeg,
			"effective_deg", plan.EffectiveDeg,
			"fast", plan.FastDuration,
			"slow", plan.SlowDuration,
			"calibrated", plan.Calibrated,
		)
		if err := c.spin(ctx, plan.FastYaw, plan.FastDuration); err != nil {
			return errors.Wrap(err, "fast turn phase")
		}
		if err := c.spin(ctx, plan.SlowYaw, plan.SlowDuration); err != nil {
			return errors.Wrap(err, "slow turn phase")
		}
		if err := c.base.BrakeYaw(ctx, plan.BrakeYaw, plan.BrakeDuration); err != nil {
			return errors.Wrap(err, "turn brake")
		}
		return nil
	})
}

// spin holds a yaw-only command for dur at the turn cadence.
func (c *Controller) spin(ctx context.Context, yaw int, dur time.Duration) error {
	return c.hold(ctx, dur, c.turnInterval, func(ctx context.Context) error {
		return c.base.YawSpin(ctx, yaw)
	})
}
