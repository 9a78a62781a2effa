package navigation

import (
	"math"

	"github.com/loadlifter/aislenav/components/rangefinder"
	"github.com/loadlifter/aislenav/utils"
)

// Side names the wall a follower tracks.
type Side int

const (
	// SideLeft follows the wall at bearing 180.
	SideLeft Side = iota
	// SideRight follows the wall at bearing 0.
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

// OrientationReadings are the front and rear ±3° min windows on one side.
type OrientationReadings struct {
	Front rangefinder.Reading
	Rear  rangefinder.Reading
}

// Command is one wall following step.
type Command struct {
	ForwardMMs float64
	Yaw        int
	// Guarded is set when the robot is too close to the wall and the guard took over steering.
	Guarded bool
}

// ComputeCommand returns the drive command that keeps the robot distMM from the wall on side.
// Both sides hold left_target_mm. A guard steers away at a forced rate once the robot is more
// than GUARD_EXTRA inside the target.
func (cfg *Config) ComputeCommand(side Side, distMM float64, orient OrientationReadings) Command {
	target := cfg.LeftTargetMM
	errMM := distMM - target
	cmd := Command{ForwardMMs: cfg.ForwardMMs * cfg.ForwardScale(errMM)}

	if distMM < target-cfg.GuardExtraMM {
		force := utils.ClampInt(int((target-distMM)*0.1), cfg.MinYaw, cfg.MaxYaw)
		cmd.Guarded = true
		if side == SideLeft {
			cmd.Yaw = -force
		} else {
			cmd.Yaw = force
		}
		return cmd
	}

	yaw := cfg.YawFromError(side, errMM) + cfg.OrientationYaw(side, orient)
	cmd.Yaw = utils.ClampInt(yaw, -cfg.MaxYaw, cfg.MaxYaw)
	return cmd
}

// YawFromError is the proportional term of wall following. Inside TOL_MM it is zero; outside it
// is at least MIN_YAW and at most MAX_YAW, turning toward the wall when too far from it.
func (cfg *Config) YawFromError(side Side, errMM float64) int {
	if math.Abs(errMM) <= cfg.TolMM {
		return 0
	}
	mag := utils.ClampInt(int(math.Abs(errMM)*cfg.KpErr), cfg.MinYaw, cfg.MaxYaw)
	toward := mag * utils.SignInt(errMM)
	if side == SideRight {
		return -toward
	}
	return toward
}

// OrientationYaw turns the robot parallel to the wall using the front and rear side windows. It
// is zero unless both windows hold a reading.
func (cfg *Config) OrientationYaw(side Side, orient OrientationReadings) int {
	if !orient.Front.OK || !orient.Rear.OK {
		return 0
	}
	yaw := utils.ClampInt(int((orient.Front.MM-orient.Rear.MM)*cfg.KpOrient), -cfg.MaxYaw, cfg.MaxYaw)
	if side == SideRight {
		return -yaw
	}
	return yaw
}

// ForwardScale slows the robot down as the wall distance error grows, never below MIN_FWD.
func (cfg *Config) ForwardScale(errMM float64) float64 {
	if cfg.MaxSlowErrMM <= 0 {
		return 1
	}
	slow := math.Min(math.Abs(errMM), cfg.MaxSlowErrMM) / cfg.MaxSlowErrMM
	return math.Max(cfg.MinFwd, 1-0.7*slow)
}

// CenteringYaw steers toward the channel center given left minus right distance.
func (cfg *Config) CenteringYaw(diffMM float64) int {
	if math.Abs(diffMM) <= cfg.TolMM {
		return 0
	}
	maxYaw := float64(cfg.MaxYaw)
	return int(utils.Clamp(diffMM*cfg.KpCenter, -maxYaw, maxYaw))
}
