// Package base defines the holonomic drive base commanded by navigation.
package base

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/loadlifter/aislenav/utils"
)

// An Actuator is the minimal drive interface every base implements. Forward speed is in mm/s;
// strafe and yaw are actuator pulses, positive to the left.
type Actuator interface {
	DriveFull(ctx context.Context, forwardMMs float64, strafe, yaw int) error
	Stop(ctx context.Context) error
}

// Commander derives the convenience motions from an Actuator's DriveFull.
type Commander struct {
	Actuator
	clk clock.Clock
}

// NewCommander wraps an actuator. A nil clock uses wall time.
func NewCommander(act Actuator, clk clock.Clock) *Commander {
	if clk == nil {
		clk = clock.New()
	}
	return &Commander{Actuator: act, clk: clk}
}

// Drive moves forward while yawing, without strafe.
func (c *Commander) Drive(ctx context.Context, forwardMMs float64, yaw int) error {
	return c.DriveFull(ctx, forwardMMs, 0, yaw)
}

// YawSpin turns in place. Positive is left.
func (c *Commander) YawSpin(ctx context.Context, yaw int) error {
	return c.DriveFull(ctx, 0, 0, yaw)
}

// StrafeLeft moves sideways to the left with the pulse magnitude.
func (c *Commander) StrafeLeft(ctx context.Context, pulse int) error {
	return c.DriveFull(ctx, 0, utils.AbsInt(pulse), 0)
}

// StrafeRight moves sideways to the right with the pulse magnitude.
func (c *Commander) StrafeRight(ctx context.Context, pulse int) error {
	return c.DriveFull(ctx, 0, -utils.AbsInt(pulse), 0)
}

// BrakeYaw issues a counter rotation of the given signed yaw for dur. It leaves the counter
// rotation commanded; the caller zeroes the base afterwards.
func (c *Commander) BrakeYaw(ctx context.Context, yaw int, dur time.Duration) error {
	if yaw == 0 || dur <= 0 {
		return nil
	}
	if err := c.YawSpin(ctx, yaw); err != nil {
		return err
	}
	if !utils.SelectContextOrWait(ctx, c.clk, dur) {
		return ctx.Err()
	}
	return nil
}
