package inject

import (
	"context"

	"github.com/loadlifter/aislenav/components/base"
)

// Actuator is an injectable base actuator. Unset funcs fall through to the embedded Actuator.
type Actuator struct {
	base.Actuator
	DriveFullFunc func(ctx context.Context, forwardMMs float64, strafe, yaw int) error
	StopFunc      func(ctx context.Context) error
}

// DriveFull calls the injected DriveFull or the real version.
func (a *Actuator) DriveFull(ctx context.Context, forwardMMs float64, strafe, yaw int) error {
	if a.DriveFullFunc == nil {
		return a.Actuator.DriveFull(ctx, forwardMMs, strafe, yaw)
	}
	return a.DriveFullFunc(ctx, forwardMMs, strafe, yaw)
}

// Stop calls the injected Stop or the real version.
func (a *Actuator) Stop(ctx context.Context) error {
	if a.StopFunc == nil {
		return a.Actuator.Stop(ctx)
	}
	return a.StopFunc(ctx)
}
