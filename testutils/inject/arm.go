package inject

import (
	"context"

	"github.com/loadlifter/aislenav/components/arm"
)

// Arm is an injected arm.
type Arm struct {
	arm.Arm
	PickFunc    func(ctx context.Context) error
	ReleaseFunc func(ctx context.Context) error
}

// Pick calls the injected Pick or the real version.
func (a *Arm) Pick(ctx context.Context) error {
	if a.PickFunc == nil {
		return a.Arm.Pick(ctx)
	}
	return a.PickFunc(ctx)
}

// Release calls the injected Release or the real version.
func (a *Arm) Release(ctx context.Context) error {
	if a.ReleaseFunc == nil {
		return a.Arm.Release(ctx)
	}
	return a.ReleaseFunc(ctx)
}
