package cli

import (
	"context"

	"github.com/loadlifter/aislenav/logging"
)

// dryRunBase stands in for the base controller on a dry run. Commands are logged at debug and
// nothing is kept, so long missions do not grow memory.
type dryRunBase struct {
	logger logging.Logger
}

func (b *dryRunBase) DriveFull(ctx context.Context, forwardMMs float64, strafe, yaw int) error {
	b.logger.CDebugw(ctx, "drive", "forward_mm_s", forwardMMs, "strafe", strafe, "yaw", yaw)
	return nil
}

func (b *dryRunBase) Stop(ctx context.Context) error {
	b.logger.CDebugw(ctx, "stop")
	return nil
}
