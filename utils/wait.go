package utils

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// SelectContextOrWait waits for the duration on the given clock or until the context is done.
// It returns false when the context ended first.
func SelectContextOrWait(ctx context.Context, clk clock.Clock, dur time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if dur <= 0 {
		return true
	}
	timer := clk.Timer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// SecondsToDuration converts a (possibly fractional) number of seconds to a duration.
func SecondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
