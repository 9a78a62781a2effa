package inject

import (
	"context"

	"github.com/loadlifter/aislenav/components/rangefinder"
)

// RangeSource is an injectable range source. Unset funcs fall through to the embedded Source.
type RangeSource struct {
	rangefinder.Source
	SnapshotFunc func(ctx context.Context) ([]rangefinder.Sample, error)
	ExactFunc    func(ctx context.Context, bearingDeg float64) (rangefinder.Reading, error)
	WindowFunc   func(ctx context.Context, bearingDeg, spanDeg float64, mode rangefinder.Mode) (rangefinder.Reading, error)
}

// Snapshot calls the injected Snapshot or the real version.
func (s *RangeSource) Snapshot(ctx context.Context) ([]rangefinder.Sample, error) {
	if s.SnapshotFunc == nil {
		return s.Source.Snapshot(ctx)
	}
	return s.SnapshotFunc(ctx)
}

// Exact calls the injected Exact or the real version.
func (s *RangeSource) Exact(ctx context.Context, bearingDeg float64) (rangefinder.Reading, error) {
	if s.ExactFunc == nil {
		return s.Source.Exact(ctx, bearingDeg)
	}
	return s.ExactFunc(ctx, bearingDeg)
}

// Window calls the injected Window or the real version.
func (s *RangeSource) Window(
	ctx context.Context,
	bearingDeg, spanDeg float64,
	mode rangefinder.Mode,
) (rangefinder.Reading, error) {
	if s.WindowFunc == nil {
		return s.Source.Window(ctx, bearingDeg, spanDeg, mode)
	}
	return s.WindowFunc(ctx, bearingDeg, spanDeg, mode)
}
