package rangefinder

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ScanSource derives readings from whatever snapshot its Snapshotter currently holds. Every
// reading call takes a fresh snapshot.
type ScanSource struct {
	snapshotter Snapshotter
}

// NewScanSource returns a Source over the snapshotter.
func NewScanSource(snapshotter Snapshotter) *ScanSource {
	return &ScanSource{snapshotter: snapshotter}
}

// Snapshot returns the latest snapshot.
func (s *ScanSource) Snapshot(ctx context.Context) ([]Sample, error) {
	return s.snapshotter.Snapshot(ctx)
}

// Exact returns the nearest sample to the bearing.
func (s *ScanSource) Exact(ctx context.Context, bearingDeg float64) (Reading, error) {
	samples, err := s.snapshotter.Snapshot(ctx)
	if err != nil {
		return Absent(), err
	}
	return ExactOf(samples, bearingDeg), nil
}

// Window aggregates the samples around the bearing.
func (s *ScanSource) Window(ctx context.Context, bearingDeg, spanDeg float64, mode Mode) (Reading, error) {
	samples, err := s.snapshotter.Snapshot(ctx)
	if err != nil {
		return Absent(), err
	}
	return WindowOf(samples, bearingDeg, spanDeg, mode), nil
}

// Buffer holds the latest snapshot published by an acquisition goroutine. Snapshots older than
// MaxAge read as empty so stale data turns into absent readings.
type Buffer struct {
	mu      sync.Mutex
	clk     clock.Clock
	maxAge  time.Duration
	latest  []Sample
	updated time.Time
	frames  uint64
}

// NewBuffer returns an empty buffer. A zero maxAge never expires snapshots.
func NewBuffer(clk clock.Clock, maxAge time.Duration) *Buffer {
	if clk == nil {
		clk = clock.New()
	}
	return &Buffer{clk: clk, maxAge: maxAge}
}

// Update replaces the latest snapshot. The slice is copied.
func (b *Buffer) Update(samples []Sample) {
	cp := make([]Sample, len(samples))
	copy(cp, samples)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = cp
	b.updated = b.clk.Now()
	b.frames++
}

// Frames returns how many snapshots have been published.
func (b *Buffer) Frames() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// Snapshot returns a copy of the latest snapshot.
func (b *Buffer) Snapshot(ctx context.Context) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.maxAge > 0 && b.clk.Since(b.updated) > b.maxAge {
		return []Sample{}, nil
	}
	cp := make([]Sample, len(b.latest))
	copy(cp, b.latest)
	return cp, nil
}
