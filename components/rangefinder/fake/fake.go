// Package fake implements a synthetic range source that ray casts a straight channel.
package fake

import (
	"context"
	"math"
	"sync"

	"github.com/loadlifter/aislenav/components/rangefinder"
	"github.com/loadlifter/aislenav/utils"
)

// Channel describes walls around the sensor. LeftMM and RightMM are the perpendicular
// distances to the side walls, FrontMM the distance to a wall ahead (0 means open). YawDeg is
// the robot heading relative to the channel axis, positive when turned left.
type Channel struct {
	LeftMM   float64
	RightMM  float64
	FrontMM  float64
	YawDeg   float64
	MaxRange float64
	// StepDeg is the angular resolution of the generated scan. Zero means 1°.
	StepDeg float64
}

// Samples ray casts the channel from the sensor origin.
func (c Channel) Samples() []rangefinder.Sample {
	step := c.StepDeg
	if step <= 0 {
		step = 1
	}
	maxRange := c.MaxRange
	if maxRange <= 0 {
		maxRange = 8000
	}
	var samples []rangefinder.Sample
	for bearing := 0.0; bearing < 360; bearing += step {
		// Bearings grow clockwise seen from above, so turning the robot left shifts every wall
		// to a larger bearing.
		world := utils.DegToRad(bearing - c.YawDeg)
		dx, dy := math.Cos(world), math.Sin(world)
		dist := math.Inf(1)
		if c.LeftMM > 0 && dx < -1e-9 {
			dist = math.Min(dist, -c.LeftMM/dx)
		}
		if c.RightMM > 0 && dx > 1e-9 {
			dist = math.Min(dist, c.RightMM/dx)
		}
		if c.FrontMM > 0 && dy < -1e-9 {
			dist = math.Min(dist, -c.FrontMM/dy)
		}
		if math.IsInf(dist, 1) || dist > maxRange {
			continue
		}
		samples = append(samples, rangefinder.Sample{BearingDeg: bearing, DistanceMM: dist, Intensity: 200})
	}
	return samples
}

// Source is a rangefinder.Source whose snapshot is produced by a function the test controls.
// A nil result from SnapshotFunc reads as an empty scan.
type Source struct {
	mu           sync.Mutex
	SnapshotFunc func(call int) []rangefinder.Sample
	calls        int
}

// NewChannelSource returns a Source that always sees the same channel.
func NewChannelSource(c Channel) *Source {
	samples := c.Samples()
	return &Source{SnapshotFunc: func(int) []rangefinder.Sample { return samples }}
}

// SetChannel replaces the channel seen from now on.
func (s *Source) SetChannel(c Channel) {
	samples := c.Samples()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SnapshotFunc = func(int) []rangefinder.Sample { return samples }
}

// Calls returns how many snapshots were taken.
func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Snapshot returns the scripted snapshot for the next call.
func (s *Source) Snapshot(ctx context.Context) ([]rangefinder.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := s.calls
	s.calls++
	if s.SnapshotFunc == nil {
		return []rangefinder.Sample{}, nil
	}
	return s.SnapshotFunc(call), nil
}

// Exact returns the nearest sample to the bearing.
func (s *Source) Exact(ctx context.Context, bearingDeg float64) (rangefinder.Reading, error) {
	samples, err := s.Snapshot(ctx)
	if err != nil {
		return rangefinder.Absent(), err
	}
	return rangefinder.ExactOf(samples, bearingDeg), nil
}

// Window aggregates samples around the bearing.
func (s *Source) Window(ctx context.Context, bearingDeg, spanDeg float64, mode rangefinder.Mode) (rangefinder.Reading, error) {
	samples, err := s.Snapshot(ctx)
	if err != nil {
		return rangefinder.Absent(), err
	}
	return rangefinder.WindowOf(samples, bearingDeg, spanDeg, mode), nil
}
