// Package rangefinder defines the 360 degree range sensor consumed by navigation, along with
// snapshot buffering, replay, and the windowed readings derived from a snapshot.
package rangefinder

import (
	"context"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/loadlifter/aislenav/utils"
)

// Sensor relative bearings in degrees. 0 is right, 180 is left and 270 is straight ahead.
const (
	BearingRight      = 0.0
	BearingLeft       = 180.0
	BearingFront      = 270.0
	BearingLeftRear   = 168.0
	BearingLeftFront  = 192.0
	BearingRightRear  = 12.0
	BearingRightFront = 348.0
)

const (
	// ExactHalfWindowDeg bounds how far a sample may sit from the requested bearing for an
	// exact reading.
	ExactHalfWindowDeg = 0.5
	// OrientationSpanDeg is the window used by the four wall orientation readings.
	OrientationSpanDeg = 6.0
	// DefaultSpanDeg is the window used for side and front readings in windowed modes.
	DefaultSpanDeg = 10.0
)

// Sample is a single return of the rotating beam.
type Sample struct {
	BearingDeg float64
	DistanceMM float64
	Intensity  uint8
}

// Point converts the sample to sensor Cartesian coordinates: x = d·cos θ, y = d·sin θ.
// Right is +x and forward is -y.
func (s Sample) Point() r2.Point {
	rad := utils.DegToRad(s.BearingDeg)
	return r2.Point{X: s.DistanceMM * math.Cos(rad), Y: s.DistanceMM * math.Sin(rad)}
}

// Valid reports whether the sample carries a usable distance.
func (s Sample) Valid() bool {
	return s.DistanceMM > 0 && !math.IsNaN(s.DistanceMM) && !math.IsInf(s.DistanceMM, 0)
}

// Reading is a distance that may be absent. An absent reading is never a numeric zero.
type Reading struct {
	MM float64
	OK bool
}

// Present returns a reading holding mm.
func Present(mm float64) Reading {
	return Reading{MM: mm, OK: true}
}

// Absent returns a reading with no value.
func Absent() Reading {
	return Reading{}
}

func (r Reading) String() string {
	if !r.OK {
		return "absent"
	}
	return fmt.Sprintf("%.0fmm", r.MM)
}

// Mode selects how samples inside a window are aggregated.
type Mode int

const (
	// ModeMedian takes the median distance of the window.
	ModeMedian Mode = iota
	// ModeMin takes the closest distance of the window.
	ModeMin
	// ModeSingle takes the exact reading at the bearing instead of a window.
	ModeSingle
)

func (m Mode) String() string {
	switch m {
	case ModeMedian:
		return "median"
	case ModeMin:
		return "min"
	case ModeSingle:
		return "single"
	}
	return "unknown"
}

// ParseMode parses "median", "min" or "single".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "median":
		return ModeMedian, nil
	case "min":
		return ModeMin, nil
	case "single":
		return ModeSingle, nil
	}
	return ModeMedian, errors.Errorf("unknown range mode %q, expected one of single, median, min", s)
}

// A Source provides snapshots and derived readings along fixed bearings.
type Source interface {
	// Snapshot returns the latest samples in no particular order. It may be empty.
	Snapshot(ctx context.Context) ([]Sample, error)
	// Exact returns the nearest sample within ExactHalfWindowDeg of the bearing.
	Exact(ctx context.Context, bearingDeg float64) (Reading, error)
	// Window aggregates the samples within spanDeg/2 of the bearing.
	Window(ctx context.Context, bearingDeg, spanDeg float64, mode Mode) (Reading, error)
}

// A Snapshotter produces raw snapshots.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]Sample, error)
}

// Read returns the reading for a bearing using the given mode. ModeSingle is an exact reading;
// the others aggregate over spanDeg.
func Read(ctx context.Context, src Source, bearingDeg, spanDeg float64, mode Mode) (Reading, error) {
	if mode == ModeSingle {
		return src.Exact(ctx, bearingDeg)
	}
	return src.Window(ctx, bearingDeg, spanDeg, mode)
}

// OrientationWindow returns one of the four ±3° min readings used for wall orientation.
func OrientationWindow(ctx context.Context, src Source, bearingDeg float64) (Reading, error) {
	return src.Window(ctx, bearingDeg, OrientationSpanDeg, ModeMin)
}
