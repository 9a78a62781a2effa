package rangefinder

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/samber/lo"

	"github.com/loadlifter/aislenav/utils"
)

// ExactOf returns the valid sample nearest to the bearing, if one lies within
// ExactHalfWindowDeg.
func ExactOf(samples []Sample, bearingDeg float64) Reading {
	best := math.Inf(1)
	reading := Absent()
	for _, s := range samples {
		if !s.Valid() {
			continue
		}
		diff := utils.AngleDiffDeg(s.BearingDeg, bearingDeg)
		if diff <= ExactHalfWindowDeg && diff < best {
			best = diff
			reading = Present(s.DistanceMM)
		}
	}
	return reading
}

// InWindow returns the valid samples whose bearing lies within spanDeg/2 of bearingDeg.
func InWindow(samples []Sample, bearingDeg, spanDeg float64) []Sample {
	half := spanDeg / 2
	return lo.Filter(samples, func(s Sample, _ int) bool {
		return s.Valid() && utils.AngleDiffDeg(s.BearingDeg, bearingDeg) <= half
	})
}

// WindowOf aggregates the samples of a window. An empty window is absent.
func WindowOf(samples []Sample, bearingDeg, spanDeg float64, mode Mode) Reading {
	if mode == ModeSingle {
		return ExactOf(samples, bearingDeg)
	}
	window := InWindow(samples, bearingDeg, spanDeg)
	if len(window) == 0 {
		return Absent()
	}
	data := stats.Float64Data(lo.Map(window, func(s Sample, _ int) float64 { return s.DistanceMM }))

	var (
		v   float64
		err error
	)
	if mode == ModeMin {
		v, err = stats.Min(data)
	} else {
		v, err = stats.Median(data)
	}
	if err != nil {
		return Absent()
	}
	return Present(v)
}
