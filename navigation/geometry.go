package navigation

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/montanaflynn/stats"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"github.com/loadlifter/aislenav/components/rangefinder"
	"github.com/loadlifter/aislenav/utils"
)

// Estimate is a derived quantity that may be unavailable for lack of points.
type Estimate struct {
	Value float64
	OK    bool
}

func known(v float64) Estimate {
	return Estimate{Value: v, OK: true}
}

// ChannelStats summarizes one snapshot of a storage channel. Angles are degrees, positive when
// the robot is turned left of the channel axis. Distances are millimeters, and lateral signals are
// positive when the robot should move left.
type ChannelStats struct {
	LeftMM  Estimate
	RightMM Estimate
	// DiffMM is LeftMM minus RightMM.
	DiffMM Estimate
	// FrontCenterMM is the mean lateral position of every front sector point.
	FrontCenterMM Estimate
	// FrontBandCenterMM is the lateral offset of the channel center measured on the front wall
	// band nearest the robot, scaled to match DiffMM. It is unknown when no front wall is seen.
	FrontBandCenterMM Estimate

	FrontAngleDeg  Estimate
	LeftAngleDeg   Estimate
	RightAngleDeg  Estimate
	OrientationDeg Estimate

	// SideBandAsymmetryMM compares the side walls abeam the sensor only.
	SideBandAsymmetryMM Estimate

	FrontCount int
	LeftCount  int
	RightCount int
}

// LateralErrorMM picks the lateral signal to correct. The front band center competes with the
// side difference only when a front wall is expected; the larger magnitude wins.
func (s ChannelStats) LateralErrorMM(expectFront bool) Estimate {
	candidate := s.DiffMM
	if expectFront && s.FrontBandCenterMM.OK {
		if !candidate.OK || math.Abs(s.FrontBandCenterMM.Value) > math.Abs(candidate.Value) {
			candidate = s.FrontBandCenterMM
		}
	}
	return candidate
}

// PrincipalAngleDeg fits a total least squares line through points and returns its direction in
// (-90, 90]. It needs at least two points that are not all coincident.
func PrincipalAngleDeg(points []r2.Point) (float64, bool) {
	if len(points) < 2 {
		return 0, false
	}
	xs := lo.Map(points, func(p r2.Point, _ int) float64 { return p.X })
	ys := lo.Map(points, func(p r2.Point, _ int) float64 { return p.Y })
	sxx := stat.Variance(xs, nil)
	syy := stat.Variance(ys, nil)
	sxy := stat.Covariance(xs, ys, nil)
	if sxx == 0 && syy == 0 {
		return 0, false
	}
	angle := 0.5 * utils.RadToDeg(math.Atan2(2*sxy, sxx-syy))
	return utils.WrapDeg90(angle), true
}

// ComputeChannelStats buckets a snapshot into front, left and right sectors and derives the
// alignment signals from each.
func ComputeChannelStats(samples []rangefinder.Sample, params AlignConfig) ChannelStats {
	usable := lo.Filter(samples, func(s rangefinder.Sample, _ int) bool {
		return s.Valid() && (params.MaxRangeMM <= 0 || s.DistanceMM <= params.MaxRangeMM)
	})
	sector := func(bearing, half float64) []r2.Point {
		in := lo.Filter(usable, func(s rangefinder.Sample, _ int) bool {
			return utils.AngleDiffDeg(s.BearingDeg, bearing) <= half
		})
		return lo.Map(in, func(s rangefinder.Sample, _ int) r2.Point { return s.Point() })
	}
	front := sector(rangefinder.BearingFront, params.FrontHalfWidthDeg)
	left := sector(rangefinder.BearingLeft, params.SideHalfWidthDeg)
	right := sector(rangefinder.BearingRight, params.SideHalfWidthDeg)

	st := ChannelStats{FrontCount: len(front), LeftCount: len(left), RightCount: len(right)}

	st.LeftMM = medianAbsX(left)
	st.RightMM = medianAbsX(right)
	if st.LeftMM.OK && st.RightMM.OK {
		st.DiffMM = known(st.LeftMM.Value - st.RightMM.Value)
	}
	if len(front) > 0 {
		st.FrontCenterMM = known(meanX(front))
	}

	band := func(pts []r2.Point) []r2.Point {
		return lo.Filter(pts, func(p r2.Point, _ int) bool { return math.Abs(p.Y) <= params.FrontBandMM })
	}
	leftBand, rightBand := medianAbsX(band(left)), medianAbsX(band(right))
	if leftBand.OK && rightBand.OK {
		st.SideBandAsymmetryMM = known(leftBand.Value - rightBand.Value)
	}

	var estimates []float64
	if a, ok := PrincipalAngleDeg(left); ok {
		st.LeftAngleDeg = known(utils.WrapDeg90(a - 90))
		estimates = append(estimates, st.LeftAngleDeg.Value)
	}
	if a, ok := PrincipalAngleDeg(right); ok {
		st.RightAngleDeg = known(utils.WrapDeg90(a + 90))
		estimates = append(estimates, st.RightAngleDeg.Value)
	}

	// The front sector also sees the side walls, and in an open channel nothing else. Only the
	// points between the side walls, on the band nearest the robot, belong to a front wall.
	var sideYaw float64
	if len(estimates) > 0 {
		sideYaw = stat.Mean(estimates, nil)
	}
	wall := frontWall(front, left, right, sideYaw, params)
	if a, ok := PrincipalAngleDeg(wall.original); ok && math.Abs(a) <= maxFrontWallAngleDeg {
		st.FrontAngleDeg = known(a)
		estimates = append(estimates, a)
		st.FrontBandCenterMM = known(-2 * meanX(wall.aligned))
	}
	if len(estimates) > 0 {
		st.OrientationDeg = known(stat.Mean(estimates, nil))
	}
	return st
}

// maxFrontWallAngleDeg bounds the fitted direction of a wall lying across the channel.
const maxFrontWallAngleDeg = 45

// frontWallPoints holds the same front wall points in sensor and in channel coordinates.
type frontWallPoints struct {
	original []r2.Point
	aligned  []r2.Point
}

// frontWall keeps the front points that lie between the side walls, less FrontBandMM on each
// side, and within FrontBandMM along the channel of the nearest of them. The test runs in the
// channel frame given by sideYaw. Fewer than MinFrontPoints survivors mean there is no wall.
func frontWall(front, left, right []r2.Point, sideYaw float64, params AlignConfig) frontWallPoints {
	toChannel := func(p r2.Point) r2.Point { return rotateDeg(p, -sideYaw) }
	leftEdge, rightEdge := math.Inf(-1), math.Inf(1)
	if d := medianAbsX(lo.Map(left, func(p r2.Point, _ int) r2.Point { return toChannel(p) })); d.OK {
		leftEdge = -d.Value + params.FrontBandMM
	}
	if d := medianAbsX(lo.Map(right, func(p r2.Point, _ int) r2.Point { return toChannel(p) })); d.OK {
		rightEdge = d.Value - params.FrontBandMM
	}

	var between frontWallPoints
	for _, p := range front {
		q := toChannel(p)
		if q.X > leftEdge && q.X < rightEdge {
			between.original = append(between.original, p)
			between.aligned = append(between.aligned, q)
		}
	}
	if len(between.aligned) == 0 {
		return frontWallPoints{}
	}
	nearest := lo.MaxBy(between.aligned, func(a, b r2.Point) bool { return a.Y > b.Y })

	var band frontWallPoints
	for i, q := range between.aligned {
		if math.Abs(q.Y-nearest.Y) <= params.FrontBandMM {
			band.original = append(band.original, between.original[i])
			band.aligned = append(band.aligned, q)
		}
	}
	if len(band.aligned) < params.MinFrontPoints {
		return frontWallPoints{}
	}
	return band
}

// rotateDeg rotates p counterclockwise about the origin.
func rotateDeg(p r2.Point, deg float64) r2.Point {
	sin, cos := math.Sincos(utils.DegToRad(deg))
	return r2.Point{X: p.X*cos - p.Y*sin, Y: p.X*sin + p.Y*cos}
}

func medianAbsX(points []r2.Point) Estimate {
	if len(points) == 0 {
		return Estimate{}
	}
	m, err := stats.Median(lo.Map(points, func(p r2.Point, _ int) float64 { return math.Abs(p.X) }))
	if err != nil {
		return Estimate{}
	}
	return known(m)
}

func meanX(points []r2.Point) float64 {
	return stat.Mean(lo.Map(points, func(p r2.Point, _ int) float64 { return p.X }), nil)
}
