package navigation

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"github.com/loadlifter/aislenav/components/rangefinder"
	"github.com/loadlifter/aislenav/components/rangefinder/fake"
	"github.com/loadlifter/aislenav/utils"
)

func TestPrincipalAngleDeg(t *testing.T) {
	line := func(deg float64) []r2.Point {
		dir := r2.Point{X: math.Cos(utils.DegToRad(deg)), Y: math.Sin(utils.DegToRad(deg))}
		var pts []r2.Point
		for i := -10; i <= 10; i++ {
			pts = append(pts, r2.Point{X: 40, Y: -500}.Add(dir.Mul(float64(i)*25)))
		}
		return pts
	}
	for _, deg := range []float64{0, 5, -5, 30, 89, -60} {
		got, ok := PrincipalAngleDeg(line(deg))
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, got, test.ShouldAlmostEqual, deg, 1e-9)
	}

	got, ok := PrincipalAngleDeg(line(90))
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, got, test.ShouldAlmostEqual, 90, 1e-9)

	_, ok = PrincipalAngleDeg([]r2.Point{{X: 1, Y: 2}})
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = PrincipalAngleDeg([]r2.Point{{X: 1, Y: 2}, {X: 1, Y: 2}})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestChannelStatsRecoversRotation(t *testing.T) {
	params := DefaultAlignConfig()
	for _, yaw := range []float64{5, -5, 2.5} {
		samples := fake.Channel{LeftMM: 300, RightMM: 300, FrontMM: 500, YawDeg: yaw}.Samples()
		st := ComputeChannelStats(samples, params)

		test.That(t, st.OrientationDeg.OK, test.ShouldBeTrue)
		test.That(t, st.OrientationDeg.Value, test.ShouldAlmostEqual, yaw, 0.5)
		for _, est := range []Estimate{st.FrontAngleDeg, st.LeftAngleDeg, st.RightAngleDeg} {
			test.That(t, est.OK, test.ShouldBeTrue)
			test.That(t, est.Value, test.ShouldAlmostEqual, yaw, 0.5)
		}
	}
}

func TestChannelStatsCentered(t *testing.T) {
	params := DefaultAlignConfig()
	st := ComputeChannelStats(fake.Channel{LeftMM: 300, RightMM: 300, FrontMM: 500}.Samples(), params)

	test.That(t, st.LeftMM.Value, test.ShouldAlmostEqual, 300, 1e-6)
	test.That(t, st.RightMM.Value, test.ShouldAlmostEqual, 300, 1e-6)
	test.That(t, st.DiffMM.Value, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, st.FrontCenterMM.Value, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, st.FrontBandCenterMM.OK, test.ShouldBeTrue)
	test.That(t, st.FrontBandCenterMM.Value, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, st.SideBandAsymmetryMM.Value, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, st.OrientationDeg.Value, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, st.FrontCount, test.ShouldEqual, 51)
	test.That(t, st.LeftCount, test.ShouldEqual, 71)
	test.That(t, st.RightCount, test.ShouldEqual, 71)
	test.That(t, withinFinalCheck(st, params, true), test.ShouldBeTrue)
}

func TestChannelStatsOffset(t *testing.T) {
	params := DefaultAlignConfig()
	st := ComputeChannelStats(fake.Channel{LeftMM: 250, RightMM: 350, FrontMM: 500}.Samples(), params)

	test.That(t, st.DiffMM.Value, test.ShouldAlmostEqual, -100, 1e-6)
	test.That(t, st.SideBandAsymmetryMM.Value, test.ShouldAlmostEqual, -100, 1e-6)

	lateral := st.LateralErrorMM(true)
	test.That(t, lateral.OK, test.ShouldBeTrue)
	test.That(t, lateral.Value, test.ShouldAlmostEqual, -100, 1e-6)
	test.That(t, withinFinalCheck(st, params, false), test.ShouldBeFalse)

	// A front band that disagrees more than the side walls wins when a front wall is expected.
	st.FrontBandCenterMM = known(140)
	test.That(t, st.LateralErrorMM(true).Value, test.ShouldEqual, 140)
	test.That(t, st.LateralErrorMM(false).Value, test.ShouldAlmostEqual, -100, 1e-6)
}

func TestChannelStatsFiltering(t *testing.T) {
	params := DefaultAlignConfig()
	params.MaxRangeMM = 400

	samples := fake.Channel{LeftMM: 300, RightMM: 300, FrontMM: 500}.Samples()
	samples = append(samples,
		rangefinder.Sample{BearingDeg: 270, DistanceMM: 0},
		rangefinder.Sample{BearingDeg: 270, DistanceMM: -20},
		rangefinder.Sample{BearingDeg: 270, DistanceMM: math.NaN()},
	)
	st := ComputeChannelStats(samples, params)
	test.That(t, st.FrontCount, test.ShouldEqual, 0)
	test.That(t, st.FrontAngleDeg.OK, test.ShouldBeFalse)
	test.That(t, st.FrontBandCenterMM.OK, test.ShouldBeFalse)
	test.That(t, st.LeftAngleDeg.OK, test.ShouldBeTrue)
	test.That(t, st.OrientationDeg.OK, test.ShouldBeTrue)

	empty := ComputeChannelStats(nil, params)
	test.That(t, empty.OrientationDeg.OK, test.ShouldBeFalse)
	test.That(t, empty.LateralErrorMM(true).OK, test.ShouldBeFalse)
	test.That(t, withinFinalCheck(empty, params, false), test.ShouldBeFalse)
}

func TestChannelStatsWithoutFrontWall(t *testing.T) {
	params := DefaultAlignConfig()

	st := ComputeChannelStats(fake.Channel{LeftMM: 300, RightMM: 300}.Samples(), params)
	test.That(t, st.FrontCount, test.ShouldBeGreaterThan, 0)
	test.That(t, st.FrontAngleDeg.OK, test.ShouldBeFalse)
	test.That(t, st.FrontBandCenterMM.OK, test.ShouldBeFalse)
	test.That(t, st.OrientationDeg.OK, test.ShouldBeTrue)
	test.That(t, st.OrientationDeg.Value, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, withinFinalCheck(st, params, false), test.ShouldBeTrue)

	for _, yaw := range []float64{5, -5} {
		st := ComputeChannelStats(fake.Channel{LeftMM: 300, RightMM: 300, YawDeg: yaw}.Samples(), params)
		test.That(t, st.FrontAngleDeg.OK, test.ShouldBeFalse)
		test.That(t, st.OrientationDeg.Value, test.ShouldAlmostEqual, yaw, 0.5)
	}
}

func TestChannelStatsDistantFrontWall(t *testing.T) {
	params := DefaultAlignConfig()
	for _, yaw := range []float64{0, 5, -5} {
		st := ComputeChannelStats(fake.Channel{LeftMM: 300, RightMM: 300, FrontMM: 2000, YawDeg: yaw}.Samples(), params)
		test.That(t, st.FrontAngleDeg.OK, test.ShouldBeTrue)
		test.That(t, st.FrontAngleDeg.Value, test.ShouldAlmostEqual, yaw, 0.5)
		test.That(t, st.OrientationDeg.Value, test.ShouldAlmostEqual, yaw, 0.5)
		test.That(t, st.FrontBandCenterMM.OK, test.ShouldBeTrue)
		test.That(t, st.FrontBandCenterMM.Value, test.ShouldAlmostEqual, 0, 40)
	}
}
