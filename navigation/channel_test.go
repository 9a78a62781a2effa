package navigation

import (
	"context"
	"math"
	"testing"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/loadlifter/aislenav/components/base/fake"
	"github.com/loadlifter/aislenav/components/rangefinder"
	rfake "github.com/loadlifter/aislenav/components/rangefinder/fake"
	"github.com/loadlifter/aislenav/config"
)

func runAlign(t *testing.T, c *Controller, mock *clock.Mock, opts AlignOptions) AlignResult {
	t.Helper()
	var result AlignResult
	err := runMocked(t, mock, func() error {
		var err error
		result, err = c.AlignStorageChannel(context.Background(), opts)
		return err
	})
	test.That(t, err, test.ShouldBeNil)
	return result
}

func TestAlignPerfectChannel(t *testing.T) {
	src := rfake.NewChannelSource(rfake.Channel{LeftMM: 300, RightMM: 300, FrontMM: 500})
	act := &fake.Actuator{}
	c, mock := newTestController(t, src, act, nil)

	result := runAlign(t, c, mock, AlignOptions{ExpectFrontWall: true})
	test.That(t, result.Outcome, test.ShouldEqual, AlignConverged)
	test.That(t, result.Aligned(), test.ShouldBeTrue)
	test.That(t, result.Corrections, test.ShouldEqual, 0)
	test.That(t, result.Iterations, test.ShouldEqual, DefaultAlignConfig().ValidStreak)
	test.That(t, driveCommands(act), test.ShouldBeEmpty)
	endsWithHardZero(t, act)
}

func TestAlignOpenChannel(t *testing.T) {
	src := rfake.NewChannelSource(rfake.Channel{LeftMM: 300, RightMM: 300})
	act := &fake.Actuator{}
	c, mock := newTestController(t, src, act, nil)

	result := runAlign(t, c, mock, AlignOptions{})
	test.That(t, result.Outcome, test.ShouldEqual, AlignConverged)
	test.That(t, result.Corrections, test.ShouldEqual, 0)
	test.That(t, result.Last.FrontAngleDeg.OK, test.ShouldBeFalse)
	test.That(t, driveCommands(act), test.ShouldBeEmpty)

	plant := newChannelPlant(rfake.Channel{LeftMM: 300, RightMM: 300, YawDeg: 5})
	c, mock = newTestController(t, plant.src, plant.act, nil)
	result = runAlign(t, c, mock, AlignOptions{})
	test.That(t, result.Outcome, test.ShouldEqual, AlignConverged)
	test.That(t, result.Corrections, test.ShouldBeGreaterThan, 0)
	test.That(t, math.Abs(plant.channel().YawDeg), test.ShouldBeLessThanOrEqualTo, c.Config().Align.OrientTolDeg)
	endsWithHardZero(t, plant.act)
}

func TestAlignSquaresOnOneWall(t *testing.T) {
	// Without a right wall there is no lateral estimate, but the left wall still gives the heading.
	plant := newChannelPlant(rfake.Channel{LeftMM: 300, YawDeg: 5})
	c, mock := newTestController(t, plant.src, plant.act, nil)

	result := runAlign(t, c, mock, AlignOptions{})
	test.That(t, result.Outcome, test.ShouldEqual, AlignFailed)
	test.That(t, result.Corrections, test.ShouldBeGreaterThan, 0)
	test.That(t, result.Last.DiffMM.OK, test.ShouldBeFalse)
	test.That(t, math.Abs(plant.channel().YawDeg), test.ShouldBeLessThanOrEqualTo, c.Config().Align.OrientTolDeg)
	for _, cmd := range driveCommands(plant.act) {
		test.That(t, cmd.Strafe, test.ShouldEqual, 0)
	}
	endsWithHardZero(t, plant.act)
}

func TestAlignCorrectsRotationAndOffset(t *testing.T) {
	for _, start := range []rfake.Channel{
		{LeftMM: 260, RightMM: 340, FrontMM: 500, YawDeg: 5},
		{LeftMM: 330, RightMM: 270, FrontMM: 500, YawDeg: -3},
		{LeftMM: 320, RightMM: 280, YawDeg: 6},
	} {
		plant := newChannelPlant(start)
		c, mock := newTestController(t, plant.src, plant.act, nil)

		result := runAlign(t, c, mock, AlignOptions{ExpectFrontWall: start.FrontMM > 0})
		test.That(t, result.Outcome, test.ShouldEqual, AlignConverged)
		test.That(t, result.Corrections, test.ShouldBeGreaterThanOrEqualTo, 2)

		end := plant.channel()
		params := c.Config().Align
		test.That(t, math.Abs(end.YawDeg), test.ShouldBeLessThanOrEqualTo, params.OrientTolDeg)
		test.That(t, math.Abs(end.LeftMM-end.RightMM), test.ShouldBeLessThanOrEqualTo, params.LateralTolMM+1)
		endsWithHardZero(t, plant.act)
	}
}

func TestAlignGivesUpOnStall(t *testing.T) {
	// Commands have no effect, so the orientation never improves.
	src := rfake.NewChannelSource(rfake.Channel{LeftMM: 300, RightMM: 300, FrontMM: 500, YawDeg: 4})
	act := &fake.Actuator{}
	c, mock := newTestController(t, src, act, nil)

	result := runAlign(t, c, mock, AlignOptions{})
	test.That(t, result.Outcome, test.ShouldEqual, AlignFailed)
	test.That(t, result.Aligned(), test.ShouldBeFalse)
	test.That(t, result.Corrections, test.ShouldEqual, DefaultAlignConfig().StallLimit)
	test.That(t, result.Iterations, test.ShouldEqual, DefaultAlignConfig().StallLimit+1)
	for _, cmd := range driveCommands(act) {
		test.That(t, cmd.Yaw, test.ShouldEqual, -10)
	}
	endsWithHardZero(t, act)
}

func TestAlignNoPoints(t *testing.T) {
	src := rfake.NewChannelSource(rfake.Channel{})
	act := &fake.Actuator{}
	c, mock := newTestController(t, src, act, nil)

	result := runAlign(t, c, mock, AlignOptions{})
	test.That(t, result.Outcome, test.ShouldEqual, AlignFailed)
	test.That(t, result.Iterations, test.ShouldEqual, DefaultAlignConfig().MaxIterations)
	test.That(t, result.Corrections, test.ShouldEqual, 0)
	test.That(t, driveCommands(act), test.ShouldBeEmpty)
}

func TestAlignFallbackAcceptance(t *testing.T) {
	centered := rfake.Channel{LeftMM: 300, RightMM: 300, FrontMM: 500}.Samples()
	offset := rfake.Channel{LeftMM: 280, RightMM: 320, FrontMM: 500}.Samples()
	src := &rfake.Source{SnapshotFunc: func(call int) []rangefinder.Sample {
		if call%2 == 1 {
			return offset
		}
		return centered
	}}
	act := &fake.Actuator{}
	cfg := testConfig(t, config.AttributeMap{"align_max_iters": 3})
	c, mock := newTestController(t, src, act, cfg)

	result := runAlign(t, c, mock, AlignOptions{})
	test.That(t, result.Outcome, test.ShouldEqual, AlignAcceptedFallback)
	test.That(t, result.Aligned(), test.ShouldBeTrue)
	test.That(t, result.Iterations, test.ShouldEqual, 3)
	test.That(t, result.Corrections, test.ShouldEqual, 1)

	// The one correction strafed right, away from the nearer left wall.
	for _, cmd := range driveCommands(act) {
		test.That(t, cmd.Strafe, test.ShouldBeLessThan, 0)
	}
}
