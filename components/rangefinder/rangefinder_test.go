package rangefinder_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/loadlifter/aislenav/components/rangefinder"
	"github.com/loadlifter/aislenav/components/rangefinder/fake"
	"github.com/loadlifter/aislenav/logging"
)

var sparse = []rangefinder.Sample{
	{BearingDeg: 269.8, DistanceMM: 900},
	{BearingDeg: 270.4, DistanceMM: 880},
	{BearingDeg: 272, DistanceMM: 700},
	{BearingDeg: 266, DistanceMM: 1000},
	{BearingDeg: 359.7, DistanceMM: 150},
	{BearingDeg: 2, DistanceMM: 170},
	{BearingDeg: 180, DistanceMM: 0},
	{BearingDeg: 181, DistanceMM: -4},
}

func TestExact(t *testing.T) {
	front := rangefinder.ExactOf(sparse, rangefinder.BearingFront)
	test.That(t, front.OK, test.ShouldBeTrue)
	test.That(t, front.MM, test.ShouldEqual, 900.0)

	// wraps around zero
	right := rangefinder.ExactOf(sparse, rangefinder.BearingRight)
	test.That(t, right.OK, test.ShouldBeTrue)
	test.That(t, right.MM, test.ShouldEqual, 150.0)

	// non-positive distances are dropouts
	left := rangefinder.ExactOf(sparse, rangefinder.BearingLeft)
	test.That(t, left.OK, test.ShouldBeFalse)
	test.That(t, left.String(), test.ShouldEqual, "absent")

	test.That(t, rangefinder.ExactOf(nil, 90).OK, test.ShouldBeFalse)
}

func TestWindow(t *testing.T) {
	median := rangefinder.WindowOf(sparse, rangefinder.BearingFront, 10, rangefinder.ModeMedian)
	test.That(t, median.OK, test.ShouldBeTrue)
	test.That(t, median.MM, test.ShouldEqual, 890.0)

	minimum := rangefinder.WindowOf(sparse, rangefinder.BearingFront, 10, rangefinder.ModeMin)
	test.That(t, minimum.MM, test.ShouldEqual, 700.0)

	narrow := rangefinder.WindowOf(sparse, rangefinder.BearingFront, 1, rangefinder.ModeMin)
	test.That(t, narrow.MM, test.ShouldEqual, 880.0)

	single := rangefinder.WindowOf(sparse, rangefinder.BearingFront, 10, rangefinder.ModeSingle)
	test.That(t, single.MM, test.ShouldEqual, 900.0)

	wrapped := rangefinder.WindowOf(sparse, rangefinder.BearingRight, 6, rangefinder.ModeMin)
	test.That(t, wrapped.MM, test.ShouldEqual, 150.0)

	test.That(t, rangefinder.WindowOf(sparse, rangefinder.BearingLeft, 6, rangefinder.ModeMedian).OK, test.ShouldBeFalse)
}

func TestParseMode(t *testing.T) {
	for _, mode := range []rangefinder.Mode{rangefinder.ModeMedian, rangefinder.ModeMin, rangefinder.ModeSingle} {
		parsed, err := rangefinder.ParseMode(mode.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, mode)
	}
	_, err := rangefinder.ParseMode("mean")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAxis(t *testing.T) {
	b, err := rangefinder.AxisLeft.Bearing()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b, test.ShouldEqual, rangefinder.BearingLeft)

	_, err = rangefinder.Axis("up").Bearing()
	test.That(t, errors.Is(err, rangefinder.ErrUnknownAxis), test.ShouldBeTrue)
}

func TestSamplePoint(t *testing.T) {
	p := rangefinder.Sample{BearingDeg: rangefinder.BearingFront, DistanceMM: 500}.Point()
	test.That(t, p.X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, p.Y, test.ShouldAlmostEqual, -500)

	p = rangefinder.Sample{BearingDeg: rangefinder.BearingLeft, DistanceMM: 200}.Point()
	test.That(t, p.X, test.ShouldAlmostEqual, -200)
}

func TestScanSourceOverBuffer(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	buf := rangefinder.NewBuffer(mock, 200*time.Millisecond)
	src := rangefinder.NewScanSource(buf)

	reading, err := src.Exact(ctx, rangefinder.BearingFront)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reading.OK, test.ShouldBeFalse)

	buf.Update(sparse)
	test.That(t, buf.Frames(), test.ShouldEqual, uint64(1))
	reading, err = src.Window(ctx, rangefinder.BearingFront, 10, rangefinder.ModeMin)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reading.MM, test.ShouldEqual, 700.0)

	reading, err = rangefinder.Read(ctx, src, rangefinder.BearingFront, 10, rangefinder.ModeSingle)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reading.MM, test.ShouldEqual, 900.0)

	reading, err = rangefinder.OrientationWindow(ctx, src, rangefinder.BearingRightFront)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reading.OK, test.ShouldBeFalse)

	mock.Add(time.Second)
	samples, err := src.Snapshot(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, samples, test.ShouldBeEmpty)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = src.Exact(cancelled, rangefinder.BearingFront)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFrames(t *testing.T) {
	line, err := rangefinder.EncodeFrame(sparse[:2])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(line), test.ShouldContainSubstring, `"angle":269.8`)

	input := string(line) + "\n\n" + `{"points":[]}` + "\n" + `{}` + "\n"
	frames, err := rangefinder.ReadFrames(strings.NewReader(input))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frames, test.ShouldHaveLength, 3)
	test.That(t, frames[0], test.ShouldResemble, sparse[:2])
	test.That(t, frames[1], test.ShouldBeEmpty)
	test.That(t, frames[2], test.ShouldBeEmpty)

	_, err = rangefinder.ReadFrames(strings.NewReader("{\"points\":[]}\nnot json\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 2")
}

func TestDecodeBridgeFrame(t *testing.T) {
	// The scanner bridge writes every field as a float, intensity included.
	samples, err := rangefinder.DecodeFrame([]byte(
		`{"points":[{"angle":270.0,"distance":512.0,"intensity":200.0},` +
			`{"angle":90.5,"distance":1203.25,"intensity":47.6},` +
			`{"angle":0.0,"distance":300.0,"intensity":412.0},` +
			`{"angle":180.0,"distance":300.0,"intensity":-3.0}]}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, samples, test.ShouldResemble, []rangefinder.Sample{
		{BearingDeg: 270, DistanceMM: 512, Intensity: 200},
		{BearingDeg: 90.5, DistanceMM: 1203.25, Intensity: 48},
		{BearingDeg: 0, DistanceMM: 300, Intensity: 255},
		{BearingDeg: 180, DistanceMM: 300, Intensity: 0},
	})

	buf := rangefinder.NewBuffer(nil, 0)
	buf.Update(samples)
	r, err := rangefinder.NewScanSource(buf).Exact(context.Background(), rangefinder.BearingFront)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r, test.ShouldResemble, rangefinder.Present(512))
}

func TestReplay(t *testing.T) {
	var recorded bytes.Buffer
	for _, c := range []fake.Channel{{LeftMM: 150, RightMM: 150}, {LeftMM: 150, RightMM: 150, FrontMM: 400}} {
		line, err := rangefinder.EncodeFrame(c.Samples())
		test.That(t, err, test.ShouldBeNil)
		recorded.Write(line)
		recorded.WriteByte('\n')
	}
	frames, err := rangefinder.ReadFrames(&recorded)
	test.That(t, err, test.ShouldBeNil)

	buf := rangefinder.NewBuffer(nil, 0)
	replay := &rangefinder.Replay{Frames: frames, Logger: logging.NewTestLogger(t)}
	test.That(t, replay.Run(context.Background(), buf), test.ShouldBeNil)
	test.That(t, buf.Frames(), test.ShouldEqual, uint64(2))

	front, err := rangefinder.NewScanSource(buf).Exact(context.Background(), rangefinder.BearingFront)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, front.MM, test.ShouldAlmostEqual, 400, 1e-6)

	test.That(t, (&rangefinder.Replay{}).Run(context.Background(), buf), test.ShouldNotBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	looping := &rangefinder.Replay{Frames: frames, Loop: true, Period: time.Hour}
	test.That(t, looping.Run(ctx, buf), test.ShouldEqual, context.Canceled)
}

func TestFakeChannel(t *testing.T) {
	ctx := context.Background()
	src := fake.NewChannelSource(fake.Channel{LeftMM: 120, RightMM: 180, FrontMM: 600})

	left, err := src.Exact(ctx, rangefinder.BearingLeft)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, left.MM, test.ShouldAlmostEqual, 120, 1e-6)

	right, err := src.Exact(ctx, rangefinder.BearingRight)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, right.MM, test.ShouldAlmostEqual, 180, 1e-6)

	front, err := src.Exact(ctx, rangefinder.BearingFront)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, front.MM, test.ShouldAlmostEqual, 600, 1e-6)

	// turned left, the left-front window reads closer than the left-rear one
	src.SetChannel(fake.Channel{LeftMM: 150, RightMM: 150, YawDeg: 4})
	lf, err := rangefinder.OrientationWindow(ctx, src, rangefinder.BearingLeftFront)
	test.That(t, err, test.ShouldBeNil)
	lr, err := rangefinder.OrientationWindow(ctx, src, rangefinder.BearingLeftRear)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lf.MM, test.ShouldBeLessThan, lr.MM)
	test.That(t, src.Calls(), test.ShouldEqual, 5)
}

func TestStream(t *testing.T) {
	lines := strings.Join([]string{
		`{"points":[{"angle":270,"distance":800,"intensity":40}]}`,
		`not json`,
		``,
		`{"points":[{"angle":270,"distance":640,"intensity":40}]}`,
	}, "\n")
	buf := rangefinder.NewBuffer(clock.NewMock(), 0)
	err := rangefinder.Stream(context.Background(), io.NopCloser(strings.NewReader(lines)), buf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf.Frames(), test.ShouldEqual, uint64(2))

	front, err := rangefinder.NewScanSource(buf).Exact(context.Background(), rangefinder.BearingFront)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, front.MM, test.ShouldEqual, 640.0)

	t.Run("cancel closes a blocked reader", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer pw.Close()
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- rangefinder.Stream(ctx, pr, rangefinder.NewBuffer(nil, 0), logging.NewTestLogger(t))
		}()
		cancel()
		test.That(t, <-done, test.ShouldEqual, context.Canceled)
	})
}
