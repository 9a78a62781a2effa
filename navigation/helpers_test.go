package navigation

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/loadlifter/aislenav/components/base"
	"github.com/loadlifter/aislenav/components/rangefinder"
	"github.com/loadlifter/aislenav/config"
	"github.com/loadlifter/aislenav/logging"
)

func testAttributes() config.AttributeMap {
	return config.AttributeMap{
		"left_target_mm":             300,
		"front_stop_mm":              400,
		"forward_mm_s":               200,
		"left_mode":                  "median",
		"front_mode":                 "median",
		"Kp_err":                     0.05,
		"Kp_orient":                  0.5,
		"MAX_YAW":                    20,
		"MIN_YAW":                    3,
		"TOL_MM":                     10,
		"GUARD_EXTRA":                100,
		"MIN_FWD":                    0.3,
		"MAX_SLOWERR":                200,
		"Kp_center":                  0.05,
		"calib_file":                 "",
		"yaw_fast":                   0.3,
		"yaw_slow":                   10,
		"ratio_fast":                 0.7,
		"brake_opp":                  6,
		"brake_time":                 0.1,
		"right_open_mm":              900,
		"extra_forward_after_open_s": 0.5,
		"sidekick_initial_forward_s": 0.4,
		"side_dead_end_mm":           450,
		"side_rejoin_front_mm":       500,
		"side_final_forward_s":       0.3,
		"right_open_require_rearm":   false,
	}
}

func testConfig(t *testing.T, overrides config.AttributeMap) *Config {
	t.Helper()
	attrs := testAttributes()
	for k, v := range overrides {
		attrs[k] = v
	}
	cfg, err := NewConfig("", attrs)
	test.That(t, err, test.ShouldBeNil)
	return cfg
}

func newTestController(
	t *testing.T,
	src rangefinder.Source,
	act base.Actuator,
	cfg *Config,
	opts ...Option,
) (*Controller, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	if cfg == nil {
		cfg = testConfig(t, nil)
	}
	opts = append([]Option{WithClock(mock)}, opts...)
	c, err := New(src, act, cfg, logging.NewTestLogger(t), opts...)
	test.That(t, err, test.ShouldBeNil)
	return c, mock
}

// runMocked runs fn while advancing the mock clock until fn returns.
func runMocked(t *testing.T, mock *clock.Mock, fn func() error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()
	for steps := 0; ; steps++ {
		select {
		case err := <-done:
			return err
		default:
		}
		if steps > 200000 {
			t.Fatal("behavior did not finish")
		}
		mock.Add(5 * time.Millisecond)
	}
}

// scriptedSource answers every reading by bearing from fixed values, and counts the front
// windows read so tests can script changes per loop iteration.
type scriptedSource struct {
	rangefinder.Source
	front, left, right func(iteration int) rangefinder.Reading
	orient             rangefinder.Reading
	iteration          int
}

func (s *scriptedSource) Exact(ctx context.Context, bearingDeg float64) (rangefinder.Reading, error) {
	return s.Window(ctx, bearingDeg, 1, rangefinder.ModeSingle)
}

func (s *scriptedSource) Window(
	ctx context.Context,
	bearingDeg, spanDeg float64,
	mode rangefinder.Mode,
) (rangefinder.Reading, error) {
	switch bearingDeg {
	case rangefinder.BearingFront:
		s.iteration++
		return s.front(s.iteration), nil
	case rangefinder.BearingLeft:
		return s.left(s.iteration), nil
	case rangefinder.BearingRight:
		return s.right(s.iteration), nil
	default:
		return s.orient, nil
	}
}

func constant(mm float64) func(int) rangefinder.Reading {
	return func(int) rangefinder.Reading { return rangefinder.Present(mm) }
}
