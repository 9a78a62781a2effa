// Package mission sequences navigation behaviors into the route modes a robot runs from start
// signal to end signal.
package mission

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/loadlifter/aislenav/components/arm"
	"github.com/loadlifter/aislenav/components/buzzer"
	fakebuzzer "github.com/loadlifter/aislenav/components/buzzer/fake"
	"github.com/loadlifter/aislenav/components/rangefinder"
	"github.com/loadlifter/aislenav/logging"
	"github.com/loadlifter/aislenav/navigation"
	"github.com/loadlifter/aislenav/utils"
)

// Navigator is the set of behaviors the modes are built from.
type Navigator interface {
	FollowLeftUntilStop(ctx context.Context) error
	FollowRightUntilStop(ctx context.Context) error
	FollowLeftUntilRightOpenOrFront(ctx context.Context, opts navigation.OpeningOptions) (navigation.Event, error)
	RotateLeftDeg(ctx context.Context, deg float64) error
	RotateRightDeg(ctx context.Context, deg float64) error
	TimedForward(ctx context.Context, seconds float64) error
	CenteredForwardUntilFront(ctx context.Context, threshMM float64) error
	AlignStorageChannel(ctx context.Context, opts navigation.AlignOptions) (navigation.AlignResult, error)
	MoveToFrontDistance(ctx context.Context, opts navigation.HomingOptions) (bool, error)
	WaitForValidScan(ctx context.Context, axes []rangefinder.Axis, timeout time.Duration) (bool, error)
	HardZero(ctx context.Context)
}

var _ Navigator = (*navigation.Controller)(nil)

// Mode names a route.
type Mode string

// The available routes.
const (
	ModeFollowWall   Mode = "follow_wall"
	ModeFollowRoute  Mode = "follow_route"
	ModeDefinedRoute Mode = "defined_route"
)

// Modes lists every mode in a stable order.
var Modes = []Mode{ModeFollowWall, ModeFollowRoute, ModeDefinedRoute}

// ErrUnknownMode is returned for a mode name not in Modes.
var ErrUnknownMode = errors.New("unknown mission mode")

// ParseMode returns the mode named s.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownMode, "%q", s)
}

const (
	scanSettleTimeout = 500 * time.Millisecond
	pauseAfterFollow  = 150 * time.Millisecond
	pauseAfterTurn    = 100 * time.Millisecond
)

// Runner runs modes against a Navigator.
type Runner struct {
	nav    Navigator
	cfg    *navigation.Config
	buzzer buzzer.Buzzer
	arm    arm.Arm
	logger logging.Logger
	clk    clock.Clock
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the clock used for pauses and buzzer durations.
func WithClock(clk clock.Clock) Option {
	return func(r *Runner) {
		r.clk = clk
	}
}

// WithArm attaches an arm. Without one the defined route skips the pick and release steps.
func WithArm(a arm.Arm) Option {
	return func(r *Runner) {
		r.arm = a
	}
}

// NewRunner returns a Runner. A nil buzzer logs signals instead.
func NewRunner(
	nav Navigator,
	cfg *navigation.Config,
	bz buzzer.Buzzer,
	logger logging.Logger,
	opts ...Option,
) (*Runner, error) {
	if nav == nil {
		return nil, errors.New("mission requires a navigator")
	}
	if cfg == nil {
		return nil, errors.New("mission requires a config")
	}
	r := &Runner{
		nav:    nav,
		cfg:    cfg,
		buzzer: bz,
		logger: logger,
		clk:    clock.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.buzzer == nil {
		r.buzzer = fakebuzzer.NewBuzzer(logger.Sublogger("buzzer"))
	}
	return r, nil
}

// Run signals the start, runs mode, and always leaves the base at hard zero with the buzzer off.
func (r *Runner) Run(ctx context.Context, mode Mode) (err error) {
	var route func(ctx context.Context) error
	switch mode {
	case ModeFollowWall:
		route = r.FollowWall
	case ModeFollowRoute:
		route = r.FollowRoute
	case ModeDefinedRoute:
		route = r.DefinedRoute
	default:
		return errors.Wrapf(ErrUnknownMode, "%q", string(mode))
	}

	start := r.clk.Now()
	r.logger.Infow("mission starting", "mode", mode)
	defer func() {
		r.nav.HardZero(ctx)
		err = multierr.Combine(err, r.buzzer.Off(context.WithoutCancel(ctx)))
		r.logger.Infow("mission finished", "mode", mode, "elapsed", r.clk.Since(start), "error", err)
	}()

	if err := r.signal(ctx, r.cfg.Mission.BuzzerStartS); err != nil {
		return err
	}
	return route(ctx)
}

// FollowWall runs down the aisle along the left wall, turns, and comes back along the right one.
func (r *Runner) FollowWall(ctx context.Context) error {
	if err := r.nav.FollowLeftUntilStop(ctx); err != nil {
		return err
	}
	if err := r.pause(ctx, pauseAfterFollow); err != nil {
		return err
	}
	if err := r.turnAround(ctx); err != nil {
		return err
	}
	return r.returnAndFinish(ctx)
}

// FollowRoute follows the left wall and visits every side channel opening to the right until the
// end of the aisle, then returns along the right wall.
func (r *Runner) FollowRoute(ctx context.Context) error {
	repeat := false
	for visited := 0; ; visited++ {
		event, err := r.nav.FollowLeftUntilRightOpenOrFront(ctx, r.openingOptions(repeat))
		if err != nil {
			return err
		}
		if event == navigation.EventFrontStop {
			r.logger.Infow("aisle end reached", "channels_visited", visited)
			if err := r.pause(ctx, pauseAfterFollow); err != nil {
				return err
			}
			if err := r.turnAround(ctx); err != nil {
				return err
			}
			return r.returnAndFinish(ctx)
		}
		if err := r.visitChannel(ctx, repeat); err != nil {
			return errors.Wrapf(err, "visiting channel %d", visited+1)
		}
		repeat = true
	}
}

// DefinedRoute enters the first side channel, homes on a fixed front distance to pick an object,
// and brings it back to the base.
func (r *Runner) DefinedRoute(ctx context.Context) error {
	event, err := r.nav.FollowLeftUntilRightOpenOrFront(ctx, r.openingOptions(false))
	if err != nil {
		return err
	}
	if event == navigation.EventFrontStop {
		r.logger.Warnw("no side channel found before the aisle end, returning")
		if err := r.pause(ctx, pauseAfterFollow); err != nil {
			return err
		}
		if err := r.turnAround(ctx); err != nil {
			return err
		}
		return r.returnAndFinish(ctx)
	}

	if err := r.enterChannel(ctx, r.cfg.ExtraForwardAfterOpenS); err != nil {
		return err
	}
	if err := r.nav.RotateLeftDeg(ctx, 180); err != nil {
		return err
	}
	if err := r.waitForScan(ctx, "after 180 turn", rangefinder.AxisFront, rangefinder.AxisLeft, rangefinder.AxisRight); err != nil {
		return err
	}
	if err := r.align(ctx, false); err != nil {
		return err
	}
	homed, err := r.nav.MoveToFrontDistance(ctx, navigation.HomingOptions{
		TargetMM:    r.cfg.Mission.DefinedRouteFrontTargetMM,
		ToleranceMM: r.cfg.Mission.DefinedRouteFrontToleranceMM,
	})
	if err != nil {
		return err
	}
	if !homed {
		r.logger.Warnw("pick position not reached within tolerance", "target_mm", r.cfg.Mission.DefinedRouteFrontTargetMM)
	}
	if err := r.armStep(ctx, "pick"); err != nil {
		return err
	}

	if err := r.align(ctx, false); err != nil {
		return err
	}
	if err := r.nav.CenteredForwardUntilFront(ctx, r.cfg.SideRejoinFrontMM); err != nil {
		return err
	}
	if err := r.nav.TimedForward(ctx, r.cfg.SideFinalForwardS); err != nil {
		return err
	}
	if err := r.waitForScan(ctx, "before base turn", rangefinder.AxisFront, rangefinder.AxisLeft, rangefinder.AxisRight); err != nil {
		return err
	}
	if err := r.nav.RotateLeftDeg(ctx, 90); err != nil {
		return err
	}
	if err := r.nav.FollowRightUntilStop(ctx); err != nil {
		return err
	}
	if err := r.nav.RotateRightDeg(ctx, 180); err != nil {
		return err
	}
	if err := r.armStep(ctx, "release"); err != nil {
		return err
	}
	r.nav.HardZero(ctx)
	return r.signal(ctx, r.cfg.Mission.BuzzerEndS)
}

func (r *Runner) openingOptions(repeat bool) navigation.OpeningOptions {
	return navigation.OpeningOptions{
		RequireRearm: repeat || r.cfg.RightOpenRequireRearm,
		RearmBelowMM: r.cfg.RearmBelowMM(),
	}
}

// visitChannel drives into the side channel to its dead end and back out into the aisle, facing
// down the aisle again.
func (r *Runner) visitChannel(ctx context.Context, repeat bool) error {
	extra := r.cfg.ExtraForwardAfterOpenS
	if repeat {
		extra = r.cfg.ExtraForwardAfterOpenRepeatS()
	}
	if err := r.enterChannel(ctx, extra); err != nil {
		return err
	}
	if err := r.nav.RotateLeftDeg(ctx, 180); err != nil {
		return err
	}
	if err := r.pause(ctx, pauseAfterTurn); err != nil {
		return err
	}
	if err := r.waitForScan(ctx, "after 180 turn", rangefinder.AxisFront, rangefinder.AxisRight); err != nil {
		return err
	}
	if err := r.align(ctx, false); err != nil {
		return err
	}
	if err := r.nav.CenteredForwardUntilFront(ctx, r.cfg.SideRejoinFrontMM); err != nil {
		return err
	}
	if err := r.nav.TimedForward(ctx, r.cfg.SideFinalForwardS); err != nil {
		return err
	}
	if err := r.waitForScan(ctx, "before aisle turn", rangefinder.AxisFront, rangefinder.AxisLeft, rangefinder.AxisRight); err != nil {
		return err
	}
	if err := r.nav.RotateRightDeg(ctx, 90); err != nil {
		return err
	}
	return r.pause(ctx, pauseAfterTurn)
}

// enterChannel clears the opening, turns into it, and drives centered up to the dead end.
func (r *Runner) enterChannel(ctx context.Context, extraForwardS float64) error {
	if err := r.nav.TimedForward(ctx, extraForwardS); err != nil {
		return err
	}
	if err := r.nav.RotateRightDeg(ctx, 90); err != nil {
		return err
	}
	if err := r.pause(ctx, pauseAfterTurn); err != nil {
		return err
	}
	if err := r.waitForScan(ctx, "after right turn", rangefinder.AxisFront, rangefinder.AxisRight); err != nil {
		return err
	}
	if err := r.nav.TimedForward(ctx, r.cfg.SidekickInitialForwardS); err != nil {
		return err
	}
	if err := r.waitForScan(ctx, "before channel alignment", rangefinder.AxisFront, rangefinder.AxisLeft, rangefinder.AxisRight); err != nil {
		return err
	}
	if err := r.align(ctx, true); err != nil {
		return err
	}
	return r.nav.CenteredForwardUntilFront(ctx, r.cfg.SideDeadEndMM)
}

func (r *Runner) turnAround(ctx context.Context) error {
	if err := r.nav.RotateLeftDeg(ctx, 180); err != nil {
		return err
	}
	return r.pause(ctx, pauseAfterTurn)
}

// returnAndFinish follows the right wall back to the start, turns to face the aisle again and
// signals the end.
func (r *Runner) returnAndFinish(ctx context.Context) error {
	if err := r.nav.FollowRightUntilStop(ctx); err != nil {
		return err
	}
	if err := r.pause(ctx, pauseAfterFollow); err != nil {
		return err
	}
	if err := r.turnAround(ctx); err != nil {
		return err
	}
	r.nav.HardZero(ctx)
	return r.signal(ctx, r.cfg.Mission.BuzzerEndS)
}

func (r *Runner) align(ctx context.Context, expectFront bool) error {
	res, err := r.nav.AlignStorageChannel(ctx, navigation.AlignOptions{ExpectFrontWall: expectFront})
	if err != nil {
		return err
	}
	if !res.Aligned() {
		r.logger.Warnw("channel not aligned, continuing", "outcome", res.Outcome, "iterations", res.Iterations)
	}
	return nil
}

func (r *Runner) waitForScan(ctx context.Context, stage string, axes ...rangefinder.Axis) error {
	ok, err := r.nav.WaitForValidScan(ctx, axes, scanSettleTimeout)
	if err != nil {
		return err
	}
	if !ok {
		r.logger.Warnw("range scan still settling", "stage", stage, "axes", axes)
	}
	return nil
}

func (r *Runner) armStep(ctx context.Context, step string) error {
	if r.arm == nil {
		r.logger.Infow("no arm attached, skipping", "step", step)
		return nil
	}
	var err error
	switch step {
	case "pick":
		err = r.arm.Pick(ctx)
	default:
		err = r.arm.Release(ctx)
	}
	return errors.Wrapf(err, "arm %s", step)
}

// signal holds the buzzer on for seconds. The buzzer is switched off even when ctx ends.
func (r *Runner) signal(ctx context.Context, seconds float64) error {
	if err := r.buzzer.On(ctx); err != nil {
		return errors.Wrap(err, "buzzer on")
	}
	waitErr := r.pause(ctx, utils.SecondsToDuration(seconds))
	offErr := r.buzzer.Off(context.WithoutCancel(ctx))
	return multierr.Combine(waitErr, errors.Wrap(offErr, "buzzer off"))
}

func (r *Runner) pause(ctx context.Context, d time.Duration) error {
	if !utils.SelectContextOrWait(ctx, r.clk, d) {
		return ctx.Err()
	}
	return nil
}
