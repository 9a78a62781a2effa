// Package navigation implements the closed-loop behaviors that move the robot through warehouse
// aisles: wall following with opening detection, channel alignment, front distance homing and
// time-profiled calibrated turns.
//
// Every behavior blocks until it finishes, polls the range source on a fixed cadence, and flushes
// the base to zero on every exit path, including cancellation and collaborator errors.
package navigation

import (
	"context"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/loadlifter/aislenav/components/base"
	"github.com/loadlifter/aislenav/components/rangefinder"
	"github.com/loadlifter/aislenav/config"
	"github.com/loadlifter/aislenav/logging"
	"github.com/loadlifter/aislenav/navigation/turnprofile"
	"github.com/loadlifter/aislenav/operation"
	"github.com/loadlifter/aislenav/utils"
)

const (
	defaultPollInterval  = 50 * time.Millisecond
	defaultTurnInterval  = 10 * time.Millisecond
	defaultHardZeroDelay = 50 * time.Millisecond
	defaultHardZeroCount = 5
)

// Controller owns the configuration and control-loop state of one robot body. Only one behavior
// runs at a time: starting a behavior cancels the one in progress.
type Controller struct {
	cfg    *Config
	src    rangefinder.Source
	act    base.Actuator
	base   *base.Commander
	logger logging.Logger
	clk    clock.Clock

	profiles *turnprofile.Store
	opMgr    *operation.SingleOperationManager

	pollInterval  time.Duration
	turnInterval  time.Duration
	hardZeroDelay time.Duration
	hardZeroCount int

	dropouts rate.Sometimes
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock paces every loop with clk.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		c.clk = clk
	}
}

// WithTurnProfiles replaces the calibration store built from calib_file.
func WithTurnProfiles(store *turnprofile.Store) Option {
	return func(c *Controller) {
		c.profiles = store
	}
}

// WithPollInterval overrides the 50ms sensor poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.pollInterval = d
	}
}

// New returns a Controller over a validated config. It performs no I/O; the turn calibration is
// read on the first rotation.
func New(
	src rangefinder.Source,
	act base.Actuator,
	cfg *Config,
	logger logging.Logger,
	opts ...Option,
) (*Controller, error) {
	if src == nil {
		return nil, errors.New("navigation needs a range source")
	}
	if act == nil {
		return nil, errors.New("navigation needs a base actuator")
	}
	if cfg == nil {
		return nil, errors.New("navigation needs a config")
	}
	if logger == nil {
		return nil, errors.New("navigation needs a logger")
	}
	c := &Controller{
		cfg:           cfg,
		src:           src,
		act:           act,
		logger:        logger,
		clk:           clock.New(),
		pollInterval:  defaultPollInterval,
		turnInterval:  defaultTurnInterval,
		hardZeroDelay: defaultHardZeroDelay,
		hardZeroCount: defaultHardZeroCount,
		dropouts:      rate.Sometimes{First: 1, Every: 20},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.profiles == nil {
		c.profiles = turnprofile.NewStore(cfg.CalibFile, logger.Sublogger("calibration"))
	}
	c.base = base.NewCommander(act, c.clk)
	c.opMgr = &operation.SingleOperationManager{Clock: c.clk}
	return c, nil
}

// NewFromAttributes validates attrs and builds a Controller. path names the attribute source in
// errors. A missing required key fails with a *config.ConfigError.
func NewFromAttributes(
	src rangefinder.Source,
	act base.Actuator,
	path string,
	attrs config.AttributeMap,
	logger logging.Logger,
	opts ...Option,
) (*Controller, error) {
	cfg, err := NewConfig(path, attrs)
	if err != nil {
		return nil, err
	}
	return New(src, act, cfg, logger, opts...)
}

// Config returns the controller configuration. It must not be modified.
func (c *Controller) Config() *Config {
	return c.cfg
}

// CurrentBehavior returns the behavior in progress, if any.
func (c *Controller) CurrentBehavior() (operation.Op, bool) {
	return c.opMgr.Current()
}

// Cancel stops the behavior in progress. The behavior hard-zeroes on its way out.
func (c *Controller) Cancel(ctx context.Context) {
	c.opMgr.CancelRunning(ctx)
}

// run executes one behavior as the single running operation and always flushes the base to
// zero afterwards.
// Log lines under a top level behavior carry its name and operation id.
func (c *Controller) run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	_, nested := operation.FromContext(ctx)
	ctx, done := c.opMgr.New(ctx, name)
	defer done()
	if op, ok := operation.FromContext(ctx); ok && !nested {
		ctx = logging.WithFields(ctx, "op", op.Name, "op_id", op.ID.String()[:8])
	}
	defer c.HardZero(ctx)

	c.logger.CDebugw(ctx, "behavior started", "behavior", name)
	err := fn(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.CWarnw(ctx, "behavior failed", "behavior", name, "error", err)
	}
	return err
}

// HardZero commands a zero drive several times, pausing between attempts, then stops once. A
// single stop does not always latch on the base bus. Command failures are logged and otherwise
// ignored, and cancellation of ctx does not cut the flush short.
func (c *Controller) HardZero(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	var errs error
	for i := 0; i < c.hardZeroCount; i++ {
		errs = multierr.Append(errs, c.act.DriveFull(ctx, 0, 0, 0))
		utils.SelectContextOrWait(ctx, c.clk, c.hardZeroDelay)
	}
	errs = multierr.Append(errs, c.act.Stop(ctx))
	if errs != nil {
		c.logger.CWarnw(ctx, "hard zero had command failures", "failures", len(multierr.Errors(errs)), "error", errs)
	}
}

// Shutdown flushes the base to zero and closes the collaborators that can be closed.
func (c *Controller) Shutdown(ctx context.Context) error {
	if c.opMgr.OpRunning() {
		c.logger.CInfow(ctx, "cancelling running behavior for shutdown")
		c.opMgr.CancelRunning(ctx)
	}
	c.HardZero(ctx)

	var errs error
	for _, collaborator := range []interface{}{c.act, c.src} {
		switch closer := collaborator.(type) {
		case interface{ Close(context.Context) error }:
			errs = multierr.Append(errs, closer.Close(ctx))
		case io.Closer:
			errs = multierr.Append(errs, closer.Close())
		}
	}
	return errs
}

// sleep waits one interval. It returns the context error if ctx ended first.
func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if !utils.SelectContextOrWait(ctx, c.clk, d) {
		return ctx.Err()
	}
	return nil
}

// hold re-issues cmd every interval until dur has elapsed. A non-positive dur issues nothing.
func (c *Controller) hold(ctx context.Context, dur, interval time.Duration, cmd func(ctx context.Context) error) error {
	deadline := c.clk.Now().Add(dur)
	for {
		remaining := deadline.Sub(c.clk.Now())
		if remaining <= 0 {
			return nil
		}
		if err := cmd(ctx); err != nil {
			return err
		}
		if remaining > interval {
			remaining = interval
		}
		if err := c.sleep(ctx, remaining); err != nil {
			return err
		}
	}
}

// settle zeroes the base and waits for the robot to come to rest.
func (c *Controller) settle(ctx context.Context, seconds float64) error {
	if err := c.base.Drive(ctx, 0, 0); err != nil {
		return errors.Wrap(err, "zeroing base")
	}
	if !c.opMgr.NewTimedWaitOp(ctx, "settle", utils.SecondsToDuration(seconds)) {
		return ctx.Err()
	}
	return nil
}

func (c *Controller) logDropout(ctx context.Context, behavior string, readings ...interface{}) {
	c.dropouts.Do(func() {
		c.logger.CWarnw(ctx, "range reading absent, retrying", append([]interface{}{"behavior", behavior}, readings...)...)
	})
}

func (c *Controller) readFront(ctx context.Context) (rangefinder.Reading, error) {
	return rangefinder.Read(ctx, c.src, rangefinder.BearingFront, rangefinder.DefaultSpanDeg, c.cfg.FrontMode)
}

func (c *Controller) readLeft(ctx context.Context) (rangefinder.Reading, error) {
	return rangefinder.Read(ctx, c.src, rangefinder.BearingLeft, rangefinder.DefaultSpanDeg, c.cfg.LeftMode)
}

func (c *Controller) readRight(ctx context.Context) (rangefinder.Reading, error) {
	return rangefinder.Read(ctx, c.src, rangefinder.BearingRight, rangefinder.DefaultSpanDeg, c.cfg.LeftMode)
}

func (c *Controller) readAxis(ctx context.Context, axis rangefinder.Axis) (rangefinder.Reading, error) {
	switch axis {
	case rangefinder.AxisFront:
		return c.readFront(ctx)
	case rangefinder.AxisLeft:
		return c.readLeft(ctx)
	case rangefinder.AxisRight:
		return c.readRight(ctx)
	}
	_, err := axis.Bearing()
	return rangefinder.Absent(), err
}

// readOrientation returns the front and rear ±3° min windows on one side.
func (c *Controller) readOrientation(ctx context.Context, side Side) (OrientationReadings, error) {
	frontBearing, rearBearing := rangefinder.BearingLeftFront, rangefinder.BearingLeftRear
	if side == SideRight {
		frontBearing, rearBearing = rangefinder.BearingRightFront, rangefinder.BearingRightRear
	}
	front, err := rangefinder.OrientationWindow(ctx, c.src, frontBearing)
	if err != nil {
		return OrientationReadings{}, err
	}
	rear, err := rangefinder.OrientationWindow(ctx, c.src, rearBearing)
	if err != nil {
		return OrientationReadings{}, err
	}
	return OrientationReadings{Front: front, Rear: rear}, nil
}
