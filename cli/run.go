package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"

	"github.com/loadlifter/aislenav/components/base"
	"github.com/loadlifter/aislenav/components/base/serialbase"
	"github.com/loadlifter/aislenav/components/buzzer"
	fakebuzzer "github.com/loadlifter/aislenav/components/buzzer/fake"
	"github.com/loadlifter/aislenav/components/rangefinder"
	"github.com/loadlifter/aislenav/logging"
	"github.com/loadlifter/aislenav/mission"
	"github.com/loadlifter/aislenav/navigation"
	"github.com/loadlifter/aislenav/navigation/turnprofile"
	"github.com/loadlifter/aislenav/utils"
)

var errScanEnded = errors.New("scan source ended before the mission finished")

// RunAction is the corresponding Action for 'run'.
func RunAction(c *cli.Context) error {
	mode, err := mission.ParseMode(c.String(runFlagMode))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger := newLogger(c)
	if path := c.String(runFlagLogFile); path != "" {
		file := logging.NewFileAppender(logging.FileAppenderConfig{Filename: path, MaxBackups: 3})
		defer func() {
			if err := file.Close(); err != nil {
				fmt.Fprintf(c.App.ErrWriter, "closing log file: %v\n", err)
			}
		}()
		logger.AddAppender(file)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if c.Bool(runFlagTrace) {
		ctx = logging.EnableDebugMode(ctx, "")
	}

	scanLogger := logger.Sublogger("scan")
	acquire, buf, stream, err := scanAcquisition(c, scanLogger)
	if err != nil {
		return err
	}
	guard := utils.NewGuard(func() {
		if stream == nil {
			return
		}
		if err := stream.Close(); err != nil {
			scanLogger.Debugw("closing scan stream", "error", err)
		}
	})
	defer guard.OnFail()

	act, bz, err := openBase(c, logger.Sublogger("base"))
	if err != nil {
		return err
	}

	profiles := turnprofile.NewStore(cfg.CalibFile, logger.Sublogger("calibration"))
	nav, err := navigation.New(
		rangefinder.NewScanSource(buf), act, cfg, logger.Sublogger("navigation"),
		navigation.WithTurnProfiles(profiles),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := nav.Shutdown(context.Background()); err != nil {
			logger.Warnw("shutdown failed", "error", err)
		}
	}()
	runner, err := mission.NewRunner(nav, cfg, bz, logger.Sublogger("mission"))
	if err != nil {
		return err
	}
	guard.Success()

	g, gctx := errgroup.WithContext(ctx)
	missionCtx, missionDone := context.WithCancel(gctx)
	defer missionDone()
	g.Go(func() error {
		err := acquire(missionCtx)
		if missionCtx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)) {
			return nil
		}
		if err == nil {
			err = errScanEnded
		}
		return err
	})
	if cfg.CalibFile != "" && c.Bool(runFlagWatchCalib) {
		g.Go(func() error {
			return profiles.Watch(missionCtx, calibrationSettle)
		})
	}
	g.Go(func() error {
		defer missionDone()
		return runner.Run(missionCtx, mode)
	})
	err = g.Wait()

	switch {
	case err == nil:
		color.New(color.FgGreen, color.Bold).Fprintf(c.App.Writer, "%s finished\n", mode)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		color.New(color.FgYellow).Fprintf(c.App.Writer, "%s interrupted\n", mode)
		return nil
	default:
		color.New(color.FgRed, color.Bold).Fprintf(c.App.Writer, "%s failed: %v\n", mode, err)
	}
	return err
}

// scanAcquisition returns the loop that fills the returned buffer, from a recording or a live
// json-lines stream. The stream, when one was opened, is closed by the loop once its context ends.
func scanAcquisition(
	c *cli.Context,
	logger logging.Logger,
) (func(ctx context.Context) error, *rangefinder.Buffer, io.Closer, error) {
	buf := rangefinder.NewBuffer(nil, c.Duration(runFlagScanMaxAge))

	replayPath, streamPath := c.String(runFlagScanReplay), c.String(runFlagScanStream)
	switch {
	case replayPath != "" && streamPath != "":
		return nil, nil, nil, errors.Errorf("--%s and --%s are mutually exclusive", runFlagScanReplay, runFlagScanStream)
	case replayPath != "":
		//nolint:gosec
		f, err := os.Open(replayPath)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "opening scan recording")
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.Debugw("closing scan recording", "error", err)
			}
		}()
		frames, err := rangefinder.ReadFrames(f)
		if err != nil {
			return nil, nil, nil, errors.Wrapf(err, "reading %q", replayPath)
		}
		replay := &rangefinder.Replay{
			Frames: frames,
			Period: c.Duration(runFlagScanPeriod),
			Loop:   true,
			Logger: logger,
		}
		logger.Infow("replaying scans", "path", replayPath, "frames", len(frames))
		return func(ctx context.Context) error { return replay.Run(ctx, buf) }, buf, nil, nil
	case streamPath != "":
		var stream io.ReadCloser = os.Stdin
		if streamPath != stdinStreamName {
			port, err := serial.Open(streamPath, &serial.Mode{BaudRate: c.Int(runFlagScanBaud)})
			if err != nil {
				return nil, nil, nil, errors.Wrapf(err, "cannot open scan stream %q", streamPath)
			}
			stream = port
		}
		logger.Infow("reading live scans", "source", streamPath)
		return func(ctx context.Context) error { return rangefinder.Stream(ctx, stream, buf, logger) }, buf, stream, nil
	}
	return nil, nil, nil, errors.Errorf("one of --%s or --%s is required", runFlagScanReplay, runFlagScanStream)
}

// openBase returns the actuator and the buzzer. A dry run logs commands and signals.
func openBase(c *cli.Context, logger logging.Logger) (base.Actuator, buzzer.Buzzer, error) {
	if c.Bool(runFlagDryRun) {
		return &dryRunBase{logger: logger}, fakebuzzer.NewBuzzer(logger.Sublogger("buzzer")), nil
	}
	b, err := serialbase.Open(serialbase.Config{Path: c.String(runFlagSerial), BaudRate: c.Int(runFlagBaud)}, logger)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "use --%s to run without a base", runFlagDryRun)
	}
	return b, b, nil
}
