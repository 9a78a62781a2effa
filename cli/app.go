// Package cli contains all business logic needed by the navctl command.
package cli

import (
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/loadlifter/aislenav/config"
	"github.com/loadlifter/aislenav/logging"
)

const (
	// Flags.
	generalFlagConfig = "config"
	generalFlagDebug  = "debug"

	turnFlagDeg   = "deg"
	turnFlagRight = "right"

	runFlagMode       = "mode"
	runFlagSerial     = "serial"
	runFlagBaud       = "baud"
	runFlagDryRun     = "dry-run"
	runFlagScanReplay = "scan-replay"
	runFlagScanPeriod = "scan-period"
	runFlagScanStream = "scan-stream"
	runFlagScanBaud   = "scan-baud"
	runFlagScanMaxAge = "scan-max-age"
	runFlagLogFile    = "log-file"
	runFlagWatchCalib = "watch-calibration"
	runFlagTrace      = "trace"

	defaultConfigFile = "config.json"
	defaultScanBaud   = 230400
	stdinStreamName   = "-"
)

const (
	defaultScanPeriod = 100 * time.Millisecond
	defaultScanMaxAge = 500 * time.Millisecond
	calibrationSettle = 500 * time.Millisecond
)

var app = &cli.App{
	Name:            "navctl",
	Usage:           "run and inspect the aisle navigation core",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    generalFlagConfig,
			Aliases: []string{"c"},
			Value:   config.DefaultPath(defaultConfigFile),
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:  "config",
			Usage: "work with the navigation configuration",
			Subcommands: []*cli.Command{
				{
					Name:   "check",
					Usage:  "validate the configuration and print the effective values",
					Action: ConfigCheckAction,
				},
			},
		},
		{
			Name:      "turn-plan",
			Usage:     "print the phases of a turn without moving",
			UsageText: "navctl turn-plan --deg 180 [--right]",
			Flags: []cli.Flag{
				&cli.Float64Flag{
					Name:  turnFlagDeg,
					Value: 90,
					Usage: "turn angle in degrees",
				},
				&cli.BoolFlag{
					Name:  turnFlagRight,
					Usage: "turn right instead of left",
				},
			},
			Action: TurnPlanAction,
		},
		{
			Name:  "run",
			Usage: "run a mission",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     runFlagMode,
					Required: true,
					Usage:    "mission mode: follow_wall, follow_route or defined_route",
				},
				&cli.StringFlag{
					Name:  runFlagSerial,
					Usage: "base controller serial `DEVICE`",
				},
				&cli.IntFlag{
					Name:  runFlagBaud,
					Usage: "base controller baud rate",
				},
				&cli.BoolFlag{
					Name:  runFlagDryRun,
					Usage: "log drive commands instead of sending them",
				},
				&cli.StringFlag{
					Name:  runFlagScanReplay,
					Usage: "replay recorded scan frames from `FILE` in a loop",
				},
				&cli.DurationFlag{
					Name:  runFlagScanPeriod,
					Value: defaultScanPeriod,
					Usage: "period between replayed frames",
				},
				&cli.StringFlag{
					Name:  runFlagScanStream,
					Usage: "read live scan frames from serial `DEVICE`, or - for stdin",
				},
				&cli.IntFlag{
					Name:  runFlagScanBaud,
					Value: defaultScanBaud,
					Usage: "scan stream baud rate",
				},
				&cli.DurationFlag{
					Name:  runFlagScanMaxAge,
					Value: defaultScanMaxAge,
					Usage: "scans older than this read as absent",
				},
				&cli.StringFlag{
					Name:  runFlagLogFile,
					Usage: "also write logs to a rotated `FILE`",
				},
				&cli.BoolFlag{
					Name:  runFlagTrace,
					Usage: "log every behavior step at debug, leaving other components at their level",
				},
				&cli.BoolFlag{
					Name:  runFlagWatchCalib,
					Value: true,
					Usage: "reload the turn calibration file when it changes",
				},
			},
			Action: RunAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

func newLogger(c *cli.Context) logging.Logger {
	logger := logging.NewBlankLogger("navctl")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	if !c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.INFO)
	}
	return logger
}
