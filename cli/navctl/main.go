// Package main is the navctl command itself.
package main

import (
	"os"

	"github.com/loadlifter/aislenav/cli"
	"github.com/loadlifter/aislenav/logging"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		logging.NewLogger("navctl").Error(err)
		os.Exit(1)
	}
}
