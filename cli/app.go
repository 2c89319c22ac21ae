// Package cli contains the reforestar command line: laying out trees and driving a planting
// session from a script.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"go.reforestar.dev/planting/config"
	"go.reforestar.dev/planting/logging"
)

const (
	flagConfig = "config"
	flagDebug  = "debug"

	layoutFlagX       = "x"
	layoutFlagY       = "y"
	layoutFlagZ       = "z"
	layoutFlagCount   = "count"
	layoutFlagScale   = "scale"
	flagSeed          = "seed"
	sessionFlagScript = "script"
)

// NewApp returns the reforestar application writing to out and reading session commands from in.
func NewApp(out io.Writer, in io.Reader) *cli.App {
	return &cli.App{
		Name:      "reforestar",
		Usage:     "plan and replay tree plantings",
		Writer:    out,
		ErrWriter: out,
		Reader:    in,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "layout",
				Usage:     "compute where a batch of trees would go around a touch point",
				UsageText: "reforestar layout [--x X] [--y Y] [--z Z] [--count N] [--scale F] [--seed S]",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: layoutFlagX, Usage: "touch point x in meters"},
					&cli.Float64Flag{Name: layoutFlagY, Usage: "touch point y (height) in meters"},
					&cli.Float64Flag{Name: layoutFlagZ, Usage: "touch point z (depth) in meters"},
					&cli.UintFlag{Name: layoutFlagCount, Value: 5, Usage: "number of trees"},
					&cli.Float64Flag{Name: layoutFlagScale, Value: 1, Usage: "scale factor"},
					&cli.Int64Flag{Name: flagSeed, Usage: "random seed, 0 for a time based one"},
				},
				Action: LayoutAction,
			},
			{
				Name:  "session",
				Usage: "run a planting session from newline separated commands",
				Description: `Commands, one per line:
  project NAME | model NAME | count N | scale F | plan on|off | location LAT LNG
  tap X Y Z | miss | undo | clear | save | load | list | wait
Lines starting with # are ignored. Events are printed as they happen.`,
				UsageText: "reforestar session [--script FILE] [--seed S]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: sessionFlagScript, Usage: "read commands from `FILE` instead of stdin"},
					&cli.Int64Flag{Name: flagSeed, Usage: "random seed, 0 for a time based one"},
				},
				Action: SessionAction,
			},
		},
	}
}

// loggerAndConfig reads the --config file, falling back to defaults, and builds the logger the
// config and --debug ask for.
func loggerAndConfig(c *cli.Context) (logging.Logger, *config.Config, error) {
	logger := logging.NewLogger("reforestar")
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}

	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(contextOf(c), path, logger); err != nil {
			return nil, nil, err
		}
	}
	if !c.Bool(flagDebug) {
		logger.SetLevel(cfg.Level())
	}
	return logger, cfg, nil
}

// sessionInput returns the reader session commands come from.
func sessionInput(c *cli.Context) (io.Reader, func() error, error) {
	path := c.String(sessionFlagScript)
	if path == "" {
		return c.App.Reader, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func contextOf(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
