// Package cli implements the localize command line: readiness checks, episode runs against a
// simulation or a recorded bag, and bag inspection.
package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/turtlelab/localize/logging"
)

// Flags.
const (
	generalFlagConfig = "config"
	generalFlagDebug  = "debug"

	runFlagSim      = "sim"
	runFlagBag      = "bag"
	runFlagEpisodes = "episodes"
	runFlagRecord   = "record"
	runFlagSeed     = "seed"
	runFlagSpeed    = "speed"

	replayFlagTopics = "topics"
	replayFlagStart  = "start"
	replayFlagEnd    = "end"
)

// newApp builds the command tree. Each call returns fresh flags so an app can be run once per
// instance.
func newApp() *cli.App {
	return &cli.App{
		Name:            "localize",
		Usage:           "monitor localization quality and run localization episodes",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    generalFlagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    generalFlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: enableDebugContext,
		Commands: []*cli.Command{
			{
				Name:   "check",
				Usage:  "run the readiness checks against the data source",
				Flags:  sourceFlags(),
				Action: CheckAction,
			},
			{
				Name:  "run",
				Usage: "run localization episodes with a uniform random policy",
				Flags: append(sourceFlags(),
					&cli.IntFlag{
						Name:  runFlagEpisodes,
						Value: 1,
						Usage: "number of episodes",
					},
					&cli.StringFlag{
						Name:  runFlagRecord,
						Usage: "record transitions to the SQLite database `DB`",
					},
					&cli.Uint64Flag{
						Name:  runFlagSeed,
						Value: 1,
						Usage: "seed of the policy and the simulation",
					},
				),
				Action: RunAction,
			},
			{
				Name:  "replay",
				Usage: "dump the messages of a bag as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     runFlagBag,
						Required: true,
						Usage:    "read messages from `FILE`",
					},
					&cli.StringSliceFlag{
						Name:  replayFlagTopics,
						Usage: "topics to dump (all when empty)",
					},
					&cli.Int64Flag{
						Name:  replayFlagStart,
						Usage: "skip messages before this unix time in seconds",
					},
					&cli.Int64Flag{
						Name:  replayFlagEnd,
						Usage: "skip messages after this unix time in seconds",
					},
				},
				Action: ReplayAction,
			},
			{
				Name:   "frames",
				Usage:  "print the frame tree of the configured robot",
				Action: FramesAction,
			},
		},
	}
}

// enableDebugContext marks the command context for debug logging when --debug is set, so every
// context-aware log call below it is emitted regardless of logger level.
func enableDebugContext(c *cli.Context) error {
	if c.Bool(generalFlagDebug) {
		c.Context = logging.EnableDebugMode(c.Context, "cli")
	}
	return nil
}

// sourceFlags select where sensor streams come from.
func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  runFlagSim,
			Usage: "drive the built-in simulation",
		},
		&cli.StringFlag{
			Name:  runFlagBag,
			Usage: "replay sensor streams from `FILE`",
		},
		&cli.Float64Flag{
			Name:  runFlagSpeed,
			Value: 1,
			Usage: "bag replay speed factor",
		},
	}
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app := newApp()
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}
