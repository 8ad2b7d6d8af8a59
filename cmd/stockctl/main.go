package main

import (
	"os"

	"github.com/andresuchdata/stockpilot/pkg/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "stockctl",
		Usage: "Inspect stock health, reorder needs and what-if scenarios",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "demo",
				Usage:   "Use the seeded in-memory demo inventory instead of PostgreSQL",
				EnvVars: []string{"STOCKPILOT_DEMO"},
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "Seed of the demo generator",
				Value: 42,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			migrateCommand(),
			seedCommand(),
			articlesCommand(),
			anomaliesCommand(),
			recommendCommand(),
			orderCommand(),
			ordersCommand(),
			abcCommand(),
			kpiCommand(),
			forecastCommand(),
			stockoutCommand(),
			simulateCommand(),
			compareCommand(),
			moveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("stockctl failed")
	}
}
