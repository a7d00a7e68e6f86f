package cmd

import (
	"github.com/urfave/cli/v3"
)

var version = "dev"

func App() *cli.Command {
	return &cli.Command{
		Name:    "contentflow",
		Version: version,
		Usage:   "Content pipeline orchestrator — persists job state, fires workflow webhooks, sweeps timed-out jobs and notifies their owners.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("CONTENTFLOW_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("CONTENTFLOW_LOGGING_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			sweepCmd(),
			migrateCmd(),
		},
	}
}
