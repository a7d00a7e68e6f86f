package cmd

import (
	"context"
	"fmt"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/config"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/server"
	"github.com/urfave/cli/v3"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the API server and the timeout sweep loop",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection string",
				Sources: cli.EnvVars("CF_DATABASE_URL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if v := cmd.String("database-url"); v != "" {
				cfg.Database.URL = v
			}
			if v := cmd.String("log-level"); v != "" {
				cfg.Logging.Level = v
			}

			if cfg.Database.URL == "" {
				return fmt.Errorf("database URL is required (set CF_DATABASE_URL env or database.url in config)")
			}

			return server.Run(ctx, cfg)
		},
	}
}
