package cmd

import (
	"context"
	"fmt"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/config"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/notify"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/sweep"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/database"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func sweepCmd() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Run a single timeout sweep across all job categories and exit",
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
			if cfg.Database.URL == "" {
				return fmt.Errorf("database URL is required (set CF_DATABASE_URL or --database-url)")
			}

			pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			store := database.NewStore(pool)
			sweeper := sweep.New(store, notify.NewEmitter(store))

			expired, err := sweeper.SweepAll(ctx)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}

			log.Info().Int("expired", len(expired)).Msg("sweep complete")
			return nil
		},
	}
}
