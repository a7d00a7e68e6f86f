package database

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version  int
	filename string
}

func listMigrations(suffix string) ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var out []migration
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		var version int
		var rest string
		if _, err := fmt.Sscanf(entry.Name(), "%03d_%s", &version, &rest); err != nil {
			continue
		}
		out = append(out, migration{version: version, filename: entry.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func currentVersion(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("create migrations table: %w", err)
	}

	var version int
	err = pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return version, nil
}

func applySQL(ctx context.Context, pool *pgxpool.Pool, m migration, record string) error {
	sql, err := migrationsFS.ReadFile("migrations/" + m.filename)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.filename, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx for migration %d: %w", m.version, err)
	}

	if _, err := tx.Exec(ctx, string(sql)); err != nil {
		tx.Rollback(ctx)
		return fmt.Errorf("apply migration %d: %w", m.version, err)
	}

	if _, err := tx.Exec(ctx, record, m.version); err != nil {
		tx.Rollback(ctx)
		return fmt.Errorf("record migration %d: %w", m.version, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.version, err)
	}

	log.Info().Int("version", m.version).Str("file", m.filename).Msg("applied migration")
	return nil
}

// Migrate applies all pending .up.sql migrations, tracked through a
// schema_migrations table.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	version, err := currentVersion(ctx, pool)
	if err != nil {
		return err
	}

	ups, err := listMigrations(".up.sql")
	if err != nil {
		return err
	}

	for _, m := range ups {
		if m.version <= version {
			continue
		}
		if err := applySQL(ctx, pool, m, "INSERT INTO schema_migrations (version) VALUES ($1)"); err != nil {
			return err
		}
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration.
func MigrateDown(ctx context.Context, pool *pgxpool.Pool) error {
	version, err := currentVersion(ctx, pool)
	if err != nil {
		return err
	}
	if version == 0 {
		log.Info().Msg("no migrations to roll back")
		return nil
	}

	downs, err := listMigrations(".down.sql")
	if err != nil {
		return err
	}

	for _, m := range downs {
		if m.version != version {
			continue
		}
		return applySQL(ctx, pool, m, "DELETE FROM schema_migrations WHERE version = $1")
	}
	return fmt.Errorf("no down migration for version %d", version)
}
