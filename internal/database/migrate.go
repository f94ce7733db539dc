package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// MigrationTable is the goose version table. It is never wiped.
const MigrationTable = "goose_db_version"

// Migrate applies all pending migrations.
func (d *DB) Migrate(ctx context.Context, logger *slog.Logger) error {
	provider, err := d.migrationProvider()
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	for _, r := range results {
		logger.Debug("migration applied",
			slog.Int64("version", r.Source.Version),
			slog.Duration("duration", r.Duration),
		)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("database schema ready",
		slog.String("engine", d.Engine),
		slog.Int64("version", version),
		slog.Int("applied", len(results)),
	)
	return nil
}

func (d *DB) migrationProvider() (*goose.Provider, error) {
	migrations, err := fs.Sub(schemaFS, "schema")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	dialect := goose.DialectSQLite3
	if d.Engine == EnginePostgres {
		dialect = goose.DialectPostgres
	}

	provider, err := goose.NewProvider(dialect, d.SQL, migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}
