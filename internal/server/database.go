package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/information-sharing-networks/wiki-harness/internal/config"
	"github.com/information-sharing-networks/wiki-harness/internal/database"
	"github.com/information-sharing-networks/wiki-harness/internal/fixture"
)

// OpenDatabase connects to the configured database, applies migrations (unless SKIP_MIGRATIONS is set)
// and, when SEED_TEST_DATA is set, replaces the contents of every table with the test fixture.
func OpenDatabase(ctx context.Context, cfg *config.ServerEnvironment, logger *slog.Logger) (*database.DB, error) {
	dbCtx, cancel := context.WithTimeout(ctx, cfg.DatabasePingTimeout)
	defer cancel()

	db, err := database.Open(dbCtx, cfg.DBType, cfg.DatabaseURL, database.PoolSettings{
		MaxConns:        cfg.DBMaxConnections,
		MinConns:        cfg.DBMinConnections,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
		ConnectTimeout:  cfg.DBConnectTimeout,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database", slog.String("engine", db.Engine))

	if !cfg.SkipMigrations {
		if err := db.Migrate(ctx, logger); err != nil {
			db.Close()
			return nil, err
		}
	}

	if cfg.SeedTestData {
		if err := SeedTestData(ctx, db, cfg.BcryptCost, logger); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// SeedTestData wipes every table and loads the embedded test fixture in one transaction.
func SeedTestData(ctx context.Context, db *database.DB, bcryptCost int, logger *slog.Logger) error {
	order, err := db.WipeOrder(ctx)
	if err != nil {
		return fmt.Errorf("failed to derive table wipe order: %w", err)
	}

	f, err := fixture.Default()
	if err != nil {
		return err
	}

	if err := fixture.Apply(ctx, db, order, f, bcryptCost); err != nil {
		return fmt.Errorf("failed to seed test data: %w", err)
	}

	fixtureVersion, err := f.Version()
	if err != nil {
		return err
	}
	logger.Info("test data seeded",
		slog.String("fixture_version", fixtureVersion),
		slog.Int("users", len(f.Users)),
		slog.Int("repositories", len(f.Repositories)),
	)
	return nil
}
