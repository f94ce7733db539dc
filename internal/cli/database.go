package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/information-sharing-networks/wiki-harness/internal/database"
	"github.com/information-sharing-networks/wiki-harness/internal/fixture"
	"github.com/information-sharing-networks/wiki-harness/internal/harness"
)

var (
	dbType    string
	dbURL     string
	migrateDB bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe a database and seed the test fixture",
	Long: `Delete every row (children before parents) and insert the embedded fixture in one transaction.

Example:
  wikiharness reset --db-type sqlite --db ./wiki.db --migrate`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		f, err := fixture.Default()
		if err != nil {
			return err
		}

		if err := harness.NewSQLResetter(db, bcrypt.DefaultCost, appLogger).ResetAndSeed(cmd.Context(), f); err != nil {
			return err
		}

		fixtureVersion, err := f.Version()
		if err != nil {
			return err
		}
		appLogger.Info("database reset", slog.String("fixture_version", fixtureVersion))
		return nil
	},
}

var wipeOrderCmd = &cobra.Command{
	Use:   "wipe-order",
	Short: "Print the order tables are wiped in",
	Long:  `Print the tables of the database, children before parents, as derived from the foreign keys`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		order, err := db.WipeOrder(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(order, "\n"))
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{resetCmd, wipeOrderCmd} {
		cmd.Flags().StringVar(&dbType, "db-type", "", "sqlite or postgres (defaults to HARNESS_DB_TYPE)")
		cmd.Flags().StringVar(&dbURL, "db", "", "connection string or sqlite file (defaults to HARNESS_DB_CONNECTION_STRING)")
		cmd.Flags().BoolVar(&migrateDB, "migrate", false, "apply the migrations first")
	}
}

func openDatabase(ctx context.Context) (*database.DB, error) {
	engine := firstNonEmpty(dbType, cfg.DBType)
	dsn := firstNonEmpty(dbURL, cfg.DatabaseURL)
	if dsn == "" {
		return nil, fmt.Errorf("no database: use --db or HARNESS_DB_CONNECTION_STRING")
	}

	db, err := database.Open(ctx, engine, dsn, database.PoolSettings{ConnectTimeout: cfg.RequestTimeout})
	if err != nil {
		return nil, err
	}
	if migrateDB {
		if err := db.Migrate(ctx, appLogger); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}
