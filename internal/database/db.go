// Package database opens the wiki database, applies the embedded goose migrations and provides
// the queries used by the reference server and the test harness.
//
// Two engines are supported: postgres (pgx pool exposed through database/sql) and sqlite
// (mattn/go-sqlite3). Queries are written once with $N placeholders, which both engines accept
// as long as the placeholders first appear in ascending order.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

// PoolSettings configures the postgres connection pool. sqlite always uses a single connection.
type PoolSettings struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DB is an open database handle.
type DB struct {
	SQL    *sql.DB
	Engine string

	// set for postgres only
	pool *pgxpool.Pool
}

// Open connects to the database and checks it responds.
func Open(ctx context.Context, engine, dsn string, settings PoolSettings) (*DB, error) {
	switch engine {
	case EnginePostgres:
		return openPostgres(ctx, dsn, settings)
	case EngineSQLite:
		return openSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database engine %q", engine)
	}
}

func openPostgres(ctx context.Context, dsn string, settings PoolSettings) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if settings.MaxConns > 0 {
		poolConfig.MaxConns = settings.MaxConns
	}
	poolConfig.MinConns = settings.MinConns
	if settings.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = settings.MaxConnLifetime
	}
	if settings.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = settings.MaxConnIdleTime
	}
	if settings.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = settings.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database via pool: %w", err)
	}

	return &DB{
		SQL:    stdlib.OpenDBFromPool(pool),
		Engine: EnginePostgres,
		pool:   pool,
	}, nil
}

func openSQLite(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows one writer at a time. Pragmas are per connection,
	// so the single connection is kept open for the life of the handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return &DB{SQL: db, Engine: EngineSQLite}, nil
}

// Ping checks the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.SQL.PingContext(ctx)
}

// Close releases the handle and, for postgres, the underlying pool. Safe to call more than once.
func (d *DB) Close() error {
	if d == nil || d.SQL == nil {
		return nil
	}
	err := d.SQL.Close()
	if d.pool != nil {
		d.pool.Close()
	}
	return err
}

// Queries returns the query set bound to the handle.
func (d *DB) Queries() *Queries {
	return New(d.SQL)
}

// InTx runs fn inside a transaction. The transaction is rolled back when fn returns an error.
func (d *DB) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique constraint failure on either engine.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// IsNotFound reports whether err means no row matched.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
