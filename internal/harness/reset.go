package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/information-sharing-networks/wiki-harness/internal/database"
	"github.com/information-sharing-networks/wiki-harness/internal/fixture"
)

// Resetter brings the server's data back to the seed fixture.
// Implementations must leave the same rows behind, whichever mechanism they use.
type Resetter interface {
	ResetAndSeed(ctx context.Context, f *fixture.Fixture) error
}

// SQLResetter wipes and seeds through a direct database connection, in one transaction.
type SQLResetter struct {
	db         *database.DB
	bcryptCost int
	logger     *slog.Logger

	// calls are serialized so a test never observes half a reset
	mu sync.Mutex

	// order overrides the wipe order derived from the foreign keys
	order []string
}

func NewSQLResetter(db *database.DB, bcryptCost int, logger *slog.Logger) *SQLResetter {
	return &SQLResetter{db: db, bcryptCost: bcryptCost, logger: logger}
}

// WithOrder fixes the table wipe order (children before parents) instead of deriving it from the schema.
func (r *SQLResetter) WithOrder(order []string) *SQLResetter {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append([]string(nil), order...)
	return r
}

// ResetAndSeed deletes all rows in wipe order and inserts the fixture. Failures are not retried.
func (r *SQLResetter) ResetAndSeed(ctx context.Context, f *fixture.Fixture) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()

	order := r.order
	if len(order) == 0 {
		var err error
		order, err = r.db.WipeOrder(ctx)
		if err != nil {
			return WrapResetSeedError("derive table wipe order", err)
		}
	}

	if err := fixture.Apply(ctx, r.db, order, f, r.bcryptCost); err != nil {
		var stmtErr *fixture.StatementError
		if errors.As(err, &stmtErr) {
			return WrapResetSeedError(stmtErr.Statement, stmtErr.Err)
		}
		return WrapResetSeedError("seed fixture", err)
	}

	r.logger.Debug("database reset",
		slog.Any("tables", order),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// HTTPResetter is used when the harness has no database access.
//
// The server wipes and seeds the same fixture itself at start-up (SEED_TEST_DATA), through the same
// database and fixture code as SQLResetter. ResetAndSeed then confirms each fixture identity over the
// API, registering any that cannot log in.
type HTTPResetter struct {
	client *Client
	logger *slog.Logger
}

func NewHTTPResetter(client *Client, logger *slog.Logger) *HTTPResetter {
	return &HTTPResetter{client: client, logger: logger}
}

func (r *HTTPResetter) ResetAndSeed(ctx context.Context, f *fixture.Fixture) error {
	for _, u := range f.Users {
		result, status, err := r.client.Login(ctx, u.Name, u.Password)
		if err != nil {
			return WrapResetSeedError("POST "+LoginPath+" as "+u.Name, err)
		}
		if result != nil && result.Success {
			continue
		}

		r.logger.Debug("fixture user cannot log in, registering",
			slog.String("username", u.Name),
			slog.Int("status", status),
		)

		_, status, err = r.client.Register(ctx, u.Name, u.Email, u.Password)
		if err != nil {
			return WrapResetSeedError("POST "+RegisterPath+" as "+u.Name, err)
		}
		if !registerAccepted(status) {
			return WrapResetSeedError("POST "+RegisterPath+" as "+u.Name, fmt.Errorf("unexpected status %d", status))
		}
	}
	return nil
}
