package harness

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/information-sharing-networks/wiki-harness/internal/database"
	"github.com/information-sharing-networks/wiki-harness/internal/fixture"
	"github.com/information-sharing-networks/wiki-harness/internal/logger"
)

func openMigratedDB(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.EngineSQLite, filepath.Join(t.TempDir(), "wiki.db"), database.PoolSettings{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx, logger.Discard()))
	return db
}

func rowCounts(t *testing.T, db *database.DB) map[string]int64 {
	t.Helper()

	order, err := db.WipeOrder(context.Background())
	require.NoError(t, err)
	counts, err := db.CountRows(context.Background(), order)
	require.NoError(t, err)
	return counts
}

func TestSQLResetterIsIdempotent(t *testing.T) {
	db := openMigratedDB(t)
	f, err := fixture.Default()
	require.NoError(t, err)

	r := NewSQLResetter(db, seedBcryptCost, logger.Discard())
	ctx := context.Background()

	require.NoError(t, r.ResetAndSeed(ctx, f))
	first := rowCounts(t, db)
	assert.Equal(t, map[string]int64{
		"document_catalogs": 1,
		"user_in_roles":     3,
		"roles":             2,
		"warehouses":        3,
		"users":             3,
	}, first)

	// rows added by a test disappear on the next reset
	err = db.Queries().CreateUser(ctx, database.CreateUserParams{
		ID:           "extra-user",
		Name:         "extra",
		Email:        "extra@wiki.test",
		PasswordHash: "x",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), rowCounts(t, db)["users"])

	for range 3 {
		require.NoError(t, r.ResetAndSeed(ctx, f))
		assert.Equal(t, first, rowCounts(t, db))
	}

	_, err = db.Queries().GetUserByLogin(ctx, "extra")
	assert.True(t, database.IsNotFound(err))

	admin, err := db.Queries().GetUserByLogin(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, fixture.UserID("admin"), admin.ID)
}

func TestSQLResetterConcurrentCalls(t *testing.T) {
	db := openMigratedDB(t)
	f, err := fixture.Default()
	require.NoError(t, err)

	r := NewSQLResetter(db, seedBcryptCost, logger.Discard())

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.ResetAndSeed(context.Background(), f)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), rowCounts(t, db)["users"])
}

func TestSQLResetterReportsFailingStatement(t *testing.T) {
	db := openMigratedDB(t)
	f, err := fixture.Default()
	require.NoError(t, err)

	r := NewSQLResetter(db, seedBcryptCost, logger.Discard()).WithOrder([]string{"document_catalogs", "no_such_table"})

	err = r.ResetAndSeed(context.Background(), f)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindResetSeed))
	assert.Contains(t, err.Error(), `DELETE FROM "no_such_table"`)
}

func TestSQLResetterWrongOrderFails(t *testing.T) {
	db := openMigratedDB(t)
	f, err := fixture.Default()
	require.NoError(t, err)

	r := NewSQLResetter(db, seedBcryptCost, logger.Discard())
	require.NoError(t, r.ResetAndSeed(context.Background(), f))

	// parents before children violates the foreign keys
	wrong := NewSQLResetter(db, seedBcryptCost, logger.Discard()).
		WithOrder([]string{"users", "roles", "warehouses", "user_in_roles", "document_catalogs"})
	err = wrong.ResetAndSeed(context.Background(), f)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindResetSeed))
	assert.Contains(t, err.Error(), `DELETE FROM "users"`)

	// the failed reset rolled back
	assert.Equal(t, int64(3), rowCounts(t, db)["users"])
}

func TestHTTPResetter(t *testing.T) {
	f, err := fixture.Default()
	require.NoError(t, err)

	t.Run("registers users that cannot log in", func(t *testing.T) {
		fake, srv := newFakeAuthServer(t, map[string]string{"admin": "admin"})
		r := NewHTTPResetter(NewClient(srv.URL, 5*time.Second), logger.Discard())

		require.NoError(t, r.ResetAndSeed(context.Background(), f))
		assert.Equal(t, int64(len(f.Users)), fake.logins.Load())
		assert.Equal(t, int64(len(f.Users)-1), fake.registers.Load())

		// second run finds everyone
		require.NoError(t, r.ResetAndSeed(context.Background(), f))
		assert.Equal(t, int64(len(f.Users)-1), fake.registers.Load())
	})

	t.Run("conflict counts as existing", func(t *testing.T) {
		fake, srv := newFakeAuthServer(t, map[string]string{})
		fake.registerStatus = http.StatusConflict
		r := NewHTTPResetter(NewClient(srv.URL, 5*time.Second), logger.Discard())

		require.NoError(t, r.ResetAndSeed(context.Background(), f))
	})

	t.Run("server error names the request", func(t *testing.T) {
		fake, srv := newFakeAuthServer(t, map[string]string{})
		fake.registerStatus = http.StatusInternalServerError
		r := NewHTTPResetter(NewClient(srv.URL, 5*time.Second), logger.Discard())

		err := r.ResetAndSeed(context.Background(), f)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindResetSeed))
		assert.Contains(t, err.Error(), RegisterPath+" as admin")
	})
}
