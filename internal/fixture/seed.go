package fixture

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/information-sharing-networks/wiki-harness/internal/database"
)

// StatementError identifies the wipe or seed statement that failed.
type StatementError struct {
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%s: %v", e.Statement, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// Apply deletes every row from the tables in order and seeds the fixture, all in one transaction.
// Either the database ends up holding exactly the fixture or it is left unchanged.
func Apply(ctx context.Context, db *database.DB, order []string, f *Fixture, bcryptCost int) error {
	// hash outside the transaction so the write lock is held briefly
	if err := f.hashPasswords(bcryptCost); err != nil {
		return err
	}

	return db.InTx(ctx, func(tx *sql.Tx) error {
		for _, table := range order {
			stmt := "DELETE FROM " + database.QuoteIdent(table)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return &StatementError{Statement: stmt, Err: err}
			}
		}
		return f.Seed(ctx, database.New(tx), bcryptCost)
	})
}

// Seed inserts the fixture rows. The tables are expected to be empty.
func (f *Fixture) Seed(ctx context.Context, q *database.Queries, bcryptCost int) error {
	if err := f.hashPasswords(bcryptCost); err != nil {
		return err
	}

	for _, r := range f.Roles {
		err := q.CreateRole(ctx, database.CreateRoleParams{
			ID:          RoleID(r.Name),
			Name:        r.Name,
			Description: r.Description,
			CreatedAt:   f.CreatedAt,
		})
		if err != nil {
			return &StatementError{Statement: "insert role " + r.Name, Err: err}
		}
	}

	for _, u := range f.Users {
		err := q.CreateUser(ctx, database.CreateUserParams{
			ID:           UserID(u.Name),
			Name:         u.Name,
			Email:        u.Email,
			PasswordHash: f.passwordHash(u.Name),
			Avatar:       u.Avatar,
			Bio:          u.Bio,
			CreatedAt:    f.CreatedAt,
			UpdatedAt:    f.CreatedAt,
		})
		if err != nil {
			return &StatementError{Statement: "insert user " + u.Name, Err: err}
		}

		if u.Role == "" {
			continue
		}
		if err := q.AddUserToRole(ctx, UserID(u.Name), RoleID(u.Role)); err != nil {
			return &StatementError{Statement: "assign role " + u.Role + " to " + u.Name, Err: err}
		}
	}

	for _, r := range f.Repositories {
		repoID := RepositoryID(r)
		err := q.CreateWarehouse(ctx, database.CreateWarehouseParams{
			ID:               repoID,
			Name:             r.Name,
			OrganizationName: r.Organization,
			Address:          r.Address,
			Description:      r.Description,
			Branch:           r.Branch,
			Type:             r.Type,
			Status:           r.Status,
			Stars:            r.Stars,
			Forks:            r.Forks,
			UserID:           UserID(r.Owner),
			CreatedAt:        f.CreatedAt,
		})
		if err != nil {
			return &StatementError{Statement: "insert repository " + r.Organization + "/" + r.Name, Err: err}
		}

		for i, c := range r.Catalogs {
			sortOrder := c.SortOrder
			if sortOrder == 0 {
				sortOrder = int64(i)
			}
			err := q.CreateDocumentCatalog(ctx, database.CreateDocumentCatalogParams{
				ID:          CatalogID(repoID, c.URL),
				Name:        c.Name,
				Url:         c.URL,
				Description: c.Description,
				WarehouseID: repoID,
				IsCompleted: c.Completed,
				SortOrder:   sortOrder,
				CreatedAt:   f.CreatedAt,
			})
			if err != nil {
				return &StatementError{Statement: "insert catalog " + c.Name, Err: err}
			}
		}
	}
	return nil
}

func (f *Fixture) hashPasswords(cost int) error {
	f.hashMu.Lock()
	defer f.hashMu.Unlock()

	if f.hashes == nil {
		f.hashes = make(map[string]string, len(f.Users))
	}
	for _, u := range f.Users {
		if _, ok := f.hashes[u.Name]; ok {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", u.Name, err)
		}
		f.hashes[u.Name] = string(hash)
	}
	return nil
}

func (f *Fixture) passwordHash(name string) string {
	f.hashMu.Lock()
	defer f.hashMu.Unlock()
	return f.hashes[name]
}
