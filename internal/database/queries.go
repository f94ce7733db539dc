package database

import (
	"context"
	"database/sql"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const isDatabaseRunning = `SELECT 1`

func (q *Queries) IsDatabaseRunning(ctx context.Context) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx, isDatabaseRunning).Scan(&one)
	return one == 1, err
}

const createRole = `
INSERT INTO roles (id, name, description, created_at)
VALUES ($1, $2, $3, $4)
`

type CreateRoleParams struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

func (q *Queries) CreateRole(ctx context.Context, arg CreateRoleParams) error {
	_, err := q.db.ExecContext(ctx, createRole, arg.ID, arg.Name, arg.Description, arg.CreatedAt)
	return err
}

const getRoleByName = `
SELECT id, name, description, created_at FROM roles WHERE name = $1
`

func (q *Queries) GetRoleByName(ctx context.Context, name string) (Role, error) {
	var r Role
	err := q.db.QueryRowContext(ctx, getRoleByName, name).Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt)
	return r, err
}

const createUser = `
INSERT INTO users (id, name, email, password_hash, avatar, bio, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

type CreateUserParams struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Avatar       string
	Bio          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx, createUser,
		arg.ID,
		arg.Name,
		arg.Email,
		arg.PasswordHash,
		arg.Avatar,
		arg.Bio,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const userColumns = `id, name, email, password_hash, avatar, bio, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Avatar,
		&u.Bio,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

// login names match either the user name or the email address
const getUserByLogin = `SELECT ` + userColumns + ` FROM users WHERE name = $1 OR email = $1`

func (q *Queries) GetUserByLogin(ctx context.Context, login string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByLogin, login))
}

const addUserToRole = `INSERT INTO user_in_roles (user_id, role_id) VALUES ($1, $2)`

func (q *Queries) AddUserToRole(ctx context.Context, userID, roleID string) error {
	_, err := q.db.ExecContext(ctx, addUserToRole, userID, roleID)
	return err
}

const listUserRoles = `
SELECT r.name
FROM roles r
JOIN user_in_roles ur ON ur.role_id = r.id
WHERE ur.user_id = $1
ORDER BY r.name
`

func (q *Queries) ListUserRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listUserRoles, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

const createWarehouse = `
INSERT INTO warehouses (
    id, name, organization_name, address, description, branch, type, status, stars, forks, user_id, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

type CreateWarehouseParams struct {
	ID               string
	Name             string
	OrganizationName string
	Address          string
	Description      string
	Branch           string
	Type             string
	Status           string
	Stars            int64
	Forks            int64
	UserID           string
	CreatedAt        time.Time
}

func (q *Queries) CreateWarehouse(ctx context.Context, arg CreateWarehouseParams) error {
	_, err := q.db.ExecContext(ctx, createWarehouse,
		arg.ID,
		arg.Name,
		arg.OrganizationName,
		arg.Address,
		arg.Description,
		arg.Branch,
		arg.Type,
		arg.Status,
		arg.Stars,
		arg.Forks,
		arg.UserID,
		arg.CreatedAt,
	)
	return err
}

const warehouseColumns = `id, name, organization_name, address, description, branch, type, status, stars, forks, user_id, created_at`

func scanWarehouse(row interface{ Scan(...any) error }) (Warehouse, error) {
	var w Warehouse
	err := row.Scan(
		&w.ID,
		&w.Name,
		&w.OrganizationName,
		&w.Address,
		&w.Description,
		&w.Branch,
		&w.Type,
		&w.Status,
		&w.Stars,
		&w.Forks,
		&w.UserID,
		&w.CreatedAt,
	)
	return w, err
}

const getWarehouseByID = `SELECT ` + warehouseColumns + ` FROM warehouses WHERE id = $1`

func (q *Queries) GetWarehouseByID(ctx context.Context, id string) (Warehouse, error) {
	return scanWarehouse(q.db.QueryRowContext(ctx, getWarehouseByID, id))
}

const countWarehouses = `SELECT COUNT(*) FROM warehouses`

func (q *Queries) CountWarehouses(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countWarehouses).Scan(&n)
	return n, err
}

const listWarehouses = `
SELECT ` + warehouseColumns + `
FROM warehouses
ORDER BY created_at DESC, id
LIMIT $1 OFFSET $2
`

type ListWarehousesParams struct {
	Limit  int64
	Offset int64
}

func (q *Queries) ListWarehouses(ctx context.Context, arg ListWarehousesParams) ([]Warehouse, error) {
	rows, err := q.db.QueryContext(ctx, listWarehouses, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Warehouse
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

const createDocumentCatalog = `
INSERT INTO document_catalogs (
    id, name, url, description, warehouse_id, is_completed, is_deleted, sort_order, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

type CreateDocumentCatalogParams struct {
	ID          string
	Name        string
	Url         string
	Description string
	WarehouseID string
	IsCompleted bool
	IsDeleted   bool
	SortOrder   int64
	CreatedAt   time.Time
}

func (q *Queries) CreateDocumentCatalog(ctx context.Context, arg CreateDocumentCatalogParams) error {
	_, err := q.db.ExecContext(ctx, createDocumentCatalog,
		arg.ID,
		arg.Name,
		arg.Url,
		arg.Description,
		arg.WarehouseID,
		arg.IsCompleted,
		arg.IsDeleted,
		arg.SortOrder,
		arg.CreatedAt,
	)
	return err
}

const listCatalogsByWarehouse = `
SELECT id, name, url, description, warehouse_id, is_completed, is_deleted, sort_order, created_at
FROM document_catalogs
WHERE warehouse_id = $1 AND is_deleted = FALSE
ORDER BY sort_order, name
`

func (q *Queries) ListCatalogsByWarehouse(ctx context.Context, warehouseID string) ([]DocumentCatalog, error) {
	rows, err := q.db.QueryContext(ctx, listCatalogsByWarehouse, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []DocumentCatalog
	for rows.Next() {
		var c DocumentCatalog
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Url,
			&c.Description,
			&c.WarehouseID,
			&c.IsCompleted,
			&c.IsDeleted,
			&c.SortOrder,
			&c.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
