package database

import "time"

type Role struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Avatar       string
	Bio          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Warehouse is a catalogued git repository.
type Warehouse struct {
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

type DocumentCatalog struct {
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
