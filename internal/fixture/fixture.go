// Package fixture holds the seed data loaded into the wiki database before integration tests run.
//
// The fixture is embedded from fixture.yaml. Row IDs are derived from the fixture content
// (uuid v5) and timestamps are fixed, so seeding the same fixture twice produces the same rows.
package fixture

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
	"gopkg.in/yaml.v3"
)

//go:embed fixture.yaml
var defaultFixture []byte

// namespace for the deterministic row IDs
var idNamespace = uuid.MustParse("6f1d3c1e-8a3b-4d7e-9c55-2b0f6f1a9e40")

type Fixture struct {
	CreatedAt    time.Time    `yaml:"created_at" json:"created_at"`
	Roles        []Role       `yaml:"roles" json:"roles"`
	Users        []User       `yaml:"users" json:"users"`
	Repositories []Repository `yaml:"repositories" json:"repositories"`

	// bcrypt hashes are computed once per fixture
	hashMu sync.Mutex
	hashes map[string]string
}

type Role struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

type User struct {
	Name     string `yaml:"name" json:"name"`
	Email    string `yaml:"email" json:"email"`
	Password string `yaml:"password" json:"password"`
	Role     string `yaml:"role" json:"role"`
	Avatar   string `yaml:"avatar" json:"avatar"`
	Bio      string `yaml:"bio" json:"bio"`
}

// Repository is seeded into the warehouses table.
type Repository struct {
	Name         string    `yaml:"name" json:"name"`
	Organization string    `yaml:"organization" json:"organization"`
	Address      string    `yaml:"address" json:"address"`
	Description  string    `yaml:"description" json:"description"`
	Branch       string    `yaml:"branch" json:"branch"`
	Type         string    `yaml:"type" json:"type"`
	Status       string    `yaml:"status" json:"status"`
	Stars        int64     `yaml:"stars" json:"stars"`
	Forks        int64     `yaml:"forks" json:"forks"`
	Owner        string    `yaml:"owner" json:"owner"`
	Catalogs     []Catalog `yaml:"catalogs" json:"catalogs"`
}

type Catalog struct {
	Name        string `yaml:"name" json:"name"`
	URL         string `yaml:"url" json:"url"`
	Description string `yaml:"description" json:"description"`
	Completed   bool   `yaml:"completed" json:"completed"`
	SortOrder   int64  `yaml:"sort_order" json:"sort_order"`
}

// Default returns the embedded fixture.
func Default() (*Fixture, error) {
	return Parse(defaultFixture)
}

// Parse decodes and validates a fixture document.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	for i := range f.Repositories {
		r := &f.Repositories[i]
		if r.Branch == "" {
			r.Branch = "main"
		}
		if r.Type == "" {
			r.Type = "git"
		}
		if r.Status == "" {
			r.Status = "Pending"
		}
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	if f.CreatedAt.IsZero() {
		return fmt.Errorf("fixture: created_at is required")
	}

	roles := make(map[string]bool, len(f.Roles))
	for _, r := range f.Roles {
		if r.Name == "" {
			return fmt.Errorf("fixture: role name is required")
		}
		if roles[r.Name] {
			return fmt.Errorf("fixture: duplicate role %q", r.Name)
		}
		roles[r.Name] = true
	}

	users := make(map[string]bool, len(f.Users))
	emails := make(map[string]bool, len(f.Users))
	for _, u := range f.Users {
		switch {
		case u.Name == "" || u.Email == "" || u.Password == "":
			return fmt.Errorf("fixture: user %q needs a name, email and password", u.Name)
		case users[u.Name]:
			return fmt.Errorf("fixture: duplicate user %q", u.Name)
		case emails[u.Email]:
			return fmt.Errorf("fixture: duplicate email %q", u.Email)
		case u.Role != "" && !roles[u.Role]:
			return fmt.Errorf("fixture: user %q has unknown role %q", u.Name, u.Role)
		}
		users[u.Name] = true
		emails[u.Email] = true
	}

	repos := make(map[string]bool, len(f.Repositories))
	for _, r := range f.Repositories {
		key := r.Organization + "/" + r.Name + "@" + r.Branch
		if r.Name == "" || r.Organization == "" || r.Address == "" {
			return fmt.Errorf("fixture: repository %q needs a name, organization and address", key)
		}
		if repos[key] {
			return fmt.Errorf("fixture: duplicate repository %q", key)
		}
		if !users[r.Owner] {
			return fmt.Errorf("fixture: repository %q has unknown owner %q", key, r.Owner)
		}
		repos[key] = true
	}
	return nil
}

// User returns the fixture user with the given name.
func (f *Fixture) User(name string) (User, bool) {
	for _, u := range f.Users {
		if u.Name == name {
			return u, true
		}
	}
	return User{}, false
}

// Version is the sha256 of the fixture's RFC 8785 canonical JSON form.
// It changes whenever any seeded value changes.
func (f *Fixture) Version() (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to encode fixture: %w", err)
	}

	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize fixture: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func RoleID(name string) string {
	return uuid.NewSHA1(idNamespace, []byte("role:"+name)).String()
}

func UserID(name string) string {
	return uuid.NewSHA1(idNamespace, []byte("user:"+name)).String()
}

func RepositoryID(r Repository) string {
	return uuid.NewSHA1(idNamespace, []byte("repository:"+r.Organization+"/"+r.Name+"@"+r.Branch)).String()
}

func CatalogID(repositoryID, url string) string {
	return uuid.NewSHA1(idNamespace, []byte("catalog:"+repositoryID+"/"+url)).String()
}
