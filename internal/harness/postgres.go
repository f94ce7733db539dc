package harness

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// scratchPostgres is a database created for one harness run.
type scratchPostgres struct {
	adminURL string
	name     string
	dsn      string
}

// createScratchPostgres connects to the server behind adminURL (usually its postgres database)
// and creates an empty database with a unique name.
func createScratchPostgres(ctx context.Context, adminURL string) (*scratchPostgres, error) {
	u, err := url.Parse(adminURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres admin URL: %w", err)
	}

	name := "wiki_harness_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	conn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres admin database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return nil, fmt.Errorf("CREATE DATABASE %s failed: %w", name, err)
	}

	u.Path = "/" + name
	return &scratchPostgres{adminURL: adminURL, name: name, dsn: u.String()}, nil
}

// drop removes the scratch database. Remaining connections are terminated.
func (s *scratchPostgres) drop(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, s.adminURL)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres admin database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{s.name}.Sanitize()+" WITH (FORCE)"); err != nil {
		return fmt.Errorf("DROP DATABASE %s failed: %w", s.name, err)
	}
	return nil
}
