//go:build integration

// functions that are useful in integration tests

package integration

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/information-sharing-networks/wiki-harness/internal/harness"
)

// adminClient returns a client authenticated as the configured test identity (admin/admin by default).
func adminClient(t *testing.T) *harness.Client {
	t.Helper()

	c, err := clientFor(context.Background(), harnessCfg.Username, harnessCfg.Password)
	if err != nil {
		t.Fatalf("failed to get authenticated client: %v", err)
	}
	return c
}

// resetAfter restores the fixture when the test is done. Resets are not possible against an
// external server without database access, so tests must not depend on them.
func resetAfter(t *testing.T) {
	t.Helper()

	t.Cleanup(func() {
		if harnessCfg.ResetMode != "sql" {
			return
		}
		if err := testHarness.Reset(context.Background()); err != nil {
			t.Fatalf("failed to reset database: %v", err)
		}
	})
}

// uniqueName returns a user name that does not exist yet.
func uniqueName(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

func getJSON(t *testing.T, c *harness.Client, path string, dst any) int {
	t.Helper()

	status, err := c.GetJSON(context.Background(), path, dst)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	return status
}

func getBody(t *testing.T, c *harness.Client, path string) (int, string, http.Header) {
	t.Helper()

	resp, err := c.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read %s response: %v", path, err)
	}
	return resp.StatusCode, string(body), resp.Header
}
