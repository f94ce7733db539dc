//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	// deferred cleanup has to run before os.Exit
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cleanup, err := buildServerIfNeeded(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "TestMain: %v\n", err)
		return 1
	}
	defer cleanup()

	err = setupHarness(ctx)
	if testHarness != nil {
		defer func() {
			if err := testHarness.Teardown(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "TestMain: teardown: %v\n", err)
			}
		}()
	}
	// an unready server invalidates every test, so setup failures abort the run
	if err != nil {
		fmt.Fprintf(os.Stderr, "TestMain: %v\n", err)
		return 1
	}

	return m.Run()
}

func TestHarnessIsRunning(t *testing.T) {
	if anonClient == nil || clientFor == nil {
		t.Fatal("harness clients were not set up")
	}
	if testHarness.BaseURL() == "" {
		t.Fatal("harness has no base URL")
	}
	if status, _, _ := getBody(t, anonClient, "/health"); status != http.StatusOK {
		t.Errorf("expected the server to answer /health with 200, got %d", status)
	}
}
