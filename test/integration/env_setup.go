//go:build integration

package integration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/information-sharing-networks/wiki-harness/internal/config"
	"github.com/information-sharing-networks/wiki-harness/internal/harness"
	"github.com/information-sharing-networks/wiki-harness/internal/logger"
)

var (
	testHarness *harness.Harness
	anonClient  *harness.Client
	clientFor   harness.ClientFactory
	harnessCfg  *config.HarnessEnvironment
)

// testLogger logs warnings, or everything when ENABLE_SERVER_LOGS=true.
func testLogger() *slog.Logger {
	logLevel := logger.ParseLogLevel("warn")
	if os.Getenv("ENABLE_SERVER_LOGS") == "true" {
		logLevel = logger.ParseLogLevel("debug")
	}
	return logger.InitLogger(logLevel, "test")
}

// buildServerIfNeeded compiles cmd/wiki-server when process mode has no HARNESS_SERVER_BINARY.
// The returned cleanup removes the build directory.
func buildServerIfNeeded(ctx context.Context) (func(), error) {
	if os.Getenv("HARNESS_MODE") != config.ModeProcess || os.Getenv("HARNESS_SERVER_BINARY") != "" {
		return func() {}, nil
	}

	binDir, err := os.MkdirTemp("", "wiki-server-bin-*")
	if err != nil {
		return nil, fmt.Errorf("create bin dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(binDir) }

	// go test runs in the package directory, the module root is two levels up
	cwd, err := os.Getwd()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("getwd: %w", err)
	}
	bin, err := harness.BuildServerBinary(ctx, filepath.Join(cwd, "..", ".."), "./cmd/wiki-server", binDir)
	if err != nil {
		cleanup()
		return nil, err
	}
	os.Setenv("HARNESS_SERVER_BINARY", bin)
	return cleanup, nil
}

// setupHarness loads the harness config and starts the server the tests run against.
// testHarness is set even when Setup fails so the caller can tear it down.
func setupHarness(ctx context.Context) error {
	cfg, err := config.NewHarnessConfig()
	if err != nil {
		return fmt.Errorf("load harness config: %w", err)
	}
	harnessCfg = cfg

	testHarness, err = harness.New(cfg, testLogger())
	if err != nil {
		return err
	}

	anonClient, clientFor, err = testHarness.Setup(ctx)
	if err != nil {
		return fmt.Errorf("harness setup failed: %w", err)
	}
	return nil
}
