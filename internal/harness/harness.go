package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/information-sharing-networks/wiki-harness/internal/config"
	"github.com/information-sharing-networks/wiki-harness/internal/database"
	"github.com/information-sharing-networks/wiki-harness/internal/fixture"
)

// seedBcryptCost keeps fixture seeding fast. Test passwords do not need a strong hash.
const seedBcryptCost = bcrypt.MinCost

// Instance is a server the harness talks to: a child process, an in-process host or an external server.
type Instance interface {
	Target
	Output() (stdout string, stderr string)
	Stop(ctx context.Context) error
}

// ClientFactory returns a client that authenticates as the given identity.
type ClientFactory func(ctx context.Context, username, password string) (*Client, error)

// Harness brings up a server for a test package, resets its data and hands out clients.
//
// Create one per test package (typically in TestMain), call Setup before the tests
// and Teardown after them.
type Harness struct {
	cfg     *config.HarnessEnvironment
	logger  *slog.Logger
	fixture *fixture.Fixture

	mu       sync.Mutex
	instance Instance
	db       *database.DB
	resetter Resetter
	creds    *CredentialBootstrap
	anon     *Client
	tempDir  string
	scratch  *scratchPostgres
	torn     bool
}

// New creates a harness that seeds the embedded fixture.
func New(cfg *config.HarnessEnvironment, logger *slog.Logger) (*Harness, error) {
	f, err := fixture.Default()
	if err != nil {
		return nil, err
	}
	return NewWithFixture(cfg, f, logger), nil
}

func NewWithFixture(cfg *config.HarnessEnvironment, f *fixture.Fixture, logger *slog.Logger) *Harness {
	return &Harness{cfg: cfg, fixture: f, logger: logger}
}

// Setup prepares the database, launches the server, waits until it is ready and seeds the fixture.
// It returns an anonymous client and a factory for authenticated clients. Calling it again returns the same clients.
//
// When any step fails everything started so far is released and the harness cannot be set up again.
func (h *Harness) Setup(ctx context.Context) (*Client, ClientFactory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.torn {
		return nil, nil, errors.New("harness has been torn down")
	}
	if h.anon != nil {
		return h.anon, h.AuthenticatedClient, nil
	}

	h.logger.Info("starting test harness", slog.Any("config", h.cfg.Summary()))

	if err := h.setup(ctx); err != nil {
		if releaseErr := h.release(context.WithoutCancel(ctx)); releaseErr != nil {
			h.logger.Warn("failed to release harness resources", slog.String("error", releaseErr.Error()))
		}
		return nil, nil, err
	}
	return h.anon, h.AuthenticatedClient, nil
}

func (h *Harness) setup(ctx context.Context) error {
	instance, err := h.launch(ctx)
	if err != nil {
		return err
	}
	h.instance = instance

	prober := NewProber(h.cfg.LivenessPath, h.cfg.ProbeTimeout, h.logger)
	readyCtx, cancel := context.WithTimeout(ctx, h.cfg.StartupBudget())
	defer cancel()

	if !prober.WaitUntilReady(readyCtx, instance, h.cfg.ReadyAttempts, h.cfg.ReadyInterval) {
		stdout, stderr := instance.Output()
		return NewStartupTimeoutError(notReadyMessage(instance, h.cfg.ReadyAttempts), stdout, stderr)
	}
	if sh, ok := instance.(*ServerHandle); ok {
		sh.MarkReady()
	}
	h.logger.Info("server ready", slog.String("url", instance.BaseURL()))

	h.anon = NewClient(instance.BaseURL(), h.cfg.RequestTimeout)
	h.creds = NewCredentialBootstrap(h.anon, h.logger)

	switch h.cfg.ResetMode {
	case config.ResetModeSQL:
		h.resetter = NewSQLResetter(h.db, seedBcryptCost, h.logger)
	default:
		h.resetter = NewHTTPResetter(h.anon, h.logger)
	}

	return h.resetter.ResetAndSeed(ctx, h.fixture)
}

func notReadyMessage(instance Instance, attempts int) string {
	if sh, ok := instance.(*ServerHandle); ok {
		if code, exited := sh.ExitCode(); exited {
			return fmt.Sprintf("server exited with code %d before becoming ready", code)
		}
	}
	select {
	case <-instance.Done():
		return "server stopped before becoming ready"
	default:
	}
	return fmt.Sprintf("server at %s not ready after %d attempts", instance.BaseURL(), attempts)
}

// launch prepares the database and starts the server for the configured mode.
func (h *Harness) launch(ctx context.Context) (Instance, error) {
	if h.cfg.Mode == config.ModeExternal {
		if h.cfg.ResetMode == config.ResetModeSQL {
			db, err := h.openDatabase(ctx, h.cfg.DBType, h.cfg.DatabaseURL)
			if err != nil {
				return nil, NewLaunchError("failed to connect to the external server's database", err)
			}
			h.db = db
		}
		return &externalHandle{baseURL: h.cfg.ServerURL}, nil
	}

	dsn, err := h.prepareDatabase(ctx)
	if err != nil {
		return nil, NewLaunchError("failed to prepare test database", err)
	}
	env := h.serverEnv(dsn)

	switch h.cfg.Mode {
	case config.ModeProcess:
		handle, err := NewSupervisor(h.logger).Start(ctx, ProcessConfig{
			Command:     h.cfg.ServerBinary,
			Args:        h.cfg.ServerArgs,
			Dir:         h.cfg.WorkDir,
			Env:         env,
			Host:        h.cfg.Host,
			OutputLimit: h.cfg.OutputLimit,
			StopGrace:   h.cfg.StopGrace,
		})
		if err != nil {
			return nil, err
		}
		return handle, nil
	default:
		host, err := StartInProcess(ctx, HostConfig{
			Env:         env,
			Host:        h.cfg.Host,
			OutputLimit: h.cfg.OutputLimit,
			EchoLogs:    h.cfg.EnableServerLogs,
		})
		if err != nil {
			return nil, err
		}
		return host, nil
	}
}

// prepareDatabase creates an isolated database, applies the migrations and returns its connection string.
// In sql reset mode the harness keeps its connection open for resets.
func (h *Harness) prepareDatabase(ctx context.Context) (string, error) {
	dsn := h.cfg.DatabaseURL

	switch {
	case dsn != "":
	case h.cfg.DBType == config.DBTypeSQLite:
		dir, err := os.MkdirTemp("", "wiki-harness-*")
		if err != nil {
			return "", err
		}
		h.tempDir = dir
		dsn = filepath.Join(dir, "wiki.db")
	default:
		scratch, err := createScratchPostgres(ctx, h.cfg.PGAdminURL)
		if err != nil {
			return "", err
		}
		h.scratch = scratch
		dsn = scratch.dsn
	}

	db, err := h.openDatabase(ctx, h.cfg.DBType, dsn)
	if err != nil {
		return "", err
	}
	if err := db.Migrate(ctx, h.logger); err != nil {
		db.Close()
		return "", err
	}

	if h.cfg.ResetMode == config.ResetModeSQL {
		h.db = db
	} else if err := db.Close(); err != nil {
		return "", err
	}

	h.logger.Debug("test database ready", slog.String("engine", h.cfg.DBType))
	return dsn, nil
}

func (h *Harness) openDatabase(ctx context.Context, engine, dsn string) (*database.DB, error) {
	return database.Open(ctx, engine, dsn, database.PoolSettings{
		MaxConns:       4,
		ConnectTimeout: h.cfg.RequestTimeout,
	})
}

// serverEnv is the configuration passed to the server, as environment variables.
// The model provider values are placeholders that satisfy start-up validation.
func (h *Harness) serverEnv(dsn string) map[string]string {
	logLevel := "none"
	if h.cfg.EnableServerLogs {
		logLevel = "debug"
	}
	return map[string]string{
		"ENVIRONMENT":          "test",
		"DB_TYPE":              h.cfg.DBType,
		"DB_CONNECTION_STRING": dsn,

		"CHAT_MODEL":        "test-chat-model",
		"CHAT_API_KEY":      "test-chat-key",
		"ENDPOINT":          "http://127.0.0.1:9/v1",
		"EMBEDDING_MODEL":   "test-embedding-model",
		"EMBEDDING_API_KEY": "test-embedding-key",

		"JWT_SECRET":   h.cfg.JWTSecret,
		"JWT_ISSUER":   "wiki-harness",
		"JWT_AUDIENCE": "wiki-harness",
		"JWT_EXPIRES":  "60",
		"BCRYPT_COST":  strconv.Itoa(seedBcryptCost),

		// in http reset mode the server seeds the fixture itself
		"SEED_TEST_DATA": strconv.FormatBool(h.cfg.ResetMode == config.ResetModeHTTP),

		"SUPPRESS_LOGGING": strconv.FormatBool(!h.cfg.EnableServerLogs),
		"LOG_LEVEL":        logLevel,
		"RATE_LIMIT_RPS":   "0",
	}
}

// AuthenticatedClient returns a client carrying the cached token for the identity,
// logging in (or registering) on first use.
func (h *Harness) AuthenticatedClient(ctx context.Context, username, password string) (*Client, error) {
	anon, creds, err := h.clients()
	if err != nil {
		return nil, err
	}
	token, err := creds.GetOrCreateToken(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return anon.WithBearer(token), nil
}

// DefaultClient is AuthenticatedClient for the configured test identity.
func (h *Harness) DefaultClient(ctx context.Context) (*Client, error) {
	return h.AuthenticatedClient(ctx, h.cfg.Username, h.cfg.Password)
}

func (h *Harness) clients() (*Client, *CredentialBootstrap, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.anon == nil {
		return nil, nil, errors.New("harness is not set up")
	}
	return h.anon, h.creds, nil
}

// Credentials returns the credential cache, nil before Setup.
func (h *Harness) Credentials() *CredentialBootstrap {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.creds
}

// Reset wipes the data and seeds the fixture again. Cached tokens stay valid: fixture IDs are stable.
func (h *Harness) Reset(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.resetter == nil {
		return errors.New("harness is not set up")
	}
	return h.resetter.ResetAndSeed(ctx, h.fixture)
}

// Fixture returns the seeded fixture.
func (h *Harness) Fixture() *fixture.Fixture { return h.fixture }

// DB returns the harness's database connection, nil in http reset mode.
func (h *Harness) DB() *database.DB {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.db
}

// BaseURL returns the server URL, empty before Setup.
func (h *Harness) BaseURL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.instance == nil {
		return ""
	}
	return h.instance.BaseURL()
}

// Output returns the captured server output.
func (h *Harness) Output() (string, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.instance == nil {
		return "", ""
	}
	return h.instance.Output()
}

// Teardown stops the server and releases the database. It runs whether or not Setup succeeded
// and later calls do nothing.
func (h *Harness) Teardown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.release(ctx)
}

func (h *Harness) release(ctx context.Context) error {
	if h.torn {
		return nil
	}
	h.torn = true

	var errs []error
	if h.instance != nil {
		if err := h.instance.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
		}
	}
	if err := h.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	if h.scratch != nil {
		if err := h.scratch.drop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if h.tempDir != "" {
		if err := os.RemoveAll(h.tempDir); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", h.tempDir, err))
		}
	}

	h.logger.Info("test harness stopped")
	return errors.Join(errs...)
}
