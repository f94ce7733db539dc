package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/pelletier/go-toml/v2"
)

// HarnessEnvironment configures the integration test harness.
//
// Values come from the environment. When HARNESS_CONFIG_FILE names a TOML file, its keys
// (see harnessFileKeys) fill in anything the environment does not set.
type HarnessEnvironment struct {

	// when set the harness uses an already running server and launches nothing
	ServerURL string `env:"TEST_SERVER_URL"`

	// process: launch the server binary as a child process
	// inprocess: run the server in a goroutine of the test binary
	Mode         string   `env:"HARNESS_MODE,default=inprocess"`
	ServerBinary string   `env:"HARNESS_SERVER_BINARY"`
	ServerArgs   []string `env:"HARNESS_SERVER_ARGS,separator=|"`
	WorkDir      string   `env:"HARNESS_WORKDIR"`
	Host         string   `env:"HARNESS_HOST,default=127.0.0.1"`

	// readiness
	ReadyAttempts  int           `env:"HARNESS_READY_ATTEMPTS,default=20"`
	ReadyInterval  time.Duration `env:"HARNESS_READY_INTERVAL,default=500ms"`
	ProbeTimeout   time.Duration `env:"HARNESS_PROBE_TIMEOUT,default=3s"`
	LivenessPath   string        `env:"HARNESS_LIVENESS_PATH,default=/health"`
	StopGrace      time.Duration `env:"HARNESS_STOP_GRACE,default=2s"`
	OutputLimit    int           `env:"HARNESS_OUTPUT_LIMIT,default=65536"`
	RequestTimeout time.Duration `env:"HARNESS_REQUEST_TIMEOUT,default=30s"`

	// sql: wipe and seed through a direct database connection
	// http: the server seeds itself at start-up and the harness confirms the identities over the API
	// empty: sql, or http when ServerURL is set
	ResetMode string `env:"HARNESS_RESET_MODE"`

	// database used by a launched server. An empty connection string means a scratch
	// sqlite file (sqlite) or a scratch database created through HARNESS_PG_ADMIN_URL (postgres).
	DBType      string `env:"HARNESS_DB_TYPE,default=sqlite"`
	DatabaseURL string `env:"HARNESS_DB_CONNECTION_STRING"`
	PGAdminURL  string `env:"HARNESS_PG_ADMIN_URL"`

	// test identity
	Username string `env:"HARNESS_USERNAME,default=admin"`
	Password string `env:"HARNESS_PASSWORD,default=admin"`

	JWTSecret        string `env:"HARNESS_JWT_SECRET,default=wiki-harness-integration-test-secret-0123456789"`
	EnableServerLogs bool   `env:"ENABLE_SERVER_LOGS,default=false"`

	ConfigFile string `env:"HARNESS_CONFIG_FILE"`
}

const (
	ModeProcess   = "process"
	ModeInProcess = "inprocess"
	ModeExternal  = "external"

	ResetModeSQL  = "sql"
	ResetModeHTTP = "http"
)

// harnessFileKeys maps TOML keys to the environment variables they stand in for.
var harnessFileKeys = map[string]string{
	"server_url":         "TEST_SERVER_URL",
	"mode":               "HARNESS_MODE",
	"server_binary":      "HARNESS_SERVER_BINARY",
	"server_args":        "HARNESS_SERVER_ARGS",
	"workdir":            "HARNESS_WORKDIR",
	"host":               "HARNESS_HOST",
	"ready_attempts":     "HARNESS_READY_ATTEMPTS",
	"ready_interval":     "HARNESS_READY_INTERVAL",
	"probe_timeout":      "HARNESS_PROBE_TIMEOUT",
	"liveness_path":      "HARNESS_LIVENESS_PATH",
	"stop_grace":         "HARNESS_STOP_GRACE",
	"output_limit":       "HARNESS_OUTPUT_LIMIT",
	"request_timeout":    "HARNESS_REQUEST_TIMEOUT",
	"reset_mode":         "HARNESS_RESET_MODE",
	"db_type":            "HARNESS_DB_TYPE",
	"db_connection":      "HARNESS_DB_CONNECTION_STRING",
	"pg_admin_url":       "HARNESS_PG_ADMIN_URL",
	"username":           "HARNESS_USERNAME",
	"password":           "HARNESS_PASSWORD",
	"jwt_secret":         "HARNESS_JWT_SECRET",
	"enable_server_logs": "ENABLE_SERVER_LOGS",
}

// NewHarnessConfig loads the harness configuration from the process environment.
func NewHarnessConfig() (*HarnessEnvironment, error) {
	return LoadHarnessConfig(os.Environ())
}

// LoadHarnessConfig loads the harness configuration from an explicit KEY=VALUE list.
func LoadHarnessConfig(environ []string) (*HarnessEnvironment, error) {
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if path := es["HARNESS_CONFIG_FILE"]; path != "" {
		fileValues, err := readHarnessFile(path)
		if err != nil {
			return nil, err
		}
		for key, value := range fileValues {
			if _, set := es[key]; !set {
				es[key] = value
			}
		}
	}

	var cfg HarnessEnvironment
	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if cfg.ServerURL != "" {
		cfg.Mode = ModeExternal
	}
	if cfg.ResetMode == "" {
		cfg.ResetMode = ResetModeSQL
		if cfg.Mode == ModeExternal {
			cfg.ResetMode = ResetModeHTTP
		}
	}

	if err := validateHarnessConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readHarnessFile reads a flat TOML table and returns its values keyed by environment variable name.
func readHarnessFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read harness config file %s: %w", path, err)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse harness config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		envKey, ok := harnessFileKeys[key]
		if !ok {
			return nil, fmt.Errorf("harness config file %s: unknown key %q", path, key)
		}
		switch v := value.(type) {
		case []any:
			parts := make([]string, 0, len(v))
			for _, p := range v {
				parts = append(parts, fmt.Sprint(p))
			}
			values[envKey] = strings.Join(parts, "|")
		default:
			values[envKey] = fmt.Sprint(v)
		}
	}
	return values, nil
}

func validateHarnessConfig(cfg *HarnessEnvironment) error {
	switch cfg.Mode {
	case ModeProcess:
		if cfg.ServerBinary == "" {
			return fmt.Errorf("HARNESS_SERVER_BINARY is required when HARNESS_MODE=%s", ModeProcess)
		}
	case ModeInProcess, ModeExternal:
	default:
		return fmt.Errorf("invalid HARNESS_MODE: %s (use %s or %s)", cfg.Mode, ModeProcess, ModeInProcess)
	}

	switch cfg.ResetMode {
	case ResetModeSQL:
		if cfg.Mode == ModeExternal && cfg.DatabaseURL == "" {
			return fmt.Errorf("HARNESS_RESET_MODE=sql with TEST_SERVER_URL needs HARNESS_DB_CONNECTION_STRING")
		}
	case ResetModeHTTP:
	default:
		return fmt.Errorf("invalid HARNESS_RESET_MODE: %s (use %s or %s)", cfg.ResetMode, ResetModeSQL, ResetModeHTTP)
	}

	if !validDBTypes[cfg.DBType] {
		return fmt.Errorf("invalid HARNESS_DB_TYPE: %s", cfg.DBType)
	}
	if cfg.DBType == DBTypePostgres && cfg.DatabaseURL == "" && cfg.PGAdminURL == "" && cfg.Mode != ModeExternal {
		return fmt.Errorf("HARNESS_DB_TYPE=postgres needs HARNESS_DB_CONNECTION_STRING or HARNESS_PG_ADMIN_URL")
	}

	if cfg.ReadyAttempts < 1 {
		return fmt.Errorf("HARNESS_READY_ATTEMPTS must be at least 1")
	}
	if cfg.ReadyInterval <= 0 || cfg.ProbeTimeout <= 0 || cfg.RequestTimeout <= 0 {
		return fmt.Errorf("HARNESS_READY_INTERVAL, HARNESS_PROBE_TIMEOUT and HARNESS_REQUEST_TIMEOUT must be positive")
	}
	if !strings.HasPrefix(cfg.LivenessPath, "/") {
		return fmt.Errorf("HARNESS_LIVENESS_PATH must start with /")
	}
	if len(cfg.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("HARNESS_JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if cfg.Username == "" || cfg.Password == "" {
		return fmt.Errorf("HARNESS_USERNAME and HARNESS_PASSWORD must not be empty")
	}

	return nil
}

// StartupBudget is the longest WaitUntilReady can take: every attempt times out and is followed by a sleep.
func (c *HarnessEnvironment) StartupBudget() time.Duration {
	return time.Duration(c.ReadyAttempts) * (c.ProbeTimeout + c.ReadyInterval)
}

// Summary lists the settings in a stable order for log output. The password and secret are omitted.
func (c *HarnessEnvironment) Summary() []string {
	lines := []string{
		"mode=" + c.Mode,
		"reset_mode=" + c.ResetMode,
		"db_type=" + c.DBType,
		"host=" + c.Host,
		"liveness_path=" + c.LivenessPath,
		fmt.Sprintf("ready_attempts=%d", c.ReadyAttempts),
		"ready_interval=" + c.ReadyInterval.String(),
		"username=" + c.Username,
	}
	if c.ServerURL != "" {
		lines = append(lines, "server_url="+c.ServerURL)
	}
	sort.Strings(lines)
	return lines
}
