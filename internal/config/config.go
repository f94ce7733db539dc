package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/Netflix/go-env"
	"golang.org/x/crypto/bcrypt"
)

// Environment variables with defaults
type ServerEnvironment struct {

	// http server settings
	Environment           string        `env:"ENVIRONMENT,default=dev"`
	Host                  string        `env:"HOST,default=0.0.0.0"`
	Port                  int           `env:"PORT,default=8080"`
	LogLevel              string        `env:"LOG_LEVEL,default=debug"`
	SuppressLogging       bool          `env:"SUPPRESS_LOGGING,default=false"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	ReadTimeout           time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=15s"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	RateLimitRPS          int32         `env:"RATE_LIMIT_RPS,default=100"`
	RateLimitBurst        int32         `env:"RATE_LIMIT_BURST,default=200"`
	MaxRequestBodySize    int64         `env:"MAX_REQUEST_BODY_SIZE,default=1048576"`

	// the port handed over by a test harness can be taken between allocation and bind,
	// so binding is retried a few times before giving up
	ListenRetries    int           `env:"LISTEN_RETRIES,default=3"`
	ListenRetryDelay time.Duration `env:"LISTEN_RETRY_DELAY,default=200ms"`

	// database settings
	DBType              string        `env:"DB_TYPE,default=sqlite"`
	DatabaseURL         string        `env:"DB_CONNECTION_STRING,required=true"`
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS,default=4"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS,default=0"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME,default=60m"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME,default=30m"`
	DBConnectTimeout    time.Duration `env:"DB_CONNECT_TIMEOUT,default=5s"`
	DatabasePingTimeout time.Duration `env:"DATABASE_PING_TIMEOUT,default=10s"`
	SkipMigrations      bool          `env:"SKIP_MIGRATIONS,default=false"`
	SeedTestData        bool          `env:"SEED_TEST_DATA,default=false"`

	// auth settings
	JWTSecret   string `env:"JWT_SECRET,required=true"`
	JWTIssuer   string `env:"JWT_ISSUER,default=wiki-server"`
	JWTAudience string `env:"JWT_AUDIENCE,default=wiki-server"`
	JWTExpires  int    `env:"JWT_EXPIRES,default=60"` // minutes
	BcryptCost  int    `env:"BCRYPT_COST,default=10"`

	// Model provider settings. The server only checks they are present;
	// tests pass placeholder values.
	ChatModel       string `env:"CHAT_MODEL,required=true"`
	ChatAPIKey      string `env:"CHAT_API_KEY,required=true"`
	Endpoint        string `env:"ENDPOINT,required=true"`
	ModelProvider   string `env:"MODEL_PROVIDER,default=OpenAI"`
	EmbeddingModel  string `env:"EMBEDDING_MODEL"`
	EmbeddingAPIKey string `env:"EMBEDDING_API_KEY"`
}

const minJWTSecretLength = 32

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"prod":    true,
	"staging": true,
}

var validDBTypes = map[string]bool{
	DBTypeSQLite:   true,
	DBTypePostgres: true,
}

const (
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"
)

// NewServerConfig loads environment variables and returns a ServerEnvironment struct that contains the values
func NewServerConfig() (*ServerEnvironment, error) {
	return LoadServerConfig(os.Environ())
}

// LoadServerConfig is NewServerConfig for an explicit KEY=VALUE list.
// The test harness uses it to configure an in-process server without touching the process environment.
func LoadServerConfig(environ []string) (*ServerEnvironment, error) {
	var cfg ServerEnvironment

	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validateConfig checks for required env variables
func validateConfig(cfg *ServerEnvironment) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT: %s", cfg.Environment)
	}
	if !validDBTypes[cfg.DBType] {
		return fmt.Errorf("invalid DB_TYPE: %s (use %s or %s)", cfg.DBType, DBTypeSQLite, DBTypePostgres)
	}

	// Validate database pool configuration
	if cfg.DBMaxConnections < 1 {
		return fmt.Errorf("DB_MAX_CONNECTIONS must be at least 1")
	}
	if cfg.DBMinConnections < 0 {
		return fmt.Errorf("DB_MIN_CONNECTIONS must be 0 or greater")
	}
	if cfg.DBMinConnections > cfg.DBMaxConnections {
		return fmt.Errorf("DB_MIN_CONNECTIONS (%d) cannot be greater than DB_MAX_CONNECTIONS (%d)",
			cfg.DBMinConnections, cfg.DBMaxConnections)
	}

	if len(cfg.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if cfg.JWTExpires < 1 {
		return fmt.Errorf("JWT_EXPIRES must be at least 1 minute, got %d", cfg.JWTExpires)
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cfg.BcryptCost)
	}

	if u, err := url.Parse(cfg.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("ENDPOINT must be an absolute URL, got %q", cfg.Endpoint)
	}

	if cfg.ListenRetries < 1 {
		return fmt.Errorf("LISTEN_RETRIES must be at least 1")
	}

	return nil
}

// JWTTTL is the token lifetime.
func (c *ServerEnvironment) JWTTTL() time.Duration {
	return time.Duration(c.JWTExpires) * time.Minute
}

// Address is the host:port the server listens on.
func (c *ServerEnvironment) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
