package config

import (
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage backends selectable with STORAGE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Short code alphabets selectable with SHORTENER_CODE_ALPHABET.
const (
	AlphabetHex    = "hex"
	AlphabetBase62 = "base62"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Shortener     ShortenerConfig
	Redis         RedisConfig
	App           AppConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" required:"true"`
	Host            string        `envconfig:"SERVER_HOST" required:"true"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" required:"true"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" required:"true"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" required:"true"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" required:"true"`

	// Empty allows every origin.
	CORSAllowedOrigins []string `envconfig:"SERVER_CORS_ALLOWED_ORIGINS"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// DatabaseConfig selects the link store and, for PostgreSQL, how to reach it.
// Connection fields are only checked when Backend is postgres.
type DatabaseConfig struct {
	Backend     string `envconfig:"STORAGE_BACKEND" default:"postgres"`
	Host        string `envconfig:"DB_HOST"`
	Port        string `envconfig:"DB_PORT" default:"5432"`
	User        string `envconfig:"DB_USER"`
	Password    string `envconfig:"DB_PASSWORD"`
	Name        string `envconfig:"DB_NAME"`
	SSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns    int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns    int32  `envconfig:"DB_MIN_CONNS" default:"2"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendPostgres:
	default:
		return fmt.Errorf("invalid storage backend: %s (must be one of: postgres, memory)", c.Backend)
	}

	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MinConns <= 0 {
		return fmt.Errorf("min connections must be positive")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)", c.MinConns, c.MaxConns)
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("invalid SSL mode: %s (must be one of: disable, require, verify-ca, verify-full)", c.SSLMode)
	}
	return nil
}

// ConnectionString returns the PostgreSQL keyword/value connection string used by pgxpool.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the postgres:// form of the connection, as the migrator expects.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// MaxDefaultTTLDays is the largest day count a time.Duration can hold.
const MaxDefaultTTLDays = int(math.MaxInt64 / int64(24*time.Hour))

// ShortenerConfig holds the link engine settings.
type ShortenerConfig struct {
	// RedirectDomain is prefixed verbatim to a short code, e.g. "https://sho.rt/r/".
	RedirectDomain string `envconfig:"SHORTENER_REDIRECT_DOMAIN" required:"true"`
	DefaultTTLDays int    `envconfig:"SHORTENER_DEFAULT_TTL_DAYS" default:"365"`
	APIKey         string `envconfig:"SHORTENER_API_KEY" required:"true"`
	CodeAlphabet   string `envconfig:"SHORTENER_CODE_ALPHABET" default:"hex"`
	CodeMaxRetries int    `envconfig:"SHORTENER_CODE_MAX_RETRIES" default:"3"`
}

// Validate validates the shortener configuration.
func (c *ShortenerConfig) Validate() error {
	u, err := url.Parse(c.RedirectDomain)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("redirect domain must be an absolute http(s) URL, got %q", c.RedirectDomain)
	}
	if c.DefaultTTLDays <= 0 {
		return fmt.Errorf("default TTL days must be positive")
	}
	if c.DefaultTTLDays > MaxDefaultTTLDays {
		return fmt.Errorf("default TTL days must be at most %d", MaxDefaultTTLDays)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("API key cannot be empty")
	}
	if c.CodeAlphabet != AlphabetHex && c.CodeAlphabet != AlphabetBase62 {
		return fmt.Errorf("invalid code alphabet: %s (must be one of: hex, base62)", c.CodeAlphabet)
	}
	if c.CodeMaxRetries < 1 {
		return fmt.Errorf("code max retries must be at least 1")
	}
	return nil
}

// DefaultTTL is the expiry horizon applied when a link is created without one.
func (c *ShortenerConfig) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLDays) * 24 * time.Hour
}

// RedisConfig configures the optional cache in front of the link store.
type RedisConfig struct {
	Enabled   bool          `envconfig:"REDIS_ENABLED" default:"false"`
	Addr      string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password  string        `envconfig:"REDIS_PASSWORD"`
	DB        int           `envconfig:"REDIS_DB" default:"0"`
	MissTTL   time.Duration `envconfig:"REDIS_MISS_TTL" default:"1m"`
	KeyPrefix string        `envconfig:"REDIS_KEY_PREFIX" default:"shortlinks"`
}

// Validate validates the redis configuration.
func (c *RedisConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return fmt.Errorf("address cannot be empty when redis is enabled")
	}
	if c.DB < 0 {
		return fmt.Errorf("db index cannot be negative")
	}
	if c.MissTTL <= 0 {
		return fmt.Errorf("miss TTL must be positive")
	}
	if c.KeyPrefix == "" {
		return fmt.Errorf("key prefix cannot be empty")
	}
	return nil
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" required:"true"`   // development, staging, production, test
	LogLevel    string `envconfig:"LOG_LEVEL" required:"true"` // debug, info, warn, error
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// ObservabilityConfig names the running service in logs and the health check.
type ObservabilityConfig struct {
	ServiceName    string `envconfig:"SERVICE_NAME" default:"shortlinks"`
	ServiceVersion string `envconfig:"SERVICE_VERSION" default:"dev"`
}

// Validate validates the observability configuration.
func (c *ObservabilityConfig) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	return nil
}

type section interface {
	Validate() error
}

// Load loads configuration from environment variables only.
// .env loading happens in the app package, not here.
func Load() (*Config, error) {
	cfg := &Config{}

	sections := []struct {
		name    string
		section section
	}{
		{"Server", &cfg.Server},
		{"Database", &cfg.Database},
		{"Shortener", &cfg.Shortener},
		{"Redis", &cfg.Redis},
		{"App", &cfg.App},
		{"Observability", &cfg.Observability},
	}

	for _, s := range sections {
		if err := envconfig.Process("", s.section); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
		if err := s.section.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", s.name, err)
		}
	}

	return cfg, nil
}
