// Package config loads the server configuration from the environment
// (PROMO_ prefix, optionally seeded from a .env file) and the game policy
// from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix.
const Prefix = "PROMO"

// Spin sources.
const (
	RNGCrypto  = "crypto"
	RNGAudited = "audited"
)

// Config holds every setting of the server.
type Config struct {
	// --- Application ---
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// --- HTTP ---
	Host           string        `envconfig:"HOST" default:"0.0.0.0"`
	Port           int           `envconfig:"PORT" default:"5000"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS" default:"*"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	// StaticDir, when set, is served at / with index.html as the fallback.
	StaticDir string `envconfig:"STATIC_DIR"`

	// --- Database ---
	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBDSN    string `envconfig:"DB_DSN" default:"promo.db"`

	// --- Upstream promotions service ---
	UpstreamURL        string        `envconfig:"UPSTREAM_URL"`
	UpstreamAPIKey     string        `envconfig:"UPSTREAM_API_KEY"`
	UpstreamTimeout    time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"15s"`
	UpstreamMaxRetries int           `envconfig:"UPSTREAM_MAX_RETRIES" default:"3"`

	// --- Secrets ---
	SecretsService      string `envconfig:"SECRETS_SERVICE" default:"promo-games"`
	SecretsFallbackPath string `envconfig:"SECRETS_FALLBACK_PATH"`
	// ReceiptSecret overrides the keyring-held receipt signing key.
	ReceiptSecret string        `envconfig:"RECEIPT_SECRET"`
	ReceiptTTL    time.Duration `envconfig:"RECEIPT_TTL" default:"24h"`

	// RNG selects the spin source: "crypto", or "audited" for the HMAC
	// seed stream with per-spin seeds recorded on each spin.
	RNG string `envconfig:"RNG" default:"crypto"`

	// --- Sessions ---
	SessionIdleTTL time.Duration `envconfig:"SESSION_IDLE_TTL" default:"30m"`
	PruneSchedule  string        `envconfig:"PRUNE_SCHEDULE" default:"@every 5m"`

	// --- Policy ---
	PolicyFile string `envconfig:"POLICY_FILE"`
	Policy     Policy `ignored:"true"`
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Audited reports whether spins draw from the recorded seed stream.
func (c *Config) Audited() bool { return c.RNG == RNGAudited }

// IsProduction reports whether Env names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PROMO_PORT must be in 1..65535, got %d", c.Port)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("PROMO_REQUEST_TIMEOUT must be > 0")
	}
	if c.UpstreamMaxRetries < 0 {
		return fmt.Errorf("PROMO_UPSTREAM_MAX_RETRIES must be >= 0")
	}
	if c.ReceiptTTL <= 0 {
		return fmt.Errorf("PROMO_RECEIPT_TTL must be > 0")
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("PROMO_SESSION_IDLE_TTL must be > 0")
	}
	switch strings.ToLower(c.DBDriver) {
	case "sqlite", "sqlite3", "postgres", "postgresql", "pgx":
	default:
		return fmt.Errorf("PROMO_DB_DRIVER %q is not supported", c.DBDriver)
	}
	switch c.RNG {
	case RNGCrypto, RNGAudited:
	default:
		return fmt.Errorf("PROMO_RNG must be %q or %q, got %q", RNGCrypto, RNGAudited, c.RNG)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	return nil
}

// Load reads envFile (ignored when it does not exist), then the
// environment, then the policy file, and validates the result.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.Policy = DefaultPolicy()
	if cfg.PolicyFile != "" {
		p, err := LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
		cfg.Policy = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Usage prints the recognised environment variables.
func Usage() error {
	var cfg Config
	return envconfig.Usage(Prefix, &cfg)
}
