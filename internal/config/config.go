package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	defaultAppName    = "Admin Console"
	defaultAPITimeout = 10 * time.Second
	maxAPITimeout     = 5 * time.Minute
	credentialsDir    = "admin-console"
	credentialsFile   = "credentials.json"
)

// Config is the client's configuration, loaded from environment variables
// (and an optional .env file) with github.com/caarlos0/env.
type Config struct {
	// Env selects DEV (console logs, verbose) or any other value (JSON logs).
	Env      string `env:"ENV"       envDefault:"DEV"`
	AppName  string `env:"APP_NAME"  envDefault:"Admin Console"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	API         APIConfig         `envPrefix:"API_"`
	Credentials CredentialsConfig `envPrefix:"CREDENTIALS_"`

	// MetricsAddr enables a prometheus listener for long-running commands, e.g. ":9102".
	MetricsAddr string `env:"METRICS_ADDR"`
}

// APIConfig points the transport at the backend.
type APIConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:8080/api/v1"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"10s"`
}

// Load reads .env when present and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, errors.Wrap(err, "[Load] godotenv.Load")
		}
	}
	return Parse()
}

// Parse reads configuration from the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, errors.Wrap(err, "[Parse] env.Parse")
	}
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Sanitize applies guardrails to values loaded from env.
func (c *Config) Sanitize() {
	c.Env = strings.ToUpper(strings.TrimSpace(c.Env))
	if c.Env == "" {
		c.Env = "DEV"
	}
	if strings.TrimSpace(c.AppName) == "" {
		c.AppName = defaultAppName
	}
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.Timeout <= 0 {
		c.API.Timeout = defaultAPITimeout
	}
	if c.API.Timeout > maxAPITimeout {
		c.API.Timeout = maxAPITimeout
	}
	c.Credentials.Sanitize()
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("[Validate] API_BASE_URL is required")
	}
	return c.Credentials.Validate()
}

func (c Config) GetEnv() string {
	return c.Env
}

func (c Config) IsDev() bool {
	return c.Env == "DEV"
}

func (c Config) GetAppName() string {
	return c.AppName
}

func (c Config) GetBaseURL() string {
	return c.API.BaseURL
}

// DefaultCredentialsPath returns <user config dir>/admin-console/credentials.json,
// falling back to the working directory when no config dir is known.
func DefaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".", credentialsDir, credentialsFile)
	}
	return filepath.Join(dir, credentialsDir, credentialsFile)
}
