// Package config loads questguild settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds process-wide settings. Command-line flags may override a few
// of these after parsing.
type Config struct {
	DBPath        string        `env:"QG_DB_PATH"`
	User          string        `env:"QG_USER"`
	Token         string        `env:"QG_TOKEN"`
	JWTSecret     string        `env:"QG_JWT_SECRET"`
	Timezone      string        `env:"QG_TIMEZONE" envDefault:"Local"`
	Workers       int           `env:"QG_WORKERS" envDefault:"4"`
	QueueSize     int           `env:"QG_QUEUE" envDefault:"64"`
	SyncURL       string        `env:"QG_SYNC_URL"`
	SyncTimeout   time.Duration `env:"QG_SYNC_TIMEOUT" envDefault:"5s"`
	ListenAddr    string        `env:"QG_LISTEN_ADDR" envDefault:":8089"`
	SweepInterval time.Duration `env:"QG_SWEEP_INTERVAL" envDefault:"1m"`
	OTelEndpoint  string        `env:"QG_OTEL_ENDPOINT"`
	OTelEnabled   bool          `env:"QG_OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment into a Config and fills derived defaults.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		path, err := DefaultDBPath()
		if err != nil {
			return Config{}, err
		}
		cfg.DBPath = path
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	return cfg, nil
}

// Location resolves the configured timezone used for quota calendars.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// DefaultDBPath returns the default database location.
func DefaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(homeDir, ".questguild.db"), nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
