// Package config loads and validates environment-based configuration and the
// optional planner tunables file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jmisilo/hackyeah-2025-sub000/internal/planner"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: field %q: %s", e.Field, e.Message)
}

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	DBDSN        string
	GoogleAPIKey string
	Port         int

	// RouteCacheBackend selects the path-cache store: "memory" (default) or
	// "postgres".
	RouteCacheBackend string

	// TunablesPath optionally points at a YAML file overriding the planner's
	// default parameters.
	TunablesPath string
}

// Load reads and validates required environment variables.
// Returns a ConfigError for any missing or invalid value.
func Load() (*Config, error) {
	cfg := &Config{}

	dbDSN := os.Getenv("DB_DSN")
	if dbDSN == "" {
		return nil, &ConfigError{Field: "DB_DSN", Message: "required but not set"}
	}
	cfg.DBDSN = dbDSN

	cfg.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	// Not strictly required for bootstrap; planning degrades to warnings when
	// the path service is unreachable.

	cfg.RouteCacheBackend = os.Getenv("ROUTE_CACHE_BACKEND")
	if cfg.RouteCacheBackend == "" {
		cfg.RouteCacheBackend = "memory"
	}
	if cfg.RouteCacheBackend != "memory" && cfg.RouteCacheBackend != "postgres" {
		return nil, &ConfigError{Field: "ROUTE_CACHE_BACKEND", Message: `must be "memory" or "postgres"`}
	}

	cfg.TunablesPath = os.Getenv("PLANNER_TUNABLES")

	portStr := os.Getenv("PORT")
	if portStr == "" {
		cfg.Port = 8080
	} else {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, &ConfigError{Field: "PORT", Message: "must be a valid integer"}
		}
		if port < 1 || port > 65535 {
			return nil, &ConfigError{Field: "PORT", Message: "must be between 1 and 65535"}
		}
		cfg.Port = port
	}

	return cfg, nil
}

// Validate re-checks required fields on an already-constructed Config.
func (c *Config) Validate() error {
	var errs []error
	if c.DBDSN == "" {
		errs = append(errs, &ConfigError{Field: "DB_DSN", Message: "cannot be empty"})
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, &ConfigError{Field: "PORT", Message: "must be between 1 and 65535"})
	}
	return errors.Join(errs...)
}

// LoadTunables returns the planner parameters: the defaults, optionally
// overridden by a YAML file and checked against the struct's validation tags.
// An empty path yields the defaults unchanged.
func LoadTunables(path string) (planner.Tunables, error) {
	tun := planner.DefaultTunables()
	if path == "" {
		return tun, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return tun, fmt.Errorf("config: read tunables %q: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &tun); err != nil {
		return tun, fmt.Errorf("config: parse tunables %q: %w", path, err)
	}

	if err := validator.New().Struct(tun); err != nil {
		return tun, fmt.Errorf("config: validate tunables %q: %w", path, err)
	}

	return tun, nil
}
