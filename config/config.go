/*
Package config loads runtime settings for the server and the batch CLI.

SOURCES (later wins):
  1. Defaults
  2. .env file in the working directory (optional, via godotenv)
  3. Process environment
  4. Command-line flags, applied by the caller after Load

ENVIRONMENT:
  INCENTIVE_PORT         HTTP port (default 8080)
  INCENTIVE_DB_DRIVER    sqlite | postgres | memory (default sqlite)
  INCENTIVE_DB_PATH      SQLite file (default incentives.db)
  DATABASE_URL           Postgres DSN, required for the postgres driver
  INCENTIVE_ROSTER_FILE  YAML roster, built-in roster when empty
  INCENTIVE_SCHEME_FILE  YAML or JSON commission scheme, defaults when empty
  INCENTIVE_LOG_LEVEL    zerolog level (default info)
  INCENTIVE_LOG_PRETTY   console output when true
  INCENTIVE_CORS_ORIGINS comma-separated allowed origins
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port        int
	DBDriver    string
	DBPath      string
	DatabaseURL string
	RosterFile  string
	SchemeFile  string
	LogLevel    string
	LogPretty   bool
	CORSOrigins []string
}

func Default() Config {
	return Config{
		Port:        8080,
		DBDriver:    DriverSQLite,
		DBPath:      "incentives.db",
		LogLevel:    "info",
		CORSOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
	}
}

// Load reads the given .env files (".env" when none are named) and the
// environment on top of the defaults. Missing .env files are not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if v, ok := lookup("INCENTIVE_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid INCENTIVE_PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v, ok := lookup("INCENTIVE_DB_DRIVER"); ok && v != "" {
		cfg.DBDriver = strings.ToLower(v)
	}
	if v, ok := lookup("INCENTIVE_DB_PATH"); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := lookup("DATABASE_URL"); ok {
		cfg.DatabaseURL = v
	}
	if v, ok := lookup("INCENTIVE_ROSTER_FILE"); ok {
		cfg.RosterFile = v
	}
	if v, ok := lookup("INCENTIVE_SCHEME_FILE"); ok {
		cfg.SchemeFile = v
	}
	if v, ok := lookup("INCENTIVE_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup("INCENTIVE_LOG_PRETTY"); ok && v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid INCENTIVE_LOG_PRETTY %q: %w", v, err)
		}
		cfg.LogPretty = pretty
	}
	if v, ok := lookup("INCENTIVE_CORS_ORIGINS"); ok && v != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg, nil
}

// Validate checks the combined settings. Callers run it once flags have
// been applied on top of the environment.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown INCENTIVE_DB_DRIVER %q", c.DBDriver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	return nil
}
