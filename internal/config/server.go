package config

import (
	"errors"
	"fmt"
	"os"
)

// ServerConfig holds the settings of ironledger-server, read from the environment
type ServerConfig struct {
	Port           string
	Store          BackendType // postgres, sqlite or memory
	DatabaseURL    string
	DatabaseDriver string
	DBPath         string
	AllowReset     bool
	LogLevel       string
	LogFile        string
}

// LoadServer reads server settings. DATABASE_URL falls back to POSTGRES_URL
// and STORAGE_URL.
func LoadServer() (*ServerConfig, error) {
	LoadDotEnv()

	cfg := &ServerConfig{
		Port:           getEnv("PORT", "8080"),
		Store:          BackendType(getEnv("IRONLEDGER_SERVER_STORE", string(BackendPostgres))),
		DatabaseURL:    firstEnv("DATABASE_URL", "POSTGRES_URL", "STORAGE_URL"),
		DatabaseDriver: getEnv("DATABASE_DRIVER", "postgres"),
		DBPath:         getEnv("IRONLEDGER_SERVER_DB_PATH", "ironledger-server.db"),
		AllowReset:     getEnvBool("IRONLEDGER_ALLOW_RESET", false),
		LogLevel:       getEnv("IRONLEDGER_LOG_LEVEL", "INFO"),
		LogFile:        os.Getenv("IRONLEDGER_LOG_FILE"),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "postgres://localhost:5432/ironledger?sslmode=disable"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once
func (c *ServerConfig) Validate() error {
	var errs []error
	switch c.Store {
	case BackendPostgres, BackendSQLite, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("server store %q must be postgres, sqlite or memory", c.Store))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "pgx" {
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER %q must be postgres or pgx", c.DatabaseDriver))
	}
	return errors.Join(errs...)
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
