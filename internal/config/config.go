package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BackendType selects the storage backend
type BackendType string

const (
	BackendMemory    BackendType = "memory"
	BackendLocalFile BackendType = "localfile"
	BackendSQLite    BackendType = "sqlite"
	BackendPostgres  BackendType = "postgres"
	BackendRemote    BackendType = "remote"
	BackendHybrid    BackendType = "hybrid"
)

// IsValid reports whether b names a supported backend
func (b BackendType) IsValid() bool {
	switch b {
	case BackendMemory, BackendLocalFile, BackendSQLite, BackendPostgres, BackendRemote, BackendHybrid:
		return true
	}
	return false
}

// BackupConfig configures the S3 export destination
type BackupConfig struct {
	S3Bucket    string `yaml:"s3_bucket,omitempty" json:"s3_bucket,omitempty"`
	S3Region    string `yaml:"s3_region,omitempty" json:"s3_region,omitempty"`
	S3Endpoint  string `yaml:"s3_endpoint,omitempty" json:"s3_endpoint,omitempty"` // MinIO and friends
	S3PathStyle bool   `yaml:"s3_path_style,omitempty" json:"s3_path_style,omitempty"`
}

// Config holds user preferences
type Config struct {
	Backend        BackendType `yaml:"backend" json:"backend"`
	DataDir        string      `yaml:"data_dir" json:"data_dir"`               // localfile directory, hybrid cache
	DBPath         string      `yaml:"db_path" json:"db_path"`                 // sqlite file
	DatabaseURL    string      `yaml:"database_url" json:"database_url"`       // postgres DSN
	DatabaseDriver string      `yaml:"database_driver" json:"database_driver"` // postgres or pgx
	ServerURL      string      `yaml:"server_url" json:"server_url"`           // remote and hybrid

	Currency      string `yaml:"currency" json:"currency"`             // Display symbol
	ConfirmDelete bool   `yaml:"confirm_delete" json:"confirm_delete"` // Require confirmation for delete

	// Logging configuration
	LogLevel   string `yaml:"log_level" json:"log_level"`     // Log level: DEBUG, INFO, WARN, ERROR
	LogFile    string `yaml:"log_file" json:"log_file"`       // Path to log file
	LogConsole bool   `yaml:"log_console" json:"log_console"` // Enable console logging

	Backup BackupConfig `yaml:"backup,omitempty" json:"backup,omitempty"`
}

// Dir returns the settings directory (~/.ironledger)
func Dir() (string, error) {
	if dir := os.Getenv("IRONLEDGER_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".ironledger"), nil
}

// DefaultConfig returns default settings with environment overrides applied
func DefaultConfig() *Config {
	base, _ := Dir()
	join := func(parts ...string) string {
		if base == "" {
			return ""
		}
		return filepath.Join(append([]string{base}, parts...)...)
	}

	cfg := &Config{
		Backend:        BackendLocalFile,
		DataDir:        join("data"),
		DBPath:         join("ledger.db"),
		DatabaseDriver: "postgres",
		ServerURL:      "http://localhost:8080",
		Currency:       "Rs",
		ConfirmDelete:  true,
		LogLevel:       "INFO",
		LogFile:        join("logs", "ironledger.log"),
	}
	cfg.applyEnv()
	return cfg
}

// applyEnv overrides fields from IRONLEDGER_* variables
func (c *Config) applyEnv() {
	c.Backend = BackendType(getEnv("IRONLEDGER_BACKEND", string(c.Backend)))
	c.DataDir = getEnv("IRONLEDGER_DATA_DIR", c.DataDir)
	c.DBPath = getEnv("IRONLEDGER_DB_PATH", c.DBPath)
	c.DatabaseURL = getEnv("IRONLEDGER_DATABASE_URL", c.DatabaseURL)
	c.DatabaseDriver = getEnv("IRONLEDGER_DATABASE_DRIVER", c.DatabaseDriver)
	c.ServerURL = getEnv("IRONLEDGER_SERVER_URL", c.ServerURL)
	c.Currency = getEnv("IRONLEDGER_CURRENCY", c.Currency)
	c.LogLevel = getEnv("IRONLEDGER_LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("IRONLEDGER_LOG_FILE", c.LogFile)
	c.LogConsole = getEnvBool("IRONLEDGER_LOG_CONSOLE", c.LogConsole)
	c.Backup.S3Bucket = getEnv("IRONLEDGER_S3_BUCKET", c.Backup.S3Bucket)
	c.Backup.S3Region = getEnv("IRONLEDGER_S3_REGION", c.Backup.S3Region)
	c.Backup.S3Endpoint = getEnv("IRONLEDGER_S3_ENDPOINT", c.Backup.S3Endpoint)
	c.Backup.S3PathStyle = getEnvBool("IRONLEDGER_S3_PATH_STYLE", c.Backup.S3PathStyle)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// LoadDotEnv loads .env from the working directory when present.
// Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Path returns the location of config.yaml
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads config from ~/.ironledger/config.yaml. Environment variables
// override file values.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile loads config from path, returning defaults when it does not exist
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnv()

	return cfg, nil
}

// Save saves config to ~/.ironledger/config.yaml
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes config to path
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var errs []error
	if !c.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	switch c.Backend {
	case BackendLocalFile, BackendHybrid:
		if c.DataDir == "" {
			errs = append(errs, errors.New("data_dir is required"))
		}
	case BackendSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("db_path is required"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database_url is required"))
		}
	}
	if c.Backend == BackendRemote || c.Backend == BackendHybrid {
		if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
			errs = append(errs, fmt.Errorf("server_url %q must be an http(s) URL", c.ServerURL))
		}
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "pgx" {
		errs = append(errs, fmt.Errorf("database_driver %q must be postgres or pgx", c.DatabaseDriver))
	}
	return errors.Join(errs...)
}

// Set assigns a field by its yaml key
func (c *Config) Set(key, value string) error {
	var err error
	switch key {
	case "backend":
		c.Backend = BackendType(value)
	case "data_dir":
		c.DataDir = value
	case "db_path":
		c.DBPath = value
	case "database_url":
		c.DatabaseURL = value
	case "database_driver":
		c.DatabaseDriver = value
	case "server_url":
		c.ServerURL = strings.TrimRight(value, "/")
	case "currency":
		c.Currency = value
	case "confirm_delete":
		c.ConfirmDelete, err = strconv.ParseBool(value)
	case "log_level":
		c.LogLevel = strings.ToUpper(value)
	case "log_file":
		c.LogFile = value
	case "log_console":
		c.LogConsole, err = strconv.ParseBool(value)
	case "backup.s3_bucket":
		c.Backup.S3Bucket = value
	case "backup.s3_region":
		c.Backup.S3Region = value
	case "backup.s3_endpoint":
		c.Backup.S3Endpoint = value
	case "backup.s3_path_style":
		c.Backup.S3PathStyle, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return c.Validate()
}
