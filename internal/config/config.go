// Package config loads qcref settings from an optional YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all qcref configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
	Seed    SeedConfig    `yaml:"seed"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig configures the web server. Timeouts are Go duration strings.
type HTTPConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // memory, sqlite, postgres
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig selects where committed uploads are archived.
type BlobConfig struct {
	Driver string   `yaml:"driver"` // none, fs, memory, s3
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// S3Config configures the S3 archive backend.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
}

// SeedConfig configures the spreadsheet import.
type SeedConfig struct {
	Token          string `yaml:"token"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

var (
	validStorageDrivers = []string{"memory", "sqlite", "postgres"}
	validBlobDrivers    = []string{"none", "fs", "memory", "s3"}
	validLogLevels      = []string{"debug", "info", "warn", "error"}
	validLogFormats     = []string{"json", "console"}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8000",
			ReadTimeout:     "10s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "20s",
		},
		Storage: StorageConfig{
			Driver:      "sqlite",
			SQLitePath:  "qcref.db",
			PostgresDSN: "postgres://localhost/qcref?sslmode=disable",
		},
		Blob: BlobConfig{
			Driver: "none",
			FSRoot: "./uploads",
			S3:     S3Config{Region: "us-east-1"},
		},
		Seed: SeedConfig{
			MaxUploadBytes: 32 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from path. A missing file yields the defaults.
// Environment variables override file values and the result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("QCREF_HTTP_ADDR", &c.HTTP.Addr)
	setString("QCREF_STORAGE_DRIVER", &c.Storage.Driver)
	setString("QCREF_SQLITE_PATH", &c.Storage.SQLitePath)
	setString("QCREF_POSTGRES_DSN", &c.Storage.PostgresDSN)
	setString("QCREF_BLOB_DRIVER", &c.Blob.Driver)
	setString("QCREF_BLOB_FS_ROOT", &c.Blob.FSRoot)
	setString("QCREF_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	setString("QCREF_BLOB_S3_REGION", &c.Blob.S3.Region)
	setString("QCREF_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	setString("QCREF_BLOB_S3_ACCESS_KEY_ID", &c.Blob.S3.AccessKeyID)
	setString("QCREF_BLOB_S3_SECRET_ACCESS_KEY", &c.Blob.S3.SecretAccessKey)
	setString("QCREF_LOG_LEVEL", &c.Logging.Level)
	setString("QCREF_LOG_FORMAT", &c.Logging.Format)
	if v, ok := os.LookupEnv("SEED_TOKEN"); ok {
		c.Seed.Token = v
	}
	if v := os.Getenv("QCREF_BLOB_S3_PATH_STYLE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Blob.S3.PathStyle = b
		}
	}
	if v := os.Getenv("QCREF_SEED_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Seed.MaxUploadBytes = n
		}
	}
}

// Validate checks enumerated values, timeouts and limits.
func (c *Config) Validate() error {
	if err := oneOf("storage.driver", c.Storage.Driver, validStorageDrivers); err != nil {
		return err
	}
	if err := oneOf("blob.driver", c.Blob.Driver, validBlobDrivers); err != nil {
		return err
	}
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		return fmt.Errorf("blob.s3.bucket is required when blob.driver is s3")
	}
	if err := oneOf("logging.level", strings.ToLower(c.Logging.Level), validLogLevels); err != nil {
		return err
	}
	if err := oneOf("logging.format", c.Logging.Format, validLogFormats); err != nil {
		return err
	}
	for name, raw := range map[string]string{
		"http.read_timeout":     c.HTTP.ReadTimeout,
		"http.write_timeout":    c.HTTP.WriteTimeout,
		"http.shutdown_timeout": c.HTTP.ShutdownTimeout,
	} {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return fmt.Errorf("invalid %s: %q", name, raw)
		}
	}
	if c.Seed.MaxUploadBytes <= 0 {
		return fmt.Errorf("seed.max_upload_bytes must be positive")
	}
	return nil
}

func oneOf(name, value string, valid []string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %s (valid: %v)", name, value, valid)
}

// ReadTimeoutDuration returns the parsed HTTP read timeout.
func (h HTTPConfig) ReadTimeoutDuration() time.Duration { return mustDuration(h.ReadTimeout) }

// WriteTimeoutDuration returns the parsed HTTP write timeout.
func (h HTTPConfig) WriteTimeoutDuration() time.Duration { return mustDuration(h.WriteTimeout) }

// ShutdownTimeoutDuration returns the parsed graceful shutdown timeout.
func (h HTTPConfig) ShutdownTimeoutDuration() time.Duration { return mustDuration(h.ShutdownTimeout) }

// mustDuration is only called on validated configs; invalid input yields zero.
func mustDuration(raw string) time.Duration {
	d, _ := time.ParseDuration(raw)
	return d
}
