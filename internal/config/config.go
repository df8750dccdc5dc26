// Package config loads icetrace settings from an optional YAML file overlaid
// by ICETRACE_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"icetrace/internal/blob"
	"icetrace/internal/core"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "ICETRACE"

// Config holds every runtime setting.
type Config struct {
	StorageDriver string `yaml:"storageDriver" envconfig:"STORAGE_DRIVER"`
	SQLitePath    string `yaml:"sqlitePath"    envconfig:"SQLITE_PATH"`
	PostgresDSN   string `yaml:"postgresDsn"   envconfig:"POSTGRES_DSN"`

	BlobDriver        string `yaml:"blobDriver"        envconfig:"BLOB_DRIVER"`
	BlobFSRoot        string `yaml:"blobFsRoot"        envconfig:"BLOB_FS_ROOT"`
	S3Bucket          string `yaml:"s3Bucket"          envconfig:"BLOB_S3_BUCKET"`
	S3Region          string `yaml:"s3Region"          envconfig:"BLOB_S3_REGION"`
	S3Endpoint        string `yaml:"s3Endpoint"        envconfig:"BLOB_S3_ENDPOINT"`
	S3AccessKeyID     string `yaml:"s3AccessKeyId"     envconfig:"BLOB_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `yaml:"s3SecretAccessKey" envconfig:"BLOB_S3_SECRET_ACCESS_KEY"`
	S3PathStyle       bool   `yaml:"s3PathStyle"       envconfig:"BLOB_S3_PATH_STYLE"`

	LogLevel  string `yaml:"logLevel"  envconfig:"LOG_LEVEL"`
	LogFormat string `yaml:"logFormat" envconfig:"LOG_FORMAT"`
	Debug     bool   `yaml:"debug"     envconfig:"DEBUG"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StorageDriver: string(core.StorageSQLite),
		SQLitePath:    "./icetrace.db",
		BlobDriver:    string(blob.DriverFilesystem),
		BlobFSRoot:    "./blobdata",
		S3Region:      "us-east-1",
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// Load builds a Config from defaults, the YAML file at path (if any) and the
// environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and log settings.
func (c *Config) Validate() error {
	switch core.StorageDriver(c.StorageDriver) {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("storage driver postgres requires a dsn")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	switch blob.Driver(c.BlobDriver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("blob driver s3 requires a bucket")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.BlobDriver)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// Storage maps the settings onto core.StorageConfig.
func (c *Config) Storage() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.StorageDriver),
		SQLitePath:  c.SQLitePath,
		PostgresDSN: c.PostgresDSN,
	}
}

// BlobConfig maps the settings onto blob.Config.
func (c *Config) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.BlobDriver),
		FSRoot: c.BlobFSRoot,
		S3: blob.S3Config{
			Bucket:          c.S3Bucket,
			Region:          c.S3Region,
			Endpoint:        c.S3Endpoint,
			AccessKeyID:     c.S3AccessKeyID,
			SecretAccessKey: c.S3SecretAccessKey,
			PathStyle:       c.S3PathStyle,
		},
	}
}

// SlogLevel parses LogLevel. Debug forces slog.LevelDebug.
func (c *Config) SlogLevel() (slog.Level, error) {
	if c.Debug {
		return slog.LevelDebug, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
