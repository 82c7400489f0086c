// Package config loads projecttracker configuration from an optional YAML
// file overlaid with PROJECTTRACKER_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables that override file values.
const EnvPrefix = "PROJECTTRACKER_"

// Lookup resolves a dotted configuration key to its string value, or "" when unset.
type Lookup interface {
	Get(key string) string
}

// Config holds the complete projecttracker configuration.
type Config struct {
	Storage   StorageConfig     `koanf:"storage"`
	Resources map[string]string `koanf:"resources"`
	Log       LogConfig         `koanf:"log"`
	Metrics   MetricsConfig     `koanf:"metrics"`
	JWT       JWTConfig         `koanf:"jwt"`

	k *koanf.Koanf
}

// StorageConfig selects and parameterises the document backend.
type StorageConfig struct {
	Driver        string `koanf:"driver"` // fs|memory|s3|sqlite|postgres
	FSRoot        string `koanf:"fs_root"`
	S3Bucket      string `koanf:"s3_bucket"`
	S3Region      string `koanf:"s3_region"`
	S3Endpoint    string `koanf:"s3_endpoint"`
	S3Prefix      string `koanf:"s3_prefix"`
	S3PathStyle   bool   `koanf:"s3_path_style"`
	SQLitePath    string `koanf:"sqlite_path"`
	PostgresDSN   Secret `koanf:"postgres_dsn"`
	CreateMissing *bool  `koanf:"create_missing"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json|console
}

// MetricsConfig controls the store operation metrics.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// JWTConfig carries token settings consumed by an outer API layer.
type JWTConfig struct {
	Secret Secret `koanf:"secret"`
	Issuer string `koanf:"issuer"`
	Name   string `koanf:"name"`
}

var storageDrivers = map[string]struct{}{
	"fs": {}, "memory": {}, "s3": {}, "sqlite": {}, "postgres": {},
}

// Get returns the raw string value at key. Values set only through defaults
// are not visible here; use the typed fields for those.
func (c *Config) Get(key string) string {
	if c == nil || c.k == nil {
		return ""
	}
	return c.k.String(key)
}

// ResourceKey returns the storage key of the named resource.
func (c *Config) ResourceKey(resource string) string {
	if v := c.Get("resources." + resource); v != "" {
		return v
	}
	return resource + ".json"
}

// CreateMissing reports whether absent resources load as empty collections.
func (c *Config) CreateMissing() bool {
	if c.Storage.CreateMissing == nil {
		return true
	}
	return *c.Storage.CreateMissing
}

// Validate checks enumerated values and driver requirements.
func (c *Config) Validate() error {
	if _, ok := storageDrivers[c.Storage.Driver]; !ok {
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "s3" && c.Storage.S3Bucket == "" {
		return fmt.Errorf("storage.s3_bucket required for s3 driver")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "fs"
	}
	if cfg.Storage.FSRoot == "" {
		cfg.Storage.FSRoot = "./data"
	}
	if cfg.Storage.S3Region == "" {
		cfg.Storage.S3Region = "us-east-1"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "projecttracker.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.JWT.Name == "" {
		cfg.JWT.Name = "projecttracker"
	}
}
