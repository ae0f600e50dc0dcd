package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
)

const maxWalkDepth = 25

// Config represents the strata configuration from strata.yaml.
type Config struct {
	// Schema is the path of the YAML schema file.
	Schema  string `mapstructure:"schema" yaml:"schema"`
	Dialect string `mapstructure:"dialect" yaml:"dialect"`

	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Keys     KeysConfig     `mapstructure:"keys" yaml:"keys"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is the database/sql driver name. Empty derives it from the
	// dialect.
	Driver        string        `mapstructure:"driver" yaml:"driver"`
	DSN           string        `mapstructure:"dsn" yaml:"dsn"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold" yaml:"slow_threshold"`
}

// KeysConfig holds primary key generation settings.
type KeysConfig struct {
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// LoadConfig discovers and loads configuration with precedence
// flags > env > config file > defaults.
//
// Returns the loaded config and the path of the config file, empty if none
// was found.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("schema", "strata-schema.yaml")
	v.SetDefault("dialect", dialect.Generic)

	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.slow_threshold", 100*time.Millisecond)

	v.SetDefault("keys.cache_size", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for strata.yaml or strata.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	dir := cwd
	for range maxWalkDepth {
		for _, name := range []string{"strata.yaml", "strata.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

// Registry loads the configured schema.
func (c *Config) Registry() (*schema.Registry, error) {
	if c.Schema == "" {
		return nil, SchemaError("loading schema", fmt.Errorf("no schema file configured"))
	}
	reg, err := schema.LoadFile(c.Schema)
	if err != nil {
		return nil, SchemaError("loading schema", err)
	}
	return reg, nil
}

// Adapter returns the adapter of the configured dialect.
func (c *Config) Adapter() (dialect.Adapter, error) {
	a, err := dialect.Get(c.Dialect)
	if err != nil {
		return nil, ConfigError("resolving dialect", err)
	}
	return a, nil
}

// Logger returns a logger writing to w at the configured level and format.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, ConfigError("parsing log level", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.Log.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, ConfigError("parsing log format", fmt.Errorf("unknown format %q", c.Log.Format))
	}
}
