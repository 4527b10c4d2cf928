// Package config loads SmartM runtime settings.
//
// Sources, highest precedence first:
//   - SMARTM_* environment variables (a .env file in the working directory
//     is loaded into the environment first)
//   - an optional config file (yaml, toml or json)
//   - built-in defaults
//
// Nested keys map to env vars by replacing dots with underscores, so
// storage.driver is read from SMARTM_STORAGE_DRIVER.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers accepted by storage.driver.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config is the full runtime configuration.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
}

// StorageConfig selects and locates the persistence backend.
type StorageConfig struct {
	// Driver is chosen once per process: "file" or "sqlite".
	Driver    string `mapstructure:"driver"`
	DataDir   string `mapstructure:"data_dir"`
	FileDir   string `mapstructure:"file_dir"`
	DBPath    string `mapstructure:"db_path"`
	LegacyDir string `mapstructure:"legacy_dir"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// SyncConfig tunes the simulated remote and the auto-sync clock.
type SyncConfig struct {
	Mode          string        `mapstructure:"mode"`
	Latency       time.Duration `mapstructure:"latency"`
	SuccessRate   float64       `mapstructure:"success_rate"`
	FrequencyUnit time.Duration `mapstructure:"frequency_unit"`
}

// NotifyConfig controls the periodic notification checks.
type NotifyConfig struct {
	Interval                time.Duration `mapstructure:"interval"`
	LowOperabilityThreshold float64       `mapstructure:"low_operability_threshold"`
}

// DashboardConfig configures the HTTP/websocket status surface.
type DashboardConfig struct {
	Port int `mapstructure:"port"`
}

// LogConfig configures zap and the optional rotated log file.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.file_dir", "")
	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.legacy_dir", "")
	v.SetDefault("storage.key_prefix", "smartm_")

	v.SetDefault("sync.mode", "online")
	v.SetDefault("sync.latency", 1500*time.Millisecond)
	v.SetDefault("sync.success_rate", 0.9)
	v.SetDefault("sync.frequency_unit", time.Minute)

	v.SetDefault("notify.interval", time.Hour)
	v.SetDefault("notify.low_operability_threshold", 50.0)

	v.SetDefault("dashboard.port", 8787)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", false)
}

// Load reads configuration from path (optional), the environment and defaults.
// An empty path skips the config file.
func Load(path string) (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("SMARTM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	cfg.resolvePaths()
	return &cfg
}

// resolvePaths derives unset storage paths from the data directory.
func (c *Config) resolvePaths() {
	if c.Storage.FileDir == "" {
		c.Storage.FileDir = filepath.Join(c.Storage.DataDir, "scratch")
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = filepath.Join(c.Storage.DataDir, "smartm.db")
	}
	if c.Storage.LegacyDir == "" {
		c.Storage.LegacyDir = c.Storage.FileDir
	}
}

// Validate rejects settings the rest of the program cannot honour.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", DriverFile, DriverSQLite, c.Storage.Driver))
	}
	if c.Sync.SuccessRate < 0 || c.Sync.SuccessRate > 1 {
		errs = append(errs, fmt.Errorf("sync.success_rate must be within [0,1], got %v", c.Sync.SuccessRate))
	}
	if c.Sync.Latency < 0 {
		errs = append(errs, fmt.Errorf("sync.latency must not be negative"))
	}
	if c.Sync.FrequencyUnit <= 0 {
		errs = append(errs, fmt.Errorf("sync.frequency_unit must be positive"))
	}
	if c.Notify.Interval <= 0 {
		errs = append(errs, fmt.Errorf("notify.interval must be positive"))
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Errorf("dashboard.port out of range: %d", c.Dashboard.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
