package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Tracker TrackerConfig `mapstructure:"tracker"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig defines how to reach the time-tracking service
type ServerConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	RequestTimeout string `mapstructure:"request_timeout"`
}

// TrackerConfig defines session tracking behaviour
type TrackerConfig struct {
	Email              string `mapstructure:"email"`
	StopGrace          string `mapstructure:"stop_grace"`     // Grace period sent with stop
	IdleThreshold      string `mapstructure:"idle_threshold"` // Inactivity before the user counts as idle
	IdleBuffer         string `mapstructure:"idle_buffer"`    // Leading inactivity never counted as idle
	DisplayTick        string `mapstructure:"display_tick"`
	PollInterval       string `mapstructure:"poll_interval"`
	BreakMaxAttempts   int    `mapstructure:"break_max_attempts"`
	DeliveredCacheSize int    `mapstructure:"delivered_cache_size"`
}

// StorageConfig defines local storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "memory", "bolt" or "redis"
	Bolt  BoltConfig  `mapstructure:"bolt"`
	Redis RedisConfig `mapstructure:"redis"`
}

// BoltConfig defines the local database file
type BoltConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BindAddress string `mapstructure:"bind_address"`
	Port        int    `mapstructure:"port"`
}

// DefaultPath returns the per-user configuration file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "punchclock.yaml"
	}
	return filepath.Join(dir, "punchclock", "config.yaml")
}

// DefaultStatePath returns the per-user bolt database location.
func DefaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "punchclock.db"
	}
	return filepath.Join(dir, "punchclock", "state.db")
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("PUNCHCLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// An explicit path that does not exist surfaces as an os error, not
		// viper.ConfigFileNotFoundError.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.base_url", "http://localhost:4000")
	v.SetDefault("server.request_timeout", "10s")

	// Tracker defaults
	v.SetDefault("tracker.email", "")
	v.SetDefault("tracker.stop_grace", "7m")
	v.SetDefault("tracker.idle_threshold", "30s")
	v.SetDefault("tracker.idle_buffer", "1s")
	v.SetDefault("tracker.display_tick", "1s")
	v.SetDefault("tracker.poll_interval", "30s")
	v.SetDefault("tracker.break_max_attempts", 10)
	v.SetDefault("tracker.delivered_cache_size", 256)

	// Storage defaults
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.bolt.path", DefaultStatePath())
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 4)
	v.SetDefault("storage.redis.min_idle_conns", 1)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key_prefix", "punchclock")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.bind_address", "127.0.0.1")
	v.SetDefault("metrics.port", 9464)
}

// validate validates the configuration
func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Server.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server base_url: %q", cfg.Server.BaseURL)
	}

	durations := map[string]string{
		"server.request_timeout": cfg.Server.RequestTimeout,
		"tracker.stop_grace":     cfg.Tracker.StopGrace,
		"tracker.idle_threshold": cfg.Tracker.IdleThreshold,
		"tracker.idle_buffer":    cfg.Tracker.IdleBuffer,
		"tracker.display_tick":   cfg.Tracker.DisplayTick,
		"tracker.poll_interval":  cfg.Tracker.PollInterval,
	}
	for key, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s: must not be negative", key)
		}
	}

	if cfg.Tracker.BreakMaxAttempts <= 0 {
		return fmt.Errorf("invalid tracker.break_max_attempts: %d", cfg.Tracker.BreakMaxAttempts)
	}

	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "memory"
	case "memory", "redis":
	case "bolt":
		if cfg.Storage.Bolt.Path == "" {
			return fmt.Errorf("storage.bolt.path is required for bolt storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", cfg.Metrics.Port)
	}

	return nil
}

// ParseDuration parses a duration string with a fallback
func ParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
