package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/punchclock/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the punchclock configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with modified values highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	if cfg.Tracker.Email == "" {
		yellow := color.New(color.FgYellow)
		_, _ = yellow.Fprintln(os.Stdout, "⚠️  tracker.email is empty; the agent will refuse to start")
	}

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		_, _ = red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(os.Stdout, cfg, getDefaultConfig())

		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
	}

	return nil
}

// getDefaultConfig creates a configuration with default values
func getDefaultConfig() *config.Config {
	v := viper.New()
	config.SetDefaults(v)

	var cfg config.Config
	_ = v.Unmarshal(&cfg)

	return &cfg
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	return unknownKeys(v.AllKeys()), nil
}

// unknownKeys returns the keys not present in the defaults, sorted.
func unknownKeys(keys []string) []string {
	v := viper.New()
	config.SetDefaults(v)
	valid := make(map[string]bool)
	for _, key := range v.AllKeys() {
		valid[key] = true
	}

	unknown := []string{}
	for _, key := range keys {
		if !valid[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(w io.Writer, cfg, defaultCfg *config.Config) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	d := func(name string, value, defaultValue interface{}) {
		dumpField(w, name, value, defaultValue, yellow, green)
	}

	_, _ = cyan.Fprintln(w, "\n[server]")
	d("  base_url", cfg.Server.BaseURL, defaultCfg.Server.BaseURL)
	d("  request_timeout", cfg.Server.RequestTimeout, defaultCfg.Server.RequestTimeout)

	_, _ = cyan.Fprintln(w, "\n[tracker]")
	d("  email", cfg.Tracker.Email, defaultCfg.Tracker.Email)
	d("  stop_grace", cfg.Tracker.StopGrace, defaultCfg.Tracker.StopGrace)
	d("  idle_threshold", cfg.Tracker.IdleThreshold, defaultCfg.Tracker.IdleThreshold)
	d("  idle_buffer", cfg.Tracker.IdleBuffer, defaultCfg.Tracker.IdleBuffer)
	d("  display_tick", cfg.Tracker.DisplayTick, defaultCfg.Tracker.DisplayTick)
	d("  poll_interval", cfg.Tracker.PollInterval, defaultCfg.Tracker.PollInterval)
	d("  break_max_attempts", cfg.Tracker.BreakMaxAttempts, defaultCfg.Tracker.BreakMaxAttempts)
	d("  delivered_cache_size", cfg.Tracker.DeliveredCacheSize, defaultCfg.Tracker.DeliveredCacheSize)

	_, _ = cyan.Fprintln(w, "\n[storage]")
	d("  type", cfg.Storage.Type, defaultCfg.Storage.Type)
	_, _ = cyan.Fprintln(w, "  [storage.bolt]")
	d("    path", cfg.Storage.Bolt.Path, defaultCfg.Storage.Bolt.Path)
	_, _ = cyan.Fprintln(w, "  [storage.redis]")
	d("    host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host)
	d("    port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port)
	d("    password", redactPassword(cfg.Storage.Redis.Password), redactPassword(defaultCfg.Storage.Redis.Password))
	d("    db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB)
	d("    pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize)
	d("    min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns)
	d("    dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout)
	d("    read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout)
	d("    write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout)
	d("    key_prefix", cfg.Storage.Redis.KeyPrefix, defaultCfg.Storage.Redis.KeyPrefix)

	_, _ = cyan.Fprintln(w, "\n[logging]")
	d("  level", cfg.Logging.Level, defaultCfg.Logging.Level)
	d("  format", cfg.Logging.Format, defaultCfg.Logging.Format)

	_, _ = cyan.Fprintln(w, "\n[metrics]")
	d("  enabled", cfg.Metrics.Enabled, defaultCfg.Metrics.Enabled)
	d("  bind_address", cfg.Metrics.BindAddress, defaultCfg.Metrics.BindAddress)
	d("  port", cfg.Metrics.Port, defaultCfg.Metrics.Port)
}

// dumpField prints a field with color if it differs from default
func dumpField(w io.Writer, name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	isDefault := reflect.DeepEqual(value, defaultValue)

	valueStr := fmt.Sprintf("%v", value)

	if isDefault {
		_, _ = defaultColor.Fprintf(w, "%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Fprintf(w, "%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
