// Package config manages netsim daemon-wide configuration using koanf/v2.
//
// Supports YAML files and environment variables. Per-chassis
// protocol state (addresses, routes) is runtime state manipulated by
// shell commands, not static config; this package only covers ambient
// daemon defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds netsim's ambient daemon configuration.
type Config struct {
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Sim     SimConfig     `koanf:"sim"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// SimConfig holds the simulator-wide protocol defaults every new chassis
// is created with.
type SimConfig struct {
	// ArpTTL is the default lifetime of an ARP cache entry before it is
	// treated as stale.
	ArpTTL time.Duration `koanf:"arp_ttl"`

	// SwitchLearningTTL is the default lifetime of a switch's learned
	// MAC-to-port entry before it is evicted (default 5s).
	SwitchLearningTTL time.Duration `koanf:"switch_learning_ttl"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Sim: SimConfig{
			ArpTTL:            30 * time.Second,
			SwitchLearningTTL: 5 * time.Second,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for netsim configuration.
// Variables are named NETSIM_<section>_<key>, e.g., NETSIM_METRICS_ADDR.
const envPrefix = "NETSIM_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (NETSIM_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults. An empty path skips
// the file layer entirely, so the daemon can run config-free.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms NETSIM_METRICS_ADDR -> metrics.addr.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"metrics.addr":            defaults.Metrics.Addr,
		"metrics.path":            defaults.Metrics.Path,
		"log.level":               defaults.Log.Level,
		"log.format":              defaults.Log.Format,
		"sim.arp_ttl":             defaults.Sim.ArpTTL.String(),
		"sim.switch_learning_ttl": defaults.Sim.SwitchLearningTTL.String(),
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrInvalidArpTTL indicates sim.arp_ttl is non-positive.
	ErrInvalidArpTTL = errors.New("sim.arp_ttl must be > 0")

	// ErrInvalidSwitchLearningTTL indicates sim.switch_learning_ttl is non-positive.
	ErrInvalidSwitchLearningTTL = errors.New("sim.switch_learning_ttl must be > 0")
)

// Validate checks the configuration for logical errors.
func Validate(cfg *Config) error {
	if cfg.Sim.ArpTTL <= 0 {
		return ErrInvalidArpTTL
	}
	if cfg.Sim.SwitchLearningTTL <= 0 {
		return ErrInvalidSwitchLearningTTL
	}
	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
