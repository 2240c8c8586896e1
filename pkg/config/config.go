// Package config loads zeilumara settings from .zeilumara.yaml,
// ZEILUMARA_* environment variables and command-line flags via viper.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/daviddao/zeilumara/pkg/notify"
	"github.com/daviddao/zeilumara/pkg/recur"
)

// EnvPrefix is prepended to every environment override, with dots in the
// key replaced by underscores: notify.max_pending is
// ZEILUMARA_NOTIFY_MAX_PENDING.
const EnvPrefix = "ZEILUMARA"

// FileName is the config file name without extension.
const FileName = ".zeilumara"

// ErrNoConfigFile is returned by Watch when viper has no file to watch.
var ErrNoConfigFile = errors.New("no config file in use")

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NotifyConfig holds the trigger caps and projection horizon.
type NotifyConfig struct {
	MaxPending   int           `mapstructure:"max_pending"`
	MaxPerSeries int           `mapstructure:"max_per_series"`
	Horizon      time.Duration `mapstructure:"horizon"`
}

// Limits converts to the scheduler's caps.
func (n NotifyConfig) Limits() notify.Limits {
	return notify.Limits{MaxPending: n.MaxPending, MaxPerSeries: n.MaxPerSeries}
}

// ClockConfig controls the live clock refresh.
type ClockConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Config holds all runtime configuration.
type Config struct {
	DB     string       `mapstructure:"db"`
	Addr   string       `mapstructure:"addr"`
	Log    LogConfig    `mapstructure:"log"`
	Notify NotifyConfig `mapstructure:"notify"`
	Clock  ClockConfig  `mapstructure:"clock"`
}

// SetDefaults registers the built-in defaults with viper.
func SetDefaults() {
	viper.SetDefault("db", "zeilumara.db")
	viper.SetDefault("addr", ":8090")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("notify.max_pending", notify.DefaultMaxPending)
	viper.SetDefault("notify.max_per_series", notify.DefaultMaxPerSeries)
	viper.SetDefault("notify.horizon", recur.DefaultHorizon.String())
	viper.SetDefault("clock.interval", "1s")
}

// SetupEnv maps ZEILUMARA_* environment variables onto config keys.
func SetupEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags. A pending cap below
// the default per-series cap lowers the per-series cap with it.
func Load() (Config, error) {
	SetDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Notify.MaxPerSeries == notify.DefaultMaxPerSeries && cfg.Notify.MaxPending < cfg.Notify.MaxPerSeries {
		cfg.Notify.MaxPerSeries = cfg.Notify.MaxPending
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the scheduler and clock cannot run with.
func (c Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("db path must not be empty")
	}
	if c.Notify.MaxPending < 1 {
		return fmt.Errorf("notify.max_pending must be at least 1, got %d", c.Notify.MaxPending)
	}
	if c.Notify.MaxPerSeries < 1 || c.Notify.MaxPerSeries > c.Notify.MaxPending {
		return fmt.Errorf("notify.max_per_series must be in [1, %d], got %d", c.Notify.MaxPending, c.Notify.MaxPerSeries)
	}
	if c.Notify.Horizon <= 0 {
		return fmt.Errorf("notify.horizon must be positive, got %s", c.Notify.Horizon)
	}
	if c.Clock.Interval <= 0 {
		return fmt.Errorf("clock.interval must be positive, got %s", c.Clock.Interval)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Watch calls onChange with the reloaded configuration whenever the config
// file changes on disk.
func Watch(onChange func(Config, error)) error {
	if viper.ConfigFileUsed() == "" {
		return ErrNoConfigFile
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(Load())
	})
	viper.WatchConfig()
	return nil
}

// WriteFile saves the current settings (defaults included) to path. It
// refuses to overwrite an existing file.
func WriteFile(path string) error {
	SetDefaults()
	if err := viper.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// NewLogger builds the process logger described by c.
func NewLogger(c LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch c.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", c.Format)
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
