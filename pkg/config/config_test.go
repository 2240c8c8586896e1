package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// resetViper clears all viper state between tests to avoid cross-contamination.
func resetViper() {
	viper.Reset()
}

func TestLoad_Defaults(t *testing.T) {
	resetViper()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"DB", cfg.DB, "zeilumara.db"},
		{"Addr", cfg.Addr, ":8090"},
		{"Log.Level", cfg.Log.Level, "info"},
		{"Log.Format", cfg.Log.Format, "text"},
		{"Notify.MaxPending", cfg.Notify.MaxPending, 64},
		{"Notify.MaxPerSeries", cfg.Notify.MaxPerSeries, 50},
		{"Notify.Horizon", cfg.Notify.Horizon, 365 * 24 * time.Hour},
		{"Clock.Interval", cfg.Clock.Interval, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		envKey string
		envVal string
		field  func(Config) any
		want   any
	}{
		{"ZEILUMARA_DB", "/tmp/z.db", func(c Config) any { return c.DB }, "/tmp/z.db"},
		{"ZEILUMARA_ADDR", "127.0.0.1:9000", func(c Config) any { return c.Addr }, "127.0.0.1:9000"},
		{"ZEILUMARA_LOG_FORMAT", "json", func(c Config) any { return c.Log.Format }, "json"},
		{"ZEILUMARA_NOTIFY_MAX_PENDING", "32", func(c Config) any { return c.Notify.MaxPending }, 32},
		{"ZEILUMARA_NOTIFY_HORIZON", "720h", func(c Config) any { return c.Notify.Horizon }, 720 * time.Hour},
		{"ZEILUMARA_CLOCK_INTERVAL", "250ms", func(c Config) any { return c.Clock.Interval }, 250 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			resetViper()
			SetupEnv()
			t.Setenv(tt.envKey, tt.envVal)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() returned unexpected error: %v", err)
			}
			if got := tt.field(cfg); got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		key string
		val any
	}{
		{"db", ""},
		{"notify.max_pending", 0},
		{"notify.max_per_series", 0},
		{"notify.max_per_series", 65},
		{"notify.horizon", "-1h"},
		{"clock.interval", "0s"},
		{"log.level", "chatty"},
		{"log.format", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			resetViper()
			viper.Set(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%v: expected validation error", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_SeriesDefaultFollowsPendingCap(t *testing.T) {
	resetViper()
	SetupEnv()
	t.Setenv("ZEILUMARA_NOTIFY_MAX_PENDING", "32")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with only max_pending lowered: %v", err)
	}
	if cfg.Notify.MaxPending != 32 || cfg.Notify.MaxPerSeries != 32 {
		t.Fatalf("limits = %d/%d, want 32/32", cfg.Notify.MaxPending, cfg.Notify.MaxPerSeries)
	}

	resetViper()
	SetupEnv()
	t.Setenv("ZEILUMARA_NOTIFY_MAX_PER_SERIES", "40")
	if _, err := Load(); err == nil {
		t.Fatal("explicit max_per_series above max_pending: expected validation error")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	resetViper()
	path := filepath.Join(t.TempDir(), ".zeilumara.yaml")
	data := "db: events.db\nnotify:\n  max_pending: 20\n  max_per_series: 10\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DB != "events.db" || cfg.Notify.MaxPending != 20 || cfg.Notify.MaxPerSeries != 10 || cfg.Log.Level != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if got := cfg.Notify.Limits(); got.MaxPending != 20 || got.MaxPerSeries != 10 {
		t.Fatalf("Limits() = %+v", got)
	}
	if cfg.Addr != ":8090" {
		t.Fatalf("unset keys keep defaults, got addr %q", cfg.Addr)
	}
}

func TestWriteFile(t *testing.T) {
	resetViper()
	path := filepath.Join(t.TempDir(), ".zeilumara.yaml")
	if err := WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "max_pending: 64") {
		t.Fatalf("written config missing defaults:\n%s", data)
	}
	if err := WriteFile(path); err == nil {
		t.Fatal("second WriteFile should refuse to overwrite")
	}
}

func TestWatch_NoFile(t *testing.T) {
	resetViper()
	if err := Watch(func(Config, error) {}); !errors.Is(err, ErrNoConfigFile) {
		t.Fatalf("err = %v, want ErrNoConfigFile", err)
	}
}

func TestWatch_Reloads(t *testing.T) {
	resetViper()
	path := filepath.Join(t.TempDir(), ".zeilumara.yaml")
	if err := os.WriteFile(path, []byte("addr: \":8090\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatal(err)
	}

	changes := make(chan Config, 16)
	if err := Watch(func(c Config, err error) {
		if err == nil {
			changes <- c
		}
	}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("addr: \":9999\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Addr == ":9999" {
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "event", "abc")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"event":"abc"`) {
		t.Fatalf("unexpected json output: %s", out)
	}

	if _, err := NewLogger(LogConfig{Level: "info", Format: "xml"}, &buf); err == nil {
		t.Fatal("unknown format should fail")
	}
}
