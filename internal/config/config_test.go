package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.TickInterval != 100*time.Millisecond {
		t.Fatalf("expected 100ms tick, got %v", cfg.TickInterval)
	}
	if cfg.ActivityWindowTicks != 30 {
		t.Fatalf("expected activity window 30, got %d", cfg.ActivityWindowTicks)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Files) != 0 {
		t.Fatalf("expected no files, got %v", res.Files)
	}
	if res.Config.Backend != "auto" {
		t.Fatalf("expected backend auto, got %q", res.Config.Backend)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "# empty\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.VolumeTolerance != 0.001 {
		t.Fatalf("expected default tolerance, got %v", res.Config.VolumeTolerance)
	}
	if len(res.Files) != 1 {
		t.Fatalf("expected one loaded file, got %v", res.Files)
	}
}

func TestLoadFromPath_ValuesAndExplain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, strings.Join([]string{
		"tick_interval: 250ms",
		"activity_window_ticks: 12",
		"backend: FAKE",
		"logging:",
		"  enabled: true",
		"  max_files: 5",
		"history:",
		"  retention: 48h",
		"",
	}, "\n"))

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.TickInterval != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", cfg.TickInterval)
	}
	if cfg.ActivityWindowTicks != 12 {
		t.Fatalf("expected 12, got %d", cfg.ActivityWindowTicks)
	}
	if cfg.Backend != "fake" {
		t.Fatalf("expected backend normalized to fake, got %q", cfg.Backend)
	}
	if !cfg.Logging.Enabled || cfg.Logging.MaxFiles != 5 {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.History.Retention != 48*time.Hour || !cfg.History.Enabled {
		t.Fatalf("unexpected history config: %+v", cfg.History)
	}

	val, src, err := Explain(res, "tick_interval")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != "250ms" {
		t.Fatalf("expected explain 250ms, got %#v", val)
	}
	if src.Kind != SourceFile || src.Line != 1 {
		t.Fatalf("expected file source on line 1, got %#v", src)
	}

	val, src, err = Explain(res, "volume_tolerance")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != 0.001 || src.Kind != SourceDefault {
		t.Fatalf("expected default tolerance, got %#v from %#v", val, src)
	}

	if _, _, err := Explain(res, "logging.nope"); err == nil {
		t.Fatalf("expected unknown path error")
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "unknown_key: 1\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "unknown_key") && !strings.Contains(err.Error(), "field") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if !strings.Contains(err.Error(), filepath.Base(path)) {
		t.Fatalf("expected error to include file path, got %v", err)
	}
}

func TestLoadFromPath_IncludeDirectoryOrderAndMainOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.d", "10-base.yaml"), "activity_window_ticks: 5\nlog_level: debug\n")
	writeFile(t, filepath.Join(dir, "config.d", "20-override.yaml"), "activity_window_ticks: 6\n")
	writeFile(t, filepath.Join(dir, "config.d", "notes.txt"), "ignored: true\n")

	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "include: config.d\nactivity_window_ticks: 7\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.ActivityWindowTicks != 7 {
		t.Fatalf("expected main file to win, got %d", res.Config.ActivityWindowTicks)
	}
	if res.Config.LogLevel != "debug" {
		t.Fatalf("expected log_level from include, got %q", res.Config.LogLevel)
	}
	if len(res.Files) != 3 {
		t.Fatalf("expected 3 files, got %v", res.Files)
	}
	if filepath.Base(res.Files[0]) != "10-base.yaml" || filepath.Base(res.Files[2]) != "config.yaml" {
		t.Fatalf("unexpected load order: %v", res.Files)
	}

	_, src, err := Explain(res, "log_level")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if filepath.Base(src.File) != "10-base.yaml" {
		t.Fatalf("expected log_level from 10-base.yaml, got %#v", src)
	}
}

func TestLoadFromPath_IncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "include: b.yaml\n")
	writeFile(t, filepath.Join(dir, "b.yaml"), "include: a.yaml\n")

	_, err := LoadFromPath(filepath.Join(dir, "a.yaml"))
	if err == nil || !strings.Contains(err.Error(), "include cycle") {
		t.Fatalf("expected include cycle error, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrorHasSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "backend: pulse\n")

	_, err := LoadFromPath(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Path != "backend" {
		t.Fatalf("expected path backend, got %q", verr.Path)
	}
	if verr.Source.Kind != SourceFile || verr.Source.Line != 1 {
		t.Fatalf("expected file source, got %#v", verr.Source)
	}
	if !strings.Contains(err.Error(), ":1:") {
		t.Fatalf("expected line info in %q", err.Error())
	}
}

func TestLoadFromPath_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "tick_interval: 200ms\nbackend: x11\n")

	t.Setenv("FOCUSMUTE_TICK_INTERVAL", "50ms")
	t.Setenv("FOCUSMUTE_HISTORY_PATH", "/var/tmp/h.sqlite")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.TickInterval != 50*time.Millisecond {
		t.Fatalf("expected env tick interval, got %v", res.Config.TickInterval)
	}
	if res.Config.Backend != "x11" {
		t.Fatalf("expected file backend, got %q", res.Config.Backend)
	}
	if res.Config.History.Path != "/var/tmp/h.sqlite" || !res.Config.History.Enabled {
		t.Fatalf("unexpected history config %+v", res.Config.History)
	}

	_, src, err := Explain(res, "tick_interval")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if src.Kind != SourceEnv || src.Name != "FOCUSMUTE_TICK_INTERVAL" {
		t.Fatalf("expected env source, got %#v", src)
	}
}

func TestLoadFromPath_InvalidEnvReportsVariable(t *testing.T) {
	t.Setenv("FOCUSMUTE_TICK_INTERVAL", "1ms")

	_, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "FOCUSMUTE_TICK_INTERVAL") {
		t.Fatalf("expected env var in %q", err.Error())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"tick too short", func(c *Config) { c.TickInterval = time.Millisecond }, "tick_interval"},
		{"negative window", func(c *Config) { c.ActivityWindowTicks = -1 }, "activity_window_ticks"},
		{"tolerance zero", func(c *Config) { c.VolumeTolerance = 0 }, "volume_tolerance"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad logging level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"negative max files", func(c *Config) { c.Logging.MaxFiles = -1 }, "logging.max_files"},
		{"negative retention", func(c *Config) { c.History.Retention = -time.Hour }, "history.retention"},
		{"metrics without listen", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = " " }, "metrics.listen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Path != tt.path {
				t.Fatalf("expected path %q, got %q", tt.path, verr.Path)
			}
		})
	}
}

func TestGetLoggingAndHistoryDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")

	cfg := DefaultConfig()
	logCfg := cfg.GetLoggingConfig()
	if logCfg.File != filepath.Join("/data", "focusmute", "actions.log") {
		t.Fatalf("unexpected log file %q", logCfg.File)
	}
	if logCfg.MaxSizeMB != 10 || logCfg.MaxFiles != 3 || logCfg.Level != "info" {
		t.Fatalf("unexpected logging defaults %+v", logCfg)
	}

	hist := cfg.GetHistoryConfig()
	if hist.Path != filepath.Join("/data", "focusmute", "history.sqlite") {
		t.Fatalf("unexpected history path %q", hist.Path)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg.StateFile = "~/muted.toml"
	if got := cfg.GetStateFile(); got != filepath.Join(home, "muted.toml") {
		t.Fatalf("expected ~ expansion, got %q", got)
	}
}
