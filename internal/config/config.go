package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LoggingConfig configures the mute action log file.
type LoggingConfig struct {
	// Enabled turns action logging on/off
	Enabled bool `yaml:"enabled,omitempty"`
	// Level controls logging verbosity: debug, info, warn, error
	Level string `yaml:"level,omitempty"`
	// File is the log file path (default: ~/.local/share/focusmute/actions.log)
	File string `yaml:"file,omitempty"`
	// MaxSizeMB is the maximum log file size before rotation (default: 10)
	MaxSizeMB int `yaml:"max_size_mb,omitempty"`
	// MaxFiles is the number of rotated files to keep (default: 3)
	MaxFiles int `yaml:"max_files,omitempty"`
}

// HistoryConfig configures the SQLite transition history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
	// Retention is how long transitions are kept. Zero keeps everything.
	Retention time.Duration `yaml:"retention"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Config holds the application configuration.
type Config struct {
	TickInterval        time.Duration `yaml:"tick_interval"`
	ActivityWindowTicks int           `yaml:"activity_window_ticks"`
	VolumeTolerance     float64       `yaml:"volume_tolerance"`
	StateFile           string        `yaml:"state_file,omitempty"`
	Backend             string        `yaml:"backend"`
	LogLevel            string        `yaml:"log_level"`
	LockHotkey          string        `yaml:"lock_hotkey,omitempty"`
	Logging             LoggingConfig `yaml:"logging,omitempty"`
	History             HistoryConfig `yaml:"history"`
	Metrics             MetricsConfig `yaml:"metrics"`
}

func DefaultConfig() *Config {
	return &Config{
		TickInterval:        100 * time.Millisecond,
		ActivityWindowTicks: 30,
		VolumeTolerance:     0.001,
		Backend:             "auto",
		LogLevel:            "info",
		LockHotkey:          "Mod4-Mod1-m", // Super+Alt+M
		History: HistoryConfig{
			Enabled:   true,
			Retention: 30 * 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9464",
		},
	}
}

// GetStateFile returns the policy file path with ~ expanded, or "" when the
// store default should be used.
func (c *Config) GetStateFile() string {
	if c == nil {
		return ""
	}
	return expandHome(c.StateFile)
}

// GetLoggingConfig returns the logging configuration with defaults applied.
func (c *Config) GetLoggingConfig() LoggingConfig {
	if c == nil {
		return LoggingConfig{}
	}
	cfg := c.Logging
	if cfg.File == "" {
		cfg.File = filepath.Join(dataHome(), "focusmute", "actions.log")
	} else {
		cfg.File = expandHome(cfg.File)
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxFiles == 0 {
		cfg.MaxFiles = 3
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	return cfg
}

// GetHistoryConfig returns the history configuration with defaults applied.
func (c *Config) GetHistoryConfig() HistoryConfig {
	if c == nil {
		return HistoryConfig{}
	}
	cfg := c.History
	if cfg.Path == "" {
		cfg.Path = filepath.Join(dataHome(), "focusmute", "history.sqlite")
	} else {
		cfg.Path = expandHome(cfg.Path)
	}
	return cfg
}

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	if c.TickInterval < 10*time.Millisecond {
		return &ValidationError{Path: "tick_interval", Err: fmt.Errorf("tick_interval must be >= 10ms")}
	}
	if c.ActivityWindowTicks < 0 {
		return &ValidationError{Path: "activity_window_ticks", Err: fmt.Errorf("activity_window_ticks must be >= 0")}
	}
	if c.VolumeTolerance <= 0 || c.VolumeTolerance >= 1 {
		return &ValidationError{Path: "volume_tolerance", Err: fmt.Errorf("volume_tolerance must be between 0 and 1 (exclusive)")}
	}
	switch c.Backend {
	case "auto", "windows", "x11", "fake":
	default:
		return &ValidationError{Path: "backend", Err: fmt.Errorf("backend must be one of: auto, windows, x11, fake")}
	}
	if !validLevel(c.LogLevel) {
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	if c.Logging.Level != "" && !validLevel(c.Logging.Level) {
		return &ValidationError{Path: "logging.level", Err: fmt.Errorf("logging.level must be one of: debug, info, warning, error")}
	}
	if c.Logging.MaxSizeMB < 0 {
		return &ValidationError{Path: "logging.max_size_mb", Err: fmt.Errorf("max_size_mb must be >= 0")}
	}
	if c.Logging.MaxFiles < 0 {
		return &ValidationError{Path: "logging.max_files", Err: fmt.Errorf("max_files must be >= 0")}
	}
	if c.History.Retention < 0 {
		return &ValidationError{Path: "history.retention", Err: fmt.Errorf("retention must be >= 0")}
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Listen) == "" {
		return &ValidationError{Path: "metrics.listen", Err: fmt.Errorf("metrics.listen is required when metrics are enabled")}
	}
	return nil
}

func validLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.Getenv("HOME")
	}
	if home == "" {
		// Last resort fallback - use current directory
		home = "."
	}
	return filepath.Join(home, ".local", "share")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
