// Package actionlog writes a human-readable, rotating log of every mute,
// unmute, volume and policy change.
package actionlog

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/1broseidon/focusmute/internal/engine"
)

// LogLevel defines the logging verbosity.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ActionType tags each log line.
type ActionType string

const (
	ActionMute   ActionType = "MUTE"
	ActionUnmute ActionType = "UNMUTE"
	ActionVolume ActionType = "VOLUME"
	ActionPolicy ActionType = "POLICY"
	ActionLock   ActionType = "LOCK"
)

// Volume changes are frequent while a user drags a slider.
func (a ActionType) level() LogLevel {
	if a == ActionVolume {
		return LevelDebug
	}
	return LevelInfo
}

var transitionActions = map[engine.Action]ActionType{
	engine.ActionMute:   ActionMute,
	engine.ActionUnmute: ActionUnmute,
	engine.ActionVolume: ActionVolume,
}

// LogConfig holds configuration for the action logger.
type LogConfig struct {
	Enabled   bool
	Level     LogLevel
	FilePath  string
	MaxSizeMB int
	MaxFiles  int
}

// Logger appends action lines to a size-rotated file. A nil or disabled
// Logger drops everything.
type Logger struct {
	mu          sync.Mutex
	file        *os.File
	config      LogConfig
	currentSize int64
}

var _ engine.Sink = (*Logger)(nil)

// NewLogger opens cfg.FilePath for appending, creating parent directories.
func NewLogger(cfg LogConfig) (*Logger, error) {
	l := &Logger{config: cfg}
	if !cfg.Enabled {
		return l, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) open() error {
	f, err := os.OpenFile(l.config.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", l.config.FilePath, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	l.file = f
	l.currentSize = info.Size()
	return nil
}

// Transition records an engine transition.
func (l *Logger) Transition(t engine.Transition) {
	action, ok := transitionActions[t.Action]
	if !ok {
		return
	}
	details := map[string]interface{}{
		"pid":    t.PID,
		"reason": string(t.Reason),
	}
	if t.Action == engine.ActionVolume {
		details["volume"] = fmt.Sprintf("%.2f", t.Volume)
	}
	l.Log(action, t.App, details)
}

// Log writes one line. app may be empty for actions that are not tied to an
// application.
func (l *Logger) Log(action ActionType, app string, details map[string]interface{}) {
	if l == nil || !l.config.Enabled || action.level() < l.config.Level {
		return
	}
	line := formatLine(time.Now(), action, app, details)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}
	if limit := int64(l.config.MaxSizeMB) << 20; limit > 0 && l.currentSize >= limit {
		if err := l.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "actionlog: rotate: %v\n", err)
			if l.file == nil {
				return
			}
		}
	}

	n, err := l.file.WriteString(line)
	l.currentSize += int64(n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "actionlog: write: %v\n", err)
	}
}

// formatLine renders `TIME [ACTION] app=NAME k=v ...` with keys sorted and
// string values quoted.
func formatLine(now time.Time, action ActionType, app string, details map[string]interface{}) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s]", now.Format("2006-01-02 15:04:05"), action)
	if app != "" {
		sb.WriteString(" app=" + app)
	}
	for _, k := range slices.Sorted(maps.Keys(details)) {
		if s, ok := details[k].(string); ok {
			fmt.Fprintf(&sb, " %s=%q", k, s)
		} else {
			fmt.Fprintf(&sb, " %s=%v", k, details[k])
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// rotate renames path.N to path.N+1, dropping the oldest, moves the live file
// to path.1 and reopens an empty file. With MaxFiles 0 the live file is
// truncated instead.
func (l *Logger) rotate() error {
	l.file.Close()
	l.file = nil

	base := l.config.FilePath
	rotated := func(i int) string { return fmt.Sprintf("%s.%d", base, i) }

	if keep := l.config.MaxFiles; keep > 0 {
		os.Remove(rotated(keep))
		for i := keep - 1; i >= 1; i-- {
			os.Rename(rotated(i), rotated(i+1))
		}
		if err := os.Rename(base, rotated(1)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("rename %s: %w", base, err)
		}
	} else if err := os.Remove(base); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("truncate %s: %w", base, err)
	}

	return l.open()
}

// ParseLogLevel converts a config string to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
