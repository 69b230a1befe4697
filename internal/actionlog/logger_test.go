package actionlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/1broseidon/focusmute/internal/engine"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return string(data)
}

func TestLogger_DisabledIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.log")
	l, err := NewLogger(LogConfig{Enabled: false, FilePath: path})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Log(ActionPolicy, "", map[string]interface{}{"op": "add_exception"})
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no log file, stat err = %v", err)
	}

	var nilLogger *Logger
	nilLogger.Log(ActionMute, "a.exe", nil)
	if err := nilLogger.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestLogger_TransitionFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "actions.log")
	l, err := NewLogger(LogConfig{Enabled: true, Level: LevelDebug, FilePath: path, MaxSizeMB: 1, MaxFiles: 2})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	l.Transition(engine.Transition{PID: 42, App: "game.exe", Action: engine.ActionMute, Reason: engine.ReasonNotForeground})
	l.Transition(engine.Transition{PID: 42, App: "game.exe", Action: engine.ActionVolume, Reason: engine.ReasonVolumeTarget, Volume: 0.5})

	out := readLog(t, path)
	if !strings.Contains(out, `[MUTE] app=game.exe pid=42 reason="Not Foreground App"`) {
		t.Fatalf("unexpected mute line:\n%s", out)
	}
	if !strings.Contains(out, `[VOLUME] app=game.exe pid=42 reason="Volume Target" volume="0.50"`) {
		t.Fatalf("unexpected volume line:\n%s", out)
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.log")
	l, err := NewLogger(LogConfig{Enabled: true, Level: LevelInfo, FilePath: path, MaxSizeMB: 1, MaxFiles: 1})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	l.Log(ActionVolume, "a.exe", nil)
	l.Log(ActionLock, "", map[string]interface{}{"locked": true})

	out := readLog(t, path)
	if strings.Contains(out, "[VOLUME]") {
		t.Fatalf("debug action should be filtered:\n%s", out)
	}
	if !strings.Contains(out, "[LOCK] locked=true") {
		t.Fatalf("missing lock line:\n%s", out)
	}
}

func TestLogger_Rotate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.log")
	l, err := NewLogger(LogConfig{Enabled: true, Level: LevelDebug, FilePath: path, MaxSizeMB: 1, MaxFiles: 2})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	l.Log(ActionPolicy, "first.exe", nil)
	// Force the next write to rotate.
	l.currentSize = 1024 * 1024
	l.Log(ActionPolicy, "second.exe", nil)

	if got := readLog(t, path + ".1"); !strings.Contains(got, "first.exe") {
		t.Fatalf("expected rotated file to hold first entry, got %q", got)
	}
	if got := readLog(t, path); !strings.Contains(got, "second.exe") || strings.Contains(got, "first.exe") {
		t.Fatalf("expected fresh file with second entry, got %q", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"warn":    LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
