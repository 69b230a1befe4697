package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir_UsesXDGRuntimeDirWhenSet(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got != td {
		t.Fatalf("Dir() = %q, want %q", got, td)
	}
}

func TestDir_FallbacksWhenXDGRuntimeDirMissing(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got == "" {
		t.Fatal("Dir() returned empty path")
	}

	wantRun := fmt.Sprintf("/run/user/%d", os.Getuid())
	wantTmp := filepath.Join(os.TempDir(), "focusmute-runtime-"+userSuffix(os.Getuid()))
	if got != wantRun && got != wantTmp {
		t.Fatalf("Dir() = %q, want %q or %q", got, wantRun, wantTmp)
	}
}

func TestSocketPathAndPIDFilePath(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	socket, err := SocketPath()
	if err != nil {
		t.Fatalf("SocketPath() error: %v", err)
	}
	if !strings.HasSuffix(socket, "focusmute.sock") {
		t.Fatalf("SocketPath() = %q, missing suffix", socket)
	}

	pidFile, err := PIDFilePath()
	if err != nil {
		t.Fatalf("PIDFilePath() error: %v", err)
	}
	if filepath.Dir(pidFile) != td {
		t.Fatalf("PIDFilePath() = %q, want it under %q", pidFile, td)
	}
}

func TestUserSuffix_NoUID(t *testing.T) {
	t.Setenv("USERNAME", "alice")
	if got := userSuffix(-1); got != "alice" {
		t.Fatalf("userSuffix(-1) = %q, want alice", got)
	}
	t.Setenv("USERNAME", "")
	if got := userSuffix(-1); got != "default" {
		t.Fatalf("userSuffix(-1) = %q, want default", got)
	}
}
