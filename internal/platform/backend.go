package platform

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrProcessNotFound is returned when a pid cannot be resolved to an
// executable, usually because the process exited or access was denied.
var ErrProcessNotFound = errors.New("process not found")

// ErrUnsupported is returned for backends that are not available on the
// running operating system.
var ErrUnsupported = errors.New("backend not supported on this platform")

// Session is one live per-process audio session. Sessions are enumerated
// fresh every tick and must be released afterwards.
type Session interface {
	PID() uint32
	Muted() (bool, error)
	SetMuted(muted bool) error
	// Volume is the session master volume in 0..1.
	Volume() (float32, error)
	SetVolume(level float32) error
	// Peak is the current meter peak in 0..1.
	Peak() (float32, error)
	Release()
}

// SessionSource enumerates audio sessions.
type SessionSource interface {
	ListSessions(ctx context.Context) ([]Session, error)
}

// ForegroundTracker resolves the process owning the focused window.
type ForegroundTracker interface {
	// ForegroundPID returns 0 when no window has focus.
	ForegroundPID() (uint32, error)
}

// ProcessResolver maps a pid to its executable base name.
type ProcessResolver interface {
	ExeName(pid uint32) (string, error)
}

// Backend abstracts the OS audio mixer and window focus.
type Backend interface {
	SessionSource
	ForegroundTracker
	ProcessResolver
	Name() string
	Close() error
}

// Open returns the backend selected by name: auto, windows, x11 or fake.
func Open(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return newNativeBackend()
	case "fake":
		return NewFake(), nil
	case "windows":
		if runtime.GOOS != "windows" {
			return nil, fmt.Errorf("windows backend: %w", ErrUnsupported)
		}
		return newNativeBackend()
	case "x11":
		if runtime.GOOS != "linux" {
			return nil, fmt.Errorf("x11 backend: %w", ErrUnsupported)
		}
		return newNativeBackend()
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

// ReleaseAll releases every session in the slice.
func ReleaseAll(sessions []Session) {
	for _, s := range sessions {
		if s != nil {
			s.Release()
		}
	}
}
