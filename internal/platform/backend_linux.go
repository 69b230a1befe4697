//go:build linux

package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/1broseidon/focusmute/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

const pactlTimeout = 2 * time.Second

// LinuxBackend tracks focus through X11 and drives per-application streams
// through pactl, which works against both PulseAudio and PipeWire.
type LinuxBackend struct {
	conn  *x11.Connection
	pactl string
}

var _ Backend = (*LinuxBackend)(nil)

func newNativeBackend() (Backend, error) {
	return NewLinuxBackend()
}

// NewLinuxBackend opens an X11 connection and locates pactl.
func NewLinuxBackend() (*LinuxBackend, error) {
	pactl, err := exec.LookPath("pactl")
	if err != nil {
		return nil, fmt.Errorf("pactl is required for the x11 backend: %w", err)
	}
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return &LinuxBackend{conn: conn, pactl: pactl}, nil
}

func (b *LinuxBackend) Name() string { return "x11" }

// Close disconnects from X11.
func (b *LinuxBackend) Close() error {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
	return nil
}

// EventLoop runs the X11 event loop (blocking). Needed for hotkeys.
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

// QuitEventLoop stops EventLoop.
func (b *LinuxBackend) QuitEventLoop() {
	if b != nil && b.conn != nil {
		b.conn.Quit()
	}
}

// XUtil returns the underlying xgbutil connection.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

func (b *LinuxBackend) ForegroundPID() (uint32, error) {
	return b.conn.ActiveWindowPID()
}

// ExeName resolves /proc/<pid>/exe, falling back to /proc/<pid>/comm for
// processes whose executable link is unreadable.
func (b *LinuxBackend) ExeName(pid uint32) (string, error) {
	proc := filepath.Join("/proc", strconv.FormatUint(uint64(pid), 10))
	target, err := os.Readlink(filepath.Join(proc, "exe"))
	if err == nil {
		return filepath.Base(strings.TrimSuffix(target, " (deleted)")), nil
	}
	comm, commErr := os.ReadFile(filepath.Join(proc, "comm"))
	if commErr == nil {
		if name := strings.TrimSpace(string(comm)); name != "" {
			return name, nil
		}
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(commErr, os.ErrNotExist) {
		return "", fmt.Errorf("pid %d: %w", pid, ErrProcessNotFound)
	}
	return "", fmt.Errorf("pid %d: %w: %v", pid, ErrProcessNotFound, err)
}

func (b *LinuxBackend) ListSessions(ctx context.Context) ([]Session, error) {
	out, err := b.run(ctx, "-f", "json", "list", "sink-inputs")
	if err != nil {
		return nil, err
	}
	inputs, err := parseSinkInputs(out)
	if err != nil {
		return nil, err
	}
	sessions := make([]Session, 0, len(inputs))
	for _, in := range inputs {
		sessions = append(sessions, &pulseSession{backend: b, input: in})
	}
	return sessions, nil
}

func (b *LinuxBackend) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, pactlTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, b.pactl, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("pactl %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("pactl %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// pulseSession is a snapshot of one sink input. Setters update the
// snapshot so reads within the same tick observe the change.
type pulseSession struct {
	backend *LinuxBackend
	input   sinkInput
}

func (s *pulseSession) PID() uint32 { return s.input.PID }

func (s *pulseSession) Muted() (bool, error) { return s.input.Muted, nil }

func (s *pulseSession) SetMuted(muted bool) error {
	flag := "0"
	if muted {
		flag = "1"
	}
	idx := strconv.FormatUint(uint64(s.input.Index), 10)
	if _, err := s.backend.run(context.Background(), "set-sink-input-mute", idx, flag); err != nil {
		return err
	}
	s.input.Muted = muted
	return nil
}

func (s *pulseSession) Volume() (float32, error) { return s.input.Volume, nil }

func (s *pulseSession) SetVolume(level float32) error {
	idx := strconv.FormatUint(uint64(s.input.Index), 10)
	if _, err := s.backend.run(context.Background(), "set-sink-input-volume", idx, pulseVolumeArg(level)); err != nil {
		return err
	}
	s.input.Volume = level
	return nil
}

// Peak has no meter source through pactl; an uncorked stream counts as
// producing sound.
func (s *pulseSession) Peak() (float32, error) {
	if s.input.Corked {
		return 0, nil
	}
	return 1, nil
}

func (s *pulseSession) Release() {}
