package mcp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/focusmute/internal/actionlog"
	"github.com/1broseidon/focusmute/internal/engine"
	"github.com/1broseidon/focusmute/internal/history"
	"github.com/1broseidon/focusmute/internal/ipc"
	"github.com/1broseidon/focusmute/internal/policy"
)

// stateClient applies changes to an in-process policy state.
type stateClient struct {
	st       *policy.State
	sessions []engine.Decision
	entries  []history.Entry
	histErr  error
	gotLimit int
	gotApp   string
}

func newStateClient() *stateClient {
	return &stateClient{st: policy.New(policy.DefaultDocument(), nil, nil)}
}

func (c *stateClient) GetStatus() (*ipc.StatusData, error) {
	return &ipc.StatusData{DaemonRunning: true, Backend: "fake", Locked: c.st.Locked(), SessionCount: len(c.sessions)}, nil
}
func (c *stateClient) ListSessions() (*ipc.SessionsData, error) {
	return &ipc.SessionsData{Sessions: c.sessions}, nil
}
func (c *stateClient) GetPolicy() (*policy.Document, error) {
	doc := c.st.Document()
	return &doc, nil
}
func (c *stateClient) GetHistory(limit int, app string) (*ipc.HistoryData, error) {
	c.gotLimit, c.gotApp = limit, app
	if c.histErr != nil {
		return nil, c.histErr
	}
	return &ipc.HistoryData{Entries: c.entries}, nil
}
func (c *stateClient) SetLock(locked bool) error { return c.st.SetLocked(locked) }
func (c *stateClient) AddException(app string) error { return c.st.AddException(app) }
func (c *stateClient) RemoveException(app string) error { return c.st.RemoveException(app) }
func (c *stateClient) SetOverride(app string, muted bool) error { return c.st.SetOverride(app, muted) }
func (c *stateClient) ClearOverride(app string) error { return c.st.ClearOverride(app) }
func (c *stateClient) SetVolume(app string, volume int) error { return c.st.SetVolume(app, volume) }
func (c *stateClient) ClearVolume(app string) error { return c.st.ClearVolume(app) }
func (c *stateClient) SetFlag(flag string, value bool) error {
	f, err := policy.ParseFlag(flag)
	if err != nil {
		return err
	}
	return c.st.SetFlag(f, value)
}
func (c *stateClient) AddGroup(apps []string) error { return c.st.AddMuteGroup(apps) }
func (c *stateClient) RemoveGroup(index int) error { return c.st.RemoveMuteGroup(index) }
func (c *stateClient) AddPIDMatch(app string) error { return c.st.AddPIDMatch(app) }
func (c *stateClient) RemovePIDMatch(app string) error { return c.st.RemovePIDMatch(app) }

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer(newStateClient(), nil)
	if s.mcpServer == nil {
		t.Fatal("mcp server not created")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestExceptionTools(t *testing.T) {
	c := newStateClient()
	s := NewServer(c, nil)
	ctx := context.Background()

	_, out, err := s.handleAddException(ctx, nil, AppInput{App: "  Spotify.EXE "})
	if err != nil {
		t.Fatalf("add_exception: %v", err)
	}
	if !contains(out.Policy.Exceptions, "spotify.exe") {
		t.Errorf("exceptions = %v, want spotify.exe", out.Policy.Exceptions)
	}

	_, out, err = s.handleRemoveException(ctx, nil, AppInput{App: "spotify.exe"})
	if err != nil {
		t.Fatalf("remove_exception: %v", err)
	}
	if contains(out.Policy.Exceptions, "spotify.exe") {
		t.Errorf("exceptions = %v, spotify.exe should be gone", out.Policy.Exceptions)
	}

	if _, _, err := s.handleAddException(ctx, nil, AppInput{App: "  "}); err == nil {
		t.Error("expected error for empty app")
	}
}

func TestOverrideAndVolumeTools(t *testing.T) {
	s := NewServer(newStateClient(), nil)
	ctx := context.Background()

	_, out, err := s.handleSetOverride(ctx, nil, SetOverrideInput{App: "game.exe", Muted: true})
	if err != nil {
		t.Fatalf("set_override: %v", err)
	}
	if muted, ok := out.Policy.ForceMute["game.exe"]; !ok || !muted {
		t.Errorf("force_mute = %v, want game.exe=true", out.Policy.ForceMute)
	}

	_, out, err = s.handleClearOverride(ctx, nil, AppInput{App: "game.exe"})
	if err != nil {
		t.Fatalf("clear_override: %v", err)
	}
	if _, ok := out.Policy.ForceMute["game.exe"]; ok {
		t.Errorf("force_mute = %v, override should be cleared", out.Policy.ForceMute)
	}

	_, out, err = s.handleSetVolume(ctx, nil, SetVolumeInput{App: "game.exe", Volume: 40})
	if err != nil {
		t.Fatalf("set_app_volume: %v", err)
	}
	if out.Policy.Volumes["game.exe"] != 40 {
		t.Errorf("volumes = %v, want game.exe=40", out.Policy.Volumes)
	}

	_, _, err = s.handleSetVolume(ctx, nil, SetVolumeInput{App: "game.exe", Volume: 101})
	if !errors.Is(err, policy.ErrVolumeRange) {
		t.Errorf("set_app_volume(101) error = %v, want ErrVolumeRange", err)
	}

	_, out, err = s.handleClearVolume(ctx, nil, AppInput{App: "game.exe"})
	if err != nil {
		t.Fatalf("clear_app_volume: %v", err)
	}
	if _, ok := out.Policy.Volumes["game.exe"]; ok {
		t.Errorf("volumes = %v, entry should be cleared", out.Policy.Volumes)
	}
}

func TestFlagAndLockTools(t *testing.T) {
	s := NewServer(newStateClient(), nil)
	ctx := context.Background()

	_, out, err := s.handleSetFlag(ctx, nil, SetFlagInput{Flag: "force-mute-background", Value: true})
	if err != nil {
		t.Fatalf("set_flag: %v", err)
	}
	if !out.Policy.Flags.ForceMuteBackground {
		t.Error("force_mute_background not set")
	}

	_, _, err = s.handleSetFlag(ctx, nil, SetFlagInput{Flag: "bogus", Value: true})
	if err == nil || !strings.Contains(err.Error(), "keep_last_active_unmuted") {
		t.Errorf("unknown flag error = %v, want list of valid flags", err)
	}

	_, out, err = s.handleSetLock(ctx, nil, SetLockInput{Locked: true})
	if err != nil {
		t.Fatalf("set_lock: %v", err)
	}
	if !out.Policy.Locked {
		t.Error("policy not locked")
	}
}

func TestGroupAndPIDMatchTools(t *testing.T) {
	s := NewServer(newStateClient(), nil)
	ctx := context.Background()

	if _, _, err := s.handleAddGroup(ctx, nil, AddGroupInput{Apps: []string{"a.exe", " "}}); !errors.Is(err, policy.ErrGroupTooSmall) {
		t.Errorf("add_mute_group with one app error = %v, want ErrGroupTooSmall", err)
	}

	_, out, err := s.handleAddGroup(ctx, nil, AddGroupInput{Apps: []string{"Game.exe", "launcher.exe"}})
	if err != nil {
		t.Fatalf("add_mute_group: %v", err)
	}
	if len(out.Policy.MuteGroups) != 1 {
		t.Fatalf("mute_groups = %v, want one group", out.Policy.MuteGroups)
	}

	_, out, err = s.handleRemoveGroup(ctx, nil, RemoveGroupInput{Index: 0})
	if err != nil {
		t.Fatalf("remove_mute_group: %v", err)
	}
	if len(out.Policy.MuteGroups) != 0 {
		t.Errorf("mute_groups = %v, want none", out.Policy.MuteGroups)
	}

	_, out, err = s.handleSetPIDMatch(ctx, nil, SetPIDMatchInput{App: "chrome.exe", Enabled: true})
	if err != nil {
		t.Fatalf("set_pid_match: %v", err)
	}
	if !contains(out.Policy.PIDMatch, "chrome.exe") {
		t.Errorf("pid_match = %v, want chrome.exe", out.Policy.PIDMatch)
	}

	_, out, err = s.handleSetPIDMatch(ctx, nil, SetPIDMatchInput{App: "chrome.exe", Enabled: false})
	if err != nil {
		t.Fatalf("set_pid_match disable: %v", err)
	}
	if contains(out.Policy.PIDMatch, "chrome.exe") {
		t.Errorf("pid_match = %v, chrome.exe should be gone", out.Policy.PIDMatch)
	}
}

func TestListSessionsFilter(t *testing.T) {
	c := newStateClient()
	c.sessions = []engine.Decision{
		{PID: 1, App: "chrome.exe", Volume: 0.5, Exception: true, Reason: engine.ReasonExceptionApp},
		{PID: 2, App: "game.exe", Muted: true, Reason: engine.ReasonNotForeground},
	}
	s := NewServer(c, nil)

	_, out, err := s.handleListSessions(context.Background(), nil, ListSessionsInput{App: "CHROME.exe"})
	if err != nil {
		t.Fatalf("list_sessions: %v", err)
	}
	if len(out.Sessions) != 1 {
		t.Fatalf("sessions = %+v, want one", out.Sessions)
	}
	got := out.Sessions[0]
	if got.App != "chrome.exe" || got.Volume != 50 || got.Reason != "Exception App" {
		t.Errorf("session = %+v", got)
	}
}

func TestRecentTransitions(t *testing.T) {
	c := newStateClient()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.entries = []history.Entry{
		{ID: "b", Transition: engine.Transition{Time: at, PID: 3, App: "game.exe", Action: engine.ActionVolume, Reason: engine.ReasonVolumeTarget, Volume: 0.25}},
		{ID: "a", Transition: engine.Transition{Time: at, PID: 3, App: "game.exe", Action: engine.ActionMute, Reason: engine.ReasonNotForeground}},
	}
	s := NewServer(c, nil)

	_, out, err := s.handleRecentTransitions(context.Background(), nil, RecentTransitionsInput{App: "Game.exe"})
	if err != nil {
		t.Fatalf("recent_transitions: %v", err)
	}
	if c.gotLimit != defaultTransitionLimit || c.gotApp != "game.exe" {
		t.Errorf("history query = (%d, %q)", c.gotLimit, c.gotApp)
	}
	if len(out.Transitions) != 2 {
		t.Fatalf("transitions = %+v", out.Transitions)
	}
	if out.Transitions[0].Volume != 25 || out.Transitions[1].Volume != 0 {
		t.Errorf("volumes = %d, %d", out.Transitions[0].Volume, out.Transitions[1].Volume)
	}
	if out.Transitions[0].Time != "2026-03-01T12:00:00Z" {
		t.Errorf("time = %q", out.Transitions[0].Time)
	}

	c.histErr = errors.New("history is disabled")
	if _, _, err := s.handleRecentTransitions(context.Background(), nil, RecentTransitionsInput{}); err == nil {
		t.Error("expected error when history is disabled")
	}
}

func TestPolicyChangesAreLogged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.log")
	logger, err := actionlog.NewLogger(actionlog.LogConfig{
		Enabled:  true,
		Level:    actionlog.LevelInfo,
		FilePath: path,
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	s := NewServer(newStateClient(), logger)

	if _, _, err := s.handleSetLock(context.Background(), nil, SetLockInput{Locked: true}); err != nil {
		t.Fatalf("set_lock: %v", err)
	}
	if _, _, err := s.handleAddException(context.Background(), nil, AppInput{App: "vlc.exe"}); err != nil {
		t.Fatalf("add_exception: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := readFile(t, path)
	if !strings.Contains(data, "[LOCK]") || !strings.Contains(data, "[POLICY] app=vlc.exe") {
		t.Errorf("log = %q", data)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func contains(items []string, want string) bool {
	for _, it := range items {
		if it == want {
			return true
		}
	}
	return false
}
