package tui

import (
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/focusmute/internal/engine"
	"github.com/1broseidon/focusmute/internal/ipc"
	"github.com/1broseidon/focusmute/internal/policy"
)

type fakeClient struct {
	mu    sync.Mutex
	calls []string
	down  bool
}

func (f *fakeClient) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) GetStatus() (*ipc.StatusData, error) {
	if f.down {
		return nil, errors.New("daemon not running")
	}
	return &ipc.StatusData{DaemonRunning: true, Backend: "fake", SessionCount: 2}, nil
}

func (f *fakeClient) ListSessions() (*ipc.SessionsData, error) {
	return &ipc.SessionsData{Sessions: []engine.Decision{
		{PID: 10, App: "chrome.exe", Exception: true, Reason: engine.ReasonExceptionApp, Volume: 1},
		{PID: 20, App: "game.exe", Muted: true, Reason: engine.ReasonNotForeground, Volume: 0.5},
	}}, nil
}

func (f *fakeClient) GetPolicy() (*policy.Document, error) {
	doc := policy.DefaultDocument()
	doc.Volumes = map[string]int{"game.exe": 50}
	return &doc, nil
}

func (f *fakeClient) GetHistory(int, string) (*ipc.HistoryData, error) {
	return &ipc.HistoryData{}, nil
}

func (f *fakeClient) SetLock(locked bool) error {
	if locked {
		return f.record("lock")
	}
	return f.record("unlock")
}
func (f *fakeClient) AddException(app string) error { return f.record("add_exception " + app) }
func (f *fakeClient) RemoveException(app string) error { return f.record("remove_exception " + app) }
func (f *fakeClient) SetOverride(app string, muted bool) error {
	if muted {
		return f.record("mute " + app)
	}
	return f.record("unmute " + app)
}
func (f *fakeClient) ClearOverride(app string) error { return f.record("clear_override " + app) }
func (f *fakeClient) SetVolume(app string, v int) error { return f.record("volume " + app) }
func (f *fakeClient) ClearVolume(app string) error { return f.record("clear_volume " + app) }
func (f *fakeClient) SetFlag(flag string, v bool) error { return f.record("flag " + flag) }
func (f *fakeClient) AddGroup(apps []string) error { return f.record("group") }

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// loadedModel returns a sized model that has applied one snapshot.
func loadedModel(t *testing.T, c *fakeClient) model {
	t.Helper()
	var m tea.Model = newModel(c)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = m.Update(fetchSnapshot(c)())
	return m.(model)
}

func TestModel_SnapshotPopulatesTabs(t *testing.T) {
	c := &fakeClient{}
	m := loadedModel(t, c)

	require.NotNil(t, m.status)
	assert.Len(t, m.sessionsTab.list.Items(), 2)
	require.NotNil(t, m.policyTab.doc)
	assert.Contains(t, m.View(), "chrome.exe")
}

func TestModel_SnapshotErrorShowsDisconnected(t *testing.T) {
	c := &fakeClient{down: true}
	m := loadedModel(t, c)

	assert.Nil(t, m.status)
	assert.True(t, m.messageErr)
	assert.Contains(t, m.View(), "daemon not running")
}

func TestModel_TabSwitching(t *testing.T) {
	m := loadedModel(t, &fakeClient{})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, TabPolicy, next.(model).activeTab)

	next, _ = next.Update(key("3"))
	assert.Equal(t, TabHistory, next.(model).activeTab)

	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, TabPolicy, next.(model).activeTab)
}

func TestSessionsTab_ExceptionToggle(t *testing.T) {
	c := &fakeClient{}
	m := loadedModel(t, c)

	// First row is an exception, so 'e' removes it.
	_, cmd := m.Update(key("e"))
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, actionMsg{}, msg)
	assert.NoError(t, msg.(actionMsg).err)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd = next.Update(key("e"))
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, []string{"remove_exception chrome.exe", "add_exception game.exe"}, c.Calls())
}

func TestSessionsTab_Overrides(t *testing.T) {
	c := &fakeClient{}
	m := loadedModel(t, c)

	for _, k := range []string{"m", "u", "c", "x"} {
		_, cmd := m.Update(key(k))
		require.NotNil(t, cmd, k)
		cmd()
	}
	assert.Equal(t, []string{
		"mute chrome.exe",
		"unmute chrome.exe",
		"clear_override chrome.exe",
		"clear_volume chrome.exe",
	}, c.Calls())
}

func TestSessionsTab_VolumeFormCapturesInput(t *testing.T) {
	m := loadedModel(t, &fakeClient{})

	next, _ := m.Update(key("v"))
	mm := next.(model)
	require.True(t, mm.sessionsTab.editing)

	// 'q' goes to the form, not the quit handler.
	next, _ = mm.Update(key("q"))
	assert.True(t, next.(model).sessionsTab.editing)

	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, next.(model).sessionsTab.editing)
}

func TestModel_LockToggle(t *testing.T) {
	c := &fakeClient{}
	m := loadedModel(t, c)

	_, cmd := m.Update(key("l"))
	require.NotNil(t, cmd)
	msg := cmd().(actionMsg)
	assert.Equal(t, "automatic muting paused", msg.note)
	assert.Equal(t, []string{"lock"}, c.Calls())
}

func TestActionError_IsShown(t *testing.T) {
	m := loadedModel(t, &fakeClient{})

	next, cmd := m.Update(actionMsg{err: policy.ErrVolumeRange})
	assert.NotNil(t, cmd)
	assert.True(t, next.(model).messageErr)
	assert.Equal(t, policy.ErrVolumeRange.Error(), next.(model).message)
}

func TestValidateVolume(t *testing.T) {
	assert.NoError(t, validateVolume("0"))
	assert.NoError(t, validateVolume(" 100 "))
	assert.Error(t, validateVolume("101"))
	assert.Error(t, validateVolume("loud"))
}

func TestSplitApps(t *testing.T) {
	assert.Equal(t, []string{"game.exe", "launcher.exe"}, splitApps(" Game.exe , ,launcher.exe"))
}
