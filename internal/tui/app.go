package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/focusmute/internal/history"
	"github.com/1broseidon/focusmute/internal/ipc"
	"github.com/1broseidon/focusmute/internal/policy"
)

const (
	refreshInterval = time.Second
	historyLimit    = 200
)

// snapshotMsg carries one poll of the daemon.
type snapshotMsg struct {
	status   *ipc.StatusData
	sessions *ipc.SessionsData
	doc      *policy.Document
	history  []history.Entry
	err      error
}

// actionMsg reports the outcome of a policy change.
type actionMsg struct {
	note string
	err  error
}

type refreshTickMsg time.Time

func fetchSnapshot(c Client) tea.Cmd {
	return func() tea.Msg {
		var s snapshotMsg
		var err error
		if s.status, err = c.GetStatus(); err != nil {
			s.err = err
			return s
		}
		if s.sessions, err = c.ListSessions(); err != nil {
			s.err = err
			return s
		}
		if s.doc, err = c.GetPolicy(); err != nil {
			s.err = err
			return s
		}
		// History is optional on the daemon side.
		if h, err := c.GetHistory(historyLimit, ""); err == nil {
			s.history = h.Entries
		}
		return s
	}
}

func scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func runAction(note string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{note: note, err: fn()}
	}
}

// model is the root bubbletea model for the TUI.
type model struct {
	client Client

	// Tab navigation
	activeTab Tab

	// Sub-models
	sessionsTab SessionsTab
	policyTab   PolicyTab
	historyTab  HistoryTab

	// Daemon state
	status *ipc.StatusData

	message    string
	messageErr bool

	// Terminal dimensions
	width  int
	height int
}

func newModel(client Client) model {
	return model{
		client:      client,
		activeTab:   TabSessions,
		sessionsTab: NewSessionsTab(client),
		policyTab:   NewPolicyTab(client),
		historyTab:  NewHistoryTab(),
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(fetchSnapshot(m.client), scheduleRefresh())
}

func (m model) capturing() bool {
	return (m.activeTab == TabSessions && m.sessionsTab.editing) ||
		(m.activeTab == TabPolicy && m.policyTab.editing)
}

func (m *model) resize(width, height int) {
	m.width = width
	m.height = height
	subMsg := tea.WindowSizeMsg{Width: m.width, Height: m.contentHeight()}
	m.sessionsTab, _ = m.sessionsTab.Update(subMsg)
	m.policyTab, _ = m.policyTab.Update(subMsg)
	m.historyTab, _ = m.historyTab.Update(subMsg)
}

// contentHeight returns the height available for tab content.
func (m model) contentHeight() int {
	// status bar (1) + tab bar (2 with margin) + help bar (1)
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		if msg.err != nil {
			m.status = nil
			m.message = msg.err.Error()
			m.messageErr = true
			return m, nil
		}
		if m.status == nil && m.messageErr {
			m.message = ""
			m.messageErr = false
		}
		m.status = msg.status
		m.sessionsTab.SetData(msg.sessions, msg.doc)
		m.policyTab.SetDocument(msg.doc)
		m.historyTab.SetEntries(msg.history)
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(fetchSnapshot(m.client), scheduleRefresh())

	case actionMsg:
		if msg.err != nil {
			m.message = msg.err.Error()
			m.messageErr = true
		} else {
			m.message = msg.note
			m.messageErr = false
		}
		return m, fetchSnapshot(m.client)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	}

	// A sub-model with an open form consumes keys; only ctrl+c escapes.
	if m.capturing() {
		if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.delegate(msg)
	}

	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1":
			m.activeTab = TabSessions
			return m, nil
		case "2":
			m.activeTab = TabPolicy
			return m, nil
		case "3":
			m.activeTab = TabHistory
			return m, nil
		case "r":
			return m, fetchSnapshot(m.client)
		case "l":
			if m.status == nil {
				return m, nil
			}
			locked := !m.status.Locked
			note := "automatic muting resumed"
			if locked {
				note = "automatic muting paused"
			}
			return m, runAction(note, func() error { return m.client.SetLock(locked) })
		}
	}

	return m.delegate(msg)
}

func (m model) delegate(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.activeTab {
	case TabSessions:
		m.sessionsTab, cmd = m.sessionsTab.Update(msg)
	case TabPolicy:
		m.policyTab, cmd = m.policyTab.Update(msg)
	case TabHistory:
		m.historyTab, cmd = m.historyTab.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.status, m.width)
	tabBar := renderTabBar(m.activeTab, m.status != nil && m.status.Locked, m.width)
	helpBar := renderHelpBar(m.message, m.messageErr, m.width)

	var content string
	switch {
	case m.status == nil:
		usedHeight := lipgloss.Height(statusBar) + lipgloss.Height(tabBar) + lipgloss.Height(helpBar)
		content = renderPlaceholder("Waiting for focusmute daemon...", m.width, max(m.height-usedHeight, 1))
	case m.activeTab == TabSessions:
		content = m.sessionsTab.View()
	case m.activeTab == TabPolicy:
		content = m.policyTab.View()
	case m.activeTab == TabHistory:
		content = m.historyTab.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		tabBar,
		content,
		helpBar,
	)
}
