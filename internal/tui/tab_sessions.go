package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/focusmute/internal/engine"
	"github.com/1broseidon/focusmute/internal/ipc"
	"github.com/1broseidon/focusmute/internal/policy"
)

// sessionItem is a list item for one live audio session.
type sessionItem struct {
	d           engine.Decision
	override    bool
	hasOverride bool
	target      int
	hasTarget   bool
}

func (i sessionItem) Title() string {
	mark := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("♪")
	if i.d.Muted {
		mark = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("✕")
	}
	title := fmt.Sprintf("%s %s  pid %d", mark, i.d.App, i.d.PID)
	if i.d.Foreground {
		title += "  " + lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Render("★")
	}
	return title
}

func (i sessionItem) Description() string {
	parts := []string{string(i.d.Reason), fmt.Sprintf("vol %d%%", int(i.d.Volume*100+0.5))}
	if i.d.Exception {
		parts = append(parts, "exception")
	}
	if i.hasOverride {
		if i.override {
			parts = append(parts, "forced mute")
		} else {
			parts = append(parts, "forced unmute")
		}
	}
	if i.hasTarget {
		parts = append(parts, fmt.Sprintf("target %d%%", i.target))
	}
	return strings.Join(parts, " | ")
}

func (i sessionItem) FilterValue() string { return i.d.App }

func buildSessionItems(data *ipc.SessionsData, doc *policy.Document) []list.Item {
	if data == nil {
		return nil
	}
	items := make([]list.Item, 0, len(data.Sessions))
	for _, d := range data.Sessions {
		item := sessionItem{d: d}
		if doc != nil {
			item.override, item.hasOverride = doc.ForceMute[d.App]
			item.target, item.hasTarget = doc.Volumes[d.App]
		}
		items = append(items, item)
	}
	return items
}

// SessionsTab lists live sessions and edits per-app policy.
type SessionsTab struct {
	client Client
	list   list.Model
	width  int
	height int

	// Volume form
	editing bool
	form    *huh.Form
	formApp string
	fVolume *string
}

// NewSessionsTab creates an empty sessions tab.
func NewSessionsTab(client Client) SessionsTab {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("15")).
		BorderForeground(lipgloss.Color("62"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("250")).
		BorderForeground(lipgloss.Color("62"))

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Audio Sessions"
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62")).
		Padding(0, 1)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)

	return SessionsTab{client: client, list: l}
}

// SetData replaces the listed sessions, keeping the cursor in range.
func (s *SessionsTab) SetData(data *ipc.SessionsData, doc *policy.Document) {
	items := buildSessionItems(data, doc)
	idx := s.list.Index()
	s.list.SetItems(items)
	if idx >= len(items) && len(items) > 0 {
		s.list.Select(len(items) - 1)
	}
}

func (s SessionsTab) selected() (sessionItem, bool) {
	item, ok := s.list.SelectedItem().(sessionItem)
	return item, ok
}

// Update handles messages for the sessions tab.
func (s SessionsTab) Update(msg tea.Msg) (SessionsTab, tea.Cmd) {
	if s.editing {
		return s.updateEditing(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.list.SetSize(s.width, s.height-1)
		return s, nil

	case tea.KeyMsg:
		item, ok := s.selected()
		if !ok {
			break
		}
		app := item.d.App
		switch msg.String() {
		case "e":
			if item.d.Exception {
				return s, runAction("removed exception "+app, func() error { return s.client.RemoveException(app) })
			}
			return s, runAction("added exception "+app, func() error { return s.client.AddException(app) })
		case "m":
			return s, runAction("forcing "+app+" muted", func() error { return s.client.SetOverride(app, true) })
		case "u":
			return s, runAction("forcing "+app+" unmuted", func() error { return s.client.SetOverride(app, false) })
		case "c":
			return s, runAction("cleared override for "+app, func() error { return s.client.ClearOverride(app) })
		case "x":
			return s, runAction("cleared volume for "+app, func() error { return s.client.ClearVolume(app) })
		case "v":
			s.startVolumeForm(item)
			return s, s.form.Init()
		}
	}

	var cmd tea.Cmd
	s.list, cmd = s.list.Update(msg)
	return s, cmd
}

func (s *SessionsTab) startVolumeForm(item sessionItem) {
	s.formApp = item.d.App
	volume := strconv.Itoa(policy.DefaultVolume)
	if item.hasTarget {
		volume = strconv.Itoa(item.target)
	}
	s.fVolume = &volume

	w := s.width - 4
	if w < 40 {
		w = 40
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("volume").
				Title("Volume for " + item.d.App).
				Description("Target level in percent, 0-100").
				Validate(validateVolume).
				Value(s.fVolume),
		),
	).WithWidth(w).WithShowHelp(true).WithShowErrors(true)
	s.editing = true
}

func validateVolume(v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return errors.New("enter a whole number")
	}
	if n < 0 || n > 100 {
		return policy.ErrVolumeRange
	}
	return nil
}

func (s SessionsTab) updateEditing(msg tea.Msg) (SessionsTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "esc" {
			s.editing = false
			s.form = nil
			return s, nil
		}
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.list.SetSize(s.width, s.height-1)
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.editing = false
		s.form = nil
		app := s.formApp
		volume, err := strconv.Atoi(strings.TrimSpace(*s.fVolume))
		if err != nil {
			return s, nil
		}
		return s, runAction(fmt.Sprintf("%s volume set to %d%%", app, volume), func() error {
			return s.client.SetVolume(app, volume)
		})
	}

	return s, cmd
}

// View implements tea.Model.
func (s SessionsTab) View() string {
	if s.width == 0 || s.height == 0 {
		return ""
	}

	if s.editing && s.form != nil {
		content := headerStyle.Render("Set Volume") + dimStyle.Render("  (esc to cancel)") +
			"\n\n" + s.form.View()
		return lipgloss.NewStyle().Width(s.width).Height(s.height).Padding(1, 2).Render(content)
	}

	if len(s.list.Items()) == 0 {
		return renderPlaceholder("No audio sessions", s.width, s.height)
	}

	hints := dimStyle.Render("  e: toggle exception  m/u: force mute/unmute  c: clear override  v: volume  x: clear volume")
	return lipgloss.JoinVertical(lipgloss.Left, s.list.View(), hints)
}
