package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/focusmute/internal/engine"
	"github.com/1broseidon/focusmute/internal/history"
)

// HistoryTab shows recent transitions, newest first.
type HistoryTab struct {
	entries []history.Entry
	offset  int
	width   int
	height  int
}

func NewHistoryTab() HistoryTab {
	return HistoryTab{}
}

// SetEntries replaces the shown entries.
func (h *HistoryTab) SetEntries(entries []history.Entry) {
	h.entries = entries
	h.clampOffset()
}

func (h *HistoryTab) clampOffset() {
	maxOffset := len(h.entries) - h.visibleRows()
	if h.offset > maxOffset {
		h.offset = maxOffset
	}
	if h.offset < 0 {
		h.offset = 0
	}
}

func (h HistoryTab) visibleRows() int {
	rows := h.height - 2
	if rows < 1 {
		rows = 1
	}
	return rows
}

// Update handles scrolling.
func (h HistoryTab) Update(msg tea.Msg) (HistoryTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h.width = msg.Width
		h.height = msg.Height
		h.clampOffset()
	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			h.offset++
		case "k", "up":
			h.offset--
		case "g", "home":
			h.offset = 0
		}
		h.clampOffset()
	}
	return h, nil
}

var actionColors = map[engine.Action]lipgloss.Color{
	engine.ActionMute:   lipgloss.Color("241"),
	engine.ActionUnmute: lipgloss.Color("42"),
	engine.ActionVolume: lipgloss.Color("62"),
}

func formatEntry(e history.Entry) string {
	action := lipgloss.NewStyle().
		Foreground(actionColors[e.Action]).
		Width(7).
		Render(string(e.Action))
	line := fmt.Sprintf("%s  %s %-24s %s", e.Time.Local().Format("15:04:05"), action, e.App, e.Reason)
	if e.Action == engine.ActionVolume {
		line += fmt.Sprintf(" (%d%%)", int(e.Volume*100+0.5))
	}
	return line
}

// View implements tea.Model.
func (h HistoryTab) View() string {
	if h.width == 0 || h.height == 0 {
		return ""
	}
	if len(h.entries) == 0 {
		return renderPlaceholder("No transitions recorded", h.width, h.height)
	}

	end := h.offset + h.visibleRows()
	if end > len(h.entries) {
		end = len(h.entries)
	}
	lines := make([]string, 0, end-h.offset+1)
	lines = append(lines, headerStyle.Render(fmt.Sprintf("Recent transitions (%d)", len(h.entries))))
	for _, e := range h.entries[h.offset:end] {
		lines = append(lines, formatEntry(e))
	}

	return lipgloss.NewStyle().
		Width(h.width).
		Height(h.height).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}
