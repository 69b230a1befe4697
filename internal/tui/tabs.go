package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/focusmute/internal/ipc"
)

// Tab identifies a TUI tab.
type Tab int

const (
	TabSessions Tab = iota
	TabPolicy
	TabHistory
	tabCount
)

func (t Tab) String() string {
	switch t {
	case TabSessions:
		return "Sessions"
	case TabPolicy:
		return "Policy"
	case TabHistory:
		return "History"
	default:
		return "?"
	}
}

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250")).
				Background(lipgloss.Color("236")).
				Padding(0, 2)

	tabBarStyle = lipgloss.NewStyle().
			MarginBottom(1)

	tabGap = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		SetString(" ")

	lockBadgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("226")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)
)

// renderTabBar draws "1:Sessions 2:Policy 3:History" with the active tab
// highlighted. locked adds a badge after the last tab.
func renderTabBar(active Tab, locked bool, width int) string {
	cells := make([]string, 0, 2*int(tabCount))
	for t := TabSessions; t < tabCount; t++ {
		style := inactiveTabStyle
		if t == active {
			style = activeTabStyle
		}
		if t > TabSessions {
			cells = append(cells, tabGap.Render())
		}
		cells = append(cells, style.Render(fmt.Sprintf("%d:%s", int(t)+1, t)))
	}
	if locked {
		cells = append(cells, tabGap.Render(), lockBadgeStyle.Render("LOCKED"))
	}
	return tabBarStyle.Width(width).Render(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
}

// renderStatusBar renders the daemon connection status bar.
func renderStatusBar(status *ipc.StatusData, width int) string {
	var line string
	if status != nil {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
		parts := []string{dot + " daemon connected", "backend:" + status.Backend}
		if status.ForegroundApp != "" {
			parts = append(parts, fmt.Sprintf("focus:%s(%d)", status.ForegroundApp, status.ForegroundPID))
		}
		parts = append(parts, fmt.Sprintf("sessions:%d", status.SessionCount))
		if status.AnyExceptionActive {
			parts = append(parts, "exception audio")
		}
		line = strings.Join(parts, "  ")
	} else {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("●")
		line = dot + " daemon not running"
	}

	style := lipgloss.NewStyle().
		Width(width).
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("250")).
		Padding(0, 1)
	return style.Render(line)
}

// renderHelpBar renders the bottom help/keybinding bar.
func renderHelpBar(message string, isErr bool, width int) string {
	help := "tab/shift-tab: switch tabs  1-3: jump to tab  l: lock  r: refresh  q/ctrl-c: quit"
	if message != "" {
		color := lipgloss.Color("42")
		if isErr {
			color = lipgloss.Color("196")
		}
		help = lipgloss.NewStyle().Foreground(color).Render(message) + "  " + help
	}
	style := lipgloss.NewStyle().
		Width(width).
		Foreground(lipgloss.Color("241")).
		Padding(0, 1)
	return style.Render(help)
}

// renderPlaceholder renders centered dim text for an empty tab.
func renderPlaceholder(msg string, width, height int) string {
	style := lipgloss.NewStyle().
		Width(width).
		Height(height).
		Foreground(lipgloss.Color("241")).
		Align(lipgloss.Center, lipgloss.Center)
	return style.Render(msg)
}
