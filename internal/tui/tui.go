package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/focusmute/internal/ipc"
	"github.com/1broseidon/focusmute/internal/policy"
)

// Client is the subset of the IPC client the dashboard drives.
type Client interface {
	GetStatus() (*ipc.StatusData, error)
	ListSessions() (*ipc.SessionsData, error)
	GetPolicy() (*policy.Document, error)
	GetHistory(limit int, app string) (*ipc.HistoryData, error)
	SetLock(locked bool) error
	AddException(app string) error
	RemoveException(app string) error
	SetOverride(app string, muted bool) error
	ClearOverride(app string) error
	SetVolume(app string, volume int) error
	ClearVolume(app string) error
	SetFlag(flag string, value bool) error
	AddGroup(apps []string) error
}

var _ Client = (*ipc.Client)(nil)

// Run starts the dashboard against the running daemon.
func Run(client Client) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}
	if client == nil {
		client = ipc.NewClient()
	}

	p := tea.NewProgram(newModel(client), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
