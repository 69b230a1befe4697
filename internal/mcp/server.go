// Package mcp exposes the running daemon's policy as Model Context
// Protocol tools over stdio.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/focusmute/internal/actionlog"
	"github.com/1broseidon/focusmute/internal/ipc"
	"github.com/1broseidon/focusmute/internal/policy"
)

const (
	ServerName    = "focusmute"
	ServerVersion = "0.1.0"
)

// Client is the daemon API the tools are built on.
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
	RemoveGroup(index int) error
	AddPIDMatch(app string) error
	RemovePIDMatch(app string) error
}

var _ Client = (*ipc.Client)(nil)

// Server is the MCP server for focusmute policy control.
type Server struct {
	mcpServer *mcpsdk.Server
	client    Client
	logger    *actionlog.Logger
}

// NewServer creates a new MCP server backed by the daemon client. logger
// may be nil.
func NewServer(client Client, logger *actionlog.Logger) *Server {
	s := &Server{
		client: client,
		logger: logger,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close releases server resources.
func (s *Server) Close() error {
	if s == nil || s.logger == nil {
		return nil
	}
	return s.logger.Close()
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report whether the focusmute daemon is running, which audio backend it uses, whether automatic muting is locked, and which app currently has focus.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_sessions",
		Description: "List live per-application audio sessions with their mute state, volume, and the rule that decided it on the last tick.",
	}, s.handleListSessions)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_policy",
		Description: "Return the persisted mute policy: exceptions, manual overrides, per-app volumes, mute groups, pid-match apps, flags and lock state.",
	}, s.handleGetPolicy)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "add_exception",
		Description: "Add an app to the exception list. Exception apps are never auto-muted and their audio counts as background activity.",
	}, s.handleAddException)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "remove_exception",
		Description: "Remove an app from the exception list.",
	}, s.handleRemoveException)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_override",
		Description: "Pin an app muted or unmuted regardless of focus. Overrides take precedence over every other rule.",
	}, s.handleSetOverride)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "clear_override",
		Description: "Remove a manual mute override so the app follows focus again.",
	}, s.handleClearOverride)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_app_volume",
		Description: "Set the target volume (0-100) that is applied to an app's sessions while they are unmuted.",
	}, s.handleSetVolume)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "clear_app_volume",
		Description: "Reset an app's target volume to 100.",
	}, s.handleClearVolume)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_flag",
		Description: "Set one of the boolean policy flags.",
	}, s.handleSetFlag)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_lock",
		Description: "Pause (locked=true) or resume (locked=false) automatic muting. While locked no session is touched.",
	}, s.handleSetLock)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "add_mute_group",
		Description: "Group apps so that focusing any member keeps every member unmuted.",
	}, s.handleAddGroup)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "remove_mute_group",
		Description: "Remove a mute group by its index in get_policy output.",
	}, s.handleRemoveGroup)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_pid_match",
		Description: "Require an exact process match for an app's foreground status, for apps that run several processes.",
	}, s.handleSetPIDMatch)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "recent_transitions",
		Description: "Return recent mute, unmute and volume changes, newest first. Requires history to be enabled in the daemon config.",
	}, s.handleRecentTransitions)
}

// logPolicy records a policy change made through MCP.
func (s *Server) logPolicy(tool, app string, details map[string]interface{}) {
	if s.logger == nil {
		return
	}
	if details == nil {
		details = map[string]interface{}{}
	}
	details["tool"] = tool
	action := actionlog.ActionPolicy
	if tool == "set_lock" {
		action = actionlog.ActionLock
	}
	s.logger.Log(action, app, details)
}
