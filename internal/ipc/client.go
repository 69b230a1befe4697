package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/focusmute/internal/policy"
	"github.com/1broseidon/focusmute/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}

	return NewClientWithSocket(socketPath)
}

// NewClientWithSocket creates a client for an explicit socket path.
func NewClientWithSocket(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	// Connect to socket
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	// Set deadline
	conn.SetDeadline(time.Now().Add(c.timeout))

	// Marshal request
	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Send request
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	// Read response
	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Parse response
	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Check for error response
	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// call sends cmd with an optional payload and decodes the response data
// into out when out is non-nil.
func (c *Client) call(cmd CommandType, payload interface{}, out interface{}) error {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = data
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	return c.call(CommandReload, nil, nil)
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListSessions returns the sessions seen on the last tick with their
// decision reasons.
func (c *Client) ListSessions() (*SessionsData, error) {
	var data SessionsData
	if err := c.call(CommandListSessions, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPolicy returns the persisted policy document.
func (c *Client) GetPolicy() (*policy.Document, error) {
	var doc policy.Document
	if err := c.call(CommandGetPolicy, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) SetLock(locked bool) error {
	return c.call(CommandSetLock, LockPayload{Locked: locked}, nil)
}

func (c *Client) AddException(app string) error {
	return c.call(CommandAddException, AppPayload{App: app}, nil)
}

func (c *Client) RemoveException(app string) error {
	return c.call(CommandRemoveException, AppPayload{App: app}, nil)
}

func (c *Client) SetOverride(app string, muted bool) error {
	return c.call(CommandSetOverride, OverridePayload{App: app, Muted: muted}, nil)
}

func (c *Client) ClearOverride(app string) error {
	return c.call(CommandClearOverride, AppPayload{App: app}, nil)
}

func (c *Client) SetVolume(app string, volume int) error {
	return c.call(CommandSetVolume, VolumePayload{App: app, Volume: volume}, nil)
}

func (c *Client) ClearVolume(app string) error {
	return c.call(CommandClearVolume, AppPayload{App: app}, nil)
}

func (c *Client) SetFlag(flag string, value bool) error {
	return c.call(CommandSetFlag, FlagPayload{Flag: flag, Value: value}, nil)
}

func (c *Client) AddGroup(apps []string) error {
	return c.call(CommandAddGroup, GroupPayload{Apps: apps}, nil)
}

func (c *Client) RemoveGroup(index int) error {
	return c.call(CommandRemoveGroup, RemoveGroupPayload{Index: index}, nil)
}

func (c *Client) AddPIDMatch(app string) error {
	return c.call(CommandAddPIDMatch, AppPayload{App: app}, nil)
}

func (c *Client) RemovePIDMatch(app string) error {
	return c.call(CommandRemovePIDMatch, AppPayload{App: app}, nil)
}

// GetHistory returns recent recorded transitions, newest first.
func (c *Client) GetHistory(limit int, app string) (*HistoryData, error) {
	var data HistoryData
	if err := c.call(CommandGetHistory, HistoryPayload{Limit: limit, App: app}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
