package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/focusmute/internal/engine"
	"github.com/1broseidon/focusmute/internal/history"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload          CommandType = "RELOAD"
	CommandGetStatus       CommandType = "GET_STATUS"
	CommandListSessions    CommandType = "LIST_SESSIONS"
	CommandGetPolicy       CommandType = "GET_POLICY"
	CommandSetLock         CommandType = "SET_LOCK"
	CommandAddException    CommandType = "ADD_EXCEPTION"
	CommandRemoveException CommandType = "REMOVE_EXCEPTION"
	CommandSetOverride     CommandType = "SET_OVERRIDE"
	CommandClearOverride   CommandType = "CLEAR_OVERRIDE"
	CommandSetVolume       CommandType = "SET_VOLUME"
	CommandClearVolume     CommandType = "CLEAR_VOLUME"
	CommandSetFlag         CommandType = "SET_FLAG"
	CommandAddGroup        CommandType = "ADD_GROUP"
	CommandRemoveGroup     CommandType = "REMOVE_GROUP"
	CommandAddPIDMatch     CommandType = "ADD_PID_MATCH"
	CommandRemovePIDMatch  CommandType = "REMOVE_PID_MATCH"
	CommandGetHistory      CommandType = "GET_HISTORY"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	DaemonRunning      bool   `json:"daemon_running"`
	Backend            string `json:"backend"`
	Locked             bool   `json:"locked"`
	UptimeSeconds      int64  `json:"uptime_seconds"`
	Ticks              uint64 `json:"ticks"`
	TickIntervalMillis int64  `json:"tick_interval_ms"`
	SessionCount       int    `json:"session_count"`
	ForegroundPID      uint32 `json:"foreground_pid"`
	ForegroundApp      string `json:"foreground_app"`
	ZeroActivityCount  int    `json:"zero_activity_count"`
	AnyExceptionActive bool   `json:"any_exception_active"`
	LastTickMillis     int64  `json:"last_tick_ms"`
}

// SessionsData represents the data returned by LIST_SESSIONS
type SessionsData struct {
	Locked        bool              `json:"locked"`
	ForegroundPID uint32            `json:"foreground_pid"`
	ForegroundApp string            `json:"foreground_app"`
	Sessions      []engine.Decision `json:"sessions"`
}

// AppPayload names a single application.
type AppPayload struct {
	App string `json:"app"`
}

type LockPayload struct {
	Locked bool `json:"locked"`
}

type OverridePayload struct {
	App   string `json:"app"`
	Muted bool   `json:"muted"`
}

type VolumePayload struct {
	App    string `json:"app"`
	Volume int    `json:"volume"`
}

type FlagPayload struct {
	Flag  string `json:"flag"`
	Value bool   `json:"value"`
}

type GroupPayload struct {
	Apps []string `json:"apps"`
}

type RemoveGroupPayload struct {
	Index int `json:"index"`
}

type HistoryPayload struct {
	Limit int    `json:"limit,omitempty"`
	App   string `json:"app,omitempty"`
}

// HistoryData represents the data returned by GET_HISTORY
type HistoryData struct {
	Entries []history.Entry `json:"entries"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
