package mcp

import "github.com/1broseidon/focusmute/internal/policy"

// GetStatusInput is the input for the get_status tool.
type GetStatusInput struct{}

// StatusOutput is the output for the get_status tool.
type StatusOutput struct {
	Backend            string `json:"backend"`
	Locked             bool   `json:"locked"`
	UptimeSeconds      int64  `json:"uptime_seconds"`
	TickIntervalMillis int64  `json:"tick_interval_ms"`
	SessionCount       int    `json:"session_count"`
	ForegroundPID      uint32 `json:"foreground_pid"`
	ForegroundApp      string `json:"foreground_app"`
	AnyExceptionActive bool   `json:"any_exception_active"`
	ZeroActivityCount  int    `json:"zero_activity_count"`
}

// ListSessionsInput is the input for the list_sessions tool.
type ListSessionsInput struct {
	App string `json:"app,omitempty" jsonschema:"Only return sessions for this executable name"`
}

// SessionInfo describes one live audio session and the last decision for it.
type SessionInfo struct {
	PID        uint32 `json:"pid"`
	App        string `json:"app"`
	Muted      bool   `json:"muted"`
	Reason     string `json:"reason"`
	Volume     int    `json:"volume_percent"`
	Exception  bool   `json:"exception"`
	Foreground bool   `json:"foreground"`
}

// ListSessionsOutput is the output for the list_sessions tool.
type ListSessionsOutput struct {
	Locked        bool          `json:"locked"`
	ForegroundApp string        `json:"foreground_app"`
	Sessions      []SessionInfo `json:"sessions"`
}

// GetPolicyInput is the input for the get_policy tool.
type GetPolicyInput struct{}

// PolicyOutput is the output for tools that return the policy.
type PolicyOutput struct {
	Policy policy.Document `json:"policy"`
}

// AppInput names a single application.
type AppInput struct {
	App string `json:"app" jsonschema:"Executable name, e.g. spotify.exe (case-insensitive)"`
}

// SetOverrideInput is the input for the set_override tool.
type SetOverrideInput struct {
	App   string `json:"app" jsonschema:"Executable name to pin"`
	Muted bool   `json:"muted" jsonschema:"true pins the app muted, false pins it unmuted"`
}

// SetVolumeInput is the input for the set_app_volume tool.
type SetVolumeInput struct {
	App    string `json:"app" jsonschema:"Executable name"`
	Volume int    `json:"volume" jsonschema:"Target volume in percent (0-100)"`
}

// SetFlagInput is the input for the set_flag tool.
type SetFlagInput struct {
	Flag  string `json:"flag" jsonschema:"One of force_mute_foreground, force_mute_background, keep_last_active_unmuted, mute_foreground_when_background_active"`
	Value bool   `json:"value" jsonschema:"New flag value"`
}

// SetLockInput is the input for the set_lock tool.
type SetLockInput struct {
	Locked bool `json:"locked" jsonschema:"true pauses automatic muting, false resumes it"`
}

// AddGroupInput is the input for the add_mute_group tool.
type AddGroupInput struct {
	Apps []string `json:"apps" jsonschema:"Two or more executable names that share foreground status"`
}

// RemoveGroupInput is the input for the remove_mute_group tool.
type RemoveGroupInput struct {
	Index int `json:"index" jsonschema:"Zero-based index of the group as listed by get_policy"`
}

// SetPIDMatchInput is the input for the set_pid_match tool.
type SetPIDMatchInput struct {
	App     string `json:"app" jsonschema:"Executable name"`
	Enabled bool   `json:"enabled" jsonschema:"When true only the exact foreground process of this app counts as foreground"`
}

// RecentTransitionsInput is the input for the recent_transitions tool.
type RecentTransitionsInput struct {
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum entries to return (default: 50)"`
	App   string `json:"app,omitempty" jsonschema:"Only return transitions for this executable name"`
}

// TransitionInfo is one recorded mute, unmute or volume change.
type TransitionInfo struct {
	ID     string `json:"id"`
	Time   string `json:"time"`
	PID    uint32 `json:"pid"`
	App    string `json:"app"`
	Action string `json:"action"`
	Reason string `json:"reason"`
	Volume int    `json:"volume_percent,omitempty"`
}

// RecentTransitionsOutput is the output for the recent_transitions tool.
type RecentTransitionsOutput struct {
	Transitions []TransitionInfo `json:"transitions"`
}
