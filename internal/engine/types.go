package engine

import "time"

// Reason explains a mute decision.
type Reason string

const (
	ReasonManualOverride      Reason = "Manual Mute Override"
	ReasonForceMuteBackground Reason = "Force Mute Background"
	ReasonExceptionApp        Reason = "Exception App"
	ReasonForceMuteForeground Reason = "Force Mute Foreground"
	ReasonBackgroundAudio     Reason = "Background Audio Playing"
	ReasonForeground          Reason = "Foreground App"
	ReasonLastActive          Reason = "Last Active App"
	ReasonNotForeground       Reason = "Not Foreground App"
	ReasonExceptionChanged    Reason = "Exception Changed"
	ReasonVolumeTarget        Reason = "Volume Target"
)

// Action is the kind of change applied to a session.
type Action string

const (
	ActionMute   Action = "mute"
	ActionUnmute Action = "unmute"
	ActionVolume Action = "volume"
)

// Transition is one change the engine applied to a session.
type Transition struct {
	Time   time.Time `json:"time"`
	PID    uint32    `json:"pid"`
	App    string    `json:"app"`
	Action Action    `json:"action"`
	Reason Reason    `json:"reason"`
	Volume float32   `json:"volume,omitempty"`
}

// Decision is the outcome for one session in one tick.
type Decision struct {
	PID        uint32  `json:"pid"`
	App        string  `json:"app"`
	Reason     Reason  `json:"reason"`
	Muted      bool    `json:"muted"`
	WasMuted   bool    `json:"was_muted"`
	Changed    bool    `json:"changed"`
	Volume     float32 `json:"volume"`
	Exception  bool    `json:"exception"`
	Foreground bool    `json:"foreground"`
}

// OSError records a failed OS call that was skipped for this tick.
type OSError struct {
	Op    string `json:"op"`
	PID   uint32 `json:"pid,omitempty"`
	App   string `json:"app,omitempty"`
	Error string `json:"error"`
}

// Report summarises one tick.
type Report struct {
	Time               time.Time     `json:"time"`
	Duration           time.Duration `json:"duration"`
	Locked             bool          `json:"locked"`
	ForegroundPID      uint32        `json:"foreground_pid"`
	ForegroundApp      string        `json:"foreground_app"`
	AnyExceptionActive bool          `json:"any_exception_active"`
	ZeroActivityCount  int           `json:"zero_activity_count"`
	LastForegroundPID  uint32        `json:"last_foreground_pid"`
	Decisions          []Decision    `json:"decisions"`
	Transitions        []Transition  `json:"transitions,omitempty"`
	Errors             []OSError     `json:"errors,omitempty"`
}

// Sink receives every applied transition.
type Sink interface {
	Transition(t Transition)
}

// TickObserver is notified after every tick.
type TickObserver interface {
	TickCompleted(r Report)
}
