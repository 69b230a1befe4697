package policy

import "strings"

// Flag names a boolean switch of the mute policy.
type Flag string

const (
	FlagForceMuteForeground                Flag = "force_mute_foreground"
	FlagForceMuteBackground                Flag = "force_mute_background"
	FlagKeepLastActiveUnmuted              Flag = "keep_last_active_unmuted"
	FlagMuteForegroundWhenBackgroundActive Flag = "mute_foreground_when_background_active"
)

// AllFlags lists every flag in display order.
var AllFlags = []Flag{
	FlagForceMuteForeground,
	FlagForceMuteBackground,
	FlagKeepLastActiveUnmuted,
	FlagMuteForegroundWhenBackgroundActive,
}

// ParseFlag accepts the canonical flag name, with dashes or underscores.
func ParseFlag(s string) (Flag, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, f := range AllFlags {
		if string(f) == name {
			return f, nil
		}
	}
	return "", ErrUnknownFlag
}

// Flags are the boolean switches of the rule cascade.
type Flags struct {
	ForceMuteForeground                bool `toml:"force_mute_foreground" json:"force_mute_foreground"`
	ForceMuteBackground                bool `toml:"force_mute_background" json:"force_mute_background"`
	KeepLastActiveUnmuted              bool `toml:"keep_last_active_unmuted" json:"keep_last_active_unmuted"`
	MuteForegroundWhenBackgroundActive bool `toml:"mute_foreground_when_background_active" json:"mute_foreground_when_background_active"`
}

// Get returns the value of a single flag.
func (f Flags) Get(flag Flag) bool {
	switch flag {
	case FlagForceMuteForeground:
		return f.ForceMuteForeground
	case FlagForceMuteBackground:
		return f.ForceMuteBackground
	case FlagKeepLastActiveUnmuted:
		return f.KeepLastActiveUnmuted
	case FlagMuteForegroundWhenBackgroundActive:
		return f.MuteForegroundWhenBackgroundActive
	}
	return false
}

func (f *Flags) set(flag Flag, v bool) bool {
	var p *bool
	switch flag {
	case FlagForceMuteForeground:
		p = &f.ForceMuteForeground
	case FlagForceMuteBackground:
		p = &f.ForceMuteBackground
	case FlagKeepLastActiveUnmuted:
		p = &f.KeepLastActiveUnmuted
	case FlagMuteForegroundWhenBackgroundActive:
		p = &f.MuteForegroundWhenBackgroundActive
	default:
		return false
	}
	if *p == v {
		return false
	}
	*p = v
	return true
}

// Document is the persisted form of the policy.
type Document struct {
	Exceptions     []string        `toml:"exceptions" json:"exceptions"`
	Volumes        map[string]int  `toml:"volumes" json:"volumes"`
	MuteGroups     [][]string      `toml:"mute_groups" json:"mute_groups"`
	PIDMatch       []string        `toml:"pid_match" json:"pid_match"`
	ForceMute      map[string]bool `toml:"force_mute" json:"force_mute"`
	Flags          Flags           `toml:"flags" json:"flags"`
	Locked         bool            `toml:"locked" json:"locked"`
	WindowGeometry string          `toml:"window_geometry,omitempty" json:"window_geometry,omitempty"`
}

// DefaultExceptions are the browsers exempted out of the box.
var DefaultExceptions = []string{"chrome.exe", "firefox.exe", "msedge.exe"}

// DefaultDocument returns the policy used when nothing has been saved yet.
func DefaultDocument() Document {
	return Document{
		Exceptions: append([]string(nil), DefaultExceptions...),
		Volumes:    map[string]int{},
		ForceMute:  map[string]bool{},
		Flags: Flags{
			KeepLastActiveUnmuted: true,
		},
	}
}

// NormalizeName canonicalises an executable name for comparisons.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
