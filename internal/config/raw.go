package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		// Not present.
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawLoggingConfig struct {
	Enabled   *bool   `yaml:"enabled"`
	Level     *string `yaml:"level"`
	File      *string `yaml:"file"`
	MaxSizeMB *int    `yaml:"max_size_mb"`
	MaxFiles  *int    `yaml:"max_files"`
}

type RawHistoryConfig struct {
	Enabled   *bool          `yaml:"enabled"`
	Path      *string        `yaml:"path"`
	Retention *time.Duration `yaml:"retention"`
}

type RawMetricsConfig struct {
	Enabled *bool   `yaml:"enabled"`
	Listen  *string `yaml:"listen"`
}

type RawConfig struct {
	Include             IncludeList       `yaml:"include"`
	TickInterval        *time.Duration    `yaml:"tick_interval"`
	ActivityWindowTicks *int              `yaml:"activity_window_ticks"`
	VolumeTolerance     *float64          `yaml:"volume_tolerance"`
	StateFile           *string           `yaml:"state_file"`
	Backend             *string           `yaml:"backend"`
	LogLevel            *string           `yaml:"log_level"`
	LockHotkey          *string           `yaml:"lock_hotkey"`
	Logging             *RawLoggingConfig `yaml:"logging"`
	History             *RawHistoryConfig `yaml:"history"`
	Metrics             *RawMetricsConfig `yaml:"metrics"`
}

func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c

	if overlay.TickInterval != nil {
		out.TickInterval = overlay.TickInterval
	}
	if overlay.ActivityWindowTicks != nil {
		out.ActivityWindowTicks = overlay.ActivityWindowTicks
	}
	if overlay.VolumeTolerance != nil {
		out.VolumeTolerance = overlay.VolumeTolerance
	}
	if overlay.StateFile != nil {
		out.StateFile = overlay.StateFile
	}
	if overlay.Backend != nil {
		out.Backend = overlay.Backend
	}
	if overlay.LogLevel != nil {
		out.LogLevel = overlay.LogLevel
	}
	if overlay.LockHotkey != nil {
		out.LockHotkey = overlay.LockHotkey
	}

	if overlay.Logging != nil {
		base := RawLoggingConfig{}
		if out.Logging != nil {
			base = *out.Logging
		}
		merged := mergeRawLogging(base, *overlay.Logging)
		out.Logging = &merged
	}
	if overlay.History != nil {
		base := RawHistoryConfig{}
		if out.History != nil {
			base = *out.History
		}
		merged := mergeRawHistory(base, *overlay.History)
		out.History = &merged
	}
	if overlay.Metrics != nil {
		base := RawMetricsConfig{}
		if out.Metrics != nil {
			base = *out.Metrics
		}
		merged := mergeRawMetrics(base, *overlay.Metrics)
		out.Metrics = &merged
	}

	// include is only meaningful within a single file and is handled by the loader.
	out.Include = nil
	return out
}

func mergeRawLogging(base RawLoggingConfig, overlay RawLoggingConfig) RawLoggingConfig {
	out := base
	if overlay.Enabled != nil {
		out.Enabled = overlay.Enabled
	}
	if overlay.Level != nil {
		out.Level = overlay.Level
	}
	if overlay.File != nil {
		out.File = overlay.File
	}
	if overlay.MaxSizeMB != nil {
		out.MaxSizeMB = overlay.MaxSizeMB
	}
	if overlay.MaxFiles != nil {
		out.MaxFiles = overlay.MaxFiles
	}
	return out
}

func mergeRawHistory(base RawHistoryConfig, overlay RawHistoryConfig) RawHistoryConfig {
	out := base
	if overlay.Enabled != nil {
		out.Enabled = overlay.Enabled
	}
	if overlay.Path != nil {
		out.Path = overlay.Path
	}
	if overlay.Retention != nil {
		out.Retention = overlay.Retention
	}
	return out
}

func mergeRawMetrics(base RawMetricsConfig, overlay RawMetricsConfig) RawMetricsConfig {
	out := base
	if overlay.Enabled != nil {
		out.Enabled = overlay.Enabled
	}
	if overlay.Listen != nil {
		out.Listen = overlay.Listen
	}
	return out
}
