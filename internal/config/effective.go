package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Source.Kind == SourceEnv && e.Source.Name != "" {
		return fmt.Sprintf("%s: %s: %v", e.Source.Name, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// BuildEffectiveConfig applies a merged raw config on top of the defaults.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.TickInterval != nil {
		cfg.TickInterval = *raw.TickInterval
	}
	if raw.ActivityWindowTicks != nil {
		cfg.ActivityWindowTicks = *raw.ActivityWindowTicks
	}
	if raw.VolumeTolerance != nil {
		cfg.VolumeTolerance = *raw.VolumeTolerance
	}
	if raw.StateFile != nil {
		cfg.StateFile = strings.TrimSpace(*raw.StateFile)
	}
	if raw.Backend != nil {
		cfg.Backend = strings.ToLower(strings.TrimSpace(*raw.Backend))
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(*raw.LogLevel))
	}
	if raw.LockHotkey != nil {
		cfg.LockHotkey = strings.TrimSpace(*raw.LockHotkey)
	}

	if raw.Logging != nil {
		if raw.Logging.Enabled != nil {
			cfg.Logging.Enabled = *raw.Logging.Enabled
		}
		if raw.Logging.Level != nil {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*raw.Logging.Level))
		}
		if raw.Logging.File != nil {
			cfg.Logging.File = *raw.Logging.File
		}
		cfg.Logging.MaxSizeMB = derefInt(raw.Logging.MaxSizeMB, cfg.Logging.MaxSizeMB)
		cfg.Logging.MaxFiles = derefInt(raw.Logging.MaxFiles, cfg.Logging.MaxFiles)
	}

	if raw.History != nil {
		if raw.History.Enabled != nil {
			cfg.History.Enabled = *raw.History.Enabled
		}
		if raw.History.Path != nil {
			cfg.History.Path = *raw.History.Path
		}
		if raw.History.Retention != nil {
			cfg.History.Retention = *raw.History.Retention
		}
	}

	if raw.Metrics != nil {
		if raw.Metrics.Enabled != nil {
			cfg.Metrics.Enabled = *raw.Metrics.Enabled
		}
		if raw.Metrics.Listen != nil {
			cfg.Metrics.Listen = strings.TrimSpace(*raw.Metrics.Listen)
		}
	}

	return cfg, nil
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
