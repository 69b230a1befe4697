package config

import (
	"fmt"
	"strings"
)

// Explain returns the effective value at the given YAML-like path and its source.
//
// Supported paths include:
//
//	tick_interval
//	activity_window_ticks
//	volume_tolerance
//	state_file
//	backend
//	log_level
//	lock_hotkey
//	logging.enabled
//	logging.file
//	history.path
//	history.retention
//	metrics.listen
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}

	// Exact-path source wins.
	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}

	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	parts := strings.Split(path, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("unknown path: %s", path)
	}
	leaf := func() (string, bool) {
		if len(parts) == 1 {
			return "", true
		}
		return parts[1], false
	}

	switch parts[0] {
	case "tick_interval":
		if len(parts) != 1 {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		return cfg.TickInterval.String(), nil
	case "activity_window_ticks":
		if len(parts) != 1 {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		return cfg.ActivityWindowTicks, nil
	case "volume_tolerance":
		if len(parts) != 1 {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		return cfg.VolumeTolerance, nil
	case "state_file":
		if len(parts) != 1 {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		return cfg.StateFile, nil
	case "backend":
		if len(parts) != 1 {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		return cfg.Backend, nil
	case "log_level":
		if len(parts) != 1 {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		return cfg.LogLevel, nil
	case "lock_hotkey":
		if len(parts) != 1 {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		return cfg.LockHotkey, nil
	case "logging":
		key, whole := leaf()
		if whole {
			return cfg.Logging, nil
		}
		switch key {
		case "enabled":
			return cfg.Logging.Enabled, nil
		case "level":
			return cfg.Logging.Level, nil
		case "file":
			return cfg.Logging.File, nil
		case "max_size_mb":
			return cfg.Logging.MaxSizeMB, nil
		case "max_files":
			return cfg.Logging.MaxFiles, nil
		}
	case "history":
		key, whole := leaf()
		if whole {
			return cfg.History, nil
		}
		switch key {
		case "enabled":
			return cfg.History.Enabled, nil
		case "path":
			return cfg.History.Path, nil
		case "retention":
			return cfg.History.Retention.String(), nil
		}
	case "metrics":
		key, whole := leaf()
		if whole {
			return cfg.Metrics, nil
		}
		switch key {
		case "enabled":
			return cfg.Metrics.Enabled, nil
		case "listen":
			return cfg.Metrics.Listen, nil
		}
	}
	return nil, fmt.Errorf("unknown path: %s", path)
}
