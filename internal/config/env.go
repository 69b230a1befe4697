package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "FOCUSMUTE"

// envOverrides are read after all files. A nil field means the variable
// is unset.
type envOverrides struct {
	TickInterval  *time.Duration `envconfig:"TICK_INTERVAL"`
	LogLevel      *string        `envconfig:"LOG_LEVEL"`
	StateFile     *string        `envconfig:"STATE_FILE"`
	Backend       *string        `envconfig:"BACKEND"`
	MetricsListen *string        `envconfig:"METRICS_LISTEN"`
	HistoryPath   *string        `envconfig:"HISTORY_PATH"`
}

func envName(key string) string {
	return EnvPrefix + "_" + key
}

// loadEnv returns the environment as a raw overlay plus the source of each
// path it sets.
func loadEnv() (RawConfig, map[string]Source, error) {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return RawConfig{}, nil, fmt.Errorf("environment: %w", err)
	}

	raw := RawConfig{}
	sources := map[string]Source{}
	set := func(path, key string) {
		sources[path] = Source{Kind: SourceEnv, Name: envName(key)}
	}

	if env.TickInterval != nil {
		raw.TickInterval = env.TickInterval
		set("tick_interval", "TICK_INTERVAL")
	}
	if env.LogLevel != nil {
		raw.LogLevel = env.LogLevel
		set("log_level", "LOG_LEVEL")
	}
	if env.StateFile != nil {
		raw.StateFile = env.StateFile
		set("state_file", "STATE_FILE")
	}
	if env.Backend != nil {
		raw.Backend = env.Backend
		set("backend", "BACKEND")
	}
	if env.MetricsListen != nil {
		raw.Metrics = &RawMetricsConfig{Listen: env.MetricsListen}
		set("metrics.listen", "METRICS_LISTEN")
	}
	if env.HistoryPath != nil {
		raw.History = &RawHistoryConfig{Path: env.HistoryPath}
		set("history.path", "HISTORY_PATH")
	}

	return raw, sources, nil
}
