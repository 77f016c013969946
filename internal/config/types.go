package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Runtime RuntimeConfig  `json:"runtime"`
	EEPROM  EEPROMConfig   `json:"eeprom"`
	Loopers []LooperConfig `json:"loopers"`
	Systemd SystemdConfig  `json:"systemd"`
	Debug   DebugConfig    `json:"debug"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    FileLogConfig `json:"file"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// RuntimeConfig controls the dispatch loop.
//
// Durations are Go duration strings.
//
// Defaults (when fields are omitted/zero):
//   - tick: "1ms" (the unit of looper delays)
//   - idle: "1s" (longest sleep between batches)
//   - zero_delta_warn_per_sec: 1
type RuntimeConfig struct {
	Tick                string `json:"tick,omitempty"`
	Idle                string `json:"idle,omitempty"`
	ZeroDeltaWarnPerSec int    `json:"zero_delta_warn_per_sec,omitempty"`
}

// EEPROMConfig selects the persistent memory device and its layout.
//
// Driver values: "memory" (default), "file", "sqlite".
// LayoutVersion values: "hash" (default), "random", or a decimal number.
type EEPROMConfig struct {
	Driver        string       `json:"driver,omitempty"`
	Path          string       `json:"path,omitempty"`
	Size          int          `json:"size,omitempty"`
	LayoutVersion string       `json:"layout_version,omitempty"`
	BusyTimeout   string       `json:"busy_timeout,omitempty"`
	Items         []EEPROMItem `json:"items,omitempty"`
}

type EEPROMItem struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Cached  bool   `json:"cached,omitempty"`
	Length  int    `json:"length,omitempty"`
	Default string `json:"default,omitempty"`
}

// LooperConfig binds a named looper to a built-in handler.
//
// Interval forms:
//   - "" : the handler returns its own delay
//   - Go duration or HH:MM: fixed delay after each run
//   - cron expression: delay until the next activation
//
// Enabled is a pointer so that an omitted flag means enabled.
type LooperConfig struct {
	Name         string         `json:"name"`
	Handler      string         `json:"handler"`
	Interval     string         `json:"interval,omitempty"`
	InitialDelay string         `json:"initial_delay,omitempty"`
	Enabled      *bool          `json:"enabled,omitempty"`
	Args         map[string]any `json:"args,omitempty"`
}

type SystemdConfig struct {
	// Notify sends READY=1 and STOPPING=1 to the service manager.
	Notify bool `json:"notify"`
	// Watchdog pings WATCHDOG=1 from the "watchdog" handler.
	Watchdog bool `json:"watchdog"`
}

// DebugConfig controls the debug HTTP server (health, looper snapshot, pprof).
// A non-loopback Addr is refused unless Token is set.
type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
}

// IsEnabled reports the effective enabled flag.
func (l LooperConfig) IsEnabled() bool { return l.Enabled == nil || *l.Enabled }

// InitialDelayDuration parses InitialDelay. Negative values clamp to 0.
func (l LooperConfig) InitialDelayDuration() (time.Duration, error) {
	s := strings.TrimSpace(l.InitialDelay)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("loopers.%s.initial_delay: invalid duration %q: %w", l.Name, l.InitialDelay, err)
	}
	if d < 0 {
		d = 0
	}
	return d, nil
}

// Arg returns args[key] as a string, or "" when unset.
func (l LooperConfig) Arg(key string) string {
	v, ok := l.Args[key]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		// JSON numbers; keep integers free of exponents.
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprint(x)
	default:
		return fmt.Sprint(x)
	}
}

// ArgKeys returns the arg names in sorted order.
func (l LooperConfig) ArgKeys() []string {
	keys := make([]string, 0, len(l.Args))
	for k := range l.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Looper returns the looper called name.
func (c *Config) Looper(name string) (LooperConfig, bool) {
	for _, l := range c.Loopers {
		if l.Name == name {
			return l, true
		}
	}
	return LooperConfig{}, false
}
