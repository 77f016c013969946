package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

const (
	DefaultTick                = time.Millisecond
	DefaultIdle                = time.Second
	DefaultZeroDeltaWarnPerSec = 1
	DefaultDebugAddr           = "127.0.0.1:6060"
)

// Normalize fills defaults in place.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if strings.TrimSpace(c.Runtime.Tick) == "" {
		c.Runtime.Tick = DefaultTick.String()
	}
	if strings.TrimSpace(c.Runtime.Idle) == "" {
		c.Runtime.Idle = DefaultIdle.String()
	}
	if c.Runtime.ZeroDeltaWarnPerSec <= 0 {
		c.Runtime.ZeroDeltaWarnPerSec = DefaultZeroDeltaWarnPerSec
	}
	if strings.TrimSpace(c.EEPROM.Driver) == "" {
		c.EEPROM.Driver = "memory"
	}
	if c.Debug.Enabled && strings.TrimSpace(c.Debug.Addr) == "" {
		c.Debug.Addr = DefaultDebugAddr
	}
	for i := range c.Loopers {
		c.Loopers[i].Name = strings.TrimSpace(c.Loopers[i].Name)
		c.Loopers[i].Handler = strings.ToLower(strings.TrimSpace(c.Loopers[i].Handler))
	}
}

// TickDuration returns the parsed tick (the unit of looper delays).
func (r RuntimeConfig) TickDuration() (time.Duration, error) {
	return ParseDuration("runtime.tick", r.Tick, DefaultTick)
}

// IdleDuration returns the parsed idle bound.
func (r RuntimeConfig) IdleDuration() (time.Duration, error) {
	return ParseDuration("runtime.idle", r.Idle, DefaultIdle)
}

// BusyTimeoutDuration returns the sqlite busy timeout (0 means driver default).
func (e EEPROMConfig) BusyTimeoutDuration() (time.Duration, error) {
	return ParseDuration("eeprom.busy_timeout", e.BusyTimeout, 0)
}

// Validate checks a normalized config.
func Validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	tick, err := c.Runtime.TickDuration()
	if err != nil {
		return err
	}
	idle, err := c.Runtime.IdleDuration()
	if err != nil {
		return err
	}
	if idle < tick {
		return fmt.Errorf("%w: runtime.idle (%s) must be >= runtime.tick (%s)", ErrInvalidConfig, idle, tick)
	}
	if _, err := c.EEPROM.BusyTimeoutDuration(); err != nil {
		return err
	}
	if c.EEPROM.Size < 0 {
		return fmt.Errorf("%w: eeprom.size must be >= 0", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Loopers))
	for i, l := range c.Loopers {
		if l.Name == "" {
			return fmt.Errorf("%w: loopers[%d]: name required", ErrInvalidConfig, i)
		}
		if seen[l.Name] {
			return fmt.Errorf("%w: loopers: duplicate name %q", ErrInvalidConfig, l.Name)
		}
		seen[l.Name] = true
		if l.Handler == "" {
			return fmt.Errorf("%w: loopers.%s: handler required", ErrInvalidConfig, l.Name)
		}
		if _, err := ParseInterval(l.Interval); err != nil {
			return fmt.Errorf("%w: loopers.%s.interval: %v", ErrInvalidConfig, l.Name, err)
		}
		if _, err := l.InitialDelayDuration(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// ValidateReload rejects changes that only take effect on restart. The looper
// registry is fixed at startup; of its fields only enabled may change.
func ValidateReload(oldCfg, newCfg *Config) error {
	if oldCfg == nil {
		return nil
	}
	if err := Validate(newCfg); err != nil {
		return err
	}
	var fixed []string
	if !reflect.DeepEqual(oldCfg.Runtime, newCfg.Runtime) {
		fixed = append(fixed, "runtime")
	}
	if !reflect.DeepEqual(oldCfg.EEPROM, newCfg.EEPROM) {
		fixed = append(fixed, "eeprom")
	}
	if oldCfg.Systemd != newCfg.Systemd {
		fixed = append(fixed, "systemd")
	}
	if oldCfg.Debug != newCfg.Debug {
		fixed = append(fixed, "debug")
	}
	if !sameLoopers(oldCfg.Loopers, newCfg.Loopers) {
		fixed = append(fixed, "loopers")
	}
	if len(fixed) > 0 {
		return fmt.Errorf("%w: %s", ErrRestartRequired, strings.Join(fixed, ", "))
	}
	return nil
}

func sameLoopers(a, b []LooperConfig) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		x.Enabled, y.Enabled = nil, nil
		if len(x.Args) == 0 {
			x.Args = nil
		}
		if len(y.Args) == 0 {
			y.Args = nil
		}
		if !reflect.DeepEqual(x, y) {
			return false
		}
	}
	return true
}
