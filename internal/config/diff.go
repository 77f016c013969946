package config

import (
	"reflect"
	"sort"
	"strings"

	logx "looperd/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) structured attrs for logging, and (3) the names of loopers whose
// enabled flag changed.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Runtime, newCfg.Runtime) {
		changed = append(changed, "runtime")
		attrs = append(attrs,
			logx.String("runtime.tick", newCfg.Runtime.Tick),
			logx.String("runtime.idle", newCfg.Runtime.Idle),
		)
	}

	if !reflect.DeepEqual(oldCfg.EEPROM, newCfg.EEPROM) {
		changed = append(changed, "eeprom")
		attrs = append(attrs,
			logx.String("eeprom.driver", newCfg.EEPROM.Driver),
			logx.Bool("eeprom.path_set", strings.TrimSpace(newCfg.EEPROM.Path) != ""),
			logx.Int("eeprom.items", len(newCfg.EEPROM.Items)),
		)
	}

	if oldCfg.Systemd != newCfg.Systemd {
		changed = append(changed, "systemd")
		attrs = append(attrs,
			logx.Bool("systemd.notify", newCfg.Systemd.Notify),
			logx.Bool("systemd.watchdog", newCfg.Systemd.Watchdog),
		)
	}

	if oldCfg.Debug != newCfg.Debug {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", newCfg.Debug.Enabled),
			logx.String("debug.addr", newCfg.Debug.Addr),
			logx.Bool("debug.token_set", newCfg.Debug.Token != ""),
		)
	}

	toggled := diffEnabled(oldCfg.Loopers, newCfg.Loopers)
	if len(toggled) > 0 || !sameLoopers(oldCfg.Loopers, newCfg.Loopers) {
		changed = append(changed, "loopers")
		attrs = append(attrs,
			logx.Int("loopers.toggled", len(toggled)),
			logx.Int("loopers.enabled_count", countEnabled(newCfg.Loopers)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, toggled
}

func countEnabled(ls []LooperConfig) int {
	n := 0
	for _, l := range ls {
		if l.IsEnabled() {
			n++
		}
	}
	return n
}

// diffEnabled lists loopers present in both configs whose flag differs.
func diffEnabled(oldL, newL []LooperConfig) []string {
	prev := make(map[string]bool, len(oldL))
	for _, l := range oldL {
		prev[l.Name] = l.IsEnabled()
	}
	out := make([]string, 0)
	for _, l := range newL {
		was, ok := prev[l.Name]
		if ok && was != l.IsEnabled() {
			out = append(out, l.Name)
		}
	}
	sort.Strings(out)
	return out
}
