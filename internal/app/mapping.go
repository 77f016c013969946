package app

import (
	"fmt"
	"strings"
	"time"

	"looperd/internal/config"
	"looperd/internal/eeprom"
	logx "looperd/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapEEPROMConfig(cfg *config.Config) (eeprom.Config, error) {
	ec := cfg.EEPROM
	driver := strings.ToLower(strings.TrimSpace(ec.Driver))
	path := strings.TrimSpace(ec.Path)
	switch driver {
	case "", "memory", "mem":
		return eeprom.Config{Driver: "memory", Size: ec.Size}, nil
	case "file":
		if path == "" {
			return eeprom.Config{}, fmt.Errorf("eeprom.path is required when eeprom.driver=file")
		}
		return eeprom.Config{Driver: "file", Path: path, Size: ec.Size}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return eeprom.Config{}, fmt.Errorf("eeprom.path is required when eeprom.driver=sqlite")
		}
		busy, err := config.ParseDuration("eeprom.busy_timeout", ec.BusyTimeout, time.Second)
		if err != nil {
			return eeprom.Config{}, err
		}
		return eeprom.Config{Driver: "sqlite", Path: path, Size: ec.Size, BusyTimeout: busy}, nil
	default:
		return eeprom.Config{}, fmt.Errorf("unknown eeprom.driver: %s", ec.Driver)
	}
}

func mapLayout(cfg *config.Config) (*eeprom.Layout, error) {
	defs := make([]eeprom.ItemDef, 0, len(cfg.EEPROM.Items))
	for i, it := range cfg.EEPROM.Items {
		kind, err := eeprom.ParseKind(it.Type)
		if err != nil {
			return nil, fmt.Errorf("eeprom.items[%d] (%s): %w", i, it.Name, err)
		}
		defs = append(defs, eeprom.ItemDef{
			Name:    it.Name,
			Kind:    kind,
			Cached:  it.Cached,
			Length:  it.Length,
			Default: it.Default,
		})
	}
	return eeprom.NewLayout(defs, cfg.EEPROM.LayoutVersion)
}
