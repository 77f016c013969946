package app

import (
	"fmt"
	"time"

	"looperd/internal/config"
	"looperd/internal/eeprom"
	"looperd/internal/handlers"
	"looperd/internal/looper"
	"looperd/internal/platform"
	logx "looperd/pkg/logx"
)

// Report is the result of a dry run over a config file.
type Report struct {
	Config  *config.Config
	Layout  *eeprom.Layout
	Tick    time.Duration
	Loopers []looper.TaskInfo
}

// Check loads the config at path, builds the EEPROM layout and binds every
// looper against a scratch in-memory device. Nothing is opened or written.
func Check(path string) (*Report, error) {
	cfg, err := config.NewConfigManager(path).Parse()
	if err != nil {
		return nil, err
	}
	if _, err := mapEEPROMConfig(cfg); err != nil {
		return nil, err
	}
	layout, err := mapLayout(cfg)
	if err != nil {
		return nil, err
	}
	size := cfg.EEPROM.Size
	if size <= 0 {
		size = eeprom.DefaultSize
	}
	bank, err := eeprom.NewBank(eeprom.NewStore(eeprom.NewMemory(size), platform.NopSection{}), layout)
	if err != nil {
		return nil, err
	}
	if _, err := bank.Prepare(); err != nil {
		return nil, fmt.Errorf("eeprom prepare: %w", err)
	}
	tick, err := cfg.Runtime.TickDuration()
	if err != nil {
		return nil, err
	}
	defs, err := handlers.BuildAll(handlers.Env{Log: logx.Nop(), Bank: bank, Unit: tick}, cfg.Loopers)
	if err != nil {
		return nil, err
	}
	sched, err := looper.New(defs)
	if err != nil {
		return nil, err
	}
	return &Report{Config: cfg, Layout: layout, Tick: tick, Loopers: sched.Snapshot()}, nil
}
