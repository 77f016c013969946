package eeprom

import (
	"fmt"
	"strings"
	"time"

	logx "looperd/pkg/logx"
)

// Erased is the value of a cell that was never written.
const Erased byte = 0xFF

// DefaultSize matches the EEPROM of the ATmega328P.
const DefaultSize = 1024

// Device is a byte-addressable persistent memory.
type Device interface {
	Read(off int) (byte, error)
	Write(off int, b byte) error
	Size() int
	Close() error
}

// Config configures the device.
//
// Driver values:
//   - "memory": volatile byte slice (default)
//   - "file": fixed-size image file
//   - "sqlite": one row per written cell
type Config struct {
	Driver      string
	Path        string
	Size        int
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured device.
func Open(cfg Config, log logx.Logger) (Device, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "memory", "mem":
		return NewMemory(cfg.Size), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func checkOffset(off, size int) error {
	if off < 0 || off >= size {
		return fmt.Errorf("%w: offset %d, size %d", ErrOutOfRange, off, size)
	}
	return nil
}
