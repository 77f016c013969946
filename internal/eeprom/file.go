package eeprom

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "looperd/pkg/logx"
)

// fileDevice keeps the EEPROM image in a regular file of exactly Size bytes.
// A missing or short file is extended with erased cells.
type fileDevice struct {
	log logx.Logger

	mu   sync.Mutex
	f    *os.File
	size int
}

func openFile(cfg Config, log logx.Logger) (Device, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("eeprom.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if cur := int(st.Size()); cur < cfg.Size {
		pad := bytes.Repeat([]byte{Erased}, cfg.Size-cur)
		if _, err := f.WriteAt(pad, int64(cur)); err != nil {
			_ = f.Close()
			return nil, err
		}
		log.Debug("eeprom image extended", logx.String("path", path), logx.Int("from", cur), logx.Int("to", cfg.Size))
	}
	return &fileDevice{log: log, f: f, size: cfg.Size}, nil
}

func (d *fileDevice) Read(off int) (byte, error) {
	if err := checkOffset(off, d.size); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return 0, ErrClosed
	}
	var b [1]byte
	if _, err := d.f.ReadAt(b[:], int64(off)); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *fileDevice) Write(off int, b byte) error {
	if err := checkOffset(off, d.size); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return ErrClosed
	}
	_, err := d.f.WriteAt([]byte{b}, int64(off))
	return err
}

func (d *fileDevice) Size() int { return d.size }

func (d *fileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err1 := d.f.Sync()
	err2 := d.f.Close()
	d.f = nil
	if err1 != nil {
		return err1
	}
	return err2
}
