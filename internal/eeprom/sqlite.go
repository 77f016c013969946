package eeprom

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "looperd/pkg/logx"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS eeprom (
	addr  INTEGER PRIMARY KEY,
	value INTEGER NOT NULL
);`

// sqliteDevice stores written cells as rows. Cells without a row read as
// erased.
type sqliteDevice struct {
	db   *sql.DB
	log  logx.Logger
	size int
}

func openSQLite(cfg Config, log logx.Logger) (Device, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("eeprom.path is required for sqlite driver")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteDevice{db: db, log: log, size: cfg.Size}, nil
}

func (d *sqliteDevice) Read(off int) (byte, error) {
	if err := checkOffset(off, d.size); err != nil {
		return 0, err
	}
	if d.db == nil {
		return 0, ErrClosed
	}
	var v int64
	err := d.db.QueryRow(`SELECT value FROM eeprom WHERE addr = ?`, off).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return Erased, nil
	}
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

func (d *sqliteDevice) Write(off int, b byte) error {
	if err := checkOffset(off, d.size); err != nil {
		return err
	}
	if d.db == nil {
		return ErrClosed
	}
	_, err := d.db.Exec(
		`INSERT INTO eeprom(addr, value) VALUES(?,?)
		 ON CONFLICT(addr) DO UPDATE SET value=excluded.value`,
		off, int64(b),
	)
	return err
}

func (d *sqliteDevice) Size() int { return d.size }

func (d *sqliteDevice) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}
