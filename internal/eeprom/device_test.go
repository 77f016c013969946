package eeprom

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	logx "looperd/pkg/logx"
)

func TestOpenDefaultsToMemory(t *testing.T) {
	t.Parallel()
	dev, err := Open(Config{}, logx.Logger{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close()
	if dev.Size() != DefaultSize {
		t.Fatalf("size = %d, want %d", dev.Size(), DefaultSize)
	}
	if b, err := dev.Read(DefaultSize - 1); err != nil || b != Erased {
		t.Fatalf("last cell = %#x, %v", b, err)
	}
	if _, err := dev.Read(DefaultSize); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("read past end: %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "tape"}, logx.Nop()); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("err = %v, want ErrUnknownDriver", err)
	}
}

func TestPersistentDevices(t *testing.T) {
	t.Parallel()
	tests := []struct {
		driver string
		file   string
	}{
		{driver: "file", file: "eeprom.bin"},
		{driver: "sqlite", file: "eeprom.db"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.driver, func(t *testing.T) {
			t.Parallel()
			cfg := Config{Driver: tt.driver, Path: filepath.Join(t.TempDir(), "sub", tt.file), Size: 32}

			dev, err := Open(cfg, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if err := dev.Write(5, 3); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := dev.Write(5, 4); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			if err := dev.Write(32, 1); !errors.Is(err, ErrOutOfRange) {
				t.Fatalf("write past end: %v", err)
			}
			if err := dev.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if _, err := dev.Read(5); !errors.Is(err, ErrClosed) {
				t.Fatalf("read after close: %v", err)
			}

			dev, err = Open(cfg, logx.Nop())
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer dev.Close()
			if b, err := dev.Read(5); err != nil || b != 4 {
				t.Fatalf("cell 5 = %d, %v", b, err)
			}
			if b, err := dev.Read(6); err != nil || b != Erased {
				t.Fatalf("cell 6 = %#x, %v", b, err)
			}
		})
	}
}

func TestFileDeviceExtendsShortImage(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "img.bin")
	if err := os.WriteFile(path, []byte{1, 2}, 0o600); err != nil {
		t.Fatal(err)
	}
	dev, err := Open(Config{Driver: "file", Path: path, Size: 16}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close()
	if b, _ := dev.Read(1); b != 2 {
		t.Fatalf("existing cell = %d, want 2", b)
	}
	if b, _ := dev.Read(15); b != Erased {
		t.Fatalf("padded cell = %#x", b)
	}
	st, err := os.Stat(path)
	if err != nil || st.Size() != 16 {
		t.Fatalf("image size = %v, %v", st, err)
	}
}

func TestPersistentDevicesRequirePath(t *testing.T) {
	t.Parallel()
	for _, d := range []string{"file", "sqlite"} {
		if _, err := Open(Config{Driver: d}, logx.Nop()); err == nil {
			t.Fatalf("%s: expected error without path", d)
		}
	}
}
