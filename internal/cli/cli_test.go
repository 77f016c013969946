package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const checkConfig = `
runtime:
  tick: 1ms
eeprom:
  items:
    - {name: boots, type: uint32, default: "0"}
    - {name: temps, type: int16, length: 4}
loopers:
  - name: count
    handler: counter
    initial_delay: 20ms
    args: {var: boots}
  - name: beat
    handler: heartbeat
    enabled: false
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckPrintsLayoutAndQueue(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "looperd.yaml")
	if err := os.WriteFile(path, []byte(checkConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "check", "-c", path)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	for _, want := range []string{"boots", "temps", "int16", "count", "enabled", "disabled", "tick=1ms", "used=16"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckFailsOnBadConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "looperd.yaml")
	if err := os.WriteFile(path, []byte("loopers: [{name: a}]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "check", "--config", path); err == nil {
		t.Fatalf("check accepted a looper without handler")
	}
}

func TestRejectsArgs(t *testing.T) {
	t.Parallel()
	if _, err := execute(t, "check", "extra"); err == nil {
		t.Fatalf("check accepted a positional arg")
	}
}
