package handlers

import (
	"errors"
	"testing"
	"time"

	"looperd/internal/config"
	"looperd/internal/eeprom"
	"looperd/internal/looper"
)

type fakeControl struct {
	on map[string]bool
}

func newFakeControl(names ...string) *fakeControl {
	c := &fakeControl{on: map[string]bool{}}
	for _, n := range names {
		c.on[n] = false
	}
	return c
}

func (c *fakeControl) set(name string, v bool) bool {
	if _, ok := c.on[name]; !ok {
		return false
	}
	c.on[name] = v
	return true
}

func (c *fakeControl) Enable(name string) bool  { return c.set(name, true) }
func (c *fakeControl) Disable(name string) bool { return c.set(name, false) }
func (c *fakeControl) Enabled(name string) bool { return c.on[name] }

func looperCfg(name, handler, interval string, args map[string]any) config.LooperConfig {
	return config.LooperConfig{Name: name, Handler: handler, Interval: interval, Args: args}
}

func mustBuild(t *testing.T, env Env, cfg config.LooperConfig) looper.Definition {
	t.Helper()
	d, err := Build(env, cfg)
	if err != nil {
		t.Fatalf("Build(%s): %v", cfg.Name, err)
	}
	return d
}

func TestBuildAppliesIntervalAndDelay(t *testing.T) {
	t.Parallel()
	env := Env{Unit: time.Millisecond, Loopers: newFakeControl()}
	tests := []struct {
		name  string
		cfg   config.LooperConfig
		delta looper.Tick
	}{
		{name: "self default", cfg: looperCfg("hb", "heartbeat", "", nil), delta: 1000},
		{name: "self every", cfg: looperCfg("hb", "heartbeat", "", map[string]any{"every": "5s"}), delta: 5000},
		{name: "fixed", cfg: looperCfg("hb", "Heartbeat", "250ms", nil), delta: 250},
		{name: "hhmm", cfg: looperCfg("hb", "heartbeat", "00:01", nil), delta: 60000},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := mustBuild(t, env, tt.cfg)
			if got := d.Handler.Run(); got != tt.delta {
				t.Fatalf("delta = %d, want %d", got, tt.delta)
			}
			if !d.Enabled || d.InitialDelay != 0 {
				t.Fatalf("definition = %+v", d)
			}
		})
	}
}

func TestBuildRejects(t *testing.T) {
	t.Parallel()
	env := Env{Loopers: newFakeControl()}
	if _, err := Build(env, looperCfg("x", "teleport", "", nil)); !errors.Is(err, ErrUnknownHandler) {
		t.Fatalf("unknown handler: %v", err)
	}
	if _, err := Build(env, looperCfg("x", "toggle", "", nil)); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("toggle without target: %v", err)
	}
	if _, err := Build(env, looperCfg("x", "counter", "", map[string]any{"var": "n"})); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("counter without bank: %v", err)
	}
	if _, err := Build(env, looperCfg("x", "backoff", "", map[string]any{"min": "2s", "max": "1s"})); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("backoff max<min: %v", err)
	}
	if _, err := Build(env, looperCfg("x", "heartbeat", "", map[string]any{"every": "soon"})); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("bad every: %v", err)
	}
}

func TestInitialDelayAndEnabled(t *testing.T) {
	t.Parallel()
	off := false
	cfg := looperCfg("hb", "heartbeat", "", nil)
	cfg.InitialDelay = "1500ms"
	cfg.Enabled = &off
	d := mustBuild(t, Env{Unit: time.Millisecond}, cfg)
	if d.InitialDelay != 1500 || d.Enabled {
		t.Fatalf("definition = %+v", d)
	}
	cfg.InitialDelay = "-1s"
	if d := mustBuild(t, Env{Unit: time.Millisecond}, cfg); d.InitialDelay != 0 {
		t.Fatalf("negative delay = %d, want 0", d.InitialDelay)
	}
}

func TestCronInterval(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 10, 7, 30, 0, time.UTC)
	env := Env{Unit: time.Millisecond, Now: func() time.Time { return now }, Loopers: newFakeControl()}

	d := mustBuild(t, env, looperCfg("q", "heartbeat", "*/15 * * * *", nil))
	if d.InitialDelay != 450000 {
		t.Fatalf("initial = %d, want first activation", d.InitialDelay)
	}
	if got := d.Handler.Run(); got != 450000 {
		t.Fatalf("delta = %d", got)
	}

	cfg := looperCfg("q", "heartbeat", "@every 2s", nil)
	cfg.InitialDelay = "0s"
	if d := mustBuild(t, env, cfg); d.InitialDelay != 0 {
		t.Fatalf("explicit initial delay ignored: %d", d.InitialDelay)
	}
}

func TestCounterPersists(t *testing.T) {
	t.Parallel()
	layout, err := eeprom.NewLayout([]eeprom.ItemDef{{Name: "boots", Kind: eeprom.KindUint32, Default: "0"}}, "")
	if err != nil {
		t.Fatal(err)
	}
	bank, err := eeprom.NewBank(eeprom.NewStore(eeprom.NewMemory(64), nil), layout)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bank.Prepare(); err != nil {
		t.Fatal(err)
	}
	env := Env{Unit: time.Millisecond, Bank: bank}

	d := mustBuild(t, env, looperCfg("c", "counter", "", map[string]any{"var": "boots", "step": float64(2)}))
	for i := 0; i < 3; i++ {
		d.Handler.Run()
	}
	v, _ := eeprom.Lookup[uint32](bank, "boots")
	if n, _ := v.Get(); n != 6 {
		t.Fatalf("boots = %d, want 6", n)
	}
	if _, err := Build(env, looperCfg("c", "counter", "", map[string]any{"var": "nope"})); !errors.Is(err, eeprom.ErrUnknownItem) {
		t.Fatalf("unknown item: %v", err)
	}
}

func TestToggleAndOneshot(t *testing.T) {
	t.Parallel()
	ctl := newFakeControl("target", "once")
	env := Env{Unit: time.Millisecond, Loopers: ctl}

	tg := mustBuild(t, env, looperCfg("t", "toggle", "", map[string]any{"target": "target"}))
	tg.Handler.Run()
	if !ctl.on["target"] {
		t.Fatalf("first toggle did not enable")
	}
	tg.Handler.Run()
	if ctl.on["target"] {
		t.Fatalf("second toggle did not disable")
	}

	ctl.on["once"] = true
	once := mustBuild(t, env, looperCfg("once", "oneshot", "", map[string]any{"message": "hi"}))
	once.Handler.Run()
	if ctl.on["once"] {
		t.Fatalf("oneshot still enabled")
	}
}

func TestBackoffDoublesToMax(t *testing.T) {
	t.Parallel()
	d := mustBuild(t, Env{Unit: time.Millisecond}, looperCfg("b", "backoff", "", map[string]any{"min": "100ms", "max": "350ms"}))
	want := []looper.Tick{100, 200, 350, 350}
	for i, w := range want {
		if got := d.Handler.Run(); got != w {
			t.Fatalf("run %d delta = %d, want %d", i, got, w)
		}
	}
}

func TestWatchdogPings(t *testing.T) {
	t.Parallel()
	var sent []string
	env := Env{Unit: time.Millisecond, Notify: func(state string) (bool, error) {
		sent = append(sent, state)
		return false, nil
	}}
	d := mustBuild(t, env, looperCfg("wd", "watchdog", "", map[string]any{"every": "2s"}))
	if got := d.Handler.Run(); got != 2000 {
		t.Fatalf("delta = %d", got)
	}
	d.Handler.Run()
	if len(sent) != 2 || sent[0] != "WATCHDOG=1" {
		t.Fatalf("sent = %v", sent)
	}
}

// schedControl drives a real scheduler the way the host does inline.
type schedControl struct{ s *looper.Scheduler }

func (c *schedControl) set(name string, on bool) bool {
	id, ok := c.s.Lookup(name)
	if ok {
		c.s.SetEnabled(id, on)
	}
	return ok
}
func (c *schedControl) Enable(name string) bool  { return c.set(name, true) }
func (c *schedControl) Disable(name string) bool { return c.set(name, false) }
func (c *schedControl) Enabled(name string) bool {
	id, ok := c.s.Lookup(name)
	st := c.s.State(id)
	return ok && (st == looper.Enabled || st == looper.ExecutedEnabled)
}

func TestBuildAllWithScheduler(t *testing.T) {
	t.Parallel()
	ctl := &schedControl{}
	off := false
	cfgs := []config.LooperConfig{
		looperCfg("flip", "toggle", "10ms", map[string]any{"target": "beat"}),
		{Name: "beat", Handler: "heartbeat", Interval: "1ms", Enabled: &off},
		looperCfg("hello", "oneshot", "", nil),
	}
	defs, err := BuildAll(Env{Unit: time.Millisecond, Loopers: ctl}, cfgs)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	s, err := looper.New(defs)
	if err != nil {
		t.Fatal(err)
	}
	ctl.s = s

	s.DispatchDue(0)
	// flip enabled beat, which ran in the same batch; hello ran once.
	if s.State(1) != looper.Enabled || s.State(2) != looper.Disabled {
		t.Fatalf("states: beat=%s hello=%s", s.State(1), s.State(2))
	}
	if s.NextDue(1) != 1 || s.NextDue(0) != 10 {
		t.Fatalf("due: flip=%d beat=%d", s.NextDue(0), s.NextDue(1))
	}
	s.DispatchDue(10)
	if s.State(1) != looper.Disabled {
		t.Fatalf("beat = %s after second flip", s.State(1))
	}
}
