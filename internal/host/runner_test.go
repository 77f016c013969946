package host

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"looperd/internal/eventbus"
	"looperd/internal/looper"
	"looperd/internal/platform"
	logx "looperd/pkg/logx"
)

func counting(n *atomic.Int32, delta looper.Tick) looper.Handler {
	return looper.HandlerFunc(func() looper.Tick {
		n.Add(1)
		return delta
	})
}

func newManual(t *testing.T, defs []looper.Definition, opts Options) (*Runner, *platform.ManualClock) {
	t.Helper()
	clock := platform.NewManualClock(0)
	opts.Clock = clock
	r := New(opts)
	if err := r.Load(defs); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return r, clock
}

func TestStepDispatchesAtClockTime(t *testing.T) {
	t.Parallel()
	var a, b atomic.Int32
	r, clock := newManual(t, []looper.Definition{
		{Name: "a", Enabled: true, Handler: counting(&a, 10)},
		{Name: "b", Enabled: true, InitialDelay: 5, Handler: counting(&b, 10)},
	}, Options{})

	if n := r.Step(); n != 1 || a.Load() != 1 {
		t.Fatalf("step at 0 ran %d", n)
	}
	clock.Set(5)
	if n := r.Step(); n != 1 || b.Load() != 1 {
		t.Fatalf("step at 5 ran %d", n)
	}
	clock.Set(15)
	if n := r.Step(); n != 2 {
		t.Fatalf("step at 15 ran %d, want 2", n)
	}
}

func TestCommandsApplyBetweenBatches(t *testing.T) {
	t.Parallel()
	var a atomic.Int32
	r, clock := newManual(t, []looper.Definition{
		{Name: "a", Enabled: true, Handler: counting(&a, 1)},
	}, Options{})
	ctx := context.Background()

	if err := r.Disable(ctx, "a"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	// The batch runs first, then the command.
	r.Step()
	clock.Advance(1)
	r.Step()
	if a.Load() != 1 {
		t.Fatalf("runs = %d, want 1", a.Load())
	}

	if err := r.Enable(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	r.Step()
	r.Step()
	if a.Load() != 2 {
		t.Fatalf("runs = %d after enable, want 2", a.Load())
	}
	if err := r.Enable(ctx, "nope"); !errors.Is(err, ErrUnknownLooper) {
		t.Fatalf("unknown looper: %v", err)
	}
}

func TestObserverPublishesEvents(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	var r *Runner
	runs := 0
	r, _ = newManual(t, []looper.Definition{
		{Name: "spin", Enabled: true, Handler: looper.HandlerFunc(func() looper.Tick {
			runs++
			if runs < 4 {
				return 0
			}
			r.Inline().Disable("spin")
			return 1
		})},
	}, Options{Bus: bus, Log: logx.NewWriter(&buf, "debug"), ZeroDeltaWarnPerSec: 1})

	if n := r.Step(); n != 4 {
		t.Fatalf("executions = %d, want 4", n)
	}

	var zero, state int
	for len(events) > 0 {
		e := <-events
		switch e.Type {
		case eventbus.TypeLooperZeroDelta:
			zero++
		case eventbus.TypeLooperState:
			sc := e.Data.(eventbus.StateChange)
			if sc.Name != "spin" || sc.To != looper.Disabled.String() {
				t.Fatalf("state event = %+v", sc)
			}
			state++
		}
	}
	if zero != 3 || state != 1 {
		t.Fatalf("zero=%d state=%d", zero, state)
	}
	if got := strings.Count(buf.String(), "zero delay"); got != 1 {
		t.Fatalf("zero-delay warnings = %d, want 1 (throttled)", got)
	}
}

func TestInlineRejectsUnknownNames(t *testing.T) {
	t.Parallel()
	var a atomic.Int32
	r := New(Options{Clock: platform.NewManualClock(0)})
	if r.Inline().Enable("a") {
		t.Fatalf("enable before load succeeded")
	}
	if _, err := r.Snapshot(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Snapshot before load: %v", err)
	}
	if err := r.Run(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Run before load: %v", err)
	}
	defs := []looper.Definition{{Name: "a", Handler: counting(&a, 1)}}
	if err := r.Load(defs); err != nil {
		t.Fatal(err)
	}
	if err := r.Load(defs); !errors.Is(err, ErrAlreadyLoaded) {
		t.Fatalf("second Load: %v", err)
	}
	in := r.Inline()
	if in.Disable("b") || in.Enabled("a") {
		t.Fatalf("unexpected inline result")
	}
	if !in.Enable("a") || !in.Enabled("a") {
		t.Fatalf("inline enable failed")
	}
}

func TestSleepForIsBoundedByIdle(t *testing.T) {
	t.Parallel()
	var a atomic.Int32
	r, clock := newManual(t, []looper.Definition{
		{Name: "a", Enabled: true, InitialDelay: 500, Handler: counting(&a, 5000)},
	}, Options{Unit: time.Millisecond, Idle: time.Second})

	clock.Set(100)
	if d := r.sleepFor(); d != 400*time.Millisecond {
		t.Fatalf("sleep = %v, want 400ms", d)
	}
	clock.Set(600)
	if d := r.sleepFor(); d != 0 {
		t.Fatalf("overdue sleep = %v", d)
	}
	r.Step()
	if d := r.sleepFor(); d != time.Second {
		t.Fatalf("far sleep = %v, want idle", d)
	}
	r.Inline().Disable("a")
	if d := r.sleepFor(); d != time.Second {
		t.Fatalf("empty queue sleep = %v", d)
	}
}

func TestRunWithSystemClock(t *testing.T) {
	t.Parallel()
	var a atomic.Int32
	r := New(Options{Unit: time.Millisecond, Idle: 50 * time.Millisecond})
	if err := r.Load([]looper.Definition{{Name: "fast", Enabled: true, Handler: counting(&a, 2)}}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for a.Load() < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("looper ran %d times", a.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	snap, err := r.Snapshot(sctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Loopers) != 1 || snap.Loopers[0].State != looper.Enabled || snap.Stats.Executions < 5 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if err := r.Disable(sctx, "fast"); err != nil {
		t.Fatal(err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run = %v", err)
	}
	if err := r.Enable(context.Background(), "fast"); !errors.Is(err, ErrStopped) {
		t.Fatalf("Enable after stop: %v", err)
	}
}
