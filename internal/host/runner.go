package host

import (
	"context"
	"fmt"
	"time"

	"looperd/internal/eventbus"
	"looperd/internal/looper"
	"looperd/internal/platform"
	logx "looperd/pkg/logx"
)

// Options configures a Runner.
type Options struct {
	Clock platform.Clock
	// Unit is the wall duration of one clock tick.
	Unit time.Duration
	// Idle bounds the sleep between batches.
	Idle time.Duration
	// ZeroDeltaWarnPerSec limits the zero-delay warning.
	ZeroDeltaWarnPerSec int
	// Queue is the command channel capacity.
	Queue int

	Log logx.Logger
	Bus eventbus.Bus
}

type command func(s *looper.Scheduler)

// Runner owns a Scheduler and the goroutine that dispatches it.
type Runner struct {
	opts  Options
	log   logx.Logger
	warn  logx.Logger
	bus   eventbus.Bus
	sched *looper.Scheduler

	cmds    chan command
	stopped chan struct{}
}

// New returns a runner without loopers; call Load before Run.
func New(opts Options) *Runner {
	if opts.Unit <= 0 {
		opts.Unit = time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = platform.NewSystemClock(opts.Unit)
	}
	if opts.Idle <= 0 {
		opts.Idle = time.Second
	}
	if opts.ZeroDeltaWarnPerSec <= 0 {
		opts.ZeroDeltaWarnPerSec = 1
	}
	if opts.Queue <= 0 {
		opts.Queue = 64
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.New()
	}
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		opts:    opts,
		log:     log,
		warn:    log.Throttled(opts.ZeroDeltaWarnPerSec),
		bus:     opts.Bus,
		cmds:    make(chan command, opts.Queue),
		stopped: make(chan struct{}),
	}
}

// Load builds the scheduler from defs. It may be called once.
func (r *Runner) Load(defs []looper.Definition) error {
	if r.sched != nil {
		return ErrAlreadyLoaded
	}
	s, err := looper.New(defs, looper.WithObserver(observer{r}))
	if err != nil {
		return err
	}
	r.sched = s
	r.log.Info("loopers loaded", logx.Int("count", s.Cap()), logx.Int("enabled", s.Len()))
	return nil
}

func (r *Runner) Bus() eventbus.Bus     { return r.bus }
func (r *Runner) Clock() platform.Clock { return r.opts.Clock }

// Inline returns the synchronous controller for code running on the dispatch
// goroutine.
func (r *Runner) Inline() Inline { return Inline{r: r} }

// Step dispatches the loopers due at the current clock reading, then applies
// pending commands. It returns the number of executions.
func (r *Runner) Step() int {
	n := r.sched.DispatchDue(r.opts.Clock.Now())
	r.drain()
	return n
}

func (r *Runner) drain() {
	for {
		select {
		case c := <-r.cmds:
			c(r.sched)
		default:
			return
		}
	}
}

// Run dispatches until ctx ends. Only one Run may be active.
func (r *Runner) Run(ctx context.Context) error {
	if r.sched == nil {
		return ErrNotLoaded
	}
	defer close(r.stopped)
	r.log.Info("dispatch loop started", logx.Duration("idle", r.opts.Idle), logx.Duration("tick", r.opts.Unit))

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		r.Step()
		timer.Reset(r.sleepFor())
		select {
		case <-ctx.Done():
			st := r.sched.Stats()
			r.log.Info("dispatch loop stopped",
				logx.Uint64("batches", st.Batches),
				logx.Uint64("executions", st.Executions),
				logx.Uint64("zero_delta", st.ZeroDelta),
			)
			return nil
		case c := <-r.cmds:
			c(r.sched)
		case <-timer.C:
		}
	}
}

// sleepFor returns the wait until the queue head is due, bounded by idle.
func (r *Runner) sleepFor() time.Duration {
	due, ok := r.sched.NextWake()
	if !ok {
		return r.opts.Idle
	}
	now := r.opts.Clock.Now()
	if due <= now {
		return 0
	}
	ticks := due - now
	if limit := looper.Tick(r.opts.Idle / r.opts.Unit); ticks >= limit {
		return r.opts.Idle
	}
	return time.Duration(ticks) * r.opts.Unit
}

// post hands c to the dispatch goroutine.
func (r *Runner) post(ctx context.Context, c command) error {
	select {
	case <-r.stopped:
		return ErrStopped
	default:
	}
	select {
	case r.cmds <- c:
		return nil
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) lookup(name string) (int, error) {
	if r.sched == nil {
		return 0, ErrNotLoaded
	}
	// The name table is immutable after Load.
	id, ok := r.sched.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLooper, name)
	}
	return id, nil
}

// SetEnabled asks the dispatch goroutine to enable or disable name. It is
// safe to call from any goroutine; the change applies between batches.
func (r *Runner) SetEnabled(ctx context.Context, name string, on bool) error {
	id, err := r.lookup(name)
	if err != nil {
		return err
	}
	r.bus.Publish(eventbus.Event{Type: eventbus.TypeLooperCommand, Data: map[string]any{"name": name, "enabled": on}})
	return r.post(ctx, func(s *looper.Scheduler) { s.SetEnabled(id, on) })
}

func (r *Runner) Enable(ctx context.Context, name string) error {
	return r.SetEnabled(ctx, name, true)
}

func (r *Runner) Disable(ctx context.Context, name string) error {
	return r.SetEnabled(ctx, name, false)
}

// Snapshot is a consistent view of the scheduler taken between batches.
type Snapshot struct {
	Now     looper.Tick
	Stats   looper.Stats
	Loopers []looper.TaskInfo
}

// Snapshot reads the scheduler state on the dispatch goroutine.
func (r *Runner) Snapshot(ctx context.Context) (Snapshot, error) {
	if r.sched == nil {
		return Snapshot{}, ErrNotLoaded
	}
	reply := make(chan Snapshot, 1)
	err := r.post(ctx, func(s *looper.Scheduler) {
		reply <- Snapshot{Now: s.Now(), Stats: s.Stats(), Loopers: s.Snapshot()}
	})
	if err != nil {
		return Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-r.stopped:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// observer forwards scheduler notifications to the log and the bus.
type observer struct{ r *Runner }

func (o observer) Executed(id int, now, delta looper.Tick) {
	if delta != 0 {
		return
	}
	name := o.r.sched.Name(id)
	o.r.warn.Warn("looper re-armed with zero delay; it runs again in this batch",
		logx.String("looper", name),
		logx.Uint64("tick", now),
	)
	o.r.bus.Publish(eventbus.Event{
		Type: eventbus.TypeLooperZeroDelta,
		Data: eventbus.ZeroDelta{ID: id, Name: name, Tick: now},
	})
}

func (o observer) StateChanged(id int, from, to looper.State) {
	name := o.r.sched.Name(id)
	o.r.log.Debug("looper state changed",
		logx.String("looper", name),
		logx.String("from", from.String()),
		logx.String("to", to.String()),
	)
	o.r.bus.Publish(eventbus.Event{
		Type: eventbus.TypeLooperState,
		Data: eventbus.StateChange{ID: id, Name: name, From: from.String(), To: to.String()},
	})
}
