package looper

import "looperd/internal/platform"

type Tick = platform.Tick

// State is the enablement state of a looper.
//
// Enabled and Disabled are steady states reflected by queue membership. The
// Executed states only exist for the looper whose callback is running inside
// DispatchDue; enable/disable calls made meanwhile flip the flag and leave the
// queue to the dispatcher.
type State uint8

const (
	Disabled State = iota
	Enabled
	ExecutedEnabled
	ExecutedDisabled
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Enabled:
		return "enabled"
	case ExecutedEnabled:
		return "executed-enabled"
	case ExecutedDisabled:
		return "executed-disabled"
	default:
		return "unknown"
	}
}

// Live reports whether a looper in this state occupies a queue slot.
func (s State) Live() bool { return s != Disabled }

// Handler performs one run of a looper and returns the number of ticks until
// its next run, counted from the start of the current dispatch batch.
//
// Returning 0 re-runs the looper within the same batch.
type Handler interface {
	Run() Tick
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func() Tick

func (f HandlerFunc) Run() Tick { return f() }

// Definition configures one looper. Its index in the slice passed to New is the
// looper id.
type Definition struct {
	Name         string
	Enabled      bool
	InitialDelay Tick
	Handler      Handler
}

// Observer receives scheduler notifications on the dispatch goroutine.
// Implementations must not block.
type Observer interface {
	// Executed is called after a callback returned, before its queue slot is
	// resolved.
	Executed(id int, now, delta Tick)
	// StateChanged is called when a looper moves between steady states.
	StateChanged(id int, from, to State)
}

type Option func(*Scheduler)

func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.obs = o }
}

// Stats are cumulative counters.
type Stats struct {
	Batches        uint64
	Executions     uint64
	ZeroDelta      uint64
	NestedDispatch uint64
}

// TaskInfo is a point-in-time view of one looper.
type TaskInfo struct {
	ID       int
	Name     string
	State    State
	NextDue  Tick
	Position int // queue index, -1 when not queued
}
