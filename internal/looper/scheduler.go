package looper

import (
	"fmt"
	"sort"
	"strings"
)

type task struct {
	name    string
	nextDue Tick
	state   State
	handler Handler
}

// Scheduler dispatches loopers in due-time order.
type Scheduler struct {
	tasks []task
	names map[string]int

	// queue[:n] holds ids of live loopers sorted ascending by nextDue.
	queue []int
	n     int

	// now is the time of the last dispatch batch; newly enabled loopers are
	// due at this time.
	now         Tick
	dispatching bool

	obs   Observer
	stats Stats
}

// New builds the registry from defs and seeds the queue with the enabled
// loopers ordered by initial delay (ties keep definition order).
func New(defs []Definition, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		tasks: make([]task, len(defs)),
		names: make(map[string]int, len(defs)),
		queue: make([]int, len(defs)),
	}
	for i, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: looper %d: name required", ErrInvalidDefinition, i)
		}
		if d.Handler == nil {
			return nil, fmt.Errorf("%w: looper %q: handler required", ErrInvalidDefinition, name)
		}
		if prev, ok := s.names[name]; ok {
			return nil, fmt.Errorf("%w: %q (ids %d and %d)", ErrDuplicateName, name, prev, i)
		}
		s.names[name] = i
		s.tasks[i] = task{name: name, handler: d.Handler}
		if d.Enabled {
			s.tasks[i].state = Enabled
			s.tasks[i].nextDue = d.InitialDelay
			s.queue[s.n] = i
			s.n++
		}
	}
	live := s.queue[:s.n]
	sort.SliceStable(live, func(a, b int) bool {
		return s.tasks[live[a]].nextDue < s.tasks[live[b]].nextDue
	})
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// DispatchDue runs every looper due at or before now and returns the number of
// callback executions.
//
// New due times are now+delta, so a late batch shifts later runs instead of
// letting them catch up. A nested call from inside a callback is ignored.
func (s *Scheduler) DispatchDue(now Tick) int {
	if s.n == 0 {
		return 0
	}
	if s.dispatching {
		s.stats.NestedDispatch++
		return 0
	}
	s.dispatching = true
	defer func() { s.dispatching = false }()

	s.now = now
	s.stats.Batches++
	ran := 0
	for s.n > 0 {
		id := s.queue[0]
		t := &s.tasks[id]
		if t.nextDue > now {
			break
		}

		t.state = ExecutedEnabled
		delta := t.handler.Run()
		t.nextDue = now + delta

		ran++
		s.stats.Executions++
		if delta == 0 {
			s.stats.ZeroDelta++
		}
		if s.obs != nil {
			s.obs.Executed(id, now, delta)
		}
		s.resolve(id)
	}
	return ran
}

// resolve moves the just-executed looper to its new slot, or drops it when the
// callback (or another one) disabled it meanwhile.
func (s *Scheduler) resolve(id int) {
	t := &s.tasks[id]
	// Usually 0, but the callback may have enabled loopers in front of it.
	pos := s.indexOf(id)
	end := s.n

	if t.state == ExecutedEnabled {
		due := t.nextDue
		w := pos
		for r := pos + 1; r < end && s.tasks[s.queue[r]].nextDue <= due; r++ {
			s.queue[w] = s.queue[r]
			w++
		}
		s.queue[w] = id
		t.state = Enabled
		return
	}

	copy(s.queue[pos:end-1], s.queue[pos+1:end])
	s.n--
	t.state = Disabled
	s.changed(id, Enabled, Disabled)
}

func (s *Scheduler) indexOf(id int) int {
	for i := 0; i < s.n; i++ {
		if s.queue[i] == id {
			return i
		}
	}
	panic(fmt.Sprintf("looper: %q (state %s) missing from queue", s.tasks[id].name, s.tasks[id].state))
}

func (s *Scheduler) changed(id int, from, to State) {
	if s.obs != nil {
		s.obs.StateChanged(id, from, to)
	}
}

// Len returns the number of queued loopers.
func (s *Scheduler) Len() int { return s.n }

// Cap returns the registry size.
func (s *Scheduler) Cap() int { return len(s.tasks) }

// Now returns the time of the last dispatch batch.
func (s *Scheduler) Now() Tick { return s.now }

// NextWake returns the due time of the queue head. ok is false when nothing is
// queued.
func (s *Scheduler) NextWake() (due Tick, ok bool) {
	if s.n == 0 {
		return 0, false
	}
	return s.tasks[s.queue[0]].nextDue, true
}

func (s *Scheduler) State(id int) State  { return s.tasks[id].state }
func (s *Scheduler) NextDue(id int) Tick { return s.tasks[id].nextDue }
func (s *Scheduler) Name(id int) string  { return s.tasks[id].name }
func (s *Scheduler) Stats() Stats        { return s.stats }
func (s *Scheduler) Dispatching() bool   { return s.dispatching }

// Lookup resolves a looper name to its id.
func (s *Scheduler) Lookup(name string) (int, bool) {
	id, ok := s.names[strings.TrimSpace(name)]
	return id, ok
}

// Queue appends the queued ids, head first, to dst.
func (s *Scheduler) Queue(dst []int) []int {
	return append(dst, s.queue[:s.n]...)
}

// Snapshot returns every looper in id order.
func (s *Scheduler) Snapshot() []TaskInfo {
	pos := make([]int, len(s.tasks))
	for i := range pos {
		pos[i] = -1
	}
	for i := 0; i < s.n; i++ {
		pos[s.queue[i]] = i
	}
	out := make([]TaskInfo, len(s.tasks))
	for id, t := range s.tasks {
		out[id] = TaskInfo{
			ID:       id,
			Name:     t.name,
			State:    t.state,
			NextDue:  t.nextDue,
			Position: pos[id],
		}
	}
	return out
}
