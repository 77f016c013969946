package host

import "looperd/internal/looper"

// Inline toggles loopers by name from code running on the dispatch goroutine,
// typically a handler. Changes apply immediately, so a looper enabled from a
// callback runs in the same batch.
type Inline struct{ r *Runner }

// Enable reports false when name is unknown or nothing is loaded.
func (c Inline) Enable(name string) bool { return c.set(name, true) }

func (c Inline) Disable(name string) bool { return c.set(name, false) }

// Enabled reports whether name stays queued after the current callback.
func (c Inline) Enabled(name string) bool {
	if c.r == nil || c.r.sched == nil {
		return false
	}
	id, ok := c.r.sched.Lookup(name)
	if !ok {
		return false
	}
	st := c.r.sched.State(id)
	return st == looper.Enabled || st == looper.ExecutedEnabled
}

func (c Inline) set(name string, on bool) bool {
	if c.r == nil || c.r.sched == nil {
		return false
	}
	id, ok := c.r.sched.Lookup(name)
	if !ok {
		return false
	}
	c.r.sched.SetEnabled(id, on)
	return true
}
