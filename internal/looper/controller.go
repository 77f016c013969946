package looper

// Enable makes the looper run as soon as possible: it is queued at the head,
// due at the time of the last dispatch batch.
//
// Enable is idempotent and may be called from inside a callback. For the
// looper currently being dispatched it only flips the flag; the dispatcher
// reinserts it when the callback returns.
//
// id must be a valid looper id.
func (s *Scheduler) Enable(id int) {
	t := &s.tasks[id]
	switch t.state {
	case Enabled, ExecutedEnabled:
		return
	case ExecutedDisabled:
		t.state = ExecutedEnabled
		return
	}

	t.state = Enabled
	t.nextDue = s.now
	copy(s.queue[1:s.n+1], s.queue[:s.n])
	s.queue[0] = id
	s.n++
	s.changed(id, Disabled, Enabled)
}

// Disable removes the looper from the queue.
//
// Disable is idempotent and may be called from inside a callback, including the
// looper's own. For the looper currently being dispatched it only flips the
// flag; the dispatcher drops it when the callback returns.
//
// id must be a valid looper id.
func (s *Scheduler) Disable(id int) {
	t := &s.tasks[id]
	switch t.state {
	case Disabled, ExecutedDisabled:
		return
	case ExecutedEnabled:
		t.state = ExecutedDisabled
		return
	}

	t.state = Disabled
	pos := s.indexOf(id)
	copy(s.queue[pos:s.n-1], s.queue[pos+1:s.n])
	s.n--
	s.changed(id, Enabled, Disabled)
}

// SetEnabled calls Enable or Disable.
func (s *Scheduler) SetEnabled(id int, on bool) {
	if on {
		s.Enable(id)
		return
	}
	s.Disable(id)
}
