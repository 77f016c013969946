package platform

import "sync"

// CriticalSection brackets a non-atomic multi-step operation. On the boards
// this masks interrupts; on a host it is a lock.
//
// Sections are not reentrant: Enter must not be called again before Exit.
type CriticalSection interface {
	Enter()
	Exit()
}

// Mask is a mutex-backed CriticalSection.
type Mask struct {
	mu sync.Mutex
}

func NewMask() *Mask { return &Mask{} }

func (m *Mask) Enter() { m.mu.Lock() }
func (m *Mask) Exit()  { m.mu.Unlock() }

// NopSection does nothing. Use it when a single goroutine owns the storage.
type NopSection struct{}

func (NopSection) Enter() {}
func (NopSection) Exit()  {}

// Guard runs fn inside cs.
func Guard(cs CriticalSection, fn func()) {
	cs.Enter()
	defer cs.Exit()
	fn()
}
