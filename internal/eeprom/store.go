package eeprom

import (
	"fmt"

	"looperd/internal/platform"
)

// VersionOffset is where the layout version stamp lives.
const (
	VersionOffset = 0
	VersionSize   = 4
)

// Store serializes multi-byte access to a Device.
type Store struct {
	dev Device
	cs  platform.CriticalSection
}

// NewStore wraps dev. A nil cs defaults to a mutex-backed mask.
func NewStore(dev Device, cs platform.CriticalSection) *Store {
	if cs == nil {
		cs = platform.NewMask()
	}
	return &Store{dev: dev, cs: cs}
}

func (s *Store) Device() Device { return s.dev }
func (s *Store) Size() int      { return s.dev.Size() }

func (s *Store) bounds(off, n int) error {
	if off < 0 || n < 0 || off+n > s.dev.Size() {
		return fmt.Errorf("%w: [%d,%d) of %d", ErrOutOfRange, off, off+n, s.dev.Size())
	}
	return nil
}

// ReadAt fills p from off.
func (s *Store) ReadAt(off int, p []byte) error {
	if err := s.bounds(off, len(p)); err != nil {
		return err
	}
	s.cs.Enter()
	defer s.cs.Exit()
	for i := range p {
		b, err := s.dev.Read(off + i)
		if err != nil {
			return err
		}
		p[i] = b
	}
	return nil
}

// WriteAt writes every byte of p at off.
func (s *Store) WriteAt(off int, p []byte) error {
	if err := s.bounds(off, len(p)); err != nil {
		return err
	}
	s.cs.Enter()
	defer s.cs.Exit()
	for i, b := range p {
		if err := s.dev.Write(off+i, b); err != nil {
			return err
		}
	}
	return nil
}

// UpdateAt writes only the bytes of p that differ from the stored ones.
func (s *Store) UpdateAt(off int, p []byte) error {
	if err := s.bounds(off, len(p)); err != nil {
		return err
	}
	s.cs.Enter()
	defer s.cs.Exit()
	for i, b := range p {
		old, err := s.dev.Read(off + i)
		if err != nil {
			return err
		}
		if old == b {
			continue
		}
		if err := s.dev.Write(off+i, b); err != nil {
			return err
		}
	}
	return nil
}

// CheckVersion reports whether the stored stamp equals code. The stamp is
// stored least significant byte first.
func (s *Store) CheckVersion(code uint32) (bool, error) {
	var buf [VersionSize]byte
	if err := s.ReadAt(VersionOffset, buf[:]); err != nil {
		return false, err
	}
	for i := 0; i < VersionSize; i++ {
		if buf[i] != byte(code) {
			return false, nil
		}
		code >>= 8
	}
	return true, nil
}

// WriteVersion stamps code, touching only changed bytes.
func (s *Store) WriteVersion(code uint32) error {
	var buf [VersionSize]byte
	for i := 0; i < VersionSize; i++ {
		buf[i] = byte(code)
		code >>= 8
	}
	return s.UpdateAt(VersionOffset, buf[:])
}
