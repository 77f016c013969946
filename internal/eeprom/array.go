package eeprom

import "fmt"

// ArrayValue is a typed persistent array.
//
// Set with an invalid index is a no-op. Get with an invalid index returns
// ErrOutOfRange.
type ArrayValue[T Scalar] interface {
	Len() int
	Get(i int) (T, error)
	Set(i int, v T) error
}

// Array reads and writes the device on every access.
type Array[T Scalar] struct {
	st  *Store
	off int
	n   int
}

func NewArray[T Scalar](st *Store, off, n int) *Array[T] {
	return &Array[T]{st: st, off: off, n: n}
}

func (a *Array[T]) Len() int    { return a.n }
func (a *Array[T]) Init() error { return nil }

func (a *Array[T]) Get(i int) (T, error) {
	if i < 0 || i >= a.n {
		var zero T
		return zero, fmt.Errorf("%w: index %d of %d", ErrOutOfRange, i, a.n)
	}
	size := SizeOf[T]()
	buf := make([]byte, size)
	if err := a.st.ReadAt(a.off+i*size, buf); err != nil {
		var zero T
		return zero, err
	}
	return decode[T](buf)
}

func (a *Array[T]) Set(i int, v T) error {
	if i < 0 || i >= a.n {
		return nil
	}
	return a.st.UpdateAt(a.off+i*SizeOf[T](), encode(v))
}

// Fill sets every element to v.
func (a *Array[T]) Fill(v T) error {
	for i := 0; i < a.n; i++ {
		if err := a.Set(i, v); err != nil {
			return err
		}
	}
	return nil
}

// CachedArray keeps all elements in memory.
type CachedArray[T Scalar] struct {
	st     *Store
	off    int
	values []T
}

func NewCachedArray[T Scalar](st *Store, off, n int) *CachedArray[T] {
	return &CachedArray[T]{st: st, off: off, values: make([]T, n)}
}

func (a *CachedArray[T]) Len() int { return len(a.values) }

// Init loads every element from the device.
func (a *CachedArray[T]) Init() error {
	size := SizeOf[T]()
	buf := make([]byte, size*len(a.values))
	if err := a.st.ReadAt(a.off, buf); err != nil {
		return err
	}
	for i := range a.values {
		v, err := decode[T](buf[i*size : (i+1)*size])
		if err != nil {
			return err
		}
		a.values[i] = v
	}
	return nil
}

func (a *CachedArray[T]) Get(i int) (T, error) {
	if i < 0 || i >= len(a.values) {
		var zero T
		return zero, fmt.Errorf("%w: index %d of %d", ErrOutOfRange, i, len(a.values))
	}
	return a.values[i], nil
}

func (a *CachedArray[T]) Set(i int, v T) error {
	if i < 0 || i >= len(a.values) {
		return nil
	}
	if a.values[i] == v {
		return nil
	}
	a.values[i] = v
	return a.st.UpdateAt(a.off+i*SizeOf[T](), encode(v))
}

func (a *CachedArray[T]) Fill(v T) error {
	for i := range a.values {
		if err := a.Set(i, v); err != nil {
			return err
		}
	}
	return nil
}
