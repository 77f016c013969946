package eeprom

import "encoding/binary"

// Scalar is a fixed-size value that can live in EEPROM.
type Scalar interface {
	~bool | ~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// Value is a typed persistent variable.
type Value[T Scalar] interface {
	Get() (T, error)
	Set(v T) error
}

// SizeOf returns the encoded size of T in bytes.
func SizeOf[T Scalar]() int {
	var v T
	return binary.Size(v)
}

// Values are stored little-endian, like on the AVR boards.
func encode[T Scalar](v T) []byte {
	b, _ := binary.Append(make([]byte, 0, SizeOf[T]()), binary.LittleEndian, v)
	return b
}

func decode[T Scalar](b []byte) (T, error) {
	var v T
	_, err := binary.Decode(b, binary.LittleEndian, &v)
	return v, err
}

// Var reads and writes the device on every access.
type Var[T Scalar] struct {
	st  *Store
	off int
}

func NewVar[T Scalar](st *Store, off int) *Var[T] {
	return &Var[T]{st: st, off: off}
}

func (v *Var[T]) Offset() int { return v.off }

// Init is a no-op; uncached variables have nothing to load.
func (v *Var[T]) Init() error { return nil }

func (v *Var[T]) Get() (T, error) {
	buf := make([]byte, SizeOf[T]())
	if err := v.st.ReadAt(v.off, buf); err != nil {
		var zero T
		return zero, err
	}
	return decode[T](buf)
}

// Set writes only the bytes that changed.
func (v *Var[T]) Set(x T) error {
	return v.st.UpdateAt(v.off, encode(x))
}

// CachedVar keeps a copy of the value in memory. Reads never touch the
// device; writes go through only when the value changes.
type CachedVar[T Scalar] struct {
	st    *Store
	off   int
	value T
}

func NewCachedVar[T Scalar](st *Store, off int) *CachedVar[T] {
	return &CachedVar[T]{st: st, off: off}
}

func (v *CachedVar[T]) Offset() int { return v.off }

// Init loads the cache from the device.
func (v *CachedVar[T]) Init() error {
	buf := make([]byte, SizeOf[T]())
	if err := v.st.ReadAt(v.off, buf); err != nil {
		return err
	}
	x, err := decode[T](buf)
	if err != nil {
		return err
	}
	v.value = x
	return nil
}

// Value returns the cached value.
func (v *CachedVar[T]) Value() T { return v.value }

func (v *CachedVar[T]) Get() (T, error) { return v.value, nil }

func (v *CachedVar[T]) Set(x T) error {
	if x == v.value {
		return nil
	}
	v.value = x
	return v.st.UpdateAt(v.off, encode(x))
}
