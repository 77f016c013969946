package eeprom

import (
	"fmt"
	"strconv"
)

type entry struct {
	item  Item
	value any // Value[T] or ArrayValue[T]
	init  func() error
	reset func() error
}

// Bank binds a Layout to a Store.
type Bank struct {
	st      *Store
	layout  *Layout
	entries map[string]*entry
	order   []*entry
}

// NewBank creates the typed variables of layout on st.
func NewBank(st *Store, layout *Layout) (*Bank, error) {
	if layout.Size > st.Size() {
		return nil, fmt.Errorf("%w: layout needs %d bytes, device has %d", ErrInvalidLayout, layout.Size, st.Size())
	}
	b := &Bank{st: st, layout: layout, entries: make(map[string]*entry, len(layout.Items))}
	for _, it := range layout.Items {
		e, err := newEntry(st, it)
		if err != nil {
			return nil, err
		}
		b.entries[it.Name] = e
		b.order = append(b.order, e)
	}
	return b, nil
}

func (b *Bank) Layout() *Layout { return b.layout }
func (b *Bank) Store() *Store   { return b.st }

// Prepare loads cached items and, when the stored version stamp does not match
// the layout, writes defaults and the new stamp. reset reports the latter.
func (b *Bank) Prepare() (reset bool, err error) {
	for _, e := range b.order {
		if err := e.init(); err != nil {
			return false, fmt.Errorf("eeprom: init %q: %w", e.item.Name, err)
		}
	}
	ok, err := b.st.CheckVersion(b.layout.Version)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	for _, e := range b.order {
		if err := e.reset(); err != nil {
			return true, fmt.Errorf("eeprom: reset %q: %w", e.item.Name, err)
		}
	}
	return true, b.st.WriteVersion(b.layout.Version)
}

// Lookup returns the scalar item name typed as T.
func Lookup[T Scalar](b *Bank, name string) (Value[T], error) {
	e, ok := b.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItem, name)
	}
	v, ok := e.value.(Value[T])
	if !ok || e.item.IsArray() {
		return nil, fmt.Errorf("%w: %q is %s", ErrTypeMismatch, name, describe(e.item))
	}
	return v, nil
}

// LookupArray returns the array item name typed as T.
func LookupArray[T Scalar](b *Bank, name string) (ArrayValue[T], error) {
	e, ok := b.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItem, name)
	}
	v, ok := e.value.(ArrayValue[T])
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s", ErrTypeMismatch, name, describe(e.item))
	}
	return v, nil
}

func describe(it Item) string {
	if it.IsArray() {
		return fmt.Sprintf("%s[%d]", it.Kind, it.Length)
	}
	return it.Kind.String()
}

func newEntry(st *Store, it Item) (*entry, error) {
	switch it.Kind {
	case KindBool:
		return bind(st, it, strconv.ParseBool)
	case KindInt8:
		return bind(st, it, parseInt[int8])
	case KindUint8:
		return bind(st, it, parseUint[uint8])
	case KindInt16:
		return bind(st, it, parseInt[int16])
	case KindUint16:
		return bind(st, it, parseUint[uint16])
	case KindInt32:
		return bind(st, it, parseInt[int32])
	case KindUint32:
		return bind(st, it, parseUint[uint32])
	case KindInt64:
		return bind(st, it, parseInt[int64])
	case KindUint64:
		return bind(st, it, parseUint[uint64])
	case KindFloat32:
		return bind(st, it, parseFloat[float32])
	case KindFloat64:
		return bind(st, it, parseFloat[float64])
	}
	return nil, fmt.Errorf("%w: item %q has no type", ErrInvalidLayout, it.Name)
}

func bind[T Scalar](st *Store, it Item, parse func(string) (T, error)) (*entry, error) {
	e := &entry{item: it, reset: func() error { return nil }}
	var def T
	hasDef := it.Default != ""
	if hasDef {
		v, err := parse(it.Default)
		if err != nil {
			return nil, fmt.Errorf("%w: item %q default: %v", ErrInvalidLayout, it.Name, err)
		}
		def = v
	}

	switch {
	case it.IsArray() && it.Cached:
		a := NewCachedArray[T](st, it.Offset, it.Length)
		e.value, e.init = a, a.Init
		if hasDef {
			e.reset = func() error { return a.Fill(def) }
		}
	case it.IsArray():
		a := NewArray[T](st, it.Offset, it.Length)
		e.value, e.init = a, a.Init
		if hasDef {
			e.reset = func() error { return a.Fill(def) }
		}
	case it.Cached:
		v := NewCachedVar[T](st, it.Offset)
		e.value, e.init = v, v.Init
		if hasDef {
			e.reset = func() error { return v.Set(def) }
		}
	default:
		v := NewVar[T](st, it.Offset)
		e.value, e.init = v, v.Init
		if hasDef {
			e.reset = func() error { return v.Set(def) }
		}
	}
	return e, nil
}

func parseInt[T ~int8 | ~int16 | ~int32 | ~int64](s string) (T, error) {
	n, err := strconv.ParseInt(s, 0, SizeOf[T]()*8)
	return T(n), err
}

func parseUint[T ~uint8 | ~uint16 | ~uint32 | ~uint64](s string) (T, error) {
	n, err := strconv.ParseUint(s, 0, SizeOf[T]()*8)
	return T(n), err
}

func parseFloat[T ~float32 | ~float64](s string) (T, error) {
	n, err := strconv.ParseFloat(s, SizeOf[T]()*8)
	return T(n), err
}
