package eeprom

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"strings"
)

// Kind is the scalar type of a layout item.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt8
	KindUint8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
)

var kindNames = map[Kind]string{
	KindBool:    "bool",
	KindInt8:    "int8",
	KindUint8:   "uint8",
	KindInt16:   "int16",
	KindUint16:  "uint16",
	KindInt32:   "int32",
	KindUint32:  "uint32",
	KindInt64:   "int64",
	KindUint64:  "uint64",
	KindFloat32: "float32",
	KindFloat64: "float64",
}

// Arduino spellings accepted by ParseKind.
var kindAliases = map[string]Kind{
	"boolean":       KindBool,
	"byte":          KindUint8,
	"char":          KindInt8,
	"int":           KindInt16,
	"unsigned int":  KindUint16,
	"word":          KindUint16,
	"long":          KindInt32,
	"unsigned long": KindUint32,
	"float":         KindFloat32,
	"double":        KindFloat32,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "invalid"
}

// Size returns the encoded size of one value of kind k.
func (k Kind) Size() int {
	switch k {
	case KindBool, KindInt8, KindUint8:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindInt64, KindUint64, KindFloat64:
		return 8
	default:
		return 0
	}
}

// ParseKind accepts Go type names and the common Arduino ones.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	return KindInvalid, fmt.Errorf("%w: type %q is not supported", ErrInvalidLayout, s)
}

// ItemDef describes one persistent variable or array.
type ItemDef struct {
	Name   string
	Kind   Kind
	Cached bool
	// Length > 0 makes the item an array of Length elements.
	Length int
	// Default is written when the stored layout version does not match.
	// Empty means no default. Arrays fill every element.
	Default string
}

func (d ItemDef) IsArray() bool { return d.Length > 0 }

// Item is a placed ItemDef.
type Item struct {
	ItemDef
	Offset int
}

// Size returns the number of bytes the item occupies.
func (it Item) Size() int {
	if it.IsArray() {
		return it.Kind.Size() * it.Length
	}
	return it.Kind.Size()
}

// Layout places items one after another behind the version stamp.
type Layout struct {
	Items   []Item
	Size    int
	Version uint32
}

// NewLayout validates defs and assigns offsets in order.
//
// version selects the layout version stamp:
//   - "" or "hash": derived from names, kinds and offsets, so any layout change
//     resets stored values
//   - "random": a new value per call, so every build resets stored values
//   - a decimal number: fixed; the operator decides when to reset
func NewLayout(defs []ItemDef, version string) (*Layout, error) {
	l := &Layout{Items: make([]Item, 0, len(defs))}
	seen := make(map[string]bool, len(defs))
	off := VersionOffset + VersionSize
	for _, d := range defs {
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			return nil, fmt.Errorf("%w: item name required", ErrInvalidLayout)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("%w: duplicate item %q", ErrInvalidLayout, d.Name)
		}
		seen[d.Name] = true
		if d.Kind.Size() == 0 {
			return nil, fmt.Errorf("%w: item %q has no type", ErrInvalidLayout, d.Name)
		}
		if d.Length < 0 {
			return nil, fmt.Errorf("%w: item %q has negative length", ErrInvalidLayout, d.Name)
		}
		if d.Default != "" {
			if err := checkDefault(d.Kind, d.Default); err != nil {
				return nil, fmt.Errorf("%w: item %q: %v", ErrInvalidLayout, d.Name, err)
			}
		}
		it := Item{ItemDef: d, Offset: off}
		l.Items = append(l.Items, it)
		off += it.Size()
	}
	l.Size = off

	v, err := layoutVersion(l.Items, version)
	if err != nil {
		return nil, err
	}
	l.Version = v
	return l, nil
}

// Find returns the item called name.
func (l *Layout) Find(name string) (Item, bool) {
	for _, it := range l.Items {
		if it.Name == name {
			return it, true
		}
	}
	return Item{}, false
}

func layoutVersion(items []Item, mode string) (uint32, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case "", "hash":
		h := fnv.New32a()
		for _, it := range items {
			fmt.Fprintf(h, "%s|%s|%d|%d\n", it.Name, it.Kind, it.Offset, it.Length)
		}
		return h.Sum32() & 0x7fffffff, nil
	case "random":
		return rand.Uint32() & 0x7fffffff, nil
	default:
		n, err := strconv.ParseUint(mode, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: layout version %q (use hash, random or a number)", ErrInvalidLayout, mode)
		}
		return uint32(n), nil
	}
}

func checkDefault(k Kind, s string) error {
	switch k {
	case KindBool:
		_, err := strconv.ParseBool(s)
		return err
	case KindInt8, KindInt16, KindInt32, KindInt64:
		_, err := strconv.ParseInt(s, 0, k.Size()*8)
		return err
	case KindUint8, KindUint16, KindUint32, KindUint64:
		_, err := strconv.ParseUint(s, 0, k.Size()*8)
		return err
	case KindFloat32, KindFloat64:
		_, err := strconv.ParseFloat(s, k.Size()*8)
		return err
	}
	return fmt.Errorf("unsupported kind %s", k)
}
