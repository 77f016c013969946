package eeprom

// Memory is a volatile device. It is not safe for concurrent use on its own;
// Store serializes access.
type Memory struct {
	cells  []byte
	writes int
}

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	m := &Memory{cells: make([]byte, size)}
	for i := range m.cells {
		m.cells[i] = Erased
	}
	return m
}

func (m *Memory) Read(off int) (byte, error) {
	if err := checkOffset(off, len(m.cells)); err != nil {
		return 0, err
	}
	return m.cells[off], nil
}

func (m *Memory) Write(off int, b byte) error {
	if err := checkOffset(off, len(m.cells)); err != nil {
		return err
	}
	m.cells[off] = b
	m.writes++
	return nil
}

func (m *Memory) Size() int { return len(m.cells) }

// Writes returns the number of cell writes so far. Cells wear out, so callers
// care about avoiding redundant writes.
func (m *Memory) Writes() int { return m.writes }

func (m *Memory) Close() error { return nil }
