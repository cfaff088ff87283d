package intcode

import (
	"fmt"
	"sort"
)

// maxGrowth bounds how far past the end of the dense region a write may land
// and still extend it. Writes further out go to the sparse map.
const maxGrowth = 4096

// Memory is the unbounded, zero-initialised address space of a machine.
//
// Addresses near the program image live in a dense slice that grows on write;
// far addresses are kept in a map. Both satisfy the same contract: an address
// that was never written reads as 0.
type Memory struct {
	dense  []Word
	sparse map[Word]Word
}

// NewMemory creates a memory holding a copy of image at addresses 0..len-1.
func NewMemory(image []Word) *Memory {
	dense := make([]Word, len(image))
	copy(dense, image)
	return &Memory{dense: dense}
}

// Read returns the value stored at addr.
func (m *Memory) Read(addr Word) (Word, error) {
	if addr < 0 {
		return 0, fmt.Errorf("%w: read at %d", ErrInvalidAddress, addr)
	}
	if addr < Word(len(m.dense)) {
		return m.dense[addr], nil
	}
	return m.sparse[addr], nil
}

// Write stores v at addr.
func (m *Memory) Write(addr, v Word) error {
	if addr < 0 {
		return fmt.Errorf("%w: write at %d", ErrInvalidAddress, addr)
	}
	n := Word(len(m.dense))
	switch {
	case addr < n:
		m.dense[addr] = v
	case addr < n+maxGrowth:
		m.grow(addr + 1)
		m.dense[addr] = v
	default:
		if m.sparse == nil {
			m.sparse = make(map[Word]Word)
		}
		m.sparse[addr] = v
	}
	return nil
}

// grow extends the dense region to size, absorbing sparse entries it now covers.
func (m *Memory) grow(size Word) {
	c := Word(cap(m.dense))
	if size > c {
		nc := 2 * c
		if nc < size {
			nc = size
		}
		dense := make([]Word, len(m.dense), nc)
		copy(dense, m.dense)
		m.dense = dense
	}
	old := Word(len(m.dense))
	m.dense = m.dense[:size]
	for a := old; a < size; a++ {
		m.dense[a] = 0
	}
	for a, v := range m.sparse {
		if a >= old && a < size {
			m.dense[a] = v
			delete(m.sparse, a)
		}
	}
}

// Len returns one past the highest address that holds a stored value.
func (m *Memory) Len() Word {
	n := Word(len(m.dense))
	for a := range m.sparse {
		if a >= n {
			n = a + 1
		}
	}
	return n
}

// Snapshot returns a copy of the dense region. Sparse cells are not included;
// use Sparse for those.
func (m *Memory) Snapshot() []Word {
	out := make([]Word, len(m.dense))
	copy(out, m.dense)
	return out
}

// Sparse returns the addresses held outside the dense region, in ascending order.
func (m *Memory) Sparse() []Word {
	addrs := make([]Word, 0, len(m.sparse))
	for a := range m.sparse {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

func (m *Memory) clone() *Memory {
	c := &Memory{dense: make([]Word, len(m.dense))}
	copy(c.dense, m.dense)
	if len(m.sparse) > 0 {
		c.sparse = make(map[Word]Word, len(m.sparse))
		for a, v := range m.sparse {
			c.sparse[a] = v
		}
	}
	return c
}
