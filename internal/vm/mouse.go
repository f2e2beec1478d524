package vm

import (
	"fmt"
	"sync"
)

// Mouse is a placeholder coordinate-pair device: two read-only MMIO bytes, updated only by the
// host via Move, never by the guest. It carries no interrupt.
type Mouse struct {
	mut  sync.Mutex
	x, y Byte
}

// NewMouse creates a mouse device at the origin.
func NewMouse() *Mouse {
	return &Mouse{}
}

// Move sets the reported coordinates. Called by the host, never by guest code.
func (m *Mouse) Move(x, y Byte) {
	m.mut.Lock()
	defer m.mut.Unlock()

	m.x, m.y = x, y
}

// X returns the last reported horizontal coordinate.
func (m *Mouse) X() Byte {
	m.mut.Lock()
	defer m.mut.Unlock()

	return m.x
}

// Y returns the last reported vertical coordinate.
func (m *Mouse) Y() Byte {
	m.mut.Lock()
	defer m.mut.Unlock()

	return m.y
}

func (m *Mouse) String() string {
	m.mut.Lock()
	defer m.mut.Unlock()

	return fmt.Sprintf("Mouse(x:%s,y:%s)", m.x, m.y)
}
