package vm

// io.go dispatches memory-mapped I/O reads within the Mmio region, per §6.2. Offsets are
// relative to MmioStart; writes are never supported by any offset.

import (
	"errors"
	"fmt"

	"github.com/project-octo/octovm/internal/log"
)

// MMIO offsets, relative to MmioStart.
const (
	KeyboardStatusOffset Word = 0
	KeyboardPopOffset    Word = 1
	MouseXOffset         Word = 2
	MouseYOffset         Word = 3
)

// MMIO dispatches reads at Mmio offsets to the keyboard and mouse devices.
type MMIO struct {
	kbd   *Keyboard
	mouse *Mouse
	log   *log.Logger
}

// NewMMIO creates an I/O dispatcher wired to the given devices.
func NewMMIO(kbd *Keyboard, mouse *Mouse) *MMIO {
	return &MMIO{kbd: kbd, mouse: mouse, log: log.DefaultLogger()}
}

// ErrNoDevice is raised reading an MMIO offset with no device behind it. (Writes to the Mmio
// region fault in Bus.Write before reaching here.)
var ErrNoDevice = errors.New("mmio: no device")

// Read dispatches a read at the given Mmio-relative offset.
func (m *MMIO) Read(offset Word) (Byte, error) {
	switch offset {
	case KeyboardStatusOffset:
		return m.kbd.Status(), nil
	case KeyboardPopOffset:
		return m.kbd.Pop(), nil
	case MouseXOffset:
		return m.mouse.X(), nil
	case MouseYOffset:
		return m.mouse.Y(), nil
	default:
		m.log.Debug("mmio: unmapped offset", log.String("OFFSET", offset.String()))
		return 0, fmt.Errorf("%w: offset %s", ErrNoDevice, offset)
	}
}
