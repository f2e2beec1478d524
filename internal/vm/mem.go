package vm

// mem.go contains the machine's bus and memory-protection unit.

import (
	"errors"
	"fmt"

	"github.com/project-octo/octovm/internal/log"
)

// Bus owns RAM and devices, resolves every address to a region, and enforces the
// (region-kind, mode, intent, task) access policy described in §4.3 and §6.1.
type Bus struct {
	ram   [0x10000]Byte
	table *RegionTable

	Keyboard *Keyboard
	Mouse    *Mouse
	mmio     *MMIO

	log *log.Logger
}

// NewBus constructs a bus with the default region map for numTasks user tasks.
func NewBus(numTasks int) *Bus {
	kbd := NewKeyboard()
	mouse := NewMouse()

	bus := &Bus{
		table:    NewRegionTable(DefaultRegions(numTasks)),
		Keyboard: kbd,
		Mouse:    mouse,
		log:      log.DefaultLogger(),
	}

	bus.mmio = NewMMIO(kbd, mouse)

	return bus
}

// Read performs an access-checked read of addr under the given mode and intent, dispatching
// through MMIO when addr falls in the Mmio region.
func (b *Bus) Read(addr Word, mode Mode, intent Intent, currentTask int) (Byte, error) {
	region, ok := b.table.Allowed(addr, mode, intent, currentTask)
	if !ok {
		return 0, &AccessFault{Addr: addr, Mode: mode, Intent: intent}
	}

	if region.Kind == Mmio {
		return b.mmio.Read(addr - MmioStart)
	}

	return b.ram[addr], nil
}

// Write performs an access-checked write of value to addr under the given mode. Writes always
// assert Write intent. MMIO has no guest-writable offsets and every write there faults.
func (b *Bus) Write(addr Word, value Byte, mode Mode, currentTask int) error {
	region, ok := b.table.Allowed(addr, mode, Write, currentTask)
	if !ok {
		return &AccessFault{Addr: addr, Mode: mode, Intent: Write}
	}

	if region.Kind == Mmio {
		return &AccessFault{Addr: addr, Mode: mode, Intent: Write}
	}

	b.ram[addr] = value

	return nil
}

// ForceSet writes a byte to RAM bypassing the MMU. Used from the host side, by the loader; the
// CPU saves trap context through the checked Write in Kernel mode instead.
func (b *Bus) ForceSet(addr Word, value Byte) {
	b.ram[addr] = value
}

// ForceGet reads a byte from RAM bypassing the MMU.
func (b *Bus) ForceGet(addr Word) Byte {
	return b.ram[addr]
}

// View returns the slice ram[a:c] itself, not a copy; used only by the video controller, which
// copies out of it.
func (b *Bus) View(a, c Word) []Byte {
	return b.ram[a:c]
}

// CurrentTask reads the task-id cell in KernelData that selects which user task's per-task
// regions the MMU accepts in User mode.
func (b *Bus) CurrentTask() int {
	return int(b.ram[CurrentTaskAddr])
}

// SetCurrentTask writes the task-id cell directly; used by the kernel scheduler and by tests.
func (b *Bus) SetCurrentTask(task int) {
	b.ram[CurrentTaskAddr] = Byte(task)
}

func (b *Bus) WithLogger(l *log.Logger) {
	b.log = l
	b.mmio.log = l
}

// AccessFault reports a denied memory access: either the address fell in no region, or the
// region's policy denied the (mode, intent, task) tuple.
type AccessFault struct {
	Addr   Word
	Mode   Mode
	Intent Intent
}

func (f *AccessFault) Error() string {
	return fmt.Sprintf("%s: illegal memory access: addr=%s mode=%s intent=%s",
		ErrIllegalMemAccess, f.Addr, f.Mode, f.Intent)
}

func (f *AccessFault) Is(err error) bool {
	return err == ErrIllegalMemAccess
}

func (f *AccessFault) Unwrap() error {
	return ErrIllegalMemAccess
}

// ErrIllegalMemAccess is the sentinel wrapped by every AccessFault.
var ErrIllegalMemAccess = errors.New("illegal memory access")
