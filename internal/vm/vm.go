package vm

// vm.go assembles the virtual machine from its smaller parts: the CPU, the bus, and the video
// controller.

import (
	"fmt"

	"github.com/project-octo/octovm/internal/log"
)

// CPU holds the registers, flags, and protection state of the processor, per §3.
type CPU struct {
	PC     Word
	SP     Word
	Reg    Registers
	Flags  Flags
	Mode   Mode
	Intent Intent
	Halted bool

	// Quota is the number of user-mode instructions executed before a Timer exit is raised;
	// Count tracks progress towards it and resets when that Timer exit is raised.
	Quota int
	Count int

	Bus *Bus

	log *log.Logger

	// PanicFunc is invoked by the pnk opcode ("abort the host process", per §4.4.2). It defaults
	// to panicking with ErrPanicked rather than calling os.Exit, so tests can recover it;
	// WithPanicFunc replaces it.
	PanicFunc func()
}

// ErrPanicked is the value the default PanicFunc panics with.
var ErrPanicked = fmt.Errorf("pnk: host process aborted")

func (cpu *CPU) panic() {
	cpu.PanicFunc()
}

// defaultQuota is used unless overridden by WithQuota.
const defaultQuota = 10_000

// OptionFn configures a CPU during construction.
type OptionFn func(*CPU)

// NewCPU creates a CPU wired to bus, starting in Kernel mode at the bootloader entry point with
// SP at the top of the default kernel stack.
func NewCPU(bus *Bus, opts ...OptionFn) *CPU {
	cpu := &CPU{
		PC:        BootloaderStart,
		SP:        VramStart - 1, // top of KernelStack
		Mode:      Kernel,
		Intent:    Execute,
		Quota:     defaultQuota,
		Bus:       bus,
		log:       log.DefaultLogger(),
		PanicFunc: func() { panic(ErrPanicked) },
	}

	for _, opt := range opts {
		opt(cpu)
	}

	return cpu
}

func (cpu *CPU) String() string {
	return fmt.Sprintf("PC:%s SP:%s Mode:%s Intent:%s Flags:%s Reg:[%s] Halted:%t",
		Word(cpu.PC), Word(cpu.SP), cpu.Mode, cpu.Intent, cpu.Flags, cpu.Reg, cpu.Halted)
}

// WithLogger configures the CPU (and its bus) to log to a particular logger.
func WithLogger(l *log.Logger) OptionFn {
	return func(cpu *CPU) {
		cpu.log = l
		cpu.Bus.WithLogger(l)
	}
}

// WithQuota overrides the default user-mode instruction quota.
func WithQuota(n int) OptionFn {
	return func(cpu *CPU) { cpu.Quota = n }
}

// WithPanicFunc overrides the pnk opcode's abort hook.
func WithPanicFunc(fn func()) OptionFn {
	return func(cpu *CPU) { cpu.PanicFunc = fn }
}

// WithEntryPoint overrides the initial PC; useful for tests that load code at an address other
// than the bootloader's.
func WithEntryPoint(pc Word) OptionFn {
	return func(cpu *CPU) { cpu.PC = pc }
}

// WithUserMode starts the CPU in User mode with SP at the top of task 0's user stack; used by
// tests exercising user-mode behaviour directly.
func WithUserMode() OptionFn {
	return func(cpu *CPU) {
		cpu.Mode = User

		for _, r := range DefaultRegions(1) {
			if r.Kind == UserStack && r.Task == 0 {
				cpu.SP = r.End
			}
		}
	}
}

// pushByte writes a single byte onto the current stack: store at SP, then decrement.
func (cpu *CPU) pushByte(b Byte) error {
	if err := cpu.Bus.Write(cpu.SP, b, cpu.Mode, cpu.Bus.CurrentTask()); err != nil {
		return err
	}

	cpu.SP--

	return nil
}

// popByte increments SP, then reads the byte now on top of the stack.
func (cpu *CPU) popByte() (Byte, error) {
	cpu.SP++

	return cpu.Bus.Read(cpu.SP, cpu.Mode, Read, cpu.Bus.CurrentTask())
}

// VM is a thin owner of the bus, the CPU, and the video controller, per §4.6.
type VM struct {
	Bus   *Bus
	CPU   *CPU
	Video *VideoController
}

// New constructs a VM with numTasks user tasks and a video controller rooted at the Vram
// region's start address.
func New(numTasks, vramWidth, vramHeight int, opts ...OptionFn) *VM {
	bus := NewBus(numTasks)
	cpu := NewCPU(bus, opts...)
	video := NewVideoController(vramWidth, vramHeight, VramStart)

	return &VM{Bus: bus, CPU: cpu, Video: video}
}

// Step executes a single CPU instruction (which may itself deliver a trap) and refreshes the
// framebuffer window from bus memory.
func (vm *VM) Step() error {
	err := vm.CPU.Step()
	vm.Video.Refresh(vm.Bus)

	return err
}

// StepMany iterates Step n times or until the CPU halts, whichever comes first. This is the
// host's only preemption point (§5).
func (vm *VM) StepMany(n int) error {
	for i := 0; i < n; i++ {
		if vm.CPU.Halted {
			return nil
		}

		if err := vm.Step(); err != nil {
			return err
		}
	}

	return nil
}
