// Package monitor assembles and loads the default kernel image: the trap-cause dispatch sitting
// at the fixed trap vector, and the halt, syscall, and fault handlers it jumps to. It is the
// BIOS-equivalent piece of the system — the one program guaranteed to be resident at KernelTraps
// before any user code runs.
package monitor

import (
	"fmt"
	"strings"

	"github.com/project-octo/octovm/internal/asm"
	"github.com/project-octo/octovm/internal/log"
	"github.com/project-octo/octovm/internal/vm"
)

// kernelSources lists the assembly fragments making up the default kernel, in the order they're
// parsed. Labels are shared across fragments and resolved once the whole set has been parsed, so
// the order here only needs to put the data cells (current_task, cause_cell, saved_user_sp,
// saved_flags) ahead of the code that references them by name; everything else is free to
// forward-reference.
var kernelSources = []string{
	kernelDataSource,
	kernelEntrySource,
	haltSource,
	syscallSource,
	faultSource,
}

// SystemImage holds an assembled kernel, ready to be written into a machine's bus.
type SystemImage struct {
	Symbols *asm.SymbolTable
	Code    vm.ObjectCode

	log *log.Logger
}

// NewSystemImage assembles the default kernel: trap dispatch, the kernel-data cells it uses, and
// its halt/syscall/fault handlers.
func NewSystemImage() (*SystemImage, error) {
	return newSystemImage(log.DefaultLogger())
}

func newSystemImage(logger *log.Logger) (*SystemImage, error) {
	parser := asm.NewParser(logger)

	for _, src := range kernelSources {
		parser.Parse(strings.NewReader(src))
	}

	if err := parser.Err(); err != nil {
		return nil, fmt.Errorf("monitor: parse default kernel: %w", err)
	}

	assembler := asm.NewAssembler()

	code, err := assembler.Assemble(parser.Statements())
	if err != nil {
		return nil, fmt.Errorf("monitor: assemble default kernel: %w", err)
	}

	return &SystemImage{Symbols: assembler.Symbols(), Code: code, log: logger}, nil
}

// LoadTo writes the image's segments into the machine behind loader.
func (img *SystemImage) LoadTo(loader *vm.Loader) (int, error) {
	return loader.Load(img.Code)
}

// WithSystemImage loads a specific kernel image into the CPU's bus at construction, per §6's
// "the same way, at startup, before any user program is loaded".
func WithSystemImage(img *SystemImage) vm.OptionFn {
	return func(cpu *vm.CPU) {
		loader := vm.NewLoader(cpu.Bus)

		if _, err := img.LoadTo(loader); err != nil {
			img.log.Error("monitor: failed to load system image", "err", err)
		}
	}
}

// WithDefaultSystemImage assembles and loads the default kernel. The exec and demo commands use it.
func WithDefaultSystemImage() vm.OptionFn {
	return func(cpu *vm.CPU) {
		img, err := NewSystemImage()
		if err != nil {
			log.DefaultLogger().Error("monitor: failed to build default system image", "err", err)
			return
		}

		WithSystemImage(img)(cpu)
	}
}
