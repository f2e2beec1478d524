package monitor

import (
	"testing"

	"github.com/project-octo/octovm/internal/vm"
)

func TestNewSystemImage(t *testing.T) {
	t.Parallel()

	img, err := NewSystemImage()
	if err != nil {
		t.Fatalf("NewSystemImage: %s", err)
	}

	if _, ok := img.Code[vm.KernelDataStart]; !ok {
		t.Errorf("missing kernel-data segment at %s", vm.KernelDataStart)
	}

	if _, ok := img.Code[vm.KernelTrapsStart]; !ok {
		t.Errorf("missing trap-dispatch segment at %s", vm.KernelTrapsStart)
	}

	if _, ok := img.Symbols.Label("trap_entry"); !ok {
		t.Errorf("expected trap_entry to be defined")
	}

	if addr, ok := img.Symbols.Label("cause_cell"); !ok || addr != vm.TrapCauseAddr {
		t.Errorf("cause_cell: want %s, got %s (defined: %t)", vm.TrapCauseAddr, addr, ok)
	}
}

func TestSystemImage_LoadTo(t *testing.T) {
	t.Parallel()

	img, err := NewSystemImage()
	if err != nil {
		t.Fatalf("NewSystemImage: %s", err)
	}

	bus := vm.NewBus(1)
	loader := vm.NewLoader(bus)

	if _, err := img.LoadTo(loader); err != nil {
		t.Fatalf("LoadTo: %s", err)
	}

	ins := vm.DecodeInstruction(bus.ForceGet(vm.TrapVectorAddr), bus.ForceGet(vm.TrapVectorAddr+1))
	if ins.Opcode != vm.OpPush {
		t.Errorf("first instruction at the trap vector: want push, got %s", ins.Opcode)
	}
}

func TestWithDefaultSystemImage(t *testing.T) {
	t.Parallel()

	bus := vm.NewBus(1)
	cpu := vm.NewCPU(bus, WithDefaultSystemImage())

	ins := vm.DecodeInstruction(bus.ForceGet(vm.TrapVectorAddr), bus.ForceGet(vm.TrapVectorAddr+1))
	if ins.Opcode != vm.OpPush {
		t.Errorf("WithDefaultSystemImage did not load the trap dispatcher: got %s", ins.Opcode)
	}

	_ = cpu
}
