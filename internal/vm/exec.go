package vm

// exec.go defines the CPU instruction cycle and trap delivery, per §4.4.5 and §4.4.6.

import (
	"context"
	"errors"
	"fmt"

	"github.com/project-octo/octovm/internal/log"
)

// ErrHalted is returned by Step once the CPU has executed hlt in Kernel mode.
var ErrHalted = errors.New("halted")

// Run steps the VM until it halts, the context is cancelled, or an error other than
// a serviced trap occurs. This is the host's blocking entry point; StepMany is the cooperative
// one used by a scheduler that wants to interleave several VMs.
func (vm *VM) Run(ctx context.Context) error {
	vm.CPU.log.Info("START", log.Group("STATE", vm.CPU))

	for {
		select {
		case <-ctx.Done():
			vm.CPU.log.Warn("CANCELLED")
			return ctx.Err()
		default:
		}

		if vm.CPU.Halted {
			break
		}

		if err := vm.Step(); err != nil {
			vm.CPU.log.Error("HALTED (HCF)", "ERR", err, log.Group("STATE", vm.CPU))
			return err
		}
	}

	vm.CPU.log.Info("HALTED", log.Group("STATE", vm.CPU))

	return nil
}

// Step runs a single instruction to completion, delivering a trap to the kernel vector if the
// instruction (or the expiring quota) raises one. The cycle, per §4.4.5:
//
//   - set Intent to Execute and fetch the two header bytes at PC;
//   - decode opcode, addressing mode, and register fields;
//   - refuse a kernel-only opcode executed from User mode;
//   - resolve the operand(s) named by the addressing mode, consuming any immediate bytes;
//   - advance PC past the instruction, then execute it — jumps, calls, ret, and skip overwrite
//     PC again;
//   - in User mode, count the instruction towards the quota and raise Timer when it's exhausted.
//
// Any CPUExit raised along the way — by decode, by the opcode itself, or by the quota — is
// delivered to the kernel trap vector per §4.4.6, except Halt from Kernel mode, which stops the
// machine instead.
func (cpu *CPU) Step() error {
	if cpu.Halted {
		return fmt.Errorf("step: %w", ErrHalted)
	}

	cpu.Intent = Execute
	startMode := cpu.Mode
	task := cpu.Bus.CurrentTask()

	startPC := cpu.PC

	b0, err := cpu.Bus.Read(startPC, cpu.Mode, Execute, task)
	if err != nil {
		return cpu.deliverTrap(illegalMemAccess(err))
	}

	b1, err := cpu.Bus.Read(startPC+1, cpu.Mode, Execute, task)
	if err != nil {
		return cpu.deliverTrap(illegalMemAccess(err))
	}

	ins := DecodeInstruction(b0, b1)

	cpu.log.Debug("fetched", "PC", startPC, "INS", ins)

	if exit := cpu.checkPrivilege(ins); exit != nil {
		return cpu.deliverTrap(exit)
	}

	kind := KindOf(ins.Opcode)

	var (
		o1 operand1
		o2 operand2
	)

	operandPC := startPC + 2

	switch kind {
	case OneOp:
		width := operandWidth1(ins.Opcode)

		o1, err = cpu.resolveOperand1(ins, width, operandPC)
		if err != nil {
			return cpu.deliverTrap(illegalMemAccess(err))
		}
	case TwoOp:
		o2, err = cpu.resolveOperand2(ins, operandPC)
		if err != nil {
			return cpu.deliverTrap(illegalMemAccess(err))
		}
	}

	instrLen := 2 + immediateLen(ins, kind)
	nextPC := startPC + Word(instrLen)
	cpu.PC = nextPC

	exit := cpu.execute(ins, o1, o2, startPC, nextPC)

	cpu.log.Debug("executed", "OP", ins, "EXIT", exit)

	if exit != nil {
		return cpu.deliverTrap(exit)
	}

	if startMode == User {
		cpu.Count++

		if cpu.Count >= cpu.Quota {
			cpu.Count = 0
			return cpu.deliverTrap(ExitTimer)
		}
	}

	return nil
}

// immediateLen reports how many immediate bytes follow an instruction's two-byte header.
func immediateLen(ins Instruction, kind Kind) int {
	switch kind {
	case OneOp:
		return immLen1(ins.Mode, operandWidth1(ins.Opcode))
	case TwoOp:
		return immLen2(ins.Mode)
	default:
		return 0
	}
}

// checkPrivilege refuses a kernel-only opcode, or one outside the defined opcode space, when the
// CPU is in User mode.
func (cpu *CPU) checkPrivilege(ins Instruction) CPUExit {
	if _, known := opcodeNames[ins.Opcode]; !known {
		return illegalInstruction(fmt.Errorf("%w: %s", ErrIllegalInstruction, ins.Opcode))
	}

	if cpu.Mode == User && KernelOnly(ins.Opcode) {
		return illegalInstruction(fmt.Errorf("%w: %s is kernel-only", ErrIllegalInstruction, ins.Opcode))
	}

	return nil
}

// deliverTrap implements §4.4.6: Halt from Kernel mode stops the machine; every other exit
// switches to Kernel mode, pushes the current PC low-byte-first, writes the cause byte, and
// jumps to the kernel trap vector. kret (handled in execute) is the only way back.
//
// A trap entered from User mode first stashes the user SP at SavedUserSPAddr and switches SP to
// the top of KernelStack, so the monitor's saves (and the return PC pushed below) land on the
// kernel stack, never the interrupted task's own stack (§4.4.6, scenario 4). kret restores the
// stashed SP when it drops back to User mode. A trap entered while already in Kernel mode (a
// fault raised by the monitor itself) keeps running on the current kernel stack.
func (cpu *CPU) deliverTrap(exit CPUExit) error {
	if exit.Cause() == CauseHalt && cpu.Mode == Kernel {
		cpu.Halted = true
		return nil
	}

	cpu.log.Debug("trap", "CAUSE", exit.Cause(), "ERR", exit, log.Group("STATE", cpu))

	returnPC := cpu.PC
	fromUser := cpu.Mode == User
	cpu.Mode = Kernel
	cpu.Intent = Execute

	if fromUser {
		if err := cpu.storeWord(SavedUserSPAddr, cpu.SP); err != nil {
			return fmt.Errorf("trap: %w", err)
		}

		cpu.SP = VramStart - 1
	}

	if err := cpu.pushByte(returnPC.Lo()); err != nil {
		return fmt.Errorf("trap: %w", err)
	}

	if err := cpu.pushByte(returnPC.Hi()); err != nil {
		return fmt.Errorf("trap: %w", err)
	}

	if err := cpu.Bus.Write(TrapCauseAddr, Byte(exit.Cause()), Kernel, cpu.Bus.CurrentTask()); err != nil {
		return fmt.Errorf("trap: %w", err)
	}

	cpu.PC = TrapVectorAddr

	return nil
}
