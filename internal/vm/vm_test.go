package vm

import (
	"testing"
)

// writeInstruction encodes ins at addr, followed by any immediate bytes, and returns the address
// just past it.
func writeInstruction(bus *Bus, addr Word, ins Instruction, imm ...Byte) Word {
	b0, b1 := ins.Encode()
	bus.ForceSet(addr, b0)
	bus.ForceSet(addr+1, b1)

	for i, b := range imm {
		bus.ForceSet(addr+2+Word(i), b)
	}

	return addr + 2 + Word(len(imm))
}

func newKernelCPU(opts ...OptionFn) (*CPU, *Bus) {
	bus := NewBus(1)
	opts = append([]OptionFn{WithEntryPoint(KernelCoreStart)}, opts...)
	cpu := NewCPU(bus, opts...)

	return cpu, bus
}

// TestStep_Mov exercises mov in Rr mode: a plain register-to-register copy that leaves flags
// untouched, per §4.4.2.
func TestStep_Mov(tt *testing.T) {
	tt.Parallel()

	cpu, bus := newKernelCPU()
	cpu.Reg[1] = 0x42
	cpu.Flags = Flags{Zero: true}

	writeInstruction(bus, cpu.PC, Instruction{Opcode: OpMov, Mode: ModeRr, RegA: 0, RegB: 1})

	if err := cpu.Step(); err != nil {
		tt.Fatalf("unexpected err: %s", err)
	}

	if cpu.Reg[0] != 0x42 {
		tt.Errorf("R0: want 0x42, got %s", cpu.Reg[0])
	}

	if !cpu.Flags.Zero {
		tt.Errorf("flags: mov must not clear Zero")
	}

	if cpu.PC != KernelCoreStart+2 {
		tt.Errorf("PC: want %s, got %s", KernelCoreStart+2, cpu.PC)
	}
}

// TestStep_AddOverflow exercises add in Ri mode with two like-signed operands overflowing into
// the opposite sign, per the add flag formula in §4.4.4.
func TestStep_AddOverflow(tt *testing.T) {
	tt.Parallel()

	cpu, bus := newKernelCPU()
	cpu.Reg[0] = 0x7f // +127

	writeInstruction(bus, cpu.PC, Instruction{Opcode: OpAdd, Mode: ModeRi, RegA: 0}, 0x01)

	if err := cpu.Step(); err != nil {
		tt.Fatalf("unexpected err: %s", err)
	}

	if cpu.Reg[0] != 0x80 {
		tt.Errorf("R0: want 0x80, got %s", cpu.Reg[0])
	}

	if !cpu.Flags.Overflow {
		tt.Errorf("flags: want Overflow set")
	}

	if !cpu.Flags.Sign {
		tt.Errorf("flags: want Sign set")
	}

	if cpu.Flags.Carry {
		tt.Errorf("flags: want Carry clear")
	}
}

// TestStep_DivideByZero checks that div with a zero divisor raises an UnknownAction fault instead
// of panicking, and that the fault is delivered to the kernel trap vector.
func TestStep_DivideByZero(tt *testing.T) {
	tt.Parallel()

	cpu, bus := newKernelCPU()
	cpu.Reg[0] = 10
	cpu.Reg[1] = 0

	writeInstruction(bus, cpu.PC, Instruction{Opcode: OpDiv, Mode: ModeRr, RegA: 0, RegB: 1})

	if err := cpu.Step(); err != nil {
		tt.Fatalf("unexpected err: %s", err)
	}

	if cpu.PC != TrapVectorAddr {
		tt.Errorf("PC: want trap vector %s, got %s", TrapVectorAddr, cpu.PC)
	}

	if got := bus.ForceGet(TrapCauseAddr); got != Byte(CauseUnknownAction) {
		tt.Errorf("cause: want %d, got %d", CauseUnknownAction, got)
	}
}

// TestStep_CallRet exercises a call/ret round trip and the stack discipline behind it: call
// pushes the return PC high-byte-first, ret pops it back low-then-high.
func TestStep_CallRet(tt *testing.T) {
	tt.Parallel()

	cpu, bus := newKernelCPU()

	callSite := cpu.PC
	target := KernelCoreStart + 0x100

	after := writeInstruction(bus, callSite, Instruction{Opcode: OpCall, Mode: ModeI}, target.Hi(), target.Lo())
	writeInstruction(bus, target, Instruction{Opcode: OpRet})

	startSP := cpu.SP

	if err := cpu.Step(); err != nil { // call
		tt.Fatalf("call: unexpected err: %s", err)
	}

	if cpu.PC != target {
		tt.Fatalf("PC after call: want %s, got %s", target, cpu.PC)
	}

	if cpu.SP != startSP-2 {
		tt.Errorf("SP after call: want %s, got %s", startSP-2, cpu.SP)
	}

	if err := cpu.Step(); err != nil { // ret
		tt.Fatalf("ret: unexpected err: %s", err)
	}

	if cpu.PC != after {
		tt.Errorf("PC after ret: want %s, got %s", after, cpu.PC)
	}

	if cpu.SP != startSP {
		tt.Errorf("SP after ret: want %s, got %s", startSP, cpu.SP)
	}
}

// TestStep_KernelOnlyFromUser exercises §4.4.6: a kernel-only opcode executed in User mode
// raises IllegalInstruction, and delivery switches the CPU to Kernel mode at the trap vector.
func TestStep_KernelOnlyFromUser(tt *testing.T) {
	tt.Parallel()

	bus := NewBus(1)

	var userCode Region

	for _, r := range DefaultRegions(1) {
		if r.Kind == UserCode && r.Task == 0 {
			userCode = r
		}
	}

	cpu := NewCPU(bus, WithUserMode(), WithEntryPoint(userCode.Start))

	writeInstruction(bus, cpu.PC, Instruction{Opcode: OpSsp, Mode: ModeI}, 0x00, 0x00)

	if err := cpu.Step(); err != nil {
		tt.Fatalf("unexpected err: %s", err)
	}

	if cpu.Mode != Kernel {
		tt.Errorf("mode: want Kernel, got %s", cpu.Mode)
	}

	if cpu.PC != TrapVectorAddr {
		tt.Errorf("PC: want trap vector %s, got %s", TrapVectorAddr, cpu.PC)
	}

	if got := bus.ForceGet(TrapCauseAddr); got != Byte(CauseIllegalInstruction) {
		tt.Errorf("cause: want %d, got %d", CauseIllegalInstruction, got)
	}
}

// TestStep_QuotaRaisesTimer exercises the cooperative-preemption quota: the instruction that
// exhausts it still completes, but is immediately followed by a Timer trap.
func TestStep_QuotaRaisesTimer(tt *testing.T) {
	tt.Parallel()

	bus := NewBus(1)

	var userCode Region

	for _, r := range DefaultRegions(1) {
		if r.Kind == UserCode && r.Task == 0 {
			userCode = r
		}
	}

	cpu := NewCPU(bus, WithUserMode(), WithEntryPoint(userCode.Start), WithQuota(2))

	addr := cpu.PC
	addr = writeInstruction(bus, addr, Instruction{Opcode: OpNop})
	writeInstruction(bus, addr, Instruction{Opcode: OpNop})

	if err := cpu.Step(); err != nil { // first nop: under quota
		tt.Fatalf("step 1: unexpected err: %s", err)
	}

	if cpu.Mode != User {
		tt.Fatalf("mode after step 1: want User, got %s", cpu.Mode)
	}

	if err := cpu.Step(); err != nil { // second nop: exhausts the quota
		tt.Fatalf("step 2: unexpected err: %s", err)
	}

	if cpu.Mode != Kernel {
		tt.Errorf("mode after quota: want Kernel, got %s", cpu.Mode)
	}

	if cpu.PC != TrapVectorAddr {
		tt.Errorf("PC after quota: want trap vector %s, got %s", TrapVectorAddr, cpu.PC)
	}

	if got := bus.ForceGet(TrapCauseAddr); got != Byte(CauseTimer) {
		tt.Errorf("cause: want %d, got %d", CauseTimer, got)
	}

	if cpu.Count != 0 {
		tt.Errorf("count: want reset to 0, got %d", cpu.Count)
	}
}

// TestStep_HaltKernelStops exercises hlt's two faces: stopping the machine in Kernel mode...
func TestStep_HaltKernelStops(tt *testing.T) {
	tt.Parallel()

	cpu, bus := newKernelCPU()
	writeInstruction(bus, cpu.PC, Instruction{Opcode: OpHlt})

	if err := cpu.Step(); err != nil {
		tt.Fatalf("unexpected err: %s", err)
	}

	if !cpu.Halted {
		tt.Errorf("want Halted true")
	}
}

// ...and trapping to the kernel when executed from User mode.
func TestStep_HaltUserTraps(tt *testing.T) {
	tt.Parallel()

	bus := NewBus(1)

	var userCode Region

	for _, r := range DefaultRegions(1) {
		if r.Kind == UserCode && r.Task == 0 {
			userCode = r
		}
	}

	cpu := NewCPU(bus, WithUserMode(), WithEntryPoint(userCode.Start))
	writeInstruction(bus, cpu.PC, Instruction{Opcode: OpHlt})

	if err := cpu.Step(); err != nil {
		tt.Fatalf("unexpected err: %s", err)
	}

	if cpu.Halted {
		tt.Errorf("want Halted false: hlt from User mode traps instead of stopping")
	}

	if cpu.Mode != Kernel {
		tt.Errorf("mode: want Kernel, got %s", cpu.Mode)
	}

	if got := bus.ForceGet(TrapCauseAddr); got != Byte(CauseHalt) {
		tt.Errorf("cause: want %d, got %d", CauseHalt, got)
	}
}

// TestRegionTable_Allowed exercises the region policy table directly: kernel code is readable
// but not writable, kernel data is read/write, and a user task may not touch another task's band.
func TestRegionTable_Allowed(tt *testing.T) {
	tt.Parallel()

	table := NewRegionTable(DefaultRegions(2))

	tcs := []struct {
		name    string
		addr    Word
		mode    Mode
		intent  Intent
		task    int
		allowed bool
	}{
		{"kernel reads its own code", KernelCoreStart, Kernel, Read, 0, true},
		{"kernel may not write its own code", KernelCoreStart, Kernel, Write, 0, false},
		{"kernel writes its own data", KernelDataStart, Kernel, Write, 0, true},
		{"user may not touch kernel data", KernelDataStart, User, Read, 0, false},
	}

	for _, tc := range tcs {
		tc := tc

		tt.Run(tc.name, func(tt *testing.T) {
			tt.Parallel()

			_, ok := table.Allowed(tc.addr, tc.mode, tc.intent, tc.task)
			if ok != tc.allowed {
				tt.Errorf("allowed: want %t, got %t", tc.allowed, ok)
			}
		})
	}

	var task0Code, task1Code Region

	for _, r := range DefaultRegions(2) {
		if r.Kind == UserCode && r.Task == 0 {
			task0Code = r
		}

		if r.Kind == UserCode && r.Task == 1 {
			task1Code = r
		}
	}

	if _, ok := table.Allowed(task1Code.Start, User, Execute, 0); ok {
		tt.Errorf("task 0 must not execute task 1's code")
	}

	if _, ok := table.Allowed(task0Code.Start, User, Execute, 0); !ok {
		tt.Errorf("task 0 must execute its own code")
	}
}
