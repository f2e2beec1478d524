package vm

// ops.go resolves instruction operands for every addressing mode in §4.4.3 and implements the
// per-opcode execute semantics of §4.4.2/§4.4.4. Mode R is always direct (a register, or a
// register pair read as a 16-bit address); Mode M is always indirect through the register pair's
// own contents, mirroring the direct/indirect pairing the two mode tables share.

import "fmt"

// operand1 is the resolved argument of a one-operand instruction: its value, widened to Word,
// and (for modes that name a writable location) enough to write a result back.
type operand1 struct {
	mode  Mode4
	reg   GPR
	addr  Word // valid when mode is ModeM or ModeMi
	value Word
}

// operandWidth1 reports the bit width of a one-operand opcode's argument: 16 for the address
// operands (jumps, call, ssp, gsp, gfls, sfls, skip), 8 for everything else.
func operandWidth1(op Opcode) int {
	switch op {
	case OpJmp, OpJz, OpJc, OpJo, OpJs, OpJnz, OpJg, OpJl,
		OpCall, OpSsp, OpGsp, OpGfls, OpSfls, OpSkip:
		return 16
	default:
		return 8
	}
}

// immLen1 reports how many immediate bytes a one-operand instruction consumes from the
// instruction stream, per the mode table in §4.4.3.
func immLen1(mode Mode4, width int) int {
	switch mode {
	case ModeI:
		return width / 8
	case ModeMi:
		return 2 // an immediate address is always 16 bits, whatever the operand's own width
	default:
		return 0
	}
}

// immLen2 reports the same for a two-operand instruction.
func immLen2(mode Mode4) int {
	switch mode {
	case ModeRi:
		return 1
	case ModeRmi, ModeMir:
		return 2
	default:
		return 0
	}
}

// OperandWidth1, ImmLen1, and ImmLen2 re-export the tables above for the assembler, which needs
// the same per-opcode width and per-mode immediate-length rules to size and encode instructions
// during its two-pass assembly — the CPU and the assembler must agree on exactly one table.
func OperandWidth1(op Opcode) int        { return operandWidth1(op) }
func ImmLen1(mode Mode4, width int) int  { return immLen1(mode, width) }
func ImmLen2(mode Mode4) int             { return immLen2(mode) }

// readOperand reads a width-bit (8 or 16) big-endian value out of guest memory at addr, asserting
// Read intent.
func (cpu *CPU) readOperand(addr Word, width, task int) (Word, error) {
	b0, err := cpu.Bus.Read(addr, cpu.Mode, Read, task)
	if err != nil {
		return 0, err
	}

	if width == 8 {
		return Word(b0), nil
	}

	b1, err := cpu.Bus.Read(addr+1, cpu.Mode, Read, task)
	if err != nil {
		return 0, err
	}

	return WordOf(b0, b1), nil
}

// readExecWord reads a big-endian 16-bit immediate out of the instruction stream at addr,
// asserting Execute intent.
func (cpu *CPU) readExecWord(addr Word, task int) (Word, error) {
	hi, err := cpu.Bus.Read(addr, cpu.Mode, Execute, task)
	if err != nil {
		return 0, err
	}

	lo, err := cpu.Bus.Read(addr+1, cpu.Mode, Execute, task)
	if err != nil {
		return 0, err
	}

	return WordOf(hi, lo), nil
}

// readExecByte reads a single byte out of the instruction stream at addr, asserting Execute
// intent.
func (cpu *CPU) readExecByte(addr Word, task int) (Byte, error) {
	return cpu.Bus.Read(addr, cpu.Mode, Execute, task)
}

// resolveOperand1 reads the argument of a one-operand instruction. pc is the address of the
// first immediate byte, i.e. the instruction's header address plus two.
func (cpu *CPU) resolveOperand1(ins Instruction, width int, pc Word) (operand1, error) {
	task := cpu.Bus.CurrentTask()
	o := operand1{mode: ins.Mode, reg: ins.RegA}

	switch ins.Mode {
	case ModeR:
		if width == 16 {
			o.value = cpu.Reg.Pair(ins.RegA)
		} else {
			o.value = Word(cpu.Reg[ins.RegA])
		}

	case ModeM:
		o.addr = cpu.Reg.Pair(ins.RegA)

		v, err := cpu.readOperand(o.addr, width, task)
		if err != nil {
			return o, err
		}

		o.value = v

	case ModeI:
		if width == 16 {
			v, err := cpu.readExecWord(pc, task)
			if err != nil {
				return o, err
			}

			o.value = v
		} else {
			v, err := cpu.readExecByte(pc, task)
			if err != nil {
				return o, err
			}

			o.value = Word(v)
		}

	case ModeMi:
		addr, err := cpu.readExecWord(pc, task)
		if err != nil {
			return o, err
		}

		o.addr = addr

		v, err := cpu.readOperand(addr, width, task)
		if err != nil {
			return o, err
		}

		o.value = v
	}

	return o, nil
}

// writeOperand1 writes a result back to the location named by o, for the opcodes that mutate
// their own operand in place (not, pop, shl, sar). Mode I names no location; the assembler never
// emits one of these opcodes in that mode.
func (cpu *CPU) writeOperand1(o operand1, width int, value Word) error {
	task := cpu.Bus.CurrentTask()

	switch o.mode {
	case ModeR:
		if width == 16 {
			cpu.Reg.SetPair(o.reg, value)
		} else {
			cpu.Reg[o.reg] = Byte(value)
		}

		return nil

	case ModeM, ModeMi:
		if width == 8 {
			return cpu.Bus.Write(o.addr, Byte(value), cpu.Mode, task)
		}

		if err := cpu.Bus.Write(o.addr, value.Hi(), cpu.Mode, task); err != nil {
			return err
		}

		return cpu.Bus.Write(o.addr+1, value.Lo(), cpu.Mode, task)

	default:
		return fmt.Errorf("%w: immediate operand is not a writable location", ErrIllegalInstruction)
	}
}

// operand2 is the resolved dest location and both values of a two-operand instruction. All
// two-operand opcodes work in 8-bit values, per §4.4.2.
type operand2 struct {
	destReg   GPR
	destAddr  Word
	destIsMem bool
	dest      Byte
	src       Byte
}

// resolveOperand2 reads both arguments of a two-operand instruction, per the mode table in
// §4.4.3: Rr/Rm/Ri/Rmi address their dest through regA directly; Mr/Mir address dest through
// regA's register pair.
func (cpu *CPU) resolveOperand2(ins Instruction, pc Word) (operand2, error) {
	task := cpu.Bus.CurrentTask()

	var o operand2

	switch ins.Mode {
	case ModeRr:
		o.destReg = ins.RegA
		o.dest = cpu.Reg[ins.RegA]
		o.src = cpu.Reg[ins.RegB]

	case ModeRm:
		o.destReg = ins.RegA
		o.dest = cpu.Reg[ins.RegA]

		b, err := cpu.Bus.Read(cpu.Reg.Pair(ins.RegB), cpu.Mode, Read, task)
		if err != nil {
			return o, err
		}

		o.src = b

	case ModeMr:
		o.destIsMem = true
		o.destAddr = cpu.Reg.Pair(ins.RegA)

		b, err := cpu.Bus.Read(o.destAddr, cpu.Mode, Read, task)
		if err != nil {
			return o, err
		}

		o.dest = b
		o.src = cpu.Reg[ins.RegB]

	case ModeRi:
		o.destReg = ins.RegA
		o.dest = cpu.Reg[ins.RegA]

		b, err := cpu.readExecByte(pc, task)
		if err != nil {
			return o, err
		}

		o.src = b

	case ModeRmi:
		o.destReg = ins.RegA
		o.dest = cpu.Reg[ins.RegA]

		addr, err := cpu.readExecWord(pc, task)
		if err != nil {
			return o, err
		}

		b, err := cpu.Bus.Read(addr, cpu.Mode, Read, task)
		if err != nil {
			return o, err
		}

		o.src = b

	case ModeMir:
		o.destIsMem = true

		addr, err := cpu.readExecWord(pc, task)
		if err != nil {
			return o, err
		}

		o.destAddr = addr

		b, err := cpu.Bus.Read(addr, cpu.Mode, Read, task)
		if err != nil {
			return o, err
		}

		o.dest = b
		o.src = cpu.Reg[ins.RegB]
	}

	return o, nil
}

func (cpu *CPU) writeOperand2(o operand2, value Byte) error {
	if o.destIsMem {
		return cpu.Bus.Write(o.destAddr, value, cpu.Mode, cpu.Bus.CurrentTask())
	}

	cpu.Reg[o.destReg] = value

	return nil
}

// addFlags computes a+b and the flags it sets, per §4.4.4: carry on unsigned wraparound, overflow
// when both operands share a sign but the result's differs.
func addFlags(a, b Byte) (Byte, Flags) {
	r := a + b
	carry := uint16(a)+uint16(b) > 0xff
	overflow := (a>>7 == b>>7) && (r>>7 != a>>7)

	return r, flagsOf(r, carry, overflow)
}

// subFlags computes a-b: carry on unsigned borrow, overflow when the operands' signs differ and
// the result's sign doesn't match the minuend's.
func subFlags(a, b Byte) (Byte, Flags) {
	r := a - b
	carry := a < b
	overflow := (a>>7 != b>>7) && (r>>7 != a>>7)

	return r, flagsOf(r, carry, overflow)
}

// mulFlags computes a*b over a 16-bit product: carry and overflow both report truncation.
func mulFlags(a, b Byte) (Byte, Flags) {
	full := uint16(a) * uint16(b)
	r := Byte(full)
	truncated := full > 0xff

	return r, flagsOf(r, truncated, truncated)
}

// divFlags and modFlags never set carry or overflow; a zero divisor is refused before either is
// called.
func divFlags(a, b Byte) (Byte, Flags) {
	r := a / b
	return r, flagsOf(r, false, false)
}

func modFlags(a, b Byte) (Byte, Flags) {
	r := a % b
	return r, flagsOf(r, false, false)
}

// execute carries out the semantics of a decoded instruction, per §4.4.2. startPC is the address
// of the instruction's header; nextPC is where the CPU resumes absent a jump, call, or skip.
// cpu.PC already holds nextPC when execute is called; branching opcodes overwrite it directly.
func (cpu *CPU) execute(ins Instruction, o1 operand1, o2 operand2, startPC, nextPC Word) CPUExit {
	switch ins.Opcode {
	case OpNop:
		// no effect beyond the PC advance already applied.

	case OpMov:
		if err := cpu.writeOperand2(o2, o2.src); err != nil {
			return illegalMemAccess(err)
		}

	case OpAdd:
		r, f := addFlags(o2.dest, o2.src)
		cpu.Flags = f

		if err := cpu.writeOperand2(o2, r); err != nil {
			return illegalMemAccess(err)
		}

	case OpSub:
		r, f := subFlags(o2.dest, o2.src)
		cpu.Flags = f

		if err := cpu.writeOperand2(o2, r); err != nil {
			return illegalMemAccess(err)
		}

	case OpMul:
		r, f := mulFlags(o2.dest, o2.src)
		cpu.Flags = f

		if err := cpu.writeOperand2(o2, r); err != nil {
			return illegalMemAccess(err)
		}

	case OpDiv:
		if o2.src == 0 {
			return unknownAction(ErrDivideByZero)
		}

		r, f := divFlags(o2.dest, o2.src)
		cpu.Flags = f

		if err := cpu.writeOperand2(o2, r); err != nil {
			return illegalMemAccess(err)
		}

	case OpMod:
		if o2.src == 0 {
			return unknownAction(ErrDivideByZero)
		}

		r, f := modFlags(o2.dest, o2.src)
		cpu.Flags = f

		if err := cpu.writeOperand2(o2, r); err != nil {
			return illegalMemAccess(err)
		}

	case OpAnd:
		if err := cpu.writeOperand2(o2, o2.dest&o2.src); err != nil {
			return illegalMemAccess(err)
		}

	case OpOr:
		if err := cpu.writeOperand2(o2, o2.dest|o2.src); err != nil {
			return illegalMemAccess(err)
		}

	case OpXor:
		if err := cpu.writeOperand2(o2, o2.dest^o2.src); err != nil {
			return illegalMemAccess(err)
		}

	case OpNot:
		if err := cpu.writeOperand1(o1, 8, Word(^Byte(o1.value))); err != nil {
			return illegalInstruction(err)
		}

	case OpCmp:
		_, f := subFlags(o2.dest, o2.src)
		cpu.Flags = f

	case OpShr:
		if err := cpu.writeOperand2(o2, o2.dest>>(o2.src&0x07)); err != nil {
			return illegalMemAccess(err)
		}

	case OpShrw:
		n := o2.src & 0x07
		v := o2.dest
		r := v

		if n != 0 {
			r = v>>n | v<<(8-n)
		}

		if err := cpu.writeOperand2(o2, r); err != nil {
			return illegalMemAccess(err)
		}

	case OpJmp:
		cpu.PC = o1.value

	case OpJz, OpJc, OpJo, OpJs, OpJnz, OpJg, OpJl:
		if Taken(ins.Opcode, cpu.Flags) {
			cpu.PC = o1.value
		}

	case OpPush:
		if err := cpu.pushByte(Byte(o1.value)); err != nil {
			return illegalMemAccess(err)
		}

	case OpPop:
		v, err := cpu.popByte()
		if err != nil {
			return illegalMemAccess(err)
		}

		if err := cpu.writeOperand1(o1, 8, Word(v)); err != nil {
			return illegalInstruction(err)
		}

	case OpCall:
		if err := cpu.pushByte(nextPC.Hi()); err != nil {
			return illegalMemAccess(err)
		}

		if err := cpu.pushByte(nextPC.Lo()); err != nil {
			return illegalMemAccess(err)
		}

		cpu.PC = o1.value

	case OpRet:
		lo, err := cpu.popByte()
		if err != nil {
			return illegalMemAccess(err)
		}

		hi, err := cpu.popByte()
		if err != nil {
			return illegalMemAccess(err)
		}

		cpu.PC = WordOf(hi, lo)

	case OpShl:
		if err := cpu.writeOperand1(o1, 8, Word(Byte(o1.value)<<1)); err != nil {
			return illegalInstruction(err)
		}

	case OpSar:
		v := int8(Byte(o1.value))

		if err := cpu.writeOperand1(o1, 8, Word(Byte(v>>1))); err != nil {
			return illegalInstruction(err)
		}

	case OpSsp:
		cpu.SP = o1.value

	case OpSkip:
		instrLen := nextPC - startPC
		cpu.PC = startPC + instrLen + o1.value

	case OpSys:
		return ExitSyscall

	case OpKret:
		hi, err := cpu.popByte()
		if err != nil {
			return illegalMemAccess(err)
		}

		lo, err := cpu.popByte()
		if err != nil {
			return illegalMemAccess(err)
		}

		userSP, err := cpu.loadWord(SavedUserSPAddr)
		if err != nil {
			return illegalMemAccess(err)
		}

		cpu.PC = WordOf(hi, lo)
		cpu.Mode = User
		cpu.Intent = Execute
		cpu.SP = userSP

	case OpGsp:
		if err := cpu.storeWord(o1.value, cpu.SP); err != nil {
			return illegalMemAccess(err)
		}

	case OpPnk:
		cpu.panic()

	case OpDbg:
		cpu.log.Info("dbg", "cpu", cpu.String(), "operand", o1.value)

	case OpGfls:
		if err := cpu.storeFlags(o1.value, cpu.Flags); err != nil {
			return illegalMemAccess(err)
		}

	case OpSfls:
		f, err := cpu.loadFlags(o1.value)
		if err != nil {
			return illegalMemAccess(err)
		}

		cpu.Flags = f

	case OpHlt:
		if cpu.Mode == Kernel {
			cpu.Halted = true
			return nil
		}

		return ExitHalt

	default:
		return illegalInstruction(fmt.Errorf("%w: %s", ErrIllegalInstruction, ins.Opcode))
	}

	return nil
}

// storeWord writes a 16-bit value big-endian at addr, used by gsp.
func (cpu *CPU) storeWord(addr, value Word) error {
	task := cpu.Bus.CurrentTask()

	if err := cpu.Bus.Write(addr, value.Hi(), cpu.Mode, task); err != nil {
		return err
	}

	return cpu.Bus.Write(addr+1, value.Lo(), cpu.Mode, task)
}

// loadWord reads a 16-bit value big-endian at addr, used by deliverTrap/kret to save and restore
// the interrupted mode's SP across a trap.
func (cpu *CPU) loadWord(addr Word) (Word, error) {
	task := cpu.Bus.CurrentTask()

	hi, err := cpu.Bus.Read(addr, cpu.Mode, Read, task)
	if err != nil {
		return 0, err
	}

	lo, err := cpu.Bus.Read(addr+1, cpu.Mode, Read, task)
	if err != nil {
		return 0, err
	}

	return WordOf(hi, lo), nil
}

// storeFlags writes the four flag bytes at addr, used by gfls.
func (cpu *CPU) storeFlags(addr Word, f Flags) error {
	task := cpu.Bus.CurrentTask()

	for i, b := range f.ToBytes() {
		if err := cpu.Bus.Write(addr+Word(i), b, cpu.Mode, task); err != nil {
			return err
		}
	}

	return nil
}

// loadFlags reads the four flag bytes at addr, used by sfls.
func (cpu *CPU) loadFlags(addr Word) (Flags, error) {
	task := cpu.Bus.CurrentTask()

	var b [4]Byte

	for i := range b {
		v, err := cpu.Bus.Read(addr+Word(i), cpu.Mode, Read, task)
		if err != nil {
			return Flags{}, err
		}

		b[i] = v
	}

	return FlagsFromBytes(b), nil
}
