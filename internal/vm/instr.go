package vm

import "fmt"

// Instruction is the decoded two-byte header common to every opcode:
//
//	byte0: [opcode:6 | mode_hi:2]
//	byte1: [mode_lo:2 | regA:3 | regB:3]
type Instruction struct {
	Opcode Opcode
	Mode   Mode4
	RegA   GPR
	RegB   GPR
}

func (i Instruction) String() string {
	return fmt.Sprintf("%s mode=%s regA=R%d regB=R%d", i.Opcode, i.Mode, i.RegA, i.RegB)
}

// DecodeInstruction splits the two header bytes into opcode, mode, and register fields.
func DecodeInstruction(b0, b1 Byte) Instruction {
	modeHi := uint16(b0) & 0x03
	modeLo := uint16(b1) >> 6 & 0x03

	return Instruction{
		Opcode: Opcode(uint16(b0) >> 2),
		Mode:   Mode4(modeHi<<2 | modeLo),
		RegA:   GPR(uint16(b1) >> 3 & 0x07),
		RegB:   GPR(uint16(b1) & 0x07),
	}
}

// Encode packs the header fields back into the two header bytes.
func (i Instruction) Encode() (b0, b1 Byte) {
	b0 = Byte(uint16(i.Opcode)<<2 | uint16(i.Mode)>>2)
	b1 = Byte(uint16(i.Mode)&0x03<<6 | uint16(i.RegA)<<3 | uint16(i.RegB))

	return b0, b1
}

// Opcode is the 6-bit operation selector.
type Opcode uint8

// The complete opcode space, in the order of the table in §4.4.2. Gaps are reserved for the
// run of conditional jumps (jz through jl), each with its own constant so decode stays a plain
// switch.
const (
	OpNop Opcode = iota
	OpMov
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpNot
	OpJmp
	OpJz
	OpJc
	OpJo
	OpJs
	OpJnz
	OpJg
	OpJl
	OpCmp
	OpPush
	OpPop
	OpCall
	OpRet
	OpShl
	OpShr
	OpSar
	OpSsp
	OpSkip
	OpSys
	OpKret
	OpGsp
	OpPnk
	OpDbg
	OpShrw
	OpGfls
	OpSfls

	OpHlt Opcode = 0x3f
)

var opcodeNames = map[Opcode]string{
	OpNop: "nop", OpMov: "mov", OpAdd: "add", OpSub: "sub", OpMul: "mul",
	OpDiv: "div", OpMod: "mod", OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpNot: "not", OpJmp: "jmp", OpJz: "jz", OpJc: "jc", OpJo: "jo",
	OpJs: "js", OpJnz: "jnz", OpJg: "jg", OpJl: "jl", OpCmp: "cmp",
	OpPush: "push", OpPop: "pop", OpCall: "call", OpRet: "ret", OpShl: "shl",
	OpShr: "shr", OpSar: "sar", OpSsp: "ssp", OpSkip: "skip", OpSys: "sys",
	OpKret: "kret", OpGsp: "gsp", OpPnk: "pnk", OpDbg: "dbg", OpShrw: "shrw",
	OpGfls: "gfls", OpSfls: "sfls", OpHlt: "hlt",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}

	return fmt.Sprintf("Opcode(%#02x)", uint8(o))
}

// Mnemonics maps an opcode's name to its value; used by the assembler.
var Mnemonics = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}

	return m
}()

// Mode4 is the combined 4-bit addressing-mode field. The same numeric values serve both the
// two-operand and one-operand mode tables; which table applies depends on the opcode's Kind.
type Mode4 uint8

// Two-operand addressing modes.
const (
	ModeRr Mode4 = iota
	ModeRm
	ModeMr
	ModeRi
	ModeRmi
	ModeMir
)

// One-operand addressing modes.
const (
	ModeR Mode4 = iota
	ModeM
	ModeI
	ModeMi
)

func (m Mode4) String() string {
	switch m {
	case ModeRr: // == ModeR
		return "rr/r"
	case ModeRm: // == ModeM
		return "rm/m"
	case ModeMr: // == ModeI
		return "mr/i"
	case ModeRi: // == ModeMi
		return "ri/mi"
	case ModeRmi:
		return "rmi"
	case ModeMir:
		return "mir"
	default:
		return fmt.Sprintf("Mode4(%d)", uint8(m))
	}
}

// Kind classifies how many operands an opcode takes.
type Kind uint8

const (
	ZeroOp Kind = iota
	OneOp
	TwoOp
)

// KindOf returns the operand arity for an opcode, per the table in §4.4.2.
func KindOf(op Opcode) Kind {
	switch op {
	case OpNop, OpRet, OpSys, OpKret, OpPnk, OpHlt:
		return ZeroOp
	case OpMov, OpAdd, OpSub, OpMul, OpDiv, OpMod, OpAnd, OpOr, OpXor,
		OpCmp, OpShr, OpShrw:
		return TwoOp
	default:
		return OneOp
	}
}

// KernelOnly reports whether an opcode may execute only in Kernel mode.
func KernelOnly(op Opcode) bool {
	return op == OpSsp || op == OpKret
}

// IsConditionalJump reports whether op is one of jz/jc/jo/js/jnz/jg/jl.
func IsConditionalJump(op Opcode) bool {
	return op >= OpJz && op <= OpJl
}

// Taken reports whether a conditional jump opcode is taken given the current flags.
func Taken(op Opcode, f Flags) bool {
	switch op {
	case OpJz:
		return f.Zero
	case OpJc:
		return f.Carry
	case OpJo:
		return f.Overflow
	case OpJs:
		return f.Sign
	case OpJnz:
		return !f.Zero
	case OpJg:
		return !f.Zero && !f.Sign
	case OpJl:
		// Open question in the port: the naive definition reuses the sign flag alone,
		// which is only correct when overflow never fired. The correct signed
		// less-than test is sign != overflow.
		return f.Sign != f.Overflow
	default:
		return false
	}
}
