package asm

import (
	"fmt"

	"github.com/project-octo/octovm/internal/vm"
)

// symbolKind distinguishes a label (a resolved code/data address) from a constant (an arbitrary
// 8-bit value named by .const), so the two namespaces can be checked against each other, per
// §4.9's bidirectional collision rule (grounded on original_source/src/assembler.rs's label() and
// parse_signal's const branch).
type symbolKind int

const (
	symbolLabel symbolKind = iota
	symbolConst
)

// SymbolTable holds every label and constant a source file defines, keyed in one map so a name
// can only ever be one kind of symbol. Grounded on the teacher's asm.SymbolTable, widened to also
// track constants (the teacher's ISA has none).
type SymbolTable struct {
	kind  map[string]symbolKind
	label map[string]vm.Word
	cnst  map[string]vm.Byte
}

// NewSymbolTable returns an empty SymbolTable.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		kind:  make(map[string]symbolKind),
		label: make(map[string]vm.Word),
		cnst:  make(map[string]vm.Byte),
	}
}

// DefineLabel records name as a label at addr. It is an error to redefine a name that is already
// a constant.
func (t *SymbolTable) DefineLabel(name string, addr vm.Word) error {
	if k, ok := t.kind[name]; ok && k == symbolConst {
		return fmt.Errorf("%w: %q is already a constant", ErrRedefine, name)
	}

	t.kind[name] = symbolLabel
	t.label[name] = addr

	return nil
}

// DefineConst records name as a constant with value v. It is an error to redefine a name that is
// already a label.
func (t *SymbolTable) DefineConst(name string, v vm.Byte) error {
	if k, ok := t.kind[name]; ok && k == symbolLabel {
		return fmt.Errorf("%w: %q is already a label", ErrRedefine, name)
	}

	t.kind[name] = symbolConst
	t.cnst[name] = v

	return nil
}

// Label looks up a label's address. ok is false if name is undefined or is a constant.
func (t *SymbolTable) Label(name string) (addr vm.Word, ok bool) {
	if t.kind[name] != symbolLabel {
		return 0, false
	}

	addr, ok = t.label[name]

	return addr, ok
}

// Const looks up a constant's value. ok is false if name is undefined or is a label.
func (t *SymbolTable) Const(name string) (v vm.Byte, ok bool) {
	if t.kind[name] != symbolConst {
		return 0, false
	}

	v, ok = t.cnst[name]

	return v, ok
}

// IsLabel reports whether name is currently defined as a label.
func (t *SymbolTable) IsLabel(name string) bool { return t.kind[name] == symbolLabel }

// pass distinguishes the assembler's two walks over the statement list, per §4.9: CountBytes only
// measures sizes and records label addresses (an unresolved forward reference is not yet an
// error, since a later statement may still define it); Assemble emits real bytes and requires
// every reference to resolve.
type pass int

const (
	passCount pass = iota
	passEmit
)

// Assembler turns a flat statement list into sparse object code, in two passes over the same
// statements, mirroring the teacher's separation of syntax from code generation
// (internal/asm/gen.go's Generator) but structured as two explicit walks instead of one pass with
// backpatching, per SPEC_FULL.md's rationale: this ISA's forward references (a jump to a label
// defined later) are common enough that a dedicated size-only pass is simpler than a fixup list.
type Assembler struct {
	syms *SymbolTable
	pc   vm.Word
}

// NewAssembler returns an Assembler. Symbols defined by a prior Assemble call (if any) are
// retained, so multiple source files can share one symbol table across separate Parse/Assemble
// calls the way the host-side loader links multiple object files, per §6.5.
func NewAssembler() *Assembler {
	return &Assembler{syms: NewSymbolTable()}
}

// Symbols returns the assembler's symbol table, populated once Assemble has run.
func (a *Assembler) Symbols() *SymbolTable { return a.syms }

// Assemble runs both passes over stmts and returns the resulting object code.
func (a *Assembler) Assemble(stmts []Statement) (vm.ObjectCode, error) {
	if _, err := a.walk(stmts, passCount); err != nil {
		return nil, err
	}

	return a.walk(stmts, passEmit)
}

// walk performs one pass over stmts. a.pc tracks the PC; segStart tracks the key the
// object-code map is being appended under, changed only by an .org directive — ordinary
// statements never start a new segment, matching original_source/src/assembler.rs's walk/
// current_pos semantics exactly: everything between two .org directives lands in one contiguous
// byte slice, keyed by the .org that opened it.
func (a *Assembler) walk(stmts []Statement, p pass) (vm.ObjectCode, error) {
	a.pc = 0
	segStart := a.pc
	obj := vm.ObjectCode{}

	emit := func(bs ...vm.Byte) {
		if p != passEmit {
			return
		}

		obj[segStart] = append(obj[segStart], bs...)
	}

	for _, stmt := range stmts {
		switch stmt.Kind {
		case StmtLabel:
			if p == passCount {
				if err := a.syms.DefineLabel(stmt.Label, a.pc); err != nil {
					return nil, lineErr(stmt, err)
				}
			}

		case StmtZero:
			emit(zeroOpBytes(stmt.Opcode)...)
			a.pc += 2

		case StmtSingle:
			bs, err := a.encodeSingleOp(stmt, p)
			if err != nil {
				return nil, lineErr(stmt, err)
			}

			emit(bs...)
			a.pc += vm.Word(len(bs))

		case StmtDouble:
			bs, err := a.encodeDoubleOp(stmt, p)
			if err != nil {
				return nil, lineErr(stmt, err)
			}

			emit(bs...)
			a.pc += vm.Word(len(bs))

		case StmtSignal:
			newSegStart, err := a.doSignal(stmt, p, emit)
			if err != nil {
				return nil, lineErr(stmt, err)
			}

			if newSegStart != nil {
				segStart = *newSegStart
			}

		case StmtComment, StmtNewline, StmtEnd:
			// no code

		default:
			return nil, lineErr(stmt, fmt.Errorf("%w: unhandled statement kind %d", ErrSyntax, stmt.Kind))
		}
	}

	return obj, nil
}

func lineErr(stmt Statement, err error) error {
	return &SyntaxError{Line: stmt.Line, Err: err}
}

func zeroOpBytes(op vm.Opcode) []vm.Byte {
	b0, b1 := vm.Instruction{Opcode: op}.Encode()
	return []vm.Byte{b0, b1}
}

// encodeSingleOp encodes a one-operand instruction: the two header bytes, plus any immediate
// bytes the mode/width call for. The operand always occupies RegA regardless of mode, per
// vm/ops.go's resolveOperand1/writeOperand1.
func (a *Assembler) encodeSingleOp(stmt Statement, p pass) ([]vm.Byte, error) {
	instr := vm.Instruction{Opcode: stmt.Opcode, Mode: stmt.Mode}

	var imm []vm.Byte

	switch stmt.Mode {
	case vm.ModeR:
		reg, err := requireRegister(stmt.Dest)
		if err != nil {
			return nil, err
		}

		instr.RegA = reg

	case vm.ModeM:
		reg, err := requireRegister(stmt.Dest)
		if err != nil {
			return nil, err
		}

		instr.RegA = reg

	case vm.ModeI:
		bs, err := a.encodeImmediate1(stmt.Dest.Expr, stmt.Width, p)
		if err != nil {
			return nil, err
		}

		imm = bs

	case vm.ModeMi:
		addr, err := a.evalAddress(stmt.Dest.Expr, p)
		if err != nil {
			return nil, err
		}

		imm = be16(addr)

	default:
		return nil, fmt.Errorf("%w: mode %s not valid for a single-operand instruction", ErrMode, stmt.Mode)
	}

	b0, b1 := instr.Encode()

	return append([]vm.Byte{b0, b1}, imm...), nil
}

// encodeDoubleOp encodes a two-operand instruction, per vm/ops.go's resolveOperand2/
// writeOperand2: Rr uses both operands as registers; Rm/Mr treat the non-register operand as a
// register pair used to address memory (no immediate bytes — the pointer already lives in
// registers); Ri/Rmi/Mir carry an explicit immediate.
func (a *Assembler) encodeDoubleOp(stmt Statement, p pass) ([]vm.Byte, error) {
	instr := vm.Instruction{Opcode: stmt.Opcode, Mode: stmt.Mode}

	var imm []vm.Byte

	switch stmt.Mode {
	case vm.ModeRr:
		dest, err := requireRegister(stmt.Dest)
		if err != nil {
			return nil, err
		}

		src, err := requireRegister(stmt.Src)
		if err != nil {
			return nil, err
		}

		instr.RegA, instr.RegB = dest, src

	case vm.ModeRm:
		dest, err := requireRegister(stmt.Dest)
		if err != nil {
			return nil, err
		}

		src, err := requireRegister(stmt.Src)
		if err != nil {
			return nil, err
		}

		instr.RegA, instr.RegB = dest, src

	case vm.ModeMr:
		dest, err := requireRegister(stmt.Dest)
		if err != nil {
			return nil, err
		}

		src, err := requireRegister(stmt.Src)
		if err != nil {
			return nil, err
		}

		instr.RegA, instr.RegB = dest, src

	case vm.ModeRi:
		dest, err := requireRegister(stmt.Dest)
		if err != nil {
			return nil, err
		}

		instr.RegA = dest

		bs, err := a.encodeImmediate2(stmt.Src.Expr, p)
		if err != nil {
			return nil, err
		}

		imm = bs

	case vm.ModeRmi:
		dest, err := requireRegister(stmt.Dest)
		if err != nil {
			return nil, err
		}

		instr.RegA = dest

		addr, err := a.evalAddress(stmt.Src.Expr, p)
		if err != nil {
			return nil, err
		}

		imm = be16(addr)

	case vm.ModeMir:
		src, err := requireRegister(stmt.Src)
		if err != nil {
			return nil, err
		}

		instr.RegB = src

		addr, err := a.evalAddress(stmt.Dest.Expr, p)
		if err != nil {
			return nil, err
		}

		imm = be16(addr)

	default:
		return nil, fmt.Errorf("%w: mode %s not valid for a two-operand instruction", ErrMode, stmt.Mode)
	}

	b0, b1 := instr.Encode()

	return append([]vm.Byte{b0, b1}, imm...), nil
}

func requireRegister(o Operand) (vm.GPR, error) {
	if o.Kind != OperandRegister {
		return 0, fmt.Errorf("%w: expected a register operand", ErrRegister)
	}

	return o.Reg, nil
}

func be16(w vm.Word) []vm.Byte {
	return []vm.Byte{vm.Byte(w >> 8), vm.Byte(w)}
}

// encodeImmediate2 encodes a two-operand Ri instruction's single-byte immediate. Grounded on
// original_source/src/assembler.rs's assemble_double_op Unsigned8 branch, widened per DESIGN.md:
// a bare reference to a label is always an error (a label is a 16-bit address and cannot fit in a
// byte); a reference to a constant resolves to its value; a BinaryOperation is supported here
// even though the original doesn't accept one in this position.
func (a *Assembler) encodeImmediate2(e NumExpr, p pass) ([]vm.Byte, error) {
	v, err := a.evalByte(e, p)
	if err != nil {
		return nil, err
	}

	return []vm.Byte{v}, nil
}

// encodeImmediate1 encodes a single-operand I-mode instruction's immediate, which is either 1 or
// 2 bytes depending on the opcode's declared operand width (vm.OperandWidth1).
func (a *Assembler) encodeImmediate1(e NumExpr, width int, p pass) ([]vm.Byte, error) {
	if width == 16 {
		v, err := a.evalAddress(e, p)
		if err != nil {
			return nil, err
		}

		return be16(v), nil
	}

	v, err := a.evalByte(e, p)
	if err != nil {
		return nil, err
	}

	return []vm.Byte{v}, nil
}

// evalByte evaluates e to an 8-bit value for an immediate slot (a .byte/.const argument, or a
// one-byte instruction immediate). A reference to a label is a hard error — a label is a 16-bit
// address — while a reference to a constant resolves to its value; this deliberately unifies the
// original's two inconsistent reference rules for byte contexts into one rule across all of them,
// per DESIGN.md.
func (a *Assembler) evalByte(e NumExpr, p pass) (vm.Byte, error) {
	switch e.Kind {
	case NumRaw:
		return a.rangeByte(e.Raw)

	case NumReference:
		if a.syms.IsLabel(e.Name) {
			return 0, fmt.Errorf("%w: %q is a label (16-bit address), not valid in an 8-bit context", ErrRange, e.Name)
		}

		v, ok := a.syms.Const(e.Name)
		if ok {
			return v, nil
		}

		if p == passCount {
			return 0, nil
		}

		return 0, fmt.Errorf("%w: %q", ErrSymbol, e.Name)

	case NumHi:
		addr, err := a.evalAddress(*e.Inner, p)
		if err != nil {
			return 0, err
		}

		return vm.Byte(addr >> 8), nil

	case NumLo:
		addr, err := a.evalAddress(*e.Inner, p)
		if err != nil {
			return 0, err
		}

		return vm.Byte(addr), nil

	case NumBinary:
		l, err := a.evalByteRaw(*e.Left, p)
		if err != nil {
			return 0, err
		}

		r, err := a.evalByteRaw(*e.Right, p)
		if err != nil {
			return 0, err
		}

		v, err := applyBinaryOp(e.Op, l, r)
		if err != nil {
			return 0, err
		}

		return a.rangeByte(v)

	default:
		return 0, fmt.Errorf("%w: unhandled numeric expression kind %d", ErrSyntax, e.Kind)
	}
}

// evalByteRaw evaluates an operand of a binary expression to a raw int64, without the final
// range check (the check happens once, on the combined result).
func (a *Assembler) evalByteRaw(e NumExpr, p pass) (int64, error) {
	if e.Kind == NumRaw {
		return e.Raw, nil
	}

	v, err := a.evalByte(e, p)

	return int64(v), err
}

func (a *Assembler) rangeByte(v int64) (vm.Byte, error) {
	if v < 0 || v > 0xff {
		return 0, fmt.Errorf("%w: %d does not fit in 8 bits", ErrRange, v)
	}

	return vm.Byte(v), nil
}

// evalAddress evaluates e to a 16-bit value: an instruction's address operand, or a .org target.
// A Function (hi/lo) wrapping an address is a hard error — hi()/lo() narrow an address to a
// byte, they do not produce one — per original_source/src/assembler.rs's
// get_addr_from_numexpr.
func (a *Assembler) evalAddress(e NumExpr, p pass) (vm.Word, error) {
	switch e.Kind {
	case NumRaw:
		return a.rangeWord(e.Raw)

	case NumReference:
		addr, ok := a.syms.Label(e.Name)
		if ok {
			return addr, nil
		}

		if p == passCount {
			return 0, nil
		}

		return 0, fmt.Errorf("%w: %q", ErrSymbol, e.Name)

	case NumHi, NumLo:
		return 0, fmt.Errorf("%w: hi()/lo() cannot be used where a 16-bit address is expected", ErrOperand)

	case NumBinary:
		l, err := a.evalAddressRaw(*e.Left, p)
		if err != nil {
			return 0, err
		}

		r, err := a.evalAddressRaw(*e.Right, p)
		if err != nil {
			return 0, err
		}

		v, err := applyBinaryOp(e.Op, l, r)
		if err != nil {
			return 0, err
		}

		return a.rangeWord(v)

	default:
		return 0, fmt.Errorf("%w: unhandled numeric expression kind %d", ErrSyntax, e.Kind)
	}
}

func (a *Assembler) evalAddressRaw(e NumExpr, p pass) (int64, error) {
	if e.Kind == NumRaw {
		return e.Raw, nil
	}

	v, err := a.evalAddress(e, p)

	return int64(v), err
}

func (a *Assembler) rangeWord(v int64) (vm.Word, error) {
	if v < 0 || v > 0xffff {
		return 0, fmt.Errorf("%w: %d does not fit in 16 bits", ErrRange, v)
	}

	return vm.Word(v), nil
}

// applyBinaryOp evaluates a parenthesized (a op b) expression. Grounded on
// original_source/src/assembler.rs's eval_num_bin_op, with a divide-by-zero guard the original
// lacks.
func applyBinaryOp(op BinaryOp, l, r int64) (int64, error) {
	switch op {
	case OpAdd:
		return l + r, nil
	case OpSub:
		return l - r, nil
	case OpMul:
		return l * r, nil
	case OpDiv:
		if r == 0 {
			return 0, fmt.Errorf("%w: division by zero", ErrRange)
		}

		return l / r, nil
	default:
		return 0, fmt.Errorf("%w: unknown operator %q", ErrSyntax, byte(op))
	}
}

// doSignal executes one `.` directive. It returns a non-nil new segment-start pointer only for
// .org, which is the only directive allowed to move the program counter independently of the
// bytes emitted so far, per §4.9.
func (a *Assembler) doSignal(stmt Statement, p pass, emit func(...vm.Byte)) (*vm.Word, error) {
	switch stmt.Name {
	case "org":
		if len(stmt.Args) != 1 {
			return nil, fmt.Errorf("%w: .org takes exactly one argument", ErrOperand)
		}

		addr, err := a.evalAddress(stmt.Args[0], p)
		if err != nil {
			return nil, err
		}

		a.pc = addr

		return &addr, nil

	case "byte":
		if len(stmt.Args) == 0 {
			return nil, fmt.Errorf("%w: .byte takes at least one argument", ErrOperand)
		}

		for _, arg := range stmt.Args {
			v, err := a.evalByte(arg, p)
			if err != nil {
				return nil, err
			}

			emit(v)
			a.pc++
		}

		return nil, nil

	case "const":
		if len(stmt.Args) != 2 {
			return nil, fmt.Errorf("%w: .const takes exactly two arguments", ErrOperand)
		}

		// .const's name argument is a bare identifier, used literally rather than evaluated —
		// per DESIGN.md, deviating from the letter of original_source/src/assembler.rs's
		// parse_signal (which expects a quoted string there, a mismatch with its own bare-ident
		// .const examples).
		if stmt.Args[0].Kind != NumReference {
			return nil, fmt.Errorf("%w: .const's first argument must be a bare name", ErrOperand)
		}

		name := stmt.Args[0].Name

		v, err := a.evalByte(stmt.Args[1], p)
		if err != nil {
			return nil, err
		}

		if p == passCount {
			if err := a.syms.DefineConst(name, v); err != nil {
				return nil, err
			}
		}

		return nil, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrSignal, stmt.Name)
	}
}
