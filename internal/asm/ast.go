package asm

import "github.com/project-octo/octovm/internal/vm"

// StatementKind tags a parsed Statement, per the grammar in §4.8.
type StatementKind int

const (
	StmtZero StatementKind = iota
	StmtSingle
	StmtDouble
	StmtSignal
	StmtLabel
	StmtNewline
	StmtComment
	StmtEnd
)

// Statement is one parsed line of source: an instruction, a directive, a label, a comment, or a
// blank line. Only the fields relevant to Kind are populated; the rest hold the zero value.
type Statement struct {
	Kind StatementKind
	Line int

	// StmtZero/StmtSingle/StmtDouble.
	Mnemonic string
	Opcode   vm.Opcode
	Mode     vm.Mode4
	Width    int // operand length in bits, from the per-opcode table; 0 for StmtZero

	Dest Operand // StmtSingle's sole operand; StmtDouble's destination
	Src  Operand // StmtDouble's source only

	// StmtSignal.
	Name string
	Args []NumExpr

	// StmtLabel.
	Label string

	// StmtComment.
	Text string
}

// OperandKind distinguishes a bare register from everything evaluated as a number.
type OperandKind int

const (
	OperandRegister OperandKind = iota
	OperandImmediate
)

// Operand is one operand of a single- or double-operand instruction.
type Operand struct {
	Kind OperandKind
	Reg  vm.GPR
	Expr NumExpr
}

// NumExprKind tags a NumExpr node.
type NumExprKind int

const (
	NumRaw NumExprKind = iota
	NumReference
	NumHi
	NumLo
	NumBinary
)

// BinaryOp is one of the four arithmetic operators a parenthesized NumExpr may combine.
type BinaryOp byte

const (
	OpAdd BinaryOp = '+'
	OpSub BinaryOp = '-'
	OpMul BinaryOp = '*'
	OpDiv BinaryOp = '/'
)

// NumExpr is a numeric expression as the parser shapes it — evaluation (resolving Reference names
// against labels or constants) is deferred to the assembler's two passes, per §4.9.
type NumExpr struct {
	Kind NumExprKind

	Raw  int64  // NumRaw
	Name string // NumReference: a label or constant name

	Inner *NumExpr // NumHi, NumLo

	Op          BinaryOp // NumBinary
	Left, Right *NumExpr // NumBinary
}
