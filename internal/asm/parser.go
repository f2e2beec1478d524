package asm

import (
	"fmt"
	"io"
	"strconv"

	"github.com/project-octo/octovm/internal/log"
	"github.com/project-octo/octovm/internal/vm"
)

// Grammar declares the syntax this assembler accepts, in EBNF (with some liberties), per §4.7/§4.8.
var Grammar = `
program      = { statement } ;
statement    = label | zero_op | single_op | double_op | signal | comment | NEWLINE ;
label        = ident ':' ;
zero_op      = ident ;
single_op    = ident mode_ident operand ;
double_op    = ident mode_ident operand ',' operand ;
signal       = '.' ident { arg_expr { ',' arg_expr } } ;
mode_ident   = ident ;                         (* r|m|i for single; rr|rm|mr|ri for double *)
operand      = register | immediate ;
register     = ident ;                         (* r[0-9]+ *)
immediate    = Int | Hex | Binary | Char | ident | func | '(' numexpr op numexpr ')' ;
func         = ident '(' numexpr ')' ;          (* hi(...) / lo(...) *)
numexpr      = immediate ;
op           = '+' | '-' | '*' | '/' ;
arg_expr     = numexpr ;                       (* a Str argument is a syntax error *)
comment      = Comment ;
`

var singleModes = map[string]vm.Mode4{"r": vm.ModeR, "m": vm.ModeM, "i": vm.ModeI}

var doubleModes = map[string]vm.Mode4{
	"rr": vm.ModeRr, "rm": vm.ModeRm, "mr": vm.ModeMr, "ri": vm.ModeRi,
}

// Parser consumes a token stream and produces a flat list of Statements. It keeps one token of
// lookahead, reusable via Save/Restore the way the teacher's parser peeks the lexer
// (internal/asm/parser.go's peek_next_token), generalized into an actual saved position since
// this grammar sometimes needs to look two tokens ahead (an identifier followed by '(' is a
// function call, not a bare reference).
type Parser struct {
	lex  *Lexer
	tok  Token
	log  *log.Logger
	err  error
	done bool

	stmts []Statement
}

// NewParser creates a Parser. Call Parse to read a source stream.
func NewParser(logger *log.Logger) *Parser {
	if logger == nil {
		logger = log.DefaultLogger()
	}

	return &Parser{log: logger}
}

// Err returns the first error the parser encountered, if any.
func (p *Parser) Err() error { return p.err }

// Statements returns the flat statement list built by Parse.
func (p *Parser) Statements() []Statement { return p.stmts }

// Parse tokenizes and parses r, appending to any statements from a prior call. Parsing stops at
// the first error, which is then available from Err.
func (p *Parser) Parse(r io.Reader) {
	if p.err != nil {
		return
	}

	lex, err := NewLexer(r)
	if err != nil {
		p.err = err
		return
	}

	p.lex = lex

	if err := p.advance(); err != nil {
		p.err = err
		return
	}

	for {
		stmt, err := p.parseStatement()
		if err != nil {
			p.err = err
			return
		}

		if stmt.Kind == StmtEnd {
			return
		}

		p.stmts = append(p.stmts, stmt)
	}
}

func (p *Parser) advance() error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}

	p.tok = tok

	return nil
}

// peek looks one token past the current one without consuming either.
func (p *Parser) peek() (Token, error) {
	saved := p.lex.Save()
	tok, err := p.lex.Next()
	p.lex.Restore(saved)

	return tok, err
}

func (p *Parser) expectIdent() (string, error) {
	if p.tok.Kind != Ident {
		return "", p.syntaxErrorf(ErrSyntax, "expected identifier, got %s", p.tok)
	}

	s := p.tok.Text
	if err := p.advance(); err != nil {
		return "", err
	}

	return s, nil
}

func (p *Parser) expectPunct(ch rune) error {
	if p.tok.Kind != Punct || p.tok.Ch != ch {
		return p.syntaxErrorf(ErrSyntax, "expected %q, got %s", ch, p.tok)
	}

	return p.advance()
}

func (p *Parser) syntaxErrorf(sentinel error, format string, args ...any) error {
	return &SyntaxError{Line: p.tok.Line, Err: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))}
}

// parseStatement dispatches on the current token, mirroring the teacher's one-token-of-lookahead
// dispatch (internal/asm/parser.go's line-kind switch), generalized from its line-oriented regex
// match to a token-kind switch.
func (p *Parser) parseStatement() (Statement, error) {
	line := p.tok.Line

	switch p.tok.Kind {
	case EOF:
		return Statement{Kind: StmtEnd, Line: line}, nil

	case Newline:
		if err := p.advance(); err != nil {
			return Statement{}, err
		}

		return Statement{Kind: StmtNewline, Line: line}, nil

	case Tab:
		if err := p.advance(); err != nil {
			return Statement{}, err
		}

		return Statement{Kind: StmtNewline, Line: line}, nil

	case Comment:
		text := p.tok.Text
		if err := p.advance(); err != nil {
			return Statement{}, err
		}

		return Statement{Kind: StmtComment, Line: line, Text: text}, nil

	case Punct:
		if p.tok.Ch == '.' {
			return p.parseSignal()
		}

		return Statement{}, p.syntaxErrorf(ErrSyntax, "unexpected token %s", p.tok)

	case Ident:
		return p.parseIdentStatement()

	default:
		return Statement{}, p.syntaxErrorf(ErrSyntax, "unexpected token %s", p.tok)
	}
}

// parseIdentStatement resolves an identifier to a mnemonic (dispatching on its operand arity) or,
// failing that, a label definition.
func (p *Parser) parseIdentStatement() (Statement, error) {
	line := p.tok.Line
	name := p.tok.Text

	if op, ok := vm.Mnemonics[name]; ok {
		switch vm.KindOf(op) {
		case vm.ZeroOp:
			return p.parseZeroOp(name, op)
		case vm.OneOp:
			return p.parseSingleOp(name, op)
		case vm.TwoOp:
			return p.parseDoubleOp(name, op)
		}
	}

	next, err := p.peek()
	if err != nil {
		return Statement{}, err
	}

	if next.Kind == Punct && next.Ch == ':' {
		if err := p.advance(); err != nil { // identifier
			return Statement{}, err
		}

		if err := p.advance(); err != nil { // ':'
			return Statement{}, err
		}

		return Statement{Kind: StmtLabel, Line: line, Label: name}, nil
	}

	return Statement{}, p.syntaxErrorf(ErrOpcode, "%q is neither a mnemonic nor a label definition", name)
}

func (p *Parser) parseZeroOp(name string, op vm.Opcode) (Statement, error) {
	line := p.tok.Line
	if err := p.advance(); err != nil {
		return Statement{}, err
	}

	return Statement{Kind: StmtZero, Line: line, Mnemonic: name, Opcode: op}, nil
}

func (p *Parser) parseSingleOp(name string, op vm.Opcode) (Statement, error) {
	line := p.tok.Line
	if err := p.advance(); err != nil { // mnemonic
		return Statement{}, err
	}

	modeIdent, err := p.expectIdent()
	if err != nil {
		return Statement{}, err
	}

	mode, ok := singleModes[modeIdent]
	if !ok {
		return Statement{}, p.syntaxErrorf(ErrMode, "unknown single-operand mode %q", modeIdent)
	}

	operand, err := p.parseOperand()
	if err != nil {
		return Statement{}, err
	}

	// A written mode `m` promotes to `mi` purely on whether the operand is a register token —
	// never on whether a referenced name turns out to be a label or a constant. Mode `i` never
	// promotes. Grounded on original_source/src/assembler.rs's parse_single_op.
	if mode == vm.ModeM && operand.Kind != OperandRegister {
		mode = vm.ModeMi
	}

	return Statement{
		Kind: StmtSingle, Line: line, Mnemonic: name, Opcode: op, Mode: mode,
		Width: vm.OperandWidth1(op), Dest: operand,
	}, nil
}

func (p *Parser) parseDoubleOp(name string, op vm.Opcode) (Statement, error) {
	line := p.tok.Line
	if err := p.advance(); err != nil { // mnemonic
		return Statement{}, err
	}

	modeIdent, err := p.expectIdent()
	if err != nil {
		return Statement{}, err
	}

	mode, ok := doubleModes[modeIdent]
	if !ok {
		return Statement{}, p.syntaxErrorf(ErrMode, "unknown two-operand mode %q", modeIdent)
	}

	dest, err := p.parseOperand()
	if err != nil {
		return Statement{}, err
	}

	if err := p.expectPunct(','); err != nil {
		return Statement{}, err
	}

	src, err := p.parseOperand()
	if err != nil {
		return Statement{}, err
	}

	// Same purely syntactic promotion rule as the single-operand case: `rm` promotes to `rmi`
	// only when src isn't a register, `mr` promotes to `mir` only when dest isn't a register;
	// `ri` never promotes.
	if mode == vm.ModeRm && src.Kind != OperandRegister {
		mode = vm.ModeRmi
	}

	if mode == vm.ModeMr && dest.Kind != OperandRegister {
		mode = vm.ModeMir
	}

	return Statement{
		Kind: StmtDouble, Line: line, Mnemonic: name, Opcode: op, Mode: mode,
		Dest: dest, Src: src,
	}, nil
}

// parseOperand parses a register or an immediate expression, per the Operand forms in §4.8.
func (p *Parser) parseOperand() (Operand, error) {
	switch p.tok.Kind {
	case Ident:
		name := p.tok.Text

		if reg, ok := parseRegister(name); ok {
			if err := p.advance(); err != nil {
				return Operand{}, err
			}

			return Operand{Kind: OperandRegister, Reg: reg}, nil
		}

		next, err := p.peek()
		if err != nil {
			return Operand{}, err
		}

		if next.Kind == Punct && next.Ch == '(' {
			expr, err := p.parseFunction(name)
			if err != nil {
				return Operand{}, err
			}

			return Operand{Kind: OperandImmediate, Expr: expr}, nil
		}

		if err := p.advance(); err != nil {
			return Operand{}, err
		}

		return Operand{Kind: OperandImmediate, Expr: NumExpr{Kind: NumReference, Name: name}}, nil

	case Int, Hex, Binary, Char:
		expr, err := p.parseNumExpr()
		if err != nil {
			return Operand{}, err
		}

		return Operand{Kind: OperandImmediate, Expr: expr}, nil

	case Punct:
		if p.tok.Ch == '(' {
			expr, err := p.parseParenExpr()
			if err != nil {
				return Operand{}, err
			}

			return Operand{Kind: OperandImmediate, Expr: expr}, nil
		}

		return Operand{}, p.syntaxErrorf(ErrOperand, "unexpected token %s in operand", p.tok)

	default:
		return Operand{}, p.syntaxErrorf(ErrOperand, "unexpected token %s in operand", p.tok)
	}
}

// parseRegister recognizes the operand form r[0-9]+, per §4.8.
func parseRegister(name string) (vm.GPR, bool) {
	if len(name) < 2 || name[0] != 'r' {
		return 0, false
	}

	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 0 || n >= int(vm.NumGPR) {
		return 0, false
	}

	return vm.GPR(n), true
}

// parseFunction parses hi(num-expr) or lo(num-expr); ident has already been peeked as the
// function name and the current token still sits on it.
func (p *Parser) parseFunction(ident string) (NumExpr, error) {
	var kind NumExprKind

	switch ident {
	case "hi":
		kind = NumHi
	case "lo":
		kind = NumLo
	default:
		return NumExpr{}, p.syntaxErrorf(ErrOperand, "unknown function %q", ident)
	}

	if err := p.advance(); err != nil { // ident
		return NumExpr{}, err
	}

	if err := p.expectPunct('('); err != nil {
		return NumExpr{}, err
	}

	inner, err := p.parseNumExpr()
	if err != nil {
		return NumExpr{}, err
	}

	if err := p.expectPunct(')'); err != nil {
		return NumExpr{}, err
	}

	return NumExpr{Kind: kind, Inner: &inner}, nil
}

// parseParenExpr parses a parenthesized binary expression: '(' numexpr op numexpr ')'.
func (p *Parser) parseParenExpr() (NumExpr, error) {
	if err := p.expectPunct('('); err != nil {
		return NumExpr{}, err
	}

	left, err := p.parseNumExpr()
	if err != nil {
		return NumExpr{}, err
	}

	if p.tok.Kind != Punct {
		return NumExpr{}, p.syntaxErrorf(ErrSyntax, "expected an operator in (a op b), got %s", p.tok)
	}

	var op BinaryOp

	switch p.tok.Ch {
	case '+':
		op = OpAdd
	case '-':
		op = OpSub
	case '*':
		op = OpMul
	case '/':
		op = OpDiv
	default:
		return NumExpr{}, p.syntaxErrorf(ErrSyntax, "expected one of + - * / in (a op b), got %q", p.tok.Ch)
	}

	if err := p.advance(); err != nil {
		return NumExpr{}, err
	}

	right, err := p.parseNumExpr()
	if err != nil {
		return NumExpr{}, err
	}

	if err := p.expectPunct(')'); err != nil {
		return NumExpr{}, err
	}

	return NumExpr{Kind: NumBinary, Op: op, Left: &left, Right: &right}, nil
}

// parseNumExpr parses a bare numeric expression: a literal, a reference, a function call, or a
// parenthesized binary expression. Used for operands and, via parseSignal, for directive args.
func (p *Parser) parseNumExpr() (NumExpr, error) {
	switch p.tok.Kind {
	case Int:
		v := p.tok.Int
		if err := p.advance(); err != nil {
			return NumExpr{}, err
		}

		return NumExpr{Kind: NumRaw, Raw: v}, nil

	case Char:
		v := p.tok.Int
		if err := p.advance(); err != nil {
			return NumExpr{}, err
		}

		return NumExpr{Kind: NumRaw, Raw: v}, nil

	case Hex:
		v, err := strconv.ParseInt(p.tok.Text, 16, 64)
		if err != nil {
			return NumExpr{}, p.syntaxErrorf(ErrLexer, "bad hex literal %q: %s", p.tok.Text, err)
		}

		if err := p.advance(); err != nil {
			return NumExpr{}, err
		}

		return NumExpr{Kind: NumRaw, Raw: v}, nil

	case Binary:
		v, err := strconv.ParseInt(p.tok.Text, 2, 64)
		if err != nil {
			return NumExpr{}, p.syntaxErrorf(ErrLexer, "bad binary literal %q: %s", p.tok.Text, err)
		}

		if err := p.advance(); err != nil {
			return NumExpr{}, err
		}

		return NumExpr{Kind: NumRaw, Raw: v}, nil

	case Ident:
		name := p.tok.Text

		next, err := p.peek()
		if err != nil {
			return NumExpr{}, err
		}

		if next.Kind == Punct && next.Ch == '(' {
			return p.parseFunction(name)
		}

		if err := p.advance(); err != nil {
			return NumExpr{}, err
		}

		return NumExpr{Kind: NumReference, Name: name}, nil

	case Punct:
		if p.tok.Ch == '(' {
			return p.parseParenExpr()
		}

		return NumExpr{}, p.syntaxErrorf(ErrSyntax, "unexpected token %s in numeric expression", p.tok)

	default:
		return NumExpr{}, p.syntaxErrorf(ErrSyntax, "unexpected token %s in numeric expression", p.tok)
	}
}

// parseSignal parses a `.` directive: `.` ident { arg { ',' arg } }, per §4.9.
func (p *Parser) parseSignal() (Statement, error) {
	line := p.tok.Line

	if err := p.expectPunct('.'); err != nil {
		return Statement{}, err
	}

	name, err := p.expectIdent()
	if err != nil {
		return Statement{}, err
	}

	var args []NumExpr

	for p.takingArgs() {
		if p.tok.Kind == Str {
			return Statement{}, p.syntaxErrorf(ErrOperand, "string arguments are not supported; use a bare name for .const")
		}

		arg, err := p.parseNumExpr()
		if err != nil {
			return Statement{}, err
		}

		args = append(args, arg)

		if p.tok.Kind == Punct && p.tok.Ch == ',' {
			if err := p.advance(); err != nil {
				return Statement{}, err
			}

			continue
		}

		break
	}

	return Statement{Kind: StmtSignal, Line: line, Name: name, Args: args}, nil
}

func (p *Parser) takingArgs() bool {
	switch p.tok.Kind {
	case EOF, Newline, Comment:
		return false
	default:
		return true
	}
}
