package asm

import "fmt"

// TokenKind classifies a lexical token, per §4.7.
type TokenKind int

const (
	EOF TokenKind = iota
	Newline
	Tab
	Ident
	Int
	Hex
	Binary
	Str
	Char
	Comment

	// Punct carries one of the single-character tokens in its Ch field:
	// + - * / : _ ( ) [ ] { } , = ! . " '
	Punct

	Lt
	Gt
	Le
	Ge
)

var tokenNames = map[TokenKind]string{
	EOF: "EOF", Newline: "NEWLINE", Tab: "TAB", Ident: "Ident", Int: "Int",
	Hex: "Hex", Binary: "Binary", Str: "Str", Char: "Char", Comment: "Comment",
	Punct: "Punct", Lt: "<", Gt: ">", Le: "<=", Ge: ">=",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}

	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is one lexical unit. Which fields are meaningful depends on Kind: Text carries an
// identifier, comment, or the raw digit run of a Hex/Binary literal; Int carries a decimal or
// character-literal value; Ch carries a Punct token's character.
type Token struct {
	Kind TokenKind
	Text string
	Int  int64
	Ch   rune
	Line int
}

func (t Token) String() string {
	switch t.Kind {
	case Ident, Comment, Hex, Binary:
		return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
	case Int, Char:
		return fmt.Sprintf("%s(%d)", t.Kind, t.Int)
	case Punct:
		return fmt.Sprintf("Punct(%q)", t.Ch)
	default:
		return t.Kind.String()
	}
}
