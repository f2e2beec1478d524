package asm

import (
	"strings"
	"testing"
)

func allTokens(t *testing.T, src string) []Token {
	t.Helper()

	lex, err := NewLexer(strings.NewReader(src))
	if err != nil {
		t.Fatalf("NewLexer: %s", err)
	}

	var toks []Token

	for {
		tok, err := lex.Next()
		if err != nil {
			t.Fatalf("Next: %s", err)
		}

		toks = append(toks, tok)

		if tok.Kind == EOF {
			return toks
		}
	}
}

func TestLexer_Kinds(t *testing.T) {
	tt := []struct {
		name string
		src  string
		want []TokenKind
	}{
		{"empty", "", []TokenKind{EOF}},
		{"ident", "mov", []TokenKind{Ident, EOF}},
		{"ident uppercased folds", "MOV", []TokenKind{Ident, EOF}},
		{"label colon", "loop:", []TokenKind{Ident, Punct, EOF}},
		{"decimal", "42", []TokenKind{Int, EOF}},
		{"hex", "0x2A", []TokenKind{Hex, EOF}},
		{"hex underscore", "0x2A_FF", []TokenKind{Hex, EOF}},
		{"binary", "0b1010", []TokenKind{Binary, EOF}},
		{"char", "'a'", []TokenKind{Char, EOF}},
		{"string", `"hi"`, []TokenKind{Str, EOF}},
		{"line comment", "; a comment", []TokenKind{Comment, EOF}},
		{"tilde comment", "~ also a comment", []TokenKind{Comment, EOF}},
		{"newline", "\n", []TokenKind{Newline, EOF}},
		{"tab", "\t", []TokenKind{Tab, EOF}},
		{"lt", "<", []TokenKind{Lt, EOF}},
		{"le", "<=", []TokenKind{Le, EOF}},
		{"gt", ">", []TokenKind{Gt, EOF}},
		{"ge", ">=", []TokenKind{Ge, EOF}},
		{
			"instruction line",
			"mov rr r0, r1\n",
			[]TokenKind{Ident, Ident, Ident, Punct, Ident, Newline, EOF},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			toks := allTokens(t, tc.src)

			if len(toks) != len(tc.want) {
				t.Fatalf("got %d tokens %v, want %d %v", len(toks), toks, len(tc.want), tc.want)
			}

			for i, k := range tc.want {
				if toks[i].Kind != k {
					t.Errorf("token %d: got %s, want %s", i, toks[i].Kind, k)
				}
			}
		})
	}
}

func TestLexer_IdentFolded(t *testing.T) {
	toks := allTokens(t, "MoV")

	if toks[0].Text != "mov" {
		t.Errorf("got %q, want %q", toks[0].Text, "mov")
	}
}

func TestLexer_HexValue(t *testing.T) {
	toks := allTokens(t, "0xFF")

	if toks[0].Kind != Hex || toks[0].Text != "ff" {
		t.Errorf("got %s %q, want Hex \"ff\"", toks[0].Kind, toks[0].Text)
	}
}

func TestLexer_CharValue(t *testing.T) {
	toks := allTokens(t, "'A'")

	if toks[0].Kind != Char || toks[0].Int != 'A' {
		t.Errorf("got %s %d, want Char %d", toks[0].Kind, toks[0].Int, 'A')
	}
}

func TestLexer_Errors(t *testing.T) {
	tt := []struct {
		name string
		src  string
	}{
		{"unterminated string", `"oops`},
		{"unterminated char", `'a`},
		{"empty char", `''`},
		{"stray char", "$"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			lex, err := NewLexer(strings.NewReader(tc.src))
			if err != nil {
				t.Fatalf("NewLexer: %s", err)
			}

			var lastErr error

			for {
				tok, err := lex.Next()
				if err != nil {
					lastErr = err
					break
				}

				if tok.Kind == EOF {
					break
				}
			}

			if lastErr == nil {
				t.Fatalf("expected an error for %q", tc.src)
			}
		})
	}
}
