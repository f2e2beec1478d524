package asm

import (
	"strings"
	"testing"

	"github.com/project-octo/octovm/internal/vm"
)

func assembleSrc(t *testing.T, src string) (vm.ObjectCode, *Assembler) {
	t.Helper()

	p := NewParser(nil)
	p.Parse(strings.NewReader(src))

	if err := p.Err(); err != nil {
		t.Fatalf("Parse(%q): %s", src, err)
	}

	a := NewAssembler()

	obj, err := a.Assemble(p.Statements())
	if err != nil {
		t.Fatalf("Assemble(%q): %s", src, err)
	}

	return obj, a
}

func TestAssembler_ZeroOp(t *testing.T) {
	obj, _ := assembleSrc(t, "hlt\n")

	b0, b1 := vm.Instruction{Opcode: vm.OpHlt}.Encode()

	got := obj[0]
	if len(got) != 2 || got[0] != b0 || got[1] != b1 {
		t.Fatalf("got % x, want % x", got, []vm.Byte{b0, b1})
	}
}

func TestAssembler_DoubleOpRegisterRegister(t *testing.T) {
	obj, _ := assembleSrc(t, "mov rr r2, r3\n")

	b0, b1 := vm.Instruction{Opcode: vm.OpMov, Mode: vm.ModeRr, RegA: 2, RegB: 3}.Encode()

	got := obj[0]
	if len(got) != 2 || got[0] != b0 || got[1] != b1 {
		t.Fatalf("got % x, want % x", got, []vm.Byte{b0, b1})
	}
}

func TestAssembler_DoubleOpImmediate(t *testing.T) {
	obj, _ := assembleSrc(t, "add ri r0, 7\n")

	b0, b1 := vm.Instruction{Opcode: vm.OpAdd, Mode: vm.ModeRi, RegA: 0}.Encode()

	got := obj[0]
	want := []vm.Byte{b0, b1, 7}

	if len(got) != len(want) {
		t.Fatalf("got % x, want % x", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got % x, want % x", got, want)
		}
	}
}

func TestAssembler_ForwardLabelReference(t *testing.T) {
	// jmp to a label defined after the jump: resolved only because the first pass records every
	// label's address before the second pass emits bytes.
	src := "jmp i target\nnop\ntarget:\nhlt\n"

	obj, a := assembleSrc(t, src)

	addr, ok := a.Symbols().Label("target")
	if !ok || addr != 6 {
		t.Fatalf("got target=%d ok=%v, want 6 true", addr, ok)
	}

	b0, b1 := vm.Instruction{Opcode: vm.OpJmp, Mode: vm.ModeI}.Encode()

	got := obj[0][:4]
	want := []vm.Byte{b0, b1, 0, 6}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got % x, want % x", got, want)
		}
	}
}

func TestAssembler_UndefinedSymbolIsError(t *testing.T) {
	p := NewParser(nil)
	p.Parse(strings.NewReader("jmp i nowhere\n"))

	if err := p.Err(); err != nil {
		t.Fatalf("Parse: %s", err)
	}

	a := NewAssembler()

	if _, err := a.Assemble(p.Statements()); err == nil {
		t.Fatalf("expected an error for an undefined symbol")
	}
}

func TestAssembler_Org(t *testing.T) {
	obj, _ := assembleSrc(t, ".org 0x0400\nhlt\n")

	if _, ok := obj[0]; ok {
		t.Errorf("expected no segment at address 0")
	}

	got, ok := obj[0x0400]
	if !ok || len(got) != 2 {
		t.Fatalf("got %v ok=%v, want a 2-byte segment at 0x0400", got, ok)
	}
}

func TestAssembler_ByteDirective(t *testing.T) {
	obj, _ := assembleSrc(t, ".byte 1, 2, 3\n")

	got := obj[0]
	want := []vm.Byte{1, 2, 3}

	if len(got) != len(want) {
		t.Fatalf("got % x, want % x", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got % x, want % x", got, want)
		}
	}
}

func TestAssembler_ConstDirective(t *testing.T) {
	obj, a := assembleSrc(t, ".const width, 40\n.byte width\n")

	v, ok := a.Symbols().Const("width")
	if !ok || v != 40 {
		t.Fatalf("got width=%d ok=%v, want 40 true", v, ok)
	}

	if got := obj[0]; len(got) != 1 || got[0] != 40 {
		t.Fatalf("got % x, want [40]", got)
	}
}

func TestAssembler_LabelInByteIsError(t *testing.T) {
	p := NewParser(nil)
	p.Parse(strings.NewReader("target:\n.byte target\n"))

	if err := p.Err(); err != nil {
		t.Fatalf("Parse: %s", err)
	}

	a := NewAssembler()

	if _, err := a.Assemble(p.Statements()); err == nil {
		t.Fatalf("expected an error referencing a label in an 8-bit context")
	}
}

func TestAssembler_LabelConstCollision(t *testing.T) {
	p := NewParser(nil)
	p.Parse(strings.NewReader("width:\n.const width, 1\n"))

	if err := p.Err(); err != nil {
		t.Fatalf("Parse: %s", err)
	}

	a := NewAssembler()

	if _, err := a.Assemble(p.Statements()); err == nil {
		t.Fatalf("expected an error defining a constant with the same name as a label")
	}
}

func TestAssembler_HiLoOfLabel(t *testing.T) {
	src := "add ri r0, hi(target)\nadd ri r0, lo(target)\ntarget:\nhlt\n"

	obj, _ := assembleSrc(t, src)

	got := obj[0]

	// Each "add ri r0, ..." instruction is 3 bytes (2 header + 1 immediate byte); target sits
	// right after both, at address 6.
	if got[2] != 0 || got[5] != 6 {
		t.Fatalf("got hi=%d lo=%d, want hi=0 lo=6", got[2], got[5])
	}
}

func TestAssembler_BinaryExprInByte(t *testing.T) {
	obj, _ := assembleSrc(t, ".byte (2 * 3)\n")

	if got := obj[0]; len(got) != 1 || got[0] != 6 {
		t.Fatalf("got % x, want [6]", got)
	}
}

func TestAssembler_DivisionByZeroIsError(t *testing.T) {
	p := NewParser(nil)
	p.Parse(strings.NewReader(".byte (1 / 0)\n"))

	if err := p.Err(); err != nil {
		t.Fatalf("Parse: %s", err)
	}

	a := NewAssembler()

	if _, err := a.Assemble(p.Statements()); err == nil {
		t.Fatalf("expected a division-by-zero error")
	}
}

func TestAssembler_UnsupportedSignalIsError(t *testing.T) {
	p := NewParser(nil)
	p.Parse(strings.NewReader(".frobnicate 1\n"))

	if err := p.Err(); err != nil {
		t.Fatalf("Parse: %s", err)
	}

	a := NewAssembler()

	if _, err := a.Assemble(p.Statements()); err == nil {
		t.Fatalf("expected an error for an unsupported signal name")
	}
}
