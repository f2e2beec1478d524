/*
Package asm implements a two-pass assembler for the machine in [vm].

	LABEL:
		mov rr r0, r1
		add ri r0, 3
		jmp i LABEL

	.org 0x0400
	.const width, 40
	.byte 0x12, 'A', width

A source file is a sequence of statements: zero-, one-, or two-operand
instructions, `.`-prefixed directives (signals), labels, comments, and blank
lines. See [Grammar] for the full EBNF.

Assembly happens in two stages. A [Parser] tokenizes and parses a source
stream into a flat list of [Statement] values — no addresses are resolved at
this point; numeric expressions referring to labels or constants are kept as
an unevaluated [NumExpr] tree. An [Assembler] then walks that statement list
twice: once to learn every label's address (errors about undefined labels are
suppressed — label values default to zero since only their presence, not
their value, affects the next statement's size), and once to emit the actual
bytes, at which point every reference must resolve. The result is sparse
object code keyed by `.org` address, [vm.ObjectCode].

# Bugs

The grammar has a few rough edges inherited from the instruction set it
targets: an 8-bit immediate slot that names a label (rather than a constant)
is always a hard error, since a label is inherently a 16-bit address.
*/
package asm
