package monitor

// syscallSource handles CauseSyscall (sys, per §4.4.2): it implements the one syscall the default
// kernel knows, putc, and otherwise returns to the caller without effect. This is a design
// decision the spec leaves to the guest kernel — it only defines the trap mechanism, not a
// syscall ABI — so the convention is ours: r0 selects the call (0 = putc), r1:r2 is an absolute
// address and r3 the byte to store there, which is how a caller pokes a cell of Vram directly.
const syscallSource = `
dispatch_syscall:
	cmp ri r0, 0
	jnz i unknown_syscall

	mov mr r1, r3

unknown_syscall:
	jmp i resume
`
