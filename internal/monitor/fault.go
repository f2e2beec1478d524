package monitor

// faultSource handles the three program-error causes (IllegalInstruction, IllegalMemAccess,
// UnknownAction): it writes the cause byte into the first cell of Vram as a crude diagnostic
// marker — "writes to the framebuffer" is one of the two behaviours the design note allows — and
// halts. A fuller kernel could kill and reschedule just the faulting task instead; this one
// doesn't track enough per-task state to do that safely, so it stops the machine.
const faultSource = `
do_fault:
	mov mr 0x2400, r7
	hlt
`
