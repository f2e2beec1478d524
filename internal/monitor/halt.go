package monitor

// haltSource handles CauseHalt: a user program's hlt trapped here, so the CPU is already in
// Kernel mode. Executing hlt again stops the machine for good, per §4.4.2's "in Kernel: set
// halted flag".
const haltSource = `
do_halt:
	hlt
`
