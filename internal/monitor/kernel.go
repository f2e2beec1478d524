package monitor

// kernelDataSource reserves the fixed kernel-data cells the CPU and the dispatcher both touch:
// CurrentTaskAddr, TrapCauseAddr, and SavedUserSPAddr are hardcoded addresses in internal/vm
// (regions.go), so this must place current_task, cause_cell, and saved_user_sp at
// 0x1200/0x1201/0x1202 exactly, with nothing in between. saved_user_sp isn't read by this source
// directly — deliverTrap and kret (internal/vm/exec.go, ops.go) stash and restore the interrupted
// task's SP there across a trap — but the cell must still be reserved here so saved_flags doesn't
// overlap it.
const kernelDataSource = `
.org 0x1200
current_task:
	.byte 0
cause_cell:
	.byte 0
saved_user_sp:
	.byte 0, 0
saved_flags:
	.byte 0, 0, 0, 0
`

// kernelEntrySource is the code at the trap vector (0x1000): it saves every register and the
// flags, loads the cause byte, and dispatches to the handler for it. resume is the shared
// epilogue that the timer path and the syscall handler jump to (halt and fault stop the machine
// instead): restore state and kret back to User mode.
//
// r7 carries the cause byte through the dispatch chain rather than r0, since r0 (and r1:r2, r3)
// are a syscall's argument registers and must still hold the caller's values when
// dispatch_syscall runs.
const kernelEntrySource = `
.org 0x1000
trap_entry:
	push r r0
	push r r1
	push r r2
	push r r3
	push r r4
	push r r5
	push r r6
	push r r7
	gfls i saved_flags

	mov rm r7, cause_cell

	cmp ri r7, 1
	jz i resume

	cmp ri r7, 3
	jz i dispatch_syscall

	cmp ri r7, 2
	jz i do_halt

	jmp i do_fault

resume:
	sfls i saved_flags
	pop r r7
	pop r r6
	pop r r5
	pop r r4
	pop r r3
	pop r r2
	pop r r1
	pop r r0
	kret
`
