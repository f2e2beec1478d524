/*
Package vm implements a virtual 8-bit-datapath, 16-bit-address machine with a region-based
protected memory bus.

# CPU

The CPU's datapath is eight bits wide: eight general-purpose registers (R0..R7), each holding a
single byte. Addresses and the two dedicated address registers, PC and SP, are sixteen bits,
formed where needed from a register pair. Four condition flags — carry, sign, zero, overflow — are
updated by arithmetic and compare instructions; logical operations and moves leave them alone. A
Mode (Kernel or User) and an Intent (Read, Write, or Execute) travel with every bus access and
drive the memory protection unit's decision.

# Memory

The address space is a flat 64 KiB divided into fixed regions: a bootloader, kernel code, a single
kernel trap vector, kernel data, heap, and stack, a shared video region, a memory-mapped I/O
window, and — repeated once per user task — a code/data/heap/video/stack quintet. Each region
carries a fixed read/write/execute permission triple; per-task regions are additionally gated by
the task id the kernel has selected as current. The bus resolves every address to its region
through a table built once at construction and enforces the resulting policy on every access; nothing
reaches RAM, a device, or another task's band without it agreeing.

# Traps

There is no interrupt-vector table and no separate exception table: every non-routine CPU exit —
a timer quota expiring, a halt from user code, a syscall, or one of three kinds of fault — carries
a single cause byte and is delivered the same way. Delivery switches the CPU to Kernel mode, saves
the return address on the kernel stack (switching to it first when the trap comes from User mode),
records the cause, and transfers control to the one
kernel trap vector. kret is the only way back: it restores the saved PC, drops back to User mode,
and resumes.

# Devices

The keyboard and mouse are polled through the MMIO region's fixed offsets rather than raising an
interrupt; the keyboard holds at most one pending keycode. A video controller mirrors a window of
the bus's shared Vram region into a framebuffer on demand — pixel packing and rendering are a
host concern, not part of this package's contract.
*/
package vm
