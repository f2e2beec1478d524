package vm

import (
	"errors"
	"fmt"
)

// Cause is the byte written to the trap-cause cell in KernelData when a CPUExit is delivered.
type Cause uint8

const (
	CauseNone               Cause = 0
	CauseTimer              Cause = 1
	CauseHalt               Cause = 2
	CauseSyscall            Cause = 3
	CauseIllegalInstruction Cause = 4
	CauseIllegalMemAccess   Cause = 5
	CauseUnknownAction      Cause = 6
)

// CPUExit is raised within Step (by decode, execute, or the quota check) and handed to
// deliverTrap, to signal that control must transfer to the kernel trap vector
// (or, for Halt in Kernel mode, that the machine should stop). A nil CPUExit means the
// instruction completed normally.
type CPUExit interface {
	error
	Cause() Cause
}

// simpleExit is a CPUExit carrying no additional data: Timer, Halt, or Syscall.
type simpleExit Cause

func (e simpleExit) Cause() Cause { return Cause(e) }

func (e simpleExit) Error() string {
	switch Cause(e) {
	case CauseTimer:
		return "timer: instruction quota exhausted"
	case CauseHalt:
		return "halt"
	case CauseSyscall:
		return "syscall"
	default:
		return fmt.Sprintf("exit(%d)", uint8(e))
	}
}

var (
	ExitTimer   CPUExit = simpleExit(CauseTimer)
	ExitHalt    CPUExit = simpleExit(CauseHalt)
	ExitSyscall CPUExit = simpleExit(CauseSyscall)
)

// Fault is a CPUExit raised by a program error: an illegal instruction, an illegal memory
// access, or an unknown/undefined action such as division by zero.
type Fault struct {
	cause Cause
	err   error
}

func (f *Fault) Cause() Cause { return f.cause }

func (f *Fault) Error() string {
	if f.err != nil {
		return fmt.Sprintf("fault(%d): %s", f.cause, f.err)
	}

	return fmt.Sprintf("fault(%d)", f.cause)
}

func (f *Fault) Unwrap() error { return f.err }

func (f *Fault) Is(target error) bool {
	return target == ErrFault
}

// ErrFault is the sentinel every *Fault wraps, for errors.Is callers that don't care which kind.
var ErrFault = errors.New("cpu fault")

func illegalInstruction(err error) *Fault {
	return &Fault{cause: CauseIllegalInstruction, err: err}
}

func illegalMemAccess(err error) *Fault {
	return &Fault{cause: CauseIllegalMemAccess, err: err}
}

func unknownAction(err error) *Fault {
	return &Fault{cause: CauseUnknownAction, err: err}
}

// ErrIllegalInstruction is wrapped by Faults raised from decode (unprivileged use of a
// kernel-only opcode, or an opcode outside the defined space).
var ErrIllegalInstruction = errors.New("illegal instruction")

// ErrDivideByZero is wrapped by the Fault raised from div/mod with a zero divisor.
var ErrDivideByZero = errors.New("divide by zero")
