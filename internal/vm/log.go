package vm

import "github.com/project-octo/octovm/internal/log"

// LogValue lets a CPU be passed straight to a logging call (as log.Group("STATE", cpu) does in
// exec.go) and have slog resolve it into structured fields instead of a single opaque string.
func (cpu *CPU) LogValue() log.Value {
	return log.GroupValue(
		log.String("PC", cpu.PC.String()),
		log.String("SP", cpu.SP.String()),
		log.String("Mode", cpu.Mode.String()),
		log.String("Flags", cpu.Flags.String()),
		log.String("Reg", cpu.Reg.String()),
		log.Any("Halted", cpu.Halted),
		log.Any("Count", cpu.Count),
	)
}
