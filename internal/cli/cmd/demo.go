package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/project-octo/octovm/internal/asm"
	"github.com/project-octo/octovm/internal/cli"
	"github.com/project-octo/octovm/internal/log"
	"github.com/project-octo/octovm/internal/monitor"
	"github.com/project-octo/octovm/internal/tty"
	"github.com/project-octo/octovm/internal/vm"
)

// Demo is a demonstration command.
func Demo() cli.Command {
	return new(demo)
}

type demo struct {
	debug bool
	quiet bool
}

func (demo) Description() string {
	return "run demo program"
}

func (d demo) Usage(out io.Writer) error {
	var err error
	_, err = fmt.Fprintln(out, `
demo [ -debug | -quiet ]

Run a small demonstration program that pokes a greeting into the framebuffer through the putc
syscall, rendering it live if standard input is a terminal.`)

	return err
}

func (d *demo) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)

	fs.BoolVar(&d.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&d.quiet, "quiet", false, "enable quiet output, machine display only")

	return fs
}

// demoSource pokes "HI" into the top-left corner of Vram, one putc syscall per byte, then halts.
const demoSource = `
.org 0x3800
start:
	mov ri r0, 0
	mov ri r1, hi(0x2400)
	mov ri r2, lo(0x2400)
	mov ri r3, 72
	sys

	mov ri r2, lo(0x2401)
	mov ri r3, 73
	sys

	hlt
`

func (d demo) Run(ctx context.Context, args []string, out io.Writer, _ *log.Logger) int {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if d.quiet {
		log.LogLevel.Set(log.Error)
	}

	if d.debug {
		log.LogLevel.Set(log.Debug)
	}

	logger := log.NewFormattedLogger(os.Stdout)
	log.SetDefault(logger)
	log.DefaultLogger = func() *log.Logger {
		return logger
	}

	logger.Info("Assembling demo program")

	parser := asm.NewParser(logger)
	parser.Parse(strings.NewReader(demoSource))

	if err := parser.Err(); err != nil {
		logger.Error("error parsing demo program", "err", err)
		return 2
	}

	code, err := asm.NewAssembler().Assemble(parser.Statements())
	if err != nil {
		logger.Error("error assembling demo program", "err", err)
		return 2
	}

	logger.Info("Initializing machine")

	machine := vm.New(1, 256, 128,
		vm.WithLogger(logger),
		monitor.WithDefaultSystemImage(),
		vm.WithUserMode(),
		vm.WithEntryPoint(0x3800),
	)

	loader := vm.NewLoader(machine.Bus)

	if _, err := loader.Load(code); err != nil {
		logger.Error("error loading demo program", "err", err)
		return 2
	}

	ctx, console, cancelConsole := tty.ConsoleContext(ctx, machine.Bus.Keyboard, machine.Video)
	defer cancelConsole()

	if errors.Is(context.Cause(ctx), tty.ErrNoTTY) {
		logger.Warn("not a terminal, running without live display")
	} else {
		defer console.Restore()
	}

	logger.Info("Starting machine")

	err = machine.Run(ctx)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("Demo timeout")
	case err != nil:
		logger.Error(err.Error())
		return 2
	}

	logger.Info("Demo completed")

	return 0
}
