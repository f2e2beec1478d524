package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/project-octo/octovm/internal/asm"
	"github.com/project-octo/octovm/internal/cli"
	"github.com/project-octo/octovm/internal/encoding"
	"github.com/project-octo/octovm/internal/log"
)

// Assembler is the command that translates source code into object code.
//
//	octovm asm -o a.hex FILE.asm
func Assembler() cli.Command {
	return new(assembler)
}

type assembler struct {
	debug  bool
	output string
}

func (assembler) Description() string {
	return "assemble source code into object code"
}

func (assembler) Usage(out io.Writer) error {
	var err error
	_, err = fmt.Fprintln(out, `asm [-o file.hex] file.asm

Assemble source into object code.`)

	return err
}

func (a *assembler) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("asm", flag.ExitOnError)
	fs.BoolVar(&a.debug, "debug", false, "enable debug logging")
	fs.StringVar(&a.output, "o", "a.hex", "output `filename`")

	return fs
}

// Run parses every source file into one statement list, assembles it in two passes, and writes
// the result as an Intel-Hex-style file.
func (a *assembler) Run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	if a.debug {
		log.LogLevel.Set(log.Debug)
	}

	parser := asm.NewParser(logger)

	for i := range args {
		fn := args[i]

		f, err := os.Open(fn)
		if err != nil {
			logger.Error("open failed", "file", fn, "err", err)
			return 1
		}

		parser.Parse(f)
		f.Close()
	}

	if err := parser.Err(); err != nil {
		logger.Error("parse error", "err", err)
		return 1
	}

	logger.Debug("parsed source", "statements", len(parser.Statements()))

	asmblr := asm.NewAssembler()

	obj, err := asmblr.Assemble(parser.Statements())
	if err != nil {
		logger.Error("assemble error", "err", err)
		return 1
	}

	out, err := os.Create(a.output)
	if err != nil {
		logger.Error("open failed", "out", a.output, "err", err)
		return 1
	}
	defer out.Close()

	enc := encoding.HexEncoding{Code: obj}

	text, err := enc.MarshalText()
	if err != nil {
		logger.Error("encode error", "out", a.output, "err", err)
		return 1
	}

	wrote, err := out.Write(text)
	if err != nil {
		logger.Error("I/O error", "out", a.output, "err", err)
		return 1
	}

	logger.Debug("wrote object", "out", a.output, "bytes", wrote)

	return 0
}
