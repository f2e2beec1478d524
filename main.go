// octovm is the command-line interface to the virtual machine and its assembler.
package main

import (
	"context"
	"os"

	"github.com/project-octo/octovm/internal/cli"
	"github.com/project-octo/octovm/internal/cli/cmd"
)

var (
	commands = []cli.Command{
		cmd.Demo(),
		cmd.Executor(),
		cmd.Assembler(),
	}
)

// Entry point.
func main() {
	result :=
		cli.New(context.Background()).
			WithLogger(os.Stderr).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			Execute(os.Args[1:])

	os.Exit(result)
}
