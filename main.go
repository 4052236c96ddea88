// Command poke is the command-line interface to the poke virtual machine and compiler.
package main

import (
	"context"
	"os"

	"github.com/smoynes/poke/internal/cli"
	"github.com/smoynes/poke/internal/cli/cmd"
)

var (
	commands = []cli.Command{
		cmd.Run(),
		cmd.REPL(),
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
