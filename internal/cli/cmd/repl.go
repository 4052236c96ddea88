package cmd

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/smoynes/poke/internal/cli"
	"github.com/smoynes/poke/internal/compiler"
	"github.com/smoynes/poke/internal/log"
	"github.com/smoynes/poke/internal/pvm"
)

// REPL is the interactive top-level driver (spec §4.10 "compile_statement" /
// "compile_expression"): it reads one line at a time from stdin and compiles it
// against a persistent VM and top-level environment, the way poke's own `poke`
// binary evaluates one line of terminal input per iteration.
func REPL() cli.Command {
	return new(repl)
}

type repl struct {
	debug bool
}

func (repl) Description() string {
	return "read-eval-print loop over stdin"
}

func (repl) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `repl

Read statements and expressions from stdin, one line at a time, and
evaluate them against a shared VM. A line ending in ';' is compiled as a
statement; anything else is compiled as an expression and its result is
printed.`)

	return err
}

func (r *repl) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	fs.BoolVar(&r.debug, "debug", false, "enable debug logging")

	return fs
}

func (r *repl) Run(ctx context.Context, args []string, out io.Writer, logger *log.Logger) int {
	if r.debug {
		log.LogLevel.Set(log.Debug)
	}

	rt := pvm.NewRuntime()
	ios := pvm.NewIOSpaceRegistry()
	vm := pvm.New(rt, ios, pvm.WithLogger(logger))
	c := compiler.New(rt, vm)

	scanner := bufio.NewScanner(os.Stdin)
	line := 0

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		filename := fmt.Sprintf("<stdin:%d>", line)

		if strings.HasSuffix(text, ";") {
			if err := c.CompileStatement(ctx, filename, text); err != nil {
				fmt.Fprintln(out, err)
			}
			continue
		}

		v, err := c.CompileExpression(ctx, filename, text)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		fmt.Fprintln(out, v.String())
	}

	if err := scanner.Err(); err != nil {
		logger.Error("repl: read stdin", "err", err)
		return 1
	}

	return 0
}
