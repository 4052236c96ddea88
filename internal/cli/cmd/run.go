package cmd

import (
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

// Run is the command that compiles and executes one or more Poke source files (spec
// §4.10 "compile_program"), in order, sharing one VM and top-level environment across
// all of them -- a later file can reference a variable or function an earlier file
// declared, the same way a REPL session accumulates declarations.
func Run() cli.Command {
	return new(runner)
}

type runner struct {
	debug    bool
	require  string
	loadPath string
}

func (runner) Description() string {
	return "compile and run poke source files"
}

func (runner) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `run file.pk...

Compile and execute one or more source files against a shared VM.`)

	return err
}

func (r *runner) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.BoolVar(&r.debug, "debug", false, "enable debug logging")
	fs.StringVar(&r.require, "require", "", "comma-separated modules (spec §6.4 `load`) to run before the given files")
	fs.StringVar(&r.loadPath, "loadpath", os.Getenv("POKE_LOAD_PATH"), "colon-separated module search path for -require")

	return fs
}

func (r *runner) Run(ctx context.Context, args []string, out io.Writer, logger *log.Logger) int {
	if r.debug {
		log.LogLevel.Set(log.Debug)
	}

	if len(args) == 0 {
		fmt.Fprintln(out, "run: no source files given")
		return 1
	}

	rt := pvm.NewRuntime()
	ios := pvm.NewIOSpaceRegistry()
	vm := pvm.New(rt, ios, pvm.WithLogger(logger))
	c := compiler.New(rt, vm)

	for _, mod := range splitNonEmpty(r.require, ",") {
		if err := c.Require(ctx, r.loadPath, mod, false); err != nil {
			logger.Error("run: require", "module", mod, "err", err)
			return 1
		}
	}

	for _, fn := range args {
		src, err := os.ReadFile(fn)
		if err != nil {
			logger.Error("run: read file", "file", fn, "err", err)
			return 2
		}

		if err := c.Compile(ctx, fn, string(src)); err != nil {
			logger.Error("run: compile", "file", fn, "err", err)
			return 1
		}
	}

	return 0
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}

	var out []string
	for _, p := range strings.Split(s, sep) {
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
