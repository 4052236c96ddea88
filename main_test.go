package main_test

import (
	"context"
	"testing"
	"time"

	"github.com/smoynes/poke/internal/compiler"
	"github.com/smoynes/poke/internal/log"
	"github.com/smoynes/poke/internal/pvm"
)

// timeout bounds how long a compiled program is given to run. Every case here is a
// handful of instructions, so reaching it means something hung.
const timeout = 1 * time.Second

func newCompiler(t *testing.T) (*compiler.Compiler, *pvm.VM) {
	t.Helper()

	log.LogLevel.Set(log.Error)

	rt := pvm.NewRuntime()
	ios := pvm.NewIOSpaceRegistry()
	vm := pvm.New(rt, ios)

	return compiler.New(rt, vm), vm
}

func TestMainExpression(t *testing.T) {
	c, vm := newCompiler(t)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	v, err := c.CompileExpression(ctx, "test", "2 + 3 * 4")
	if err != nil {
		t.Fatalf("compile expression: %s", err)
	}

	if got, want := v.String(), "14L32"; got != want {
		t.Errorf("result = %s, want %s", got, want)
	}

	if exc := vm.ExitException(); exc != nil {
		t.Errorf("unexpected exception: %s", exc)
	}
}

func TestMainStatementAccumulatesState(t *testing.T) {
	c, _ := newCompiler(t)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := c.CompileStatement(ctx, "test", "var x = 10;"); err != nil {
		t.Fatalf("compile statement: %s", err)
	}

	v, err := c.CompileExpression(ctx, "test", "x + 1")
	if err != nil {
		t.Fatalf("compile expression: %s", err)
	}

	if got, want := v.String(), "11L32"; got != want {
		t.Errorf("result = %s, want %s (x should persist across compiles)", got, want)
	}
}

func TestMainFailedCompileRollsBack(t *testing.T) {
	c, _ := newCompiler(t)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := c.CompileStatement(ctx, "test", "var y = 1;"); err != nil {
		t.Fatalf("compile statement: %s", err)
	}

	// A reference to an undeclared name fails resolve; y's declaration must
	// still be usable afterward, unaffected by the failed transaction.
	if _, err := c.CompileExpression(ctx, "test", "nope"); err == nil {
		t.Fatalf("expected resolve error for undeclared name")
	}

	v, err := c.CompileExpression(ctx, "test", "y")
	if err != nil {
		t.Fatalf("compile expression after failed compile: %s", err)
	}

	if got, want := v.String(), "1L32"; got != want {
		t.Errorf("result = %s, want %s", got, want)
	}
}
