package compiler_test

import (
	"context"
	"testing"

	"github.com/smoynes/poke/internal/compiler"
	"github.com/smoynes/poke/internal/log"
	"github.com/smoynes/poke/internal/pvm"
)

// These mirror the six concrete scenarios of spec §8 "Testable properties", each
// expressed in the subset of syntax internal/parser/grammar.go actually accepts (a
// catch clause binds its argument by name rather than guarding with "catch if", and a
// struct literal's type name is resolved against the top-level scope's registered
// Exception type rather than a free-standing declaration).

func newScenarioCompiler(t *testing.T) (*compiler.Compiler, *pvm.VM) {
	t.Helper()
	log.LogLevel.Set(log.Error)

	rt := pvm.NewRuntime()
	ios := pvm.NewIOSpaceRegistry()
	vm := pvm.New(rt, ios)

	return compiler.New(rt, vm), vm
}

func TestScenarioIntegerArithmetic(t *testing.T) {
	c, _ := newScenarioCompiler(t)

	v, err := c.CompileExpression(context.Background(), "<test>", "2 + 3 * 4")
	if err != nil {
		t.Fatalf("compile: %s", err)
	}

	if got, want := v.String(), "14L32"; got != want {
		t.Errorf("result = %s, want %s", got, want)
	}
}

func TestScenarioOffsetArithmetic(t *testing.T) {
	c, _ := newScenarioCompiler(t)

	v, err := c.CompileExpression(context.Background(), "<test>", "8#B + 4#b")
	if err != nil {
		t.Fatalf("compile: %s", err)
	}

	if _, ok := v.(*pvm.Offset); !ok {
		t.Fatalf("result kind = %T, want *pvm.Offset", v)
	}

	if got, want := v.String(), "68UL#1"; got != want {
		t.Errorf("result = %s, want %s", got, want)
	}
}

func TestScenarioArrayConstruction(t *testing.T) {
	c, _ := newScenarioCompiler(t)

	v, err := c.CompileExpression(context.Background(), "<test>", "int<8>[3] { 1, 2, 3 }")
	if err != nil {
		t.Fatalf("compile: %s", err)
	}

	a, ok := v.(*pvm.Array)
	if !ok {
		t.Fatalf("result kind = %T, want *pvm.Array", v)
	}

	if got, want := a.Len(), 3; got != want {
		t.Errorf("len = %d, want %d", got, want)
	}
}

func TestScenarioExceptionPropagation(t *testing.T) {
	c, _ := newScenarioCompiler(t)

	src := `
	var result = 0;
	try {
		raise Exception { code = 42, name = "x", exit_status = 1, location = "", msg = "" };
	} catch (e) {
		if (e.code == 42) {
			result = 0;
		} else {
			result = 1;
		}
	}
	`

	if err := c.Compile(context.Background(), "<test>", src); err != nil {
		t.Fatalf("compile: %s", err)
	}

	v, err := c.CompileExpression(context.Background(), "<test>", "result")
	if err != nil {
		t.Fatalf("compile result: %s", err)
	}

	if got, want := v.String(), "0L32"; got != want {
		t.Errorf("result = %s, want %s", got, want)
	}
}

func TestScenarioBitConcatAssignment(t *testing.T) {
	c, _ := newScenarioCompiler(t)

	src := `
	var a = 0UB;
	var b = 0UB;
	a:::b = 0x1234UH;
	`

	if err := c.Compile(context.Background(), "<test>", src); err != nil {
		t.Fatalf("compile: %s", err)
	}

	va, err := c.CompileExpression(context.Background(), "<test>", "a")
	if err != nil {
		t.Fatalf("compile a: %s", err)
	}
	vb, err := c.CompileExpression(context.Background(), "<test>", "b")
	if err != nil {
		t.Fatalf("compile b: %s", err)
	}

	if got, want := va.String(), "18UL8"; got != want {
		t.Errorf("a = %s, want %s (0x12)", got, want)
	}
	if got, want := vb.String(), "52UL8"; got != want {
		t.Errorf("b = %s, want %s (0x34)", got, want)
	}
}
