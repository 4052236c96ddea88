package asm_test

import (
	"context"
	"testing"

	"github.com/smoynes/poke/internal/pvm"
	"github.com/smoynes/poke/internal/pvm/asm"
)

func run(t *testing.T, src string) *pvm.VM {
	t.Helper()

	rt := pvm.NewRuntime()
	prog, err := asm.Assemble(rt, src)
	if err != nil {
		t.Fatalf("assemble: %s", err)
	}
	if err := prog.MakeExecutable(); err != nil {
		t.Fatalf("make executable: %s", err)
	}

	vm := pvm.New(rt, pvm.NewIOSpaceRegistry())
	vm.Load(prog)
	if err := vm.Run(context.Background()); err != nil {
		t.Fatalf("run: %s", err)
	}

	return vm
}

func TestAssembleArithmetic(t *testing.T) {
	vm := run(t, `
		push int<32>42
		push int<32>1
		addi
		return
	`)

	if got, want := vm.Result().String(), "43L32"; got != want {
		t.Errorf("result = %s, want %s", got, want)
	}
}

func TestAssembleLoopAndLabels(t *testing.T) {
	// Counts a top-level variable up from 0, branching back to .top while it is
	// less than 5.
	vm := run(t, `
		push int<32>0
		regvar

	.top
		pushvar 0 0
		push int<32>5
		lti
		bzi .end
		pushvar 0 0
		push int<32>1
		addi
		popvar 0 0
		ba .top

	.end
		pushvar 0 0
		return
	`)

	if got, want := vm.Result().String(), "5L32"; got != want {
		t.Errorf("result = %s, want %s", got, want)
	}
}

func TestAssembleStringPush(t *testing.T) {
	vm := run(t, `push "hello, world"
return`)

	if got, want := vm.Result().String(), `"hello, world"`; got != want {
		t.Errorf("result = %s, want %s", got, want)
	}
}

func TestAssembleNull(t *testing.T) {
	vm := run(t, `push null
return`)

	if _, ok := vm.Result().(pvm.Null); !ok {
		t.Errorf("result kind = %T, want pvm.Null", vm.Result())
	}
}

func TestAssembleRejectsBadOperandArity(t *testing.T) {
	rt := pvm.NewRuntime()
	if _, err := asm.Assemble(rt, "pushvar 1"); err == nil {
		t.Fatalf("expected an arity error")
	}
}

func TestAssembleRejectsUnknownValueLiteral(t *testing.T) {
	rt := pvm.NewRuntime()
	if _, err := asm.Assemble(rt, "push bogus"); err == nil {
		t.Fatalf("expected a value literal error")
	}
}
