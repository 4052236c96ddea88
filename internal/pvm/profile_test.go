package pvm_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/smoynes/poke/internal/pvm"
)

func TestProfileCountsEachInstructionExecuted(t *testing.T) {
	rt := pvm.NewRuntime()
	prog := pvm.NewProgram(rt)
	prog.AppendPushInstruction(pvm.MakeIntegral(rt, 32, true, 41))
	prog.AppendPushInstruction(pvm.MakeIntegral(rt, 32, true, 1))
	prog.AppendInstruction("addi")
	prog.AppendInstruction("return")

	if err := prog.MakeExecutable(); err != nil {
		t.Fatalf("make executable: %s", err)
	}

	vm := pvm.New(rt, pvm.NewIOSpaceRegistry(), pvm.WithProfiling())
	vm.Load(prog)
	if err := vm.Run(context.Background()); err != nil {
		t.Fatalf("run: %s", err)
	}

	samples := vm.Profile().Samples()
	if got, want := samples["push"], int64(2); got != want {
		t.Errorf("push count = %d, want %d", got, want)
	}
	if got, want := samples["addi"], int64(1); got != want {
		t.Errorf("addi count = %d, want %d", got, want)
	}
	if got, want := samples["return"], int64(1); got != want {
		t.Errorf("return count = %d, want %d", got, want)
	}

	var buf bytes.Buffer
	if err := vm.Profile().PrintProfile(&buf); err != nil {
		t.Fatalf("print profile: %s", err)
	}
	if buf.Len() == 0 {
		t.Errorf("expected a non-empty pprof-encoded profile")
	}

	vm.Profile().ResetProfile()
	if got := len(vm.Profile().Samples()); got != 0 {
		t.Errorf("samples after reset = %d, want 0", got)
	}
}

func TestProfileDisabledByDefault(t *testing.T) {
	rt := pvm.NewRuntime()
	vm := pvm.New(rt, pvm.NewIOSpaceRegistry())

	if vm.Profile() != nil {
		t.Errorf("expected no profile without WithProfiling")
	}
}
