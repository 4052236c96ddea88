package pvm

import (
	"context"
	"errors"
	"fmt"

	"github.com/smoynes/poke/internal/log"
)

// ErrHalted is used inside Run when the program's instruction stream is exhausted
// without an explicit `return` from the top-level frame -- the PVM equivalent of
// falling off the end of a routine. Run treats it as a normal stop and returns nil
// for it. It mirrors the teacher's ErrHalted sentinel for
// the LC-3's HALT trap.
var ErrHalted = errors.New("pvm: halted")

// ErrNoProgram is returned by Run when no Program has been loaded.
var ErrNoProgram = errors.New("pvm: no program loaded")

// VM is a single PVM instance: the main value stack, return stack, exception-handler
// stack, current environment, currently-executing program, IO-space registry,
// result/exit-exception slots, exit code and runtime knobs (spec §4.6 "State").
type VM struct {
	rt *Runtime

	main    []Value
	ret     []Value
	envs    []*Env // shadow stack of captured environments, mirroring call/return's
	       // "transfers control... with its captured environment made current".
	handlers []ExceptionHandler

	env     *Env
	program *Program
	pc      int

	ios *IOSpaceRegistry

	result        Value
	exitException Value
	exitCode      int

	knobs Knobs

	signaled bool // set by Interrupt; checked at instruction boundaries.

	profile *Profile

	log *log.Logger

	ops map[string]opFunc
}

// opFunc executes one instruction against the VM. It is the narrowed operation
// contract the teacher's per-stage operation interface collapses to for a stack
// machine: Decode happens implicitly (the Instruction's Params are already decoded at
// assembly time), so only Execute remains (spec §4.6a implementation note).
type opFunc func(vm *VM, insn Instruction) error

// New creates a VM bound to a Runtime and IO-space registry, with default knobs.
func New(rt *Runtime, ios *IOSpaceRegistry, opts ...OptionFn) *VM {
	vm := &VM{
		rt:    rt,
		ios:   ios,
		knobs: DefaultKnobs(),
		log:   log.DefaultLogger(),
	}

	vm.env = NewEnv(rt, 0)
	vm.ops = defaultOpTable()

	rt.gc.RegisterVMStack(func() []Value {
		snapshot := make([]Value, 0, len(vm.main)+len(vm.ret)+1)
		snapshot = append(snapshot, vm.main...)
		snapshot = append(snapshot, vm.ret...)
		if vm.env != nil {
			snapshot = append(snapshot, vm.env)
		}
		for _, h := range vm.handlers {
			if h.Env != nil {
				snapshot = append(snapshot, h.Env)
			}
		}
		return snapshot
	})

	for _, opt := range opts {
		opt(vm)
	}

	return vm
}

// OptionFn configures a VM at construction, following the teacher's functional-options
// pattern (internal/vm New(opts ...OptionFn)).
type OptionFn func(*VM)

// WithLogger overrides the VM's logger.
func WithLogger(logger *log.Logger) OptionFn {
	return func(vm *VM) { vm.log = logger }
}

// WithKnobs overrides the VM's initial runtime knobs.
func WithKnobs(k Knobs) OptionFn {
	return func(vm *VM) { vm.knobs = k }
}

// WithProfiling enables per-instruction profiling (spec §4.6 "Profiling").
func WithProfiling() OptionFn {
	return func(vm *VM) { vm.profile = NewProfile() }
}

// Knobs returns a pointer to the VM's runtime knobs so callers can mutate them live.
func (vm *VM) Knobs() *Knobs { return &vm.knobs }

// IOSpaces returns the VM's IO-space registry.
func (vm *VM) IOSpaces() *IOSpaceRegistry { return vm.ios }

// Runtime returns the VM's bound Runtime.
func (vm *VM) Runtime() *Runtime { return vm.rt }

// Load installs p as the currently-executing program, resetting the program counter.
func (vm *VM) Load(p *Program) {
	vm.program = p
	vm.pc = 0
}

// Push pushes a value onto the main stack.
func (vm *VM) Push(v Value) { vm.main = append(vm.main, v) }

// Pop pops and returns the top of the main stack.
func (vm *VM) Pop() (Value, error) {
	if len(vm.main) == 0 {
		return nil, fmt.Errorf("pvm: stack underflow")
	}
	v := vm.main[len(vm.main)-1]
	vm.main = vm.main[:len(vm.main)-1]
	return v, nil
}

// Top returns the top of the main stack without popping it.
func (vm *VM) Top() (Value, error) {
	if len(vm.main) == 0 {
		return nil, fmt.Errorf("pvm: stack underflow")
	}
	return vm.main[len(vm.main)-1], nil
}

// Depth returns the main stack's current depth.
func (vm *VM) Depth() int { return len(vm.main) }

// Env returns the VM's current environment.
func (vm *VM) Env() *Env { return vm.env }

// Interrupt marks the VM to raise E_signal at the next instruction boundary
// (spec §4.6 "Signals", §5 "Cancellation").
func (vm *VM) Interrupt() { vm.signaled = true }

// Result returns the value left in the VM's result slot after the top-level driver's
// Run (spec §4.6 "State": result-value slot).
func (vm *VM) Result() Value { return vm.result }

// ExitException returns the exception that terminated the last Run, if any.
func (vm *VM) ExitException() Value { return vm.exitException }

// ExitCode returns the exit code of the last Run: 0 (OK) or non-zero.
func (vm *VM) ExitCode() int { return vm.exitCode }

// Run executes the loaded program's instructions until it returns from the top-level
// frame, an unhandled exception terminates it, or ctx is done (spec §4.6 "Dispatch",
// §5 "Cancellation": SIGINT is cooperative and checked at instruction boundaries --
// here modeled as ctx.Done(), matching the teacher's internal/vm/exec.go Run loop
// shape).
func (vm *VM) Run(ctx context.Context) error {
	if vm.program == nil {
		return ErrNoProgram
	}

	vm.log.Debug("START", "pc", vm.pc)

	insns := vm.program.Instructions()

	for {
		select {
		case <-ctx.Done():
			vm.log.Debug("CANCELED")
			return ctx.Err()
		default:
		}

		if vm.signaled {
			vm.signaled = false
			if err := vm.raise(NewSignalException(vm.rt)); err != nil {
				return vm.finish(err)
			}
			continue
		}

		if vm.pc < 0 || vm.pc >= len(insns) {
			return vm.finish(ErrHalted)
		}

		insn := insns[vm.pc]

		fn, ok := vm.ops[insn.Name]
		if !ok {
			return vm.finish(fmt.Errorf("pvm: unknown instruction %q at pc=%d", insn.Name, vm.pc))
		}

		vm.log.Debug("EXEC", "pc", vm.pc, "op", insn.Name)

		if vm.profile != nil {
			vm.profile.Count(insn.Name)
		}

		startPC := vm.pc

		if err := fn(vm, insn); err != nil {
			var wrapped *excError
			if errors.As(err, &wrapped) {
				if herr := vm.raise(wrapped.exc); herr != nil {
					return vm.finish(herr)
				}
				continue
			}
			return vm.finish(err)
		}

		if vm.pc == startPC {
			vm.pc++
		}

		if vm.pc == haltPC {
			return vm.finish(nil)
		}
	}
}

// haltPC is the sentinel program counter the `return` instruction sets when returning
// from the outermost (top-level) frame, signaling Run to stop cleanly.
const haltPC = -1

func (vm *VM) finish(err error) error {
	vm.log.Debug("HALTED", "err", err)

	switch {
	case err == nil || errors.Is(err, ErrHalted):
		vm.exitCode = 0
		return nil
	default:
		return err
	}
}

// raise walks the handler stack looking for a match (spec §4.6 "Exceptions"). If
// found, it restores the handler's environment and transfers control to its target.
// If the stack empties, it sets the exit-exception slot and exit code and returns an
// error so Run terminates.
func (vm *VM) raise(exc *Struct) error {
	for len(vm.handlers) > 0 {
		h := vm.handlers[len(vm.handlers)-1]
		vm.handlers = vm.handlers[:len(vm.handlers)-1]

		code, _ := exc.FieldByName("code")
		raw, _, _, _ := IntegerBits(code)

		if h.Code < 0 || int32(raw) == h.Code {
			vm.env = h.Env
			vm.pc = h.Target
			vm.Push(exc)
			return nil
		}
	}

	vm.exitException = exc
	vm.exitCode = 1

	return fmt.Errorf("pvm: unhandled exception: %s", exc)
}

// Profile returns the VM's instruction profile, if profiling was enabled via
// WithProfiling.
func (vm *VM) Profile() *Profile { return vm.profile }
