package pvm

import "fmt"

// RegisterClass names which VM stack/slot a register parameter addresses (spec §6.5
// "register references %cN (class letter + id)").
type RegisterClass byte

const (
	RegStack RegisterClass = 'e' // main value stack, relative to top.
	RegEnv   RegisterClass = 'v' // environment slot.
)

// ParamKind distinguishes the operand kinds an Instruction's parameters may carry
// (spec §4.4 append_register_parameter / append_unsigned_literal_parameter /
// append_label_parameter).
type ParamKind uint8

const (
	ParamRegister ParamKind = iota
	ParamUnsigned
	ParamLabel
)

// Param is one operand of an Instruction.
type Param struct {
	Kind  ParamKind
	Class RegisterClass // valid when Kind == ParamRegister
	ID    int           // register id, or unsigned literal value
	Label string        // valid when Kind == ParamLabel
}

// Instruction is one opcode plus its operands, as appended to a Routine.
type Instruction struct {
	Name   string
	Params []Param
	Label  string // non-empty if a label targets this instruction.
}

// Routine is the abstract contract the VM requires of the host's code engine
// (spec §4.4): an append-only instruction sequence builder with a one-way transition
// to executable form. pvm.Program is the one concrete implementation this module
// supplies; spec §1 treats a true machine-code JIT's internals as out of scope, so
// Routine here is an in-process bytecode builder/interpreter target, not a compiler to
// native code.
type Routine interface {
	AppendInstructionName(name string)
	AppendRegisterParameter(class RegisterClass, id int)
	AppendUnsignedLiteralParameter(n int)
	AppendLabelParameter(label string)
	AppendLabel(label string)
	FreshLabel() string
	MakeExecutableIfNeeded() error
	Destroy()
}

// routine is the default Routine implementation backing Program.
type routine struct {
	instructions []Instruction
	labels       map[string]int // label -> instruction index.
	executable   bool
	nextLabel    int
}

// MakeRoutine creates a fresh, appendable Routine (spec §4.4 make_routine).
func MakeRoutine() Routine {
	return &routine{labels: make(map[string]int)}
}

var errRoutineExecutable = fmt.Errorf("pvm: routine is already executable")

func (r *routine) checkAppendable() {
	if r.executable {
		panic(errRoutineExecutable)
	}
}

func (r *routine) AppendInstructionName(name string) {
	r.checkAppendable()
	r.instructions = append(r.instructions, Instruction{Name: name})
}

func (r *routine) current() *Instruction {
	if len(r.instructions) == 0 {
		r.instructions = append(r.instructions, Instruction{})
	}
	return &r.instructions[len(r.instructions)-1]
}

func (r *routine) AppendRegisterParameter(class RegisterClass, id int) {
	r.checkAppendable()
	cur := r.current()
	cur.Params = append(cur.Params, Param{Kind: ParamRegister, Class: class, ID: id})
}

func (r *routine) AppendUnsignedLiteralParameter(n int) {
	r.checkAppendable()
	cur := r.current()
	cur.Params = append(cur.Params, Param{Kind: ParamUnsigned, ID: n})
}

func (r *routine) AppendLabelParameter(label string) {
	r.checkAppendable()
	cur := r.current()
	cur.Params = append(cur.Params, Param{Kind: ParamLabel, Label: label})
}

func (r *routine) AppendLabel(label string) {
	r.checkAppendable()
	r.labels[label] = len(r.instructions)
}

func (r *routine) FreshLabel() string {
	r.nextLabel++
	return fmt.Sprintf(".L%d", r.nextLabel)
}

func (r *routine) MakeExecutableIfNeeded() error {
	if r.executable {
		return nil
	}

	for i, insn := range r.instructions {
		for _, p := range insn.Params {
			if p.Kind != ParamLabel {
				continue
			}
			if _, ok := r.labels[p.Label]; !ok {
				return fmt.Errorf("pvm: undefined label %q at instruction %d", p.Label, i)
			}
		}
	}

	r.executable = true

	return nil
}

func (r *routine) Destroy() {
	r.instructions = nil
	r.labels = nil
}

// Program owns a Routine plus the insn_params table caching every boxed Value
// supplied as an instruction parameter (spec §4.5). Passing a boxed value to `push`
// compiles to an unsigned index into this table, since the host code engine only
// carries machine-word immediates.
type Program struct {
	gcHeader

	r      Routine
	params *InternalArray // insn_params
	rt     *Runtime
}

func (p *Program) Kind() Kind     { return KindProgram }
func (p *Program) String() string { return "program" }

// NewProgram creates an empty, appendable Program.
func NewProgram(rt *Runtime) *Program {
	p := &Program{r: MakeRoutine(), params: newInternalArray(rt), rt: rt}
	rt.gc.register(p)
	return p
}

// Routine exposes the underlying append-only builder for direct instruction emission
// (used by internal/compiler's gen pass and by internal/pvm/asm's textual assembler).
func (p *Program) Routine() Routine { return p.r }

// AppendValParameter dedupes v by pointer-equality into insn_params and emits an
// unsigned-literal parameter referencing its index (spec §4.5 append_val_parameter).
func (p *Program) AppendValParameter(v Value) {
	idx := p.params.indexOf(v)
	if idx < 0 {
		idx = p.params.append(v)
	}
	p.r.AppendUnsignedLiteralParameter(idx)
}

// AppendPushInstruction emits the `push` opcode and its operand-table index
// (spec §4.5 append_push_instruction: "separate function because push is not
// appendable via the generic name API due to a limitation of the code engine" — here
// that limitation is modeled faithfully even though Go has no such limitation, because
// it documents the asymmetry the compiler's gen pass (§4.9) relies on: every other
// instruction is emitted by name, `push` always carries a table index).
func (p *Program) AppendPushInstruction(v Value) {
	p.r.AppendInstructionName("push")
	p.AppendValParameter(v)
}

func (p *Program) FreshLabel() string                        { return p.r.FreshLabel() }
func (p *Program) AppendLabel(lbl string)                     { p.r.AppendLabel(lbl) }
func (p *Program) AppendLabelParameter(lbl string)            { p.r.AppendLabelParameter(lbl) }
func (p *Program) AppendRegisterParameter(c RegisterClass, id int) {
	p.r.AppendRegisterParameter(c, id)
}
func (p *Program) AppendUnsignedParameter(n int)  { p.r.AppendUnsignedLiteralParameter(n) }
func (p *Program) AppendInstruction(name string) { p.r.AppendInstructionName(name) }

// MakeExecutable is the one-way transition after which appending is forbidden and
// execution is permitted (spec §4.5 make_executable, §4.4 make_executable_if_needed).
func (p *Program) MakeExecutable() error { return p.r.MakeExecutableIfNeeded() }

// Param returns the idx-th boxed value from insn_params, used by the VM's `push`
// dispatch.
func (p *Program) Param(idx int) Value { return p.params.at(idx) }

// Instructions exposes the routine's instruction slice for the VM's dispatch loop and
// the disassembler/printer.
func (p *Program) Instructions() []Instruction {
	if r, ok := p.r.(*routine); ok {
		return r.instructions
	}
	return nil
}

// Label resolves a label to an instruction index.
func (p *Program) Label(name string) (int, bool) {
	r, ok := p.r.(*routine)
	if !ok {
		return 0, false
	}
	idx, ok := r.labels[name]
	return idx, ok
}
