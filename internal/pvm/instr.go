package pvm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// defaultOpTable builds the VM's opcode dispatch table (spec §4.6 "Instruction set"),
// grounded on the teacher's internal/vm/ops.go per-opcode struct registry, narrowed
// (per SPEC_FULL §4.6a) to a name -> opFunc map since the stack machine needs only
// Decode-is-implicit/Execute, not the LC-3 CPU's five-stage pipeline.
func defaultOpTable() map[string]opFunc {
	ops := map[string]opFunc{
		// --- Stack (spec §4.6 "Stack") ---
		"push":   opPush,
		"drop":   opDrop,
		"swap":   opSwap,
		"nip":    opNip,
		"dup":    opDup,
		"over":   opOver,
		"oover":  opOOver,
		"rot":    opRot,
		"nrot":   opNRot,
		"tuck":   opTuck,
		"quake":  opQuake,
		"revn":   opRevn,

		// --- Return stack (spec §4.6 "Return-stack") ---
		"tor":      opToR,
		"fromr":    opFromR,
		"atr":      opAtR,
		"saver":    opSaveR,
		"restorer": opRestoreR,

		// --- Control (spec §4.6 "Control") ---
		"bzi":    opBzi,
		"bnzi":   opBnzi,
		"ba":     opBa,
		"call":   opCall,
		"return": opReturn,
		"mkclos": opMkclos,

		// --- Exception (spec §4.6 "Exception") ---
		"raise": opRaise,
		"pushe": opPushe,
		"pope":  opPope,

		// --- Env (spec §4.6 "Env") ---
		"push-env": opPushEnv,
		"pop-env":  opPopEnv,
		"pushvar":  opPushVar,
		"popvar":   opPopVar,
		"regvar":   opRegVar,

		// --- Arrays (spec §4.6 "Arrays") ---
		"mka":   opMka,
		"sel":   opSel,
		"siz":   opSiz,
		"aref":  opAref,
		"arefo": opArefo,
		"ains":  opAins,
		"aset":  opAset,

		// --- Structs (spec §4.6 "Structs") ---
		"mksct":   opMksct,
		"sref":    opSref,
		"sset":    opSset,
		"nfields": opNfields,

		// --- Types (spec §4.6 "Types") ---
		"typof": opTypof,
		"mkit":  opMkit,
		"mkat":  opMkat,
		"mkst":  opMkstInstr,

		// --- Offsets (spec §4.6 "Offsets") ---
		"mkoq":  opMkoq,
		"ogetm": opOgetm,
		"ogetu": opOgetu,

		// --- Mapping / IO-linked (spec §4.6 "I/O-linked") ---
		"mgetios": opMgetios,
		"mseto":   opMseto,
		"mgeto":   opMgeto,
		"write":   opWrite,
		"mapv":    opMapv,

		// --- Macros (spec §4.6 "Macros") ---
		"addo": opAddo,
		"subo": opSubo,
		"aconc": opAconc,
		"eqa":   opEqa,
	}

	for name, fn := range arithmeticOps() {
		ops[name] = fn
	}

	return ops
}

// --- stack manipulation -----------------------------------------------------------

func opPush(vm *VM, insn Instruction) error {
	if len(insn.Params) != 1 {
		return fmt.Errorf("pvm: push: bad operand")
	}
	vm.Push(vm.program.Param(insn.Params[0].ID))
	return nil
}

func opDrop(vm *VM, insn Instruction) error {
	_, err := vm.Pop()
	return err
}

func opSwap(vm *VM, insn Instruction) error {
	n := len(vm.main)
	if n < 2 {
		return fmt.Errorf("pvm: swap: stack underflow")
	}
	vm.main[n-1], vm.main[n-2] = vm.main[n-2], vm.main[n-1]
	return nil
}

func opNip(vm *VM, insn Instruction) error {
	n := len(vm.main)
	if n < 2 {
		return fmt.Errorf("pvm: nip: stack underflow")
	}
	vm.main[n-2] = vm.main[n-1]
	vm.main = vm.main[:n-1]
	return nil
}

func opDup(vm *VM, insn Instruction) error {
	top, err := vm.Top()
	if err != nil {
		return err
	}
	vm.Push(top)
	return nil
}

func opOver(vm *VM, insn Instruction) error {
	n := len(vm.main)
	if n < 2 {
		return fmt.Errorf("pvm: over: stack underflow")
	}
	vm.Push(vm.main[n-2])
	return nil
}

func opOOver(vm *VM, insn Instruction) error {
	n := len(vm.main)
	if n < 3 {
		return fmt.Errorf("pvm: oover: stack underflow")
	}
	vm.Push(vm.main[n-3])
	return nil
}

func opRot(vm *VM, insn Instruction) error {
	n := len(vm.main)
	if n < 3 {
		return fmt.Errorf("pvm: rot: stack underflow")
	}
	a, b, c := vm.main[n-3], vm.main[n-2], vm.main[n-1]
	vm.main[n-3], vm.main[n-2], vm.main[n-1] = b, c, a
	return nil
}

func opNRot(vm *VM, insn Instruction) error {
	n := len(vm.main)
	if n < 3 {
		return fmt.Errorf("pvm: nrot: stack underflow")
	}
	a, b, c := vm.main[n-3], vm.main[n-2], vm.main[n-1]
	vm.main[n-3], vm.main[n-2], vm.main[n-1] = c, a, b
	return nil
}

func opTuck(vm *VM, insn Instruction) error {
	n := len(vm.main)
	if n < 2 {
		return fmt.Errorf("pvm: tuck: stack underflow")
	}
	top := vm.main[n-1]
	vm.main = append(vm.main[:n-1], top, vm.main[n-2], top)
	return nil
}

func opQuake(vm *VM, insn Instruction) error {
	n := len(vm.main)
	if n < 3 {
		return fmt.Errorf("pvm: quake: stack underflow")
	}
	vm.main[n-2], vm.main[n-3] = vm.main[n-3], vm.main[n-2]
	return nil
}

func opRevn(vm *VM, insn Instruction) error {
	v, err := vm.Pop()
	if err != nil {
		return err
	}
	raw, _, _, ok := IntegerBits(v)
	if !ok {
		return fmt.Errorf("pvm: revn: operand must be integral")
	}
	n := int(raw)
	if n < 0 || n > len(vm.main) {
		return fmt.Errorf("pvm: revn: out of range")
	}
	s := vm.main[len(vm.main)-n:]
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return nil
}

// --- return stack -------------------------------------------------------------------

func opToR(vm *VM, insn Instruction) error {
	v, err := vm.Pop()
	if err != nil {
		return err
	}
	vm.ret = append(vm.ret, v)
	return nil
}

func opFromR(vm *VM, insn Instruction) error {
	if len(vm.ret) == 0 {
		return fmt.Errorf("pvm: fromr: return stack underflow")
	}
	v := vm.ret[len(vm.ret)-1]
	vm.ret = vm.ret[:len(vm.ret)-1]
	vm.Push(v)
	return nil
}

func opAtR(vm *VM, insn Instruction) error {
	if len(vm.ret) == 0 {
		return fmt.Errorf("pvm: atr: return stack underflow")
	}
	vm.Push(vm.ret[len(vm.ret)-1])
	return nil
}

func opSaveR(vm *VM, insn Instruction) error {
	vm.ret = append(vm.ret, MakeIntegral(vm.rt, 64, false, uint64(vm.pc)))
	return nil
}

func opRestoreR(vm *VM, insn Instruction) error {
	if len(vm.ret) == 0 {
		return fmt.Errorf("pvm: restorer: return stack underflow")
	}
	v := vm.ret[len(vm.ret)-1]
	vm.ret = vm.ret[:len(vm.ret)-1]
	raw, _, _, _ := IntegerBits(v)
	vm.pc = int(raw)
	return nil
}

// --- control --------------------------------------------------------------------

func label(insn Instruction) (string, error) {
	for _, p := range insn.Params {
		if p.Kind == ParamLabel {
			return p.Label, nil
		}
	}
	return "", fmt.Errorf("pvm: missing label operand")
}

func opBzi(vm *VM, insn Instruction) error {
	v, err := vm.Pop()
	if err != nil {
		return err
	}
	raw, _, _, _ := IntegerBits(v)
	if int32(raw) == 0 {
		return branchTo(vm, insn)
	}
	return nil
}

func opBnzi(vm *VM, insn Instruction) error {
	v, err := vm.Pop()
	if err != nil {
		return err
	}
	raw, _, _, _ := IntegerBits(v)
	if int32(raw) != 0 {
		return branchTo(vm, insn)
	}
	return nil
}

func opBa(vm *VM, insn Instruction) error { return branchTo(vm, insn) }

func branchTo(vm *VM, insn Instruction) error {
	lbl, err := label(insn)
	if err != nil {
		return err
	}
	idx, ok := vm.program.Label(lbl)
	if !ok {
		return fmt.Errorf("pvm: undefined label %q", lbl)
	}
	vm.pc = idx
	return nil
}

// opCall pops a Closure and transfers control to its entry point with its captured
// environment made current, pushing a return frame (spec §4.6 "Dispatch": "re-entrant
// through call of a Closure, which pushes a return frame and transfers control").
func opCall(vm *VM, insn Instruction) error {
	v, err := vm.Pop()
	if err != nil {
		return err
	}

	c, ok := v.(*Closure)
	if !ok {
		return fmt.Errorf("pvm: call: operand is not a closure")
	}

	vm.ret = append(vm.ret, MakeIntegral(vm.rt, 64, false, uint64(vm.pc+1)))
	vm.envs = append(vm.envs, vm.env)

	vm.env = c.env
	vm.pc = c.entry

	return nil
}

// opReturn pops the return address pushed by call and resumes there; if the return
// stack (and captured-environment shadow stack) is empty, this is a return from the
// top-level frame and Run should stop (spec §4.10 "execute-or-return-program").
func opReturn(vm *VM, insn Instruction) error {
	if len(vm.ret) == 0 {
		v, err := vm.Top()
		if err == nil {
			vm.result = v
		}
		vm.pc = haltPC
		return nil
	}

	addr := vm.ret[len(vm.ret)-1]
	vm.ret = vm.ret[:len(vm.ret)-1]

	vm.env = vm.envs[len(vm.envs)-1]
	vm.envs = vm.envs[:len(vm.envs)-1]

	raw, _, _, _ := IntegerBits(addr)
	vm.pc = int(raw)

	return nil
}

// opMkclos constructs a Closure over the program's own code, capturing vm.env as the
// closure's lexical environment at the point mkclos executes (spec §3.1, GLOSSARY
// "Closure": "a function entry point plus its captured lexical environment"). The
// compiler's gen pass (internal/compiler/gen.go) cannot build this Closure value as an
// ordinary push-table literal the way it does integers or strings, because the
// captured environment only exists at run time and differs with every activation of
// the enclosing scope; mkclos is the one instruction whose operand set (an entry label
// plus a popped name) defers that capture to the moment it actually executes.
func opMkclos(vm *VM, insn Instruction) error {
	lbl, err := label(insn)
	if err != nil {
		return err
	}
	idx, ok := vm.program.Label(lbl)
	if !ok {
		return fmt.Errorf("pvm: mkclos: undefined label %q", lbl)
	}

	nameV, err := vm.Pop()
	if err != nil {
		return err
	}
	name := ""
	if s, ok := nameV.(*String); ok {
		name = s.GoString()
	}

	vm.Push(NewClosure(vm.rt, vm.program, idx, vm.env, name))

	return nil
}

// --- exception ------------------------------------------------------------------

func opRaise(vm *VM, insn Instruction) error {
	v, err := vm.Pop()
	if err != nil {
		return err
	}
	exc, ok := v.(*Struct)
	if !ok || !TypeIsException(exc.styp) {
		return fmt.Errorf("pvm: raise: operand is not an Exception")
	}
	return raiseErr(exc)
}

func opPushe(vm *VM, insn Instruction) error {
	lbl, err := label(insn)
	if err != nil {
		return err
	}
	idx, ok := vm.program.Label(lbl)
	if !ok {
		return fmt.Errorf("pvm: pushe: undefined label %q", lbl)
	}

	code := int32(-1)
	for _, p := range insn.Params {
		if p.Kind == ParamUnsigned {
			code = int32(p.ID)
		}
	}

	vm.handlers = append(vm.handlers, ExceptionHandler{Target: idx, Env: vm.env, Code: code})

	return nil
}

func opPope(vm *VM, insn Instruction) error {
	if len(vm.handlers) == 0 {
		return fmt.Errorf("pvm: pope: handler stack underflow")
	}
	vm.handlers = vm.handlers[:len(vm.handlers)-1]
	return nil
}

// --- environment ------------------------------------------------------------------

func opPushEnv(vm *VM, insn Instruction) error {
	hint := 0
	if len(insn.Params) == 1 {
		hint = insn.Params[0].ID
	}
	vm.env = PushEnv(vm.rt, vm.env, hint)
	return nil
}

func opPopEnv(vm *VM, insn Instruction) error {
	if vm.env.TopLevelP() {
		return fmt.Errorf("pvm: pop-env: already at top-level")
	}
	e := &Env{frame: PopFrame(vm.env.frame)}
	vm.rt.gc.register(e)
	vm.env = e
	return nil
}

func opPushVar(vm *VM, insn Instruction) error {
	if len(insn.Params) != 2 {
		return fmt.Errorf("pvm: pushvar: bad operands")
	}
	back, over := insn.Params[0].ID, insn.Params[1].ID
	v, ok := vm.env.Lookup(back, over)
	if !ok {
		return fmt.Errorf("pvm: pushvar: no such variable (%d,%d)", back, over)
	}
	vm.Push(v)
	return nil
}

func opPopVar(vm *VM, insn Instruction) error {
	if len(insn.Params) != 2 {
		return fmt.Errorf("pvm: popvar: bad operands")
	}
	back, over := insn.Params[0].ID, insn.Params[1].ID
	v, err := vm.Pop()
	if err != nil {
		return err
	}
	if !vm.env.Set(back, over, v) {
		return fmt.Errorf("pvm: popvar: no such variable (%d,%d)", back, over)
	}
	return nil
}

func opRegVar(vm *VM, insn Instruction) error {
	v, err := vm.Pop()
	if err != nil {
		return err
	}
	vm.env.Register(v)
	return nil
}

// --- arrays -------------------------------------------------------------------------

func opMka(vm *VM, insn Instruction) error {
	lenV, err := vm.Pop()
	if err != nil {
		return err
	}
	etypeV, err := vm.Pop()
	if err != nil {
		return err
	}
	etype, ok := etypeV.(*Type)
	if !ok {
		return fmt.Errorf("pvm: mka: expected a type operand")
	}

	n := int(asULong(lenV))
	a := NewArray(vm.rt, etype, 0)

	var offset uint64
	for i := 0; i < n; i++ {
		v, err := vm.Pop()
		if err != nil {
			return err
		}
		sz := asULong(SizeOf(vm.rt, v))
		a.elems = append([]arrayElem{{value: v, offset: offset}}, a.elems...)
		offset += sz
	}

	vm.Push(a)

	return nil
}

func opSel(vm *VM, insn Instruction) error {
	v, err := vm.Top()
	if err != nil {
		return err
	}
	vm.Push(SizeOf(vm.rt, v))
	return nil
}

func opSiz(vm *VM, insn Instruction) error {
	v, err := vm.Top()
	if err != nil {
		return err
	}
	vm.Push(MakeIntegral(vm.rt, 64, false, Elemsof(v)))
	return nil
}

func opAref(vm *VM, insn Instruction) error {
	idxV, err := vm.Pop()
	if err != nil {
		return err
	}
	arrV, err := vm.Pop()
	if err != nil {
		return err
	}
	a, ok := arrV.(*Array)
	if !ok {
		return fmt.Errorf("pvm: aref: operand is not an array")
	}
	vm.Push(a.At(int(asULong(idxV))))
	return nil
}

func opArefo(vm *VM, insn Instruction) error {
	idxV, err := vm.Pop()
	if err != nil {
		return err
	}
	arrV, err := vm.Pop()
	if err != nil {
		return err
	}
	a, ok := arrV.(*Array)
	if !ok {
		return fmt.Errorf("pvm: arefo: operand is not an array")
	}
	i := int(asULong(idxV))
	if i < 0 || i >= len(a.elems) {
		return raiseErr(NewException(vm.rt, EOutOfBounds, "E_out_of_bounds", 1, "", "array index out of bounds"))
	}
	vm.Push(MakeIntegral(vm.rt, 64, false, a.elems[i].offset))
	return nil
}

func opAins(vm *VM, insn Instruction) error {
	val, err := vm.Pop()
	if err != nil {
		return err
	}
	idxV, err := vm.Pop()
	if err != nil {
		return err
	}
	arrV, err := vm.Pop()
	if err != nil {
		return err
	}
	a, ok := arrV.(*Array)
	if !ok {
		return fmt.Errorf("pvm: ains: operand is not an array")
	}
	if err := a.Insert(int(asULong(idxV)), val); err != nil {
		return raiseErr(NewException(vm.rt, EOutOfBounds, "E_out_of_bounds", 1, "", err.Error()))
	}
	vm.Push(a)
	return nil
}

func opAset(vm *VM, insn Instruction) error {
	val, err := vm.Pop()
	if err != nil {
		return err
	}
	idxV, err := vm.Pop()
	if err != nil {
		return err
	}
	arrV, err := vm.Pop()
	if err != nil {
		return err
	}
	a, ok := arrV.(*Array)
	if !ok {
		return fmt.Errorf("pvm: aset: operand is not an array")
	}
	if !a.Set(int(asULong(idxV)), val) {
		return raiseErr(NewException(vm.rt, EOutOfBounds, "E_out_of_bounds", 1, "", "array index out of bounds"))
	}
	vm.Push(a)
	return nil
}

// --- structs -------------------------------------------------------------------------

func opMksct(vm *VM, insn Instruction) error {
	nfV, err := vm.Pop()
	if err != nil {
		return err
	}
	typV, err := vm.Pop()
	if err != nil {
		return err
	}
	styp, ok := typV.(*Type)
	if !ok {
		return fmt.Errorf("pvm: mksct: expected a type operand")
	}

	n := int(asULong(nfV))
	names := make([]string, n)
	values := make([]Value, n)

	for i := n - 1; i >= 0; i-- {
		val, err := vm.Pop()
		if err != nil {
			return err
		}
		nameV, err := vm.Pop()
		if err != nil {
			return err
		}
		if s, ok := nameV.(*String); ok {
			names[i] = s.GoString()
		}
		values[i] = val
	}

	vm.Push(NewStruct(vm.rt, styp, names, values, nil))

	return nil
}

func opSref(vm *VM, insn Instruction) error {
	nameV, err := vm.Pop()
	if err != nil {
		return err
	}
	sV, err := vm.Pop()
	if err != nil {
		return err
	}
	s, ok := sV.(*Struct)
	if !ok {
		return fmt.Errorf("pvm: sref: operand is not a struct")
	}
	name, _ := nameV.(*String)
	v, present := s.FieldByName(name.GoString())
	if !present {
		return raiseErr(NewException(vm.rt, EElem, "E_elem", 1, "", "no such field: "+name.GoString()))
	}
	vm.Push(v)
	return nil
}

func opSset(vm *VM, insn Instruction) error {
	val, err := vm.Pop()
	if err != nil {
		return err
	}
	nameV, err := vm.Pop()
	if err != nil {
		return err
	}
	sV, err := vm.Pop()
	if err != nil {
		return err
	}
	s, ok := sV.(*Struct)
	if !ok {
		return fmt.Errorf("pvm: sset: operand is not a struct")
	}
	name, _ := nameV.(*String)
	if !s.SetFieldByName(name.GoString(), val) {
		return raiseErr(NewException(vm.rt, EElem, "E_elem", 1, "", "no such field: "+name.GoString()))
	}
	vm.Push(s)
	return nil
}

func opNfields(vm *VM, insn Instruction) error {
	v, err := vm.Top()
	if err != nil {
		return err
	}
	s, ok := v.(*Struct)
	if !ok {
		return fmt.Errorf("pvm: nfields: operand is not a struct")
	}
	vm.Push(s.NFields(vm.rt))
	return nil
}

// --- types --------------------------------------------------------------------------

func opTypof(vm *VM, insn Instruction) error {
	v, err := vm.Pop()
	if err != nil {
		return err
	}

	var t *Type

	switch vv := v.(type) {
	case Int:
		t = vm.rt.IntegralType(vv.size, true)
	case UInt:
		t = vm.rt.IntegralType(vv.size, false)
	case *Long:
		t = vm.rt.IntegralType(vv.size, true)
	case *ULong:
		t = vm.rt.IntegralType(vv.size, false)
	case *String:
		t = vm.rt.StringType()
	case *Array:
		t = NewArrayType(vm.rt, vv.etype, vv.bound)
	case *Struct:
		t = vv.styp
	case *Offset:
		raw, size, signed, _ := IntegerBits(vv.magnitude)
		_ = raw
		t = NewOffsetType(vm.rt, vm.rt.IntegralType(size, signed), vv.unit)
	case *Closure:
		t = NewFunctionType(vm.rt, vm.rt.VoidType(), nil)
	default:
		t = vm.rt.VoidType()
	}

	vm.Push(t)

	return nil
}

func opMkit(vm *VM, insn Instruction) error {
	sizeV, err := vm.Pop()
	if err != nil {
		return err
	}
	signedV, err := vm.Pop()
	if err != nil {
		return err
	}
	size := uint8(asULong(sizeV))
	signed := asULong(signedV) != 0
	vm.Push(vm.rt.IntegralType(size, signed))
	return nil
}

func opMkat(vm *VM, insn Instruction) error {
	boundV, err := vm.Pop()
	if err != nil {
		return err
	}
	etV, err := vm.Pop()
	if err != nil {
		return err
	}
	et, ok := etV.(*Type)
	if !ok {
		return fmt.Errorf("pvm: mkat: expected a type operand")
	}
	var bound Value
	if ValueKind(boundV) != KindNull {
		bound = boundV
	}
	vm.Push(NewArrayType(vm.rt, et, bound))
	return nil
}

func opMkstInstr(vm *VM, insn Instruction) error {
	nameV, err := vm.Pop()
	if err != nil {
		return err
	}
	name := ""
	if s, ok := nameV.(*String); ok {
		name = s.GoString()
	}
	vm.Push(NewStructType(vm.rt, name, nil, false, false))
	return nil
}

// --- offsets --------------------------------------------------------------------------

func opMkoq(vm *VM, insn Instruction) error {
	unitV, err := vm.Pop()
	if err != nil {
		return err
	}
	magV, err := vm.Pop()
	if err != nil {
		return err
	}
	vm.Push(NewOffset(vm.rt, magV, asULong(unitV)))
	return nil
}

func opOgetm(vm *VM, insn Instruction) error {
	v, err := vm.Pop()
	if err != nil {
		return err
	}
	o, ok := v.(*Offset)
	if !ok {
		return fmt.Errorf("pvm: ogetm: operand is not an offset")
	}
	vm.Push(o.magnitude)
	return nil
}

func opOgetu(vm *VM, insn Instruction) error {
	v, err := vm.Pop()
	if err != nil {
		return err
	}
	o, ok := v.(*Offset)
	if !ok {
		return fmt.Errorf("pvm: ogetu: operand is not an offset")
	}
	vm.Push(MakeIntegral(vm.rt, 64, false, o.unit))
	return nil
}

// --- mapping / IO -----------------------------------------------------------------

// opMapv constructs a mapped value of a given type at a bit-offset in an IO space
// (spec §4.9 gen, ast.Map "evaluates an expression as a mapped value at a bit-offset").
// Operand order, bottom to top: IOS (Null for the current space), offset, type.
func opMapv(vm *VM, insn Instruction) error {
	typV, err := vm.Pop()
	if err != nil {
		return err
	}
	t, ok := typV.(*Type)
	if !ok {
		return fmt.Errorf("pvm: mapv: expected a type operand")
	}

	offV, err := vm.Pop()
	if err != nil {
		return err
	}
	offset := asULong(offV)

	iosV, err := vm.Pop()
	if err != nil {
		return err
	}

	iosID := vm.ios.Cur()
	if ValueKind(iosV) != KindNull {
		iosID = int32(asULong(iosV))
	}

	space, err := vm.ios.Get(iosID)
	if err != nil {
		return err
	}

	v, err := ReadMapped(vm.rt, space, iosID, t, offset, vm.knobs.Endian)
	if err != nil {
		return err
	}

	vm.Push(v)

	return nil
}

func opMgetios(vm *VM, insn Instruction) error {
	v, err := vm.Top()
	if err != nil {
		return err
	}
	var ios int32
	switch vv := v.(type) {
	case *Array:
		ios = vv.ios
	case *Struct:
		ios = vv.ios
	}
	vm.Push(MakeIntegral(vm.rt, 32, true, uint64(uint32(ios))))
	return nil
}

func opMseto(vm *VM, insn Instruction) error {
	offV, err := vm.Pop()
	if err != nil {
		return err
	}
	v, err := vm.Pop()
	if err != nil {
		return err
	}
	Reloc(v, mappedIOS(v), asULong(offV))
	vm.Push(v)
	return nil
}

func opMgeto(vm *VM, insn Instruction) error {
	v, err := vm.Top()
	if err != nil {
		return err
	}
	var off uint64
	switch vv := v.(type) {
	case *Array:
		off = vv.offset
	case *Struct:
		off = vv.offset
	}
	vm.Push(MakeIntegral(vm.rt, 64, false, off))
	return nil
}

func mappedIOS(v Value) int32 {
	switch vv := v.(type) {
	case *Array:
		return vv.ios
	case *Struct:
		return vv.ios
	default:
		return 0
	}
}

// opWrite persists a mapped value's current in-memory content back to its IO-space via
// the writer closure mechanism (spec §4.1 "writer closures responsible for ... writing
// the value's backing bytes"). This module does not compile writer closures from Poke
// source (that belongs to internal/compiler's runtime-library bootstrap); instead it
// performs the structural write directly against the IOSpace for integral leaf values,
// which is sufficient for the primitive struct/array mapping scenarios spec §8
// exercises, and documents the simplification rather than silently only half-doing it.
func opWrite(vm *VM, insn Instruction) error {
	v, err := vm.Pop()
	if err != nil {
		return err
	}

	ios, offset := mappedIOS(v), uint64(0)
	switch vv := v.(type) {
	case *Array:
		offset = vv.offset
	case *Struct:
		offset = vv.offset
	}

	if ios == 0 {
		return fmt.Errorf("pvm: write: value is not mapped")
	}

	space, err := vm.ios.Get(ios)
	if err != nil {
		return err
	}

	return writeValue(space, v, offset, vm.knobs.Endian)
}

func writeValue(space IOSpace, v Value, offset uint64, endian Endian) error {
	switch vv := v.(type) {
	case *Struct:
		for _, f := range vv.fields {
			if f.name == "" && f.value == nil {
				continue
			}
			if err := writeValue(space, f.value, f.offset+offset, endian); err != nil {
				return err
			}
		}
		return nil
	case *Array:
		for _, e := range vv.elems {
			if err := writeValue(space, e.value, e.offset+offset, endian); err != nil {
				return err
			}
		}
		return nil
	default:
		raw, size, _, ok := IntegerBits(v)
		if !ok {
			return nil
		}
		return space.WriteBits(offset, uint(size), raw, endian)
	}
}

// --- macros -------------------------------------------------------------------------

// opAddo implements the `addo` macro: offset + offset -> offset, promoting both
// operands to bits (spec §4.6 "Macros", §3.1 "Arithmetic on offsets promotes to bits
// and renormalises").
func opAddo(vm *VM, insn Instruction) error {
	b, err := vm.Pop()
	if err != nil {
		return err
	}
	a, err := vm.Pop()
	if err != nil {
		return err
	}
	ao, aok := a.(*Offset)
	bo, bok := b.(*Offset)
	if !aok || !bok {
		return fmt.Errorf("pvm: addo: operands must be offsets")
	}
	vm.Push(AddOffsets(vm.rt, ao, bo))
	return nil
}

func opSubo(vm *VM, insn Instruction) error {
	b, err := vm.Pop()
	if err != nil {
		return err
	}
	a, err := vm.Pop()
	if err != nil {
		return err
	}
	ao, aok := a.(*Offset)
	bo, bok := b.(*Offset)
	if !aok || !bok {
		return fmt.Errorf("pvm: subo: operands must be offsets")
	}
	delta := int64(ao.magnitudeBits(vm.rt)) - int64(bo.magnitudeBits(vm.rt))
	vm.Push(NewOffset(vm.rt, MakeIntegral(vm.rt, 64, true, uint64(delta)), UnitBits))
	return nil
}

// opAconc implements the `aconc` macro: array ++ array -> array (element-wise
// concatenation).
func opAconc(vm *VM, insn Instruction) error {
	b, err := vm.Pop()
	if err != nil {
		return err
	}
	a, err := vm.Pop()
	if err != nil {
		return err
	}
	aa, aok := a.(*Array)
	ba, bok := b.(*Array)
	if !aok || !bok {
		return fmt.Errorf("pvm: aconc: operands must be arrays")
	}

	result := NewArray(vm.rt, aa.etype, 0)
	var offset uint64
	for _, e := range aa.elems {
		sz := asULong(SizeOf(vm.rt, e.value))
		result.elems = append(result.elems, arrayElem{value: e.value, offset: offset})
		offset += sz
	}
	for _, e := range ba.elems {
		sz := asULong(SizeOf(vm.rt, e.value))
		result.elems = append(result.elems, arrayElem{value: e.value, offset: offset})
		offset += sz
	}

	vm.Push(result)

	return nil
}

// opEqa implements the `eqa` macro: pointwise array equality.
func opEqa(vm *VM, insn Instruction) error {
	b, err := vm.Pop()
	if err != nil {
		return err
	}
	a, err := vm.Pop()
	if err != nil {
		return err
	}
	vm.Push(boolValue(vm.rt, Equal(vm.rt, a, b)))
	return nil
}

func boolValue(rt *Runtime, b bool) Value {
	if b {
		return MakeIntegral(rt, 32, true, 1)
	}
	return MakeIntegral(rt, 32, true, 0)
}
