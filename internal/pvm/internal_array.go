package pvm

// InternalArray is a heterogeneous vector used internally by the VM and Program (for
// instance as Program.insn_params, spec §4.5), not exposed to Poke source as a value
// kind that ordinary code can construct.
type InternalArray struct {
	gcHeader
	elems []Value
}

func (a *InternalArray) Kind() Kind     { return KindInternalArray }
func (a *InternalArray) String() string { return "internal-array" }

func newInternalArray(rt *Runtime) *InternalArray {
	a := &InternalArray{}
	rt.gc.register(a)
	return a
}

// indexOf returns the index of v in the array by pointer identity, or -1.
func (a *InternalArray) indexOf(v Value) int {
	for i, e := range a.elems {
		if sameValueIdentity(e, v) {
			return i
		}
	}
	return -1
}

// append adds v and returns its new index.
func (a *InternalArray) append(v Value) int {
	a.elems = append(a.elems, v)
	return len(a.elems) - 1
}

// at returns the value at index i.
func (a *InternalArray) at(i int) Value {
	if i < 0 || i >= len(a.elems) {
		return NullValue
	}
	return a.elems[i]
}

// sameValueIdentity implements the pointer-equality dedup rule used by
// append_val_parameter (spec §4.5: "dedupes by pointer-equality into insn_params").
// Unboxed Int/UInt have no pointer identity, so they dedupe by value instead, which is
// observationally identical for the host VM's purposes.
func sameValueIdentity(a, b Value) bool {
	switch av := a.(type) {
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case UInt:
		bv, ok := b.(UInt)
		return ok && av == bv
	case Null:
		_, ok := b.(Null)
		return ok
	default:
		return a == b
	}
}
