package pvm

import (
	"fmt"
	"sync"
)

// gcHeader is embedded by every heap-allocated (boxed) value. It gives the collector a
// place to stash bookkeeping without reflecting on every concrete type, mirroring the
// source's "first word of the heap object is an internal discriminator" invariant
// (spec §3.1): here the discriminator is the Go dynamic type itself, which the shape
// table keys off of, and marked/finalized are the collector's own scratch bits.
type gcHeader struct {
	marked    bool
	finalized bool
}

// gcObject is implemented by every boxed Value variant. The shape table (spec §4.2)
// is expressed in idiomatic Go as a registry keyed by Kind (see shape/defaultShapes)
// rather than a table of per-variant function pointers; marking itself dispatches
// through the type switch in markValue below, since Go already dispatches on dynamic
// type and a second per-object virtual call would only duplicate that switch.
type gcObject interface {
	Value
}

// GC is a stop-the-world, non-moving mark-and-sweep collector over PVM heap values.
//
// The specification describes a moving copying collector keyed by a shape table of
// per-variant predicates, size functions and copy/update functions (spec §4.2). A
// target-language rewrite onto a tracing-GC host language need not reimplement a
// second collector underneath the host's own: Go's garbage collector already moves
// nothing and already scans root sets precisely, so the idiomatic translation is to
// let Go's allocator and collector own physical memory management while this type
// keeps faithful *bookkeeping*: explicit global roots (register_global_root /
// deregister_global_root), VM-stack roots (register_vm_stack), and the same
// mark-before-collect discipline the spec requires for finalizable objects (String,
// Array, Struct, Type, Closure, InternalArray, Program all run finalizers when a
// Collect() determines them unreachable from the roots).
//
// This keeps the one user-visible collector contract -- "only reachable values
// survive a collection, and finalizable ones are finalized when they don't" -- without
// fighting the host runtime's own collector for ownership of memory.
type GC struct {
	mu yaMutex

	objects []gcObject // Every boxed value ever allocated; swept on Collect.
	roots   []*rootHandle
	stacks  []*stackRoot
	pins    []Value // Values pinned by BlockBegin/BlockRoot until the matching BlockEnd.

	shapes map[Kind]shape

	collections int
	finalized   int
}

// shape is the per-variant description the spec's shape table registers: a predicate
// (modeled here as the Kind switch itself), and whether the variant is finalizable.
// Go's interface dispatch makes the predicate function redundant, so shape is reduced
// to the one bit of information this translation still needs explicitly.
type shape struct {
	finalizable bool
}

func defaultShapes() map[Kind]shape {
	return map[Kind]shape{
		KindLong:          {finalizable: false},
		KindULong:         {finalizable: false},
		KindEnv:           {finalizable: false},
		KindString:        {finalizable: true},
		KindArray:         {finalizable: true},
		KindStruct:        {finalizable: true},
		KindType:          {finalizable: true},
		KindClosure:       {finalizable: true},
		KindInternalArray: {finalizable: true},
		KindProgram:       {finalizable: true},
		KindOffset:        {finalizable: false},
	}
}

// BlockBegin pins a set of locals as temporary roots, mirroring BLOCK_BEGIN/BLOCK_ROOT:
// constructors that allocate partway through building a composite value call this so a
// Collect() triggered by a nested allocation cannot reclaim the not-yet-wired-in
// locals. BlockEnd releases the pin.
func (gc *GC) BlockBegin(locals ...Value) (end func()) {
	gc.mu.Lock()
	start := len(gc.pins)
	gc.pins = append(gc.pins, locals...)
	gc.mu.Unlock()

	return func() {
		gc.mu.Lock()
		gc.pins = gc.pins[:start]
		gc.mu.Unlock()
	}
}

type yaMutex = sync.Mutex

type rootHandle struct {
	id    int
	value *Value // Pointer so the root can be updated by a mover; unused by this
	       // non-moving collector but kept so callers mirror register_global_root's
	       // pointer-handle contract.
}

type stackRoot struct {
	stack func() []Value
}

// NewGC creates an empty collector. NewRuntime creates the collector and registers the
// mandatory roots (cached types) on it.
func NewGC() *GC {
	return &GC{shapes: defaultShapes()}
}

// register adds a freshly allocated boxed value to the set the collector is aware of.
// It is called by every boxed constructor (MakeIntegral's Long/ULong branch, NewString,
// NewArray, NewStruct, NewOffset, newType, NewClosure, NewEnv, NewProgram,
// newInternalArray).
func (gc *GC) register(o gcObject) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.objects = append(gc.objects, o)
}

// RegisterGlobalRoot pins a value so it is never finalized, mirroring
// register_global_root. It returns a handle for DeregisterGlobalRoot.
func (gc *GC) RegisterGlobalRoot(v *Value) int {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	h := &rootHandle{id: len(gc.roots) + 1, value: v}
	gc.roots = append(gc.roots, h)

	return h.id
}

// DeregisterGlobalRoot releases a handle returned by RegisterGlobalRoot.
func (gc *GC) DeregisterGlobalRoot(handle int) {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	for i, h := range gc.roots {
		if h.id == handle {
			gc.roots = append(gc.roots[:i], gc.roots[i+1:]...)
			return
		}
	}
}

// RegisterVMStack registers a callback returning the live contents of a VM-managed
// stack (main, return, exception-handler environments) as roots, mirroring
// register_vm_stack(base, nelems, *tos).
func (gc *GC) RegisterVMStack(stack func() []Value) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.stacks = append(gc.stacks, &stackRoot{stack: stack})
}

// Collect walks every registered root, marks everything transitively reachable, and
// finalizes (but does not free -- the host GC owns that) any finalizable boxed value
// determined unreachable. It mirrors the source's pre-collection hook / copy /
// post-collection hook cycle (spec §4.2), minus the "copy" (moving) step, which this
// translation delegates to the host runtime's allocator.
func (gc *GC) Collect() {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	for _, o := range gc.objects {
		resetMark(o)
	}

	for _, r := range gc.roots {
		if r.value != nil {
			markValue(gc, *r.value)
		}
	}

	for _, s := range gc.stacks {
		for _, v := range s.stack() {
			markValue(gc, v)
		}
	}

	for _, v := range gc.pins {
		markValue(gc, v)
	}

	live := gc.objects[:0]

	for _, o := range gc.objects {
		if isMarked(o) {
			live = append(live, o)
			continue
		}

		if gc.shapes[o.Kind()].finalizable {
			finalize(o)
			gc.finalized++
		}
	}

	gc.objects = live
	gc.collections++
}

// Stats reports collector counters.
func (gc *GC) Stats() (collections, finalized, live int) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.collections, gc.finalized, len(gc.objects)
}

func resetMark(o gcObject) {
	switch v := o.(type) {
	case *Long:
		v.marked = false
	case *ULong:
		v.marked = false
	case *String:
		v.marked = false
	case *Array:
		v.marked = false
	case *Struct:
		v.marked = false
	case *Offset:
		v.marked = false
	case *Type:
		v.marked = false
	case *Closure:
		v.marked = false
	case *Env:
		v.marked = false
	case *Program:
		v.marked = false
	case *InternalArray:
		v.marked = false
	}
}

func isMarked(o gcObject) bool {
	switch v := o.(type) {
	case *Long:
		return v.marked
	case *ULong:
		return v.marked
	case *String:
		return v.marked
	case *Array:
		return v.marked
	case *Struct:
		return v.marked
	case *Offset:
		return v.marked
	case *Type:
		return v.marked
	case *Closure:
		return v.marked
	case *Env:
		return v.marked
	case *Program:
		return v.marked
	case *InternalArray:
		return v.marked
	default:
		return true
	}
}

func finalize(o gcObject) {
	switch v := o.(type) {
	case *String:
		v.finalized = true
	case *Array:
		v.finalized = true
	case *Struct:
		v.finalized = true
	case *Type:
		v.finalized = true
	case *Closure:
		v.finalized = true
	case *InternalArray:
		v.finalized = true
	case *Program:
		v.finalized = true
	}
}

// markValue marks v and recurses through its children, implementing the "fields
// update" visitor the shape table would otherwise provide per-variant.
func markValue(gc *GC, v Value) {
	if v == nil {
		return
	}

	switch vv := v.(type) {
	case *Long:
		vv.marked = true
	case *ULong:
		vv.marked = true
	case *String:
		vv.marked = true
	case *Offset:
		if vv.marked {
			return
		}
		vv.marked = true
		markValue(gc, vv.magnitude)
	case *Array:
		if vv.marked {
			return
		}
		vv.marked = true
		markValue(gc, vv.etype)
		for _, e := range vv.elems {
			markValue(gc, e.value)
		}
	case *Struct:
		if vv.marked {
			return
		}
		vv.marked = true
		markValue(gc, vv.styp)
		for _, f := range vv.fields {
			markValue(gc, f.value)
		}
		for _, m := range vv.methods {
			markValue(gc, m.closure)
		}
	case *Type:
		if vv.marked {
			return
		}
		vv.marked = true
		vv.markChildren(gc)
	case *Closure:
		if vv.marked {
			return
		}
		vv.marked = true
		markValue(gc, vv.env)
	case *Env:
		if vv.marked {
			return
		}
		vv.marked = true
		vv.markChildren(gc)
	case *Program:
		if vv.marked {
			return
		}
		vv.marked = true
		for _, p := range vv.params {
			markValue(gc, p)
		}
	case *InternalArray:
		if vv.marked {
			return
		}
		vv.marked = true
		for _, e := range vv.elems {
			markValue(gc, e)
		}
	}
}

// fatalOOM aborts the process, mirroring the spec's "out-of-memory during allocation is
// a fatal error; the caller cannot recover" (spec §4.2, §7).
func fatalOOM(reason string) {
	panic(fmt.Sprintf("pvm: out of memory: %s", reason))
}
