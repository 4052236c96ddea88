package pvm

// Knobs are the VM's externally settable runtime knobs (spec §6.2), readable by the
// printer and by some instructions.
type Knobs struct {
	Endian      Endian
	NegEncoding NegEncoding
	PrettyPrint bool
	OutputMode  OutputMode
	OutputBase  int // 2, 8, 10 or 16
	OutputMaps  bool
	OutputIndent int
	OutputDepth  int
	OutputACutoff int
	AutoRemap    bool
}

// Endian selects byte order for mapped-value IO (spec §6.2 endian).
type Endian uint8

const (
	LittleEndian Endian = iota
	BigEndian
)

// NegEncoding selects the negative-integer encoding convention used by mapped IO
// (spec §6.2 nenc).
type NegEncoding uint8

const (
	TwosComplement NegEncoding = iota
	SignMagnitude
	OnesComplement
)

// OutputMode selects flat or indented-tree rendering (spec §6.2 omode).
type OutputMode uint8

const (
	OutputFlat OutputMode = iota
	OutputTree
)

// DefaultKnobs returns the VM's out-of-the-box knob settings.
func DefaultKnobs() Knobs {
	return Knobs{
		Endian:        LittleEndian,
		NegEncoding:   TwosComplement,
		PrettyPrint:   false,
		OutputMode:    OutputFlat,
		OutputBase:    10,
		OutputMaps:    false,
		OutputIndent:  2,
		OutputDepth:   0,
		OutputACutoff: 0,
		AutoRemap:     true,
	}
}

// Runtime is the threaded context carrying every piece of formerly process-global
// state the source keeps as C globals: the shape table/heap handle (GC), the cached
// integer/void/string/any types, and the exception type (spec §9 "Global mutable
// state ... A principled target-language design threads a Runtime context through the
// VM and compiler"). Tests are expected to create and destroy at least two sequential
// Runtimes in one process (spec §9), which is why none of this lives in package-level
// variables.
type Runtime struct {
	gc *GC

	voidType   *Type
	anyType    *Type
	stringType *Type
	intCache   [2][65]*Type // [signed][size] for size in 1..64.

	exceptionType *Type

	roots []int // handles returned by gc.RegisterGlobalRoot, released on Finalize.
}

// NewRuntime creates and initializes a Runtime: it creates the GC, registers the core
// global roots, and populates the integer-type cache (spec §5 "Lifecycle APIs",
// §4.1 "Integer type cache").
func NewRuntime() *Runtime {
	rt := &Runtime{gc: NewGC()}

	rt.voidType = NewVoidType(rt)
	rt.anyType = NewAnyType(rt)
	rt.stringType = NewStringType(rt)

	for size := uint8(1); size <= 64; size++ {
		rt.intCache[0][size] = NewIntegralType(rt, size, false)
		rt.intCache[1][size] = NewIntegralType(rt, size, true)
	}

	rt.exceptionType = NewExceptionType(rt)

	var voidV, anyV, stringV Value = rt.voidType, rt.anyType, rt.stringType
	rt.roots = append(rt.roots,
		rt.gc.RegisterGlobalRoot(&voidV),
		rt.gc.RegisterGlobalRoot(&anyV),
		rt.gc.RegisterGlobalRoot(&stringV),
	)

	for _, size := range []uint8{1, 8, 16, 32, 64} {
		for _, signed := range []bool{true, false} {
			var v Value = rt.IntegralType(size, signed)
			rt.roots = append(rt.roots, rt.gc.RegisterGlobalRoot(&v))
		}
	}

	return rt
}

// Finalize deregisters roots in reverse order and drops the heap handle. Calling any
// other Runtime API afterwards is undefined, per spec §5.
func (rt *Runtime) Finalize() {
	for i := len(rt.roots) - 1; i >= 0; i-- {
		rt.gc.DeregisterGlobalRoot(rt.roots[i])
	}
	rt.roots = nil
	rt.gc = nil
}

// GC returns the runtime's collector, for callers (the VM, tests) that need to
// register additional roots or trigger a Collect.
func (rt *Runtime) GC() *GC { return rt.gc }

// VoidType, AnyType and StringType return the cached, GC-rooted singleton type values.
func (rt *Runtime) VoidType() *Type   { return rt.voidType }
func (rt *Runtime) AnyType() *Type    { return rt.anyType }
func (rt *Runtime) StringType() *Type { return rt.stringType }

// ExceptionType returns the wire-fixed Exception struct type (spec §4.6, §9).
func (rt *Runtime) ExceptionType() *Type { return rt.exceptionType }

// IntegralType returns the cached integral type for (size, signed), constructing a
// fresh, uncached one for the rare width outside 1..64's bootstrap set (it
// never is, since MakeIntegral rejects size outside 1..64, but lookups for sizes the
// eager loop created are always hits).
func (rt *Runtime) IntegralType(size uint8, signed bool) *Type {
	if size >= 1 && size <= 64 {
		idx := 0
		if signed {
			idx = 1
		}
		if t := rt.intCache[idx][size]; t != nil {
			return t
		}
	}
	return NewIntegralType(rt, size, signed)
}
