// Package pvm implements the Poke virtual machine: a tagged, garbage-collected value
// representation and a stack-machine bytecode interpreter that operates on it.
//
// The value model follows the source's tagged-cell design (see Kind), but trades the
// 3-bit low-tag-on-a-machine-word trick for an explicit sum type: a Value is always a
// Go interface, small integral values are unboxed structs, and everything else is a
// pointer to a heap-allocated, GC-participating object. That is a deliberate, spec-noted
// simplification -- the tagged-pointer trick is a performance optimization, not part of
// the value model's semantics.
package pvm

import (
	"fmt"
	"math/bits"

	"github.com/holiman/uint256"
)

// Kind identifies the variant of a Value, mirroring the cell tag of the source VM.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindUInt
	KindLong
	KindULong
	KindString
	KindArray
	KindStruct
	KindOffset
	KindType
	KindClosure
	KindEnv
	KindProgram
	KindInternalArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindUInt:
		return "uint"
	case KindLong:
		return "long"
	case KindULong:
		return "ulong"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindOffset:
		return "offset"
	case KindType:
		return "type"
	case KindClosure:
		return "closure"
	case KindEnv:
		return "env"
	case KindProgram:
		return "program"
	case KindInternalArray:
		return "internal-array"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a dynamically-typed PVM cell. Every variant described in the data model
// implements it. Unboxed variants (Int, UInt) are plain structs; everything else is a
// pointer type that also implements gcObject so the collector can mark it.
type Value interface {
	// Kind returns the variant tag of the value.
	Kind() Kind

	// String renders the value using the VM's default print configuration. Use
	// (*VM).Sprint for a configurable rendering.
	String() string
}

// Null is the distinguished null value. It is a named, zero-sized type rather than a
// nil interface so that a nil Value (a programming error: an uninitialized variable)
// can be told apart from the deliberate absence of a value.
type Null struct{}

func (Null) Kind() Kind    { return KindNull }
func (Null) String() string { return "null" }

// NullValue is the single, shared Null instance. The GC never needs to scan it: it
// carries no pointers and is not heap-allocated.
var NullValue Value = Null{}

// Int is an unboxed signed integer of 1..32 bits. The source's "unboxed" optimization
// is modeled here as a cell without heap participation: Int is copied by value and
// never visited by the collector.
type Int struct {
	raw    uint32 // two's-complement bits, right-justified.
	size   uint8  // 1..32
}

// UInt is an unboxed unsigned integer of 1..32 bits.
type UInt struct {
	raw  uint32
	size uint8
}

func (v Int) Kind() Kind  { return KindInt }
func (v UInt) Kind() Kind { return KindUInt }

// Size returns the declared bit width of the integer.
func (v Int) Size() uint8  { return v.size }
func (v UInt) Size() uint8 { return v.size }

// Signed reports whether the value's declared type is signed.
func (v Int) Signed() bool  { return true }
func (v UInt) Signed() bool { return false }

// Int64 sign-extends the value to a native int64.
func (v Int) Int64() int64 {
	shift := 32 - v.size
	return int64(int32(v.raw<<shift)) >> shift
}

// Uint64 zero-extends the value to a native uint64.
func (v UInt) Uint64() uint64 {
	return uint64(v.raw) & mask32(v.size)
}

func (v Int) String() string {
	return fmt.Sprintf("%dL%d", v.Int64(), v.size)
}

func (v UInt) String() string {
	return fmt.Sprintf("%dUL%d", v.Uint64(), v.size)
}

func mask32(size uint8) uint64 {
	if size >= 32 {
		return 0xffffffff
	}
	return (uint64(1) << size) - 1
}

func mask64(size uint8) uint64 {
	if size >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << size) - 1
}

// Long is a boxed signed integer of 33..64 bits. It participates in GC as a headered,
// non-finalizable object (see gc.go).
type Long struct {
	gcHeader
	raw  uint64
	size uint8
}

// ULong is a boxed unsigned integer of 33..64 bits.
type ULong struct {
	gcHeader
	raw  uint64
	size uint8
}

func (v *Long) Kind() Kind  { return KindLong }
func (v *ULong) Kind() Kind { return KindULong }

func (v *Long) Size() uint8  { return v.size }
func (v *ULong) Size() uint8 { return v.size }

func (v *Long) Int64() int64 {
	if v.size >= 64 {
		return int64(v.raw)
	}
	shift := 64 - v.size
	return int64(v.raw<<shift) >> shift
}

func (v *ULong) Uint64() uint64 {
	return v.raw & mask64(v.size)
}

// BigInt returns the value as a 256-bit uint256.Int; a negative value comes back in
// 256-bit two's-complement form.
func (v *Long) BigInt() *uint256.Int {
	n := new(uint256.Int)
	if i := v.Int64(); i < 0 {
		n.SetUint64(uint64(-i))
		return new(uint256.Int).Neg(n)
	} else {
		n.SetUint64(uint64(i))
		return n
	}
}

func (v *ULong) BigInt() *uint256.Int {
	return new(uint256.Int).SetUint64(v.Uint64())
}

func (v *Long) String() string  { return fmt.Sprintf("%dL", v.Int64()) }
func (v *ULong) String() string { return fmt.Sprintf("%dUL", v.Uint64()) }

// MakeIntegral constructs an Int, UInt, Long or ULong of the given size and signedness
// from raw two's-complement bits. It fails to NullValue if size is out of 1..64 per
// the invariant in make_integral.
func MakeIntegral(rt *Runtime, size uint8, signed bool, raw uint64) Value {
	if size == 0 || size > 64 {
		return NullValue
	}

	switch {
	case size <= 32 && signed:
		return Int{raw: uint32(raw) & uint32(mask32(size)), size: size}
	case size <= 32 && !signed:
		return UInt{raw: uint32(raw) & uint32(mask32(size)), size: size}
	case signed:
		l := &Long{raw: raw & mask64(size), size: size}
		rt.gc.register(l)
		return l
	default:
		u := &ULong{raw: raw & mask64(size), size: size}
		rt.gc.register(u)
		return u
	}
}

// ValueKind returns the variant tag of a value, treating a nil interface as KindNull.
func ValueKind(v Value) Kind {
	if v == nil {
		return KindNull
	}
	return v.Kind()
}

// IntegerBits returns the raw two's-complement bits and declared size of any of the
// four integral variants, used by arithmetic and comparison instructions that must
// operate generically across Int/UInt/Long/ULong.
func IntegerBits(v Value) (raw uint64, size uint8, signed bool, ok bool) {
	switch n := v.(type) {
	case Int:
		return uint64(n.raw), n.size, true, true
	case UInt:
		return uint64(n.raw), n.size, false, true
	case *Long:
		return n.raw, n.size, true, true
	case *ULong:
		return n.raw, n.size, false, true
	default:
		return 0, 0, false, false
	}
}

// bitsLeadingZeros mirrors bits.LeadingZeros64.
func bitsLeadingZeros(x uint64) int { return bits.LeadingZeros64(x) }

// Equal implements the value model's structural equality relation (spec §4.1 equal).
func Equal(rt *Runtime, a, b Value) bool {
	if ValueKind(a) != ValueKind(b) {
		return false
	}

	switch av := a.(type) {
	case Null:
		return true
	case Int:
		bv := b.(Int)
		return av.size == bv.size && av.raw == bv.raw
	case UInt:
		bv := b.(UInt)
		return av.size == bv.size && av.raw == bv.raw
	case *Long:
		bv := b.(*Long)
		return av.size == bv.size && av.raw == bv.raw
	case *ULong:
		bv := b.(*ULong)
		return av.size == bv.size && av.raw == bv.raw
	case *String:
		bv := b.(*String)
		return av.s == bv.s
	case *Offset:
		bv := b.(*Offset)
		am, au := av.normalizeBits(rt), bv.normalizeBits(rt)
		return am == au
	case *Array:
		return arrayEqual(rt, av, b.(*Array))
	case *Struct:
		return structEqual(rt, av, b.(*Struct))
	case *Type:
		return typeEqual(av, b.(*Type))
	default:
		return a == b
	}
}

func arrayEqual(rt *Runtime, a, b *Array) bool {
	if a.ios != b.ios || a.offset != b.offset {
		return false
	}
	if !typeEqual(a.etype, b.etype) {
		return false
	}
	if len(a.elems) != len(b.elems) {
		return false
	}
	for i := range a.elems {
		if a.elems[i].offset != b.elems[i].offset {
			return false
		}
		if !Equal(rt, a.elems[i].value, b.elems[i].value) {
			return false
		}
	}
	return true
}

func structEqual(rt *Runtime, a, b *Struct) bool {
	if a.ios != b.ios || a.offset != b.offset {
		return false
	}
	if !typeEqual(a.styp, b.styp) {
		return false
	}
	if len(a.fields) != len(b.fields) || len(a.methods) != len(b.methods) {
		return false
	}
	for i := range a.fields {
		af, bf := a.fields[i], b.fields[i]
		if af.name != bf.name || af.offset != bf.offset {
			return false
		}
		if !Equal(rt, af.value, bf.value) {
			return false
		}
	}
	for i := range a.methods {
		if a.methods[i].name != b.methods[i].name {
			return false
		}
	}
	return true
}

// SizeOf returns the bit-size of a value (spec §4.1 size_of).
func SizeOf(rt *Runtime, v Value) Value {
	var bitsz uint64

	switch vv := v.(type) {
	case Null:
		bitsz = 0
	case Int:
		bitsz = uint64(vv.size)
	case UInt:
		bitsz = uint64(vv.size)
	case *Long:
		bitsz = uint64(vv.size)
	case *ULong:
		bitsz = uint64(vv.size)
	case *String:
		bitsz = uint64(len(vv.s)+1) * 8
	case *Array:
		for _, e := range vv.elems {
			sz := SizeOf(rt, e.value)
			bitsz += asULong(sz)
		}
	case *Struct:
		bitsz = structSizeOf(rt, vv)
	case *Offset:
		bitsz = asULong(SizeOf(rt, vv.magnitude))
	case *Type, *Closure:
		bitsz = 0
	default:
		bitsz = 0
	}

	return MakeIntegral(rt, 64, false, bitsz)
}

func asULong(v Value) uint64 {
	raw, _, _, _ := IntegerBits(v)
	return raw
}

func structSizeOf(rt *Runtime, s *Struct) uint64 {
	if s.styp != nil && s.styp.structInfo != nil && s.styp.structInfo.union {
		var max uint64
		for _, f := range s.fields {
			if f.name == "" && f.value == nil {
				continue
			}
			sz := asULong(SizeOf(rt, f.value))
			if sz > max {
				max = sz
			}
		}
		return max
	}

	var max uint64
	for _, f := range s.fields {
		if f.name == "" && f.value == nil {
			continue
		}
		sz := asULong(SizeOf(rt, f.value))
		end := f.offset + sz
		if end > max {
			max = end
		}
	}
	return max
}

// Unmap clears the mapped flag on a value and recurses into array elements and struct
// fields (spec §4.1 unmap).
func Unmap(v Value) {
	switch vv := v.(type) {
	case *Array:
		vv.mapped = false
		for _, e := range vv.elems {
			Unmap(e.value)
		}
	case *Struct:
		vv.mapped = false
		for _, f := range vv.fields {
			if f.value != nil {
				Unmap(f.value)
			}
		}
	}
}

// Reloc relocates a mapped value to a new IO-space and bit-offset, translating every
// element/field offset by the delta and marking fields modified (spec §4.1 reloc). It
// saves the previous mapping-info into a backup so Ureloc can restore it.
func Reloc(v Value, ios int32, newOffset uint64) {
	switch vv := v.(type) {
	case *Array:
		delta := int64(newOffset) - int64(vv.offset)
		vv.backup = &mappingBackup{mapped: vv.mapped, ios: vv.ios, offset: vv.offset}
		vv.mapped = true
		vv.ios = ios
		vv.offset = newOffset
		for i := range vv.elems {
			vv.elems[i].offset = uint64(int64(vv.elems[i].offset) + delta)
			Reloc(vv.elems[i].value, ios, vv.elems[i].offset)
		}
	case *Struct:
		delta := int64(newOffset) - int64(vv.offset)
		vv.backup = &mappingBackup{mapped: vv.mapped, ios: vv.ios, offset: vv.offset}
		vv.mapped = true
		vv.ios = ios
		vv.offset = newOffset
		for i := range vv.fields {
			f := &vv.fields[i]
			if f.name == "" && f.value == nil {
				continue
			}
			f.offset = uint64(int64(f.offset) + delta)
			f.modified = true
			Reloc(f.value, ios, f.offset)
		}
	}
}

// Ureloc is the exact inverse of Reloc: it restores the mapping-info backup saved by
// the matching Reloc call.
func Ureloc(v Value) {
	switch vv := v.(type) {
	case *Array:
		if vv.backup == nil {
			return
		}
		vv.mapped, vv.ios, vv.offset = vv.backup.mapped, vv.backup.ios, vv.backup.offset
		vv.backup = nil
		for _, e := range vv.elems {
			Ureloc(e.value)
		}
	case *Struct:
		if vv.backup == nil {
			return
		}
		vv.mapped, vv.ios, vv.offset = vv.backup.mapped, vv.backup.ios, vv.backup.offset
		vv.backup = nil
		for _, f := range vv.fields {
			if f.value != nil {
				Ureloc(f.value)
			}
		}
	}
}

// Elemsof returns the element count used by the array/struct/string "size" family:
// Array -> element count, Struct -> present field count, String -> byte length, else 1.
func Elemsof(v Value) uint64 {
	switch vv := v.(type) {
	case *Array:
		return uint64(len(vv.elems))
	case *Struct:
		var n uint64
		for _, f := range vv.fields {
			if !(f.name == "" && f.value == nil) {
				n++
			}
		}
		return n
	case *String:
		return uint64(len(vv.s))
	default:
		return 1
	}
}

type mappingBackup struct {
	mapped bool
	ios    int32
	offset uint64
}
