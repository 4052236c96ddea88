package pvm

import (
	"fmt"
	"strings"
)

// TypeKind distinguishes the first-class Type reifiers (spec §3.1 "Type: a first-class
// type reifier; no storage itself").
type TypeKind uint8

const (
	TypeVoid TypeKind = iota
	TypeIntegral
	TypeString
	TypeArray
	TypeStruct
	TypeOffset
	TypeFunction
	TypeAny
	TypeClosureT // closures are typed as functions; kept distinct for printing only.
)

func (k TypeKind) String() string {
	switch k {
	case TypeVoid:
		return "void"
	case TypeIntegral:
		return "integral"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeStruct:
		return "struct"
	case TypeOffset:
		return "offset"
	case TypeFunction:
		return "function"
	case TypeAny:
		return "any"
	default:
		return "?"
	}
}

// Type is the boxed, first-class reification of a Poke type (spec §3.1, §4.7). It
// carries no storage of its own; Struct and Array values merely reference one.
type Type struct {
	gcHeader

	kind TypeKind
	name string // Non-empty for a named struct type; alpha-equivalence keys off this.

	// Integral
	intSize   uint8
	intSigned bool

	// Array
	etype  *Type
	bound  Value // literal element count/byte-size bound, or nil (unbounded).

	// Offset
	obase *Type
	ounit uint64

	// Function
	fnRet  *Type
	fnArgs []*Type

	structInfo *structTypeInfo
}

type structTypeInfo struct {
	fields []structFieldType
	union  bool
	pinned bool
}

type structFieldType struct {
	name       string
	ftype      *Type
	label      Value // bit offset label, or nil.
	hasLabel   bool
	constraint bool
}

func (t *Type) Kind() Kind { return KindType }

func (t *Type) String() string {
	if t == nil {
		return "void"
	}

	switch t.kind {
	case TypeVoid:
		return "void"
	case TypeAny:
		return "any"
	case TypeString:
		return "string"
	case TypeIntegral:
		sign := "int"
		if !t.intSigned {
			sign = "uint"
		}
		return fmt.Sprintf("%s<%d>", sign, t.intSize)
	case TypeArray:
		return fmt.Sprintf("%s[]", t.etype)
	case TypeOffset:
		return fmt.Sprintf("offset<%s,%d>", t.obase, t.ounit)
	case TypeStruct:
		if t.name != "" {
			return t.name
		}
		parts := make([]string, 0, len(t.structInfo.fields))
		for _, f := range t.structInfo.fields {
			parts = append(parts, f.ftype.String())
		}
		return "struct {" + strings.Join(parts, ";") + "}"
	case TypeFunction:
		args := make([]string, 0, len(t.fnArgs))
		for _, a := range t.fnArgs {
			args = append(args, a.String())
		}
		return fmt.Sprintf("(%s)%s", strings.Join(args, ","), t.fnRet)
	default:
		return "type"
	}
}

func (t *Type) markChildren(gc *GC) {
	if t.etype != nil {
		markValue(gc, t.etype)
	}
	if t.obase != nil {
		markValue(gc, t.obase)
	}
	if t.fnRet != nil {
		markValue(gc, t.fnRet)
	}
	for _, a := range t.fnArgs {
		markValue(gc, a)
	}
	if t.structInfo != nil {
		for _, f := range t.structInfo.fields {
			markValue(gc, f.ftype)
		}
	}
	if t.bound != nil {
		markValue(gc, t.bound)
	}
}

func newType(gc *GC, t *Type) *Type {
	gc.register(t)
	return t
}

// NewVoidType returns the (uncached; callers should use Runtime.VoidType) void type.
func NewVoidType(rt *Runtime) *Type { return newType(rt.gc, &Type{kind: TypeVoid}) }

// NewAnyType constructs the "any" type value.
func NewAnyType(rt *Runtime) *Type { return newType(rt.gc, &Type{kind: TypeAny}) }

// NewStringType constructs the string type value.
func NewStringType(rt *Runtime) *Type { return newType(rt.gc, &Type{kind: TypeString}) }

// NewIntegralType constructs an integral type value of the given size and signedness.
// Callers needing a cached instance should prefer Runtime.IntegralType.
func NewIntegralType(rt *Runtime, size uint8, signed bool) *Type {
	return newType(rt.gc, &Type{kind: TypeIntegral, intSize: size, intSigned: signed})
}

// NewArrayType constructs an array type with the given element type and an optional
// literal bound (element count or byte-size Value; nil for unbounded).
func NewArrayType(rt *Runtime, etype *Type, bound Value) *Type {
	return newType(rt.gc, &Type{kind: TypeArray, etype: etype, bound: bound})
}

// NewOffsetType constructs an offset type over a base integral type with the given
// bits-per-unit.
func NewOffsetType(rt *Runtime, base *Type, unit uint64) *Type {
	return newType(rt.gc, &Type{kind: TypeOffset, obase: base, ounit: unit})
}

// NewFunctionType constructs a function type value.
func NewFunctionType(rt *Runtime, ret *Type, args []*Type) *Type {
	return newType(rt.gc, &Type{kind: TypeFunction, fnRet: ret, fnArgs: append([]*Type(nil), args...)})
}

// StructTypeField describes one field of a struct type being constructed with
// NewStructType.
type StructTypeField struct {
	Name       string
	Type       *Type
	Label      Value
	Constraint bool
}

// NewStructType constructs a struct type, optionally named (named struct types compare
// by name only -- the alpha-equivalence rule preserved from spec §9).
func NewStructType(rt *Runtime, name string, fields []StructTypeField, union, pinned bool) *Type {
	info := &structTypeInfo{union: union, pinned: pinned}
	for _, f := range fields {
		info.fields = append(info.fields, structFieldType{
			name: f.Name, ftype: f.Type, label: f.Label, hasLabel: f.Label != nil, constraint: f.Constraint,
		})
	}
	return newType(rt.gc, &Type{kind: TypeStruct, name: name, structInfo: info})
}

// typeEqual implements the structural-or-by-name comparison documented for Values
// (spec §4.1 equal "Types compared structurally per §4.7 (named structs compare by
// name only)") and for AST type_equal_p (spec §4.7).
func typeEqual(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.kind != b.kind {
		return false
	}

	switch a.kind {
	case TypeVoid, TypeAny, TypeString:
		return true
	case TypeIntegral:
		return a.intSize == b.intSize && a.intSigned == b.intSigned
	case TypeArray:
		return typeEqual(a.etype, b.etype)
	case TypeOffset:
		return a.ounit == b.ounit && typeEqual(a.obase, b.obase)
	case TypeFunction:
		if !typeEqual(a.fnRet, b.fnRet) || len(a.fnArgs) != len(b.fnArgs) {
			return false
		}
		for i := range a.fnArgs {
			if !typeEqual(a.fnArgs[i], b.fnArgs[i]) {
				return false
			}
		}
		return true
	case TypeStruct:
		// Alpha-equivalence (spec §9, open question): anonymous structs are never
		// equal to one another; named structs are equal iff their names match,
		// regardless of structural divergence.
		if a.name != "" || b.name != "" {
			return a.name == b.name
		}
		return false
	default:
		return false
	}
}

// TypeEqual is the exported form of typeEqual.
func TypeEqual(a, b *Type) bool { return typeEqual(a, b) }

// TypePromoteable reports whether a value of type `from` may be implicitly promoted to
// `to` (spec §4.7 type_promoteable_p): integral->integral, offset->offset,
// array->Any[] (when promoteArrayOfAny), struct-that-is-integrable->integer.
func TypePromoteable(from, to *Type, promoteArrayOfAny bool) bool {
	if typeEqual(from, to) {
		return true
	}

	switch {
	case from.kind == TypeIntegral && to.kind == TypeIntegral:
		return true
	case from.kind == TypeOffset && to.kind == TypeOffset:
		return true
	case from.kind == TypeArray && to.kind == TypeArray && to.etype.kind == TypeAny && promoteArrayOfAny:
		return true
	case from.kind == TypeStruct && to.kind == TypeIntegral && TypeIntegrable(from):
		return true
	default:
		return false
	}
}

// TypeIntegralPromote returns the promoted integral type of two integral operand types:
// the wider size, signed iff both operands are signed (spec §4.7 type_integral_promote).
func TypeIntegralPromote(rt *Runtime, a, b *Type) *Type {
	size := a.intSize
	if b.intSize > size {
		size = b.intSize
	}
	signed := a.intSigned && b.intSigned
	return rt.IntegralType(size, signed)
}

// TypeIncrStep returns the AST increment step for ++/--: 1 for an integral type, a
// 1-unit Offset for an offset type (spec §4.7 type_incr_step).
func TypeIncrStep(rt *Runtime, t *Type) Value {
	switch t.kind {
	case TypeIntegral:
		return MakeIntegral(rt, t.intSize, t.intSigned, 1)
	case TypeOffset:
		return NewOffset(rt, MakeIntegral(rt, 64, false, 1), t.ounit)
	default:
		return NullValue
	}
}

// TypeIntegrable reports whether a type can be converted to an integer: any integral
// type, or a non-union, non-pinned struct whose present fields are all integrable
// (spec §4.7 type_integrable_p).
func TypeIntegrable(t *Type) bool {
	switch t.kind {
	case TypeIntegral:
		return true
	case TypeStruct:
		if t.structInfo.union || t.structInfo.pinned {
			return false
		}
		for _, f := range t.structInfo.fields {
			if !TypeIntegrable(f.ftype) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// TypeMappable reports whether values of this type may back an IO-space mapping
// (spec §4.7 type_mappable_p): Array and Struct are mappable; scalars are not (they
// are mapped only as elements/fields of a mappable composite).
func TypeMappable(t *Type) bool {
	return t.kind == TypeArray || t.kind == TypeStruct
}

// TypeIsFallible reports whether a value of the type can raise a constraint violation
// while being constructed or mapped (spec §4.7 type_is_fallible): any struct with
// field constraints, any union, Any, or an array/struct containing a fallible type.
func TypeIsFallible(t *Type) bool {
	switch t.kind {
	case TypeAny:
		return true
	case TypeArray:
		return TypeIsFallible(t.etype)
	case TypeStruct:
		if t.structInfo.union {
			return true
		}
		for _, f := range t.structInfo.fields {
			if f.constraint || TypeIsFallible(f.ftype) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// TypeIsComplete reports whether the type's bit-size is knowable at compile time
// (spec §4.7 type_is_complete / §3.2 "Type completeness").
func TypeIsComplete(t *Type) bool {
	switch t.kind {
	case TypeIntegral, TypeOffset, TypeString, TypeVoid:
		return true
	case TypeArray:
		_, ok := t.bound.(Int)
		if !ok {
			if _, ok2 := t.bound.(UInt); !ok2 {
				return false
			}
		}
		return TypeIsComplete(t.etype)
	case TypeStruct:
		for _, f := range t.structInfo.fields {
			if f.constraint {
				return false
			}
			if !f.hasLabel && !TypeIsComplete(f.ftype) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// TypeIsException reports whether t is the wire-fixed Exception struct type
// (spec §4.6 "Exceptions", §9 "Exception struct-type layout").
func TypeIsException(t *Type) bool {
	return t.kind == TypeStruct && t.name == ExceptionTypeName
}

// ArrayTypeRemoveBounders returns a copy of an array type with its literal bound
// cleared, recursing into any nested array element type (spec §4.7
// array_type_remove_bounders: "null out bounder closures recursively"). In this
// translation a "bounder" is simply the literal Value bound, since closures-as-bounders
// are a detail of the reference implementation's compiled-macro bounds, not of the
// value model.
func ArrayTypeRemoveBounders(rt *Runtime, t *Type) *Type {
	if t.kind != TypeArray {
		return t
	}
	return NewArrayType(rt, ArrayTypeRemoveBounders(rt, t.etype), nil)
}

// SizeofType computes the compile-time bit-size of a type per the sizeof_type
// algorithm (spec §4.7).
func SizeofType(rt *Runtime, t *Type) (uint64, bool) {
	switch t.kind {
	case TypeIntegral:
		return uint64(t.intSize), true
	case TypeArray:
		esz, ok := SizeofType(rt, t.etype)
		if !ok {
			return 0, false
		}
		switch b := t.bound.(type) {
		case Int:
			return uint64(b.Int64()) * esz, true
		case UInt:
			return b.Uint64() * esz, true
		case *Offset:
			return b.magnitudeBits(rt) * 1, true
		default:
			return 0, false
		}
	case TypeStruct:
		if t.structInfo.union {
			var max uint64
			for _, f := range t.structInfo.fields {
				sz, ok := SizeofType(rt, f.ftype)
				if !ok {
					return 0, false
				}
				if sz > max {
					max = sz
				}
			}
			return max, true
		}

		var total uint64
		for _, f := range t.structInfo.fields {
			sz, ok := SizeofType(rt, f.ftype)
			if !ok {
				return 0, false
			}
			switch {
			case t.structInfo.pinned:
				if sz > total {
					total = sz
				}
			case f.hasLabel:
				lbl := asULong(f.label)
				if lbl+sz > total {
					total = lbl + sz
				}
			default:
				total += sz
			}
		}
		return total, true
	case TypeFunction:
		return 0, true
	case TypeOffset:
		return SizeofType(rt, t.obase)
	default:
		return 0, false
	}
}
