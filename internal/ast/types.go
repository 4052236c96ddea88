package ast

import (
	"fmt"
	"strings"
)

// TypeKind distinguishes the type-node variants of spec §3.2 "types
// (integral/array/struct/function/offset/string/void/any)".
type TypeKind uint8

const (
	TVoid TypeKind = iota
	TIntegral
	TString
	TArray
	TStruct
	TOffset
	TFunction
	TAny
)

// Type is the AST's type node (spec §4.7 make_*_type family). Unlike pvm.Type (a
// runtime, first-class reifier), ast.Type is a compile-time description the typify
// passes attach to every expression node and the gen pass lowers into a pvm.Type value
// via the compiler's type-construction instructions (mkit/mkat/mkst/...).
type Type struct {
	base

	Kind TypeKind
	Name string // non-empty for a named struct type (alpha-equivalence keys off this).

	// Integral
	IntSize   uint8
	IntSigned bool

	// Array
	ElemType *Type
	Bound    Expr // literal element-count/byte-size bound, or nil.

	// Offset
	Base *Type
	Unit uint64

	// Struct
	Fields []*StructTypeField
	Union  bool
	Pinned bool

	// Function
	Ret  *Type
	Args []*FuncTypeArg
}

func (t *Type) String() string {
	switch t.Kind {
	case TVoid:
		return "void"
	case TAny:
		return "any"
	case TString:
		return "string"
	case TIntegral:
		sign := "int"
		if !t.IntSigned {
			sign = "uint"
		}
		return fmt.Sprintf("%s<%d>", sign, t.IntSize)
	case TArray:
		return fmt.Sprintf("%s[]", t.ElemType)
	case TOffset:
		return fmt.Sprintf("offset<%s,%d>", t.Base, t.Unit)
	case TStruct:
		if t.Name != "" {
			return t.Name
		}
		parts := make([]string, 0, len(t.Fields))
		for _, f := range t.Fields {
			parts = append(parts, f.Type.String())
		}
		return "struct {" + strings.Join(parts, ";") + "}"
	case TFunction:
		args := make([]string, 0, len(t.Args))
		for _, a := range t.Args {
			args = append(args, a.Type.String())
		}
		return fmt.Sprintf("(%s)%s", strings.Join(args, ","), t.Ret)
	default:
		return "?type"
	}
}

// StructTypeField describes one declared field of a struct type (spec §4.7
// make_struct_type_field): name, type, optional constraint expression, optional
// initializer, optional bit-offset label, and pre/post optional conditions.
type StructTypeField struct {
	base

	Name        string
	Type        *Type
	Constraint  Expr
	Initializer Expr
	Label       Expr // explicit bit-offset label, or nil.
	Endian      string
	OptCondPre  Expr
	OptCondPost Expr
}

// FuncTypeArg is one formal-parameter type slot of a FunctionType.
type FuncTypeArg struct {
	base
	Type     *Type
	Optional bool
	Varargs  bool
}

// EnumValue is one member of an Enum declaration.
type EnumValue struct {
	base
	Name  string
	Value Expr // nil if implicitly the previous value + 1.
}

// Enum is an enumeration declaration (spec §4.7 make_enum): a named set of integer
// constants installed into the compile-time environment as a namespace.
type Enum struct {
	base
	Name   string
	Values []*EnumValue
}

func (e *Enum) UID() int { return e.base.UID() }

// --- constructors -------------------------------------------------------------------

func MakeVoidType(ctx *Context) *Type     { return &Type{base: newBase(ctx), Kind: TVoid} }
func MakeAnyType(ctx *Context) *Type      { return &Type{base: newBase(ctx), Kind: TAny} }
func MakeStringType(ctx *Context) *Type   { return &Type{base: newBase(ctx), Kind: TString} }

// MakeIntegralType constructs an integral type node (spec make_integral_type(size, signed)).
func MakeIntegralType(ctx *Context, size uint8, signed bool) *Type {
	return &Type{base: newBase(ctx), Kind: TIntegral, IntSize: size, IntSigned: signed}
}

// MakeArrayType constructs an array type node (spec make_array_type(etype, bound)).
func MakeArrayType(ctx *Context, etype *Type, bound Expr) *Type {
	return &Type{base: newBase(ctx), Kind: TArray, ElemType: etype, Bound: bound}
}

// MakeOffsetType constructs an offset type node (spec make_offset_type(base, unit, ref)).
func MakeOffsetType(ctx *Context, base_ *Type, unit uint64) *Type {
	return &Type{base: newBase(ctx), Kind: TOffset, Base: base_, Unit: unit}
}

// MakeStructType constructs a struct type node (spec make_struct_type(nelem, nfield,
// ndecl, itype, elems, pinned_p, union_p)).
func MakeStructType(ctx *Context, name string, fields []*StructTypeField, union, pinned bool) *Type {
	return &Type{base: newBase(ctx), Kind: TStruct, Name: name, Fields: fields, Union: union, Pinned: pinned}
}

// MakeFunctionType constructs a function type node.
func MakeFunctionType(ctx *Context, ret *Type, args []*FuncTypeArg) *Type {
	return &Type{base: newBase(ctx), Kind: TFunction, Ret: ret, Args: args}
}

func MakeNamedType(ctx *Context, resolved *Type) *Type {
	// A "named type" reference just resolves, at parse time or by the compiler's
	// symbol lookup, to the Type node it names; there is no separate node kind.
	return resolved
}

// MakeExceptionType constructs the wire-fixed Exception struct type (spec §4.6, §9):
// five fields, the same shape internal/pvm/struct.go's NewExceptionType reifies at run
// time. The compiler's top-level driver installs one of these into every scope's
// exceptionType slot so `raise`/`catch` and the "Exception" literal-type special case
// in Typify/pvmType all agree on one declaration.
func MakeExceptionType(ctx *Context) *Type {
	i32 := MakeIntegralType(ctx, 32, true)
	str := MakeStringType(ctx)
	return MakeStructType(ctx, ExceptionTypeName, []*StructTypeField{
		{base: newBase(ctx), Name: "code", Type: i32},
		{base: newBase(ctx), Name: "name", Type: str},
		{base: newBase(ctx), Name: "exit_status", Type: i32},
		{base: newBase(ctx), Name: "location", Type: str},
		{base: newBase(ctx), Name: "msg", Type: str},
	}, false, false)
}

func MakeEnum(ctx *Context, name string, values []*EnumValue) *Enum {
	return &Enum{base: newBase(ctx), Name: name, Values: values}
}

// --- queries (spec §4.7 "Queries") ---------------------------------------------------

// StructTypeTraverse walks a dotted field path "a.b.c" and returns the type of the
// last field (spec struct_type_traverse).
func StructTypeTraverse(t *Type, path string) (*Type, bool) {
	cur := t
	for _, name := range strings.Split(path, ".") {
		if cur == nil || cur.Kind != TStruct {
			return nil, false
		}
		f, ok := GetStructTypeField(cur, name)
		if !ok {
			return nil, false
		}
		cur = f.Type
	}
	return cur, true
}

// GetStructTypeField looks up a declared field by name.
func GetStructTypeField(t *Type, name string) (*StructTypeField, bool) {
	if t == nil || t.Kind != TStruct {
		return nil, false
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// TypeEqual implements type_equal_p: structural equality, except named struct types
// compare by name only (spec §9 "alpha-equivalence for named struct types" -- two
// anonymous structs are always unequal; two named structs are equal iff names match).
func TypeEqual(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind {
		return false
	}

	switch a.Kind {
	case TVoid, TAny, TString:
		return true
	case TIntegral:
		return a.IntSize == b.IntSize && a.IntSigned == b.IntSigned
	case TArray:
		return TypeEqual(a.ElemType, b.ElemType)
	case TOffset:
		return a.Unit == b.Unit && TypeEqual(a.Base, b.Base)
	case TFunction:
		if !TypeEqual(a.Ret, b.Ret) || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !TypeEqual(a.Args[i].Type, b.Args[i].Type) {
				return false
			}
		}
		return true
	case TStruct:
		if a.Name != "" || b.Name != "" {
			return a.Name == b.Name
		}
		return false
	default:
		return false
	}
}

// TypeIntegralPromote implements type_integral_promote: the wider size, signed iff
// both operands are signed.
func TypeIntegralPromote(ctx *Context, a, b *Type) *Type {
	size := a.IntSize
	if b.IntSize > size {
		size = b.IntSize
	}
	return MakeIntegralType(ctx, size, a.IntSigned && b.IntSigned)
}

// TypePromoteableP implements type_promoteable_p: integral->integral, offset->offset,
// array->Any[] (when promoteArrayOfAny), struct-of-one-integral-field->integer.
// Arrays with different literal bounds are never promoteable to one another.
func TypePromoteableP(from, to *Type, promoteArrayOfAny bool) bool {
	if from == nil || to == nil {
		return false
	}
	if from.Kind == TArray && to.Kind == TArray {
		fb, fok := from.Bound.(*Integer)
		tb, tok := to.Bound.(*Integer)
		if fok && tok && fb.Value != tb.Value {
			return false
		}
	}
	switch {
	case from.Kind == TIntegral && to.Kind == TIntegral:
		return true
	case from.Kind == TOffset && to.Kind == TOffset:
		return true
	case from.Kind == TArray && to.Kind == TArray && to.ElemType != nil && to.ElemType.Kind == TAny && promoteArrayOfAny:
		return true
	case from.Kind == TStruct && to.Kind == TIntegral && len(from.Fields) == 1 && from.Fields[0].Type.Kind == TIntegral:
		return true
	default:
		return TypeEqual(from, to)
	}
}

// TypeIncrStep implements type_incr_step: 1 for an integer type, a 1-unit Offset for
// offset types.
func TypeIncrStep(ctx *Context, t *Type) Expr {
	switch t.Kind {
	case TIntegral:
		return &Integer{base: newBase(ctx), exprMeta: exprMeta{Type: t, Literal: true}, Value: 1, Size: t.IntSize, Signed: t.IntSigned}
	case TOffset:
		mag := &Integer{base: newBase(ctx), exprMeta: exprMeta{Type: t.Base, Literal: true}, Value: 1, Size: t.Base.IntSize, Signed: t.Base.IntSigned}
		return &OffsetLit{base: newBase(ctx), exprMeta: exprMeta{Type: t, Literal: true}, Magnitude: mag, Unit: t.Unit}
	default:
		return nil
	}
}

func TypeIntegrableP(t *Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case TIntegral:
		return true
	case TStruct:
		return len(t.Fields) == 1 && TypeIntegrableP(t.Fields[0].Type)
	default:
		return false
	}
}

func TypeMappableP(t *Type) bool {
	return t != nil && (t.Kind == TArray || t.Kind == TStruct)
}

// TypeIsFallible implements type_is_fallible: a struct with constraints, any Union,
// Any, or an array/struct containing a fallible type.
func TypeIsFallible(t *Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case TAny:
		return true
	case TStruct:
		if t.Union {
			return true
		}
		for _, f := range t.Fields {
			if f.Constraint != nil || TypeIsFallible(f.Type) {
				return true
			}
		}
		return false
	case TArray:
		return TypeIsFallible(t.ElemType)
	default:
		return false
	}
}

// TypeIsComplete implements type_is_complete: bit-size knowable at compile time.
func TypeIsComplete(t *Type) bool {
	if t == nil {
		return true
	}
	switch t.Kind {
	case TIntegral, TOffset, TVoid, TString:
		return true
	case TArray:
		_, literal := t.Bound.(*Integer)
		return literal && TypeIsComplete(t.ElemType)
	case TStruct:
		for _, f := range t.Fields {
			if f.Constraint != nil {
				return false
			}
			if f.OptCondPre != nil || f.OptCondPost != nil {
				return false
			}
			if f.Label != nil {
				if _, ok := f.Label.(*Integer); !ok {
					return false
				}
			}
			if !TypeIsComplete(f.Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

const ExceptionTypeName = "Exception"

func TypeIsException(t *Type) bool {
	return t != nil && t.Kind == TStruct && t.Name == ExceptionTypeName
}

// DupType performs a deep copy of type substructure only (spec dup_type): chains and
// non-type children are shared by reference, only the Type tree itself is duplicated.
func DupType(ctx *Context, t *Type) *Type {
	if t == nil {
		return nil
	}
	cp := *t
	cp.base = newBase(ctx)
	cp.ElemType = DupType(ctx, t.ElemType)
	cp.Base = DupType(ctx, t.Base)
	cp.Ret = DupType(ctx, t.Ret)
	if t.Fields != nil {
		cp.Fields = make([]*StructTypeField, len(t.Fields))
		for i, f := range t.Fields {
			fcp := *f
			fcp.Type = DupType(ctx, f.Type)
			cp.Fields[i] = &fcp
		}
	}
	if t.Args != nil {
		cp.Args = make([]*FuncTypeArg, len(t.Args))
		for i, a := range t.Args {
			acp := *a
			acp.Type = DupType(ctx, a.Type)
			cp.Args[i] = &acp
		}
	}
	return &cp
}

// ArrayTypeRemoveBounders nulls out bounder closures recursively -- in this
// translation there are no separate bounder-closure nodes attached to array types (the
// Bound expression itself is retained or dropped), so this walks the type tree and
// drops every Bound, matching the spec's "null out bounder closures recursively" for
// the one case (array types) that carries one.
func ArrayTypeRemoveBounders(t *Type) {
	if t == nil {
		return
	}
	switch t.Kind {
	case TArray:
		t.Bound = nil
		ArrayTypeRemoveBounders(t.ElemType)
	case TStruct:
		for _, f := range t.Fields {
			ArrayTypeRemoveBounders(f.Type)
		}
	}
}
