package ast

// BinOp enumerates the binary operation codes an expression node carries (spec §3.2
// "expressions (with an operation code and 1-3 operand sub-trees)").
type BinOp uint8

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpCeilDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpAnd // &&
	OpOr  // ||
	OpBAnd
	OpBOr
	OpBXor
	OpShl
	OpShr
	OpBConcat // a ::: b
	OpIn
)

// UnOp enumerates unary operations.
type UnOp uint8

const (
	OpNeg UnOp = iota
	OpNot
	OpBNot
	OpPos
)

// Integer is an integral literal (spec §3.2, §4.7 make_integer). Value holds the raw
// two's-complement bits right-justified in size bits.
type Integer struct {
	base
	exprMeta
	Value  uint64
	Size   uint8
	Signed bool
}

// StringLit is a string literal (spec make_string).
type StringLit struct {
	base
	exprMeta
	Value string
}

// OffsetLit is an offset literal `magnitude#unit` (spec make_offset(mag, unit)).
type OffsetLit struct {
	base
	exprMeta
	Magnitude Expr
	Unit      uint64
}

// Var is a variable reference, resolved by the gen pass into a (back, over) pair
// (spec make_var(name, decl, back, over)).
type Var struct {
	base
	exprMeta
	Name string
	Decl *Decl // resolved declaration; weak in spirit (Decl owns identity, not Var).
	Back int
	Over int
}

// BinaryExp is a binary operator expression (spec make_binary_exp(op, l, r)).
type BinaryExp struct {
	base
	exprMeta
	Op          BinOp
	Left, Right Expr
}

// UnaryExp is a unary operator expression (spec make_unary_exp).
type UnaryExp struct {
	base
	exprMeta
	Op      UnOp
	Operand Expr
}

// CondExp is the ternary conditional `c ? a : b` (spec make_cond_exp/make_ternary_exp).
type CondExp struct {
	base
	exprMeta
	Cond, Then, Else Expr
}

// IncrDecr is a pre/post increment or decrement (spec make_incrdecr).
type IncrDecr struct {
	base
	exprMeta
	Operand Expr
	Incr    bool // true = ++, false = --.
	Post    bool
}

// Cast converts an expression to a target type (spec make_cast).
type Cast struct {
	base
	exprMeta
	Operand Expr
	To      *Type
}

// Isa tests an expression's runtime type (spec make_isa).
type Isa struct {
	base
	exprMeta
	Operand Expr
	Of      *Type
}

// Cons constructs a value of a given type from an initializer expression (spec
// make_cons(type, value)).
type Cons struct {
	base
	exprMeta
	Of    *Type
	Value Expr
}

// Map evaluates an expression as a mapped value at a bit-offset in an IO space (spec
// make_map(strict, type, ios, offset)).
type Map struct {
	base
	exprMeta
	Strict bool
	Of     *Type
	IOS    Expr // nil uses the current IO space.
	Offset Expr
}

// FuncallArg is one actual argument of a Funcall (spec make_funcall_arg).
type FuncallArg struct {
	base
	Name  string // non-empty for a named argument.
	Value Expr
}

// Funcall is a function/closure call (spec make_funcall).
type Funcall struct {
	base
	exprMeta
	Callee Expr
	Args   []*FuncallArg
}

// ArrayInitializer is one element initializer of an ArrayLit, with an optional
// explicit index (spec make_array_initializer(index, exp)).
type ArrayInitializer struct {
	base
	Index Expr // nil for positional initializers.
	Value Expr
}

// ArrayLit is an array literal `T[N] { ... }` (spec make_array(nelem, ninit, inits)).
type ArrayLit struct {
	base
	exprMeta
	ElemType *Type
	Bound    Expr
	Inits    []*ArrayInitializer
}

// StructFieldInit is one `name = value` initializer of a StructLit (spec make_struct_field).
type StructFieldInit struct {
	base
	Name  string
	Value Expr
}

// StructLit is a struct literal `TypeName { name = value, ... }` (spec make_struct).
type StructLit struct {
	base
	exprMeta
	Of     *Type
	Fields []*StructFieldInit
}

// StructRef is a `.field` struct field access (spec make_struct_ref).
type StructRef struct {
	base
	exprMeta
	Operand Expr
	Field   string
}

// Indexer is an `a[i]` array element access (spec make_indexer).
type Indexer struct {
	base
	exprMeta
	Operand Expr
	Index   Expr
}

// Trimmer is an `a[from:to]` or `a[from:+count]` slice; To and Addend are mutually
// exclusive (spec make_trimmer(entity, from, to, addend) "to XOR addend").
type Trimmer struct {
	base
	exprMeta
	Operand    Expr
	From       Expr
	To         Expr
	Addend     Expr
}

// Lambda is an anonymous function literal (spec make_lambda).
type Lambda struct {
	base
	exprMeta
	Func *Func
}

// FormatArg is one `%v` substitution argument of a Format (printf-style) expression.
type FormatArg struct {
	base
	Value Expr
}

// Format is a printf-style format-string expression (spec make_format/make_format_arg).
type Format struct {
	base
	exprMeta
	Template string
	Args     []*FormatArg
}

// Builtin is a call to a compiler intrinsic (spec make_builtin), e.g. the mapping
// primitives (`get_ios`, `remap`, `iosize`, ...) that do not have ordinary Poke call
// syntax.
type Builtin struct {
	base
	exprMeta
	Name string
	Args []Expr
}

// AsmExp is an inline-assembly expression (spec make_asm_exp): the compiler splices
// the given PVM routine text directly, typed as given.
type AsmExp struct {
	base
	exprMeta
	Template string
}
