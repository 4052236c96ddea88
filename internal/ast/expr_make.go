package ast

// Constructors for the expression node variants declared in expr.go (spec §4.7
// make_* family). Named with a trailing "0" where the bare name would collide with a
// type already declared in expr.go (Go has one namespace for types and values at
// package scope).

func MakeInteger0(ctx *Context, value uint64, size uint8, signed bool) *Integer {
	return &Integer{base: newBase(ctx), Value: value, Size: size, Signed: signed}
}

func MakeStringLit0(ctx *Context, value string) *StringLit {
	return &StringLit{base: newBase(ctx), Value: value}
}

func MakeOffsetLit0(ctx *Context, magnitude Expr, unit uint64) *OffsetLit {
	return &OffsetLit{base: newBase(ctx), Magnitude: magnitude, Unit: unit}
}

func MakeVar0(ctx *Context, name string) *Var {
	return &Var{base: newBase(ctx), Name: name}
}

func MakeBinaryExp0(ctx *Context, op BinOp, left, right Expr) *BinaryExp {
	return &BinaryExp{base: newBase(ctx), Op: op, Left: left, Right: right}
}

func MakeUnaryExp0(ctx *Context, op UnOp, operand Expr) *UnaryExp {
	return &UnaryExp{base: newBase(ctx), Op: op, Operand: operand}
}

func MakeCondExp0(ctx *Context, cond, then, els Expr) *CondExp {
	return &CondExp{base: newBase(ctx), Cond: cond, Then: then, Else: els}
}

func MakeIncrDecr0(ctx *Context, operand Expr, incr, post bool) *IncrDecr {
	return &IncrDecr{base: newBase(ctx), Operand: operand, Incr: incr, Post: post}
}

func MakeCast0(ctx *Context, operand Expr, to *Type) *Cast {
	return &Cast{base: newBase(ctx), Operand: operand, To: to}
}

func MakeIsa0(ctx *Context, operand Expr, of *Type) *Isa {
	return &Isa{base: newBase(ctx), Operand: operand, Of: of}
}

func MakeCons0(ctx *Context, of *Type, value Expr) *Cons {
	return &Cons{base: newBase(ctx), Of: of, Value: value}
}

func MakeMap0(ctx *Context, strict bool, of *Type, ios, offset Expr) *Map {
	return &Map{base: newBase(ctx), Strict: strict, Of: of, IOS: ios, Offset: offset}
}

func MakeFuncall0(ctx *Context, callee Expr, args []*FuncallArg) *Funcall {
	return &Funcall{base: newBase(ctx), Callee: callee, Args: args}
}

func MakeArrayLit0(ctx *Context, etype *Type, bound Expr, inits []*ArrayInitializer) *ArrayLit {
	return &ArrayLit{base: newBase(ctx), ElemType: etype, Bound: bound, Inits: inits}
}

func MakeStructLit0(ctx *Context, of *Type, fields []*StructFieldInit) *StructLit {
	return &StructLit{base: newBase(ctx), Of: of, Fields: fields}
}

func MakeStructRef0(ctx *Context, operand Expr, field string) *StructRef {
	return &StructRef{base: newBase(ctx), Operand: operand, Field: field}
}

func MakeIndexer0(ctx *Context, operand, index Expr) *Indexer {
	return &Indexer{base: newBase(ctx), Operand: operand, Index: index}
}

func MakeTrimmer0(ctx *Context, operand, from, to, addend Expr) *Trimmer {
	return &Trimmer{base: newBase(ctx), Operand: operand, From: from, To: to, Addend: addend}
}

func MakeLambda0(ctx *Context, fn *Func) *Lambda {
	return &Lambda{base: newBase(ctx), Func: fn}
}

func MakeFormat0(ctx *Context, template string, args []*FormatArg) *Format {
	return &Format{base: newBase(ctx), Template: template, Args: args}
}

func MakeBuiltin0(ctx *Context, name string, args []Expr) *Builtin {
	return &Builtin{base: newBase(ctx), Name: name, Args: args}
}

func MakeAsmExp0(ctx *Context, template string) *AsmExp {
	return &AsmExp{base: newBase(ctx), Template: template}
}

func MakeFormatArg0(ctx *Context, value Expr) *FormatArg {
	return &FormatArg{base: newBase(ctx), Value: value}
}

func MakeArrayInitializer0(ctx *Context, index, value Expr) *ArrayInitializer {
	return &ArrayInitializer{base: newBase(ctx), Index: index, Value: value}
}

func MakeStructFieldInit0(ctx *Context, name string, value Expr) *StructFieldInit {
	return &StructFieldInit{base: newBase(ctx), Name: name, Value: value}
}

func MakeFuncallArg0(ctx *Context, name string, value Expr) *FuncallArg {
	return &FuncallArg{base: newBase(ctx), Name: name, Value: value}
}
