package ast

// DeclKind distinguishes the three namespaces a Decl can occupy (spec make_decl(kind,
// name, initial, source)).
type DeclKind uint8

const (
	DeclVar DeclKind = iota
	DeclFunc
	DeclType
	DeclUnit // enum/unit constant.
)

// Src names the source buffer or file a declaration came from (spec make_src(filename)).
type Src struct {
	base
	Filename string
}

func MakeSrc(ctx *Context, filename string) *Src {
	return &Src{base: newBase(ctx), Filename: filename}
}

// Decl is a named declaration entered into the compile-time environment: a variable,
// a function, or a type alias (spec make_decl). Back/Over record the (back, over)
// slot the declaring frame registered it at, resolved during the gen pass (spec §4.9
// "gen... Name resolution of variables into (back, over) pairs is completed here").
type Decl struct {
	base

	Kind    DeclKind
	Name    string
	Initial Expr  // variable initializer, or a Lambda for a function declaration.
	Typ     *Type // the declared type, for DeclType.
	Source  *Src

	Over int // slot index within its defining frame.

	// Renamed marks a declaration whose identifier has been blanked out by the
	// parser's error-recovery rename-out (spec §4.8 "Error recovery": declarations
	// made during a failed parse are renamed so they cannot leak); a renamed Decl is
	// unreachable by name but its slot still exists.
	Renamed bool
}

func MakeDecl(ctx *Context, kind DeclKind, name string, initial Expr, source *Src) *Decl {
	return &Decl{base: newBase(ctx), Kind: kind, Name: name, Initial: initial, Source: source}
}

// FuncArg is one formal parameter of a Func (spec make_func_arg(type, id, initial)).
type FuncArg struct {
	base
	Type     *Type
	Name     string
	Initial  Expr // default value, or nil.
	Varargs  bool
}

func MakeFuncArg(ctx *Context, t *Type, name string, initial Expr) *FuncArg {
	return &FuncArg{base: newBase(ctx), Type: t, Name: name, Initial: initial}
}

// Func is a function (or method) definition: a return type, formal arguments and a
// body (spec make_func(ret, args, body)).
type Func struct {
	base

	Name string // non-empty for a named method.
	Ret  *Type
	Args []*FuncArg
	Body *CompStmt

	// FuncType is filled in by typify1 from Ret/Args.
	FuncType *Type

	// Entry is filled in by gen: the Program instruction index the function's body
	// starts at.
	Entry int
}

func MakeFunc(ctx *Context, ret *Type, args []*FuncArg, body *CompStmt) *Func {
	return &Func{base: newBase(ctx), Ret: ret, Args: args, Body: body}
}

// Program is the root node of a parsed Poke program: a sequence of top-level
// declarations and statements (spec make_program(elems)).
type Program struct {
	base
	Elems []Node
}

func MakeProgram(ctx *Context, elems []Node) *Program {
	return &Program{base: newBase(ctx), Elems: elems}
}
