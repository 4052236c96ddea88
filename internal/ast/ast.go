// Package ast implements the Poke abstract syntax tree (spec §3.2, §4.7): a sum-typed
// tree of program, expression, type, declaration and statement nodes produced by
// internal/parser and mutated in place by internal/compiler's pass pipeline.
//
// The source keeps every node alive via manual reference counting and a visit-set
// guarding recursive frees (spec §3.2 "Sharing"). Go already provides a tracing
// collector that scans interior pointers precisely, so a second, hand-rolled refcount
// on top of it would only duplicate bookkeeping the runtime already does for free and
// risks the double-free/use-after-free bugs refcounting exists to avoid in the source
// language. This is the explicit translation spec §9 invites ("Implementers may prefer
// a unique-owner tree... cross-links are then weak"): Node trees here are ordinary
// Go-GC-managed pointer graphs, UID remains (for stable identity in error messages and
// debug dumps), and the VAR -> DECL cross-link (Var.Decl) is the one weak-in-spirit
// link -- it does not own its target, the declaring Decl does.
package ast

// Pos is one point in source text.
type Pos struct {
	Line, Col int
}

// Loc is a half-open source range.
type Loc struct {
	Start, End Pos
}

// Context is the shared per-compile context every node carries a pointer to (spec
// §3.2 "a shared ast context pointer"): it hands out stable UIDs and tracks the
// compile's alien-token ("lexical cuckolding") callback, if any.
type Context struct {
	nextUID int

	// AlienTokenFn resolves a `$<...>` delimited alien token to a literal value.
	// The parser and lexer in this module do not consult it.
	AlienTokenFn func(text string) (Node, error)
}

// NewContext creates a fresh per-compile AST context.
func NewContext() *Context { return &Context{} }

func (c *Context) uid() int {
	c.nextUID++
	return c.nextUID
}

// Node is implemented by every AST node variant (spec §3.2).
type Node interface {
	UID() int
	Loc() Loc
	SetLoc(Loc)
}

// base is embedded by every concrete node, providing UID/Loc/Ctx bookkeeping (spec
// §3.2 "stable numeric uid", "shared ast context pointer", "source-location range").
type base struct {
	ctx *Context
	uid int
	loc Loc
}

func newBase(ctx *Context) base {
	return base{ctx: ctx, uid: ctx.uid()}
}

func (b *base) UID() int      { return b.uid }
func (b *base) Loc() Loc      { return b.loc }
func (b *base) SetLoc(l Loc)  { b.loc = l }
func (b *base) Context() *Context { return b.ctx }

// exprMeta is embedded by every expression/terminal node: the attached type (filled in
// by the typify passes) and whether the node is a compile-time literal (spec §3.2
// "for expression/terminal nodes -- an attached type node and a literal_p flag").
type exprMeta struct {
	Type    *Type
	Literal bool
}

func (e *exprMeta) GetType() *Type   { return e.Type }
func (e *exprMeta) SetType(t *Type)  { e.Type = t }
func (e *exprMeta) LiteralP() bool   { return e.Literal }
func (e *exprMeta) SetLiteral(b bool) { e.Literal = b }

// Expr is implemented by every expression-producing node: it carries a Node plus the
// typed, literal-flagged metadata every expression/terminal node attaches (spec §3.2).
type Expr interface {
	Node
	GetType() *Type
	SetType(*Type)
	LiteralP() bool
	SetLiteral(bool)
}

// Chain links sibling nodes the way PKL_AST_CHAIN does (spec §3.2 "Chain links thread
// sibling nodes"). It is a plain slice wrapper in this translation -- a slice already
// gives O(1) length and indexed access, the two operations the pass runner needs.
func ChainLength[T any](chain []T) int { return len(chain) }
