package compiler

import (
	"fmt"

	"github.com/smoynes/poke/internal/ast"
)

// Resolve implements spec §4.9's anal1 (declaration registration and name resolution
// into (back, over) pairs) together with typify1's leaf-level type stamping -- a
// variable reference's type is simply its declaration's, and a literal's type is
// carried on the literal node itself, so both are naturally produced by the same
// top-down walk that builds scope.
func Resolve(top *scope, n ast.Node) error {
	switch v := n.(type) {
	case *ast.Program:
		for _, e := range v.Elems {
			if err := resolveTopElem(top, e); err != nil {
				return err
			}
		}
		return nil
	case ast.Stmt:
		return resolveStmt(top, v)
	case ast.Expr:
		return resolveExpr(top, v)
	default:
		return fmt.Errorf("compiler: resolve: unsupported node %T", n)
	}
}

func resolveTopElem(sc *scope, n ast.Node) error {
	if ds, ok := n.(declStmtNode); ok {
		return resolveDecl(sc, ds)
	}
	if s, ok := n.(ast.Stmt); ok {
		return resolveStmt(sc, s)
	}
	return fmt.Errorf("compiler: unsupported top-level element %T", n)
}

// declStmtNode mirrors internal/parser's declStmt shape: a *ast.Decl wrapped so it can
// occupy a Stmt slot. The compiler only needs the wrapped Decl, so it recovers it via
// this narrow interface rather than importing internal/parser (which would invert the
// parser -> compiler dependency).
type declStmtNode interface {
	ast.Node
	Decl() *ast.Decl
}

func resolveDecl(sc *scope, ds declStmtNode) error {
	d := ds.Decl()
	if d.Initial != nil {
		if err := resolveExpr(sc, d.Initial); err != nil {
			return err
		}
	}
	sc.declare(d.Name, d)
	if d.Typ == nil && d.Initial != nil {
		d.Typ = d.Initial.GetType()
	}
	return nil
}

func resolveStmt(sc *scope, s ast.Stmt) error {
	switch v := s.(type) {
	case declStmtNode:
		return resolveDecl(sc, v)
	case *ast.CompStmt:
		inner := pushScope(sc)
		for _, sub := range v.Stmts {
			if err := resolveStmt(inner, sub); err != nil {
				return err
			}
		}
		return nil
	case *ast.AssStmt:
		if err := resolveExpr(sc, v.Value); err != nil {
			return err
		}
		return resolveExpr(sc, v.LValue)
	case *ast.IfStmt:
		if err := resolveExpr(sc, v.Cond); err != nil {
			return err
		}
		if err := resolveStmt(sc, v.Then); err != nil {
			return err
		}
		if v.Else != nil {
			return resolveStmt(sc, v.Else)
		}
		return nil
	case *ast.LoopStmt:
		if v.Cond != nil {
			if err := resolveExpr(sc, v.Cond); err != nil {
				return err
			}
		}
		return resolveStmt(sc, v.Body)
	case *ast.ReturnStmt:
		if v.Value != nil {
			return resolveExpr(sc, v.Value)
		}
		return nil
	case *ast.ExpStmt:
		return resolveExpr(sc, v.Value)
	case *ast.RaiseStmt:
		if v.Exp != nil {
			return resolveExpr(sc, v.Exp)
		}
		return nil
	case *ast.TryStmt:
		if err := resolveStmt(sc, v.Body); err != nil {
			return err
		}
		if v.Kind == ast.TryUntil {
			return resolveExpr(sc, v.Exp)
		}
		inner := pushScope(sc)
		if v.Arg != "" {
			v.ArgDecl = ast.MakeDecl(sc.ctx, ast.DeclVar, v.Arg, nil, nil)
			v.ArgDecl.Typ = sc.exceptionType
			inner.declare(v.Arg, v.ArgDecl)
		}
		if v.Exp != nil {
			if err := resolveExpr(inner, v.Exp); err != nil {
				return err
			}
		}
		return resolveStmt(inner, v.Handler)
	case *ast.PrintStmt:
		if v.Value != nil {
			if err := resolveExpr(sc, v.Value); err != nil {
				return err
			}
		}
		if v.Fmt != nil {
			for _, a := range v.Fmt.Args {
				if err := resolveExpr(sc, a.Value); err != nil {
					return err
				}
			}
		}
		return nil
	case *ast.NullStmt, *ast.BreakContinueStmt:
		return nil
	default:
		return fmt.Errorf("compiler: resolve: unsupported statement %T", s)
	}
}

func resolveExpr(sc *scope, e ast.Expr) error {
	switch v := e.(type) {
	case *ast.Integer:
		v.SetLiteral(true)
		v.SetType(ast.MakeIntegralType(sc.ctx, v.Size, v.Signed))
		return nil
	case *ast.StringLit:
		v.SetLiteral(true)
		v.SetType(ast.MakeStringType(sc.ctx))
		return nil
	case *ast.OffsetLit:
		if err := resolveExpr(sc, v.Magnitude); err != nil {
			return err
		}
		v.SetLiteral(v.Magnitude.LiteralP())
		v.SetType(ast.MakeOffsetType(sc.ctx, v.Magnitude.GetType(), v.Unit))
		return nil
	case *ast.Var:
		d, back, over, ok := sc.resolve(v.Name)
		if !ok {
			return fmt.Errorf("compiler: undeclared identifier %q", v.Name)
		}
		v.Decl, v.Back, v.Over = d, back, over
		v.SetType(d.Typ)
		return nil
	case *ast.BinaryExp:
		if err := resolveExpr(sc, v.Left); err != nil {
			return err
		}
		return resolveExpr(sc, v.Right)
	case *ast.UnaryExp:
		return resolveExpr(sc, v.Operand)
	case *ast.CondExp:
		if err := resolveExpr(sc, v.Cond); err != nil {
			return err
		}
		if err := resolveExpr(sc, v.Then); err != nil {
			return err
		}
		return resolveExpr(sc, v.Else)
	case *ast.Cast:
		return resolveExpr(sc, v.Operand)
	case *ast.Indexer:
		if err := resolveExpr(sc, v.Operand); err != nil {
			return err
		}
		return resolveExpr(sc, v.Index)
	case *ast.StructRef:
		return resolveExpr(sc, v.Operand)
	case *ast.Funcall:
		if err := resolveExpr(sc, v.Callee); err != nil {
			return err
		}
		for _, a := range v.Args {
			if err := resolveExpr(sc, a.Value); err != nil {
				return err
			}
		}
		return nil
	case *ast.ArrayLit:
		for _, init := range v.Inits {
			if err := resolveExpr(sc, init.Value); err != nil {
				return err
			}
		}
		if v.Bound != nil {
			return resolveExpr(sc, v.Bound)
		}
		return nil
	case *ast.StructLit:
		for _, f := range v.Fields {
			if err := resolveExpr(sc, f.Value); err != nil {
				return err
			}
		}
		return nil
	case *ast.IncrDecr:
		return resolveExpr(sc, v.Operand)
	case *ast.Isa:
		return resolveExpr(sc, v.Operand)
	case *ast.Cons:
		return resolveExpr(sc, v.Value)
	case *ast.Map:
		if v.IOS != nil {
			if err := resolveExpr(sc, v.IOS); err != nil {
				return err
			}
		}
		return resolveExpr(sc, v.Offset)
	case *ast.Format:
		for _, a := range v.Args {
			if err := resolveExpr(sc, a.Value); err != nil {
				return err
			}
		}
		return nil
	case *ast.Builtin:
		for _, a := range v.Args {
			if err := resolveExpr(sc, a); err != nil {
				return err
			}
		}
		return nil
	case *ast.Trimmer:
		if err := resolveExpr(sc, v.Operand); err != nil {
			return err
		}
		if v.From != nil {
			if err := resolveExpr(sc, v.From); err != nil {
				return err
			}
		}
		if v.To != nil {
			if err := resolveExpr(sc, v.To); err != nil {
				return err
			}
		}
		if v.Addend != nil {
			return resolveExpr(sc, v.Addend)
		}
		return nil
	case *ast.Lambda:
		return resolveFunc(sc, v.Func)
	case *ast.AsmExp:
		return nil
	default:
		return fmt.Errorf("compiler: resolve: unsupported expression %T", e)
	}
}

// resolveFunc resolves a function literal's formal arguments into a fresh scope, then
// its body's statements directly within that same scope rather than through
// resolveStmt's *ast.CompStmt case (which would push a second scope the runtime side
// never creates: gen's genFuncDecl folds the preamble's push-env and the body's own
// frame into one, via f.Body.PushesFrame = false). Keeping compile-time scope depth and
// runtime env depth in lockstep here is what makes back/over resolution valid at all.
func resolveFunc(sc *scope, f *ast.Func) error {
	inner := pushScope(sc)
	for _, a := range f.Args {
		d := ast.MakeDecl(sc.ctx, ast.DeclVar, a.Name, a.Initial, nil)
		d.Typ = a.Type
		inner.declare(a.Name, d)
	}
	for _, sub := range f.Body.Stmts {
		if err := resolveStmt(inner, sub); err != nil {
			return err
		}
	}
	return nil
}

