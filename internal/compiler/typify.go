package compiler

import (
	"fmt"

	"github.com/smoynes/poke/internal/ast"
)

// Typify implements spec §4.9's typify2 (a fixpoint re-typing pass run after Resolve's
// leaf-level typify1 and after trans1/trans2 desugaring): it assigns a type to every
// non-terminal expression node, enforcing the type-equality and promotability rules of
// §4.7, and folds promo's "insert explicit casts where promotion is required" into the
// same walk -- a mismatched-width/signedness operand pair gets an ast.Cast wrapped
// around the narrower/unsigned side rather than a separate tree pass, since by
// construction there is exactly one place (here) that discovers the mismatch.
func Typify(sc *scope, e ast.Expr) error {
	switch v := e.(type) {
	case *ast.Integer, *ast.StringLit, *ast.Var:
		return nil // already typed by Resolve.
	case *ast.OffsetLit:
		return Typify(sc, v.Magnitude)
	case *ast.BinaryExp:
		return typifyBinary(sc, v)
	case *ast.UnaryExp:
		if err := Typify(sc, v.Operand); err != nil {
			return err
		}
		v.SetType(v.Operand.GetType())
		v.SetLiteral(v.Operand.LiteralP())
		if v.Op == ast.OpNot {
			v.SetType(ast.MakeIntegralType(sc.ctx, 32, true))
		}
		return nil
	case *ast.CondExp:
		if err := Typify(sc, v.Cond); err != nil {
			return err
		}
		if err := Typify(sc, v.Then); err != nil {
			return err
		}
		if err := Typify(sc, v.Else); err != nil {
			return err
		}
		t, err := unify(sc, v.Then.GetType(), v.Else.GetType())
		if err != nil {
			return fmt.Errorf("compiler: typify: conditional branches: %w", err)
		}
		v.SetType(t)
		coerce(sc, &v.Then, t)
		coerce(sc, &v.Else, t)
		return nil
	case *ast.IncrDecr:
		if err := Typify(sc, v.Operand); err != nil {
			return err
		}
		v.SetType(v.Operand.GetType())
		return nil
	case *ast.Cast:
		if err := Typify(sc, v.Operand); err != nil {
			return err
		}
		if !ast.TypePromoteableP(v.Operand.GetType(), v.To, true) && !ast.TypeEqual(v.Operand.GetType(), v.To) {
			return fmt.Errorf("compiler: typify: cannot cast %s to %s", v.Operand.GetType(), v.To)
		}
		v.SetType(v.To)
		v.SetLiteral(v.Operand.LiteralP())
		return nil
	case *ast.Isa:
		if err := Typify(sc, v.Operand); err != nil {
			return err
		}
		v.SetType(ast.MakeIntegralType(sc.ctx, 32, true))
		return nil
	case *ast.Cons:
		if err := Typify(sc, v.Value); err != nil {
			return err
		}
		v.SetType(v.Of)
		return nil
	case *ast.Map:
		if v.IOS != nil {
			if err := Typify(sc, v.IOS); err != nil {
				return err
			}
		}
		if err := Typify(sc, v.Offset); err != nil {
			return err
		}
		v.SetType(v.Of)
		return nil
	case *ast.Indexer:
		if err := Typify(sc, v.Operand); err != nil {
			return err
		}
		if err := Typify(sc, v.Index); err != nil {
			return err
		}
		ot := v.Operand.GetType()
		if ot == nil || ot.Kind != ast.TArray {
			return fmt.Errorf("compiler: typify: indexer operand is not an array")
		}
		v.SetType(ot.ElemType)
		return nil
	case *ast.StructRef:
		if err := Typify(sc, v.Operand); err != nil {
			return err
		}
		ot := v.Operand.GetType()
		ft, ok := ast.GetStructTypeField(ot, v.Field)
		if !ok {
			return fmt.Errorf("compiler: typify: no such field %q in %s", v.Field, ot)
		}
		v.SetType(ft.Type)
		return nil
	case *ast.Funcall:
		if err := Typify(sc, v.Callee); err != nil {
			return err
		}
		for _, a := range v.Args {
			if err := Typify(sc, a.Value); err != nil {
				return err
			}
		}
		ct := v.Callee.GetType()
		if ct != nil && ct.Kind == ast.TFunction {
			v.SetType(ct.Ret)
		} else {
			v.SetType(ast.MakeAnyType(sc.ctx))
		}
		return nil
	case *ast.ArrayLit:
		for _, init := range v.Inits {
			if err := Typify(sc, init.Value); err != nil {
				return err
			}
		}
		if v.Bound != nil {
			if err := Typify(sc, v.Bound); err != nil {
				return err
			}
		}
		v.SetType(ast.MakeArrayType(sc.ctx, v.ElemType, v.Bound))
		return nil
	case *ast.StructLit:
		for _, f := range v.Fields {
			if err := Typify(sc, f.Value); err != nil {
				return err
			}
		}
		if v.Of != nil && v.Of.Kind == ast.TStruct && v.Of.Name == ast.ExceptionTypeName {
			v.Of = sc.exceptionType
		}
		v.SetType(v.Of)
		return nil
	case *ast.Format:
		for _, a := range v.Args {
			if err := Typify(sc, a.Value); err != nil {
				return err
			}
		}
		v.SetType(ast.MakeStringType(sc.ctx))
		return nil
	case *ast.Builtin:
		for _, a := range v.Args {
			if err := Typify(sc, a); err != nil {
				return err
			}
		}
		v.SetType(ast.MakeAnyType(sc.ctx))
		return nil
	case *ast.Trimmer:
		if err := Typify(sc, v.Operand); err != nil {
			return err
		}
		if v.From != nil {
			if err := Typify(sc, v.From); err != nil {
				return err
			}
		}
		if v.To != nil {
			if err := Typify(sc, v.To); err != nil {
				return err
			}
		}
		if v.Addend != nil {
			if err := Typify(sc, v.Addend); err != nil {
				return err
			}
		}
		v.SetType(v.Operand.GetType())
		return nil
	case *ast.Lambda:
		return TypifyFunc(sc, v.Func)
	case *ast.AsmExp:
		return nil
	default:
		return fmt.Errorf("compiler: typify: unsupported expression %T", e)
	}
}

// TypifyFunc assigns v.Func.FuncType from its declared return/argument types (typify1
// "assign types to every expression node" applied to a function literal's signature),
// then extends the typify2 walk over the function's body. The body's *ast.Var nodes
// are already typed directly by Resolve (each carries its declaration's type on the
// node itself), so this does not need its own pushed scope -- sc is only a source of
// ctx/exceptionType for synthesizing new Type nodes, unchanged across the call.
func TypifyFunc(sc *scope, f *ast.Func) error {
	args := make([]*ast.FuncTypeArg, len(f.Args))
	for i, a := range f.Args {
		args[i] = &ast.FuncTypeArg{Type: a.Type}
	}
	f.FuncType = ast.MakeFunctionType(sc.ctx, f.Ret, args)
	for _, sub := range f.Body.Stmts {
		if err := TypifyStmt(sc, sub); err != nil {
			return err
		}
	}
	return nil
}

// typifyBinary types a BinaryExp, inserting promotion casts per the integral-promote
// rule (spec §4.7 type_integral_promote) unless the operator is a bit-concatenation,
// comparison, or boolean connective, each of which has its own result-typing rule.
func typifyBinary(sc *scope, v *ast.BinaryExp) error {
	if err := Typify(sc, v.Left); err != nil {
		return err
	}
	if err := Typify(sc, v.Right); err != nil {
		return err
	}

	switch v.Op {
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpGt, ast.OpLe, ast.OpGe, ast.OpAnd, ast.OpOr, ast.OpIn:
		v.SetType(ast.MakeIntegralType(sc.ctx, 32, true))
		return nil
	case ast.OpBConcat:
		v.SetType(v.Left.GetType())
		return nil
	}

	lt, rt := v.Left.GetType(), v.Right.GetType()

	if lt.Kind == ast.TOffset || rt.Kind == ast.TOffset {
		v.SetType(lt)
		return nil
	}

	if lt.Kind == ast.TString || rt.Kind == ast.TString {
		v.SetType(ast.MakeStringType(sc.ctx))
		return nil
	}

	if lt.Kind != ast.TIntegral || rt.Kind != ast.TIntegral {
		return fmt.Errorf("compiler: typify: non-integral operand to %v", v.Op)
	}

	pt := ast.TypeIntegralPromote(sc.ctx, lt, rt)
	coerce(sc, &v.Left, pt)
	coerce(sc, &v.Right, pt)
	v.SetType(pt)
	v.SetLiteral(v.Left.LiteralP() && v.Right.LiteralP())

	return nil
}

// coerce wraps *e in an ast.Cast to t (spec §4.9 "promo: insert explicit casts where
// promotion is required") unless it is already exactly t.
func coerce(sc *scope, e *ast.Expr, t *ast.Type) {
	if ast.TypeEqual((*e).GetType(), t) {
		return
	}
	cast := ast.MakeCast0(sc.ctx, *e, t)
	cast.SetType(t)
	cast.SetLiteral((*e).LiteralP())
	*e = cast
}

// unify finds a common type two conditional-expression branches can both coerce to
// (the wider/signed integral promotion for integrals, exact equality otherwise).
func unify(sc *scope, a, b *ast.Type) (*ast.Type, error) {
	if ast.TypeEqual(a, b) {
		return a, nil
	}
	if a.Kind == ast.TIntegral && b.Kind == ast.TIntegral {
		return ast.TypeIntegralPromote(sc.ctx, a, b), nil
	}
	return nil, fmt.Errorf("incompatible types %s and %s", a, b)
}

// TypifyStmt extends the expression-level Typify walk over statements: an assignment's
// value is coerced to the l-value's type and the l-value is checked; conditions and
// return values are typed but not checked against an integral type or the enclosing
// function's return type.
func TypifyStmt(sc *scope, s ast.Stmt) error {
	switch v := s.(type) {
	case declStmtNode:
		d := v.Decl()
		if d.Initial != nil {
			return Typify(sc, d.Initial)
		}
		return nil
	case *ast.CompStmt:
		for _, sub := range v.Stmts {
			if err := TypifyStmt(sc, sub); err != nil {
				return err
			}
		}
		return nil
	case *ast.AssStmt:
		if err := Typify(sc, v.Value); err != nil {
			return err
		}
		if err := Typify(sc, v.LValue); err != nil {
			return err
		}
		if !ast.LValueP(v.LValue) {
			return fmt.Errorf("compiler: typify: assignment target is not an lvalue")
		}
		coerce(sc, &v.Value, v.LValue.GetType())
		return nil
	case *ast.IfStmt:
		if err := Typify(sc, v.Cond); err != nil {
			return err
		}
		if err := TypifyStmt(sc, v.Then); err != nil {
			return err
		}
		if v.Else != nil {
			return TypifyStmt(sc, v.Else)
		}
		return nil
	case *ast.LoopStmt:
		if v.Cond != nil {
			if err := Typify(sc, v.Cond); err != nil {
				return err
			}
		}
		if v.Head != nil {
			if err := TypifyStmt(sc, v.Head); err != nil {
				return err
			}
		}
		if v.Tail != nil {
			if err := TypifyStmt(sc, v.Tail); err != nil {
				return err
			}
		}
		return TypifyStmt(sc, v.Body)
	case *ast.ReturnStmt:
		if v.Value != nil {
			return Typify(sc, v.Value)
		}
		return nil
	case *ast.ExpStmt:
		return Typify(sc, v.Value)
	case *ast.RaiseStmt:
		if v.Exp != nil {
			return Typify(sc, v.Exp)
		}
		return nil
	case *ast.TryStmt:
		if err := TypifyStmt(sc, v.Body); err != nil {
			return err
		}
		if v.Kind == ast.TryUntil {
			return Typify(sc, v.Exp)
		}
		return TypifyStmt(sc, v.Handler)
	case *ast.PrintStmt:
		if v.Value != nil {
			if err := Typify(sc, v.Value); err != nil {
				return err
			}
		}
		if v.Fmt != nil {
			for _, a := range v.Fmt.Args {
				if err := Typify(sc, a.Value); err != nil {
					return err
				}
			}
		}
		return nil
	case *ast.NullStmt, *ast.BreakContinueStmt, *ast.AsmStmt:
		return nil
	default:
		return fmt.Errorf("compiler: typify: unsupported statement %T", s)
	}
}
