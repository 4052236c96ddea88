package compiler

import "github.com/smoynes/poke/internal/ast"

// Fold implements spec §4.9's fold phase: compile-time constant folding for binary
// and unary operators over literal integer operands, run after typify2 so folding
// already sees promoted, common-width operands. Folding returns a replacement
// expression (itself, if no fold applies) so callers splice it back into the parent's
// child slot. Per spec §4.9 "integer overflow during fold is not a compile-time
// error", arithmetic here simply wraps at the result's declared size/signedness --
// identically to the non-overflow-checked VM instructions (addi/subi/muli) that would
// otherwise have executed it at runtime.
func Fold(e ast.Expr) ast.Expr {
	switch v := e.(type) {
	case *ast.UnaryExp:
		v.Operand = Fold(v.Operand)
		if lit, ok := v.Operand.(*ast.Integer); ok {
			if folded, ok := foldUnary(v, lit); ok {
				return folded
			}
		}
		return v
	case *ast.BinaryExp:
		v.Left = Fold(v.Left)
		v.Right = Fold(v.Right)
		ll, lok := v.Left.(*ast.Integer)
		rl, rok := v.Right.(*ast.Integer)
		if lok && rok {
			if folded, ok := foldBinary(v, ll, rl); ok {
				return folded
			}
		}
		return v
	case *ast.CondExp:
		v.Cond = Fold(v.Cond)
		v.Then = Fold(v.Then)
		v.Else = Fold(v.Else)
		if c, ok := v.Cond.(*ast.Integer); ok {
			if c.Value != 0 {
				return v.Then
			}
			return v.Else
		}
		return v
	case *ast.Cast:
		v.Operand = Fold(v.Operand)
		if lit, ok := v.Operand.(*ast.Integer); ok && v.To.Kind == ast.TIntegral {
			folded := ast.MakeInteger0(lit.Context(), lit.Value, v.To.IntSize, v.To.IntSigned)
			folded.SetLiteral(true)
			folded.SetType(v.To)
			return truncate(folded)
		}
		return v
	case *ast.Lambda:
		for _, sub := range v.Func.Body.Stmts {
			FoldStmt(sub)
		}
		return v
	default:
		return e
	}
}

// FoldStmt walks Fold over every expression reachable from a statement tree,
// splicing folded replacements back into place.
func FoldStmt(s ast.Stmt) {
	switch v := s.(type) {
	case declStmtNode:
		if d := v.Decl(); d.Initial != nil {
			d.Initial = Fold(d.Initial)
		}
	case *ast.CompStmt:
		for _, sub := range v.Stmts {
			FoldStmt(sub)
		}
	case *ast.AssStmt:
		v.Value = Fold(v.Value)
		v.LValue = Fold(v.LValue)
	case *ast.IfStmt:
		v.Cond = Fold(v.Cond)
		FoldStmt(v.Then)
		if v.Else != nil {
			FoldStmt(v.Else)
		}
	case *ast.LoopStmt:
		if v.Cond != nil {
			v.Cond = Fold(v.Cond)
		}
		if v.Head != nil {
			FoldStmt(v.Head)
		}
		if v.Tail != nil {
			FoldStmt(v.Tail)
		}
		FoldStmt(v.Body)
	case *ast.ReturnStmt:
		if v.Value != nil {
			v.Value = Fold(v.Value)
		}
	case *ast.ExpStmt:
		v.Value = Fold(v.Value)
	case *ast.RaiseStmt:
		if v.Exp != nil {
			v.Exp = Fold(v.Exp)
		}
	case *ast.TryStmt:
		FoldStmt(v.Body)
		if v.Kind == ast.TryUntil {
			v.Exp = Fold(v.Exp)
		} else {
			FoldStmt(v.Handler)
		}
	case *ast.PrintStmt:
		if v.Value != nil {
			v.Value = Fold(v.Value)
		}
		if v.Fmt != nil {
			for _, a := range v.Fmt.Args {
				a.Value = Fold(a.Value)
			}
		}
	}
}

func truncate(i *ast.Integer) *ast.Integer {
	if i.Size >= 64 {
		return i
	}
	mask := uint64(1)<<i.Size - 1
	v := i.Value & mask
	if i.Signed && v&(uint64(1)<<(i.Size-1)) != 0 {
		v |= ^mask
	}
	i.Value = v
	return i
}

func foldUnary(v *ast.UnaryExp, lit *ast.Integer) (*ast.Integer, bool) {
	ctx := lit.Context()
	switch v.Op {
	case ast.OpNeg:
		return truncate(ast.MakeInteger0(ctx, uint64(-int64(lit.Value)), lit.Size, lit.Signed)), true
	case ast.OpBNot:
		return truncate(ast.MakeInteger0(ctx, ^lit.Value, lit.Size, lit.Signed)), true
	case ast.OpNot:
		b := uint64(0)
		if lit.Value == 0 {
			b = 1
		}
		return ast.MakeInteger0(ctx, b, 32, true), true
	case ast.OpPos:
		return lit, true
	}
	return nil, false
}

func foldBinary(v *ast.BinaryExp, l, r *ast.Integer) (ast.Expr, bool) {
	ctx := l.Context()
	size, signed := l.Size, l.Signed

	asSigned := func(x uint64, size uint8) int64 {
		shift := 64 - size
		return int64(x<<shift) >> shift
	}

	switch v.Op {
	case ast.OpAdd:
		return truncate(ast.MakeInteger0(ctx, l.Value+r.Value, size, signed)), true
	case ast.OpSub:
		return truncate(ast.MakeInteger0(ctx, l.Value-r.Value, size, signed)), true
	case ast.OpMul:
		return truncate(ast.MakeInteger0(ctx, l.Value*r.Value, size, signed)), true
	case ast.OpDiv:
		if r.Value == 0 {
			return nil, false // deferred to the runtime E_div_by_zero check.
		}
		if signed {
			return truncate(ast.MakeInteger0(ctx, uint64(asSigned(l.Value, size)/asSigned(r.Value, size)), size, signed)), true
		}
		return truncate(ast.MakeInteger0(ctx, l.Value/r.Value, size, signed)), true
	case ast.OpMod:
		if r.Value == 0 {
			return nil, false
		}
		if signed {
			return truncate(ast.MakeInteger0(ctx, uint64(asSigned(l.Value, size)%asSigned(r.Value, size)), size, signed)), true
		}
		return truncate(ast.MakeInteger0(ctx, l.Value%r.Value, size, signed)), true
	case ast.OpBAnd:
		return truncate(ast.MakeInteger0(ctx, l.Value&r.Value, size, signed)), true
	case ast.OpBOr:
		return truncate(ast.MakeInteger0(ctx, l.Value|r.Value, size, signed)), true
	case ast.OpBXor:
		return truncate(ast.MakeInteger0(ctx, l.Value^r.Value, size, signed)), true
	case ast.OpShl:
		return truncate(ast.MakeInteger0(ctx, l.Value<<r.Value, size, signed)), true
	case ast.OpShr:
		return truncate(ast.MakeInteger0(ctx, l.Value>>r.Value, size, signed)), true
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpGt, ast.OpLe, ast.OpGe:
		var c int
		if signed {
			la, ra := asSigned(l.Value, size), asSigned(r.Value, size)
			switch {
			case la < ra:
				c = -1
			case la > ra:
				c = 1
			}
		} else {
			switch {
			case l.Value < r.Value:
				c = -1
			case l.Value > r.Value:
				c = 1
			}
		}
		accept := map[ast.BinOp]func(int) bool{
			ast.OpEq: func(c int) bool { return c == 0 },
			ast.OpNe: func(c int) bool { return c != 0 },
			ast.OpLt: func(c int) bool { return c < 0 },
			ast.OpGt: func(c int) bool { return c > 0 },
			ast.OpLe: func(c int) bool { return c <= 0 },
			ast.OpGe: func(c int) bool { return c >= 0 },
		}[v.Op]
		b := uint64(0)
		if accept(c) {
			b = 1
		}
		return ast.MakeInteger0(ctx, b, 32, true), true
	}
	return nil, false
}
