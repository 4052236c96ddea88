package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smoynes/poke/internal/ast"
)

// Lowerer walks a participle concrete syntax tree into internal/ast nodes (spec §4.8
// "the parser builds the AST directly"; here the CST/AST split keeps internal/ast free
// of any parsing-library dependency). One Lowerer is good for one compile: it shares a
// single ast.Context so every node in the resulting tree gets a process-unique UID.
type Lowerer struct {
	Ctx *ast.Context
}

func NewLowerer(ctx *ast.Context) *Lowerer { return &Lowerer{Ctx: ctx} }

// unitTable is the PVM textual-offset-unit vocabulary (spec §4.3, mirrored from
// internal/pvm/offset.go's exported unit constants so the parser need not import the
// runtime package just to recognize a literal's suffix).
var unitTable = map[string]uint64{
	"b": 1, "N": 4, "B": 8,
	"Kb": 1000, "KB": 8000, "Kib": 1024, "KiB": 8192,
	"Mb": 1000000, "MB": 8000000, "Mib": 1048576, "MiB": 8388608,
	"Gb": 1000000000, "GB": 8000000000, "Gib": 1073741824, "GiB": 8589934592,
}

func (l *Lowerer) Program(p *Program) (*ast.Program, error) {
	elems := make([]ast.Node, 0, len(p.Elems))
	for _, s := range p.Elems {
		n, err := l.Stmt(s)
		if err != nil {
			return nil, err
		}
		if n != nil {
			elems = append(elems, n)
		}
	}
	return ast.MakeProgram(l.Ctx, elems), nil
}

func (l *Lowerer) Stmt(s *Stmt) (ast.Stmt, error) {
	switch {
	case s.Var != nil:
		return l.varDecl(s.Var)
	case s.If != nil:
		return l.ifStmt(s.If)
	case s.Loop != nil:
		return l.loopStmt(s.Loop)
	case s.Try != nil:
		return l.tryStmt(s.Try)
	case s.Print != nil:
		return l.printStmt(s.Print)
	case s.Raise != nil:
		var exp ast.Expr
		if s.Raise.Value != nil {
			var err error
			exp, err = l.Expr(s.Raise.Value)
			if err != nil {
				return nil, err
			}
		}
		return ast.MakeRaiseStmt(l.Ctx, exp), nil
	case s.BreakCnt != nil:
		kind := ast.KindBreak
		if *s.BreakCnt == "continue" {
			kind = ast.KindContinue
		}
		return ast.MakeBreakContinueStmt(l.Ctx, kind), nil
	case s.Return != nil:
		var val ast.Expr
		if s.Return.Value != nil {
			var err error
			val, err = l.Expr(s.Return.Value)
			if err != nil {
				return nil, err
			}
		}
		return ast.MakeReturnStmt(l.Ctx, val), nil
	case s.Comp != nil:
		return l.compStmt(s.Comp)
	case s.Null:
		return ast.MakeNullStmt(l.Ctx), nil
	case s.ExpOrAss != nil:
		return l.expOrAss(s.ExpOrAss)
	default:
		return nil, fmt.Errorf("parser: empty statement node")
	}
}

func (l *Lowerer) varDecl(v *VarDecl) (ast.Stmt, error) {
	var init ast.Expr
	if v.Init != nil {
		var err error
		init, err = l.Expr(v.Init)
		if err != nil {
			return nil, err
		}
	}
	decl := ast.MakeDecl(l.Ctx, ast.DeclVar, v.Name, init, nil)
	if v.Type != nil {
		t, err := l.TypeExpr(v.Type)
		if err != nil {
			return nil, err
		}
		decl.Typ = t
	}
	// A declaration statement carries the Decl wrapped in a declStmt so the compiler can
	// register it into scope; the compiler recovers it through its declStmtNode
	// interface (the Decl method).
	return &declStmt{decl: decl}, nil
}

// declStmt adapts an *ast.Decl (which is not itself a Stmt) into the Stmt interface so
// var-declarations can live inside a CompStmt's statement list; the compiler's Resolve
// pass matches it through its declStmtNode interface (any node with a Decl method) and
// registers the wrapped Decl in the current frame.
type declStmt struct{ decl *ast.Decl }

func (d *declStmt) UID() int        { return d.decl.UID() }
func (d *declStmt) Loc() ast.Loc    { return d.decl.Loc() }
func (d *declStmt) SetLoc(loc ast.Loc) { d.decl.SetLoc(loc) }
func (d *declStmt) Decl() *ast.Decl  { return d.decl }

func (l *Lowerer) ifStmt(s *IfStmt) (ast.Stmt, error) {
	cond, err := l.Expr(s.Cond)
	if err != nil {
		return nil, err
	}
	then, err := l.Stmt(s.Then)
	if err != nil {
		return nil, err
	}
	var els ast.Stmt
	if s.Else != nil {
		els, err = l.Stmt(s.Else)
		if err != nil {
			return nil, err
		}
	}
	return ast.MakeIfStmt(l.Ctx, cond, then, els), nil
}

func (l *Lowerer) loopStmt(s *LoopStmt) (ast.Stmt, error) {
	cond, err := l.Expr(s.Cond)
	if err != nil {
		return nil, err
	}
	body, err := l.Stmt(s.Body)
	if err != nil {
		return nil, err
	}
	kind := ast.LoopWhile
	if s.Kind == "until" {
		kind = ast.LoopUntil
	}
	return ast.MakeLoopStmt(l.Ctx, kind, nil, cond, nil, nil, body), nil
}

func (l *Lowerer) compStmt(s *CompStmt) (*ast.CompStmt, error) {
	stmts := make([]ast.Stmt, 0, len(s.Stmts))
	for _, sub := range s.Stmts {
		n, err := l.Stmt(sub)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, n)
	}
	return ast.MakeCompStmt(l.Ctx, stmts), nil
}

func (l *Lowerer) tryStmt(s *TryStmt) (ast.Stmt, error) {
	body, err := l.Stmt(s.Body)
	if err != nil {
		return nil, err
	}
	if s.UntilExp != nil {
		cond, err := l.Expr(s.UntilExp)
		if err != nil {
			return nil, err
		}
		return ast.MakeTryStmt(l.Ctx, ast.TryUntil, body, nil, "", cond), nil
	}
	handler, err := l.Stmt(s.Handler)
	if err != nil {
		return nil, err
	}
	return ast.MakeTryStmt(l.Ctx, ast.TryCatch, body, handler, s.Arg, nil), nil
}

func (l *Lowerer) printStmt(s *PrintStmt) (ast.Stmt, error) {
	printfP := s.Kind == "printf"
	if !printfP {
		if len(s.Args) == 0 {
			return nil, fmt.Errorf("print: missing expression")
		}
		val, err := l.Expr(s.Args[0])
		if err != nil {
			return nil, err
		}
		return ast.MakePrintStmt(l.Ctx, false, nil, val), nil
	}
	template := ""
	if s.Template != nil {
		template = unquote(*s.Template)
	}
	args := make([]*ast.FormatArg, 0, len(s.Args))
	for _, a := range s.Args {
		e, err := l.Expr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, ast.MakeFormatArg0(l.Ctx, e))
	}
	format := ast.MakeFormat0(l.Ctx, template, args)
	return ast.MakePrintStmt(l.Ctx, true, format, nil), nil
}

func (l *Lowerer) expOrAss(s *ExpOrAssStmt) (ast.Stmt, error) {
	lhs, err := l.Expr(s.LValue)
	if err != nil {
		return nil, err
	}
	if s.Assign == nil {
		return ast.MakeExpStmt(l.Ctx, lhs), nil
	}
	rhs, err := l.Expr(s.Assign)
	if err != nil {
		return nil, err
	}
	return ast.MakeAssStmt(l.Ctx, lhs, rhs), nil
}

// --- expressions -----------------------------------------------------------------------

func (l *Lowerer) Expr(e *Expr) (ast.Expr, error) {
	cond, err := l.logicalOr(e.Cond)
	if err != nil {
		return nil, err
	}
	if e.Then == nil {
		return cond, nil
	}
	then, err := l.Expr(e.Then)
	if err != nil {
		return nil, err
	}
	els, err := l.Expr(e.Else)
	if err != nil {
		return nil, err
	}
	return ast.MakeCondExp0(l.Ctx, cond, then, els), nil
}

func (l *Lowerer) logicalOr(e *LogicalOr) (ast.Expr, error) {
	left, err := l.logicalAnd(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Rest {
		right, err := l.logicalAnd(r)
		if err != nil {
			return nil, err
		}
		left = ast.MakeBinaryExp0(l.Ctx, ast.OpOr, left, right)
	}
	return left, nil
}

func (l *Lowerer) logicalAnd(e *LogicalAnd) (ast.Expr, error) {
	left, err := l.bconcat(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Rest {
		right, err := l.bconcat(r)
		if err != nil {
			return nil, err
		}
		left = ast.MakeBinaryExp0(l.Ctx, ast.OpAnd, left, right)
	}
	return left, nil
}

func (l *Lowerer) bconcat(e *BConcatExpr) (ast.Expr, error) {
	left, err := l.equality(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Rest {
		right, err := l.equality(r)
		if err != nil {
			return nil, err
		}
		left = ast.MakeBinaryExp0(l.Ctx, ast.OpBConcat, left, right)
	}
	return left, nil
}

func (l *Lowerer) equality(e *Equality) (ast.Expr, error) {
	left, err := l.relational(e.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range e.Ops {
		right, err := l.relational(op.Right)
		if err != nil {
			return nil, err
		}
		code := ast.OpEq
		if op.Op == "!=" {
			code = ast.OpNe
		}
		left = ast.MakeBinaryExp0(l.Ctx, code, left, right)
	}
	return left, nil
}

func (l *Lowerer) relational(e *Relational) (ast.Expr, error) {
	left, err := l.bitOr(e.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range e.Ops {
		right, err := l.bitOr(op.Right)
		if err != nil {
			return nil, err
		}
		var code ast.BinOp
		switch op.Op {
		case "<=":
			code = ast.OpLe
		case ">=":
			code = ast.OpGe
		case "<":
			code = ast.OpLt
		default:
			code = ast.OpGt
		}
		left = ast.MakeBinaryExp0(l.Ctx, code, left, right)
	}
	return left, nil
}

func (l *Lowerer) bitOr(e *BitOr) (ast.Expr, error) {
	left, err := l.bitXor(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Rest {
		right, err := l.bitXor(r)
		if err != nil {
			return nil, err
		}
		left = ast.MakeBinaryExp0(l.Ctx, ast.OpBOr, left, right)
	}
	return left, nil
}

func (l *Lowerer) bitXor(e *BitXor) (ast.Expr, error) {
	left, err := l.bitAnd(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Rest {
		right, err := l.bitAnd(r)
		if err != nil {
			return nil, err
		}
		left = ast.MakeBinaryExp0(l.Ctx, ast.OpBXor, left, right)
	}
	return left, nil
}

func (l *Lowerer) bitAnd(e *BitAnd) (ast.Expr, error) {
	left, err := l.shift(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Rest {
		right, err := l.shift(r)
		if err != nil {
			return nil, err
		}
		left = ast.MakeBinaryExp0(l.Ctx, ast.OpBAnd, left, right)
	}
	return left, nil
}

func (l *Lowerer) shift(e *Shift) (ast.Expr, error) {
	left, err := l.additive(e.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range e.Ops {
		right, err := l.additive(op.Right)
		if err != nil {
			return nil, err
		}
		code := ast.OpShl
		if op.Op == ">>" {
			code = ast.OpShr
		}
		left = ast.MakeBinaryExp0(l.Ctx, code, left, right)
	}
	return left, nil
}

func (l *Lowerer) additive(e *Additive) (ast.Expr, error) {
	left, err := l.multiplicative(e.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range e.Ops {
		right, err := l.multiplicative(op.Right)
		if err != nil {
			return nil, err
		}
		code := ast.OpAdd
		if op.Op == "-" {
			code = ast.OpSub
		}
		left = ast.MakeBinaryExp0(l.Ctx, code, left, right)
	}
	return left, nil
}

func (l *Lowerer) multiplicative(e *Multiplicative) (ast.Expr, error) {
	left, err := l.unary(e.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range e.Ops {
		right, err := l.unary(op.Right)
		if err != nil {
			return nil, err
		}
		var code ast.BinOp
		switch op.Op {
		case "*":
			code = ast.OpMul
		case "/":
			code = ast.OpDiv
		default:
			code = ast.OpMod
		}
		left = ast.MakeBinaryExp0(l.Ctx, code, left, right)
	}
	return left, nil
}

func (l *Lowerer) unary(e *Unary) (ast.Expr, error) {
	if e.Cast != nil {
		to, err := l.TypeExpr(e.Cast.To)
		if err != nil {
			return nil, err
		}
		operand, err := l.unary(e.Cast.Operand)
		if err != nil {
			return nil, err
		}
		return ast.MakeCast0(l.Ctx, operand, to), nil
	}
	operand, err := l.postfix(e.Operand)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "-":
		return ast.MakeUnaryExp0(l.Ctx, ast.OpNeg, operand), nil
	case "!":
		return ast.MakeUnaryExp0(l.Ctx, ast.OpNot, operand), nil
	case "~":
		return ast.MakeUnaryExp0(l.Ctx, ast.OpBNot, operand), nil
	case "+":
		return ast.MakeUnaryExp0(l.Ctx, ast.OpPos, operand), nil
	default:
		return operand, nil
	}
}

func (l *Lowerer) postfix(e *Postfix) (ast.Expr, error) {
	base, err := l.primary(e.Base)
	if err != nil {
		return nil, err
	}
	for _, sfx := range e.Suffix {
		switch {
		case sfx.Field != "":
			base = ast.MakeStructRef0(l.Ctx, base, sfx.Field)
		case sfx.Index != nil:
			idx, err := l.Expr(sfx.Index)
			if err != nil {
				return nil, err
			}
			base = ast.MakeIndexer0(l.Ctx, base, idx)
		case sfx.Call != nil:
			args := make([]*ast.FuncallArg, 0, len(sfx.Call.Args))
			for _, a := range sfx.Call.Args {
				v, err := l.Expr(a.Value)
				if err != nil {
					return nil, err
				}
				args = append(args, ast.MakeFuncallArg0(l.Ctx, a.Name, v))
			}
			base = ast.MakeFuncall0(l.Ctx, base, args)
		}
	}
	return base, nil
}

func (l *Lowerer) primary(p *Primary) (ast.Expr, error) {
	switch {
	case p.Int != nil:
		return parseIntLit(l.Ctx, *p.Int)
	case p.Offset != nil:
		return parseOffsetLit(l.Ctx, *p.Offset)
	case p.String != nil:
		return ast.MakeStringLit0(l.Ctx, unquote(*p.String)), nil
	case p.Array != nil:
		return l.arrayLit(p.Array)
	case p.Struct != nil:
		return l.structLit(p.Struct)
	case p.Paren != nil:
		return l.Expr(p.Paren)
	case p.Ident != nil:
		return ast.MakeVar0(l.Ctx, *p.Ident), nil
	default:
		return nil, fmt.Errorf("parser: empty primary expression")
	}
}

func (l *Lowerer) arrayLit(a *ArrayLit) (ast.Expr, error) {
	etype, err := l.TypeExpr(a.ElemType)
	if err != nil {
		return nil, err
	}
	var bound ast.Expr
	if a.Bound != nil {
		bound, err = l.Expr(a.Bound)
		if err != nil {
			return nil, err
		}
	}
	inits := make([]*ast.ArrayInitializer, 0, len(a.Inits))
	for _, init := range a.Inits {
		var idx ast.Expr
		if init.Index != nil {
			idx, err = l.Expr(init.Index)
			if err != nil {
				return nil, err
			}
		}
		val, err := l.Expr(init.Value)
		if err != nil {
			return nil, err
		}
		inits = append(inits, ast.MakeArrayInitializer0(l.Ctx, idx, val))
	}
	return ast.MakeArrayLit0(l.Ctx, etype, bound, inits), nil
}

func (l *Lowerer) structLit(s *StructLit) (ast.Expr, error) {
	fields := make([]*ast.StructFieldInit, 0, len(s.Fields))
	for _, f := range s.Fields {
		v, err := l.Expr(f.Value)
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.MakeStructFieldInit0(l.Ctx, f.Name, v))
	}
	named := ast.MakeNamedType(l.Ctx, ast.MakeStructType(l.Ctx, s.Name, nil, false, false))
	return ast.MakeStructLit0(l.Ctx, named, fields), nil
}

// --- types -------------------------------------------------------------------------

func (l *Lowerer) TypeExpr(t *TypeExpr) (*ast.Type, error) {
	switch {
	case t.Int != nil:
		size := 32
		if t.Int.Size != nil {
			size = *t.Int.Size
		}
		return ast.MakeIntegralType(l.Ctx, uint8(size), t.Int.Kind == "int"), nil
	case t.Str:
		return ast.MakeStringType(l.Ctx), nil
	case t.Off != nil:
		base, err := l.TypeExpr(t.Off.Base)
		if err != nil {
			return nil, err
		}
		unit, ok := unitTable[*t.Off.Unit]
		if !ok {
			unit = 1
		}
		return ast.MakeOffsetType(l.Ctx, base, unit), nil
	case t.Named != nil:
		// The name is not resolved against declarations; only the name "Exception" is
		// given meaning later (by Typify and pvmType). Here we stand up a placeholder
		// named struct type carrying just the name.
		return ast.MakeNamedType(l.Ctx, ast.MakeStructType(l.Ctx, *t.Named, nil, false, false)), nil
	default:
		return nil, fmt.Errorf("parser: empty type expression")
	}
}

// --- literal scanning ----------------------------------------------------------------

// parseIntLit decodes an integer token (spec §3.2 literal suffixes: U/S select
// signedness, B/H/N/L select size 8/16/32/64; default is a 32-bit signed int).
func parseIntLit(ctx *ast.Context, tok string) (ast.Expr, error) {
	digits, signed, size := splitIntSuffix(tok)
	base := 10
	switch {
	case strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X"):
		base = 16
		digits = digits[2:]
	case strings.HasPrefix(digits, "0b") || strings.HasPrefix(digits, "0B"):
		base = 2
		digits = digits[2:]
	case strings.HasPrefix(digits, "0o") || strings.HasPrefix(digits, "0O"):
		base = 8
		digits = digits[2:]
	}
	val, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return nil, fmt.Errorf("parser: invalid integer literal %q: %w", tok, err)
	}
	return ast.MakeInteger0(ctx, val, size, signed), nil
}

func splitIntSuffix(tok string) (digits string, signed bool, size uint8) {
	signed, size = true, 32
	i := len(tok)
	for i > 0 {
		c := tok[i-1]
		switch c {
		case 'B':
			size = 8
		case 'H':
			size = 16
		case 'N':
			size = 32
		case 'L':
			size = 64
		case 'U':
			signed = false
		case 'S':
			signed = true
		default:
			return tok[:i], signed, size
		}
		i--
	}
	return tok[:i], signed, size
}

// parseOffsetLit decodes an offset literal `magnitude#unit` (spec §4.3).
func parseOffsetLit(ctx *ast.Context, tok string) (ast.Expr, error) {
	hash := strings.IndexByte(tok, '#')
	if hash < 0 {
		return nil, fmt.Errorf("parser: malformed offset literal %q", tok)
	}
	magTok, unitName := tok[:hash], tok[hash+1:]
	magExpr, err := parseIntLit(ctx, magTok)
	if err != nil {
		return nil, err
	}
	unit, ok := unitTable[unitName]
	if !ok {
		return nil, fmt.Errorf("parser: unknown offset unit %q", unitName)
	}
	return ast.MakeOffsetLit0(ctx, magExpr, unit), nil
}

func unquote(tok string) string {
	s, err := strconv.Unquote(tok)
	if err != nil {
		return strings.Trim(tok, `"`)
	}
	return s
}
