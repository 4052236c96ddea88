package compiler

import (
	"fmt"

	"github.com/smoynes/poke/internal/ast"
	"github.com/smoynes/poke/internal/pvm"
)

// Generator walks a typed, folded AST and emits instructions into a pvm.Program (spec
// §4.9's gen phase, consolidated with trans2/trans3's loop-to-goto lowering and
// analf/trans-f/trans-l's final fixups into this single bottom-up walk, since on a
// stack machine "lower control flow" and "emit the bytecode for it" are the same
// traversal -- see DESIGN.md's "Compiler passes" entry).
//
// Calling convention (a gen-pass design decision, not given directly by spec §4.6's
// call/return primitives): a Funcall pushes its arguments in reverse order, then its
// callee, then emits `call`; a function's entry preamble (emitted once, at its Lambda
// declaration) pushes a fresh Env frame and, for each formal in turn, pops the next
// argument off the main stack into that frame via `regvar` -- since regvar always
// registers into the next free slot and the main stack is shared across the call, this
// lines up argument order with declaration order without the callee needing to know its
// own arity at any instruction's operand.
type Generator struct {
	prog *pvm.Program
	rt   *pvm.Runtime

	breakLabels    []string
	continueLabels []string

	// depth counts live push-env frames at the current point of code generation,
	// mirroring the scope-chain depth internal/compiler/resolve.go's sc.resolve
	// computes for ordinary Var references. A bare `raise;` has no resolved operand
	// (resolveStmt only resolves RaiseStmt.Exp, which is nil for a re-raise), so gen
	// recovers its target variable's (back, over) the same way: by distance from the
	// handler frame that registered it.
	depth int

	// raiseHandlers tracks, for each enclosing try-catch handler, the depth its bound
	// exception variable was registered at (spec §4.6 "a bare raise re-raises the
	// currently handled exception").
	raiseHandlers []int
}

func (g *Generator) pushEnv() {
	g.prog.AppendInstruction("push-env")
	g.depth++
}

func (g *Generator) popEnv() {
	g.prog.AppendInstruction("pop-env")
	g.depth--
}

// NewGenerator creates a Generator appending into an already-constructed Program.
func NewGenerator(rt *pvm.Runtime, prog *pvm.Program) *Generator {
	return &Generator{prog: prog, rt: rt}
}

// GenProgram emits every top-level element in order, finishing with a `return` so Run
// halts cleanly at the end of the instruction stream (spec §4.10 "execute the compiled
// program").
func (g *Generator) GenProgram(top *ast.Program) error {
	for _, e := range top.Elems {
		if ds, ok := e.(declStmtNode); ok {
			if err := g.genTopDecl(ds); err != nil {
				return err
			}
			continue
		}
		s, ok := e.(ast.Stmt)
		if !ok {
			return fmt.Errorf("compiler: gen: unsupported top-level element %T", e)
		}
		if err := g.GenStmt(s); err != nil {
			return err
		}
	}
	g.prog.AppendInstruction("return")
	return nil
}

// CompileExpression emits e and leaves its value on the stack, ending in `return` so
// the top-level driver's Run captures it as vm.Result() (spec §4.10
// "compile_expression... the driver's top-level caller retrieves the resulting value").
func (g *Generator) CompileExpression(e ast.Expr) error {
	if err := g.GenExpr(e); err != nil {
		return err
	}
	g.prog.AppendInstruction("return")
	return nil
}

func (g *Generator) genTopDecl(ds declStmtNode) error {
	d := ds.Decl()
	if d.Renamed {
		return nil
	}
	switch d.Kind {
	case ast.DeclFunc:
		return g.genFuncDecl(d)
	default:
		return g.genVarDecl(d)
	}
}

// genVarDecl evaluates a variable's initializer (or void, if absent) and registers it
// into the current environment frame (spec §4.3 "register... installs a new,
// positionally-addressed slot").
func (g *Generator) genVarDecl(d *ast.Decl) error {
	if d.Initial != nil {
		if err := g.GenExpr(d.Initial); err != nil {
			return err
		}
	} else {
		g.prog.AppendPushInstruction(pvm.NullValue)
	}
	g.prog.AppendInstruction("regvar")
	return nil
}

// genFuncDecl lays down a function's entry point: a jump around the body, the
// argument-binding preamble, the body itself, and a trailing forced return for any
// fall-through path (spec §4.9 gen "closures: entry point + captured environment").
// The closure value itself is then registered as the declaration's variable slot, same
// as any other initializer, so a function is just a variable whose value is a Closure.
func (g *Generator) genFuncDecl(d *ast.Decl) error {
	lam, ok := d.Initial.(*ast.Lambda)
	if !ok {
		return fmt.Errorf("compiler: gen: function declaration without a lambda initializer")
	}
	f := lam.Func

	skip := g.prog.FreshLabel()
	g.prog.AppendInstruction("ba")
	g.prog.AppendLabelParameter(skip)

	entry := g.prog.FreshLabel()
	g.prog.AppendLabel(entry)
	f.Entry = -1 // patched to the real instruction index once Label resolves, below.

	g.pushEnv()
	for range f.Args {
		g.prog.AppendInstruction("regvar")
	}

	f.Body.PushesFrame = false
	if err := g.GenStmt(f.Body); err != nil {
		return err
	}

	// Fall-through return for a body with no explicit `return` on every path.
	g.prog.AppendPushInstruction(pvm.NullValue)
	g.prog.AppendInstruction("return")

	g.prog.AppendLabel(skip)

	idx, _ := g.prog.Label(entry)
	f.Entry = idx

	// The closure's environment is whatever is live when mkclos executes, not at compile
	// time (spec §3.1, GLOSSARY "Closure"): a nested function declaration evaluated on
	// every call to its enclosing function must capture a fresh frame each activation.
	if f.Name != "" {
		g.prog.AppendPushInstruction(pvm.NewString(g.rt, f.Name))
	} else {
		g.prog.AppendPushInstruction(pvm.NullValue)
	}
	g.prog.AppendInstruction("mkclos")
	g.prog.AppendLabelParameter(entry)
	g.prog.AppendInstruction("regvar")

	return nil
}

// GenStmt emits s's side effects. Every case leaves the main stack exactly as it found
// it (an evaluated-for-effect expression is explicitly dropped), so statement sequences
// compose without the generator having to track stack depth across them.
func (g *Generator) GenStmt(s ast.Stmt) error {
	switch v := s.(type) {
	case declStmtNode:
		return g.genVarDecl(v.Decl())

	case *ast.CompStmt:
		if v.PushesFrame {
			g.pushEnv()
		}
		for _, sub := range v.Stmts {
			if err := g.GenStmt(sub); err != nil {
				return err
			}
		}
		if v.PushesFrame {
			g.popEnv()
		}
		return nil

	case *ast.AssStmt:
		return g.genAssign(v)

	case *ast.IfStmt:
		return g.genIf(v)

	case *ast.LoopStmt:
		return g.genLoop(v)

	case *ast.ReturnStmt:
		if v.Value != nil {
			if err := g.GenExpr(v.Value); err != nil {
				return err
			}
		} else {
			g.prog.AppendPushInstruction(pvm.NullValue)
		}
		g.prog.AppendInstruction("return")
		return nil

	case *ast.ExpStmt:
		if err := g.GenExpr(v.Value); err != nil {
			return err
		}
		g.prog.AppendInstruction("drop")
		return nil

	case *ast.RaiseStmt:
		if v.Exp != nil {
			if err := g.GenExpr(v.Exp); err != nil {
				return err
			}
		} else {
			if len(g.raiseHandlers) == 0 {
				return fmt.Errorf("compiler: gen: bare raise outside a handler")
			}
			handlerDepth := g.raiseHandlers[len(g.raiseHandlers)-1]
			g.prog.AppendInstruction("pushvar")
			g.prog.AppendUnsignedParameter(g.depth - handlerDepth)
			g.prog.AppendUnsignedParameter(0)
		}
		g.prog.AppendInstruction("raise")
		return nil

	case *ast.TryStmt:
		return g.genTry(v)

	case *ast.PrintStmt:
		return g.genPrint(v)

	case *ast.NullStmt:
		return nil

	case *ast.BreakContinueStmt:
		return g.genBreakContinue(v)

	case *ast.AsmStmt:
		return fmt.Errorf("compiler: gen: inline-asm statements are not supported")

	default:
		return fmt.Errorf("compiler: gen: unsupported statement %T", s)
	}
}

func (g *Generator) genBreakContinue(v *ast.BreakContinueStmt) error {
	var stack []string
	if v.Kind == ast.KindBreak {
		stack = g.breakLabels
	} else {
		stack = g.continueLabels
	}
	if len(stack) == 0 {
		return fmt.Errorf("compiler: gen: break/continue outside a loop")
	}
	g.prog.AppendInstruction("ba")
	g.prog.AppendLabelParameter(stack[len(stack)-1])
	return nil
}

// genAssign evaluates the right-hand side, stores it, then drops genStore's result
// (every statement, per GenStmt's contract, leaves the main stack exactly as it found
// it).
func (g *Generator) genAssign(v *ast.AssStmt) error {
	if err := g.GenExpr(v.Value); err != nil {
		return err
	}
	if err := g.genStore(v.LValue); err != nil {
		return err
	}
	g.prog.AppendInstruction("drop")
	return nil
}

// genStore pops the value on top of the stack into the location named by lvalue (spec
// §4.9 "Lvalue rules"), always leaving exactly one value on top of the stack afterward
// (the stored scalar for a Var target, the written-through container for a struct/array
// target, care of sset/aset's own push-back) -- callers that don't need it (genAssign,
// the per-operand recursion below) drop it explicitly.
func (g *Generator) genStore(lvalue ast.Expr) error {
	switch v := lvalue.(type) {
	case *ast.Var:
		// stack: value. dup leaves a copy underneath popvar's consumed copy, so the
		// original value remains as genStore's result.
		g.prog.AppendInstruction("dup")
		g.prog.AppendInstruction("popvar")
		g.prog.AppendUnsignedParameter(v.Back)
		g.prog.AppendUnsignedParameter(v.Over)
		return nil

	case *ast.StructRef:
		if err := g.GenExpr(v.Operand); err != nil {
			return err
		}
		g.prog.AppendPushInstruction(pvm.NewString(g.rt, v.Field))
		// stack (bottom to top): value, struct, name. rot: [a,b,c] -> [b,c,a], i.e.
		// [value,struct,name] -> [struct,name,value] -- exactly sset's required
		// (struct, name, value) order, value left on top for it to pop first.
		g.prog.AppendInstruction("rot")
		g.prog.AppendInstruction("sset")
		return nil

	case *ast.Indexer:
		if err := g.GenExpr(v.Operand); err != nil {
			return err
		}
		if err := g.GenExpr(v.Index); err != nil {
			return err
		}
		// stack (bottom to top): value, array, index. Same rot as above yields
		// [array, index, value], aset's required order.
		g.prog.AppendInstruction("rot")
		g.prog.AppendInstruction("aset")
		return nil

	case *ast.Map:
		return fmt.Errorf("compiler: gen: assignment to a mapped entity is not supported")

	case *ast.BinaryExp:
		if v.Op != ast.OpBConcat {
			return fmt.Errorf("compiler: gen: invalid assignment target")
		}
		return g.genStoreBConcat(v)

	default:
		return fmt.Errorf("compiler: gen: invalid assignment target %T", lvalue)
	}
}

// genStoreBConcat implements assignment through a bit-concatenation l-value
// (`left:::right = value`, spec §4.9 Lvalue rules): left receives the high-order bits,
// right the low-order bits, split at right's declared width. internal/parser/lower.go
// builds `:::` as an ordinary left-associative BinaryExp, so `a:::b:::c = E` recurses
// naturally through this same function on its own Left.
func (g *Generator) genStoreBConcat(v *ast.BinaryExp) error {
	lt, rt := v.Left.GetType(), v.Right.GetType()
	if lt == nil || rt == nil || lt.Kind != ast.TIntegral || rt.Kind != ast.TIntegral {
		return fmt.Errorf("compiler: gen: bit-concatenation assignment requires integral operands")
	}

	// stack: value
	g.prog.AppendInstruction("dup") // value, value

	lowSigned := 0
	if rt.IntSigned {
		lowSigned = 1
	}
	g.prog.AppendInstruction("casti") // value, low
	g.prog.AppendUnsignedParameter(int(rt.IntSize))
	g.prog.AppendUnsignedParameter(lowSigned)

	if err := g.genStore(v.Right); err != nil {
		return err
	}
	g.prog.AppendInstruction("drop") // value

	g.prog.AppendPushInstruction(pvm.MakeIntegral(g.rt, 32, false, uint64(rt.IntSize)))
	g.prog.AppendInstruction("bshri") // value >> rightSize, mirroring value's own width/sign

	highSigned := 0
	if lt.IntSigned {
		highSigned = 1
	}
	g.prog.AppendInstruction("casti") // high
	g.prog.AppendUnsignedParameter(int(lt.IntSize))
	g.prog.AppendUnsignedParameter(highSigned)

	return g.genStore(v.Left)
}

func (g *Generator) genIf(v *ast.IfStmt) error {
	if err := g.GenExpr(v.Cond); err != nil {
		return err
	}

	elseLabel := g.prog.FreshLabel()
	endLabel := g.prog.FreshLabel()

	g.prog.AppendInstruction("bzi")
	g.prog.AppendLabelParameter(elseLabel)

	if err := g.GenStmt(v.Then); err != nil {
		return err
	}
	g.prog.AppendInstruction("ba")
	g.prog.AppendLabelParameter(endLabel)

	g.prog.AppendLabel(elseLabel)
	if v.Else != nil {
		if err := g.GenStmt(v.Else); err != nil {
			return err
		}
	}
	g.prog.AppendLabel(endLabel)

	return nil
}

// genLoop lowers while/until/for/for-in to labeled branches (spec §4.9 trans2/trans3
// "desugar loop forms to a common shape before codegen"). LoopForIn is not produced by
// this translation's parser (internal/parser/lower.go only lowers while/until), so it
// is rejected here with a clear error rather than silently mis-compiled.
func (g *Generator) genLoop(v *ast.LoopStmt) error {
	if v.Kind == ast.LoopForIn {
		return fmt.Errorf("compiler: gen: for-in loops are not supported")
	}

	if v.Head != nil {
		if err := g.GenStmt(v.Head); err != nil {
			return err
		}
	}

	top := g.prog.FreshLabel()
	cont := g.prog.FreshLabel()
	end := g.prog.FreshLabel()

	g.breakLabels = append(g.breakLabels, end)
	g.continueLabels = append(g.continueLabels, cont)
	defer func() {
		g.breakLabels = g.breakLabels[:len(g.breakLabels)-1]
		g.continueLabels = g.continueLabels[:len(g.continueLabels)-1]
	}()

	g.prog.AppendLabel(top)

	if v.Cond != nil {
		if err := g.GenExpr(v.Cond); err != nil {
			return err
		}
		switch v.Kind {
		case ast.LoopUntil:
			g.prog.AppendInstruction("bnzi")
		default:
			g.prog.AppendInstruction("bzi")
		}
		g.prog.AppendLabelParameter(end)
	}

	if err := g.GenStmt(v.Body); err != nil {
		return err
	}

	g.prog.AppendLabel(cont)
	if v.Tail != nil {
		if err := g.GenStmt(v.Tail); err != nil {
			return err
		}
	}

	g.prog.AppendInstruction("ba")
	g.prog.AppendLabelParameter(top)

	g.prog.AppendLabel(end)

	return nil
}

// genTry lowers a try-catch/try-until into pushe/pope-bracketed code (spec §4.6
// "Exception"): the body executes with a handler installed; on a matching raise,
// control resumes at the handler with the raised exception already on the stack and
// bound to Arg's slot (registered via a push-env/regvar pair the TryCatch case emits
// explicitly, since the exception value arrives via the main stack rather than as a
// call argument).
func (g *Generator) genTry(v *ast.TryStmt) error {
	if v.Kind == ast.TryUntil {
		top := g.prog.FreshLabel()
		g.prog.AppendLabel(top)
		if err := g.GenStmt(v.Body); err != nil {
			return err
		}
		if err := g.GenExpr(v.Exp); err != nil {
			return err
		}
		g.prog.AppendInstruction("bzi")
		g.prog.AppendLabelParameter(top)
		return nil
	}

	handler := g.prog.FreshLabel()
	end := g.prog.FreshLabel()

	g.prog.AppendInstruction("pushe")
	g.prog.AppendLabelParameter(handler)

	if err := g.GenStmt(v.Body); err != nil {
		return err
	}
	g.prog.AppendInstruction("pope")
	g.prog.AppendInstruction("ba")
	g.prog.AppendLabelParameter(end)

	g.prog.AppendLabel(handler)
	// The raised exception arrives already pushed (vm.raise's Push(exc)); it is
	// always bound into a fresh frame, named or not, so a bare `raise;` anywhere in
	// the handler (including nested blocks) can recover it by relative depth.
	g.pushEnv()
	g.prog.AppendInstruction("regvar")
	g.raiseHandlers = append(g.raiseHandlers, g.depth)

	err := g.GenStmt(v.Handler)

	g.raiseHandlers = g.raiseHandlers[:len(g.raiseHandlers)-1]
	g.popEnv()

	if err != nil {
		return err
	}
	g.prog.AppendLabel(end)

	return nil
}

func (g *Generator) genPrint(v *ast.PrintStmt) error {
	if v.PrintfP {
		for _, a := range v.Fmt.Args {
			if err := g.GenExpr(a.Value); err != nil {
				return err
			}
			if err := g.genWriteBuiltin("print"); err != nil {
				return err
			}
		}
		return nil
	}
	if err := g.GenExpr(v.Value); err != nil {
		return err
	}
	return g.genWriteBuiltin("print")
}

// genWriteBuiltin emits a `drop`: the evaluated value is discarded and nothing is
// written anywhere. Poke's real `print`/`printf` render through the global
// output-formatting knobs (spec §6.2); this module doesn't compile a textual formatter,
// so printing is modeled as dropping the value after evaluating it for effect --
// documented here rather than silently ignored.
func (g *Generator) genWriteBuiltin(string) error {
	g.prog.AppendInstruction("drop")
	return nil
}

// GenExpr emits e, leaving exactly one value on top of the stack.
func (g *Generator) GenExpr(e ast.Expr) error {
	switch v := e.(type) {
	case *ast.Integer:
		g.prog.AppendPushInstruction(pvm.MakeIntegral(g.rt, v.Size, v.Signed, v.Value))
		return nil

	case *ast.StringLit:
		g.prog.AppendPushInstruction(pvm.NewString(g.rt, v.Value))
		return nil

	case *ast.OffsetLit:
		if err := g.GenExpr(v.Magnitude); err != nil {
			return err
		}
		g.prog.AppendPushInstruction(pvm.MakeIntegral(g.rt, 64, false, v.Unit))
		g.prog.AppendInstruction("mkoq")
		return nil

	case *ast.Var:
		g.prog.AppendInstruction("pushvar")
		g.prog.AppendUnsignedParameter(v.Back)
		g.prog.AppendUnsignedParameter(v.Over)
		return nil

	case *ast.BinaryExp:
		return g.genBinary(v)

	case *ast.UnaryExp:
		return g.genUnary(v)

	case *ast.CondExp:
		return g.genCond(v)

	case *ast.IncrDecr:
		return g.genIncrDecr(v)

	case *ast.Cast:
		return g.genCast(v)

	case *ast.Isa:
		return g.genIsa(v)

	case *ast.Cons:
		return g.GenExpr(v.Value)

	case *ast.Map:
		return g.genMap(v)

	case *ast.Indexer:
		if err := g.GenExpr(v.Operand); err != nil {
			return err
		}
		if err := g.GenExpr(v.Index); err != nil {
			return err
		}
		g.prog.AppendInstruction("aref")
		return nil

	case *ast.StructRef:
		if err := g.GenExpr(v.Operand); err != nil {
			return err
		}
		g.prog.AppendPushInstruction(pvm.NewString(g.rt, v.Field))
		g.prog.AppendInstruction("sref")
		return nil

	case *ast.Funcall:
		return g.genFuncall(v)

	case *ast.ArrayLit:
		return g.genArrayLit(v)

	case *ast.StructLit:
		return g.genStructLit(v)

	case *ast.Format:
		return g.genFormat(v)

	case *ast.Builtin:
		return g.genBuiltin(v)

	case *ast.Trimmer:
		return fmt.Errorf("compiler: gen: trim expressions are not supported")

	case *ast.Lambda:
		return fmt.Errorf("compiler: gen: anonymous lambdas must be bound to a declaration")

	case *ast.AsmExp:
		return fmt.Errorf("compiler: gen: inline-asm expressions are not supported")

	default:
		return fmt.Errorf("compiler: gen: unsupported expression %T", e)
	}
}

// genBinary emits a typed binary operator. By construction (Typify's promo pass,
// fold.go's constant folding) both operands already share a common size and
// signedness by the time gen sees them, so the arithmetic opcodes (addi/subi/...) need
// only mirror the left operand's width into the result (see instr_arith.go's
// arithmeticOps doc comment).
func (g *Generator) genBinary(v *ast.BinaryExp) error {
	if v.Op == ast.OpAnd || v.Op == ast.OpOr {
		return g.genShortCircuit(v)
	}

	if err := g.GenExpr(v.Left); err != nil {
		return err
	}
	if err := g.GenExpr(v.Right); err != nil {
		return err
	}

	lt := v.Left.GetType()
	isOffset := lt != nil && lt.Kind == ast.TOffset
	isString := lt != nil && lt.Kind == ast.TString

	name, ok := binaryOpName(v.Op, isOffset, isString)
	if !ok {
		return fmt.Errorf("compiler: gen: unsupported operator %v", v.Op)
	}
	g.prog.AppendInstruction(name)
	return nil
}

func binaryOpName(op ast.BinOp, isOffset, isString bool) (string, bool) {
	if isString {
		switch op {
		case ast.OpAdd:
			return "adds", true
		case ast.OpEq:
			return "eqs", true
		case ast.OpNe:
			return "nes", true
		case ast.OpLt:
			return "lts", true
		}
	}
	if isOffset {
		switch op {
		case ast.OpAdd:
			return "addo", true
		case ast.OpSub:
			return "subo", true
		}
	}
	switch op {
	case ast.OpAdd:
		return "addi", true
	case ast.OpSub:
		return "subi", true
	case ast.OpMul:
		return "muli", true
	case ast.OpDiv:
		return "divi", true
	case ast.OpCeilDiv:
		return "cdivi", true
	case ast.OpMod:
		return "modi", true
	case ast.OpEq:
		return "eqi", true
	case ast.OpNe:
		return "nei", true
	case ast.OpLt:
		return "lti", true
	case ast.OpGt:
		return "gti", true
	case ast.OpLe:
		return "lei", true
	case ast.OpGe:
		return "gei", true
	case ast.OpBAnd:
		return "bandi", true
	case ast.OpBOr:
		return "bori", true
	case ast.OpBXor:
		return "bxori", true
	case ast.OpShl:
		return "bshli", true
	case ast.OpShr:
		return "bshri", true
	}
	return "", false
}

// genShortCircuit emits && / || with branch-based short-circuiting rather than eager
// evaluation of both sides (spec §4.7 "&&/|| short-circuit").
func (g *Generator) genShortCircuit(v *ast.BinaryExp) error {
	if err := g.GenExpr(v.Left); err != nil {
		return err
	}

	shortLabel := g.prog.FreshLabel()
	endLabel := g.prog.FreshLabel()

	g.prog.AppendInstruction("dup")
	if v.Op == ast.OpAnd {
		g.prog.AppendInstruction("bzi")
	} else {
		g.prog.AppendInstruction("bnzi")
	}
	g.prog.AppendLabelParameter(shortLabel)

	g.prog.AppendInstruction("drop")
	if err := g.GenExpr(v.Right); err != nil {
		return err
	}
	g.prog.AppendInstruction("ba")
	g.prog.AppendLabelParameter(endLabel)

	g.prog.AppendLabel(shortLabel)
	g.prog.AppendLabel(endLabel)

	return nil
}

func (g *Generator) genUnary(v *ast.UnaryExp) error {
	if err := g.GenExpr(v.Operand); err != nil {
		return err
	}
	switch v.Op {
	case ast.OpNeg:
		g.prog.AppendInstruction("negi")
	case ast.OpBNot:
		g.prog.AppendInstruction("bnoti")
	case ast.OpNot:
		g.prog.AppendPushInstruction(pvm.MakeIntegral(g.rt, 32, true, 0))
		g.prog.AppendInstruction("eqi")
	case ast.OpPos:
		// no-op: unary plus.
	default:
		return fmt.Errorf("compiler: gen: unsupported unary operator %v", v.Op)
	}
	return nil
}

func (g *Generator) genCond(v *ast.CondExp) error {
	if err := g.GenExpr(v.Cond); err != nil {
		return err
	}

	elseLabel := g.prog.FreshLabel()
	endLabel := g.prog.FreshLabel()

	g.prog.AppendInstruction("bzi")
	g.prog.AppendLabelParameter(elseLabel)

	if err := g.GenExpr(v.Then); err != nil {
		return err
	}
	g.prog.AppendInstruction("ba")
	g.prog.AppendLabelParameter(endLabel)

	g.prog.AppendLabel(elseLabel)
	if err := g.GenExpr(v.Else); err != nil {
		return err
	}
	g.prog.AppendLabel(endLabel)

	return nil
}

// genIncrDecr emits `a++`/`a--`/`++a`/`--a` as an ordinary load-modify-store sequence;
// Post determines whether the pre- or post-modification value is left on the stack.
func (g *Generator) genIncrDecr(v *ast.IncrDecr) error {
	if _, ok := v.Operand.(*ast.Var); !ok {
		return fmt.Errorf("compiler: gen: increment/decrement target must be a variable")
	}

	if err := g.GenExpr(v.Operand); err != nil {
		return err
	}

	t := v.Operand.GetType()
	var step pvm.Value
	if t != nil && t.Kind == ast.TOffset {
		step = pvm.NewOffset(g.rt, pvm.MakeIntegral(g.rt, 64, false, 1), t.Unit)
	} else {
		size, signed := uint8(32), true
		if t != nil {
			size, signed = t.IntSize, t.IntSigned
		}
		step = pvm.MakeIntegral(g.rt, size, signed, 1)
	}

	if v.Post {
		g.prog.AppendInstruction("dup")
	}

	g.prog.AppendPushInstruction(step)
	if v.Incr {
		if t != nil && t.Kind == ast.TOffset {
			g.prog.AppendInstruction("addo")
		} else {
			g.prog.AppendInstruction("addi")
		}
	} else {
		if t != nil && t.Kind == ast.TOffset {
			g.prog.AppendInstruction("subo")
		} else {
			g.prog.AppendInstruction("subi")
		}
	}

	if v.Post {
		// stack: original, updated -- store updated, leave original.
		if err := g.genStoreKeepingUnderneath(v.Operand); err != nil {
			return err
		}
		return nil
	}

	return g.genStoreDup(v.Operand)
}

// genStoreDup stores the top of stack into lvalue and leaves a copy of the stored value
// on top, the shape every IncrDecr/assignment codegen site wants.
func (g *Generator) genStoreDup(lvalue ast.Expr) error {
	return g.genStore(lvalue)
}

// genStoreKeepingUnderneath stores the top of stack (the updated value) while leaving
// the value beneath it (the pre-modification value, for post-increment) as the
// expression's result.
func (g *Generator) genStoreKeepingUnderneath(lvalue ast.Expr) error {
	if v, ok := lvalue.(*ast.Var); ok {
		g.prog.AppendInstruction("popvar")
		g.prog.AppendUnsignedParameter(v.Back)
		g.prog.AppendUnsignedParameter(v.Over)
		return nil
	}
	return fmt.Errorf("compiler: gen: post-incr/decr target must be a variable")
}

func (g *Generator) genCast(v *ast.Cast) error {
	if err := g.GenExpr(v.Operand); err != nil {
		return err
	}
	if v.To.Kind != ast.TIntegral {
		return nil // structural casts (e.g. struct-of-one-field -> int) pass through.
	}
	g.prog.AppendInstruction("casti")
	g.prog.AppendUnsignedParameter(int(v.To.IntSize))
	signedBit := 0
	if v.To.IntSigned {
		signedBit = 1
	}
	g.prog.AppendUnsignedParameter(signedBit)
	return nil
}

func (g *Generator) genIsa(v *ast.Isa) error {
	if err := g.GenExpr(v.Operand); err != nil {
		return err
	}
	g.prog.AppendInstruction("typof")

	want, err := pvmType(g.rt, v.Of)
	if err != nil {
		return err
	}
	g.prog.AppendPushInstruction(want)
	g.prog.AppendInstruction("eqa")
	return nil
}

// genMap emits a `mapv`: IOS (or Null for the current one), offset, type.
func (g *Generator) genMap(v *ast.Map) error {
	if v.IOS != nil {
		if err := g.GenExpr(v.IOS); err != nil {
			return err
		}
	} else {
		g.prog.AppendPushInstruction(pvm.NullValue)
	}
	if err := g.GenExpr(v.Offset); err != nil {
		return err
	}
	t, err := pvmType(g.rt, v.Of)
	if err != nil {
		return err
	}
	g.prog.AppendPushInstruction(t)
	g.prog.AppendInstruction("mapv")
	return nil
}

// genFuncall pushes arguments in reverse, then the callee, then emits `call` (see the
// Generator doc comment for the calling-convention rationale).
func (g *Generator) genFuncall(v *ast.Funcall) error {
	for i := len(v.Args) - 1; i >= 0; i-- {
		if err := g.GenExpr(v.Args[i].Value); err != nil {
			return err
		}
	}
	if err := g.GenExpr(v.Callee); err != nil {
		return err
	}
	g.prog.AppendInstruction("call")
	return nil
}

// genArrayLit pushes every element (in order), then its element type, then its count,
// then emits `mka` (spec §4.6 "mka" operand order discovered from instr.go opMka: pops
// count, then type, then each element in reverse push order).
func (g *Generator) genArrayLit(v *ast.ArrayLit) error {
	for _, init := range v.Inits {
		if err := g.GenExpr(init.Value); err != nil {
			return err
		}
	}

	et, err := pvmType(g.rt, v.ElemType)
	if err != nil {
		return err
	}
	g.prog.AppendPushInstruction(et)
	g.prog.AppendPushInstruction(pvm.MakeIntegral(g.rt, 64, false, uint64(len(v.Inits))))
	g.prog.AppendInstruction("mka")

	return nil
}

// genStructLit pushes (name, value) pairs per field in declared order, then the type,
// then the field count, then emits `mksct` (operand order discovered from instr.go
// opMksct).
func (g *Generator) genStructLit(v *ast.StructLit) error {
	for _, f := range v.Fields {
		g.prog.AppendPushInstruction(pvm.NewString(g.rt, f.Name))
		if err := g.GenExpr(f.Value); err != nil {
			return err
		}
	}

	t, err := pvmType(g.rt, v.Of)
	if err != nil {
		return err
	}
	g.prog.AppendPushInstruction(t)
	g.prog.AppendPushInstruction(pvm.MakeIntegral(g.rt, 64, false, uint64(len(v.Fields))))
	g.prog.AppendInstruction("mksct")

	return nil
}

// genFormat pushes the template string unchanged, then evaluates each argument for
// effect and drops it; this module does not compile a format-directive parser, so no
// argument is substituted into the template.
func (g *Generator) genFormat(v *ast.Format) error {
	g.prog.AppendPushInstruction(pvm.NewString(g.rt, v.Template))
	for _, a := range v.Args {
		if err := g.GenExpr(a.Value); err != nil {
			return err
		}
		g.prog.AppendInstruction("drop")
	}
	return nil
}

// genBuiltin lowers the get_ios intrinsic onto the `mgetios` mapping primitive; every
// other builtin name (set_ios and iosize included) is rejected with an error rather
// than silently miscompiled.
func (g *Generator) genBuiltin(v *ast.Builtin) error {
	switch v.Name {
	case "get_ios":
		g.prog.AppendInstruction("mgetios")
		return nil
	default:
		return fmt.Errorf("compiler: gen: unsupported builtin %q", v.Name)
	}
}
