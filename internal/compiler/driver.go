package compiler

import (
	"context"
	"fmt"

	"github.com/smoynes/poke/internal/ast"
	"github.com/smoynes/poke/internal/parser"
	"github.com/smoynes/poke/internal/pvm"
)

// Compiler is the top-level driver (spec §4.10): it sequences parsing, the four
// compiler passes and execution, holding the one persistent piece of compile-time
// state a REPL-like session needs across many separate compiles -- the top-level
// scope, which accumulates declarations the way the VM's top-level Env accumulates
// registered slots. Each Compile*/Run builds a fresh, disposable pvm.Program: a
// Program's instruction stream is append-only and one-way executable (spec §4.4/§4.5),
// so there is no "reopening" an old one to add more code to it -- only the
// environment and the VM's Env persist between compiles.
type Compiler struct {
	ctx     *ast.Context
	scope   *scope
	rt      *pvm.Runtime
	vm      *pvm.VM
	modules *moduleCache
}

// New creates a Compiler bound to an already-constructed Runtime and VM (spec §6.3
// "Compiler configuration knobs" -- the knobs themselves live on vm.Knobs()).
func New(rt *pvm.Runtime, vm *pvm.VM) *Compiler {
	ctx := ast.NewContext()
	return &Compiler{
		ctx:     ctx,
		scope:   newTopScope(ctx, ast.MakeExceptionType(ctx)),
		rt:      rt,
		vm:      vm,
		modules: newModuleCache(),
	}
}

// Compile parses, compiles and executes a whole source buffer (spec §4.10
// "compile_program"), as a single transaction against the top-level scope: parse and
// resolve errors never touch scope's persistent declarations.
func (c *Compiler) Compile(ctx context.Context, filename, src string) error {
	cst, err := parser.ParseProgram(filename, src)
	if err != nil {
		return fmt.Errorf("compiler: parse: %w", err)
	}

	prog, err := parser.NewLowerer(c.ctx).Program(cst)
	if err != nil {
		return fmt.Errorf("compiler: lower: %w", err)
	}

	return c.compileAndRun(ctx, prog)
}

// CompileStatement parses, compiles and executes a single statement (spec §4.10
// "compile_statement"), e.g. one line of an interactive session.
func (c *Compiler) CompileStatement(ctx context.Context, filename, src string) error {
	cst, err := parser.ParseStatement(filename, src)
	if err != nil {
		return fmt.Errorf("compiler: parse: %w", err)
	}

	lowered, err := parser.NewLowerer(c.ctx).Stmt(cst)
	if err != nil {
		return fmt.Errorf("compiler: lower: %w", err)
	}

	return c.compileAndRun(ctx, ast.MakeProgram(c.ctx, []ast.Node{lowered}))
}

// CompileExpression parses, compiles and executes a single expression (spec §4.10
// "compile_expression"), returning the value left in the VM's result slot.
func (c *Compiler) CompileExpression(ctx context.Context, filename, src string) (pvm.Value, error) {
	cst, err := parser.ParseExpression(filename, src)
	if err != nil {
		return nil, fmt.Errorf("compiler: parse: %w", err)
	}

	e, err := parser.NewLowerer(c.ctx).Expr(cst)
	if err != nil {
		return nil, fmt.Errorf("compiler: lower: %w", err)
	}

	snap := c.scope.dupToplevel()
	if err := Resolve(snap, e); err != nil {
		c.scope.rollbackRenames(snap)
		return nil, fmt.Errorf("compiler: resolve: %w", err)
	}
	if err := Typify(snap, e); err != nil {
		c.scope.rollbackRenames(snap)
		return nil, fmt.Errorf("compiler: typify: %w", err)
	}
	e = Fold(e)

	g := NewGenerator(c.rt, pvm.NewProgram(c.rt))
	if err := g.CompileExpression(e); err != nil {
		c.scope.rollbackRenames(snap)
		return nil, fmt.Errorf("compiler: gen: %w", err)
	}

	if err := c.run(ctx, g.prog); err != nil {
		c.scope.rollbackRenames(snap)
		return nil, err
	}

	c.scope.commitRenames(snap)
	return c.vm.Result(), nil
}

// Defvar installs a host-provided value directly into the top-level environment,
// bypassing parsing and codegen (spec §6.1 "built-in variables": get_ios et al. are
// exposed to compiled code as ordinary top-level variables, not as syntax). The
// synthesized declaration is typed `any`, since a host value's precise ast.Type cannot
// be reconstructed from a pvm.Value in general -- compiled references to it skip
// static field/element checks the way any `any`-typed expression already does.
func (c *Compiler) Defvar(name string, v pvm.Value) {
	d := ast.MakeDecl(c.ctx, ast.DeclVar, name, nil, nil)
	d.Typ = ast.MakeAnyType(c.ctx)
	c.scope.declare(name, d)
	c.vm.Env().Register(v)
}

// compileAndRun runs every pass over top in a scope snapshot, committing the
// snapshot's renamed declarations back into the persistent top-level scope only once
// gen and execution both succeed (spec §4.10 steps 1, 6-7: "env' <- dup_toplevel(env)
// ... on exception, env' is discarded; the compiler's env is unchanged").
func (c *Compiler) compileAndRun(ctx context.Context, top *ast.Program) error {
	snap := c.scope.dupToplevel()

	if err := Resolve(snap, top); err != nil {
		c.scope.rollbackRenames(snap)
		return fmt.Errorf("compiler: resolve: %w", err)
	}
	for _, e := range top.Elems {
		if s, ok := e.(ast.Stmt); ok {
			if err := TypifyStmt(snap, s); err != nil {
				c.scope.rollbackRenames(snap)
				return fmt.Errorf("compiler: typify: %w", err)
			}
		}
	}
	for _, e := range top.Elems {
		if s, ok := e.(ast.Stmt); ok {
			FoldStmt(s)
		}
	}

	g := NewGenerator(c.rt, pvm.NewProgram(c.rt))
	if err := g.GenProgram(top); err != nil {
		c.scope.rollbackRenames(snap)
		return fmt.Errorf("compiler: gen: %w", err)
	}

	if err := c.run(ctx, g.prog); err != nil {
		c.scope.rollbackRenames(snap)
		return err
	}

	c.scope.commitRenames(snap)
	return nil
}

// run loads and executes prog against the Compiler's persistent VM, surfacing an
// unhandled exception as an error the same way a halted-without-return program does.
func (c *Compiler) run(ctx context.Context, prog *pvm.Program) error {
	if err := prog.MakeExecutable(); err != nil {
		return fmt.Errorf("compiler: %w", err)
	}

	c.vm.Load(prog)
	if err := c.vm.Run(ctx); err != nil {
		return fmt.Errorf("compiler: run: %w", err)
	}
	if exc := c.vm.ExitException(); exc != nil {
		return fmt.Errorf("compiler: unhandled exception: %s", exc)
	}
	return nil
}
