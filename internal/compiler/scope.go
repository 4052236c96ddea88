// Package compiler implements the Poke compiler: a pipeline of passes (spec §4.9)
// that walk and progressively rewrite an internal/ast tree, ending in code generation
// into a pvm.Program, plus the top-level driver (spec §4.10) that sequences parsing,
// compilation and execution with a transactional compile-time environment.
//
// The ten named phases of spec §4.9 are implemented here as four Go passes rather than
// ten separate files: a stack-machine code generator lowers control flow (trans2/
// trans3's loop desugaring, anal2/analf's final checks, trans-f/trans-l's fixups)
// directly into labeled bytecode, since on this target "lower a loop to gotos" and
// "emit the gotos" are the same walk. DESIGN.md records this consolidation and the
// language subset actually implemented.
package compiler

import (
	"github.com/smoynes/poke/internal/ast"
	"github.com/smoynes/poke/internal/pvm"
)

// scope is the compile-time lexical frame: a pvm.Frame[*ast.Decl] for positional
// (back, over) storage -- generalized, per spec §4.3, from the same generic frame the
// runtime environment instantiates with pvm.Value -- plus a name index used only while
// resolving identifiers, since Frame[T] itself is purely positional.
type scope struct {
	up    *scope
	frame *pvm.Frame[*ast.Decl]
	index map[string]int

	// ctx and exceptionType are carried from the top scope down so every nested
	// scope can synthesize new Type nodes (e.g. a try handler's implicit exception
	// variable) without reaching for package-level state.
	ctx           *ast.Context
	exceptionType *ast.Type
}

func newTopScope(ctx *ast.Context, exceptionType *ast.Type) *scope {
	return &scope{
		frame: pvm.NewFrame[*ast.Decl](8), index: make(map[string]int, 8),
		ctx: ctx, exceptionType: exceptionType,
	}
}

func pushScope(up *scope) *scope {
	return &scope{
		up: up, frame: pvm.PushFrame(up.frame, 8), index: make(map[string]int, 8),
		ctx: up.ctx, exceptionType: up.exceptionType,
	}
}

// declare registers d in the current scope, stamping its resolved slot onto the Decl
// itself (spec §4.9 "Name resolution of variables into (back, over) pairs").
func (s *scope) declare(name string, d *ast.Decl) {
	over := s.frame.Register(d)
	s.index[name] = over
	d.Over = over
}

// dupToplevel snapshots s (which must be the top-level scope) for roll-back on error
// (spec §4.3 dup_toplevel, §4.10 step 1 "env' <- dup_toplevel(env)").
func (s *scope) dupToplevel() *scope {
	cp := &scope{
		frame: s.frame.Clone(), index: make(map[string]int, len(s.index)),
		ctx: s.ctx, exceptionType: s.exceptionType,
	}
	for k, v := range s.index {
		cp.index[k] = v
	}
	return cp
}

// commitRenames installs snap's declarations (and any names it added) back into s,
// the compiler's persistent top-level scope (spec §4.10 step 7 "commit env' into the
// compiler's env").
func (s *scope) commitRenames(snap *scope) {
	s.frame.SetSlots(snap.frame.Slots())
	s.index = snap.index
}

// rollbackRenames discards snap -- the persistent scope s is left untouched, matching
// spec §7's "on exception, env snapshot discarded" / §4.10 step 7 "on exception: free
// env' after rolling back its renames; the compiler env is unchanged".
func (s *scope) rollbackRenames(snap *scope) {
	for name, d := range snap.index {
		if _, present := s.index[name]; !present {
			if decl, ok := snap.frame.Lookup(0, d); ok {
				decl.Renamed = true
			}
		}
	}
}

// resolve finds name in s or an enclosing scope, returning the declaration and its
// (back, over) coordinates relative to s.
func (s *scope) resolve(name string) (decl *ast.Decl, back, over int, ok bool) {
	back = 0
	for sc := s; sc != nil; sc = sc.up {
		if idx, present := sc.index[name]; present {
			d, _ := sc.frame.Lookup(back, idx)
			return d, back, idx, true
		}
		back++
	}
	return nil, 0, 0, false
}
