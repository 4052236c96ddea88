package pvm

import "fmt"

// Closure binds a Program entry point to a captured lexical Env (spec §3.1, GLOSSARY
// "Closure").
type Closure struct {
	gcHeader
	program *Program
	entry   int // instruction index the closure starts executing at.
	env     *Env
	name    string // debug-friendly; empty for anonymous lambdas.
}

func (c *Closure) Kind() Kind { return KindClosure }

func (c *Closure) String() string {
	if c.name != "" {
		return fmt.Sprintf("closure<%s>", c.name)
	}
	return "closure<lambda>"
}

// NewClosure constructs a Closure over a Program entry point, capturing env.
func NewClosure(rt *Runtime, program *Program, entry int, env *Env, name string) *Closure {
	c := &Closure{program: program, entry: entry, env: env, name: name}
	rt.gc.register(c)
	return c
}
