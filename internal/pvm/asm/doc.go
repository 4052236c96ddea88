/*
Package asm implements a textual assembler for PVM routines (spec §6.5, §4.8
grammar).

Unlike the teacher's LC3ASM (a register machine's two-operand mnemonics resolved
against a symbol table of PC-relative offsets), a PVM routine is a stack machine's flat
instruction list: operands are either literal values pushed onto the stack, small
unsigned integers (frame coordinates, cast widths) or label references, and label
resolution is already the job of pvm.Program itself (spec §4.4 make_routine's
append-only, one-way-executable Routine) rather than a second symbol table this
package would have to maintain in parallel. So where LC3ASM is two passes over a
SyntaxTable and a SymbolTable, this assembler is one pass straight onto a *pvm.Program:

	.top
	    push int<32>0
	    pushvar 0 0
	    addi
	    ba .top

Semicolons and newlines both separate statements; a statement that is a single `.name`
token defines a label, consumed by pvm.Program.AppendLabel the moment it is seen.
Every other statement is `opcode [operand...]`; operands are whitespace-separated,
respecting double-quoted string literals. `push`'s one operand is a value literal
(`int<N>V`, `uint<N>V`, a quoted string, or `null`); the handful of other
operand-carrying opcodes (`pushvar`, `popvar`, `casti`, `ba`, `bzi`, `bnzi`, `mkclos`,
`pushe`, `push-env`) take unsigned-integer or `.label` operands, enumerated in gen.go.
Every other opcode name is passed through verbatim with zero operands -- this package
does not maintain its own opcode table, the same way pvm.Program itself does not
validate instruction names at append time (spec §4.4: that's the VM dispatch loop's
job, at execution time, via its ops map).
*/
package asm
