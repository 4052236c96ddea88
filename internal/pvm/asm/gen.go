package asm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/smoynes/poke/internal/pvm"
)

// operandKind distinguishes the shapes an opcode's textual operands may take, mirroring
// pvm.ParamKind minus ParamRegister (no PVM instruction emitted by the compiler's gen
// pass ever carries a register parameter -- see internal/compiler/gen.go's total
// absence of AppendRegisterParameter calls).
type operandKind int

const (
	kindUnsigned operandKind = iota
	kindLabel
)

// operandShape is looked up by opcode name for every opcode whose operands are not the
// generic zero-operand case. "push" is handled separately, since its one operand is a
// value literal, not an unsigned int or a label.
type operandShape struct {
	required []operandKind
	optional []operandKind // at most one optional operand, appended after required.
}

var operandShapes = map[string]operandShape{
	"pushvar":  {required: []operandKind{kindUnsigned, kindUnsigned}},
	"popvar":   {required: []operandKind{kindUnsigned, kindUnsigned}},
	"casti":    {required: []operandKind{kindUnsigned, kindUnsigned}},
	"ba":       {required: []operandKind{kindLabel}},
	"bzi":      {required: []operandKind{kindLabel}},
	"bnzi":     {required: []operandKind{kindLabel}},
	"mkclos":   {required: []operandKind{kindLabel}},
	"pushe":    {required: []operandKind{kindLabel}, optional: []operandKind{kindUnsigned}},
	"push-env": {optional: []operandKind{kindUnsigned}},
}

var integralLiteral = regexp.MustCompile(`^(u?int)<([0-9]+)>(-?[0-9]+)$`)

// Assemble parses src and emits it onto a fresh *pvm.Program (spec §4.4/§4.5): labels
// are forwarded straight to Program.AppendLabel, so a branch to a label defined later
// in the source works exactly as it does from internal/compiler/gen.go, which relies
// on the same forward-reference support.
func Assemble(rt *pvm.Runtime, src string) (*pvm.Program, error) {
	stmts, err := Parse(src)
	if err != nil {
		return nil, err
	}

	prog := pvm.NewProgram(rt)

	for _, s := range stmts {
		if s.Label != "" {
			prog.AppendLabel(s.Label)
			continue
		}
		if err := emit(rt, prog, s); err != nil {
			return nil, fmt.Errorf("asm: line %d: %w", s.Line, err)
		}
	}

	return prog, nil
}

func emit(rt *pvm.Runtime, prog *pvm.Program, s Statement) error {
	if s.Op == "push" {
		return emitPush(rt, prog, s)
	}

	shape, special := operandShapes[s.Op]
	if !special {
		if len(s.Operands) != 0 {
			return fmt.Errorf("%s: takes no operands, got %d", s.Op, len(s.Operands))
		}
		prog.AppendInstruction(s.Op)
		return nil
	}

	max := len(shape.required) + len(shape.optional)
	if len(s.Operands) < len(shape.required) || len(s.Operands) > max {
		return fmt.Errorf("%s: expected %d to %d operands, got %d", s.Op, len(shape.required), max, len(s.Operands))
	}

	prog.AppendInstruction(s.Op)

	kinds := append(append([]operandKind{}, shape.required...), shape.optional[:len(s.Operands)-len(shape.required)]...)
	for i, k := range kinds {
		tok := s.Operands[i]
		switch k {
		case kindUnsigned:
			n, err := strconv.Atoi(tok)
			if err != nil {
				return fmt.Errorf("%s: operand %d: %w", s.Op, i+1, err)
			}
			prog.AppendUnsignedParameter(n)
		case kindLabel:
			if !strings.HasPrefix(tok, ".") {
				return fmt.Errorf("%s: operand %d: expected a .label, got %q", s.Op, i+1, tok)
			}
			prog.AppendLabelParameter(strings.TrimPrefix(tok, "."))
		}
	}

	return nil
}

func emitPush(rt *pvm.Runtime, prog *pvm.Program, s Statement) error {
	if len(s.Operands) != 1 {
		return fmt.Errorf("push: expected 1 operand, got %d", len(s.Operands))
	}

	v, err := parseValue(rt, s.Operands[0])
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}

	prog.AppendPushInstruction(v)

	return nil
}

func parseValue(rt *pvm.Runtime, tok string) (pvm.Value, error) {
	switch {
	case tok == "null":
		return pvm.NullValue, nil
	case strings.HasPrefix(tok, `"`):
		s, err := strconv.Unquote(tok)
		if err != nil {
			return nil, fmt.Errorf("bad string literal %q: %w", tok, err)
		}
		return pvm.NewString(rt, s), nil
	default:
		m := integralLiteral.FindStringSubmatch(tok)
		if m == nil {
			return nil, fmt.Errorf("unrecognized value literal %q", tok)
		}
		signed := m[1] == "int"
		size, err := strconv.ParseUint(m[2], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("bad size in %q: %w", tok, err)
		}
		raw, err := strconv.ParseInt(m[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad value in %q: %w", tok, err)
		}
		v := pvm.MakeIntegral(rt, uint8(size), signed, uint64(raw))
		if v == pvm.NullValue {
			return nil, fmt.Errorf("value literal %q out of range", tok)
		}
		return v, nil
	}
}
