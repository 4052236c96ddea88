package asm

import (
	"fmt"
	"strings"
)

// Statement is one parsed line of PVM routine source: either a label definition
// (Label non-empty, Op empty) or an instruction (Op non-empty, zero or more Operands).
type Statement struct {
	Line     int
	Label    string
	Op       string
	Operands []string
}

// Parse splits src into statements (spec §6.5 "semicolons separate statements"; a
// newline separates statements too, the same as a semicolon would).
func Parse(src string) ([]Statement, error) {
	var stmts []Statement

	for i, raw := range splitStatements(src) {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}

		fields, err := tokenize(text)
		if err != nil {
			return nil, fmt.Errorf("asm: statement %d: %w", i+1, err)
		}
		if len(fields) == 0 {
			continue
		}

		if len(fields) == 1 && strings.HasPrefix(fields[0], ".") {
			name := strings.TrimPrefix(fields[0], ".")
			if name == "" {
				return nil, fmt.Errorf("asm: statement %d: empty label", i+1)
			}
			stmts = append(stmts, Statement{Line: i + 1, Label: name})
			continue
		}

		stmts = append(stmts, Statement{Line: i + 1, Op: fields[0], Operands: fields[1:]})
	}

	return stmts, nil
}

// splitStatements splits on ';' and '\n', treating either as a statement separator,
// except inside a double-quoted string literal (so a `push "a;b"` string survives
// intact).
func splitStatements(src string) []string {
	var stmts []string

	var cur strings.Builder
	inString := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		switch {
		case c == '"' && (i == 0 || src[i-1] != '\\'):
			inString = !inString
			cur.WriteByte(c)
		case !inString && (c == ';' || c == '\n'):
			stmts = append(stmts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	stmts = append(stmts, cur.String())

	return stmts
}

// tokenize splits a statement on whitespace, keeping a double-quoted substring as one
// token (including its quotes, unquoted by the caller that needs the value).
func tokenize(text string) ([]string, error) {
	var fields []string

	var cur strings.Builder
	inString := false

	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]

		switch {
		case c == '"' && (i == 0 || text[i-1] != '\\'):
			inString = !inString
			cur.WriteByte(c)
		case !inString && (c == ' ' || c == '\t'):
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()

	if inString {
		return nil, fmt.Errorf("unterminated string literal in %q", text)
	}

	return fields, nil
}
