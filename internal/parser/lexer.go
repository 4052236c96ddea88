// Package parser turns Poke source text into internal/ast trees (spec §4.8). It is
// split in two stages: participle produces a concrete syntax tree of lightly-typed
// grammar structs (this file and grammar.go), and Lower (lower.go) walks that tree
// building the mutable internal/ast nodes the compiler passes operate on. Keeping the
// two separate means the grammar can evolve -- new literal suffixes, new statement
// forms -- without internal/ast ever importing a parsing library.
package parser

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// lexerPos is embedded (as a field named Pos) by every grammar struct so participle
// can stamp source positions automatically.
type lexerPos = lexer.Position

// pokeLexer tokenizes Poke source. Longest-match-first ordering matters: multi-char
// operators must precede their single-char prefixes, and the bit-concatenation token
// ":::" must precede ":".
var pokeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*|#[^\n]*|/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
	{Name: "Offset", Pattern: `(?:0[xX][0-9a-fA-F]+|[0-9]+)(?:U|S)?(?:B|H|N|L)?#[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Hex", Pattern: `0[xX][0-9a-fA-F]+(?:U|S)?(?:B|H|N|L)?`},
	{Name: "Bin", Pattern: `0[bB][01]+(?:U|S)?(?:B|H|N|L)?`},
	{Name: "Oct", Pattern: `0[oO][0-7]+(?:U|S)?(?:B|H|N|L)?`},
	{Name: "Int", Pattern: `[0-9]+(?:U|S)?(?:B|H|N|L)?`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "BConcat", Pattern: `:::`},
	{Name: "OpMulti", Pattern: `==|!=|<=|>=|&&|\|\||<<|>>|\+\+|--|\.\.`},
	{Name: "Punct", Pattern: `[-+*/%&|^~!<>=(){}\[\],.;:?@]`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})
