package parser

import (
	"github.com/alecthomas/participle/v2"
)

var (
	programParser    = participle.MustBuild[Program](participle.Lexer(pokeLexer), participle.UseLookahead(4))
	expressionParser = participle.MustBuild[Expr](participle.Lexer(pokeLexer), participle.UseLookahead(4))
	statementParser  = participle.MustBuild[Stmt](participle.Lexer(pokeLexer), participle.UseLookahead(4))
)

// ParseProgram parses a whole source buffer (spec §4.8 "program" start symbol).
func ParseProgram(filename, src string) (*Program, error) {
	return programParser.ParseString(filename, src)
}

// ParseExpression parses a single expression (spec §4.8 "expression" start symbol,
// used by the top-level driver's CompileExpression).
func ParseExpression(filename, src string) (*Expr, error) {
	return expressionParser.ParseString(filename, src)
}

// ParseStatement parses a single statement (spec §4.8 "statement" start symbol).
func ParseStatement(filename, src string) (*Stmt, error) {
	return statementParser.ParseString(filename, src)
}
