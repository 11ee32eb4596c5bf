// Package token defines the lexical token kinds produced by the lexer and
// consumed by the parser.
package token

import "fmt"

// Kind identifies the lexical category of a Token.
type Kind int

const (
	EOF Kind = iota
	Error

	Int
	Ident

	EOS // ';'

	LParen
	RParen
	LBrace
	RBrace

	Star
	Percent
	Plus
	Minus
	Eq     // '=='
	Lt
	Gt
	Assign // '='

	Exit
	If
	Else
	For
	While
	Let
	Define
	Return
)

var names = map[Kind]string{
	EOF:    "EOF",
	Error:  "ERROR",
	Int:    "INT",
	Ident:  "IDENT",
	EOS:    "EOS",
	LParen: "LPAREN",
	RParen: "RPAREN",
	LBrace: "LBRACE",
	RBrace: "RBRACE",
	Star:   "STAR",
	Percent: "PERCENT",
	Plus:   "PLUS",
	Minus:  "MINUS",
	Eq:     "EQ",
	Lt:     "LT",
	Gt:     "GT",
	Assign: "ASSIGN",
	Exit:   "EXIT",
	If:     "IF",
	Else:   "ELSE",
	For:    "FOR",
	While:  "WHILE",
	Let:    "LET",
	Define: "DEFINE",
	Return: "RETURN",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Keywords maps the exact keyword lexemes to their token kind.
// Anything else starting with a letter or underscore lexes as Ident.
var Keywords = map[string]Kind{
	"exit":   Exit,
	"if":     If,
	"else":   Else,
	"for":    For,
	"while":  While,
	"let":    Let,
	"define": Define,
	"return": Return,
}

// Precedence returns the binding power of a binary-operator kind, and
// whether the kind is a binary operator at all.
func Precedence(k Kind) (int, bool) {
	switch k {
	case Star, Percent:
		return 5, true
	case Plus, Minus:
		return 4, true
	case Lt, Gt, Eq:
		return 3, true
	default:
		return 0, false
	}
}

// Token is a single lexical unit: a kind plus the source position it was
// scanned from, and (for Int/Ident, and cosmetically for operators) the
// exact source text it was built from.
type Token struct {
	Kind   Kind
	Lexeme string
	Line   int
	Col    int
}

func (t Token) String() string {
	if t.Lexeme != "" {
		return fmt.Sprintf("%s(%q)", t.Kind, t.Lexeme)
	}
	return t.Kind.String()
}
