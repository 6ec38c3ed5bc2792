package sql

import (
	"fmt"
	"strings"
)

// TokenKind is the class of a lexical token.
type TokenKind uint8

const (
	EOF TokenKind = iota
	Ident
	Keyword
	Number
	String
	Symbol
)

func (k TokenKind) String() string {
	switch k {
	case EOF:
		return "end of input"
	case Ident:
		return "identifier"
	case Keyword:
		return "keyword"
	case Number:
		return "number"
	case String:
		return "string"
	case Symbol:
		return "symbol"
	}
	return fmt.Sprintf("TokenKind(%d)", uint8(k))
}

// Token is a lexical token with its position in the input. Keywords are
// upper-cased; every other token keeps its source text, without quotes for
// strings.
type Token struct {
	Kind   TokenKind
	Text   string
	Line   int
	Column int
}

func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return t.Kind.String()
	case String:
		return fmt.Sprintf("%q", t.Text)
	}
	return t.Text
}

var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "INSERT": true, "INTO": true,
	"VALUES": true, "CREATE": true, "TABLE": true, "DATABASE": true, "DELETE": true,
	"DROP": true, "USE": true, "AND": true, "OR": true, "NOT": true, "LIMIT": true,
	"PRIMARY": true, "KEY": true, "UNIQUE": true, "NULL": true, "AUTO_INCREMENT": true,
	"INDEX": true, "TRUE": true, "FALSE": true,
}

// twoCharSymbols must be matched before single characters.
var twoCharSymbols = []string{"==", "!=", "<>", "<=", ">="}

const oneCharSymbols = "=<>*,;.()-"

// SyntaxError reports a lexing or parsing failure at a position of the input.
type SyntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// lexer turns SQL text into tokens.
// 词法分析器：把SQL文本切分成token
type lexer struct {
	input  []rune
	pos    int
	line   int
	column int
}

// Lex splits input into tokens. The last token is always EOF.
func Lex(input string) ([]Token, error) {
	l := &lexer{input: []rune(input), line: 1, column: 1}
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			return tokens, nil
		}
	}
}

func (l *lexer) peek(offset int) rune {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *lexer) advance() rune {
	r := l.input[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return r
}

func (l *lexer) errorf(line, column int, format string, v ...interface{}) error {
	return &SyntaxError{Line: line, Column: column, Msg: fmt.Sprintf(format, v...)}
}

// skip consumes whitespace and -- comments.
func (l *lexer) skip() {
	for l.pos < len(l.input) {
		r := l.peek(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			l.advance()
		case r == '-' && l.peek(1) == '-':
			for l.pos < len(l.input) && l.peek(0) != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (Token, error) {
	l.skip()
	line, column := l.line, l.column
	if l.pos >= len(l.input) {
		return Token{Kind: EOF, Line: line, Column: column}, nil
	}

	r := l.peek(0)
	switch {
	case isIdentStart(r):
		start := l.pos
		for l.pos < len(l.input) && isIdentPart(l.peek(0)) {
			l.advance()
		}
		text := string(l.input[start:l.pos])
		if upper := strings.ToUpper(text); keywords[upper] {
			return Token{Kind: Keyword, Text: upper, Line: line, Column: column}, nil
		}
		return Token{Kind: Ident, Text: text, Line: line, Column: column}, nil

	case isDigit(r):
		start := l.pos
		for l.pos < len(l.input) && isDigit(l.peek(0)) {
			l.advance()
		}
		if isIdentStart(l.peek(0)) || l.peek(0) == '.' {
			return Token{}, l.errorf(line, column, "malformed number")
		}
		return Token{Kind: Number, Text: string(l.input[start:l.pos]), Line: line, Column: column}, nil

	case r == '\'' || r == '"':
		return l.quoted(line, column)
	}

	for _, sym := range twoCharSymbols {
		if r == rune(sym[0]) && l.peek(1) == rune(sym[1]) {
			l.advance()
			l.advance()
			return Token{Kind: Symbol, Text: sym, Line: line, Column: column}, nil
		}
	}
	if strings.ContainsRune(oneCharSymbols, r) {
		l.advance()
		return Token{Kind: Symbol, Text: string(r), Line: line, Column: column}, nil
	}
	return Token{}, l.errorf(line, column, "unexpected character %q", r)
}

// quoted reads a string literal. The quote character is escaped by doubling it
// or with a backslash.
func (l *lexer) quoted(line, column int) (Token, error) {
	quote := l.advance()
	var b strings.Builder
	for {
		if l.pos >= len(l.input) {
			return Token{}, l.errorf(line, column, "unterminated string")
		}
		r := l.advance()
		switch {
		case r == '\\' && l.pos < len(l.input):
			b.WriteRune(l.advance())
		case r == quote && l.peek(0) == quote:
			l.advance()
			b.WriteRune(quote)
		case r == quote:
			return Token{Kind: String, Text: b.String(), Line: line, Column: column}, nil
		default:
			b.WriteRune(r)
		}
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
