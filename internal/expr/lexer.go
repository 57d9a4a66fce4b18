// Package expr implements the restricted expression language used by the
// derivation pipeline: row predicates (`phase=="encoding" & onset>10`),
// string templates (`fmt("instruction_{condition}")`), and group reference
// arithmetic (`first.onset-10`).
//
// The language is deliberately small — no user functions, no loops, no
// side effects — and is parsed by a hand-written lexer and recursive-descent
// parser into tiny ASTs that are evaluated by tree walking. Evaluating the
// same expression against the same row twice always yields the same result.
package expr

import (
	"fmt"
	"strings"
)

type TokenType int

const (
	// Special
	ILLEGAL TokenType = iota
	EOF

	// Literals
	IDENT  // column name, `quoted column`, or keyword-ish word (in, isna, notna, first, fmt)
	STRING // "value" or 'value'
	NUMBER // 123, 1.25

	// Operators & punctuation
	EQ       // ==
	NEQ      // !=
	LT       // <
	LTE      // <=
	GT       // >
	GTE      // >=
	AND      // &
	OR       // |
	PLUS     // +
	MINUS    // -
	DOT      // .
	COMMA    // ,
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
)

// Token is one lexical unit with its source position for error messages.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int
}

func (t Token) String() string {
	return fmt.Sprintf("Token(%d, %q)", t.Type, t.Literal)
}

// Lexer walks the input byte by byte. Expressions are short (one line), so
// positions are plain byte offsets rather than line/column pairs.
type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
}

// NewLexer returns a Lexer positioned at the first character of input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken returns the next token, or an ILLEGAL token for unexpected input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	pos := l.position

	switch l.ch {
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: EQ, Literal: "==", Pos: pos}
		}
		// A single '=' is tolerated as equality; flag grammars tend to
		// produce it and rejecting it helps nobody.
		l.readChar()
		return Token{Type: EQ, Literal: "=", Pos: pos}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: NEQ, Literal: "!=", Pos: pos}
		}
		l.readChar()
		return Token{Type: ILLEGAL, Literal: "!", Pos: pos}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: LTE, Literal: "<=", Pos: pos}
		}
		l.readChar()
		return Token{Type: LT, Literal: "<", Pos: pos}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: GTE, Literal: ">=", Pos: pos}
		}
		l.readChar()
		return Token{Type: GT, Literal: ">", Pos: pos}
	case '&':
		l.readChar()
		return Token{Type: AND, Literal: "&", Pos: pos}
	case '|':
		l.readChar()
		return Token{Type: OR, Literal: "|", Pos: pos}
	case '+':
		l.readChar()
		return Token{Type: PLUS, Literal: "+", Pos: pos}
	case '-':
		l.readChar()
		return Token{Type: MINUS, Literal: "-", Pos: pos}
	case '.':
		l.readChar()
		return Token{Type: DOT, Literal: ".", Pos: pos}
	case ',':
		l.readChar()
		return Token{Type: COMMA, Literal: ",", Pos: pos}
	case '(':
		l.readChar()
		return Token{Type: LPAREN, Literal: "(", Pos: pos}
	case ')':
		l.readChar()
		return Token{Type: RPAREN, Literal: ")", Pos: pos}
	case '[':
		l.readChar()
		return Token{Type: LBRACKET, Literal: "[", Pos: pos}
	case ']':
		l.readChar()
		return Token{Type: RBRACKET, Literal: "]", Pos: pos}
	case '"', '\'':
		return l.readString(l.ch)
	case '`':
		return l.readQuotedIdent()
	case 0:
		return Token{Type: EOF, Literal: "", Pos: pos}
	default:
		if isLetter(l.ch) {
			return Token{Type: IDENT, Literal: l.readIdentifier(), Pos: pos}
		}
		if isDigit(l.ch) {
			return Token{Type: NUMBER, Literal: l.readNumber(), Pos: pos}
		}
		ch := l.ch
		l.readChar()
		return Token{Type: ILLEGAL, Literal: string(ch), Pos: pos}
	}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

func (l *Lexer) readNumber() string {
	position := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[position:l.position]
}

// readString consumes a quote-delimited string literal. The delimiter may be
// a double or single quote; there are no escape sequences in this language.
func (l *Lexer) readString(quote byte) Token {
	pos := l.position
	start := l.position + 1
	for {
		l.readChar()
		if l.ch == quote || l.ch == 0 {
			break
		}
	}
	if l.ch == 0 {
		return Token{Type: ILLEGAL, Literal: l.input[pos:], Pos: pos}
	}
	lit := l.input[start:l.position]
	l.readChar() // consume closing quote
	return Token{Type: STRING, Literal: lit, Pos: pos}
}

// readQuotedIdent consumes a backtick-quoted column name such as
// `Instruction.started`. The quoting exists so sheet columns containing
// punctuation remain addressable.
func (l *Lexer) readQuotedIdent() Token {
	pos := l.position
	start := l.position + 1
	for {
		l.readChar()
		if l.ch == '`' || l.ch == 0 {
			break
		}
	}
	if l.ch == 0 {
		return Token{Type: ILLEGAL, Literal: l.input[pos:], Pos: pos}
	}
	lit := l.input[start:l.position]
	l.readChar()
	return Token{Type: IDENT, Literal: lit, Pos: pos}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// Tokenize lexes the entire input, failing on the first illegal token.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		if tok.Type == EOF {
			tokens = append(tokens, tok)
			return tokens, nil
		}
		if tok.Type == ILLEGAL {
			return nil, fmt.Errorf("illegal token %q at offset %d in %q", tok.Literal, tok.Pos, truncate(input))
		}
		tokens = append(tokens, tok)
	}
}

func truncate(s string) string {
	if len(s) > 80 {
		return strings.TrimSpace(s[:77]) + "..."
	}
	return s
}
