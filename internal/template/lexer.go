package template

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType identifies the type of token.
type TokenType int

// TokenType constants for template token types.
const (
	TokenText TokenType = iota // Literal text
	TokenExpr                  // Expression content (between {{ and }})
	TokenStmt                  // Statement content (between {% and %})
	TokenEOF                   // End of input
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenExpr:
		return "EXPR"
	case TokenStmt:
		return "STMT"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

// tag describes one delimiter pair. Comments produce no token.
type tag struct {
	open, close string
	kind        TokenType
	comment     bool
	name        string
}

var tags = []tag{
	{open: "{{", close: "}}", kind: TokenExpr, name: "expression"},
	{open: "{%", close: "%}", kind: TokenStmt, name: "statement"},
	{open: "{#", close: "#}", comment: true, name: "comment"},
}

// trimMarker placed directly inside a delimiter strips the whitespace on that
// side of the tag, newlines included: "{{- x -}}", "{%- endfor %}".
const trimMarker = '-'

// Lexer tokenizes a template string.
type Lexer struct {
	input string
	file  string
	pos   int // byte offset
	line  int // 1-based
	col   int // 1-based

	tokens   []Token
	trimNext bool // strip leading whitespace of the next text run
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input, file string) *Lexer {
	return &Lexer{input: input, file: file, line: 1, col: 1}
}

// StartAt sets the line number of the first input line, for sources cut out
// of a larger file.
func (l *Lexer) StartAt(line int) *Lexer {
	if line > 0 {
		l.line = line
	}
	return l
}

// Tokenize converts the input into a slice of tokens ending with TokenEOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	for l.pos < len(l.input) {
		if t, ok := l.tagAt(); ok {
			if err := l.scanTag(t); err != nil {
				return nil, err
			}
			continue
		}
		l.scanText()
	}
	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.position()})
	return l.tokens, nil
}

// tagAt reports the tag opening at the current offset, if any.
func (l *Lexer) tagAt() (tag, bool) {
	rest := l.input[l.pos:]
	for _, t := range tags {
		if strings.HasPrefix(rest, t.open) {
			return t, true
		}
	}
	return tag{}, false
}

func (l *Lexer) scanText() {
	start, pos := l.pos, l.position()
	for l.pos < len(l.input) {
		if _, ok := l.tagAt(); ok {
			break
		}
		l.advance()
	}

	text := l.input[start:l.pos]
	if l.trimNext {
		trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
		pos = advancePosition(pos, text[:len(text)-len(trimmed)])
		text = trimmed
		l.trimNext = false
	}
	if text != "" {
		l.tokens = append(l.tokens, Token{Type: TokenText, Value: text, Pos: pos})
	}
}

// scanTag consumes one tag. Quoted strings inside expressions and statements
// may contain the closing delimiter.
func (l *Lexer) scanTag(t tag) error {
	start := l.position()
	l.skip(len(t.open))
	l.trimNext = false

	if l.peek() == trimMarker {
		l.skip(1)
		l.trimPrevious()
	}

	bodyStart := l.pos
	var quote rune
	depth := 0 // braces opened inside the tag, e.g. dict literals
	for l.pos < len(l.input) {
		r := l.peek()
		switch {
		case quote != 0:
			if r == '\\' {
				l.advance()
			} else if r == quote {
				quote = 0
			}
		case !t.comment && (r == '"' || r == '\''):
			quote = r
		case depth == 0 && strings.HasPrefix(l.input[l.pos:], t.close):
			body := l.input[bodyStart:l.pos]
			if strings.HasSuffix(body, string(trimMarker)) {
				body = body[:len(body)-1]
				l.trimNext = true
			}
			l.skip(len(t.close))
			if !t.comment {
				l.tokens = append(l.tokens, Token{Type: t.kind, Value: strings.TrimSpace(body), Pos: start})
			}
			return nil
		case !t.comment && r == '{':
			depth++
		case !t.comment && r == '}' && depth > 0:
			depth--
		}
		l.advance()
	}

	if quote != 0 {
		return NewLexError(start, "unterminated string in "+t.name)
	}
	return NewLexError(start, "unclosed "+t.name+": missing '"+t.close+"'")
}

// trimPrevious strips trailing whitespace from the preceding text token.
func (l *Lexer) trimPrevious() {
	n := len(l.tokens)
	if n == 0 || l.tokens[n-1].Type != TokenText {
		return
	}
	text := strings.TrimRightFunc(l.tokens[n-1].Value, unicode.IsSpace)
	if text == "" {
		l.tokens = l.tokens[:n-1]
		return
	}
	l.tokens[n-1].Value = text
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

// skip advances over n bytes of delimiter text, which never contains newlines.
func (l *Lexer) skip(n int) {
	l.pos += n
	l.col += n
}

func (l *Lexer) position() Position {
	return Position{File: l.file, Line: l.line, Column: l.col}
}

func advancePosition(p Position, s string) Position {
	for _, r := range s {
		if r == '\n' {
			p.Line++
			p.Column = 1
		} else {
			p.Column++
		}
	}
	return p
}
