package template

import "fmt"

// Error is implemented by every error returned from lexing, parsing and
// rendering. Position locates the failing tag in the page source.
type Error interface {
	error
	Position() Position
}

type located struct {
	pos Position
	msg string
}

func (e *located) Position() Position { return e.pos }

func (e *located) Error() string {
	if e.pos.File == "" {
		return fmt.Sprintf("%d:%d: %s", e.pos.Line, e.pos.Column, e.msg)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.pos.File, e.pos.Line, e.pos.Column, e.msg)
}

// LexError reports an unterminated tag or string.
type LexError struct{ located }

// NewLexError creates a lexer error.
func NewLexError(pos Position, msg string) *LexError {
	return &LexError{located{pos: pos, msg: msg}}
}

// ParseError reports a malformed statement.
type ParseError struct{ located }

func parseErrorf(pos Position, format string, args ...any) *ParseError {
	return &ParseError{located{pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// UnmatchedBlockError reports a block opened without its end tag, or an end
// tag with nothing to close.
type UnmatchedBlockError struct {
	located
	Kind StmtKind
}

func unmatchedBlock(pos Position, kind StmtKind) *UnmatchedBlockError {
	var msg string
	switch kind {
	case StmtFor:
		msg = "'for' block is never closed (missing {% endfor %})"
	case StmtIf:
		msg = "'if' block is never closed (missing {% endif %})"
	case StmtElif, StmtElse, StmtEndIf:
		msg = fmt.Sprintf("'%s' without an open 'if' block", kind)
	case StmtEndFor:
		msg = "'endfor' without an open 'for' block"
	default:
		msg = fmt.Sprintf("unmatched '%s'", kind)
	}
	return &UnmatchedBlockError{located: located{pos: pos, msg: msg}, Kind: kind}
}

// RenderError reports a failed evaluation. Cause carries the underlying
// Starlark error, which may wrap a *core.TemplateError raised by a chart.
type RenderError struct {
	located
	Cause error
}

func renderErrorf(pos Position, cause error, format string, args ...any) *RenderError {
	return &RenderError{located: located{pos: pos, msg: fmt.Sprintf(format, args...)}, Cause: cause}
}

func (e *RenderError) Error() string {
	if e.Cause == nil {
		return e.located.Error()
	}
	return e.located.Error() + ": " + e.Cause.Error()
}

func (e *RenderError) Unwrap() error { return e.Cause }
