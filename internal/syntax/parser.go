// Package syntax provides the parser collaborators used by the repair pipeline.
// A Parser answers one question: does this text parse, and if not, where and why.
// It is the only host-language-specific dependency of the pipeline.
package syntax

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a parser-independent hint describing what kind of failure was found.
// Parsers that cannot tell leave it as KindUnknown and callers fall back to
// reading the message text.
type Kind int

const (
	KindUnknown Kind = iota
	KindIndentation
	KindUnclosedBracket
	KindUnterminatedString
	KindInvalidSyntax
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindIndentation:
		return "indentation"
	case KindUnclosedBracket:
		return "unclosed_bracket"
	case KindUnterminatedString:
		return "unterminated_string"
	case KindInvalidSyntax:
		return "invalid_syntax"
	default:
		return "unknown"
	}
}

// Error is a diagnosable syntax error. Line and Column are 1-based; zero means
// the parser could not tell.
type Error struct {
	Line    int
	Column  int
	Message string
	Kind    Kind
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Parser checks whether source text parses.
//
// Check returns nil when the source parses, a *Error when it does not, and any
// other error when the parser itself failed.
type Parser interface {
	Check(source string) error
}

// Parser names accepted by New.
const (
	ParserBuiltin    = "builtin"
	ParserTreeSitter = "tree-sitter"
)

// New returns the parser registered under name. An empty name selects
// tree-sitter. The builtin checker is lenient and must be asked for by name.
func New(name string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ParserTreeSitter, "treesitter":
		return NewTreeSitterParser(), nil
	case ParserBuiltin, "python":
		return NewPythonChecker(), nil
	default:
		return nil, fmt.Errorf("unknown parser %q", name)
	}
}

// AsError reports whether err is (or wraps) a diagnosable syntax error.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
