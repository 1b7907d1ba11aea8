package repair

import (
	"fmt"
	"strings"

	"codemend/internal/logging"
	"codemend/internal/syntax"
)

// Classify maps a raw parser message to a repair category. It is a pure
// function of the message text and is case-insensitive.
func Classify(message string) ErrorClass {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "indent"):
		return ClassIndentation
	case strings.Contains(m, "unexpected end"), strings.Contains(m, "eof"):
		return ClassBracketBalance
	case strings.Contains(m, "unterminated"),
		strings.Contains(m, "eol while scanning"),
		strings.Contains(m, "string literal"):
		return ClassStringIssue
	case strings.Contains(m, "invalid syntax"):
		return ClassSyntax
	default:
		return ClassUnknown
	}
}

// ClassifyError prefers the parser-supplied kind and falls back to the
// message text when the parser could not tell.
func ClassifyError(err *syntax.Error) ErrorClass {
	switch err.Kind {
	case syntax.KindIndentation:
		return ClassIndentation
	case syntax.KindUnclosedBracket:
		return ClassBracketBalance
	case syntax.KindUnterminatedString:
		return ClassStringIssue
	case syntax.KindInvalidSyntax:
		return ClassSyntax
	default:
		return Classify(err.Message)
	}
}

// Diagnoser runs the parser and turns a failure into a Diagnosis.
type Diagnoser struct {
	parser syntax.Parser
}

// NewDiagnoser creates a diagnoser backed by parser.
func NewDiagnoser(parser syntax.Parser) *Diagnoser {
	return &Diagnoser{parser: parser}
}

// Diagnose returns nil when text parses. A parser fault (anything other than
// a *syntax.Error) is returned as an error.
func (d *Diagnoser) Diagnose(text string) (*Diagnosis, error) {
	err := d.parser.Check(text)
	if err == nil {
		return nil, nil
	}
	se, ok := syntax.AsError(err)
	if !ok {
		return nil, fmt.Errorf("parser fault: %w", err)
	}

	lines := strings.Split(text, "\n")
	line := se.Line
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	diag := &Diagnosis{
		Line:       line,
		LineText:   strings.TrimRight(lines[line-1], "\r"),
		RawMessage: se.Message,
		Class:      ClassifyError(se),
	}
	logging.SyntaxDebug("line %d: %s -> %s", diag.Line, diag.RawMessage, diag.Class)
	return diag, nil
}
