package syntax

import (
	"fmt"
	"strings"
)

// PythonChecker is a tokenizer-level Python 3 syntax checker.
//
// It tracks indentation, bracket nesting and string literals exactly, and applies
// a set of statement-shape rules on top (header colons, operator placement,
// adjacent operands, import forms). It accepts a superset of valid Python: code
// it rejects does not parse, but not everything it accepts would compile.
// Messages follow CPython wording so they classify the same way. It is only
// used when selected by name; the default parser is tree-sitter.
type PythonChecker struct{}

// NewPythonChecker returns the builtin Python checker.
func NewPythonChecker() *PythonChecker {
	return &PythonChecker{}
}

// Check implements Parser.
func (c *PythonChecker) Check(source string) error {
	s := &pyScanner{src: source, line: 1, indents: []int{0}}
	return s.run()
}

type tokenKind int

const (
	tokName tokenKind = iota
	tokNumber
	tokString
	tokOp
)

type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

type logicalLine struct {
	line   int
	indent int
	tokens []token
}

type openBracket struct {
	ch   byte
	line int
	col  int
}

type pyScanner struct {
	src       string
	pos       int
	line      int
	lineStart int

	brackets []openBracket
	joined   bool
	cur      *logicalLine

	indents     []int
	expectBlock bool
	blockLine   int
}

func (s *pyScanner) run() error {
	for s.pos < len(s.src) {
		if s.cur == nil {
			s.startLine()
			continue
		}
		c := s.src[s.pos]
		var err error
		switch {
		case c == '\n':
			s.newline()
			if len(s.brackets) == 0 && !s.joined {
				err = s.endLogical()
			}
			s.joined = false
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			s.pos++
		case c == '#':
			s.skipComment()
		case c == '\\':
			err = s.continuation()
		case c == '"' || c == '\'':
			err = s.scanString(s.pos)
		case isIdentStart(c):
			err = s.scanName()
		case isDigit(c) || (c == '.' && s.pos+1 < len(s.src) && isDigit(s.src[s.pos+1])):
			s.scanNumber()
		default:
			err = s.scanOp()
		}
		if err != nil {
			return err
		}
	}
	return s.finish()
}

func (s *pyScanner) col() int {
	return s.pos - s.lineStart + 1
}

func (s *pyScanner) newline() {
	s.pos++
	s.line++
	s.lineStart = s.pos
}

// startLine measures indentation at the start of a physical line. Blank and
// comment-only lines are consumed without opening a logical line.
func (s *pyScanner) startLine() {
	width := 0
measure:
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case ' ':
			width++
		case '\t':
			width = (width/8 + 1) * 8
		case '\f':
			width = 0
		default:
			break measure
		}
		s.pos++
	}
	if s.pos >= len(s.src) {
		return
	}
	switch s.src[s.pos] {
	case '\n':
		s.newline()
		return
	case '\r':
		if s.pos+1 >= len(s.src) || s.src[s.pos+1] == '\n' {
			s.pos++
			if s.pos < len(s.src) {
				s.newline()
			}
			return
		}
	case '#':
		s.skipComment()
		if s.pos < len(s.src) {
			s.newline()
		}
		return
	}
	s.cur = &logicalLine{line: s.line, indent: width}
}

func (s *pyScanner) skipComment() {
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		s.pos++
	}
}

func (s *pyScanner) continuation() error {
	line, col := s.line, s.col()
	s.pos++
	if s.pos < len(s.src) && s.src[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < len(s.src) && s.src[s.pos] != '\n' {
		return &Error{Line: line, Column: col, Message: "unexpected character after line continuation character"}
	}
	s.joined = true
	return nil
}

func (s *pyScanner) emit(kind tokenKind, text string, line, col int) {
	s.cur.tokens = append(s.cur.tokens, token{kind: kind, text: text, line: line, col: col})
}

func (s *pyScanner) scanName() error {
	start, col := s.pos, s.col()
	for s.pos < len(s.src) && isIdentChar(s.src[s.pos]) {
		s.pos++
	}
	word := s.src[start:s.pos]
	if s.pos < len(s.src) && (s.src[s.pos] == '"' || s.src[s.pos] == '\'') && isStringPrefix(word) {
		return s.scanString(start)
	}
	s.emit(tokName, word, s.line, col)
	return nil
}

func (s *pyScanner) scanNumber() {
	start, col := s.pos, s.col()
	prefixed := len(s.src) > s.pos+1 && s.src[s.pos] == '0' && strings.ContainsRune("xXoObB", rune(s.src[s.pos+1]))
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if isIdentChar(c) || c == '.' {
			s.pos++
			continue
		}
		if (c == '+' || c == '-') && !prefixed && s.pos > start && (s.src[s.pos-1] == 'e' || s.src[s.pos-1] == 'E') {
			s.pos++
			continue
		}
		break
	}
	s.emit(tokNumber, s.src[start:s.pos], s.line, col)
}

// scanString consumes a string literal whose prefix starts at start and whose
// opening quote is at s.pos.
func (s *pyScanner) scanString(start int) error {
	line, col := s.line, start-s.lineStart+1
	q := s.src[s.pos]
	delim := strings.Repeat(string(q), 3)
	if strings.HasPrefix(s.src[s.pos:], delim) {
		s.pos += 3
		for {
			if s.pos >= len(s.src) {
				return &Error{
					Line:    line,
					Column:  col,
					Message: fmt.Sprintf("unterminated triple-quoted string literal (detected at line %d)", s.line),
					Kind:    KindUnterminatedString,
				}
			}
			c := s.src[s.pos]
			switch {
			case c == '\\':
				s.pos++
				if s.pos < len(s.src) {
					if s.src[s.pos] == '\n' {
						s.newline()
					} else {
						s.pos++
					}
				}
			case c == '\n':
				s.newline()
			case c == q && strings.HasPrefix(s.src[s.pos:], delim):
				s.pos += 3
				s.emit(tokString, s.src[start:s.pos], line, col)
				return nil
			default:
				s.pos++
			}
		}
	}

	s.pos++
	for {
		if s.pos >= len(s.src) || s.src[s.pos] == '\n' {
			return &Error{
				Line:    line,
				Column:  col,
				Message: fmt.Sprintf("unterminated string literal (detected at line %d)", line),
				Kind:    KindUnterminatedString,
			}
		}
		c := s.src[s.pos]
		if c == '\\' {
			s.pos++
			if s.pos < len(s.src) {
				if s.src[s.pos] == '\n' {
					s.newline()
				} else {
					s.pos++
				}
			}
			continue
		}
		s.pos++
		if c == q {
			s.emit(tokString, s.src[start:s.pos], line, col)
			return nil
		}
	}
}

var (
	threeCharOps = []string{"**=", "//=", ">>=", "<<=", "..."}
	twoCharOps   = []string{
		"**", "//", "==", "!=", "<=", ">=", "->", "+=", "-=", "*=", "/=",
		"%=", "&=", "|=", "^=", "@=", ":=", "<<", ">>",
	}
)

const oneCharOps = "+-*/%@&|^~<>=.,:;()[]{}"

func (s *pyScanner) scanOp() error {
	line, col := s.line, s.col()
	rest := s.src[s.pos:]
	for _, group := range [][]string{threeCharOps, twoCharOps} {
		for _, op := range group {
			if strings.HasPrefix(rest, op) {
				s.pos += len(op)
				s.emit(tokOp, op, line, col)
				return nil
			}
		}
	}
	c := s.src[s.pos]
	if !strings.ContainsRune(oneCharOps, rune(c)) {
		return &Error{Line: line, Column: col, Message: "invalid syntax", Kind: KindInvalidSyntax}
	}
	switch c {
	case '(', '[', '{':
		s.brackets = append(s.brackets, openBracket{ch: c, line: line, col: col})
	case ')', ']', '}':
		if len(s.brackets) == 0 {
			return &Error{Line: line, Column: col, Message: fmt.Sprintf("unmatched '%c'", c)}
		}
		top := s.brackets[len(s.brackets)-1]
		if closerFor(top.ch) != c {
			msg := fmt.Sprintf("closing parenthesis '%c' does not match opening parenthesis '%c'", c, top.ch)
			if top.line != line {
				msg += fmt.Sprintf(" on line %d", top.line)
			}
			return &Error{Line: line, Column: col, Message: msg}
		}
		s.brackets = s.brackets[:len(s.brackets)-1]
	}
	s.pos++
	s.emit(tokOp, string(c), line, col)
	return nil
}

func (s *pyScanner) endLogical() error {
	ll := s.cur
	s.cur = nil
	if ll == nil || len(ll.tokens) == 0 {
		return nil
	}
	if err := s.checkIndent(ll); err != nil {
		return err
	}
	opens, err := checkStatement(ll)
	if err != nil {
		return err
	}
	if opens {
		s.expectBlock = true
		s.blockLine = ll.line
	}
	return nil
}

func (s *pyScanner) checkIndent(ll *logicalLine) error {
	top := s.indents[len(s.indents)-1]
	if s.expectBlock {
		s.expectBlock = false
		if ll.indent <= top {
			return &Error{
				Line:    ll.line,
				Column:  1,
				Message: fmt.Sprintf("expected an indented block after line %d", s.blockLine),
				Kind:    KindIndentation,
			}
		}
		s.indents = append(s.indents, ll.indent)
		return nil
	}
	if ll.indent > top {
		return &Error{Line: ll.line, Column: 1, Message: "unexpected indent", Kind: KindIndentation}
	}
	for ll.indent < s.indents[len(s.indents)-1] {
		s.indents = s.indents[:len(s.indents)-1]
	}
	if ll.indent != s.indents[len(s.indents)-1] {
		return &Error{
			Line:    ll.line,
			Column:  1,
			Message: "unindent does not match any outer indentation level",
			Kind:    KindIndentation,
		}
	}
	return nil
}

func (s *pyScanner) finish() error {
	if len(s.brackets) > 0 {
		b := s.brackets[len(s.brackets)-1]
		return &Error{
			Line:    b.line,
			Column:  b.col,
			Message: fmt.Sprintf("unexpected EOF while parsing ('%c' was never closed)", b.ch),
			Kind:    KindUnclosedBracket,
		}
	}
	if s.joined {
		return &Error{Line: s.line, Message: "unexpected EOF while parsing", Kind: KindUnclosedBracket}
	}
	if s.cur != nil {
		if err := s.endLogical(); err != nil {
			return err
		}
	}
	if s.expectBlock {
		return &Error{
			Line:    s.blockLine + 1,
			Column:  1,
			Message: fmt.Sprintf("expected an indented block after line %d", s.blockLine),
			Kind:    KindIndentation,
		}
	}
	return nil
}

func closerFor(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	default:
		return '}'
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isStringPrefix(word string) bool {
	switch strings.ToLower(word) {
	case "r", "u", "b", "f", "br", "rb", "fr", "rf":
		return true
	}
	return false
}
