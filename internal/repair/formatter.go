package repair

import (
	"strings"

	"codemend/internal/logging"
)

// Formatter applies cheap whitespace normalisation that is safe for
// well-formed code: body indentation, trailing whitespace, operator and
// parenthesis spacing, declaration parameter lists.
//
// Lines that start inside a multi-line string are never touched.
type Formatter struct {
	lang *Language
}

// NewFormatter creates a formatter for lang.
func NewFormatter(lang *Language) *Formatter {
	return &Formatter{lang: lang}
}

// Format returns the normalised text and one record per changed line and rule.
func (f *Formatter) Format(text string) (string, []Record) {
	lines, cr := splitLines(text)
	var records []Record

	var st lexState
	var prevCode, prevIndent string
	havePrev := false
	carry := ""
	// depth is the bracket depth at the start of the current line; lines
	// that start inside brackets are continuation lines.
	depth, prevDepth := 0, 0

	for i, line := range lines {
		info, next := scanLine(line, st)
		st = next

		if info.inString {
			prevCode, prevIndent, havePrev = info.code, leadingWS(line), true
			depth = advanceDepth(depth, info.code)
			prevDepth = depth
			continue
		}
		if isBlank(info) {
			out := strings.TrimRight(line, " \t")
			if out != line {
				records = append(records, Record{Type: RecordBasicSpacing, Line: i + 1, Before: line, After: out})
				lines[i] = out
			}
			if out == "" {
				carry = ""
			}
			continue
		}

		indent := leadingWS(line)
		body := line[len(indent):]
		continuation := depth > 0
		switch {
		case continuation:
		case indent == "":
			switch {
			case havePrev && prevDepth == 0 && f.opensBlock(prevCode):
				carry = prevIndent + f.lang.IndentUnit
				indent = carry
			case carry != "" && !f.lang.endsBlock(body):
				indent = carry
			default:
				carry = ""
			}
			if indent != "" {
				records = append(records, Record{
					Type:   RecordBasicIndentation,
					Line:   i + 1,
					Before: line,
					After:  indent + body,
				})
			}
		default:
			carry = ""
		}

		bodyInfo, _ := scanLine(body, lexState{})
		spaced := f.space(body, bodyInfo, continuation)
		out := indent + spaced
		if spaced != body {
			records = append(records, Record{
				Type:   RecordBasicSpacing,
				Line:   i + 1,
				Before: indent + body,
				After:  out,
			})
		}
		lines[i] = out

		outInfo, _ := scanLine(spaced, lexState{})
		prevCode, prevIndent, havePrev = outInfo.code, indent, true
		depth = advanceDepth(depth, outInfo.code)
		prevDepth = depth
	}

	if len(records) > 0 {
		logging.RepairDebug("formatter: %d records", len(records))
	}
	return joinLines(lines, cr), records
}

// opensBlock reports whether a code mask ends with the block opener and has
// no bracket left open.
func (f *Formatter) opensBlock(code string) bool {
	trimmed := strings.TrimRight(code, " \t\x00")
	if !strings.HasSuffix(trimmed, f.lang.BlockOpener) {
		return false
	}
	depth := 0
	for k := 0; k < len(trimmed); k++ {
		switch trimmed[k] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		}
	}
	return depth <= 0
}

// space applies the spacing rules to one line body. Continuation lines are
// inside brackets, so an "=" there is a keyword argument or a default and
// assignment spacing is skipped.
func (f *Formatter) space(body string, info lineInfo, continuation bool) string {
	code := info.code
	keep := hiddenBytes(body, code)

	if !continuation {
		code = spaceAssignment(code)
	}
	code = spaceArithmetic(code, f.lang.Keywords)
	code = spaceParens(code)
	if f.lang.isDefinition(body) || f.lang.isClass(body) {
		code = f.cleanParams(code)
	}

	out := restore(code, keep)
	if !info.endsInString {
		out = strings.TrimRight(out, " \t")
	}
	return out
}

// spaceAssignment rejoins the first depth-0 assignment with single spaces.
func spaceAssignment(code string) string {
	start, end := findAssignment(code)
	if start <= 0 {
		return code
	}
	left := strings.TrimRight(code[:start], " \t")
	right := strings.TrimLeft(code[end:], " \t")
	if left == "" {
		return code
	}
	op := code[start:end]
	if strings.Trim(right, " \t") == "" {
		return left + " " + op
	}
	return left + " " + op + " " + right
}

// spaceArithmetic puts single spaces around binary + - * / written between
// word characters.
func spaceArithmetic(code string, keywords map[string]bool) string {
	out := make([]byte, 0, len(code)+8)
	for k := 0; k < len(code); k++ {
		c := code[k]
		if !isBinaryArith(code, k, keywords) {
			out = append(out, c)
			continue
		}
		for len(out) > 0 && (out[len(out)-1] == ' ' || out[len(out)-1] == '\t') {
			out = out[:len(out)-1]
		}
		out = append(out, ' ', c, ' ')
		for k+1 < len(code) && (code[k+1] == ' ' || code[k+1] == '\t') {
			k++
		}
	}
	return string(out)
}

func isBinaryArith(code string, k int, keywords map[string]bool) bool {
	c := code[k]
	if c != '+' && c != '-' && c != '*' && c != '/' {
		return false
	}
	var prev, next byte
	if k > 0 {
		prev = code[k-1]
	}
	if k+1 < len(code) {
		next = code[k+1]
	}
	if next == '=' || (c == '-' && next == '>') {
		return false
	}
	if (c == '*' || c == '/') && (prev == c || next == c) {
		return false
	}

	p := k - 1
	for p >= 0 && (code[p] == ' ' || code[p] == '\t') {
		p--
	}
	q := k + 1
	for q < len(code) && (code[q] == ' ' || code[q] == '\t') {
		q++
	}
	if p < 0 || q >= len(code) || !isWordByte(code[p]) || !isWordByte(code[q]) {
		return false
	}

	w := p
	for w >= 0 && isWordByte(code[w]) {
		w--
	}
	word := code[w+1 : p+1]
	if keywords[word] {
		return false
	}
	// exponent literal such as 1e-5
	if (c == '+' || c == '-') && p == k-1 && isDigitByte(word[0]) {
		last := word[len(word)-1]
		if last == 'e' || last == 'E' {
			return false
		}
	}
	return true
}

// spaceParens removes blanks right after "(" and right before ")".
func spaceParens(code string) string {
	out := make([]byte, 0, len(code))
	for k := 0; k < len(code); k++ {
		c := code[k]
		if c != ' ' && c != '\t' {
			out = append(out, c)
			continue
		}
		j := k
		for j < len(code) && (code[j] == ' ' || code[j] == '\t') {
			j++
		}
		afterOpen := len(out) > 0 && out[len(out)-1] == '('
		beforeClose := j < len(code) && code[j] == ')'
		beforeComment := j < len(code) && code[j] == hidden
		if (afterOpen && !beforeComment) || beforeClose {
			k = j - 1
			continue
		}
		out = append(out, code[k:j]...)
		k = j - 1
	}
	return string(out)
}

// cleanParams normalises the parameter list of a declaration line and drops
// closing parentheses in excess of opening ones. Empty entries are kept so no
// comma is ever removed.
func (f *Formatter) cleanParams(code string) string {
	open := strings.IndexByte(code, '(')
	if open < 0 {
		return code
	}
	closeAt := matchParen(code, open)
	if closeAt < 0 {
		return code
	}
	params := splitTopLevel(code[open+1:closeAt], ',')
	for k := range params {
		params[k] = strings.Trim(params[k], " \t")
	}
	// a trailing comma stays attached to the last parameter
	trailing := ""
	if n := len(params); n > 1 && params[n-1] == "" {
		params, trailing = params[:n-1], ","
	}
	code = code[:open+1] + strings.Join(params, ", ") + trailing + code[closeAt:]
	return f.trimExcessParens(code)
}

// advanceDepth returns the bracket depth after a code mask, starting from
// depth. Stray closers never take it below zero.
func advanceDepth(depth int, code string) int {
	for k := 0; k < len(code); k++ {
		switch code[k] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return depth
}

func (f *Formatter) trimExcessParens(code string) string {
	opens, closes := bracketDelta(code, '(', ')')
	excess := closes - opens
	if excess <= 0 {
		return code
	}
	end := len(strings.TrimRight(code, " \t\x00"))
	head, tail := code[:end], code[end:]
	suffix := ""
	if strings.HasSuffix(head, f.lang.BlockOpener) {
		head = head[:len(head)-len(f.lang.BlockOpener)]
		suffix = f.lang.BlockOpener
	}
	for excess > 0 && strings.HasSuffix(head, ")") {
		head = head[:len(head)-1]
		excess--
	}
	return head + suffix + tail
}

// matchParen returns the index of the ")" closing the "(" at open, or -1.
func matchParen(code string, open int) int {
	depth := 0
	for k := open; k < len(code); k++ {
		switch code[k] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return -1
}

// splitTopLevel splits s on sep outside any brackets.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for k := 0; k < len(s); k++ {
		switch s[k] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:k])
				start = k + 1
			}
		}
	}
	return append(parts, s[start:])
}
