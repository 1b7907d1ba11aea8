package repair

import "strings"

// hidden replaces string interiors and comments in a line's code mask, so the
// heuristics never see brackets, quotes or operators that are not code.
const hidden = 0x00

// lexState carries an open triple-quoted string across lines.
type lexState struct {
	triple string
}

// lineInfo describes one physical line.
type lineInfo struct {
	// code is the line with string interiors and comments replaced by hidden.
	// Quote delimiters and string prefixes stay visible. Same length as the line.
	code string
	// inString is set when the line starts inside a multi-line string.
	inString bool
	// endsInString is set when a triple-quoted string is still open at the end.
	endsInString bool
	// openQuote is the quote of an unterminated single-line string.
	openQuote byte
	// comment is the index of the comment marker, or -1.
	comment int
}

func scanLine(text string, st lexState) (lineInfo, lexState) {
	code := []byte(text)
	info := lineInfo{comment: -1, inString: st.triple != ""}
	i := 0
	if st.triple != "" {
		end := findClose(text, 0, st.triple)
		if end < 0 {
			hide(code, 0, len(text))
			info.code = string(code)
			info.endsInString = true
			return info, st
		}
		hide(code, 0, end)
		i = end + len(st.triple)
		st.triple = ""
	}

	for i < len(text) {
		c := text[i]
		switch c {
		case '#':
			info.comment = i
			hide(code, i, len(text))
			info.code = string(code)
			return info, st
		case '"', '\'':
			delim := string(c)
			if strings.HasPrefix(text[i:], strings.Repeat(delim, 3)) {
				delim = strings.Repeat(delim, 3)
			}
			start := i + len(delim)
			end := findClose(text, start, delim)
			if end < 0 {
				hide(code, start, len(text))
				if len(delim) == 3 {
					st.triple = delim
					info.endsInString = true
				} else {
					info.openQuote = c
				}
				info.code = string(code)
				return info, st
			}
			hide(code, start, end)
			i = end + len(delim)
		default:
			i++
		}
	}
	info.code = string(code)
	return info, st
}

// findClose returns the index of the first unescaped delim at or after from.
func findClose(text string, from int, delim string) int {
	for j := from; j < len(text); j++ {
		if text[j] == '\\' {
			j++
			continue
		}
		if strings.HasPrefix(text[j:], delim) {
			return j
		}
	}
	return -1
}

func hide(code []byte, from, to int) {
	for k := from; k < to && k < len(code); k++ {
		code[k] = hidden
	}
}

// scanLines lexes a whole document line by line.
func scanLines(lines []string) []lineInfo {
	infos := make([]lineInfo, len(lines))
	var st lexState
	for i, line := range lines {
		infos[i], st = scanLine(line, st)
	}
	return infos
}

// splitLines splits text into lines without their "\r\n" or "\n" endings.
// cr reports which lines ended with "\r\n".
func splitLines(text string) (lines []string, cr []bool) {
	lines = strings.Split(text, "\n")
	cr = make([]bool, len(lines))
	for i, line := range lines {
		if strings.HasSuffix(line, "\r") {
			lines[i] = line[:len(line)-1]
			cr[i] = true
		}
	}
	return lines, cr
}

func joinLines(lines []string, cr []bool) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if i < len(cr) && cr[i] {
			b.WriteByte('\r')
		}
	}
	return b.String()
}

// insertLines inserts extra lines before index at, keeping cr aligned.
func insertLines(lines []string, cr []bool, at int, extra []string) ([]string, []bool) {
	useCR := len(cr) > 0 && cr[0]
	outLines := make([]string, 0, len(lines)+len(extra))
	outCR := make([]bool, 0, len(lines)+len(extra))
	outLines = append(outLines, lines[:at]...)
	outCR = append(outCR, cr[:at]...)
	for _, e := range extra {
		outLines = append(outLines, e)
		outCR = append(outCR, useCR)
	}
	outLines = append(outLines, lines[at:]...)
	outCR = append(outCR, cr[at:]...)
	return outLines, outCR
}

// hiddenBytes collects the original bytes behind every hidden position of code.
func hiddenBytes(text, code string) []byte {
	var out []byte
	for k := 0; k < len(code) && k < len(text); k++ {
		if code[k] == hidden {
			out = append(out, text[k])
		}
	}
	return out
}

// restore puts the hidden bytes back into a code mask that may have been
// edited outside the hidden spans.
func restore(code string, bytes []byte) string {
	out := []byte(code)
	n := 0
	for k := range out {
		if out[k] == hidden && n < len(bytes) {
			out[k] = bytes[n]
			n++
		}
	}
	return string(out)
}

func leadingWS(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// trimCode drops surrounding whitespace and hidden comment bytes from a mask.
func trimCode(code string) string {
	return strings.Trim(code, " \t\x00")
}

// codeEnd returns the index just past the last code character of a line,
// before any trailing comment and whitespace.
func codeEnd(line string, info lineInfo) int {
	end := len(line)
	if info.comment >= 0 {
		end = info.comment
	}
	return len(strings.TrimRight(line[:end], " \t"))
}

// isBlank reports whether a line holds no code at all.
func isBlank(info lineInfo) bool {
	return !info.inString && trimCode(info.code) == ""
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') || (c >= 0x80 && c != hidden)
}

func isDigitByte(c byte) bool {
	return c >= '0' && c <= '9'
}

// bracketDelta counts openers minus closers of one bracket kind in a mask.
func bracketDelta(code string, open, close byte) (opens, closes int) {
	for k := 0; k < len(code); k++ {
		switch code[k] {
		case open:
			opens++
		case close:
			closes++
		}
	}
	return opens, closes
}
