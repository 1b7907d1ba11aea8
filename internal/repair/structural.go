package repair

import (
	"strings"

	"codemend/internal/logging"
	"codemend/internal/syntax"
)

// StructuralRepairer applies append-only fixes keyed to the diagnosed class.
// The only characters it ever removes are the leading whitespace of a line
// whose indentation it rewrites.
type StructuralRepairer struct {
	lang      *Language
	diagnoser *Diagnoser
}

// NewStructuralRepairer creates the structural tier. The parser decides
// whether the per-line parenthesis pass is needed.
func NewStructuralRepairer(lang *Language, parser syntax.Parser) *StructuralRepairer {
	return &StructuralRepairer{lang: lang, diagnoser: NewDiagnoser(parser)}
}

// Name implements TextRepairStrategy.
func (r *StructuralRepairer) Name() string { return "structural" }

// Repair implements TextRepairStrategy.
func (r *StructuralRepairer) Repair(text string, d *Diagnosis) (string, []Record, error) {
	if d == nil {
		return text, nil, nil
	}
	logging.RepairDebug("structural: class=%s line=%d", d.Class, d.Line)

	switch d.Class {
	case ClassIndentation:
		out, recs := r.fixIndentation(text, d.Line)
		return out, recs, nil
	case ClassBracketBalance:
		return r.fixBrackets(text)
	case ClassStringIssue:
		out, recs := fixQuotes(text)
		return out, recs, nil
	default:
		out, recs, err := r.fixBrackets(text)
		if err != nil {
			return text, nil, err
		}
		out, quoteRecs := fixQuotes(out)
		return out, append(recs, quoteRecs...), nil
	}
}

// fixIndentation rewrites the leading whitespace of the failing line. After a
// block opener the line moves one unit deeper than the opener; otherwise it is
// aligned with the closest preceding line that is not indented deeper.
func (r *StructuralRepairer) fixIndentation(text string, lineNo int) (string, []Record) {
	lines, cr := splitLines(text)
	infos := scanLines(lines)
	idx := lineNo - 1
	if idx < 0 || idx >= len(lines) || infos[idx].inString || isBlank(infos[idx]) {
		return text, nil
	}

	prev := -1
	for j := idx - 1; j >= 0; j-- {
		if !isBlank(infos[j]) && !infos[j].inString {
			prev = j
			break
		}
	}

	line := lines[idx]
	oldIndent := leadingWS(line)
	var newIndent string
	switch {
	case prev < 0:
		newIndent = ""
	case strings.HasSuffix(trimCode(infos[prev].code), r.lang.BlockOpener):
		newIndent = leadingWS(lines[prev]) + r.lang.IndentUnit
	default:
		newIndent = oldIndent
		for j := idx - 1; j >= 0; j-- {
			if isBlank(infos[j]) || infos[j].inString {
				continue
			}
			if ws := leadingWS(lines[j]); len(ws) <= len(oldIndent) {
				newIndent = ws
				break
			}
		}
	}
	if newIndent == oldIndent {
		return text, nil
	}

	after := newIndent + line[len(oldIndent):]
	lines[idx] = after
	rec := Record{
		Type:      RecordIndentationFix,
		Line:      lineNo,
		Before:    line,
		After:     after,
		OldIndent: len(oldIndent),
		NewIndent: len(newIndent),
	}
	return joinLines(lines, cr), []Record{rec}
}

type bracketKind struct {
	open, close byte
	record      RecordType
}

var bracketKinds = []bracketKind{
	{'(', ')', RecordMissingParentheses},
	{'{', '}', RecordMissingBraces},
	{'[', ']', RecordMissingBrackets},
}

func closerOf(open byte) byte {
	for _, k := range bracketKinds {
		if k.open == open {
			return k.close
		}
	}
	return 0
}

// fixBrackets runs the whole-document tier and, if the text still does not
// parse, the per-line parenthesis tier.
func (r *StructuralRepairer) fixBrackets(text string) (string, []Record, error) {
	out, recs := balanceDocument(text)
	d, err := r.diagnoser.Diagnose(out)
	if err != nil {
		return text, nil, err
	}
	if d == nil {
		return out, recs, nil
	}
	out, lineRecs := balanceLines(out)
	return out, append(recs, lineRecs...), nil
}

// balanceDocument appends the missing closers of every bracket kind after the
// last code line, innermost first.
func balanceDocument(text string) (string, []Record) {
	lines, cr := splitLines(text)
	infos := scanLines(lines)

	var stack []byte
	deficit := map[byte]int{}
	last := -1
	for i, info := range infos {
		if !isBlank(info) {
			last = i
		}
		code := info.code
		for k := 0; k < len(code); k++ {
			c := code[k]
			switch c {
			case '(', '{', '[':
				stack = append(stack, c)
				deficit[closerOf(c)]++
			case ')', '}', ']':
				deficit[c]--
				if n := len(stack); n > 0 && closerOf(stack[n-1]) == c {
					stack = stack[:n-1]
				}
			}
		}
	}
	if last < 0 {
		return text, nil
	}

	remaining := map[byte]int{}
	for _, k := range bracketKinds {
		if deficit[k.close] > 0 {
			remaining[k.close] = deficit[k.close]
		}
	}
	if len(remaining) == 0 {
		return text, nil
	}

	var closers []byte
	for i := len(stack) - 1; i >= 0; i-- {
		c := closerOf(stack[i])
		if remaining[c] > 0 {
			closers = append(closers, c)
			remaining[c]--
		}
	}
	for _, k := range bracketKinds {
		for ; remaining[k.close] > 0; remaining[k.close]-- {
			closers = append(closers, k.close)
		}
	}

	before := lines[last]
	at := codeEnd(before, infos[last])
	if infos[last].openQuote != 0 || infos[last].endsInString {
		at = len(before)
	}
	after := before[:at] + string(closers) + before[at:]
	lines[last] = after

	var recs []Record
	for _, k := range bracketKinds {
		if n := deficit[k.close]; n > 0 {
			recs = append(recs, Record{
				Type:   k.record,
				Line:   last + 1,
				Before: before,
				After:  after,
				Count:  n,
			})
		}
	}
	return joinLines(lines, cr), recs
}

// balanceLines appends ")" to every line that opens more parentheses than it
// closes.
func balanceLines(text string) (string, []Record) {
	lines, cr := splitLines(text)
	infos := scanLines(lines)
	var recs []Record
	for i, info := range infos {
		if info.inString {
			continue
		}
		opens, closes := bracketDelta(info.code, '(', ')')
		if opens <= closes {
			continue
		}
		n := opens - closes
		before := lines[i]
		at := codeEnd(before, info)
		if info.openQuote != 0 || info.endsInString {
			at = len(before)
		}
		after := before[:at] + strings.Repeat(")", n) + before[at:]
		lines[i] = after
		recs = append(recs, Record{
			Type:   RecordLineParentheses,
			Line:   i + 1,
			Before: before,
			After:  after,
			Count:  n,
		})
	}
	return joinLines(lines, cr), recs
}

// fixQuotes closes every single-line string left open at the end of its line.
func fixQuotes(text string) (string, []Record) {
	lines, cr := splitLines(text)
	infos := scanLines(lines)
	var recs []Record
	for i, info := range infos {
		if info.openQuote == 0 {
			continue
		}
		before := lines[i]
		after := before + string(info.openQuote)
		lines[i] = after
		typ := RecordMissingSingleQuote
		if info.openQuote == '"' {
			typ = RecordMissingDoubleQuote
		}
		recs = append(recs, Record{Type: typ, Line: i + 1, Before: before, After: after})
	}
	return joinLines(lines, cr), recs
}
