// Package diff renders line diffs between original and repaired source using
// sergi/go-diff.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType tags a diff line.
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
)

// prefix is the unified-diff marker of the line type.
func (t LineType) prefix() string {
	switch t {
	case LineAdded:
		return "+"
	case LineRemoved:
		return "-"
	default:
		return " "
	}
}

// Line is one line of a hunk.
type Line struct {
	Content string
	Type    LineType
}

// Hunk is a group of changes with surrounding context. Starts are 1-based;
// a start of 0 means the side is empty.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// FileDiff holds the hunks for one file.
type FileDiff struct {
	Path  string
	Hunks []Hunk
}

// Empty reports whether the two sides were identical.
func (d *FileDiff) Empty() bool {
	return d == nil || len(d.Hunks) == 0
}

// Stat counts added and removed lines.
func (d *FileDiff) Stat() (added, removed int) {
	if d == nil {
		return 0, 0
	}
	for _, h := range d.Hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				added++
			case LineRemoved:
				removed++
			}
		}
	}
	return added, removed
}

// Engine computes line-level diffs.
type Engine struct {
	dmp     *diffmatchpatch.DiffMatchPatch
	context int
}

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

// NewEngine creates an engine with the given context size. Negative values
// fall back to DefaultContext.
func NewEngine(context int) *Engine {
	if context < 0 {
		context = DefaultContext
	}
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Engine{dmp: dmp, context: context}
}

// Compute diffs oldContent against newContent.
func (e *Engine) Compute(path, oldContent, newContent string) *FileDiff {
	fd := &FileDiff{Path: path}
	if oldContent == newContent {
		return fd
	}

	a, b, lineArray := e.dmp.DiffLinesToChars(oldContent, newContent)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	fd.Hunks = e.group(toOps(diffs))
	return fd
}

type op struct {
	typ     LineType
	oldLine int
	newLine int
	content string
}

// toOps flattens diffmatchpatch output into one op per line, numbering each
// line on the side(s) it belongs to.
func toOps(diffs []diffmatchpatch.Diff) []op {
	var ops []op
	oldLine, newLine := 0, 0
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		if d.Text == "" {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				oldLine++
				newLine++
				ops = append(ops, op{LineContext, oldLine, newLine, line})
			case diffmatchpatch.DiffDelete:
				oldLine++
				ops = append(ops, op{LineRemoved, oldLine, newLine, line})
			case diffmatchpatch.DiffInsert:
				newLine++
				ops = append(ops, op{LineAdded, oldLine, newLine, line})
			}
		}
	}
	return ops
}

// group splits ops into hunks, merging changes whose context windows touch.
func (e *Engine) group(ops []op) []Hunk {
	var hunks []Hunk
	i := 0
	for i < len(ops) {
		if ops[i].typ == LineContext {
			i++
			continue
		}

		start := i - e.context
		if start < 0 {
			start = 0
		}
		end := i
		for end < len(ops) {
			if ops[end].typ != LineContext {
				end++
				continue
			}
			run := end
			for run < len(ops) && ops[run].typ == LineContext {
				run++
			}
			if run == len(ops) || run-end > 2*e.context {
				end += min(e.context, run-end)
				break
			}
			end = run
		}

		h := Hunk{}
		for _, o := range ops[start:end] {
			h.Lines = append(h.Lines, Line{Content: o.content, Type: o.typ})
			if o.typ != LineAdded {
				h.OldCount++
			}
			if o.typ != LineRemoved {
				h.NewCount++
			}
		}
		h.OldStart, h.NewStart = hunkStarts(ops[start], h)
		hunks = append(hunks, h)
		i = end
	}
	return hunks
}

// hunkStarts derives the 1-based start lines of a hunk from its first op.
// Ops carry the line number reached on each side after applying them.
func hunkStarts(first op, h Hunk) (oldStart, newStart int) {
	switch first.typ {
	case LineContext:
		oldStart, newStart = first.oldLine, first.newLine
	case LineRemoved:
		oldStart, newStart = first.oldLine, first.newLine+1
	case LineAdded:
		oldStart, newStart = first.oldLine+1, first.newLine
	}
	if h.OldCount == 0 {
		oldStart--
	}
	if h.NewCount == 0 {
		newStart--
	}
	return oldStart, newStart
}

// Unified renders the diff in unified format with a/ and b/ path prefixes.
// An empty diff renders as "".
func (d *FileDiff) Unified() string {
	if d.Empty() {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", d.Path, d.Path)
	for _, h := range d.Hunks {
		fmt.Fprintf(&sb, "@@ -%s +%s @@\n", span(h.OldStart, h.OldCount), span(h.NewStart, h.NewCount))
		for _, l := range h.Lines {
			sb.WriteString(l.Type.prefix())
			sb.WriteString(l.Content)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func span(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

// Unified is a convenience wrapper around a default-context engine.
func Unified(path, oldContent, newContent string) string {
	return NewEngine(DefaultContext).Compute(path, oldContent, newContent).Unified()
}
