package repair

import (
	"strings"
	"time"

	"codemend/internal/logging"
)

// Pattern names recorded by the Learner.
const (
	PatternAddImport     = "add_import"
	PatternAddFunction   = "add_function"
	PatternAddClass      = "add_class"
	PatternAddAssignment = "add_assignment"
)

// DefaultHistoryLimit bounds the history kept per file id.
const DefaultHistoryLimit = 100

// Learner keeps per-file history and pattern counters. Counters only grow.
// Not safe for concurrent use.
type Learner struct {
	lang    *Language
	limit   int
	history map[string][]HistoryEntry
	// files in first-seen order, for deterministic reporting
	files []string

	successPatterns map[string]int
	failurePatterns map[string]int
}

// NewLearner creates a learner keeping at most limit entries per file.
func NewLearner(lang *Language, limit int) *Learner {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Learner{
		lang:            lang,
		limit:           limit,
		history:         make(map[string][]HistoryEntry),
		successPatterns: make(map[string]int),
		failurePatterns: make(map[string]int),
	}
}

type constructCounts struct {
	imports, functions, classes, assignments int
}

func (l *Learner) count(text string) constructCounts {
	var c constructCounts
	lines, _ := splitLines(text)
	infos := scanLines(lines)
	for i, info := range infos {
		if info.inString || isBlank(info) {
			continue
		}
		trimmed := strings.TrimSpace(lines[i])
		switch {
		case l.lang.isImport(trimmed):
			c.imports++
		case l.lang.isDefinition(trimmed):
			c.functions++
		case l.lang.isClass(trimmed):
			c.classes++
		default:
			if start, _ := findAssignment(info.code); start >= 0 {
				c.assignments++
			}
		}
	}
	return c
}

// ExtractPatterns tags the coarse constructs corrected adds over original.
func (l *Learner) ExtractPatterns(original, corrected string) []string {
	before, after := l.count(original), l.count(corrected)
	var patterns []string
	if after.imports > before.imports {
		patterns = append(patterns, PatternAddImport)
	}
	if after.functions > before.functions {
		patterns = append(patterns, PatternAddFunction)
	}
	if after.classes > before.classes {
		patterns = append(patterns, PatternAddClass)
	}
	if after.assignments > before.assignments {
		patterns = append(patterns, PatternAddAssignment)
	}
	return patterns
}

// Learn records the outcome of one call.
func (l *Learner) Learn(fileID string, res Result, at time.Time) {
	patterns := l.ExtractPatterns(res.OriginalContent, res.CorrectedContent)
	counters := l.failurePatterns
	if res.Success {
		counters = l.successPatterns
	}
	for _, p := range patterns {
		counters[p]++
	}

	entries, seen := l.history[fileID]
	if !seen {
		l.files = append(l.files, fileID)
	}
	entries = append(entries, HistoryEntry{
		Timestamp:    at,
		Success:      res.Success,
		InputLength:  len(res.OriginalContent),
		OutputLength: len(res.CorrectedContent),
		LengthDelta:  len(res.CorrectedContent) - len(res.OriginalContent),
	})
	if over := len(entries) - l.limit; over > 0 {
		entries = append([]HistoryEntry(nil), entries[over:]...)
	}
	l.history[fileID] = entries

	logging.RepairDebug("learner: file=%s success=%v patterns=%v", fileID, res.Success, patterns)
}

// History returns a copy of the history kept for fileID, oldest first.
func (l *Learner) History(fileID string) []HistoryEntry {
	return append([]HistoryEntry(nil), l.history[fileID]...)
}

// Files returns the file ids with history, in first-seen order.
func (l *Learner) Files() []string {
	return append([]string(nil), l.files...)
}

// Stats summarises history and counters. Maps are copies.
func (l *Learner) Stats() Stats {
	s := Stats{
		SuccessPatterns: copyCounts(l.successPatterns),
		FailurePatterns: copyCounts(l.failurePatterns),
	}
	for _, entries := range l.history {
		if len(entries) == 0 {
			continue
		}
		s.FilesCorrected++
		for _, e := range entries {
			s.TotalCorrections++
			if e.Success {
				s.SuccessfulCorrections++
			}
		}
	}
	s.SuccessRate = successRate(s.SuccessfulCorrections, s.TotalCorrections)
	return s
}

// MergeStats combines summaries of optimizers that worked on disjoint files.
func MergeStats(parts ...Stats) Stats {
	out := Stats{SuccessPatterns: map[string]int{}, FailurePatterns: map[string]int{}}
	for _, p := range parts {
		out.TotalCorrections += p.TotalCorrections
		out.SuccessfulCorrections += p.SuccessfulCorrections
		out.FilesCorrected += p.FilesCorrected
		for k, v := range p.SuccessPatterns {
			out.SuccessPatterns[k] += v
		}
		for k, v := range p.FailurePatterns {
			out.FailurePatterns[k] += v
		}
	}
	out.SuccessRate = successRate(out.SuccessfulCorrections, out.TotalCorrections)
	return out
}

func successRate(successful, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(successful) / float64(total) * 100
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
