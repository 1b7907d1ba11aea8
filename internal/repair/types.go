// Package repair implements the automatic source-repair pipeline.
//
// A call runs Formatter, Diagnoser, Structural and Contextual repair tiers and a
// final Validator parse, stopping early as soon as the text parses. Every edit
// is recorded as a Record so callers can audit what changed, and the owning
// Optimizer keeps bounded per-file history plus pattern counters.
package repair

import (
	"errors"
	"time"
)

// ErrInternal prefixes the ErrorMessage of results produced by the fault path.
var ErrInternal = errors.New("internal correction error")

// RecordType tags a single correction.
type RecordType string

const (
	RecordBasicIndentation   RecordType = "basic_indentation"
	RecordBasicSpacing       RecordType = "basic_spacing"
	RecordIndentationFix     RecordType = "indentation_fix"
	RecordMissingParentheses RecordType = "missing_parentheses"
	RecordMissingBraces      RecordType = "missing_braces"
	RecordMissingBrackets    RecordType = "missing_brackets"
	RecordLineParentheses    RecordType = "line_parentheses_fix"
	RecordMissingSingleQuote RecordType = "missing_single_quote"
	RecordMissingDoubleQuote RecordType = "missing_double_quote"
	RecordMissingImport      RecordType = "missing_import"
	RecordUndefinedVariable  RecordType = "undefined_variable"
)

// Record is one typed edit made by a pipeline stage.
type Record struct {
	Type RecordType
	// Line is 1-based; 0 means the edit is not tied to one line.
	Line   int
	Before string
	After  string

	// Count is set for bracket fixes.
	Count int
	// Name is set for missing_import and undefined_variable.
	Name string
	// OldIndent and NewIndent are set for indentation_fix.
	OldIndent int
	NewIndent int
}

// ErrorClass is the repair category assigned to a parse failure.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassIndentation
	ClassBracketBalance
	ClassStringIssue
	ClassSyntax
)

// String returns the class name used in logs and reports.
func (c ErrorClass) String() string {
	switch c {
	case ClassIndentation:
		return "indentation"
	case ClassBracketBalance:
		return "bracket_balance"
	case ClassStringIssue:
		return "string_issue"
	case ClassSyntax:
		return "syntax"
	default:
		return "unknown"
	}
}

// Diagnosis describes why a text failed to parse.
type Diagnosis struct {
	Line       int // 1-based
	LineText   string
	RawMessage string
	Class      ErrorClass
}

// Stage is the last pipeline state a call reached.
type Stage int

const (
	StageFormatted Stage = iota
	StageStructurallyRepaired
	StageContextuallyRepaired
	StageValidated
)

func (s Stage) String() string {
	switch s {
	case StageFormatted:
		return "formatted"
	case StageStructurallyRepaired:
		return "structurally_repaired"
	case StageContextuallyRepaired:
		return "contextually_repaired"
	case StageValidated:
		return "validated"
	default:
		return "unknown"
	}
}

// Result is the outcome of one OptimizeCorrection call.
type Result struct {
	Success          bool
	OriginalContent  string
	CorrectedContent string
	Corrections      []Record
	Duration         time.Duration
	ErrorMessage     string

	// Stage is the furthest repair tier that ran.
	Stage Stage
	// Diagnosis is the failure seen right after formatting, nil if the
	// formatted text already parsed.
	Diagnosis *Diagnosis
}

// HistoryEntry is one bounded history item kept per file id.
type HistoryEntry struct {
	Timestamp    time.Time
	Success      bool
	InputLength  int
	OutputLength int
	LengthDelta  int
}

// Stats summarises all history kept by an Optimizer.
//
// FailurePatterns counts the change patterns between the original text and
// the best-effort corrected text of failed calls.
type Stats struct {
	TotalCorrections      int
	SuccessfulCorrections int
	SuccessRate           float64
	FilesCorrected        int
	SuccessPatterns       map[string]int
	FailurePatterns       map[string]int
}

// LogEntry is the payload handed to a CorrectionLogger once per call.
type LogEntry struct {
	FileID         string
	CorrectionType string
	Success        bool
	OldContent     string
	NewContent     string
	Duration       time.Duration
}

// CorrectionTypeAuto is the CorrectionType of every pipeline log entry.
const CorrectionTypeAuto = "auto_syntax_repair"

// CorrectionLogger receives one entry per OptimizeCorrection call.
// Errors and panics from LogCorrection never abort a correction.
type CorrectionLogger interface {
	LogCorrection(entry LogEntry) error
}

// TextRepairStrategy is one repair tier operating on whole-document text.
// Repair returns the possibly modified text, the edits it made, and an error
// only when the strategy itself failed.
type TextRepairStrategy interface {
	Name() string
	Repair(text string, d *Diagnosis) (string, []Record, error)
}
