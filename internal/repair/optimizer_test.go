package repair

import (
	"errors"
	"strings"
	"testing"
	"time"

	"codemend/internal/logging"
	"codemend/internal/syntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingLogger struct {
	entries []LogEntry
	err     error
}

func (l *recordingLogger) LogCorrection(e LogEntry) error {
	l.entries = append(l.entries, e)
	return l.err
}

type panickingLogger struct{}

func (panickingLogger) LogCorrection(LogEntry) error { panic("telemetry down") }

// spyStrategy counts calls and returns the text unchanged.
type spyStrategy struct {
	calls int
}

func (s *spyStrategy) Name() string { return "spy" }

func (s *spyStrategy) Repair(text string, _ *Diagnosis) (string, []Record, error) {
	s.calls++
	return text, nil, nil
}

type panickingStrategy struct{}

func (panickingStrategy) Name() string { return "panicky" }

func (panickingStrategy) Repair(string, *Diagnosis) (string, []Record, error) {
	panic("index out of range")
}

type failingStrategy struct{}

func (failingStrategy) Name() string { return "failing" }

func (failingStrategy) Repair(text string, _ *Diagnosis) (string, []Record, error) {
	return text, nil, errors.New("heuristic gave up")
}

func recordTypes(recs []Record) []RecordType {
	out := make([]RecordType, len(recs))
	for i, r := range recs {
		out[i] = r.Type
	}
	return out
}

func countType(recs []Record, typ RecordType) int {
	n := 0
	for _, r := range recs {
		if r.Type == typ {
			n++
		}
	}
	return n
}

func TestOptimize_ScenarioA_MissingBodyIndentation(t *testing.T) {
	res := NewOptimizer().OptimizeCorrection("a.py", "def f( x,y ):\nresult=x+y\nreturn result")

	assert.True(t, res.Success)
	assert.Equal(t, "def f(x, y):\n    result = x + y\n    return result", res.CorrectedContent)
	assert.GreaterOrEqual(t, countType(res.Corrections, RecordBasicIndentation), 2)
	assert.Equal(t, StageValidated, res.Stage)
	assert.Nil(t, res.Diagnosis)
	assert.Empty(t, res.ErrorMessage)
}

func TestOptimize_ScenarioB_UnclosedParen(t *testing.T) {
	res := NewOptimizer().OptimizeCorrection("b.py", "def f():\n    return (1 + 2")

	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "def f():\n    return (1 + 2)", res.CorrectedContent)
	require.Equal(t, []RecordType{RecordMissingParentheses}, recordTypes(res.Corrections))
	assert.Equal(t, 1, res.Corrections[0].Count)
	require.NotNil(t, res.Diagnosis)
	assert.Equal(t, ClassBracketBalance, res.Diagnosis.Class)
}

func TestOptimize_ScenarioC_UnterminatedString(t *testing.T) {
	res := NewOptimizer().OptimizeCorrection("c.py", "x = 'hello")

	require.True(t, res.Success)
	assert.Equal(t, "x = 'hello'", res.CorrectedContent)
	require.Equal(t, []RecordType{RecordMissingSingleQuote}, recordTypes(res.Corrections))
	assert.Equal(t, 1, res.Corrections[0].Line)
}

func TestOptimize_ScenarioD_CleanInputSkipsRepairTiers(t *testing.T) {
	in := "import os\n\n\ndef add(a, b):\n    total = a + b\n    return total\n\n\nprint(add(1, 2))\n"
	spy := &spyStrategy{}
	res := NewOptimizer(WithStrategies(spy)).OptimizeCorrection("d.py", in)

	assert.True(t, res.Success)
	assert.Empty(t, res.Corrections)
	assert.Equal(t, in, res.CorrectedContent)
	assert.Equal(t, 0, spy.calls, "repair tiers must not run on parseable input")
}

func TestOptimize_ScenarioD_MultilineCallsAreClean(t *testing.T) {
	inputs := []string{
		"result = foo(\n    a=1,\n    b=2,\n)\n",
		"def f(\n    a=1,\n    b=None,\n):\n    return a\n",
		"opts = dict(\n    key=value,\n)\n",
	}
	for _, in := range inputs {
		spy := &spyStrategy{}
		res := NewOptimizer(WithStrategies(spy), WithoutContextual()).OptimizeCorrection("d.py", in)

		assert.True(t, res.Success, "input %q: %s", in, res.ErrorMessage)
		assert.Empty(t, res.Corrections, "input %q", in)
		assert.Equal(t, in, res.CorrectedContent)
		assert.Equal(t, 0, spy.calls)
	}
}

func TestOptimize_ScenarioE_UndefinedNames(t *testing.T) {
	// The trailing statement keeps the text unparseable so the contextual
	// tier runs after the structural one.
	in := "if is_ready:\n    for item in items_list:\n        print(item)\nprint(total)\nx = = 1\n"
	opt := NewOptimizer()
	res := opt.OptimizeCorrection("e.py", in)

	assert.False(t, res.Success)
	assert.Equal(t, StageContextuallyRepaired, res.Stage)
	assert.True(t, strings.HasPrefix(res.CorrectedContent, "is_ready = False\nitems_list = []\ntotal = None\n"))

	var names []string
	for _, r := range res.Corrections {
		if r.Type == RecordUndefinedVariable {
			names = append(names, r.Name)
		}
	}
	assert.Equal(t, []string{"is_ready", "items_list", "total"}, names)

	// best-effort output is kept, and counted as a failure pattern
	assert.Empty(t, res.ErrorMessage)
	assert.Equal(t, 1, opt.CorrectionStats().FailurePatterns[PatternAddAssignment])
}

func TestOptimize_ContextualDisabled(t *testing.T) {
	in := "print(total)\nx = = 1\n"
	res := NewOptimizer(WithoutContextual()).OptimizeCorrection("e.py", in)
	assert.False(t, res.Success)
	assert.Equal(t, StageStructurallyRepaired, res.Stage)
	assert.Equal(t, in, res.CorrectedContent)
}

func TestOptimize_SuccessOnlyAfterFreshParse(t *testing.T) {
	inputs := []string{
		"def f( x,y ):\nresult=x+y\nreturn result",
		"def f():\n    return (1 + 2",
		"x = 'hello",
		"x = = 1",
		"foo(a b)",
		"d = {'k': [1, 2",
		"",
	}
	checker := syntax.NewTreeSitterParser()
	opt := NewOptimizer()
	for _, in := range inputs {
		res := opt.OptimizeCorrection("p.py", in)
		assert.Equal(t, checker.Check(res.CorrectedContent) == nil, res.Success, "input %q", in)
	}
}

func TestOptimize_UnparseableInputIsNeverSuccess(t *testing.T) {
	inputs := []string{
		"1 = x",
		"f() = 1",
		"print(a if b)",
		"x = [i for i in]",
		"def f(x, x=1, y)",
		"x = {1: }",
		"x = 1 if y",
	}
	opt := NewOptimizer()
	for _, in := range inputs {
		res := opt.OptimizeCorrection("bad.py", in)
		assert.False(t, res.Success, "input %q repaired to %q", in, res.CorrectedContent)
	}
}

func TestOptimize_StrategyPanicRevertsContent(t *testing.T) {
	in := "x = 'oops"
	log := &recordingLogger{}
	res := NewOptimizer(WithStrategies(panickingStrategy{}), WithLogger(log)).OptimizeCorrection("f.py", in)

	assert.False(t, res.Success)
	assert.Equal(t, in, res.CorrectedContent)
	assert.Equal(t, in, res.OriginalContent)
	assert.Nil(t, res.Corrections)
	assert.True(t, strings.HasPrefix(res.ErrorMessage, ErrInternal.Error()+": "), res.ErrorMessage)
	assert.Contains(t, res.ErrorMessage, "index out of range")

	require.Len(t, log.entries, 1, "faults are still reported to the logger")
	assert.False(t, log.entries[0].Success)
}

func TestOptimize_StrategyErrorRevertsContent(t *testing.T) {
	in := "x = = 1 "
	res := NewOptimizer(WithStrategies(failingStrategy{})).OptimizeCorrection("f.py", in)
	assert.False(t, res.Success)
	assert.Equal(t, in, res.CorrectedContent, "formatter output must be discarded on fault")
	assert.Contains(t, res.ErrorMessage, "failing repair: heuristic gave up")
}

func TestOptimize_ParserFault(t *testing.T) {
	res := NewOptimizer(WithParser(stubParser{err: errors.New("grammar not loaded")})).OptimizeCorrection("f.py", "x=1")
	assert.False(t, res.Success)
	assert.Equal(t, "x=1", res.CorrectedContent)
	assert.Equal(t, "internal correction error: parser fault: grammar not loaded", res.ErrorMessage)
}

func TestOptimize_LoggerReceivesEntry(t *testing.T) {
	log := &recordingLogger{}
	clock := time.Unix(1700000000, 0)
	opt := NewOptimizer(WithLogger(log), WithClock(func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}))
	res := opt.OptimizeCorrection("g.py", "x = 'hello")

	require.Len(t, log.entries, 1)
	e := log.entries[0]
	assert.Equal(t, "g.py", e.FileID)
	assert.Equal(t, CorrectionTypeAuto, e.CorrectionType)
	assert.True(t, e.Success)
	assert.Equal(t, "x = 'hello", e.OldContent)
	assert.Equal(t, "x = 'hello'", e.NewContent)
	assert.Equal(t, res.Duration, e.Duration)
	assert.Equal(t, time.Millisecond, res.Duration)
}

func TestOptimize_LoggerFailuresDoNotAbort(t *testing.T) {
	obs, logs := observer.New(zapcore.WarnLevel)
	defer logging.UseCore(obs)()

	res := NewOptimizer(WithLogger(&recordingLogger{err: errors.New("disk full")})).OptimizeCorrection("h.py", "x = 'hello")
	assert.True(t, res.Success)

	res = NewOptimizer(WithLogger(panickingLogger{})).OptimizeCorrection("h.py", "x = 'hello")
	assert.True(t, res.Success)
	assert.Equal(t, "x = 'hello'", res.CorrectedContent)

	assert.Equal(t, 1, logs.FilterMessageSnippet("disk full").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("telemetry down").Len())
}

func TestOptimize_HistoryAndStats(t *testing.T) {
	opt := NewOptimizer()
	assert.Equal(t, 0.0, opt.CorrectionStats().SuccessRate)

	for i := 0; i < 105; i++ {
		opt.OptimizeCorrection("loop.py", "x = 1\n"+strings.Repeat("#", i))
	}
	opt.OptimizeCorrection("other.py", "x = = 1")

	h := opt.History("loop.py")
	require.Len(t, h, DefaultHistoryLimit)
	assert.Equal(t, len("x = 1\n")+5, h[0].InputLength)

	s := opt.CorrectionStats()
	assert.Equal(t, 101, s.TotalCorrections)
	assert.Equal(t, 100, s.SuccessfulCorrections)
	assert.Equal(t, 2, s.FilesCorrected)
}

func TestOptimize_HistoryLimitOption(t *testing.T) {
	opt := NewOptimizer(WithHistoryLimit(3))
	for i := 0; i < 5; i++ {
		opt.OptimizeCorrection("f", "x = 1")
	}
	assert.Len(t, opt.History("f"), 3)
}

func TestCorrect_IsStateless(t *testing.T) {
	res := Correct("a.py", "x = 'hello")
	assert.True(t, res.Success)
	assert.Equal(t, "x = 'hello'", res.CorrectedContent)
}

func TestZapCorrectionLogger(t *testing.T) {
	obs, logs := observer.New(zapcore.InfoLevel)
	zl := NewZapCorrectionLogger(zap.New(obs))

	require.NoError(t, zl.LogCorrection(LogEntry{FileID: "a.py", CorrectionType: CorrectionTypeAuto, Success: true, OldContent: "x", NewContent: "xy"}))
	require.NoError(t, zl.LogCorrection(LogEntry{FileID: "b.py", Success: false}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "a.py", entries[0].ContextMap()["file_id"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["new_length"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)

	assert.NoError(t, NewZapCorrectionLogger(nil).LogCorrection(LogEntry{}))
}
