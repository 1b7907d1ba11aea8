package repair

import (
	"fmt"
	"time"

	"codemend/internal/logging"
	"codemend/internal/syntax"
)

// Optimizer owns the pipeline collaborators plus the learning state that
// persists across calls. It is not safe for concurrent use: give each worker
// its own Optimizer or serialise access.
type Optimizer struct {
	lang       *Language
	parser     syntax.Parser
	formatter  *Formatter
	diagnoser  *Diagnoser
	strategies []TextRepairStrategy
	learner    *Learner
	logger     CorrectionLogger
	now        func() time.Time

	historyLimit int
	contextual   bool
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLanguage selects the language profile. Defaults to Python.
func WithLanguage(lang *Language) Option {
	return func(o *Optimizer) { o.lang = lang }
}

// WithParser selects the parser collaborator. Defaults to tree-sitter.
func WithParser(p syntax.Parser) Option {
	return func(o *Optimizer) { o.parser = p }
}

// WithLogger attaches a correction logger.
func WithLogger(l CorrectionLogger) Option {
	return func(o *Optimizer) { o.logger = l }
}

// WithHistoryLimit overrides the per-file history bound.
func WithHistoryLimit(n int) Option {
	return func(o *Optimizer) { o.historyLimit = n }
}

// WithStrategies replaces the repair tiers. They run in order, with a fresh
// diagnosis between tiers.
func WithStrategies(s ...TextRepairStrategy) Option {
	return func(o *Optimizer) { o.strategies = s }
}

// WithoutContextual drops the contextual tier from the default tiers.
func WithoutContextual() Option {
	return func(o *Optimizer) { o.contextual = false }
}

// WithClock overrides time.Now for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(o *Optimizer) { o.now = now }
}

// NewOptimizer creates an optimizer with its own history and counters.
func NewOptimizer(opts ...Option) *Optimizer {
	o := &Optimizer{
		now:          time.Now,
		historyLimit: DefaultHistoryLimit,
		contextual:   true,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.lang == nil {
		o.lang = Python()
	}
	if o.parser == nil {
		o.parser = syntax.NewTreeSitterParser()
	}
	o.formatter = NewFormatter(o.lang)
	o.diagnoser = NewDiagnoser(o.parser)
	if o.strategies == nil {
		o.strategies = []TextRepairStrategy{NewStructuralRepairer(o.lang, o.parser)}
		if o.contextual {
			o.strategies = append(o.strategies, NewContextualRepairer(o.lang))
		}
	}
	o.learner = NewLearner(o.lang, o.historyLimit)
	return o
}

// Correct runs one correction on a throwaway optimizer. Use an Optimizer
// directly to keep history and counters across calls.
func Correct(fileID, content string) Result {
	return NewOptimizer().OptimizeCorrection(fileID, content)
}

// OptimizeCorrection runs the pipeline on content. It never panics: internal
// faults revert the content and are reported through ErrorMessage.
func (o *Optimizer) OptimizeCorrection(fileID, content string) Result {
	start := o.now()
	timer := logging.StartTimer(logging.CategoryRepair, "OptimizeCorrection "+fileID)
	defer timer.Stop()

	res := Result{OriginalContent: content, CorrectedContent: content}
	if err := o.runSafely(&res); err != nil {
		logging.RepairError("file=%s: %v", fileID, err)
		res = Result{
			OriginalContent:  content,
			CorrectedContent: content,
			ErrorMessage:     fmt.Sprintf("%v: %v", ErrInternal, err),
			Stage:            res.Stage,
			Diagnosis:        res.Diagnosis,
		}
	}
	res.Duration = o.now().Sub(start)

	o.learner.Learn(fileID, res, o.now())
	o.report(fileID, res)
	logging.Repair("file=%s success=%v stage=%s corrections=%d", fileID, res.Success, res.Stage, len(res.Corrections))
	return res
}

func (o *Optimizer) runSafely(res *Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return o.run(res)
}

func (o *Optimizer) run(res *Result) error {
	text, recs := o.formatter.Format(res.OriginalContent)
	res.Corrections = append(res.Corrections, recs...)
	res.CorrectedContent = text
	res.Stage = StageFormatted

	d, err := o.diagnoser.Diagnose(text)
	if err != nil {
		return err
	}
	res.Diagnosis = d

	for i, s := range o.strategies {
		if d == nil {
			break
		}
		text, recs, err = s.Repair(text, d)
		if err != nil {
			return fmt.Errorf("%s repair: %w", s.Name(), err)
		}
		res.Corrections = append(res.Corrections, recs...)
		res.CorrectedContent = text
		if i == 0 {
			res.Stage = StageStructurallyRepaired
		} else {
			res.Stage = StageContextuallyRepaired
		}
		if i < len(o.strategies)-1 {
			if d, err = o.diagnoser.Diagnose(text); err != nil {
				return err
			}
		}
	}

	final, err := o.diagnoser.Diagnose(text)
	if err != nil {
		return err
	}
	if final == nil {
		res.Success = true
		res.Stage = StageValidated
	}
	return nil
}

// report hands the result to the logger. Logger errors and panics are
// logged and swallowed.
func (o *Optimizer) report(fileID string, res Result) {
	if o.logger == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.RepairWarn("correction logger panicked: %v", r)
		}
	}()
	err := o.logger.LogCorrection(LogEntry{
		FileID:         fileID,
		CorrectionType: CorrectionTypeAuto,
		Success:        res.Success,
		OldContent:     res.OriginalContent,
		NewContent:     res.CorrectedContent,
		Duration:       res.Duration,
	})
	if err != nil {
		logging.RepairWarn("correction logger failed: %v", err)
	}
}

// CorrectionStats summarises every call made on this optimizer.
func (o *Optimizer) CorrectionStats() Stats {
	return o.learner.Stats()
}

// History returns a copy of the history kept for fileID.
func (o *Optimizer) History(fileID string) []HistoryEntry {
	return o.learner.History(fileID)
}

// Language returns the profile the optimizer was built with.
func (o *Optimizer) Language() *Language {
	return o.lang
}
