package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"codemend/internal/config"
	"codemend/internal/logging"
	"codemend/internal/repair"
	"codemend/internal/syntax"

	"golang.org/x/sync/errgroup"
)

// newOptimizer builds an optimizer from the repair section of cfg. Each call
// gets its own parser so workers never share one.
func newOptimizer(cfg *config.Config, log repair.CorrectionLogger, contextual bool) (*repair.Optimizer, error) {
	lang, err := repair.LanguageByName(cfg.Repair.Language)
	if err != nil {
		return nil, err
	}
	parser, err := syntax.New(cfg.Repair.Parser)
	if err != nil {
		return nil, err
	}
	opts := []repair.Option{
		repair.WithLanguage(lang.WithIndentUnit(cfg.Repair.IndentUnit)),
		repair.WithParser(parser),
		repair.WithHistoryLimit(cfg.Repair.HistoryLimit),
	}
	if log != nil {
		opts = append(opts, repair.WithLogger(log))
	}
	if !contextual || !cfg.Repair.Contextual {
		opts = append(opts, repair.WithoutContextual())
	}
	return repair.NewOptimizer(opts...), nil
}

// teeLogger fans a log entry out to several loggers and returns the first
// error.
type teeLogger []repair.CorrectionLogger

func (t teeLogger) LogCorrection(e repair.LogEntry) error {
	var first error
	for _, l := range t {
		if err := l.LogCorrection(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// collectFiles expands args into a sorted, de-duplicated file list.
// Directories are walked for files with a watched extension; hidden
// directories are skipped. Explicit file arguments are always kept.
func collectFiles(args []string, cfg *config.Config) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("file not found: %s", arg)
		}
		if !info.IsDir() {
			add(filepath.Clean(arg))
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != arg && (strings.HasPrefix(name, ".") || name == "__pycache__" || name == "node_modules") {
					return filepath.SkipDir
				}
				return nil
			}
			if cfg.WatchesFile(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// fileResult is the outcome for one file of a batch.
type fileResult struct {
	Path     string
	Result   repair.Result
	Err      error
	TimedOut bool
}

// ok reports whether the file parses after correction.
func (r fileResult) ok() bool {
	return r.Err == nil && !r.TimedOut && r.Result.Success
}

// errTimeout marks a file whose correction exceeded the per-file timeout.
var errTimeout = errors.New("correction timed out")

// batch runs the pipeline over many files with bounded workers. Each worker
// owns one optimizer; stats are merged at the end.
type batch struct {
	cfg        *config.Config
	log        repair.CorrectionLogger
	contextual bool
	workers    int
	timeout    time.Duration

	// newOpt overrides how workers build optimizers. Nil uses newOptimizer.
	newOpt func() (*repair.Optimizer, error)
}

func (b *batch) optimizer() (*repair.Optimizer, error) {
	if b.newOpt != nil {
		return b.newOpt()
	}
	return newOptimizer(b.cfg, b.log, b.contextual)
}

func (b *batch) run(ctx context.Context, files []string) ([]fileResult, repair.Stats, error) {
	results := make([]fileResult, len(files))
	workers := b.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}
	if workers == 0 {
		return results, repair.MergeStats(), nil
	}

	timer := logging.StartTimer(logging.CategoryCLI, fmt.Sprintf("batch of %d files", len(files)))
	defer timer.Stop()

	jobs := make(chan int)
	perWorker := make([]repair.Stats, workers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range files {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			opt, err := b.optimizer()
			if err != nil {
				return err
			}
			banked := repair.MergeStats()
			for i := range jobs {
				path := files[i]
				data, err := os.ReadFile(path)
				if err != nil {
					results[i] = fileResult{Path: path, Err: err}
					continue
				}

				before := opt.CorrectionStats()
				res, err := correctWithTimeout(gctx, opt, path, string(data), b.timeout)
				if err != nil {
					// The abandoned optimizer may still be running; replace it.
					logging.CLI("%s: %v", path, err)
					results[i] = fileResult{Path: path, Err: err, TimedOut: errors.Is(err, errTimeout)}
					banked = repair.MergeStats(banked, before)
					if opt, err = b.optimizer(); err != nil {
						return err
					}
					continue
				}
				results[i] = fileResult{Path: path, Result: res}
			}
			perWorker[w] = repair.MergeStats(banked, opt.CorrectionStats())
			return nil
		})
	}

	err := g.Wait()
	return results, repair.MergeStats(perWorker...), err
}

// correctWithTimeout runs one correction in a goroutine and gives up after
// timeout or when ctx is done. A late result is discarded.
func correctWithTimeout(ctx context.Context, opt *repair.Optimizer, path, content string, timeout time.Duration) (repair.Result, error) {
	done := make(chan repair.Result, 1)
	go func() {
		timer := logging.StartTimer(logging.CategoryRepair, "correct "+path)
		res := opt.OptimizeCorrection(path, content)
		if timeout > 0 {
			timer.StopWithThreshold(timeout)
		} else {
			timer.Stop()
		}
		done <- res
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case res := <-done:
		return res, nil
	case <-expired:
		return repair.Result{}, fmt.Errorf("%w after %v", errTimeout, timeout)
	case <-ctx.Done():
		return repair.Result{}, ctx.Err()
	}
}
