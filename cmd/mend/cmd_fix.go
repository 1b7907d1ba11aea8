package main

import (
	"fmt"
	"os"

	"codemend/internal/diff"
	"codemend/internal/logging"
	"codemend/internal/repair"
	"codemend/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type fixOptions struct {
	write        bool
	showDiff     bool
	noContextual bool
	noStore      bool
	details      bool
	workers      int
}

func (a *app) fixCmd() *cobra.Command {
	opts := &fixOptions{}
	cmd := &cobra.Command{
		Use:   "fix [file|dir]...",
		Short: "Correct files and report what changed",
		Long: `Runs the repair pipeline on every file (directories are walked for files
with a configured extension). Nothing is written unless --write is given, and
only corrections that parse are written.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFix(cmd, args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.write, "write", false, "Write successful corrections back to the files")
	cmd.Flags().BoolVar(&opts.showDiff, "diff", false, "Print a unified diff of each correction")
	cmd.Flags().BoolVar(&opts.noContextual, "no-contextual", false, "Skip the contextual repair tier")
	cmd.Flags().BoolVar(&opts.noStore, "no-store", false, "Do not record corrections in the SQLite log")
	cmd.Flags().BoolVar(&opts.details, "details", false, "List every correction record")
	cmd.Flags().IntVarP(&opts.workers, "jobs", "j", 0, "Parallel workers (default: cli.workers)")
	return cmd
}

func (a *app) runFix(cmd *cobra.Command, args []string, opts *fixOptions) error {
	out := cmd.OutOrStdout()

	files, err := collectFiles(args, a.cfg)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no matching files in %v", args)
	}

	var log repair.CorrectionLogger = repair.NewZapCorrectionLogger(a.logger)
	var clog *store.CorrectionLog
	if a.cfg.Store.Enabled && !opts.noStore {
		clog, err = store.Open(a.dbPath())
		if err != nil {
			a.logger.Warn("correction log unavailable", zap.Error(err))
		} else {
			defer clog.Close()
			log = teeLogger{log, clog}
		}
	}

	workers := opts.workers
	if workers <= 0 {
		workers = a.cfg.GetWorkers()
	}
	b := &batch{
		cfg:        a.cfg,
		log:        log,
		contextual: !opts.noContextual,
		workers:    workers,
		timeout:    a.cfg.GetPerFileTimeout(),
	}
	results, stats, err := b.run(cmd.Context(), files)
	if err != nil {
		return err
	}

	failed := 0
	for _, fr := range results {
		writeResult(out, fr, opts.details)
		if !fr.ok() {
			failed++
			continue
		}
		res := fr.Result
		if res.CorrectedContent == res.OriginalContent {
			continue
		}
		if opts.showDiff {
			fmt.Fprint(out, diff.Unified(fr.Path, res.OriginalContent, res.CorrectedContent))
		}
		if opts.write {
			if err := writePreservingMode(fr.Path, res.CorrectedContent); err != nil {
				return fmt.Errorf("failed to write %s: %w", fr.Path, err)
			}
			logging.CLI("wrote %s", fr.Path)
		}
	}
	writeSummary(out, results, stats)

	if clog != nil {
		if err := clog.SaveSnapshot(stats); err != nil {
			a.logger.Warn("failed to save pattern snapshot", zap.Error(err))
		}
	}

	if failed > 0 {
		return unfixed("%d of %d file(s) still unparseable", failed, len(results))
	}
	return nil
}

func writePreservingMode(path, content string) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return os.WriteFile(path, []byte(content), mode)
}
