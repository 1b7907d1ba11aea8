package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codemend/internal/repair"
	"codemend/internal/store"
	"codemend/internal/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) watchCmd() *cobra.Command {
	var write, noContextual bool
	cmd := &cobra.Command{
		Use:   "watch [dir]...",
		Short: "Correct files in the given directories whenever they are saved",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd, args, write, !noContextual)
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "Write successful corrections back to the files")
	cmd.Flags().BoolVar(&noContextual, "no-contextual", false, "Skip the contextual repair tier")
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, dirs []string, write, contextual bool) error {
	out := cmd.OutOrStdout()

	var log repair.CorrectionLogger = repair.NewZapCorrectionLogger(a.logger)
	var clog *store.CorrectionLog
	if a.cfg.Store.Enabled {
		var err error
		clog, err = store.Open(a.dbPath())
		if err != nil {
			a.logger.Warn("correction log unavailable", zap.Error(err))
		} else {
			defer clog.Close()
			log = teeLogger{log, clog}
		}
	}

	opt, err := newOptimizer(a.cfg, log, contextual)
	if err != nil {
		return err
	}
	w, err := watch.New(a.cfg, opt, watch.Options{
		Write: write,
		OnReport: func(r watch.Report) {
			writeResult(out, fileResult{Path: r.Path, Result: r.Result}, false)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Stop()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w.Start(ctx)
	fmt.Fprintf(out, "Watching %d director(ies), Ctrl-C to stop\n", len(dirs))
	<-ctx.Done()
	w.Stop()

	s := opt.CorrectionStats()
	fmt.Fprintf(out, "\n%d correction(s), success rate %.1f%%\n", s.TotalCorrections, s.SuccessRate)
	if clog != nil {
		if err := clog.SaveSnapshot(s); err != nil {
			a.logger.Warn("failed to save pattern snapshot", zap.Error(err))
		}
	}
	return nil
}
