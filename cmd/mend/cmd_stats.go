package main

import (
	"fmt"
	"os"

	"codemend/internal/store"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

func (a *app) statsCmd() *cobra.Command {
	var markdown bool
	var recent int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show correction statistics from the SQLite log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStats(cmd, markdown, recent)
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Render the report as styled markdown")
	cmd.Flags().IntVar(&recent, "recent", 10, "Number of recent corrections to list")
	return cmd
}

func (a *app) runStats(cmd *cobra.Command, markdown bool, recent int) error {
	out := cmd.OutOrStdout()
	path := a.dbPath()
	if path != ":memory:" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Fprintf(out, "No corrections recorded yet (%s)\n", path)
			return nil
		}
	}

	clog, err := store.Open(path)
	if err != nil {
		return err
	}
	defer clog.Close()

	s, err := clog.Summary()
	if err != nil {
		return err
	}
	rows, err := clog.Recent(recent)
	if err != nil {
		return err
	}

	doc := statsMarkdown(s, rows)
	if !markdown {
		fmt.Fprint(out, doc)
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(doc)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	fmt.Fprint(out, rendered)
	return nil
}
