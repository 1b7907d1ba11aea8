package main

import (
	"fmt"
	"os"

	"codemend/internal/repair"
	"codemend/internal/syntax"

	"github.com/spf13/cobra"
)

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [file|dir]...",
		Short: "Diagnose files without changing them",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runCheck,
	}
}

func (a *app) runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	files, err := collectFiles(args, a.cfg)
	if err != nil {
		return err
	}
	parser, err := syntax.New(a.cfg.Repair.Parser)
	if err != nil {
		return err
	}
	diagnoser := repair.NewDiagnoser(parser)

	bad := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			bad++
			fmt.Fprintf(out, "%s %s: %v\n", failStyle.Render("✗"), pathStyle.Render(path), err)
			continue
		}
		d, err := diagnoser.Diagnose(string(data))
		switch {
		case err != nil:
			bad++
			fmt.Fprintf(out, "%s %s: %v\n", failStyle.Render("✗"), pathStyle.Render(path), err)
		case d != nil:
			bad++
			fmt.Fprintf(out, "%s %s:%d: %s: %s\n", failStyle.Render("✗"), pathStyle.Render(path), d.Line, d.Class, d.RawMessage)
		default:
			fmt.Fprintf(out, "%s %s\n", okStyle.Render("✓"), pathStyle.Render(path))
		}
	}

	if bad > 0 {
		return unfixed("%d of %d file(s) do not parse", bad, len(files))
	}
	return nil
}
