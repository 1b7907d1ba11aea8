package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"codemend/internal/repair"
	"codemend/internal/store"

	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true)
	pathStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7c3aed")).Bold(true)
)

// describeRecord renders one correction record as a short phrase.
func describeRecord(r repair.Record) string {
	switch r.Type {
	case repair.RecordMissingParentheses, repair.RecordMissingBrackets, repair.RecordMissingBraces:
		return fmt.Sprintf("%s x%d", r.Type, r.Count)
	case repair.RecordMissingImport:
		return fmt.Sprintf("%s %s", r.Type, r.Name)
	case repair.RecordUndefinedVariable:
		return fmt.Sprintf("%s %s (%s)", r.Type, r.Name, strings.TrimSpace(r.After))
	case repair.RecordIndentationFix:
		return fmt.Sprintf("%s %d -> %d", r.Type, r.OldIndent, r.NewIndent)
	default:
		return string(r.Type)
	}
}

// writeResult prints the outcome for one file. With details, each correction
// record is listed as well.
func writeResult(w io.Writer, fr fileResult, details bool) {
	switch {
	case fr.Err != nil:
		fmt.Fprintf(w, "%s %s: %v\n", failStyle.Render("✗"), pathStyle.Render(fr.Path), fr.Err)
		return
	case fr.Result.Success:
		n := len(fr.Result.Corrections)
		note := "no changes"
		if n > 0 {
			note = fmt.Sprintf("%d correction(s), %s", n, fr.Result.Stage)
		}
		fmt.Fprintf(w, "%s %s %s\n", okStyle.Render("✓"), pathStyle.Render(fr.Path), mutedStyle.Render(note))
	default:
		msg := "still unparseable"
		if fr.Result.ErrorMessage != "" {
			msg = fr.Result.ErrorMessage
		} else if d := fr.Result.Diagnosis; d != nil {
			msg = fmt.Sprintf("still unparseable (%s at line %d: %s)", d.Class, d.Line, d.RawMessage)
		}
		fmt.Fprintf(w, "%s %s %s\n", failStyle.Render("✗"), pathStyle.Render(fr.Path), msg)
	}

	if !details {
		return
	}
	for _, r := range fr.Result.Corrections {
		line := "-"
		if r.Line > 0 {
			line = fmt.Sprintf("%d", r.Line)
		}
		fmt.Fprintf(w, "    %s %s\n", mutedStyle.Render(fmt.Sprintf("line %-4s", line)), describeRecord(r))
	}
}

// writeSummary prints the batch totals.
func writeSummary(w io.Writer, results []fileResult, s repair.Stats) {
	fixed := 0
	for _, r := range results {
		if r.ok() {
			fixed++
		}
	}
	fmt.Fprintf(w, "\n%s %d/%d files parse, success rate %.1f%%\n",
		titleStyle.Render("Summary:"), fixed, len(results), s.SuccessRate)
	if line := patternLine("learned", s.SuccessPatterns); line != "" {
		fmt.Fprintln(w, mutedStyle.Render(line))
	}
	if line := patternLine("failed", s.FailurePatterns); line != "" {
		fmt.Fprintln(w, mutedStyle.Render(line))
	}
}

func patternLine(label string, counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	keys := sortedKeys(counts)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return fmt.Sprintf("%s patterns: %s", label, strings.Join(parts, " "))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// statsMarkdown renders stored statistics as a markdown document.
func statsMarkdown(s repair.Stats, recent []store.CorrectionRow) string {
	var sb strings.Builder
	sb.WriteString("# Correction statistics\n\n")
	sb.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Total corrections | %d |\n", s.TotalCorrections)
	fmt.Fprintf(&sb, "| Successful | %d |\n", s.SuccessfulCorrections)
	fmt.Fprintf(&sb, "| Success rate | %.1f%% |\n", s.SuccessRate)
	fmt.Fprintf(&sb, "| Files corrected | %d |\n", s.FilesCorrected)

	for _, section := range []struct {
		title  string
		counts map[string]int
	}{
		{"Success patterns", s.SuccessPatterns},
		{"Failure patterns", s.FailurePatterns},
	} {
		if len(section.counts) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s\n\n", section.title)
		for _, k := range sortedKeys(section.counts) {
			fmt.Fprintf(&sb, "- `%s`: %d\n", k, section.counts[k])
		}
	}

	if len(recent) > 0 {
		sb.WriteString("\n## Recent corrections\n\n")
		sb.WriteString("| File | Result | Size | Duration |\n|---|---|---|---|\n")
		for _, r := range recent {
			outcome := "failed"
			if r.Success {
				outcome = "fixed"
			}
			fmt.Fprintf(&sb, "| %s | %s | %d -> %d | %v |\n", r.FileID, outcome, r.OldLength, r.NewLength, r.Duration)
		}
	}
	return sb.String()
}
