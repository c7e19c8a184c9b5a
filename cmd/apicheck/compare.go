package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/healthtestai/apicheck/internal/baseline"
)

// writeComparison prints the baseline diff after the main report. JSON
// output is left untouched.
func writeComparison(out io.Writer, format string, c *baseline.Comparison) {
	switch format {
	case formatJSON:
		return
	case formatMarkdown:
		fmt.Fprint(out, formatComparisonMarkdown(c)) //nolint:errcheck
	default:
		fmt.Fprint(out, formatComparisonText(c)) //nolint:errcheck
	}
}

func comparisonCounts(c *baseline.Comparison) string {
	return fmt.Sprintf("%d regressed, %d fixed, %d added, %d missing",
		c.Count(baseline.Regressed), c.Count(baseline.Fixed), c.Count(baseline.Added), c.Count(baseline.Missing))
}

func formatComparisonText(c *baseline.Comparison) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n📈 Compared with baseline %s: %s (score %+.2f)\n", c.BaselineRunID, comparisonCounts(c), c.Improvement)
	for _, d := range c.Deltas {
		switch d.Change {
		case baseline.Regressed:
			fmt.Fprintf(&sb, "   ↓ %s now fails: %s\n", d.Name, d.After.Summary)
		case baseline.Fixed:
			fmt.Fprintf(&sb, "   ↑ %s now passes\n", d.Name)
		case baseline.Missing:
			fmt.Fprintf(&sb, "   - %s did not run\n", d.Name)
		}
	}
	return sb.String()
}

func formatComparisonMarkdown(c *baseline.Comparison) string {
	var sb strings.Builder
	sb.WriteString("\n### Baseline\n\n")
	fmt.Fprintf(&sb, "Compared with run `%s`: %s (score %+.2f)\n", c.BaselineRunID, comparisonCounts(c), c.Improvement)

	regs := c.Regressions()
	if len(regs) > 0 {
		sb.WriteString("\n| Check | Before | After |\n")
		sb.WriteString("|-------|--------|-------|\n")
		for _, d := range regs {
			fmt.Fprintf(&sb, "| %s | ✅ %s | ❌ %s |\n", d.Name, escapeCell(d.Before.Summary), escapeCell(d.After.Summary))
		}
	}
	return sb.String()
}
