package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/healthtestai/apicheck/internal/checks"
	"github.com/healthtestai/apicheck/internal/reporting"
	"github.com/healthtestai/apicheck/internal/spinner"
)

const ruleWidth = 60

// textReporter prints progress lines while the suite runs and the closing
// summary afterwards.
type textReporter struct {
	out    io.Writer
	errOut io.Writer

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	bold   *color.Color

	spin     bool
	stopSpin func()
}

func newTextReporter(out, errOut io.Writer, useColor bool) *textReporter {
	r := &textReporter{
		out:    out,
		errOut: errOut,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		bold:   color.New(color.Bold),
		spin:   isTerminal(errOut),
	}
	for _, c := range []*color.Color{r.green, r.red, r.yellow, r.bold} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// isTerminal reports whether w is a terminal. Pipes, files and buffers are not.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (r *textReporter) header(baseURL string, started time.Time) {
	fmt.Fprintf(r.out, "🔍 Testing HealthTestAI Backend at %s\n⏰ Started at: %s\n%s\n%s\n", //nolint:errcheck
		baseURL,
		started.Format("2006-01-02 15:04:05"),
		r.bold.Sprint("🚀 Starting HealthTestAI Backend API Tests"),
		strings.Repeat("=", ruleWidth))
}

// listen is the runner's progress listener.
func (r *textReporter) listen(event checks.ProgressEvent) {
	switch event.EventType {
	case checks.EventWaiting:
		r.stopSpinner()
		if r.spin {
			r.stopSpin = spinner.Start(r.errOut, event.Message, event.Wait)
		}
	case checks.EventCheckStart:
		r.stopSpinner()
	case checks.EventCheckComplete:
		r.stopSpinner()
		fmt.Fprintln(r.out, r.resultLine(event.Result)) //nolint:errcheck
	case checks.EventCheckSkipped:
		slog.Debug("check skipped", "check", event.CheckName)
	case checks.EventGateAbort:
		fmt.Fprintln(r.out, r.red.Sprint("❌ "+event.Message)) //nolint:errcheck
	case checks.EventRunComplete:
		r.stopSpinner()
	}
}

func (r *textReporter) stopSpinner() {
	if r.stopSpin != nil {
		r.stopSpin()
		r.stopSpin = nil
	}
}

func (r *textReporter) resultLine(res *checks.CheckResult) string {
	if res.Passed {
		return fmt.Sprintf("✅ %s - %s %s", res.Name, r.green.Sprint("PASSED"), res.Summary)
	}
	return fmt.Sprintf("❌ %s - %s %s", res.Name, r.red.Sprint("FAILED"), res.Summary)
}

// summary prints the per-check table and the closing verdict.
func (r *textReporter) summary(rep *reporting.Report) {
	fmt.Fprintf(r.out, "\n%s\n", strings.Repeat("=", ruleWidth)) //nolint:errcheck

	if len(rep.Results) > 0 {
		r.table(rep.Results)
		fmt.Fprintln(r.out) //nolint:errcheck
	}

	fmt.Fprintf(r.out, "📊 Test Summary: %d/%d tests passed\n", rep.Passed, rep.Total) //nolint:errcheck
	switch {
	case rep.Success:
		fmt.Fprintln(r.out, r.green.Sprint("🎉 All tests passed!")) //nolint:errcheck
	case rep.Failed() > 0:
		fmt.Fprintln(r.out, r.yellow.Sprintf("⚠️  %d tests failed", rep.Failed())) //nolint:errcheck
	default:
		fmt.Fprintln(r.out, r.yellow.Sprint("⚠️  Suite stopped before all checks ran")) //nolint:errcheck
	}
}

func (r *textReporter) table(results []*checks.CheckResult) {
	nameWidth := runewidth.StringWidth("Check")
	for _, res := range results {
		if w := runewidth.StringWidth(res.Name); w > nameWidth {
			nameWidth = w
		}
	}
	const colResult, colStatus = 8, 8

	fmt.Fprintf(r.out, "%s  %s  %s  %s\n", //nolint:errcheck
		padRight("Check", nameWidth), padRight("Result", colResult), padRight("Status", colStatus), "Time")
	for _, res := range results {
		mark := "✅"
		if !res.Passed {
			mark = "❌"
		}
		status := "-"
		if res.StatusCode != 0 {
			status = fmt.Sprintf("%d", res.StatusCode)
		}
		fmt.Fprintf(r.out, "%s  %s  %s  %s\n", //nolint:errcheck
			padRight(res.Name, nameWidth),
			padRight(mark, colResult),
			padRight(status, colStatus),
			formatDuration(res.Duration))
	}
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// formatDuration formats a duration in a consistent, human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Millisecond).String()
}

// FormatMarkdown formats a Report as a markdown comment for pull requests.
func FormatMarkdown(rep *reporting.Report) string {
	var b strings.Builder

	b.WriteString("## 🩺 HealthTestAI API Conformance\n\n")

	statusIcon := "✅ Passed"
	if !rep.Success {
		statusIcon = "❌ Failed"
	}
	fmt.Fprintf(&b, "**Status:** %s | **Checks:** %d/%d | **Duration:** %s\n\n",
		statusIcon, rep.Passed, rep.Total, formatDuration(rep.Duration))
	if rep.Aborted != "" {
		fmt.Fprintf(&b, "> %s\n\n", rep.Aborted)
	}

	b.WriteString("| Check | Status | Result | Details |\n")
	b.WriteString("|-------|--------|--------|---------|\n")
	for _, res := range rep.Results {
		icon := "✅"
		if !res.Passed {
			icon = "❌"
		}
		status := "-"
		if res.StatusCode != 0 {
			status = fmt.Sprintf("%d", res.StatusCode)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", res.Name, status, icon, escapeCell(res.Summary))
	}
	b.WriteString("\n")

	if rep.Failed() > 0 {
		b.WriteString("### Failed Checks\n\n")
		for _, res := range rep.Results {
			if res.Passed {
				continue
			}
			fmt.Fprintf(&b, "- **%s**: %s\n", res.Name, reporting.InterpretResult(res))
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "**Base URL:** %s | **Run:** %s\n", rep.BaseURL, rep.RunID)

	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
