package reporting

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/healthtestai/apicheck/internal/checks"
)

// InterpretStatus explains what a failing check's status code most likely
// means for the backend under test.
func InterpretStatus(code int) string {
	switch {
	case code == 0:
		return "No response: the server is down, unreachable, or timed out."
	case code == http.StatusNotFound:
		return "Route not found: the endpoint is missing or the sampled id no longer exists."
	case code == http.StatusMethodNotAllowed:
		return "Method not allowed: the route exists but does not accept this verb."
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return "Request rejected: the server no longer accepts this request body."
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "Access denied: the endpoint now requires credentials."
	case code >= 500:
		return "Server error: the handler failed; check the backend logs."
	case code >= 200 && code < 300:
		return "Unexpected success code: the route answers, but not with the expected status."
	default:
		return fmt.Sprintf("Unexpected status %d.", code)
	}
}

// InterpretResult explains why res failed. It returns "" for a passing result.
func InterpretResult(res *checks.CheckResult) string {
	if res.Passed {
		return ""
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		if missing := missingFields(res); missing != "" {
			return fmt.Sprintf("Response shape drifted: records no longer carry %s.", missing)
		}
		if res.Err != nil {
			return "Malformed body: the response was not the JSON this route should return."
		}
	}
	return InterpretStatus(res.StatusCode)
}

func missingFields(res *checks.CheckResult) string {
	for _, d := range res.Details {
		if after, ok := strings.CutPrefix(d, "missing: "); ok {
			return after
		}
	}
	if strings.Contains(res.Summary, "Missing fields: [") {
		_, after, _ := strings.Cut(res.Summary, "Missing fields: [")
		field, _, _ := strings.Cut(after, "]")
		return field
	}
	return ""
}

// InterpretPassRate returns a human-readable explanation of a pass rate (0–1).
func InterpretPassRate(rate float64) string {
	pct := rate * 100
	switch {
	case pct >= 100:
		return fmt.Sprintf("All checks passed (%.0f%%)", pct)
	case pct >= 80:
		return fmt.Sprintf("Most checks passed (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("About half the checks passed (%.0f%%)", pct)
	default:
		return fmt.Sprintf("Few checks passed (%.0f%%)", pct)
	}
}

// FormatSummaryReport produces a plain-language report for r.
func FormatSummaryReport(r *Report) string {
	var b strings.Builder

	b.WriteString("=== Interpretation ===\n\n")

	rate := 0.0
	if r.Total > 0 {
		rate = float64(r.Passed) / float64(r.Total)
	}
	fmt.Fprintf(&b, "Pass Rate:     %s\n", InterpretPassRate(rate))
	fmt.Fprintf(&b, "Duration:      %v\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Checks:        %d passed, %d failed out of %d run\n", r.Passed, r.Failed(), r.Total)
	if r.Aborted != "" {
		fmt.Fprintf(&b, "Stopped early: %s\n", r.Aborted)
	}

	var failed []*checks.CheckResult
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	if len(failed) > 0 {
		b.WriteString("\nFailures:\n")
		for _, res := range failed {
			fmt.Fprintf(&b, "  ✗ %s\n", res.Name)
			fmt.Fprintf(&b, "    %s\n", InterpretResult(res))
		}
	}

	return b.String()
}
