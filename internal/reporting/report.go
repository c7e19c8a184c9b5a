// Package reporting turns a conformance run into reports: a JSON document,
// JUnit XML, and a plain-language interpretation.
package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/healthtestai/apicheck/internal/checks"
)

// Report is one finished run.
type Report struct {
	RunID     string                `json:"runId"`
	BaseURL   string                `json:"baseUrl"`
	Timestamp time.Time             `json:"timestamp"`
	Duration  time.Duration         `json:"-"`
	Success   bool                  `json:"success"`
	Aborted   string                `json:"aborted,omitempty"`
	Passed    int                   `json:"passed"`
	Total     int                   `json:"total"`
	Checks    []CheckJSON           `json:"checks"`
	Results   []*checks.CheckResult `json:"-"`
}

// CheckJSON is the serialized form of one CheckResult.
type CheckJSON struct {
	Name       string   `json:"name"`
	Passed     bool     `json:"passed"`
	StatusCode int      `json:"statusCode,omitempty"`
	Summary    string   `json:"summary"`
	Details    []string `json:"details,omitempty"`
	DurationMs int64    `json:"durationMs"`
}

// NewReport folds results into a Report. aborted carries the gate message
// when a gate stopped the run.
func NewReport(runID, baseURL string, started time.Time, duration time.Duration, success bool, aborted string, results []*checks.CheckResult) *Report {
	sum := checks.Summarize(results)
	r := &Report{
		RunID:     runID,
		BaseURL:   baseURL,
		Timestamp: started,
		Duration:  duration,
		Success:   success,
		Aborted:   aborted,
		Passed:    sum.Passed,
		Total:     sum.Total,
		Results:   results,
		Checks:    make([]CheckJSON, 0, len(results)),
	}
	for _, res := range results {
		r.Checks = append(r.Checks, CheckJSON{
			Name:       res.Name,
			Passed:     res.Passed,
			StatusCode: res.StatusCode,
			Summary:    res.Summary,
			Details:    res.Details,
			DurationMs: res.Duration.Milliseconds(),
		})
	}
	return r
}

// Failed is the number of recorded checks that did not pass.
func (r *Report) Failed() int { return r.Total - r.Passed }

// WriteJSON encodes r, indented, to w.
func WriteJSON(w io.Writer, r *Report) error {
	data, err := json.MarshalIndent(struct {
		*Report
		DurationMs int64 `json:"durationMs"`
	}{r, r.Duration.Milliseconds()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// SaveJSON writes r as JSON to path.
func SaveJSON(r *Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck
	return WriteJSON(f, r)
}
