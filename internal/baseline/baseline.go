// Package baseline compares a conformance run against a previously saved JSON
// report so that regressions stand out from long-standing failures.
package baseline

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/healthtestai/apicheck/internal/reporting"
)

// Change classifies how one check moved between the baseline and this run.
type Change string

const (
	Unchanged Change = "unchanged"
	Regressed Change = "regressed"
	Fixed     Change = "fixed"
	Added     Change = "added"
	Missing   Change = "missing"
)

// CheckDelta pairs one check's baseline and current results.
type CheckDelta struct {
	Name   string               `json:"name"`
	Change Change               `json:"change"`
	Before *reporting.CheckJSON `json:"before,omitempty"`
	After  *reporting.CheckJSON `json:"after,omitempty"`
	// LatencyChange is (after-before)/before; negative means faster.
	LatencyChange float64 `json:"latency_change"`
}

// Comparison is the check-by-check difference between two runs.
type Comparison struct {
	BaselineRunID string       `json:"baseline_run_id"`
	Deltas        []CheckDelta `json:"deltas"`
	// Improvement is in [-1, 1]; positive means this run is healthier.
	Improvement float64 `json:"improvement"`
}

// Load reads a report previously written with --output or --format json.
func Load(path string) (*reporting.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading baseline: %w", err)
	}
	var r reporting.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing baseline %s: %w", path, err)
	}
	if len(r.Checks) == 0 {
		return nil, fmt.Errorf("baseline %s has no checks", path)
	}
	return &r, nil
}

// Compare diffs current against base. Deltas follow current's check order,
// then any baseline checks that did not run this time.
func Compare(base, current *reporting.Report) *Comparison {
	before := make(map[string]*reporting.CheckJSON, len(base.Checks))
	for i := range base.Checks {
		before[base.Checks[i].Name] = &base.Checks[i]
	}

	c := &Comparison{BaselineRunID: base.RunID}
	seen := make(map[string]bool, len(current.Checks))
	for i := range current.Checks {
		after := &current.Checks[i]
		seen[after.Name] = true
		c.Deltas = append(c.Deltas, diff(before[after.Name], after))
	}
	for i := range base.Checks {
		if b := &base.Checks[i]; !seen[b.Name] {
			c.Deltas = append(c.Deltas, CheckDelta{Name: b.Name, Change: Missing, Before: b})
		}
	}

	c.Improvement = computeComposite(passRate(base), passRate(current), c.Deltas)
	return c
}

func diff(before, after *reporting.CheckJSON) CheckDelta {
	d := CheckDelta{Name: after.Name, Before: before, After: after, Change: Unchanged}
	if before == nil {
		d.Change = Added
		return d
	}
	switch {
	case before.Passed && !after.Passed:
		d.Change = Regressed
	case !before.Passed && after.Passed:
		d.Change = Fixed
	}
	if before.DurationMs > 0 {
		d.LatencyChange = float64(after.DurationMs-before.DurationMs) / float64(before.DurationMs)
	}
	return d
}

// Count returns how many deltas have the given change.
func (c *Comparison) Count(change Change) int {
	n := 0
	for _, d := range c.Deltas {
		if d.Change == change {
			n++
		}
	}
	return n
}

// Regressions returns the checks that passed in the baseline and fail now.
func (c *Comparison) Regressions() []CheckDelta {
	var out []CheckDelta
	for _, d := range c.Deltas {
		if d.Change == Regressed {
			out = append(out, d)
		}
	}
	return out
}

func passRate(r *reporting.Report) float64 {
	if len(r.Checks) == 0 {
		return 0
	}
	passed := 0
	for _, c := range r.Checks {
		if c.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(r.Checks))
}

// computeComposite produces a [-1, 1] improvement score. The pass-rate delta
// dominates; mean latency change of checks present in both runs is secondary.
func computeComposite(baseRate, currentRate float64, deltas []CheckDelta) float64 {
	var sum float64
	var n int
	for _, d := range deltas {
		if d.Before != nil && d.After != nil && d.Before.DurationMs > 0 {
			sum += d.LatencyChange
			n++
		}
	}
	latency := 0.0
	if n > 0 {
		latency = math.Max(-1, math.Min(1, sum/float64(n)))
	}

	score := (currentRate-baseRate)*0.8 + (-latency)*0.2
	return math.Max(-1.0, math.Min(1.0, score))
}
