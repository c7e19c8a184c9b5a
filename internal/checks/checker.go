// Package checks runs an ordered suite of black-box HTTP checks against the
// HealthTestAI API and records one CheckResult per executed check.
package checks

import (
	"context"
	"time"
)

// CheckResult holds the outcome of a single check. It is not modified after
// the runner records it.
type CheckResult struct {
	// Name is the display name of the check, stable across runs.
	Name string
	// Passed indicates whether the check met its acceptance criteria.
	Passed bool
	// Summary is the one-line diagnostic printed after PASSED/FAILED.
	Summary string
	// Details provides optional supporting lines, such as the missing keys.
	Details []string
	// StatusCode is the HTTP status observed, or 0 when no response arrived.
	StatusCode int
	// Duration is the wall time spent in the check, including any polling.
	Duration time.Duration
	// Err is the fault that failed the check, if it failed by fault rather
	// than by assertion.
	Err error
}

// RunFunc performs one check. Returning an error marks the check failed with
// the error text; the runner never propagates it.
type RunFunc func(ctx context.Context, env *Env, c Check) (*CheckResult, error)

// GateFunc reports whether the suite may continue after a gate check.
type GateFunc func(res *CheckResult, s *Session) bool

// Check describes one request/assertion unit.
type Check struct {
	Name   string
	Method string
	// Path is a template; {key} segments are filled from the Session.
	Path string
	// Expect is the single status code that counts as success.
	Expect int
	// Requires lists Session keys that must be present; otherwise the check
	// is skipped and not recorded.
	Requires []string
	// Settle makes the runner wait the configured settle delay before the check.
	Settle bool
	// Gate, when set, aborts the suite if it returns false.
	Gate GateFunc
	// AbortMessage is printed when the gate aborts the run.
	AbortMessage string
	Run          RunFunc
}

// IsGate reports whether a failing c stops the suite.
func (c Check) IsGate() bool { return c.Gate != nil }
