package checks

import "fmt"

// Summary counts recorded results. It is derived on demand and never stored
// alongside the results.
type Summary struct {
	Passed int
	Total  int
}

// Summarize folds results into a Summary.
func Summarize(results []*CheckResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Passed {
			s.Passed++
		}
	}
	return s
}

// Failed is the number of recorded checks that did not pass.
func (s Summary) Failed() int { return s.Total - s.Passed }

// AllPassed reports whether every recorded check passed.
func (s Summary) AllPassed() bool { return s.Passed == s.Total }

// String renders the summary as "passed/total".
func (s Summary) String() string { return fmt.Sprintf("%d/%d", s.Passed, s.Total) }
