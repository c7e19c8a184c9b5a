package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/healthtestai/apicheck/internal/checks"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one conformance run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one check.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a check whose response broke the contract.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitError represents a check that could not complete its request.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitSkipped marks a check that never ran.
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// JUnit failure and error types.
const (
	failureType = "ContractViolation"
	errorType   = "RequestError"
)

// ConvertToJUnit converts a Report to JUnit XML format. Checks of suite
// that produced no result are listed as skipped so the file always names
// the whole suite.
func ConvertToJUnit(r *Report, suite []checks.Check) *JUnitTestSuites {
	durationSec := r.Duration.Seconds()

	ts := JUnitTestSuite{
		Name:      "apicheck",
		Time:      durationSec,
		Timestamp: r.Timestamp.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "run_id", Value: r.RunID},
			{Name: "base_url", Value: r.BaseURL},
			{Name: "summary", Value: fmt.Sprintf("%d/%d", r.Passed, r.Total)},
		},
	}
	if r.Aborted != "" {
		ts.Properties = append(ts.Properties, JUnitProperty{Name: "aborted", Value: r.Aborted})
	}

	seen := make(map[string]bool, len(r.Results))
	for _, res := range r.Results {
		seen[res.Name] = true
		tc := convertResult(r.BaseURL, res)
		switch {
		case tc.Error != nil:
			ts.Errors++
		case tc.Failure != nil:
			ts.Failures++
		}
		ts.TestCases = append(ts.TestCases, tc)
	}

	for _, c := range suite {
		if seen[c.Name] {
			continue
		}
		msg := "not run"
		if r.Aborted != "" {
			msg = r.Aborted
		}
		ts.TestCases = append(ts.TestCases, JUnitTestCase{
			Name:      c.Name,
			Classname: r.BaseURL,
			Skipped:   &JUnitSkipped{Message: msg},
		})
		ts.Skipped++
	}
	ts.Tests = len(ts.TestCases)

	return &JUnitTestSuites{
		Tests:      ts.Tests,
		Failures:   ts.Failures,
		Errors:     ts.Errors,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{ts},
	}
}

func convertResult(baseURL string, res *checks.CheckResult) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      res.Name,
		Classname: baseURL,
		Time:      res.Duration.Seconds(),
	}
	if res.Passed {
		return tc
	}

	body := strings.Join(res.Details, "\n")
	// No status means the request never got a response.
	if res.Err != nil && res.StatusCode == 0 {
		tc.Error = &JUnitError{Message: res.Summary, Type: errorType, Body: body}
		return tc
	}
	tc.Failure = &JUnitFailure{
		Message: fmt.Sprintf("%s: %s", res.Name, res.Summary),
		Type:    failureType,
		Body:    body,
	}
	return tc
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(r *Report, suite []checks.Check, path string) error {
	suites := ConvertToJUnit(r, suite)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
