package main

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthtestai/apicheck/internal/reporting"
)

// ---------------------------------------------------------------------------
// Argument validation
// ---------------------------------------------------------------------------

func TestRunCommand_AtMostOneArg(t *testing.T) {
	_, _, err := runCLI(t, "run", "http://a:1", "http://b:2")
	assert.Error(t, err)
}

func TestRunCommand_FlagsParsed(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--timeout", "5s",
		"--settle-delay", "0s",
		"--extended",
		"--format", "json",
		"--junit", "out.xml",
	}))

	d, err := cmd.Flags().GetDuration("timeout")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	ext, err := cmd.Flags().GetBool("extended")
	require.NoError(t, err)
	assert.True(t, ext)

	f, err := cmd.Flags().GetString("format")
	require.NoError(t, err)
	assert.Equal(t, "json", f)
}

// ---------------------------------------------------------------------------
// Runs against a fake backend
// ---------------------------------------------------------------------------

func TestRunCommand_AllPass(t *testing.T) {
	srv := newFakeServer(t, &fakeBackend{})

	out, _, err := runCLI(t, runArgs(srv.URL)...)
	require.NoError(t, err)

	assert.Contains(t, out, "🔍 Testing HealthTestAI Backend at "+srv.URL)
	assert.Contains(t, out, "✅ Health Check - PASSED Status: 200")
	assert.Contains(t, out, "✅ Get Requirement by ID - PASSED Status: 200, ID: 7, Title: Consent must be captured befor...")
	assert.Contains(t, out, "✅ Create Chat Session - PASSED Status: 200, Req ID: 7, Session ID: 42")
	assert.Contains(t, out, "Assistant reply: Test Cases")
	assert.Contains(t, out, "📊 Test Summary: 8/8 tests passed")
	assert.Contains(t, out, "🎉 All tests passed!")
	assert.NotContains(t, out, "\x1b[", "output to a buffer must not be colored")
}

func TestRunCommand_UnreachableServer(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	out, _, err := runCLI(t, runArgs(url, "--timeout", "2s")...)
	require.Error(t, err)

	var testErr *TestFailureError
	require.True(t, errors.As(err, &testErr), "expected TestFailureError, got %T", err)
	assert.Equal(t, ExitTestFailed, exitCode(err, &strings.Builder{}))

	assert.Contains(t, out, "❌ Health Check - FAILED Error:")
	assert.Contains(t, out, "❌ Health check failed - stopping tests")
	assert.Contains(t, out, "📊 Test Summary: 0/1 tests passed")
	assert.NotContains(t, out, "Get Requirements")
}

func TestRunCommand_EmptyRequirementsStops(t *testing.T) {
	srv := newFakeServer(t, &fakeBackend{empty: true})

	out, _, err := runCLI(t, runArgs(srv.URL)...)
	var testErr *TestFailureError
	require.True(t, errors.As(err, &testErr))
	assert.Contains(t, testErr.Message, "Requirements endpoint failed")

	assert.Contains(t, out, "✅ Get Requirements - PASSED Status: 200, Count: 0")
	assert.Contains(t, out, "📊 Test Summary: 2/2 tests passed")
	assert.Contains(t, out, "Suite stopped before all checks ran")
}

func TestRunCommand_JSONFormat(t *testing.T) {
	srv := newFakeServer(t, &fakeBackend{})

	out, _, err := runCLI(t, runArgs(srv.URL, "--format", "json", "--interpret")...)
	require.NoError(t, err)

	var rep struct {
		BaseURL string `json:"baseUrl"`
		Success bool   `json:"success"`
		Passed  int    `json:"passed"`
		Total   int    `json:"total"`
		Checks  []struct {
			Name string `json:"name"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep), "stdout must be pure JSON:\n%s", out)
	assert.True(t, rep.Success)
	assert.Equal(t, 8, rep.Passed)
	assert.Equal(t, 8, rep.Total)
	assert.Equal(t, srv.URL, rep.BaseURL)
	require.Len(t, rep.Checks, 8)
	assert.Equal(t, "Get Chat Messages", rep.Checks[7].Name)
}

func TestRunCommand_MarkdownFormat(t *testing.T) {
	srv := newFakeServer(t, &fakeBackend{})

	out, _, err := runCLI(t, runArgs(srv.URL, "--format", "markdown")...)
	require.NoError(t, err)
	assert.Contains(t, out, "**Status:** ✅ Passed | **Checks:** 8/8")
	assert.Contains(t, out, "| Health Check | 200 | ✅ |")
	assert.NotContains(t, out, "Test Summary")
}

func TestRunCommand_ExtendedSuite(t *testing.T) {
	srv := newFakeServer(t, &fakeBackend{})

	out, _, err := runCLI(t, runArgs(srv.URL, "--extended")...)
	require.NoError(t, err)
	assert.Contains(t, out, "✅ Get Unknown Requirement - PASSED Status: 404")
	assert.Contains(t, out, "✅ Delete Chat Session - PASSED")
	assert.Contains(t, out, "📊 Test Summary: 11/11 tests passed")
}

func TestRunCommand_WritesArtifacts(t *testing.T) {
	srv := newFakeServer(t, &fakeBackend{})
	dir := t.TempDir()
	junitPath := filepath.Join(dir, "junit.xml")
	jsonPath := filepath.Join(dir, "report.json")
	transcripts := filepath.Join(dir, "chat")

	out, _, err := runCLI(t, runArgs(srv.URL,
		"--junit", junitPath,
		"--output", jsonPath,
		"--transcript-dir", transcripts,
	)...)
	require.NoError(t, err)
	assert.Contains(t, out, "JUnit report saved to: "+junitPath)
	assert.Contains(t, out, "Results saved to: "+jsonPath)
	assert.Contains(t, out, "Transcript saved to: ")

	data, err := os.ReadFile(junitPath)
	require.NoError(t, err)
	var suites reporting.JUnitTestSuites
	require.NoError(t, xml.Unmarshal(data, &suites))
	assert.Equal(t, 8, suites.Tests)
	assert.Equal(t, 0, suites.Failures)

	_, err = os.Stat(jsonPath)
	require.NoError(t, err)

	entries, err := os.ReadDir(transcripts)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "chat-42-"))
}

// ---------------------------------------------------------------------------
// Configuration precedence and errors
// ---------------------------------------------------------------------------

func TestRunCommand_ConfigFileSuppliesBaseURL(t *testing.T) {
	srv := newFakeServer(t, &fakeBackend{})
	cfgPath := filepath.Join(t.TempDir(), "apicheck.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("base_url: "+srv.URL+"\nextended: true\n"), 0o644))

	args := append([]string{"run", "--config", cfgPath, "--extended=false"}, fastFlags...)
	out, _, err := runCLI(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Testing HealthTestAI Backend at "+srv.URL)
	assert.Contains(t, out, "8/8 tests passed", "--extended=false overrides the file")
}

func TestRunCommand_EnvBaseURL(t *testing.T) {
	srv := newFakeServer(t, &fakeBackend{})
	t.Setenv("APICHECK_BASE_URL", srv.URL)

	args := append([]string{"run"}, fastFlags...)
	out, _, err := runCLI(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "8/8 tests passed")
}

func TestRunCommand_ConfigErrors(t *testing.T) {
	badCfg := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(badCfg, []byte("output:\n  format: xml\n"), 0o644))

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown format", []string{"run", "http://localhost:1", "--format", "xml"}, "unknown output format"},
		{"bad base url", []string{"run", "localhost:5000"}, "invalid base URL"},
		{"zero timeout", []string{"run", "http://localhost:1", "--timeout", "0s"}, "timeout must be positive"},
		{"missing config", []string{"run", "--config", "/does/not/exist.yaml"}, "loading /does/not/exist.yaml"},
		{"schema violation", []string{"run", "--config", badCfg}, "/output/format"},
		{"missing baseline", []string{"run", "http://localhost:1", "--baseline", "/does/not/exist.json"}, "reading baseline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, ExitError, exitCode(err, &strings.Builder{}))
		})
	}
}

// ---------------------------------------------------------------------------
// Baseline comparison
// ---------------------------------------------------------------------------

const baselineJSON = `{
  "runId": "run-before",
  "baseUrl": "http://localhost:5000",
  "success": false,
  "passed": 1,
  "total": 3,
  "checks": [
    {"name": "Health Check", "passed": true, "statusCode": 200, "summary": "Status: 200", "durationMs": 10},
    {"name": "Get Requirements", "passed": false, "statusCode": 500, "summary": "Status: 500", "durationMs": 10},
    {"name": "Legacy Export", "passed": true, "statusCode": 200, "summary": "Status: 200", "durationMs": 10}
  ]
}`

func writeBaseline(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "baseline.json")
	require.NoError(t, os.WriteFile(path, []byte(baselineJSON), 0o644))
	return path
}

func TestRunCommand_BaselineText(t *testing.T) {
	srv := newFakeServer(t, &fakeBackend{})

	out, _, err := runCLI(t, runArgs(srv.URL, "--baseline", writeBaseline(t))...)
	require.NoError(t, err)
	assert.Contains(t, out, "Compared with baseline run-before: 0 regressed, 1 fixed, 6 added, 1 missing")
	assert.Contains(t, out, "↑ Get Requirements now passes")
	assert.Contains(t, out, "- Legacy Export did not run")
}

func TestRunCommand_BaselineMarkdownReportsRegression(t *testing.T) {
	srv := newFakeServer(t, &fakeBackend{empty: true})
	path := filepath.Join(t.TempDir(), "baseline.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"runId":"good","checks":[
		{"name":"Health Check","passed":true,"summary":"Status: 200","durationMs":5},
		{"name":"Get Requirements","passed":true,"summary":"Status: 200, Count: 3","durationMs":5}
	]}`), 0o644))

	out, _, err := runCLI(t, runArgs(srv.URL, "--format", "markdown", "--baseline", path)...)
	require.Error(t, err)
	assert.Contains(t, out, "### Baseline")
	assert.Contains(t, out, "Compared with run `good`")
	assert.Contains(t, out, "0 regressed, 0 fixed, 0 added, 0 missing")
}

func TestRunCommand_BaselineIgnoredInJSON(t *testing.T) {
	srv := newFakeServer(t, &fakeBackend{})

	out, _, err := runCLI(t, runArgs(srv.URL, "--format", "json", "--baseline", writeBaseline(t))...)
	require.NoError(t, err)
	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rep), "stdout must stay pure JSON")
}

// ---------------------------------------------------------------------------
// Hooks
// ---------------------------------------------------------------------------

func TestRunCommand_HooksRunAroundSuite(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX echo")
	}
	srv := newFakeServer(t, &fakeBackend{})
	cfgPath := filepath.Join(t.TempDir(), "apicheck.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`base_url: `+srv.URL+`
hooks:
  before_run:
    - command: echo seeding
  after_run:
    - command: echo cleanup
`), 0o644))

	args := append([]string{"run", "--config", cfgPath}, fastFlags...)
	out, errOut, err := runCLI(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "8/8 tests passed")
	assert.Contains(t, errOut, "[hook:before_run] seeding")
	assert.Contains(t, errOut, "[hook:after_run] cleanup")
	assert.Less(t, strings.Index(errOut, "seeding"), strings.Index(errOut, "cleanup"))
}

func TestRunCommand_FatalBeforeHookSkipsSuite(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX false")
	}
	srv := newFakeServer(t, &fakeBackend{})
	cfgPath := filepath.Join(t.TempDir(), "apicheck.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`base_url: `+srv.URL+`
hooks:
  before_run:
    - command: "false"
      error_on_fail: true
`), 0o644))

	out, _, err := runCLI(t, "run", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook before_run[0]")
	assert.Equal(t, ExitError, exitCode(err, &strings.Builder{}))
	assert.NotContains(t, out, "Starting HealthTestAI Backend API Tests")
}
