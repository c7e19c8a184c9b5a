package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // All checks passed
	ExitTestFailed = 1 // One or more checks failed, or a gate stopped the run
	ExitError      = 2 // Configuration or runtime error
)

// TestFailureError indicates that the suite ran, but at least one check
// failed or a gate check stopped it early.
type TestFailureError struct {
	Message string
}

func (e *TestFailureError) Error() string {
	return e.Message
}

func main() {
	os.Exit(exitCode(execute(), os.Stderr))
}

func exitCode(err error, w io.Writer) int {
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintln(w, err) //nolint:errcheck

	var testFailureErr *TestFailureError
	if errors.As(err, &testFailureErr) {
		return ExitTestFailed
	}

	// All other errors are configuration/runtime errors
	return ExitError
}
