// Package hooks runs user-configured shell commands around a conformance run,
// such as seeding the backend before the suite or tearing it down after.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Hook defines a single hook command.
type Hook struct {
	Command          string        `yaml:"command" json:"command"`
	WorkingDirectory string        `yaml:"working_directory,omitempty" json:"working_directory,omitempty"`
	ExitCodes        []int         `yaml:"exit_codes,omitempty" json:"exit_codes,omitempty"`
	ErrorOnFail      bool          `yaml:"error_on_fail,omitempty" json:"error_on_fail,omitempty"`
	Timeout          time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Config holds the lifecycle hooks of a run.
type Config struct {
	BeforeRun []Hook `yaml:"before_run,omitempty" json:"before_run,omitempty"`
	AfterRun  []Hook `yaml:"after_run,omitempty" json:"after_run,omitempty"`
}

// Lifecycle points.
const (
	BeforeRun = "before_run"
	AfterRun  = "after_run"
)

// Runner executes hook commands at lifecycle points. Command output is
// copied to Output when it is set.
type Runner struct {
	Output io.Writer
}

// Execute runs hooks in order. name identifies the lifecycle point for
// logging and error context. The first hook that fails with ErrorOnFail set
// stops the sequence.
func (r *Runner) Execute(ctx context.Context, name string, hooks []Hook) error {
	for i, h := range hooks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("hook %s: context canceled: %w", name, err)
		}
		if err := r.run(ctx, name, i, h); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) run(ctx context.Context, name string, index int, h Hook) error {
	parts := strings.Fields(h.Command)
	if len(parts) == 0 {
		return fmt.Errorf("hook %s[%d]: empty command", name, index)
	}

	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	//nolint:gosec // hook commands come from the user's own config file
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	if h.WorkingDirectory != "" {
		cmd.Dir = h.WorkingDirectory
	}

	start := time.Now()
	output, err := cmd.CombinedOutput()
	slog.Debug("hook finished", "hook", name, "index", index, "command", h.Command, "duration", time.Since(start))

	if r.Output != nil && len(output) > 0 {
		fmt.Fprintf(r.Output, "[hook:%s] %s\n", name, strings.TrimRight(string(output), "\n")) //nolint:errcheck
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// Not started or killed by the timeout.
			return r.fail(h, fmt.Errorf("hook %s[%d]: %w", name, index, err))
		}
		exitCode = exitErr.ExitCode()
	}

	if !isAcceptableExit(exitCode, h.ExitCodes) {
		return r.fail(h, fmt.Errorf("hook %s[%d]: command exited with code %d", name, index, exitCode))
	}
	return nil
}

// fail returns err when the hook is fatal and otherwise logs it.
func (r *Runner) fail(h Hook, err error) error {
	if h.ErrorOnFail {
		return err
	}
	slog.Warn("hook failed, continuing", "error", err)
	return nil
}

// isAcceptableExit checks whether exitCode is in the allowed list.
// An empty allowedCodes list defaults to allowing only exit code 0.
func isAcceptableExit(exitCode int, allowedCodes []int) bool {
	if len(allowedCodes) == 0 {
		return exitCode == 0
	}
	for _, code := range allowedCodes {
		if exitCode == code {
			return true
		}
	}
	return false
}
