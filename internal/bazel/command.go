// Package bazel talks to the Bazel build tool: it maps test files to test
// targets and retrieves per-target line coverage. Every invocation is
// bounded by a process timeout.
package bazel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultProcessTimeout applies when no timeout is configured.
const DefaultProcessTimeout = 5 * time.Minute

// CommandRunner abstracts process execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (output string, err error)
}

// TimeoutError reports a process killed after exceeding its timeout.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("process %q timed out after %s", e.Command, formatMinutes(e.Timeout))
}

// Unwrap returns context.DeadlineExceeded so errors.Is works on timeouts.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// IsTimeoutError checks if the error is or wraps a TimeoutError.
func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// ExitError reports a process that ran to completion with a non-zero status.
type ExitError struct {
	Command  string
	ExitCode int
	Output   string
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("process %q exited with code %d", e.Command, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLines(out, 5)
	}
	return msg
}

// ProcessRunner executes commands directly (no shell) with a per-call timeout.
type ProcessRunner struct {
	Timeout time.Duration
}

// NewProcessRunner creates a runner. A non-positive timeout selects
// DefaultProcessTimeout.
func NewProcessRunner(timeout time.Duration) *ProcessRunner {
	if timeout <= 0 {
		timeout = DefaultProcessTimeout
	}
	return &ProcessRunner{Timeout: timeout}
}

// Run executes name with args in dir and returns combined stdout/stderr.
// Output of a timed-out process is discarded.
func (r *ProcessRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	commandLine := strings.TrimSpace(name + " " + strings.Join(args, " "))

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", &TimeoutError{Command: commandLine, Timeout: r.Timeout}
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("process %q cancelled: %w", commandLine, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return buf.String(), &ExitError{Command: commandLine, ExitCode: exitErr.ExitCode(), Output: buf.String()}
		}
		return buf.String(), fmt.Errorf("failed to run %q: %w", commandLine, err)
	}
	return buf.String(), nil
}

func formatMinutes(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		minutes := int(d / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return d.String()
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
