package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harrison/covrun/internal/bazel"
	"github.com/harrison/covrun/internal/coverage"
)

// ErrCoverageCheckFailed is the sentinel wrapped by every *CoverageCheckError.
var ErrCoverageCheckFailed = errors.New("Coverage Analysis FAILED")

// CoverageCheckError reports a consolidated run whose verdict is FAIL.
// It is a result, not an internal fault: the run completed and its report
// was written.
type CoverageCheckError struct {
	FailedFiles []string // Files that failed or fell below their minimum
	TotalFiles  int      // Files in the run
}

// Error implements the error interface for CoverageCheckError.
func (e *CoverageCheckError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %d/%d files did not meet coverage requirements",
		ErrCoverageCheckFailed, len(e.FailedFiles), e.TotalFiles))
	for _, f := range e.FailedFiles {
		sb.WriteString(fmt.Sprintf("\n  - %s", f))
	}
	return sb.String()
}

// Unwrap returns ErrCoverageCheckFailed.
func (e *CoverageCheckError) Unwrap() error {
	return ErrCoverageCheckFailed
}

// InputError rejects a requested file before the pipeline starts.
type InputError struct {
	Path    string // Input as given on the command line
	Message string // Human-readable cause
	Err     error  // Underlying error (optional)
}

// Error implements the error interface for InputError.
func (e *InputError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("invalid input %s: %s", e.Path, e.Message))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *InputError) Unwrap() error {
	return e.Err
}

// AbortError is a fatal fault that stopped the run while processing a file.
type AbortError struct {
	FilePath string
	Err      error
}

// Error implements the error interface for AbortError.
func (e *AbortError) Error() string {
	return fmt.Sprintf("coverage run aborted at %s: %v", e.FilePath, e.Err)
}

// Unwrap returns the fault that aborted the run.
func (e *AbortError) Unwrap() error {
	return e.Err
}

// IsCoverageCheckError checks if the error is or wraps a failed verdict.
func IsCoverageCheckError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrCoverageCheckFailed)
}

// IsInputError checks if the error is or wraps an InputError.
func IsInputError(err error) bool {
	if err == nil {
		return false
	}
	var ie *InputError
	return errors.As(err, &ie)
}

// IsAbortError checks if the error is or wraps an AbortError.
func IsAbortError(err error) bool {
	if err == nil {
		return false
	}
	var ae *AbortError
	return errors.As(err, &ae)
}

// IsTimeoutError checks if the error is or wraps a process timeout or context.DeadlineExceeded.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if bazel.IsTimeoutError(err) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsInconsistencyError checks if the error is or wraps a coverage consistency violation.
func IsInconsistencyError(err error) bool {
	return coverage.IsInconsistencyError(err)
}
