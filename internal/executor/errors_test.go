package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/harrison/covrun/internal/bazel"
	"github.com/harrison/covrun/internal/coverage"
)

func TestCoverageCheckError(t *testing.T) {
	err := &CoverageCheckError{FailedFiles: []string{"a/Foo.kt", "a/Bar.kt"}, TotalFiles: 5}

	assert.Equal(t, "Coverage Analysis FAILED: 2/5 files did not meet coverage requirements\n  - a/Foo.kt\n  - a/Bar.kt", err.Error())
	assert.True(t, errors.Is(err, ErrCoverageCheckFailed))
	assert.True(t, IsCoverageCheckError(fmt.Errorf("run: %w", err)))
	assert.False(t, IsCoverageCheckError(nil))
}

func TestInputError(t *testing.T) {
	base := errors.New("stat failed")
	err := &InputError{Path: "a/Missing.kt", Message: "file does not exist", Err: base}

	assert.Equal(t, "invalid input a/Missing.kt: file does not exist: stat failed", err.Error())
	assert.True(t, errors.Is(err, base))
	assert.True(t, IsInputError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsInputError(base))

	noCause := &InputError{Path: "FooTest.kt", Message: "no source file found"}
	assert.Equal(t, "invalid input FooTest.kt: no source file found", noCause.Error())
}

func TestErrorClassification(t *testing.T) {
	timeout := &bazel.TimeoutError{Command: "bazel coverage", Timeout: time.Minute}
	inconsistent := &coverage.InconsistencyError{FilePath: "a/Foo.kt", Groups: []string{"a@1", "a@2"}}
	abort := &AbortError{FilePath: "a/Foo.kt", Err: inconsistent}

	tests := []struct {
		name         string
		err          error
		timeout      bool
		inconsistent bool
		abort        bool
	}{
		{"nil", nil, false, false, false},
		{"plain", errors.New("boom"), false, false, false},
		{"process timeout", timeout, true, false, false},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true, false, false},
		{"inconsistency", inconsistent, false, true, false},
		{"abort", abort, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.timeout, IsTimeoutError(tt.err))
			assert.Equal(t, tt.inconsistent, IsInconsistencyError(tt.err))
			assert.Equal(t, tt.abort, IsAbortError(tt.err))
		})
	}
	assert.Contains(t, abort.Error(), "coverage run aborted at a/Foo.kt")
}

func TestGracefulWarn(t *testing.T) {
	GracefulWarn(nil, "ignored %d", 1)

	l := &warnLogger{}
	GracefulWarn(l, "History: %s", "unavailable")
	assert.Equal(t, []string{"History: unavailable"}, l.warnings)
}
