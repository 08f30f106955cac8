package executor

import "fmt"

// graceful.go holds the degradation pattern for side effects of a run:
// warn about errors but don't change the verdict.

// GracefulWarn logs a warning if logger is non-nil, using the given format and args.
//
// Usage:
//
//	if err := o.recorder.RecordRun(ctx, result); err != nil {
//	    GracefulWarn(o.logger, "History: failed to record run %s: %v", result.RunID, err)
//	}
func GracefulWarn(logger Logger, format string, args ...interface{}) {
	if logger != nil {
		logger.LogWarn(fmt.Sprintf(format, args...))
	}
}
