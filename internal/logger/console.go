// Package logger provides logging implementations for covrun runs.
//
// Loggers record per-file progress through the coverage pipeline and the run
// summary. Implementations are thread-safe and write to the console, to log
// files, or nowhere.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/harrison/covrun/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive); anything
// else selects info.
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		// color.NoColor honours NO_COLOR and non-TTY output
		return !color.NoColor
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	default:
		return "info"
	}
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message.
func (cl *ConsoleLogger) LogTrace(message string) { cl.logWithLevel("TRACE", message) }

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) { cl.logWithLevel("DEBUG", message) }

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) { cl.logWithLevel("INFO", message) }

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) { cl.logWithLevel("WARN", message) }

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) { cl.logWithLevel("ERROR", message) }

// logWithLevel formats "[HH:MM:SS] [LEVEL] message" if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	label := level
	if cl.colorOutput {
		label = levelColor(level).Sprint(level)
	}
	cl.write(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), label, message))
}

func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgBlue)
	}
}

func (cl *ConsoleLogger) write(s string) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.writer.Write([]byte(s))
}

// LogRunStart logs the number of files and the report format at INFO level.
// Format: "[HH:MM:SS] Running coverage for 3 files (format: HTML)"
func (cl *ConsoleLogger) LogRunStart(files []string, format models.ReportFormat) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}
	noun := "files"
	if len(files) == 1 {
		noun = "file"
	}
	header := "Running coverage"
	if cl.colorOutput {
		header = color.New(color.Bold).Sprint(header)
	}
	cl.write(fmt.Sprintf("[%s] %s for %d %s (format: %s)\n", timestamp(), header, len(files), noun, format))
}

// LogFileStart logs that a file entered the pipeline at DEBUG level.
func (cl *ConsoleLogger) LogFileStart(filePath string) {
	cl.logWithLevel("DEBUG", "Analyzing "+filePath)
}

// LogTargets logs the targets resolved for a file at DEBUG level.
func (cl *ConsoleLogger) LogTargets(filePath string, targets []string) {
	cl.logWithLevel("DEBUG", fmt.Sprintf("%s: %d test target(s): %s", filePath, len(targets), strings.Join(targets, ", ")))
}

// LogFileResult logs the outcome of one file at INFO level.
// Format: "[HH:MM:SS] <path>: <outcome> (<duration>)"
func (cl *ConsoleLogger) LogFileResult(report models.CoverageReport, duration time.Duration) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}
	outcome := describeOutcome(report, cl.colorOutput)
	cl.write(fmt.Sprintf("[%s] %s: %s (%s)\n", timestamp(), report.FilePath(), outcome, formatDuration(duration)))
}

// LogProgress logs a progress bar of processed files at INFO level.
// Format: "[HH:MM:SS] Progress: [=====     ] 2/4 (50%)"
func (cl *ConsoleLogger) LogProgress(completed, total int) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}
	pb := NewProgressBar(total, 10, cl.colorOutput)
	pb.Update(completed)
	cl.write(fmt.Sprintf("[%s] Progress: %s\n", timestamp(), pb.Render()))
}

// LogSummary logs the run summary at INFO level.
func (cl *ConsoleLogger) LogSummary(result models.RunResult) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	ts := timestamp()
	counts := result.Counts()
	scheme := newColorScheme(cl.colorOutput)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s\n", ts, scheme.header.Sprint("=== Coverage Summary ==="))
	fmt.Fprintf(&sb, "[%s] Files: %d\n", ts, len(result.Reports))
	fmt.Fprintf(&sb, "[%s] %s\n", ts, scheme.success.Sprintf("Measured: %d", counts.Measured))
	if counts.Failed > 0 {
		fmt.Fprintf(&sb, "[%s] %s\n", ts, scheme.fail.Sprintf("Failed: %d", counts.Failed))
	} else {
		fmt.Fprintf(&sb, "[%s] Failed: 0\n", ts)
	}
	fmt.Fprintf(&sb, "[%s] Exempted: %d\n", ts, counts.Exempted)
	fmt.Fprintf(&sb, "[%s] Duration: %s\n", ts, formatDuration(result.Duration))
	if result.Check != "" {
		fmt.Fprintf(&sb, "[%s] Verdict: %s\n", ts, scheme.verdict(result.Check))
	}

	if counts.Failed > 0 {
		fmt.Fprintf(&sb, "[%s] %s\n", ts, scheme.fail.Sprint("Failed files:"))
		for _, report := range result.Reports {
			if f, ok := report.Failure(); ok {
				fmt.Fprintf(&sb, "[%s]   - %s: %s\n", ts, f.FilePath, f.Message)
			}
		}
	}
	cl.write(sb.String())
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		minutes := (d % time.Hour) / time.Minute
		seconds := (d % time.Minute) / time.Second
		switch {
		case minutes == 0 && seconds == 0:
			return fmt.Sprintf("%dh", hours)
		case seconds == 0:
			return fmt.Sprintf("%dh%dm", hours, minutes)
		default:
			return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
		}
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogRunStart(files []string, format models.ReportFormat)             {}
func (n *NoOpLogger) LogFileStart(filePath string)                                       {}
func (n *NoOpLogger) LogTargets(filePath string, targets []string)                       {}
func (n *NoOpLogger) LogFileResult(report models.CoverageReport, duration time.Duration) {}
func (n *NoOpLogger) LogProgress(completed, total int)                                   {}
func (n *NoOpLogger) LogSummary(result models.RunResult)                                 {}
func (n *NoOpLogger) LogWarn(message string)                                             {}
