package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/covrun/internal/models"
)

// FileLogger logs run events to files in the configured log directory.
// It creates a timestamped per-run log, one detail log per analyzed file,
// and maintains a latest.log symlink pointing to the most recent run.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	filesDir string
	logLevel string
	mu       sync.Mutex
}

// NewFileLoggerWithDirAndLevel creates a FileLogger writing under logDir.
// It creates the directory if needed, opens run-YYYYMMDD-HHMMSS.log and
// points latest.log at it.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	filesDir := filepath.Join(logDir, "files")
	if err := os.MkdirAll(filesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		filesDir: filesDir,
		logLevel: normalizeLogLevel(logLevel),
	}

	fl.writeRunLog("=== covrun Run Log ===\n")
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return fl, nil
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) { fl.logWithLevel("INFO", message) }

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) { fl.logWithLevel("WARN", message) }

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", message) }

// LogRunStart records the requested files and format.
func (fl *FileLogger) LogRunStart(files []string, format models.ReportFormat) {
	if !fl.shouldLog("info") {
		return
	}
	ts := timestamp()
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] Running coverage for %d file(s) (format: %s)\n", ts, len(files), format)
	for _, f := range files {
		fmt.Fprintf(&sb, "[%s]   - %s\n", ts, f)
	}
	fl.writeRunLog(sb.String())
}

// LogFileStart records that a file entered the pipeline.
func (fl *FileLogger) LogFileStart(filePath string) {
	fl.logWithLevel("DEBUG", "Analyzing "+filePath)
}

// LogTargets records the targets resolved for a file.
func (fl *FileLogger) LogTargets(filePath string, targets []string) {
	fl.logWithLevel("DEBUG", fmt.Sprintf("%s: test targets [%s]", filePath, strings.Join(targets, ", ")))
}

// LogFileResult writes a summary line to the run log and a detail log for the
// file under files/.
func (fl *FileLogger) LogFileResult(report models.CoverageReport, duration time.Duration) {
	if fl.shouldLog("info") {
		fl.writeRunLog(fmt.Sprintf("[%s] %s: %s (%.1fs)\n", timestamp(), report.FilePath(), describeOutcome(report, false), duration.Seconds()))
	}
	if err := fl.writeFileLog(report, duration); err != nil {
		fl.logWithLevel("WARN", err.Error())
	}
}

// writeFileLog writes files/<path with slashes replaced>.log.
func (fl *FileLogger) writeFileLog(report models.CoverageReport, duration time.Duration) error {
	name := strings.ReplaceAll(filepath.ToSlash(report.FilePath()), "/", "_") + ".log"

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %s ===\n", report.FilePath())
	fmt.Fprintf(&sb, "Outcome: %s\n", report.Kind())
	fmt.Fprintf(&sb, "Duration: %.1fs\n\n", duration.Seconds())

	switch report.Kind() {
	case models.KindDetails:
		d, _ := report.Details()
		fmt.Fprintf(&sb, "SHA-1: %s\n", d.FileSHA1Hash)
		fmt.Fprintf(&sb, "Coverage: %d%% (%d/%d lines)\n", d.CoveragePercent(), d.LinesHit, d.LinesFound)
		sb.WriteString("Test targets:\n")
		for _, target := range d.TestTargets {
			fmt.Fprintf(&sb, "  - %s\n", target)
		}
		sb.WriteString("\nLines:\n")
		for _, line := range d.CoveredLines {
			fmt.Fprintf(&sb, "  %5d %s\n", line.LineNumber, line.Coverage)
		}
	case models.KindFailure:
		f, _ := report.Failure()
		if f.TestTarget != "" {
			fmt.Fprintf(&sb, "Test target: %s\n", f.TestTarget)
		}
		fmt.Fprintf(&sb, "Failure:\n%s\n", f.Message)
	case models.KindExemption:
		e, _ := report.Exemption()
		fmt.Fprintf(&sb, "%s\n", e.Reason.Message())
	}
	fmt.Fprintf(&sb, "\nCompleted at: %s\n", time.Now().Format(time.RFC3339))

	if err := os.WriteFile(filepath.Join(fl.filesDir, name), []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write file log for %s: %w", report.FilePath(), err)
	}
	return nil
}

// LogProgress is a no-op; progress bars are console-only.
func (fl *FileLogger) LogProgress(completed, total int) {}

// LogSummary logs the run summary with final statistics at INFO level.
func (fl *FileLogger) LogSummary(result models.RunResult) {
	if !fl.shouldLog("info") {
		return
	}

	ts := timestamp()
	counts := result.Counts()
	verdict := string(result.Check)
	if verdict == "" {
		verdict = "n/a (" + string(result.Format) + ")"
	}

	message := fmt.Sprintf(
		"\n[%s] === COVERAGE SUMMARY ===\n"+
			"[%s] Run ID:       %s\n"+
			"[%s] Files:        %d\n"+
			"[%s] Measured:     %d\n"+
			"[%s] Failed:       %d\n"+
			"[%s] Exempted:     %d\n"+
			"[%s] Total time:   %.1fs\n"+
			"[%s] Verdict:      %s\n"+
			"[%s] Completed at: %s\n",
		ts,
		ts, result.RunID,
		ts, len(result.Reports),
		ts, counts.Measured,
		ts, counts.Failed,
		ts, counts.Exempted,
		ts, result.Duration.Seconds(),
		ts, verdict,
		ts, time.Now().Format(time.RFC3339),
	)
	fl.writeRunLog(message)
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}
	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
