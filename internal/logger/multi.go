package logger

import (
	"time"

	"github.com/harrison/covrun/internal/models"
)

// RunLogger is the set of events a covrun run reports.
type RunLogger interface {
	LogRunStart(files []string, format models.ReportFormat)
	LogFileStart(filePath string)
	LogTargets(filePath string, targets []string)
	LogFileResult(report models.CoverageReport, duration time.Duration)
	LogProgress(completed, total int)
	LogSummary(result models.RunResult)
	LogWarn(message string)
}

// MultiLogger fans every event out to several loggers in order.
type MultiLogger struct {
	loggers []RunLogger
}

// NewMultiLogger creates a MultiLogger; nil loggers are skipped.
func NewMultiLogger(loggers ...RunLogger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) LogRunStart(files []string, format models.ReportFormat) {
	for _, l := range m.loggers {
		l.LogRunStart(files, format)
	}
}

func (m *MultiLogger) LogFileStart(filePath string) {
	for _, l := range m.loggers {
		l.LogFileStart(filePath)
	}
}

func (m *MultiLogger) LogTargets(filePath string, targets []string) {
	for _, l := range m.loggers {
		l.LogTargets(filePath, targets)
	}
}

func (m *MultiLogger) LogFileResult(report models.CoverageReport, duration time.Duration) {
	for _, l := range m.loggers {
		l.LogFileResult(report, duration)
	}
}

func (m *MultiLogger) LogProgress(completed, total int) {
	for _, l := range m.loggers {
		l.LogProgress(completed, total)
	}
}

func (m *MultiLogger) LogSummary(result models.RunResult) {
	for _, l := range m.loggers {
		l.LogSummary(result)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, l := range m.loggers {
		l.LogWarn(message)
	}
}

var (
	_ RunLogger = (*ConsoleLogger)(nil)
	_ RunLogger = (*FileLogger)(nil)
	_ RunLogger = (*NoOpLogger)(nil)
	_ RunLogger = (*MultiLogger)(nil)
)
