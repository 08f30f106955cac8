package models

import (
	"fmt"
	"strings"
	"time"
)

// ReportFormat selects how a run's results are emitted.
type ReportFormat string

// Report format constants
const (
	FormatHTML     ReportFormat = "HTML"     // Consolidated HTML report (default)
	FormatMarkdown ReportFormat = "MARKDOWN" // Consolidated Markdown report
	FormatProto    ReportFormat = "PROTO"    // One persisted report per file, no verdict
)

// ParseReportFormat accepts HTML, MARKDOWN, MD or PROTO in any case.
// An empty string selects HTML.
func ParseReportFormat(s string) (ReportFormat, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "HTML":
		return FormatHTML, nil
	case "MARKDOWN", "MD":
		return FormatMarkdown, nil
	case "PROTO":
		return FormatProto, nil
	default:
		return "", fmt.Errorf("unsupported report format: %s", s)
	}
}

// Consolidated reports whether the format renders one combined report.
func (f ReportFormat) Consolidated() bool {
	return f == FormatHTML || f == FormatMarkdown
}

// CoverageCheck is the binary verdict of a consolidated run.
type CoverageCheck string

// Coverage check constants
const (
	CheckPass CoverageCheck = "PASS"
	CheckFail CoverageCheck = "FAIL"
)

// RunCounts tallies report variants of a run.
type RunCounts struct {
	Measured int
	Failed   int
	Exempted int
}

// RunResult is the aggregate result of one covrun invocation.
type RunResult struct {
	RunID    string           // Unique identifier of the run
	Format   ReportFormat     // Output mode used
	Reports  []CoverageReport // One per requested file, input order
	Check    CoverageCheck    // Empty in PROTO mode
	Duration time.Duration    // Wall time of the run
}

// Counts tallies the reports by variant.
func (r RunResult) Counts() RunCounts {
	var c RunCounts
	for _, report := range r.Reports {
		switch report.Kind() {
		case KindDetails:
			c.Measured++
		case KindFailure:
			c.Failed++
		case KindExemption:
			c.Exempted++
		}
	}
	return c
}
