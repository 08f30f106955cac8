package models

import (
	"fmt"
	"sort"
)

// CoverageState is the per-line coverage indicator.
type CoverageState string

// Coverage state constants. FULL dominates NONE when merging.
const (
	CoverageFull CoverageState = "FULL" // Line executed by at least one test
	CoverageNone CoverageState = "NONE" // Line instrumented but never executed
)

// Valid reports whether the state is one of the known constants.
func (s CoverageState) Valid() bool {
	return s == CoverageFull || s == CoverageNone
}

// CoveredLine is one instrumented line and its state.
type CoveredLine struct {
	LineNumber int           // 1-based line number in the source file
	Coverage   CoverageState // FULL or NONE
}

// CoverageDetails is a successful coverage measurement for one source file.
type CoverageDetails struct {
	FilePath     string        // Repository-relative source path
	FileSHA1Hash string        // Content digest of the measured file
	TestTargets  []string      // Targets that contributed, first-seen order
	CoveredLines []CoveredLine // Sorted by LineNumber, one entry per line
	LinesFound   int           // Distinct instrumented lines
	LinesHit     int           // Lines whose state is FULL
}

// LineMap returns the covered lines keyed by line number.
func (d CoverageDetails) LineMap() map[int]CoverageState {
	lines := make(map[int]CoverageState, len(d.CoveredLines))
	for _, line := range d.CoveredLines {
		lines[line.LineNumber] = line.Coverage
	}
	return lines
}

// CoveragePercent returns LinesHit as a whole percentage of LinesFound.
// A file with no instrumented lines reports 0.
func (d CoverageDetails) CoveragePercent() int {
	if d.LinesFound == 0 {
		return 0
	}
	return d.LinesHit * 100 / d.LinesFound
}

// Validate checks the counting invariants of the details.
func (d CoverageDetails) Validate() error {
	if d.FilePath == "" {
		return fmt.Errorf("coverage details missing file path")
	}
	seen := make(map[int]bool, len(d.CoveredLines))
	hit := 0
	for _, line := range d.CoveredLines {
		if seen[line.LineNumber] {
			return fmt.Errorf("%s: duplicate covered line %d", d.FilePath, line.LineNumber)
		}
		if !line.Coverage.Valid() {
			return fmt.Errorf("%s: line %d has invalid coverage state %q", d.FilePath, line.LineNumber, line.Coverage)
		}
		seen[line.LineNumber] = true
		if line.Coverage == CoverageFull {
			hit++
		}
	}
	if d.LinesFound != len(seen) {
		return fmt.Errorf("%s: lines found %d does not match %d distinct lines", d.FilePath, d.LinesFound, len(seen))
	}
	if d.LinesHit != hit || d.LinesHit > d.LinesFound {
		return fmt.Errorf("%s: lines hit %d inconsistent with %d full lines of %d", d.FilePath, d.LinesHit, hit, d.LinesFound)
	}
	return nil
}

// SortLines orders covered lines by line number.
func SortLines(lines []CoveredLine) {
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].LineNumber < lines[j].LineNumber
	})
}

// CoverageFailure records why a file could not be measured.
type CoverageFailure struct {
	FilePath   string // Source file under analysis
	TestTarget string // Failing target, empty when the failure precedes retrieval
	Message    string // Human-readable cause
}

// ExemptionReason names why a file skips the coverage check.
type ExemptionReason int

const (
	// ExemptionTestNotRequired marks files that need no test file.
	ExemptionTestNotRequired ExemptionReason = iota + 1
	// ExemptionIncompatible marks files the coverage tooling cannot instrument.
	ExemptionIncompatible
)

// String returns the short reason used in reports and logs.
func (r ExemptionReason) String() string {
	switch r {
	case ExemptionTestNotRequired:
		return "no test file required"
	case ExemptionIncompatible:
		return "incompatible with coverage tooling"
	default:
		return "unknown"
	}
}

// Message returns the long-form explanation shown to developers.
func (r ExemptionReason) Message() string {
	switch r {
	case ExemptionTestNotRequired:
		return "This file is exempted from having a test file; skipping coverage check."
	case ExemptionIncompatible:
		return "This file is incompatible with code coverage tooling; skipping coverage check."
	default:
		return "This file is exempted from the coverage check."
	}
}

// ParseExemptionReason maps either the short or long form back to a reason.
func ParseExemptionReason(s string) (ExemptionReason, error) {
	for _, r := range []ExemptionReason{ExemptionTestNotRequired, ExemptionIncompatible} {
		if s == r.String() || s == r.Message() {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown exemption reason %q", s)
}

// CoverageExemption records a file deliberately skipped.
type CoverageExemption struct {
	FilePath string
	Reason   ExemptionReason
}

// ReportKind identifies which variant a CoverageReport carries.
type ReportKind int

const (
	// KindInvalid is the zero report, or one carrying more than one variant.
	KindInvalid ReportKind = iota
	KindDetails
	KindFailure
	KindExemption
)

// String returns the lowercase variant name.
func (k ReportKind) String() string {
	switch k {
	case KindDetails:
		return "measured"
	case KindFailure:
		return "failed"
	case KindExemption:
		return "exempted"
	default:
		return "invalid"
	}
}

// CoverageReport is the outcome for one file: exactly one of details, failure
// or exemption. Build values with NewDetailsReport, NewFailureReport or
// NewExemptionReport; the zero value is invalid.
type CoverageReport struct {
	details   *CoverageDetails
	failure   *CoverageFailure
	exemption *CoverageExemption
}

// NewDetailsReport wraps a successful measurement.
func NewDetailsReport(d CoverageDetails) CoverageReport {
	return CoverageReport{details: &d}
}

// NewFailureReport wraps a failed measurement.
func NewFailureReport(f CoverageFailure) CoverageReport {
	return CoverageReport{failure: &f}
}

// NewExemptionReport wraps an exemption.
func NewExemptionReport(e CoverageExemption) CoverageReport {
	return CoverageReport{exemption: &e}
}

// Kind returns the populated variant, or KindInvalid.
func (r CoverageReport) Kind() ReportKind {
	set := 0
	kind := KindInvalid
	if r.details != nil {
		set++
		kind = KindDetails
	}
	if r.failure != nil {
		set++
		kind = KindFailure
	}
	if r.exemption != nil {
		set++
		kind = KindExemption
	}
	if set != 1 {
		return KindInvalid
	}
	return kind
}

// Validate returns an error unless exactly one variant is populated and,
// for details, the counting invariants hold.
func (r CoverageReport) Validate() error {
	switch r.Kind() {
	case KindDetails:
		return r.details.Validate()
	case KindFailure, KindExemption:
		return nil
	default:
		return fmt.Errorf("coverage report must carry exactly one of details, failure or exemption")
	}
}

// Details returns the measurement if this is a details report.
func (r CoverageReport) Details() (CoverageDetails, bool) {
	if r.Kind() != KindDetails {
		return CoverageDetails{}, false
	}
	return *r.details, true
}

// Failure returns the failure if this is a failure report.
func (r CoverageReport) Failure() (CoverageFailure, bool) {
	if r.Kind() != KindFailure {
		return CoverageFailure{}, false
	}
	return *r.failure, true
}

// Exemption returns the exemption if this is an exemption report.
func (r CoverageReport) Exemption() (CoverageExemption, bool) {
	if r.Kind() != KindExemption {
		return CoverageExemption{}, false
	}
	return *r.exemption, true
}

// FilePath returns the source path of whichever variant is set.
func (r CoverageReport) FilePath() string {
	switch r.Kind() {
	case KindDetails:
		return r.details.FilePath
	case KindFailure:
		return r.failure.FilePath
	case KindExemption:
		return r.exemption.FilePath
	default:
		return ""
	}
}

// CoverageReportContainer holds one report per requested file, in input order.
type CoverageReportContainer struct {
	Reports []CoverageReport
}
