// Package coverage merges the per-target coverage reports of one source file
// into a single report.
package coverage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harrison/covrun/internal/models"
)

// ErrInconsistentCoverage means targets disagreed on the identity of the
// measured file. It aborts the whole run.
var ErrInconsistentCoverage = errors.New("inconsistent coverage data")

// InconsistencyError lists the (path, hash) groups found for one file.
type InconsistencyError struct {
	FilePath string
	Groups   []string // "path@sha1" per distinct group, first-seen order
}

// Error implements the error interface.
func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("expected all coverage reports for %s to share one file path and SHA-1 hash, found %d groups: %s",
		e.FilePath, len(e.Groups), strings.Join(e.Groups, ", "))
}

// Unwrap returns ErrInconsistentCoverage.
func (e *InconsistencyError) Unwrap() error {
	return ErrInconsistentCoverage
}

// IsInconsistencyError checks if the error is or wraps an InconsistencyError.
func IsInconsistencyError(err error) bool {
	var ie *InconsistencyError
	return errors.As(err, &ie)
}

type groupKey struct {
	path string
	hash string
}

// Aggregate folds the reports produced for filePath by each of its targets.
//
// The first failure, in input order, is returned unchanged. Otherwise all
// details must name the same file and hash; their lines are merged with FULL
// winning over NONE and the counts recomputed. Empty input or an exemption
// among the inputs is a programming error.
func Aggregate(filePath string, perTarget []models.CoverageReport) (models.CoverageReport, error) {
	if len(perTarget) == 0 {
		return models.CoverageReport{}, fmt.Errorf("no coverage reports to aggregate for %s", filePath)
	}

	var details []models.CoverageDetails
	for i, report := range perTarget {
		switch report.Kind() {
		case models.KindFailure:
			return report, nil
		case models.KindDetails:
			d, _ := report.Details()
			details = append(details, d)
		case models.KindExemption:
			return models.CoverageReport{}, fmt.Errorf("exempted file %s reached aggregation", filePath)
		default:
			return models.CoverageReport{}, fmt.Errorf("invalid coverage report %d for %s", i, filePath)
		}
	}

	var groups []groupKey
	seenGroups := make(map[groupKey]bool)
	for _, d := range details {
		key := groupKey{path: d.FilePath, hash: d.FileSHA1Hash}
		if !seenGroups[key] {
			seenGroups[key] = true
			groups = append(groups, key)
		}
	}
	if len(groups) > 1 {
		names := make([]string, len(groups))
		for i, g := range groups {
			names[i] = g.path + "@" + g.hash
		}
		return models.CoverageReport{}, &InconsistencyError{FilePath: filePath, Groups: names}
	}

	return models.NewDetailsReport(Merge(details)), nil
}

// Merge combines details of the same file. Callers guarantee a non-empty
// slice sharing one path and hash.
func Merge(details []models.CoverageDetails) models.CoverageDetails {
	states := make(map[int]models.CoverageState)
	var targets []string
	seenTargets := make(map[string]bool)

	for _, d := range details {
		for _, target := range d.TestTargets {
			if !seenTargets[target] {
				seenTargets[target] = true
				targets = append(targets, target)
			}
		}
		for _, line := range d.CoveredLines {
			if states[line.LineNumber] != models.CoverageFull {
				states[line.LineNumber] = line.Coverage
			}
		}
	}

	lines := make([]models.CoveredLine, 0, len(states))
	hit := 0
	for number, state := range states {
		lines = append(lines, models.CoveredLine{LineNumber: number, Coverage: state})
		if state == models.CoverageFull {
			hit++
		}
	}
	models.SortLines(lines)

	return models.CoverageDetails{
		FilePath:     details[0].FilePath,
		FileSHA1Hash: details[0].FileSHA1Hash,
		TestTargets:  targets,
		CoveredLines: lines,
		LinesFound:   len(lines),
		LinesHit:     hit,
	}
}
