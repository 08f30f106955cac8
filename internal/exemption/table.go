// Package exemption loads the test-file exemption table and decides, before
// any discovery work, whether a file skips the coverage check.
package exemption

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/harrison/covrun/internal/models"
)

// Table is an immutable exemption mapping keyed by file path.
type Table struct {
	entries map[string]models.TestFileExemption
	rows    []models.TestFileExemption
}

// NewTable builds a table from rows. Later rows replace earlier ones with
// the same path.
func NewTable(rows []models.TestFileExemption) *Table {
	t := &Table{
		entries: make(map[string]models.TestFileExemption, len(rows)),
		rows:    append([]models.TestFileExemption(nil), rows...),
	}
	for _, row := range rows {
		t.entries[row.ExemptedFilePath] = row
	}
	return t
}

// Lookup returns the row for path, if any.
func (t *Table) Lookup(path string) (models.TestFileExemption, bool) {
	if t == nil {
		return models.TestFileExemption{}, false
	}
	row, ok := t.entries[path]
	return row, ok
}

// Len returns the number of distinct exempted paths.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// MinCoverageOverride returns the per-file minimum coverage, if one is set.
func (t *Table) MinCoverageOverride(path string) (int, bool) {
	row, ok := t.Lookup(path)
	if !ok || row.OverrideMinCoveragePercentRequired <= 0 {
		return 0, false
	}
	return row.OverrideMinCoveragePercentRequired, true
}

// Issue is a problem found while validating the table.
type Issue struct {
	FilePath string
	Problem  string
}

// String formats the issue for display.
func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.FilePath, i.Problem)
}

// Validate checks the table against a repository checkout. It reports
// duplicate rows, rows that set nothing, override percentages outside
// 0-100 and rows whose file no longer exists. Issues are sorted by path.
func (t *Table) Validate(root string) []Issue {
	if t == nil {
		return nil
	}

	var issues []Issue
	seen := make(map[string]int)
	for _, row := range t.rows {
		seen[row.ExemptedFilePath]++
	}

	for path, count := range seen {
		if path == "" {
			issues = append(issues, Issue{FilePath: "<empty>", Problem: "exemption without exempted_file_path"})
			continue
		}
		if count > 1 {
			issues = append(issues, Issue{FilePath: path, Problem: fmt.Sprintf("listed %d times; the last entry wins", count)})
		}

		row := t.entries[path]
		if !row.Exempts() && row.OverrideMinCoveragePercentRequired == 0 {
			issues = append(issues, Issue{FilePath: path, Problem: "entry sets no exemption and no coverage override"})
		}
		if row.OverrideMinCoveragePercentRequired < 0 || row.OverrideMinCoveragePercentRequired > 100 {
			issues = append(issues, Issue{FilePath: path, Problem: fmt.Sprintf("override_min_coverage_percent_required %d outside 0-100", row.OverrideMinCoveragePercentRequired)})
		}
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(path))); os.IsNotExist(err) {
			issues = append(issues, Issue{FilePath: path, Problem: "file does not exist"})
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].FilePath != issues[j].FilePath {
			return issues[i].FilePath < issues[j].FilePath
		}
		return issues[i].Problem < issues[j].Problem
	})
	return issues
}

// Gate classifies files as exempt using a loaded table.
type Gate struct {
	table *Table
}

// NewGate creates a Gate over table. A nil table exempts nothing.
func NewGate(table *Table) *Gate {
	return &Gate{table: table}
}

// Table returns the table the gate reads.
func (g *Gate) Table() *Table {
	return g.table
}

// Check returns the exemption for filePath, or nil when the file must be
// measured. Not-required takes precedence over incompatible.
func (g *Gate) Check(filePath string) *models.CoverageExemption {
	row, ok := g.table.Lookup(filePath)
	if !ok {
		return nil
	}
	switch {
	case row.TestFileNotRequired:
		return &models.CoverageExemption{FilePath: filePath, Reason: models.ExemptionTestNotRequired}
	case row.SourceFileIsIncompatibleWithCodeCoverage:
		return &models.CoverageExemption{FilePath: filePath, Reason: models.ExemptionIncompatible}
	default:
		return nil
	}
}
