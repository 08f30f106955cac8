package reportio

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harrison/covrun/internal/filelock"
	"github.com/harrison/covrun/internal/models"
)

// Layout under the repository root.
const (
	ReportsDir     = "coverage_reports"
	ReportFileName = "coverage_report.pb"
)

// ReportPath returns where the report for filePath is persisted:
// <root>/coverage_reports/<path-without-extension>/coverage_report.pb.
func ReportPath(root, filePath string) string {
	rel := filepath.ToSlash(filePath)
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	return filepath.Join(root, ReportsDir, filepath.FromSlash(rel), ReportFileName)
}

// Writer persists reports beneath a repository root.
type Writer struct {
	root string
}

// NewWriter creates a Writer for root.
func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// WriteReport encodes the report produced for filePath and writes it to
// ReportPath(root, filePath).
func (w *Writer) WriteReport(filePath string, report models.CoverageReport) error {
	data, err := MarshalReport(report)
	if err != nil {
		return err
	}
	target := ReportPath(w.root, filePath)
	if err := filelock.WriteFile(target, data); err != nil {
		return fmt.Errorf("failed to persist coverage report for %s: %w", filePath, err)
	}
	return nil
}

// ReadReport decodes the artifact at path.
func ReadReport(path string) (models.CoverageReport, error) {
	data, err := filelock.ReadFile(path)
	if err != nil {
		return models.CoverageReport{}, fmt.Errorf("failed to read coverage report: %w", err)
	}
	report, err := UnmarshalReport(data)
	if err != nil {
		return models.CoverageReport{}, fmt.Errorf("%s: %w", path, err)
	}
	return report, nil
}

// FindReports returns every persisted artifact under <root>/coverage_reports,
// sorted by path. A missing directory yields no reports.
func FindReports(root string) ([]string, error) {
	dir := filepath.Join(root, ReportsDir)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var found []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == ReportFileName {
			found = append(found, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(found)
	return found, nil
}

// LoadAll reads every artifact FindReports returns, in path order.
func LoadAll(root string) ([]models.CoverageReport, error) {
	paths, err := FindReports(root)
	if err != nil {
		return nil, err
	}
	reports := make([]models.CoverageReport, 0, len(paths))
	for _, p := range paths {
		report, err := ReadReport(p)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
