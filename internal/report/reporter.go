// Package report renders a run's coverage reports into one Markdown or HTML
// document and decides the PASS/FAIL verdict.
package report

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/harrison/covrun/internal/filelock"
	"github.com/harrison/covrun/internal/models"
	"github.com/harrison/covrun/internal/reportio"
)

// DefaultMinCoveragePercent is the required coverage when none is configured.
const DefaultMinCoveragePercent = 70

// Thresholds supplies per-file overrides of the minimum coverage.
type Thresholds interface {
	MinCoverageOverride(path string) (int, bool)
}

// Reporter writes the consolidated report for a repository.
type Reporter struct {
	root       string
	minPercent int
	thresholds Thresholds
	markdown   goldmark.Markdown
}

// NewReporter creates a Reporter writing under <root>/coverage_reports.
// thresholds may be nil.
func NewReporter(root string, minPercent int, thresholds Thresholds) *Reporter {
	if minPercent <= 0 {
		minPercent = DefaultMinCoveragePercent
	}
	return &Reporter{
		root:       root,
		minPercent: minPercent,
		thresholds: thresholds,
		markdown:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// OutputPath returns the consolidated report location for format.
func OutputPath(root string, format models.ReportFormat) string {
	name := "CoverageReport.html"
	if format == models.FormatMarkdown {
		name = "CoverageReport.md"
	}
	return filepath.Join(root, reportio.ReportsDir, name)
}

// Render writes the report for container in format and returns the verdict.
func (r *Reporter) Render(ctx context.Context, container models.CoverageReportContainer, format models.ReportFormat) (models.CoverageCheck, error) {
	if !format.Consolidated() {
		return "", fmt.Errorf("format %s does not produce a consolidated report", format)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	md := r.Markdown(container)
	out := []byte(md)
	if format == models.FormatHTML {
		page, err := r.HTML(md)
		if err != nil {
			return "", err
		}
		out = page
	}

	if err := filelock.WriteFile(OutputPath(r.root, format), out); err != nil {
		return "", fmt.Errorf("failed to write coverage report: %w", err)
	}
	return r.Check(container), nil
}

// Required returns the minimum coverage percent for filePath.
func (r *Reporter) Required(filePath string) int {
	if r.thresholds != nil {
		if override, ok := r.thresholds.MinCoverageOverride(filePath); ok {
			return override
		}
	}
	return r.minPercent
}

// Check returns FAIL if any file failed or any measured file is below its
// required minimum. Exempted files never fail the check.
func (r *Reporter) Check(container models.CoverageReportContainer) models.CoverageCheck {
	for _, report := range container.Reports {
		if !r.Passes(report) {
			return models.CheckFail
		}
	}
	return models.CheckPass
}

// Passes reports whether one file meets its requirement.
func (r *Reporter) Passes(report models.CoverageReport) bool {
	switch report.Kind() {
	case models.KindDetails:
		d, _ := report.Details()
		return d.CoveragePercent() >= r.Required(d.FilePath)
	case models.KindExemption:
		return true
	default:
		return false
	}
}

// Markdown renders the summary table followed by failures and exemptions.
func (r *Reporter) Markdown(container models.CoverageReportContainer) string {
	var measured []models.CoverageDetails
	var failures []models.CoverageFailure
	var exemptions []models.CoverageExemption
	for _, report := range container.Reports {
		switch report.Kind() {
		case models.KindDetails:
			d, _ := report.Details()
			measured = append(measured, d)
		case models.KindFailure:
			f, _ := report.Failure()
			failures = append(failures, f)
		case models.KindExemption:
			e, _ := report.Exemption()
			exemptions = append(exemptions, e)
		}
	}

	var sb strings.Builder
	check := r.Check(container)
	sb.WriteString("## Coverage Report\n\n")
	fmt.Fprintf(&sb, "- Number of files assessed: %d\n", len(container.Reports))
	fmt.Fprintf(&sb, "- Overall Coverage: **%s**\n", check)
	fmt.Fprintf(&sb, "- Minimum coverage required: %d%%\n\n", r.minPercent)

	if len(measured) > 0 {
		sb.WriteString("### Measured files\n\n")
		sb.WriteString("| File | Coverage | Lines Hit | Status | Required Coverage |\n")
		sb.WriteString("|------|---------:|----------:|:------:|------------------:|\n")
		for _, d := range measured {
			required := r.Required(d.FilePath)
			status := ":white_check_mark:"
			if d.CoveragePercent() < required {
				status = ":x:"
			}
			fmt.Fprintf(&sb, "| %s | %d%% | %d / %d | %s | %d%% |\n",
				fileCell(d.FilePath), d.CoveragePercent(), d.LinesHit, d.LinesFound, status, required)
		}
		sb.WriteString("\n")

		for _, d := range measured {
			if uncovered := UncoveredRanges(d); uncovered != "" {
				fmt.Fprintf(&sb, "- `%s` uncovered lines: %s\n", d.FilePath, uncovered)
			}
		}
		sb.WriteString("\n")
	}

	if len(failures) > 0 {
		sb.WriteString("### Failure Cases\n\n")
		sb.WriteString("| File | Failure Reason | Test Target |\n")
		sb.WriteString("|------|----------------|-------------|\n")
		for _, f := range failures {
			target := f.TestTarget
			if target == "" {
				target = "-"
			}
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", fileCell(f.FilePath), escapeCell(f.Message), escapeCell(target))
		}
		sb.WriteString("\n")
	}

	if len(exemptions) > 0 {
		sb.WriteString("### Exempted coverage\n\n")
		for _, e := range exemptions {
			fmt.Fprintf(&sb, "- `%s`: %s\n", e.FilePath, e.Reason)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// HTML converts the Markdown report into a standalone page.
func (r *Reporter) HTML(markdown string) ([]byte, error) {
	var body bytes.Buffer
	if err := r.markdown.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("failed to render HTML report: %w", err)
	}

	var page bytes.Buffer
	page.WriteString(htmlHeader)
	page.Write(body.Bytes())
	page.WriteString(htmlFooter)
	return page.Bytes(), nil
}

// UncoveredRanges lists the NONE lines of d as compact ranges, e.g. "3, 7-9".
func UncoveredRanges(d models.CoverageDetails) string {
	var parts []string
	start, prev := -1, -1
	emit := func() {
		if start < 0 {
			return
		}
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, strconv.Itoa(start)+"-"+strconv.Itoa(prev))
		}
	}
	for _, line := range d.CoveredLines {
		if line.Coverage != models.CoverageNone {
			continue
		}
		if start >= 0 && line.LineNumber == prev+1 {
			prev = line.LineNumber
			continue
		}
		emit()
		start, prev = line.LineNumber, line.LineNumber
	}
	emit()
	return strings.Join(parts, ", ")
}

// fileCell links the base name to the repository path.
func fileCell(path string) string {
	return "[" + filepath.Base(path) + "](" + path + ")"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

const htmlHeader = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Coverage Report</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; margin: 2em; color: #24292f; }
table { border-collapse: collapse; margin-bottom: 1em; }
th, td { border: 1px solid #d0d7de; padding: 6px 13px; }
th { background: #f6f8fa; }
code { background: #f6f8fa; padding: 0.2em 0.4em; border-radius: 4px; }
</style>
</head>
<body>
`

const htmlFooter = `</body>
</html>
`
