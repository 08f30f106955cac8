package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/covrun/internal/exemption"
	"github.com/harrison/covrun/internal/models"
)

func measured(path string, hit, found int) models.CoverageReport {
	d := models.CoverageDetails{FilePath: path, FileSHA1Hash: "abc", TestTargets: []string{"//t:T"}}
	for i := 1; i <= found; i++ {
		state := models.CoverageNone
		if i <= hit {
			state = models.CoverageFull
		}
		d.CoveredLines = append(d.CoveredLines, models.CoveredLine{LineNumber: i, Coverage: state})
	}
	d.LinesFound = found
	d.LinesHit = hit
	return models.NewDetailsReport(d)
}

func container(reports ...models.CoverageReport) models.CoverageReportContainer {
	return models.CoverageReportContainer{Reports: reports}
}

func TestCheck(t *testing.T) {
	const lowFile = "app/src/main/java/Low.kt"
	overrides := exemption.NewTable([]models.TestFileExemption{
		{ExemptedFilePath: lowFile, OverrideMinCoveragePercentRequired: 40},
	})

	tests := []struct {
		name      string
		reporter  *Reporter
		container models.CoverageReportContainer
		want      models.CoverageCheck
	}{
		{
			name:      "all above minimum",
			reporter:  NewReporter("", 70, nil),
			container: container(measured("a/src/main/A.kt", 8, 10), measured("a/src/main/B.kt", 7, 10)),
			want:      models.CheckPass,
		},
		{
			name:      "below minimum",
			reporter:  NewReporter("", 70, nil),
			container: container(measured("a/src/main/A.kt", 6, 10)),
			want:      models.CheckFail,
		},
		{
			name:      "per-file override lowers minimum",
			reporter:  NewReporter("", 70, overrides),
			container: container(measured(lowFile, 5, 10)),
			want:      models.CheckPass,
		},
		{
			name:     "failure fails the run",
			reporter: NewReporter("", 70, nil),
			container: container(
				measured("a/src/main/A.kt", 10, 10),
				models.NewFailureReport(models.CoverageFailure{FilePath: "a/src/main/B.kt", Message: "boom"}),
			),
			want: models.CheckFail,
		},
		{
			name:     "exemptions never fail",
			reporter: NewReporter("", 70, nil),
			container: container(
				models.NewExemptionReport(models.CoverageExemption{FilePath: "a/src/main/C.kt", Reason: models.ExemptionIncompatible}),
			),
			want: models.CheckPass,
		},
		{
			name:      "empty run passes",
			reporter:  NewReporter("", 0, nil),
			container: container(),
			want:      models.CheckPass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.reporter.Check(tt.container))
		})
	}
}

func TestMarkdown(t *testing.T) {
	r := NewReporter("", 70, nil)
	md := r.Markdown(container(
		measured("utility/src/main/java/MathModel.kt", 2, 5),
		models.NewFailureReport(models.CoverageFailure{
			FilePath:   "app/src/main/java/Home.kt",
			TestTarget: "//app:HomeTest",
			Message:    "No appropriate test file found for app/src/main/java/Home.kt.",
		}),
		models.NewExemptionReport(models.CoverageExemption{FilePath: "app/src/main/java/Constants.kt", Reason: models.ExemptionTestNotRequired}),
	))

	assert.Contains(t, md, "- Number of files assessed: 3")
	assert.Contains(t, md, "- Overall Coverage: **FAIL**")
	assert.Contains(t, md, "| [MathModel.kt](utility/src/main/java/MathModel.kt) | 40% | 2 / 5 | :x: | 70% |")
	assert.Contains(t, md, "- `utility/src/main/java/MathModel.kt` uncovered lines: 3-5")
	assert.Contains(t, md, "No appropriate test file found for app/src/main/java/Home.kt. | //app:HomeTest |")
	assert.Contains(t, md, "- `app/src/main/java/Constants.kt`: no test file required")
}

func TestUncoveredRanges(t *testing.T) {
	d := models.CoverageDetails{CoveredLines: []models.CoveredLine{
		{LineNumber: 1, Coverage: models.CoverageNone},
		{LineNumber: 2, Coverage: models.CoverageFull},
		{LineNumber: 3, Coverage: models.CoverageNone},
		{LineNumber: 4, Coverage: models.CoverageNone},
		{LineNumber: 5, Coverage: models.CoverageNone},
		{LineNumber: 9, Coverage: models.CoverageNone},
	}}
	assert.Equal(t, "1, 3-5, 9", UncoveredRanges(d))
	assert.Equal(t, "", UncoveredRanges(models.CoverageDetails{}))
}

func TestRenderWritesFiles(t *testing.T) {
	root := t.TempDir()
	r := NewReporter(root, 70, nil)
	c := container(measured("utility/src/main/java/MathModel.kt", 9, 10))

	check, err := r.Render(context.Background(), c, models.FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, models.CheckPass, check)
	md, err := os.ReadFile(filepath.Join(root, "coverage_reports", "CoverageReport.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "## Coverage Report"))

	check, err = r.Render(context.Background(), c, models.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, models.CheckPass, check)
	page, err := os.ReadFile(OutputPath(root, models.FormatHTML))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<!DOCTYPE html>")
	assert.Contains(t, string(page), "<table>")
	assert.Contains(t, string(page), "<h2>Coverage Report</h2>")
}

func TestRenderRejectsProto(t *testing.T) {
	_, err := NewReporter(t.TempDir(), 70, nil).Render(context.Background(), container(), models.FormatProto)
	assert.Error(t, err)
}
