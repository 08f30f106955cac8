package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDetails() CoverageDetails {
	return CoverageDetails{
		FilePath:     "utility/src/main/java/org/oppia/android/util/math/MathModel.kt",
		FileSHA1Hash: "1e4f0f5f",
		TestTargets:  []string{"//utility/src/test/java/org/oppia/android/util/math:MathModelTest"},
		CoveredLines: []CoveredLine{
			{LineNumber: 3, Coverage: CoverageFull},
			{LineNumber: 7, Coverage: CoverageNone},
		},
		LinesFound: 2,
		LinesHit:   1,
	}
}

func TestCoverageReportExactlyOneVariant(t *testing.T) {
	tests := []struct {
		name   string
		report CoverageReport
		want   ReportKind
	}{
		{"details", NewDetailsReport(sampleDetails()), KindDetails},
		{"failure", NewFailureReport(CoverageFailure{FilePath: "a.kt", Message: "boom"}), KindFailure},
		{"exemption", NewExemptionReport(CoverageExemption{FilePath: "a.kt", Reason: ExemptionIncompatible}), KindExemption},
		{"zero value", CoverageReport{}, KindInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.report.Kind())
			if tt.want == KindInvalid {
				assert.Error(t, tt.report.Validate())
				assert.Empty(t, tt.report.FilePath())
				return
			}
			require.NoError(t, tt.report.Validate())
			assert.NotEmpty(t, tt.report.FilePath())
		})
	}
}

func TestCoverageReportAccessors(t *testing.T) {
	report := NewFailureReport(CoverageFailure{FilePath: "a.kt", TestTarget: "//a:ATest", Message: "boom"})

	_, ok := report.Details()
	assert.False(t, ok)
	_, ok = report.Exemption()
	assert.False(t, ok)

	failure, ok := report.Failure()
	require.True(t, ok)
	assert.Equal(t, "//a:ATest", failure.TestTarget)
}

func TestCoverageDetailsValidate(t *testing.T) {
	good := sampleDetails()
	require.NoError(t, good.Validate())

	badFound := sampleDetails()
	badFound.LinesFound = 3
	assert.Error(t, badFound.Validate())

	badHit := sampleDetails()
	badHit.LinesHit = 2
	assert.Error(t, badHit.Validate())

	dup := sampleDetails()
	dup.CoveredLines = append(dup.CoveredLines, CoveredLine{LineNumber: 3, Coverage: CoverageNone})
	dup.LinesFound = 3
	assert.Error(t, dup.Validate())

	report := NewDetailsReport(badHit)
	assert.Error(t, report.Validate(), "report validation should include details invariants")
}

func TestCoveragePercent(t *testing.T) {
	assert.Equal(t, 50, sampleDetails().CoveragePercent())
	assert.Equal(t, 0, CoverageDetails{}.CoveragePercent())
	assert.Equal(t, 66, CoverageDetails{LinesFound: 3, LinesHit: 2}.CoveragePercent())
}

func TestLineMap(t *testing.T) {
	lines := sampleDetails().LineMap()
	assert.Equal(t, map[int]CoverageState{3: CoverageFull, 7: CoverageNone}, lines)
}

func TestExemptionReason(t *testing.T) {
	assert.Equal(t, "no test file required", ExemptionTestNotRequired.String())
	assert.Equal(t, "incompatible with coverage tooling", ExemptionIncompatible.String())

	for _, r := range []ExemptionReason{ExemptionTestNotRequired, ExemptionIncompatible} {
		parsed, err := ParseExemptionReason(r.Message())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)

		parsed, err = ParseExemptionReason(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}

	_, err := ParseExemptionReason("because")
	assert.Error(t, err)
}

func TestParseReportFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    ReportFormat
		wantErr bool
	}{
		{"", FormatHTML, false},
		{"html", FormatHTML, false},
		{"MARKDOWN", FormatMarkdown, false},
		{"md", FormatMarkdown, false},
		{"Proto", FormatProto, false},
		{"pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseReportFormat(tt.in)
			if tt.wantErr {
				assert.ErrorContains(t, err, "unsupported report format")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, FormatHTML.Consolidated())
	assert.False(t, FormatProto.Consolidated())
}

func TestRunResultCounts(t *testing.T) {
	result := RunResult{Reports: []CoverageReport{
		NewDetailsReport(sampleDetails()),
		NewFailureReport(CoverageFailure{FilePath: "b.kt"}),
		NewFailureReport(CoverageFailure{FilePath: "c.kt"}),
		NewExemptionReport(CoverageExemption{FilePath: "d.kt", Reason: ExemptionTestNotRequired}),
	}}

	assert.Equal(t, RunCounts{Measured: 1, Failed: 2, Exempted: 1}, result.Counts())
}
