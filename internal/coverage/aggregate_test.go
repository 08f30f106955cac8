package coverage

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/covrun/internal/models"
)

const (
	file = "utility/src/main/java/org/oppia/android/util/math/MathModel.kt"
	hash = "da39a3ee5e6b4b0d3255bfef95601890afd80709"
)

func details(target string, lines map[int]models.CoverageState) models.CoverageDetails {
	d := models.CoverageDetails{FilePath: file, FileSHA1Hash: hash, TestTargets: []string{target}}
	for n, s := range lines {
		d.CoveredLines = append(d.CoveredLines, models.CoveredLine{LineNumber: n, Coverage: s})
		if s == models.CoverageFull {
			d.LinesHit++
		}
	}
	models.SortLines(d.CoveredLines)
	d.LinesFound = len(d.CoveredLines)
	return d
}

func mustDetails(t *testing.T, r models.CoverageReport) models.CoverageDetails {
	t.Helper()
	d, ok := r.Details()
	require.True(t, ok, "expected details report, got %s", r.Kind())
	return d
}

func TestAggregateMergesFullOverNone(t *testing.T) {
	t1 := details("//a:T1", map[int]models.CoverageState{10: models.CoverageFull, 11: models.CoverageNone})
	t2 := details("//a:T2", map[int]models.CoverageState{10: models.CoverageNone, 11: models.CoverageFull})

	got, err := Aggregate(file, []models.CoverageReport{models.NewDetailsReport(t1), models.NewDetailsReport(t2)})
	require.NoError(t, err)

	want := models.CoverageDetails{
		FilePath:     file,
		FileSHA1Hash: hash,
		TestTargets:  []string{"//a:T1", "//a:T2"},
		CoveredLines: []models.CoveredLine{
			{LineNumber: 10, Coverage: models.CoverageFull},
			{LineNumber: 11, Coverage: models.CoverageFull},
		},
		LinesFound: 2,
		LinesHit:   2,
	}
	if diff := cmp.Diff(want, mustDetails(t, got)); diff != "" {
		t.Errorf("Aggregate() mismatch (-want +got):\n%s", diff)
	}
	assert.NoError(t, got.Validate())
}

func TestAggregateReturnsFirstFailure(t *testing.T) {
	ok := models.NewDetailsReport(details("//a:T1", map[int]models.CoverageState{1: models.CoverageFull}))
	first := models.NewFailureReport(models.CoverageFailure{FilePath: file, TestTarget: "//a:T2", Message: "first"})
	second := models.NewFailureReport(models.CoverageFailure{FilePath: file, TestTarget: "//a:T3", Message: "second"})

	got, err := Aggregate(file, []models.CoverageReport{ok, first, second})
	require.NoError(t, err)

	failure, isFailure := got.Failure()
	require.True(t, isFailure)
	assert.Equal(t, "first", failure.Message)
	assert.Equal(t, "//a:T2", failure.TestTarget)
}

func TestAggregateRejectsDivergentHashes(t *testing.T) {
	t1 := details("//a:T1", map[int]models.CoverageState{1: models.CoverageFull})
	t2 := details("//a:T2", map[int]models.CoverageState{1: models.CoverageFull})
	t2.FileSHA1Hash = "0000000000000000000000000000000000000000"

	got, err := Aggregate(file, []models.CoverageReport{models.NewDetailsReport(t1), models.NewDetailsReport(t2)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistentCoverage))
	assert.True(t, IsInconsistencyError(err))
	assert.Equal(t, models.KindInvalid, got.Kind())

	var ie *InconsistencyError
	require.True(t, errors.As(err, &ie))
	assert.Len(t, ie.Groups, 2)
}

func TestAggregatePreconditions(t *testing.T) {
	_, err := Aggregate(file, nil)
	assert.Error(t, err)

	exempt := models.NewExemptionReport(models.CoverageExemption{FilePath: file, Reason: models.ExemptionIncompatible})
	_, err = Aggregate(file, []models.CoverageReport{exempt})
	assert.Error(t, err)
	assert.False(t, IsInconsistencyError(err))

	_, err = Aggregate(file, []models.CoverageReport{{}})
	assert.Error(t, err)
}

func TestAggregateIsIdempotent(t *testing.T) {
	d := details("//a:T1", map[int]models.CoverageState{
		3: models.CoverageFull,
		4: models.CoverageNone,
		9: models.CoverageFull,
	})

	once, err := Aggregate(file, []models.CoverageReport{models.NewDetailsReport(d)})
	require.NoError(t, err)
	twice, err := Aggregate(file, []models.CoverageReport{models.NewDetailsReport(d), models.NewDetailsReport(d)})
	require.NoError(t, err)

	if diff := cmp.Diff(mustDetails(t, once), mustDetails(t, twice)); diff != "" {
		t.Errorf("merging a report with itself changed it (-once +twice):\n%s", diff)
	}
	if diff := cmp.Diff(d, mustDetails(t, once)); diff != "" {
		t.Errorf("single report not preserved (-in +out):\n%s", diff)
	}
}

func TestAggregateIsCommutativeAndMonotonic(t *testing.T) {
	t1 := details("//a:T1", map[int]models.CoverageState{1: models.CoverageFull, 2: models.CoverageNone, 5: models.CoverageNone})
	t2 := details("//a:T2", map[int]models.CoverageState{2: models.CoverageNone, 3: models.CoverageFull, 5: models.CoverageFull})

	ab, err := Aggregate(file, []models.CoverageReport{models.NewDetailsReport(t1), models.NewDetailsReport(t2)})
	require.NoError(t, err)
	ba, err := Aggregate(file, []models.CoverageReport{models.NewDetailsReport(t2), models.NewDetailsReport(t1)})
	require.NoError(t, err)

	merged := mustDetails(t, ab)
	reversed := mustDetails(t, ba)
	assert.Equal(t, merged.CoveredLines, reversed.CoveredLines)
	assert.Equal(t, merged.LinesFound, reversed.LinesFound)
	assert.Equal(t, merged.LinesHit, reversed.LinesHit)
	assert.Equal(t, []string{"//a:T2", "//a:T1"}, reversed.TestTargets)

	for _, in := range []models.CoverageDetails{t1, t2} {
		assert.GreaterOrEqual(t, merged.LinesHit, in.LinesHit)
		lines := merged.LineMap()
		for _, line := range in.CoveredLines {
			if line.Coverage == models.CoverageFull {
				assert.Equal(t, models.CoverageFull, lines[line.LineNumber], "line %d lost coverage", line.LineNumber)
			}
		}
	}
	assert.Equal(t, 4, merged.LinesFound)
	assert.Equal(t, 3, merged.LinesHit)
	assert.LessOrEqual(t, merged.LinesHit, merged.LinesFound)
}
