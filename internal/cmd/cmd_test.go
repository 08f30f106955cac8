package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/covrun/internal/config"
	"github.com/harrison/covrun/internal/executor"
	"github.com/harrison/covrun/internal/models"
	"github.com/harrison/covrun/internal/reportio"
)

const (
	mathSource = "utility/src/main/java/org/x/MathModel.kt"
	mathTest   = "utility/src/test/java/org/x/MathModelTest.kt"
)

// fakeBazel answers "query" with one test target and "coverage" by writing
// an LCOV file where one of two lines is hit.
const fakeBazel = `#!/bin/sh
case "$1" in
query)
  echo "Loading: 0 packages loaded"
  echo "//utility/src/test/java/org/x:MathModelTest"
  ;;
coverage)
  d=bazel-testlogs/utility/src/test/java/org/x/MathModelTest
  mkdir -p "$d"
  printf 'SF:utility/src/main/java/org/x/MathModel.kt\nDA:1,1\nDA:2,0\nend_of_record\n' > "$d/coverage.dat"
  ;;
esac
`

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// setupRepo creates a repository with one source file, its test and a
// config pointing at the fake bazel script.
func setupRepo(t *testing.T, extraConfig string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake bazel is a shell script")
	}
	t.Setenv(config.HomeEnv, "")

	root := t.TempDir()
	writeFile(t, root, mathSource, "package org.x\n\nclass MathModel\n")
	writeFile(t, root, mathTest, "package org.x\n\nclass MathModelTest\n")

	bazelPath := filepath.Join(t.TempDir(), "bazel")
	require.NoError(t, os.WriteFile(bazelPath, []byte(fakeBazel), 0755))

	writeFile(t, root, ".covrun/config.yaml", "bazel_binary: "+bazelPath+"\n"+extraConfig)
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNormalizeFlagName(t *testing.T) {
	tests := map[string]string{
		"format":          "format",
		"processTimeout":  "process-timeout",
		"process-timeout": "process-timeout",
		"maxConcurrency":  "max-concurrency",
		"max_concurrency": "max-concurrency",
		"logDir":          "log-dir",
	}
	for in, want := range tests {
		assert.Equal(t, want, string(normalizeFlagName(nil, in)), in)
	}
}

func TestSplitArgs(t *testing.T) {
	got := splitArgs([]string{"[a/A.kt,", "b/B.kt,c/C.kt]", " ", "[]", "d/D.kt"})
	assert.Equal(t, []string{"a/A.kt", "b/B.kt", "c/C.kt", "d/D.kt"}, got)
}

func TestNormalizeInputs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, mathSource, "")
	writeFile(t, root, mathTest, "")
	writeFile(t, root, "app/src/main/java/Home.kt", "")
	writeFile(t, root, "docs/README.md", "")
	writeFile(t, root, "app/src/test/java/OrphanTest.kt", "")

	isSource := func(p string) bool { return strings.HasSuffix(p, ".kt") }

	t.Run("maps tests, skips non-sources and dedupes", func(t *testing.T) {
		var warnings []string
		files, err := NormalizeInputs(root, []string{
			"[" + mathSource + ",",
			mathTest + "]",
			"docs/README.md",
			filepath.Join(root, "app/src/main/java/Home.kt"),
		}, isSource, func(m string) { warnings = append(warnings, m) })

		require.NoError(t, err)
		assert.Equal(t, []string{mathSource, "app/src/main/java/Home.kt"}, files)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "docs/README.md")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NormalizeInputs(root, []string{"app/src/main/java/Gone.kt"}, isSource, nil)
		require.Error(t, err)
		assert.True(t, executor.IsInputError(err))
		assert.Contains(t, err.Error(), "file does not exist")
	})

	t.Run("test file without source", func(t *testing.T) {
		_, err := NormalizeInputs(root, []string{"app/src/test/java/OrphanTest.kt"}, isSource, nil)
		require.Error(t, err)
		assert.True(t, executor.IsInputError(err))
		assert.Contains(t, err.Error(), "no source file found")
	})

	t.Run("outside repository", func(t *testing.T) {
		_, err := NormalizeInputs(root, []string{filepath.Join(filepath.Dir(root), "Other.kt")}, isSource, nil)
		assert.True(t, executor.IsInputError(err))
	})

	t.Run("relative path escaping repository", func(t *testing.T) {
		outside := filepath.Join(filepath.Dir(root), "Escaped.kt")
		require.NoError(t, os.WriteFile(outside, []byte("class Escaped\n"), 0644))
		t.Cleanup(func() { os.Remove(outside) })

		_, err := NormalizeInputs(root, []string{"../Escaped.kt"}, isSource, nil)
		require.Error(t, err)
		assert.True(t, executor.IsInputError(err))
		assert.Contains(t, err.Error(), "is not under")

		_, err = NormalizeInputs(root, []string{"app/../../Escaped.kt"}, isSource, nil)
		assert.True(t, executor.IsInputError(err))
	})
}

func TestRunCommandMarkdownFail(t *testing.T) {
	root := setupRepo(t, "")

	out, err := execute(t, "run", root, mathSource, "--format", "MARKDOWN", "--no-history")
	require.Error(t, err)
	assert.True(t, executor.IsCoverageCheckError(err))
	assert.Contains(t, out, "Coverage Analysis FAILED")
	assert.Contains(t, out, "not found; no files are exempted")

	md, readErr := os.ReadFile(filepath.Join(root, reportio.ReportsDir, "CoverageReport.md"))
	require.NoError(t, readErr)
	assert.Contains(t, string(md), "MathModel.kt")
	assert.Contains(t, string(md), "50%")
}

func TestRunCommandPassWithCamelCaseFlags(t *testing.T) {
	root := setupRepo(t, "")

	out, err := execute(t, "run", root, mathTest, "--format=HTML", "--processTimeout=15", "--minCoverage=50", "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "Coverage Analysis PASSED")

	_, statErr := os.Stat(filepath.Join(root, reportio.ReportsDir, "CoverageReport.html"))
	assert.NoError(t, statErr)
}

func TestRunCommandProtoThenCombine(t *testing.T) {
	root := setupRepo(t, "min_coverage_percent: 40\n")

	out, err := execute(t, "run", root, mathSource, "--format", "PROTO", "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 1 coverage report(s)")

	report, err := reportio.ReadReport(reportio.ReportPath(root, mathSource))
	require.NoError(t, err)
	d, ok := report.Details()
	require.True(t, ok)
	assert.Equal(t, 50, d.CoveragePercent())

	out, err = execute(t, "combine", root, "--format", "MD")
	require.NoError(t, err)
	assert.Contains(t, out, "Coverage Analysis PASSED")

	_, err = execute(t, "combine", root, "--format", "MD", "--min-coverage", "90")
	require.Error(t, err)
	assert.True(t, executor.IsCoverageCheckError(err))
}

func TestRunCommandNoLogFile(t *testing.T) {
	root := setupRepo(t, "")

	_, err := execute(t, "run", root, mathSource, "--format", "MARKDOWN", "--min-coverage", "50", "--no-history", "--noLogFile")
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(root, config.HomeDirName, "logs"))

	_, err = execute(t, "run", root, mathSource, "--format", "MARKDOWN", "--min-coverage", "50", "--no-history")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, config.HomeDirName, "logs", "latest.log"))
}

func TestRunCommandExemptedFile(t *testing.T) {
	root := setupRepo(t, "")
	writeFile(t, root, "scripts/assets/test_file_exemptions.yaml",
		"test_file_exemptions:\n  - exempted_file_path: "+mathSource+"\n    test_file_not_required: true\n")

	out, err := execute(t, "run", root, mathSource, "--format", "MARKDOWN", "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "exempted (no test file required)")
	assert.NoDirExists(t, filepath.Join(root, "bazel-testlogs"), "exempted files never reach bazel")
}

func TestRunCommandMissingInput(t *testing.T) {
	root := setupRepo(t, "")

	_, err := execute(t, "run", root, "utility/src/main/java/org/x/Missing.kt", "--no-history")
	require.Error(t, err)
	assert.True(t, executor.IsInputError(err))
	assert.False(t, executor.IsCoverageCheckError(err))
}

func TestRunCommandInvalidConfig(t *testing.T) {
	root := setupRepo(t, "")

	_, err := execute(t, "run", root, mathSource, "--format", "XML")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported report format")
}

func TestRunCommandRecordsHistory(t *testing.T) {
	root := setupRepo(t, "")

	_, err := execute(t, "run", root, mathSource, "--format", "MARKDOWN", "--min-coverage", "50")
	require.NoError(t, err)

	out, err := execute(t, "history", root)
	require.NoError(t, err)
	assert.Contains(t, out, "VERDICT")
	assert.Contains(t, out, string(models.CheckPass))

	out, err = execute(t, "history", root, "--file", mathSource)
	require.NoError(t, err)
	assert.Contains(t, out, "50% (1/2 lines)")
}

func TestHistoryCommandEmpty(t *testing.T) {
	root := setupRepo(t, "")

	out, err := execute(t, "history", root)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet.")
}

func TestValidateCommand(t *testing.T) {
	root := setupRepo(t, "")
	writeFile(t, root, "scripts/assets/test_file_exemptions.yaml",
		"test_file_exemptions:\n  - exempted_file_path: "+mathSource+"\n    test_file_not_required: true\n")

	out, err := execute(t, "validate", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Exemption table is valid: 1 entries")

	writeFile(t, root, "scripts/assets/test_file_exemptions.yaml",
		"test_file_exemptions:\n  - exempted_file_path: app/src/main/java/Gone.kt\n    test_file_not_required: true\n")
	out, err = execute(t, "validate", root)
	require.Error(t, err)
	assert.Contains(t, out, "app/src/main/java/Gone.kt: file does not exist")
}

func TestPrintVerdict(t *testing.T) {
	var buf bytes.Buffer
	printVerdict(&buf, models.CheckFail, "/repo/coverage_reports/CoverageReport.html")
	assert.Equal(t, "\nCoverage Analysis FAILED\nReport: /repo/coverage_reports/CoverageReport.html\n", buf.String())

	buf.Reset()
	printVerdict(&buf, models.CheckPass, "")
	assert.Equal(t, "\nCoverage Analysis PASSED\n", buf.String())
}
