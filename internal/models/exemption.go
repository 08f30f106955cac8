package models

// TestFileExemption is one row of the exemption table, keyed by ExemptedFilePath.
type TestFileExemption struct {
	ExemptedFilePath                         string `yaml:"exempted_file_path"`
	TestFileNotRequired                      bool   `yaml:"test_file_not_required"`
	SourceFileIsIncompatibleWithCodeCoverage bool   `yaml:"source_file_is_incompatible_with_code_coverage"`
	// OverrideMinCoveragePercentRequired replaces the global minimum for this
	// file when greater than zero.
	OverrideMinCoveragePercentRequired int `yaml:"override_min_coverage_percent_required"`
}

// Exempts reports whether the row skips the coverage check entirely.
func (e TestFileExemption) Exempts() bool {
	return e.TestFileNotRequired || e.SourceFileIsIncompatibleWithCodeCoverage
}
