package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/covrun/internal/models"
)

// HistoryConfig controls the run history database
type HistoryConfig struct {
	// Enabled records every run to the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the SQLite database file, relative to the repository root
	DBPath string `yaml:"db_path"`
}

// Config represents covrun configuration options
type Config struct {
	// ProcessTimeoutMinutes bounds every build tool invocation
	ProcessTimeoutMinutes int `yaml:"process_timeout_minutes"`

	// Format is the report format (HTML, MARKDOWN, MD, PROTO)
	Format string `yaml:"format"`

	// ExemptionsPath is the exemption table, relative to the repository root
	ExemptionsPath string `yaml:"exemptions_path"`

	// MinCoveragePercent is the coverage a measured file needs to pass
	MinCoveragePercent int `yaml:"min_coverage_percent"`

	// MaxConcurrency is the number of files and targets processed at once
	MaxConcurrency int `yaml:"max_concurrency"`

	// BazelBinary is the build tool executable
	BazelBinary string `yaml:"bazel_binary"`

	// SourceExtensions lists the extensions of files that can be measured
	SourceExtensions []string `yaml:"source_extensions"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where logs will be written
	LogDir string `yaml:"log_dir"`

	// History contains run history configuration
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		ProcessTimeoutMinutes: 5,
		Format:                string(models.FormatHTML),
		ExemptionsPath:        "scripts/assets/test_file_exemptions.yaml",
		MinCoveragePercent:    70,
		MaxConcurrency:        1,
		BazelBinary:           "bazel",
		SourceExtensions:      []string{".kt"},
		LogLevel:              "info",
		LogDir:                filepath.Join(HomeDirName, "logs"),
		History: HistoryConfig{
			Enabled: true,
			DBPath:  filepath.Join(HomeDirName, "history", "runs.db"),
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply non-zero values from file (merging with defaults)
	if fileCfg.ProcessTimeoutMinutes != 0 {
		cfg.ProcessTimeoutMinutes = fileCfg.ProcessTimeoutMinutes
	}
	if fileCfg.Format != "" {
		cfg.Format = fileCfg.Format
	}
	if fileCfg.ExemptionsPath != "" {
		cfg.ExemptionsPath = fileCfg.ExemptionsPath
	}
	if fileCfg.MinCoveragePercent != 0 {
		cfg.MinCoveragePercent = fileCfg.MinCoveragePercent
	}
	if fileCfg.MaxConcurrency != 0 {
		cfg.MaxConcurrency = fileCfg.MaxConcurrency
	}
	if fileCfg.BazelBinary != "" {
		cfg.BazelBinary = fileCfg.BazelBinary
	}
	if len(fileCfg.SourceExtensions) > 0 {
		cfg.SourceExtensions = fileCfg.SourceExtensions
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.LogDir != "" {
		cfg.LogDir = fileCfg.LogDir
	}

	// history.enabled may be explicitly false, so check which keys are present
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if section, ok := rawMap["history"].(map[string]interface{}); ok {
			if _, exists := section["enabled"]; exists {
				cfg.History.Enabled = fileCfg.History.Enabled
			}
			if _, exists := section["db_path"]; exists {
				cfg.History.DBPath = fileCfg.History.DBPath
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .covrun/config.yaml in the
// specified directory, honouring COVRUN_HOME.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(ConfigPath(dir))
}

// FlagOverrides carries CLI flag values; nil fields were not set.
type FlagOverrides struct {
	ProcessTimeoutMinutes *int
	Format                *string
	ExemptionsPath        *string
	MinCoveragePercent    *int
	MaxConcurrency        *int
	LogDir                *string
	LogLevel              *string
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(flags FlagOverrides) {
	if flags.ProcessTimeoutMinutes != nil {
		c.ProcessTimeoutMinutes = *flags.ProcessTimeoutMinutes
	}
	if flags.Format != nil {
		c.Format = *flags.Format
	}
	if flags.ExemptionsPath != nil {
		c.ExemptionsPath = *flags.ExemptionsPath
	}
	if flags.MinCoveragePercent != nil {
		c.MinCoveragePercent = *flags.MinCoveragePercent
	}
	if flags.MaxConcurrency != nil {
		c.MaxConcurrency = *flags.MaxConcurrency
	}
	if flags.LogDir != nil {
		c.LogDir = *flags.LogDir
	}
	if flags.LogLevel != nil {
		c.LogLevel = *flags.LogLevel
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.ProcessTimeoutMinutes <= 0 {
		return fmt.Errorf("process_timeout_minutes must be > 0, got %d", c.ProcessTimeoutMinutes)
	}

	if _, err := models.ParseReportFormat(c.Format); err != nil {
		return err
	}

	if c.MinCoveragePercent < 0 || c.MinCoveragePercent > 100 {
		return fmt.Errorf("min_coverage_percent must be between 0 and 100, got %d", c.MinCoveragePercent)
	}

	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be >= 1, got %d", c.MaxConcurrency)
	}

	if strings.TrimSpace(c.BazelBinary) == "" {
		return fmt.Errorf("bazel_binary cannot be empty")
	}

	for _, ext := range c.SourceExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("source_extensions entry %q must start with a dot", ext)
		}
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	return nil
}

// ProcessTimeout returns the per-invocation timeout as a duration.
func (c *Config) ProcessTimeout() time.Duration {
	return time.Duration(c.ProcessTimeoutMinutes) * time.Minute
}

// ReportFormat returns the parsed report format.
func (c *Config) ReportFormat() (models.ReportFormat, error) {
	return models.ParseReportFormat(c.Format)
}

// IsSourceFile reports whether path has one of the configured extensions.
func (c *Config) IsSourceFile(path string) bool {
	ext := filepath.Ext(path)
	for _, want := range c.SourceExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

// ResolvePaths makes relative paths absolute against the repository root.
// Paths under the default .covrun directory follow COVRUN_HOME when set.
func (c *Config) ResolvePaths(root string) {
	c.ExemptionsPath = resolveAgainst(root, c.ExemptionsPath)
	c.LogDir = resolveHomePath(root, c.LogDir)
	if c.History.DBPath != "" {
		c.History.DBPath = resolveHomePath(root, c.History.DBPath)
	}
}

func resolveAgainst(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func resolveHomePath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if rest, ok := strings.CutPrefix(filepath.ToSlash(path), HomeDirName+"/"); ok {
		return filepath.Join(Home(root), filepath.FromSlash(rest))
	}
	return filepath.Join(root, path)
}
