package cmd

import (
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for covrun
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "covrun",
		Short: "Per-file code coverage checks for Bazel repositories",
		Long: `covrun measures line coverage for a list of changed source files.

For every file it consults the exemption table, finds the test file and the
Bazel test targets that exercise it, runs coverage for each target and merges
the results. The outcome is either one persisted report per file (PROTO) or a
consolidated HTML/Markdown report with a PASS/FAIL verdict.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
		// Errors are printed once by main, which also picks the exit code
		SilenceErrors: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewCombineCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewHistoryCommand())

	cmd.SetGlobalNormalizationFunc(normalizeFlagName)

	return cmd
}

// normalizeFlagName accepts camelCase spellings such as --processTimeout for
// the kebab-case flags covrun defines.
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	var sb strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		if r == '_' {
			r = '-'
		}
		sb.WriteRune(r)
	}
	return pflag.NormalizedName(sb.String())
}
