package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/covrun/internal/config"
	"github.com/harrison/covrun/internal/executor"
	"github.com/harrison/covrun/internal/logger"
	"github.com/harrison/covrun/internal/models"
	"github.com/harrison/covrun/internal/report"
	"github.com/harrison/covrun/internal/reportio"
)

// NewCombineCommand creates the combine command
func NewCombineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "combine <repo-root>",
		Short: "Render persisted PROTO reports into one consolidated verdict",
		Long: `Read every coverage_report.pb under <repo-root>/coverage_reports, render
them into a single HTML or Markdown report and give a PASS/FAIL verdict.

This is the final step when several CI shards ran "covrun run --format PROTO"
for their part of the changed files.`,
		Args: cobra.ExactArgs(1),
		RunE: combineCommand,
	}

	addConfigFlags(cmd)
	cmd.Flags().String("format", "", "Report format: HTML or MARKDOWN (default from config)")
	cmd.Flags().Int("min-coverage", 0, "Minimum coverage percent for a file to pass (default from config: 70)")

	return cmd
}

func combineCommand(cmd *cobra.Command, args []string) error {
	root, err := repoRoot(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, root, config.FlagOverrides{
		Format:             stringFlag(cmd, "format"),
		MinCoveragePercent: intFlag(cmd, "min-coverage"),
	})
	if err != nil {
		return err
	}
	format, err := cfg.ReportFormat()
	if err != nil {
		return err
	}
	if !format.Consolidated() {
		return fmt.Errorf("combine needs HTML or MARKDOWN output, got %s", format)
	}

	out := cmd.OutOrStdout()
	consoleLog := logger.NewConsoleLogger(out, cfg.LogLevel)

	reports, err := reportio.LoadAll(root)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		return fmt.Errorf("no persisted coverage reports found under %s", root)
	}
	consoleLog.LogInfo(fmt.Sprintf("Combining %d persisted coverage report(s)", len(reports)))

	table, err := loadExemptions(cfg.ExemptionsPath, consoleLog.LogWarn)
	if err != nil {
		return err
	}

	reporter := report.NewReporter(root, cfg.MinCoveragePercent, table)
	check, err := reporter.Render(commandContext(cmd), models.CoverageReportContainer{Reports: reports}, format)
	if err != nil {
		return err
	}
	consoleLog.LogSummary(models.RunResult{Format: format, Reports: reports, Check: check})
	printVerdict(out, check, report.OutputPath(root, format))

	if check != models.CheckPass {
		var failed []string
		for _, r := range reports {
			if !reporter.Passes(r) {
				failed = append(failed, r.FilePath())
			}
		}
		return &executor.CoverageCheckError{FailedFiles: failed, TotalFiles: len(reports)}
	}
	return nil
}
