package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/covrun/internal/bazel"
	"github.com/harrison/covrun/internal/config"
	"github.com/harrison/covrun/internal/executor"
	"github.com/harrison/covrun/internal/exemption"
	"github.com/harrison/covrun/internal/history"
	"github.com/harrison/covrun/internal/locator"
	"github.com/harrison/covrun/internal/logger"
	"github.com/harrison/covrun/internal/report"
	"github.com/harrison/covrun/internal/reportio"
	"github.com/harrison/covrun/internal/testpath"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <repo-root> <file>...",
		Short: "Measure coverage for a list of source files",
		Long: `Measure line coverage for each listed file and report the result.

File paths are relative to <repo-root>. Test files are replaced by the source
file they test, files without a source extension are skipped and duplicates
are removed. A file that does not exist stops the run before any build runs.

With --format HTML or MARKDOWN a consolidated report is written to
<repo-root>/coverage_reports and the command fails when any file failed or
fell below its minimum coverage. With --format PROTO each file's report is
written to <repo-root>/coverage_reports/<path-without-extension>/coverage_report.pb
and no verdict is given.

Configuration is loaded from <repo-root>/.covrun/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  covrun run . utility/src/main/java/org/oppia/android/util/math/MathModel.kt
  covrun run . "[app/src/main/java/A.kt,app/src/test/java/BTest.kt]" --format MARKDOWN
  covrun run . scripts/src/java/Foo.kt --format=PROTO --processTimeout=15`,
		Args: cobra.MinimumNArgs(2),
		RunE: runCommand,
	}

	addConfigFlags(cmd)
	cmd.Flags().String("format", "", "Report format: HTML, MARKDOWN (MD) or PROTO (default from config: HTML)")
	cmd.Flags().Int("process-timeout", 0, "Timeout in minutes for each bazel invocation (default from config: 5)")
	cmd.Flags().Int("max-concurrency", 0, "Files and targets processed at once (default from config: 1)")
	cmd.Flags().Int("min-coverage", 0, "Minimum coverage percent for a file to pass (default from config: 70)")
	cmd.Flags().String("log-dir", "", "Directory for log files")
	cmd.Flags().Bool("verbose", false, "Show detailed progress")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")
	cmd.Flags().Bool("no-log-file", false, "Do not write run logs under the log directory")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	root, err := repoRoot(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, root, config.FlagOverrides{
		ProcessTimeoutMinutes: intFlag(cmd, "process-timeout"),
		Format:                stringFlag(cmd, "format"),
		MinCoveragePercent:    intFlag(cmd, "min-coverage"),
		MaxConcurrency:        intFlag(cmd, "max-concurrency"),
		LogDir:                stringFlag(cmd, "log-dir"),
	})
	if err != nil {
		return err
	}
	format, err := cfg.ReportFormat()
	if err != nil {
		return err
	}

	// Determine log level: verbose flag overrides config
	logLevel := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logLevel = "debug"
	}
	out := cmd.OutOrStdout()
	consoleLog := logger.NewConsoleLogger(out, logLevel)

	files, err := NormalizeInputs(root, args[1:], cfg.IsSourceFile, consoleLog.LogWarn)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No source files to analyze.")
		return nil
	}

	var fileLog logger.RunLogger = logger.NewNoOpLogger()
	if noLogFile, _ := cmd.Flags().GetBool("no-log-file"); !noLogFile {
		fl, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, logLevel)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer fl.Close()
		fileLog = fl
	}
	runLog := logger.NewMultiLogger(consoleLog, fileLog)

	table, err := loadExemptions(cfg.ExemptionsPath, runLog.LogWarn)
	if err != nil {
		return err
	}

	runner := bazel.NewProcessRunner(cfg.ProcessTimeout())
	client := bazel.NewClient(root, cfg.BazelBinary, runner)
	orch := executor.NewOrchestrator(executor.Collaborators{
		Exemptions: exemption.NewGate(table),
		Locator:    locator.New(testpath.NewResolver(root), client),
		Retriever:  bazel.NewRetriever(root, cfg.BazelBinary, runner, cfg.SourceExtensions),
		Renderer:   report.NewReporter(root, cfg.MinCoveragePercent, table),
		Writer:     reportio.NewWriter(root),
	}, runLog)
	orch.SetMaxConcurrency(cfg.MaxConcurrency)

	noHistory, _ := cmd.Flags().GetBool("no-history")
	if cfg.History.Enabled && !noHistory {
		store, err := history.NewStore(cfg.History.DBPath)
		if err != nil {
			executor.GracefulWarn(runLog, "History: disabled for this run: %v", err)
		} else {
			defer store.Close()
			orch.SetRecorder(store)
		}
	}

	result, err := orch.Run(commandContext(cmd), files, format)
	if result != nil && format.Consolidated() {
		printVerdict(out, result.Check, report.OutputPath(root, format))
	}
	if err != nil {
		return err
	}
	if !format.Consolidated() {
		fmt.Fprintf(out, "\nWrote %d coverage report(s) under %s\n", len(result.Reports), filepath.Join(root, reportio.ReportsDir))
	}
	return nil
}
