package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/covrun/internal/config"
	"github.com/harrison/covrun/internal/history"
	"github.com/harrison/covrun/internal/models"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <repo-root>",
		Short: "Show recorded coverage runs",
		Long: `List recent covrun runs from the history database, or with --file the
recorded outcomes of one source file across runs.

Examples:
  covrun history .
  covrun history . --limit 5
  covrun history . --file app/src/main/java/org/oppia/android/app/home/HomeActivity.kt`,
		Args: cobra.ExactArgs(1),
		RunE: historyCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: <repo-root>/.covrun/config.yaml)")
	cmd.Flags().String("file", "", "Show the history of one source file")
	cmd.Flags().Int("limit", 10, "Maximum number of rows to show")

	return cmd
}

func historyCommand(cmd *cobra.Command, args []string) error {
	root, err := repoRoot(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, root, config.FlagOverrides{})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(cfg.History.DBPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	ctx := commandContext(cmd)
	limit, _ := cmd.Flags().GetInt("limit")
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		records, err := store.FileHistory(ctx, file, limit)
		if err != nil {
			return err
		}
		printFileHistory(out, file, records)
		return nil
	}

	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	printRuns(out, runs)
	return nil
}

func printRuns(w io.Writer, runs []history.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-19s  %-8s  %-7s  %8s  %6s  %8s  %8s\n",
		"RUN", "STARTED", "FORMAT", "VERDICT", "MEASURED", "FAILED", "EXEMPTED", "DURATION")
	for _, r := range runs {
		verdict := string(r.Verdict)
		if verdict == "" {
			verdict = "-"
		}
		fmt.Fprintf(w, "%-36s  %-19s  %-8s  %-7s  %8d  %6d  %8d  %8s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Format, verdict,
			r.Counts.Measured, r.Counts.Failed, r.Counts.Exempted, r.Duration.Round(time.Second))
	}
}

func printFileHistory(w io.Writer, file string, records []history.FileRecord) {
	if len(records) == 0 {
		fmt.Fprintf(w, "No history for %s.\n", file)
		return
	}
	fmt.Fprintf(w, "History for %s:\n", file)
	for _, r := range records {
		var outcome string
		switch r.Outcome {
		case models.KindDetails:
			outcome = fmt.Sprintf("%d%% (%d/%d lines)", r.CoveragePercent, r.LinesHit, r.LinesFound)
		case models.KindFailure:
			outcome = "failed: " + r.Message
		case models.KindExemption:
			outcome = "exempted"
		default:
			outcome = r.Outcome.String()
		}
		fmt.Fprintf(w, "  %s  %s  %s\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.RunID, outcome)
	}
}
