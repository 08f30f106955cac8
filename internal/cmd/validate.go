package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/covrun/internal/config"
	"github.com/harrison/covrun/internal/exemption"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <repo-root>",
		Short: "Validate the exemption table",
		Long: `Load the exemption table and check it against the repository:
  - every entry names a file
  - no file is listed twice
  - every entry sets an exemption or a coverage override
  - overrides are between 0 and 100
  - exempted files still exist

Exit code: 0 if valid, 1 if issues found`,
		Args: cobra.ExactArgs(1),
		RunE: validateCommand,
	}

	addConfigFlags(cmd)

	return cmd
}

func validateCommand(cmd *cobra.Command, args []string) error {
	root, err := repoRoot(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, root, config.FlagOverrides{})
	if err != nil {
		return err
	}

	table, err := exemption.LoadTable(cfg.ExemptionsPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	issues := table.Validate(root)
	if len(issues) == 0 {
		fmt.Fprintf(out, "Exemption table is valid: %d entries in %s\n", table.Len(), cfg.ExemptionsPath)
		return nil
	}

	fmt.Fprintf(out, "Exemption table %s has %d issue(s):\n", cfg.ExemptionsPath, len(issues))
	for _, issue := range issues {
		fmt.Fprintf(out, "  - %s\n", issue)
	}
	return fmt.Errorf("exemption table validation failed with %d issue(s)", len(issues))
}
