package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/covrun/internal/config"
	"github.com/harrison/covrun/internal/exemption"
	"github.com/harrison/covrun/internal/models"
)

// repoRoot returns the absolute repository root named on the command line.
func repoRoot(arg string) (string, error) {
	root, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("failed to resolve repository root %s: %w", arg, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("repository root %s: %w", arg, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("repository root %s is not a directory", arg)
	}
	return root, nil
}

// addConfigFlags registers the flags shared by commands that read config.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file (default: <repo-root>/.covrun/config.yaml)")
	cmd.Flags().String("exemptions", "", "Path to the exemption table, YAML or .pb (overrides config)")
}

// loadConfig loads configuration for root, applies flags that were set,
// validates the result and resolves its paths against root.
func loadConfig(cmd *cobra.Command, root string, overrides config.FlagOverrides) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(root)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if cmd.Flags().Changed("exemptions") {
		path, _ := cmd.Flags().GetString("exemptions")
		overrides.ExemptionsPath = &path
	}

	cfg.MergeWithFlags(overrides)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.ResolvePaths(root)
	return cfg, nil
}

// intFlag returns a pointer to the flag value when it was set.
func intFlag(cmd *cobra.Command, name string) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetInt(name)
	return &v
}

// stringFlag returns a pointer to the flag value when it was set.
func stringFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

// loadExemptions reads the exemption table. A missing table exempts nothing
// and is reported as a warning; a malformed one is an error.
func loadExemptions(path string, warn func(string)) (*exemption.Table, error) {
	table, err := exemption.LoadTable(path)
	if errors.Is(err, exemption.ErrTableNotFound) {
		if warn != nil {
			warn(fmt.Sprintf("Exemption table %s not found; no files are exempted", path))
		}
		return exemption.NewTable(nil), nil
	}
	if err != nil {
		return nil, err
	}
	return table, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// printVerdict prints the PASS/FAIL banner and the report location.
func printVerdict(w io.Writer, check models.CoverageCheck, reportPath string) {
	banner := color.New(color.FgGreen, color.Bold)
	message := "Coverage Analysis PASSED"
	if check != models.CheckPass {
		banner = color.New(color.FgRed, color.Bold)
		message = "Coverage Analysis FAILED"
	}

	// Detect if we're in a terminal (for color output)
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		banner.EnableColor()
	} else {
		banner.DisableColor()
	}

	fmt.Fprintf(w, "\n%s\n", banner.Sprint(message))
	if reportPath != "" {
		fmt.Fprintf(w, "Report: %s\n", reportPath)
	}
}
