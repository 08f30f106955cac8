package main

import (
	"fmt"
	"os"

	"github.com/harrison/covrun/internal/cmd"
	"github.com/harrison/covrun/internal/executor"
)

// Exit codes: a failed coverage check is distinguishable from other errors.
const (
	exitError       = 1
	exitCheckFailed = 2
)

func main() {
	rootCmd := cmd.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if executor.IsCoverageCheckError(err) {
		return exitCheckFailed
	}
	return exitError
}
