package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/covrun/internal/executor"
	"github.com/harrison/covrun/internal/testpath"
)

// NormalizeInputs turns command-line file arguments into the repository
// relative source files to analyze.
//
// Each argument is stripped of surrounding brackets and commas so lists
// pasted from CI tooling work. Test files are replaced by the source file
// they test. Files without a source extension are skipped with a warning.
// The result is de-duplicated in first-seen order. A test file without a
// source, or a file that does not exist, is an *executor.InputError.
func NormalizeInputs(root string, args []string, isSource func(string) bool, warn func(string)) ([]string, error) {
	resolver := testpath.NewResolver(root)

	var files []string
	seen := make(map[string]bool)
	for _, arg := range splitArgs(args) {
		rel, err := relativeTo(resolver.Root(), arg)
		if err != nil {
			return nil, &executor.InputError{Path: arg, Message: "path is outside the repository", Err: err}
		}

		if testpath.IsTestFile(rel) {
			source, ok := resolver.SourceCandidate(rel)
			if !ok {
				return nil, &executor.InputError{Path: arg, Message: "no source file found for test file"}
			}
			rel = source
		}

		if !isSource(rel) {
			if warn != nil {
				warn(fmt.Sprintf("Skipping %s: not a measurable source file", rel))
			}
			continue
		}

		info, err := os.Stat(filepath.Join(resolver.Root(), filepath.FromSlash(rel)))
		if err != nil {
			return nil, &executor.InputError{Path: arg, Message: "file does not exist", Err: err}
		}
		if info.IsDir() {
			return nil, &executor.InputError{Path: arg, Message: "is a directory"}
		}

		if !seen[rel] {
			seen[rel] = true
			files = append(files, rel)
		}
	}
	return files, nil
}

// splitArgs trims list punctuation and splits comma-joined arguments.
func splitArgs(args []string) []string {
	var out []string
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.Trim(strings.TrimSpace(part), "[]")
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func relativeTo(root, path string) (string, error) {
	rel := filepath.Clean(path)
	if filepath.IsAbs(path) {
		var err error
		if rel, err = filepath.Rel(root, path); err != nil {
			return "", err
		}
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not under %s", path, root)
	}
	return filepath.ToSlash(rel), nil
}
