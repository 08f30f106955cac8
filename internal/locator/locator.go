// Package locator turns a source file into the build targets whose tests
// exercise it.
package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel causes carried by DiscoveryError.
var (
	ErrNoTestFile             = errors.New("no test file")
	ErrMissingTestDeclaration = errors.New("missing test declaration")
)

// BuildClient maps test files to the test targets declaring them.
type BuildClient interface {
	RetrieveTargets(ctx context.Context, testFilePaths []string) ([]string, error)
}

// TestFinder finds the existing test files of a source file.
type TestFinder interface {
	TestCandidates(sourcePath string) []string
}

// DiscoveryError reports that a source file could not be mapped to targets.
// It is terminal for that file only.
type DiscoveryError struct {
	FilePath  string
	TestFiles []string // Test files that were found, if any
	Err       error    // ErrNoTestFile, ErrMissingTestDeclaration or the build client error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	switch {
	case errors.Is(e.Err, ErrNoTestFile):
		return fmt.Sprintf("No appropriate test file found for %s.", e.FilePath)
	case errors.Is(e.Err, ErrMissingTestDeclaration):
		return fmt.Sprintf("Missing test declaration(s) for existing test file(s): [%s].", strings.Join(e.TestFiles, ", "))
	default:
		return fmt.Sprintf("failed to retrieve test targets for %s: %v", e.FilePath, e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// IsDiscoveryError checks if the error is or wraps a DiscoveryError.
func IsDiscoveryError(err error) bool {
	var de *DiscoveryError
	return errors.As(err, &de)
}

// Locator resolves source files to test targets.
type Locator struct {
	finder TestFinder
	client BuildClient
}

// New creates a Locator.
func New(finder TestFinder, client BuildClient) *Locator {
	return &Locator{finder: finder, client: client}
}

// Locate returns the de-duplicated, order-preserving targets for sourcePath.
// Every failure is a *DiscoveryError; none are retried.
func (l *Locator) Locate(ctx context.Context, sourcePath string) ([]string, error) {
	testFiles := l.finder.TestCandidates(sourcePath)
	if len(testFiles) == 0 {
		return nil, &DiscoveryError{FilePath: sourcePath, Err: ErrNoTestFile}
	}

	targets, err := l.client.RetrieveTargets(ctx, testFiles)
	if err != nil {
		return nil, &DiscoveryError{FilePath: sourcePath, TestFiles: testFiles, Err: err}
	}

	targets = dedupe(targets)
	if len(targets) == 0 {
		return nil, &DiscoveryError{FilePath: sourcePath, TestFiles: testFiles, Err: ErrMissingTestDeclaration}
	}
	return targets, nil
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, item := range items {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
