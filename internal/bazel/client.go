package bazel

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// keepGoingPartialExitCode is Bazel's exit status when --keep_going
// produced partial results.
const keepGoingPartialExitCode = 3

// Client runs Bazel queries against a workspace.
type Client struct {
	root   string
	binary string
	runner CommandRunner
}

// NewClient creates a Client for the workspace at root. An empty binary
// selects "bazel".
func NewClient(root, binary string, runner CommandRunner) *Client {
	if binary == "" {
		binary = "bazel"
	}
	return &Client{root: root, binary: binary, runner: runner}
}

// RetrieveTargets maps test files (workspace-relative) to the test rules
// that list them as direct sources. An empty result means no test target
// declares any of the files.
func (c *Client) RetrieveTargets(ctx context.Context, testFilePaths []string) ([]string, error) {
	if len(testFilePaths) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("kind('.*_test rule', rdeps(//..., set(%s), 1))", strings.Join(testFilePaths, " "))
	output, err := c.runner.Run(ctx, c.root, c.binary, "query", "--noshow_progress", "--keep_going", query)
	if err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode != keepGoingPartialExitCode {
			return nil, fmt.Errorf("bazel query for %v failed: %w", testFilePaths, err)
		}
	}

	return parseLabels(output), nil
}

// parseLabels extracts target labels from query output, dropping Bazel's
// informational lines and duplicates while keeping order.
func parseLabels(output string) []string {
	var labels []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "//") && !strings.HasPrefix(line, "@") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		labels = append(labels, line)
	}
	return labels
}

// Label is a parsed Bazel target label.
type Label struct {
	Package string // e.g. utility/src/test/java/org/oppia/android/util/math
	Name    string // e.g. MathModelTest
}

// ParseLabel splits //pkg:name into its parts. Without a colon the last
// path segment is taken as the target name, so //a/b/NameTest means
// //a/b:NameTest.
func ParseLabel(label string) (Label, error) {
	i := strings.Index(label, "//")
	if i < 0 {
		return Label{}, fmt.Errorf("invalid bazel label %q", label)
	}
	pkg, name, found := strings.Cut(label[i+2:], ":")
	if !found {
		slash := strings.LastIndex(pkg, "/")
		if slash < 0 {
			return Label{}, fmt.Errorf("invalid bazel label %q: missing package", label)
		}
		pkg, name = pkg[:slash], pkg[slash+1:]
	}
	if name == "" {
		return Label{}, fmt.Errorf("invalid bazel label %q", label)
	}
	return Label{Package: pkg, Name: strings.TrimSuffix(name, ".kt")}, nil
}

// String formats the label as //pkg:name.
func (l Label) String() string {
	return "//" + l.Package + ":" + l.Name
}
