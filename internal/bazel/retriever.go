package bazel

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/covrun/internal/models"
	"github.com/harrison/covrun/internal/testpath"
)

// Retriever runs `bazel coverage` for one test target and extracts the line
// coverage of the source file that target tests.
type Retriever struct {
	root        string
	binary      string
	runner      CommandRunner
	extensions  []string
	testlogsDir string
}

// NewRetriever creates a Retriever for the workspace at root. extensions
// lists the source file extensions a target name may stand for; empty
// selects ".kt".
func NewRetriever(root, binary string, runner CommandRunner, extensions []string) *Retriever {
	if binary == "" {
		binary = "bazel"
	}
	if len(extensions) == 0 {
		extensions = []string{".kt"}
	}
	return &Retriever{
		root:        root,
		binary:      binary,
		runner:      runner,
		extensions:  extensions,
		testlogsDir: "bazel-testlogs",
	}
}

// Retrieve runs coverage for target. A run that completes without data for
// the subject file yields a failure report; errors are reserved for
// processes that fail, time out or leave unreadable output.
func (r *Retriever) Retrieve(ctx context.Context, target string) ([]models.CoverageReport, error) {
	label, err := ParseLabel(target)
	if err != nil {
		return nil, err
	}

	if _, err := r.runner.Run(ctx, r.root, r.binary, "coverage", "--noshow_progress", target); err != nil {
		return nil, fmt.Errorf("bazel coverage for %s failed: %w", target, err)
	}

	datPath := filepath.Join(r.root, r.testlogsDir, filepath.FromSlash(label.Package), label.Name, "coverage.dat")
	file, err := os.Open(datPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open coverage data for %s: %w", target, err)
	}
	defer file.Close()

	records, err := ParseLcov(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse coverage data for %s: %w", target, err)
	}

	candidates := r.subjectCandidates(label)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("cannot derive the source file tested by %s", target)
	}

	for _, candidate := range candidates {
		for _, record := range records {
			if !r.sameFile(record.SourceFile, candidate) {
				continue
			}
			hash, err := r.sha1(candidate)
			if err != nil {
				return nil, err
			}
			return []models.CoverageReport{models.NewDetailsReport(detailsFor(candidate, hash, target, record.Lines))}, nil
		}
	}

	subject := r.existingCandidate(candidates)
	return []models.CoverageReport{models.NewFailureReport(models.CoverageFailure{
		FilePath:   subject,
		TestTarget: target,
		Message:    fmt.Sprintf("Coverage data not found for the file: %s.", subject),
	})}, nil
}

// existingCandidate returns the first candidate present in the checkout,
// falling back to the first candidate.
func (r *Retriever) existingCandidate(candidates []string) string {
	for _, candidate := range candidates {
		info, err := os.Stat(filepath.Join(r.root, filepath.FromSlash(candidate)))
		if err == nil && !info.IsDir() {
			return candidate
		}
	}
	return candidates[0]
}

// subjectCandidates derives the source paths a test target may cover.
func (r *Retriever) subjectCandidates(label Label) []string {
	var candidates []string
	for _, ext := range r.extensions {
		testFile := label.Package + "/" + label.Name + ext
		candidates = append(candidates, testpath.SourcePathCandidates(testFile)...)
	}
	return candidates
}

func (r *Retriever) sameFile(sourceFile, candidate string) bool {
	sourceFile = filepath.ToSlash(sourceFile)
	if sourceFile == candidate {
		return true
	}
	return filepath.IsAbs(sourceFile) && strings.HasSuffix(sourceFile, "/"+candidate)
}

func (r *Retriever) sha1(relPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(relPath)))
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", relPath, err)
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

func detailsFor(filePath, hash, target string, lines []models.CoveredLine) models.CoverageDetails {
	hit := 0
	for _, line := range lines {
		if line.Coverage == models.CoverageFull {
			hit++
		}
	}
	return models.CoverageDetails{
		FilePath:     filePath,
		FileSHA1Hash: hash,
		TestTargets:  []string{target},
		CoveredLines: lines,
		LinesFound:   len(lines),
		LinesHit:     hit,
	}
}
