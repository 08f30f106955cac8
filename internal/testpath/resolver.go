// Package testpath maps source files to their test files and back using the
// repository's directory conventions.
//
// Three conventions exist, chosen by path prefix:
//
//	scripts/  scripts/src/java/.../Foo.kt   <-> scripts/src/javatests/.../FooTest.kt
//	app/      app/src/main/.../Foo.kt       <-> app/src/sharedTest/.../FooTest.kt
//	                                        <-> app/src/test/.../FooTest.kt
//	                                        <-> app/src/test/.../FooLocalTest.kt
//	other     x/src/main/.../Foo.kt         <-> x/src/test/.../FooTest.kt
package testpath

import (
	"os"
	"path/filepath"
	"strings"
)

// Convention is one of the closed set of path conventions.
type Convention int

const (
	// ConventionDefault applies to every path not matched by another convention.
	ConventionDefault Convention = iota
	// ConventionScripts applies to paths under scripts/.
	ConventionScripts
	// ConventionApp applies to paths under app/.
	ConventionApp
)

// String returns the convention name.
func (c Convention) String() string {
	switch c {
	case ConventionScripts:
		return "scripts"
	case ConventionApp:
		return "app"
	default:
		return "default"
	}
}

// ConventionFor picks the convention for a repository-relative path.
func ConventionFor(path string) Convention {
	switch {
	case strings.HasPrefix(path, "scripts/"):
		return ConventionScripts
	case strings.HasPrefix(path, "app/"):
		return ConventionApp
	default:
		return ConventionDefault
	}
}

// TestPathCandidates returns every test path the convention allows for a
// source path, without checking the filesystem.
func TestPathCandidates(sourcePath string) []string {
	switch ConventionFor(sourcePath) {
	case ConventionScripts:
		return []string{withSuffix(replaceSegment(sourcePath, "java", "javatests"), "Test")}
	case ConventionApp:
		return []string{
			withSuffix(replaceSegment(sourcePath, "main", "sharedTest"), "Test"),
			withSuffix(replaceSegment(sourcePath, "main", "test"), "Test"),
			withSuffix(replaceSegment(sourcePath, "main", "test"), "LocalTest"),
		}
	default:
		return []string{withSuffix(replaceSegment(sourcePath, "main", "test"), "Test")}
	}
}

// SourcePathCandidates returns every source path a test path could belong to,
// in preference order, without checking the filesystem.
func SourcePathCandidates(testPath string) []string {
	switch ConventionFor(testPath) {
	case ConventionScripts:
		return nonEmpty(withoutSuffix(replaceSegment(testPath, "javatests", "java"), "Test"))
	case ConventionApp:
		switch {
		case hasSegment(testPath, "sharedTest"):
			return nonEmpty(withoutSuffix(replaceSegment(testPath, "sharedTest", "main"), "Test"))
		case hasSegment(testPath, "test"):
			mainPath := replaceSegment(testPath, "test", "main")
			return nonEmpty(
				withoutSuffix(mainPath, "Test"),
				withoutSuffix(mainPath, "LocalTest"),
			)
		default:
			return nil
		}
	default:
		return nonEmpty(withoutSuffix(replaceSegment(testPath, "test", "main"), "Test"))
	}
}

// IsTestFile reports whether the file name, without extension, ends in Test.
func IsTestFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), "Test")
}

// Resolver filters convention candidates against a repository checkout.
type Resolver struct {
	root string
}

// NewResolver creates a Resolver rooted at the repository directory.
func NewResolver(root string) *Resolver {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Resolver{root: root}
}

// Root returns the absolute repository root.
func (r *Resolver) Root() string {
	return r.root
}

// TestCandidates returns the existing test files for a source path, relative
// to the root and in convention order. Every candidate is checked.
func (r *Resolver) TestCandidates(sourcePath string) []string {
	var found []string
	for _, candidate := range TestPathCandidates(sourcePath) {
		if rel, ok := r.existing(candidate); ok {
			found = append(found, rel)
		}
	}
	return found
}

// SourceCandidate returns the first existing source file for a test path.
func (r *Resolver) SourceCandidate(testPath string) (string, bool) {
	for _, candidate := range SourcePathCandidates(testPath) {
		if rel, ok := r.existing(candidate); ok {
			return rel, true
		}
	}
	return "", false
}

func (r *Resolver) existing(relPath string) (string, bool) {
	abs := filepath.Join(r.root, filepath.FromSlash(relPath))
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return "", false
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// replaceSegment swaps the first /from/ directory segment for /to/.
func replaceSegment(path, from, to string) string {
	return strings.Replace(path, "/"+from+"/", "/"+to+"/", 1)
}

func hasSegment(path, segment string) bool {
	return strings.Contains(path, "/"+segment+"/")
}

// withSuffix inserts suffix between the file stem and its extension.
func withSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// withoutSuffix removes suffix from the file stem, or returns "" when the
// stem does not end in it.
func withoutSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	if !strings.HasSuffix(stem, suffix) || strings.HasSuffix(stem, "/"+suffix) {
		return ""
	}
	return strings.TrimSuffix(stem, suffix) + ext
}

func nonEmpty(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
