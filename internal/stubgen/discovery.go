// Package stubgen orchestrates stub generation over many source units:
// discovery, parallel extraction, rendering, and output.
package stubgen

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// compiledPattern holds the pattern string and its compiled globs. For
// "**/"-prefixed patterns, rootGlob is the trimmed variant that matches
// files at the root of the tree.
type compiledPattern struct {
	pattern  string
	glob     glob.Glob
	rootGlob glob.Glob
}

func compilePattern(pattern string) (compiledPattern, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return compiledPattern{}, err
	}
	cp := compiledPattern{pattern: pattern, glob: g}
	if trimmed, ok := strings.CutPrefix(pattern, "**/"); ok {
		if rg, rerr := glob.Compile(trimmed, '/'); rerr == nil {
			cp.rootGlob = rg
		}
	}
	return cp, nil
}

// FileDiscovery locates source files under a root using glob patterns and
// ignore rules.
type FileDiscovery struct {
	rootDir        string
	sourcePatterns []compiledPattern
	ignorePatterns []compiledPattern
}

// NewFileDiscovery compiles the given patterns for discovery rooted at
// rootDir.
func NewFileDiscovery(rootDir string, sourcePatterns, ignorePatterns []string) (*FileDiscovery, error) {
	fd := &FileDiscovery{rootDir: rootDir}

	for _, pattern := range sourcePatterns {
		cp, err := compilePattern(pattern)
		if err != nil {
			return nil, err
		}
		fd.sourcePatterns = append(fd.sourcePatterns, cp)
	}

	for _, pattern := range ignorePatterns {
		cp, err := compilePattern(pattern)
		if err != nil {
			return nil, err
		}
		fd.ignorePatterns = append(fd.ignorePatterns, cp)
	}

	return fd, nil
}

// DiscoverFiles walks the tree and returns matching source files in a
// stable order.
func (fd *FileDiscovery) DiscoverFiles() ([]string, error) {
	files := []string{}

	err := filepath.Walk(fd.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(fd.rootDir, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if fd.shouldIgnore(relPath) {
			return nil
		}
		if fd.matchesAnyPattern(relPath, fd.sourcePatterns) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func (fd *FileDiscovery) shouldIgnore(relPath string) bool {
	if strings.HasPrefix(relPath, ".git/") || relPath == ".git" {
		return true
	}
	if fd.matchesAnyPattern(relPath, fd.ignorePatterns) {
		return true
	}

	// Directory patterns like "build/**" should also suppress the
	// directory itself.
	pathWithSuffix := relPath + "/**"
	for _, cp := range fd.ignorePatterns {
		if cp.pattern == pathWithSuffix {
			return true
		}
	}
	return false
}

func (fd *FileDiscovery) matchesAnyPattern(relPath string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(relPath) {
			return true
		}
		// Patterns like "**/*.pyx" also match files at the root.
		if cp.rootGlob != nil && cp.rootGlob.Match(relPath) {
			return true
		}
	}
	return false
}
