package filesystem

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefaultIgnoreDirs are build and tool directories skipped during traversal
var DefaultIgnoreDirs = []string{
	"bin", "obj", "packages", "node_modules",
	".git", ".svn", ".hg", ".vs", ".idea", ".vscode",
}

// WalkOptions configures directory traversal behavior
type WalkOptions struct {
	IgnoreDirs     []string // Directories to skip (default: DefaultIgnoreDirs)
	IgnorePatterns []string // File patterns to skip (e.g., "*.tmp")
	IncludeHidden  bool     // Include hidden files/dirs (default: false)
}

// Walk traverses a directory tree on fs with configurable ignore patterns.
// The visitor function is called for each file and directory.
// Return filepath.SkipDir from visitor to skip a directory.
func Walk(fs afero.Fs, rootPath string, opts WalkOptions, visitor func(path string, info os.FileInfo) error) error {
	ignoreDirs := opts.IgnoreDirs
	if ignoreDirs == nil {
		ignoreDirs = DefaultIgnoreDirs
	}

	return afero.Walk(fs, rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if path != rootPath && !opts.IncludeHidden && strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if path != rootPath && matchesFold(ignoreDirs, info.Name()) {
				return filepath.SkipDir
			}
			return visitor(path, info)
		}

		for _, pattern := range opts.IgnorePatterns {
			if matched, _ := filepath.Match(pattern, info.Name()); matched {
				return nil
			}
		}

		return visitor(path, info)
	})
}

func matchesFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
