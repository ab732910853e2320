package filesystem

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ProjectExtensions are the project file types quill can host.
var ProjectExtensions = []string{".csproj", ".vbproj", ".fsproj"}

// TemplateExtensions are the template file types quill renders.
var TemplateExtensions = []string{".tt", ".tmpl"}

// DiscoverProjects returns every project file below root, sorted.
func DiscoverProjects(fs afero.Fs, root string, opts WalkOptions) ([]string, error) {
	return discover(fs, root, opts, ProjectExtensions)
}

// DiscoverTemplates returns every template file below root, sorted.
func DiscoverTemplates(fs afero.Fs, root string, opts WalkOptions) ([]string, error) {
	return discover(fs, root, opts, TemplateExtensions)
}

func discover(fs afero.Fs, root string, opts WalkOptions, exts []string) ([]string, error) {
	var found []string
	err := Walk(fs, root, opts, func(path string, info os.FileInfo) error {
		if info.IsDir() {
			return nil
		}
		if matchesFold(exts, filepath.Ext(path)) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool {
		return strings.ToLower(found[i]) < strings.ToLower(found[j])
	})
	return found, nil
}
