package msbuild

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/simonhull/quill/paths"
	"github.com/simonhull/quill/project"
)

// Item is a node of a project file's tree. Items are handles: the tree is
// derived from the project file on every call, so Children always reflects
// the latest mutation.
type Item struct {
	host *Host
	proj *projectFile
	path string
	kind project.Kind
}

var _ project.Item = (*Item)(nil)

// Name implements project.Item.
func (i *Item) Name() string { return filepath.Base(i.path) }

// Path implements project.Item.
func (i *Item) Path() string { return i.path }

// Kind implements project.Item.
func (i *Item) Kind() project.Kind { return i.kind }

// Project implements project.Item.
func (i *Item) Project() project.Item { return i.host.root(i.proj) }

// SupportsAccurateEmptyCount implements project.Item. Project files are
// rewritten synchronously, so counts are always current.
func (i *Item) SupportsAccurateEmptyCount() bool { return true }

// Parent implements project.Item.
func (i *Item) Parent() project.Item {
	switch i.kind {
	case project.KindProject:
		return nil
	case project.KindFile:
		e := i.proj.file(i.path)
		if e == nil {
			return nil
		}
		if owner := i.proj.nestedUnder(*e); owner != nil {
			return i.host.handle(i.proj, owner.path, project.KindFile)
		}
	}
	return i.host.collection(i.proj, filepath.Dir(i.path))
}

// Children implements project.Item, listing folders before files, each
// sorted by name.
func (i *Item) Children() []project.Item {
	var folders, files []project.Item

	switch i.kind {
	case project.KindFile:
		for _, e := range i.proj.entries() {
			if e.kind != project.KindFile {
				continue
			}
			if owner := i.proj.nestedUnder(e); owner != nil && paths.Equal(owner.path, i.path) {
				files = append(files, i.host.handle(i.proj, e.path, project.KindFile))
			}
		}
	case project.KindProject, project.KindFolder:
		dir := project.Dir(i)
		for _, f := range i.proj.folders() {
			if paths.Equal(filepath.Dir(f), dir) {
				folders = append(folders, i.host.handle(i.proj, f, project.KindFolder))
			}
		}
		for _, e := range i.proj.entries() {
			if e.kind != project.KindFile || i.proj.nestedUnder(e) != nil {
				continue
			}
			parent := filepath.Dir(e.path)
			inside := paths.IsWithin(i.proj.dir, e.path)
			if paths.Equal(parent, dir) || (i.kind == project.KindProject && !inside) {
				files = append(files, i.host.handle(i.proj, e.path, project.KindFile))
			}
		}
	}

	byName := func(items []project.Item) {
		sort.SliceStable(items, func(a, b int) bool {
			return strings.ToLower(items[a].Name()) < strings.ToLower(items[b].Name())
		})
	}
	byName(folders)
	byName(files)
	return append(folders, files...)
}
