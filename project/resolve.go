package project

import (
	"path/filepath"
	"strings"

	"github.com/simonhull/quill/diag"
	"github.com/simonhull/quill/paths"
	"github.com/simonhull/quill/record"
)

// Scope is what placement needs to know about the running template.
type Scope struct {
	Template        Item   // the template's own item
	TemplateProject Item   // project owning the template
	WorkDir         string // directory outputs are compared against
}

// Placement is where an output belongs before folders are created.
type Placement struct {
	Root     Item   // project root or template item
	RelPath  string // path of the output relative to BasePath's directory
	BasePath string // file RelPath is relative to
}

// Place decides which collection an output belongs to:
//
//  1. an explicit project places it under that project's root;
//  2. preserved outputs, and outputs outside WorkDir, go under the
//     template's project root;
//  3. everything else nests under the template item itself.
//
// Place does not touch the host. Records must carry an absolute path and,
// if set, an absolute project path.
func Place(rec record.Record, scope Scope, snap *Snapshot) (Placement, error) {
	var root Item
	switch {
	case rec.Project != "":
		root = snap.Project(rec.Project)
		if root == nil {
			return Placement{}, diag.New(diag.TargetProjectNotFound, rec.Project, "project for %s is not part of the solution", rec.Path)
		}
	case rec.PreserveExisting || !paths.Equal(filepath.Dir(rec.Path), scope.WorkDir):
		root = scope.TemplateProject
	default:
		root = scope.Template
	}

	rel, err := paths.Relative(root.Path(), rec.Path)
	if err != nil {
		return Placement{}, err
	}
	rel = paths.StripDotSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Placement{}, diag.New(diag.PathResolution, rec.Path, "output lies outside %s", Dir(root))
	}

	return Placement{Root: root, RelPath: rel, BasePath: root.Path()}, nil
}

// Ensure walks p.RelPath one directory segment at a time below p.Root,
// locating or creating a folder per segment, and returns the collection
// the leaf file belongs to together with the folders it had to create.
func (g *Gateway) Ensure(p Placement) (Item, []Item, error) {
	segments := paths.Segments(p.RelPath)
	if len(segments) == 0 {
		return nil, nil, diag.New(diag.PathResolution, p.RelPath, "empty placement")
	}

	collection := p.Root
	var created []Item
	for _, name := range segments[:len(segments)-1] {
		if child := childFolder(collection, name); child != nil {
			collection = child
			continue
		}
		folder, err := g.AddFolder(collection, name)
		if err != nil {
			return nil, created, err
		}
		created = append(created, folder)
		collection = folder
	}
	return collection, created, nil
}

func childFolder(collection Item, name string) Item {
	for _, child := range collection.Children() {
		if child.Kind() == KindFolder && strings.EqualFold(child.Name(), name) {
			return child
		}
	}
	return nil
}
