// Package project is the boundary between quill and a host project system.
//
// A host (an IDE automation model, an MSBuild project file, an in-memory
// tree) implements Host and, optionally, SourceControl. The reconciliation
// engine never talks to a host directly: it goes through a Gateway, which
// translates host failures into diag error kinds and logs every mutation.
//
// # Tree model
//
// Hosts expose a tree of Items. Project roots sit at the top, organizational
// folders and files below them, and files may nest other files (generated
// outputs nest under the template that produced them).
//
//	App.csproj            KindProject
//	├── Models/           KindFolder
//	│   └── User.cs       KindFile
//	└── Gen.tt            KindFile
//	    └── Gen.cs        KindFile (nested)
package project

import (
	"context"
	"errors"
	"path/filepath"
)

// Kind classifies project tree nodes.
type Kind int

const (
	KindFile    Kind = iota + 1
	KindFolder       // organizational folder
	KindProject      // project root
	KindOther        // host-specific node (references, virtual folders)
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	case KindProject:
		return "project"
	default:
		return "other"
	}
}

// Item is a node in a host project tree.
//
// Path is absolute: the file path for files, the directory path for
// folders and the project file path for project roots.
type Item interface {
	Name() string
	Path() string
	Kind() Kind
	Parent() Item // nil for project roots
	Children() []Item
	Project() Item // owning project root; a project returns itself

	// SupportsAccurateEmptyCount reports whether Children reflects removals
	// immediately. Empty-folder cleanup only climbs through folders that do.
	SupportsAccurateEmptyCount() bool
}

// Well-known item property names.
const (
	PropBuildAction           = "BuildAction"
	PropCopyToOutputDirectory = "CopyToOutputDirectory"
	PropCustomTool            = "CustomTool"
	PropCustomToolNamespace   = "CustomToolNamespace"
)

// Sentinel errors hosts return so the gateway can classify failures.
var (
	// ErrUnsupportedProperty means the item type has no such property.
	ErrUnsupportedProperty = errors.New("property not supported by item")
	// ErrFolderExists means AddFolder found the directory already on disk.
	ErrFolderExists = errors.New("folder already exists on disk")
	// ErrUnavailable means the host cannot be reached.
	ErrUnavailable = errors.New("project host unavailable")
)

// Host is what quill needs from a project system. Hosts are not required
// to be safe for concurrent use; callers serialize access per solution.
type Host interface {
	// Projects lists every project, flattened through solution folders.
	Projects() ([]Item, error)
	// FindItem returns the file or folder item at path, or nil if none.
	FindItem(path string) (Item, error)

	AddFromFile(collection Item, path string) (Item, error)
	AddFromDirectory(collection Item, path string) (Item, error)
	AddFolder(collection Item, name string) (Item, error)
	// Delete removes the item from its collection and its file from disk.
	Delete(item Item) error

	BuildActions(item Item) ([]string, error)
	Property(item Item, name string) (string, error)
	SetProperty(item Item, name, value string) error
	BuildProperty(item Item, name string) (string, error)
	SetBuildProperty(item Item, name, value string) error

	References(project Item) ([]string, error)
	AddReference(project Item, name string) error
}

// SourceControl answers status queries and checks files out.
type SourceControl interface {
	IsUnderSourceControl(ctx context.Context, path string) (bool, error)
	IsCheckedOut(ctx context.Context, path string) (bool, error)
	CheckOut(ctx context.Context, path string) error
}

// Dir returns the directory an item's children live in.
func Dir(item Item) string {
	if item.Kind() == KindFolder {
		return item.Path()
	}
	return filepath.Dir(item.Path())
}

// Walk calls fn for item and every descendant, depth first.
func Walk(item Item, fn func(Item)) {
	fn(item)
	for _, child := range item.Children() {
		Walk(child, fn)
	}
}
