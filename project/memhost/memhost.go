// Package memhost is an in-memory project host backed by an afero
// filesystem. It behaves like an IDE automation model (adding an item needs
// the file on disk, deleting an item deletes its file) and records every
// mutation, which makes it the host of choice for tests and embedders that
// keep their own project model.
package memhost

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/simonhull/quill/paths"
	"github.com/simonhull/quill/project"
)

// DefaultBuildActions are offered for every file unless configured otherwise.
var DefaultBuildActions = []string{"None", "Compile", "Content", "EmbeddedResource"}

var fileProperties = []string{
	project.PropBuildAction,
	project.PropCopyToOutputDirectory,
	project.PropCustomTool,
	project.PropCustomToolNamespace,
}

// Host is an in-memory project.Host.
type Host struct {
	fs        afero.Fs
	projects  []*Node
	actions   []string
	mutations []string
}

// Option configures a Host.
type Option func(*Host)

// WithBuildActions replaces the build actions files support.
func WithBuildActions(actions ...string) Option {
	return func(h *Host) { h.actions = actions }
}

// New creates an empty host over fs.
func New(fs afero.Fs, opts ...Option) *Host {
	h := &Host{fs: fs, actions: DefaultBuildActions}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Node is a tree node of the in-memory host.
type Node struct {
	name       string
	path       string
	kind       project.Kind
	parent     *Node
	children   []*Node
	project    *Node
	props      map[string]string
	buildProps map[string]string
	refs       []string
	inaccurate bool
}

func (n *Node) Name() string { return n.name }

func (n *Node) Path() string { return n.path }

func (n *Node) Kind() project.Kind { return n.kind }

func (n *Node) Project() project.Item { return n.project }

func (n *Node) Parent() project.Item {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *Node) Children() []project.Item {
	items := make([]project.Item, len(n.children))
	for i, c := range n.children {
		items[i] = c
	}
	return items
}

func (n *Node) SupportsAccurateEmptyCount() bool { return !n.inaccurate }

// SetAccurateEmptyCount marks whether the node reports removals immediately.
func (n *Node) SetAccurateEmptyCount(accurate bool) { n.inaccurate = !accurate }

// AddProject registers a project whose file is at path.
func (h *Host) AddProject(path string) *Node {
	p := &Node{
		name: filepath.Base(path),
		path: filepath.Clean(path),
		kind: project.KindProject,
	}
	p.project = p
	h.projects = append(h.projects, p)
	return p
}

// Include adds a file node under parent without touching the filesystem or
// the mutation log. Use it to describe an existing tree.
func (h *Host) Include(parent *Node, path string) *Node {
	return h.attach(parent, path, project.KindFile)
}

// IncludeFolder adds a folder node under parent without touching the
// filesystem or the mutation log.
func (h *Host) IncludeFolder(parent *Node, name string) *Node {
	return h.attach(parent, filepath.Join(project.Dir(parent), name), project.KindFolder)
}

// Mutations returns the mutating calls made so far, in order.
func (h *Host) Mutations() []string {
	return slices.Clone(h.mutations)
}

// ResetMutations clears the mutation log.
func (h *Host) ResetMutations() {
	h.mutations = nil
}

// Projects implements project.Host.
func (h *Host) Projects() ([]project.Item, error) {
	items := make([]project.Item, len(h.projects))
	for i, p := range h.projects {
		items[i] = p
	}
	return items, nil
}

// FindItem implements project.Host.
func (h *Host) FindItem(path string) (project.Item, error) {
	if n := h.find(path); n != nil {
		return n, nil
	}
	return nil, nil
}

// AddFromFile implements project.Host.
func (h *Host) AddFromFile(collection project.Item, path string) (project.Item, error) {
	parent, err := h.node(collection)
	if err != nil {
		return nil, err
	}
	if _, err := h.fs.Stat(path); err != nil {
		return nil, err
	}
	if existing := parent.child(path); existing != nil {
		return existing, nil
	}
	n := h.attach(parent, path, project.KindFile)
	n.props[project.PropBuildAction] = defaultBuildAction(path)
	h.record("add-file %s", path)
	return n, nil
}

// AddFromDirectory implements project.Host.
func (h *Host) AddFromDirectory(collection project.Item, path string) (project.Item, error) {
	parent, err := h.node(collection)
	if err != nil {
		return nil, err
	}
	info, err := h.fs.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}
	if existing := parent.child(path); existing != nil {
		return existing, nil
	}
	n := h.attach(parent, path, project.KindFolder)
	h.record("add-directory %s", path)
	return n, nil
}

// AddFolder implements project.Host.
func (h *Host) AddFolder(collection project.Item, name string) (project.Item, error) {
	parent, err := h.node(collection)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(project.Dir(parent), name)
	if exists, _ := afero.DirExists(h.fs, dir); exists {
		return nil, project.ErrFolderExists
	}
	if err := h.fs.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	n := h.attach(parent, dir, project.KindFolder)
	h.record("add-folder %s", dir)
	return n, nil
}

// Delete implements project.Host.
func (h *Host) Delete(item project.Item) error {
	n, err := h.node(item)
	if err != nil {
		return err
	}
	if n.parent == nil {
		return fmt.Errorf("cannot delete project %s", n.path)
	}

	n.parent.children = slices.DeleteFunc(n.parent.children, func(c *Node) bool { return c == n })
	var removeErr error
	walk(n, func(d *Node) {
		if d.kind == project.KindFile {
			if err := h.fs.Remove(d.path); err != nil && !os.IsNotExist(err) && removeErr == nil {
				removeErr = err
			}
		}
	})
	if n.kind == project.KindFolder {
		// Only an empty directory goes; files the tree never knew stay.
		if empty, _ := afero.IsEmpty(h.fs, n.path); empty {
			_ = h.fs.Remove(n.path)
		}
	}
	h.record("delete %s", n.path)
	return removeErr
}

// BuildActions implements project.Host.
func (h *Host) BuildActions(item project.Item) ([]string, error) {
	if item.Kind() != project.KindFile {
		return nil, nil
	}
	return slices.Clone(h.actions), nil
}

// Property implements project.Host.
func (h *Host) Property(item project.Item, name string) (string, error) {
	n, err := h.fileNode(item, name)
	if err != nil {
		return "", err
	}
	return n.props[name], nil
}

// SetProperty implements project.Host.
func (h *Host) SetProperty(item project.Item, name, value string) error {
	n, err := h.fileNode(item, name)
	if err != nil {
		return err
	}
	n.props[name] = value
	h.record("set %s %s=%s", n.path, name, value)
	return nil
}

// BuildProperty implements project.Host.
func (h *Host) BuildProperty(item project.Item, name string) (string, error) {
	n, err := h.node(item)
	if err != nil {
		return "", err
	}
	return n.buildProps[name], nil
}

// SetBuildProperty implements project.Host.
func (h *Host) SetBuildProperty(item project.Item, name, value string) error {
	n, err := h.node(item)
	if err != nil {
		return err
	}
	n.buildProps[name] = value
	h.record("set-build %s %s=%s", n.path, name, value)
	return nil
}

// References implements project.Host.
func (h *Host) References(p project.Item) ([]string, error) {
	n, err := h.node(p)
	if err != nil {
		return nil, err
	}
	return slices.Clone(n.project.refs), nil
}

// AddReference implements project.Host.
func (h *Host) AddReference(p project.Item, name string) error {
	n, err := h.node(p)
	if err != nil {
		return err
	}
	proj := n.project
	for _, r := range proj.refs {
		if strings.EqualFold(r, name) {
			return nil
		}
	}
	proj.refs = append(proj.refs, name)
	h.record("add-reference %s %s", proj.path, name)
	return nil
}

func (h *Host) attach(parent *Node, path string, kind project.Kind) *Node {
	n := &Node{
		name:       filepath.Base(path),
		path:       filepath.Clean(path),
		kind:       kind,
		parent:     parent,
		project:    parent.project,
		props:      make(map[string]string),
		buildProps: make(map[string]string),
	}
	parent.children = append(parent.children, n)
	return n
}

func (h *Host) find(path string) *Node {
	var found *Node
	for _, p := range h.projects {
		for _, c := range p.children {
			walk(c, func(n *Node) {
				if found == nil && paths.Equal(n.path, path) {
					found = n
				}
			})
		}
	}
	return found
}

func (h *Host) node(item project.Item) (*Node, error) {
	n, ok := item.(*Node)
	if !ok || n == nil {
		return nil, fmt.Errorf("%w: item %T does not belong to this host", project.ErrUnavailable, item)
	}
	return n, nil
}

func (h *Host) fileNode(item project.Item, name string) (*Node, error) {
	n, err := h.node(item)
	if err != nil {
		return nil, err
	}
	if n.kind != project.KindFile || !slices.Contains(fileProperties, name) {
		return nil, project.ErrUnsupportedProperty
	}
	return n, nil
}

func (h *Host) record(format string, args ...any) {
	h.mutations = append(h.mutations, fmt.Sprintf(format, args...))
}

func (n *Node) child(path string) *Node {
	for _, c := range n.children {
		if paths.Equal(c.path, path) {
			return c
		}
	}
	return nil
}

func walk(n *Node, fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		walk(c, fn)
	}
}

func defaultBuildAction(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cs", ".vb", ".fs":
		return "Compile"
	default:
		return "None"
	}
}
