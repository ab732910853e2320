// Package msbuild is a project host backed by MSBuild project files
// (.csproj, .vbproj, .fsproj).
//
// The host reads explicit item lists: every ItemGroup child with an Include
// naming a file becomes a file item, Folder items and the directories of
// included files become folders, and DependentUpon metadata nests one file
// under another. Every mutation rewrites the project file immediately.
//
// Items matched only by SDK default globs are not listed; outputs added
// through the host are always written as explicit items.
//
// With source control attached, a tracked project file is checked out once,
// before the host first rewrites it.
package msbuild

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/simonhull/quill/diag"
	"github.com/simonhull/quill/filesystem"
	"github.com/simonhull/quill/paths"
	"github.com/simonhull/quill/project"
)

// DefaultBuildActions are the item types offered for files.
var DefaultBuildActions = []string{
	"None", "Compile", "Content", "EmbeddedResource",
	"Page", "Resource", "ApplicationDefinition",
}

// Item metadata names for the well-known properties.
var propertyMetadata = map[string]string{
	project.PropCopyToOutputDirectory: "CopyToOutputDirectory",
	project.PropCustomTool:            "Generator",
	project.PropCustomToolNamespace:   "CustomToolNamespace",
}

// Host is a project.Host over MSBuild project files.
type Host struct {
	fs       afero.Fs
	projects []*projectFile
	actions  []string
	scc      project.SourceControl
	editable map[string]bool // project files already checked out
	log      *zap.Logger
}

var _ project.Host = (*Host)(nil)

// Option configures a Host.
type Option func(*Host)

// WithBuildActions replaces the build actions files support.
func WithBuildActions(actions ...string) Option {
	return func(h *Host) { h.actions = actions }
}

// WithSourceControl checks tracked project files out before they are
// rewritten.
func WithSourceControl(scc project.SourceControl) Option {
	return func(h *Host) { h.scc = scc }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(h *Host) {
		if log != nil {
			h.log = log
		}
	}
}

// Open loads the given project files.
func Open(fs afero.Fs, projectPaths []string, opts ...Option) (*Host, error) {
	h := &Host{fs: fs, actions: DefaultBuildActions, editable: make(map[string]bool), log: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}

	for _, p := range projectPaths {
		pf, err := loadProjectFile(fs, filepath.Clean(p))
		if err != nil {
			return nil, fmt.Errorf("opening project: %w", err)
		}
		h.projects = append(h.projects, pf)
	}
	h.log.Debug("loaded projects", zap.Int("count", len(h.projects)))
	return h, nil
}

// Discover loads every project file below root.
func Discover(fs afero.Fs, root string, walk filesystem.WalkOptions, opts ...Option) (*Host, error) {
	found, err := filesystem.DiscoverProjects(fs, root, walk)
	if err != nil {
		return nil, fmt.Errorf("discovering projects: %w", err)
	}
	return Open(fs, found, opts...)
}

// Projects implements project.Host.
func (h *Host) Projects() ([]project.Item, error) {
	items := make([]project.Item, len(h.projects))
	for i, p := range h.projects {
		items[i] = h.root(p)
	}
	return items, nil
}

// FindItem implements project.Host.
func (h *Host) FindItem(path string) (project.Item, error) {
	for _, p := range h.projects {
		if e := p.file(path); e != nil {
			return h.handle(p, e.path, project.KindFile), nil
		}
		if dir, ok := p.folders()[paths.Key(path)]; ok {
			return h.handle(p, dir, project.KindFolder), nil
		}
	}
	return nil, nil
}

// AddFromFile implements project.Host. Adding under a file nests the new
// item with DependentUpon.
func (h *Host) AddFromFile(collection project.Item, path string) (project.Item, error) {
	parent, err := h.item(collection)
	if err != nil {
		return nil, err
	}
	if _, err := h.fs.Stat(path); err != nil {
		return nil, err
	}
	p := parent.proj
	path = filepath.Clean(path)

	e := p.file(path)
	if e == nil {
		include, err := p.include(path, false)
		if err != nil {
			return nil, err
		}
		e = &entry{elem: p.addItem(defaultBuildAction(path), include), path: path, kind: project.KindFile}
	}

	dependent := ""
	if parent.kind == project.KindFile {
		if dependent, err = paths.RelativeToDir(filepath.Dir(path), parent.path); err != nil {
			return nil, err
		}
		dependent = strings.ReplaceAll(dependent, "/", `\`)
	}
	e.elem.setMetadata("DependentUpon", dependent)
	h.dropFolderItem(p, filepath.Dir(path))

	if err := h.save(p); err != nil {
		return nil, err
	}
	h.log.Debug("added file", zap.String("project", p.path), zap.String("path", path))
	return h.handle(p, path, project.KindFile), nil
}

// AddFromDirectory implements project.Host.
func (h *Host) AddFromDirectory(collection project.Item, path string) (project.Item, error) {
	parent, err := h.item(collection)
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
	return h.includeFolder(parent.proj, filepath.Clean(path))
}

// AddFolder implements project.Host.
func (h *Host) AddFolder(collection project.Item, name string) (project.Item, error) {
	parent, err := h.item(collection)
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
	return h.includeFolder(parent.proj, dir)
}

func (h *Host) includeFolder(p *projectFile, dir string) (project.Item, error) {
	if !p.hasFolder(dir) {
		include, err := p.include(dir, true)
		if err != nil {
			return nil, err
		}
		p.addItem(folderItem, include)
		if err := h.save(p); err != nil {
			return nil, err
		}
		h.log.Debug("added folder", zap.String("project", p.path), zap.String("path", dir))
	}
	return h.handle(p, dir, project.KindFolder), nil
}

// Delete implements project.Host. Deleting a file removes the items nested
// under it too; deleting a folder removes everything below it. Files are
// removed from disk, directories only once empty.
func (h *Host) Delete(item project.Item) error {
	it, err := h.item(item)
	if err != nil {
		return err
	}
	if it.kind == project.KindProject {
		return fmt.Errorf("cannot delete project %s", it.path)
	}
	p := it.proj

	doomed := map[string]bool{}
	project.Walk(it, func(d project.Item) {
		doomed[paths.Key(d.Path())] = true
	})

	var errs []error
	for _, e := range p.entries() {
		inside := it.kind == project.KindFolder && paths.IsWithin(it.path, e.path)
		if !doomed[paths.Key(e.path)] && !inside {
			continue
		}
		p.remove(e)
		if e.kind == project.KindFile {
			if err := h.fs.Remove(e.path); err != nil && !os.IsNotExist(err) {
				errs = append(errs, err)
			}
		}
	}
	if it.kind == project.KindFolder {
		if empty, _ := afero.IsEmpty(h.fs, it.path); empty {
			_ = h.fs.Remove(it.path)
		}
	}

	if err := h.save(p); err != nil {
		errs = append(errs, err)
	}
	h.log.Debug("deleted", zap.String("project", p.path), zap.String("path", it.path))
	return errors.Join(errs...)
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
	e, err := h.fileEntry(item, name)
	if err != nil {
		return "", err
	}
	if name == project.PropBuildAction {
		return e.elem.name(), nil
	}
	return e.elem.metadata(propertyMetadata[name]), nil
}

// SetProperty implements project.Host. Setting the build action changes
// the item type.
func (h *Host) SetProperty(item project.Item, name, value string) error {
	e, err := h.fileEntry(item, name)
	if err != nil {
		return err
	}
	if name == project.PropBuildAction {
		if value == "" {
			return fmt.Errorf("empty build action for %s", e.path)
		}
		e.elem.XMLName.Local = value
	} else {
		e.elem.setMetadata(propertyMetadata[name], value)
	}
	return h.save(item.(*Item).proj)
}

// BuildProperty implements project.Host. Files read item metadata, projects
// read their first unconditioned PropertyGroup.
func (h *Host) BuildProperty(item project.Item, name string) (string, error) {
	it, err := h.item(item)
	if err != nil {
		return "", err
	}
	switch it.kind {
	case project.KindFile:
		e := it.proj.file(it.path)
		if e == nil {
			return "", fmt.Errorf("%s is no longer in %s", it.path, it.proj.path)
		}
		return e.elem.metadata(name), nil
	case project.KindProject:
		if g := it.proj.propertyGroup(false); g != nil {
			return g.metadata(name), nil
		}
		return "", nil
	default:
		return "", project.ErrUnsupportedProperty
	}
}

// SetBuildProperty implements project.Host.
func (h *Host) SetBuildProperty(item project.Item, name, value string) error {
	it, err := h.item(item)
	if err != nil {
		return err
	}
	switch it.kind {
	case project.KindFile:
		e := it.proj.file(it.path)
		if e == nil {
			return fmt.Errorf("%s is no longer in %s", it.path, it.proj.path)
		}
		e.elem.setMetadata(name, value)
	case project.KindProject:
		it.proj.propertyGroup(true).setMetadata(name, value)
	default:
		return project.ErrUnsupportedProperty
	}
	return h.save(it.proj)
}

// References implements project.Host.
func (h *Host) References(p project.Item) ([]string, error) {
	it, err := h.item(p)
	if err != nil {
		return nil, err
	}
	return it.proj.references(), nil
}

// AddReference implements project.Host.
func (h *Host) AddReference(p project.Item, name string) error {
	it, err := h.item(p)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(it.proj.references(), func(r string) bool { return strings.EqualFold(r, name) }) {
		return nil
	}
	it.proj.addItem("Reference", name)
	return h.save(it.proj)
}

func (h *Host) save(p *projectFile) error {
	if err := h.checkOut(p.path); err != nil {
		return err
	}
	if err := p.save(h.fs); err != nil {
		return fmt.Errorf("saving %s: %w", p.path, err)
	}
	return nil
}

// checkOut makes a tracked project file writable. Each file is checked at
// most once per host.
func (h *Host) checkOut(path string) error {
	key := paths.Key(path)
	if h.scc == nil || h.editable[key] {
		return nil
	}
	ctx := context.Background()
	tracked, err := h.scc.IsUnderSourceControl(ctx, path)
	if err != nil {
		return diag.Wrap(diag.SourceControl, path, err)
	}
	if tracked {
		out, err := h.scc.IsCheckedOut(ctx, path)
		if err != nil {
			return diag.Wrap(diag.SourceControl, path, err)
		}
		if !out {
			if err := h.scc.CheckOut(ctx, path); err != nil {
				return diag.Wrap(diag.SourceControl, path, err)
			}
			h.log.Debug("checked out project", zap.String("project", path))
		}
	}
	h.editable[key] = true
	return nil
}

// dropFolderItem removes the explicit Folder item for dir once a file lives
// there; the directory stays visible through the file.
func (h *Host) dropFolderItem(p *projectFile, dir string) {
	for _, e := range p.entries() {
		if e.kind == project.KindFolder && paths.Equal(e.path, dir) {
			p.remove(e)
		}
	}
}

func (h *Host) root(p *projectFile) *Item {
	return &Item{host: h, proj: p, path: p.path, kind: project.KindProject}
}

func (h *Host) handle(p *projectFile, path string, kind project.Kind) *Item {
	return &Item{host: h, proj: p, path: path, kind: kind}
}

// collection returns the folder for dir, or the project root when dir is
// the project directory or lies outside it.
func (h *Host) collection(p *projectFile, dir string) project.Item {
	if folder, ok := p.folders()[paths.Key(dir)]; ok {
		return h.handle(p, folder, project.KindFolder)
	}
	return h.root(p)
}

func (h *Host) item(item project.Item) (*Item, error) {
	it, ok := item.(*Item)
	if !ok || it == nil || it.host != h {
		return nil, fmt.Errorf("%w: item %T does not belong to this host", project.ErrUnavailable, item)
	}
	return it, nil
}

func (h *Host) fileEntry(item project.Item, name string) (*entry, error) {
	it, err := h.item(item)
	if err != nil {
		return nil, err
	}
	if _, known := propertyMetadata[name]; it.kind != project.KindFile || (!known && name != project.PropBuildAction) {
		return nil, project.ErrUnsupportedProperty
	}
	e := it.proj.file(it.path)
	if e == nil {
		return nil, fmt.Errorf("%s is no longer in %s", it.path, it.proj.path)
	}
	return e, nil
}

func defaultBuildAction(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cs", ".vb", ".fs":
		return "Compile"
	case ".resx":
		return "EmbeddedResource"
	case ".xaml":
		return "Page"
	default:
		return "None"
	}
}
