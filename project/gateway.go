package project

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/simonhull/quill/diag"
)

// Gateway translates reconciliation decisions into host calls. Every host
// failure comes back as a *diag.Error.
type Gateway struct {
	host Host
	scc  SourceControl
	log  *zap.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithSourceControl sets the source control collaborator.
func WithSourceControl(scc SourceControl) GatewayOption {
	return func(g *Gateway) { g.scc = scc }
}

// WithLogger sets the logger mutations are reported to.
func WithLogger(log *zap.Logger) GatewayOption {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGateway wraps a host.
func NewGateway(host Host, opts ...GatewayOption) *Gateway {
	g := &Gateway{host: host, log: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Projects lists every project in the solution.
func (g *Gateway) Projects() ([]Item, error) {
	if g.host == nil {
		return nil, diag.New(diag.HostUnavailable, "", "no project host attached")
	}
	projects, err := g.host.Projects()
	if err != nil {
		return nil, classify(err, "")
	}
	return projects, nil
}

// FindItem returns the item at path, or nil.
func (g *Gateway) FindItem(path string) (Item, error) {
	item, err := g.host.FindItem(path)
	if err != nil {
		return nil, classify(err, path)
	}
	return item, nil
}

// AddFromFile adds an existing file to collection.
func (g *Gateway) AddFromFile(collection Item, path string) (Item, error) {
	item, err := g.host.AddFromFile(collection, path)
	if err != nil {
		return nil, classify(err, path)
	}
	g.log.Debug("added item", zap.String("path", path), zap.String("collection", collection.Path()))
	return item, nil
}

// AddFolder creates a folder under collection. A directory that already
// exists on disk but not in the tree is included instead.
func (g *Gateway) AddFolder(collection Item, name string) (Item, error) {
	dir := filepath.Join(Dir(collection), name)

	item, err := g.host.AddFolder(collection, name)
	if errors.Is(err, ErrFolderExists) {
		item, err = g.host.AddFromDirectory(collection, dir)
	}
	if err != nil {
		return nil, classify(err, dir)
	}
	g.log.Debug("added folder", zap.String("path", dir))
	return item, nil
}

// Delete removes an item and its file.
func (g *Gateway) Delete(item Item) error {
	if err := g.host.Delete(item); err != nil {
		return classify(err, item.Path())
	}
	g.log.Debug("deleted item", zap.String("path", item.Path()), zap.Stringer("kind", item.Kind()))
	return nil
}

// BuildActions lists the build actions an item supports.
func (g *Gateway) BuildActions(item Item) ([]string, error) {
	actions, err := g.host.BuildActions(item)
	if err != nil {
		return nil, classify(err, item.Path())
	}
	return actions, nil
}

// Property reads a named item property.
func (g *Gateway) Property(item Item, name string) (string, error) {
	value, err := g.host.Property(item, name)
	if err != nil {
		return "", classifyProperty(err, item.Path(), name)
	}
	return value, nil
}

// SetProperty writes a named item property.
func (g *Gateway) SetProperty(item Item, name, value string) error {
	if err := g.host.SetProperty(item, name, value); err != nil {
		return classifyProperty(err, item.Path(), name)
	}
	g.log.Debug("set property", zap.String("path", item.Path()), zap.String("name", name), zap.String("value", value))
	return nil
}

// BuildProperty reads a build property of an item.
func (g *Gateway) BuildProperty(item Item, name string) (string, error) {
	value, err := g.host.BuildProperty(item, name)
	if err != nil {
		return "", classifyProperty(err, item.Path(), name)
	}
	return value, nil
}

// SetBuildProperty writes a build property of an item.
func (g *Gateway) SetBuildProperty(item Item, name, value string) error {
	if err := g.host.SetBuildProperty(item, name, value); err != nil {
		return classifyProperty(err, item.Path(), name)
	}
	g.log.Debug("set build property", zap.String("path", item.Path()), zap.String("name", name), zap.String("value", value))
	return nil
}

// References lists the references of a project.
func (g *Gateway) References(project Item) ([]string, error) {
	refs, err := g.host.References(project)
	if err != nil {
		return nil, classify(err, project.Path())
	}
	return refs, nil
}

// AddReference adds a reference to a project.
func (g *Gateway) AddReference(project Item, name string) error {
	if err := g.host.AddReference(project, name); err != nil {
		return classify(err, project.Path())
	}
	g.log.Debug("added reference", zap.String("project", project.Path()), zap.String("reference", name))
	return nil
}

// IsUnderSourceControl reports whether path is tracked. Without a source
// control collaborator nothing is.
func (g *Gateway) IsUnderSourceControl(ctx context.Context, path string) (bool, error) {
	if g.scc == nil {
		return false, nil
	}
	tracked, err := g.scc.IsUnderSourceControl(ctx, path)
	if err != nil {
		return false, diag.Wrap(diag.SourceControl, path, err)
	}
	return tracked, nil
}

// IsCheckedOut reports whether a tracked path is already checked out.
func (g *Gateway) IsCheckedOut(ctx context.Context, path string) (bool, error) {
	if g.scc == nil {
		return true, nil
	}
	out, err := g.scc.IsCheckedOut(ctx, path)
	if err != nil {
		return false, diag.Wrap(diag.SourceControl, path, err)
	}
	return out, nil
}

// CheckOut checks a tracked path out for editing.
func (g *Gateway) CheckOut(ctx context.Context, path string) error {
	if g.scc == nil {
		return nil
	}
	if err := g.scc.CheckOut(ctx, path); err != nil {
		return diag.Wrap(diag.SourceControl, path, err)
	}
	g.log.Debug("checked out", zap.String("path", path))
	return nil
}

// classify maps a host error onto the error taxonomy.
func classify(err error, path string) error {
	var pathErr *fs.PathError
	switch {
	case diag.KindOf(err) != 0:
		return err
	case errors.Is(err, ErrUnsupportedProperty):
		return diag.Wrap(diag.UnsupportedProperty, path, err)
	case errors.As(err, &pathErr):
		return diag.Wrap(diag.IO, path, err)
	default:
		return diag.Wrap(diag.HostUnavailable, path, err)
	}
}

func classifyProperty(err error, path, name string) error {
	if errors.Is(err, ErrUnsupportedProperty) {
		return &diag.Error{
			Kind:   diag.UnsupportedProperty,
			Path:   path,
			Detail: "item has no property " + name,
			Err:    err,
		}
	}
	return classify(err, path)
}
