package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/simonhull/quill/conflict"
	"github.com/simonhull/quill/diag"
	"github.com/simonhull/quill/manifest"
	"github.com/simonhull/quill/paths"
	"github.com/simonhull/quill/project"
	"github.com/simonhull/quill/record"
)

// Pass is the context of one reconciliation run.
type Pass struct {
	Template string // absolute path of the template file
	Project  string // owning project file; empty means the project holding the template
	WorkDir  string // outputs elsewhere go to the project root; empty means the template's directory
}

// Resolver decides what to do when an output would overwrite a file whose
// content differs. *conflict.Resolver implements it.
type Resolver interface {
	Resolve(path string, existing, generated []byte) (conflict.Resolution, error)
}

// Engine reconciles the outputs of a pass with the filesystem and the
// project tree. An Engine is not safe for concurrent use: run one pass at
// a time per solution.
type Engine struct {
	gw       *project.Gateway
	fs       afero.Fs
	log      *zap.Logger
	resolver Resolver
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithResolver sets the conflict resolver. Without one, differing files
// are overwritten.
func WithResolver(r Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// New creates an engine writing through fs and mutating the project tree
// through gw.
func New(gw *project.Gateway, fs afero.Fs, opts ...Option) *Engine {
	e := &Engine{gw: gw, fs: fs, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run holds the state of one pass.
type run struct {
	*Engine
	ctx      context.Context
	res      *Result
	snap     *project.Snapshot
	scope    project.Scope
	template string
	manifest string
	current  map[string]bool
	deleted  map[string]bool
}

// Run reconciles records, the finalized outputs of one pass. Relative
// record paths and projects are resolved against the template's directory.
//
// Validation happens before any mutation. A failure after that aborts the
// remaining work without undoing what was already done; the returned Result
// lists every action taken either way and its Report holds the error.
func (e *Engine) Run(ctx context.Context, pass Pass, records []record.Record) (*Result, error) {
	res := newResult(pass.Template)
	r := &run{
		Engine:  e,
		ctx:     ctx,
		res:     res,
		current: make(map[string]bool),
		deleted: make(map[string]bool),
	}

	if err := r.execute(pass, records); err != nil {
		res.Report.Fail(err)
		e.log.Debug("pass failed", zap.String("template", pass.Template), zap.Error(err))
		return res, diag.WithTemplate(err, pass.Template)
	}
	e.log.Debug("pass complete",
		zap.String("template", pass.Template),
		zap.Int("actions", len(res.Actions)),
		zap.Int("mutations", res.Mutations()))
	return res, nil
}

func (r *run) execute(pass Pass, records []record.Record) error {
	if err := r.ctx.Err(); err != nil {
		return diag.Wrap(diag.Cancelled, pass.Template, err)
	}

	planned, err := r.prepare(pass, records)
	if err != nil {
		return err
	}

	if err := r.deleteStaleFromManifest(); err != nil {
		return err
	}
	if err := r.deleteStaleChildren(); err != nil {
		return err
	}

	for _, p := range planned {
		if err := r.reconcile(p); err != nil {
			return err
		}
	}
	return nil
}

// output is a record together with the collection it was placed in.
type output struct {
	record.Record
	placement project.Placement
}

// prepare validates and places the outputs to reconcile, including the
// manifest record when one is needed. It has no side effects.
func (r *run) prepare(pass Pass, records []record.Record) ([]output, error) {
	if !filepath.IsAbs(pass.Template) {
		return nil, diag.New(diag.PathResolution, pass.Template, "template path must be absolute")
	}
	r.template = filepath.Clean(pass.Template)
	r.manifest = manifest.PathFor(r.template)
	templateDir := filepath.Dir(r.template)

	snap, err := project.TakeSnapshot(r.gw)
	if err != nil {
		return nil, err
	}
	r.snap = snap

	templateItem := snap.Item(r.template)
	if templateItem == nil {
		if templateItem, err = r.gw.FindItem(r.template); err != nil {
			return nil, err
		}
	}
	if templateItem == nil {
		return nil, diag.New(diag.PathResolution, r.template, "template is not part of any project")
	}

	templateProject := templateItem.Project()
	if pass.Project != "" {
		templateProject = snap.Project(paths.Normalize(templateDir, pass.Project))
		if templateProject == nil {
			return nil, diag.New(diag.TargetProjectNotFound, pass.Project, "template project is not part of the solution")
		}
	}

	workDir := pass.WorkDir
	if workDir == "" {
		workDir = templateDir
	}
	r.scope = project.Scope{
		Template:        templateItem,
		TemplateProject: templateProject,
		WorkDir:         paths.Normalize(templateDir, workDir),
	}

	outputs := make([]record.Record, 0, len(records)+1)
	for _, rec := range records {
		if strings.TrimSpace(rec.Path) == "" {
			return nil, diag.New(diag.InvalidOutput, "", "output has no path")
		}
		rec.Path = paths.Normalize(templateDir, rec.Path)
		if rec.Project != "" {
			rec.Project = paths.Normalize(templateDir, rec.Project)
			if snap.Project(rec.Project) == nil {
				return nil, diag.New(diag.TargetProjectNotFound, rec.Project, "project for %s is not part of the solution", rec.Path)
			}
		}

		key := paths.Key(rec.Path)
		if r.current[key] {
			return nil, diag.New(diag.InvalidOutput, rec.Path, "generated more than once in the same pass")
		}
		if key == paths.Key(r.manifest) {
			return nil, diag.New(diag.InvalidOutput, rec.Path, "output collides with the manifest")
		}
		r.current[key] = true
		outputs = append(outputs, rec)
	}

	if manifest.ShouldCreate(outputs, templateDir, templateProject.Path()) {
		m, err := manifest.Record(r.template, outputs)
		if err != nil {
			return nil, err
		}
		r.current[paths.Key(m.Path)] = true
		outputs = append(outputs, m)
	}

	planned := make([]output, len(outputs))
	for i, rec := range outputs {
		placement, err := project.Place(rec, r.scope, snap)
		if err != nil {
			return nil, err
		}
		planned[i] = output{Record: rec, placement: placement}
	}
	return planned, nil
}

// deleteStaleFromManifest removes items the previous pass listed in the
// manifest and this pass no longer generates.
func (r *run) deleteStaleFromManifest() error {
	previous, err := manifest.Load(r.fs, r.manifest, filepath.Dir(r.template))
	if err != nil {
		return diag.Wrap(diag.IO, r.manifest, err)
	}

	for _, p := range previous {
		key := paths.Key(p)
		if r.current[key] || r.deleted[key] {
			continue
		}
		item := r.snap.Item(p)
		if item == nil {
			r.log.Debug("stale output not in project", zap.String("path", p))
			continue
		}
		if err := r.delete(item); err != nil {
			return err
		}
	}
	return nil
}

// deleteStaleChildren removes items nested under the template that this
// pass did not generate. The template's primary output is never removed.
func (r *run) deleteStaleChildren() error {
	primary := paths.TrimExt(r.template)
	for _, child := range r.scope.Template.Children() {
		key := paths.Key(child.Path())
		if r.current[key] || r.deleted[key] {
			continue
		}
		if strings.EqualFold(paths.TrimExt(child.Path()), primary) {
			continue
		}
		if err := r.delete(child); err != nil {
			return err
		}
	}
	return nil
}

// delete removes an item, then every organizational folder it leaves empty.
func (r *run) delete(item project.Item) error {
	project.Walk(item, func(d project.Item) {
		r.deleted[paths.Key(d.Path())] = true
	})

	parent := item.Parent()
	if err := r.gw.Delete(item); err != nil {
		return err
	}
	r.res.add(DeleteItem, item.Path(), "")

	for parent != nil && parent.Kind() == project.KindFolder &&
		parent.SupportsAccurateEmptyCount() && len(parent.Children()) == 0 {
		next := parent.Parent()
		if err := r.gw.Delete(parent); err != nil {
			return err
		}
		r.deleted[paths.Key(parent.Path())] = true
		r.res.add(DeleteFolder, parent.Path(), "")
		parent = next
	}
	return nil
}

// reconcile writes one output and brings its project item in line.
func (r *run) reconcile(out output) error {
	data, err := out.Bytes()
	if err != nil {
		return diag.Wrap(diag.InvalidOutput, out.Path, fmt.Errorf("encoding as %s: %w", out.Encoding.Name(), err))
	}

	existing, err := afero.ReadFile(r.fs, out.Path)
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return diag.Wrap(diag.IO, out.Path, err)
	}

	switch {
	case exists && out.PreserveExisting:
		r.log.Debug("skipped write", zap.String("path", out.Path), zap.String("reason", "preserved"))
		r.res.add(SkipPreserved, out.Path, "")
		return nil
	case exists && bytes.Equal(existing, data):
		r.log.Debug("skipped write", zap.String("path", out.Path), zap.String("reason", "unchanged"))
		r.res.add(SkipUnchanged, out.Path, "")
	default:
		if err := r.write(out, data, existing, exists); err != nil {
			return err
		}
	}

	item, err := r.locate(out)
	if err != nil {
		return err
	}
	return r.applyMetadata(item, out.Record)
}

// write puts data on disk, asking the resolver first when it would replace
// different content.
func (r *run) write(out output, data, existing []byte, exists bool) error {
	isManifest := paths.Equal(out.Path, r.manifest)

	if exists && !isManifest && r.resolver != nil {
		resolution, err := r.resolver.Resolve(out.Path, existing, data)
		if err != nil {
			return diag.Wrap(diag.Cancelled, out.Path, err)
		}
		switch resolution {
		case conflict.Overwrite:
		case conflict.Skip:
			r.log.Debug("skipped write", zap.String("path", out.Path), zap.String("reason", "conflict"))
			r.res.add(SkipConflict, out.Path, "")
			return nil
		default:
			return diag.New(diag.Cancelled, out.Path, "cancelled at conflict")
		}
	}

	if exists {
		if err := r.checkOut(out.Path); err != nil {
			return err
		}
	}

	if err := r.fs.MkdirAll(filepath.Dir(out.Path), 0755); err != nil {
		return diag.Wrap(diag.IO, out.Path, err)
	}
	if err := afero.WriteFile(r.fs, out.Path, data, 0644); err != nil {
		return diag.Wrap(diag.IO, out.Path, err)
	}

	kind := Write
	if isManifest {
		kind = WriteManifest
	}
	r.log.Debug("wrote output", zap.String("path", out.Path), zap.Int("bytes", len(data)), zap.String("encoding", out.Encoding.Name()))
	r.res.add(kind, out.Path, out.Encoding.Name())
	return nil
}

func (r *run) checkOut(path string) error {
	tracked, err := r.gw.IsUnderSourceControl(r.ctx, path)
	if err != nil || !tracked {
		return err
	}
	out, err := r.gw.IsCheckedOut(r.ctx, path)
	if err != nil || out {
		return err
	}
	if err := r.gw.CheckOut(r.ctx, path); err != nil {
		return err
	}
	r.res.add(CheckOut, path, "")
	return nil
}

// locate finds the output's project item, adding it or moving it into the
// collection it belongs to.
func (r *run) locate(out output) (project.Item, error) {
	item := r.snap.Item(out.Path)
	if item == nil {
		var err error
		if item, err = r.gw.FindItem(out.Path); err != nil {
			return nil, err
		}
	}

	switch {
	case item == nil:
		collection, err := r.ensure(out.placement)
		if err != nil {
			return nil, err
		}
		if item, err = r.gw.AddFromFile(collection, out.Path); err != nil {
			return nil, err
		}
		r.res.add(AddItem, out.Path, collection.Path())
		return item, nil
	case !belongs(item, out.placement):
		return r.move(item, out.placement)
	default:
		return item, nil
	}
}

func (r *run) ensure(p project.Placement) (project.Item, error) {
	collection, created, err := r.gw.Ensure(p)
	for _, f := range created {
		r.res.add(CreateFolder, f.Path(), "")
	}
	return collection, err
}

// belongs reports whether item already sits in the collection p resolves to.
func belongs(item project.Item, p project.Placement) bool {
	parent := item.Parent()
	if parent == nil {
		return false
	}

	segments := paths.Segments(p.RelPath)
	if len(segments) <= 1 {
		return parent.Kind() == p.Root.Kind() && paths.Equal(parent.Path(), p.Root.Path())
	}
	want := filepath.Join(append([]string{project.Dir(p.Root)}, segments[:len(segments)-1]...)...)
	return parent.Kind() == project.KindFolder && paths.Equal(parent.Path(), want)
}

// move re-homes an item: the file is copied to a backup and verified, the
// old item is deleted, the backup is renamed back and the file is added to
// the new collection. A failure leaves the backup on disk and names it,
// unless the delete failed with the original still intact.
func (r *run) move(item project.Item, p project.Placement) (project.Item, error) {
	path := item.Path()
	from := "<none>"
	if parent := item.Parent(); parent != nil {
		from = parent.Path()
	}

	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, diag.Wrap(diag.IO, path, err)
	}
	backup := fmt.Sprintf("%s.%s.bak", path, uuid.NewString())
	if err := afero.WriteFile(r.fs, backup, data, 0644); err != nil {
		return nil, diag.Wrap(diag.IO, path, fmt.Errorf("writing backup: %w", err))
	}
	copied, err := afero.ReadFile(r.fs, backup)
	if err != nil || !bytes.Equal(copied, data) {
		_ = r.fs.Remove(backup)
		return nil, diag.New(diag.IO, path, "backup %s does not match the original", backup)
	}

	interrupted := func(err error) error {
		return fmt.Errorf("move interrupted, content kept at %s: %w", backup, err)
	}

	if err := r.gw.Delete(item); err != nil {
		if current, readErr := afero.ReadFile(r.fs, path); readErr == nil && bytes.Equal(current, data) {
			_ = r.fs.Remove(backup)
			return nil, err
		}
		return nil, interrupted(err)
	}
	if err := r.fs.Rename(backup, path); err != nil {
		return nil, diag.Wrap(diag.IO, path, interrupted(err))
	}

	collection, err := r.ensure(p)
	if err != nil {
		return nil, err
	}
	moved, err := r.gw.AddFromFile(collection, path)
	if err != nil {
		return nil, err
	}
	r.res.add(MoveItem, path, from+" -> "+collection.Path())
	return moved, nil
}

// applyMetadata sets the properties an output asks for, touching only
// values that differ. The build action is validated before anything is set.
func (r *run) applyMetadata(item project.Item, out record.Record) error {
	md := out.Metadata
	if md.IsZero() {
		return nil
	}

	buildAction := md.BuildAction
	if buildAction != "" {
		supported, err := r.gw.BuildActions(item)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(supported, func(a string) bool { return strings.EqualFold(a, buildAction) })
		if i < 0 {
			return diag.New(diag.UnsupportedBuildAction, out.Path, "build action %q is not one of [%s]", buildAction, strings.Join(supported, ", "))
		}
		buildAction = supported[i]
	}

	for _, p := range []record.Property{
		{Name: project.PropBuildAction, Value: buildAction},
		{Name: project.PropCopyToOutputDirectory, Value: md.CopyToOutputDirectory},
		{Name: project.PropCustomTool, Value: md.CustomTool},
		{Name: project.PropCustomToolNamespace, Value: md.CustomToolNamespace},
	} {
		if p.Value == "" {
			continue
		}
		current, err := r.gw.Property(item, p.Name)
		if err != nil {
			return err
		}
		if current == p.Value {
			continue
		}
		if err := r.gw.SetProperty(item, p.Name, p.Value); err != nil {
			return err
		}
		r.res.add(SetProperty, out.Path, p.Name+"="+p.Value)
	}

	for _, p := range md.BuildProperties {
		current, err := r.gw.BuildProperty(item, p.Name)
		if err != nil {
			return err
		}
		if current == p.Value {
			continue
		}
		if err := r.gw.SetBuildProperty(item, p.Name, p.Value); err != nil {
			return err
		}
		r.res.add(SetBuildProperty, out.Path, p.Name+"="+p.Value)
	}

	if len(md.References) == 0 {
		return nil
	}
	owner := item.Project()
	refs, err := r.gw.References(owner)
	if err != nil {
		return err
	}
	for _, ref := range md.References {
		if slices.ContainsFunc(refs, func(have string) bool { return strings.EqualFold(have, ref) }) {
			continue
		}
		if err := r.gw.AddReference(owner, ref); err != nil {
			return err
		}
		refs = append(refs, ref)
		r.res.add(AddReference, owner.Path(), ref)
	}
	return nil
}
