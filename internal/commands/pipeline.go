package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/simonhull/quill/conflict"
	"github.com/simonhull/quill/diag"
	"github.com/simonhull/quill/exec"
	"github.com/simonhull/quill/filesystem"
	"github.com/simonhull/quill/msbuild"
	"github.com/simonhull/quill/output"
	"github.com/simonhull/quill/paths"
	"github.com/simonhull/quill/project"
	"github.com/simonhull/quill/reconcile"
	"github.com/simonhull/quill/record"
	"github.com/simonhull/quill/render"
	"github.com/simonhull/quill/sourcecontrol"
)

// runOptions configures one generation run over several templates.
type runOptions struct {
	templates []string // absolute
	data      []string // extra data files, merged in order
	project   string   // owning project override, absolute
	dryRun    bool
	clean     bool // reconcile an empty output set
	resolver  reconcile.Resolver
}

// passResult pairs a template with what its pass did.
type passResult struct {
	template string
	result   *reconcile.Result
	render   *render.Output
	err      error
}

// report merges the pass's render and reconcile diagnostics, render first.
func (pr passResult) report() *diag.Report {
	r := diag.NewReport(pr.template)
	if pr.render != nil {
		r.Merge(pr.render.Report)
	}
	if pr.result != nil {
		r.Merge(pr.result.Report)
	}
	return r
}

// workspace returns the filesystem a run writes through. A dry run layers
// an in-memory filesystem over a read-only view of the real one.
func (a *app) workspace(dryRun bool) afero.Fs {
	if dryRun {
		return afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(a.fs), afero.NewMemMapFs())
	}
	return a.fs
}

// sourceControl opens the configured provider. Dry runs never touch source
// control. The returned func flushes the provider's stderr.
func (a *app) sourceControl(dryRun bool) (project.SourceControl, func(), error) {
	if dryRun {
		return nil, func() {}, nil
	}
	name := a.cfg.SourceControl.Provider
	stderr := exec.NewPrefixWriter(a.stdout, "   "+name+" | ")
	runner := exec.NewExecutor(&exec.Options{
		Stdout: a.stdout,
		Stderr: stderr,
		Logger: a.log.Named("scc"),
	}).InDir(a.cfg.Solution.Root)

	scc, err := sourcecontrol.DefaultRegistry().Open(name, runner, a.cfg.SourceControl.Commands)
	if err != nil {
		return nil, nil, err
	}
	return scc, func() { _ = stderr.Flush() }, nil
}

// resolver builds the conflict resolver named by flags or configuration.
func (a *app) resolver(force, skip, diff, interactive bool) (*conflict.Resolver, error) {
	name, err := conflict.FromFlags(force, skip, diff, interactive, a.cfg.Conflict.Strategy)
	if err != nil {
		return nil, err
	}
	return conflict.New(name, conflict.WithInput(a.stdin), conflict.WithOutput(a.stdout))
}

// renderer returns the renderer for fs. The one over the real filesystem
// lives as long as the app, so watch cycles reuse parsed templates.
func (a *app) renderer(fs afero.Fs) *render.Renderer {
	if fs == a.fs && a.parsed != nil {
		return a.parsed
	}
	r := render.NewRenderer(fs,
		render.WithExtension(a.cfg.Output.Extension),
		render.WithEncoding(a.cfg.Encoding()),
		render.WithLogger(a.log.Named("render")))
	if fs == a.fs {
		a.parsed = r
	}
	return r
}

// renderAll renders every template concurrently. Reconciliation stays
// sequential; rendering only reads.
func (a *app) renderAll(ctx context.Context, fs afero.Fs, opts runOptions) ([]*render.Output, error) {
	data := map[string]any{}
	for _, f := range opts.data {
		path, err := a.abs(f)
		if err != nil {
			return nil, err
		}
		loaded, err := render.LoadData(fs, path)
		if err != nil {
			return nil, err
		}
		for k, v := range loaded {
			data[k] = v
		}
	}

	r := a.renderer(fs)
	outs := make([]*render.Output, len(opts.templates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, tmpl := range opts.templates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := r.Render(tmpl, data)
			if err != nil {
				return err
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}

// execute renders and reconciles every template. Passes run one after the
// other against a single project host; a failed pass does not stop the
// ones after it.
func (a *app) execute(ctx context.Context, opts runOptions) ([]passResult, error) {
	fs := a.workspace(opts.dryRun)

	var outs []*render.Output
	if !opts.clean {
		var err error
		if outs, err = a.renderAll(ctx, fs, opts); err != nil {
			return nil, err
		}
	}

	scc, flush, err := a.sourceControl(opts.dryRun)
	if err != nil {
		return nil, err
	}
	defer flush()
	host, err := msbuild.Discover(fs, a.cfg.Solution.Root, a.cfg.WalkOptions(),
		msbuild.WithSourceControl(scc),
		msbuild.WithLogger(a.log.Named("msbuild")))
	if err != nil {
		return nil, err
	}
	gw := project.NewGateway(host, project.WithSourceControl(scc), project.WithLogger(a.log.Named("project")))
	engine := reconcile.New(gw, fs, reconcile.WithLogger(a.log.Named("reconcile")), reconcile.WithResolver(opts.resolver))

	results := make([]passResult, 0, len(opts.templates))
	for i, tmpl := range opts.templates {
		pr := passResult{template: tmpl}
		var records []record.Record
		if outs != nil {
			pr.render = outs[i]
			records = outs[i].Records
		}
		pass := reconcile.Pass{Template: tmpl, Project: opts.project}
		pr.result, pr.err = engine.Run(ctx, pass, records)
		results = append(results, pr)
		a.log.Debug("pass finished", zap.String("template", tmpl), zap.Error(pr.err))
	}
	return results, nil
}

// templates resolves template arguments to absolute paths. With all set
// and no arguments, every template below the solution root is used.
func (a *app) templates(args []string, all bool) ([]string, error) {
	if all {
		if len(args) > 0 {
			return nil, fmt.Errorf("--all cannot be combined with template arguments")
		}
		found, err := filesystem.DiscoverTemplates(a.fs, a.cfg.Solution.Root, a.cfg.WalkOptions())
		if err != nil {
			return nil, fmt.Errorf("discovering templates: %w", err)
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no templates found below %s", a.cfg.Solution.Root)
		}
		args = found
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("no templates given (pass template paths or --all)")
	}

	out := make([]string, 0, len(args))
	seen := make(map[string]bool, len(args))
	for _, arg := range args {
		path, err := a.abs(arg)
		if err != nil {
			return nil, err
		}
		if seen[paths.Key(path)] {
			continue
		}
		seen[paths.Key(path)] = true
		out = append(out, path)
	}
	return out, nil
}

// printResults prints each pass: its actions, then its warnings and errors.
// It returns an error when any pass failed.
func (a *app) printResults(results []passResult, verb string) error {
	for _, pr := range results {
		name := a.display(pr.template)
		if pr.result != nil {
			for _, act := range pr.result.Actions {
				if !act.Kind.Mutates() && !a.verbose {
					continue
				}
				output.Step(formatAction(act, a.display))
			}
		}
		output.Report(pr.report())

		if pr.err != nil {
			output.Error(fmt.Sprintf("%s failed", name))
			continue
		}
		changed := pr.result.Mutations()
		if changed == 0 {
			output.Success(fmt.Sprintf("%s is up to date", name))
		} else {
			output.Success(fmt.Sprintf("%s %s: %d change%s", verb, name, changed, plural(changed)))
		}
	}
	return failures(results)
}

// display shortens path for terminal output.
func (a *app) display(path string) string {
	if !paths.IsWithin(a.cfg.Solution.Root, path) {
		return path
	}
	rel, err := paths.RelativeToDir(a.cfg.Solution.Root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func formatAction(act reconcile.Action, display func(string) string) string {
	line := fmt.Sprintf("%-9s %s", act.Kind, display(act.Path))
	if act.Detail != "" {
		line += "  (" + act.Detail + ")"
	}
	return line
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
