package commands

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simonhull/quill/output"
	"github.com/simonhull/quill/paths"
	"github.com/simonhull/quill/reconcile"
)

// dataExtensions are the files next to a template that can feed it.
var dataExtensions = []string{".yml", ".yaml", ".json", ".jsonc"}

// regenerateFunc reruns templates and returns the paths the run wrote.
type regenerateFunc func(ctx context.Context, templates []string) ([]string, error)

// watcher regenerates templates when they or their data change. Events are
// collected per template and flushed once a template has been quiet for
// the debounce window. Events for paths the last run wrote are dropped.
type watcher struct {
	templates []string
	data      []string // data files feeding every template
	debounce  time.Duration
	tick      time.Duration
	log       *zap.Logger

	regenerate regenerateFunc

	pending map[string]time.Time
	written map[string]bool
}

func newWatcher(templates, data []string, log *zap.Logger, regenerate regenerateFunc) *watcher {
	return &watcher{
		templates:  templates,
		data:       data,
		debounce:   300 * time.Millisecond,
		tick:       100 * time.Millisecond,
		log:        log,
		regenerate: regenerate,
		pending:    make(map[string]time.Time),
		written:    make(map[string]bool),
	}
}

// affected returns the templates a change to path should rerun.
func (w *watcher) affected(path string) []string {
	for _, d := range w.data {
		if paths.Equal(d, path) {
			return w.templates
		}
	}

	var out []string
	isData := slices.Contains(dataExtensions, strings.ToLower(filepath.Ext(path)))
	for _, t := range w.templates {
		if paths.Equal(t, path) || (isData && paths.SameDir(t, path)) {
			out = append(out, t)
		}
	}
	return out
}

// dirs returns the directories to watch.
func (w *watcher) dirs() []string {
	var out []string
	seen := map[string]bool{}
	for _, p := range slices.Concat(w.templates, w.data) {
		dir := filepath.Dir(p)
		if !seen[paths.Key(dir)] {
			seen[paths.Key(dir)] = true
			out = append(out, dir)
		}
	}
	return out
}

// Run watches until ctx is done.
func (w *watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range w.dirs() {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.log.Debug("watching", zap.String("dir", dir))
	}

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if w.written[paths.Key(event.Name)] {
				continue
			}
			for _, t := range w.affected(event.Name) {
				w.pending[t] = time.Now()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// flush reruns the templates that have settled.
func (w *watcher) flush(ctx context.Context) {
	now := time.Now()
	var due []string
	for t, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			due = append(due, t)
			delete(w.pending, t)
		}
	}
	if len(due) == 0 {
		return
	}
	slices.Sort(due)
	wrote, err := w.regenerate(ctx, due)
	if err != nil {
		w.log.Debug("regeneration failed", zap.Error(err))
	}
	clear(w.written)
	for _, p := range wrote {
		w.written[paths.Key(p)] = true
	}
}

// writtenPaths lists the paths the passes wrote to disk.
func writtenPaths(results []passResult) []string {
	var out []string
	for _, pr := range results {
		if pr.result == nil {
			continue
		}
		for _, act := range pr.result.Actions {
			if act.Kind == reconcile.Write || act.Kind == reconcile.WriteManifest {
				out = append(out, act.Path)
			}
		}
	}
	return out
}

func watchCmd(a *app) *cobra.Command {
	var (
		conflicts conflictFlags
		data      []string
		proj      string
	)

	cmd := &cobra.Command{
		Use:   "watch <template>...",
		Short: "Regenerate templates whenever they or their data change",
		Long: `Run the templates once, then again each time a template or a data file
next to it is saved. Stop with Ctrl+C.

Examples:
  quill watch Models/Entities.tt --data model.yml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := a.templates(args, false)
			if err != nil {
				return err
			}
			dataPaths := make([]string, 0, len(data))
			for _, d := range data {
				p, err := a.abs(d)
				if err != nil {
					return err
				}
				dataPaths = append(dataPaths, p)
			}
			resolver, err := a.resolver(conflicts.force, conflicts.skip, conflicts.diff, conflicts.interactive)
			if err != nil {
				return err
			}
			var owner string
			if proj != "" {
				if owner, err = a.abs(proj); err != nil {
					return err
				}
			}

			regenerate := func(ctx context.Context, ts []string) ([]string, error) {
				results, err := a.execute(ctx, runOptions{templates: ts, data: dataPaths, project: owner, resolver: resolver})
				if err != nil {
					output.Error(err.Error())
					return nil, err
				}
				return writtenPaths(results), a.printResults(results, "Generated")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			_, _ = regenerate(ctx, templates)
			output.Info(fmt.Sprintf("Watching %d template%s, press Ctrl+C to stop", len(templates), plural(len(templates))))
			return newWatcher(templates, dataPaths, a.log.Named("watch"), regenerate).Run(ctx)
		},
	}

	conflicts.register(cmd)
	cmd.Flags().StringArrayVar(&data, "data", nil, "Data file passed to every template; repeatable")
	cmd.Flags().StringVar(&proj, "project", "", "Project file that owns the outputs instead of the template's project")
	return cmd
}
