package commands

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/simonhull/quill/conflict"
	"github.com/simonhull/quill/output"
	"github.com/simonhull/quill/reconcile"
)

// diffCollector records a diff for every file a pass would overwrite and
// lets the write go ahead. Plans always run dry.
type diffCollector struct {
	mu    sync.Mutex
	plain bool
	diffs []string
}

func (d *diffCollector) Resolve(path string, existing, generated []byte) (conflict.Resolution, error) {
	diff := conflict.Diff(path, existing, generated, &conflict.DiffOptions{Plain: d.plain})
	d.mu.Lock()
	d.diffs = append(d.diffs, diff)
	d.mu.Unlock()
	return conflict.Overwrite, nil
}

// planEntry is the YAML shape of one planned pass.
type planEntry struct {
	Template string             `yaml:"template"`
	Actions  []reconcile.Action `yaml:"actions"`
	Warnings []string           `yaml:"warnings,omitempty"`
	Errors   []string           `yaml:"errors,omitempty"`
}

func planCmd(a *app) *cobra.Command {
	var (
		format   string
		showDiff bool
		data     []string
		proj     string
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "plan <template>...",
		Short: "Show what generate would do without touching disk",
		Long: `Render templates and reconcile them against an in-memory copy of the
solution, then print every action the run would take.

Examples:
  quill plan Gen.tt
  quill plan Gen.tt --diff
  quill plan Gen.tt --format yaml > plan.yml`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "yaml" {
				return fmt.Errorf("unknown format %q (want text or yaml)", format)
			}
			templates, err := a.templates(args, all)
			if err != nil {
				return err
			}

			collector := &diffCollector{plain: format == "yaml"}
			opts := runOptions{templates: templates, data: data, dryRun: true, resolver: collector}
			if proj != "" {
				if opts.project, err = a.abs(proj); err != nil {
					return err
				}
			}

			results, err := a.execute(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if format == "yaml" {
				return a.printPlanYAML(results)
			}
			for _, pr := range results {
				output.Info(a.display(pr.template))
				for _, act := range pr.result.Actions {
					output.Step(formatAction(act, a.display))
				}
				output.Report(pr.report())
			}
			if showDiff {
				for _, d := range collector.diffs {
					fmt.Fprintln(a.stdout, d)
				}
			}
			return failures(results)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or yaml")
	cmd.Flags().BoolVar(&showDiff, "diff", false, "Show a diff for every file that would be overwritten")
	cmd.Flags().StringArrayVar(&data, "data", nil, "Data file passed to every template; repeatable")
	cmd.Flags().StringVar(&proj, "project", "", "Project file that owns the outputs instead of the template's project")
	cmd.Flags().BoolVar(&all, "all", false, "Run every template below the solution root")
	return cmd
}

func (a *app) printPlanYAML(results []passResult) error {
	entries := make([]planEntry, 0, len(results))
	for _, pr := range results {
		e := planEntry{Template: pr.template, Actions: pr.result.Actions}
		report := pr.report()
		for _, w := range report.Warnings() {
			e.Warnings = append(e.Warnings, w.Message)
		}
		for _, x := range report.Errors() {
			e.Errors = append(e.Errors, x.Message)
		}
		entries = append(entries, e)
	}

	enc := yaml.NewEncoder(a.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return failures(results)
}

func failures(results []passResult) error {
	failed := 0
	for _, pr := range results {
		if pr.err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d template%s failed", failed, len(results), plural(len(results)))
	}
	return nil
}
