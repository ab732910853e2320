package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simonhull/quill/output"
)

// conflictFlags are the mutually exclusive overwrite strategies.
type conflictFlags struct {
	force, skip, diff, interactive bool
}

func (f *conflictFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.force, "force", false, "Overwrite changed files without asking")
	cmd.Flags().BoolVar(&f.skip, "skip", false, "Keep files whose content differs from the generated output")
	cmd.Flags().BoolVar(&f.diff, "diff", false, "Show a diff and ask before overwriting")
	cmd.Flags().BoolVar(&f.interactive, "interactive", false, "Choose per file from a menu")
}

func generateCmd(a *app) *cobra.Command {
	var (
		conflicts conflictFlags
		dryRun    bool
		data      []string
		proj      string
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "generate <template>...",
		Short: "Run templates and reconcile their outputs with the solution",
		Long: `Run one or more templates and bring the solution in line with what they
generate.

Outputs whose content is unchanged are left alone. New outputs are added to
the project holding the template, nested under it unless they live in
another directory or project. Outputs a template stopped generating are
removed from disk and from their project.

Examples:
  quill generate Models/Entities.tt
  quill generate Models/*.tt --data model.yml
  quill generate Gen.tt --project ../Shared/Shared.csproj
  quill generate Gen.tt --dry-run --verbose`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := a.templates(args, all)
			if err != nil {
				return err
			}
			resolver, err := a.resolver(conflicts.force, conflicts.skip, conflicts.diff, conflicts.interactive)
			if err != nil {
				return err
			}
			opts := runOptions{templates: templates, data: data, dryRun: dryRun, resolver: resolver}
			if proj != "" {
				if opts.project, err = a.abs(proj); err != nil {
					return err
				}
			}

			output.Verbose(fmt.Sprintf("Generating %d template%s (dry-run=%v, conflicts=%s)", len(templates), plural(len(templates)), dryRun, resolver.Name()))

			results, err := a.execute(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if dryRun {
				output.Info("Dry run: nothing was written")
			}
			return a.printResults(results, "Generated")
		},
	}

	conflicts.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would change without touching disk")
	cmd.Flags().StringArrayVar(&data, "data", nil, "Data file (yml, yaml, json, jsonc) passed to every template; repeatable")
	cmd.Flags().StringVar(&proj, "project", "", "Project file that owns the outputs instead of the template's project")
	cmd.Flags().BoolVar(&all, "all", false, "Run every template below the solution root")
	return cmd
}
