package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simonhull/quill/input"
	"github.com/simonhull/quill/output"
)

func cleanCmd(a *app) *cobra.Command {
	var yes, dryRun bool

	cmd := &cobra.Command{
		Use:   "clean <template>...",
		Short: "Remove every output a template generated",
		Long: `Delete the outputs listed in each template's manifest and every item
nested under the template except its main output, from disk and from their
projects. Folders left empty are removed too.

Examples:
  quill clean Gen.tt
  quill clean Gen.tt --yes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := a.templates(args, false)
			if err != nil {
				return err
			}

			if !yes && !dryRun {
				msg := fmt.Sprintf("Remove the generated outputs of %d template%s?", len(templates), plural(len(templates)))
				if !input.ConfirmFrom(a.stdin, a.stdout, msg, false) {
					output.Info("Nothing removed")
					return nil
				}
			}

			results, err := a.execute(cmd.Context(), runOptions{templates: templates, dryRun: dryRun, clean: true})
			if err != nil {
				return err
			}
			if dryRun {
				output.Info("Dry run: nothing was removed")
			}
			return a.printResults(results, "Cleaned")
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be removed without touching disk")
	return cmd
}
