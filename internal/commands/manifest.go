package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/simonhull/quill/manifest"
	"github.com/simonhull/quill/output"
)

func manifestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <template>",
		Short: "List the outputs recorded by a template's last run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := a.abs(args[0])
			if err != nil {
				return err
			}
			path := manifest.PathFor(tmpl)
			entries, err := manifest.Load(a.fs, path, filepath.Dir(tmpl))
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				output.Info(fmt.Sprintf("No manifest entries for %s", a.display(tmpl)))
				return nil
			}
			output.Verbose("Reading " + path)
			for _, e := range entries {
				fmt.Fprintln(a.stdout, e)
			}
			return nil
		},
	}
}
