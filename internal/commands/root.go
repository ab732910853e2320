package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simonhull/quill"
	"github.com/simonhull/quill/config"
	"github.com/simonhull/quill/output"
	"github.com/simonhull/quill/render"
)

// app is the state shared by every command of one invocation.
type app struct {
	fs     afero.Fs
	stdin  io.Reader
	stdout io.Writer
	getwd  func() (string, error)

	verbose bool
	root    string

	cfg    *config.Config
	log    *zap.Logger
	parsed *render.Renderer
}

func newApp(fs afero.Fs) *app {
	return &app{fs: fs, stdin: os.Stdin, stdout: os.Stdout, getwd: os.Getwd, log: zap.NewNop()}
}

// RootCmd creates the root command of the quill CLI with every subcommand
// attached.
func RootCmd() *cobra.Command {
	return newRootCmd(newApp(afero.NewOsFs()))
}

// Execute runs the CLI.
func Execute() error {
	return RootCmd().Execute()
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quill",
		Short: "Template output reconciler for MSBuild solutions",
		Long: `Quill runs text templates that generate many files and keeps the
solution in step with what they produce.

Every run:
• writes outputs whose content changed, leaving identical files untouched
• adds new outputs to the right project, nested under the template
• removes outputs the template no longer generates
• applies build actions, custom tools, build properties and references`,
		Version:       quill.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}

	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose output for debugging")
	cmd.PersistentFlags().StringVar(&a.root, "root", "", "Solution root (default: solution.root from quill.yml, else the working directory)")

	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stdout)

	cmd.AddCommand(
		generateCmd(a),
		planCmd(a),
		cleanCmd(a),
		manifestCmd(a),
		watchCmd(a),
		versionCmd(a),
	)
	return cmd
}

// setup loads configuration and builds the logger.
func (a *app) setup() error {
	output.SetVerbose(a.verbose)
	output.SetOutput(a.stdout)

	wd, err := a.getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	dirs := []string{wd}
	if a.root != "" {
		root, err := filepath.Abs(a.root)
		if err != nil {
			return fmt.Errorf("resolving --root: %w", err)
		}
		dirs = []string{root, wd}
	}

	cfg, err := config.Load(a.fs, dirs...)
	if err != nil {
		return err
	}
	if a.root != "" {
		cfg.Solution.Root = dirs[0]
	}
	a.cfg = cfg

	zcfg := zap.NewProductionConfig()
	zcfg.Level = cfg.LogLevel()
	if a.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	a.log = log

	if cfg.File != "" {
		output.Verbose("Using " + cfg.File)
	}
	return nil
}

// abs resolves a command line path against the working directory.
func (a *app) abs(path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	wd, err := a.getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return filepath.Join(wd, path), nil
}

func versionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "quill v%s\n", quill.Version)
		},
	}
}
