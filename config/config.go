// Package config loads quill.yml.
//
//	solution:
//	  root: .
//	  ignore: [bin, obj, node_modules]
//	source_control:
//	  provider: git
//	output:
//	  encoding: utf-8
//	  extension: .cs
//	conflict:
//	  strategy: force
//	log:
//	  level: info
//
// Every key can be overridden from the environment with the QUILL_ prefix,
// dots replaced by underscores: QUILL_CONFLICT_STRATEGY=skip.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simonhull/quill/conflict"
	"github.com/simonhull/quill/filesystem"
	"github.com/simonhull/quill/record"
	"github.com/simonhull/quill/sourcecontrol"
)

// FileName is the configuration file name without extension.
const FileName = "quill"

// Config is the resolved configuration.
type Config struct {
	Solution      Solution
	SourceControl SourceControl
	Output        Output
	Conflict      Conflict
	Log           Log

	// File is the configuration file that was read, empty when only
	// defaults and environment apply.
	File string
}

type Solution struct {
	Root   string   // absolute after Load
	Ignore []string // directory names skipped when discovering projects
}

type SourceControl struct {
	Provider string // none, git, p4, tf or custom
	Commands sourcecontrol.Commands
}

type Output struct {
	Encoding  string
	Extension string
}

type Conflict struct {
	Strategy string
}

type Log struct {
	Level string
}

// setDefaults registers every key so environment overrides apply even
// when the file does not mention them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("solution.root", "")
	v.SetDefault("solution.ignore", filesystem.DefaultIgnoreDirs)
	v.SetDefault("source_control.provider", "none")
	v.SetDefault("source_control.commands.status", []string{})
	v.SetDefault("source_control.commands.checkout", []string{})
	v.SetDefault("output.encoding", "utf-8")
	v.SetDefault("output.extension", ".cs")
	v.SetDefault("conflict.strategy", conflict.StrategyForce)
	v.SetDefault("log.level", "info")
}

// Load reads quill.yml from the first of dirs that has one and applies
// environment overrides. A missing file is not an error. A relative
// solution root resolves against the directory of the file, or the first
// dir without one.
func Load(fs afero.Fs, dirs ...string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	for _, d := range dirs {
		v.AddConfigPath(d)
	}

	v.SetEnvPrefix("QUILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s.yml: %w", FileName, err)
		}
	}

	cfg := &Config{
		Solution: Solution{
			Root:   v.GetString("solution.root"),
			Ignore: v.GetStringSlice("solution.ignore"),
		},
		SourceControl: SourceControl{
			Provider: strings.ToLower(v.GetString("source_control.provider")),
			Commands: sourcecontrol.Commands{
				Status:   v.GetStringSlice("source_control.commands.status"),
				CheckOut: v.GetStringSlice("source_control.commands.checkout"),
			},
		},
		Output: Output{
			Encoding:  v.GetString("output.encoding"),
			Extension: v.GetString("output.extension"),
		},
		Conflict: Conflict{Strategy: strings.ToLower(v.GetString("conflict.strategy"))},
		Log:      Log{Level: v.GetString("log.level")},
		File:     v.ConfigFileUsed(),
	}

	base := ""
	if cfg.File != "" {
		base = filepath.Dir(cfg.File)
	} else if len(dirs) > 0 {
		base = dirs[0]
	}
	switch {
	case cfg.Solution.Root == "":
		cfg.Solution.Root = base
	case !filepath.IsAbs(cfg.Solution.Root):
		cfg.Solution.Root = filepath.Join(base, cfg.Solution.Root)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	providers := sourcecontrol.DefaultRegistry().Names()
	if !slices.Contains(providers, c.SourceControl.Provider) {
		errs = append(errs, fmt.Errorf("source_control.provider %q is not one of %s", c.SourceControl.Provider, strings.Join(providers, ", ")))
	}
	if c.SourceControl.Provider == "custom" && (len(c.SourceControl.Commands.Status) == 0 || len(c.SourceControl.Commands.CheckOut) == 0) {
		errs = append(errs, errors.New("source_control.provider custom needs source_control.commands.status and checkout"))
	}

	if _, err := record.LookupEncoding(c.Output.Encoding); err != nil {
		errs = append(errs, fmt.Errorf("output.encoding: %w", err))
	}
	if strings.TrimSpace(c.Output.Extension) == "" {
		errs = append(errs, errors.New("output.extension must not be empty"))
	}

	switch c.Conflict.Strategy {
	case conflict.StrategyForce, conflict.StrategySkip, conflict.StrategyDiff, conflict.StrategyInteractive:
	default:
		errs = append(errs, fmt.Errorf("conflict.strategy %q is not one of force, skip, diff, interactive", c.Conflict.Strategy))
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Encoding returns the default output encoding.
func (c *Config) Encoding() record.Encoding {
	enc, err := record.LookupEncoding(c.Output.Encoding)
	if err != nil {
		return record.UTF8
	}
	return enc
}

// LogLevel returns the configured level, info when it does not parse.
func (c *Config) LogLevel() zap.AtomicLevel {
	lvl, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return lvl
}

// WalkOptions returns the traversal options for project discovery.
func (c *Config) WalkOptions() filesystem.WalkOptions {
	return filesystem.WalkOptions{IgnoreDirs: c.Solution.Ignore}
}
