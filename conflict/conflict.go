package conflict

import (
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Resolution is what to do with an output whose file on disk differs from
// the generated content.
type Resolution int

const (
	Skip Resolution = iota
	Overwrite
	ShowDiff
	Cancel
)

// String returns the resolution name.
func (r Resolution) String() string {
	switch r {
	case Skip:
		return "skip"
	case Overwrite:
		return "overwrite"
	case ShowDiff:
		return "diff"
	default:
		return "cancel"
	}
}

// Strategy decides a conflict for one file.
type Strategy interface {
	Resolve(path string, existing, generated []byte) (Resolution, error)
}

// Strategy names accepted by New and the conflict.strategy setting.
const (
	StrategyForce       = "force"
	StrategySkip        = "skip"
	StrategyDiff        = "diff"
	StrategyInteractive = "interactive"
)

// Resolver applies a strategy. The zero value overwrites.
type Resolver struct {
	name     string
	strategy Strategy
}

// Option configures the terminal a Resolver talks to.
type Option func(*terminal)

// WithInput sets where interactive strategies read keys from.
func WithInput(r io.Reader) Option {
	return func(t *terminal) { t.in = r }
}

// WithOutput sets where diffs and menus are written.
func WithOutput(w io.Writer) Option {
	return func(t *terminal) { t.out = w }
}

// WithStat sets how file details shown in the menu are looked up.
func WithStat(stat func(string) (os.FileInfo, error)) Option {
	return func(t *terminal) { t.stat = stat }
}

type terminal struct {
	in   io.Reader
	out  io.Writer
	stat func(string) (os.FileInfo, error)
}

// New creates a resolver for the named strategy. An empty name means force:
// generated files are owned by their template.
func New(name string, opts ...Option) (*Resolver, error) {
	t := &terminal{in: os.Stdin, out: os.Stdout, stat: os.Stat}
	for _, opt := range opts {
		opt(t)
	}

	name = strings.ToLower(strings.TrimSpace(name))
	var s Strategy
	switch name {
	case "", StrategyForce:
		name, s = StrategyForce, ForceStrategy{}
	case StrategySkip:
		s = SkipStrategy{}
	case StrategyDiff:
		s = &DiffStrategy{term: t}
	case StrategyInteractive:
		s = &InteractiveStrategy{term: t}
	default:
		return nil, fmt.Errorf("unknown conflict strategy %q (want force, skip, diff or interactive)", name)
	}
	return &Resolver{name: name, strategy: s}, nil
}

// FromFlags picks a strategy name from command line flags, falling back to
// the configured one when no flag is set.
func FromFlags(force, skip, diff, interactive bool, fallback string) (string, error) {
	if force && (skip || diff || interactive) {
		return "", fmt.Errorf("--force cannot be combined with --skip, --diff or --interactive")
	}
	if skip && (diff || interactive) {
		return "", fmt.Errorf("--skip cannot be combined with --diff or --interactive")
	}
	switch {
	case force:
		return StrategyForce, nil
	case skip:
		return StrategySkip, nil
	case diff:
		return StrategyDiff, nil
	case interactive:
		return StrategyInteractive, nil
	default:
		return fallback, nil
	}
}

// Name returns the strategy name.
func (r *Resolver) Name() string {
	if r == nil || r.name == "" {
		return StrategyForce
	}
	return r.name
}

// Resolve decides what to do with path.
func (r *Resolver) Resolve(path string, existing, generated []byte) (Resolution, error) {
	if r == nil || r.strategy == nil {
		return Overwrite, nil
	}
	return r.strategy.Resolve(path, existing, generated)
}

// ForceStrategy always overwrites.
type ForceStrategy struct{}

// Resolve returns Overwrite.
func (ForceStrategy) Resolve(string, []byte, []byte) (Resolution, error) {
	return Overwrite, nil
}

// SkipStrategy always keeps the file on disk.
type SkipStrategy struct{}

// Resolve returns Skip.
func (SkipStrategy) Resolve(string, []byte, []byte) (Resolution, error) {
	return Skip, nil
}

// DiffStrategy shows the diff, then asks.
type DiffStrategy struct {
	term *terminal
}

// Resolve shows the diff and then prompts for a decision.
func (s *DiffStrategy) Resolve(path string, existing, generated []byte) (Resolution, error) {
	if err := s.term.showDiff(path, existing, generated); err != nil {
		return Cancel, err
	}
	return (&InteractiveStrategy{term: s.term}).Resolve(path, existing, generated)
}

// InteractiveStrategy shows a menu. Choosing "show diff" displays the diff
// and brings the menu back.
type InteractiveStrategy struct {
	term *terminal
}

// Resolve runs the menu until the user decides.
func (s *InteractiveStrategy) Resolve(path string, existing, generated []byte) (Resolution, error) {
	info, err := s.term.stat(path)
	if err != nil && !os.IsNotExist(err) {
		return Cancel, fmt.Errorf("failed to stat file: %w", err)
	}

	for {
		p := tea.NewProgram(newMenuModel(path, info), tea.WithInput(s.term.in), tea.WithOutput(s.term.out))
		final, err := p.Run()
		if err != nil {
			return Cancel, fmt.Errorf("failed to show menu: %w", err)
		}

		selected := final.(menuModel).selected
		if selected == nil {
			return Cancel, nil
		}
		if *selected != ShowDiff {
			return *selected, nil
		}
		if err := s.term.showDiff(path, existing, generated); err != nil {
			return Cancel, err
		}
	}
}

// showDiff prints short diffs inline and pages long ones.
func (t *terminal) showDiff(path string, existing, generated []byte) error {
	diff := Diff(path, existing, generated, nil)
	if strings.Count(diff, "\n") <= 20 {
		_, err := fmt.Fprintln(t.out, diff)
		return err
	}

	p := tea.NewProgram(newViewerModel(path, diff), tea.WithAltScreen(), tea.WithInput(t.in), tea.WithOutput(t.out))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to show diff: %w", err)
	}
	return nil
}
