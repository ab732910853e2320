package sourcecontrol

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/simonhull/quill/exec"
)

// Git treats tracked files as always editable.
type Git struct {
	run Runner
}

// NewGit creates the git provider.
func NewGit(run Runner) *Git {
	return &Git{run: run}
}

// IsUnderSourceControl asks git whether the path is in the index.
func (g *Git) IsUnderSourceControl(ctx context.Context, path string) (bool, error) {
	_, err := g.run.Output(ctx, "git", "-C", filepath.Dir(path), "ls-files", "--error-unmatch", "--", filepath.Base(path))
	return tracked(err)
}

// IsCheckedOut is always true: git has no checkout lock.
func (g *Git) IsCheckedOut(context.Context, string) (bool, error) {
	return true, nil
}

// CheckOut does nothing.
func (g *Git) CheckOut(context.Context, string) error {
	return nil
}

// Perforce drives the p4 client.
type Perforce struct {
	run Runner
}

// NewPerforce creates the p4 provider.
func NewPerforce(run Runner) *Perforce {
	return &Perforce{run: run}
}

func (p *Perforce) fstat(ctx context.Context, path string) (map[string]string, error) {
	out, err := p.run.Output(ctx, "p4", "-ztag", "fstat", path)
	if err != nil {
		if exec.ExitCode(err) > 0 {
			return nil, nil
		}
		return nil, err
	}
	return parseTagged(out), nil
}

// IsUnderSourceControl reports whether fstat knows a depot file for path.
func (p *Perforce) IsUnderSourceControl(ctx context.Context, path string) (bool, error) {
	fields, err := p.fstat(ctx, path)
	if err != nil {
		return false, err
	}
	_, ok := fields["depotFile"]
	return ok, nil
}

// IsCheckedOut reports whether the file is open for any action.
func (p *Perforce) IsCheckedOut(ctx context.Context, path string) (bool, error) {
	fields, err := p.fstat(ctx, path)
	if err != nil {
		return false, err
	}
	_, ok := fields["action"]
	return ok, nil
}

// CheckOut opens the file for edit.
func (p *Perforce) CheckOut(ctx context.Context, path string) error {
	if _, err := p.run.Output(ctx, "p4", "edit", path); err != nil {
		return fmt.Errorf("p4 edit %s: %w", path, err)
	}
	return nil
}

// parseTagged reads "... key value" lines of p4 -ztag output.
func parseTagged(out []byte) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), "... ")
		if !ok {
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		if _, seen := fields[key]; !seen {
			fields[key] = value
		}
	}
	return fields
}

// TFVC drives the Team Foundation version control client.
type TFVC struct {
	run Runner
}

// NewTFVC creates the tf provider.
func NewTFVC(run Runner) *TFVC {
	return &TFVC{run: run}
}

// IsUnderSourceControl reports whether tf has server information for path.
func (t *TFVC) IsUnderSourceControl(ctx context.Context, path string) (bool, error) {
	_, err := t.run.Output(ctx, "tf", "vc", "info", path)
	return tracked(err)
}

// IsCheckedOut reports whether path has a pending change.
func (t *TFVC) IsCheckedOut(ctx context.Context, path string) (bool, error) {
	out, err := t.run.Output(ctx, "tf", "vc", "status", path, "/format:brief")
	if err != nil {
		if exec.ExitCode(err) > 0 {
			return false, nil
		}
		return false, err
	}
	return bytes.Contains(bytes.ToLower(out), []byte(strings.ToLower(filepath.Base(path)))), nil
}

// CheckOut checks path out for edit.
func (t *TFVC) CheckOut(ctx context.Context, path string) error {
	if _, err := t.run.Output(ctx, "tf", "vc", "checkout", path); err != nil {
		return fmt.Errorf("tf checkout %s: %w", path, err)
	}
	return nil
}

// Custom runs user-configured commands. A zero status exit means tracked;
// files are never considered checked out, so a tracked file is always
// checked out before a write.
type Custom struct {
	run  Runner
	cmds Commands
}

// NewCustom creates a provider from configured commands.
func NewCustom(run Runner, cmds Commands) (*Custom, error) {
	if len(cmds.Status) == 0 || len(cmds.CheckOut) == 0 {
		return nil, errors.New("custom source control needs both status and checkout commands")
	}
	return &Custom{run: run, cmds: cmds}, nil
}

// IsUnderSourceControl runs the status command.
func (c *Custom) IsUnderSourceControl(ctx context.Context, path string) (bool, error) {
	argv := expand(c.cmds.Status, path)
	_, err := c.run.Output(ctx, argv[0], argv[1:]...)
	return tracked(err)
}

// IsCheckedOut is always false.
func (c *Custom) IsCheckedOut(context.Context, string) (bool, error) {
	return false, nil
}

// CheckOut runs the checkout command.
func (c *Custom) CheckOut(ctx context.Context, path string) error {
	argv := expand(c.cmds.CheckOut, path)
	if _, err := c.run.Output(ctx, argv[0], argv[1:]...); err != nil {
		return fmt.Errorf("%s: %w", strings.Join(argv, " "), err)
	}
	return nil
}

func expand(argv []string, path string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = strings.ReplaceAll(a, "{path}", path)
	}
	return out
}

// tracked turns a status command result into an answer: a clean exit means
// tracked, a non-zero exit means untracked and anything else is a failure.
func tracked(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case exec.ExitCode(err) > 0:
		return false, nil
	default:
		return false, err
	}
}
