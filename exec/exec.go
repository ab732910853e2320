package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Executor runs external commands.
type Executor struct {
	stdout io.Writer
	stderr io.Writer
	env    []string
	dir    string
	log    *zap.Logger

	// For mocking in tests
	commandFunc func(name string, args ...string) *exec.Cmd
}

// Options configures command execution
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	Env    []string // Additional environment variables
	Dir    string   // Working directory
	Logger *zap.Logger
}

// NewExecutor creates an executor. Nil options stream to the process's
// own stdout and stderr.
func NewExecutor(opts *Options) *Executor {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Executor{
		stdout:      opts.Stdout,
		stderr:      opts.Stderr,
		env:         opts.Env,
		dir:         opts.Dir,
		log:         opts.Logger,
		commandFunc: exec.Command,
	}
}

// InDir returns a copy of the executor that runs commands in dir.
func (e *Executor) InDir(dir string) *Executor {
	c := *e
	c.dir = dir
	return &c
}

// Run executes a command, streaming its output to the executor's writers.
func (e *Executor) Run(ctx context.Context, name string, args ...string) error {
	return e.run(ctx, e.stdout, name, args...)
}

// Output executes a command and returns what it wrote to stdout. Stderr
// still streams to the executor's writer. A non-zero exit is returned as an
// *ExitError together with the captured output.
func (e *Executor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var buf bytes.Buffer
	err := e.run(ctx, &buf, name, args...)
	return buf.Bytes(), err
}

func (e *Executor) run(ctx context.Context, stdout io.Writer, name string, args ...string) error {
	cmd := e.commandFunc(name, args...)
	if e.dir != "" {
		cmd.Dir = e.dir
	}
	if len(e.env) > 0 {
		base := cmd.Env
		if base == nil {
			base = os.Environ()
		}
		cmd.Env = append(base, e.env...)
	}
	cmd.Stdout = stdout
	cmd.Stderr = e.stderr

	e.log.Debug("running command", zap.String("command", name), zap.Strings("args", args), zap.String("dir", e.dir))

	if err := cmd.Start(); err != nil {
		if isCommandNotFound(err) {
			return enhanceError(err, name)
		}
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-errCh
		return fmt.Errorf("%s cancelled: %w", name, ctx.Err())
	case err := <-errCh:
		if err == nil {
			return nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Command: name, Code: exitErr.ExitCode(), Err: err}
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s failed: exit status %d", e.Command, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the exit code carried by err, or -1 when err does not
// come from a command that ran to completion.
func ExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

// isCommandNotFound checks if an error indicates a command was not found
func isCommandNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, exec.ErrNotFound) ||
		strings.Contains(err.Error(), "executable file not found") ||
		strings.Contains(err.Error(), "command not found")
}

// enhanceError adds helpful message for missing commands
func enhanceError(err error, cmd string) error {
	return fmt.Errorf("%w: command %q not found, install it or change source_control.provider", err, cmd)
}
