// Package diag defines the error kinds a generation pass can fail with and
// the ordered report a pass hands back to its host.
package diag

import (
	"errors"
	"fmt"
)

// Kind classifies a pass failure.
type Kind int

const (
	// InvalidOutput marks a malformed or missing output path.
	InvalidOutput Kind = iota + 1
	// TargetProjectNotFound marks an explicit project that is not in the solution.
	TargetProjectNotFound
	// UnsupportedBuildAction marks a build action the target item does not offer.
	UnsupportedBuildAction
	// UnsupportedProperty marks a property the item type does not have.
	UnsupportedProperty
	// PathResolution marks a path that cannot be made relative or placed.
	PathResolution
	// SourceControl marks a failed status query or checkout.
	SourceControl
	// HostUnavailable marks a project host that cannot be reached.
	HostUnavailable
	// IO marks a filesystem failure.
	IO
	// Cancelled marks a pass the user aborted during conflict resolution.
	Cancelled
)

// String returns the error kind name used in reports.
func (k Kind) String() string {
	switch k {
	case InvalidOutput:
		return "InvalidOutputError"
	case TargetProjectNotFound:
		return "TargetProjectNotFoundError"
	case UnsupportedBuildAction:
		return "UnsupportedBuildActionError"
	case UnsupportedProperty:
		return "UnsupportedPropertyError"
	case PathResolution:
		return "PathResolutionError"
	case SourceControl:
		return "SourceControlError"
	case HostUnavailable:
		return "HostUnavailableError"
	case IO:
		return "IOError"
	case Cancelled:
		return "CancelledError"
	default:
		return "UnknownError"
	}
}

// Error is a pass-fatal failure with context.
type Error struct {
	Kind     Kind
	Path     string // Output or item path the error concerns (optional)
	Template string // Originating template file (optional)
	Detail   string // Human-readable message
	Err      error  // Underlying cause (optional)
}

// Error returns a formatted error message
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg += fmt.Sprintf(" at %s", e.Path)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind for path.
func New(kind Kind, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Detail: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around a cause.
// Errors that already carry a Kind are returned unchanged.
func Wrap(kind Kind, path string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: kind, Path: path, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// WithTemplate tags err with the originating template when it has none yet.
func WithTemplate(err error, template string) error {
	var e *Error
	if errors.As(err, &e) && e.Template == "" {
		e.Template = template
	}
	return err
}
