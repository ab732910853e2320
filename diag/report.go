package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Severity distinguishes warnings from fatal errors in a report.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// Entry is one line of a pass report.
type Entry struct {
	Severity Severity
	Template string
	Message  string
	Err      error // set for errors only
}

// String formats the entry as "template: message".
func (e Entry) String() string {
	if e.Template == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Template, e.Message)
}

// Report collects warnings and errors of a pass in the order they occurred.
type Report struct {
	Template string
	entries  []Entry
}

// NewReport creates an empty report for a template.
func NewReport(template string) *Report {
	return &Report{Template: template}
}

// Warn records a non-fatal warning.
func (r *Report) Warn(format string, args ...any) {
	r.entries = append(r.entries, Entry{
		Severity: SeverityWarning,
		Template: r.Template,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Fail records a fatal error, tagging it with the report's template.
func (r *Report) Fail(err error) {
	if err == nil {
		return
	}
	err = WithTemplate(err, r.Template)
	r.entries = append(r.entries, Entry{
		Severity: SeverityError,
		Template: r.Template,
		Message:  err.Error(),
		Err:      err,
	})
}

// Entries returns all entries in order.
func (r *Report) Entries() []Entry {
	return r.entries
}

// Warnings returns the warning entries in order.
func (r *Report) Warnings() []Entry {
	return r.filter(SeverityWarning)
}

// Errors returns the error entries in order.
func (r *Report) Errors() []Entry {
	return r.filter(SeverityError)
}

// HasErrors reports whether any fatal error was recorded.
func (r *Report) HasErrors() bool {
	return len(r.Errors()) > 0
}

// Err joins all recorded errors, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, e := range r.Errors() {
		errs = append(errs, e.Err)
	}
	return errors.Join(errs...)
}

// Merge appends the entries of other, keeping their template tags.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.entries = append(r.entries, other.entries...)
}

// String returns all entries formatted with clear separation
func (r *Report) String() string {
	if len(r.entries) == 0 {
		return ""
	}
	var b strings.Builder
	for i, e := range r.entries {
		label := "warning"
		if e.Severity == SeverityError {
			label = "error"
		}
		fmt.Fprintf(&b, "  %d. [%s] %s\n", i+1, label, e.String())
	}
	return b.String()
}

func (r *Report) filter(s Severity) []Entry {
	var out []Entry
	for _, e := range r.entries {
		if e.Severity == s {
			out = append(out, e)
		}
	}
	return out
}
