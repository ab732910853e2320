// Package output prints styled messages for the quill CLI.
//
// Functions use lipgloss for styling but abstract away the details from
// callers. Everything goes to stdout unless SetOutput redirects it.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/simonhull/quill/diag"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("green")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	verboseMode bool
	out         io.Writer = os.Stdout
)

// SetVerbose enables or disables verbose output.
// The CLI calls it when --verbose is set.
func SetVerbose(v bool) {
	verboseMode = v
}

// SetOutput redirects all messages to w and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := out
	out = w
	return prev
}

// Success prints a completed operation.
//
// Example:
//
//	output.Success("Generated 4 outputs from Gen.tt")
func Success(msg string) {
	fmt.Fprintln(out, successStyle.Render("✔ "+msg))
}

// Error prints a failure that needs attention.
func Error(msg string) {
	fmt.Fprintln(out, errorStyle.Render("✘ "+msg))
}

// Warn prints a non-fatal problem.
func Warn(msg string) {
	fmt.Fprintln(out, warnStyle.Render("! "+msg))
}

// Info prints a status update.
func Info(msg string) {
	fmt.Fprintln(out, infoStyle.Render("• "+msg))
}

// Step prints an indented sub-item in gray.
//
// Example:
//
//	output.Step("add    Models/User.cs")
func Step(msg string) {
	fmt.Fprintln(out, stepStyle.Render("   "+msg))
}

// Verbose prints a debug message only in verbose mode.
func Verbose(msg string) {
	if verboseMode {
		fmt.Fprintln(out, stepStyle.Render("… "+msg))
	}
}

// Report prints the warnings and errors of a run, in order.
func Report(r *diag.Report) {
	if r == nil {
		return
	}
	for _, e := range r.Entries() {
		msg := e.Message
		if e.Template != "" {
			msg = e.Template + ": " + msg
		}
		if e.Severity == diag.SeverityError {
			Error(msg)
		} else {
			Warn(msg)
		}
	}
}
