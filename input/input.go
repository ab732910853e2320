// Package input asks the user questions on the terminal.
package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Confirm asks a yes/no question on stdin.
// If defaultYes is true, pressing Enter answers yes.
//
// Example:
//
//	if input.Confirm("Delete 3 generated files?", false) {
//	    // user said yes
//	}
//	// Displays: Delete 3 generated files? [y/N]: _
func Confirm(message string, defaultYes bool) bool {
	return ConfirmFrom(os.Stdin, os.Stdout, message, defaultYes)
}

// ConfirmFrom asks a yes/no question reading the answer from r.
func ConfirmFrom(r io.Reader, w io.Writer, message string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	fmt.Fprint(w, promptStyle.Render(message)+" "+hintStyle.Render(hint)+": ")

	answer, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && answer == "" {
		return defaultYes
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "":
		return defaultYes
	case "y", "yes":
		return true
	default:
		return false
	}
}
