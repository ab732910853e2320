package conflict

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// DiffOptions configures how diffs are generated and displayed.
type DiffOptions struct {
	// ContextLines is the number of unchanged lines around each change.
	// Default: 3
	ContextLines int

	// TabWidth is the number of spaces a tab expands to. Default: 4
	TabWidth int

	// Plain disables styling, for diffs written to files or pipes.
	Plain bool

	// Width truncates long lines. Zero asks the terminal, falling back to 120.
	Width int
}

// Lipgloss styles for diff output
var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	hunkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan")).Bold(true)
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("22"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("52"))
)

const maxDiffLines = 10000

type op int

const (
	opEqual op = iota
	opInsert
	opDelete
)

// edit is one line of an edit script. Line numbers are 1-based; zero means
// the line does not exist on that side.
type edit struct {
	op      op
	oldLine int
	newLine int
	text    string
}

type hunk struct {
	oldStart, oldCount int
	newStart, newCount int
	edits              []edit
}

// Diff renders a unified diff between the existing and the generated
// content of path. Identical inputs produce an empty string.
func Diff(path string, existing, generated []byte, opts *DiffOptions) string {
	o := DiffOptions{ContextLines: 3, TabWidth: 4}
	if opts != nil {
		o = *opts
		if o.ContextLines == 0 {
			o.ContextLines = 3
		}
		if o.TabWidth == 0 {
			o.TabWidth = 4
		}
	}
	if o.Width == 0 {
		o.Width = terminalWidth()
	}

	if bytes.Equal(existing, generated) {
		return ""
	}
	if isBinary(existing) || isBinary(generated) {
		return fmt.Sprintf("Binary files %s differ\n", path)
	}

	a, b := splitLines(string(existing)), splitLines(string(generated))
	if len(a) > maxDiffLines || len(b) > maxDiffLines {
		return fmt.Sprintf("Files too large for diff (%d and %d lines)\n", len(a), len(b))
	}

	hunks := group(editScript(a, b), o.ContextLines)
	if len(hunks) == 0 {
		// Only line endings or a trailing newline differ.
		return fmt.Sprintf("%s differs only in line endings\n", path)
	}

	style := func(s lipgloss.Style, text string) string {
		if o.Plain {
			return text
		}
		return s.Render(text)
	}

	var buf strings.Builder
	buf.WriteString(style(headerStyle, "--- "+path+" (on disk)") + "\n")
	buf.WriteString(style(headerStyle, "+++ "+path+" (generated)") + "\n")
	for _, h := range hunks {
		header := fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.oldStart, h.oldCount, h.newStart, h.newCount)
		buf.WriteString(style(hunkStyle, header) + "\n")
		for _, e := range h.edits {
			text := truncateLine(expandTabs(e.text, o.TabWidth), o.Width-2)
			switch e.op {
			case opInsert:
				buf.WriteString(style(addedStyle, "+"+text) + "\n")
			case opDelete:
				buf.WriteString(style(removedStyle, "-"+text) + "\n")
			default:
				buf.WriteString(" " + text + "\n")
			}
		}
	}
	return buf.String()
}

// editScript computes a shortest edit script with Myers' O(ND) algorithm.
func editScript(a, b []string) []edit {
	n, m := len(a), len(b)
	limit := n + m
	offset := limit + 1
	v := make([]int, 2*limit+2)
	var trace [][]int

	for d := 0; d <= limit; d++ {
		trace = append(trace, slices.Clone(v))
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				return backtrack(trace, a, b, offset)
			}
		}
	}
	return nil
}

func backtrack(trace [][]int, a, b []string, offset int) []edit {
	x, y := len(a), len(b)
	var out []edit

	for d := len(trace) - 1; d > 0; d-- {
		v := trace[d]
		k := x - y
		prevK := k - 1
		if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
			prevK = k + 1
		}
		prevX := v[offset+prevK]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			out = append(out, edit{op: opEqual, oldLine: x + 1, newLine: y + 1, text: a[x]})
		}
		if x == prevX {
			y--
			out = append(out, edit{op: opInsert, newLine: y + 1, text: b[y]})
		} else {
			x--
			out = append(out, edit{op: opDelete, oldLine: x + 1, text: a[x]})
		}
	}
	for x > 0 && y > 0 {
		x--
		y--
		out = append(out, edit{op: opEqual, oldLine: x + 1, newLine: y + 1, text: a[x]})
	}

	slices.Reverse(out)
	return out
}

// group cuts an edit script into hunks with context lines around every
// change. Changes closer than twice the context share a hunk.
func group(edits []edit, context int) []hunk {
	var hunks []hunk
	i := 0
	for i < len(edits) {
		for i < len(edits) && edits[i].op == opEqual {
			i++
		}
		if i == len(edits) {
			break
		}

		start := max(0, i-context)
		end := i
		for end < len(edits) {
			if edits[end].op != opEqual {
				end++
				continue
			}
			run := end
			for run < len(edits) && edits[run].op == opEqual {
				run++
			}
			if run == len(edits) || run-end > 2*context {
				end = min(run, end+context)
				break
			}
			end = run
		}

		hunks = append(hunks, newHunk(edits[start:end]))
		i = end
	}
	return hunks
}

func newHunk(edits []edit) hunk {
	h := hunk{edits: edits}
	for _, e := range edits {
		if e.op != opInsert {
			h.oldCount++
			if h.oldStart == 0 {
				h.oldStart = e.oldLine
			}
		}
		if e.op != opDelete {
			h.newCount++
			if h.newStart == 0 {
				h.newStart = e.newLine
			}
		}
	}
	return h
}

// isBinary reports whether content has a NUL byte in its first 8 KiB.
func isBinary(data []byte) bool {
	return bytes.IndexByte(data[:min(len(data), 8192)], 0) != -1
}

// splitLines splits text into lines, ignoring a final newline and
// treating CRLF as a line break.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func expandTabs(s string, width int) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var buf strings.Builder
	col := 0
	for _, r := range s {
		if r == '\t' {
			n := width - col%width
			buf.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		buf.WriteRune(r)
		col++
	}
	return buf.String()
}

func truncateLine(s string, width int) string {
	if width <= 3 || utf8.RuneCountInString(s) <= width {
		return s
	}
	return string([]rune(s)[:width-3]) + "..."
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 120
	}
	return width
}
