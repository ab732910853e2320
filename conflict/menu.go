package conflict

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type choice struct {
	label      string
	resolution Resolution
}

var menuChoices = []choice{
	{"Show diff", ShowDiff},
	{"Skip (keep the file on disk)", Skip},
	{"Overwrite (write the generated output)", Overwrite},
	{"Cancel the run", Cancel},
}

// menuModel is the bubbletea model of the conflict menu
type menuModel struct {
	path     string
	info     os.FileInfo
	cursor   int
	selected *Resolution
}

func newMenuModel(path string, info os.FileInfo) menuModel {
	return menuModel{path: path, info: info}
}

func (m menuModel) Init() tea.Cmd {
	return nil
}

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(menuChoices)-1 {
			m.cursor++
		}
	case "d":
		m.choose(ShowDiff)
		return m, tea.Quit
	case "s":
		m.choose(Skip)
		return m, tea.Quit
	case "o":
		m.choose(Overwrite)
		return m, tea.Quit
	case "enter":
		m.choose(menuChoices[m.cursor].resolution)
		return m, tea.Quit
	}
	return m, nil
}

func (m *menuModel) choose(r Resolution) {
	m.selected = &r
}

func (m menuModel) View() string {
	var b strings.Builder

	b.WriteString(warningStyle.Render("Generated output differs from the file on disk: ") + m.path + "\n")
	if m.info != nil {
		b.WriteString(mutedStyle.Render("    Last modified: ") + formatRelativeTime(time.Now(), m.info.ModTime()) + "\n")
		b.WriteString(mutedStyle.Render("    Size: ") + formatFileSize(m.info.Size()) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("    [↑/↓] Navigate    [Enter] Select    [d/s/o] Shortcut    [q] Cancel") + "\n\n")

	for i, c := range menuChoices {
		if i == m.cursor {
			b.WriteString("    " + selectedStyle.Render("> "+c.label) + "\n")
			continue
		}
		b.WriteString("      " + c.label + "\n")
	}
	return b.String()
}

// viewerModel pages a long diff
type viewerModel struct {
	path     string
	diff     string
	viewport viewport.Model
	ready    bool
}

func newViewerModel(path, diff string) viewerModel {
	return viewerModel{path: path, diff: diff}
}

func (m viewerModel) Init() tea.Cmd {
	return nil
}

func (m viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		const chrome = 4 // header and footer lines
		if !m.ready {
			m.viewport = viewport.New(msg.Width, max(1, msg.Height-chrome))
			m.viewport.SetContent(m.diff)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = max(1, msg.Height-chrome)
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m viewerModel) View() string {
	if !m.ready {
		return "Loading diff..."
	}
	rule := borderStyle.Render(strings.Repeat("─", max(0, m.viewport.Width)))
	header := fmt.Sprintf("Diff: %s", m.path)
	footer := mutedStyle.Render(fmt.Sprintf(" %3.f%%  [↑/↓/pgup/pgdn] Scroll    [q] Back to menu", m.viewport.ScrollPercent()*100))
	return header + "\n" + rule + "\n" + m.viewport.View() + "\n" + rule + "\n" + footer
}

// formatRelativeTime formats t relative to now (e.g., "2 hours ago")
func formatRelativeTime(now, t time.Time) string {
	d := now.Sub(t)
	units := []struct {
		size time.Duration
		name string
	}{
		{365 * 24 * time.Hour, "year"},
		{30 * 24 * time.Hour, "month"},
		{7 * 24 * time.Hour, "week"},
		{24 * time.Hour, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
	}
	for _, u := range units {
		if d < u.size {
			continue
		}
		n := int(d / u.size)
		if n == 1 {
			return "1 " + u.name + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, u.name)
	}
	return "just now"
}

// formatFileSize formats size in human-readable form
func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
