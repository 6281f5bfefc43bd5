package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"chatline/internal/adapter/tui/theme"
)

// CommandDef describes a slash command offered by the completion popup.
type CommandDef struct {
	Name        string // e.g. "/rename"
	Args        string // e.g. "<id> <name>"
	Description string
}

// Usage returns the command with its argument hint.
func (c CommandDef) Usage() string {
	if c.Args == "" {
		return c.Name
	}
	return c.Name + " " + c.Args
}

// AutocompleteModel keeps the slash commands matching the typed prefix.
type AutocompleteModel struct {
	Commands []CommandDef
	Filtered []CommandDef
	Selected int
	Visible  bool
	maxShow  int
	width    int
}

// NewAutocomplete creates a completion popup over commands.
func NewAutocomplete(commands []CommandDef) AutocompleteModel {
	return AutocompleteModel{Commands: commands, maxShow: 6}
}

// SetWidth updates the popup width.
func (m *AutocompleteModel) SetWidth(w int) {
	m.width = w
}

// SetPrefix refilters the commands. An empty prefix or no match hides the popup.
func (m *AutocompleteModel) SetPrefix(prefix string) {
	prefix = strings.ToLower(prefix)
	m.Filtered = m.Filtered[:0]
	for _, c := range m.Commands {
		if prefix != "" && strings.HasPrefix(c.Name, prefix) {
			m.Filtered = append(m.Filtered, c)
		}
	}
	m.Visible = len(m.Filtered) > 0
	if m.Selected >= len(m.Filtered) {
		m.Selected = 0
	}
}

// Hide closes the popup.
func (m *AutocompleteModel) Hide() {
	m.Visible = false
	m.Filtered = nil
	m.Selected = 0
}

// Move shifts the selection by delta, wrapping around.
func (m *AutocompleteModel) Move(delta int) {
	n := len(m.Filtered)
	if n == 0 {
		return
	}
	m.Selected = ((m.Selected+delta)%n + n) % n
}

// Accept returns the selected command name and hides the popup.
func (m *AutocompleteModel) Accept() string {
	if len(m.Filtered) == 0 {
		return ""
	}
	name := m.Filtered[m.Selected].Name
	m.Hide()
	return name
}

// Height returns how many lines the popup occupies.
func (m AutocompleteModel) Height() int {
	if !m.Visible {
		return 0
	}
	return min(len(m.Filtered), m.maxShow) + 2
}

// View renders the popup, or nothing when hidden.
func (m AutocompleteModel) View() string {
	if !m.Visible {
		return ""
	}
	show := m.Filtered
	if len(show) > m.maxShow {
		show = show[:m.maxShow]
	}

	descW := max(m.width-30, 10)
	lines := make([]string, 0, len(show))
	for i, c := range show {
		usage := c.Usage()
		if pad := 22 - len(usage); pad > 0 {
			usage += strings.Repeat(" ", pad)
		}
		line := usage + " " + theme.TextMuted.Render(Truncate(c.Description, descW))
		if i == m.Selected {
			line = theme.TextInfo.Render(theme.SymbolArrowR+" ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorderActive).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}
