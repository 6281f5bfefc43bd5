package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"chatline/internal/adapter/tui/theme"
)

// KeyHint is one keybinding hint shown in the status bar.
type KeyHint struct {
	Key  string
	Desc string
}

// StatusBarModel renders the bottom line: key hints on the left, the user,
// session and reply mode on the right.
type StatusBarModel struct {
	Hints     []KeyHint
	Username  string
	SessionID string
	Streaming bool
	Extra     string // transient status such as "Answering..."
	width     int
}

// NewStatusBar creates a status bar.
func NewStatusBar(hints []KeyHint) StatusBarModel {
	return StatusBarModel{Hints: hints}
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// View renders the status bar as a single line.
func (m StatusBarModel) View() string {
	hints := make([]string, 0, len(m.Hints))
	for _, h := range m.Hints {
		hints = append(hints, theme.StatusKey.Render(h.Key)+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	var parts []string
	if m.Username != "" {
		parts = append(parts, m.Username)
	}
	if m.SessionID != "" {
		parts = append(parts, Truncate(m.SessionID, 9))
	}
	if m.Streaming {
		parts = append(parts, "stream")
	} else {
		parts = append(parts, "one-shot")
	}
	right := theme.TextMuted.Render(strings.Join(parts, " "+theme.SymbolBullet+" "))
	if m.Extra != "" {
		right = theme.TextInfo.Render(m.Extra) + "  " + right
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
