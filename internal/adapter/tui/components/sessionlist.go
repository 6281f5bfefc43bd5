package components

import (
	"strconv"
	"strings"

	"chatline/internal/adapter/tui/theme"
	"chatline/internal/domain"
)

// SessionListModel is the sidebar of stored chats. Selection moves with
// MoveUp and MoveDown; the current session is highlighted separately.
type SessionListModel struct {
	Sessions []domain.SessionSummary
	Selected int
	Current  string
	Loading  bool
	height   int
}

// SetHeight sets how many lines the sidebar may use.
func (m *SessionListModel) SetHeight(h int) {
	m.height = h
}

// SetSessions replaces the list, keeping the selection on the same id when
// it is still present.
func (m *SessionListModel) SetSessions(sessions []domain.SessionSummary) {
	keep := ""
	if sel, ok := m.SelectedSession(); ok {
		keep = sel.ID
	}
	m.Sessions = sessions
	m.Loading = false
	m.Selected = 0
	for i, s := range sessions {
		if s.ID == keep {
			m.Selected = i
			break
		}
	}
}

// MoveUp moves the selection up one entry.
func (m *SessionListModel) MoveUp() {
	if m.Selected > 0 {
		m.Selected--
	}
}

// MoveDown moves the selection down one entry.
func (m *SessionListModel) MoveDown() {
	if m.Selected < len(m.Sessions)-1 {
		m.Selected++
	}
}

// SelectedSession returns the highlighted entry.
func (m SessionListModel) SelectedSession() (domain.SessionSummary, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Sessions) {
		return domain.SessionSummary{}, false
	}
	return m.Sessions[m.Selected], true
}

// Resolve maps a 1-based index or an id prefix typed by the user onto a
// session id.
func (m SessionListModel) Resolve(ref string) (string, bool) {
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(m.Sessions) {
		return m.Sessions[n-1].ID, true
	}
	match := ""
	for _, s := range m.Sessions {
		if strings.HasPrefix(s.ID, ref) {
			if match != "" {
				return "", false
			}
			match = s.ID
		}
	}
	return match, match != ""
}

// View renders the sidebar without its border.
func (m SessionListModel) View() string {
	width := theme.SidebarWidth - 4
	var sb strings.Builder
	sb.WriteString(theme.SidebarTitle.Render("Chats"))
	switch {
	case m.Loading:
		sb.WriteString("\n" + theme.TextMuted.Render("loading"+theme.SymbolEllipsis))
		return sb.String()
	case len(m.Sessions) == 0:
		sb.WriteString("\n" + theme.TextMuted.Render("no saved chats"))
		return sb.String()
	}

	rows := len(m.Sessions)
	start := 0
	if m.height > 2 && rows > m.height-2 {
		rows = m.height - 2
		start = min(max(m.Selected-rows/2, 0), len(m.Sessions)-rows)
	}
	for i := start; i < start+rows; i++ {
		s := m.Sessions[i]
		label := preview(s)
		line := Truncate(label, width)
		switch {
		case i == m.Selected:
			line = theme.SessionSelected.Render(line)
		case s.ID == m.Current:
			line = theme.SessionCurrent.Render(line)
		default:
			line = theme.SessionItem.Render(line)
		}
		sb.WriteString("\n" + line)
	}
	return sb.String()
}

func preview(s domain.SessionSummary) string {
	p := strings.Join(strings.Fields(s.Preview), " ")
	if p == "" {
		return Truncate(s.ID, 8)
	}
	return p
}
