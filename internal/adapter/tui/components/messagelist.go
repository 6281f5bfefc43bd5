package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"chatline/internal/adapter/render"
	"chatline/internal/adapter/tui/theme"
	"chatline/internal/domain"
)

// entry is one message plus its cached render.
type entry struct {
	msg      domain.ChatMessage
	rendered string // empty means not yet rendered
}

// MessageListModel renders the messages of one conversation. Finalized
// messages are rendered once and cached; the partial reply is re-rendered
// on every update.
type MessageListModel struct {
	entries  []entry
	partial  *domain.ChatMessage
	width    int
	renderer *render.Renderer
	empty    string
}

// NewMessageList creates an empty message list that renders through r.
func NewMessageList(r *render.Renderer) MessageListModel {
	return MessageListModel{renderer: r, empty: "No messages yet. Start a conversation!"}
}

// SetWidth updates the rendering width and clears cached renders.
func (m *MessageListModel) SetWidth(w int) {
	if w == m.width {
		return
	}
	m.width = w
	for i := range m.entries {
		m.entries[i].rendered = ""
	}
}

// SetEmptyText changes the placeholder shown for an empty list.
func (m *MessageListModel) SetEmptyText(s string) {
	m.empty = s
}

// SetMessages replaces the whole list. Cached renders are kept for messages
// that did not change.
func (m *MessageListModel) SetMessages(msgs []domain.ChatMessage) {
	next := make([]entry, len(msgs))
	for i, msg := range msgs {
		next[i] = entry{msg: msg}
		if i < len(m.entries) && sameMessage(m.entries[i].msg, msg) {
			next[i].rendered = m.entries[i].rendered
		}
	}
	m.entries = next
}

// SetPartial sets the in-flight reply. A nil value removes it.
func (m *MessageListModel) SetPartial(p *domain.ChatMessage) {
	m.partial = p
}

// Len returns the number of finalized messages.
func (m *MessageListModel) Len() int {
	return len(m.entries)
}

// Message returns the i-th finalized message.
func (m *MessageListModel) Message(i int) domain.ChatMessage {
	return m.entries[i].msg
}

// View renders all messages as a single string.
func (m *MessageListModel) View() string {
	if len(m.entries) == 0 && m.partial == nil {
		return theme.TextMuted.Render("  " + m.empty)
	}

	width := ContentWidth(m.width)
	var sb strings.Builder
	for i := range m.entries {
		e := &m.entries[i]
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if e.rendered == "" {
			e.rendered = m.renderMessage(e.msg, width)
		}
		sb.WriteString(e.rendered)
	}
	if m.partial != nil {
		if len(m.entries) > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(m.renderPartial(*m.partial, width))
	}
	return sb.String()
}

func (m *MessageListModel) renderMessage(msg domain.ChatMessage, width int) string {
	header := header(msg)
	body := m.renderer.Message(msg, width-2)
	return header + "\n" + indent(body)
}

// renderPartial shows the reply so far as plain wrapped text followed by a
// cursor. Markdown is applied once the reply is final.
func (m *MessageListModel) renderPartial(msg domain.ChatMessage, width int) string {
	h := theme.BotLabel.Render(theme.SymbolBot) + " " + theme.TextMuted.Render(theme.SymbolSpinner)
	body := render.Wrap(msg.Text, width-2) + theme.TextInfo.Render("▍")
	return h + "\n" + indent(body)
}

func header(msg domain.ChatMessage) string {
	var label string
	switch {
	case msg.IsError():
		label = theme.ErrorLabel.Render(theme.SymbolError + " " + theme.SymbolBot)
	case msg.Role == domain.RoleAssistant:
		label = theme.BotLabel.Render(theme.SymbolBot)
	default:
		label = theme.UserLabel.Render(theme.SymbolUser)
	}
	if ts := RelativeTime(msg.Timestamp); ts != "" {
		return label + " " + theme.Timestamp.Render(ts)
	}
	return label
}

func sameMessage(a, b domain.ChatMessage) bool {
	return a.Role == b.Role && a.Text == b.Text && a.SourceType == b.SourceType &&
		a.Timestamp.Equal(b.Timestamp) && len(a.Sources) == len(b.Sources)
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}

// RelativeTime returns a human-readable relative time string.
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2 15:04")
	}
}

// Truncate shortens s to max runes, ending with an ellipsis.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	if max == 1 {
		return theme.SymbolEllipsis
	}
	return string(runes[:max-1]) + theme.SymbolEllipsis
}

// ContentWidth calculates the content width respecting MaxContentWidth.
func ContentWidth(termWidth int) int {
	w := termWidth - 4
	if w > theme.MaxContentWidth {
		w = theme.MaxContentWidth
	}
	if w < 40 {
		w = 40
	}
	return w
}

// Divider renders a horizontal line at the given width.
func Divider(width int) string {
	return lipgloss.NewStyle().
		Foreground(theme.ColorBorder).
		Render(strings.Repeat("─", width))
}
