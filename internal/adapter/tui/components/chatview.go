package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"chatline/internal/adapter/render"
	"chatline/internal/domain"
)

// ChatViewModel wraps a viewport with smart auto-scroll behavior.
// Auto-scroll is active when the user is at the bottom.
// If the user scrolls up, auto-scroll pauses.
// It resumes when the user scrolls back to the bottom.
type ChatViewModel struct {
	Viewport viewport.Model
	Messages MessageListModel
	ready    bool
	atBottom bool
}

// NewChatView creates a chat view. The viewport is initialized lazily on the first SetSize.
func NewChatView(r *render.Renderer) ChatViewModel {
	return ChatViewModel{
		Messages: NewMessageList(r),
		atBottom: true,
	}
}

// SetSize sets the viewport dimensions and triggers content re-render.
func (m *ChatViewModel) SetSize(w, h int) {
	m.Messages.SetWidth(w)
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.Viewport.MouseWheelDelta = 3
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refresh()
}

// SetMessages replaces the finalized messages and the partial reply.
func (m *ChatViewModel) SetMessages(msgs []domain.ChatMessage, partial *domain.ChatMessage) {
	m.Messages.SetMessages(msgs)
	m.Messages.SetPartial(partial)
	m.refresh()
}

// SetEmptyText changes the placeholder shown when there are no messages.
func (m *ChatViewModel) SetEmptyText(s string) {
	m.Messages.SetEmptyText(s)
	m.refresh()
}

// Reset scrolls back to the top and re-enables auto-scroll.
func (m *ChatViewModel) Reset() {
	m.atBottom = true
	m.Viewport.GotoTop()
}

// AtBottom reports whether auto-scroll is active.
func (m ChatViewModel) AtBottom() bool {
	return m.atBottom
}

// Update handles viewport scrolling and tracks auto-scroll state.
func (m ChatViewModel) Update(msg tea.Msg) (ChatViewModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	m.atBottom = m.Viewport.AtBottom()
	return m, cmd
}

// RawText returns the unrendered text of all finalized messages.
func (m ChatViewModel) RawText() string {
	parts := make([]string, 0, m.Messages.Len())
	for i := 0; i < m.Messages.Len(); i++ {
		parts = append(parts, m.Messages.Message(i).Text)
	}
	return strings.Join(parts, "\n")
}

// View renders the chat viewport.
func (m ChatViewModel) View() string {
	if !m.ready {
		return "  Initializing..."
	}
	return m.Viewport.View()
}

func (m *ChatViewModel) refresh() {
	if !m.ready {
		return
	}
	m.Viewport.SetContent(m.Messages.View())
	if m.atBottom {
		m.Viewport.GotoBottom()
	}
}
