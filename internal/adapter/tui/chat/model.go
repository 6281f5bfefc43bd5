package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chatline/internal/adapter/render"
	"chatline/internal/adapter/tui/components"
	"chatline/internal/adapter/tui/theme"
	"chatline/internal/adapter/tui/uxerror"
	"chatline/internal/domain"
	"chatline/internal/infra/config"
	"chatline/internal/usecase"
)

const defaultCallTimeout = 15 * time.Second

// Deps are the collaborators of the chat model.
type Deps struct {
	Conversation *usecase.Conversation
	Sessions     *usecase.SessionService
	Renderer     *render.Renderer
	Username     string
	// LoadHistory loads the conversation's stored messages on start.
	LoadHistory bool
	// CallTimeout bounds session list, history, delete and rename calls.
	CallTimeout time.Duration
	Logger      *slog.Logger
}

type focus int

const (
	focusInput focus = iota
	focusSidebar
)

// Model is the root Bubble Tea model of the chat screen.
type Model struct {
	deps   Deps
	conv   *usecase.Conversation
	notify *notifier

	chatView  components.ChatViewModel
	input     components.InputAreaModel
	statusBar components.StatusBarModel
	sidebar   components.SessionListModel
	filter    components.FilterBarModel
	spinner   spinner.Model

	notice      string
	noticeError bool

	// Request lifecycle: gen is incremented on every new request and on
	// cancel, so results of an abandoned request are ignored.
	waiting  bool
	gen      uint64
	cancelFn context.CancelFunc

	reveal    reveal
	revealCfg RevealConfig

	focus         focus
	showSidebar   bool
	pendingDelete string

	width, height int
	chatW, chatH  int
	quitting      bool
}

// NewModel creates the chat model.
func NewModel(deps Deps) Model {
	if deps.CallTimeout <= 0 {
		deps.CallTimeout = defaultCallTimeout
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Renderer == nil {
		deps.Renderer = render.New(config.RenderConfig{Markdown: true, Style: "auto"})
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	n := &notifier{}
	deps.Conversation.OnFirstReply(func(string) { n.notify(SessionsStaleMsg{}) })

	sb := components.NewStatusBar(defaultHints())
	sb.Username = deps.Username

	m := Model{
		deps:        deps,
		conv:        deps.Conversation,
		notify:      n,
		chatView:    components.NewChatView(deps.Renderer),
		input:       components.NewInputArea(slashCommands),
		statusBar:   sb,
		spinner:     s,
		revealCfg:   RevealConfigForSpeed(RevealNormal),
		showSidebar: true,
	}
	m.sidebar.Current = m.conv.SessionID()
	return m
}

// Init starts the spinner and the initial loads.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.deps.Sessions != nil {
		cmds = append(cmds, loadSessionsCmd(m.deps.Sessions, m.deps.CallTimeout))
	}
	if m.deps.LoadHistory {
		cmds = append(cmds, loadHistoryCmd(m.conv, m.deps.CallTimeout))
	}
	return tea.Batch(cmds...)
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd := m.update(msg)
	m.syncStatus()
	m.layout()
	return m, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd

	case components.InputSubmitMsg:
		return m.handleSubmit(msg.Value)

	case ProgressMsg:
		if msg.Gen == m.gen && m.conv.Streaming() {
			m.refresh()
		}
		return m, nil

	case ReplyDoneMsg:
		return m.handleReplyDone(msg)

	case RevealTickMsg:
		return m.handleRevealTick()

	case HistoryLoadedMsg:
		if msg.Err != nil {
			m.setError(msg.Err)
		} else if m.notice == loadingNotice {
			m.clearNotice()
		}
		m.sidebar.Current = m.conv.SessionID()
		m.refresh()
		m.chatView.Reset()
		return m, nil

	case SessionsLoadedMsg:
		m.sidebar.Loading = false
		if msg.Err != nil {
			m.setError(msg.Err)
			return m, nil
		}
		m.sidebar.SetSessions(msg.Sessions)
		return m, nil

	case SessionDeletedMsg:
		if msg.Err != nil {
			m.setError(msg.Err)
			return m, nil
		}
		if msg.SessionID == m.conv.SessionID() {
			m.startNewChat()
		}
		m.setNotice(theme.SymbolSuccess + " Chat deleted.")
		return m, m.reloadSessions()

	case SessionRenamedMsg:
		if msg.Err != nil {
			m.setError(msg.Err)
			return m, nil
		}
		m.setNotice(fmt.Sprintf("%s Chat renamed to %q.", theme.SymbolSuccess, msg.Name))
		return m, m.reloadSessions()

	case SessionsStaleMsg:
		return m, m.reloadSessions()

	case QuitMsg:
		m.quit()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.waiting {
			// The user message and the partial reply are appended off the
			// update loop; pick them up on every tick.
			m.refresh()
		}
		return m, cmd
	}

	if m.focus == focusInput && !m.waiting {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the chat screen.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 {
		return "  Initializing..."
	}

	main := m.chatView.View()
	if m.sidebarVisible() {
		box := theme.SidebarBox
		if m.focus == focusSidebar {
			box = box.BorderForeground(theme.ColorBorderActive)
		}
		side := box.Width(theme.SidebarWidth - 2).Height(m.chatH).Render(m.sidebar.View())
		main = lipgloss.JoinHorizontal(lipgloss.Top, side, main)
	}

	parts := []string{main}
	if v := m.filter.View(); v != "" {
		parts = append(parts, v)
	}
	if v := m.noticeView(); v != "" {
		parts = append(parts, v)
	}
	parts = append(parts, components.Divider(m.width), m.inputView(), m.statusBar.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) inputView() string {
	if !m.waiting {
		return m.input.View()
	}
	lines := theme.Dim.Render("> waiting for the reply... (Ctrl+C to cancel)") + "\n" +
		m.spinner.View() + " " + m.statusBar.Extra
	return lipgloss.NewStyle().Height(m.input.Textarea.Height()).Render(lines)
}

func (m Model) noticeView() string {
	if m.notice == "" {
		return ""
	}
	style := theme.TextMuted
	if m.noticeError {
		style = theme.TextError
	}
	return lipgloss.NewStyle().PaddingLeft(2).Render(style.Render(m.notice))
}

func (m Model) sidebarVisible() bool {
	return m.showSidebar && m.deps.Sessions != nil && m.width >= 70
}

// layout recalculates sizes for all sub-models.
func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	chatW := m.width
	if m.sidebarVisible() {
		chatW -= theme.SidebarWidth
	}

	used := m.input.Height() + 2 // divider + status bar
	if m.filter.Active() {
		used++
	}
	if v := m.noticeView(); v != "" {
		used += lipgloss.Height(v)
	}
	chatH := max(m.height-used, 3)

	m.statusBar.SetWidth(m.width)
	m.input.SetWidth(m.width)
	m.sidebar.SetHeight(chatH)
	if chatW != m.chatW || chatH != m.chatH {
		m.chatW, m.chatH = chatW, chatH
		m.chatView.SetSize(chatW, chatH)
	}
}

// refresh copies the conversation state into the chat view.
func (m *Model) refresh() {
	if m.filter.Active() {
		msgs := m.conv.Filter(m.filter.Query)
		m.filter.Set(m.filter.Query, len(msgs), len(m.conv.Messages()))
		m.chatView.SetMessages(msgs, nil)
		return
	}

	msgs := m.conv.Messages()
	var partial *domain.ChatMessage
	if p, ok := m.conv.Partial(); ok {
		partial = &p
	}
	if m.reveal.active() && len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		last.Text = m.reveal.shown()
		msgs = msgs[:len(msgs)-1]
		partial = &last
	}
	m.chatView.SetMessages(msgs, partial)
}

func (m *Model) syncStatus() {
	m.statusBar.SessionID = m.conv.SessionID()
	m.statusBar.Streaming = m.conv.Streaming()
	switch {
	case m.waiting:
		m.statusBar.Extra = theme.SymbolSpinner + " Answering..."
	case m.reveal.active():
		m.statusBar.Extra = "revealing"
	default:
		m.statusBar.Extra = ""
	}
	if m.focus == focusSidebar {
		m.statusBar.Hints = sidebarHints()
	} else {
		m.statusBar.Hints = defaultHints()
	}
}

// isMouseEscapeLeak detects mouse escape sequences that leaked through as
// key input during rapid trackpad scrolling (SGR, X11 and URXVT formats).
func isMouseEscapeLeak(s string) bool {
	digits := func(s string) bool {
		for _, r := range s {
			if r != ';' && (r < '0' || r > '9') {
				return false
			}
		}
		return true
	}
	switch {
	case len(s) >= 5 && s[0] == '<' && (s[len(s)-1] == 'M' || s[len(s)-1] == 'm'):
		return digits(s[1 : len(s)-1])
	case len(s) >= 2 && s[0] == '[' && (s[1] == 'M' || s[1] == 'm'):
		return true
	case len(s) >= 5 && s[0] == '[' && s[len(s)-1] == 'M':
		return digits(s[1 : len(s)-1])
	}
	return false
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if isMouseEscapeLeak(msg.String()) {
		return m, nil
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.waiting {
			m.cancelRequest()
			m.setNotice("Request cancelled.")
			return m, nil
		}
		m.quit()
		return m, tea.Quit

	case tea.KeyCtrlN:
		m.startNewChat()
		return m, nil

	case tea.KeyCtrlR:
		return m.regenerate()

	case tea.KeyCtrlB:
		m.showSidebar = !m.showSidebar
		if !m.showSidebar {
			m.focus = focusInput
		}
		return m, nil

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd

	case tea.KeyTab:
		if m.focus == focusSidebar || (!m.input.Autocomplete.Visible && m.sidebarVisible()) {
			m.toggleFocus()
			return m, nil
		}

	case tea.KeyEsc:
		switch {
		case m.filter.Active():
			m.filter.Clear()
			m.refresh()
			return m, nil
		case m.focus == focusSidebar:
			m.toggleFocus()
			return m, nil
		case m.notice != "" && !m.input.Autocomplete.Visible:
			m.clearNotice()
			return m, nil
		}
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	if m.waiting {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	key := msg.String()
	if key != "d" {
		m.pendingDelete = ""
	}
	switch key {
	case "up", "k":
		m.sidebar.MoveUp()
	case "down", "j":
		m.sidebar.MoveDown()
	case "enter":
		if s, ok := m.sidebar.SelectedSession(); ok {
			m.toggleFocus()
			return m.openSession(s.ID)
		}
	case "r":
		return m, m.reloadSessions()
	case "d":
		s, ok := m.sidebar.SelectedSession()
		if !ok {
			return m, nil
		}
		if m.pendingDelete != s.ID {
			m.pendingDelete = s.ID
			m.setNotice(theme.SymbolWarning + " Press d again to delete this chat.")
			return m, nil
		}
		m.pendingDelete = ""
		return m, deleteSessionCmd(m.deps.Sessions, s.ID, m.deps.CallTimeout)
	}
	return m, nil
}

func (m *Model) toggleFocus() {
	if m.focus == focusInput {
		m.focus = focusSidebar
		m.input.SetEnabled(false)
		return
	}
	m.focus = focusInput
	m.pendingDelete = ""
	m.input.SetEnabled(true)
}

// handleSubmit processes user input submission.
func (m Model) handleSubmit(value string) (Model, tea.Cmd) {
	if cmd, args, ok := components.ParseSlashCommand(value); ok {
		return m.handleSlashCommand(cmd, args)
	}
	if m.waiting {
		m.setError(domain.ErrSendInFlight)
		return m, nil
	}

	ctx := m.beginRequest()
	return m, sendCmd(ctx, m.conv, m.notify, value, m.gen)
}

func (m Model) regenerate() (Model, tea.Cmd) {
	if m.waiting {
		m.setError(domain.ErrSendInFlight)
		return m, nil
	}
	msgs := m.conv.Messages()
	idx := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleAssistant {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.setNotice("There is no reply to regenerate.")
		return m, nil
	}

	ctx := m.beginRequest()
	return m, regenerateCmd(ctx, m.conv, m.notify, idx, m.gen)
}

// beginRequest resets transient state and returns the context of a new request.
func (m *Model) beginRequest() context.Context {
	m.reveal.stop()
	m.filter.Clear()
	m.clearNotice()
	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFn = cancel
	m.waiting = true
	m.input.SetEnabled(false)
	m.chatView.Reset()
	return ctx
}

func (m Model) handleReplyDone(msg ReplyDoneMsg) (Model, tea.Cmd) {
	if msg.Gen != m.gen {
		m.refresh()
		return m, nil
	}
	m.waiting = false
	m.cancelFn = nil
	if m.focus == focusInput {
		m.input.SetEnabled(true)
	}

	if msg.Err != nil {
		if errors.Is(msg.Err, context.Canceled) {
			m.setNotice("Request cancelled.")
		} else {
			m.setError(msg.Err)
		}
		m.refresh()
		return m, nil
	}

	if !m.conv.Streaming() && msg.Reply != nil && m.revealCfg.ChunkSize > 0 {
		m.reveal.start(msg.Reply.Text)
		m.refresh()
		return m, revealTickCmd(m.revealCfg.TickRate)
	}
	m.refresh()
	return m, nil
}

func (m Model) handleRevealTick() (Model, tea.Cmd) {
	if !m.reveal.active() {
		return m, nil
	}
	if m.reveal.advance(m.revealCfg.ChunkSize) {
		m.reveal.stop()
		m.refresh()
		return m, nil
	}
	m.refresh()
	return m, revealTickCmd(m.revealCfg.TickRate)
}

const loadingNotice = "Loading chat..."

func (m Model) openSession(id string) (Model, tea.Cmd) {
	if id == m.conv.SessionID() && !m.waiting {
		return m, nil
	}
	m.cancelRequest()
	m.reveal.stop()
	m.filter.Clear()
	m.setNotice(loadingNotice)
	m.sidebar.Current = id
	return m, switchCmd(m.conv, id, m.deps.CallTimeout)
}

func (m *Model) startNewChat() {
	m.cancelRequest()
	m.reveal.stop()
	m.filter.Clear()
	id := m.conv.NewChat()
	m.sidebar.Current = id
	m.refresh()
	m.chatView.Reset()
	m.setNotice("New chat started.")
}

func (m *Model) reloadSessions() tea.Cmd {
	if m.deps.Sessions == nil {
		return nil
	}
	m.sidebar.Loading = len(m.sidebar.Sessions) == 0
	return loadSessionsCmd(m.deps.Sessions, m.deps.CallTimeout)
}

// cancelRequest cancels the in-flight request and bumps the generation
// counter so its late results are ignored.
func (m *Model) cancelRequest() {
	if m.cancelFn != nil {
		m.cancelFn()
		m.cancelFn = nil
	}
	if m.waiting {
		m.gen++
		m.waiting = false
		if m.focus == focusInput {
			m.input.SetEnabled(true)
		}
	}
}

func (m *Model) quit() {
	m.cancelRequest()
	m.quitting = true
}

func (m *Model) setNotice(s string) {
	m.notice = s
	m.noticeError = false
}

func (m *Model) setError(err error) {
	m.notice = uxerror.Humanize(err).Render()
	m.noticeError = true
	m.deps.Logger.Debug("chat error", "error", err, "code", domain.ErrorCodeOf(err))
}

func (m *Model) clearNotice() {
	m.notice = ""
	m.noticeError = false
}

// handleSlashCommand processes a slash command.
func (m Model) handleSlashCommand(cmd string, args []string) (Model, tea.Cmd) {
	switch cmd {
	case "/help":
		m.setNotice(helpText())
		return m, nil

	case "/quit", "/exit":
		m.quit()
		return m, tea.Quit

	case "/new":
		m.startNewChat()
		return m, nil

	case "/sessions":
		m.showSidebar = true
		return m, m.reloadSessions()

	case "/open":
		if len(args) != 1 {
			m.setNotice("Usage: /open <number|id>")
			return m, nil
		}
		id, ok := m.sidebar.Resolve(args[0])
		if !ok {
			id = args[0]
		}
		return m.openSession(id)

	case "/delete":
		id := m.conv.SessionID()
		if len(args) > 0 {
			resolved, ok := m.sidebar.Resolve(args[0])
			if !ok {
				m.setNotice(fmt.Sprintf("No chat matches %q.", args[0]))
				return m, nil
			}
			id = resolved
		}
		if m.deps.Sessions == nil {
			return m, nil
		}
		return m, deleteSessionCmd(m.deps.Sessions, id, m.deps.CallTimeout)

	case "/rename":
		name := strings.TrimSpace(strings.Join(args, " "))
		if name == "" {
			m.setNotice("Usage: /rename <new name>")
			return m, nil
		}
		if m.deps.Sessions == nil {
			return m, nil
		}
		return m, renameSessionCmd(m.deps.Sessions, m.conv.SessionID(), name, m.deps.CallTimeout)

	case "/search":
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			m.filter.Clear()
		} else {
			m.filter.Set(query, 0, 0)
		}
		m.refresh()
		m.chatView.Reset()
		return m, nil

	case "/regen", "/regenerate":
		return m.regenerate()

	case "/cancel":
		if m.waiting {
			m.cancelRequest()
			m.setNotice("Request cancelled.")
		} else {
			m.setNotice("No active request to cancel.")
		}
		return m, nil

	case "/speed":
		m.revealCfg = RevealConfigForSpeed(NextRevealSpeed(m.revealCfg.Speed))
		m.setNotice(fmt.Sprintf("Reveal speed: %s", m.revealCfg.Speed))
		return m, nil

	default:
		m.setNotice(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
		return m, nil
	}
}

var slashCommands = []components.CommandDef{
	{Name: "/help", Description: "Show available commands"},
	{Name: "/new", Description: "Start a new chat"},
	{Name: "/sessions", Description: "Reload the chat list"},
	{Name: "/open", Args: "<n|id>", Description: "Open a stored chat"},
	{Name: "/delete", Args: "[n|id]", Description: "Delete a chat (default: this one)"},
	{Name: "/rename", Args: "<name>", Description: "Rename this chat"},
	{Name: "/search", Args: "[text]", Description: "Filter messages; empty clears"},
	{Name: "/regen", Description: "Regenerate the last reply"},
	{Name: "/cancel", Description: "Cancel the active request"},
	{Name: "/speed", Description: "Cycle one-shot reveal speed"},
	{Name: "/quit", Description: "Exit chatline"},
}

func helpText() string {
	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, c := range slashCommands {
		sb.WriteString(fmt.Sprintf("  %-18s %s\n", c.Usage(), c.Description))
	}
	sb.WriteString(`
Keys:
  Enter / Alt+Enter  send / new line
  Tab                switch between input and chat list
  Ctrl+N             new chat
  Ctrl+R             regenerate the last reply
  Ctrl+B             toggle the chat list
  PgUp / PgDn        scroll
  Esc                clear search or this help
  Ctrl+C             cancel the reply, or quit`)
	return sb.String()
}

func defaultHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "Enter", Desc: "Send"},
		{Key: "Tab", Desc: "Chats"},
		{Key: "Ctrl+N", Desc: "New"},
		{Key: "/help", Desc: "Help"},
		{Key: "Ctrl+C", Desc: "Quit"},
	}
}

func sidebarHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "j/k", Desc: "Move"},
		{Key: "Enter", Desc: "Open"},
		{Key: "d d", Desc: "Delete"},
		{Key: "r", Desc: "Reload"},
		{Key: "Tab", Desc: "Input"},
	}
}
