package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"chatline/internal/adapter/render"
	"chatline/internal/adapter/tui/components"
	"chatline/internal/domain"
	"chatline/internal/infra/config"
	"chatline/internal/usecase"
)

type fakeResponder struct {
	mu        sync.Mutex
	streaming bool
	reply     string
	err       error
	block     bool
	requests  []domain.SendRequest
}

func (f *fakeResponder) Respond(ctx context.Context, req domain.SendRequest, onProgress domain.ProgressFunc) (*domain.ChatMessage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	block, reply, err := f.block, f.reply, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(domain.Progress{Chunk: reply, FullResponse: reply})
		onProgress(domain.Progress{FullResponse: reply, IsComplete: true, SourceType: domain.SourceLLM})
	}
	return &domain.ChatMessage{
		Role:       domain.RoleAssistant,
		Text:       reply,
		Timestamp:  time.Now(),
		SourceType: domain.SourceLLM,
		Sources:    []string{},
	}, nil
}

func (f *fakeResponder) Streaming() bool { return f.streaming }

func (f *fakeResponder) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeStore struct {
	mu       sync.Mutex
	sessions []domain.SessionSummary
	history  map[string][]domain.ChatMessage
	deleted  []string
	renamed  map[string]string
}

func (s *fakeStore) ListSessions(context.Context, string) ([]domain.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SessionSummary(nil), s.sessions...), nil
}

func (s *fakeStore) FetchMessages(_ context.Context, sessionID, _ string) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, ok := s.history[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return append([]domain.ChatMessage(nil), msgs...), nil
}

func (s *fakeStore) DeleteSession(_ context.Context, sessionID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, sessionID)
	return nil
}

func (s *fakeStore) RenameSession(_ context.Context, sessionID, name, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.renamed == nil {
		s.renamed = map[string]string{}
	}
	s.renamed[sessionID] = name
	return nil
}

func seededStore() *fakeStore {
	return &fakeStore{
		sessions: []domain.SessionSummary{
			{ID: "s-1", Preview: "First question"},
			{ID: "s-2", Preview: "Weather today"},
		},
		history: map[string][]domain.ChatMessage{
			"s-1": {
				{Role: domain.RoleUser, Text: "First question"},
				{Role: domain.RoleAssistant, Text: "First answer"},
				{Role: domain.RoleUser, Text: "Second question"},
				{Role: domain.RoleAssistant, Text: "Second answer"},
			},
			"s-2": {
				{Role: domain.RoleUser, Text: "Weather today?"},
				{Role: domain.RoleAssistant, Text: "Sunny", SourceType: domain.SourceWeb},
			},
		},
	}
}

func newTestModel(t *testing.T, resp *fakeResponder, store *fakeStore) Model {
	t.Helper()
	if store == nil {
		store = seededStore()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	conv := usecase.NewConversation(usecase.ConversationDeps{
		Store:     store,
		Responder: resp,
		Logger:    logger,
	}, "s-1", "alice")
	m := NewModel(Deps{
		Conversation: conv,
		Sessions:     usecase.NewSessionService(store, usecase.StaticUser("alice"), logger),
		Renderer:     render.New(config.RenderConfig{Markdown: false}),
		Username:     "alice",
		Logger:       logger,
	})
	m, _ = step(m, tea.WindowSizeMsg{Width: 110, Height: 40})
	return m
}

func step(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func submit(m Model, text string) (Model, tea.Cmd) {
	return step(m, components.InputSubmitMsg{Value: text})
}

// run executes a command and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	m, _ = step(m, cmd())
	return m
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func screen(m Model) string {
	return ansi.Strip(m.View())
}

func TestSubmitSendsAndShowsReply(t *testing.T) {
	resp := &fakeResponder{streaming: true, reply: "Hello from the assistant"}
	m := newTestModel(t, resp, nil)

	m, cmd := submit(m, "hi there")
	if !m.waiting {
		t.Fatal("model is not waiting after submit")
	}
	if !strings.Contains(screen(m), "waiting for the reply") {
		t.Error("waiting indicator not shown")
	}

	m = run(t, m, cmd)
	if m.waiting {
		t.Error("still waiting after the reply")
	}
	msgs := m.conv.Messages()
	if len(msgs) != 2 || msgs[0].Text != "hi there" || msgs[1].Text != "Hello from the assistant" {
		t.Fatalf("messages = %+v", msgs)
	}
	out := screen(m)
	for _, want := range []string{"hi there", "Hello from the assistant", "stream"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestCtrlCCancelsInFlightRequest(t *testing.T) {
	resp := &fakeResponder{streaming: true, block: true}
	m := newTestModel(t, resp, nil)

	m, cmd := submit(m, "slow question")
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	m, quit := step(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if quit != nil {
		t.Fatal("Ctrl+C while waiting must not quit")
	}
	if m.waiting || m.notice != "Request cancelled." {
		t.Fatalf("waiting=%v notice=%q", m.waiting, m.notice)
	}

	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send did not return after cancel")
	}
	m, _ = step(m, msg)
	if m.waiting {
		t.Error("stale completion changed the waiting state")
	}
	msgs := m.conv.Messages()
	if len(msgs) != 1 || msgs[0].Role != domain.RoleUser {
		t.Errorf("messages after cancel = %+v, want only the user message", msgs)
	}
}

func TestCtrlCQuitsWhenIdle(t *testing.T) {
	m := newTestModel(t, &fakeResponder{}, nil)
	m, cmd := step(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Ctrl+C did not quit")
	}
	if m.View() != "Goodbye!\n" {
		t.Errorf("View() = %q", m.View())
	}
}

func TestFailedReplyShowsFriendlyError(t *testing.T) {
	resp := &fakeResponder{
		streaming: true,
		err:       domain.NewTransportError("Client.Stream", errors.New("dial tcp 127.0.0.1:8000: connect: connection refused")),
	}
	m := newTestModel(t, resp, nil)

	m, cmd := submit(m, "anyone there?")
	m = run(t, m, cmd)

	if !m.noticeError || !strings.Contains(m.notice, "Connection Failed") {
		t.Errorf("notice = %q (error=%v)", m.notice, m.noticeError)
	}
	msgs := m.conv.Messages()
	if len(msgs) != 2 || !msgs[1].IsError() {
		t.Fatalf("messages = %+v, want user + fallback", msgs)
	}
	if !strings.Contains(screen(m), "Sorry, I encountered an error") {
		t.Error("fallback reply not shown")
	}
}

func TestOneShotReplyIsRevealed(t *testing.T) {
	resp := &fakeResponder{streaming: false, reply: "abcdefghijklmnopqrstuvwxyz"}
	m := newTestModel(t, resp, nil)

	m, cmd := submit(m, "alphabet")
	m, tick := step(m, cmd())
	if tick == nil || !m.reveal.active() {
		t.Fatal("one-shot reply did not start a reveal")
	}

	m, _ = step(m, RevealTickMsg{})
	if got := m.reveal.shown(); got != "abcdefgh" {
		t.Errorf("after one tick shown = %q", got)
	}
	if !strings.Contains(screen(m), "one-shot") {
		t.Error("status bar does not show one-shot mode")
	}

	for i := 0; i < 10 && m.reveal.active(); i++ {
		m, _ = step(m, RevealTickMsg{})
	}
	if m.reveal.active() {
		t.Fatal("reveal never finished")
	}
	if !strings.Contains(screen(m), "abcdefghijklmnopqrstuvwxyz") {
		t.Error("full reply not shown after the reveal")
	}
}

func TestInstantSpeedSkipsReveal(t *testing.T) {
	resp := &fakeResponder{streaming: false, reply: "instant"}
	m := newTestModel(t, resp, nil)

	for _, want := range []RevealSpeed{RevealFast, RevealInstant} {
		m, _ = submit(m, "/speed")
		if m.revealCfg.Speed != want {
			t.Fatalf("speed = %v, want %v", m.revealCfg.Speed, want)
		}
	}

	m, cmd := submit(m, "go")
	m, tick := step(m, cmd())
	if tick != nil || m.reveal.active() {
		t.Error("instant speed still revealed")
	}
}

func TestRegenerateLastReply(t *testing.T) {
	resp := &fakeResponder{streaming: true, reply: "answer"}
	m := newTestModel(t, resp, nil)

	m, cmd := submit(m, "question")
	m = run(t, m, cmd)

	m, cmd = step(m, tea.KeyMsg{Type: tea.KeyCtrlR})
	m = run(t, m, cmd)

	if n := resp.requestCount(); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
	if resp.requests[1].Message != "question" {
		t.Errorf("regenerated prompt = %q", resp.requests[1].Message)
	}
	if n := len(m.conv.Messages()); n != 2 {
		t.Errorf("messages = %d, want 2", n)
	}
}

func TestRegenerateWithoutReply(t *testing.T) {
	m := newTestModel(t, &fakeResponder{}, nil)
	m, cmd := submit(m, "/regen")
	if cmd != nil || !strings.Contains(m.notice, "no reply") {
		t.Errorf("notice = %q, cmd = %v", m.notice, cmd != nil)
	}
}

func TestNewChatCommand(t *testing.T) {
	m := newTestModel(t, &fakeResponder{streaming: true, reply: "x"}, nil)
	m, cmd := submit(m, "hello")
	m = run(t, m, cmd)

	m, _ = submit(m, "/new")
	if m.conv.SessionID() == "s-1" {
		t.Error("session id unchanged")
	}
	if len(m.conv.Messages()) != 0 {
		t.Error("messages not cleared")
	}
	if m.sidebar.Current != m.conv.SessionID() {
		t.Error("sidebar does not track the new session")
	}
}

func TestSearchFiltersMessages(t *testing.T) {
	m := newTestModel(t, &fakeResponder{}, nil)
	if err := m.conv.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m, _ = step(m, HistoryLoadedMsg{SessionID: "s-1"})

	m, _ = submit(m, "/search SECOND")
	if !m.filter.Active() || m.filter.Filtered != 2 || m.filter.Total != 4 {
		t.Fatalf("filter = %+v", m.filter)
	}
	out := screen(m)
	if strings.Contains(out, "First answer") || !strings.Contains(out, "Second answer") {
		t.Errorf("filtered view wrong:\n%s", out)
	}

	m, _ = step(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.filter.Active() {
		t.Error("Esc did not clear the search")
	}
}

func TestSessionSidebarOpen(t *testing.T) {
	store := seededStore()
	m := newTestModel(t, &fakeResponder{}, store)

	m = run(t, m, loadSessionsCmd(m.deps.Sessions, time.Second))
	if len(m.sidebar.Sessions) != 2 {
		t.Fatalf("sidebar sessions = %d", len(m.sidebar.Sessions))
	}
	if !strings.Contains(screen(m), "Weather today") {
		t.Error("sidebar preview not shown")
	}

	m, _ = step(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != focusSidebar {
		t.Fatal("Tab did not focus the sidebar")
	}
	m, _ = step(m, key("j"))
	m, cmd := step(m, tea.KeyMsg{Type: tea.KeyEnter})
	m = run(t, m, cmd)

	if m.conv.SessionID() != "s-2" {
		t.Errorf("session = %q, want s-2", m.conv.SessionID())
	}
	if m.focus != focusInput {
		t.Error("focus did not return to the input")
	}
	if !strings.Contains(screen(m), "Sunny") {
		t.Error("switched history not shown")
	}
}

func TestOpenCommandResolvesIndex(t *testing.T) {
	m := newTestModel(t, &fakeResponder{}, nil)
	m = run(t, m, loadSessionsCmd(m.deps.Sessions, time.Second))

	m, cmd := submit(m, "/open 2")
	m = run(t, m, cmd)
	if m.conv.SessionID() != "s-2" {
		t.Errorf("session = %q", m.conv.SessionID())
	}
}

func TestOpenUnknownSessionShowsError(t *testing.T) {
	m := newTestModel(t, &fakeResponder{}, nil)
	m, cmd := submit(m, "/open missing-id")
	m = run(t, m, cmd)
	if !m.noticeError || !strings.Contains(m.notice, "Chat Not Found") {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestDeleteCurrentSessionStartsNewChat(t *testing.T) {
	store := seededStore()
	m := newTestModel(t, &fakeResponder{}, store)

	m, cmd := submit(m, "/delete")
	m, reload := step(m, cmd())
	if len(store.deleted) != 1 || store.deleted[0] != "s-1" {
		t.Errorf("deleted = %v", store.deleted)
	}
	if m.conv.SessionID() == "s-1" {
		t.Error("still on the deleted session")
	}
	if reload == nil {
		t.Error("session list not reloaded after delete")
	}
}

func TestSidebarDeleteNeedsConfirmation(t *testing.T) {
	store := seededStore()
	m := newTestModel(t, &fakeResponder{}, store)
	m = run(t, m, loadSessionsCmd(m.deps.Sessions, time.Second))

	m, _ = step(m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = step(m, key("j"))
	m, cmd := step(m, key("d"))
	if cmd != nil || !strings.Contains(m.notice, "Press d again") {
		t.Fatalf("first d: notice %q", m.notice)
	}
	m, cmd = step(m, key("d"))
	m = run(t, m, cmd)
	if len(store.deleted) != 1 || store.deleted[0] != "s-2" {
		t.Errorf("deleted = %v", store.deleted)
	}
	if m.conv.SessionID() != "s-1" {
		t.Error("deleting another chat changed the current session")
	}
}

func TestRenameCommand(t *testing.T) {
	store := seededStore()
	m := newTestModel(t, &fakeResponder{}, store)

	m, cmd := submit(m, "/rename  Trip planning ")
	m = run(t, m, cmd)
	if store.renamed["s-1"] != "Trip planning" {
		t.Errorf("renamed = %v", store.renamed)
	}
	if !strings.Contains(m.notice, "Trip planning") {
		t.Errorf("notice = %q", m.notice)
	}

	m, cmd = submit(m, "/rename")
	if cmd != nil || !strings.HasPrefix(m.notice, "Usage") {
		t.Errorf("empty rename: notice %q", m.notice)
	}
}

func TestUnknownAndHelpCommands(t *testing.T) {
	m := newTestModel(t, &fakeResponder{}, nil)

	m, _ = submit(m, "/bogus")
	if !strings.Contains(m.notice, "Unknown command: /bogus") {
		t.Errorf("notice = %q", m.notice)
	}

	m, _ = submit(m, "/help")
	for _, want := range []string{"/regen", "/rename <name>", "Ctrl+N"} {
		if !strings.Contains(m.notice, want) {
			t.Errorf("help missing %q", want)
		}
	}
	m, _ = step(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.notice != "" {
		t.Error("Esc did not dismiss the help")
	}
}

func TestStaleProgressIgnored(t *testing.T) {
	m := newTestModel(t, &fakeResponder{streaming: true}, nil)
	m.gen = 5
	m.waiting = true
	m, _ = step(m, ReplyDoneMsg{Gen: 4, Err: errors.New("late")})
	if !m.waiting || m.notice != "" {
		t.Errorf("stale completion applied: waiting=%v notice=%q", m.waiting, m.notice)
	}
}

func TestIsMouseEscapeLeak(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"<65;38;21M", true},
		{"<0;1;1m", true},
		{"[M!!", true},
		{"[65;38;21M", true},
		{"hello", false},
		{"<abc>M", false},
		{"j", false},
	}
	for _, tt := range tests {
		if got := isMouseEscapeLeak(tt.in); got != tt.want {
			t.Errorf("isMouseEscapeLeak(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNextRevealSpeed(t *testing.T) {
	if NextRevealSpeed(RevealNormal) != RevealFast || NextRevealSpeed(RevealFast) != RevealInstant ||
		NextRevealSpeed(RevealInstant) != RevealNormal {
		t.Error("unexpected speed cycle")
	}
	if RevealConfigForSpeed(RevealInstant).ChunkSize != 0 {
		t.Error("instant must reveal everything at once")
	}
}
