package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"chatline/internal/domain"
)

// --- Mocks ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeChatService replays a fixed list of events on every Stream call. With
// hold set the channel stays open after the events until ctx is cancelled.
type fakeChatService struct {
	mu       sync.Mutex
	events   []domain.StreamEvent
	openErr  error
	hold     bool
	reply    *domain.ChatMessage
	sendErr  error
	requests []domain.SendRequest
	done     chan struct{} // closed when the last producer exits
}

func (f *fakeChatService) Stream(ctx context.Context, req domain.SendRequest) (<-chan domain.StreamEvent, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	events, hold, openErr := f.events, f.hold, f.openErr
	done := make(chan struct{})
	f.done = done
	f.mu.Unlock()

	if openErr != nil {
		close(done)
		return nil, openErr
	}

	ch := make(chan domain.StreamEvent)
	go func() {
		defer close(done)
		defer close(ch)
		for _, ev := range events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
		if hold {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func (f *fakeChatService) Send(_ context.Context, req domain.SendRequest) (*domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	cp := *f.reply
	return &cp, nil
}

func (f *fakeChatService) lastRequest() domain.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeChatService) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// producerDone reports whether the most recent stream's producer exited
// within a short grace period.
func (f *fakeChatService) producerDone() bool {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()
	select {
	case <-done:
		return true
	case <-time.After(time.Second):
		return false
	}
}

// recorder captures progress callbacks.
type recorder struct {
	mu    sync.Mutex
	calls []domain.Progress
}

func (r *recorder) record(p domain.Progress) {
	r.mu.Lock()
	r.calls = append(r.calls, p)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []domain.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Progress(nil), r.calls...)
}

func (r *recorder) completions() int {
	n := 0
	for _, p := range r.snapshot() {
		if p.IsComplete {
			n++
		}
	}
	return n
}

// fakeStore is an in-memory SessionStore.
type fakeStore struct {
	mu        sync.Mutex
	sessions  []domain.SessionSummary
	history   map[string][]domain.ChatMessage
	err       error
	deleted   []string
	renamed   map[string]string
	usernames []string
}

func (s *fakeStore) ListSessions(_ context.Context, username string) ([]domain.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usernames = append(s.usernames, username)
	if s.err != nil {
		return nil, s.err
	}
	return s.sessions, nil
}

func (s *fakeStore) FetchMessages(_ context.Context, sessionID, username string) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usernames = append(s.usernames, username)
	if s.err != nil {
		return nil, s.err
	}
	msgs, ok := s.history[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return append([]domain.ChatMessage(nil), msgs...), nil
}

func (s *fakeStore) DeleteSession(_ context.Context, sessionID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usernames = append(s.usernames, username)
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, sessionID)
	return nil
}

func (s *fakeStore) RenameSession(_ context.Context, sessionID, newName, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usernames = append(s.usernames, username)
	if s.err != nil {
		return s.err
	}
	if s.renamed == nil {
		s.renamed = make(map[string]string)
	}
	s.renamed[sessionID] = newName
	return nil
}

// fakeAuth records credential calls.
type fakeAuth struct {
	signupErr error
	loginErr  error
	calls     []domain.Credentials
}

func (a *fakeAuth) Signup(_ context.Context, creds domain.Credentials) error {
	a.calls = append(a.calls, creds)
	return a.signupErr
}

func (a *fakeAuth) Login(_ context.Context, creds domain.Credentials) error {
	a.calls = append(a.calls, creds)
	return a.loginErr
}

func frag(s string) domain.StreamEvent { return domain.FragmentEvent(s) }

func finished(st domain.SourceType, sources ...string) domain.StreamEvent {
	return domain.FinishedEvent(st, sources)
}

var helloReq = domain.SendRequest{SessionID: "s-1", Message: "hi", Username: "alice"}
