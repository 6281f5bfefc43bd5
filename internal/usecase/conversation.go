package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chatline/internal/domain"
)

// ConversationDeps holds the collaborators of a Conversation.
type ConversationDeps struct {
	Store     domain.SessionStore
	Responder Responder
	Guard     *SendGuard // shared across conversations; nil creates a private one
	Logger    *slog.Logger
}

// Conversation is the client-side view of one chat session: its finalized
// messages plus the reply currently being streamed, if any.
type Conversation struct {
	deps ConversationDeps

	mu           sync.RWMutex
	sessionID    string
	username     string
	msgs         []domain.ChatMessage
	partial      *domain.ChatMessage
	onFirstReply func(sessionID string)
}

// NewConversation opens a conversation for username. An empty sessionID
// starts a new chat.
func NewConversation(deps ConversationDeps, sessionID, username string) *Conversation {
	if deps.Guard == nil {
		deps.Guard = NewSendGuard()
	}
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	return &Conversation{
		deps:      deps,
		sessionID: sessionID,
		username:  username,
		msgs:      make([]domain.ChatMessage, 0),
	}
}

// SessionID returns the current session identifier.
func (c *Conversation) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Streaming reports whether the transport delivers replies incrementally.
func (c *Conversation) Streaming() bool {
	return c.deps.Responder.Streaming()
}

// Messages returns a copy of the finalized messages.
func (c *Conversation) Messages() []domain.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make([]domain.ChatMessage, len(c.msgs))
	copy(cp, c.msgs)
	return cp
}

// Partial returns the reply being streamed, if any.
func (c *Conversation) Partial() (domain.ChatMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.partial == nil {
		return domain.ChatMessage{}, false
	}
	return *c.partial, true
}

// Busy reports whether a send for this conversation is in flight.
func (c *Conversation) Busy() bool {
	return c.deps.Guard.Busy(c.SessionID())
}

// OnFirstReply registers fn to run after the first assistant reply of a
// conversation that had no messages. Front ends use it to refresh the
// session list, since the service creates the session on that message.
func (c *Conversation) OnFirstReply(fn func(sessionID string)) {
	c.mu.Lock()
	c.onFirstReply = fn
	c.mu.Unlock()
}

// Load replaces the messages with the stored history of the session.
// History entries without a timestamp are stamped with the load time.
func (c *Conversation) Load(ctx context.Context) error {
	sessionID := c.SessionID()
	msgs, err := c.deps.Store.FetchMessages(ctx, sessionID, c.username)
	if err != nil {
		return domain.WrapOp("Conversation.Load", err)
	}
	now := time.Now()
	for i := range msgs {
		if msgs[i].Timestamp.IsZero() {
			msgs[i].Timestamp = now
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != sessionID {
		return nil
	}
	c.msgs = msgs
	c.partial = nil
	return nil
}

// Switch moves the conversation to another stored session and loads it.
func (c *Conversation) Switch(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	c.sessionID = sessionID
	c.msgs = make([]domain.ChatMessage, 0)
	c.partial = nil
	c.mu.Unlock()
	return c.Load(ctx)
}

// NewChat starts a fresh session and returns its id. A reply still streaming
// for the previous session is dropped when it completes.
func (c *Conversation) NewChat() string {
	id := NewSessionID()
	c.mu.Lock()
	c.sessionID = id
	c.msgs = make([]domain.ChatMessage, 0)
	c.partial = nil
	c.mu.Unlock()
	return id
}

// Filter returns the messages whose text contains query, ignoring case.
// An empty query matches everything.
func (c *Conversation) Filter(query string) []domain.ChatMessage {
	q := strings.ToLower(query)
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.ChatMessage, 0, len(c.msgs))
	for _, m := range c.msgs {
		if strings.Contains(strings.ToLower(m.Text), q) {
			out = append(out, m)
		}
	}
	return out
}

// Send appends text as a user message and obtains the reply. On failure the
// partial reply is discarded, a fallback assistant message is appended and
// the error is returned. Cancelling ctx adds no fallback.
func (c *Conversation) Send(ctx context.Context, text string, onProgress domain.ProgressFunc) (*domain.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyMessage
	}

	c.mu.Lock()
	sessionID := c.sessionID
	release, err := c.deps.Guard.TryAcquire(sessionID)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	defer release()
	firstExchange := len(c.msgs) == 0
	c.msgs = append(c.msgs, domain.NewUserMessage(text))
	c.mu.Unlock()

	reply, err := c.respond(ctx, sessionID, text, onProgress, true)
	if err != nil {
		return nil, err
	}
	if firstExchange {
		c.mu.RLock()
		hook := c.onFirstReply
		c.mu.RUnlock()
		if hook != nil {
			hook(sessionID)
		}
	}
	return reply, nil
}

// Regenerate drops the messages from idx onwards and asks again with the
// last user message before idx. No user message is added and a failure
// leaves no fallback message behind.
func (c *Conversation) Regenerate(ctx context.Context, idx int, onProgress domain.ProgressFunc) (*domain.ChatMessage, error) {
	c.mu.Lock()
	sessionID := c.sessionID
	release, err := c.deps.Guard.TryAcquire(sessionID)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	defer release()

	if idx < 0 || idx > len(c.msgs) {
		c.mu.Unlock()
		return nil, domain.NewDomainError("Conversation.Regenerate", domain.ErrInvalidInput,
			fmt.Sprintf("message index %d out of range", idx))
	}
	prompt := ""
	for i := idx - 1; i >= 0; i-- {
		if c.msgs[i].Role == domain.RoleUser {
			prompt = c.msgs[i].Text
			break
		}
	}
	if prompt == "" {
		c.mu.Unlock()
		return nil, domain.NewDomainError("Conversation.Regenerate", domain.ErrInvalidInput,
			"no user message before this point")
	}
	c.msgs = c.msgs[:idx:idx]
	c.mu.Unlock()

	return c.respond(ctx, sessionID, prompt, onProgress, false)
}

// respond drives the responder, mirroring progress into the partial
// message. Results for a session the conversation has since left are
// dropped.
func (c *Conversation) respond(ctx context.Context, sessionID, text string, onProgress domain.ProgressFunc, fallback bool) (*domain.ChatMessage, error) {
	c.mu.Lock()
	if c.sessionID == sessionID {
		c.partial = &domain.ChatMessage{Role: domain.RoleAssistant, Timestamp: time.Now(), Sources: []string{}}
	}
	c.mu.Unlock()

	track := func(p domain.Progress) {
		c.mu.Lock()
		if c.sessionID == sessionID && c.partial != nil && !p.IsComplete {
			c.partial.Text = p.FullResponse
		}
		c.mu.Unlock()
		if onProgress != nil {
			onProgress(p)
		}
	}

	req := domain.SendRequest{SessionID: sessionID, Message: text, Username: c.username}
	reply, err := c.deps.Responder.Respond(ctx, req, track)

	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.sessionID == sessionID
	if current {
		c.partial = nil
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.deps.Logger.Debug("reply cancelled", "session", sessionID)
			return nil, err
		}
		c.deps.Logger.Warn("reply failed", "session", sessionID, "error", err, "code", domain.ErrorCodeOf(err))
		if current && fallback {
			c.msgs = append(c.msgs, domain.NewFallbackMessage())
		}
		return nil, err
	}
	if !current {
		c.deps.Logger.Debug("dropping reply for inactive session", "session", sessionID)
		return reply, nil
	}
	c.msgs = append(c.msgs, *reply)
	return reply, nil
}
