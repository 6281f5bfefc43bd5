package domain

import "context"

// ChatService sends one message and returns the complete reply in a single
// round trip.
type ChatService interface {
	Send(ctx context.Context, req SendRequest) (*ChatMessage, error)
}

// StreamingChatService extends ChatService with incremental delivery.
type StreamingChatService interface {
	ChatService
	// Stream opens one streaming channel for req. The returned channel
	// yields events in arrival order and is closed after the first terminal
	// event, when the body ends, or when ctx is cancelled. Cancelling ctx is
	// the only way to close the channel early.
	Stream(ctx context.Context, req SendRequest) (<-chan StreamEvent, error)
}

// SessionSummary is one entry of the session list.
type SessionSummary struct {
	ID      string `json:"session_id"`
	Preview string `json:"preview"`
}

// SessionStore manages stored conversations on the service.
type SessionStore interface {
	ListSessions(ctx context.Context, username string) ([]SessionSummary, error)
	FetchMessages(ctx context.Context, sessionID, username string) ([]ChatMessage, error)
	DeleteSession(ctx context.Context, sessionID, username string) error
	RenameSession(ctx context.Context, sessionID, newName, username string) error
}

// Credentials identify a user to the service.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Authenticator performs credential operations against the service.
type Authenticator interface {
	Signup(ctx context.Context, creds Credentials) error
	Login(ctx context.Context, creds Credentials) error
}
