package usecase

import "github.com/google/uuid"

// NewSessionID returns a random identifier for a new conversation. The
// service creates the session lazily on its first message.
func NewSessionID() string {
	return uuid.NewString()
}
