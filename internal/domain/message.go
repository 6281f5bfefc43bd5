package domain

import (
	"strings"
	"time"
)

// Role identifies who authored a chat message.
type Role string

// Role constants for message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole maps a role string from the service onto a Role.
// The service reports history roles as "User"/"Chatbot" (or upper-case
// variants); anything that is not the assistant is treated as the user.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "assistant", "chatbot", "bot":
		return RoleAssistant
	default:
		return RoleUser
	}
}

// SourceType classifies where an assistant response came from.
type SourceType string

// Known source classifications. Unknown values reported by the service are
// kept verbatim.
const (
	SourceNone      SourceType = ""
	SourceLLM       SourceType = "llm"
	SourceRetrieval SourceType = "retrieval"
	SourceWeb       SourceType = "web"
	SourceError     SourceType = "error"
)

// DefaultSourceType is applied when a finished response carries no source
// classification.
const DefaultSourceType = SourceLLM

// FallbackReply is shown in place of an assistant response that failed.
const FallbackReply = "Sorry, I encountered an error while processing your message. Please try again."

// ChatMessage is a single finalized message in a conversation.
type ChatMessage struct {
	Role       Role       `json:"role"`
	Text       string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
	SourceType SourceType `json:"source_type,omitempty"`
	Sources    []string   `json:"sources"`
}

// NewUserMessage creates a user message stamped with the current time.
func NewUserMessage(text string) ChatMessage {
	return ChatMessage{
		Role:      RoleUser,
		Text:      text,
		Timestamp: time.Now(),
		Sources:   []string{},
	}
}

// NewFallbackMessage creates the assistant message substituted for a failed reply.
func NewFallbackMessage() ChatMessage {
	return ChatMessage{
		Role:       RoleAssistant,
		Text:       FallbackReply,
		Timestamp:  time.Now(),
		SourceType: SourceError,
		Sources:    []string{},
	}
}

// IsError reports whether the message is a substituted failure reply.
func (m ChatMessage) IsError() bool {
	return m.SourceType == SourceError
}

// SendRequest identifies one message sent to the assistant service.
type SendRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Username  string `json:"username"`
}
