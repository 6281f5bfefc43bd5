// Package chat implements the interactive Bubble Tea chat screen of chatline.
package chat

import "chatline/internal/domain"

// ProgressMsg carries one assembly update from the send goroutine.
// Gen identifies the request so updates from a cancelled one are ignored.
type ProgressMsg struct {
	Progress domain.Progress
	Gen      uint64
}

// ReplyDoneMsg signals that a send or regenerate finished.
type ReplyDoneMsg struct {
	Reply *domain.ChatMessage
	Err   error
	Gen   uint64
}

// HistoryLoadedMsg reports the result of loading or switching a session.
type HistoryLoadedMsg struct {
	SessionID string
	Err       error
}

// SessionsLoadedMsg carries a fresh session list.
type SessionsLoadedMsg struct {
	Sessions []domain.SessionSummary
	Err      error
}

// SessionDeletedMsg reports a finished delete.
type SessionDeletedMsg struct {
	SessionID string
	Err       error
}

// SessionRenamedMsg reports a finished rename.
type SessionRenamedMsg struct {
	SessionID string
	Name      string
	Err       error
}

// SessionsStaleMsg asks the model to reload the session list.
type SessionsStaleMsg struct{}

// QuitMsg signals the program to exit.
type QuitMsg struct{}

// RevealTickMsg drives the progressive reveal of one-shot replies.
type RevealTickMsg struct{}
