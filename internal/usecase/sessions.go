package usecase

import (
	"context"
	"log/slog"
	"strings"

	"chatline/internal/domain"
)

// SessionService manages the stored sessions of the current user.
type SessionService struct {
	store  domain.SessionStore
	user   CurrentUser
	logger *slog.Logger
}

// NewSessionService creates a SessionService.
func NewSessionService(store domain.SessionStore, user CurrentUser, logger *slog.Logger) *SessionService {
	return &SessionService{store: store, user: user, logger: logger}
}

// List returns the user's sessions, newest first.
func (s *SessionService) List(ctx context.Context) ([]domain.SessionSummary, error) {
	username, err := s.user.Current()
	if err != nil {
		return nil, domain.WrapOp("Sessions.List", err)
	}
	sessions, err := s.store.ListSessions(ctx, username)
	if err != nil {
		return nil, domain.WrapOp("Sessions.List", err)
	}
	return sessions, nil
}

// Messages returns the stored conversation of one session.
func (s *SessionService) Messages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	username, err := s.prepare("Sessions.Messages", sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.FetchMessages(ctx, sessionID, username)
	if err != nil {
		return nil, domain.WrapOp("Sessions.Messages", err)
	}
	return msgs, nil
}

// Delete removes a session.
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	username, err := s.prepare("Sessions.Delete", sessionID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, sessionID, username); err != nil {
		return domain.WrapOp("Sessions.Delete", err)
	}
	s.logger.Info("session deleted", "session", sessionID, "user", username)
	return nil
}

// Rename changes the session's display name. The name is trimmed and must
// not be empty.
func (s *SessionService) Rename(ctx context.Context, sessionID, newName string) error {
	username, err := s.prepare("Sessions.Rename", sessionID)
	if err != nil {
		return err
	}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return domain.NewDomainError("Sessions.Rename", domain.ErrInvalidInput, "name is empty")
	}
	if err := s.store.RenameSession(ctx, sessionID, newName, username); err != nil {
		return domain.WrapOp("Sessions.Rename", err)
	}
	s.logger.Info("session renamed", "session", sessionID, "user", username)
	return nil
}

func (s *SessionService) prepare(op, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", domain.NewDomainError(op, domain.ErrInvalidInput, "session id is empty")
	}
	username, err := s.user.Current()
	if err != nil {
		return "", domain.WrapOp(op, err)
	}
	return username, nil
}
