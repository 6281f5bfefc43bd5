package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"chatline/internal/domain"
)

// CurrentUser resolves the username requests are made for.
type CurrentUser interface {
	Current() (string, error)
}

// StaticUser is a fixed identity, used when the username comes from
// configuration or a flag instead of an interactive login.
type StaticUser string

// Current returns the name, or domain.ErrNotLoggedIn when it is empty.
func (u StaticUser) Current() (string, error) {
	if strings.TrimSpace(string(u)) == "" {
		return "", domain.ErrNotLoggedIn
	}
	return string(u), nil
}

// AuthService signs users up and in against the service. The service
// issues no token, so a successful login only records the username for the
// lifetime of the process.
type AuthService struct {
	auth   domain.Authenticator
	logger *slog.Logger

	mu      sync.RWMutex
	current string
}

// NewAuthService creates an AuthService.
func NewAuthService(auth domain.Authenticator, logger *slog.Logger) *AuthService {
	return &AuthService{auth: auth, logger: logger}
}

// Signup registers username. It does not log the user in.
func (s *AuthService) Signup(ctx context.Context, username, password string) error {
	creds, err := credentials("Auth.Signup", username, password)
	if err != nil {
		return err
	}
	if err := s.auth.Signup(ctx, creds); err != nil {
		return domain.WrapOp("Auth.Signup", err)
	}
	s.logger.Info("user signed up", "user", creds.Username)
	return nil
}

// Login verifies the credentials and makes username the current user.
func (s *AuthService) Login(ctx context.Context, username, password string) error {
	creds, err := credentials("Auth.Login", username, password)
	if err != nil {
		return err
	}
	if err := s.auth.Login(ctx, creds); err != nil {
		return domain.WrapOp("Auth.Login", err)
	}
	s.mu.Lock()
	s.current = creds.Username
	s.mu.Unlock()
	s.logger.Info("user logged in", "user", creds.Username)
	return nil
}

// Current returns the logged-in username.
func (s *AuthService) Current() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == "" {
		return "", domain.ErrNotLoggedIn
	}
	return s.current, nil
}

// Logout forgets the current user.
func (s *AuthService) Logout() {
	s.mu.Lock()
	s.current = ""
	s.mu.Unlock()
}

func credentials(op, username, password string) (domain.Credentials, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.Credentials{}, domain.NewDomainError(op, domain.ErrInvalidInput, "username and password are required")
	}
	return domain.Credentials{Username: username, Password: password}, nil
}

var (
	_ CurrentUser = StaticUser("")
	_ CurrentUser = (*AuthService)(nil)
)
