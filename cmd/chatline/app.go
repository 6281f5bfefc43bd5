package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"chatline/internal/adapter/api"
	"chatline/internal/adapter/render"
	"chatline/internal/domain"
	"chatline/internal/infra/config"
	"chatline/internal/infra/logger"
	"chatline/internal/infra/tracer"
	"chatline/internal/usecase"
)

// app holds the wired collaborators of one command invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *api.Client
	chat     domain.StreamingChatService
	renderer *render.Renderer
	auth     *usecase.AuthService
	guard    *usecase.SendGuard

	closers []func(context.Context) error
}

// loadConfig reads the config file and applies the persistent flags.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}
	if opts.user != "" {
		cfg.User.Username = opts.user
	}
	if opts.baseURL != "" {
		cfg.Service.BaseURL = opts.baseURL
	}
	if opts.logLevel != "" {
		cfg.Logger.Level = opts.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}
	return cfg, nil
}

// tuiLogPath is where logs go while the full-screen chat owns the terminal.
func tuiLogPath() string {
	return filepath.Join(filepath.Dir(config.DefaultPath()), "chatline.log")
}

// newApp wires config, logging, tracing and the service client. When
// fullScreen is set, terminal log output is moved to a file.
func newApp(ctx context.Context, opts *rootOptions, fullScreen bool) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if fullScreen {
		switch strings.ToLower(cfg.Logger.Output) {
		case "", "stderr", "stdout":
			cfg.Logger.Output = tuiLogPath()
		}
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: log}
	a.closers = append(a.closers, func(context.Context) error { return closeLog() })

	shutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	client, err := api.NewClient(cfg.Service, cfg.Client.RateLimit, logger.WithComponent(log, "api"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.client = client
	a.chat = client
	if cfg.Client.CircuitBreaker.Enabled {
		a.chat = api.NewCircuitBreakerClient(client, cfg.Client.CircuitBreaker, logger.WithComponent(log, "breaker"))
	}

	a.renderer = render.New(cfg.Render)
	a.auth = usecase.NewAuthService(client, logger.WithComponent(log, "auth"))
	a.guard = usecase.NewSendGuard()

	log.Debug("chatline started",
		"base_url", cfg.Service.BaseURL,
		"streaming", cfg.Service.Streaming,
		"stream_method", cfg.Service.StreamMethod,
		"breaker", cfg.Client.CircuitBreaker.Enabled,
	)
	return a, nil
}

// Close releases logging and tracing resources in reverse order.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && a.logger != nil {
			a.logger.Warn("shutdown", "error", err)
		}
	}
}

// currentUser resolves the identity for service calls. With a configured
// password the credentials are checked against the service first.
func (a *app) currentUser(ctx context.Context) (string, error) {
	name := strings.TrimSpace(a.cfg.User.Username)
	if name == "" {
		return "", domain.ErrNotLoggedIn
	}
	if a.cfg.User.Password == "" {
		return name, nil
	}
	if err := a.auth.Login(ctx, name, a.cfg.User.Password); err != nil {
		return "", err
	}
	return a.auth.Current()
}

// conversation opens a conversation for username. An empty sessionID starts
// a new chat.
func (a *app) conversation(username, sessionID string, streaming bool) *usecase.Conversation {
	return usecase.NewConversation(usecase.ConversationDeps{
		Store:     a.client,
		Responder: usecase.NewResponder(a.chat, streaming, logger.WithComponent(a.logger, "responder")),
		Guard:     a.guard,
		Logger:    logger.WithComponent(a.logger, "conversation"),
	}, sessionID, username)
}

func (a *app) sessionService(username string) *usecase.SessionService {
	return usecase.NewSessionService(a.client, usecase.StaticUser(username), logger.WithComponent(a.logger, "sessions"))
}

// isCancelled reports whether err only reflects the user interrupting.
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
