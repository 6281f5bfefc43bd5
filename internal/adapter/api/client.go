package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"chatline/internal/domain"
	"chatline/internal/infra/config"
	"chatline/internal/infra/tracer"
)

const userAgent = "chatline/1"

// Client talks to the assistant service over HTTP. It implements
// domain.StreamingChatService, domain.SessionStore and domain.Authenticator.
type Client struct {
	base    *url.URL
	cfg     config.ServiceConfig
	http    *http.Client
	limiter *rate.Limiter // nil = unlimited
	logger  *slog.Logger

	idMu    sync.Mutex
	entropy io.Reader
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a client for the service at cfg.BaseURL.
func NewClient(cfg config.ServiceConfig, rl config.RateLimitConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", domain.ErrInvalidInput, cfg.BaseURL)
	}
	if cfg.StreamPath == "" {
		cfg.StreamPath = "/chat"
	}

	c := &Client{
		base:    base,
		cfg:     cfg,
		http:    NewHTTPClient(cfg),
		logger:  logger,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	if rl.RequestsPerMinute > 0 {
		burst := rl.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(rl.RequestsPerMinute)/60.0), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// endpoint joins path and query onto the base URL.
func (c *Client) endpoint(path string, query map[string]string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		q := url.Values{}
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// newRequestID returns a monotonic ULID for X-Request-ID.
func (c *Client) newRequestID() string {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	return ulid.MustNew(ulid.Now(), c.entropy).String()
}

// prepare waits for the rate limiter and stamps common headers.
func (c *Client) prepare(ctx context.Context, req *http.Request) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrRateLimit, err)
		}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", c.newRequestID())
	return nil
}

// --- chat ---

const opSend = "Client.Send"

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Username  string `json:"username"`
}

type chatResponse struct {
	Response   string   `json:"response"`
	SourceType string   `json:"source_type"`
	Sources    []string `json:"sources"`
	Error      string   `json:"error"`
}

// Send performs one-shot POST /chat and returns the finished reply.
// Failures are *domain.StreamingError so callers treat both modes alike.
func (c *Client) Send(ctx context.Context, req domain.SendRequest) (*domain.ChatMessage, error) {
	ctx, span := tracer.StartClientSpan(ctx, "api.send",
		tracer.StringAttr("chat.session_id", req.SessionID),
		tracer.IntAttr("chat.message_len", len(req.Message)),
	)
	defer span.End()

	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, "/chat", nil, chatRequest(req))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewTransportError(opSend, err)
	}

	var out chatResponse
	if err := c.do(ctx, httpReq, nil, &out); err != nil {
		serr := classifySendError(err)
		tracer.RecordError(span, serr)
		return nil, serr
	}
	if out.Error != "" {
		serr := domain.NewRemoteError(opSend, out.Error)
		tracer.RecordError(span, serr)
		return nil, serr
	}

	st := domain.SourceType(out.SourceType)
	if st == domain.SourceNone {
		st = domain.DefaultSourceType
	}
	sources := out.Sources
	if sources == nil {
		sources = []string{}
	}

	c.logger.Debug("chat reply received", "session", req.SessionID, "bytes", len(out.Response), "source_type", st)
	span.SetAttributes(tracer.IntAttr("chat.reply_len", len(out.Response)))
	tracer.SetOK(span)

	return &domain.ChatMessage{
		Role:       domain.RoleAssistant,
		Text:       out.Response,
		Timestamp:  time.Now(),
		SourceType: st,
		Sources:    sources,
	}, nil
}

// classifySendError maps a one-shot failure onto a streaming error kind.
func classifySendError(err error) *domain.StreamingError {
	if errors.Is(err, errBadPayload) {
		return domain.NewProtocolError(opSend, err.Error(), err)
	}
	return domain.NewTransportError(opSend, err)
}

// Stream opens the streaming endpoint and returns its events. The request is
// GET with query parameters unless the service is configured for POST.
func (c *Client) Stream(ctx context.Context, req domain.SendRequest) (<-chan domain.StreamEvent, error) {
	spanCtx, span := tracer.StartClientSpan(ctx, "api.stream.open",
		tracer.StringAttr("chat.session_id", req.SessionID),
		tracer.StringAttr("http.method", c.cfg.StreamMethod),
	)
	defer span.End()

	var (
		httpReq *http.Request
		err     error
	)
	if strings.EqualFold(c.cfg.StreamMethod, http.MethodPost) {
		httpReq, err = c.newJSONRequest(ctx, http.MethodPost, c.cfg.StreamPath, nil, chatRequest(req))
	} else {
		httpReq, err = c.newJSONRequest(ctx, http.MethodGet, c.cfg.StreamPath, map[string]string{
			"session_id": req.SessionID,
			"message":    req.Message,
			"username":   req.Username,
		}, nil)
	}
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewTransportError(opStream, err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	if err := c.prepare(spanCtx, httpReq); err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewTransportError(opStream, err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		serr := domain.NewTransportError(opStream, err)
		tracer.RecordError(span, serr)
		return nil, serr
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		serr := domain.NewTransportError(opStream, mapHTTPError(resp.StatusCode, body, nil))
		tracer.RecordError(span, serr)
		return nil, serr
	}

	c.logger.Debug("chat stream opened", "session", req.SessionID, "content_type", resp.Header.Get("Content-Type"))
	tracer.SetOK(span)
	return parseStream(ctx, resp.Body), nil
}

// Compile-time interface checks.
var (
	_ domain.StreamingChatService = (*Client)(nil)
	_ domain.SessionStore         = (*Client)(nil)
	_ domain.Authenticator        = (*Client)(nil)
)
