package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"chatline/internal/domain"
	"chatline/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// CircuitBreakerClient wraps a chat service with a circuit breaker. When the
// service keeps failing at the transport level the circuit opens and sends
// fail fast instead of piling up on a dead backend.
type CircuitBreakerClient struct {
	inner   domain.StreamingChatService
	breaker *gobreaker.CircuitBreaker[*domain.ChatMessage]
	logger  *slog.Logger
}

// NewCircuitBreakerClient wraps inner. Zero-valued settings use defaults.
func NewCircuitBreakerClient(inner domain.StreamingChatService, cfg config.CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerClient {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[*domain.ChatMessage](gobreaker.Settings{
		Name:        "chat-service",
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: countsAsSuccess,
	})

	return &CircuitBreakerClient{inner: inner, breaker: cb, logger: logger}
}

// countsAsSuccess decides which failures trip the breaker: only an
// unreachable or failing service does. Remote error records, client errors
// and caller cancellation leave it alone.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, domain.ErrServiceUnavailable) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return true
	}
	return !errors.Is(err, domain.ErrTransport)
}

// Send implements domain.ChatService through the breaker.
func (p *CircuitBreakerClient) Send(ctx context.Context, req domain.SendRequest) (*domain.ChatMessage, error) {
	msg, err := p.breaker.Execute(func() (*domain.ChatMessage, error) {
		return p.inner.Send(ctx, req)
	})
	if err != nil {
		return nil, p.wrapOpen(opSend, err)
	}
	return msg, nil
}

// Stream implements domain.StreamingChatService. Only opening the stream is
// guarded; failures after the connection is established arrive on the
// channel and do not count against the breaker.
func (p *CircuitBreakerClient) Stream(ctx context.Context, req domain.SendRequest) (<-chan domain.StreamEvent, error) {
	var ch <-chan domain.StreamEvent
	_, err := p.breaker.Execute(func() (*domain.ChatMessage, error) {
		var streamErr error
		ch, streamErr = p.inner.Stream(ctx, req)
		return nil, streamErr
	})
	if err != nil {
		return nil, p.wrapOpen(opStream, err)
	}
	return ch, nil
}

// wrapOpen converts breaker rejections into transport errors that also
// match domain.ErrServiceUnavailable.
func (p *CircuitBreakerClient) wrapOpen(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		p.logger.Debug("request rejected by circuit breaker", "op", op, "state", p.breaker.State().String())
		return domain.NewTransportError(op, fmt.Errorf("%w: circuit open: %w", domain.ErrServiceUnavailable, err))
	}
	return err
}

// State returns the current circuit breaker state for monitoring.
func (p *CircuitBreakerClient) State() gobreaker.State {
	return p.breaker.State()
}

// Counts returns the current circuit breaker failure/success counts.
func (p *CircuitBreakerClient) Counts() gobreaker.Counts {
	return p.breaker.Counts()
}

var _ domain.StreamingChatService = (*CircuitBreakerClient)(nil)

// --- Connection Pooling ---

// Default connection pool settings: one host, a handful of concurrent
// streams, long-lived keep-alive connections.
const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 4
	defaultMaxConnsPerHost     = 8
	defaultIdleConnTimeout     = 90 * time.Second
	defaultConnTimeout         = 10 * time.Second
	defaultRespTimeout         = 60 * time.Second
)

// NewPooledTransport creates an http.Transport with connection pooling.
// respTimeout bounds the wait for response headers only, so a long stream
// body is never cut off by it.
func NewPooledTransport(connTimeout, respTimeout time.Duration, pool config.PoolConfig) *http.Transport {
	if connTimeout <= 0 {
		connTimeout = defaultConnTimeout
	}
	if respTimeout <= 0 {
		respTimeout = defaultRespTimeout
	}

	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	maxIdlePerHost := pool.MaxIdleConnsPerHost
	if maxIdlePerHost <= 0 {
		maxIdlePerHost = defaultMaxIdleConnsPerHost
	}
	maxConnsPerHost := pool.MaxConnsPerHost
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = defaultMaxConnsPerHost
	}
	idleTimeout := pool.IdleConnTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleConnTimeout
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: respTimeout,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       idleTimeout,
		ForceAttemptHTTP2:     true,
	}
}

// NewHTTPClient creates the *http.Client used for every service call. It has
// no overall Timeout: stream lifetime is governed by the caller's context.
func NewHTTPClient(cfg config.ServiceConfig) *http.Client {
	return &http.Client{
		Transport: NewPooledTransport(cfg.ConnTimeout, cfg.RespTimeout, cfg.Pool),
	}
}
