package config

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateService(cfg, ve)
	validateClient(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateRender(cfg, ve)
	validateMockServer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateService(cfg *Config, ve *ValidationError) {
	s := cfg.Service
	if s.BaseURL == "" {
		ve.Add("service.base_url must not be empty")
	} else if u, err := url.Parse(s.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		ve.Add("service.base_url %q must be an absolute http(s) URL", s.BaseURL)
	}
	switch strings.ToUpper(s.StreamMethod) {
	case http.MethodGet, http.MethodPost:
	default:
		ve.Add("service.stream_method %q is invalid (want: GET, POST)", s.StreamMethod)
	}
	if !strings.HasPrefix(s.StreamPath, "/") {
		ve.Add("service.stream_path %q must start with /", s.StreamPath)
	}
	if s.ConnTimeout < 0 {
		ve.Add("service.conn_timeout must be >= 0")
	}
	if s.RespTimeout < 0 {
		ve.Add("service.resp_timeout must be >= 0")
	}
	if s.Pool.MaxIdleConns < 0 || s.Pool.MaxIdleConnsPerHost < 0 || s.Pool.MaxConnsPerHost < 0 {
		ve.Add("service.pool sizes must be >= 0")
	}
}

func validateClient(cfg *Config, ve *ValidationError) {
	rl := cfg.Client.RateLimit
	if rl.RequestsPerMinute < 0 {
		ve.Add("client.rate_limit.requests_per_minute must be >= 0")
	}
	if rl.Burst < 0 {
		ve.Add("client.rate_limit.burst must be >= 0")
	}
	cb := cfg.Client.CircuitBreaker
	if !cb.Enabled {
		return
	}
	if cb.MaxFailures == 0 {
		ve.Add("client.circuit_breaker.max_failures must be > 0 when the breaker is enabled")
	}
	if cb.Timeout <= 0 {
		ve.Add("client.circuit_breaker.timeout must be > 0 when the breaker is enabled")
	}
	if cb.Interval < 0 {
		ve.Add("client.circuit_breaker.interval must be >= 0")
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if lvl := strings.ToLower(cfg.Logger.Level); lvl != "" && !validLogLevels[lvl] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	case "file":
		if cfg.Tracer.Endpoint == "" {
			ve.Add("tracer.endpoint must name a file when exporter is file")
		}
	default:
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout, file)", cfg.Tracer.Exporter)
	}
}

var validRenderStyles = map[string]bool{
	"auto":    true,
	"dark":    true,
	"light":   true,
	"notty":   true,
	"ascii":   true,
	"dracula": true,
}

func validateRender(cfg *Config, ve *ValidationError) {
	if cfg.Render.Style != "" && !validRenderStyles[cfg.Render.Style] {
		ve.Add("render.style %q is invalid (want: auto, dark, light, notty, ascii, dracula)", cfg.Render.Style)
	}
	if cfg.Render.WordWrap < 0 {
		ve.Add("render.word_wrap must be >= 0")
	}
}

func validateMockServer(cfg *Config, ve *ValidationError) {
	m := cfg.MockServer
	if m.Addr == "" {
		ve.Add("mock_server.addr must not be empty")
	} else if _, _, err := net.SplitHostPort(m.Addr); err != nil {
		ve.Add("mock_server.addr %q is not a valid host:port", m.Addr)
	}
	if m.DBPath == "" {
		ve.Add("mock_server.db_path must not be empty")
	}
	if m.RateLimitPerMin < 0 || m.RateLimitBurst < 0 {
		ve.Add("mock_server rate limits must be >= 0")
	}
	if m.ChunkDelay < 0 {
		ve.Add("mock_server.chunk_delay must be >= 0")
	}
	if m.MaxRequestBodyKB < 0 {
		ve.Add("mock_server.max_request_body_kb must be >= 0")
	}
}
