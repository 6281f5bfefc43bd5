package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateDefaultsPass(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("Defaults should pass validation: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty base url", func(c *Config) { c.Service.BaseURL = "" }, "service.base_url must not be empty"},
		{"relative base url", func(c *Config) { c.Service.BaseURL = "localhost:8000" }, "must be an absolute http(s) URL"},
		{"ftp base url", func(c *Config) { c.Service.BaseURL = "ftp://example.com" }, "must be an absolute http(s) URL"},
		{"bad stream method", func(c *Config) { c.Service.StreamMethod = "PUT" }, "service.stream_method"},
		{"stream path without slash", func(c *Config) { c.Service.StreamPath = "chat" }, "service.stream_path"},
		{"negative resp timeout", func(c *Config) { c.Service.RespTimeout = -time.Second }, "service.resp_timeout"},
		{"negative pool", func(c *Config) { c.Service.Pool.MaxConnsPerHost = -1 }, "service.pool"},
		{"negative rpm", func(c *Config) { c.Client.RateLimit.RequestsPerMinute = -1 }, "requests_per_minute"},
		{"breaker zero failures", func(c *Config) { c.Client.CircuitBreaker.MaxFailures = 0 }, "max_failures must be > 0"},
		{"breaker zero timeout", func(c *Config) { c.Client.CircuitBreaker.Timeout = 0 }, "circuit_breaker.timeout"},
		{"bad log level", func(c *Config) { c.Logger.Level = "loud" }, "logger.level"},
		{"bad log format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"bad exporter", func(c *Config) { c.Tracer.Enabled = true; c.Tracer.Exporter = "jaeger" }, "tracer.exporter"},
		{"bad render style", func(c *Config) { c.Render.Style = "neon" }, "render.style"},
		{"negative word wrap", func(c *Config) { c.Render.WordWrap = -1 }, "render.word_wrap"},
		{"bad mock addr", func(c *Config) { c.MockServer.Addr = "8000" }, "mock_server.addr"},
		{"empty db path", func(c *Config) { c.MockServer.DBPath = "" }, "mock_server.db_path"},
		{"negative chunk delay", func(c *Config) { c.MockServer.ChunkDelay = -1 }, "mock_server.chunk_delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			assertContains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateBreakerDisabledSkipsChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Client.CircuitBreaker = CircuitBreakerConfig{Enabled: false}
	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled breaker should not be validated: %v", err)
	}
}

func TestValidateTracerDisabledSkipsExporter(t *testing.T) {
	cfg := Defaults()
	cfg.Tracer.Exporter = "jaeger"
	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled tracer should not be validated: %v", err)
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Service.BaseURL = ""
	cfg.Logger.Level = "loud"
	cfg.MockServer.Addr = ""

	err := Validate(cfg)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(ve.Errors), ve.Errors)
	}
	assertContains(t, err.Error(), "config validation failed")
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}
