package usecase

import (
	"context"
	"log/slog"
	"strings"

	"chatline/internal/domain"
	"chatline/internal/infra/tracer"
)

// Responder produces one assistant reply for a request. Streaming and
// one-shot transports both satisfy it, so callers never branch on the mode.
type Responder interface {
	Respond(ctx context.Context, req domain.SendRequest, onProgress domain.ProgressFunc) (*domain.ChatMessage, error)
	Streaming() bool
}

// StreamingResponder answers through the streaming endpoint.
type StreamingResponder struct {
	assembler *Assembler
}

// NewStreamingResponder wraps an Assembler.
func NewStreamingResponder(a *Assembler) *StreamingResponder {
	return &StreamingResponder{assembler: a}
}

func (r *StreamingResponder) Respond(ctx context.Context, req domain.SendRequest, onProgress domain.ProgressFunc) (*domain.ChatMessage, error) {
	return r.assembler.Assemble(ctx, req, onProgress)
}

func (r *StreamingResponder) Streaming() bool { return true }

const opOneShot = "OneShotResponder.Respond"

// OneShotResponder answers with a single request. Progress is reported once,
// already complete, so the caller sees the same callback sequence as a
// stream that delivered everything in one fragment.
type OneShotResponder struct {
	service domain.ChatService
	logger  *slog.Logger
}

// NewOneShotResponder creates a responder over service.
func NewOneShotResponder(service domain.ChatService, logger *slog.Logger) *OneShotResponder {
	return &OneShotResponder{service: service, logger: logger}
}

func (r *OneShotResponder) Respond(ctx context.Context, req domain.SendRequest, onProgress domain.ProgressFunc) (*domain.ChatMessage, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, domain.ErrEmptyMessage
	}

	ctx, span := tracer.StartSpan(ctx, "responder.oneshot")
	defer span.End()

	msg, err := r.service.Send(ctx, req)
	if err != nil {
		serr := asStreamingError(opOneShot, err)
		tracer.RecordError(span, serr)
		r.logger.Warn("send failed", "session", req.SessionID, "error", serr)
		return nil, serr
	}

	if msg.SourceType == domain.SourceNone {
		msg.SourceType = domain.DefaultSourceType
	}
	if msg.Sources == nil {
		msg.Sources = []string{}
	}
	if onProgress != nil {
		onProgress(domain.Progress{
			Chunk:        msg.Text,
			FullResponse: msg.Text,
			IsComplete:   true,
			SourceType:   msg.SourceType,
			Sources:      msg.Sources,
		})
	}
	tracer.SetOK(span)
	return msg, nil
}

func (r *OneShotResponder) Streaming() bool { return false }

// NewResponder picks the responder for the configured transport mode.
func NewResponder(service domain.StreamingChatService, streaming bool, logger *slog.Logger) Responder {
	if streaming {
		return NewStreamingResponder(NewAssembler(service, logger))
	}
	return NewOneShotResponder(service, logger)
}

var (
	_ Responder = (*StreamingResponder)(nil)
	_ Responder = (*OneShotResponder)(nil)
)
