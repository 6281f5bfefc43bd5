package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"chatline/internal/domain"
	"chatline/internal/infra/tracer"
)

const opAssemble = "Assembler.Assemble"

// Assembler turns the event stream of one send into a single assistant
// message, reporting progress as fragments arrive.
type Assembler struct {
	service domain.StreamingChatService
	logger  *slog.Logger
}

// NewAssembler creates an assembler reading from service.
func NewAssembler(service domain.StreamingChatService, logger *slog.Logger) *Assembler {
	return &Assembler{service: service, logger: logger}
}

// Assemble sends req and consumes its stream until the first terminal
// event. onProgress (may be nil) is called with the full accumulated text
// after every fragment, then exactly once with IsComplete set on success.
// Any failure is returned as a *domain.StreamingError and no completion
// progress is delivered. There is no internal timeout: cancel ctx to abandon
// the stream, which also closes the underlying connection.
func (a *Assembler) Assemble(ctx context.Context, req domain.SendRequest, onProgress domain.ProgressFunc) (*domain.ChatMessage, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, domain.ErrEmptyMessage
	}

	ctx, span := tracer.StartSpan(ctx, "assembler.assemble")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("chat.session_id", req.SessionID))

	// Cancelling on every return closes the stream after the first terminal
	// event even if the source would keep sending.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := a.service.Stream(ctx, req)
	if err != nil {
		serr := asStreamingError(opAssemble, err)
		tracer.RecordError(span, serr)
		a.logger.Warn("stream open failed", "session", req.SessionID, "error", serr)
		return nil, serr
	}

	notify := func(p domain.Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	var acc accrual
	for {
		select {
		case <-ctx.Done():
			serr := domain.NewTransportError(opAssemble, ctx.Err())
			tracer.RecordError(span, serr)
			return nil, serr

		case ev, ok := <-events:
			if !ok {
				cause := io.ErrUnexpectedEOF
				if ctx.Err() != nil {
					cause = ctx.Err()
				}
				serr := domain.NewTransportError(opAssemble, fmt.Errorf("stream closed before completion: %w", cause))
				tracer.RecordError(span, serr)
				return nil, serr
			}

			switch ev.Kind {
			case domain.EventFragment:
				full := acc.add(ev.Fragment)
				notify(domain.Progress{Chunk: ev.Fragment, FullResponse: full})

			case domain.EventFinished:
				msg := acc.finish(ev.SourceType, ev.Sources)
				notify(domain.Progress{
					FullResponse: msg.Text,
					IsComplete:   true,
					SourceType:   msg.SourceType,
					Sources:      msg.Sources,
				})
				a.logger.Debug("reply assembled",
					"session", req.SessionID,
					"fragments", acc.fragments,
					"bytes", len(msg.Text),
					"source_type", msg.SourceType,
				)
				span.SetAttributes(
					tracer.IntAttr("chat.fragments", acc.fragments),
					tracer.StringAttr("chat.source_type", string(msg.SourceType)),
				)
				tracer.SetOK(span)
				return &msg, nil

			case domain.EventError:
				serr := asStreamingError(opAssemble, ev.Err)
				tracer.RecordError(span, serr)
				a.logger.Warn("stream failed", "session", req.SessionID, "fragments", acc.fragments, "error", serr)
				return nil, serr

			default:
				serr := domain.NewProtocolError(opAssemble, fmt.Sprintf("unexpected event kind %s", ev.Kind), nil)
				tracer.RecordError(span, serr)
				return nil, serr
			}
		}
	}
}

// asStreamingError passes a *domain.StreamingError through and treats
// anything else as a transport failure.
func asStreamingError(op string, err error) *domain.StreamingError {
	var serr *domain.StreamingError
	if errors.As(err, &serr) {
		return serr
	}
	return domain.NewTransportError(op, err)
}
