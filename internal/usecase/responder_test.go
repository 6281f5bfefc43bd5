package usecase

import (
	"context"
	"errors"
	"testing"

	"chatline/internal/domain"
)

func TestOneShotResponderReportsCompletionOnce(t *testing.T) {
	svc := &fakeChatService{reply: &domain.ChatMessage{Role: domain.RoleAssistant, Text: "whole reply"}}
	var rec recorder

	msg, err := NewOneShotResponder(svc, testLogger()).Respond(context.Background(), helloReq, rec.record)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("progress calls = %d, want 1", len(calls))
	}
	if !calls[0].IsComplete || calls[0].FullResponse != "whole reply" || calls[0].Chunk != "whole reply" {
		t.Errorf("progress = %+v", calls[0])
	}
	if msg.SourceType != domain.SourceLLM {
		t.Errorf("SourceType = %q, want default llm", msg.SourceType)
	}
	if msg.Sources == nil {
		t.Error("Sources is nil")
	}
}

func TestOneShotResponderErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"remote", domain.NewRemoteError("Client.Send", "model offline"), domain.ErrRemote},
		{"plain", errors.New("boom"), domain.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeChatService{sendErr: tt.err}
			var rec recorder
			_, err := NewOneShotResponder(svc, testLogger()).Respond(context.Background(), helloReq, rec.record)
			if !errors.Is(err, tt.kind) {
				t.Errorf("error = %v, want %v", err, tt.kind)
			}
			if len(rec.snapshot()) != 0 {
				t.Error("progress delivered on failure")
			}
		})
	}
}

func TestOneShotResponderRejectsEmpty(t *testing.T) {
	svc := &fakeChatService{}
	req := helloReq
	req.Message = " "
	_, err := NewOneShotResponder(svc, testLogger()).Respond(context.Background(), req, nil)
	if !errors.Is(err, domain.ErrEmptyMessage) {
		t.Errorf("error = %v", err)
	}
	if svc.requestCount() != 0 {
		t.Error("service called for empty message")
	}
}

func TestNewResponderSelectsMode(t *testing.T) {
	svc := &fakeChatService{}
	if r := NewResponder(svc, true, testLogger()); !r.Streaming() {
		t.Error("streaming responder reports one-shot")
	}
	if r := NewResponder(svc, false, testLogger()); r.Streaming() {
		t.Error("one-shot responder reports streaming")
	}
}

func TestRespondersProduceSameMessage(t *testing.T) {
	svc := &fakeChatService{
		events: []domain.StreamEvent{frag("same "), frag("text"), finished(domain.SourceWeb, "u")},
		reply:  &domain.ChatMessage{Role: domain.RoleAssistant, Text: "same text", SourceType: domain.SourceWeb, Sources: []string{"u"}},
	}

	streamed, err := NewResponder(svc, true, testLogger()).Respond(context.Background(), helloReq, nil)
	if err != nil {
		t.Fatalf("streaming: %v", err)
	}
	oneShot, err := NewResponder(svc, false, testLogger()).Respond(context.Background(), helloReq, nil)
	if err != nil {
		t.Fatalf("one-shot: %v", err)
	}
	if streamed.Text != oneShot.Text || streamed.SourceType != oneShot.SourceType || streamed.Role != oneShot.Role {
		t.Errorf("streamed %+v != one-shot %+v", streamed, oneShot)
	}
}
