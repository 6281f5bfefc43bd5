package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatline/internal/domain"
	"chatline/internal/infra/tracer"
)

// historyRecord is one stored message as returned by GET /chat/{id}.
// The service reports roles as "USER"/"CHATBOT" and may omit the rest.
type historyRecord struct {
	Role       string   `json:"role"`
	Message    string   `json:"message"`
	CreatedAt  flexTime `json:"created_at"`
	SourceType string   `json:"source_type"`
	Sources    []string `json:"sources"`
}

// flexTime accepts RFC 3339 and the naive ISO-8601 timestamps Python
// services emit. Unparseable values decode as the zero time.
type flexTime time.Time

var flexLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		return nil
	}
	for _, layout := range flexLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = flexTime(parsed)
			return nil
		}
	}
	return nil
}

// sessionRemap turns 404 into the session-specific sentinel.
var sessionRemap = statusRemap{http.StatusNotFound: domain.ErrSessionNotFound}

// ListSessions returns the user's sessions, newest first as the service orders them.
func (c *Client) ListSessions(ctx context.Context, username string) ([]domain.SessionSummary, error) {
	ctx, span := tracer.StartClientSpan(ctx, "api.sessions.list")
	defer span.End()

	req, err := c.newJSONRequest(ctx, http.MethodGet, "/sessions", map[string]string{"username": username}, nil)
	if err != nil {
		return nil, domain.WrapOp("Client.ListSessions", err)
	}
	var out []domain.SessionSummary
	if err := c.do(ctx, req, nil, &out); err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("Client.ListSessions", err)
	}
	if out == nil {
		out = []domain.SessionSummary{}
	}
	span.SetAttributes(tracer.IntAttr("chat.sessions", len(out)))
	tracer.SetOK(span)
	return out, nil
}

// FetchMessages returns the stored conversation of one session in order.
// Missing timestamps are left zero; the caller decides how to show them.
func (c *Client) FetchMessages(ctx context.Context, sessionID, username string) ([]domain.ChatMessage, error) {
	ctx, span := tracer.StartClientSpan(ctx, "api.sessions.messages", tracer.StringAttr("chat.session_id", sessionID))
	defer span.End()

	req, err := c.newJSONRequest(ctx, http.MethodGet, "/chat/"+url.PathEscape(sessionID), map[string]string{"username": username}, nil)
	if err != nil {
		return nil, domain.WrapOp("Client.FetchMessages", err)
	}
	var records []historyRecord
	if err := c.do(ctx, req, sessionRemap, &records); err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("Client.FetchMessages", err)
	}

	msgs := make([]domain.ChatMessage, 0, len(records))
	for _, r := range records {
		sources := r.Sources
		if sources == nil {
			sources = []string{}
		}
		msgs = append(msgs, domain.ChatMessage{
			Role:       domain.ParseRole(r.Role),
			Text:       r.Message,
			Timestamp:  time.Time(r.CreatedAt),
			SourceType: domain.SourceType(r.SourceType),
			Sources:    sources,
		})
	}
	span.SetAttributes(tracer.IntAttr("chat.messages", len(msgs)))
	tracer.SetOK(span)
	return msgs, nil
}

// DeleteSession removes a session and all its messages.
func (c *Client) DeleteSession(ctx context.Context, sessionID, username string) error {
	ctx, span := tracer.StartClientSpan(ctx, "api.sessions.delete", tracer.StringAttr("chat.session_id", sessionID))
	defer span.End()

	req, err := c.newJSONRequest(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), map[string]string{"username": username}, nil)
	if err != nil {
		return domain.WrapOp("Client.DeleteSession", err)
	}
	if err := c.do(ctx, req, sessionRemap, nil); err != nil {
		err = unwrapServerNotFound(err)
		tracer.RecordError(span, err)
		return domain.WrapOp("Client.DeleteSession", err)
	}
	c.logger.Info("session deleted", "session", sessionID)
	tracer.SetOK(span)
	return nil
}

// RenameSession sets the session's display name (its first user message).
func (c *Client) RenameSession(ctx context.Context, sessionID, newName, username string) error {
	ctx, span := tracer.StartClientSpan(ctx, "api.sessions.rename", tracer.StringAttr("chat.session_id", sessionID))
	defer span.End()

	req, err := c.newJSONRequest(ctx, http.MethodPut, "/sessions/"+url.PathEscape(sessionID)+"/rename",
		map[string]string{"username": username}, map[string]string{"new_name": newName})
	if err != nil {
		return domain.WrapOp("Client.RenameSession", err)
	}
	if err := c.do(ctx, req, sessionRemap, nil); err != nil {
		err = unwrapServerNotFound(err)
		tracer.RecordError(span, err)
		return domain.WrapOp("Client.RenameSession", err)
	}
	c.logger.Info("session renamed", "session", sessionID)
	tracer.SetOK(span)
	return nil
}

// unwrapServerNotFound recognises a 404 that the service re-raised as a 500
// ("Failed to delete session: 404: Session not found ...").
func unwrapServerNotFound(err error) error {
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode < 500 {
		return err
	}
	if strings.Contains(se.Detail, "404") && strings.Contains(strings.ToLower(se.Detail), "not found") {
		return &StatusError{StatusCode: http.StatusNotFound, Detail: se.Detail, Err: domain.ErrSessionNotFound}
	}
	return err
}
