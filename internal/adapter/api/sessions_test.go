package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatline/internal/domain"
)

func TestListSessions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/sessions", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("username"))
		fmt.Fprint(w, `[{"session_id":"b","preview":"newest"},{"session_id":"a","preview":"older"}]`)
	}))
	defer server.Close()

	sessions, err := newTestClient(t, server.URL).ListSessions(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []domain.SessionSummary{
		{ID: "b", Preview: "newest"},
		{ID: "a", Preview: "older"},
	}, sessions)
}

func TestListSessionsNullIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `null`)
	}))
	defer server.Close()

	sessions, err := newTestClient(t, server.URL).ListSessions(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

func TestFetchMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/s 1", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("username"))
		fmt.Fprint(w, `[
			{"role":"USER","message":"hi","created_at":"2024-05-01T10:00:00"},
			{"role":"CHATBOT","message":"hello","source_type":"web","sources":["u1"],"created_at":"2024-05-01T10:00:01Z"},
			{"role":"CHATBOT","message":"bare"}
		]`)
	}))
	defer server.Close()

	msgs, err := newTestClient(t, server.URL).FetchMessages(context.Background(), "s 1", "alice")
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), msgs[0].Timestamp)

	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Equal(t, domain.SourceWeb, msgs[1].SourceType)
	assert.Equal(t, []string{"u1"}, msgs[1].Sources)

	assert.True(t, msgs[2].Timestamp.IsZero())
	assert.NotNil(t, msgs[2].Sources)
}

func TestFetchMessagesNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"detail":"Session not found"}`)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).FetchMessages(context.Background(), "gone", "alice")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteSession(t *testing.T) {
	var gotMethod, gotPath, gotUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotUser = r.Method, r.URL.Path, r.URL.Query().Get("username")
		fmt.Fprint(w, `{"message":"Session deleted successfully"}`)
	}))
	defer server.Close()

	require.NoError(t, newTestClient(t, server.URL).DeleteSession(context.Background(), "s-1", "alice"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/sessions/s-1", gotPath)
	assert.Equal(t, "alice", gotUser)
}

func TestRenameSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/sessions/s-1/rename", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("username"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Trip plans", body["new_name"])
		fmt.Fprint(w, `{"message":"ok"}`)
	}))
	defer server.Close()

	require.NoError(t, newTestClient(t, server.URL).RenameSession(context.Background(), "s-1", "Trip plans", "alice"))
}

func TestSessionMutationsRecognizeWrappedNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"detail":"Failed to delete session: 404: Session not found or access denied"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	err := c.DeleteSession(context.Background(), "gone", "alice")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	err = c.RenameSession(context.Background(), "gone", "x", "alice")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionMutationsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"detail":"database is locked"}`)
	}))
	defer server.Close()

	err := newTestClient(t, server.URL).DeleteSession(context.Background(), "s-1", "alice")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestFlexTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2024-05-01T10:00:00Z"`, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{`"2024-05-01T10:00:00.123456"`, time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)},
		{`"2024-05-01 10:00:00"`, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{`"yesterday"`, time.Time{}},
		{`""`, time.Time{}},
		{`null`, time.Time{}},
		{`1714557600`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var ft flexTime
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ft))
			assert.True(t, tt.want.Equal(time.Time(ft)), "got %v", time.Time(ft))
		})
	}
}
