package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"

	"chatline/internal/domain"
	"chatline/internal/infra/config"
	"chatline/internal/infra/middleware"
)

// Server answers the assistant service's HTTP API from a Store.
type Server struct {
	store  *Store
	cfg    config.MockServerConfig
	logger *slog.Logger

	httpSrv   *http.Server
	boundAddr atomic.Value // string
}

// New creates a mock server.
func New(store *Store, cfg config.MockServerConfig, logger *slog.Logger) *Server {
	return &Server{store: store, cfg: cfg, logger: logger}
}

// Handler returns the routed handler wrapped in the middleware chain. ctx
// bounds the rate limiter's background sweep.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /chat", s.handleChat)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /chat/{session_id}", s.handleHistory)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("DELETE /sessions/{session_id}", s.handleDelete)
	mux.HandleFunc("PUT /sessions/{session_id}/rename", s.handleRename)
	mux.HandleFunc("POST /signup", s.handleSignup)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.AccessLog(s.logger),
		middleware.SecurityHeaders,
		middleware.RateLimit(ctx, s.cfg.RateLimitPerMin, s.cfg.RateLimitBurst),
		middleware.MaxBody(int64(s.cfg.MaxRequestBodyKB)*1024),
	)
}

// Start serves on cfg.Addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("mock server listen: %w", err)
	}
	s.boundAddr.Store(listener.Addr().String())
	s.httpSrv = &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("mock server started", "addr", s.BoundAddr())

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mock server serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// BoundAddr returns the address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string {
	addr, _ := s.boundAddr.Load().(string)
	return addr
}

// --- chat ---

// streamRecord is one record of a chat stream.
type streamRecord struct {
	Response   *string  `json:"response,omitempty"`
	IsFinished bool     `json:"is_finished"`
	SourceType string   `json:"source_type,omitempty"`
	Sources    []string `json:"sources,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type chatResponse struct {
	Response   string   `json:"response"`
	SourceType string   `json:"source_type"`
	Sources    []string `json:"sources"`
	Error      string   `json:"error,omitempty"`
}

// recordWriter frames stream records for one response format.
type recordWriter func(w io.Writer, payload []byte) error

func sseRecord(w io.Writer, payload []byte) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

func ndjsonRecord(w io.Writer, payload []byte) error {
	_, err := fmt.Fprintf(w, "%s\n", payload)
	return err
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req domain.SendRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
			return
		}
	} else {
		q := r.URL.Query()
		req = domain.SendRequest{SessionID: q.Get("session_id"), Message: q.Get("message"), Username: q.Get("username")}
	}
	if missing := missingFields(req); missing != "" {
		writeDetail(w, http.StatusUnprocessableEntity, "field required: "+missing)
		return
	}

	ctx := r.Context()
	history, err := s.store.History(ctx, req.SessionID, req.Username)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if err := s.store.SaveMessage(ctx, Record{
		SessionID: req.SessionID, Username: req.Username, Role: domain.RoleUser, Message: req.Message,
	}); err != nil {
		s.internalError(w, r, err)
		return
	}
	reply := Compose(req.Message, history)

	accept := r.Header.Get("Accept")
	switch {
	case r.Method == http.MethodGet || strings.Contains(accept, "text/event-stream"):
		s.streamReply(w, r, req, reply, "text/event-stream", sseRecord)
	case strings.Contains(accept, "application/x-ndjson"):
		s.streamReply(w, r, req, reply, "application/x-ndjson", ndjsonRecord)
	default:
		s.oneShotReply(w, r, req, reply)
	}
}

func missingFields(req domain.SendRequest) string {
	var missing []string
	if req.SessionID == "" {
		missing = append(missing, "session_id")
	}
	if req.Message == "" {
		missing = append(missing, "message")
	}
	if req.Username == "" {
		missing = append(missing, "username")
	}
	return strings.Join(missing, ", ")
}

// streamReply writes reply as a sequence of records, pausing ChunkDelay
// between fragments. The assistant message is stored before the finished
// record goes out, so a client that saw the end can reload it at once.
func (s *Server) streamReply(w http.ResponseWriter, r *http.Request, req domain.SendRequest, reply Reply, contentType string, write recordWriter) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	send := func(rec streamRecord) bool {
		data, err := json.Marshal(rec)
		if err != nil {
			return false
		}
		if err := write(w, data); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	ctx := r.Context()
	for i, frag := range Fragments(reply.Text) {
		if reply.FailAfter >= 0 && i == reply.FailAfter {
			send(streamRecord{Error: failMessage, IsFinished: true})
			s.logger.Info("mock reply failed on request", "session", req.SessionID)
			return
		}
		if i > 0 && s.cfg.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				s.logger.Debug("client went away mid-stream", "session", req.SessionID)
				return
			case <-time.After(s.cfg.ChunkDelay):
			}
		}
		if !send(streamRecord{Response: &frag}) {
			return
		}
	}

	if err := s.saveReply(ctx, req, reply); err != nil {
		s.logger.Error("save reply", "error", err)
		send(streamRecord{Error: failMessage, IsFinished: true})
		return
	}
	send(streamRecord{IsFinished: true, SourceType: string(reply.SourceType), Sources: reply.Sources})
}

func (s *Server) oneShotReply(w http.ResponseWriter, r *http.Request, req domain.SendRequest, reply Reply) {
	if reply.FailAfter >= 0 {
		writeJSON(w, http.StatusOK, chatResponse{Error: failMessage, Sources: []string{}})
		return
	}
	if err := s.saveReply(r.Context(), req, reply); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Response:   reply.Text,
		SourceType: string(reply.SourceType),
		Sources:    reply.Sources,
	})
}

func (s *Server) saveReply(ctx context.Context, req domain.SendRequest, reply Reply) error {
	return s.store.SaveMessage(ctx, Record{
		SessionID:  req.SessionID,
		Username:   req.Username,
		Role:       domain.RoleAssistant,
		Message:    reply.Text,
		SourceType: reply.SourceType,
		Sources:    reply.Sources,
	})
}

// --- sessions ---

type historyEntry struct {
	Role       string   `json:"role"`
	Message    string   `json:"message"`
	CreatedAt  string   `json:"created_at"`
	SourceType string   `json:"source_type,omitempty"`
	Sources    []string `json:"sources"`
}

// wireRole reports roles the way the service always has.
func wireRole(r domain.Role) string {
	if r == domain.RoleAssistant {
		return "CHATBOT"
	}
	return "USER"
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	records, err := s.store.History(r.Context(), r.PathValue("session_id"), username)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	out := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, historyEntry{
			Role:       wireRole(rec.Role),
			Message:    rec.Message,
			CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			SourceType: string(rec.SourceType),
			Sources:    rec.Sources,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	sessions, err := s.store.Sessions(r.Context(), username)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	id := r.PathValue("session_id")
	n, err := s.store.DeleteSession(r.Context(), id, username)
	if errors.Is(err, domain.ErrSessionNotFound) {
		writeDetail(w, http.StatusNotFound, "Session not found or no messages to delete")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       fmt.Sprintf("Session deleted successfully. Removed %d messages.", n),
		"session_id":    id,
		"deleted_count": n,
	})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	var body struct {
		NewName string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	name := strings.TrimSpace(body.NewName)
	if name == "" {
		writeDetail(w, http.StatusBadRequest, "New name cannot be empty")
		return
	}

	id := r.PathValue("session_id")
	err := s.store.RenameSession(r.Context(), id, username, name)
	if errors.Is(err, domain.ErrSessionNotFound) {
		writeDetail(w, http.StatusNotFound, "Session not found or no user messages to rename")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Session renamed successfully",
		"session_id": id,
		"new_name":   name,
	})
}

// --- auth ---

func decodeCredentials(w http.ResponseWriter, r *http.Request) (domain.Credentials, bool) {
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username == "" || creds.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username and password are required")
		return creds, false
	}
	return creds, true
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	err = s.store.CreateUser(r.Context(), creds.Username, string(hash))
	if errors.Is(err, domain.ErrDuplicate) {
		writeDetail(w, http.StatusBadRequest, "Username already exists")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.logger.Info("user signed up", "user", creds.Username)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Signup successful"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	hash, err := s.store.PasswordHash(r.Context(), creds.Username)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.internalError(w, r, err)
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

// --- helpers ---

func requireUsername(w http.ResponseWriter, r *http.Request) (string, bool) {
	u := r.URL.Query().Get("username")
	if u == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "field required: username")
		return "", false
	}
	return u, true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("mock server request failed",
		"path", r.URL.Path,
		"request_id", middleware.RequestIDFromContext(r.Context()),
		"error", err,
	)
	writeDetail(w, http.StatusInternalServerError, "internal error")
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
