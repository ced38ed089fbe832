// Package httpapi is a JSON-over-HTTP transport for the assistant, built on
// chi. It also hosts the health endpoints and, when configured, the MCP
// streamable HTTP endpoint.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teemow/agentcal/internal/assistant"
	"github.com/teemow/agentcal/internal/calendar"
	"github.com/teemow/agentcal/internal/instrumentation"
	"github.com/teemow/agentcal/internal/logging"
	"github.com/teemow/agentcal/internal/search"
	"github.com/teemow/agentcal/internal/server"
	"github.com/teemow/agentcal/internal/session"
	"github.com/teemow/agentcal/internal/timewindow"
)

// TransportName labels messages arriving over this API.
const TransportName = "http"

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 64 << 10

// Config configures the router.
type Config struct {
	// Health mounts the probe endpoints when set.
	Health *server.HealthChecker

	// MCP mounts the MCP streamable HTTP handler at MCPPath when set.
	MCP     http.Handler
	MCPPath string

	MaxBodyBytes int64
	Logger       *slog.Logger
	Metrics      *instrumentation.Metrics
}

type api struct {
	assistant *assistant.Assistant
	search    *search.Handler
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
	maxBody   int64
}

// NewRouter returns the HTTP handler serving the v1 API.
func NewRouter(a *assistant.Assistant, searcher *search.Handler, cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	h := &api{
		assistant: a,
		search:    searcher,
		logger:    logging.WithOperation(logger, "transport.http"),
		metrics:   cfg.Metrics,
		maxBody:   cfg.MaxBodyBytes,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.observe)

	if cfg.Health != nil {
		cfg.Health.RegisterHealthEndpoints(r)
	}
	if cfg.MCP != nil {
		path := cfg.MCPPath
		if path == "" {
			path = "/mcp"
		}
		r.Handle(path, cfg.MCP)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", h.handleMessage)
		r.Get("/sessions/{user}", h.handleGetSession)
		r.Delete("/sessions/{user}", h.handleDeleteSession)
		r.Get("/events", h.handleSearch)
	})
	return r
}

// observe records request metrics and logs each request at debug.
func (h *api) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		h.metrics.RecordHTTPRequest(r.Context(), r.Method, route, status, time.Since(start))
		h.logger.DebugContext(r.Context(), "HTTP request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Duration(logging.KeyDuration, time.Since(start)))
	})
}

// MessageRequest is the body of POST /v1/messages.
type MessageRequest struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

// MessageResponse is the reply to POST /v1/messages.
type MessageResponse struct {
	Reply  string `json:"reply"`
	Intent string `json:"intent"`
	State  string `json:"state,omitempty"`
}

// SessionResponse describes a user's pending negotiation.
type SessionResponse struct {
	ID           string              `json:"id"`
	State        string              `json:"state"`
	Subject      string              `json:"subject"`
	Requested    timewindow.Window   `json:"requested_window"`
	Alternatives []timewindow.Window `json:"offered_alternatives,omitempty"`
	Selected     *int                `json:"selected_alternative_index,omitempty"`
	Attempts     int                 `json:"attempts"`
	ExpiresAt    string              `json:"expires_at"`
}

// EventResponse is one search hit.
type EventResponse struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Link    string `json:"link,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *api) handleMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp := h.assistant.Handle(r.Context(), TransportName, req.User, req.Message)
	out := MessageResponse{Reply: resp.Text, Intent: resp.Intent.String()}
	if resp.State != 0 {
		out.State = resp.State.String()
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *api) handleGetSession(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	s, err := h.assistant.Status(r.Context(), user)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to load session", logging.UserHash(user), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, "no pending negotiation")
		return
	}
	writeJSON(w, http.StatusOK, h.sessionResponse(s))
}

func (h *api) sessionResponse(s *session.Session) SessionResponse {
	return SessionResponse{
		ID:           s.ID,
		State:        s.State.String(),
		Subject:      s.Subject,
		Requested:    s.Requested,
		Alternatives: s.Alternatives,
		Selected:     s.Selected,
		Attempts:     s.Attempts,
		ExpiresAt:    timewindow.Format(s.LastActivityAt.Add(h.assistant.SessionTTL())),
	}
}

func (h *api) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	if err := h.assistant.Reset(r.Context(), user); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to clear session", logging.UserHash(user), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *api) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var from time.Time
	if raw := q.Get("from"); raw != "" {
		parsed, err := timewindow.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must look like 2025-01-15T14:00:00Z")
			return
		}
		from = parsed
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	events, err := h.search.Search(r.Context(), q.Get("q"), from, limit)
	switch {
	case errors.Is(err, search.ErrEmptyTerm):
		writeError(w, http.StatusBadRequest, "q is required")
		return
	case err != nil:
		h.logger.WarnContext(r.Context(), "Search failed", logging.Err(err))
		writeError(w, http.StatusBadGateway, "calendar search failed")
		return
	}
	writeJSON(w, http.StatusOK, eventResponses(events))
}

func eventResponses(events []calendar.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, EventResponse{
			ID:      ev.ID,
			Subject: ev.Subject,
			Start:   timewindow.Format(ev.Window.Start),
			End:     timewindow.Format(ev.Window.End),
			Link:    ev.Link,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
