package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agentcal/internal/assistant/assistanttest"
	"github.com/teemow/agentcal/internal/calendar"
	"github.com/teemow/agentcal/internal/server"
)

func newTestRouter(t *testing.T, cfg Config) (http.Handler, *assistanttest.Fixture) {
	t.Helper()
	f := assistanttest.New(t)
	return NewRouter(f.Assistant, f.Search, cfg), f
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestMessageFlow(t *testing.T) {
	h, f := newTestRouter(t, Config{})

	rec := do(t, h, http.MethodPost, "/v1/messages", `{"user":"ana","message":"Schedule team coffee Tuesday 10:30"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	msg := decode[MessageResponse](t, rec)
	assert.Equal(t, "schedule", msg.Intent)
	assert.Equal(t, "awaiting_confirmation", msg.State)

	rec = do(t, h, http.MethodGet, "/v1/sessions/ana", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decode[SessionResponse](t, rec)
	assert.Equal(t, "awaiting_confirmation", sess.State)
	assert.Equal(t, "team coffee", sess.Subject)
	assert.Equal(t, "2024-01-02T10:30:00Z/2024-01-02T11:30:00Z", sess.Requested.String())
	assert.NotEmpty(t, sess.ID)

	rec = do(t, h, http.MethodPost, "/v1/messages", `{"user":"ana","message":"yes"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "created", decode[MessageResponse](t, rec).State)
	assert.Equal(t, 1, f.Calendar.CallCount(calendar.OpCreate))

	rec = do(t, h, http.MethodGet, "/v1/sessions/ana", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	h, _ := newTestRouter(t, Config{})

	do(t, h, http.MethodPost, "/v1/messages", `{"user":"ana","message":"Schedule team coffee Tuesday 10:30"}`)
	rec := do(t, h, http.MethodDelete, "/v1/sessions/ana", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/sessions/ana", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/messages", `{"user":"ana","message":"yes"}`)
	assert.Equal(t, "unrecognized", decode[MessageResponse](t, rec).Intent)
}

func TestMessageValidation(t *testing.T) {
	h, _ := newTestRouter(t, Config{MaxBodyBytes: 128})

	tests := []struct {
		name string
		body string
		code int
		want string
	}{
		{name: "not json", body: `hello`, code: http.StatusBadRequest, want: "invalid request body"},
		{name: "missing user", body: `{"message":"hi"}`, code: http.StatusBadRequest, want: "user is required"},
		{name: "missing message", body: `{"user":"ana"}`, code: http.StatusBadRequest, want: "message is required"},
		{name: "too large", body: `{"user":"ana","message":"` + strings.Repeat("x", 256) + `"}`, code: http.StatusRequestEntityTooLarge, want: "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/messages", tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, decode[errorResponse](t, rec).Error, tt.want)
		})
	}
}

func TestSearch(t *testing.T) {
	h, f := newTestRouter(t, Config{})
	f.Calendar.Add("Dentista", "", assistanttest.Window(t, "2024-01-04T08:00:00Z"))
	f.Calendar.Add("Dentist follow-up", "", assistanttest.Window(t, "2024-01-10T08:00:00Z"))

	rec := do(t, h, http.MethodGet, "/v1/events?q=dentist", "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]EventResponse](t, rec)
	require.Len(t, events, 2)
	assert.Equal(t, "Dentista", events[0].Subject)

	rec = do(t, h, http.MethodGet, "/v1/events?q=dentist&limit=1&from=2024-01-05T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	events = decode[[]EventResponse](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, "2024-01-10T08:00:00Z", events[0].Start)
}

func TestSearchErrors(t *testing.T) {
	h, f := newTestRouter(t, Config{})

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/events", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/events?q=x&from=soon", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/events?q=x&limit=-1", "").Code)

	f.Calendar.FailNext(calendar.OpSearch, errors.New("down"))
	assert.Equal(t, http.StatusBadGateway, do(t, h, http.MethodGet, "/v1/events?q=x", "").Code)
}

func TestHealthAndMCPMounts(t *testing.T) {
	mcp := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h, _ := newTestRouter(t, Config{Health: server.NewHealthChecker(), MCP: mcp})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusTeapot, do(t, h, http.MethodPost, "/mcp", "{}").Code)
}

func TestUnknownRoute(t *testing.T) {
	h, _ := newTestRouter(t, Config{})
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v2/messages", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/v1/messages", "").Code)
}
