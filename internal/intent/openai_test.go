package intent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeCompletions(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req oaiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = io.WriteString(w, `{"error":{"type":"server_error","message":"overloaded"}}`)
			return
		}
		payload, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIOracle_Parse(t *testing.T) {
	srv := newFakeCompletions(t, http.StatusOK, `{"kind":"schedule","subject":"team coffee","time_phrase":"Tuesday 10:30"}`)
	o := NewOpenAIOracle(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})

	got, err := o.Parse(context.Background(), "coffee with the team on Tuesday 10:30")
	require.NoError(t, err)
	assert.Equal(t, Intent{Kind: KindSchedule, Subject: "team coffee", TimePhrase: "Tuesday 10:30"}, got)
}

func TestOpenAIOracle_InvalidOutputIsUnrecognized(t *testing.T) {
	srv := newFakeCompletions(t, http.StatusOK, `{"kind":"book_flight"}`)
	o := NewOpenAIOracle(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})

	got, err := o.Parse(context.Background(), "fly me to the moon")
	require.NoError(t, err)
	assert.Equal(t, Unrecognized(), got)
}

func TestOpenAIOracle_APIError(t *testing.T) {
	srv := newFakeCompletions(t, http.StatusServiceUnavailable, "")
	o := NewOpenAIOracle(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})

	_, err := o.Parse(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestOpenAIOracle_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	o := NewOpenAIOracle(OpenAIConfig{BaseURL: url})
	_, err := o.Parse(context.Background(), "anything")
	assert.Error(t, err)
}
