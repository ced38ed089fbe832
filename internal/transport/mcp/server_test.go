package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agentcal/internal/assistant/assistanttest"
	"github.com/teemow/agentcal/internal/calendar"
)

func newTestServer(t *testing.T) (*Server, *assistanttest.Fixture) {
	t.Helper()
	f := assistanttest.New(t)
	return NewServer(f.Assistant, f.Search, Config{Version: "test"}), f
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return text.Text
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, resultText(t, res))
	var out T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func TestSendMessageNegotiation(t *testing.T) {
	s, f := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleSendMessage(ctx, call(map[string]any{
		"user":    "ana",
		"message": "Schedule team coffee Tuesday 10:30",
	}))
	require.NoError(t, err)
	msg := decode[MessageResult](t, res)
	assert.Equal(t, "schedule", msg.Intent)
	assert.Equal(t, "awaiting_confirmation", msg.State)
	assert.Contains(t, msg.Reply, "Shall I book it?")

	res, err = s.handleSessionStatus(ctx, call(map[string]any{"user": "ana"}))
	require.NoError(t, err)
	status := decode[SessionStatus](t, res)
	assert.True(t, status.Active)
	assert.Equal(t, "team coffee", status.Subject)
	require.NotNil(t, status.Requested)
	assert.Equal(t, "2024-01-02T10:30:00Z/2024-01-02T11:30:00Z", status.Requested.String())
	assert.Equal(t, "2024-01-01T09:10:00Z", status.ExpiresAt)

	res, err = s.handleSendMessage(ctx, call(map[string]any{"user": "ana", "message": "yes"}))
	require.NoError(t, err)
	msg = decode[MessageResult](t, res)
	assert.Equal(t, "created", msg.State)
	assert.Equal(t, 1, f.Calendar.CallCount(calendar.OpCreate))

	res, err = s.handleSessionStatus(ctx, call(map[string]any{"user": "ana"}))
	require.NoError(t, err)
	status = decode[SessionStatus](t, res)
	assert.False(t, status.Active)
	assert.Equal(t, "none", status.State)
}

func TestSendMessageWithoutNegotiation(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleSendMessage(context.Background(), call(map[string]any{"user": "ana", "message": "hello"}))
	require.NoError(t, err)
	msg := decode[MessageResult](t, res)
	assert.Equal(t, "unrecognized", msg.Intent)
	assert.Empty(t, msg.State)
}

func TestValidation(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		handler toolHandler
		args    map[string]any
		want    string
	}{
		{name: "message without user", handler: s.handleSendMessage, args: map[string]any{"message": "hi"}, want: "user is required"},
		{name: "message without text", handler: s.handleSendMessage, args: map[string]any{"user": "ana"}, want: "message is required"},
		{name: "status without user", handler: s.handleSessionStatus, args: map[string]any{}, want: "user is required"},
		{name: "search without term", handler: s.handleSearchEvents, args: map[string]any{}, want: "term is required"},
		{name: "search blank term", handler: s.handleSearchEvents, args: map[string]any{"term": "  "}, want: "term must not be empty"},
		{name: "search bad from", handler: s.handleSearchEvents, args: map[string]any{"term": "x", "from": "tomorrow"}, want: "from must look like"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.handler(ctx, call(tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)

			var toolErr ToolError
			require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &toolErr))
			assert.Equal(t, ErrValidation, toolErr.Code)
			assert.Contains(t, toolErr.Message, tt.want)
		})
	}
}

func TestSearchEvents(t *testing.T) {
	s, f := newTestServer(t)
	f.Calendar.Add("Reunião de orçamento", "", assistanttest.Window(t, "2024-01-03T14:00:00Z"))
	f.Calendar.Add("Orçamento Q2", "", assistanttest.Window(t, "2024-01-05T10:00:00Z"))
	f.Calendar.Add("Lunch", "", assistanttest.Window(t, "2024-01-04T12:00:00Z"))

	res, err := s.handleSearchEvents(context.Background(), call(map[string]any{"term": "orcamento", "limit": 1}))
	require.NoError(t, err)
	events := decode[[]EventView](t, res)
	require.Len(t, events, 1)
	assert.Equal(t, "Reunião de orçamento", events[0].Subject)
	assert.Equal(t, "2024-01-03T14:00:00Z", events[0].Start)
	assert.Equal(t, "2024-01-03T15:00:00Z", events[0].End)
	assert.NotEmpty(t, events[0].Link)

	res, err = s.handleSearchEvents(context.Background(), call(map[string]any{"term": "orcamento", "from": "2024-01-04T00:00:00Z"}))
	require.NoError(t, err)
	events = decode[[]EventView](t, res)
	require.Len(t, events, 1)
	assert.Equal(t, "Orçamento Q2", events[0].Subject)
}

func TestSearchEventsFailure(t *testing.T) {
	s, f := newTestServer(t)
	f.Calendar.FailNext(calendar.OpSearch, errors.New("quota exceeded"))

	res, err := s.handleSearchEvents(context.Background(), call(map[string]any{"term": "budget"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), `"internal"`)
	assert.NotContains(t, resultText(t, res), "quota")
}

func TestInstrumentedMarksErrors(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.instrumented("failing", func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return validationError("nope"), nil
	})

	res, err := handler(context.Background(), call(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandlerIsMountable(t *testing.T) {
	s, _ := newTestServer(t)
	assert.NotNil(t, s.Handler())
	assert.NotNil(t, s.MCPServer())
}
