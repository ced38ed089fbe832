package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/agentcal/internal/assistant"
	"github.com/teemow/agentcal/internal/calendar"
	"github.com/teemow/agentcal/internal/instrumentation"
	"github.com/teemow/agentcal/internal/logging"
	"github.com/teemow/agentcal/internal/search"
	"github.com/teemow/agentcal/internal/session"
	"github.com/teemow/agentcal/internal/timewindow"
)

// TransportName labels messages arriving through MCP in metrics and logs.
const TransportName = "mcp"

// EndpointPath is where the streamable HTTP transport is mounted.
const EndpointPath = "/mcp"

// Tool names.
const (
	ToolSendMessage   = "assistant_send_message"
	ToolSessionStatus = "assistant_session_status"
	ToolSearchEvents  = "calendar_search_events"
)

// Config configures a Server.
type Config struct {
	Name    string
	Version string
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Server registers the assistant tools on an MCP server.
type Server struct {
	assistant *assistant.Assistant
	search    *search.Handler
	mcp       *mcpserver.MCPServer
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
}

// NewServer creates the MCP server and registers all tools.
func NewServer(a *assistant.Assistant, searcher *search.Handler, cfg Config) *Server {
	if cfg.Name == "" {
		cfg.Name = "agentcal"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		assistant: a,
		search:    searcher,
		mcp:       mcpserver.NewMCPServer(cfg.Name, cfg.Version, mcpserver.WithToolCapabilities(true)),
		logger:    logging.WithOperation(logger, "transport.mcp"),
		metrics:   cfg.Metrics,
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// ServeStdio serves MCP over stdin and stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcp)
}

// Handler returns the streamable HTTP handler, to be mounted at EndpointPath.
func (s *Server) Handler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcp, mcpserver.WithEndpointPath(EndpointPath))
}

func (s *Server) registerTools() {
	sendMessage := mcp.NewTool(ToolSendMessage,
		mcp.WithDescription("Send one message from a user to the scheduling assistant and return its reply. "+
			"The assistant remembers pending questions per user, so answers like \"yes\" or \"the second one\" "+
			"must be sent with the same user."),
		mcp.WithString("user",
			mcp.Required(),
			mcp.Description("Stable identifier of the person talking to the assistant"),
		),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The user's message, verbatim"),
		),
	)
	s.mcp.AddTool(sendMessage, s.instrumented(ToolSendMessage, s.handleSendMessage))

	sessionStatus := mcp.NewTool(ToolSessionStatus,
		mcp.WithDescription("Show the user's pending scheduling negotiation, if any"),
		mcp.WithString("user",
			mcp.Required(),
			mcp.Description("Stable identifier of the person talking to the assistant"),
		),
	)
	s.mcp.AddTool(sessionStatus, s.instrumented(ToolSessionStatus, s.handleSessionStatus))

	searchEvents := mcp.NewTool(ToolSearchEvents,
		mcp.WithDescription("Search upcoming calendar events by keyword. Matching ignores case and accents."),
		mcp.WithString("term",
			mcp.Required(),
			mcp.Description("Keyword to look for in event titles and descriptions"),
		),
		mcp.WithString("from",
			mcp.Description("Only events starting at or after this instant (UTC, e.g. '2025-01-15T14:00:00Z'). Defaults to now."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of events to return (default 10, max 250)"),
		),
	)
	s.mcp.AddTool(searchEvents, s.instrumented(ToolSearchEvents, s.handleSearchEvents))
}

type toolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// instrumented wraps a tool handler with a span and invocation metrics.
func (s *Server) instrumented(name string, handler toolHandler) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		ctx, span := instrumentation.StartToolSpan(ctx, name)

		result, err := handler(ctx, request)

		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
		}
		instrumentation.EndSpan(span, err)
		s.metrics.RecordToolInvocation(ctx, name, status, time.Since(start))
		s.logger.DebugContext(ctx, "Tool invoked",
			logging.Tool(name),
			logging.Status(status),
			slog.Duration(logging.KeyDuration, time.Since(start)))
		return result, err
	}
}

// MessageResult is the result of assistant_send_message.
type MessageResult struct {
	Reply  string `json:"reply"`
	Intent string `json:"intent"`
	State  string `json:"state,omitempty"`
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := request.RequireString("user")
	if err != nil || user == "" {
		return validationError("user is required"), nil
	}
	message, err := request.RequireString("message")
	if err != nil {
		return validationError("message is required"), nil
	}

	resp := s.assistant.Handle(ctx, TransportName, user, message)
	result := MessageResult{Reply: resp.Text, Intent: resp.Intent.String()}
	if resp.State != 0 {
		result.State = resp.State.String()
	}
	return jsonResult(result)
}

// SessionStatus is the result of assistant_session_status.
type SessionStatus struct {
	Active       bool                `json:"active"`
	State        string              `json:"state"`
	Subject      string              `json:"subject,omitempty"`
	Requested    *timewindow.Window  `json:"requested_window,omitempty"`
	Alternatives []timewindow.Window `json:"offered_alternatives,omitempty"`
	Attempts     int                 `json:"attempts,omitempty"`
	ExpiresAt    string              `json:"expires_at,omitempty"`
}

func (s *Server) handleSessionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := request.RequireString("user")
	if err != nil || user == "" {
		return validationError("user is required"), nil
	}

	sess, err := s.assistant.Status(ctx, user)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load session", logging.UserHash(user), logging.Err(err))
		return internalError("failed to load session"), nil
	}
	return jsonResult(statusOf(sess, s.assistant.SessionTTL()))
}

func statusOf(sess *session.Session, ttl time.Duration) SessionStatus {
	if sess == nil {
		return SessionStatus{State: session.State(0).String()}
	}
	requested := sess.Requested
	return SessionStatus{
		Active:       true,
		State:        sess.State.String(),
		Subject:      sess.Subject,
		Requested:    &requested,
		Alternatives: sess.Alternatives,
		Attempts:     sess.Attempts,
		ExpiresAt:    timewindow.Format(sess.LastActivityAt.Add(ttl)),
	}
}

// EventView is one event in a calendar_search_events result.
type EventView struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Link    string `json:"link,omitempty"`
}

func (s *Server) handleSearchEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	term, err := request.RequireString("term")
	if err != nil {
		return validationError("term is required"), nil
	}

	var from time.Time
	if raw := request.GetString("from", ""); raw != "" {
		from, err = timewindow.Parse(raw)
		if err != nil {
			return validationError("from must look like 2025-01-15T14:00:00Z"), nil
		}
	}
	limit := request.GetInt("limit", 0)

	events, err := s.search.Search(ctx, term, from, limit)
	switch {
	case errors.Is(err, search.ErrEmptyTerm):
		return validationError("term must not be empty"), nil
	case err != nil:
		s.logger.WarnContext(ctx, "Search failed", logging.Err(err))
		return internalError("calendar search failed"), nil
	}
	return jsonResult(eventViews(events))
}

func eventViews(events []calendar.Event) []EventView {
	out := make([]EventView, 0, len(events))
	for _, ev := range events {
		out = append(out, EventView{
			ID:      ev.ID,
			Subject: ev.Subject,
			Start:   timewindow.Format(ev.Window.Start),
			End:     timewindow.Format(ev.Window.End),
			Link:    ev.Link,
		})
	}
	return out
}
