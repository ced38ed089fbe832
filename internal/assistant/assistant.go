// Package assistant routes each incoming message to the negotiator or the
// keyword search and renders the reply. Transports hand it raw text and
// send back whatever it returns.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/agentcal/internal/instrumentation"
	"github.com/teemow/agentcal/internal/intent"
	"github.com/teemow/agentcal/internal/logging"
	"github.com/teemow/agentcal/internal/negotiator"
	"github.com/teemow/agentcal/internal/reply"
	"github.com/teemow/agentcal/internal/search"
	"github.com/teemow/agentcal/internal/session"
)

// Response is the result of handling one message.
type Response struct {
	Text   string
	Intent intent.Kind
	// State is the negotiation state after the message, zero when no
	// negotiation was involved.
	State session.State
}

// Config configures an Assistant.
type Config struct {
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Assistant handles messages for every user.
type Assistant struct {
	parser     *intent.Parser
	sessions   *session.Manager
	negotiator *negotiator.Negotiator
	search     *search.Handler
	replies    *reply.Catalog
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// New returns an Assistant.
func New(parser *intent.Parser, sessions *session.Manager, neg *negotiator.Negotiator, searcher *search.Handler, replies *reply.Catalog, cfg Config) *Assistant {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		parser:     parser,
		sessions:   sessions,
		negotiator: neg,
		search:     searcher,
		replies:    replies,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

// Handle processes one message from user received over transport.
// Messages from the same user are handled one at a time.
func (a *Assistant) Handle(ctx context.Context, transport, user, message string) Response {
	start := time.Now()
	ctx, span := instrumentation.StartSpan(ctx, "assistant.handle",
		attribute.String(instrumentation.SpanAttrTransport, transport),
		attribute.String(instrumentation.SpanAttrUser, logging.AnonymizeUser(user)))
	defer span.End()

	unlock := a.sessions.Lock(user)
	defer unlock()

	resp := a.handle(ctx, user, message)

	span.SetAttributes(
		attribute.String(instrumentation.SpanAttrIntent, resp.Intent.String()),
		attribute.String(instrumentation.SpanAttrState, resp.State.String()))
	a.metrics.RecordMessage(ctx, transport, resp.Intent.String(), time.Since(start))
	a.logger.DebugContext(ctx, "message handled",
		slog.String(logging.KeyTransport, transport),
		logging.UserHash(user),
		logging.Intent(resp.Intent.String()),
		logging.State(resp.State.String()),
		slog.Duration(logging.KeyDuration, time.Since(start)))
	return resp
}

func (a *Assistant) handle(ctx context.Context, user, message string) Response {
	s, err := a.sessions.Get(ctx, user)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to load session", logging.UserHash(user), logging.Err(err))
		return Response{Text: a.replies.Unavailable()}
	}
	if s != nil {
		return a.continueSession(ctx, s, message)
	}

	in, err := a.parser.Parse(ctx, user, message)
	if err != nil {
		return a.parseFailure(ctx, user, err)
	}
	return a.dispatch(ctx, user, in)
}

// continueSession treats the message as an answer to the pending
// question first. Only a complete new scheduling request replaces the
// session; anything else counts against the retry budget.
func (a *Assistant) continueSession(ctx context.Context, s *session.Session, message string) Response {
	if s.State.Waiting() {
		if out, ok := a.negotiator.Answer(ctx, s, message); ok {
			return a.negotiation(intent.KindSchedule, out)
		}
	}

	in, err := a.parser.Parse(ctx, s.User, message)
	switch {
	case errors.Is(err, intent.ErrRateLimited):
		return Response{Text: a.replies.RateLimited(), State: s.State}
	case err == nil && in.IsFreshSchedule():
		return a.negotiation(in.Kind, a.negotiator.Schedule(ctx, s.User, in))
	case err != nil:
		a.logger.WarnContext(ctx, "Intent parsing failed", logging.UserHash(s.User), logging.Err(err))
	}

	if !s.State.Waiting() {
		return a.negotiation(intent.KindSchedule, a.negotiator.Resume(ctx, s))
	}
	if err != nil {
		return Response{Text: a.replies.Unavailable(), Intent: intent.KindSchedule, State: s.State}
	}
	return a.negotiation(intent.KindSchedule, a.negotiator.Reprompt(ctx, s))
}

func (a *Assistant) dispatch(ctx context.Context, user string, in intent.Intent) Response {
	switch in.Kind {
	case intent.KindSchedule:
		return a.negotiation(in.Kind, a.negotiator.Schedule(ctx, user, in))

	case intent.KindCheckAvailability:
		out := a.negotiator.Check(ctx, in)
		return Response{Text: a.replies.Availability(out), Intent: in.Kind}

	case intent.KindSearchByKeyword:
		events, err := a.search.Search(ctx, in.SearchTerm, time.Time{}, 0)
		switch {
		case errors.Is(err, search.ErrEmptyTerm):
			return Response{Text: a.replies.Help(), Intent: in.Kind}
		case err != nil:
			a.logger.WarnContext(ctx, "Search failed", logging.UserHash(user), logging.Err(err))
			return Response{Text: a.replies.SearchFailed(), Intent: in.Kind}
		}
		return Response{Text: a.replies.Search(in.SearchTerm, events), Intent: in.Kind}
	}
	return Response{Text: a.replies.Help(), Intent: intent.KindUnrecognized}
}

func (a *Assistant) parseFailure(ctx context.Context, user string, err error) Response {
	if errors.Is(err, intent.ErrRateLimited) {
		return Response{Text: a.replies.RateLimited()}
	}
	a.logger.WarnContext(ctx, "Intent parsing failed", logging.UserHash(user), logging.Err(err))
	return Response{Text: a.replies.Unavailable()}
}

func (a *Assistant) negotiation(kind intent.Kind, out negotiator.Outcome) Response {
	return Response{Text: a.replies.Negotiation(out), Intent: kind, State: out.State}
}

// Status returns the user's live negotiation, or nil.
func (a *Assistant) Status(ctx context.Context, user string) (*session.Session, error) {
	return a.sessions.Get(ctx, user)
}

// Reset discards the user's negotiation.
func (a *Assistant) Reset(ctx context.Context, user string) error {
	unlock := a.sessions.Lock(user)
	defer unlock()
	return a.sessions.Clear(ctx, user)
}

// SessionTTL is how long a negotiation survives without activity.
func (a *Assistant) SessionTTL() time.Duration {
	return a.sessions.TTL()
}
