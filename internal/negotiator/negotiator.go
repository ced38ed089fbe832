package negotiator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/teemow/agentcal/internal/availability"
	"github.com/teemow/agentcal/internal/calendar"
	"github.com/teemow/agentcal/internal/instrumentation"
	"github.com/teemow/agentcal/internal/intent"
	"github.com/teemow/agentcal/internal/logging"
	"github.com/teemow/agentcal/internal/session"
	"github.com/teemow/agentcal/internal/timewindow"
)

// Defaults for Config.
const (
	DefaultMaxAttempts    = 3
	DefaultMatchTolerance = 15 * time.Minute
	DefaultSubject        = "Meeting"
)

// Operation names carried by ExternalCallError.
const (
	OpFreeBusy     = "calendar.freebusy"
	OpCreateEvent  = "calendar.create"
	OpSessionStore = "session.store"
)

// EventCreator is the part of the calendar store the negotiator writes to.
type EventCreator interface {
	CreateEvent(ctx context.Context, subject string, w timewindow.Window) (calendar.Event, error)
}

// Config configures a Negotiator.
type Config struct {
	// MaxAttempts is the number of unusable replies that abandons a
	// negotiation.
	MaxAttempts int
	// MatchTolerance is how far a restated time may be from an offered
	// alternative and still select it.
	MatchTolerance time.Duration
	// BookChosenAlternative books a chosen alternative that is still free
	// without asking the user to confirm it again.
	BookChosenAlternative bool
	// DefaultSubject titles events requested without a subject.
	DefaultSubject string

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Now     func() time.Time
}

// Negotiator runs scheduling negotiations.
type Negotiator struct {
	sessions   *session.Manager
	normalizer *timewindow.Normalizer
	resolver   *availability.Resolver
	events     EventCreator
	cfg        Config
	logger     *slog.Logger
}

// New returns a Negotiator.
func New(sessions *session.Manager, normalizer *timewindow.Normalizer, resolver *availability.Resolver, events EventCreator, cfg Config) *Negotiator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MatchTolerance <= 0 {
		cfg.MatchTolerance = DefaultMatchTolerance
	}
	if strings.TrimSpace(cfg.DefaultSubject) == "" {
		cfg.DefaultSubject = DefaultSubject
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{
		sessions:   sessions,
		normalizer: normalizer,
		resolver:   resolver,
		events:     events,
		cfg:        cfg,
		logger:     logging.WithOperation(logger, "negotiator"),
	}
}

// Location returns the time zone replies are interpreted in.
func (n *Negotiator) Location() *time.Location {
	return n.normalizer.Location()
}

// Schedule starts a negotiation for a Schedule intent, replacing any
// session the user had. A time phrase that cannot be resolved ends the
// request without creating a session.
func (n *Negotiator) Schedule(ctx context.Context, user string, in intent.Intent) Outcome {
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		subject = n.cfg.DefaultSubject
	}

	w, err := n.normalize(in)
	if err != nil {
		if cerr := n.sessions.Clear(ctx, user); cerr != nil {
			n.logger.WarnContext(ctx, "Failed to clear replaced session", logging.UserHash(user), logging.Err(cerr))
		}
		out := Outcome{
			State:   session.StateAbandoned,
			Failure: FailureNormalization,
			Reason:  timewindow.ReasonOf(err),
			Subject: subject,
		}
		n.finish(ctx, user, out)
		return out
	}

	s, err := n.sessions.Start(ctx, user, subject, w)
	if err != nil {
		return n.externalFailure(ctx, user, Outcome{Subject: subject, Window: w}, OpSessionStore, err)
	}
	return n.check(ctx, s)
}

// Answer interprets reply as an answer to the question s is waiting on.
// It reports false, leaving s untouched, when the reply does not answer
// the question.
func (n *Negotiator) Answer(ctx context.Context, s *session.Session, reply string) (Outcome, bool) {
	switch s.State {
	case session.StateAwaitingConfirmation:
		switch parseYesNo(reply) {
		case answerYes:
			return n.create(ctx, s), true
		case answerNo:
			return n.decline(ctx, s), true
		}

	case session.StateAwaitingUserChoice:
		yn := parseYesNo(reply)
		if yn == answerNo {
			return n.decline(ctx, s), true
		}
		if idx, ok := n.choose(reply, s.Alternatives); ok {
			return n.selectAlternative(ctx, s, idx), true
		}
		if yn == answerYes && len(s.Alternatives) == 1 {
			return n.selectAlternative(ctx, s, 0), true
		}
	}
	return Outcome{}, false
}

// Reprompt counts an unusable reply. The pending question is asked again
// until MaxAttempts is reached, at which point the negotiation is
// abandoned.
func (n *Negotiator) Reprompt(ctx context.Context, s *session.Session) Outcome {
	s.Attempts++
	out := n.pending(s)
	out.Attempts = s.Attempts

	if s.Attempts >= n.cfg.MaxAttempts {
		if _, err := n.sessions.Advance(ctx, s, session.StateAbandoned); err != nil {
			return n.externalFailure(ctx, s.User, out, OpSessionStore, err)
		}
		out.State = session.StateAbandoned
		out.Failure = FailureMaxRetries
		n.finish(ctx, s.User, out)
		return out
	}

	if err := n.sessions.Touch(ctx, s); err != nil {
		return n.externalFailure(ctx, s.User, out, OpSessionStore, err)
	}
	out.Reprompt = true
	return out
}

// Resume continues a session that is not waiting on the user: a
// CheckingAvailability session left by a failed calendar call is checked
// again, and a Confirmed session is booked. A waiting session is returned
// as is so the question can be repeated.
func (n *Negotiator) Resume(ctx context.Context, s *session.Session) Outcome {
	switch s.State {
	case session.StateCheckingAvailability, session.StateResolvingTime:
		return n.check(ctx, s)
	case session.StateConfirmed:
		return n.create(ctx, s)
	}
	return n.pending(s)
}

// Check answers whether the phrase in a CheckAvailability intent is free
// and, if not, which nearby windows are. It keeps no session.
func (n *Negotiator) Check(ctx context.Context, in intent.Intent) Outcome {
	w, err := n.normalize(in)
	if err != nil {
		return Outcome{Failure: FailureNormalization, Reason: timewindow.ReasonOf(err)}
	}

	res, err := n.resolver.Check(ctx, w)
	if err != nil {
		return n.externalFailure(ctx, "", Outcome{Window: w}, OpFreeBusy, err)
	}
	if res.Free {
		return Outcome{Window: w, Free: true}
	}

	alts, err := n.resolver.SuggestAlternatives(ctx, w, 0)
	if err != nil {
		return n.externalFailure(ctx, "", Outcome{Window: w}, OpFreeBusy, err)
	}
	out := Outcome{Window: w, Alternatives: alts}
	if len(alts) == 0 {
		out.Failure = FailureAvailabilityExhausted
	}
	return out
}

func (n *Negotiator) normalize(in intent.Intent) (timewindow.Window, error) {
	return n.normalizer.NormalizeWithDuration(in.TimePhrase, n.cfg.Now(), in.Duration(n.normalizer.DefaultDuration()))
}

// check verifies the session's candidate window. A failed calendar call
// leaves the session in CheckingAvailability.
func (n *Negotiator) check(ctx context.Context, s *session.Session) Outcome {
	candidate := s.Candidate()
	out := Outcome{Subject: s.Subject, Window: candidate, MaxAttempts: n.cfg.MaxAttempts}

	res, err := n.resolver.Check(ctx, candidate)
	if err != nil {
		out.State = s.State
		return n.externalFailure(ctx, s.User, out, OpFreeBusy, err)
	}

	if res.Free {
		if s.Selected != nil && n.cfg.BookChosenAlternative {
			return n.create(ctx, s)
		}
		s.Attempts = 0
		if _, err := n.sessions.Advance(ctx, s, session.StateAwaitingConfirmation); err != nil {
			return n.externalFailure(ctx, s.User, out, OpSessionStore, err)
		}
		out.State = session.StateAwaitingConfirmation
		out.Free = true
		return out
	}

	out.Rechecked = s.Selected != nil
	alts, err := n.resolver.SuggestAlternatives(ctx, candidate, 0)
	if err != nil {
		out.State = s.State
		return n.externalFailure(ctx, s.User, out, OpFreeBusy, err)
	}

	if len(alts) == 0 {
		if _, err := n.sessions.Advance(ctx, s, session.StateAbandoned); err != nil {
			return n.externalFailure(ctx, s.User, out, OpSessionStore, err)
		}
		out.State = session.StateAbandoned
		out.Failure = FailureAvailabilityExhausted
		n.finish(ctx, s.User, out)
		return out
	}

	s.Alternatives = alts
	s.Selected = nil
	s.Attempts = 0
	if _, err := n.sessions.Advance(ctx, s, session.StateAwaitingUserChoice); err != nil {
		return n.externalFailure(ctx, s.User, out, OpSessionStore, err)
	}
	out.State = session.StateAwaitingUserChoice
	out.Alternatives = alts
	return out
}

// selectAlternative records the choice and re-checks it, since another
// booking may have taken it after it was offered.
func (n *Negotiator) selectAlternative(ctx context.Context, s *session.Session, idx int) Outcome {
	s.Select(idx)
	if _, err := n.sessions.Advance(ctx, s, session.StateCheckingAvailability); err != nil {
		return n.externalFailure(ctx, s.User, n.pending(s), OpSessionStore, err)
	}
	return n.check(ctx, s)
}

// create books the candidate window. A calendar failure returns the
// session to AwaitingConfirmation so that confirming again retries.
func (n *Negotiator) create(ctx context.Context, s *session.Session) Outcome {
	w := s.Candidate()
	out := Outcome{Subject: s.Subject, Window: w, MaxAttempts: n.cfg.MaxAttempts}

	if _, err := n.sessions.Advance(ctx, s, session.StateConfirmed); err != nil {
		out.State = s.State
		return n.externalFailure(ctx, s.User, out, OpSessionStore, err)
	}

	record := instrumentation.NewEventCreation(ctx, s.User, s.ID).
		WithEvent(s.Subject, timewindow.Format(w.Start), timewindow.Format(w.End))
	ev, err := n.events.CreateEvent(ctx, s.Subject, w)
	n.cfg.Audit.LogEventCreation(record.Complete(ev.ID, err))

	if err != nil {
		s.Attempts = 0
		if _, aerr := n.sessions.Advance(ctx, s, session.StateAwaitingConfirmation); aerr != nil {
			n.logger.WarnContext(ctx, "Failed to restore session after create failure",
				logging.UserHash(s.User), logging.Session(s.ID), logging.Err(aerr))
		}
		out.State = s.State
		return n.externalFailure(ctx, s.User, out, OpCreateEvent, err)
	}

	if _, err := n.sessions.Advance(ctx, s, session.StateCreated); err != nil {
		// The event exists; a stale session will expire on its own.
		n.logger.WarnContext(ctx, "Failed to clear session after create",
			logging.UserHash(s.User), logging.Session(s.ID), logging.Err(err))
	}
	out.State = session.StateCreated
	out.Event = &ev
	n.finish(ctx, s.User, out)
	return out
}

func (n *Negotiator) decline(ctx context.Context, s *session.Session) Outcome {
	out := n.pending(s)
	if _, err := n.sessions.Advance(ctx, s, session.StateAbandoned); err != nil {
		return n.externalFailure(ctx, s.User, out, OpSessionStore, err)
	}
	out.State = session.StateAbandoned
	out.Declined = true
	n.finish(ctx, s.User, out)
	return out
}

func (n *Negotiator) choose(reply string, alternatives []timewindow.Window) (int, bool) {
	if isOrdinalReply(reply) {
		if idx, ok := parseOrdinal(reply, len(alternatives)); ok {
			return idx, true
		}
	}
	scan := n.normalizer.ScanReply(reply)
	if len(scan.Clocks) == 0 || scan.Dated || !onlyChoiceWords(scan.Rest) {
		return 0, false
	}
	return matchClock(scan.Clocks, alternatives, n.normalizer.Location(), n.cfg.MatchTolerance)
}

// pending describes the question s is waiting on.
func (n *Negotiator) pending(s *session.Session) Outcome {
	return Outcome{
		State:        s.State,
		Subject:      s.Subject,
		Window:       s.Candidate(),
		Alternatives: append([]timewindow.Window(nil), s.Alternatives...),
		Attempts:     s.Attempts,
		MaxAttempts:  n.cfg.MaxAttempts,
	}
}

func (n *Negotiator) externalFailure(ctx context.Context, user string, out Outcome, op string, err error) Outcome {
	out.Failure = FailureExternalCall
	out.Err = &ExternalCallError{Op: op, Err: err}
	attrs := []any{slog.String("call", op), logging.Err(err)}
	if user != "" {
		attrs = append(attrs, logging.UserHash(user))
	}
	n.logger.WarnContext(ctx, "External call failed", attrs...)
	return out
}

func (n *Negotiator) finish(ctx context.Context, user string, out Outcome) {
	failure := out.Failure.String()
	if out.Declined {
		failure = "declined"
	}
	n.cfg.Metrics.RecordNegotiationOutcome(ctx, out.State.String(), failure)
	n.logger.InfoContext(ctx, "Negotiation finished",
		logging.UserHash(user),
		logging.State(out.State.String()),
		slog.String("failure", failure))
}
