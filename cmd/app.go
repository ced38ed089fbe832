package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teemow/agentcal/internal/assistant"
	"github.com/teemow/agentcal/internal/availability"
	"github.com/teemow/agentcal/internal/calendar"
	"github.com/teemow/agentcal/internal/config"
	"github.com/teemow/agentcal/internal/google"
	"github.com/teemow/agentcal/internal/instrumentation"
	"github.com/teemow/agentcal/internal/intent"
	"github.com/teemow/agentcal/internal/negotiator"
	"github.com/teemow/agentcal/internal/reply"
	"github.com/teemow/agentcal/internal/search"
	"github.com/teemow/agentcal/internal/server"
	"github.com/teemow/agentcal/internal/session"
	"github.com/teemow/agentcal/internal/timewindow"
)

// calendarStore is what the components need from a calendar backend.
type calendarStore interface {
	availability.FreeBusyQuerier
	negotiator.EventCreator
	search.EventSearcher
}

// app holds the wired components shared by every transport.
type app struct {
	assistant *assistant.Assistant
	search    *search.Handler
	sessions  *session.Manager
	store     session.Store
	calendar  calendarStore
}

// checks returns the readiness checks of the backends that support one.
func (a *app) checks() []server.Check {
	type pinger interface {
		Ping(ctx context.Context) error
	}
	var checks []server.Check
	if p, ok := a.store.(pinger); ok {
		checks = append(checks, server.Check{Name: "session_store", Ping: p.Ping})
	}
	return checks
}

// Close stops the sweeper and releases the session store.
func (a *app) Close() error {
	a.sessions.Stop()
	return a.store.Close()
}

// newApp builds the assistant from cfg. A nil provider runs without
// metrics or audit logging.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, provider *instrumentation.Provider) (*app, error) {
	var (
		metrics *instrumentation.Metrics
		audit   *instrumentation.AuditLogger
	)
	if provider != nil {
		metrics = provider.Metrics()
		audit = provider.Audit()
	}
	loc := cfg.Location()

	cal, err := newCalendarStore(ctx, cfg, logger, metrics)
	if err != nil {
		return nil, err
	}

	store, err := newSessionStore(cfg)
	if err != nil {
		return nil, err
	}
	sessions := session.NewManager(store, session.Config{
		TTL:           cfg.Session.TTL,
		SweepInterval: cfg.Session.SweepInterval,
		Logger:        logger,
		Metrics:       metrics,
	})

	start, end, err := cfg.Alternatives.Workday()
	if err != nil {
		sessions.Stop()
		_ = store.Close()
		return nil, err
	}
	resolver := availability.NewResolver(cal, availability.Config{
		Count:               cfg.Alternatives.Count,
		Step:                cfg.Alternatives.Step,
		HorizonBusinessDays: cfg.Alternatives.HorizonBusinessDays,
		WorkdayStart:        start,
		WorkdayEnd:          end,
		Location:            loc,
		Logger:              logger,
	})

	neg := negotiator.New(
		sessions,
		timewindow.NewNormalizer(loc, cfg.DefaultDuration),
		resolver,
		cal,
		negotiator.Config{
			MaxAttempts:           cfg.Negotiation.MaxAttempts,
			MatchTolerance:        cfg.Negotiation.MatchTolerance,
			BookChosenAlternative: !cfg.Negotiation.ConfirmChosenAlternative,
			Logger:                logger,
			Metrics:               metrics,
			Audit:                 audit,
		},
	)

	searcher := search.NewHandler(cal, search.Config{Limit: cfg.Search.Limit, Logger: logger})

	replies, err := reply.New(loc, cfg.Replies)
	if err != nil {
		sessions.Stop()
		_ = store.Close()
		return nil, fmt.Errorf("invalid reply templates: %w", err)
	}

	a := assistant.New(newParser(cfg, logger, metrics), sessions, neg, searcher, replies, assistant.Config{
		Logger:  logger,
		Metrics: metrics,
	})

	return &app{
		assistant: a,
		search:    searcher,
		sessions:  sessions,
		store:     store,
		calendar:  cal,
	}, nil
}

func newCalendarStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *instrumentation.Metrics) (calendarStore, error) {
	switch cfg.Calendar.Backend {
	case config.CalendarMemory:
		logger.Warn("Using the in-memory calendar; events are lost on exit")
		return calendar.NewMemoryStore(), nil
	case config.CalendarGoogle:
		if cfg.Calendar.ClientID == "" || cfg.Calendar.ClientSecret == "" {
			return nil, errors.New("google calendar needs calendar.client_id and calendar.client_secret (or GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET)")
		}
		conf := google.OAuthConfig(cfg.Calendar.ClientID, cfg.Calendar.ClientSecret, cfg.Calendar.RedirectURL)
		tokens := google.NewFileTokenProvider(cfg.Calendar.TokenDir)
		if !tokens.HasTokenForAccount(cfg.Calendar.Account) {
			return nil, fmt.Errorf("no Google token for account %q; run `agentcal auth` first", cfg.Calendar.Account)
		}
		client, err := google.HTTPClient(ctx, conf, tokens, cfg.Calendar.Account)
		if err != nil {
			return nil, err
		}
		store, err := calendar.NewGoogleStore(ctx, client, calendar.GoogleConfig{
			CalendarID: cfg.Calendar.ID,
			Location:   cfg.Location(),
			Metrics:    metrics,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unsupported calendar backend %q", cfg.Calendar.Backend)
}

func newSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case session.BackendSQLite:
		return session.NewSQLiteStore(cfg.Session.SQLitePath)
	case session.BackendValkey:
		v := cfg.Session.Valkey
		return session.NewValkeyStore(session.ValkeyConfig{
			Addr:       v.Addr,
			Password:   v.Password,
			DB:         v.DB,
			TLSEnabled: v.TLSEnabled,
			TLSCAFile:  v.TLSCAFile,
			KeyPrefix:  v.KeyPrefix,
			TTL:        cfg.Session.TTL,
		})
	case session.BackendMemory, "":
		return session.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unsupported session backend %q", cfg.Session.Backend)
}

// newParser builds the intent parser. Only the remote oracle is rate
// limited; a zero rate disables the limit.
func newParser(cfg *config.Config, logger *slog.Logger, metrics *instrumentation.Metrics) *intent.Parser {
	if cfg.NLU.Provider != config.ProviderOpenAI {
		return intent.NewParser(intent.NewRuleOracle(), config.ProviderRules, nil, metrics)
	}
	oracle := intent.NewOpenAIOracle(intent.OpenAIConfig{
		APIKey:  cfg.NLU.APIKey(),
		BaseURL: cfg.NLU.BaseURL,
		Model:   cfg.NLU.Model,
		Timeout: cfg.NLU.Timeout,
		Logger:  logger,
	})
	var limiter *intent.RateLimiter
	if cfg.NLU.RatePerMinute > 0 {
		limiter = intent.NewRateLimiter(cfg.NLU.RatePerMinute)
	}
	return intent.NewParser(oracle, config.ProviderOpenAI, limiter, metrics)
}
