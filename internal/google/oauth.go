package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/teemow/agentcal/internal/logging"
)

// DefaultRedirectURL is used when no redirect is configured. The user
// copies the code from the address bar into `agentcal auth`.
const DefaultRedirectURL = "http://localhost:8085/oauth2/callback"

// Scopes are the OAuth scopes the assistant needs. Free-busy queries need
// read access to the calendar; inserts need the events scope.
var Scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

var accountNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// OAuthConfig returns the OAuth2 configuration for the calendar scopes.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	if redirectURL == "" {
		redirectURL = DefaultRedirectURL
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
	}
}

// AuthURL returns the consent URL. Offline access is requested so the
// stored token carries a refresh token.
func AuthURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeAndSave exchanges an authorization code and stores the resulting
// token for account.
func ExchangeAndSave(ctx context.Context, conf *oauth2.Config, store *FileTokenProvider, account, code string) error {
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return store.SaveToken(account, tok)
}

// HTTPClient returns an authenticated client for account. Refreshed
// tokens are written back through the provider when it supports saving.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func HTTPClient(ctx context.Context, conf *oauth2.Config, provider TokenProvider, account string) (*http.Client, error) {
	tok, err := provider.GetTokenForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token for account %s: %w", account, err)
	}

	var ts oauth2.TokenSource = conf.TokenSource(ctx, tok)
	if saver, ok := provider.(tokenSaver); ok {
		ts = &savingTokenSource{base: ts, saver: saver, account: account, last: tok.AccessToken, logger: slog.Default()}
	}

	client := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, ts))
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{ForceAttemptHTTP2: false}
	}
	return client, nil
}

func validateAccountName(account string) error {
	if !accountNamePattern.MatchString(account) {
		return fmt.Errorf("invalid account name %q: only letters, digits, '-' and '_' are allowed", account)
	}
	return nil
}

type tokenSaver interface {
	SaveToken(account string, tok *oauth2.Token) error
}

type savingTokenSource struct {
	base    oauth2.TokenSource
	saver   tokenSaver
	account string
	last    string
	logger  *slog.Logger
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		// A failed write only costs a refresh on the next start.
		if err := s.saver.SaveToken(s.account, tok); err != nil {
			s.logger.Warn("failed to save refreshed token",
				slog.String("account", s.account),
				logging.Err(err))
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}
