package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every agentcal environment variable.
const EnvPrefix = "AGENTCAL_"

// envReader applies environment overrides and collects malformed values.
type envReader struct {
	errs []error
}

func (r *envReader) lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func (r *envReader) string(key string, dst *string) {
	if value, ok := r.lookup(key); ok {
		*dst = value
	}
}

func (r *envReader) int(key string, dst *int) {
	if value, ok := r.lookup(key); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, value, err))
			return
		}
		*dst = parsed
	}
}

func (r *envReader) bool(key string, dst *bool) {
	if value, ok := r.lookup(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, value, err))
			return
		}
		*dst = parsed
	}
}

func (r *envReader) duration(key string, dst *time.Duration) {
	if value, ok := r.lookup(key); ok {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, value, err))
			return
		}
		*dst = parsed
	}
}

func (r *envReader) list(key string, dst *[]string) {
	if value, ok := r.lookup(key); ok {
		var out []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*dst = out
	}
}

// applyEnv overrides file settings with AGENTCAL_* variables. Google
// client credentials also fall back to GOOGLE_CLIENT_ID and
// GOOGLE_CLIENT_SECRET, and the log level to LOG_LEVEL.
func applyEnv(cfg *Config) error {
	r := &envReader{}

	r.string("TIMEZONE", &cfg.Timezone)
	r.duration("DEFAULT_DURATION", &cfg.DefaultDuration)

	r.int("ALTERNATIVES_COUNT", &cfg.Alternatives.Count)
	r.duration("ALTERNATIVES_STEP", &cfg.Alternatives.Step)
	r.int("ALTERNATIVES_HORIZON_BUSINESS_DAYS", &cfg.Alternatives.HorizonBusinessDays)
	r.string("ALTERNATIVES_WORKDAY_START", &cfg.Alternatives.WorkdayStart)
	r.string("ALTERNATIVES_WORKDAY_END", &cfg.Alternatives.WorkdayEnd)

	r.int("NEGOTIATION_MAX_ATTEMPTS", &cfg.Negotiation.MaxAttempts)
	r.duration("NEGOTIATION_MATCH_TOLERANCE", &cfg.Negotiation.MatchTolerance)
	r.bool("NEGOTIATION_CONFIRM_CHOSEN_ALTERNATIVE", &cfg.Negotiation.ConfirmChosenAlternative)

	r.duration("SESSION_TTL", &cfg.Session.TTL)
	r.duration("SESSION_SWEEP_INTERVAL", &cfg.Session.SweepInterval)
	r.string("SESSION_BACKEND", &cfg.Session.Backend)
	r.string("SESSION_SQLITE_PATH", &cfg.Session.SQLitePath)
	r.string("SESSION_VALKEY_ADDR", &cfg.Session.Valkey.Addr)
	r.string("SESSION_VALKEY_PASSWORD", &cfg.Session.Valkey.Password)
	r.int("SESSION_VALKEY_DB", &cfg.Session.Valkey.DB)
	r.bool("SESSION_VALKEY_TLS", &cfg.Session.Valkey.TLSEnabled)
	r.string("SESSION_VALKEY_TLS_CA_FILE", &cfg.Session.Valkey.TLSCAFile)
	r.string("SESSION_VALKEY_KEY_PREFIX", &cfg.Session.Valkey.KeyPrefix)

	r.int("SEARCH_LIMIT", &cfg.Search.Limit)

	r.string("NLU_PROVIDER", &cfg.NLU.Provider)
	r.string("NLU_BASE_URL", &cfg.NLU.BaseURL)
	r.string("NLU_MODEL", &cfg.NLU.Model)
	r.string("NLU_API_KEY_ENV", &cfg.NLU.APIKeyEnv)
	r.int("NLU_RATE_PER_MINUTE", &cfg.NLU.RatePerMinute)
	r.duration("NLU_TIMEOUT", &cfg.NLU.Timeout)

	if cfg.Calendar.ClientID == "" {
		cfg.Calendar.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if cfg.Calendar.ClientSecret == "" {
		cfg.Calendar.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	r.string("CALENDAR_BACKEND", &cfg.Calendar.Backend)
	r.string("CALENDAR_ID", &cfg.Calendar.ID)
	r.string("CALENDAR_ACCOUNT", &cfg.Calendar.Account)
	r.string("CALENDAR_CLIENT_ID", &cfg.Calendar.ClientID)
	r.string("CALENDAR_CLIENT_SECRET", &cfg.Calendar.ClientSecret)
	r.string("CALENDAR_REDIRECT_URL", &cfg.Calendar.RedirectURL)
	r.string("CALENDAR_TOKEN_DIR", &cfg.Calendar.TokenDir)

	r.string("MATRIX_HOMESERVER", &cfg.Matrix.Homeserver)
	r.string("MATRIX_USER_ID", &cfg.Matrix.UserID)
	r.string("MATRIX_ACCESS_TOKEN", &cfg.Matrix.AccessToken)
	r.list("MATRIX_ALLOWED_USERS", &cfg.Matrix.AllowedUsers)
	r.bool("MATRIX_AUTO_JOIN", &cfg.Matrix.AutoJoin)

	r.string("HTTP_ADDR", &cfg.HTTP.Addr)
	r.bool("METRICS_ENABLED", &cfg.Metrics.Enabled)
	r.string("METRICS_ADDR", &cfg.Metrics.Addr)

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	r.string("LOG_LEVEL", &cfg.Log.Level)
	r.string("LOG_FORMAT", &cfg.Log.Format)

	return errors.Join(r.errs...)
}
