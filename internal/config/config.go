// Package config loads agentcal settings from an optional YAML file, an
// optional .env file and AGENTCAL_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teemow/agentcal/internal/availability"
	"github.com/teemow/agentcal/internal/google"
	"github.com/teemow/agentcal/internal/intent"
	"github.com/teemow/agentcal/internal/logging"
	"github.com/teemow/agentcal/internal/negotiator"
	"github.com/teemow/agentcal/internal/search"
	"github.com/teemow/agentcal/internal/session"
	"github.com/teemow/agentcal/internal/timewindow"
)

const (
	// DefaultTimezone is used when no timezone is configured.
	DefaultTimezone = "America/Sao_Paulo"

	// DefaultDuration is the meeting length when the request names none.
	DefaultDuration = 60 * time.Minute

	// DefaultHTTPAddr is the listen address of the HTTP transports.
	DefaultHTTPAddr = ":8080"

	// DefaultMetricsAddr is the listen address of the metrics server.
	DefaultMetricsAddr = ":9090"

	// DefaultAPIKeyEnv names the variable holding the NLU API key.
	DefaultAPIKeyEnv = "OPENAI_API_KEY"
)

// NLU providers.
const (
	ProviderRules  = "rules"
	ProviderOpenAI = "openai"
)

// Calendar backends.
const (
	CalendarGoogle = "google"
	CalendarMemory = "memory"
)

// Config is the complete agentcal configuration.
type Config struct {
	Timezone        string             `yaml:"timezone"`
	DefaultDuration time.Duration      `yaml:"default_duration"`
	Alternatives    AlternativesConfig `yaml:"alternatives"`
	Negotiation     NegotiationConfig  `yaml:"negotiation"`
	Session         SessionConfig      `yaml:"session"`
	Search          SearchConfig       `yaml:"search"`
	NLU             NLUConfig          `yaml:"nlu"`
	Calendar        CalendarConfig     `yaml:"calendar"`
	Matrix          MatrixConfig       `yaml:"matrix"`
	HTTP            HTTPConfig         `yaml:"http"`
	Metrics         MetricsConfig      `yaml:"metrics"`
	Log             LogConfig          `yaml:"log"`

	// Replies overrides reply templates by name.
	Replies map[string]string `yaml:"replies"`

	location *time.Location
}

// AlternativesConfig controls how free slots are proposed.
type AlternativesConfig struct {
	Count               int           `yaml:"count"`
	Step                time.Duration `yaml:"step"`
	HorizonBusinessDays int           `yaml:"horizon_business_days"`
	WorkdayStart        string        `yaml:"workday_start"`
	WorkdayEnd          string        `yaml:"workday_end"`
}

// NegotiationConfig controls the scheduling dialogue.
type NegotiationConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	MatchTolerance time.Duration `yaml:"match_tolerance"`

	// ConfirmChosenAlternative asks for a yes/no after the user picks an
	// alternative instead of booking it straight away.
	ConfirmChosenAlternative bool `yaml:"confirm_chosen_alternative"`
}

// SessionConfig selects where negotiations are kept.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Backend       string        `yaml:"backend"`
	SQLitePath    string        `yaml:"sqlite_path"`
	Valkey        ValkeyConfig  `yaml:"valkey"`
}

// ValkeyConfig holds the Valkey connection settings for the session store.
type ValkeyConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TLSEnabled bool   `yaml:"tls"`
	TLSCAFile  string `yaml:"tls_ca_file"`
	KeyPrefix  string `yaml:"key_prefix"`
}

// SearchConfig controls keyword search.
type SearchConfig struct {
	Limit int `yaml:"limit"`
}

// NLUConfig selects the intent oracle.
type NLUConfig struct {
	Provider      string        `yaml:"provider"`
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	APIKeyEnv     string        `yaml:"api_key_env"`
	RatePerMinute int           `yaml:"rate_per_minute"`
	Timeout       time.Duration `yaml:"timeout"`
}

// APIKey reads the key from the configured environment variable.
func (c NLUConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// CalendarConfig selects the calendar backend and Google credentials.
type CalendarConfig struct {
	Backend      string `yaml:"backend"`
	ID           string `yaml:"id"`
	Account      string `yaml:"account"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	TokenDir     string `yaml:"token_dir"`
}

// MatrixConfig configures the Matrix bot transport. It is disabled unless
// a homeserver is set.
type MatrixConfig struct {
	Homeserver   string   `yaml:"homeserver"`
	UserID       string   `yaml:"user_id"`
	AccessToken  string   `yaml:"access_token"`
	AllowedUsers []string `yaml:"allowed_users"`
	AutoJoin     bool     `yaml:"auto_join"`
}

// Enabled reports whether the Matrix transport should start.
func (c MatrixConfig) Enabled() bool {
	return c.Homeserver != ""
}

// HTTPConfig configures the HTTP listeners.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Timezone:        DefaultTimezone,
		DefaultDuration: DefaultDuration,
		Alternatives: AlternativesConfig{
			Count:               availability.DefaultCount,
			Step:                availability.DefaultStep,
			HorizonBusinessDays: availability.DefaultHorizonBusinessDays,
			WorkdayStart:        availability.DefaultWorkdayStart.String(),
			WorkdayEnd:          availability.DefaultWorkdayEnd.String(),
		},
		Negotiation: NegotiationConfig{
			MaxAttempts:              negotiator.DefaultMaxAttempts,
			MatchTolerance:           negotiator.DefaultMatchTolerance,
			ConfirmChosenAlternative: true,
		},
		Session: SessionConfig{
			TTL:           session.DefaultTTL,
			SweepInterval: session.DefaultSweepInterval,
			Backend:       session.BackendMemory,
			SQLitePath:    filepath.Join(defaultDataDir(), "sessions.db"),
			Valkey:        ValkeyConfig{KeyPrefix: session.DefaultValkeyKeyPrefix},
		},
		Search: SearchConfig{Limit: search.DefaultLimit},
		NLU: NLUConfig{
			Provider:      ProviderRules,
			APIKeyEnv:     DefaultAPIKeyEnv,
			RatePerMinute: intent.DefaultRatePerMinute,
		},
		Calendar: CalendarConfig{
			Backend:  CalendarGoogle,
			ID:       "primary",
			Account:  "default",
			TokenDir: google.DefaultTokenDir(),
		},
		HTTP:    HTTPConfig{Addr: DefaultHTTPAddr},
		Metrics: MetricsConfig{Enabled: true, Addr: DefaultMetricsAddr},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path (optional, may be empty), then ./.env when present, then
// the environment, and validates the result.
func Load(path string) (*Config, error) {
	return LoadFiles(path, ".env")
}

// LoadFiles is Load with an explicit .env location. An empty envFile skips
// dotenv loading. A missing envFile is not an error.
func LoadFiles(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			// Variables already set in the environment win over the file.
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and resolves the timezone.
func (c *Config) Validate() error {
	var errs []error

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err))
	} else {
		c.location = loc
	}

	if c.DefaultDuration <= 0 {
		errs = append(errs, errors.New("default_duration must be positive"))
	}
	if c.Alternatives.Count < 1 {
		errs = append(errs, errors.New("alternatives.count must be at least 1"))
	}
	if c.Alternatives.Step <= 0 {
		errs = append(errs, errors.New("alternatives.step must be positive"))
	}
	start, end, err := c.Alternatives.Workday()
	if err != nil {
		errs = append(errs, err)
	} else if !start.Before(end) {
		errs = append(errs, fmt.Errorf("alternatives.workday_start %s must be before workday_end %s", start, end))
	}
	if c.Negotiation.MaxAttempts < 1 {
		errs = append(errs, errors.New("negotiation.max_attempts must be at least 1"))
	}
	if c.Negotiation.MatchTolerance < 0 {
		errs = append(errs, errors.New("negotiation.match_tolerance must not be negative"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}

	switch c.Session.Backend {
	case session.BackendMemory:
	case session.BackendSQLite:
		if c.Session.SQLitePath == "" {
			errs = append(errs, errors.New("session.sqlite_path is required for the sqlite backend"))
		}
	case session.BackendValkey:
		if c.Session.Valkey.Addr == "" {
			errs = append(errs, errors.New("session.valkey.addr is required for the valkey backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported session.backend %q (supported: memory, sqlite, valkey)", c.Session.Backend))
	}

	if c.Search.Limit < 1 || c.Search.Limit > search.MaxLimit {
		errs = append(errs, fmt.Errorf("search.limit must be between 1 and %d", search.MaxLimit))
	}

	switch c.NLU.Provider {
	case ProviderRules:
	case ProviderOpenAI:
		if c.NLU.APIKeyEnv == "" {
			errs = append(errs, errors.New("nlu.api_key_env is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported nlu.provider %q (supported: rules, openai)", c.NLU.Provider))
	}
	if c.NLU.RatePerMinute < 0 {
		errs = append(errs, errors.New("nlu.rate_per_minute must not be negative"))
	}

	switch c.Calendar.Backend {
	case CalendarGoogle, CalendarMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported calendar.backend %q (supported: google, memory)", c.Calendar.Backend))
	}

	if c.Matrix.Enabled() && (c.Matrix.UserID == "" || c.Matrix.AccessToken == "") {
		errs = append(errs, errors.New("matrix.user_id and matrix.access_token are required when matrix.homeserver is set"))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Location returns the resolved timezone. It is only valid after Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Workday parses the business-hours bounds.
func (c AlternativesConfig) Workday() (start, end timewindow.Clock, err error) {
	start, err = timewindow.ParseClock(c.WorkdayStart)
	if err != nil {
		return start, end, fmt.Errorf("alternatives.workday_start: %w", err)
	}
	end, err = timewindow.ParseClock(c.WorkdayEnd)
	if err != nil {
		return start, end, fmt.Errorf("alternatives.workday_end: %w", err)
	}
	return start, end, nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "agentcal")
	}
	return ".agentcal"
}
