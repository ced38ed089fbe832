package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/agentcal/internal/logging"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second
)

// OpenAIConfig configures the OpenAI-compatible oracle.
type OpenAIConfig struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint for local models or other
	// OpenAI-compatible services. Defaults to https://api.openai.com/v1.
	BaseURL string

	// Model is the chat model to use. Defaults to gpt-4o-mini.
	Model string

	// Timeout is the HTTP request timeout. Defaults to 30s.
	Timeout time.Duration

	Logger *slog.Logger
}

// OpenAIOracle classifies messages with a chat completions endpoint in
// JSON mode. It is safe for concurrent use.
type OpenAIOracle struct {
	cfg    OpenAIConfig
	client *http.Client
	logger *slog.Logger
}

// NewOpenAIOracle returns an oracle backed by an OpenAI-compatible API.
func NewOpenAIOracle(cfg OpenAIConfig) *OpenAIOracle {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIOracle{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "nlu"),
	}
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model          string       `json:"model"`
	Messages       []oaiMessage `json:"messages"`
	MaxTokens      int          `json:"max_tokens,omitempty"`
	Temperature    float64      `json:"temperature"`
	ResponseFormat *oaiFormat   `json:"response_format,omitempty"`
}

type oaiFormat struct {
	Type string `json:"type"`
}

type oaiResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

const systemPrompt = `You read messages sent to a calendar assistant, in English or Portuguese,
and classify them. Respond ONLY with a JSON object, no markdown.

Kinds:
- "schedule": the user wants to create an event. Set "subject" to the event title
  and "time_phrase" to the date/time words exactly as the user wrote them.
  Set "duration_minutes" only if the user states a length.
- "check_availability": the user asks whether a time is free. Set "time_phrase".
- "search_by_keyword": the user wants to find existing events. Set "search_term"
  to the keyword only, without words like "meeting" or "event".
- "unrecognized": anything else.

Never convert, compute, or reformat dates or times; copy the user's words.

Schema:
` + intentSchemaJSON

// Parse implements Oracle. Model output that fails schema validation is
// treated as an unrecognized message, not as an error.
func (o *OpenAIOracle) Parse(ctx context.Context, message string) (Intent, error) {
	body, err := json.Marshal(oaiRequest{
		Model: o.cfg.Model,
		Messages: []oaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: message},
		},
		MaxTokens:      256,
		ResponseFormat: &oaiFormat{Type: "json_object"},
	})
	if err != nil {
		return Intent{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Intent{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return Intent{}, fmt.Errorf("nlu request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Intent{}, fmt.Errorf("failed to read nlu response: %w", err)
	}

	var parsed oaiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Intent{}, fmt.Errorf("failed to decode nlu response (HTTP %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return Intent{}, fmt.Errorf("nlu API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return Intent{}, fmt.Errorf("nlu API returned HTTP %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return Intent{}, fmt.Errorf("nlu API returned no choices (HTTP %d)", resp.StatusCode)
	}

	in, err := DecodeJSON([]byte(parsed.Choices[0].Message.Content))
	if err != nil {
		o.logger.Warn("discarding invalid model output", logging.Err(err))
		return Unrecognized(), nil
	}
	return in, nil
}
