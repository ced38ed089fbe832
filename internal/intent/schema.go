package intent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// intentSchemaJSON describes the object a language model must return.
const intentSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["kind"],
  "properties": {
    "kind": {"enum": ["schedule", "check_availability", "search_by_keyword", "unrecognized"]},
    "subject": {"type": ["string", "null"], "maxLength": 200},
    "time_phrase": {"type": ["string", "null"], "maxLength": 200},
    "duration_minutes": {"type": ["integer", "null"], "minimum": 1, "maximum": 1440},
    "search_term": {"type": ["string", "null"], "maxLength": 200}
  }
}`

var intentSchema = jsonschema.MustCompileString("agentcal://intent.schema.json", intentSchemaJSON)

type wireIntent struct {
	Kind            string  `json:"kind"`
	Subject         *string `json:"subject"`
	TimePhrase      *string `json:"time_phrase"`
	DurationMinutes *int    `json:"duration_minutes"`
	SearchTerm      *string `json:"search_term"`
}

// DecodeJSON validates raw against the intent schema and converts it to an
// Intent. Fields irrelevant to the kind are dropped.
func DecodeJSON(raw []byte) (Intent, error) {
	raw = bytes.TrimSpace(stripCodeFence(raw))

	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Intent{}, fmt.Errorf("invalid intent JSON: %w", err)
	}
	if err := intentSchema.Validate(doc); err != nil {
		return Intent{}, fmt.Errorf("intent JSON does not match schema: %w", err)
	}

	var w wireIntent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Intent{}, fmt.Errorf("invalid intent JSON: %w", err)
	}

	kind, err := ParseKind(w.Kind)
	if err != nil {
		return Intent{}, err
	}

	out := Intent{Kind: kind}
	switch kind {
	case KindSchedule:
		out.Subject = deref(w.Subject)
		out.TimePhrase = deref(w.TimePhrase)
		if w.DurationMinutes != nil {
			out.DurationMinutes = *w.DurationMinutes
		}
	case KindCheckAvailability:
		out.TimePhrase = deref(w.TimePhrase)
		if w.DurationMinutes != nil {
			out.DurationMinutes = *w.DurationMinutes
		}
	case KindSearchByKeyword:
		out.SearchTerm = deref(w.SearchTerm)
		if out.SearchTerm == "" {
			return Unrecognized(), nil
		}
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// stripCodeFence removes a ```json fence some models wrap around output
// despite JSON mode.
func stripCodeFence(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return raw
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(s)
}
