package intent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindUnrecognized, KindSchedule, KindCheckAvailability, KindSearchByKeyword} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseKind("dance")
	assert.Error(t, err)
	assert.Equal(t, "unrecognized", Kind(42).String())
}

func TestIntentJSON(t *testing.T) {
	data, err := json.Marshal(Intent{Kind: KindSchedule, Subject: "team coffee", TimePhrase: "Tuesday 10:30"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"schedule","subject":"team coffee","time_phrase":"Tuesday 10:30"}`, string(data))

	var back Intent
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, KindSchedule, back.Kind)
}

func TestIntentDuration(t *testing.T) {
	assert.Equal(t, 30*time.Minute, Intent{DurationMinutes: 30}.Duration(time.Hour))
	assert.Equal(t, 45*time.Minute, Intent{}.Duration(45*time.Minute))
	assert.Equal(t, time.Hour, Intent{}.Duration(0))
}

func TestIsFreshSchedule(t *testing.T) {
	assert.True(t, Intent{Kind: KindSchedule, Subject: "lunch", TimePhrase: "tomorrow noon"}.IsFreshSchedule())
	assert.False(t, Intent{Kind: KindSchedule, Subject: "lunch"}.IsFreshSchedule())
	assert.False(t, Intent{Kind: KindSchedule, TimePhrase: "tomorrow noon"}.IsFreshSchedule())
	assert.False(t, Intent{Kind: KindCheckAvailability, Subject: "x", TimePhrase: "y"}.IsFreshSchedule())
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Intent
		wantErr bool
	}{
		{
			name: "schedule",
			raw:  `{"kind":"schedule","subject":"team coffee","time_phrase":"Tuesday 10:30","duration_minutes":30}`,
			want: Intent{Kind: KindSchedule, Subject: "team coffee", TimePhrase: "Tuesday 10:30", DurationMinutes: 30},
		},
		{
			name: "nulls and irrelevant fields",
			raw:  `{"kind":"check_availability","subject":null,"time_phrase":"tomorrow 3pm","search_term":"ignored"}`,
			want: Intent{Kind: KindCheckAvailability, TimePhrase: "tomorrow 3pm"},
		},
		{
			name: "search",
			raw:  "```json\n{\"kind\":\"search_by_keyword\",\"search_term\":\" dentist \"}\n```",
			want: Intent{Kind: KindSearchByKeyword, SearchTerm: "dentist"},
		},
		{
			name: "search without term",
			raw:  `{"kind":"search_by_keyword"}`,
			want: Unrecognized(),
		},
		{name: "unknown kind", raw: `{"kind":"dance"}`, wantErr: true},
		{name: "missing kind", raw: `{"subject":"x"}`, wantErr: true},
		{name: "fractional duration", raw: `{"kind":"schedule","duration_minutes":1.5}`, wantErr: true},
		{name: "duration too long", raw: `{"kind":"schedule","duration_minutes":5000}`, wantErr: true},
		{name: "not json", raw: `sure! here you go`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeJSON([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOracleFunc(t *testing.T) {
	boom := errors.New("boom")
	o := OracleFunc(func(context.Context, string) (Intent, error) { return Intent{}, boom })
	_, err := o.Parse(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}
