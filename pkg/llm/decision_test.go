package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDecisionFromFencedReply(t *testing.T) {
	reply := "Here you go:\n```json\n{\n  \"decision\": \"BUY\",\n  \"confidence\": \"HIGH\",\n  \"confidencePercentage\": 82,\n  \"duration\": \"5-15 minutes\",\n  \"reason\": \"Breakout with RSI above 50\"\n}\n```"

	d, err := ParseDecision(reply)
	require.NoError(t, err)
	require.Equal(t, "BUY", d.Decision)
	require.Equal(t, "HIGH", d.Confidence)
	require.Equal(t, "5-15 minutes", d.Duration)
	require.Equal(t, "Breakout with RSI above 50", d.Reason)
	require.NotNil(t, d.ConfidencePercentage)
	require.Equal(t, 82, *d.ConfidencePercentage)
}

func TestParseDecisionConfidencePercentage(t *testing.T) {
	cases := []struct {
		raw  string
		want *int
	}{
		{`"85%"`, intPtr(85)},
		{`77.9`, intPtr(77)},
		{`0`, intPtr(0)},
		{`100`, intPtr(100)},
		{`101`, nil},
		{`-3`, nil},
		{`"high"`, nil},
		{`null`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			d, err := ParseDecision(`{"decision":"SELL","confidence":"LOW","reason":"r","confidencePercentage":` + tc.raw + `}`)
			require.NoError(t, err)
			require.Equal(t, tc.want, d.ConfidencePercentage)
		})
	}
}

func TestParseDecisionRejectsIncompleteReplies(t *testing.T) {
	_, err := ParseDecision("no json here")
	require.ErrorIs(t, err, ErrMalformedDecision)

	_, err = ParseDecision(`{"decision":"BUY","confidence":"HIGH"}`)
	require.ErrorIs(t, err, ErrMalformedDecision)

	_, err = ParseDecision(`{"decision": "BUY", "confidence": }`)
	require.ErrorIs(t, err, ErrMalformedDecision)
}

func intPtr(v int) *int { return &v }
