package polygon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlens/pkg/market"
	"marketlens/pkg/market/sources/rest"
)

func TestCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/aggs/ticker/C:EURUSD/range/15/minute/2024-02-23/2024-03-01", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("apiKey"))
		writeJSON(w, map[string]any{
			"status": "OK",
			"results": []map[string]any{
				{"o": 1.0830, "h": 1.0845, "l": 1.0820, "c": 1.0840, "v": 42, "t": 1709290800000},
				{"o": 1.0840, "h": 1.0860, "l": 1.0830, "c": 1.0850, "t": 1709291700000},
				{"h": 1.0860, "l": 1.0830, "c": 1.0850, "t": 1709292600000},
			},
		})
	}))
	defer srv.Close()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New(WithHTTP(rest.WithBaseURL(srv.URL)), WithClock(func() time.Time { return now }))
	raw, err := c.FetchCandles(context.Background(), market.Request{Symbol: "EURUSD", Timeframe: market.Timeframe15m, APIKey: "secret"})
	require.NoError(t, err)

	candles, err := c.NormalizeCandles(raw)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 42.0, candles[0].Volume)
	assert.Equal(t, market.DefaultVolume, candles[1].Volume)
}

func TestNormalizeCandlesErrors(t *testing.T) {
	c := New()
	_, err := c.NormalizeCandles([]byte(`{"status":"ERROR","error":"Unknown API Key"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown API Key")

	_, err = c.NormalizeCandles([]byte(`{"status":"OK","resultsCount":0}`))
	assert.True(t, errors.Is(err, market.ErrUnexpectedShape))

	candles, err := c.NormalizeCandles([]byte(`{"status":"OK","results":[]}`))
	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestMappings(t *testing.T) {
	assert.Equal(t, "1/hour", SpanFor("").String())
	assert.Equal(t, "4/hour", SpanFor(market.Timeframe4h).String())
	assert.Equal(t, "1/day", SpanFor(market.Timeframe1d).String())
	assert.Equal(t, "C:USDJPY", Ticker("usd/jpy"))
	assert.Equal(t, "AAPL", Ticker("aapl"))
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
