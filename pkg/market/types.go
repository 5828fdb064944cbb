package market

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultVolume is assigned to bars whose provider omits volume (FX feeds).
const DefaultVolume = 1000.0

var (
	// ErrUnexpectedShape reports a provider payload that does not match the expected layout.
	ErrUnexpectedShape = errors.New("market: unexpected response shape")
	// ErrNoCredential reports a provider skipped for lack of an API key.
	ErrNoCredential = errors.New("market: missing provider credential")
	// ErrInsufficientData reports a payload that decoded but failed validation.
	ErrInsufficientData = errors.New("market: insufficient data")
	// ErrUnknownTimeframe reports a timeframe outside the supported enum.
	ErrUnknownTimeframe = errors.New("market: unknown timeframe")
)

// Candle is one OHLCV bar. Timestamp is epoch milliseconds UTC.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Quote is a live price snapshot. Optional fields are nil when the provider
// did not supply them.
type Quote struct {
	Symbol        string   `json:"symbol"`
	Source        string   `json:"source,omitempty"`
	Price         float64  `json:"price"`
	Change        *float64 `json:"change"`
	ChangePercent *float64 `json:"changePercent"`
	High          *float64 `json:"high"`
	Low           *float64 `json:"low"`
	Open          *float64 `json:"open"`
	PreviousClose *float64 `json:"previousClose"`
	Bid           *float64 `json:"bid"`
	Ask           *float64 `json:"ask"`
	Spread        *float64 `json:"spread"`
	Volume        *float64 `json:"volume"`
	Timestamp     int64    `json:"timestamp"`
}

// NewsItem is a single headline from a provider feed. Datetime is epoch seconds.
type NewsItem struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Datetime int64  `json:"datetime"`
	Source   string `json:"source,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Kind identifies one of the three data kinds the resolver fetches.
type Kind string

const (
	KindQuote   Kind = "quote"
	KindCandles Kind = "candles"
	KindNews    Kind = "news"
)

// Timeframe is the candle interval requested by the caller.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// DefaultTimeframe is used when the caller does not choose one.
const DefaultTimeframe = Timeframe1h

// Timeframes lists the supported intervals in ascending order.
var Timeframes = []Timeframe{
	Timeframe1m, Timeframe5m, Timeframe15m, Timeframe30m, Timeframe1h, Timeframe4h, Timeframe1d,
}

// ParseTimeframe validates a user supplied timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if tf == "" {
		return DefaultTimeframe, nil
	}
	for _, known := range Timeframes {
		if tf == known {
			return tf, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTimeframe, s)
}

// Credentials maps provider names to API keys.
type Credentials map[string]string

// Key returns the trimmed key for provider, or "".
func (c Credentials) Key(provider string) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c[strings.ToLower(provider)])
}

// Merge returns a copy of c overlaid with the non-empty keys of other.
func (c Credentials) Merge(other Credentials) Credentials {
	out := make(Credentials, len(c)+len(other))
	for name, key := range c {
		out[strings.ToLower(name)] = key
	}
	for name, key := range other {
		if strings.TrimSpace(key) == "" {
			continue
		}
		out[strings.ToLower(name)] = key
	}
	return out
}

// Empty reports whether no provider has a usable key.
func (c Credentials) Empty() bool {
	for _, key := range c {
		if strings.TrimSpace(key) != "" {
			return false
		}
	}
	return true
}
