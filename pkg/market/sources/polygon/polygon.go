// Package polygon adapts the Polygon.io aggregates endpoint (candles only).
package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"marketlens/pkg/market"
	"marketlens/pkg/market/sources/rest"
)

const (
	// Name is the provider and credential key.
	Name           = "polygon"
	DefaultBaseURL = "https://api.polygon.io"

	lookback  = 7 * 24 * time.Hour
	dateOnly  = "2006-01-02"
	maxLimits = "5000"
)

// Span is a Polygon aggregate window, e.g. {1, "hour"}.
type Span struct {
	Multiplier int
	Unit       string
}

var spans = map[market.Timeframe]Span{
	market.Timeframe1m:  {1, "minute"},
	market.Timeframe5m:  {5, "minute"},
	market.Timeframe15m: {15, "minute"},
	market.Timeframe30m: {30, "minute"},
	market.Timeframe1h:  {1, "hour"},
	market.Timeframe4h:  {4, "hour"},
	market.Timeframe1d:  {1, "day"},
}

// SpanFor maps a timeframe to an aggregate window, defaulting to one hour.
func SpanFor(tf market.Timeframe) Span {
	if s, ok := spans[tf]; ok {
		return s
	}
	return Span{1, "hour"}
}

// Ticker converts a six letter pair into the C:EURUSD currency ticker.
func Ticker(symbol string) string {
	if base, quote, ok := market.SplitPair(symbol); ok {
		return "C:" + base + quote
	}
	return market.NormalizeSymbol(symbol)
}

// Client serves candles.
type Client struct {
	name string
	http *rest.Client
	now  func() time.Time
}

var _ market.CandleProvider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithName overrides the provider name used for credentials and logs.
func WithName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.name = name
		}
	}
}

// WithHTTP passes options to the underlying REST client.
func WithHTTP(opts ...rest.Option) Option {
	return func(c *Client) {
		c.http = rest.New(DefaultBaseURL, opts...)
	}
}

// WithClock overrides the time source for the aggregate window.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a Polygon client.
func New(opts ...Option) *Client {
	c := &Client{name: Name, http: rest.New(DefaultBaseURL), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build is the catalog entry for this provider.
func Build(name string, cfg *market.ProviderConfig) (market.Provider, error) {
	return New(WithName(name), WithHTTP(rest.FromConfig(cfg)...)), nil
}

// Name implements market.Provider.
func (c *Client) Name() string { return c.name }

// FetchCandles implements market.CandleProvider.
func (c *Client) FetchCandles(ctx context.Context, req market.Request) ([]byte, error) {
	span := SpanFor(req.Timeframe)
	now := c.now().UTC()
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/%d/%s/%s/%s",
		url.PathEscape(Ticker(req.Symbol)), span.Multiplier, span.Unit,
		now.Add(-lookback).Format(dateOnly), now.Format(dateOnly))

	body, err := c.http.Get(ctx, path, url.Values{
		"adjusted": {"true"},
		"sort":     {"asc"},
		"limit":    {maxLimits},
		"apiKey":   {req.APIKey},
	})
	if err != nil {
		return nil, fmt.Errorf("polygon: %w", err)
	}
	return body, nil
}

type aggregatesPayload struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Results *[]struct {
		Open   *float64 `json:"o"`
		High   *float64 `json:"h"`
		Low    *float64 `json:"l"`
		Close  *float64 `json:"c"`
		Volume float64  `json:"v"`
		Time   int64    `json:"t"`
	} `json:"results"`
}

// NormalizeCandles implements market.CandleProvider.
func (c *Client) NormalizeCandles(raw []byte) ([]market.Candle, error) {
	var p aggregatesPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("polygon: decode aggregates: %w: %v", market.ErrUnexpectedShape, err)
	}
	if p.Status == "ERROR" || p.Status == "NOT_AUTHORIZED" {
		return nil, fmt.Errorf("polygon: status %s: %s", p.Status, p.Error)
	}
	if p.Results == nil {
		return nil, fmt.Errorf("polygon: aggregates: %w", market.ErrUnexpectedShape)
	}

	candles := make([]market.Candle, 0, len(*p.Results))
	for _, r := range *p.Results {
		if r.Open == nil || r.High == nil || r.Low == nil || r.Close == nil {
			continue
		}
		candles = append(candles, market.Candle{
			Timestamp: r.Time,
			Open:      *r.Open,
			High:      *r.High,
			Low:       *r.Low,
			Close:     *r.Close,
			Volume:    r.Volume,
		})
	}
	return market.CleanCandles(candles), nil
}

// String renders the span as Polygon writes it in paths.
func (s Span) String() string {
	return strconv.Itoa(s.Multiplier) + "/" + s.Unit
}
