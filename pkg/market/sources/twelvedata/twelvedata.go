// Package twelvedata adapts the Twelve Data REST API.
package twelvedata

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"marketlens/pkg/market"
	"marketlens/pkg/market/sources/rest"
)

const (
	// Name is the provider and credential key.
	Name           = "twelvedata"
	DefaultBaseURL = "https://api.twelvedata.com"

	outputSize = "100"
)

var intervals = map[market.Timeframe]string{
	market.Timeframe1m:  "1min",
	market.Timeframe5m:  "5min",
	market.Timeframe15m: "15min",
	market.Timeframe30m: "30min",
	market.Timeframe1h:  "1h",
	market.Timeframe4h:  "4h",
	market.Timeframe1d:  "1day",
}

// Interval maps a timeframe to Twelve Data's vocabulary, defaulting to 1h.
func Interval(tf market.Timeframe) string {
	if v, ok := intervals[tf]; ok {
		return v
	}
	return "1h"
}

// Symbol converts a six letter pair into EUR/USD form.
func Symbol(symbol string) string {
	if base, quote, ok := market.SplitPair(symbol); ok {
		return base + "/" + quote
	}
	return market.NormalizeSymbol(symbol)
}

// Client serves quotes and candles.
type Client struct {
	name string
	http *rest.Client
	now  func() time.Time
}

var (
	_ market.QuoteProvider  = (*Client)(nil)
	_ market.CandleProvider = (*Client)(nil)
)

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

// WithClock overrides the time used to stamp quotes, which carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a Twelve Data client.
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

// FetchQuote implements market.QuoteProvider.
func (c *Client) FetchQuote(ctx context.Context, req market.Request) ([]byte, error) {
	return c.get(ctx, "/price", url.Values{
		"symbol": {Symbol(req.Symbol)},
		"apikey": {req.APIKey},
	})
}

// NormalizeQuote implements market.QuoteProvider.
func (c *Client) NormalizeQuote(raw []byte) (*market.Quote, error) {
	if err := upstreamError(raw); err != nil {
		return nil, err
	}
	field := gjson.GetBytes(raw, "price")
	if !field.Exists() {
		return nil, fmt.Errorf("twelvedata: quote: %w", market.ErrUnexpectedShape)
	}
	price, err := market.ParseDecimal(field.String())
	if err != nil {
		return nil, fmt.Errorf("twelvedata: quote price: %w", err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("twelvedata: quote price %v: %w", price, market.ErrInsufficientData)
	}
	return &market.Quote{Price: price, Timestamp: c.now().UnixMilli()}, nil
}

// FetchCandles implements market.CandleProvider.
func (c *Client) FetchCandles(ctx context.Context, req market.Request) ([]byte, error) {
	return c.get(ctx, "/time_series", url.Values{
		"symbol":     {Symbol(req.Symbol)},
		"interval":   {Interval(req.Timeframe)},
		"outputsize": {outputSize},
		"timezone":   {"UTC"},
		"apikey":     {req.APIKey},
	})
}

// NormalizeCandles implements market.CandleProvider. Values arrive newest first.
func (c *Client) NormalizeCandles(raw []byte) ([]market.Candle, error) {
	if err := upstreamError(raw); err != nil {
		return nil, err
	}
	values := gjson.GetBytes(raw, "values")
	if !values.IsArray() {
		return nil, fmt.Errorf("twelvedata: candles: %w", market.ErrUnexpectedShape)
	}
	candles := make([]market.Candle, 0, len(values.Array()))
	for _, v := range values.Array() {
		ts, err := parseDatetime(v.Get("datetime").String())
		if err != nil {
			continue
		}
		open, err1 := market.ParseDecimal(v.Get("open").String())
		high, err2 := market.ParseDecimal(v.Get("high").String())
		low, err3 := market.ParseDecimal(v.Get("low").String())
		closePrice, err4 := market.ParseDecimal(v.Get("close").String())
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		candle := market.Candle{
			Timestamp: ts.UnixMilli(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    market.DefaultVolume,
		}
		if vol, err := market.ParseDecimal(v.Get("volume").String()); err == nil && vol > 0 {
			candle.Volume = vol
		}
		candles = append(candles, candle)
	}
	return market.CleanCandles(candles), nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	body, err := c.http.Get(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("twelvedata: %w", err)
	}
	return body, nil
}

// upstreamError reports {"status":"error"} payloads sent with HTTP 200.
func upstreamError(raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("twelvedata: invalid json: %w", market.ErrUnexpectedShape)
	}
	if gjson.GetBytes(raw, "status").String() == "error" {
		return fmt.Errorf("twelvedata: code %d: %s",
			gjson.GetBytes(raw, "code").Int(), gjson.GetBytes(raw, "message").String())
	}
	return nil
}

func parseDatetime(s string) (time.Time, error) {
	if ts, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC); err == nil {
		return ts, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}
