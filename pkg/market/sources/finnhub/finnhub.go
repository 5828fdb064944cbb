// Package finnhub adapts the Finnhub REST API to the market provider interfaces.
package finnhub

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
	Name           = "finnhub"
	DefaultBaseURL = "https://finnhub.io/api/v1"

	candleLookback = 7 * 24 * time.Hour
	newsCategory   = "forex"
)

var resolutions = map[market.Timeframe]string{
	market.Timeframe1m:  "1",
	market.Timeframe5m:  "5",
	market.Timeframe15m: "15",
	market.Timeframe30m: "30",
	market.Timeframe1h:  "60",
	market.Timeframe4h:  "240",
	market.Timeframe1d:  "D",
}

// Resolution maps a timeframe to Finnhub's vocabulary, defaulting to "60".
func Resolution(tf market.Timeframe) string {
	if r, ok := resolutions[tf]; ok {
		return r
	}
	return "60"
}

// Symbol converts a six letter pair into the OANDA:EUR_USD form.
func Symbol(symbol string) string {
	if base, quote, ok := market.SplitPair(symbol); ok {
		return "OANDA:" + base + "_" + quote
	}
	return market.NormalizeSymbol(symbol)
}

// Client serves quotes, candles and news.
type Client struct {
	name string
	http *rest.Client
	now  func() time.Time
}

var (
	_ market.QuoteProvider  = (*Client)(nil)
	_ market.CandleProvider = (*Client)(nil)
	_ market.NewsProvider   = (*Client)(nil)
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

// WithClock overrides the time source for candle windows.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a Finnhub client.
func New(opts ...Option) *Client {
	c := &Client{
		name: Name,
		http: rest.New(DefaultBaseURL),
		now:  time.Now,
	}
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
	return c.get(ctx, "/quote", url.Values{
		"symbol": {Symbol(req.Symbol)},
		"token":  {req.APIKey},
	})
}

type quotePayload struct {
	Current       *float64 `json:"c"`
	Change        *float64 `json:"d"`
	ChangePercent *float64 `json:"dp"`
	High          *float64 `json:"h"`
	Low           *float64 `json:"l"`
	Open          *float64 `json:"o"`
	PreviousClose *float64 `json:"pc"`
	Timestamp     *int64   `json:"t"`
}

// NormalizeQuote implements market.QuoteProvider.
func (c *Client) NormalizeQuote(raw []byte) (*market.Quote, error) {
	var p quotePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("finnhub: decode quote: %w: %v", market.ErrUnexpectedShape, err)
	}
	if p.Current == nil {
		return nil, fmt.Errorf("finnhub: quote: %w", market.ErrUnexpectedShape)
	}
	if *p.Current <= 0 {
		return nil, fmt.Errorf("finnhub: quote price %v: %w", *p.Current, market.ErrInsufficientData)
	}
	q := &market.Quote{
		Price:         *p.Current,
		Change:        p.Change,
		ChangePercent: p.ChangePercent,
		High:          p.High,
		Low:           p.Low,
		Open:          p.Open,
		PreviousClose: p.PreviousClose,
	}
	if p.Timestamp != nil {
		q.Timestamp = *p.Timestamp * 1000
	}
	return q, nil
}

// FetchCandles implements market.CandleProvider.
func (c *Client) FetchCandles(ctx context.Context, req market.Request) ([]byte, error) {
	now := c.now()
	return c.get(ctx, "/forex/candle", url.Values{
		"symbol":     {Symbol(req.Symbol)},
		"resolution": {Resolution(req.Timeframe)},
		"from":       {strconv.FormatInt(now.Add(-candleLookback).Unix(), 10)},
		"to":         {strconv.FormatInt(now.Unix(), 10)},
		"token":      {req.APIKey},
	})
}

type candlePayload struct {
	Status string    `json:"s"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []float64 `json:"v"`
	Time   []int64   `json:"t"`
}

// NormalizeCandles implements market.CandleProvider. Bars whose parallel
// arrays are short are dropped.
func (c *Client) NormalizeCandles(raw []byte) ([]market.Candle, error) {
	var p candlePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("finnhub: decode candles: %w: %v", market.ErrUnexpectedShape, err)
	}
	if p.Status == "no_data" {
		return nil, fmt.Errorf("finnhub: candles: %w", market.ErrInsufficientData)
	}
	if len(p.Close) == 0 || len(p.Time) == 0 {
		return nil, fmt.Errorf("finnhub: candles: %w", market.ErrUnexpectedShape)
	}

	candles := make([]market.Candle, 0, len(p.Close))
	for i := range p.Close {
		if i >= len(p.Time) || i >= len(p.Open) || i >= len(p.High) || i >= len(p.Low) {
			continue
		}
		candle := market.Candle{
			Timestamp: p.Time[i] * 1000,
			Open:      p.Open[i],
			High:      p.High[i],
			Low:       p.Low[i],
			Close:     p.Close[i],
			Volume:    market.DefaultVolume,
		}
		if i < len(p.Volume) && p.Volume[i] > 0 {
			candle.Volume = p.Volume[i]
		}
		candles = append(candles, candle)
	}
	return market.CleanCandles(candles), nil
}

// FetchNews implements market.NewsProvider.
func (c *Client) FetchNews(ctx context.Context, req market.Request) ([]byte, error) {
	return c.get(ctx, "/news", url.Values{
		"category": {newsCategory},
		"token":    {req.APIKey},
	})
}

type newsPayload struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Datetime int64  `json:"datetime"`
	Source   string `json:"source"`
	URL      string `json:"url"`
}

// NormalizeNews implements market.NewsProvider.
func (c *Client) NormalizeNews(raw []byte) ([]market.NewsItem, error) {
	var payload []newsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("finnhub: decode news: %w: %v", market.ErrUnexpectedShape, err)
	}
	items := make([]market.NewsItem, 0, len(payload))
	for _, n := range payload {
		if n.Headline == "" && n.Summary == "" {
			continue
		}
		items = append(items, market.NewsItem(n))
	}
	return items, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	body, err := c.http.Get(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("finnhub: %w", err)
	}
	return body, nil
}
