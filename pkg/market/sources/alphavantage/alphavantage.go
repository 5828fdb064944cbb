// Package alphavantage adapts the Alpha Vantage query API. Payloads use
// descriptive string keys and string numerics, so they are read with gjson.
package alphavantage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"marketlens/pkg/market"
	"marketlens/pkg/market/sources/rest"
)

const (
	// Name is the provider and credential key.
	Name           = "alphavantage"
	DefaultBaseURL = "https://www.alphavantage.co"

	queryPath      = "/query"
	timestampDay   = "2006-01-02"
	timestampBar   = "2006-01-02 15:04:05"
	timestampNews  = "20060102T150405"
	newsFeedLimit  = "50"
	seriesPrefix   = "Time Series"
	defaultMinutes = "60min"
)

var intervals = map[market.Timeframe]string{
	market.Timeframe1m:  "1min",
	market.Timeframe5m:  "5min",
	market.Timeframe15m: "15min",
	market.Timeframe30m: "30min",
	market.Timeframe1h:  "60min",
}

// Interval maps a timeframe to an intraday interval, defaulting to 60min.
func Interval(tf market.Timeframe) string {
	if v, ok := intervals[tf]; ok {
		return v
	}
	return defaultMinutes
}

// Client serves quotes, candles and news.
type Client struct {
	name string
	http *rest.Client
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

// New constructs an Alpha Vantage client.
func New(opts ...Option) *Client {
	c := &Client{name: Name, http: rest.New(DefaultBaseURL)}
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
	return c.query(ctx, url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {market.NormalizeSymbol(req.Symbol)},
		"apikey":   {req.APIKey},
	})
}

// NormalizeQuote implements market.QuoteProvider.
func (c *Client) NormalizeQuote(raw []byte) (*market.Quote, error) {
	if err := upstreamError(raw); err != nil {
		return nil, err
	}
	quote := gjson.GetBytes(raw, "Global Quote")
	if !quote.IsObject() {
		return nil, fmt.Errorf("alphavantage: quote: %w", market.ErrUnexpectedShape)
	}
	price, err := market.ParseDecimal(quote.Get(`05\. price`).String())
	if err != nil {
		return nil, fmt.Errorf("alphavantage: quote price: %w", err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("alphavantage: quote price %v: %w", price, market.ErrInsufficientData)
	}
	return &market.Quote{
		Price:         price,
		Open:          optionalDecimal(quote, `02\. open`),
		High:          optionalDecimal(quote, `03\. high`),
		Low:           optionalDecimal(quote, `04\. low`),
		Volume:        optionalDecimal(quote, `06\. volume`),
		PreviousClose: optionalDecimal(quote, `08\. previous close`),
		Change:        optionalDecimal(quote, `09\. change`),
		ChangePercent: optionalDecimal(quote, `10\. change percent`),
	}, nil
}

// FetchCandles implements market.CandleProvider. Currency pairs use
// FX_INTRADAY; other tickers use the equity intraday series.
func (c *Client) FetchCandles(ctx context.Context, req market.Request) ([]byte, error) {
	params := url.Values{
		"interval":   {Interval(req.Timeframe)},
		"outputsize": {"compact"},
		"apikey":     {req.APIKey},
	}
	if base, quote, ok := market.SplitPair(req.Symbol); ok {
		params.Set("function", "FX_INTRADAY")
		params.Set("from_symbol", base)
		params.Set("to_symbol", quote)
	} else {
		params.Set("function", "TIME_SERIES_INTRADAY")
		params.Set("symbol", market.NormalizeSymbol(req.Symbol))
	}
	return c.query(ctx, params)
}

// NormalizeCandles implements market.CandleProvider. The series object is
// keyed by timestamp strings; its name varies with the interval.
func (c *Client) NormalizeCandles(raw []byte) ([]market.Candle, error) {
	if err := upstreamError(raw); err != nil {
		return nil, err
	}
	var series gjson.Result
	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		if strings.HasPrefix(key.String(), seriesPrefix) && value.IsObject() {
			series = value
			return false
		}
		return true
	})
	if !series.Exists() {
		return nil, fmt.Errorf("alphavantage: candles: %w", market.ErrUnexpectedShape)
	}

	var candles []market.Candle
	series.ForEach(func(key, bar gjson.Result) bool {
		ts, err := parseBarTime(key.String())
		if err != nil {
			return true
		}
		candle, ok := parseBar(bar)
		if !ok {
			return true
		}
		candle.Timestamp = ts.UnixMilli()
		candles = append(candles, candle)
		return true
	})
	return market.CleanCandles(candles), nil
}

// FetchNews implements market.NewsProvider.
func (c *Client) FetchNews(ctx context.Context, req market.Request) ([]byte, error) {
	params := url.Values{
		"function": {"NEWS_SENTIMENT"},
		"limit":    {newsFeedLimit},
		"apikey":   {req.APIKey},
	}
	if base, _, ok := market.SplitPair(req.Symbol); ok {
		params.Set("tickers", "FOREX:"+base)
	} else if s := market.NormalizeSymbol(req.Symbol); s != "" {
		params.Set("tickers", s)
	}
	return c.query(ctx, params)
}

// NormalizeNews implements market.NewsProvider.
func (c *Client) NormalizeNews(raw []byte) ([]market.NewsItem, error) {
	if err := upstreamError(raw); err != nil {
		return nil, err
	}
	feed := gjson.GetBytes(raw, "feed")
	if !feed.IsArray() {
		return nil, fmt.Errorf("alphavantage: news: %w", market.ErrUnexpectedShape)
	}
	items := make([]market.NewsItem, 0, len(feed.Array()))
	for _, entry := range feed.Array() {
		item := market.NewsItem{
			Headline: entry.Get("title").String(),
			Summary:  entry.Get("summary").String(),
			Source:   entry.Get("source").String(),
			URL:      entry.Get("url").String(),
		}
		if item.Headline == "" && item.Summary == "" {
			continue
		}
		if ts, err := time.Parse(timestampNews, entry.Get("time_published").String()); err == nil {
			item.Datetime = ts.Unix()
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) query(ctx context.Context, params url.Values) ([]byte, error) {
	body, err := c.http.Get(ctx, queryPath, params)
	if err != nil {
		return nil, fmt.Errorf("alphavantage: %w", err)
	}
	return body, nil
}

// upstreamError surfaces the rate-limit and error notes Alpha Vantage
// returns with a 200 status.
func upstreamError(raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("alphavantage: invalid json: %w", market.ErrUnexpectedShape)
	}
	for _, key := range []string{"Error Message", "Note", "Information"} {
		if msg := gjson.GetBytes(raw, key); msg.Exists() {
			return fmt.Errorf("alphavantage: %s", msg.String())
		}
	}
	return nil
}

func parseBar(bar gjson.Result) (market.Candle, bool) {
	open, err1 := market.ParseDecimal(bar.Get(`1\. open`).String())
	high, err2 := market.ParseDecimal(bar.Get(`2\. high`).String())
	low, err3 := market.ParseDecimal(bar.Get(`3\. low`).String())
	closePrice, err4 := market.ParseDecimal(bar.Get(`4\. close`).String())
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return market.Candle{}, false
	}
	candle := market.Candle{Open: open, High: high, Low: low, Close: closePrice, Volume: market.DefaultVolume}
	if v, err := market.ParseDecimal(bar.Get(`5\. volume`).String()); err == nil && v > 0 {
		candle.Volume = v
	}
	return candle, true
}

func parseBarTime(s string) (time.Time, error) {
	if ts, err := time.ParseInLocation(timestampBar, s, time.UTC); err == nil {
		return ts, nil
	}
	return time.ParseInLocation(timestampDay, s, time.UTC)
}

func optionalDecimal(obj gjson.Result, path string) *float64 {
	v, err := market.ParseDecimal(obj.Get(path).String())
	if err != nil {
		return nil
	}
	return &v
}
