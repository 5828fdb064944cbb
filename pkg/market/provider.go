package market

import "context"

// Request carries everything an adapter needs to build one upstream call.
type Request struct {
	Symbol    string
	Timeframe Timeframe
	APIKey    string
}

// Provider is the common identity of every data adapter.
type Provider interface {
	// Name is the credential key and log label, e.g. "finnhub".
	Name() string
}

// QuoteProvider fetches and normalizes live quotes.
type QuoteProvider interface {
	Provider
	FetchQuote(ctx context.Context, req Request) ([]byte, error)
	NormalizeQuote(raw []byte) (*Quote, error)
}

// CandleProvider fetches and normalizes candle series.
type CandleProvider interface {
	Provider
	FetchCandles(ctx context.Context, req Request) ([]byte, error)
	NormalizeCandles(raw []byte) ([]Candle, error)
}

// NewsProvider fetches and normalizes news feeds.
type NewsProvider interface {
	Provider
	FetchNews(ctx context.Context, req Request) ([]byte, error)
	NormalizeNews(raw []byte) ([]NewsItem, error)
}
