package market

import (
	"context"
	"errors"
	"sync/atomic"
)

var errUpstream = errors.New("upstream unavailable")

// fakeProvider serves every kind from canned values and counts fetches.
type fakeProvider struct {
	name    string
	err     error
	block   bool
	quote   *Quote
	candles []Candle
	news    []NewsItem
	calls   atomic.Int32
	lastKey atomic.Value
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) fetch(ctx context.Context, req Request) ([]byte, error) {
	f.calls.Add(1)
	f.lastKey.Store(req.APIKey)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.name), nil
}

func (f *fakeProvider) FetchQuote(ctx context.Context, req Request) ([]byte, error) {
	return f.fetch(ctx, req)
}

func (f *fakeProvider) NormalizeQuote([]byte) (*Quote, error) {
	if f.quote == nil {
		return nil, ErrUnexpectedShape
	}
	q := *f.quote
	return &q, nil
}

func (f *fakeProvider) FetchCandles(ctx context.Context, req Request) ([]byte, error) {
	return f.fetch(ctx, req)
}

func (f *fakeProvider) NormalizeCandles([]byte) ([]Candle, error) {
	return append([]Candle(nil), f.candles...), nil
}

func (f *fakeProvider) FetchNews(ctx context.Context, req Request) ([]byte, error) {
	return f.fetch(ctx, req)
}

func (f *fakeProvider) NormalizeNews([]byte) ([]NewsItem, error) {
	return append([]NewsItem(nil), f.news...), nil
}

func makeCandles(n int, start float64) []Candle {
	out := make([]Candle, n)
	for i := range out {
		c := start + float64(i)*0.001
		out[i] = Candle{
			Timestamp: int64(1_700_000_000_000 + i*60_000),
			Open:      c - 0.0005,
			High:      c + 0.001,
			Low:       c - 0.001,
			Close:     c,
			Volume:    DefaultVolume,
		}
	}
	return out
}

func credsFor(names ...string) Credentials {
	creds := Credentials{}
	for _, n := range names {
		creds[n] = "key-" + n
	}
	return creds
}
