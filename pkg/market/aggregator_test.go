package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAggregator(set ProviderSet) *Aggregator {
	return NewAggregator(NewResolver(set, WithBackoff(0)), WithClock(func() time.Time { return fixedNow }))
}

func TestCollectAllKindsSucceed(t *testing.T) {
	p := &fakeProvider{
		name:    "p",
		quote:   &Quote{Price: 1.2},
		candles: makeCandles(40, 1.1),
		news: []NewsItem{
			{Headline: "EUR rallies"},
			{Headline: "Crypto miners expand"},
		},
	}
	a := newTestAggregator(ProviderSet{
		Quotes:  []QuoteProvider{p},
		Candles: []CandleProvider{p},
		News:    []NewsProvider{p},
	})

	mc := a.Collect(context.Background(), "eur/usd", "", credsFor("p"))
	require.NotNil(t, mc)
	assert.Equal(t, "EURUSD", mc.Symbol)
	assert.False(t, mc.Fallback)
	require.NotNil(t, mc.Live)
	require.NotNil(t, mc.Technical)
	require.NotNil(t, mc.Momentum)
	assert.Equal(t, 1, mc.Sentiment.NewsCount)
	assert.Equal(t, "EUR rallies", mc.Sentiment.News[0].Headline)
}

func TestCollectOneKindFailingDoesNotBlockOthers(t *testing.T) {
	good := &fakeProvider{name: "good", quote: &Quote{Price: 1.2}, news: []NewsItem{{Headline: "Forex outlook"}}}
	bad := &fakeProvider{name: "bad", err: errUpstream}
	a := newTestAggregator(ProviderSet{
		Quotes:  []QuoteProvider{good},
		Candles: []CandleProvider{bad},
		News:    []NewsProvider{good},
	})

	mc := a.Collect(context.Background(), "EURUSD", Timeframe1h, credsFor("good", "bad"))
	assert.False(t, mc.Fallback)
	assert.NotNil(t, mc.Live)
	assert.Nil(t, mc.Technical)
	assert.Nil(t, mc.Momentum)
	assert.Equal(t, 1, mc.Sentiment.NewsCount)
}

func TestCollectTotalFailureYieldsFallback(t *testing.T) {
	p1 := &fakeProvider{name: "p1", err: errUpstream}
	p2 := &fakeProvider{name: "p2", err: errUpstream}
	a := newTestAggregator(ProviderSet{
		Quotes:  []QuoteProvider{p1, p2},
		Candles: []CandleProvider{p1, p2},
		News:    []NewsProvider{p1, p2},
	})

	mc := a.Collect(context.Background(), "EURUSD", Timeframe1h, credsFor("p1", "p2"))
	require.NotNil(t, mc)
	assert.True(t, mc.Fallback)
	assert.Equal(t, FallbackMessage, mc.Message)
	assert.Nil(t, mc.Live)
	assert.Nil(t, mc.Technical)
	assert.Nil(t, mc.Momentum)
	assert.Nil(t, mc.Sentiment.News)
}

func TestCollectWithinReturnsNilOnTimeout(t *testing.T) {
	slow := &fakeProvider{name: "slow", block: true}
	a := newTestAggregator(ProviderSet{Quotes: []QuoteProvider{slow}})

	start := time.Now()
	mc := a.CollectWithin(context.Background(), "EURUSD", Timeframe1h, credsFor("slow"), 30*time.Millisecond)
	assert.Nil(t, mc)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCollectWithinReturnsContextWhenFast(t *testing.T) {
	p := &fakeProvider{name: "p", quote: &Quote{Price: 1.3}}
	a := newTestAggregator(ProviderSet{Quotes: []QuoteProvider{p}})

	mc := a.CollectWithin(context.Background(), "GBPUSD", Timeframe1h, credsFor("p"), 5*time.Second)
	require.NotNil(t, mc)
	assert.Equal(t, 1.3, mc.Live.Price)
}

func TestPrefetch(t *testing.T) {
	p := &fakeProvider{name: "p", quote: &Quote{Price: 1.3}}
	a := newTestAggregator(ProviderSet{Quotes: []QuoteProvider{p}})

	pre := a.Prefetch(context.Background(), CommonSymbols, Timeframe1h, credsFor("p"))
	defer pre.Stop()

	pending, ok := pre.Get("usd/jpy")
	require.True(t, ok)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mc := pending.Await(ctx)
	require.NotNil(t, mc)
	assert.Equal(t, "USDJPY", mc.Symbol)
	assert.True(t, pending.Ready())

	for _, symbol := range CommonSymbols {
		pending, ok := pre.Get(symbol)
		require.True(t, ok)
		require.NotNil(t, pending.Await(ctx))
	}
	_, ok = pre.Get("AUDUSD")
	assert.False(t, ok)
	assert.EqualValues(t, len(CommonSymbols), p.calls.Load())
}
