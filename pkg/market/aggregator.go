package market

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"
)

// Aggregator fetches the three data kinds for a symbol and synthesizes a context.
type Aggregator struct {
	resolver *Resolver
	now      func() time.Time
}

// AggregatorOption customises an Aggregator.
type AggregatorOption func(*Aggregator)

// WithClock overrides the time source used to stamp contexts.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregator wraps a resolver.
func NewAggregator(resolver *Resolver, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{resolver: resolver, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Resolver exposes the underlying resolver.
func (a *Aggregator) Resolver() *Resolver {
	return a.resolver
}

// Collect resolves quote, candles and news concurrently. A failure in one
// kind never affects the others; the result is never nil.
func (a *Aggregator) Collect(ctx context.Context, symbol string, tf Timeframe, creds Credentials) *MarketContext {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		symbol = DefaultSymbol
	}
	if tf == "" {
		tf = DefaultTimeframe
	}

	var (
		quote   *Quote
		candles []Candle
		news    []NewsItem
	)
	group := threading.NewRoutineGroup()
	group.RunSafe(func() {
		quote = a.resolver.ResolveQuote(ctx, symbol, creds)
	})
	group.RunSafe(func() {
		candles = a.resolver.ResolveCandles(ctx, symbol, tf, creds)
	})
	group.RunSafe(func() {
		news = FilterRelevantNews(a.resolver.ResolveNews(ctx, symbol, creds), symbol)
	})
	group.Wait()

	mc := Synthesize(symbol, quote, candles, news, a.now())
	logx.WithContext(ctx).Infof("market: collected symbol=%s timeframe=%s quote=%t candles=%d news=%d fallback=%t",
		symbol, tf, quote != nil, len(candles), len(news), mc.Fallback)
	return mc
}

// CollectWithin races Collect against limit. It returns nil when the limit
// elapses first; in-flight fetches are cancelled.
func (a *Aggregator) CollectWithin(ctx context.Context, symbol string, tf Timeframe, creds Credentials, limit time.Duration) *MarketContext {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan *MarketContext, 1)
	threading.GoSafe(func() {
		done <- a.Collect(ctx, symbol, tf, creds)
	})

	select {
	case mc := <-done:
		if ctx.Err() != nil {
			return nil
		}
		return mc
	case <-ctx.Done():
		logx.WithContext(ctx).Slowf("market: collect symbol=%s exceeded %s", symbol, limit)
		return nil
	}
}

// Pending is a background collection that can be awaited later.
type Pending struct {
	done   chan struct{}
	result *MarketContext
}

func (p *Pending) resolve(mc *MarketContext) {
	p.result = mc
	close(p.done)
}

// Ready reports whether the collection has finished.
func (p *Pending) Ready() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Await blocks until the collection finishes or ctx ends, in which case nil is returned.
func (p *Pending) Await(ctx context.Context) *MarketContext {
	select {
	case <-p.done:
		return p.result
	case <-ctx.Done():
		return nil
	}
}

// Prefetched holds background collections keyed by normalized symbol.
type Prefetched struct {
	pending map[string]*Pending
	cancel  context.CancelFunc
}

// Get returns the pending collection for symbol, if one was started.
func (p *Prefetched) Get(symbol string) (*Pending, bool) {
	if p == nil {
		return nil, false
	}
	pending, ok := p.pending[NormalizeSymbol(symbol)]
	return pending, ok
}

// Stop cancels every collection still in flight.
func (p *Prefetched) Stop() {
	if p != nil && p.cancel != nil {
		p.cancel()
	}
}

// Prefetch starts background collections for symbols. Each runs detached
// from the caller until ctx ends or Stop is called.
func (a *Aggregator) Prefetch(ctx context.Context, symbols []string, tf Timeframe, creds Credentials) *Prefetched {
	ctx, cancel := context.WithCancel(ctx)
	out := &Prefetched{
		pending: make(map[string]*Pending, len(symbols)),
		cancel:  cancel,
	}
	for _, symbol := range symbols {
		key := NormalizeSymbol(symbol)
		if key == "" {
			continue
		}
		if _, seen := out.pending[key]; seen {
			continue
		}
		pending := &Pending{done: make(chan struct{})}
		out.pending[key] = pending
		threading.GoSafe(func() {
			defer func() {
				if !pending.Ready() {
					pending.resolve(nil)
				}
			}()
			pending.resolve(a.Collect(ctx, key, tf, creds))
		})
	}
	logx.WithContext(ctx).Infof("market: prefetch started symbols=%v timeframe=%s", symbols, tf)
	return out
}
