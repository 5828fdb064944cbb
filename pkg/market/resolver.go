package market

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

const (
	defaultBackoffBase = time.Second
	minCandles         = 21
)

// Policy bounds the work spent on one data kind per provider.
type Policy struct {
	Timeout  time.Duration
	Attempts int
}

var defaultPolicies = map[Kind]Policy{
	KindQuote:   {Timeout: 10 * time.Second, Attempts: 3},
	KindCandles: {Timeout: 15 * time.Second, Attempts: 3},
	KindNews:    {Timeout: 8 * time.Second, Attempts: 2},
}

// ProviderSet lists the adapters for each kind in priority order.
type ProviderSet struct {
	Quotes  []QuoteProvider
	Candles []CandleProvider
	News    []NewsProvider
}

// Resolver walks providers in priority order until one yields validated data.
// Errors are logged and never returned; exhaustion yields nil.
type Resolver struct {
	providers ProviderSet
	policies  map[Kind]Policy
	backoff   time.Duration
	creds     Credentials
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithPolicy overrides the timeout and attempts for kind. Zero fields keep the default.
func WithPolicy(kind Kind, p Policy) ResolverOption {
	return func(r *Resolver) {
		current := r.policies[kind]
		if p.Timeout > 0 {
			current.Timeout = p.Timeout
		}
		if p.Attempts > 0 {
			current.Attempts = p.Attempts
		}
		r.policies[kind] = current
	}
}

// WithBackoff sets the base delay; attempt n waits base*2^n. Zero disables sleeping.
func WithBackoff(base time.Duration) ResolverOption {
	return func(r *Resolver) {
		if base >= 0 {
			r.backoff = base
		}
	}
}

// WithCredentials sets the default provider keys used when a call supplies none.
func WithCredentials(creds Credentials) ResolverOption {
	return func(r *Resolver) {
		r.creds = r.creds.Merge(creds)
	}
}

// NewResolver builds a resolver over the given providers.
func NewResolver(set ProviderSet, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		providers: set,
		policies:  make(map[Kind]Policy, len(defaultPolicies)),
		backoff:   defaultBackoffBase,
		creds:     Credentials{},
	}
	for kind, p := range defaultPolicies {
		r.policies[kind] = p
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the effective policy for kind.
func (r *Resolver) Policy(kind Kind) Policy {
	return r.policies[kind]
}

// HasCredentials reports whether any configured or supplied key is usable.
func (r *Resolver) HasCredentials(creds Credentials) bool {
	return !r.creds.Merge(creds).Empty()
}

// ResolveQuote returns the first valid quote, or nil.
func (r *Resolver) ResolveQuote(ctx context.Context, symbol string, creds Credentials) *Quote {
	keys := r.creds.Merge(creds)
	for _, p := range r.providers.Quotes {
		quote, err := attempt(ctx, r, KindQuote, p.Name(), keys, Request{Symbol: symbol},
			func(ctx context.Context, req Request) (*Quote, error) {
				raw, err := p.FetchQuote(ctx, req)
				if err != nil {
					return nil, err
				}
				q, err := p.NormalizeQuote(raw)
				if err != nil {
					return nil, err
				}
				if err := ValidateQuote(q); err != nil {
					return nil, err
				}
				q.Symbol = symbol
				q.Source = p.Name()
				return q, nil
			})
		if err == nil {
			return quote
		}
		if ctx.Err() != nil {
			break
		}
	}
	logx.WithContext(ctx).Infof("market: no quote available symbol=%s", symbol)
	return nil
}

// ResolveCandles returns the first series with more than 20 valid bars, or nil.
func (r *Resolver) ResolveCandles(ctx context.Context, symbol string, tf Timeframe, creds Credentials) []Candle {
	keys := r.creds.Merge(creds)
	for _, p := range r.providers.Candles {
		candles, err := attempt(ctx, r, KindCandles, p.Name(), keys, Request{Symbol: symbol, Timeframe: tf},
			func(ctx context.Context, req Request) ([]Candle, error) {
				raw, err := p.FetchCandles(ctx, req)
				if err != nil {
					return nil, err
				}
				series, err := p.NormalizeCandles(raw)
				if err != nil {
					return nil, err
				}
				series = CleanCandles(series)
				if len(series) < minCandles {
					return nil, fmt.Errorf("%w: %d candles", ErrInsufficientData, len(series))
				}
				return series, nil
			})
		if err == nil {
			return candles
		}
		if ctx.Err() != nil {
			break
		}
	}
	logx.WithContext(ctx).Infof("market: no candles available symbol=%s timeframe=%s", symbol, tf)
	return nil
}

// ResolveNews returns the first non-empty feed, or nil. Relevance filtering
// is left to the caller.
func (r *Resolver) ResolveNews(ctx context.Context, symbol string, creds Credentials) []NewsItem {
	keys := r.creds.Merge(creds)
	for _, p := range r.providers.News {
		items, err := attempt(ctx, r, KindNews, p.Name(), keys, Request{Symbol: symbol},
			func(ctx context.Context, req Request) ([]NewsItem, error) {
				raw, err := p.FetchNews(ctx, req)
				if err != nil {
					return nil, err
				}
				items, err := p.NormalizeNews(raw)
				if err != nil {
					return nil, err
				}
				if len(items) == 0 {
					return nil, fmt.Errorf("%w: empty feed", ErrInsufficientData)
				}
				return items, nil
			})
		if err == nil {
			return items
		}
		if ctx.Err() != nil {
			break
		}
	}
	logx.WithContext(ctx).Infof("market: no news available symbol=%s", symbol)
	return nil
}

// attempt runs call against one provider under the kind's policy, retrying
// with exponential backoff. A provider without a key is skipped.
func attempt[T any](ctx context.Context, r *Resolver, kind Kind, name string, keys Credentials, req Request,
	call func(context.Context, Request) (T, error)) (T, error) {
	var zero T
	req.APIKey = keys.Key(name)
	if req.APIKey == "" {
		logx.WithContext(ctx).Debugf("market: skip provider=%s kind=%s: no credential", name, kind)
		return zero, ErrNoCredential
	}

	policy := r.policies[kind]
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := r.sleep(ctx, i); err != nil {
				return zero, err
			}
		}
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if policy.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		}
		start := time.Now()
		value, err := call(callCtx, req)
		cancel()
		if err == nil {
			logx.WithContext(ctx).Debugf("market: provider=%s kind=%s symbol=%s ok in %s", name, kind, req.Symbol, time.Since(start))
			return value, nil
		}
		lastErr = err
		logx.WithContext(ctx).Errorf("market: provider=%s kind=%s symbol=%s attempt=%d/%d err=%v",
			name, kind, req.Symbol, i+1, attempts, err)
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}
	return zero, fmt.Errorf("market: provider %s exhausted %d attempts: %w", name, attempts, lastErr)
}

func (r *Resolver) sleep(ctx context.Context, attempt int) error {
	if r.backoff <= 0 {
		return ctx.Err()
	}
	delay := r.backoff << attempt
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
