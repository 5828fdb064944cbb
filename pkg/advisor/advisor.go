// Package advisor runs one chart analysis end to end: it gathers the market
// context, renders the prompt, asks the model and enriches its decision.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"marketlens/pkg/journal"
	"marketlens/pkg/llm"
	"marketlens/pkg/market"
	"marketlens/pkg/prompt"
)

// DefaultFastPath bounds the wait for a symbol that was not prefetched.
const DefaultFastPath = 3 * time.Second

const latestHeadlines = 3

// ErrNoAPIKey is the one condition that aborts an analysis.
var ErrNoAPIKey = errors.New("advisor: AI service API key is required")

// Analyzer is the AI service boundary. An analyzer that also implements
// io.Closer is closed once its analysis finishes.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string, media []llm.Media) (*llm.Decision, error)
}

// AnalyzerFactory builds an analyzer for the given key.
type AnalyzerFactory func(apiKey string) (Analyzer, error)

// Request describes one analysis.
type Request struct {
	// Symbol wins over URL; with neither the default symbol is used.
	Symbol       string
	URL          string
	Timeframe    market.Timeframe
	AnalysisMode string
	CaptureMode  string
	Media        []llm.Media
	APIKey       string
	Credentials  market.Credentials
}

// Advisor orchestrates market data collection and the model call.
type Advisor struct {
	aggregator      *market.Aggregator
	template        *prompt.Template
	newAnalyzer     AnalyzerFactory
	journal         *journal.Writer
	fastPath        time.Duration
	prefetchSymbols []string
}

// Option customises an Advisor.
type Option func(*Advisor)

// WithJournal records every analysis to w.
func WithJournal(w *journal.Writer) Option {
	return func(a *Advisor) {
		a.journal = w
	}
}

// WithFastPath overrides the wait for symbols that were not prefetched.
func WithFastPath(d time.Duration) Option {
	return func(a *Advisor) {
		if d > 0 {
			a.fastPath = d
		}
	}
}

// WithPrefetch sets the symbols collected in the background at the start of
// each analysis. An empty list disables prefetching.
func WithPrefetch(symbols []string) Option {
	return func(a *Advisor) {
		a.prefetchSymbols = append([]string(nil), symbols...)
	}
}

// New wires an advisor.
func New(aggregator *market.Aggregator, tmpl *prompt.Template, newAnalyzer AnalyzerFactory, opts ...Option) *Advisor {
	a := &Advisor{
		aggregator:      aggregator,
		template:        tmpl,
		newAnalyzer:     newAnalyzer,
		fastPath:        DefaultFastPath,
		prefetchSymbols: market.CommonSymbols,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// symbol resolves the instrument a request is about.
func (r Request) symbol() string {
	if s := market.NormalizeSymbol(r.Symbol); s != "" {
		return s
	}
	return market.DetectSymbol(r.URL)
}

// MarketContext collects the full context for a request without a deadline
// other than ctx. It never returns nil.
func (a *Advisor) MarketContext(ctx context.Context, req Request) *market.MarketContext {
	return a.aggregator.Collect(ctx, req.symbol(), req.Timeframe, req.Credentials)
}

// Analyze runs one analysis. Market data problems only reduce the context;
// the call fails on a missing key, a template error or a model failure.
func (a *Advisor) Analyze(ctx context.Context, req Request) (*Report, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if req.Timeframe == "" {
		req.Timeframe = market.DefaultTimeframe
	}
	analyzer, err := a.newAnalyzer(req.APIKey)
	if err != nil {
		if errors.Is(err, llm.ErrNoAPIKey) {
			return nil, ErrNoAPIKey
		}
		return nil, fmt.Errorf("advisor: build analyzer: %w", err)
	}
	if closer, ok := analyzer.(io.Closer); ok {
		defer closer.Close()
	}

	var prefetched *market.Prefetched
	hasMarketKeys := a.aggregator.Resolver().HasCredentials(req.Credentials)
	if hasMarketKeys && len(a.prefetchSymbols) > 0 {
		prefetched = a.aggregator.Prefetch(ctx, a.prefetchSymbols, req.Timeframe, req.Credentials)
		defer prefetched.Stop()
	}

	symbol := req.symbol()
	var mc *market.MarketContext
	if hasMarketKeys {
		mc = a.collect(ctx, symbol, req, prefetched)
	} else {
		logx.WithContext(ctx).Infof("advisor: no market data keys, visual analysis only symbol=%s", symbol)
	}

	text, err := a.template.Render(prompt.Data{
		Symbol:        symbol,
		Timeframe:     string(req.Timeframe),
		AnalysisMode:  orDefault(req.AnalysisMode, "quantitative"),
		CaptureMode:   orDefault(req.CaptureMode, "screenshot"),
		MarketSummary: prompt.MarketSummary(mc),
	})
	if err != nil {
		return nil, fmt.Errorf("advisor: render prompt: %w", err)
	}
	digest := prompt.Digest(text)

	decision, err := analyzer.Analyze(ctx, text, req.Media)
	a.record(ctx, req, symbol, digest, mc, decision, err)
	if err != nil {
		return nil, fmt.Errorf("advisor: analyze %s: %w", symbol, err)
	}

	report := buildReport(*decision, symbol, req, mc)
	report.PromptDigest = digest
	return report, nil
}

// collect prefers a prefetched collection and otherwise races a fresh one
// against the fast-path limit. Nil means no data arrived in time.
func (a *Advisor) collect(ctx context.Context, symbol string, req Request, prefetched *market.Prefetched) *market.MarketContext {
	if pending, ok := prefetched.Get(symbol); ok {
		logx.WithContext(ctx).Debugf("advisor: using prefetched data symbol=%s ready=%t", symbol, pending.Ready())
		return pending.Await(ctx)
	}
	return a.aggregator.CollectWithin(ctx, symbol, req.Timeframe, req.Credentials, a.fastPath)
}

func (a *Advisor) record(ctx context.Context, req Request, symbol, digest string, mc *market.MarketContext, d *llm.Decision, callErr error) {
	if a.journal == nil {
		return
	}
	rec := &journal.AnalysisRecord{
		Symbol:       symbol,
		Timeframe:    string(req.Timeframe),
		CaptureMode:  req.CaptureMode,
		Frames:       len(req.Media),
		PromptDigest: digest,
		LiveData:     mc.HasLiveData(),
		Success:      callErr == nil,
	}
	if mc != nil {
		rec.NewsCount = mc.Sentiment.NewsCount
	}
	if d != nil {
		rec.Model = d.Model
		rec.Decision = d.Decision
		rec.Confidence = d.Confidence
		rec.ConfidencePercentage = d.ConfidencePercentage
	}
	if callErr != nil {
		rec.ErrorMessage = callErr.Error()
	}
	if _, err := a.journal.Write(rec); err != nil {
		logx.WithContext(ctx).Errorf("advisor: journal write failed: %v", err)
	}
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
