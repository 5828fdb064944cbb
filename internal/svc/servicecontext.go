package svc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"marketlens/internal/config"
	"marketlens/pkg/advisor"
	"marketlens/pkg/journal"
	"marketlens/pkg/keystore"
	llmpkg "marketlens/pkg/llm"
	marketpkg "marketlens/pkg/market"
	"marketlens/pkg/market/sources"
	"marketlens/pkg/prompt"
)

type ServiceContext struct {
	Config *config.Config

	Keystore   *keystore.Store
	Resolver   *marketpkg.Resolver
	Aggregator *marketpkg.Aggregator
	Template   *prompt.Template
	// Journal is nil when no journal directory is configured.
	Journal *journal.Writer
	Advisor *advisor.Advisor

	LLMConfig *llmpkg.Config
}

// NewServiceContext wires every dependency and exits on failure.
func NewServiceContext(c *config.Config) *ServiceContext {
	svc, err := New(c)
	logx.Must(err)
	return svc
}

// New wires every dependency from c.
func New(c *config.Config) (*ServiceContext, error) {
	if c == nil || c.Market.Value == nil {
		return nil, fmt.Errorf("svc: market config is required")
	}
	svc := &ServiceContext{Config: c, LLMConfig: c.LLM.Value}
	if svc.LLMConfig == nil {
		svc.LLMConfig = llmpkg.DefaultConfig()
	}

	store, err := keystore.Open(c.KeystorePath)
	if err != nil {
		return nil, fmt.Errorf("svc: open keystore: %w", err)
	}
	svc.Keystore = store

	resolver, err := c.Market.Value.BuildResolver(sources.Catalog())
	if err != nil {
		return nil, fmt.Errorf("svc: build market resolver: %w", err)
	}
	svc.Resolver = resolver
	svc.Aggregator = marketpkg.NewAggregator(resolver)

	tmpl, err := prompt.Load(c.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("svc: load prompt template: %w", err)
	}
	svc.Template = tmpl

	opts := []advisor.Option{
		advisor.WithFastPath(c.Prefetch.FastPath),
		advisor.WithPrefetch(c.PrefetchSymbols()),
	}
	if c.JournalDir != "" {
		w, err := journal.NewWriter(c.JournalDir)
		if err != nil {
			return nil, fmt.Errorf("svc: open journal: %w", err)
		}
		svc.Journal = w
		opts = append(opts, advisor.WithJournal(w))
	}
	svc.Advisor = advisor.New(svc.Aggregator, tmpl, svc.NewAnalyzer, opts...)
	return svc, nil
}

// NewAnalyzer builds a model client for key on top of the loaded LLM config.
func (s *ServiceContext) NewAnalyzer(key string) (advisor.Analyzer, error) {
	a, err := llmpkg.NewAnalyzer(s.LLMConfig.WithAPIKey(key))
	if err != nil {
		return nil, err
	}
	return a, nil
}

// APIKey returns the AI service key. A stored key wins over configuration.
func (s *ServiceContext) APIKey() string {
	if key := s.Keystore.Key(keystore.GeminiKey); key != "" {
		return key
	}
	return strings.TrimSpace(s.LLMConfig.APIKey)
}

// Credentials merges configured provider keys with stored ones. A stored
// provider key wins over configuration; the shared key only fills gaps.
func (s *ServiceContext) Credentials() marketpkg.Credentials {
	configured := s.Config.Market.Value.Credentials()
	return configured.Merge(s.Keystore.Credentials(s.providerNames(), configured))
}

func (s *ServiceContext) providerNames() []string {
	names := make([]string, 0, len(s.Config.Market.Value.Providers))
	for name := range s.Config.Market.Value.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Request fills an advisor request with stored keys and preferences. Fields
// already set on req are kept.
func (s *ServiceContext) Request(req advisor.Request) advisor.Request {
	prefs := s.Keystore.Preferences()
	if req.Timeframe == "" {
		req.Timeframe = marketpkg.Timeframe(prefs.Timeframe)
	}
	if req.AnalysisMode == "" {
		req.AnalysisMode = prefs.AnalysisMode
	}
	if req.CaptureMode == "" {
		req.CaptureMode = prefs.CaptureMode
	}
	if req.APIKey == "" {
		req.APIKey = s.APIKey()
	}
	req.Credentials = s.Credentials().Merge(req.Credentials)
	return req
}
