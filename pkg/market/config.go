package market

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"marketlens/pkg/confkit"
)

// Config describes the market data providers and how the resolver uses them.
type Config struct {
	BackoffBaseRaw string                     `yaml:"backoff_base"`
	BackoffBase    time.Duration              `yaml:"-"`
	Policies       map[Kind]*PolicyConfig     `yaml:"policies"`
	Priority       map[Kind][]string          `yaml:"priority"`
	Providers      map[string]*ProviderConfig `yaml:"providers"`
}

// PolicyConfig overrides the timeout and attempt budget of one data kind.
type PolicyConfig struct {
	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
	Attempts   int           `yaml:"attempts"`
}

// ProviderConfig represents configuration for a single market provider.
type ProviderConfig struct {
	Type      string `yaml:"type"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	UserAgent string `yaml:"user_agent"`

	HTTPTimeoutRaw string        `yaml:"http_timeout"`
	HTTPTimeout    time.Duration `yaml:"-"`
}

// Builder constructs a provider from configuration.
type Builder func(name string, cfg *ProviderConfig) (Provider, error)

// Catalog maps provider types to their builders. It is passed explicitly to
// BuildResolver instead of living in a package level registry.
type Catalog map[string]Builder

func (c Catalog) lookup(typeName string) (Builder, bool) {
	b, ok := c[strings.ToLower(strings.TrimSpace(typeName))]
	return b, ok
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads market configuration from the default project location and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/market.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read market config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal market config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	normalised := make(map[string]*ProviderConfig, len(c.Providers))
	for name, provider := range c.Providers {
		if provider == nil {
			provider = &ProviderConfig{}
		}
		provider.expandEnv()
		if provider.Type == "" {
			provider.Type = name
		}
		if err := provider.parseDurations(name); err != nil {
			return err
		}
		normalised[strings.ToLower(strings.TrimSpace(name))] = provider
	}
	c.Providers = normalised

	raw := strings.TrimSpace(os.ExpandEnv(c.BackoffBaseRaw))
	if raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("market config: invalid backoff_base %q: %w", raw, err)
		}
		if d < 0 {
			return fmt.Errorf("market config: backoff_base must not be negative, got %s", d)
		}
		c.BackoffBase = d
	} else {
		c.BackoffBase = defaultBackoffBase
	}

	for kind, policy := range c.Policies {
		if policy == nil {
			continue
		}
		policy.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(policy.TimeoutRaw))
		if policy.TimeoutRaw == "" {
			continue
		}
		d, err := time.ParseDuration(policy.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("market policy %s: invalid timeout %q: %w", kind, policy.TimeoutRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("market policy %s: timeout must be positive, got %s", kind, d)
		}
		policy.Timeout = d
	}
	return nil
}

func (p *ProviderConfig) expandEnv() {
	p.Type = strings.ToLower(strings.TrimSpace(os.ExpandEnv(p.Type)))
	p.BaseURL = strings.TrimSpace(os.ExpandEnv(p.BaseURL))
	p.APIKey = strings.TrimSpace(os.ExpandEnv(p.APIKey))
	p.UserAgent = strings.TrimSpace(os.ExpandEnv(p.UserAgent))
	p.HTTPTimeoutRaw = strings.TrimSpace(os.ExpandEnv(p.HTTPTimeoutRaw))
}

func (p *ProviderConfig) parseDurations(name string) error {
	if p.HTTPTimeoutRaw != "" {
		d, err := time.ParseDuration(p.HTTPTimeoutRaw)
		if err != nil {
			return fmt.Errorf("market provider %s: invalid http_timeout %q: %w", name, p.HTTPTimeoutRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("market provider %s: http_timeout must be positive, got %s", name, d)
		}
		p.HTTPTimeout = d
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("market config: providers cannot be empty")
	}
	for name := range c.Providers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("market config: provider name cannot be empty")
		}
	}
	for kind, names := range c.Priority {
		if !validKind(kind) {
			return fmt.Errorf("market config: unknown data kind %q in priority", kind)
		}
		for _, name := range names {
			if _, ok := c.Providers[strings.ToLower(name)]; !ok {
				return fmt.Errorf("market config: %s priority references undefined provider %q", kind, name)
			}
		}
	}
	for kind, policy := range c.Policies {
		if !validKind(kind) {
			return fmt.Errorf("market config: unknown data kind %q in policies", kind)
		}
		if policy != nil && policy.Attempts < 0 {
			return fmt.Errorf("market policy %s: attempts must not be negative", kind)
		}
	}
	return nil
}

// Credentials collects the API keys configured per provider.
func (c *Config) Credentials() Credentials {
	creds := make(Credentials, len(c.Providers))
	for name, provider := range c.Providers {
		if provider.APIKey != "" {
			creds[name] = provider.APIKey
		}
	}
	return creds
}

// BuildResolver instantiates the configured providers from catalog and
// arranges them in priority order for each data kind.
func (c *Config) BuildResolver(catalog Catalog, opts ...ResolverOption) (*Resolver, error) {
	built := make(map[string]Provider, len(c.Providers))
	for name, providerCfg := range c.Providers {
		builder, ok := catalog.lookup(providerCfg.Type)
		if !ok {
			return nil, fmt.Errorf("market provider %s: unsupported type %q", name, providerCfg.Type)
		}
		provider, err := builder(name, providerCfg)
		if err != nil {
			return nil, fmt.Errorf("market provider %s: %w", name, err)
		}
		built[name] = provider
	}

	set := ProviderSet{}
	for _, name := range c.Priority[KindQuote] {
		p, ok := built[strings.ToLower(name)].(QuoteProvider)
		if !ok {
			return nil, fmt.Errorf("market provider %s: does not serve quotes", name)
		}
		set.Quotes = append(set.Quotes, p)
	}
	for _, name := range c.Priority[KindCandles] {
		p, ok := built[strings.ToLower(name)].(CandleProvider)
		if !ok {
			return nil, fmt.Errorf("market provider %s: does not serve candles", name)
		}
		set.Candles = append(set.Candles, p)
	}
	for _, name := range c.Priority[KindNews] {
		p, ok := built[strings.ToLower(name)].(NewsProvider)
		if !ok {
			return nil, fmt.Errorf("market provider %s: does not serve news", name)
		}
		set.News = append(set.News, p)
	}

	base := []ResolverOption{
		WithCredentials(c.Credentials()),
		WithBackoff(c.BackoffBase),
	}
	for kind, policy := range c.Policies {
		if policy == nil {
			continue
		}
		base = append(base, WithPolicy(kind, Policy{Timeout: policy.Timeout, Attempts: policy.Attempts}))
	}
	return NewResolver(set, append(base, opts...)...), nil
}

func validKind(k Kind) bool {
	switch k {
	case KindQuote, KindCandles, KindNews:
		return true
	}
	return false
}
