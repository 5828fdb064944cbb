package llm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta/openai/"
	defaultModel      = "gemini-2.5-flash"
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 2
	defaultLogLevel   = "info"

	envAPIKey       = "GEMINI_API_KEY"
	envBaseURL      = "LLM_BASE_URL"
	envDefaultModel = "LLM_DEFAULT_MODEL"
	envTimeout      = "LLM_TIMEOUT"
	envMaxRetries   = "LLM_MAX_RETRIES"
)

// defaultCandidates are tried after the default model when discovery is off
// or returns nothing usable.
var defaultCandidates = []string{
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-2.5-pro",
}

// Config holds runtime settings for the analyzer.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	DefaultModel   string        `yaml:"default_model"`
	Candidates     []string      `yaml:"candidates"`
	DiscoverModels bool          `yaml:"discover_models"`
	Temperature    *float64      `yaml:"temperature,omitempty"`
	MaxTokens      *int          `yaml:"max_tokens,omitempty"`
	Timeout        time.Duration `yaml:"-"`
	MaxRetries     int           `yaml:"max_retries"`
	LogLevel       string        `yaml:"log_level"`

	timeoutRaw string
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open llm config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from a reader. The API key may be
// left empty here; it is only required when an Analyzer is built.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	var raw struct {
		BaseURL        string   `yaml:"base_url"`
		APIKey         string   `yaml:"api_key"`
		DefaultModel   string   `yaml:"default_model"`
		Candidates     []string `yaml:"candidates"`
		DiscoverModels bool     `yaml:"discover_models"`
		Temperature    *float64 `yaml:"temperature"`
		MaxTokens      *int     `yaml:"max_tokens"`
		Timeout        string   `yaml:"timeout"`
		MaxRetries     *int     `yaml:"max_retries"`
		LogLevel       string   `yaml:"log_level"`
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read llm config: %w", err)
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal llm config: %w", err)
	}

	cfg := &Config{
		BaseURL:        raw.BaseURL,
		APIKey:         raw.APIKey,
		DefaultModel:   raw.DefaultModel,
		Candidates:     raw.Candidates,
		DiscoverModels: raw.DiscoverModels,
		Temperature:    raw.Temperature,
		MaxTokens:      raw.MaxTokens,
		MaxRetries:     -1,
		LogLevel:       raw.LogLevel,
		timeoutRaw:     raw.Timeout,
	}
	if raw.MaxRetries != nil {
		cfg.MaxRetries = *raw.MaxRetries
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	if err := cfg.parseTimeout(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns a config populated from defaults and the environment.
func DefaultConfig() *Config {
	cfg := &Config{MaxRetries: -1}
	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	if err := cfg.parseTimeout(); err != nil {
		cfg.Timeout = defaultTimeout
	}
	return cfg
}

// Validate checks the settings that do not depend on a key being present.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("llm config: base_url is required")
	}
	if strings.TrimSpace(c.DefaultModel) == "" {
		return errors.New("llm config: default_model is required")
	}
	if c.Timeout <= 0 {
		return errors.New("llm config: timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("llm config: max_retries cannot be negative")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("llm config: temperature %.2f out of range [0,2]", *c.Temperature)
	}
	return nil
}

// Models returns the default model followed by the configured candidates,
// without duplicates.
func (c *Config) Models() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(c.Candidates)+1)
	for _, name := range append([]string{c.DefaultModel}, c.Candidates...) {
		name = normalizeModelID(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// WithAPIKey returns a copy carrying key. Blank keys leave the copy unchanged.
func (c *Config) WithAPIKey(key string) *Config {
	cp := c.Clone()
	if key = strings.TrimSpace(key); key != "" {
		cp.APIKey = key
	}
	return cp
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Candidates = append([]string(nil), c.Candidates...)
	return &cp
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(c.DefaultModel) == "" {
		c.DefaultModel = defaultModel
	}
	if len(c.Candidates) == 0 {
		c.Candidates = append([]string(nil), defaultCandidates...)
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = defaultMaxRetries
	}
}

func (c *Config) applyEnvOverrides() {
	c.BaseURL = expandAndOverride(c.BaseURL, envBaseURL)
	c.APIKey = expandAndOverride(c.APIKey, envAPIKey)
	c.DefaultModel = expandAndOverride(c.DefaultModel, envDefaultModel)

	if raw := os.Getenv(envTimeout); raw != "" {
		c.timeoutRaw = raw
	} else {
		c.timeoutRaw = os.ExpandEnv(c.timeoutRaw)
	}

	if raw := os.Getenv(envMaxRetries); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			c.MaxRetries = v
		}
	}
}

func (c *Config) parseTimeout() error {
	if strings.TrimSpace(c.timeoutRaw) == "" {
		c.Timeout = defaultTimeout
		return nil
	}
	d, err := time.ParseDuration(c.timeoutRaw)
	if err != nil {
		return fmt.Errorf("llm config: invalid timeout %q: %w", c.timeoutRaw, err)
	}
	if d <= 0 {
		return fmt.Errorf("llm config: timeout must be positive, got %s", d)
	}
	c.Timeout = d
	return nil
}

func expandAndOverride(current, envKey string) string {
	current = os.ExpandEnv(current)
	if envVal := os.Getenv(envKey); envVal != "" {
		return envVal
	}
	return current
}

// normalizeModelID strips the "models/" prefix the Gemini API reports.
func normalizeModelID(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), "models/")
}
