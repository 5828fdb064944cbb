package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"

	"marketlens/pkg/confkit"
	llmpkg "marketlens/pkg/llm"
	marketpkg "marketlens/pkg/market"
)

const defaultFastPath = 3 * time.Second

// PrefetchConf controls background collection of common symbols.
type PrefetchConf struct {
	Enabled  bool          `json:",default=true"`
	Symbols  []string      `json:",optional"`
	FastPath time.Duration `json:",default=3s"`
}

type Config struct {
	Name string `json:",default=marketlens"`
	// Env is one of dev | prod.
	Env string       `json:",default=dev"`
	Log logx.LogConf `json:",optional"`

	KeystorePath   string `json:",default=data/keys.msgpack"`
	JournalDir     string `json:",optional"`
	PromptTemplate string `json:",optional"`

	Prefetch PrefetchConf `json:",optional"`

	Market confkit.Section[marketpkg.Config] `json:",optional"`
	LLM    confkit.Section[llmpkg.Config]    `json:",optional"`

	mainPath string
	baseDir  string
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	confkit.LoadDotenvOnce()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}

	var cfg Config
	if err := conf.Load(absPath, &cfg, conf.UseEnv()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", absPath, err)
	}
	cfg.mainPath = absPath
	cfg.baseDir = filepath.Dir(absPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.hydrateSections(); err != nil {
		return nil, err
	}
	cfg.resolvePaths()
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "dev", "prod":
	default:
		return errors.New("config: env must be one of dev|prod")
	}
	if strings.TrimSpace(c.Market.File) == "" {
		return errors.New("config: market section is required")
	}
	if strings.TrimSpace(c.KeystorePath) == "" {
		return errors.New("config: keystorePath is required")
	}
	if c.Prefetch.FastPath < 0 {
		return errors.New("config: prefetch.fastPath cannot be negative")
	}
	if c.Prefetch.FastPath == 0 {
		c.Prefetch.FastPath = defaultFastPath
	}
	for _, s := range c.Prefetch.Symbols {
		if marketpkg.NormalizeSymbol(s) == "" {
			return fmt.Errorf("config: invalid prefetch symbol %q", s)
		}
	}
	return nil
}

func (c *Config) hydrateSections() error {
	if err := c.Market.Hydrate(c.baseDir, marketpkg.LoadConfig); err != nil {
		return fmt.Errorf("load market config: %w", err)
	}
	if err := c.LLM.Hydrate(c.baseDir, llmpkg.LoadConfig); err != nil {
		return fmt.Errorf("load llm config: %w", err)
	}
	if c.LLM.Value == nil {
		c.LLM.Value = llmpkg.DefaultConfig()
	}
	return nil
}

func (c *Config) resolvePaths() {
	c.KeystorePath = confkit.ResolvePath(c.baseDir, c.KeystorePath)
	if c.JournalDir != "" {
		c.JournalDir = confkit.ResolvePath(c.baseDir, c.JournalDir)
	}
	if c.PromptTemplate != "" {
		c.PromptTemplate = confkit.ResolvePath(c.baseDir, c.PromptTemplate)
	}
}

// PrefetchSymbols returns the symbols to warm, or nil when prefetching is off.
func (c *Config) PrefetchSymbols() []string {
	if !c.Prefetch.Enabled {
		return nil
	}
	if len(c.Prefetch.Symbols) == 0 {
		return marketpkg.CommonSymbols
	}
	return c.Prefetch.Symbols
}

func (c *Config) MainPath() string {
	return c.mainPath
}

func (c *Config) BaseDir() string {
	return c.baseDir
}

// MustLoadMarket loads etc/market.yaml from the project root and panics on error.
func MustLoadMarket() *marketpkg.Config {
	return marketpkg.MustLoad()
}

// MustLoadLLM loads etc/llm.yaml from the project root and panics on error.
func MustLoadLLM() *llmpkg.Config {
	path := confkit.MustProjectPath("etc/llm.yaml")
	cfg, err := llmpkg.LoadConfig(path)
	if err != nil {
		panic(fmt.Errorf("load llm config %s: %w", path, err))
	}
	return cfg
}
