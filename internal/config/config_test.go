package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketlens/pkg/confkit"
	"marketlens/pkg/market"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const marketYAML = `
priority:
  quote: [finnhub]
providers:
  finnhub:
    api_key: ${TEST_FINNHUB_KEY}
`

func TestLoadHydratesSections(t *testing.T) {
	t.Setenv("TEST_FINNHUB_KEY", "fh")
	t.Setenv("GEMINI_API_KEY", "")
	dir := t.TempDir()
	writeFile(t, dir, "market.yaml", marketYAML)
	writeFile(t, dir, "llm.yaml", "default_model: gemini-2.0-flash\ntimeout: 5s\n")
	main := writeFile(t, dir, "app.yaml", `
Env: prod
KeystorePath: keys.msgpack
JournalDir: journal
Prefetch:
  Enabled: true
  Symbols: [eurusd]
  FastPath: 2s
Market:
  File: market.yaml
LLM:
  File: llm.yaml
`)

	cfg, err := Load(main)
	require.NoError(t, err)
	require.Equal(t, main, cfg.MainPath())
	require.Equal(t, dir, cfg.BaseDir())
	require.Equal(t, filepath.Join(dir, "keys.msgpack"), cfg.KeystorePath)
	require.Equal(t, filepath.Join(dir, "journal"), cfg.JournalDir)
	require.Empty(t, cfg.PromptTemplate)
	require.Equal(t, 2*time.Second, cfg.Prefetch.FastPath)
	require.Equal(t, []string{"eurusd"}, cfg.PrefetchSymbols())

	require.NotNil(t, cfg.Market.Value)
	require.Equal(t, filepath.Join(dir, "market.yaml"), cfg.Market.File)
	require.Equal(t, market.Credentials{"finnhub": "fh"}, cfg.Market.Value.Credentials())
	require.NotNil(t, cfg.LLM.Value)
	require.Equal(t, "gemini-2.0-flash", cfg.LLM.Value.DefaultModel)
}

func TestLoadDefaultsLLMWhenSectionMissing(t *testing.T) {
	t.Setenv("LLM_TIMEOUT", "")
	dir := t.TempDir()
	writeFile(t, dir, "market.yaml", marketYAML)
	main := writeFile(t, dir, "app.yaml", "Market:\n  File: market.yaml\nPrefetch:\n  Enabled: false\n")

	cfg, err := Load(main)
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.Env)
	require.NotNil(t, cfg.LLM.Value)
	require.Nil(t, cfg.PrefetchSymbols())
	require.Equal(t, defaultFastPath, cfg.Prefetch.FastPath)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "market.yaml", marketYAML)

	_, err := Load(writeFile(t, dir, "noenv.yaml", "Env: staging\nMarket:\n  File: market.yaml\n"))
	require.ErrorContains(t, err, "env must be one of")

	_, err = Load(writeFile(t, dir, "nomarket.yaml", "Env: dev\n"))
	require.ErrorContains(t, err, "market section is required")

	_, err = Load(writeFile(t, dir, "badsym.yaml", "Market:\n  File: market.yaml\nPrefetch:\n  Symbols: ['--']\n"))
	require.ErrorContains(t, err, "invalid prefetch symbol")
}

func TestProjectConfigLoads(t *testing.T) {
	cfg, err := Load(confkit.MustProjectPath("etc/marketlens.yaml"))
	require.NoError(t, err)
	require.Len(t, cfg.Market.Value.Providers, 4)
	require.NotEmpty(t, cfg.PromptTemplate)
}
