package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"marketlens/internal/config"
	"marketlens/pkg/confkit"
	"marketlens/pkg/llm"
	"marketlens/pkg/market"
)

func TestConfigSummaryLinesNil(t *testing.T) {
	assert.Equal(t, []string{"Configuration: <nil>"}, ConfigSummaryLines(nil))
}

func TestConfigSummaryLines(t *testing.T) {
	cfg := &config.Config{
		Env:          "dev",
		KeystorePath: "/tmp/keys.msgpack",
		Prefetch:     config.PrefetchConf{Enabled: true, Symbols: []string{"EURUSD", "BTCUSD"}, FastPath: 3 * time.Second},
		Market: confkit.Section[market.Config]{
			File: "market.yaml",
			Value: &market.Config{Providers: map[string]*market.ProviderConfig{
				"finnhub": {APIKey: "k"},
				"polygon": {},
			}},
		},
		LLM: confkit.Section[llm.Config]{Value: &llm.Config{DefaultModel: "gemini-2.5-flash"}},
	}

	assert.Equal(t, []string{
		"Environment: dev",
		"Keystore: /tmp/keys.msgpack",
		"Journal: disabled",
		"Prompt template: embedded",
		"Prefetch: EURUSD,BTCUSD (fast path 3s)",
		"Market config: market.yaml",
		"LLM config: inline",
		"Market providers: 2 (keys configured)",
		"LLM model: gemini-2.5-flash (no keys)",
	}, ConfigSummaryLines(cfg))
}

func TestPrefetchLineDisabled(t *testing.T) {
	cfg := &config.Config{Prefetch: config.PrefetchConf{Enabled: false}}
	assert.Equal(t, "Prefetch: disabled", prefetchLine(cfg))
}

func TestSectionLineNotConfigured(t *testing.T) {
	assert.Equal(t, "LLM config: not configured", sectionLine("LLM config", confkit.Section[llm.Config]{}))
}
