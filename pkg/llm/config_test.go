package llm

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromReader(t *testing.T) {
	t.Setenv(envAPIKey, "env-key")
	t.Setenv(envTimeout, "45s")
	t.Setenv(envMaxRetries, "4")
	t.Setenv(envBaseURL, "")
	t.Setenv(envDefaultModel, "")

	cfg, err := LoadConfigFromReader(strings.NewReader(`
base_url: "https://example.com/v1beta/openai/"
api_key: "${GEMINI_API_KEY}"
default_model: "models/gemini-2.0-flash"
candidates: ["gemini-2.0-flash", "gemini-2.5-pro"]
discover_models: true
temperature: 0.2
timeout: "30s"
max_retries: 1
`))
	require.NoError(t, err)
	require.Equal(t, "https://example.com/v1beta/openai/", cfg.BaseURL)
	require.Equal(t, "env-key", cfg.APIKey)
	require.Equal(t, 45*time.Second, cfg.Timeout)
	require.Equal(t, 4, cfg.MaxRetries)
	require.True(t, cfg.DiscoverModels)
	require.InDelta(t, 0.2, *cfg.Temperature, 1e-9)
	require.Equal(t, []string{"gemini-2.0-flash", "gemini-2.5-pro"}, cfg.Models())
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{envAPIKey, envTimeout, envMaxRetries, envBaseURL, envDefaultModel} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfigFromReader(strings.NewReader("log_level: debug\n"))
	require.NoError(t, err)
	require.Equal(t, defaultBaseURL, cfg.BaseURL)
	require.Empty(t, cfg.APIKey)
	require.Equal(t, defaultTimeout, cfg.Timeout)
	require.Equal(t, defaultMaxRetries, cfg.MaxRetries)
	require.Equal(t, defaultCandidates, cfg.Models())
}

func TestLoadConfigExplicitZeroRetries(t *testing.T) {
	t.Setenv(envMaxRetries, "")
	cfg, err := LoadConfigFromReader(strings.NewReader("max_retries: 0\n"))
	require.NoError(t, err)
	require.Equal(t, 0, cfg.MaxRetries)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv(envTimeout, "")
	_, err := LoadConfigFromReader(strings.NewReader(`timeout: "soon"`))
	require.ErrorContains(t, err, "invalid timeout")

	_, err = LoadConfigFromReader(strings.NewReader(`temperature: 3`))
	require.ErrorContains(t, err, "temperature")
}

func TestWithAPIKeyCopies(t *testing.T) {
	base := &Config{APIKey: "a", Candidates: []string{"x"}}
	cp := base.WithAPIKey("b")
	require.Equal(t, "b", cp.APIKey)
	require.Equal(t, "a", base.APIKey)
	require.Equal(t, "a", base.WithAPIKey("  ").APIKey)

	cp.Candidates[0] = "y"
	require.Equal(t, "x", base.Candidates[0])
}
