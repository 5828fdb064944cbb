package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateRenderWithFuncs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("pair {{ lower .Symbol }} on {{ .Timeframe }}"), 0o600))

	tpl, err := NewTemplate(path, template.FuncMap{"lower": strings.ToLower})
	require.NoError(t, err)

	out, err := tpl.Render(Data{Symbol: "EURUSD", Timeframe: "15m"})
	require.NoError(t, err)
	assert.Equal(t, "pair eurusd on 15m", out)
}

func TestTemplateReloadChangesDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reload.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	tpl, err := Load(path)
	require.NoError(t, err)
	digest := tpl.Digest()
	assert.NotEmpty(t, digest)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))
	require.NoError(t, tpl.Reload())

	out, err := tpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "v2", out)
	assert.NotEqual(t, digest, tpl.Digest())
}

func TestTemplateMissingKeyFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strict.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("{{ .Unknown }}"), 0o600))

	tpl, err := NewTemplate(path, nil)
	require.NoError(t, err)
	_, err = tpl.Render(map[string]any{})
	assert.Error(t, err)
}

func TestDefaultTemplate(t *testing.T) {
	tpl, err := Load("")
	require.NoError(t, err)
	assert.Len(t, tpl.Digest(), 64)
	require.NoError(t, tpl.Reload())

	out, err := tpl.Render(Data{
		Symbol:        "GBPUSD",
		Timeframe:     "1h",
		AnalysisMode:  "quantitative",
		CaptureMode:   "screenshot",
		MarketSummary: UnavailableLine,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "ANALYSIS FOR: GBPUSD\n"+UnavailableLine)
	assert.Contains(t, out, "Analyze the screenshot and give")
	assert.Contains(t, out, `"decision": "BUY" | "SELL" | "NO TRADE"`)
}
