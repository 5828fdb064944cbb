package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlens/pkg/keystore"
)

func TestLoadMedia(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "frame.png")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n"), 0o600))

	media, err := loadMedia(" " + png + ", ,")
	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, "image/png", media[0].MIMEType)

	none, err := loadMedia("")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = loadMedia(filepath.Join(dir, "missing.png"))
	require.Error(t, err)
}

func TestParsePreferences(t *testing.T) {
	current := keystore.DefaultPreferences()

	prefs, err := parsePreferences("timeframe=4H, capture=screenshot", current)
	require.NoError(t, err)
	assert.Equal(t, keystore.Preferences{
		Timeframe:    "4h",
		AnalysisMode: keystore.AnalysisQuantitative,
		CaptureMode:  keystore.CaptureScreenshot,
	}, prefs)

	_, err = parsePreferences("timeframe", current)
	require.Error(t, err)
	_, err = parsePreferences("colour=blue", current)
	require.Error(t, err)
}

func TestParsedPreferencesAreStored(t *testing.T) {
	store, err := keystore.Open(filepath.Join(t.TempDir(), "keys.msgpack"))
	require.NoError(t, err)

	prefs, err := parsePreferences("timeframe=15m,capture=multi-frame", store.Preferences())
	require.NoError(t, err)
	require.NoError(t, store.SetPreferences(prefs))

	reopened, err := keystore.Open(store.Path())
	require.NoError(t, err)
	assert.Equal(t, "15m", reopened.Preferences().Timeframe)
	assert.Equal(t, keystore.CaptureMultiFrame, reopened.Preferences().CaptureMode)

	bad, err := parsePreferences("capture=hologram", store.Preferences())
	require.NoError(t, err)
	require.ErrorIs(t, store.SetPreferences(bad), keystore.ErrInvalidPreference)
}
