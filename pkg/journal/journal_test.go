package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteAndRecent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	w, err := NewWriter(dir)
	require.NoError(t, err)

	base := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	w.nowFn = func() time.Time { return base }

	first, err := w.Write(&AnalysisRecord{Symbol: "EURUSD", Decision: "BUY", Success: true})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, fmt.Sprintf("analysis_20250304_100000.000000000_%d_00001.json", os.Getpid())), first)

	_, err = w.Write(&AnalysisRecord{Symbol: "GBPUSD", Timestamp: base.Add(time.Minute), ErrorMessage: "no models"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	recs, err := Recent(dir, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "GBPUSD", recs[0].Symbol)
	require.Equal(t, 2, recs[0].Sequence)
	require.False(t, recs[0].Success)
	require.Equal(t, "EURUSD", recs[1].Symbol)
	require.True(t, recs[1].Timestamp.Equal(base))

	limited, err := Recent(dir, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestWriteRejectsNil(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	_, err = w.Write(nil)
	require.Error(t, err)
}

func TestWritersSharingDirectoryKeepEveryRecord(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	first, err := NewWriter(dir)
	require.NoError(t, err)
	second, err := NewWriter(dir)
	require.NoError(t, err)

	// Same second, different instants.
	first.nowFn = func() time.Time { return base }
	second.nowFn = func() time.Time { return base.Add(300 * time.Millisecond) }
	_, err = first.Write(&AnalysisRecord{Symbol: "EURUSD", Decision: "BUY"})
	require.NoError(t, err)
	_, err = second.Write(&AnalysisRecord{Symbol: "GBPUSD", Decision: "SELL"})
	require.NoError(t, err)

	// Same instant and process id: the second writer must not replace the first file.
	third, err := NewWriter(dir)
	require.NoError(t, err)
	third.nowFn = first.nowFn
	third.pid = first.pid
	path, err := third.Write(&AnalysisRecord{Symbol: "USDJPY", Decision: "NO TRADE"})
	require.NoError(t, err)
	require.Contains(t, path, "_00002.json")

	recs, err := Recent(dir, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	symbols := []string{recs[0].Symbol, recs[1].Symbol, recs[2].Symbol}
	require.ElementsMatch(t, []string{"EURUSD", "GBPUSD", "USDJPY"}, symbols)
	require.Equal(t, "GBPUSD", recs[0].Symbol)
}
