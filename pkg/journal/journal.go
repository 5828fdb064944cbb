package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// AnalysisRecord captures one analysis run for later review. It stores what
// was decided and from which inputs, never the market prices themselves.
type AnalysisRecord struct {
	Timestamp            time.Time `json:"timestamp"`
	Sequence             int       `json:"sequence"`
	Symbol               string    `json:"symbol"`
	Timeframe            string    `json:"timeframe"`
	CaptureMode          string    `json:"capture_mode,omitempty"`
	Frames               int       `json:"frames"`
	PromptDigest         string    `json:"prompt_digest,omitempty"`
	Model                string    `json:"model,omitempty"`
	LiveData             bool      `json:"live_data"`
	NewsCount            int       `json:"news_count"`
	Decision             string    `json:"decision,omitempty"`
	Confidence           string    `json:"confidence,omitempty"`
	ConfidencePercentage *int      `json:"confidence_percentage,omitempty"`
	Success              bool      `json:"success"`
	ErrorMessage         string    `json:"error_message,omitempty"`
}

// Writer persists records to a directory, one JSON file per analysis.
type Writer struct {
	dir   string
	mu    sync.Mutex
	seq   int
	pid   int
	nowFn func() time.Time
}

const maxNameTries = 100

// NewWriter constructs a journal writer, creating dir when needed.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "journal"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", dir, err)
	}
	return &Writer{dir: dir, pid: os.Getpid(), nowFn: time.Now}, nil
}

// Dir returns the journal directory.
func (w *Writer) Dir() string { return w.dir }

// Write stamps rec with a sequence number and writes it to a new file named
// after its timestamp and the writing process. Existing files are never
// replaced; a name collision moves on to the next sequence number.
func (w *Writer) Write(rec *AnalysisRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	stamp := rec.Timestamp.UTC().Format("20060102_150405.000000000")
	for tries := 0; tries < maxNameTries; tries++ {
		w.seq++
		rec.Sequence = w.seq
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return "", fmt.Errorf("journal: encode: %w", err)
		}
		path := filepath.Join(w.dir, fmt.Sprintf("analysis_%s_%d_%05d.json", stamp, w.pid, w.seq))
		err = writeNew(path, data)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("journal: write %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("journal: no free file name for %s", stamp)
}

func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Recent reads up to limit records, newest first.
func Recent(dir string, limit int) ([]AnalysisRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("journal: list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "analysis_") && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	out := make([]AnalysisRecord, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("journal: read %s: %w", name, err)
		}
		var rec AnalysisRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("journal: decode %s: %w", name, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
