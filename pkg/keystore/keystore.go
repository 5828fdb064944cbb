// Package keystore persists API keys and analysis preferences in a small
// msgpack file next to the user's config.
package keystore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"marketlens/pkg/market"
)

const (
	// GeminiKey names the AI service key.
	GeminiKey = "gemini"
	// SharedMarketKey is used for every market data provider without its own key.
	SharedMarketKey = "marketdata"

	fileMode = 0o600
)

// Capture modes accepted by the analyzer.
const (
	CaptureScreenshot = "screenshot"
	CaptureVideo      = "video"
	CaptureMultiFrame = "multi-frame"
)

// AnalysisQuantitative is the only analysis mode currently offered.
const AnalysisQuantitative = "quantitative"

// ErrInvalidPreference is returned when a preference value is not recognised.
var ErrInvalidPreference = errors.New("keystore: invalid preference")

// Preferences are the user's analysis defaults.
type Preferences struct {
	Timeframe    string `msgpack:"timeframe"`
	AnalysisMode string `msgpack:"analysisMode"`
	CaptureMode  string `msgpack:"captureMode"`
}

// DefaultPreferences returns the preferences used before anything is saved.
func DefaultPreferences() Preferences {
	return Preferences{
		Timeframe:    string(market.DefaultTimeframe),
		AnalysisMode: AnalysisQuantitative,
		CaptureMode:  CaptureVideo,
	}
}

// Validate checks every field and fills blanks with defaults.
func (p Preferences) Validate() (Preferences, error) {
	def := DefaultPreferences()
	if p.Timeframe == "" {
		p.Timeframe = def.Timeframe
	}
	if p.AnalysisMode == "" {
		p.AnalysisMode = def.AnalysisMode
	}
	if p.CaptureMode == "" {
		p.CaptureMode = def.CaptureMode
	}
	if _, err := market.ParseTimeframe(p.Timeframe); err != nil {
		return p, fmt.Errorf("%w: timeframe %q", ErrInvalidPreference, p.Timeframe)
	}
	if p.AnalysisMode != AnalysisQuantitative {
		return p, fmt.Errorf("%w: analysis mode %q", ErrInvalidPreference, p.AnalysisMode)
	}
	switch p.CaptureMode {
	case CaptureScreenshot, CaptureVideo, CaptureMultiFrame:
	default:
		return p, fmt.Errorf("%w: capture mode %q", ErrInvalidPreference, p.CaptureMode)
	}
	return p, nil
}

type record struct {
	Keys        map[string]string `msgpack:"keys"`
	Preferences Preferences       `msgpack:"preferences"`
}

// Store is a file-backed key and preference store. It is safe for concurrent use.
type Store struct {
	path string

	mu  sync.RWMutex
	rec record
}

// Open loads the store at path. A missing file yields an empty store with
// default preferences.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("keystore: path is empty")
	}
	s := &Store{
		path: path,
		rec:  record{Keys: map[string]string{}, Preferences: DefaultPreferences()},
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keystore: read %s: %w", path, err)
	}
	var rec record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("keystore: decode %s: %w", path, err)
	}
	if rec.Keys == nil {
		rec.Keys = map[string]string{}
	}
	if rec.Preferences, err = rec.Preferences.Validate(); err != nil {
		rec.Preferences = DefaultPreferences()
	}
	s.rec = rec
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Key returns the stored key for name.
func (s *Store) Key(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Keys[normalizeName(name)]
}

// SetKey stores key under name and saves. A blank key removes the entry.
func (s *Store) SetKey(name, key string) error {
	name = normalizeName(name)
	if name == "" {
		return errors.New("keystore: key name is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if key = strings.TrimSpace(key); key == "" {
		delete(s.rec.Keys, name)
	} else {
		s.rec.Keys[name] = key
	}
	return s.saveLocked()
}

// Credentials returns the stored market data keys for providers. The shared
// market data key fills in only for providers that have neither a stored key
// nor one in configured.
func (s *Store) Credentials(providers []string, configured market.Credentials) market.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shared := s.rec.Keys[SharedMarketKey]
	out := market.Credentials{}
	for _, p := range providers {
		p = normalizeName(p)
		switch key := s.rec.Keys[p]; {
		case key != "":
			out[p] = key
		case shared != "" && configured.Key(p) == "":
			out[p] = shared
		}
	}
	return out
}

// Preferences returns the saved preferences.
func (s *Store) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Preferences
}

// SetPreferences validates and saves p.
func (s *Store) SetPreferences(p Preferences) error {
	p, err := p.Validate()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Preferences = p
	return s.saveLocked()
}

// saveLocked writes through a temp file so a crash never leaves a torn store.
func (s *Store) saveLocked() error {
	data, err := msgpack.Marshal(&s.rec)
	if err != nil {
		return fmt.Errorf("keystore: encode: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("keystore: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return fmt.Errorf("keystore: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("keystore: write: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("keystore: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("keystore: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("keystore: replace %s: %w", s.path, err)
	}
	return nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
