package llm

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNoAPIKey is returned when an analyzer is built without a key.
	ErrNoAPIKey = errors.New("llm: api key is required")
	// ErrAllModelsFailed is returned when every candidate model errored.
	ErrAllModelsFailed = errors.New("all available models failed")
	// ErrNoModels is returned when there is no model to try.
	ErrNoModels = errors.New("llm: no compatible models found")
	// ErrUnsupportedMedia is returned for attachments that are not images.
	ErrUnsupportedMedia = errors.New("llm: unsupported media type")
	// ErrMalformedDecision is returned when the model reply cannot be read as a decision.
	ErrMalformedDecision = errors.New("llm: malformed decision")
)

// Media is one captured chart frame attached to a request.
type Media struct {
	MIMEType string
	Data     []byte
}

// DataURL encodes the media as a base64 data URL.
func (m Media) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", m.MIMEType, base64.StdEncoding.EncodeToString(m.Data))
}

// IsImage reports whether the media can be sent as an image part.
func (m Media) IsImage() bool {
	return strings.HasPrefix(m.MIMEType, "image/")
}

// LoadMedia reads a capture from disk, taking the MIME type from the file
// extension or, failing that, from the content.
func LoadMedia(path string) (Media, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Media{}, fmt.Errorf("llm: read media %q: %w", path, err)
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mt == "" {
		mt = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return Media{MIMEType: mt, Data: data}, nil
}

// Decision is the trading call parsed from a model reply.
type Decision struct {
	Decision             string `json:"decision"`
	Confidence           string `json:"confidence"`
	ConfidencePercentage *int   `json:"confidencePercentage,omitempty"`
	Duration             string `json:"duration,omitempty"`
	Reason               string `json:"reason"`
	// Model is the model that produced the reply.
	Model string `json:"model,omitempty"`
}
