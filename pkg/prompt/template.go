package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/template"
)

//go:embed templates/*.tmpl
var builtin embed.FS

// DefaultTemplateName is the embedded analysis template.
const DefaultTemplateName = "analysis.tmpl"

// Template wraps a text/template loaded from disk or from the embedded set.
type Template struct {
	path     string
	funcs    template.FuncMap
	embedded bool

	mu   sync.RWMutex
	tmpl *template.Template
	hash string
}

// NewTemplate parses the template at path using the provided template functions.
func NewTemplate(path string, funcs template.FuncMap) (*Template, error) {
	if path == "" {
		return nil, fmt.Errorf("prompt template path is empty")
	}
	t := &Template{path: path, funcs: funcs}
	if err := t.reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Default returns the embedded analysis template.
func Default() (*Template, error) {
	data, err := builtin.ReadFile("templates/" + DefaultTemplateName)
	if err != nil {
		return nil, fmt.Errorf("read embedded prompt template: %w", err)
	}
	t := &Template{path: DefaultTemplateName, embedded: true}
	if err := t.parse(data); err != nil {
		return nil, err
	}
	return t, nil
}

// Load returns the template at path, or the embedded default when path is empty.
func Load(path string) (*Template, error) {
	if path == "" {
		return Default()
	}
	return NewTemplate(path, nil)
}

// Render executes the template with the provided data and returns the rendered string.
func (t *Template) Render(data any) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.tmpl == nil {
		return "", fmt.Errorf("prompt template %q not parsed", t.path)
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute prompt template %q: %w", t.path, err)
	}
	return buf.String(), nil
}

// Reload reparses a file-backed template. Embedded templates never change.
func (t *Template) Reload() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.embedded {
		return nil
	}
	return t.reload()
}

func (t *Template) reload() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return fmt.Errorf("read prompt template %q: %w", t.path, err)
	}
	return t.parse(data)
}

func (t *Template) parse(data []byte) error {
	tmpl := template.New(filepath.Base(t.path)).Option("missingkey=error")
	if len(t.funcs) > 0 {
		tmpl = tmpl.Funcs(t.funcs)
	}
	if _, err := tmpl.Parse(string(data)); err != nil {
		return fmt.Errorf("parse prompt template %q: %w", t.path, err)
	}
	t.tmpl = tmpl
	t.hash = computeDigest(data)
	return nil
}

// Digest returns the sha256 hash of the template content.
func (t *Template) Digest() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hash
}
