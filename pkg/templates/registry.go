// Package templates loads the embedded prompt and notification templates.
// Prompt templates (assets/prompts) feed the generation providers; the
// notification templates (assets/notifications) render Telegram messages.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
)

//go:embed assets/**/*.tmpl
var embeddedFS embed.FS

// Template is one parsed .tmpl file, addressed by its path-derived ID
// ("prompts/hook", "notifications/script_generated").
type Template struct {
	ID      string
	Path    string
	Content string

	parsed *template.Template
}

// Render executes the template against data.
func (t *Template) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.parsed.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", t.ID, err)
	}
	return buf.String(), nil
}

// Registry resolves templates by ID.
type Registry struct {
	source fs.FS

	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry loads every .tmpl under basePath from disk. Used by tooling;
// the service itself runs off the embedded set via Get.
func NewRegistry(basePath string) (*Registry, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve template base path: %w", err)
	}
	return NewRegistryFromFS(os.DirFS(abs))
}

// NewRegistryFromFS loads every .tmpl reachable in the filesystem.
func NewRegistryFromFS(source fs.FS) (*Registry, error) {
	r := &Registry{
		source:    source,
		templates: make(map[string]*Template),
	}

	err := fs.WalkDir(source, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".tmpl" {
			return nil
		}
		return r.load(path)
	})
	if err != nil {
		return nil, err
	}

	return r, nil
}

var (
	embeddedOnce     sync.Once
	embeddedRegistry *Registry
	embeddedErr      error
)

// Get returns the registry over the embedded assets, built on first use.
// A broken embedded template is a build defect, hence the panic.
func Get() *Registry {
	embeddedOnce.Do(func() {
		assets, err := fs.Sub(embeddedFS, "assets")
		if err != nil {
			embeddedErr = fmt.Errorf("prepare embedded templates: %w", err)
			return
		}
		embeddedRegistry, embeddedErr = NewRegistryFromFS(assets)
	})

	if embeddedErr != nil {
		panic(embeddedErr)
	}
	return embeddedRegistry
}

// GetTemplate resolves a template by ID.
func (r *Registry) GetTemplate(id string) (*Template, error) {
	r.mu.RLock()
	tmpl, ok := r.templates[id]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	// A miss may be a template dropped on disk after startup (dev flow);
	// try loading it before giving up.
	path := filepath.FromSlash(id) + ".tmpl"
	if _, err := fs.Stat(r.source, path); err == nil {
		if err := r.load(path); err != nil {
			return nil, err
		}
		r.mu.RLock()
		tmpl = r.templates[id]
		r.mu.RUnlock()
		if tmpl != nil {
			return tmpl, nil
		}
	}

	return nil, fmt.Errorf("template not found: %s", id)
}

// Render resolves and executes in one step.
func (r *Registry) Render(id string, data any) (string, error) {
	tmpl, err := r.GetTemplate(id)
	if err != nil {
		return "", err
	}
	return tmpl.Render(data)
}

// List returns every loaded template ID.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) load(path string) error {
	id := strings.TrimSuffix(filepath.ToSlash(path), ".tmpl")

	content, err := fs.ReadFile(r.source, path)
	if err != nil {
		return fmt.Errorf("read template %s: %w", id, err)
	}

	parsed, err := template.New(id).Parse(string(content))
	if err != nil {
		return fmt.Errorf("parse template %s: %w", id, err)
	}

	r.mu.Lock()
	r.templates[id] = &Template{
		ID:      id,
		Path:    path,
		Content: string(content),
		parsed:  parsed,
	}
	r.mu.Unlock()

	return nil
}
