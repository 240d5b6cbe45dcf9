package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Document is one parsed configuration file: the global Config plus the raw
// event declarations, which are typed later by the event package.
type Document struct {
	Path   string
	Global *Config
	Events []map[string]any
}

// Parse decodes a configuration document. JSON is read through the YAML
// decoder, so YAML files are accepted as well.
func Parse(data []byte) (*Document, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	global := NewFromSchema(SchemaGlobal)
	if err := global.Load(raw); err != nil {
		return nil, err
	}
	doc := &Document{Global: global}
	for i, entry := range global.List("events") {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, &ValueError{
				Schema: SchemaGlobal,
				Name:   "events",
				Reason: fmt.Sprintf("entry %d must be an object, got %s", i, describe(entry)),
			}
		}
		doc.Events = append(doc.Events, m)
	}
	return doc, nil
}

// Loader reads a configuration file and watches it for changes.
type Loader struct {
	path     string
	logger   *slog.Logger
	mu       sync.RWMutex
	current  *Document
	onChange []func(*Document)
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{path: path, logger: logger}
	doc, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = doc
	return l, nil
}

// Path returns the file the Loader reads.
func (l *Loader) Path() string { return l.path }

// Document returns the latest successfully loaded document.
func (l *Loader) Document() *Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the file reloads successfully.
func (l *Loader) OnChange(fn func(*Document)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that reloads the file when it changes.
// A reload that fails to parse keeps the previous document.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						l.logger.Warn("config reload failed, keeping previous config", "path", l.path, "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.logger.Warn("config watcher error", "path", l.path, "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload forces an immediate re-read of the file.
func (l *Loader) Reload() (*Document, error) {
	doc, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = doc
	callbacks := make([]func(*Document), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(doc)
	}
	return doc, nil
}

func (l *Loader) load() (*Document, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", l.path, err)
	}
	doc.Path = l.path
	return doc, nil
}
