// internal/registry/registry.go
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/SyedDaiam9101/crop-disease-service/internal/inference"
	"github.com/SyedDaiam9101/crop-disease-service/internal/preprocess"
)

var (
	// ErrConfigNotFound means the model config file does not exist.
	ErrConfigNotFound = errors.New("model config file not found")
	// ErrNoModelsLoaded means no config entry produced a usable model.
	ErrNoModelsLoaded = errors.New("no models loaded, check paths in model config")
)

// Entry is one loaded model. Entries are immutable once built.
type Entry struct {
	Key        string
	Engine     inference.Engine
	Labels     []string
	TargetSize preprocess.Size
}

// Registry maps model keys to loaded entries. It is read-only after
// construction and safe to share between goroutines.
type Registry struct {
	entries map[string]*Entry
}

// New builds a registry from already loaded entries.
func New(entries ...*Entry) (*Registry, error) {
	if len(entries) == 0 {
		return nil, ErrNoModelsLoaded
	}
	m := make(map[string]*Entry, len(entries))
	for _, e := range entries {
		if _, dup := m[e.Key]; dup {
			return nil, fmt.Errorf("duplicate model key %q", e.Key)
		}
		m[e.Key] = e
	}
	return &Registry{entries: m}, nil
}

// Get returns the entry for key.
func (r *Registry) Get(key string) (*Entry, bool) {
	e, ok := r.entries[key]
	return e, ok
}

// Keys returns the loaded model keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of loaded models.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Close closes every engine and then tears down the ONNX Runtime
// environment. The first error is returned but all engines are closed
// regardless.
func (r *Registry) Close() error {
	var first error
	for _, key := range r.Keys() {
		if err := r.entries[key].Engine.Close(); err != nil && first == nil {
			first = fmt.Errorf("failed to close model %q: %w", key, err)
		}
	}
	if err := inference.DestroyEnvironment(); err != nil && first == nil {
		first = fmt.Errorf("failed to destroy ONNX environment: %w", err)
	}
	return first
}
