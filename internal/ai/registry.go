package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a Completer for one backend. An empty model means the
// backend's configured default.
type Factory func(ctx context.Context, model string) (Completer, error)

// Registry resolves AI_PROVIDER names to completion backends.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalizeName(name)] = f
}

// Get builds the named backend. An unknown name is a configuration error
// listing what is registered.
func (r *Registry) Get(ctx context.Context, name, model string) (Completer, error) {
	key := normalizeName(name)
	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, &Error{
			Kind:     KindConfig,
			Provider: "registry",
			Detail:   fmt.Sprintf("unknown provider %q, registered: %s", key, strings.Join(r.Names(), ", ")),
		}
	}
	return f(ctx, model)
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
