package tool

import (
	"os"
	"sync"

	"github.com/fissio-dev/fissio/core"
)

// Registry maps tool names to Tool implementations. It is long-lived and
// shared across requests; construction is the only mutation point callers
// need outside of explicit Register calls, and reads never block on it.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// NewRegistryWithDefaults returns a registry pre-populated with the
// built-in tools this module ships: an HTTP fetch tool, registered
// unconditionally, and a web-search tool, registered only when
// TAVILY_API_KEY is set.
func NewRegistryWithDefaults() *Registry {
	r := NewRegistry()
	r.Register(NewFetchURLTool())
	if key := os.Getenv("TAVILY_API_KEY"); key != "" {
		r.Register(NewWebSearchTool(key))
	}
	return r
}

// Register adds t to the registry, replacing any existing tool with the
// same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the tool named name, or (nil, false) if not registered.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns every registered tool name, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Schemas returns the ToolSchema for every registered tool.
func (r *Registry) Schemas() []core.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]core.ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		schemas = append(schemas, Schema(t))
	}
	return schemas
}

// SchemasFor returns the ToolSchema for each name in names, silently
// skipping any name that isn't registered.
func (r *Registry) SchemasFor(names []string) []core.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]core.ToolSchema, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			schemas = append(schemas, Schema(t))
		}
	}
	return schemas
}
