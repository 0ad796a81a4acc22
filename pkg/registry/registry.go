// Package registry maps node type names to handler functions.
package registry

import (
	"log/slog"
	"sync"

	"github.com/pathwayhq/pathway/pkg/protocol"
)

// Registry resolves node types to handlers. Registration is expected during
// setup; it is guarded for convenience but steady-state executions treat
// the registry as read-only.
type Registry struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	handlers map[string]protocol.NodeHandler
	schemas  map[string]map[string]any
}

// NewRegistry creates a registry with the built-in handlers resolvable.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		handlers: make(map[string]protocol.NodeHandler),
		schemas:  make(map[string]map[string]any),
	}
}

// Register binds a handler to a node type. Re-registration replaces
// silently: last registration wins. Built-ins can be overridden the same
// way.
func (r *Registry) Register(nodeType string, handler protocol.NodeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[nodeType]; exists && r.logger != nil {
		r.logger.Debug("Replacing node handler", "node_type", nodeType)
	}

	r.handlers[nodeType] = handler
}

// Resolve returns the handler for a node type. Lookup order: explicit
// registrations, then built-ins, then the pass-through handler. Unknown
// types never fail; pass-through keeps the engine tolerant of graphs that
// reference node types this build does not implement yet.
func (r *Registry) Resolve(nodeType string) protocol.NodeHandler {
	r.mu.RLock()
	handler, ok := r.handlers[nodeType]
	r.mu.RUnlock()

	if ok {
		return handler
	}

	if builtin, ok := builtinHandlers[nodeType]; ok {
		return builtin
	}

	return Passthrough
}

// Registered reports whether a handler (explicit or built-in) exists for
// the type.
func (r *Registry) Registered(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.handlers[nodeType]; ok {
		return true
	}

	_, ok := builtinHandlers[nodeType]

	return ok
}
