// Package delivery routes finished responses to the frontend that owns a
// thread, keyed by thread ID prefix.
package delivery

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rubenqba/llm-assistant-api/internal/types"
)

// Handler delivers formatted message segments to the thread's frontend.
type Handler func(thread types.ThreadID, segments []string) error

// Registry routes messages to the appropriate delivery handler based on
// thread ID prefix (e.g. "telegram:", "sms:").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for thread IDs starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver finds the handler matching the thread ID prefix and calls it.
// Returns an error if no handler is registered for the prefix.
func (r *Registry) Deliver(thread types.ThreadID, segments []string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for prefix, handler := range r.handlers {
		if strings.HasPrefix(string(thread), prefix) {
			return handler(thread, segments)
		}
	}
	return fmt.Errorf("no delivery handler for thread: %s", thread)
}
