package serving

import (
	"sync"

	"enferd/pkg/types"
)

// Registry is the single owned table of ModelHandles, indexed by id. Handles
// are immutable once added; everything else in the engine holds model ids and
// looks handles up here, never independent copies, so removal is the only
// place a handle can disappear.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*ModelHandle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*ModelHandle)}
}

// add inserts a handle, failing on id collision.
func (r *Registry) add(h *ModelHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[h.ID]; exists {
		return duplicateModelError{id: h.ID}
	}
	r.handles[h.ID] = h
	return nil
}

// Lookup returns the handle for id, or an unknown-model error.
func (r *Registry) Lookup(id string) (*ModelHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	if !ok {
		return nil, unknownModelError{id: id}
	}
	return h, nil
}

// remove deletes the handle and returns it for teardown by the caller.
// The caller (Engine.Unregister) is responsible for the drain-before-unload
// ordering: the session pool must confirm zero active leases first.
func (r *Registry) remove(id string) (*ModelHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	if !ok {
		return nil, unknownModelError{id: id}
	}
	delete(r.handles, id)
	return h, nil
}

// list returns descriptors for all registered models.
func (r *Registry) list() []types.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Model, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h.Model)
	}
	return out
}

func (r *Registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
