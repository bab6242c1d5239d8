package supervisor

import "sync"

// registry is the one shared mutable structure of the supervisor: a mapping
// from task name to handle, safe for concurrent insert/remove/iterate. A name
// is present iff a handle was registered and not yet evicted.
type registry struct {
	mu      sync.RWMutex
	entries map[string]*Handle
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*Handle)}
}

// TryInsert inserts the handle iff the name is absent. It never overwrites.
func (r *registry) TryInsert(name string, h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return false
	}
	r.entries[name] = h
	return true
}

func (r *registry) Remove(name string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	delete(r.entries, name)
	return h, true
}

func (r *registry) Get(name string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[name]
	return h, ok
}

// SnapshotKeys returns a point-in-time copy of the current names so iteration
// is never invalidated by concurrent inserts or removals.
func (r *registry) SnapshotKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for name := range r.entries {
		keys = append(keys, name)
	}
	return keys
}

func (r *registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
