// Package execution maps job kinds to runnable work so callers of the HTTP
// surface can submit real units of work by name.
package execution

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// JobFunc executes one job. The payload is the raw request payload; the
// context is canceled only by cooperative cancellation.
type JobFunc func(ctx context.Context, payload string) error

type Runner struct {
	mu    sync.RWMutex
	kinds map[string]JobFunc
}

func NewRunner() *Runner {
	return &Runner{kinds: make(map[string]JobFunc)}
}

// Register binds a job kind to its implementation. Later registrations for the
// same kind replace earlier ones.
func (r *Runner) Register(kind string, fn JobFunc) error {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return fmt.Errorf("job kind is required")
	}
	if fn == nil {
		return fmt.Errorf("job func for %q is nil", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind] = fn
	return nil
}

// Resolve returns the JobFunc for a kind.
func (r *Runner) Resolve(kind string) (JobFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.kinds[strings.TrimSpace(kind)]
	return fn, ok
}

// Kinds lists the registered job kinds, sorted.
func (r *Runner) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.kinds))
	for kind := range r.kinds {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}
