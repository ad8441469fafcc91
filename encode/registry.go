package encode

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Flag is a shared cancellation flag polled once per frame.
type Flag = atomic.Bool

// CancelRegistry tracks the cancel flag of every running job.
type CancelRegistry struct {
	mu      sync.Mutex
	flags   map[uuid.UUID]*Flag
	closing bool
}

// NewCancelRegistry returns an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{flags: make(map[uuid.UUID]*Flag)}
}

// Register creates the flag for a new job. It fails once CancelAll has
// run, or if the id is already registered.
func (r *CancelRegistry) Register(id uuid.UUID) (*Flag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closing {
		return nil, ErrShuttingDown
	}
	if _, ok := r.flags[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateJob, id)
	}
	f := new(Flag)
	r.flags[id] = f
	return f, nil
}

// Cancel sets the flag of a running job and reports whether it was found.
func (r *CancelRegistry) Cancel(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flags[id]
	if ok {
		f.Store(true)
	}
	return ok
}

// Done forgets a finished job.
func (r *CancelRegistry) Done(id uuid.UUID) {
	r.mu.Lock()
	delete(r.flags, id)
	r.mu.Unlock()
}

// CancelAll sets every flag and refuses further registrations.
func (r *CancelRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closing = true
	for _, f := range r.flags {
		f.Store(true)
	}
}

// Len returns the number of running jobs.
func (r *CancelRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flags)
}
