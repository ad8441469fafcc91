package scrub

import (
	"sync"

	"github.com/google/uuid"
)

// Request asks for the frame of ID at Timestamp seconds into Path.
type Request struct {
	ID        uuid.UUID
	Path      string
	Timestamp float64
	// Aspect selects the preview size; <= 0 decodes at native size.
	Aspect float64
}

// IsShutdown reports whether r is the shutdown sentinel.
func (r Request) IsShutdown() bool { return r.ID == uuid.Nil }

// Slot is a single-request mailbox with overwrite semantics.
type Slot struct {
	mu         sync.Mutex
	cond       *sync.Cond
	req        *Request
	sealed     bool
	superseded uint64
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	s := &Slot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Put stores r, replacing any request not yet taken, and wakes the
// consumer. Putting the shutdown sentinel seals the slot; later requests
// are dropped. It reports whether r was stored.
func (s *Slot) Put(r Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return false
	}
	if s.req != nil {
		s.superseded++
	}
	s.req = &r
	s.sealed = r.IsShutdown()
	s.cond.Signal()
	return true
}

// Close puts the shutdown sentinel, waking the consumer and sealing the
// slot. It is safe to call more than once.
func (s *Slot) Close() {
	s.Put(Request{ID: uuid.Nil})
}

// Take blocks until a request is available and returns it.
func (s *Slot) Take() Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.req == nil {
		s.cond.Wait()
	}
	r := *s.req
	s.req = nil
	return r
}

// Superseded counts requests overwritten before they were taken.
func (s *Slot) Superseded() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.superseded
}
