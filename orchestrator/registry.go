package orchestrator

import (
	"sync"
	"time"
)

// State of a product's extraction as seen by this process.
type State string

const (
	StateNotRequested State = "not_requested"
	StateQueued       State = "queued"
	StateRunning      State = "running"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
)

// Status is the current extraction status for one product.
type Status struct {
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// registry tracks in-process extraction status. It is deliberately not
// durable: after a restart the queue table and the metadata table carry
// enough truth to reconstruct queued/succeeded, and a running state that
// did not survive the process was not running anyway.
type registry struct {
	mu     sync.Mutex
	states map[int64]Status
}

func newRegistry() *registry {
	return &registry{states: make(map[int64]Status)}
}

func (r *registry) set(productID int64, state State, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[productID] = Status{State: state, Error: errMsg, UpdatedAt: time.Now()}
}

func (r *registry) get(productID int64) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[productID]
	return s, ok
}

// isRunning is the mutual-exclusion check used by trigger decisions.
func (r *registry) isRunning(productID int64) bool {
	s, ok := r.get(productID)
	return ok && s.State == StateRunning
}
