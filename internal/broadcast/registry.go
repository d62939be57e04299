package broadcast

import (
	"errors"
	"sync"
)

// ErrAlreadyActive rejects a broadcast start while the same operator still
// has a batch in flight. Callers surface this to the operator; they must not
// retry automatically.
var ErrAlreadyActive = errors.New("broadcast already active for this operator")

// ErrNoActiveBatch is returned by control operations when the operator has no
// batch in flight.
var ErrNoActiveBatch = errors.New("no active broadcast for this operator")

// Registry maps initiating operators to their in-flight batch. It enforces
// one active batch per operator and is the mechanism through which
// pause/resume/stop reach the delivery loop.
type Registry struct {
	mu     sync.Mutex
	active map[int64]*BatchState
}

func NewRegistry() *Registry {
	return &Registry{active: map[int64]*BatchState{}}
}

// Begin registers the batch, failing with ErrAlreadyActive if a prior batch
// for the same operator has not reached a terminal state. There is no
// supersede path: the operator has to stop the old batch first.
func (r *Registry) Begin(operatorID int64, b *BatchState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[operatorID]; ok {
		return ErrAlreadyActive
	}
	r.active[operatorID] = b
	return nil
}

func (r *Registry) Get(operatorID int64) (*BatchState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.active[operatorID]
	return b, ok
}

// End removes the operator's batch. Called on any terminal transition.
func (r *Registry) End(operatorID int64) {
	r.mu.Lock()
	delete(r.active, operatorID)
	r.mu.Unlock()
}

// Pause suspends the operator's in-flight batch at the next iteration boundary.
func (r *Registry) Pause(operatorID int64) error {
	return r.control(operatorID, (*BatchState).pause)
}

// Resume clears a pause.
func (r *Registry) Resume(operatorID int64) error {
	return r.control(operatorID, (*BatchState).resume)
}

// Stop terminates the batch at the next iteration boundary. Idempotent;
// a stopped batch never resumes.
func (r *Registry) Stop(operatorID int64) error {
	return r.control(operatorID, (*BatchState).stop)
}

func (r *Registry) control(operatorID int64, fn func(*BatchState)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.active[operatorID]
	if !ok {
		return ErrNoActiveBatch
	}
	fn(b)
	return nil
}

// Active reports how many batches are currently in flight (all operators).
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
