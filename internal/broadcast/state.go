package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	kit "supportbot/internal/transport"
)

// BatchState is the mutable state of one in-flight broadcast.
//
// Ownership: counters are written only by the delivery loop that owns the
// batch; paused/stopped are written only by control operations and read by
// the loop at iteration boundaries. stopped is one-way (false -> true).
type BatchState struct {
	OperatorID int64
	Payload    Payload
	Recipients []int64
	StartedAt  time.Time

	paused  atomic.Bool
	stopped atomic.Bool

	// ctrlMsg is the live progress message edited in place; zero when the
	// initial send failed. Guarded by mu: it is assigned while the batch is
	// already visible through the registry.
	mu      sync.Mutex
	ctrlMsg kit.MessageRef
	sent    int
	failed  int
}

// Snapshot is a consistent point-in-time view of batch progress.
type Snapshot struct {
	Sent    int
	Failed  int
	Total   int
	Paused  bool
	Stopped bool
}

func NewBatch(operatorID int64, payload Payload, recipients []int64) *BatchState {
	return &BatchState{
		OperatorID: operatorID,
		Payload:    payload,
		Recipients: recipients,
		StartedAt:  time.Now(),
	}
}

func (b *BatchState) Snapshot() Snapshot {
	b.mu.Lock()
	sent, failed := b.sent, b.failed
	b.mu.Unlock()
	return Snapshot{
		Sent:    sent,
		Failed:  failed,
		Total:   len(b.Recipients),
		Paused:  b.paused.Load(),
		Stopped: b.stopped.Load(),
	}
}

// ControlMsg returns the live progress message ref (zero when the initial
// send failed).
func (b *BatchState) ControlMsg() kit.MessageRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctrlMsg
}

func (b *BatchState) setControlMsg(ref kit.MessageRef) {
	b.mu.Lock()
	b.ctrlMsg = ref
	b.mu.Unlock()
}

func (b *BatchState) markSent() {
	b.mu.Lock()
	b.sent++
	b.mu.Unlock()
}

func (b *BatchState) markFailed() {
	b.mu.Lock()
	b.failed++
	b.mu.Unlock()
}

func (b *BatchState) Paused() bool  { return b.paused.Load() }
func (b *BatchState) Stopped() bool { return b.stopped.Load() }

func (b *BatchState) pause()  { b.paused.Store(true) }
func (b *BatchState) resume() { b.paused.Store(false) }
func (b *BatchState) stop()   { b.stopped.Store(true) }
