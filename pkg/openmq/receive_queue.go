package openmq

import (
	"sync"
	"time"

	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/packet"
)

// ReceiveQueue is the FIFO of inbound packets for one consumer (or, for an
// async session, the session-wide queue). States: open-running,
// open-stopped, closed. Stop pauses delivery without dropping; Close is
// terminal and wakes every waiter.
type ReceiveQueue struct {
	mu      sync.Mutex
	items   []*packet.Packet
	stopped bool
	closed  bool

	// wake is replaced each time the queue state changes; waiters select
	// on the generation they observed.
	wake chan struct{}

	// inFlight counts dequeued packets whose receive has not completed,
	// for session flow-control accounting.
	inFlight int

	// onEnqueue is the consumer's message-arrived observer; it may invoke
	// a user callback.
	onEnqueue func()
}

// NewReceiveQueue returns an open, running queue.
func NewReceiveQueue() *ReceiveQueue {
	return &ReceiveQueue{wake: make(chan struct{})}
}

func (q *ReceiveQueue) wakeAllLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}

// setEnqueueObserver installs the message-arrived callback.
func (q *ReceiveQueue) setEnqueueObserver(fn func()) {
	q.mu.Lock()
	q.onEnqueue = fn
	q.mu.Unlock()
}

// Enqueue appends a packet. Waiters are notified unless the queue is
// stopped; the observer runs outside the queue lock.
func (q *ReceiveQueue) Enqueue(p *packet.Packet) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, p)
	var observer func()
	if !q.stopped {
		q.wakeAllLocked()
		observer = q.onEnqueue
	}
	q.mu.Unlock()

	if observer != nil {
		observer()
	}
}

// DequeueWait removes the oldest packet, blocking up to timeout. It returns
// nil when the timeout expires or the queue closes; the caller distinguishes
// the two via IsClosed. Timeout accounting is cumulative against the
// monotonic clock, so a spurious wake never reports an early timeout.
func (q *ReceiveQueue) DequeueWait(timeout time.Duration) *packet.Packet {
	start := time.Now()
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil
		}
		if !q.stopped && len(q.items) > 0 {
			p := q.items[0]
			q.items = q.items[1:]
			q.inFlight++
			q.mu.Unlock()
			return p
		}
		if timeout == NoWait {
			q.mu.Unlock()
			return nil
		}
		wake := q.wake
		q.mu.Unlock()

		if timeout == NoTimeout {
			<-wake
			continue
		}

		remaining := timeout - time.Since(start)
		if remaining <= 0 {
			return nil
		}
		timer := time.NewTimer(remaining)
		select {
		case <-wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Stop gates delivery; queued packets are retained.
func (q *ReceiveQueue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
}

// Start reopens the gate and wakes waiters.
func (q *ReceiveQueue) Start() {
	q.mu.Lock()
	if !q.closed && q.stopped {
		q.stopped = false
		q.wakeAllLocked()
	}
	q.mu.Unlock()
}

// Close marks the queue closed and wakes every waiter. When drain is set
// the remaining packets are removed and returned. Close is idempotent.
func (q *ReceiveQueue) Close(drain bool) []*packet.Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.wakeAllLocked()
	}
	if !drain {
		return nil
	}
	drained := q.items
	q.items = nil
	return drained
}

// IsClosed reports whether Close has run.
func (q *ReceiveQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// IsStopped reports whether delivery is gated.
func (q *ReceiveQueue) IsStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// IsEmpty reports whether no packets are queued.
func (q *ReceiveQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Size reports the number of queued packets.
func (q *ReceiveQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// ReceiveDone marks one in-flight receive as finished.
func (q *ReceiveQueue) ReceiveDone() {
	q.mu.Lock()
	if q.inFlight > 0 {
		q.inFlight--
	}
	q.mu.Unlock()
}

// InFlight reports receives started but not yet completed.
func (q *ReceiveQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// forEach visits every queued packet under the queue lock. Used by recover
// and rollback to flag redelivery.
func (q *ReceiveQueue) forEach(fn func(*packet.Packet)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.items {
		fn(p)
	}
}
