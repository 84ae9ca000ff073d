package openmq

import (
	"sync"

	"github.com/chris-alexander-pop/openmq-client/pkg/errors"
	"github.com/chris-alexander-pop/openmq-client/pkg/logger"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/packet"
)

// flowState classifies a producer's position against its send window.
type flowState int

const (
	underLimit flowState = iota
	onLimit
	overLimit
)

// producerFlow accounts the broker-granted send credit for one registered
// producer. Senders block while the window is exhausted and are woken by a
// resume-flow from the read channel or by close.
type producerFlow struct {
	mu   sync.Mutex
	cond *sync.Cond

	producerID int64

	// chunkSize is the message-count credit; negative means unbounded.
	// chunkBytes is the byte credit granted alongside it.
	chunkSize  int32
	chunkBytes int64
	sentCount  int32

	// references counts in-progress sends plus the owning connection;
	// guarded by the connection's flow-table lock, not this mutex.
	references int

	closed      bool
	closeReason error
}

func newProducerFlow(producerID int64, chunkBytes int64, chunkSize int32) *producerFlow {
	f := &producerFlow{
		producerID: producerID,
		chunkBytes: chunkBytes,
		chunkSize:  chunkSize,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// checkFlowLimit classifies the current position. Caller holds f.mu.
func (f *producerFlow) checkFlowLimit() flowState {
	if f.chunkSize < 0 {
		return underLimit
	}
	if f.sentCount >= f.chunkSize {
		return overLimit
	}
	if f.sentCount == f.chunkSize-1 {
		return onLimit
	}
	return underLimit
}

// checkFlowControl blocks until the window admits one more message, then
// stamps the packet with the producer id and, on the last message of the
// chunk, the consumer-flow bit the broker uses to schedule a resume-flow.
func (f *producerFlow) checkFlowControl(p *packet.Packet) error {
	f.mu.Lock()
	state := f.checkFlowLimit()
	for !f.closed && state == overLimit {
		logger.L().Debug("producer flow over limit, waiting",
			"producer_id", f.producerID, "chunk_size", f.chunkSize, "sent", f.sentCount)
		f.cond.Wait()
		state = f.checkFlowLimit()
	}
	if f.closed {
		reason := f.closeReason
		f.mu.Unlock()
		return reason
	}

	p.ProducerID = f.producerID
	p.SetFlag(packet.FlagConsumerFlow, state == onLimit)
	f.sentCount++
	f.mu.Unlock()
	return nil
}

// resumeFlow installs fresh credit and wakes blocked senders. Called only
// from the read-channel goroutine.
func (f *producerFlow) resumeFlow(chunkBytes int64, chunkSize int32) {
	f.mu.Lock()
	f.chunkBytes = chunkBytes
	f.chunkSize = chunkSize
	f.sentCount = 0
	f.cond.Broadcast()
	f.mu.Unlock()
}

// close marks the flow dead and wakes every blocked sender with reason.
func (f *producerFlow) close(reason error) {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		f.closeReason = reason
	}
	f.cond.Broadcast()
	f.mu.Unlock()
}

// acquireReference and releaseReference are called only under the
// connection's flow-table lock.

func (f *producerFlow) acquireReference() error {
	if f.closed {
		return f.closeReason
	}
	f.references++
	return nil
}

// releaseReference reports whether the flow is now destroyable: closed as
// producer-closed with no remaining references.
func (f *producerFlow) releaseReference() bool {
	if f.references > 0 {
		f.references--
	}
	return f.references == 0 && f.closed && errors.Is(f.closeReason, ErrProducerClosed)
}
