package openmq

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chris-alexander-pop/openmq-client/pkg/errors"
	"github.com/chris-alexander-pop/openmq-client/pkg/logger"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/packet"
)

// MessageListener handles one asynchronously delivered message. A non-nil
// return (or a panic) counts as a delivery failure and drives the
// redelivery rules of the session ack mode.
type MessageListener func(msg *Message) error

// Consumer is a receiving endpoint on a session. Sync consumers own a
// receive queue drained by Receive calls; async consumers are driven by the
// session dispatch goroutine.
type Consumer struct {
	session *Session

	// dest is a private clone of the subscription destination.
	dest *Destination

	durable          bool
	shared           bool
	noLocal          bool
	subscriptionName string
	selector         string

	receiveMode ReceiveMode
	listener    MessageListener

	consumerID uint64
	registered bool

	queue *ReceiveQueue // sync mode only

	mu               sync.Mutex
	closed           bool
	arrivedCallback  func()
	hasLastDelivered bool
	lastDelivered    packet.SysMessageID

	prefetchMaxMsgCount      int32
	prefetchThresholdPercent float64

	// isDMQ marks a consumer bound to the dead message queue; it sees
	// expired messages as ordinary ones.
	isDMQ bool
}

// newConsumer validates the subscription parameters and builds the
// consumer. Registration with the broker happens in Session.CreateConsumer.
func newConsumer(s *Session, dest *Destination, opts ConsumerOptions) (*Consumer, error) {
	if dest == nil {
		return nil, ErrNullArg
	}
	if opts.Durable && opts.SubscriptionName == "" {
		return nil, ErrNoDurableName
	}
	if opts.Shared && opts.SubscriptionName == "" {
		return nil, ErrNoSubscriptionName
	}

	noLocal := opts.NoLocal
	if dest.IsQueue() {
		// noLocal has no meaning on queues.
		noLocal = false
	} else {
		if opts.Shared && noLocal {
			return nil, ErrUnsupportedArgument
		}
		if opts.Durable && noLocal && s.conn.ClientID() == "" {
			return nil, ErrNoLocalDurableNoClientID
		}
	}

	if s.receiveMode == AsyncReceive && opts.Listener == nil {
		return nil, ErrNotSyncReceiveMode
	}
	if s.receiveMode == SyncReceive && opts.Listener != nil {
		return nil, ErrNotAsyncReceiveMode
	}

	if dest.IsTemporary() {
		name := dest.Name()
		if name == "" {
			return nil, ErrDestinationNoName
		}
		prefix := s.conn.temporaryDestinationPrefix(dest.Kind())
		if !strings.HasPrefix(name, prefix) {
			return nil, ErrTempDestNotInConnection
		}
	}

	clone := dest.Clone()
	if clone == nil {
		if err := dest.initializationError(); err != nil {
			return nil, err
		}
		return nil, ErrDestinationNoName
	}

	c := &Consumer{
		session:                  s,
		dest:                     clone,
		durable:                  opts.Durable,
		shared:                   opts.Shared,
		noLocal:                  noLocal,
		subscriptionName:         opts.SubscriptionName,
		selector:                 opts.Selector,
		receiveMode:              s.receiveMode,
		listener:                 opts.Listener,
		prefetchMaxMsgCount:      s.conn.cfg.PrefetchMaxMsgCount,
		prefetchThresholdPercent: s.conn.cfg.PrefetchThresholdPercent,
		isDMQ:                    clone.Name() == dmqDestinationName,
	}

	if c.receiveMode == SyncReceive {
		c.queue = NewReceiveQueue()
		c.queue.setEnqueueObserver(c.messageEnqueued)
	}
	return c, nil
}

func (c *Consumer) setConsumerID(id uint64) {
	c.consumerID = id
	c.registered = true
}

// ConsumerID returns the broker-assigned consumer id.
func (c *Consumer) ConsumerID() uint64 {
	return c.consumerID
}

// Destination returns the consumer's subscription destination clone.
func (c *Consumer) Destination() *Destination {
	return c.dest
}

// IsDurable reports whether the subscription is durable.
func (c *Consumer) IsDurable() bool {
	return c.durable
}

// IsShared reports whether the subscription is shared.
func (c *Consumer) IsShared() bool {
	return c.shared
}

// Selector returns the message selector, empty when none.
func (c *Consumer) Selector() string {
	return c.selector
}

func (c *Consumer) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SetMessageArrivedCallback installs a callback run whenever a packet is
// enqueued for this consumer. Sync mode only.
func (c *Consumer) SetMessageArrivedCallback(fn func()) error {
	if c.receiveMode != SyncReceive {
		return ErrNotSyncReceiveMode
	}
	c.mu.Lock()
	c.arrivedCallback = fn
	c.mu.Unlock()
	return nil
}

// messageEnqueued is the receive queue's observer.
func (c *Consumer) messageEnqueued() {
	c.mu.Lock()
	fn := c.arrivedCallback
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// enqueuePacket routes an inbound packet from the read channel: to this
// consumer's queue in sync mode, to the session queue in async mode.
func (c *Consumer) enqueuePacket(p *packet.Packet) {
	if c.receiveMode == SyncReceive {
		c.queue.Enqueue(p)
		return
	}
	c.session.sessionQueue.Enqueue(p)
}

// Receive blocks until a message arrives or the consumer closes.
func (c *Consumer) Receive() (*Message, error) {
	return c.receive(NoTimeout)
}

// ReceiveNoWait returns the next message, or ErrNoMessage when none is
// queued.
func (c *Consumer) ReceiveNoWait() (*Message, error) {
	return c.receive(NoWait)
}

// ReceiveTimeout blocks up to timeout for the next message.
func (c *Consumer) ReceiveTimeout(timeout time.Duration) (*Message, error) {
	return c.receive(timeout)
}

func (c *Consumer) receive(timeout time.Duration) (*Message, error) {
	if !c.registered {
		return nil, ErrConsumerNotInit
	}
	if c.receiveMode != SyncReceive {
		return nil, ErrNotSyncReceiveMode
	}

	for {
		if c.isClosed() {
			return nil, ErrConsumerClosed
		}

		p := c.queue.DequeueWait(timeout)
		if p == nil {
			switch {
			case timeout == NoWait:
				return nil, ErrNoMessage
			case c.queue.IsClosed():
				return nil, ErrConsumerClosed
			case timeout != NoTimeout:
				return nil, ErrTimeoutExpired
			default:
				logger.L().Warn("receive failed without close or timeout",
					"consumer_id", c.consumerID)
				return nil, ErrConsumerException
			}
		}

		msg := messageFromPacket(p)
		if msg == nil {
			c.session.messageDelivered()
			c.queue.ReceiveDone()
			return nil, errors.Wrap(ErrInvalidPacket,
				fmt.Sprintf("unsupported message packet type %d", p.PType))
		}

		// Expired messages are acked as such and skipped, unless this is
		// the dead-message-queue consumer.
		if !c.isDMQ && msg.IsExpired() {
			if err := c.session.acknowledgeExpired(msg); err != nil {
				c.session.messageDelivered()
				c.queue.ReceiveDone()
				return nil, err
			}
			c.session.messageDelivered()
			c.queue.ReceiveDone()
			continue
		}

		c.recordDelivered(msg)
		msg.setSession(c.session)
		if err := c.session.acknowledge(msg, false); err != nil {
			c.session.messageDelivered()
			c.queue.ReceiveDone()
			return nil, err
		}

		c.session.messageDelivered()
		c.queue.ReceiveDone()
		return msg, nil
	}
}

func (c *Consumer) recordDelivered(msg *Message) {
	c.mu.Lock()
	c.hasLastDelivered = true
	c.lastDelivered = msg.SystemMessageID()
	c.mu.Unlock()
}

// onMessage delivers one message on the session dispatch goroutine.
func (c *Consumer) onMessage(msg *Message) error {
	if c.isClosed() {
		return ErrConsumerClosed
	}

	if !c.isDMQ && msg.IsExpired() {
		if err := c.session.acknowledgeExpired(msg); err != nil {
			logger.L().Warn("expiring message before async delivery failed",
				"consumer_id", c.consumerID, "error", err)
			return err
		}
		return nil
	}

	if c.session.IsXA() && c.session.beforeDelivery != nil {
		if err := c.session.beforeDelivery(msg); err != nil {
			c.afterDelivery(msg, err)
			return err
		}
	}

	msg.setSession(c.session)
	err := c.invokeListener(msg)
	c.recordDelivered(msg)

	if err == nil {
		ackErr := c.session.acknowledge(msg, true)
		c.afterDelivery(msg, ackErr)
		return ackErr
	}

	logger.L().Warn("message listener failed",
		"consumer_id", c.consumerID, "sys_id", msg.SystemMessageID().String(), "error", err)

	// AUTO and DUPS_OK retry the listener once with the redelivered flag
	// before giving up on the message.
	if c.session.AckMode() == AutoAcknowledge || c.session.AckMode() == DupsOKAcknowledge {
		msg.setRedelivered(true)
		err = c.invokeListener(msg)
		if err == nil {
			ackErr := c.session.acknowledge(msg, true)
			c.afterDelivery(msg, ackErr)
			return ackErr
		}
		c.afterDelivery(msg, err)
		return err
	}

	// Other ack modes acknowledge anyway so the broker can move on; the
	// listener failure surfaces as a callback error unless the ack itself
	// fails.
	ackErr := c.session.acknowledge(msg, true)
	if ackErr != nil {
		logger.L().Error("acknowledge after listener failure also failed",
			"consumer_id", c.consumerID, "error", ackErr)
		err = ackErr
	} else if !errors.Is(err, ErrCallbackRuntime) {
		err = errors.NewStatus(ErrCallbackRuntime.Code, ErrCallbackRuntime.Status,
			ErrCallbackRuntime.Message, err)
	}
	c.afterDelivery(msg, err)
	return err
}

func (c *Consumer) afterDelivery(msg *Message, deliveryErr error) {
	if c.session.IsXA() && c.session.afterDelivery != nil {
		c.session.afterDelivery(msg, deliveryErr)
	}
}

// invokeListener runs the user listener, converting a panic into a
// callback error so the dispatch goroutine survives.
func (c *Consumer) invokeListener(msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewStatus(ErrCallbackRuntime.Code, ErrCallbackRuntime.Status,
				fmt.Sprintf("listener panic: %v", r), nil)
		}
	}()
	return c.listener(msg)
}

// Close closes the consumer through its session.
func (c *Consumer) Close() error {
	return c.session.CloseConsumer(c)
}

// start is driven by the session.
func (c *Consumer) start() {
	if c.queue != nil {
		c.queue.Start()
	}
}

// stop is driven by the session.
func (c *Consumer) stop() {
	if c.queue != nil {
		c.queue.Stop()
	}
}

// close marks the consumer closed and wakes blocked receivers. Idempotent;
// called only from the session.
func (c *Consumer) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	if c.queue != nil {
		c.queue.Stop()
		c.queue.Close(true)
	}
}

// markClosed is the exception path: wake waiters without broker calls.
func (c *Consumer) markClosed() {
	c.close()
}
