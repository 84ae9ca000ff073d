package openmq

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chris-alexander-pop/openmq-client/pkg/errors"
	"github.com/chris-alexander-pop/openmq-client/pkg/logger"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/status"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/transport"
)

// ExceptionListener receives the fatal error that closed a connection. It
// is invoked at most once, from its own goroutine, never from the read
// channel itself.
type ExceptionListener func(err error)

// Connection owns the transport, the protocol handshake state, the
// background read channel, and the sessions created from it.
type Connection struct {
	cfg      ConnectionConfig
	username string
	password string
	clientID string

	exceptionListener ExceptionListener

	t     transport.Transport
	proto *protocolHandler

	// brokerConnectionID is assigned by the broker during the hello
	// exchange; localID scopes this connection's temporary destinations.
	brokerConnectionID int64
	localID            string

	mu        sync.Mutex
	sessions  map[int64]*Session
	consumers map[uint64]*Consumer
	flows     map[int64]*producerFlow
	tempDests map[string]*Destination
	tempSeq   int64

	started bool
	closing bool
	closed  bool

	exceptionOnce sync.Once

	eg           *errgroup.Group
	stopPing     chan struct{}
	stopPingOnce sync.Once

	// Consumer-side flow control: the broker pauses its push when the
	// client falls behind; the client resumes once enough deliveries
	// complete.
	flowPaused atomic.Bool
	metadata   Metadata
}

// ConnectOption customizes a connection before the handshake runs.
type ConnectOption func(*Connection)

// WithCredentials sets the username and password for authentication.
func WithCredentials(username, password string) ConnectOption {
	return func(c *Connection) {
		c.username = username
		c.password = password
	}
}

// WithClientID sets the stable client identity required for durable
// subscriptions.
func WithClientID(clientID string) ConnectOption {
	return func(c *Connection) {
		c.clientID = clientID
	}
}

// WithExceptionListener installs the listener run when the connection fails.
func WithExceptionListener(l ExceptionListener) ConnectOption {
	return func(c *Connection) {
		c.exceptionListener = l
	}
}

// withTransport substitutes an already-open transport, bypassing the
// dialer. Used by tests.
func withTransport(t transport.Transport) ConnectOption {
	return func(c *Connection) {
		c.t = t
	}
}

// Connect opens a connection to the broker: dial (with retry), start the
// read channel, hello, authenticate, optional set-client-id, then start the
// ping loop.
func Connect(cfg ConnectionConfig, opts ...ConnectOption) (*Connection, error) {
	cfg.normalize()

	c := &Connection{
		cfg:       cfg,
		localID:   uuid.NewString(),
		sessions:  make(map[int64]*Session),
		consumers: make(map[uint64]*Consumer),
		flows:     make(map[int64]*producerFlow),
		tempDests: make(map[string]*Destination),
		stopPing:  make(chan struct{}),
		metadata:  defaultMetadata(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.t == nil {
		t, err := c.dial()
		if err != nil {
			return nil, err
		}
		c.t = t
	}
	c.proto = newProtocolHandler(c.t, cfg.AckTimeout)

	// The read channel must run before the handshake: hello itself is a
	// request/reply exchange.
	c.eg = &errgroup.Group{}
	c.eg.Go(c.readChannel)

	if err := c.handshake(); err != nil {
		c.teardown(err)
		return nil, err
	}

	if cfg.PingInterval > 0 {
		c.eg.Go(c.pingLoop)
	}

	logger.L().Info("broker connection established",
		"host", cfg.Host, "port", cfg.Port, "connection_id", c.brokerConnectionID)
	return c, nil
}

func (c *Connection) dial() (transport.Transport, error) {
	var t transport.Transport
	operation := func() error {
		var err error
		switch c.cfg.Transport {
		case "tcp":
			t, err = transport.Dial(c.cfg.Host, c.cfg.Port, c.cfg.DialTimeout)
		case "tls":
			t, err = transport.DialTLS(c.cfg.Host, c.cfg.Port, c.cfg.DialTimeout, c.cfg.BrokerHostTrusted)
		default:
			return backoff.Permanent(ErrUnsupportedTranspt)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.ConnectBackoff
	if err := backoff.Retry(operation, backoff.WithMaxRetries(policy, uint64(c.cfg.ConnectRetries))); err != nil {
		if errors.Is(err, ErrUnsupportedTranspt) {
			return nil, ErrUnsupportedTranspt
		}
		return nil, errors.NewStatus(ErrCouldNotConnect.Code, ErrCouldNotConnect.Status,
			fmt.Sprintf("could not connect to %s:%d", c.cfg.Host, c.cfg.Port), err)
	}
	return t, nil
}

func (c *Connection) handshake() error {
	id, err := c.proto.hello(c.metadata.ProviderVersion)
	if err != nil {
		return err
	}
	c.brokerConnectionID = id
	if err := c.proto.authenticate(c.username, c.password); err != nil {
		return err
	}
	if c.clientID != "" {
		if err := c.proto.setClientID(c.clientID); err != nil {
			return err
		}
	}
	return nil
}

// ClientID returns the client identity, empty when none was set.
func (c *Connection) ClientID() string {
	return c.clientID
}

// Metadata describes the provider behind this connection.
func (c *Connection) Metadata() Metadata {
	return c.metadata
}

// IsClosed reports whether the connection has shut down.
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.closing {
		return ErrConnectionClosedState
	}
	return nil
}

// Start begins (or resumes) inbound message delivery.
func (c *Connection) Start() error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.mu.Lock()
	c.started = true
	sessions := snapshotSessions(c.sessions)
	c.mu.Unlock()

	if err := c.proto.start(0); err != nil {
		return err
	}
	for _, s := range sessions {
		s.start()
	}
	return nil
}

// Stop pauses inbound delivery. Messages already queued stay queued.
func (c *Connection) Stop() error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.mu.Lock()
	c.started = false
	sessions := snapshotSessions(c.sessions)
	c.mu.Unlock()

	for _, s := range sessions {
		s.stop()
	}
	return c.proto.stop(0)
}

// Close shuts the connection down: every session (and its consumers and
// producers) is closed leaf-first, the broker gets a goodbye, and all
// blocked callers wake with a closed error. Close is idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed || c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	sessions := snapshotSessions(c.sessions)
	tempDests := make([]*Destination, 0, len(c.tempDests))
	for _, d := range c.tempDests {
		tempDests = append(tempDests, d)
	}
	c.mu.Unlock()

	for _, s := range sessions {
		if err := s.closeInternal(true); err != nil {
			logger.L().Warn("closing session failed", "session_id", s.id, "error", err)
		}
	}
	for _, d := range tempDests {
		if err := c.proto.destroyDestination(d); err != nil {
			logger.L().Debug("destroying temporary destination failed",
				"destination", d.Name(), "error", err)
		}
	}

	if err := c.proto.goodbye(false); err != nil {
		logger.L().Debug("goodbye failed", "error", err)
	}
	c.teardown(nil)
	logger.L().Info("broker connection closed", "connection_id", c.brokerConnectionID)
	return nil
}

// teardown releases the transport and background goroutines.
func (c *Connection) teardown(reason error) {
	c.mu.Lock()
	c.closed = true
	flows := c.flows
	c.flows = make(map[int64]*producerFlow)
	c.mu.Unlock()

	closeReason := reason
	if closeReason == nil {
		closeReason = ErrConnectionClosedState
	}
	for _, f := range flows {
		f.close(closeReason)
	}

	c.proto.shutdown(closeReason)
	c.stopPingOnce.Do(func() { close(c.stopPing) })
	_ = c.t.Close()
	_ = c.eg.Wait()
}

// onException handles a fatal transport or protocol failure: close
// everything, wake every waiter, and run the exception listener exactly
// once.
func (c *Connection) onException(err error) {
	c.exceptionOnce.Do(func() {
		logger.L().Error("connection exception", "error", err)

		c.mu.Lock()
		alreadyClosed := c.closed
		c.closed = true
		sessions := snapshotSessions(c.sessions)
		c.mu.Unlock()

		for _, s := range sessions {
			s.closeQueues()
		}
		c.proto.shutdown(err)
		c.stopPingOnce.Do(func() { close(c.stopPing) })
		_ = c.t.Close()

		if !alreadyClosed && c.exceptionListener != nil {
			// Run off the read channel so a slow listener cannot stall
			// connection teardown.
			listener := c.exceptionListener
			go listener(err)
		}
	})
}

func (c *Connection) pingLoop() error {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.proto.ping(); err != nil {
				return nil
			}
		case <-c.stopPing:
			return nil
		}
	}
}

// --- sessions ---

// CreateSession creates a session on this connection. Transacted sessions
// ignore ackMode; a transaction is opened immediately.
func (c *Connection) CreateSession(transacted bool, ackMode AckMode, receiveMode ReceiveMode) (*Session, error) {
	return c.createSession(transacted, ackMode, receiveMode, false, nil, nil)
}

// CreateXASession creates a session whose delivery is bracketed by the
// before/after hooks of an external transaction coordinator.
func (c *Connection) CreateXASession(receiveMode ReceiveMode, before BeforeDeliveryFunc, after AfterDeliveryFunc) (*Session, error) {
	return c.createSession(true, SessionTransacted, receiveMode, true, before, after)
}

func (c *Connection) createSession(transacted bool, ackMode AckMode, receiveMode ReceiveMode,
	xa bool, before BeforeDeliveryFunc, after AfterDeliveryFunc) (*Session, error) {

	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if !receiveMode.valid() {
		return nil, ErrInvalidReceiveMode
	}
	if transacted {
		ackMode = SessionTransacted
	} else if ackMode == SessionTransacted || !ackMode.valid() {
		return nil, ErrInvalidAckMode
	}

	id, err := c.proto.createSession(ackMode)
	if err != nil {
		return nil, err
	}

	s := newSession(c, id, transacted, ackMode, receiveMode, xa, before, after)
	if transacted {
		txID, err := c.proto.startTransaction(id)
		if err != nil {
			_ = c.proto.destroySession(id)
			return nil, err
		}
		s.transactionID = txID
	}

	c.mu.Lock()
	stopped := !c.started
	c.sessions[id] = s
	c.mu.Unlock()
	if stopped {
		s.stop()
	}
	s.run()
	return s, nil
}

func (c *Connection) removeSession(id int64) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
}

func snapshotSessions(m map[int64]*Session) []*Session {
	out := make([]*Session, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out
}

// UnsubscribeDurable removes the durable subscription registered under
// durableName. It fails while a consumer of that subscription is active.
func (c *Connection) UnsubscribeDurable(durableName string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if durableName == "" {
		return ErrNoDurableName
	}
	c.mu.Lock()
	for _, consumer := range c.consumers {
		if consumer.durable && consumer.subscriptionName == durableName {
			c.mu.Unlock()
			return errors.NewStatus("MQ_CANNOT_UNSUBSCRIBE_ACTIVE_CONSUMER",
				int32(status.CannotUnsubscribeActive), "subscription has an active consumer", nil)
		}
	}
	c.mu.Unlock()
	return c.proto.unsubscribe(durableName)
}

// --- consumer routing ---

func (c *Connection) addConsumerRoute(consumer *Consumer) {
	c.mu.Lock()
	c.consumers[consumer.consumerID] = consumer
	c.mu.Unlock()
}

func (c *Connection) removeConsumerRoute(consumerID uint64) {
	c.mu.Lock()
	delete(c.consumers, consumerID)
	c.mu.Unlock()
}

func (c *Connection) lookupConsumer(consumerID uint64) (*Consumer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	consumer, ok := c.consumers[consumerID]
	return consumer, ok
}

// --- producer flow table ---

func (c *Connection) registerFlow(f *producerFlow) {
	c.mu.Lock()
	_ = f.acquireReference() // the table itself holds one reference
	c.flows[f.producerID] = f
	c.mu.Unlock()
}

// acquireFlow borrows the flow for one send.
func (c *Connection) acquireFlow(producerID int64) (*producerFlow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flows[producerID]
	if !ok {
		return nil, ErrProducerClosed
	}
	if err := f.acquireReference(); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Connection) releaseFlow(f *producerFlow) {
	c.mu.Lock()
	if f.releaseReference() {
		delete(c.flows, f.producerID)
	}
	c.mu.Unlock()
}

// closeFlow shuts a producer's flow down and drops the table reference.
func (c *Connection) closeFlow(producerID int64, reason error) {
	c.mu.Lock()
	f, ok := c.flows[producerID]
	c.mu.Unlock()
	if !ok {
		return
	}
	f.close(reason)
	c.releaseFlow(f)
}

func (c *Connection) lookupFlow(producerID int64) (*producerFlow, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flows[producerID]
	return f, ok
}

// --- temporary destinations ---

// temporaryDestinationPrefix scopes temp destination names to this
// connection; the broker enforces the prefix.
func (c *Connection) temporaryDestinationPrefix(kind DestinationKind) string {
	k := "queue"
	if kind == Topic {
		k = "topic"
	}
	return fmt.Sprintf("temporary_destination://%s/%s/", k, c.localID)
}

func (c *Connection) createTemporaryDestination(kind DestinationKind) (*Destination, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.tempSeq++
	name := fmt.Sprintf("%s%d", c.temporaryDestinationPrefix(kind), c.tempSeq)
	c.mu.Unlock()

	d := newDestination(c, name, kind, true)
	if err := c.proto.createDestination(d); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.tempDests[name] = d
	c.mu.Unlock()
	return d, nil
}

func (c *Connection) deleteDestination(d *Destination) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.proto.destroyDestination(d); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.tempDests, d.Name())
	c.mu.Unlock()
	return nil
}

// --- consumer-side flow control ---

// messageDelivered is the flow-control hook run after each delivery. When
// the broker has paused its push and the backlog has drained below the
// prefetch threshold, the client grants it leave to resume.
func (c *Connection) messageDelivered() {
	if !c.flowPaused.Load() {
		return
	}
	threshold := int(float64(c.cfg.PrefetchMaxMsgCount) * c.cfg.PrefetchThresholdPercent / 100)
	if c.cfg.PrefetchMaxMsgCount < 0 {
		threshold = 0
	}
	if c.queuedPackets() <= threshold && c.flowPaused.CompareAndSwap(true, false) {
		if err := c.proto.resumeConsumerFlow(c.cfg.PrefetchMaxMsgCount); err != nil {
			logger.L().Debug("resume consumer flow failed", "error", err)
		}
	}
}

func (c *Connection) queuedPackets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, consumer := range c.consumers {
		if consumer.queue != nil {
			total += consumer.queue.Size()
		}
	}
	return total
}
