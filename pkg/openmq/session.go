package openmq

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/chris-alexander-pop/openmq-client/pkg/logger"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/packet"
)

// BeforeDeliveryFunc runs before an XA session invokes a message listener.
// A non-nil error aborts the delivery.
type BeforeDeliveryFunc func(msg *Message) error

// AfterDeliveryFunc runs after an XA session delivery completes, with the
// delivery outcome.
type AfterDeliveryFunc func(msg *Message, deliveryErr error)

// ackEntry identifies one delivered message in an acknowledgement block.
type ackEntry struct {
	consumerID uint64
	sysID      packet.SysMessageID
}

// Session is a single-threaded context within a connection for producing
// and consuming messages and tracking acknowledgements and transactions.
// At most one goroutine executes a session entry point at a time; a second
// caller fails fast with ErrConcurrentAccess.
type Session struct {
	conn *Connection
	id   int64

	transacted  bool
	ackMode     AckMode
	receiveMode ReceiveMode

	xa             bool
	beforeDelivery BeforeDeliveryFunc
	afterDelivery  AfterDeliveryFunc

	// transactionID rotates on every commit; zero means none.
	transactionID int64

	smu *sessionMutex

	// mu guards the collections and ack buffers below.
	mu          sync.Mutex
	producers   map[*Producer]struct{}
	consumers   map[uint64]*Consumer
	unacked     []ackEntry // CLIENT mode, ordered by delivery
	dupsOkBatch []ackEntry
	closed      bool
	stopped     bool

	dupsOkLimit int

	// sessionQueue feeds the dispatch goroutine of an async session.
	sessionQueue *ReceiveQueue
	dispatchDone chan struct{}
}

func newSession(conn *Connection, id int64, transacted bool, ackMode AckMode,
	receiveMode ReceiveMode, xa bool, before BeforeDeliveryFunc, after AfterDeliveryFunc) *Session {

	s := &Session{
		conn:           conn,
		id:             id,
		transacted:     transacted,
		ackMode:        ackMode,
		receiveMode:    receiveMode,
		xa:             xa,
		beforeDelivery: before,
		afterDelivery:  after,
		smu:            newSessionMutex(),
		producers:      make(map[*Producer]struct{}),
		consumers:      make(map[uint64]*Consumer),
		dupsOkLimit:    conn.cfg.DupsOKLimit,
	}
	if receiveMode == AsyncReceive {
		s.sessionQueue = NewReceiveQueue()
		s.dispatchDone = make(chan struct{})
	}
	return s
}

// run starts the dispatch goroutine of an async session.
func (s *Session) run() {
	if s.receiveMode == AsyncReceive {
		go s.dispatchLoop()
	}
}

// ID returns the broker-assigned session id.
func (s *Session) ID() int64 {
	return s.id
}

// AckMode returns the session acknowledgement mode.
func (s *Session) AckMode() AckMode {
	return s.ackMode
}

// ReceiveMode returns the session receive mode.
func (s *Session) ReceiveMode() ReceiveMode {
	return s.receiveMode
}

// IsTransacted reports whether the session is transacted.
func (s *Session) IsTransacted() bool {
	return s.transacted
}

// IsXA reports whether the session delivers under an external coordinator.
func (s *Session) IsXA() bool {
	return s.xa
}

// enter acquires the session mutex for a public entry point, failing fast
// with ErrConcurrentAccess unless the connection is configured with a lock
// timeout.
func (s *Session) enter() error {
	if t := s.conn.cfg.SessionLockTimeout; t > 0 {
		return s.smu.lock(t)
	}
	return s.smu.tryLock()
}

func (s *Session) exit() {
	_ = s.smu.unlock()
}

func (s *Session) checkState() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	if s.conn.IsClosed() {
		return ErrConnectionClosedState
	}
	return nil
}

// --- producers ---

// CreateProducer creates an unbound producer; every send names its
// destination.
func (s *Session) CreateProducer() (*Producer, error) {
	return s.createProducer(nil)
}

// CreateProducerFor creates a producer bound to dest. The destination is
// validated with the broker up front.
func (s *Session) CreateProducerFor(dest *Destination) (*Producer, error) {
	if dest == nil {
		return nil, ErrNullArg
	}
	return s.createProducer(dest)
}

// CreateResilientProducerFor creates a producer bound to dest and wraps it
// with retry and circuit-breaker protection for transient send failures.
func (s *Session) CreateResilientProducerFor(dest *Destination, cfg ResilientProducerConfig) (*ResilientProducer, error) {
	p, err := s.CreateProducerFor(dest)
	if err != nil {
		return nil, err
	}
	return NewResilientProducer(p, cfg), nil
}

func (s *Session) createProducer(dest *Destination) (*Producer, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.exit()
	if err := s.checkState(); err != nil {
		return nil, err
	}

	p, err := newProducer(s, dest)
	if err != nil {
		return nil, err
	}
	if dest != nil {
		if _, err := p.validateDestination(dest); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	s.producers[p] = struct{}{}
	s.mu.Unlock()
	return p, nil
}

// registerProducer performs the broker registration for one destination and
// installs the producer's flow.
func (s *Session) registerProducer(dest *Destination) (int64, error) {
	producerID, chunkBytes, chunkSize, err := s.conn.proto.addProducer(s.id, dest)
	if err != nil {
		return 0, err
	}
	s.conn.registerFlow(newProducerFlow(producerID, chunkBytes, chunkSize))
	return producerID, nil
}

func (s *Session) unregisterProducer(producerID int64) error {
	s.conn.closeFlow(producerID, ErrProducerClosed)
	return s.conn.proto.deleteProducer(s.id, producerID)
}

// CloseProducer closes p and deregisters it from the broker.
func (s *Session) CloseProducer(p *Producer) error {
	if p == nil {
		return ErrNullArg
	}
	if err := s.enter(); err != nil {
		return err
	}
	defer s.exit()

	s.mu.Lock()
	_, mine := s.producers[p]
	delete(s.producers, p)
	s.mu.Unlock()
	if !mine && p.session != s {
		return ErrProducerNotInSession
	}
	return p.closeInternal()
}

// --- consumers ---

// ConsumerOptions configures consumer creation. Durable and shared
// subscriptions require a SubscriptionName; Listener is required on async
// sessions and rejected on sync sessions.
type ConsumerOptions struct {
	Durable          bool
	Shared           bool
	NoLocal          bool
	SubscriptionName string
	Selector         string
	Listener         MessageListener
}

// CreateConsumer creates a consumer on dest, registers it with the broker,
// and begins delivery (subject to the connection being started).
func (s *Session) CreateConsumer(dest *Destination, opts ConsumerOptions) (*Consumer, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.exit()
	if err := s.checkState(); err != nil {
		return nil, err
	}

	c, err := newConsumer(s, dest, opts)
	if err != nil {
		return nil, err
	}

	consumerID, err := s.conn.proto.addConsumer(s.id, c.dest, c.selector,
		c.durable, c.shared, c.noLocal, c.subscriptionName, s.conn.cfg.PrefetchMaxMsgCount)
	if err != nil {
		if c.queue != nil {
			c.queue.Close(true)
		}
		return nil, err
	}
	c.setConsumerID(consumerID)

	s.mu.Lock()
	s.consumers[consumerID] = c
	stopped := s.stopped
	s.mu.Unlock()
	if stopped && c.queue != nil {
		c.queue.Stop()
	}
	s.conn.addConsumerRoute(c)
	return c, nil
}

// CreateDurableConsumer is shorthand for a durable subscription consumer.
func (s *Session) CreateDurableConsumer(dest *Destination, name, selector string, noLocal bool) (*Consumer, error) {
	return s.CreateConsumer(dest, ConsumerOptions{Durable: true, SubscriptionName: name, Selector: selector, NoLocal: noLocal})
}

// CreateSharedConsumer is shorthand for a shared subscription consumer.
func (s *Session) CreateSharedConsumer(dest *Destination, name, selector string) (*Consumer, error) {
	return s.CreateConsumer(dest, ConsumerOptions{Shared: true, SubscriptionName: name, Selector: selector})
}

// CloseConsumer closes c, deregisters its broker interest, and wakes any
// blocked receiver with ErrConsumerClosed.
func (s *Session) CloseConsumer(c *Consumer) error {
	if c == nil {
		return ErrNullArg
	}
	if c.session != s {
		return ErrConsumerNotInSession
	}
	if err := s.enter(); err != nil {
		return err
	}
	defer s.exit()
	return s.closeConsumerInternal(c, true)
}

func (s *Session) closeConsumerInternal(c *Consumer, tellBroker bool) error {
	s.mu.Lock()
	delete(s.consumers, c.consumerID)
	s.mu.Unlock()
	s.conn.removeConsumerRoute(c.consumerID)

	var err error
	if tellBroker && c.registered && !s.conn.IsClosed() {
		err = s.conn.proto.deleteConsumer(s.id, c.consumerID, c.lastDelivered, c.hasLastDelivered)
	}
	c.close()
	return err
}

func (s *Session) lookupConsumer(consumerID uint64) (*Consumer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consumers[consumerID]
	return c, ok
}

// --- destinations ---

// CreateDestination names a queue or topic. The broker validates the name
// when a producer or consumer is registered on it.
func (s *Session) CreateDestination(name string, kind DestinationKind) (*Destination, error) {
	if err := s.checkState(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, ErrDestinationNoName
	}
	if kind != Queue && kind != Topic {
		return nil, ErrInvalidDestinationType
	}
	return newDestination(s.conn, name, kind, false), nil
}

// CreateTemporaryDestination creates a broker-side destination scoped to
// this connection's lifetime.
func (s *Session) CreateTemporaryDestination(kind DestinationKind) (*Destination, error) {
	if err := s.checkState(); err != nil {
		return nil, err
	}
	if kind != Queue && kind != Topic {
		return nil, ErrInvalidDestinationType
	}
	return s.conn.createTemporaryDestination(kind)
}

// UnsubscribeDurable removes the durable subscription named durableName.
func (s *Session) UnsubscribeDurable(durableName string) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.exit()
	if err := s.checkState(); err != nil {
		return err
	}
	return s.conn.UnsubscribeDurable(durableName)
}

// --- send path ---

// writeJMSMessage stamps the transaction, passes the producer's flow gate,
// and hands the packet to the protocol handler.
func (s *Session) writeJMSMessage(msg *Message, producerID int64) error {
	if err := s.checkState(); err != nil {
		return err
	}
	p := msg.packetRef()
	p.SessionID = s.id
	if s.transacted {
		s.mu.Lock()
		p.TransactionID = s.transactionID
		s.mu.Unlock()
		p.SetFlag(packet.FlagTransacted, true)
	}

	flow, err := s.conn.acquireFlow(producerID)
	if err != nil {
		return err
	}
	defer s.conn.releaseFlow(flow)

	if err := flow.checkFlowControl(p); err != nil {
		return err
	}
	return s.conn.proto.writeJMSMessage(p)
}

// --- acknowledgement ---

// acknowledge records or flushes the acknowledgement for one delivered
// message, per the session ack mode.
func (s *Session) acknowledge(msg *Message, fromListener bool) error {
	entry := ackEntry{consumerID: msg.ConsumerID(), sysID: msg.SystemMessageID()}

	switch s.ackMode {
	case AutoAcknowledge:
		msg.setAckProcessed()
		return s.flushAck([]ackEntry{entry}, 0)

	case DupsOKAcknowledge:
		msg.setAckProcessed()
		s.mu.Lock()
		s.dupsOkBatch = append(s.dupsOkBatch, entry)
		batch := s.dupsOkBatch
		flush := len(batch) >= s.dupsOkLimit || s.deliveryQueueEmpty(msg)
		if flush {
			s.dupsOkBatch = nil
		}
		s.mu.Unlock()
		if !flush {
			return nil
		}
		return s.flushAck(batch, 0)

	case ClientAcknowledge:
		s.mu.Lock()
		s.unacked = append(s.unacked, entry)
		s.mu.Unlock()
		return nil

	case SessionTransacted:
		msg.setAckProcessed()
		s.mu.Lock()
		txID := s.transactionID
		s.mu.Unlock()
		return s.flushAck([]ackEntry{entry}, txID)

	default:
		return ErrInvalidAckMode
	}
}

// deliveryQueueEmpty reports whether the queue that delivered msg has
// drained; DUPS_OK uses it as a flush boundary. Caller holds s.mu.
func (s *Session) deliveryQueueEmpty(msg *Message) bool {
	if s.receiveMode == AsyncReceive {
		return s.sessionQueue.IsEmpty()
	}
	if c, ok := s.consumers[msg.ConsumerID()]; ok && c.queue != nil {
		return c.queue.IsEmpty()
	}
	return true
}

// AcknowledgeMessages acknowledges msg and every message delivered before
// it on this session (JMS client-acknowledge semantics).
func (s *Session) AcknowledgeMessages(msg *Message) error {
	if msg == nil {
		return ErrNullArg
	}
	if err := s.enter(); err != nil {
		return err
	}
	defer s.exit()
	if err := s.checkState(); err != nil {
		return err
	}
	if s.ackMode != ClientAcknowledge {
		return ErrNotClientAckMode
	}
	if msg.Session() != s {
		return ErrMessageNotInSession
	}

	s.mu.Lock()
	cut := -1
	for i, e := range s.unacked {
		if e.sysID == msg.SystemMessageID() && e.consumerID == msg.ConsumerID() {
			cut = i
			break
		}
	}
	if cut < 0 {
		s.mu.Unlock()
		if msg.isAckProcessed() {
			return nil
		}
		return ErrMessageNotInSession
	}
	prefix := make([]ackEntry, cut+1)
	copy(prefix, s.unacked[:cut+1])
	s.unacked = append([]ackEntry(nil), s.unacked[cut+1:]...)
	s.mu.Unlock()

	if err := s.flushAck(prefix, 0); err != nil {
		// The broker did not confirm; restore the entries so a retry can
		// cover them.
		s.mu.Lock()
		s.unacked = append(prefix, s.unacked...)
		s.mu.Unlock()
		return err
	}
	msg.setAckProcessed()
	return nil
}

// acknowledgeExpired tells the broker an expired message was skipped so it
// can route it to the dead message queue.
func (s *Session) acknowledgeExpired(msg *Message) error {
	entry := ackEntry{consumerID: msg.ConsumerID(), sysID: msg.SystemMessageID()}
	body := encodeAckBlock([]ackEntry{entry})
	return s.conn.proto.acknowledge(s.id, 0, body, true)
}

func (s *Session) flushAck(entries []ackEntry, transactionID int64) error {
	if len(entries) == 0 {
		return nil
	}
	return s.conn.proto.acknowledge(s.id, transactionID, encodeAckBlock(entries), false)
}

// unackedCount reports the CLIENT-mode backlog; tests and diagnostics use
// it.
func (s *Session) unackedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unacked)
}

// messageDelivered is the per-delivery flow-control hook.
func (s *Session) messageDelivered() {
	s.conn.messageDelivered()
}

// --- transactions ---

// Commit commits the current transaction and opens a fresh one.
func (s *Session) Commit() error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.exit()
	if err := s.checkState(); err != nil {
		return err
	}
	if !s.transacted {
		return ErrNotTransacted
	}

	s.mu.Lock()
	txID := s.transactionID
	s.mu.Unlock()
	if txID == 0 {
		return ErrInvalidTransactionID
	}
	if err := s.conn.proto.commitTransaction(txID); err != nil {
		return err
	}
	return s.rotateTransaction()
}

// Rollback rolls the current transaction back, flags everything prefetched
// as redelivered, and opens a fresh transaction.
func (s *Session) Rollback() error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.exit()
	if err := s.checkState(); err != nil {
		return err
	}
	if !s.transacted {
		return ErrNotTransacted
	}

	s.mu.Lock()
	txID := s.transactionID
	s.mu.Unlock()
	if txID == 0 {
		return ErrInvalidTransactionID
	}
	if err := s.conn.proto.rollbackTransaction(txID); err != nil {
		return err
	}
	s.recoverInternal(true)
	return s.rotateTransaction()
}

func (s *Session) rotateTransaction() error {
	txID, err := s.conn.proto.startTransaction(s.id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.transactionID = txID
	s.mu.Unlock()
	return nil
}

// Recover restarts delivery from the oldest unacknowledged message.
// Messages already handed to the application cannot be reclaimed; they are
// requested again from the broker with the redelivered flag set.
func (s *Session) Recover() error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.exit()
	if err := s.checkState(); err != nil {
		return err
	}
	if s.transacted {
		return ErrTransactedSession
	}
	s.recoverInternal(false)
	return nil
}

func (s *Session) recoverInternal(fromRollback bool) {
	// Everything still prefetched goes back to the application flagged as
	// redelivered.
	s.mu.Lock()
	consumers := make([]*Consumer, 0, len(s.consumers))
	for _, c := range s.consumers {
		consumers = append(consumers, c)
	}
	unacked := s.unacked
	s.unacked = nil
	s.dupsOkBatch = nil
	txID := s.transactionID
	s.mu.Unlock()

	for _, c := range consumers {
		if c.queue != nil {
			c.queue.forEach(func(p *packet.Packet) {
				p.SetFlag(packet.FlagRedelivered, true)
			})
		}
	}
	if s.sessionQueue != nil {
		s.sessionQueue.forEach(func(p *packet.Packet) {
			p.SetFlag(packet.FlagRedelivered, true)
		})
	}

	if len(unacked) > 0 {
		if err := s.conn.proto.redeliver(s.id, txID, encodeAckBlock(unacked), true); err != nil {
			logger.L().Warn("redeliver request failed",
				"session_id", s.id, "from_rollback", fromRollback, "error", err)
		}
	}
}

// --- lifecycle ---

// start is driven by Connection.Start.
func (s *Session) start() {
	s.mu.Lock()
	s.stopped = false
	consumers := make([]*Consumer, 0, len(s.consumers))
	for _, c := range s.consumers {
		consumers = append(consumers, c)
	}
	s.mu.Unlock()
	if s.sessionQueue != nil {
		s.sessionQueue.Start()
	}
	for _, c := range consumers {
		c.start()
	}
}

// stop is driven by Connection.Stop.
func (s *Session) stop() {
	s.mu.Lock()
	s.stopped = true
	consumers := make([]*Consumer, 0, len(s.consumers))
	for _, c := range s.consumers {
		consumers = append(consumers, c)
	}
	s.mu.Unlock()
	if s.sessionQueue != nil {
		s.sessionQueue.Stop()
	}
	for _, c := range consumers {
		c.stop()
	}
}

// Close closes the session and everything it owns, leaf first. It is
// idempotent and safe from any goroutine.
func (s *Session) Close() error {
	return s.closeInternal(false)
}

func (s *Session) closeInternal(fromConnection bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	consumers := make([]*Consumer, 0, len(s.consumers))
	for _, c := range s.consumers {
		consumers = append(consumers, c)
	}
	producers := make([]*Producer, 0, len(s.producers))
	for p := range s.producers {
		producers = append(producers, p)
	}
	s.producers = make(map[*Producer]struct{})
	s.mu.Unlock()

	for _, c := range consumers {
		if err := s.closeConsumerInternal(c, true); err != nil {
			logger.L().Debug("closing consumer failed", "consumer_id", c.consumerID, "error", err)
		}
	}
	for _, p := range producers {
		if err := p.closeInternal(); err != nil {
			logger.L().Debug("closing producer failed", "error", err)
		}
	}

	// Stop the dispatch goroutine and wake anything blocked on the
	// session queue.
	if s.sessionQueue != nil {
		s.sessionQueue.Close(true)
		<-s.dispatchDone
	}

	if !s.conn.IsClosed() {
		if err := s.conn.proto.destroySession(s.id); err != nil {
			logger.L().Debug("destroy session failed", "session_id", s.id, "error", err)
		}
	}
	if !fromConnection {
		s.conn.removeSession(s.id)
	}
	return nil
}

// closeQueues wakes every blocked receiver after a connection failure; no
// broker calls are made.
func (s *Session) closeQueues() {
	s.mu.Lock()
	s.closed = true
	consumers := make([]*Consumer, 0, len(s.consumers))
	for _, c := range s.consumers {
		consumers = append(consumers, c)
	}
	s.mu.Unlock()
	for _, c := range consumers {
		c.markClosed()
	}
	if s.sessionQueue != nil {
		s.sessionQueue.Close(true)
	}
}

// dispatchLoop is the async session's delivery goroutine: it serializes
// every listener invocation for the session.
func (s *Session) dispatchLoop() {
	defer close(s.dispatchDone)
	for {
		p := s.sessionQueue.DequeueWait(NoTimeout)
		if p == nil {
			if s.sessionQueue.IsClosed() {
				return
			}
			continue
		}
		consumer, ok := s.lookupConsumer(p.ConsumerID)
		if !ok {
			logger.L().Debug("dispatch for unknown consumer", "consumer_id", p.ConsumerID)
			s.sessionQueue.ReceiveDone()
			continue
		}
		msg := messageFromPacket(p)
		if msg == nil {
			logger.L().Warn("unsupported message packet type", "type", uint16(p.PType))
			s.sessionQueue.ReceiveDone()
			continue
		}
		if err := consumer.onMessage(msg); err != nil {
			logger.L().Warn("async delivery failed",
				"consumer_id", p.ConsumerID, "sys_id", p.SysID.String(), "error", err)
		}
		s.messageDelivered()
		s.sessionQueue.ReceiveDone()
	}
}

// encodeAckBlock serializes acknowledgement entries: a big-endian count
// followed by, per entry, the consumer id and the system message id fields.
func encodeAckBlock(entries []ackEntry) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(entries)))
	for _, e := range entries {
		_ = binary.Write(&buf, binary.BigEndian, e.consumerID)
		host := []byte(e.sysID.Host)
		_ = binary.Write(&buf, binary.BigEndian, uint16(len(host)))
		buf.Write(host)
		_ = binary.Write(&buf, binary.BigEndian, e.sysID.Port)
		_ = binary.Write(&buf, binary.BigEndian, e.sysID.Timestamp)
		_ = binary.Write(&buf, binary.BigEndian, e.sysID.Sequence)
	}
	return buf.Bytes()
}
