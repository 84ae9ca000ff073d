package openmq

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/chris-alexander-pop/openmq-client/pkg/errors"
	"github.com/chris-alexander-pop/openmq-client/pkg/logger"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/packet"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/status"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/transport"
)

// protocolHandler performs synchronous request/reply exchanges with the
// broker over the shared transport. The read channel routes replies back to
// the waiting request by correlation id.
type protocolHandler struct {
	t       transport.Transport
	timeout time.Duration

	nextCID atomic.Uint32

	mu      sync.Mutex
	pending map[uint32]chan *packet.Packet

	closeOnce   sync.Once
	closed      chan struct{}
	closeReason error
}

func newProtocolHandler(t transport.Transport, timeout time.Duration) *protocolHandler {
	return &protocolHandler{
		t:       t,
		timeout: timeout,
		pending: make(map[uint32]chan *packet.Packet),
		closed:  make(chan struct{}),
	}
}

// writePacket sends a packet without expecting a reply.
func (h *protocolHandler) writePacket(p *packet.Packet) error {
	select {
	case <-h.closed:
		return h.closeErr()
	default:
	}
	p.Stamp()
	if err := h.t.WritePacket(p); err != nil {
		return errors.NewStatus("MQ_PROTOCOL_HANDLER_WRITE_ERROR",
			int32(status.ProtocolHandlerWriteError), "write request", err)
	}
	return nil
}

// request writes p and blocks until the matching reply of type want
// arrives, the handler shuts down, or the configured timeout expires.
func (h *protocolHandler) request(p *packet.Packet, want packet.Type) (*packet.Packet, error) {
	cid := h.nextCID.Add(1)
	p.CorrelationID = cid

	ch := make(chan *packet.Packet, 1)
	h.mu.Lock()
	h.pending[cid] = ch
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, cid)
		h.mu.Unlock()
	}()

	if err := h.writePacket(p); err != nil {
		return nil, err
	}

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()
	select {
	case reply := <-ch:
		if reply.PType != want {
			logger.L().Warn("unexpected reply packet",
				"want", want.String(), "got", reply.PType.String())
			return nil, ErrUnexpectedReply
		}
		if err := brokerError(status.FromBrokerStatus(reply.Status)); err != nil {
			return nil, err
		}
		return reply, nil
	case <-h.closed:
		return nil, h.closeErr()
	case <-timer.C:
		return nil, ErrTimeoutExpired
	}
}

// handleReply routes a reply packet to its waiting request. It reports
// whether a waiter consumed the packet.
func (h *protocolHandler) handleReply(p *packet.Packet) bool {
	h.mu.Lock()
	ch, ok := h.pending[p.CorrelationID]
	if ok {
		delete(h.pending, p.CorrelationID)
	}
	h.mu.Unlock()
	if !ok {
		return false
	}
	ch <- p
	return true
}

// shutdown fails every outstanding and future request with reason.
func (h *protocolHandler) shutdown(reason error) {
	h.closeOnce.Do(func() {
		h.closeReason = reason
		close(h.closed)
	})
}

func (h *protocolHandler) closeErr() error {
	if h.closeReason != nil {
		return h.closeReason
	}
	return ErrConnectionClosed
}

// --- broker operations ---

func (h *protocolHandler) hello(version string) (int64, error) {
	p := packet.New(packet.TypeHello)
	p.SetProperty("JMQProtocolLevel", int64(packet.ProtocolVersion))
	p.SetProperty("JMQVersion", version)
	reply, err := h.request(p, packet.TypeHelloReply)
	if err != nil {
		return 0, errors.Wrap(err, "hello handshake failed")
	}
	if v, ok := reply.GetProperty("JMQConnectionID"); ok {
		if id, ok := toInt64(v); ok {
			return id, nil
		}
	}
	return 0, nil
}

func (h *protocolHandler) authenticate(username, password string) error {
	p := packet.New(packet.TypeAuthenticate)
	p.SetProperty("JMQAuthType", "basic")
	p.SetProperty("JMQUserName", username)
	p.SetProperty("JMQPassword", password)
	if _, err := h.request(p, packet.TypeAuthenticateReply); err != nil {
		return errors.Wrap(err, "authentication failed")
	}
	return nil
}

func (h *protocolHandler) setClientID(clientID string) error {
	p := packet.New(packet.TypeSetClientID)
	p.SetProperty("JMQClientID", clientID)
	if _, err := h.request(p, packet.TypeSetClientIDReply); err != nil {
		return errors.Wrap(err, "set client id failed")
	}
	return nil
}

func (h *protocolHandler) createSession(ackMode AckMode) (int64, error) {
	p := packet.New(packet.TypeCreateSession)
	p.SetProperty("JMQAckMode", int64(ackMode))
	reply, err := h.request(p, packet.TypeCreateSessionReply)
	if err != nil {
		return 0, err
	}
	return reply.SessionID, nil
}

func (h *protocolHandler) destroySession(sessionID int64) error {
	p := packet.New(packet.TypeDestroySession)
	p.SessionID = sessionID
	_, err := h.request(p, packet.TypeDestroySessionReply)
	return err
}

// addConsumer registers the consumer's interest with the broker and
// returns the broker-assigned consumer id.
func (h *protocolHandler) addConsumer(sessionID int64, dest *Destination, selector string,
	durable, shared, noLocal bool, subscriptionName string, prefetch int32) (uint64, error) {

	p := packet.New(packet.TypeAddConsumer)
	p.SessionID = sessionID
	p.SetProperty("JMQDestination", dest.Name())
	p.SetProperty("JMQDestType", int64(dest.Kind()))
	if selector != "" {
		p.SetProperty("JMQSelector", selector)
	}
	if durable {
		p.SetProperty("JMQDurableName", subscriptionName)
	}
	if shared {
		p.SetProperty("JMQShare", true)
		p.SetProperty("JMQSubscriptionName", subscriptionName)
	}
	p.SetProperty("JMQNoLocal", noLocal)
	p.SetProperty("JMQSize", int64(prefetch))
	reply, err := h.request(p, packet.TypeAddConsumerReply)
	if err != nil {
		return 0, err
	}
	return reply.ConsumerID, nil
}

// deleteConsumer deregisters, passing the last delivered message id so the
// broker can redeliver anything after it.
func (h *protocolHandler) deleteConsumer(sessionID int64, consumerID uint64,
	lastDelivered packet.SysMessageID, hasLastDelivered bool) error {

	p := packet.New(packet.TypeDeleteConsumer)
	p.SessionID = sessionID
	p.ConsumerID = consumerID
	if hasLastDelivered {
		p.SysID = lastDelivered
	}
	_, err := h.request(p, packet.TypeDeleteConsumerReply)
	return err
}

// unsubscribe removes a durable subscription by name.
func (h *protocolHandler) unsubscribe(durableName string) error {
	p := packet.New(packet.TypeDeleteConsumer)
	p.SetProperty("JMQDurableName", durableName)
	_, err := h.request(p, packet.TypeDeleteConsumerReply)
	return err
}

// addProducer registers a producer for dest. The reply grants the initial
// send window.
func (h *protocolHandler) addProducer(sessionID int64, dest *Destination) (producerID int64, chunkBytes int64, chunkSize int32, err error) {
	p := packet.New(packet.TypeAddProducer)
	p.SessionID = sessionID
	p.SetProperty("JMQDestination", dest.Name())
	p.SetProperty("JMQDestType", int64(dest.Kind()))
	reply, err := h.request(p, packet.TypeAddProducerReply)
	if err != nil {
		return 0, 0, 0, err
	}
	chunkBytes = int64(-1)
	chunkSize = int32(-1)
	if v, ok := reply.GetProperty("JMQBytes"); ok {
		if b, ok := toInt64(v); ok {
			chunkBytes = b
		}
	}
	if v, ok := reply.GetProperty("JMQSize"); ok {
		if s, ok := toInt64(v); ok {
			chunkSize = int32(s)
		}
	}
	return reply.ProducerID, chunkBytes, chunkSize, nil
}

func (h *protocolHandler) deleteProducer(sessionID, producerID int64) error {
	p := packet.New(packet.TypeDeleteProducer)
	p.SessionID = sessionID
	p.ProducerID = producerID
	_, err := h.request(p, packet.TypeDeleteProducerReply)
	return err
}

func (h *protocolHandler) createDestination(d *Destination) error {
	p := packet.New(packet.TypeCreateDestination)
	p.SetProperty("JMQDestination", d.Name())
	p.SetProperty("JMQDestType", int64(d.Kind()))
	p.SetProperty("JMQTemporary", d.IsTemporary())
	_, err := h.request(p, packet.TypeCreateDestinationReply)
	return err
}

func (h *protocolHandler) destroyDestination(d *Destination) error {
	p := packet.New(packet.TypeDestroyDestination)
	p.SetProperty("JMQDestination", d.Name())
	p.SetProperty("JMQDestType", int64(d.Kind()))
	_, err := h.request(p, packet.TypeDestroyDestinationReply)
	return err
}

// acknowledge flushes a serialized ack block. Expired-message acks carry
// the dead ack type so the broker routes them to the DMQ instead of
// completing delivery.
func (h *protocolHandler) acknowledge(sessionID, transactionID int64, body []byte, expired bool) error {
	p := packet.New(packet.TypeAcknowledge)
	p.SessionID = sessionID
	p.TransactionID = transactionID
	p.Body = body
	if expired {
		p.SetProperty("JMQAckType", int64(ackTypeDeadReason))
	}
	if _, err := h.request(p, packet.TypeAcknowledgeReply); err != nil {
		return errors.Wrap(err, "acknowledge failed")
	}
	return nil
}

// redeliver asks the broker to redeliver the messages in body.
func (h *protocolHandler) redeliver(sessionID, transactionID int64, body []byte, setRedelivered bool) error {
	p := packet.New(packet.TypeRedeliver)
	p.SessionID = sessionID
	p.TransactionID = transactionID
	p.Body = body
	p.SetProperty("JMQSetRedelivered", setRedelivered)
	return h.writePacket(p)
}

func (h *protocolHandler) startTransaction(sessionID int64) (int64, error) {
	p := packet.New(packet.TypeStartTransaction)
	p.SessionID = sessionID
	reply, err := h.request(p, packet.TypeStartTransactionReply)
	if err != nil {
		return 0, err
	}
	return reply.TransactionID, nil
}

func (h *protocolHandler) commitTransaction(transactionID int64) error {
	p := packet.New(packet.TypeCommitTransaction)
	p.TransactionID = transactionID
	_, err := h.request(p, packet.TypeCommitTransactionReply)
	return err
}

func (h *protocolHandler) rollbackTransaction(transactionID int64) error {
	p := packet.New(packet.TypeRollbackTransaction)
	p.TransactionID = transactionID
	_, err := h.request(p, packet.TypeRollbackTransactionReply)
	return err
}

// start resumes delivery; it has no reply. A zero sessionID starts the
// whole connection.
func (h *protocolHandler) start(sessionID int64) error {
	p := packet.New(packet.TypeStart)
	p.SessionID = sessionID
	return h.writePacket(p)
}

func (h *protocolHandler) stop(sessionID int64) error {
	p := packet.New(packet.TypeStop)
	p.SessionID = sessionID
	_, err := h.request(p, packet.TypeStopReply)
	if err != nil {
		return errors.NewStatus("MQ_PROTOCOL_HANDLER_STOP_FAILED",
			int32(status.ProtocolHandlerStopFailed), "stop failed", err)
	}
	return nil
}

func (h *protocolHandler) ping() error {
	return h.writePacket(packet.New(packet.TypePing))
}

// goodbye tells the broker the connection is going away. When reply is set
// the call waits for the broker's confirmation.
func (h *protocolHandler) goodbye(reply bool) error {
	p := packet.New(packet.TypeGoodbye)
	p.SetProperty("JMQBlock", reply)
	if !reply {
		return h.writePacket(p)
	}
	if _, err := h.request(p, packet.TypeGoodbyeReply); err != nil {
		return errors.NewStatus("MQ_PROTOCOL_HANDLER_GOODBYE_FAILED",
			int32(status.ProtocolHandlerGoodbyeFailed), "goodbye failed", err)
	}
	return nil
}

// resumeConsumerFlow grants the broker leave to resume pushing messages
// after a flow-paused notice.
func (h *protocolHandler) resumeConsumerFlow(prefetch int32) error {
	p := packet.New(packet.TypeResumeFlow)
	p.SetProperty("JMQSize", int64(prefetch))
	return h.writePacket(p)
}

// writeJMSMessage sends a data packet. Persistent sends wait for the
// broker's send reply; non-persistent sends are fire-and-forget.
func (h *protocolHandler) writeJMSMessage(p *packet.Packet) error {
	if p.GetFlag(packet.FlagPersistent) {
		p.SetFlag(packet.FlagSendAck, true)
		_, err := h.request(p, packet.TypeSendReply)
		return err
	}
	return h.writePacket(p)
}

// ackTypeDeadReason marks an acknowledgement of an expired message.
const ackTypeDeadReason = 2

// toInt64 normalizes the numeric types a property may decode to.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
