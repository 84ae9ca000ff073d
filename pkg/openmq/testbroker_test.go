package openmq

import (
	"sync"
	"time"

	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/packet"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/transport"
)

// brokerSim is an in-memory broker endpoint implementing
// transport.Transport. Requests written by the client are answered
// synchronously; tests push deliveries and control packets with inject.
type brokerSim struct {
	mu sync.Mutex

	inbound chan *packet.Packet
	closed  chan struct{}
	once    sync.Once

	nextSessionID  int64
	nextConsumerID uint64
	nextProducerID int64
	nextTxnID      int64

	// Send-window granted on every addProducer.
	grantChunkSize  int32
	grantChunkBytes int64

	// Observations for assertions.
	sentMessages []*packet.Packet
	ackBodies    [][]byte
	expiredAcks  [][]byte
	redelivers   []*packet.Packet
	commits      []int64
	rollbacks    []int64
	clientID     string
	authUser     string
	stops        int
	goodbyes     int
}

func newBrokerSim() *brokerSim {
	return &brokerSim{
		inbound:         make(chan *packet.Packet, 256),
		closed:          make(chan struct{}),
		grantChunkSize:  -1,
		grantChunkBytes: -1,
	}
}

var _ transport.Transport = (*brokerSim)(nil)

func (b *brokerSim) ReadPacket() (*packet.Packet, error) {
	select {
	case p := <-b.inbound:
		return p, nil
	case <-b.closed:
		return nil, ErrConnectionClosed
	}
}

func (b *brokerSim) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

// inject queues a packet for the client's read channel.
func (b *brokerSim) inject(p *packet.Packet) {
	select {
	case b.inbound <- p:
	case <-b.closed:
	}
}

// deliver pushes a text message to the given consumer.
func (b *brokerSim) deliver(consumerID uint64, sysID packet.SysMessageID, body string) {
	p := packet.New(packet.TypeTextMessage)
	p.ConsumerID = consumerID
	p.SysID = sysID
	p.Timestamp = time.Now().UnixMilli()
	p.Body = []byte(body)
	b.inject(p)
}

// resumeFlow grants a producer fresh send credit.
func (b *brokerSim) resumeFlow(producerID int64, chunkBytes int64, chunkSize int32) {
	p := packet.New(packet.TypeResumeFlow)
	p.ProducerID = producerID
	p.SetProperty("JMQBytes", chunkBytes)
	p.SetProperty("JMQSize", int64(chunkSize))
	b.inject(p)
}

func (b *brokerSim) reply(req *packet.Packet, t packet.Type) *packet.Packet {
	r := packet.New(t)
	r.CorrelationID = req.CorrelationID
	r.Status = 200
	return r
}

func (b *brokerSim) WritePacket(p *packet.Packet) error {
	select {
	case <-b.closed:
		return ErrConnectionClosed
	default:
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch p.PType {
	case packet.TypeHello:
		r := b.reply(p, packet.TypeHelloReply)
		r.SetProperty("JMQConnectionID", int64(7))
		b.inject(r)

	case packet.TypeAuthenticate:
		if v, ok := p.GetProperty("JMQUserName"); ok {
			b.authUser, _ = v.(string)
		}
		b.inject(b.reply(p, packet.TypeAuthenticateReply))

	case packet.TypeSetClientID:
		if v, ok := p.GetProperty("JMQClientID"); ok {
			b.clientID, _ = v.(string)
		}
		b.inject(b.reply(p, packet.TypeSetClientIDReply))

	case packet.TypeCreateSession:
		b.nextSessionID++
		r := b.reply(p, packet.TypeCreateSessionReply)
		r.SessionID = b.nextSessionID
		b.inject(r)

	case packet.TypeDestroySession:
		b.inject(b.reply(p, packet.TypeDestroySessionReply))

	case packet.TypeAddConsumer:
		b.nextConsumerID++
		r := b.reply(p, packet.TypeAddConsumerReply)
		r.ConsumerID = b.nextConsumerID
		b.inject(r)

	case packet.TypeDeleteConsumer:
		b.inject(b.reply(p, packet.TypeDeleteConsumerReply))

	case packet.TypeAddProducer:
		b.nextProducerID++
		r := b.reply(p, packet.TypeAddProducerReply)
		r.ProducerID = b.nextProducerID
		r.SetProperty("JMQSize", int64(b.grantChunkSize))
		r.SetProperty("JMQBytes", b.grantChunkBytes)
		b.inject(r)

	case packet.TypeDeleteProducer:
		b.inject(b.reply(p, packet.TypeDeleteProducerReply))

	case packet.TypeCreateDestination:
		b.inject(b.reply(p, packet.TypeCreateDestinationReply))

	case packet.TypeDestroyDestination:
		b.inject(b.reply(p, packet.TypeDestroyDestinationReply))

	case packet.TypeAcknowledge:
		if v, ok := p.GetProperty("JMQAckType"); ok && v != nil {
			b.expiredAcks = append(b.expiredAcks, p.Body)
		} else {
			b.ackBodies = append(b.ackBodies, p.Body)
		}
		b.inject(b.reply(p, packet.TypeAcknowledgeReply))

	case packet.TypeRedeliver:
		b.redelivers = append(b.redelivers, p)

	case packet.TypeStartTransaction:
		b.nextTxnID++
		r := b.reply(p, packet.TypeStartTransactionReply)
		r.TransactionID = b.nextTxnID
		b.inject(r)

	case packet.TypeCommitTransaction:
		b.commits = append(b.commits, p.TransactionID)
		b.inject(b.reply(p, packet.TypeCommitTransactionReply))

	case packet.TypeRollbackTransaction:
		b.rollbacks = append(b.rollbacks, p.TransactionID)
		b.inject(b.reply(p, packet.TypeRollbackTransactionReply))

	case packet.TypeStop:
		b.stops++
		b.inject(b.reply(p, packet.TypeStopReply))

	case packet.TypeStart, packet.TypeResumeFlow:
		// No reply.

	case packet.TypeGoodbye:
		b.goodbyes++
		if v, ok := p.GetProperty("JMQBlock"); ok {
			if block, _ := v.(bool); block {
				b.inject(b.reply(p, packet.TypeGoodbyeReply))
			}
		}

	case packet.TypePing:
		b.inject(b.reply(p, packet.TypePingReply))

	default:
		if p.PType.IsMessage() {
			b.sentMessages = append(b.sentMessages, p)
			if p.GetFlag(packet.FlagSendAck) {
				b.inject(b.reply(p, packet.TypeSendReply))
			}
		}
	}
	return nil
}

func (b *brokerSim) sentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sentMessages)
}

func (b *brokerSim) ackCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ackBodies)
}

func (b *brokerSim) expiredAckCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.expiredAcks)
}

func (b *brokerSim) lastSent() *packet.Packet {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sentMessages) == 0 {
		return nil
	}
	return b.sentMessages[len(b.sentMessages)-1]
}

// connectSim opens a connection over a fresh broker simulator.
func connectSim(opts ...ConnectOption) (*Connection, *brokerSim, error) {
	cfg := DefaultConfig()
	cfg.PingInterval = 0
	cfg.AckTimeout = 5 * time.Second
	return connectSimCfg(cfg, opts...)
}

// connectSimCfg is connectSim with an explicit configuration.
func connectSimCfg(cfg ConnectionConfig, opts ...ConnectOption) (*Connection, *brokerSim, error) {
	b := newBrokerSim()
	all := append([]ConnectOption{withTransport(b)}, opts...)
	conn, err := Connect(cfg, all...)
	return conn, b, err
}

func sysID(seq uint32) packet.SysMessageID {
	return packet.SysMessageID{Host: "10.0.0.1", Port: 7676, Timestamp: 1700000000000, Sequence: seq}
}
