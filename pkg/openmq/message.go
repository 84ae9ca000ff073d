package openmq

import (
	"time"

	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/packet"
)

// MessageKind distinguishes the three concrete message variants.
type MessageKind int32

const (
	PlainMessage MessageKind = iota
	TextKind
	BytesKind
)

// Message wraps a packet and proxies the JMS header fields to it. Messages
// created by the application are owned by the application; messages
// delivered by the library transfer ownership on a successful receive.
type Message struct {
	pkt *packet.Packet

	// Delivery-side state, immutable once set.
	session    *Session
	sysID      packet.SysMessageID
	consumerID uint64

	dest    *Destination
	replyTo *Destination

	// ackProcessed flips one way when the message has contributed to an
	// acknowledgement block.
	ackProcessed bool
}

// NewMessage creates an empty plain message.
func NewMessage() *Message {
	return &Message{pkt: packet.New(packet.TypeMessage)}
}

// NewTextMessage creates an empty text message.
func NewTextMessage() *Message {
	return &Message{pkt: packet.New(packet.TypeTextMessage)}
}

// NewBytesMessage creates an empty bytes message.
func NewBytesMessage() *Message {
	return &Message{pkt: packet.New(packet.TypeBytesMessage)}
}

// messageFromPacket constructs the message variant matching the packet
// type, capturing the delivery identity. Unknown packet types yield nil.
func messageFromPacket(p *packet.Packet) *Message {
	switch p.PType {
	case packet.TypeTextMessage, packet.TypeBytesMessage, packet.TypeMessage:
		return &Message{pkt: p, sysID: p.SysID, consumerID: p.ConsumerID}
	default:
		return nil
	}
}

// Kind reports the concrete message variant.
func (m *Message) Kind() MessageKind {
	switch m.pkt.PType {
	case packet.TypeTextMessage:
		return TextKind
	case packet.TypeBytesMessage:
		return BytesKind
	default:
		return PlainMessage
	}
}

// Text returns the body of a text message.
func (m *Message) Text() (string, error) {
	if m.pkt.PType != packet.TypeTextMessage {
		return "", ErrPropertyWrongType
	}
	return string(m.pkt.Body), nil
}

// SetText replaces the body of a text message.
func (m *Message) SetText(text string) error {
	if m.pkt.PType != packet.TypeTextMessage {
		return ErrPropertyWrongType
	}
	m.pkt.Body = []byte(text)
	return nil
}

// Bytes returns the body of a bytes message.
func (m *Message) Bytes() ([]byte, error) {
	if m.pkt.PType != packet.TypeBytesMessage {
		return nil, ErrPropertyWrongType
	}
	return m.pkt.Body, nil
}

// SetBytes replaces the body of a bytes message. The slice is copied into
// packet-owned storage.
func (m *Message) SetBytes(body []byte) error {
	if m.pkt.PType != packet.TypeBytesMessage {
		return ErrPropertyWrongType
	}
	m.pkt.Body = append([]byte(nil), body...)
	return nil
}

// MessageID returns the broker-assigned message id string.
func (m *Message) MessageID() string {
	return m.pkt.MessageID
}

// SystemMessageID returns the broker-assigned globally unique id of a
// received message.
func (m *Message) SystemMessageID() packet.SysMessageID {
	return m.sysID
}

// ConsumerID returns the id of the consumer the message was delivered to.
func (m *Message) ConsumerID() uint64 {
	return m.consumerID
}

// Timestamp returns the send timestamp in milliseconds.
func (m *Message) Timestamp() int64 {
	return m.pkt.Timestamp
}

// CorrelationID returns the application correlation id.
func (m *Message) CorrelationID() string {
	if v, ok := m.pkt.GetProperty("JMSCorrelationID"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SetCorrelationID sets the application correlation id.
func (m *Message) SetCorrelationID(id string) {
	m.pkt.SetProperty("JMSCorrelationID", id)
}

// Type returns the JMS message type header.
func (m *Message) Type() string {
	return m.pkt.MessageType
}

// SetType sets the JMS message type header.
func (m *Message) SetType(t string) {
	m.pkt.MessageType = t
}

// Destination returns the destination the message was sent to, or nil.
func (m *Message) Destination() *Destination {
	return m.dest
}

// setDestination stamps the destination name, class and kind into the
// packet. Called on the send path.
func (m *Message) setDestination(d *Destination) error {
	if d == nil {
		return ErrNullArg
	}
	if d.Name() == "" {
		return ErrDestinationNoName
	}
	m.dest = d
	m.pkt.Destination = d.Name()
	m.pkt.DestinationClass = d.ClassName()
	m.pkt.SetFlag(packet.FlagIsQueue, d.IsQueue())
	return nil
}

// SetReplyTo records where replies should be sent. The name and class name
// are cloned into packet-owned storage.
func (m *Message) SetReplyTo(d *Destination) error {
	if d == nil {
		return ErrNullArg
	}
	if d.Name() == "" {
		return ErrDestinationNoName
	}
	m.replyTo = nil
	m.pkt.ReplyTo = d.Name()
	m.pkt.ReplyToClass = d.ClassName()
	return nil
}

// ReplyTo returns the reply destination, reconstructing it from the packet
// header the first time. It fails with ErrNoReplyTo when the message
// carries none.
func (m *Message) ReplyTo() (*Destination, error) {
	if m.replyTo != nil {
		return m.replyTo, nil
	}
	if m.pkt.ReplyTo == "" || m.pkt.ReplyToClass == "" {
		return nil, ErrNoReplyTo
	}
	d := destinationFromClassName(m.pkt.ReplyTo, m.pkt.ReplyToClass, nil)
	if err := d.initializationError(); err != nil {
		return nil, err
	}
	m.replyTo = d
	return d, nil
}

// DeliveryMode reports the persistence setting.
func (m *Message) DeliveryMode() DeliveryMode {
	if m.pkt.GetFlag(packet.FlagPersistent) {
		return PersistentDelivery
	}
	return NonPersistentDelivery
}

// setDeliveryMode stamps the persistence flag; mode must be valid.
func (m *Message) setDeliveryMode(mode DeliveryMode) error {
	if !mode.valid() {
		return ErrInvalidDeliveryMode
	}
	m.pkt.SetFlag(packet.FlagPersistent, mode == PersistentDelivery)
	return nil
}

// Priority returns the message priority.
func (m *Message) Priority() uint8 {
	return m.pkt.Priority
}

// setPriority stamps the priority; valid range is [0,9].
func (m *Message) setPriority(priority int32) error {
	if priority < minPriority || priority > maxPriority {
		return ErrInvalidPriority
	}
	m.pkt.Priority = uint8(priority)
	return nil
}

// Redelivered reports whether the broker (or a recover) flagged the message
// as redelivered.
func (m *Message) Redelivered() bool {
	return m.pkt.GetFlag(packet.FlagRedelivered)
}

func (m *Message) setRedelivered(on bool) {
	m.pkt.SetFlag(packet.FlagRedelivered, on)
}

// Expiration returns the absolute expiration time in milliseconds, zero
// meaning the message never expires.
func (m *Message) Expiration() int64 {
	return m.pkt.Expiration
}

// IsExpired reports whether the expiration time has passed.
func (m *Message) IsExpired() bool {
	exp := m.pkt.Expiration
	if exp == 0 {
		return false
	}
	return time.Now().UnixMilli() >= exp
}

// setExpiration converts a time-to-live into an absolute expiration stamp.
func (m *Message) setExpiration(ttl int64) {
	if ttl == 0 {
		m.pkt.Expiration = 0
		return
	}
	m.pkt.Expiration = time.Now().UnixMilli() + ttl
}

// setDeliveryTime converts a delivery delay into an absolute delivery-time
// stamp.
func (m *Message) setDeliveryTime(delay int64) {
	if delay == 0 {
		m.pkt.DeliveryTime = 0
		return
	}
	m.pkt.DeliveryTime = time.Now().UnixMilli() + delay
}

// Properties returns a bag view of the message properties.
func (m *Message) Properties() *Properties {
	return propertiesFromMap(m.pkt.Properties)
}

// SetProperties replaces the message properties from the bag.
func (m *Message) SetProperties(p *Properties) error {
	if p == nil {
		return ErrNullArg
	}
	m.pkt.Properties = p.asMap()
	return nil
}

// SetProperty stores a single property value.
func (m *Message) SetProperty(key string, value any) {
	m.pkt.SetProperty(key, value)
}

// GetProperty fetches a single property value.
func (m *Message) GetProperty(key string) (any, bool) {
	return m.pkt.GetProperty(key)
}

// Session returns the session that delivered the message, or nil for
// application-created messages.
func (m *Message) Session() *Session {
	return m.session
}

func (m *Message) setSession(s *Session) {
	if m.session == nil {
		m.session = s
	}
}

func (m *Message) isAckProcessed() bool {
	return m.ackProcessed
}

func (m *Message) setAckProcessed() {
	m.ackProcessed = true
}

func (m *Message) packetRef() *packet.Packet {
	return m.pkt
}
