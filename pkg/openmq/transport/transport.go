// Package transport provides the reliable framed packet pipe between the
// client and the broker: a Transport interface plus TCP and TLS dialers.
//
// Frames are a fixed binary header (magic, protocol version, packet type,
// payload length) followed by a JSON-encoded packet envelope. The framing is
// self-consistent between this client's endpoints; everything above the
// transport deals only in *packet.Packet values.
package transport

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/chris-alexander-pop/openmq-client/pkg/errors"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/packet"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/status"
)

const (
	frameMagic   uint32 = 0x4D51_7071 // "MQpq"
	headerLength        = 12

	// maxFrameSize bounds a single packet so a corrupt length field cannot
	// force a huge allocation.
	maxFrameSize uint32 = 64 << 20
)

// Transport is a reliable pipe of typed packets. WritePacket is safe for
// concurrent use; ReadPacket is driven by a single reader goroutine.
type Transport interface {
	WritePacket(p *packet.Packet) error
	ReadPacket() (*packet.Packet, error)
	Close() error
}

var (
	errReadFailed  = errors.NewStatus("MQ_SOCKET_READ_FAILED", int32(status.SocketReadFailed), "transport read failed", nil)
	errWriteFailed = errors.NewStatus("MQ_SOCKET_WRITE_FAILED", int32(status.SocketWriteFailed), "transport write failed", nil)
	errBadMagic    = errors.NewStatus("MQ_BAD_PACKET_MAGIC_NUMBER", int32(status.BadPacketMagicNumber), "bad frame magic", nil)
	errBadVersion  = errors.NewStatus("MQ_UNSUPPORTED_PACKET_VERSION", int32(status.UnsupportedPacketVersion), "unsupported protocol version", nil)
	errConnect     = errors.NewStatus("MQ_SOCKET_CONNECT_FAILED", int32(status.SocketConnectFailed), "connect failed", nil)
	errClosed      = errors.NewStatus("MQ_TCP_CONNECTION_CLOSED", int32(status.TCPConnectionClosed), "connection closed", nil)
	errTooLarge    = errors.NewStatus("MQ_INVALID_PACKET", int32(status.InvalidPacket), "frame exceeds size limit", nil)
)

// Dial opens a plain TCP transport to host:port.
func Dial(host string, port int, timeout time.Duration) (Transport, error) {
	c, err := net.DialTimeout("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)), timeout)
	if err != nil {
		return nil, errors.NewStatus(errConnect.Code, errConnect.Status, errConnect.Message, err)
	}
	return newConn(c), nil
}

// conn implements Transport over a net.Conn.
type conn struct {
	c net.Conn
	r *bufio.Reader

	wmu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(c net.Conn) *conn {
	return &conn{
		c:      c,
		r:      bufio.NewReaderSize(c, 64<<10),
		closed: make(chan struct{}),
	}
}

// envelope is the wire form of a packet. The header fields travel in the
// JSON body; the packet type and payload length travel only in the binary
// frame header.
type envelope struct {
	Flags            uint16              `json:"flags,omitempty"`
	CorrelationID    uint32              `json:"cid,omitempty"`
	MessageID        string              `json:"mid,omitempty"`
	SysID            packet.SysMessageID `json:"sys,omitempty"`
	Timestamp        int64               `json:"ts,omitempty"`
	Priority         uint8               `json:"pri,omitempty"`
	Expiration       int64               `json:"exp,omitempty"`
	DeliveryTime     int64               `json:"dtime,omitempty"`
	MessageType      string              `json:"mtype,omitempty"`
	Destination      string              `json:"dest,omitempty"`
	DestinationClass string              `json:"destClass,omitempty"`
	ReplyTo          string              `json:"replyTo,omitempty"`
	ReplyToClass     string              `json:"replyToClass,omitempty"`
	ProducerID       int64               `json:"pid,omitempty"`
	ConsumerID       uint64              `json:"conid,omitempty"`
	SessionID        int64               `json:"sid,omitempty"`
	TransactionID    int64               `json:"txid,omitempty"`
	Status           int32               `json:"status,omitempty"`
	Properties       map[string]any      `json:"props,omitempty"`
	Headers          map[string]any      `json:"hdrs,omitempty"`
	Body             []byte              `json:"body,omitempty"`
}

func (t *conn) WritePacket(p *packet.Packet) error {
	env := envelope{
		Flags:            p.Flags,
		CorrelationID:    p.CorrelationID,
		MessageID:        p.MessageID,
		SysID:            p.SysID,
		Timestamp:        p.Timestamp,
		Priority:         p.Priority,
		Expiration:       p.Expiration,
		DeliveryTime:     p.DeliveryTime,
		MessageType:      p.MessageType,
		Destination:      p.Destination,
		DestinationClass: p.DestinationClass,
		ReplyTo:          p.ReplyTo,
		ReplyToClass:     p.ReplyToClass,
		ProducerID:       p.ProducerID,
		ConsumerID:       p.ConsumerID,
		SessionID:        p.SessionID,
		TransactionID:    p.TransactionID,
		Status:           p.Status,
		Properties:       p.Properties,
		Headers:          p.Headers,
		Body:             p.Body,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return errors.NewStatus(errWriteFailed.Code, errWriteFailed.Status, "encode packet", err)
	}

	var header [headerLength]byte
	binary.BigEndian.PutUint32(header[0:4], frameMagic)
	binary.BigEndian.PutUint16(header[4:6], uint16(packet.ProtocolVersion))
	binary.BigEndian.PutUint16(header[6:8], uint16(p.PType))
	binary.BigEndian.PutUint32(header[8:12], uint32(len(payload)))

	t.wmu.Lock()
	defer t.wmu.Unlock()
	if _, err := t.c.Write(header[:]); err != nil {
		return errors.NewStatus(errWriteFailed.Code, errWriteFailed.Status, errWriteFailed.Message, err)
	}
	if _, err := t.c.Write(payload); err != nil {
		return errors.NewStatus(errWriteFailed.Code, errWriteFailed.Status, errWriteFailed.Message, err)
	}
	return nil
}

func (t *conn) ReadPacket() (*packet.Packet, error) {
	var header [headerLength]byte
	if _, err := io.ReadFull(t.r, header[:]); err != nil {
		return nil, t.readErr(err)
	}
	if binary.BigEndian.Uint32(header[0:4]) != frameMagic {
		return nil, errBadMagic
	}
	if v := binary.BigEndian.Uint16(header[4:6]); uint32(v) != packet.ProtocolVersion {
		return nil, errBadVersion
	}
	ptype := packet.Type(binary.BigEndian.Uint16(header[6:8]))
	length := binary.BigEndian.Uint32(header[8:12])
	if length > maxFrameSize {
		return nil, errTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(t.r, payload); err != nil {
		return nil, t.readErr(err)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.NewStatus("MQ_INVALID_PACKET", int32(status.InvalidPacket), "decode packet", err)
	}
	return &packet.Packet{
		PType:            ptype,
		Flags:            env.Flags,
		CorrelationID:    env.CorrelationID,
		MessageID:        env.MessageID,
		SysID:            env.SysID,
		Timestamp:        env.Timestamp,
		Priority:         env.Priority,
		Expiration:       env.Expiration,
		DeliveryTime:     env.DeliveryTime,
		MessageType:      env.MessageType,
		Destination:      env.Destination,
		DestinationClass: env.DestinationClass,
		ReplyTo:          env.ReplyTo,
		ReplyToClass:     env.ReplyToClass,
		ProducerID:       env.ProducerID,
		ConsumerID:       env.ConsumerID,
		SessionID:        env.SessionID,
		TransactionID:    env.TransactionID,
		Status:           env.Status,
		Properties:       env.Properties,
		Headers:          env.Headers,
		Body:             env.Body,
	}, nil
}

func (t *conn) readErr(err error) error {
	select {
	case <-t.closed:
		return errClosed
	default:
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errClosed
	}
	return errors.NewStatus(errReadFailed.Code, errReadFailed.Status, errReadFailed.Message, err)
}

func (t *conn) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.c.Close()
	})
	return err
}

// IsClosed reports whether err signals a closed or failed pipe, as opposed
// to a malformed frame.
func IsClosed(err error) bool {
	return errors.Is(err, errClosed) || errors.Is(err, errReadFailed)
}
