package openmq

// Broker-side class names for the four destination variants. The broker
// identifies destination kinds by these strings, so they are part of the
// wire contract.
const (
	queueClassName     = "com.sun.messaging.BasicQueue"
	tempQueueClassName = "com.sun.messaging.jmq.jmsclient.TemporaryQueueImpl"
	topicClassName     = "com.sun.messaging.BasicTopic"
	tempTopicClassName = "com.sun.messaging.jmq.jmsclient.TemporaryTopicImpl"
)

// Destination names a queue or topic on the broker. The name is immutable
// after creation. Temporary destinations carry a connection-scoped prefix
// the broker enforces.
type Destination struct {
	conn      *Connection // nil when created without a connection; clones keep the source's
	name      string
	kind      DestinationKind
	temporary bool
	initErr   error
}

func newDestination(conn *Connection, name string, kind DestinationKind, temporary bool) *Destination {
	return &Destination{conn: conn, name: name, kind: kind, temporary: temporary}
}

// destinationFromClassName builds a Destination from a broker class name.
// An unrecognized class name leaves the destination invalid; the error
// surfaces on first use.
func destinationFromClassName(name, className string, conn *Connection) *Destination {
	d := &Destination{conn: conn, name: name}
	switch className {
	case queueClassName:
		d.kind = Queue
	case tempQueueClassName:
		d.kind, d.temporary = Queue, true
	case topicClassName:
		d.kind = Topic
	case tempTopicClassName:
		d.kind, d.temporary = Topic, true
	default:
		d.name = ""
		d.initErr = ErrDestinationNoClass
	}
	return d
}

// Name returns the destination name.
func (d *Destination) Name() string {
	return d.name
}

// Kind reports whether the destination is a queue or a topic.
func (d *Destination) Kind() DestinationKind {
	return d.kind
}

// IsQueue is a convenience for Kind() == Queue.
func (d *Destination) IsQueue() bool {
	return d.kind == Queue
}

// IsTemporary reports whether the destination is connection-scoped.
func (d *Destination) IsTemporary() bool {
	return d.temporary
}

// ClassName returns the broker class name of the destination variant.
func (d *Destination) ClassName() string {
	if d.kind == Queue {
		if d.temporary {
			return tempQueueClassName
		}
		return queueClassName
	}
	if d.temporary {
		return tempTopicClassName
	}
	return topicClassName
}

// initializationError reports a construction failure; valid destinations
// return nil.
func (d *Destination) initializationError() error {
	if d.initErr != nil {
		return d.initErr
	}
	if d.name == "" {
		return ErrDestinationNoName
	}
	return nil
}

// Clone returns a deep copy detached from any session. It returns nil when
// the source is invalid.
func (d *Destination) Clone() *Destination {
	if d.initializationError() != nil {
		return nil
	}
	clone := destinationFromClassName(d.name, d.ClassName(), d.conn)
	if clone.initializationError() != nil || clone.name != d.name {
		return nil
	}
	return clone
}

// Delete removes a temporary destination at the broker. It fails on
// non-temporary destinations and on destinations detached from their
// connection.
func (d *Destination) Delete() error {
	if !d.temporary {
		return ErrNotTemporary
	}
	if d.conn == nil {
		return ErrConnectionClosed
	}
	return d.conn.deleteDestination(d)
}
