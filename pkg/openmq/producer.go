package openmq

import (
	"sync"
)

// Producer is a sending endpoint on a session. A producer is either bound
// to one destination at creation, or unbound, naming a destination on every
// send. Destinations are validated with the broker once and the issued
// producer id (and its send window) is reused afterwards.
type Producer struct {
	session *Session

	// dest is a private clone of the bound destination; nil for unbound
	// producers.
	dest *Destination

	mu        sync.Mutex
	validated map[string]int64 // destination name -> broker producer id
	closed    bool

	deliveryMode  DeliveryMode
	priority      int32
	timeToLive    int64
	deliveryDelay int64
}

func newProducer(s *Session, dest *Destination) (*Producer, error) {
	p := &Producer{
		session:       s,
		validated:     make(map[string]int64),
		deliveryMode:  defaultDeliveryMode,
		priority:      defaultPriority,
		timeToLive:    defaultTimeToLive,
		deliveryDelay: defaultDeliveryDelay,
	}
	if dest != nil {
		clone := dest.Clone()
		if clone == nil {
			if err := dest.initializationError(); err != nil {
				return nil, err
			}
			return nil, ErrDestinationNoName
		}
		p.dest = clone
	}
	return p, nil
}

// Destination returns the bound destination, or nil for unbound producers.
func (p *Producer) Destination() *Destination {
	return p.dest
}

// DeliveryMode returns the default delivery mode for sends.
func (p *Producer) DeliveryMode() DeliveryMode {
	return p.deliveryMode
}

// SetDeliveryMode sets the default delivery mode.
func (p *Producer) SetDeliveryMode(mode DeliveryMode) error {
	if !mode.valid() {
		return ErrInvalidDeliveryMode
	}
	p.deliveryMode = mode
	return nil
}

// Priority returns the default priority.
func (p *Producer) Priority() int32 {
	return p.priority
}

// SetPriority sets the default priority, clamping to [0,9].
func (p *Producer) SetPriority(priority int32) {
	if priority < minPriority {
		priority = minPriority
	} else if priority > maxPriority {
		priority = maxPriority
	}
	p.priority = priority
}

// TimeToLive returns the default time-to-live in milliseconds.
func (p *Producer) TimeToLive() int64 {
	return p.timeToLive
}

// SetTimeToLive sets the default time-to-live in milliseconds; zero means
// messages never expire.
func (p *Producer) SetTimeToLive(ttl int64) {
	p.timeToLive = ttl
}

// DeliveryDelay returns the default delivery delay in milliseconds.
func (p *Producer) DeliveryDelay() int64 {
	return p.deliveryDelay
}

// SetDeliveryDelay sets the default delivery delay in milliseconds.
func (p *Producer) SetDeliveryDelay(delay int64) {
	p.deliveryDelay = delay
}

// Send sends msg to the bound destination with the producer defaults.
func (p *Producer) Send(msg *Message) error {
	if msg == nil {
		return ErrNullArg
	}
	if p.dest == nil {
		return ErrProducerNoDestination
	}
	return p.send(msg, p.dest, p.deliveryMode, p.priority, p.timeToLive)
}

// SendTo sends msg to dest; only unbound producers may name a destination.
func (p *Producer) SendTo(msg *Message, dest *Destination) error {
	if msg == nil || dest == nil {
		return ErrNullArg
	}
	if p.dest != nil {
		return ErrProducerHasDestination
	}
	return p.send(msg, dest, p.deliveryMode, p.priority, p.timeToLive)
}

// SendExt sends msg to the bound destination overriding mode, priority and
// time-to-live for this send.
func (p *Producer) SendExt(msg *Message, mode DeliveryMode, priority int32, ttl int64) error {
	if msg == nil {
		return ErrNullArg
	}
	if p.dest == nil {
		return ErrProducerNoDestination
	}
	return p.send(msg, p.dest, mode, priority, ttl)
}

// SendToExt sends msg to dest with explicit mode, priority and ttl; only
// unbound producers may name a destination.
func (p *Producer) SendToExt(msg *Message, dest *Destination, mode DeliveryMode, priority int32, ttl int64) error {
	if msg == nil || dest == nil {
		return ErrNullArg
	}
	if p.dest != nil {
		return ErrProducerHasDestination
	}
	return p.send(msg, dest, mode, priority, ttl)
}

func (p *Producer) send(msg *Message, dest *Destination, mode DeliveryMode, priority int32, ttl int64) error {
	if err := p.session.enter(); err != nil {
		return err
	}
	defer p.session.exit()

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrProducerClosed
	}

	if err := msg.setDestination(dest); err != nil {
		return err
	}
	if err := msg.setDeliveryMode(mode); err != nil {
		return err
	}
	if err := msg.setPriority(priority); err != nil {
		return err
	}
	msg.setExpiration(ttl)
	msg.setDeliveryTime(p.deliveryDelay)
	msg.packetRef().Stamp()

	producerID, err := p.validateDestination(dest)
	if err != nil {
		return err
	}
	return p.session.writeJMSMessage(msg, producerID)
}

// validateDestination registers dest with the broker on first use and
// caches the issued producer id.
func (p *Producer) validateDestination(dest *Destination) (int64, error) {
	name := dest.Name()
	if name == "" {
		return 0, ErrDestinationNoName
	}

	p.mu.Lock()
	if id, ok := p.validated[name]; ok {
		p.mu.Unlock()
		return id, nil
	}
	p.mu.Unlock()

	id, err := p.session.registerProducer(dest)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = p.session.unregisterProducer(id)
		return 0, ErrProducerClosed
	}
	p.validated[name] = id
	p.mu.Unlock()
	return id, nil
}

// Close closes the producer through its session.
func (p *Producer) Close() error {
	return p.session.CloseProducer(p)
}

// closeInternal deregisters every validated destination. Idempotent.
func (p *Producer) closeInternal() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	ids := make([]int64, 0, len(p.validated))
	for _, id := range p.validated {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := p.session.unregisterProducer(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
