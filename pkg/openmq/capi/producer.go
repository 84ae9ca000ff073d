package capi

import (
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/handle"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/status"
)

// CreateMessageProducer creates an unbound producer on the session.
func CreateMessageProducer(session Handle, out *Handle) Status {
	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle
	return withSession(session, func(s *openmq.Session) Status {
		p, err := s.CreateProducer()
		if err != nil {
			return statusOf(err)
		}
		ph, st := allocate(p, handle.KindProducer)
		if st != OK {
			_ = p.Close()
			return st
		}
		*out = ph
		return OK
	})
}

// CreateMessageProducerForDestination creates a producer bound to dest.
func CreateMessageProducerForDestination(session Handle, dest Handle, out *Handle) Status {
	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle
	d, st := acquire[*openmq.Destination](dest, handle.KindDestination)
	if st != OK {
		return st
	}
	defer release(dest)
	return withSession(session, func(s *openmq.Session) Status {
		p, err := s.CreateProducerFor(d)
		if err != nil {
			return statusOf(err)
		}
		ph, st := allocate(p, handle.KindProducer)
		if st != OK {
			_ = p.Close()
			return st
		}
		*out = ph
		return OK
	})
}

func withProducer(h Handle, fn func(p *openmq.Producer) Status) Status {
	p, st := acquire[*openmq.Producer](h, handle.KindProducer)
	if st != OK {
		return st
	}
	defer release(h)
	return fn(p)
}

// CloseMessageProducer closes the producer and invalidates its handle.
func CloseMessageProducer(h Handle) Status {
	st := withProducer(h, func(p *openmq.Producer) Status {
		return statusOf(p.Close())
	})
	if st != OK {
		return st
	}
	return free(h)
}

// SendMessage sends msg to the producer's bound destination with the
// producer defaults.
func SendMessage(producer Handle, msg Handle) Status {
	m, st := acquire[*openmq.Message](msg, handle.KindMessage)
	if st != OK {
		return st
	}
	defer release(msg)
	return withProducer(producer, func(p *openmq.Producer) Status {
		return statusOf(p.Send(m))
	})
}

// SendMessageExt sends msg with explicit delivery mode, priority and ttl.
func SendMessageExt(producer Handle, msg Handle, mode DeliveryMode, priority int32, timeToLive int64) Status {
	m, st := acquire[*openmq.Message](msg, handle.KindMessage)
	if st != OK {
		return st
	}
	defer release(msg)
	return withProducer(producer, func(p *openmq.Producer) Status {
		return statusOf(p.SendExt(m, openmq.DeliveryMode(mode), priority, timeToLive))
	})
}

// SendMessageToDestination sends msg to dest via an unbound producer.
func SendMessageToDestination(producer Handle, msg Handle, dest Handle) Status {
	m, st := acquire[*openmq.Message](msg, handle.KindMessage)
	if st != OK {
		return st
	}
	defer release(msg)
	d, st := acquire[*openmq.Destination](dest, handle.KindDestination)
	if st != OK {
		return st
	}
	defer release(dest)
	return withProducer(producer, func(p *openmq.Producer) Status {
		return statusOf(p.SendTo(m, d))
	})
}

// SendMessageToDestinationExt sends msg to dest with explicit delivery
// parameters via an unbound producer.
func SendMessageToDestinationExt(producer Handle, msg Handle, dest Handle,
	mode DeliveryMode, priority int32, timeToLive int64) Status {

	m, st := acquire[*openmq.Message](msg, handle.KindMessage)
	if st != OK {
		return st
	}
	defer release(msg)
	d, st := acquire[*openmq.Destination](dest, handle.KindDestination)
	if st != OK {
		return st
	}
	defer release(dest)
	return withProducer(producer, func(p *openmq.Producer) Status {
		return statusOf(p.SendToExt(m, d, openmq.DeliveryMode(mode), priority, timeToLive))
	})
}

// SetDeliveryDelay sets the producer's default delivery delay in
// milliseconds.
func SetDeliveryDelay(producer Handle, deliveryDelay int64) Status {
	return withProducer(producer, func(p *openmq.Producer) Status {
		p.SetDeliveryDelay(deliveryDelay)
		return OK
	})
}

// GetDeliveryDelay reports the producer's default delivery delay.
func GetDeliveryDelay(producer Handle, out *int64) Status {
	if out == nil {
		return status.NullPtrArg
	}
	return withProducer(producer, func(p *openmq.Producer) Status {
		*out = p.DeliveryDelay()
		return OK
	})
}
