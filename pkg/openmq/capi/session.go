package capi

import (
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/handle"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/status"
)

func withSession(h Handle, fn func(s *openmq.Session) Status) Status {
	s, st := acquire[*openmq.Session](h, handle.KindSession)
	if st != OK {
		return st
	}
	defer release(h)
	return fn(s)
}

// CloseSession closes the session and invalidates its handle.
func CloseSession(h Handle) Status {
	st := withSession(h, func(s *openmq.Session) Status {
		return statusOf(s.Close())
	})
	if st != OK {
		return st
	}
	return free(h)
}

// RecoverSession restarts delivery from the oldest unacknowledged message.
func RecoverSession(h Handle) Status {
	return withSession(h, func(s *openmq.Session) Status {
		return statusOf(s.Recover())
	})
}

// CommitSession commits the current transaction.
func CommitSession(h Handle) Status {
	return withSession(h, func(s *openmq.Session) Status {
		return statusOf(s.Commit())
	})
}

// RollbackSession rolls the current transaction back.
func RollbackSession(h Handle) Status {
	return withSession(h, func(s *openmq.Session) Status {
		return statusOf(s.Rollback())
	})
}

// GetAcknowledgeMode reports the session ack mode.
func GetAcknowledgeMode(h Handle, out *AckMode) Status {
	if out == nil {
		return status.NullPtrArg
	}
	return withSession(h, func(s *openmq.Session) Status {
		*out = AckMode(s.AckMode())
		return OK
	})
}

// CreateDestination names a queue or topic.
func CreateDestination(h Handle, name string, dtype DestinationType, out *Handle) Status {
	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle
	kind, st := destKindOf(dtype)
	if st != OK {
		return st
	}
	return withSession(h, func(s *openmq.Session) Status {
		d, err := s.CreateDestination(name, kind)
		if err != nil {
			return statusOf(err)
		}
		dh, st := allocate(d, handle.KindDestination)
		if st != OK {
			return st
		}
		*out = dh
		return OK
	})
}

// CreateTemporaryDestination creates a connection-scoped destination.
func CreateTemporaryDestination(h Handle, dtype DestinationType, out *Handle) Status {
	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle
	kind, st := destKindOf(dtype)
	if st != OK {
		return st
	}
	return withSession(h, func(s *openmq.Session) Status {
		d, err := s.CreateTemporaryDestination(kind)
		if err != nil {
			return statusOf(err)
		}
		dh, st := allocate(d, handle.KindDestination)
		if st != OK {
			return st
		}
		*out = dh
		return OK
	})
}

// FreeDestination releases a destination handle.
func FreeDestination(h Handle) Status {
	return free(h)
}

func withDestination(h Handle, fn func(d *openmq.Destination) Status) Status {
	d, st := acquire[*openmq.Destination](h, handle.KindDestination)
	if st != OK {
		return st
	}
	defer release(h)
	return fn(d)
}

// GetDestinationType reports whether the destination is a queue or topic.
func GetDestinationType(h Handle, out *DestinationType) Status {
	if out == nil {
		return status.NullPtrArg
	}
	return withDestination(h, func(d *openmq.Destination) Status {
		*out = destTypeOf(d.Kind())
		return OK
	})
}

// GetDestinationName returns the destination name.
func GetDestinationName(h Handle, out *string) Status {
	if out == nil {
		return status.NullPtrArg
	}
	return withDestination(h, func(d *openmq.Destination) Status {
		*out = d.Name()
		return OK
	})
}

// UnsubscribeDurableMessageConsumer removes an inactive durable
// subscription by name.
func UnsubscribeDurableMessageConsumer(h Handle, durableName string) Status {
	return withSession(h, func(s *openmq.Session) Status {
		return statusOf(s.UnsubscribeDurable(durableName))
	})
}

// AcknowledgeMessages acknowledges msg and every message delivered before
// it on the session.
func AcknowledgeMessages(h Handle, msg Handle) Status {
	m, st := acquire[*openmq.Message](msg, handle.KindMessage)
	if st != OK {
		return st
	}
	defer release(msg)
	return withSession(h, func(s *openmq.Session) Status {
		return statusOf(s.AcknowledgeMessages(m))
	})
}
