package capi

import (
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/handle"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/status"
)

// CreateMessage creates an empty plain message.
func CreateMessage(out *Handle) Status {
	return createMessage(out, openmq.NewMessage(), handle.KindMessage)
}

// CreateTextMessage creates an empty text message.
func CreateTextMessage(out *Handle) Status {
	return createMessage(out, openmq.NewTextMessage(), handle.KindTextMessage)
}

// CreateBytesMessage creates an empty bytes message.
func CreateBytesMessage(out *Handle) Status {
	return createMessage(out, openmq.NewBytesMessage(), handle.KindBytesMessage)
}

func createMessage(out *Handle, m *openmq.Message, kind handle.Kind) Status {
	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle
	h, st := allocate(m, kind)
	if st != OK {
		return st
	}
	*out = h
	return OK
}

// FreeMessage releases a message handle of any variant.
func FreeMessage(h Handle) Status {
	return free(h)
}

func withMessage(h Handle, fn func(m *openmq.Message) Status) Status {
	m, st := acquire[*openmq.Message](h, handle.KindMessage)
	if st != OK {
		return st
	}
	defer release(h)
	return fn(m)
}

// GetMessageType reports the message variant.
func GetMessageType(h Handle, out *MessageType) Status {
	if out == nil {
		return status.NullPtrArg
	}
	return withMessage(h, func(m *openmq.Message) Status {
		switch m.Kind() {
		case openmq.TextKind:
			*out = TextMessageType
		case openmq.BytesKind:
			*out = BytesMessageType
		default:
			*out = PlainMessageType
		}
		return OK
	})
}

// SetMessageText replaces the body of a text message.
func SetMessageText(h Handle, text string) Status {
	m, st := acquire[*openmq.Message](h, handle.KindTextMessage)
	if st != OK {
		return st
	}
	defer release(h)
	return statusOf(m.SetText(text))
}

// GetMessageText returns the body of a text message.
func GetMessageText(h Handle, out *string) Status {
	if out == nil {
		return status.NullPtrArg
	}
	m, st := acquire[*openmq.Message](h, handle.KindTextMessage)
	if st != OK {
		return st
	}
	defer release(h)
	text, err := m.Text()
	if err != nil {
		return statusOf(err)
	}
	*out = text
	return OK
}

// SetMessageBytes replaces the body of a bytes message.
func SetMessageBytes(h Handle, body []byte) Status {
	m, st := acquire[*openmq.Message](h, handle.KindBytesMessage)
	if st != OK {
		return st
	}
	defer release(h)
	return statusOf(m.SetBytes(body))
}

// GetMessageBytes returns the body of a bytes message.
func GetMessageBytes(h Handle, out *[]byte) Status {
	if out == nil {
		return status.NullPtrArg
	}
	m, st := acquire[*openmq.Message](h, handle.KindBytesMessage)
	if st != OK {
		return st
	}
	defer release(h)
	body, err := m.Bytes()
	if err != nil {
		return statusOf(err)
	}
	*out = body
	return OK
}

// SetMessageReplyTo records where replies to this message should go.
func SetMessageReplyTo(h Handle, dest Handle) Status {
	d, st := acquire[*openmq.Destination](dest, handle.KindDestination)
	if st != OK {
		return st
	}
	defer release(dest)
	return withMessage(h, func(m *openmq.Message) Status {
		return statusOf(m.SetReplyTo(d))
	})
}

// GetMessageReplyTo returns the reply destination as a fresh handle.
func GetMessageReplyTo(h Handle, out *Handle) Status {
	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle
	return withMessage(h, func(m *openmq.Message) Status {
		d, err := m.ReplyTo()
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

// SetMessageProperties replaces the message properties from a bag.
func SetMessageProperties(h Handle, props Handle) Status {
	p, st := acquire[*openmq.Properties](props, handle.KindProperties)
	if st != OK {
		return st
	}
	defer release(props)
	return withMessage(h, func(m *openmq.Message) Status {
		return statusOf(m.SetProperties(p))
	})
}

// GetMessageProperties returns the message properties as a fresh bag
// handle.
func GetMessageProperties(h Handle, out *Handle) Status {
	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle
	return withMessage(h, func(m *openmq.Message) Status {
		ph, st := allocate(m.Properties(), handle.KindProperties)
		if st != OK {
			return st
		}
		*out = ph
		return OK
	})
}

// SetMessageHeaders applies the writable JMS header fields from a
// properties bag; unknown keys are ignored. The broker-assigned headers
// (message id, timestamp, redelivered) are read-only.
func SetMessageHeaders(h Handle, props Handle) Status {
	p, st := acquire[*openmq.Properties](props, handle.KindProperties)
	if st != OK {
		return st
	}
	defer release(props)
	return withMessage(h, func(m *openmq.Message) Status {
		if v, err := p.GetString("MQCorrelationIDHeader"); err == nil {
			m.SetCorrelationID(v)
		}
		if v, err := p.GetString("MQMessageTypeHeader"); err == nil {
			m.SetType(v)
		}
		return OK
	})
}

// GetMessageHeaders exposes the JMS header fields as a properties bag.
func GetMessageHeaders(h Handle, out *Handle) Status {
	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle
	return withMessage(h, func(m *openmq.Message) Status {
		p := openmq.NewProperties()
		p.SetString("MQMessageIDHeader", m.MessageID())
		p.SetInt64("MQTimestampHeader", m.Timestamp())
		p.SetString("MQCorrelationIDHeader", m.CorrelationID())
		p.SetInt32("MQDeliveryModeHeader", int32(m.DeliveryMode()))
		p.SetInt8("MQPriorityHeader", int8(m.Priority()))
		p.SetBool("MQRedeliveredHeader", m.Redelivered())
		p.SetInt64("MQExpirationHeader", m.Expiration())
		p.SetString("MQMessageTypeHeader", m.Type())
		ph, st := allocate(p, handle.KindProperties)
		if st != OK {
			return st
		}
		*out = ph
		return OK
	})
}
