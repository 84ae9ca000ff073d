package capi

import (
	"time"

	"github.com/chris-alexander-pop/openmq-client/pkg/openmq"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/handle"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/status"
)

// MessageListenerFunc handles one asynchronously delivered message. The
// message handle is owned by the callback; free it when done. A non-zero
// return counts as a delivery failure.
type MessageListenerFunc func(session, consumer, msg Handle, callbackData any) Status

// consumerRef ties a consumer to the handles its callbacks see.
type consumerRef struct {
	consumer *openmq.Consumer
	session  Handle
	h        Handle
}

type consumerFlavor struct {
	durable bool
	shared  bool
}

func createConsumer(session, dest Handle, flavor consumerFlavor, subscriptionName, selector string,
	noLocal bool, listener MessageListenerFunc, callbackData any, out *Handle) Status {

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
		// The handle is allocated up front so the listener can name the
		// consumer from the very first delivery.
		ref := &consumerRef{session: session}
		ch, st := allocate(ref, handle.KindConsumer)
		if st != OK {
			return st
		}
		ref.h = ch

		opts := openmq.ConsumerOptions{
			Durable:          flavor.durable,
			Shared:           flavor.shared,
			NoLocal:          noLocal,
			SubscriptionName: subscriptionName,
			Selector:         selector,
		}
		if listener != nil {
			opts.Listener = func(m *openmq.Message) error {
				mh, st := allocate(m, messageKindOf(m))
				if st != OK {
					return statusError(st)
				}
				if rc := listener(ref.session, ref.h, mh, callbackData); rc != OK {
					return statusError(rc)
				}
				return nil
			}
		}

		c, err := s.CreateConsumer(d, opts)
		if err != nil {
			_ = free(ch)
			return statusOf(err)
		}
		ref.consumer = c
		*out = ch
		return OK
	})
}

// CreateSyncMessageConsumer creates a synchronous consumer.
func CreateSyncMessageConsumer(session, dest Handle, selector string, noLocal bool, out *Handle) Status {
	return createConsumer(session, dest, consumerFlavor{}, "", selector, noLocal, nil, nil, out)
}

// CreateSyncDurableMessageConsumer creates a synchronous durable consumer.
func CreateSyncDurableMessageConsumer(session, dest Handle, durableName, selector string, noLocal bool, out *Handle) Status {
	return createConsumer(session, dest, consumerFlavor{durable: true}, durableName, selector, noLocal, nil, nil, out)
}

// CreateSyncSharedMessageConsumer creates a synchronous shared consumer.
func CreateSyncSharedMessageConsumer(session, dest Handle, subscriptionName, selector string, out *Handle) Status {
	return createConsumer(session, dest, consumerFlavor{shared: true}, subscriptionName, selector, false, nil, nil, out)
}

// CreateSyncSharedDurableMessageConsumer creates a synchronous shared
// durable consumer.
func CreateSyncSharedDurableMessageConsumer(session, dest Handle, subscriptionName, selector string, out *Handle) Status {
	return createConsumer(session, dest, consumerFlavor{durable: true, shared: true}, subscriptionName, selector, false, nil, nil, out)
}

// CreateAsyncMessageConsumer creates a listener-driven consumer.
func CreateAsyncMessageConsumer(session, dest Handle, selector string, noLocal bool,
	listener MessageListenerFunc, callbackData any, out *Handle) Status {
	return createConsumer(session, dest, consumerFlavor{}, "", selector, noLocal, listener, callbackData, out)
}

// CreateAsyncDurableMessageConsumer creates a listener-driven durable
// consumer.
func CreateAsyncDurableMessageConsumer(session, dest Handle, durableName, selector string, noLocal bool,
	listener MessageListenerFunc, callbackData any, out *Handle) Status {
	return createConsumer(session, dest, consumerFlavor{durable: true}, durableName, selector, noLocal, listener, callbackData, out)
}

// CreateAsyncSharedMessageConsumer creates a listener-driven shared
// consumer.
func CreateAsyncSharedMessageConsumer(session, dest Handle, subscriptionName, selector string,
	listener MessageListenerFunc, callbackData any, out *Handle) Status {
	return createConsumer(session, dest, consumerFlavor{shared: true}, subscriptionName, selector, false, listener, callbackData, out)
}

// CreateAsyncSharedDurableMessageConsumer creates a listener-driven shared
// durable consumer.
func CreateAsyncSharedDurableMessageConsumer(session, dest Handle, subscriptionName, selector string,
	listener MessageListenerFunc, callbackData any, out *Handle) Status {
	return createConsumer(session, dest, consumerFlavor{durable: true, shared: true}, subscriptionName, selector, false, listener, callbackData, out)
}

func withConsumer(h Handle, fn func(ref *consumerRef) Status) Status {
	ref, st := acquire[*consumerRef](h, handle.KindConsumer)
	if st != OK {
		return st
	}
	defer release(h)
	return fn(ref)
}

// CloseMessageConsumer closes the consumer and invalidates its handle.
func CloseMessageConsumer(h Handle) Status {
	st := withConsumer(h, func(ref *consumerRef) Status {
		return statusOf(ref.consumer.Close())
	})
	if st != OK {
		return st
	}
	return free(h)
}

func receiveInto(out *Handle, m *openmq.Message, err error) Status {
	if err != nil {
		return statusOf(err)
	}
	mh, st := allocate(m, messageKindOf(m))
	if st != OK {
		return st
	}
	*out = mh
	return OK
}

// ReceiveMessageWait blocks until a message arrives or the consumer closes.
func ReceiveMessageWait(h Handle, out *Handle) Status {
	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle
	return withConsumer(h, func(ref *consumerRef) Status {
		m, err := ref.consumer.Receive()
		return receiveInto(out, m, err)
	})
}

// ReceiveMessageNoWait returns the next queued message or NoMessage.
func ReceiveMessageNoWait(h Handle, out *Handle) Status {
	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle
	return withConsumer(h, func(ref *consumerRef) Status {
		m, err := ref.consumer.ReceiveNoWait()
		return receiveInto(out, m, err)
	})
}

// ReceiveMessageWithTimeout blocks up to timeoutMillis for a message.
func ReceiveMessageWithTimeout(h Handle, timeoutMillis int64, out *Handle) Status {
	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle
	return withConsumer(h, func(ref *consumerRef) Status {
		m, err := ref.consumer.ReceiveTimeout(time.Duration(timeoutMillis) * time.Millisecond)
		return receiveInto(out, m, err)
	})
}
