package capi

import (
	"github.com/chris-alexander-pop/openmq-client/pkg/errors"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/handle"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/status"
)

// Status is the numeric result code of every binding call. OK is zero.
type Status = status.Status

const OK = status.OK

// Handle references a live object. The zero value and InvalidHandle do not
// reference anything.
type Handle struct {
	H uint32
}

// InvalidHandle is the reserved "no object" sentinel.
var InvalidHandle = Handle{H: uint32(handle.Invalid)}

// IsValid reports whether h could reference an object (it says nothing
// about whether the object is still alive).
func (h Handle) IsValid() bool {
	return h.H != uint32(handle.Invalid) && h.H != 0
}

// Binding-visible enums. The numeric values are part of the ABI; existing
// callers compare against them.

// MessageType identifies the message variant behind a message handle.
type MessageType int32

const (
	TextMessageType        MessageType = 0
	BytesMessageType       MessageType = 1
	UnsupportedMessageType MessageType = 2
	PlainMessageType       MessageType = 3
)

// AckMode mirrors openmq.AckMode; values are broker-visible.
type AckMode int32

const (
	SessionTransacted AckMode = 0
	AutoAcknowledge   AckMode = 1
	ClientAcknowledge AckMode = 2
	DupsOKAcknowledge AckMode = 3
)

// DeliveryMode mirrors openmq.DeliveryMode.
type DeliveryMode int32

const (
	NonPersistentDelivery DeliveryMode = 1
	PersistentDelivery    DeliveryMode = 2
)

// DestinationType numbering predates the core package and differs from it.
type DestinationType int32

const (
	QueueDestination DestinationType = 0
	TopicDestination DestinationType = 1
)

// ReceiveMode numbering likewise follows the original ABI.
type ReceiveMode int32

const (
	SessionSyncReceive  ReceiveMode = 0
	SessionAsyncReceive ReceiveMode = 1
)

func destKindOf(t DestinationType) (openmq.DestinationKind, Status) {
	switch t {
	case QueueDestination:
		return openmq.Queue, OK
	case TopicDestination:
		return openmq.Topic, OK
	default:
		return 0, status.InvalidDestinationType
	}
}

func destTypeOf(k openmq.DestinationKind) DestinationType {
	if k == openmq.Topic {
		return TopicDestination
	}
	return QueueDestination
}

func receiveModeOf(m ReceiveMode) (openmq.ReceiveMode, Status) {
	switch m {
	case SessionSyncReceive:
		return openmq.SyncReceive, OK
	case SessionAsyncReceive:
		return openmq.AsyncReceive, OK
	default:
		return 0, status.InvalidReceiveMode
	}
}

func ackModeOf(m AckMode) (openmq.AckMode, Status) {
	switch m {
	case SessionTransacted, AutoAcknowledge, ClientAcknowledge, DupsOKAcknowledge:
		return openmq.AckMode(m), OK
	default:
		return 0, status.InvalidAcknowledgeMode
	}
}

// registry is the process-wide handle table.
var registry = handle.NewRegistry(handle.DefaultMin, handle.DefaultMax)

// resetRegistryForTest installs a fresh table, optionally with a small
// range to exercise rollover.
func resetRegistryForTest(min, max handle.Handle) {
	registry = handle.NewRegistry(min, max)
}

// statusError wraps a numeric status back into the error space, for
// adapters that bridge callback return codes into the core.
func statusError(st Status) error {
	return errors.NewStatus("MQ_STATUS", int32(st), "binding callback status", nil)
}

// statusOf converts an error into the numeric status that crosses the
// binding.
func statusOf(err error) Status {
	if err == nil {
		return OK
	}
	return Status(errors.StatusOf(err, int32(status.InternalError)))
}

// allocate registers obj and returns its handle, already exported.
func allocate(obj any, kind handle.Kind) (Handle, Status) {
	h, err := registry.Allocate(obj, kind, handle.Options{Exported: true})
	if err != nil {
		return InvalidHandle, statusOf(err)
	}
	return Handle{H: uint32(h)}, OK
}

// acquire borrows the object behind h; pair with release.
func acquire[T any](h Handle, kind handle.Kind) (T, Status) {
	var zero T
	obj, err := registry.Acquire(handle.Handle(h.H), kind)
	if err != nil {
		return zero, statusOf(err)
	}
	typed, ok := obj.(T)
	if !ok {
		_ = registry.Release(handle.Handle(h.H))
		return zero, status.StatusInvalidHandle
	}
	return typed, OK
}

func release(h Handle) {
	_ = registry.Release(handle.Handle(h.H))
}

// free drops the external reference and the handle.
func free(h Handle) Status {
	if err := registry.ExternalDelete(handle.Handle(h.H)); err != nil {
		return statusOf(err)
	}
	return OK
}

// messageKindOf maps a message to its handle kind.
func messageKindOf(m *openmq.Message) handle.Kind {
	switch m.Kind() {
	case openmq.TextKind:
		return handle.KindTextMessage
	case openmq.BytesKind:
		return handle.KindBytesMessage
	default:
		return handle.KindMessage
	}
}
