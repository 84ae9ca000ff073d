// Package handle maps opaque 32-bit handles to live objects so foreign code
// can reference them without holding pointers. The registry enforces that an
// object is destroyed only when its last internal owner and its last external
// borrow have both released.
package handle

import (
	"sync"

	"github.com/chris-alexander-pop/openmq-client/pkg/errors"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/status"
)

// Handle identifies a registered object. The zero-adjacent range is never
// allocated; Invalid is a reserved sentinel.
type Handle uint32

const (
	// Invalid marks a handle that does not reference any object.
	Invalid Handle = 0xFEEEFEEE

	// DefaultMin and DefaultMax bound the allocation range. The range can
	// be made artificially small to exercise rollover.
	DefaultMin Handle = 100
	DefaultMax Handle = 2_000_000_000
)

// Kind tags the concrete type of a registered object so that a lookup with
// the wrong kind fails instead of returning a foreign object.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindConnection
	KindSession
	KindDestination
	KindConsumer
	KindProducer
	KindProperties

	// KindMessage is both the concrete kind of a plain message and the
	// super kind of text and bytes messages.
	KindMessage
	KindTextMessage
	KindBytesMessage
)

// Super returns the kind that may stand in for k on lookups, or
// KindUndefined when k has none.
func (k Kind) Super() Kind {
	switch k {
	case KindTextMessage, KindBytesMessage, KindMessage:
		return KindMessage
	default:
		return KindUndefined
	}
}

var (
	ErrInvalidHandle = errors.NewStatus("MQ_STATUS_INVALID_HANDLE",
		int32(status.StatusInvalidHandle), "handle does not reference a live object", nil)
	ErrHandleInUse = errors.NewStatus("MQ_HANDLED_OBJECT_IN_USE",
		int32(status.HandledObjectInUse), "object still externally referenced", nil)
	ErrOutOfHandles = errors.NewStatus("MQ_HANDLED_OBJECT_NO_MORE_HANDLES",
		int32(status.HandledObjectNoMoreHandles), "handle range exhausted", nil)
)

type entry struct {
	obj  any
	kind Kind

	exported bool
	extRefs  int32

	deletedInternally bool

	// Inverse lifecycle: the object lives until foreign code drops its
	// last reference. Chosen at registration and never changed.
	checkDeletedExternally bool
	deletedExternally      bool

	destroy func()
}

// Registry owns the handle table. One monitor guards the table and all
// per-entry bookkeeping.
type Registry struct {
	mu      sync.Mutex
	min     Handle
	max     Handle
	next    Handle
	entries map[Handle]*entry
}

// NewRegistry creates a registry allocating handles from [min, max].
func NewRegistry(min, max Handle) *Registry {
	return &Registry{
		min:     min,
		max:     max,
		next:    min,
		entries: make(map[Handle]*entry),
	}
}

// Options configures a registration.
type Options struct {
	// Exported permits Acquire on the handle. Non-exported objects are
	// registered for bookkeeping only.
	Exported bool

	// DeletedExternally selects the inverse lifecycle: the object is
	// destroyed when foreign code drops its last reference, regardless of
	// internal deletion.
	DeletedExternally bool

	// Destroy runs exactly once when the entry is finally freed.
	Destroy func()
}

// Allocate registers obj under a fresh handle. It scans forward from the
// last allocation, wrapping to the lowest free slot, and fails with
// ErrOutOfHandles when the range is full.
func (r *Registry) Allocate(obj any, kind Kind, opts Options) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := uint64(r.max) - uint64(r.min) + 1
	for scanned := uint64(0); scanned < total; scanned++ {
		h := r.next
		if r.next == r.max {
			r.next = r.min
		} else {
			r.next++
		}
		if _, used := r.entries[h]; used {
			continue
		}
		r.entries[h] = &entry{
			obj:                    obj,
			kind:                   kind,
			exported:               opts.Exported,
			checkDeletedExternally: opts.DeletedExternally,
			destroy:                opts.Destroy,
		}
		return h, nil
	}
	return Invalid, ErrOutOfHandles
}

// SetExported changes whether the handle is visible to Acquire.
func (r *Registry) SetExported(h Handle, exported bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h]
	if !ok {
		return ErrInvalidHandle
	}
	e.exported = exported
	return nil
}

// Acquire returns the object behind h if it is exported and its kind is
// either want or a kind whose super kind is want. On success the external
// reference count is incremented; the caller must pair it with Release.
func (r *Registry) Acquire(h Handle, want Kind) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h]
	if !ok || !e.exported {
		return nil, ErrInvalidHandle
	}
	if e.deletedInternally || e.deletedExternally {
		// The object is on its way out; no new borrows.
		return nil, ErrInvalidHandle
	}
	if e.kind != want && e.kind.Super() != want {
		return nil, ErrInvalidHandle
	}
	e.extRefs++
	return e.obj, nil
}

// Release returns a borrow taken with Acquire. When the count reaches zero
// and the object has already been deleted on the other side of its
// lifecycle, the entry is destroyed and the handle freed.
func (r *Registry) Release(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h]
	if !ok {
		return ErrInvalidHandle
	}
	if e.extRefs > 0 {
		e.extRefs--
	}
	if e.extRefs == 0 && (e.deletedInternally || (e.checkDeletedExternally && e.deletedExternally)) {
		r.destroyLocked(h, e)
	}
	return nil
}

// InternalDelete is called by the owning object graph. If no external
// borrows are outstanding the entry is destroyed immediately; otherwise the
// last Release finishes the job.
func (r *Registry) InternalDelete(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h]
	if !ok {
		return ErrInvalidHandle
	}
	if e.checkDeletedExternally {
		// Inverse lifecycle: internal deletion does not free the entry.
		e.deletedInternally = true
		return nil
	}
	if e.extRefs == 0 {
		r.destroyLocked(h, e)
		return nil
	}
	e.deletedInternally = true
	return nil
}

// ExternalDelete is the foreign-code entry point for freeing an object.
func (r *Registry) ExternalDelete(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h]
	if !ok {
		return ErrInvalidHandle
	}
	if e.checkDeletedExternally {
		e.deletedExternally = true
		if e.extRefs == 0 {
			r.destroyLocked(h, e)
		}
		return nil
	}
	if e.extRefs == 0 {
		r.destroyLocked(h, e)
		return nil
	}
	e.deletedInternally = true
	return nil
}

// Live reports how many entries are currently registered.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) destroyLocked(h Handle, e *entry) {
	delete(r.entries, h)
	if e.destroy != nil {
		// Run the destructor outside the table lock: it may call back
		// into the registry for owned children.
		destroy := e.destroy
		e.destroy = nil
		r.mu.Unlock()
		destroy()
		r.mu.Lock()
	}
}
