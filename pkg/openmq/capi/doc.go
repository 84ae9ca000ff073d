// Package capi exposes the client as a flat, handle-based API shaped like a
// C ABI: every call returns a numeric Status, objects are referenced by
// opaque 32-bit handles, and callbacks are plain functions with an opaque
// data pointer.
//
// The package adds exactly one thing over pkg/openmq: the handle
// discipline. Handles are acquired and released around every call so that
// no object is ever freed while a call still references it, and freeing a
// handle twice (or using a freed handle) fails with StatusInvalidHandle
// instead of corrupting memory.
package capi
