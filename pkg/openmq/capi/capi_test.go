package capi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/handle"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/status"
)

func TestCreateAndFreePlainMessage(t *testing.T) {
	var h Handle
	require.Equal(t, OK, CreateMessage(&h))
	require.True(t, h.IsValid())

	var mtype MessageType
	require.Equal(t, OK, GetMessageType(h, &mtype))
	assert.Equal(t, PlainMessageType, mtype)

	// A plain message has no text body.
	var text string
	assert.Equal(t, status.StatusInvalidHandle, GetMessageText(h, &text))

	// An empty message carries no properties.
	var props Handle
	require.Equal(t, OK, GetMessageProperties(h, &props))
	require.Equal(t, OK, PropertiesKeyIterationStart(props))
	var hasNext bool
	require.Equal(t, OK, PropertiesKeyIterationHasNext(props, &hasNext))
	assert.False(t, hasNext)
	require.Equal(t, OK, FreeProperties(props))

	require.Equal(t, OK, FreeMessage(h))

	// Every use after free fails with an invalid handle.
	assert.Equal(t, status.StatusInvalidHandle, GetMessageType(h, &mtype))
	assert.Equal(t, status.StatusInvalidHandle, FreeMessage(h))
}

func TestTextMessageRoundTrip(t *testing.T) {
	var h Handle
	require.Equal(t, OK, CreateTextMessage(&h))
	defer FreeMessage(h)

	require.Equal(t, OK, SetMessageText(h, "hello"))

	var text string
	require.Equal(t, OK, GetMessageText(h, &text))
	assert.Equal(t, "hello", text)

	var mtype MessageType
	require.Equal(t, OK, GetMessageType(h, &mtype))
	assert.Equal(t, TextMessageType, mtype)
}

func TestBytesMessageRoundTrip(t *testing.T) {
	var h Handle
	require.Equal(t, OK, CreateBytesMessage(&h))
	defer FreeMessage(h)

	require.Equal(t, OK, SetMessageBytes(h, []byte{1, 2, 3}))
	var body []byte
	require.Equal(t, OK, GetMessageBytes(h, &body))
	assert.Equal(t, []byte{1, 2, 3}, body)
}

func TestMessageKindChecks(t *testing.T) {
	var text, bytes Handle
	require.Equal(t, OK, CreateTextMessage(&text))
	require.Equal(t, OK, CreateBytesMessage(&bytes))
	defer FreeMessage(text)
	defer FreeMessage(bytes)

	// Text accessors reject a bytes handle and vice versa.
	var s string
	assert.Equal(t, status.StatusInvalidHandle, GetMessageText(bytes, &s))
	assert.Equal(t, status.StatusInvalidHandle, SetMessageBytes(text, []byte{1}))

	// Both answer to the generic message kind.
	var mtype MessageType
	assert.Equal(t, OK, GetMessageType(text, &mtype))
	assert.Equal(t, TextMessageType, mtype)
	assert.Equal(t, OK, GetMessageType(bytes, &mtype))
	assert.Equal(t, BytesMessageType, mtype)
}

func TestPropertiesTypedAccess(t *testing.T) {
	var h Handle
	require.Equal(t, OK, CreateProperties(&h))
	defer FreeProperties(h)

	require.Equal(t, OK, SetStringProperty(h, "name", "mq"))
	require.Equal(t, OK, SetInt32Property(h, "count", 42))
	require.Equal(t, OK, SetBoolProperty(h, "flag", true))
	require.Equal(t, OK, SetFloat64Property(h, "ratio", 0.5))

	var s string
	require.Equal(t, OK, GetStringProperty(h, "name", &s))
	assert.Equal(t, "mq", s)

	var i int32
	require.Equal(t, OK, GetInt32Property(h, "count", &i))
	assert.Equal(t, int32(42), i)

	// Reading with the wrong type does not convert.
	var wrong int64
	assert.Equal(t, status.PropertyWrongValueType, GetInt64Property(h, "count", &wrong))

	var missing bool
	assert.Equal(t, status.NotFound, GetBoolProperty(h, "absent", &missing))
}

func TestPropertiesKeyIteration(t *testing.T) {
	var h Handle
	require.Equal(t, OK, CreateProperties(&h))
	defer FreeProperties(h)

	require.Equal(t, OK, SetInt32Property(h, "b", 2))
	require.Equal(t, OK, SetInt32Property(h, "a", 1))

	require.Equal(t, OK, PropertiesKeyIterationStart(h))
	var keys []string
	for {
		var hasNext bool
		require.Equal(t, OK, PropertiesKeyIterationHasNext(h, &hasNext))
		if !hasNext {
			break
		}
		var k string
		require.Equal(t, OK, PropertiesKeyIterationGetNext(h, &k))
		keys = append(keys, k)
	}
	assert.Equal(t, []string{"a", "b"}, keys)

	var k string
	assert.Equal(t, status.InvalidIterator, PropertiesKeyIterationGetNext(h, &k))
}

func TestReplyToThroughHandles(t *testing.T) {
	// A fresh message carries no reply-to destination.
	resetRegistryForTest(handle.DefaultMin, handle.DefaultMax)

	var msg Handle
	require.Equal(t, OK, CreateTextMessage(&msg))

	var replyTo Handle
	assert.Equal(t, Status(status.NoReplyToDestination), GetMessageReplyTo(msg, &replyTo))
}

func TestHandleRollover(t *testing.T) {
	resetRegistryForTest(100, 101)
	defer resetRegistryForTest(handle.DefaultMin, handle.DefaultMax)

	var h1, h2, h3 Handle
	require.Equal(t, OK, CreateMessage(&h1))
	require.Equal(t, OK, CreateMessage(&h2))
	assert.Equal(t, status.HandledObjectNoMoreHandles, CreateMessage(&h3))
	assert.Equal(t, InvalidHandle, h3)

	require.Equal(t, OK, FreeMessage(h1))
	require.Equal(t, OK, CreateMessage(&h3))
	assert.Equal(t, h1, h3, "a freed slot is reused after rollover")
}

func TestNullOutputArguments(t *testing.T) {
	assert.Equal(t, status.NullPtrArg, CreateMessage(nil))
	assert.Equal(t, status.NullPtrArg, CreateProperties(nil))
	var h Handle
	require.Equal(t, OK, CreateTextMessage(&h))
	defer FreeMessage(h)
	assert.Equal(t, status.NullPtrArg, GetMessageText(h, nil))
}
