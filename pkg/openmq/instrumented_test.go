package openmq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newSpanRecorder installs an in-memory tracer provider for the duration of
// the test and returns the recorder capturing every span the wrappers
// start.
func newSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func spanNames(recorder *tracetest.SpanRecorder) []string {
	names := make([]string, 0)
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	return names
}

func TestInstrumentedProducerSend(t *testing.T) {
	recorder := newSpanRecorder(t)

	_, b, sess := newSyncSession(t, AutoAcknowledge)

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	prod, err := sess.CreateProducerFor(dest)
	require.NoError(t, err)

	ip := NewInstrumentedProducer(prod)

	msg := NewTextMessage()
	require.NoError(t, msg.SetText("traced"))
	require.NoError(t, ip.Send(context.Background(), msg))
	assert.Equal(t, 1, b.sentCount())
	assert.Contains(t, spanNames(recorder), "openmq.Send")

	// The error path surfaces the underlying failure unchanged and still
	// records a span.
	require.NoError(t, ip.Close())
	assert.ErrorIs(t, ip.Send(context.Background(), NewTextMessage()), ErrProducerClosed)
	assert.Len(t, spanNames(recorder), 2)
}

func TestInstrumentedConsumerReceive(t *testing.T) {
	recorder := newSpanRecorder(t)

	_, b, sess := newSyncSession(t, AutoAcknowledge)

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{})
	require.NoError(t, err)

	ic := NewInstrumentedConsumer(consumer)

	b.deliver(consumer.ConsumerID(), sysID(1), "traced")
	msg, err := ic.Receive(context.Background(), 2*time.Second)
	require.NoError(t, err)
	text, err := msg.Text()
	require.NoError(t, err)
	assert.Equal(t, "traced", text)
	assert.Contains(t, spanNames(recorder), "openmq.Receive")

	// An empty queue reports the timeout through the wrapper.
	_, err = ic.Receive(context.Background(), 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeoutExpired)

	require.NoError(t, ic.Close())
	_, err = ic.Receive(context.Background(), 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrConsumerClosed)
}
