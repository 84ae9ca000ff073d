package openmq

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/packet"
)

func TestConsumerCreationRules(t *testing.T) {
	conn, _, err := connectSim() // no client id
	require.NoError(t, err)
	defer conn.Close()

	sess, err := conn.CreateSession(false, AutoAcknowledge, SyncReceive)
	require.NoError(t, err)

	topic, err := sess.CreateDestination("events", Topic)
	require.NoError(t, err)
	queue, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)

	_, err = sess.CreateConsumer(topic, ConsumerOptions{Durable: true})
	assert.ErrorIs(t, err, ErrNoDurableName)

	_, err = sess.CreateConsumer(topic, ConsumerOptions{Shared: true})
	assert.ErrorIs(t, err, ErrNoSubscriptionName)

	_, err = sess.CreateConsumer(topic, ConsumerOptions{Shared: true, SubscriptionName: "s", NoLocal: true})
	assert.ErrorIs(t, err, ErrUnsupportedArgument)

	// No-local durable topic subscription needs a connection client id.
	_, err = sess.CreateConsumer(topic, ConsumerOptions{Durable: true, SubscriptionName: "d", NoLocal: true})
	assert.ErrorIs(t, err, ErrNoLocalDurableNoClientID)

	// On queues no-local is silently dropped.
	c, err := sess.CreateConsumer(queue, ConsumerOptions{NoLocal: true})
	require.NoError(t, err)
	assert.False(t, c.noLocal)

	// A listener is rejected on a sync session.
	_, err = sess.CreateConsumer(queue, ConsumerOptions{Listener: func(*Message) error { return nil }})
	assert.ErrorIs(t, err, ErrNotAsyncReceiveMode)
}

func TestTempDestinationOwnership(t *testing.T) {
	connA, _, err := connectSim()
	require.NoError(t, err)
	defer connA.Close()
	connB, _, err := connectSim()
	require.NoError(t, err)
	defer connB.Close()

	sessA, err := connA.CreateSession(false, AutoAcknowledge, SyncReceive)
	require.NoError(t, err)
	sessB, err := connB.CreateSession(false, AutoAcknowledge, SyncReceive)
	require.NoError(t, err)

	temp, err := sessA.CreateTemporaryDestination(Queue)
	require.NoError(t, err)

	// The owner may consume from its own temporary destination.
	_, err = sessA.CreateConsumer(temp, ConsumerOptions{})
	require.NoError(t, err)

	// A foreign connection may not.
	_, err = sessB.CreateConsumer(temp, ConsumerOptions{})
	assert.ErrorIs(t, err, ErrTempDestNotInConnection)
}

func TestSyncReceiveTimeout(t *testing.T) {
	_, _, sess := newSyncSession(t, AutoAcknowledge)

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{})
	require.NoError(t, err)

	start := time.Now()
	_, err = consumer.ReceiveTimeout(100 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeoutExpired)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	_, err = consumer.ReceiveNoWait()
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestCloseWakesBlockedReceiver(t *testing.T) {
	_, _, sess := newSyncSession(t, AutoAcknowledge)

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{})
	require.NoError(t, err)

	received := make(chan error, 1)
	go func() {
		_, err := consumer.Receive()
		received <- err
	}()
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, consumer.Close())

	select {
	case err := <-received:
		assert.ErrorIs(t, err, ErrConsumerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked receiver not woken by close")
	}

	_, err = consumer.ReceiveNoWait()
	assert.ErrorIs(t, err, ErrConsumerClosed)
}

func TestSyncReceiveSkipsExpired(t *testing.T) {
	_, b, sess := newSyncSession(t, AutoAcknowledge)

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{})
	require.NoError(t, err)

	expired := packet.New(packet.TypeTextMessage)
	expired.ConsumerID = consumer.ConsumerID()
	expired.SysID = sysID(1)
	expired.Expiration = time.Now().UnixMilli() - 1000
	expired.Body = []byte("stale")
	b.inject(expired)
	b.deliver(consumer.ConsumerID(), sysID(2), "fresh")

	msg := receiveOne(t, consumer)
	text, err := msg.Text()
	require.NoError(t, err)
	assert.Equal(t, "fresh", text, "expired message must be skipped")
	assert.Equal(t, 1, b.expiredAckCount(), "expired message is acked as expired")
	assert.Equal(t, uint32(2), msg.SystemMessageID().Sequence)
}

func TestDMQConsumerSeesExpiredMessages(t *testing.T) {
	_, b, sess := newSyncSession(t, AutoAcknowledge)

	dmq, err := sess.CreateDestination(dmqDestinationName, Queue)
	require.NoError(t, err)
	consumer, err := sess.CreateConsumer(dmq, ConsumerOptions{})
	require.NoError(t, err)

	expired := packet.New(packet.TypeTextMessage)
	expired.ConsumerID = consumer.ConsumerID()
	expired.SysID = sysID(1)
	expired.Expiration = time.Now().UnixMilli() - 1000
	expired.Body = []byte("dead")
	b.inject(expired)

	msg := receiveOne(t, consumer)
	text, err := msg.Text()
	require.NoError(t, err)
	assert.Equal(t, "dead", text, "the DMQ consumer receives expired messages as ordinary ones")
	assert.Equal(t, 0, b.expiredAckCount())
}

func TestSyncReceiveFIFO(t *testing.T) {
	_, b, sess := newSyncSession(t, AutoAcknowledge)

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{})
	require.NoError(t, err)

	for i := uint32(1); i <= 10; i++ {
		b.deliver(consumer.ConsumerID(), sysID(i), "m")
	}
	for i := uint32(1); i <= 10; i++ {
		msg := receiveOne(t, consumer)
		assert.Equal(t, i, msg.SystemMessageID().Sequence)
	}
}

func TestAsyncDispatchSerializesListeners(t *testing.T) {
	conn, b, err := connectSim()
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Start())

	sess, err := conn.CreateSession(false, AutoAcknowledge, AsyncReceive)
	require.NoError(t, err)
	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)

	var mu sync.Mutex
	var inFlight, maxInFlight int
	var order []uint32
	done := make(chan struct{}, 16)

	listener := func(msg *Message) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		order = append(order, msg.SystemMessageID().Sequence)
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		done <- struct{}{}
		return nil
	}

	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{Listener: listener})
	require.NoError(t, err)

	for i := uint32(1); i <= 5; i++ {
		b.deliver(consumer.ConsumerID(), sysID(i), "m")
	}
	for i := 0; i < 5; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("listener not invoked")
		}
	}

	mu.Lock()
	assert.Equal(t, []uint32{1, 2, 3, 4, 5}, order)
	assert.Equal(t, 1, maxInFlight, "at most one listener invocation in flight per session")
	mu.Unlock()

	require.Eventually(t, func() bool { return b.ackCount() == 5 },
		2*time.Second, 5*time.Millisecond)
}

func TestAsyncListenerRetryOnFailure(t *testing.T) {
	conn, b, err := connectSim()
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Start())

	sess, err := conn.CreateSession(false, AutoAcknowledge, AsyncReceive)
	require.NoError(t, err)
	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)

	var mu sync.Mutex
	var calls int
	var redeliveredOnRetry bool
	done := make(chan struct{})

	listener := func(msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return ErrCallbackRuntime
		}
		redeliveredOnRetry = msg.Redelivered()
		close(done)
		return nil
	}

	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{Listener: listener})
	require.NoError(t, err)

	b.deliver(consumer.ConsumerID(), sysID(1), "m")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener retry did not happen")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls, "auto mode retries the listener once")
	assert.True(t, redeliveredOnRetry, "retry must carry the redelivered flag")
	require.Eventually(t, func() bool { return b.ackCount() == 1 },
		2*time.Second, 5*time.Millisecond)
}

func TestAsyncListenerPanicIsContained(t *testing.T) {
	conn, b, err := connectSim()
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Start())

	sess, err := conn.CreateSession(false, ClientAcknowledge, AsyncReceive)
	require.NoError(t, err)
	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)

	delivered := make(chan uint32, 2)
	listener := func(msg *Message) error {
		if msg.SystemMessageID().Sequence == 1 {
			delivered <- 1
			panic("listener bug")
		}
		delivered <- msg.SystemMessageID().Sequence
		return nil
	}

	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{Listener: listener})
	require.NoError(t, err)

	b.deliver(consumer.ConsumerID(), sysID(1), "boom")
	b.deliver(consumer.ConsumerID(), sysID(2), "fine")

	// The dispatch goroutine survives the panic and keeps delivering.
	for want := uint32(1); want <= 2; want++ {
		select {
		case got := <-delivered:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("message %d not delivered", want)
		}
	}
}

func TestReceiveOnAsyncSessionFails(t *testing.T) {
	conn, _, err := connectSim()
	require.NoError(t, err)
	defer conn.Close()

	sess, err := conn.CreateSession(false, AutoAcknowledge, AsyncReceive)
	require.NoError(t, err)
	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{Listener: func(*Message) error { return nil }})
	require.NoError(t, err)

	_, err = consumer.ReceiveNoWait()
	assert.ErrorIs(t, err, ErrNotSyncReceiveMode)
}

func TestMessageArrivedCallback(t *testing.T) {
	_, b, sess := newSyncSession(t, AutoAcknowledge)

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{})
	require.NoError(t, err)

	arrived := make(chan struct{}, 1)
	require.NoError(t, consumer.SetMessageArrivedCallback(func() {
		arrived <- struct{}{}
	}))

	b.deliver(consumer.ConsumerID(), sysID(1), "m")
	select {
	case <-arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("arrival callback not invoked")
	}
}
