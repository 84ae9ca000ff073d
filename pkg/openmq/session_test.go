package openmq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/packet"
)

func newSyncSession(t *testing.T, ackMode AckMode, opts ...ConnectOption) (*Connection, *brokerSim, *Session) {
	t.Helper()
	conn, b, err := connectSim(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.Start())

	sess, err := conn.CreateSession(false, ackMode, SyncReceive)
	require.NoError(t, err)
	return conn, b, sess
}

func TestSendStampsHeaders(t *testing.T) {
	_, b, sess := newSyncSession(t, AutoAcknowledge)

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	prod, err := sess.CreateProducerFor(dest)
	require.NoError(t, err)

	msg := NewTextMessage()
	require.NoError(t, msg.SetText("payload"))
	require.NoError(t, prod.Send(msg))

	sent := b.lastSent()
	require.NotNil(t, sent)
	assert.Equal(t, "orders", sent.Destination)
	assert.Equal(t, queueClassName, sent.DestinationClass)
	assert.True(t, sent.GetFlag(packet.FlagIsQueue))
	assert.True(t, sent.GetFlag(packet.FlagPersistent), "producer default is persistent")
	assert.Equal(t, uint8(defaultPriority), sent.Priority)
	assert.Equal(t, int64(1), sent.ProducerID)
	assert.NotZero(t, sent.Timestamp)
}

func TestSendPriorityRange(t *testing.T) {
	_, b, sess := newSyncSession(t, AutoAcknowledge)

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	prod, err := sess.CreateProducerFor(dest)
	require.NoError(t, err)

	msg := NewTextMessage()
	require.NoError(t, msg.SetText("x"))

	assert.ErrorIs(t, prod.SendExt(msg, NonPersistentDelivery, -1, 0), ErrInvalidPriority)
	assert.ErrorIs(t, prod.SendExt(msg, NonPersistentDelivery, 10, 0), ErrInvalidPriority)

	require.NoError(t, prod.SendExt(msg, NonPersistentDelivery, 9, 0))
	assert.Equal(t, uint8(9), b.lastSent().Priority, "in-range priority is preserved on the wire")
}

func TestUnboundProducerRules(t *testing.T) {
	_, _, sess := newSyncSession(t, AutoAcknowledge)

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)

	bound, err := sess.CreateProducerFor(dest)
	require.NoError(t, err)
	assert.ErrorIs(t, bound.SendTo(NewTextMessage(), dest), ErrProducerHasDestination)

	unbound, err := sess.CreateProducer()
	require.NoError(t, err)
	assert.ErrorIs(t, unbound.Send(NewTextMessage()), ErrProducerNoDestination)

	msg := NewTextMessage()
	require.NoError(t, msg.SetText("x"))
	require.NoError(t, unbound.SendTo(msg, dest))
}

func TestProducerValidatesDestinationOnce(t *testing.T) {
	_, b, sess := newSyncSession(t, AutoAcknowledge)

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	prod, err := sess.CreateProducer()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		msg := NewTextMessage()
		require.NoError(t, msg.SetText("x"))
		require.NoError(t, prod.SendTo(msg, dest))
	}

	b.mu.Lock()
	registered := b.nextProducerID
	b.mu.Unlock()
	assert.Equal(t, int64(1), registered, "destination must be validated with the broker once")
}

func TestProducerFlowBlockAndResume(t *testing.T) {
	conn, b, err := connectSim()
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Start())

	b.mu.Lock()
	b.grantChunkSize = 3
	b.mu.Unlock()

	sess, err := conn.CreateSession(false, AutoAcknowledge, SyncReceive)
	require.NoError(t, err)
	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	prod, err := sess.CreateProducerFor(dest)
	require.NoError(t, err)

	send := func() error {
		msg := NewTextMessage()
		if err := msg.SetText("x"); err != nil {
			return err
		}
		return prod.SendExt(msg, NonPersistentDelivery, 4, 0)
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, send())
	}
	assert.Equal(t, 3, b.sentCount())

	// The fourth send exhausts the window and blocks.
	blocked := make(chan error, 1)
	go func() { blocked <- send() }()
	select {
	case <-blocked:
		t.Fatal("send past the granted window must block")
	case <-time.After(100 * time.Millisecond):
	}

	b.resumeFlow(1, -1, 5)
	select {
	case err := <-blocked:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sender not unblocked by resume-flow")
	}
	assert.Equal(t, 4, b.sentCount())
}

func receiveOne(t *testing.T, c *Consumer) *Message {
	t.Helper()
	msg, err := c.ReceiveTimeout(2 * time.Second)
	require.NoError(t, err)
	return msg
}

func TestClientAckPrefix(t *testing.T) {
	_, b, sess := newSyncSession(t, ClientAcknowledge)

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{})
	require.NoError(t, err)

	for i := uint32(1); i <= 5; i++ {
		b.deliver(consumer.ConsumerID(), sysID(i), "m")
	}

	msgs := make([]*Message, 0, 5)
	for i := 0; i < 5; i++ {
		msgs = append(msgs, receiveOne(t, consumer))
	}
	assert.Equal(t, 5, sess.unackedCount())
	assert.Equal(t, 0, b.ackCount(), "client mode must not auto-flush")

	// Acknowledging m3 covers exactly m1..m3.
	require.NoError(t, sess.AcknowledgeMessages(msgs[2]))
	assert.Equal(t, 1, b.ackCount())

	sess.mu.Lock()
	remaining := append([]ackEntry(nil), sess.unacked...)
	sess.mu.Unlock()
	require.Len(t, remaining, 2)
	assert.Equal(t, uint32(4), remaining[0].sysID.Sequence)
	assert.Equal(t, uint32(5), remaining[1].sysID.Sequence)
}

func TestClientAckRequiresClientMode(t *testing.T) {
	_, b, sess := newSyncSession(t, AutoAcknowledge)

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{})
	require.NoError(t, err)

	b.deliver(consumer.ConsumerID(), sysID(1), "m")
	msg := receiveOne(t, consumer)

	assert.ErrorIs(t, sess.AcknowledgeMessages(msg), ErrNotClientAckMode)
}

func TestAutoAckFlushesPerMessage(t *testing.T) {
	_, b, sess := newSyncSession(t, AutoAcknowledge)

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{})
	require.NoError(t, err)

	b.deliver(consumer.ConsumerID(), sysID(1), "a")
	b.deliver(consumer.ConsumerID(), sysID(2), "b")

	_ = receiveOne(t, consumer)
	_ = receiveOne(t, consumer)
	assert.Equal(t, 2, b.ackCount(), "auto mode flushes one ack per delivery")
}

func TestDupsOKBatchesUntilQueueEmpty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PingInterval = 0
	cfg.DupsOKLimit = 10
	conn, b, err := connectSimCfg(cfg)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Start())

	sess, err := conn.CreateSession(false, DupsOKAcknowledge, SyncReceive)
	require.NoError(t, err)
	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{})
	require.NoError(t, err)

	b.deliver(consumer.ConsumerID(), sysID(1), "a")
	b.deliver(consumer.ConsumerID(), sysID(2), "b")

	// Both packets must be queued before the first receive so the batch
	// holds until the queue drains.
	require.Eventually(t, func() bool { return consumer.queue.Size() == 2 },
		2*time.Second, 5*time.Millisecond)

	_ = receiveOne(t, consumer)
	assert.Equal(t, 0, b.ackCount(), "batch must hold while the queue is non-empty")

	_ = receiveOne(t, consumer)
	assert.Equal(t, 1, b.ackCount(), "queue drained: one batched flush")
}

func TestTransactedCommitRotatesTransaction(t *testing.T) {
	conn, b, err := connectSim()
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Start())

	sess, err := conn.CreateSession(true, SessionTransacted, SyncReceive)
	require.NoError(t, err)
	require.True(t, sess.IsTransacted())
	assert.Equal(t, AckMode(SessionTransacted), sess.AckMode())

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	prod, err := sess.CreateProducerFor(dest)
	require.NoError(t, err)

	msg := NewTextMessage()
	require.NoError(t, msg.SetText("x"))
	require.NoError(t, prod.SendExt(msg, NonPersistentDelivery, 4, 0))
	assert.Equal(t, int64(1), b.lastSent().TransactionID, "send carries the open transaction")
	assert.True(t, b.lastSent().GetFlag(packet.FlagTransacted))

	require.NoError(t, sess.Commit())
	b.mu.Lock()
	commits := append([]int64(nil), b.commits...)
	b.mu.Unlock()
	assert.Equal(t, []int64{1}, commits)

	// The session now runs under a fresh transaction id.
	msg2 := NewTextMessage()
	require.NoError(t, msg2.SetText("y"))
	require.NoError(t, prod.SendExt(msg2, NonPersistentDelivery, 4, 0))
	assert.Equal(t, int64(2), b.lastSent().TransactionID)
}

func TestRollbackFlagsPrefetchedRedelivered(t *testing.T) {
	conn, b, err := connectSim()
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Start())

	sess, err := conn.CreateSession(true, SessionTransacted, SyncReceive)
	require.NoError(t, err)
	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{})
	require.NoError(t, err)

	b.deliver(consumer.ConsumerID(), sysID(1), "prefetched")
	require.Eventually(t, func() bool { return consumer.queue.Size() == 1 },
		2*time.Second, 5*time.Millisecond)

	require.NoError(t, sess.Rollback())

	b.mu.Lock()
	rollbacks := append([]int64(nil), b.rollbacks...)
	b.mu.Unlock()
	assert.Equal(t, []int64{1}, rollbacks)

	msg := receiveOne(t, consumer)
	assert.True(t, msg.Redelivered(), "prefetched message must be flagged redelivered after rollback")
}

func TestRecoverRejectsTransacted(t *testing.T) {
	conn, _, err := connectSim()
	require.NoError(t, err)
	defer conn.Close()

	sess, err := conn.CreateSession(true, SessionTransacted, SyncReceive)
	require.NoError(t, err)
	assert.ErrorIs(t, sess.Recover(), ErrTransactedSession)
}

func TestRecoverRequestsRedelivery(t *testing.T) {
	_, b, sess := newSyncSession(t, ClientAcknowledge)

	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{})
	require.NoError(t, err)

	b.deliver(consumer.ConsumerID(), sysID(1), "m")
	_ = receiveOne(t, consumer)
	require.Equal(t, 1, sess.unackedCount())

	require.NoError(t, sess.Recover())
	assert.Equal(t, 0, sess.unackedCount(), "recover clears the unacked backlog")
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.redelivers) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCommitOutsideTransactionFails(t *testing.T) {
	_, _, sess := newSyncSession(t, AutoAcknowledge)
	assert.ErrorIs(t, sess.Commit(), ErrNotTransacted)
	assert.ErrorIs(t, sess.Rollback(), ErrNotTransacted)
}

func TestSessionCloseClosesChildren(t *testing.T) {
	conn, _, err := connectSim()
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Start())

	sess, err := conn.CreateSession(false, AutoAcknowledge, SyncReceive)
	require.NoError(t, err)
	dest, err := sess.CreateDestination("orders", Queue)
	require.NoError(t, err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{})
	require.NoError(t, err)
	prod, err := sess.CreateProducerFor(dest)
	require.NoError(t, err)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close(), "close is idempotent")

	_, err = consumer.ReceiveNoWait()
	assert.ErrorIs(t, err, ErrConsumerClosed)

	msg := NewTextMessage()
	require.NoError(t, msg.SetText("x"))
	assert.ErrorIs(t, prod.SendExt(msg, NonPersistentDelivery, 4, 0), ErrProducerClosed)
}

func TestConcurrentSessionEntryFailsFast(t *testing.T) {
	_, _, sess := newSyncSession(t, AutoAcknowledge)

	require.NoError(t, sess.smu.tryLock())
	defer func() { _ = sess.smu.unlock() }()

	_, err := sess.CreateProducer()
	assert.ErrorIs(t, err, ErrConcurrentAccess)
}
