package openmq

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/openmq-client/pkg/test"
)

// ConnectionTestSuite covers connection lifecycle, handshake, and
// delivery gating.
type ConnectionTestSuite struct {
	test.Suite
}

func TestConnectionSuite(t *testing.T) {
	test.Run(t, new(ConnectionTestSuite))
}

func (s *ConnectionTestSuite) TestConnectHandshake() {
	conn, b, err := connectSim(
		WithCredentials("guest", "guest"),
		WithClientID("client-7"),
	)
	s.Require().NoError(err)
	defer conn.Close()

	s.Equal("guest", b.authUser)
	s.Equal("client-7", b.clientID)
	s.Equal("client-7", conn.ClientID())
	s.False(conn.IsClosed())
}

func (s *ConnectionTestSuite) TestCloseIsIdempotent() {
	conn, b, err := connectSim()
	s.Require().NoError(err)

	s.Require().NoError(conn.Close())
	s.Require().NoError(conn.Close())
	s.True(conn.IsClosed())
	s.Equal(1, b.goodbyes)
}

func (s *ConnectionTestSuite) TestOperationsAfterCloseFail() {
	conn, _, err := connectSim()
	s.Require().NoError(err)
	s.Require().NoError(conn.Close())

	_, err = conn.CreateSession(false, AutoAcknowledge, SyncReceive)
	s.ErrorIs(err, ErrConnectionClosedState)
	s.ErrorIs(conn.Start(), ErrConnectionClosedState)
}

func (s *ConnectionTestSuite) TestCreateSessionValidatesModes() {
	conn, _, err := connectSim()
	s.Require().NoError(err)
	defer conn.Close()

	_, err = conn.CreateSession(false, SessionTransacted, SyncReceive)
	s.ErrorIs(err, ErrInvalidAckMode)

	_, err = conn.CreateSession(false, AutoAcknowledge, ReceiveMode(9))
	s.ErrorIs(err, ErrInvalidReceiveMode)
}

func (s *ConnectionTestSuite) TestExceptionListenerRunsOnce() {
	var calls atomic.Int32
	conn, b, err := connectSim(WithExceptionListener(func(err error) {
		calls.Add(1)
	}))
	s.Require().NoError(err)
	s.Require().NoError(conn.Start())

	sess, err := conn.CreateSession(false, AutoAcknowledge, SyncReceive)
	s.Require().NoError(err)
	dest, err := sess.CreateDestination("orders", Queue)
	s.Require().NoError(err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{})
	s.Require().NoError(err)

	received := make(chan error, 1)
	go func() {
		_, err := consumer.Receive()
		received <- err
	}()
	time.Sleep(30 * time.Millisecond)

	// The transport dies under the connection.
	b.Close()

	select {
	case err := <-received:
		s.ErrorIs(err, ErrConsumerClosed)
	case <-time.After(2 * time.Second):
		s.FailNow("blocked receiver not woken by connection failure")
	}

	require.Eventually(s.T(), func() bool { return calls.Load() == 1 },
		2*time.Second, 10*time.Millisecond)
	s.True(conn.IsClosed())

	// The listener is not run again afterwards.
	time.Sleep(50 * time.Millisecond)
	s.Equal(int32(1), calls.Load())
}

func (s *ConnectionTestSuite) TestStopGatesDelivery() {
	conn, b, err := connectSim()
	s.Require().NoError(err)
	defer conn.Close()
	s.Require().NoError(conn.Start())

	sess, err := conn.CreateSession(false, AutoAcknowledge, SyncReceive)
	s.Require().NoError(err)
	dest, err := sess.CreateDestination("orders", Queue)
	s.Require().NoError(err)
	consumer, err := sess.CreateConsumer(dest, ConsumerOptions{})
	s.Require().NoError(err)

	s.Require().NoError(conn.Stop())
	s.Equal(1, b.stops)

	b.deliver(consumer.ConsumerID(), sysID(1), "queued while stopped")
	_, err = consumer.ReceiveNoWait()
	s.ErrorIs(err, ErrNoMessage, "stopped connection must not deliver")

	s.Require().NoError(conn.Start())
	msg, err := consumer.ReceiveTimeout(2 * time.Second)
	s.Require().NoError(err)
	text, err := msg.Text()
	s.Require().NoError(err)
	s.Equal("queued while stopped", text)
}

func (s *ConnectionTestSuite) TestTemporaryDestinationLifecycle() {
	conn, _, err := connectSim()
	s.Require().NoError(err)
	defer conn.Close()

	sess, err := conn.CreateSession(false, AutoAcknowledge, SyncReceive)
	s.Require().NoError(err)

	temp, err := sess.CreateTemporaryDestination(Queue)
	s.Require().NoError(err)
	s.True(temp.IsTemporary())
	s.Contains(temp.Name(), "temporary_destination://queue/")

	s.Require().NoError(temp.Delete())
}

func (s *ConnectionTestSuite) TestUnsubscribeDurableRejectsActiveConsumer() {
	conn, _, err := connectSim(WithClientID("cid"))
	s.Require().NoError(err)
	defer conn.Close()

	sess, err := conn.CreateSession(false, AutoAcknowledge, SyncReceive)
	s.Require().NoError(err)
	dest, err := sess.CreateDestination("events", Topic)
	s.Require().NoError(err)

	consumer, err := sess.CreateDurableConsumer(dest, "sub-1", "", false)
	s.Require().NoError(err)

	err = conn.UnsubscribeDurable("sub-1")
	s.Require().Error(err, "unsubscribing an active durable subscription must fail")

	s.Require().NoError(consumer.Close())
	s.Require().NoError(conn.UnsubscribeDurable("sub-1"))
}
