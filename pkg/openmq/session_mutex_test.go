package openmq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionMutexTryLock(t *testing.T) {
	m := newSessionMutex()
	require.NoError(t, m.tryLock())
	assert.ErrorIs(t, m.tryLock(), ErrConcurrentAccess)
	require.NoError(t, m.unlock())
	require.NoError(t, m.tryLock())
	require.NoError(t, m.unlock())
}

func TestSessionMutexUnlockNotOwner(t *testing.T) {
	m := newSessionMutex()
	assert.ErrorIs(t, m.unlock(), ErrNotOwner)
}

func TestSessionMutexTimedLockExpires(t *testing.T) {
	m := newSessionMutex()
	require.NoError(t, m.tryLock())

	start := time.Now()
	err := m.lock(80 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeoutExpired)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestSessionMutexNoWaitFailsFast(t *testing.T) {
	m := newSessionMutex()
	require.NoError(t, m.tryLock())
	assert.ErrorIs(t, m.lock(NoWait), ErrConcurrentAccess)
}

func TestSessionMutexHandoff(t *testing.T) {
	m := newSessionMutex()
	require.NoError(t, m.tryLock())

	got := make(chan error, 1)
	go func() {
		got <- m.lock(2 * time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.unlock())

	select {
	case err := <-got:
		require.NoError(t, err)
		require.NoError(t, m.unlock())
	case <-time.After(3 * time.Second):
		t.Fatal("waiter did not acquire after unlock")
	}
}
