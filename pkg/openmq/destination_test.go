package openmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestinationClassNames(t *testing.T) {
	cases := []struct {
		kind      DestinationKind
		temporary bool
		class     string
	}{
		{Queue, false, queueClassName},
		{Queue, true, tempQueueClassName},
		{Topic, false, topicClassName},
		{Topic, true, tempTopicClassName},
	}
	for _, tc := range cases {
		d := newDestination(nil, "d", tc.kind, tc.temporary)
		assert.Equal(t, tc.class, d.ClassName())

		// The class name maps back to the same variant.
		back := destinationFromClassName("d", tc.class, nil)
		require.NoError(t, back.initializationError())
		assert.Equal(t, tc.kind, back.Kind())
		assert.Equal(t, tc.temporary, back.IsTemporary())
	}
}

func TestDestinationUnknownClassName(t *testing.T) {
	d := destinationFromClassName("orders", "com.example.NotADestination", nil)
	assert.Empty(t, d.Name(), "unknown class must null the name")
	assert.ErrorIs(t, d.initializationError(), ErrDestinationNoClass)
	assert.Nil(t, d.Clone(), "an invalid destination cannot be cloned")
}

func TestDestinationCloneIsDetached(t *testing.T) {
	d := newDestination(nil, "orders", Topic, false)
	clone := d.Clone()
	require.NotNil(t, clone)
	assert.NotSame(t, d, clone)
	assert.Equal(t, "orders", clone.Name())
	assert.Equal(t, Topic, clone.Kind())
}

func TestDestinationDeleteRequiresTemporary(t *testing.T) {
	d := newDestination(nil, "orders", Queue, false)
	assert.ErrorIs(t, d.Delete(), ErrNotTemporary)

	detached := newDestination(nil, "temp", Queue, true)
	assert.ErrorIs(t, detached.Delete(), ErrConnectionClosed)
}
