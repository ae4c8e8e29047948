package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueCapacityFromBudget(t *testing.T) {
	assert.Equal(t, 8, newQueue(8*entrySize).capacity())

	// A budget below one entry still yields a usable queue.
	assert.Equal(t, 1, newQueue(1).capacity())
	assert.Equal(t, 1, newQueue(0).capacity())
}

func TestQueuePushPopFIFO(t *testing.T) {
	q := newQueue(4 * entrySize)

	for i := 0; i < 4; i++ {
		require.True(t, q.tryPush(Entry{MonoMillis: uint64(i)}))
	}
	assert.False(t, q.tryPush(Entry{}), "push into a full queue must fail")

	for i := 0; i < 4; i++ {
		e, ok := q.tryPop()
		require.True(t, ok)
		assert.Equal(t, uint64(i), e.MonoMillis)
	}
	_, ok := q.tryPop()
	assert.False(t, ok)
}

func TestQueueAccountingInvariant(t *testing.T) {
	q := newQueue(4 * entrySize)

	for i := 0; i < 3; i++ {
		require.True(t, q.tryPush(Entry{}))
		assert.Equal(t, q.capacity(), q.spacesAvailable()+q.messagesWaiting())
	}
	q.tryPop()
	assert.Equal(t, q.capacity(), q.spacesAvailable()+q.messagesWaiting())
}

func TestQueuePushAfterCloseIsSafe(t *testing.T) {
	q := newQueue(entrySize)
	q.close()

	assert.NotPanics(t, func() {
		assert.False(t, q.tryPush(Entry{}))
	})
}
