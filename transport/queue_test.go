package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestQueueOrdering tests that frames are only handed out in strict
// sequence order no matter the enqueue order
func TestQueueOrdering(t *testing.T) {
	q := newSendQueue()

	// sequence 2 arrives first - nothing may be dispatched yet
	dispatch, failed := q.Enqueue(&pendingSend{seq: 2})
	require.True(t, dispatch)
	require.False(t, failed)

	_, ok := q.Next()
	require.False(t, ok, "sequence 2 must wait for sequence 1")

	// sequence 1 fills the hole
	dispatch, failed = q.Enqueue(&pendingSend{seq: 1})
	require.True(t, dispatch, "dispatch flag was cleared by the failed Next")
	require.False(t, failed)

	p, ok := q.Next()
	require.True(t, ok)
	require.Equal(t, uint64(1), p.seq)

	p, ok = q.Next()
	require.True(t, ok)
	require.Equal(t, uint64(2), p.seq)

	_, ok = q.Next()
	require.False(t, ok)
}

// TestQueueSingleFlight tests that only one dispatch pass is requested at
// a time
func TestQueueSingleFlight(t *testing.T) {
	q := newSendQueue()

	dispatch, _ := q.Enqueue(&pendingSend{seq: 1})
	require.True(t, dispatch)

	// a second enqueue while a pass is active must not request another
	dispatch, _ = q.Enqueue(&pendingSend{seq: 2})
	require.False(t, dispatch)
}

// TestQueueFailAll tests that a failed queue drains everything and rejects
// new frames
func TestQueueFailAll(t *testing.T) {
	q := newSendQueue()

	q.Enqueue(&pendingSend{seq: 1})
	q.Enqueue(&pendingSend{seq: 2})

	drained := q.FailAll()
	require.Len(t, drained, 2)
	require.Equal(t, 0, q.Len())

	_, failed := q.Enqueue(&pendingSend{seq: 3})
	require.True(t, failed)
}
