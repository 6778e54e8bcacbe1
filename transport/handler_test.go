package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/aRPC/codec"
	"github.com/ValentinKolb/aRPC/common"
	"github.com/stretchr/testify/require"
)

func newTestTable() *handlerTable {
	return newHandlerTable(common.NewClientProbe("test", true))
}

func testStreamingContext(id uint32) *StreamingContext {
	return newStreamingContext(codec.Header{CorrelationID: id}, nil, common.NewClientProbe("test", true))
}

// TestHandlerComplete tests the normal resolution path
func TestHandlerComplete(t *testing.T) {
	table := newTestTable()

	h := table.Register(1, 0)
	require.Equal(t, 1, table.Size())

	require.True(t, table.Complete(1, testStreamingContext(1)))
	require.Equal(t, 0, table.Size())

	comp := h.await()
	require.NoError(t, comp.err)
	require.Equal(t, uint32(1), comp.sctx.Header().CorrelationID)
}

// TestHandlerFail tests the error resolution path
func TestHandlerFail(t *testing.T) {
	table := newTestTable()

	h := table.Register(7, 0)
	require.True(t, table.Fail(7, common.ErrDisconnected))

	comp := h.await()
	require.ErrorIs(t, comp.err, common.ErrDisconnected)
}

// TestHandlerStaleCompletion tests that completing an unknown id is a no-op
func TestHandlerStaleCompletion(t *testing.T) {
	table := newTestTable()

	require.False(t, table.Complete(42, testStreamingContext(42)))
	require.False(t, table.Fail(42, common.ErrDisconnected))
}

// TestHandlerTimeout tests that the armed timer fails the slot and a later
// completion is rejected
func TestHandlerTimeout(t *testing.T) {
	table := newTestTable()

	h := table.Register(3, 10*time.Millisecond)
	comp := h.await()
	require.ErrorIs(t, comp.err, common.ErrClientRequestTimeout)

	// the slot is gone, a late response must not find it
	require.False(t, table.Complete(3, testStreamingContext(3)))
}

// TestHandlerExactlyOnce tests that racing resolutions deliver exactly one
// completion
func TestHandlerExactlyOnce(t *testing.T) {
	table := newTestTable()
	h := table.Register(9, 0)

	var wg sync.WaitGroup
	resolved := make(chan bool, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		resolved <- table.Complete(9, testStreamingContext(9))
	}()
	go func() {
		defer wg.Done()
		resolved <- table.Fail(9, common.ErrDisconnected)
	}()
	wg.Wait()
	close(resolved)

	wins := 0
	for won := range resolved {
		if won {
			wins++
		}
	}
	require.Equal(t, 1, wins, "expected exactly one resolution to win")

	// exactly one completion is buffered
	comp := h.await()
	require.NotNil(t, comp)
	select {
	case extra := <-h.ch:
		t.Fatalf("unexpected second completion: %+v", extra)
	default:
	}
}

// TestHandlerFailAll tests that teardown resolves every outstanding slot
func TestHandlerFailAll(t *testing.T) {
	table := newTestTable()

	handlers := make([]*responseHandler, 0, 5)
	for id := uint32(1); id <= 5; id++ {
		handlers = append(handlers, table.Register(id, 0))
	}

	table.FailAll(common.ErrShuttingDown)
	require.Equal(t, 0, table.Size())

	for _, h := range handlers {
		require.ErrorIs(t, h.await().err, common.ErrShuttingDown)
	}
}
