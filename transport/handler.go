package transport

import (
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/aRPC/common"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Response Handler
// --------------------------------------------------------------------------

// completion is the terminal value of one request: either a streaming
// context for the arrived response or an error
type completion struct {
	sctx *StreamingContext
	err  error
}

// responseHandler is the one-shot completion slot of a single in-flight
// request. It is shared between the caller (who awaits) and the read loop
// (who resolves); the resolved flag guarantees exactly-once resolution no
// matter whether the response, the timer or a teardown wins the race.
type responseHandler struct {
	correlationID uint32
	ch            chan completion
	resolved      atomic.Bool
	timer         *time.Timer
}

// resolve delivers the terminal value. It reports false if the slot was
// already resolved; timer cancellation is idempotent.
func (h *responseHandler) resolve(sctx *StreamingContext, err error) bool {
	if !h.resolved.CompareAndSwap(false, true) {
		return false
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	h.ch <- completion{sctx: sctx, err: err}
	return true
}

// await blocks until the slot is resolved
func (h *responseHandler) await() completion {
	return <-h.ch
}

// --------------------------------------------------------------------------
// Handler Table
// --------------------------------------------------------------------------

// handlerTable maps in-flight correlation ids to their completion slots.
// Every slot is removed from the table as part of its resolution, so the
// table never holds a resolved slot.
type handlerTable struct {
	m     *xsync.MapOf[uint32, *responseHandler]
	probe *common.ClientProbe
}

func newHandlerTable(probe *common.ClientProbe) *handlerTable {
	return &handlerTable{
		m:     xsync.NewMapOf[uint32, *responseHandler](),
		probe: probe,
	}
}

// Register inserts a new slot and, if timeout is positive, arms its timer.
// A firing timer fails the slot with common.ErrClientRequestTimeout.
func (t *handlerTable) Register(id uint32, timeout time.Duration) *responseHandler {
	h := &responseHandler{
		correlationID: id,
		ch:            make(chan completion, 1),
	}
	t.m.Store(id, h)

	if timeout > 0 {
		h.timer = time.AfterFunc(timeout, func() {
			if t.Fail(id, common.ErrClientRequestTimeout) {
				t.probe.RequestTimeout()
			}
		})
	}
	return h
}

// Complete resolves the slot of id with the arrived response. It reports
// false if no pending slot exists (stale response after a local timeout).
func (t *handlerTable) Complete(id uint32, sctx *StreamingContext) bool {
	h, ok := t.m.LoadAndDelete(id)
	if !ok {
		return false
	}
	return h.resolve(sctx, nil)
}

// Fail resolves the slot of id with an error. It reports false if no
// pending slot exists or the slot already resolved.
func (t *handlerTable) Fail(id uint32, err error) bool {
	h, ok := t.m.LoadAndDelete(id)
	if !ok {
		return false
	}
	return h.resolve(nil, err)
}

// FailAll resolves every outstanding slot with err and clears the table
func (t *handlerTable) FailAll(err error) {
	t.m.Range(func(id uint32, _ *responseHandler) bool {
		if h, ok := t.m.LoadAndDelete(id); ok {
			h.resolve(nil, err)
		}
		return true
	})
}

// Size returns the number of currently pending slots
func (t *handlerTable) Size() int {
	return t.m.Size()
}
