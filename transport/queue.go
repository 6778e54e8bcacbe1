package transport

import (
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/aRPC/codec"
	"github.com/google/btree"
	"golang.org/x/sync/semaphore"
)

// --------------------------------------------------------------------------
// Memory Reservation
// --------------------------------------------------------------------------

// memReservation holds the admission units of one call. The units are shared
// between the caller (who awaits the response) and the dispatcher (who still
// references the frame bytes until they hit the socket); the semaphore is
// released when the last holder lets go.
type memReservation struct {
	sem   *semaphore.Weighted
	units int64
	refs  atomic.Int32
}

func newMemReservation(sem *semaphore.Weighted, units int64) *memReservation {
	r := &memReservation{sem: sem, units: units}
	r.refs.Store(1)
	return r
}

// share adds a holder (called when the frame enters the send queue)
func (r *memReservation) share() { r.refs.Add(1) }

// release drops one holder and frees the units when none remain
func (r *memReservation) release() {
	if r == nil || r.units == 0 {
		return
	}
	if r.refs.Add(-1) == 0 {
		r.sem.Release(r.units)
	}
}

// --------------------------------------------------------------------------
// Ordered Send Queue
// --------------------------------------------------------------------------

// pendingSend is one outbound frame waiting for its turn on the wire
type pendingSend struct {
	seq     uint64
	header  [codec.HeaderSize]byte
	payload []byte
	res     *memReservation
	handler *responseHandler
	// aborted frames only exist to fill their sequence slot; the
	// dispatcher skips them without writing
	aborted bool
}

// sendQueue preserves caller-submission order across concurrent sends. The
// sequence is assigned on entry to Send, but admission and serialization of
// concurrent callers may finish in any order, so the queue is an ordered map
// keyed by sequence rather than a FIFO. It usually holds only a handful of
// entries.
type sendQueue struct {
	mu          sync.Mutex
	tree        *btree.BTreeG[*pendingSend]
	lastSent    uint64
	dispatching bool
	failed      bool
}

func newSendQueue() *sendQueue {
	return &sendQueue{
		tree: btree.NewG[*pendingSend](8, func(a, b *pendingSend) bool {
			return a.seq < b.seq
		}),
	}
}

// Enqueue inserts a pending frame. It reports whether a dispatch pass must
// be started; with failed=true the transport already tore down and the
// caller resolves the frame itself.
func (q *sendQueue) Enqueue(p *pendingSend) (dispatch bool, failed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failed {
		return false, true
	}
	q.tree.ReplaceOrInsert(p)
	if q.dispatching {
		return false, false
	}
	q.dispatching = true
	return true, false
}

// Next pops the frame with the smallest sequence if and only if it is the
// next one in submission order. With ok=false the dispatch pass ends and
// the dispatching flag is cleared.
func (q *sendQueue) Next() (*pendingSend, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.tree.Min()
	if !ok || q.failed || p.seq != q.lastSent+1 {
		q.dispatching = false
		return nil, false
	}
	q.tree.DeleteMin()
	q.lastSent = p.seq
	return p, true
}

// FailAll marks the queue failed and drains every queued frame. The caller
// resolves the returned frames.
func (q *sendQueue) FailAll() []*pendingSend {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = true
	drained := make([]*pendingSend, 0, q.tree.Len())
	for {
		p, ok := q.tree.DeleteMin()
		if !ok {
			break
		}
		drained = append(drained, p)
	}
	return drained
}

// Len returns the number of queued frames
func (q *sendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tree.Len()
}
