package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/aRPC/codec"
	"github.com/ValentinKolb/aRPC/common"
	"github.com/ValentinKolb/aRPC/serializer"
	"golang.org/x/sync/semaphore"
)

// --------------------------------------------------------------------------
// Call Options
// --------------------------------------------------------------------------

// CallOptions carries the per-call knobs of a single request
type CallOptions struct {
	// Timeout bounds the wait for memory admission and, separately, the
	// time from slot registration (after admission) until the response
	// arrives, which includes the time on the send queue. Each phase gets
	// the full Timeout, so a call can take up to twice as long in total.
	// Zero means no timeout.
	Timeout time.Duration

	// Compression selects the payload codec for this request
	Compression codec.Compression

	// MinCompressionBytes disables compression for payloads smaller than
	// this threshold
	MinCompressionBytes int
}

// --------------------------------------------------------------------------
// Transport
// --------------------------------------------------------------------------

// Transport is the multiplexed RPC client transport. Many goroutines may
// call Send/SendTyped concurrently; frames are written to the wire in the
// order the calls entered Send, responses are matched back by correlation
// id, and every call resolves exactly once.
type Transport struct {
	baseTransport

	ser    serializer.IRPCSerializer
	memory *semaphore.Weighted
	budget int64

	handlers *handlerTable
	queue    *sendQueue

	seq atomic.Uint64

	// closeCtx unblocks admission waiters on teardown
	closeCtx    context.Context
	closeCancel context.CancelFunc
}

// NewTransport creates a transport for the given endpoint configuration.
// The connector selects the medium (see the tcp and unix subpackages), the
// serializer the payload format used by SendTyped.
func NewTransport(cfg common.ClientConfig, connector IClientConnector, ser serializer.IRPCSerializer) *Transport {
	budget := cfg.MemoryBudget()
	closeCtx, closeCancel := context.WithCancel(context.Background())

	t := &Transport{
		ser:         ser,
		memory:      semaphore.NewWeighted(budget),
		budget:      budget,
		closeCtx:    closeCtx,
		closeCancel: closeCancel,
	}
	t.cfg = cfg
	t.connector = connector
	t.probe = common.NewClientProbe(cfg.ServerAddr, cfg.DisableMetrics)
	t.handlers = newHandlerTable(t.probe)
	t.queue = newSendQueue()
	t.failOutstanding = t.failOutstandingFutures
	return t
}

// Probe exposes the metrics probe of this transport
func (t *Transport) Probe() *common.ClientProbe { return t.probe }

// Connect establishes the socket and spawns the read loop
func (t *Transport) Connect() error {
	if err := t.connect(); err != nil {
		return err
	}
	if err := t.gate.Enter(); err != nil {
		return err
	}
	go func() {
		defer t.gate.Leave()
		t.readLoop()
	}()
	return nil
}

// --------------------------------------------------------------------------
// Send Path
// --------------------------------------------------------------------------

// Send transmits an already serialized message and returns the streaming
// context of its response. The caller must read the response body through
// the context and call SignalBodyParse afterwards; SendTyped does all of
// this and is the API most callers want.
func (t *Transport) Send(b *codec.Netbuf, opts CallOptions) (*StreamingContext, error) {
	t.probe.Request()
	started := time.Now()

	if err := t.gate.Enter(); err != nil {
		t.probe.RequestError()
		return nil, err
	}
	defer t.gate.Leave()

	if t.State() != StateReady {
		t.probe.RequestError()
		return nil, common.ErrDisconnected
	}

	// The sequence is claimed on entry: it fixes this call's position in
	// the wire order no matter how admission and serialization of
	// concurrent calls interleave below.
	seq := t.seq.Add(1)

	sctx, err := t.doSend(seq, b, opts)
	switch {
	case err == nil:
		t.probe.RequestCompleted(started)
	case errors.Is(err, common.ErrClientRequestTimeout):
		// counted where the timeout was detected
	default:
		t.probe.RequestError()
	}
	return sctx, err
}

func (t *Transport) doSend(seq uint64, b *codec.Netbuf, opts CallOptions) (*StreamingContext, error) {
	// admission under the memory budget
	size := int64(b.Size())
	if t.cfg.MaxPayloadBytes > 0 && size > t.cfg.MaxPayloadBytes {
		t.abortSeq(seq)
		return nil, fmt.Errorf("%w: %d bytes", common.ErrRequestOversized, size)
	}

	units := size
	if units > t.budget {
		units = t.budget
	}
	if units > 0 {
		if !t.memory.TryAcquire(units) {
			t.probe.RequestBlockedOnMemory()
			actx := t.closeCtx
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(actx, opts.Timeout)
				defer cancel()
			}
			if err := t.memory.Acquire(actx, units); err != nil {
				t.abortSeq(seq)
				if t.closeCtx.Err() != nil {
					// Stop closes the gate before tearing down; a wire
					// failure or Shutdown does not
					if t.gate.IsClosed() {
						return nil, common.ErrShuttingDown
					}
					return nil, common.ErrDisconnected
				}
				t.probe.RequestTimeout()
				return nil, common.ErrClientRequestTimeout
			}
		}
	}
	res := newMemReservation(t.memory, units)
	defer res.release()

	// The correlation id is derived from the sequence, so the ids on the
	// wire are strictly increasing in frame order even when admission of
	// concurrent calls completed out of order. The slot is only registered
	// after admission; ids of aborted calls never reach the wire.
	id := uint32(seq)
	h := t.handlers.Register(id, opts.Timeout)
	b.SetCorrelationID(id)

	hdr, payload, err := b.Wire()
	if err != nil {
		t.handlers.Fail(id, err)
		t.abortSeq(seq)
		return nil, h.await().err
	}

	res.share()
	p := &pendingSend{seq: seq, header: hdr, payload: payload, res: res, handler: h}
	dispatch, failed := t.queue.Enqueue(p)
	if failed {
		res.release()
		failErr := common.ErrDisconnected
		if t.gate.IsClosed() {
			failErr = common.ErrShuttingDown
		}
		t.handlers.Fail(id, failErr)
	} else if dispatch {
		t.spawnDispatch()
	}

	comp := h.await()
	if comp.err != nil {
		return nil, comp.err
	}
	return comp.sctx, nil
}

// abortSeq fills the sequence slot of a call that failed before it could be
// enqueued, so later sequences are not stalled behind the hole
func (t *Transport) abortSeq(seq uint64) {
	dispatch, failed := t.queue.Enqueue(&pendingSend{seq: seq, aborted: true})
	if !failed && dispatch {
		t.spawnDispatch()
	}
}

// spawnDispatch starts a dispatch pass in the background. During teardown
// the pass is skipped - the queue is drained by failOutstandingFutures.
func (t *Transport) spawnDispatch() {
	if err := t.gate.Enter(); err != nil {
		return
	}
	go func() {
		defer t.gate.Leave()
		t.drainSendQueue()
	}()
}

// drainSendQueue is the single-flight dispatcher: it pops frames in strict
// sequence order and writes each as one flush group
func (t *Transport) drainSendQueue() {
	for {
		p, ok := t.queue.Next()
		if !ok {
			return
		}
		if p.aborted {
			continue
		}

		_, err := t.out.WriteFrame(p.header[:], p.payload)
		p.res.release()
		if err != nil {
			tLog.Warningf("write to %s failed: %v", t.cfg.ServerAddr, err)
			t.handlers.Fail(p.handler.correlationID, common.ErrDisconnected)
			t.failTransport()
			return
		}
	}
}

// --------------------------------------------------------------------------
// Read Path
// --------------------------------------------------------------------------

// readLoop reads framed responses while the transport is ready and
// dispatches them to their waiters
func (t *Transport) readLoop() {
	hdr := make([]byte, codec.HeaderSize)
	for {
		if _, err := io.ReadFull(t.in, hdr); err != nil {
			t.eof.Store(true)
			if t.State() == StateReady && !errors.Is(err, io.EOF) {
				tLog.Infof("read from %s failed: %v", t.cfg.ServerAddr, err)
			}
			break
		}
		t.probe.AddInBytes(codec.HeaderSize)

		h, err := codec.DecodeHeader(hdr)
		if err != nil {
			t.probe.HeaderCorrupted()
			tLog.Errorf("closing connection to %s: %v", t.cfg.ServerAddr, err)
			break
		}

		if !t.dispatchResponse(h) {
			break
		}
	}
	t.failTransport()
}

// dispatchResponse routes one response frame. It reports false when the
// stream can no longer be used.
func (t *Transport) dispatchResponse(h codec.Header) bool {
	sctx := newStreamingContext(h, t.in, t.probe)
	if t.handlers.Complete(h.CorrelationID, sctx) {
		t.probe.ReadDispatched()
		// the waiter owns the stream until the body is consumed
		<-sctx.bodyParsed()
		return true
	}

	// stale response - the local timer fired first
	t.probe.ServerCorrelationError()
	tLog.Warningf("dropping stale response for correlation id %d from %s",
		h.CorrelationID, t.cfg.ServerAddr)
	if err := codec.SkipPayload(t.in, h); err != nil {
		return false
	}
	t.probe.AddInBytes(int(h.PayloadSize))
	return true
}

// --------------------------------------------------------------------------
// Teardown
// --------------------------------------------------------------------------

// failTransport tears the connection down after a wire-level failure
func (t *Transport) failTransport() {
	for {
		s := t.State()
		if s == StateClosing || s == StateClosed {
			return
		}
		if t.transition(s, StateClosing) {
			break
		}
	}
	t.failOutstandingFutures(common.ErrDisconnected)
	t.closeConn()
}

// failOutstandingFutures resolves every pending completion slot and every
// queued frame with err, releases their admission units and unblocks
// admission waiters
func (t *Transport) failOutstandingFutures(err error) {
	t.closeCancel()
	for _, p := range t.queue.FailAll() {
		p.res.release()
		if p.handler != nil {
			t.handlers.Fail(p.handler.correlationID, err)
		}
	}
	t.handlers.FailAll(err)
}

// --------------------------------------------------------------------------
// Typed Send
// --------------------------------------------------------------------------

// mapStatus converts a response status code into the client error taxonomy.
// Unknown codes are treated as service errors.
func mapStatus(s codec.Status) error {
	switch s {
	case codec.StatusSuccess:
		return nil
	case codec.StatusRequestTimeout:
		return common.ErrClientRequestTimeout
	case codec.StatusMethodNotFound:
		return common.ErrMethodNotFound
	default:
		return common.ErrServiceError
	}
}

// SendTyped serializes req, transmits it under the given method id and
// decodes the response into Out. The header status is mapped onto the
// client error taxonomy; Out is only decoded on success.
func SendTyped[In any, Out any](t *Transport, req In, methodID uint32, opts CallOptions) (*ClientContext[Out], error) {
	b := codec.NewNetbuf()
	b.SetCompression(opts.Compression)
	b.SetMinCompressionBytes(opts.MinCompressionBytes)
	b.SetServiceMethodID(methodID)

	data, err := t.ser.Serialize(req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request: %w", err)
	}
	b.Buffer().Write(data)

	sctx, err := t.Send(b, opts)
	if err != nil {
		return nil, err
	}
	defer sctx.SignalBodyParse()

	raw, err := sctx.ReadBody()
	if err != nil {
		return nil, err
	}

	if err := mapStatus(sctx.Header().Status()); err != nil {
		return nil, err
	}

	var out Out
	if err := t.ser.Deserialize(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptBody, err)
	}
	return &ClientContext[Out]{Header: sctx.Header(), Data: out}, nil
}
