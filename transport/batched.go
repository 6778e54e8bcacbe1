package transport

import (
	"net"
	"sync"

	"github.com/ValentinKolb/aRPC/common"
)

// --------------------------------------------------------------------------
// Batched Output Stream
// --------------------------------------------------------------------------

// batchedOutputStream serializes frame writes onto the socket. The spans of
// one frame (header and payload) form a single flush group: they are handed
// to the kernel as one vectored write, so a frame is never interleaved with
// another frame's bytes. Across frames, submission order is preserved by the
// write lock.
type batchedOutputStream struct {
	mu    sync.Mutex
	conn  net.Conn
	probe *common.ClientProbe
}

func newBatchedOutputStream(conn net.Conn, probe *common.ClientProbe) *batchedOutputStream {
	return &batchedOutputStream{conn: conn, probe: probe}
}

// WriteFrame writes one flush group. It returns the total number of bytes
// written and the first socket error encountered.
func (o *batchedOutputStream) WriteFrame(spans ...[]byte) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.conn == nil {
		return 0, common.ErrDisconnected
	}

	bufs := make(net.Buffers, 0, len(spans))
	for _, s := range spans {
		if len(s) > 0 {
			bufs = append(bufs, s)
		}
	}

	n, err := bufs.WriteTo(o.conn)
	o.probe.AddOutBytes(int(n))
	return n, err
}

// Close detaches the stream from the socket. Subsequent writes fail with
// common.ErrDisconnected. The socket itself is closed by the transport.
func (o *batchedOutputStream) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conn = nil
}
