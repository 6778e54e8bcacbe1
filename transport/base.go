package transport

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/aRPC/common"
	"github.com/lni/dragonboat/v4/logger"
)

var tLog = logger.GetLogger("transport")

// --------------------------------------------------------------------------
// Connection State
// --------------------------------------------------------------------------

// State describes the lifecycle position of a transport. Transitions are
// monotonic - a closed transport cannot be reconnected.
type State int32

const (
	StateCreated State = iota
	StateConnecting
	StateReady
	StateClosing
	StateClosed
	StateFailed
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Base Transport
// --------------------------------------------------------------------------

// baseTransport owns the socket and its streams: it performs the connect
// (plain or TLS with optional SNI), tracks the lifecycle state and drains
// outstanding work through the dispatch gate on teardown. The derived
// transport fills in failOutstanding to resolve its pending slots.
type baseTransport struct {
	cfg       common.ClientConfig
	connector IClientConnector
	probe     *common.ClientProbe

	gate  dispatchGate
	state atomic.Int32
	eof   atomic.Bool

	mu   sync.Mutex
	conn net.Conn
	in   *bufio.Reader
	out  *batchedOutputStream

	// failOutstanding resolves all pending work with the given error, it
	// is invoked exactly once per teardown path
	failOutstanding func(err error)
}

// State returns the current lifecycle state
func (b *baseTransport) State() State {
	return State(b.state.Load())
}

func (b *baseTransport) transition(from, to State) bool {
	return b.state.CompareAndSwap(int32(from), int32(to))
}

// ServerAddress returns the configured endpoint
func (b *baseTransport) ServerAddress() string {
	return b.cfg.ServerAddr
}

// IsValid reports whether the socket is present and the input stream has
// not hit EOF
func (b *baseTransport) IsValid() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && !b.eof.Load()
}

// connect establishes the socket, applies connector specific tuning and
// optionally wraps the connection in TLS
func (b *baseTransport) connect() error {
	if !b.transition(StateCreated, StateConnecting) {
		return fmt.Errorf("cannot connect transport in state %q", b.State())
	}

	conn, err := b.connector.Connect(b.cfg.ServerAddr)
	if err != nil {
		b.state.Store(int32(StateFailed))
		b.probe.ConnectionError()
		return fmt.Errorf("failed to connect to %s: %w", b.cfg.ServerAddr, err)
	}

	if err := b.connector.UpgradeConnection(conn, b.cfg); err != nil {
		_ = conn.Close()
		b.state.Store(int32(StateFailed))
		b.probe.ConnectionError()
		return fmt.Errorf("failed to upgrade connection to %s: %w", b.cfg.ServerAddr, err)
	}

	if b.cfg.TLS.Credentials != nil {
		tlsConn := tls.Client(conn, b.tlsConfig())
		if err := tlsConn.Handshake(); err != nil {
			_ = conn.Close()
			b.state.Store(int32(StateFailed))
			b.probe.ConnectionError()
			return fmt.Errorf("tls handshake with %s failed: %w", b.cfg.ServerAddr, err)
		}
		conn = tlsConn
	}

	readBuf := b.cfg.Socket.ReadBufferSize
	if readBuf <= 0 {
		readBuf = common.DefaultReadBufferSize
	}

	b.mu.Lock()
	b.conn = conn
	b.in = bufio.NewReaderSize(conn, readBuf)
	b.out = newBatchedOutputStream(conn, b.probe)
	b.mu.Unlock()

	b.state.Store(int32(StateReady))
	b.probe.ConnectionEstablished()
	tLog.Infof("connected to %s via %s", b.cfg.ServerAddr, b.connector.GetName())
	return nil
}

// tlsConfig clones the configured credentials and applies the SNI override
func (b *baseTransport) tlsConfig() *tls.Config {
	c := b.cfg.TLS.Credentials.Clone()
	if b.cfg.TLS.SNIHostname != "" {
		c.ServerName = b.cfg.TLS.SNIHostname
	} else if c.ServerName == "" {
		if host, _, err := net.SplitHostPort(b.cfg.ServerAddr); err == nil {
			c.ServerName = host
		}
	}
	return c
}

// closeConn tears the socket down at most once
func (b *baseTransport) closeConn() {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	out := b.out
	b.mu.Unlock()

	if out != nil {
		out.Close()
	}
	if conn != nil {
		_ = conn.Close()
		b.probe.ConnectionClosed()
	}
}

// Stop rejects new work, resolves all pending operations, drains in-flight
// work through the dispatch gate and releases the socket. It is safe to
// call more than once.
func (b *baseTransport) Stop() {
	for {
		s := b.State()
		if s == StateClosing || s == StateClosed {
			break
		}
		if b.transition(s, StateClosing) {
			break
		}
	}

	// reject new work first, then resolve everything pending, release the
	// socket and wait for in-flight operations to drain out of the gate
	b.gate.Close()
	if b.failOutstanding != nil {
		b.failOutstanding(common.ErrShuttingDown)
	}
	b.closeConn()
	b.gate.Wait()
	b.state.Store(int32(StateClosed))
	tLog.Infof("transport to %s stopped", b.cfg.ServerAddr)
}

// Shutdown forcibly aborts the socket without draining. Outstanding
// operations resolve with an error immediately.
func (b *baseTransport) Shutdown() {
	for {
		s := b.State()
		if s == StateClosing || s == StateClosed {
			return
		}
		if b.transition(s, StateClosing) {
			break
		}
	}
	if b.failOutstanding != nil {
		b.failOutstanding(common.ErrDisconnected)
	}
	b.closeConn()
}
