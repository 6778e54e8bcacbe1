// Package transporttest provides an in-process server speaking the aRPC
// wire protocol. It exists for tests and diagnostics: responses can be
// delayed, reordered, withheld or corrupted to exercise the failure paths
// of the client transport.
package transporttest

import (
	"bufio"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/aRPC/codec"
)

// --------------------------------------------------------------------------
// Requests and Handlers
// --------------------------------------------------------------------------

// Request is one decoded frame received from a client
type Request struct {
	// Header is the validated frame header (Meta carries the method id)
	Header codec.Header
	// Payload is the decompressed payload
	Payload []byte

	conn *serverConn
}

// HandlerFunc produces the response for one request
type HandlerFunc func(method uint32, payload []byte) (codec.Status, []byte)

// EchoHandler answers every request with its own payload
func EchoHandler(_ uint32, payload []byte) (codec.Status, []byte) {
	return codec.StatusSuccess, payload
}

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

// serverConn serializes response writes onto one accepted connection
type serverConn struct {
	mu   sync.Mutex
	conn net.Conn
}

// Server accepts aRPC framed connections on a loopback listener. In
// handler mode every request is answered by the handler; in manual mode
// requests are delivered through Requests() and the test responds (or
// doesn't) via Respond.
type Server struct {
	ln      net.Listener
	handler HandlerFunc

	requests chan Request

	mu    sync.Mutex
	conns []*serverConn

	silent      atomic.Bool
	corruptNext atomic.Bool
	wg          sync.WaitGroup
}

// NewServer starts a server answering every request with handler
func NewServer(handler HandlerFunc) (*Server, error) {
	return start(handler)
}

// NewManualServer starts a server that only parses frames; the test reads
// them from Requests() and answers explicitly
func NewManualServer() (*Server, error) {
	return start(nil)
}

func start(handler HandlerFunc) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{
		ln:       ln,
		handler:  handler,
		requests: make(chan Request, 128),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr returns the listener address to connect clients to
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Requests delivers the parsed frames in manual mode
func (s *Server) Requests() <-chan Request {
	return s.requests
}

// SetSilent makes the server swallow requests without answering
func (s *Server) SetSilent(v bool) {
	s.silent.Store(v)
}

// CorruptNextHeader flips a bit in the next response header written
func (s *Server) CorruptNextHeader() {
	s.corruptNext.Store(true)
}

// CloseConns kills all currently accepted connections, leaving the
// listener running
func (s *Server) CloseConns() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.conn.Close()
	}
}

// Close shuts the server down
func (s *Server) Close() {
	_ = s.ln.Close()
	s.CloseConns()
	s.wg.Wait()
}

// --------------------------------------------------------------------------
// Response Writing
// --------------------------------------------------------------------------

// Respond answers req with the given status and raw payload
func (s *Server) Respond(req Request, status codec.Status, payload []byte) error {
	return s.RespondWith(req, status, payload, codec.CompressionNone, 0)
}

// RespondWith answers req applying the given compression policy to the
// response payload
func (s *Server) RespondWith(req Request, status codec.Status, payload []byte, c codec.Compression, minCompressionBytes int) error {
	hdr, wirePayload, err := codec.EncodeFrame(uint32(status), req.Header.CorrelationID, c, minCompressionBytes, payload)
	if err != nil {
		return err
	}

	if s.corruptNext.CompareAndSwap(true, false) {
		hdr[10] ^= 0xff // damage the meta field, checksum no longer matches
	}

	req.conn.mu.Lock()
	defer req.conn.mu.Unlock()
	bufs := net.Buffers{hdr[:], wirePayload}
	_, err = bufs.WriteTo(req.conn.conn)
	return err
}

// --------------------------------------------------------------------------
// Accept / Read Loops
// --------------------------------------------------------------------------

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		sc := &serverConn{conn: conn}
		s.mu.Lock()
		s.conns = append(s.conns, sc)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.readLoop(sc)
	}
}

func (s *Server) readLoop(sc *serverConn) {
	defer s.wg.Done()
	in := bufio.NewReader(sc.conn)
	hdr := make([]byte, codec.HeaderSize)
	for {
		if _, err := io.ReadFull(in, hdr); err != nil {
			return
		}
		h, err := codec.DecodeHeader(hdr)
		if err != nil {
			return
		}
		payload, err := codec.ReadPayload(in, h)
		if err != nil {
			return
		}

		req := Request{Header: h, Payload: payload, conn: sc}
		if s.silent.Load() {
			continue
		}
		if s.handler == nil {
			s.requests <- req
			continue
		}

		status, resp := s.handler(h.Meta, payload)
		if err := s.Respond(req, status, resp); err != nil {
			return
		}
	}
}
