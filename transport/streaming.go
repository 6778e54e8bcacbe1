package transport

import (
	"bufio"
	"sync"

	"github.com/ValentinKolb/aRPC/codec"
	"github.com/ValentinKolb/aRPC/common"
)

// --------------------------------------------------------------------------
// Streaming Context
// --------------------------------------------------------------------------

// StreamingContext is handed to the waiter of a request once its response
// header has been parsed and validated. The waiter reads the body through it
// and must call SignalBodyParse when done - the read loop does not touch the
// socket again before that signal, because header and body share one input
// stream.
type StreamingContext struct {
	header codec.Header
	in     *bufio.Reader
	probe  *common.ClientProbe

	once   sync.Once
	parsed chan struct{}
}

func newStreamingContext(h codec.Header, in *bufio.Reader, probe *common.ClientProbe) *StreamingContext {
	return &StreamingContext{
		header: h,
		in:     in,
		probe:  probe,
		parsed: make(chan struct{}),
	}
}

// Header returns the validated response header
func (s *StreamingContext) Header() codec.Header { return s.header }

// ReadBody consumes the response payload from the input stream, verifying
// the payload checksum and undoing compression. It must be followed by
// SignalBodyParse regardless of the outcome.
func (s *StreamingContext) ReadBody() ([]byte, error) {
	raw, err := codec.ReadPayload(s.in, s.header)
	s.probe.AddInBytes(int(s.header.PayloadSize))
	return raw, err
}

// SignalBodyParse tells the read loop that the body has been consumed and
// the next header may be read. It is idempotent.
func (s *StreamingContext) SignalBodyParse() {
	s.once.Do(func() { close(s.parsed) })
}

// bodyParsed is awaited by the read loop
func (s *StreamingContext) bodyParsed() <-chan struct{} { return s.parsed }

// --------------------------------------------------------------------------
// Client Context
// --------------------------------------------------------------------------

// ClientContext carries a typed, successfully decoded response together with
// its header
type ClientContext[T any] struct {
	// Header is the response frame header
	Header codec.Header
	// Data is the decoded response value
	Data T
}
