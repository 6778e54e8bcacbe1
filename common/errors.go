package common

import (
	"errors"
)

// --------------------------------------------------------------------------
// Error Taxonomy
// --------------------------------------------------------------------------

// The transport never retries internally - every error below is reported to
// the caller exactly once per request. Callers decide whether to retry.
var (
	// ErrDisconnected is returned when the socket closed, a write failed or
	// EOF was hit mid-frame. All outstanding requests fail with this error
	// and the transport transitions to closing.
	ErrDisconnected = errors.New("rpc: disconnected")

	// ErrCorruptHeader is returned when the header checksum of a received
	// frame does not validate. This is fatal to the connection.
	ErrCorruptHeader = errors.New("rpc: corrupt header")

	// ErrCorruptBody is returned when the payload checksum or the decoder
	// disagree with the received payload. Only the affected request fails,
	// the connection stays usable because the payload is length prefixed.
	ErrCorruptBody = errors.New("rpc: corrupt body")

	// ErrClientRequestTimeout is returned when the per-call timer fired
	// before the response arrived. A later arrival is discarded.
	ErrClientRequestTimeout = errors.New("rpc: client request timeout")

	// ErrMethodNotFound is returned when the server reported that the
	// requested method id is unknown.
	ErrMethodNotFound = errors.New("rpc: method not found")

	// ErrServiceError is returned for server side failures, including any
	// status code the client does not recognize.
	ErrServiceError = errors.New("rpc: service error")

	// ErrShuttingDown is returned for requests that were still pending (or
	// newly submitted) when Stop was initiated.
	ErrShuttingDown = errors.New("rpc: shutting down")

	// ErrRequestOversized is returned at admission when a single payload
	// exceeds ClientConfig.MaxPayloadBytes. Payloads larger than the memory
	// budget are not rejected; they reserve the whole budget instead.
	ErrRequestOversized = errors.New("rpc: request exceeds max payload size")
)
