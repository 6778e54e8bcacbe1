package common

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// --------------------------------------------------------------------------
// Client Probe
// --------------------------------------------------------------------------

// ClientProbe is the metrics sink of a single transport. The transport pushes
// counters through it on every noteworthy event; the host scrapes them via
// the default VictoriaMetrics exposition endpoint.
//
// When metrics are disabled the counters are created on a private,
// unregistered set so all probe calls stay valid no-op-ish updates that are
// never exported.
type ClientProbe struct {
	requests            *metrics.Counter
	requestsCompleted   *metrics.Counter
	requestErrors       *metrics.Counter
	requestTimeouts     *metrics.Counter
	requestsBlocked     *metrics.Counter
	readsDispatched     *metrics.Counter
	corruptedHeaders    *metrics.Counter
	serverCorrelations  *metrics.Counter
	clientCorrelations  *metrics.Counter
	connects            *metrics.Counter
	disconnects         *metrics.Counter
	connectionErrors    *metrics.Counter
	outBytes            *metrics.Counter
	inBytes             *metrics.Counter

	// request latency distribution, queried via Latency()
	latency gometrics.Timer
}

// NewClientProbe creates a probe for the transport talking to serverAddr.
// With disabled=true the counters are kept on a private set and never
// registered with the exporter.
func NewClientProbe(serverAddr string, disabled bool) *ClientProbe {
	var privateSet *metrics.Set
	if disabled {
		privateSet = metrics.NewSet()
	}
	newCounter := func(name string) *metrics.Counter {
		full := fmt.Sprintf(`rpc_client_%s{server=%q}`, name, serverAddr)
		if disabled {
			return privateSet.NewCounter(full)
		}
		return metrics.GetOrCreateCounter(full)
	}

	return &ClientProbe{
		requests:           newCounter("requests_total"),
		requestsCompleted:  newCounter("requests_completed_total"),
		requestErrors:      newCounter("request_errors_total"),
		requestTimeouts:    newCounter("request_timeouts_total"),
		requestsBlocked:    newCounter("requests_blocked_memory_total"),
		readsDispatched:    newCounter("reads_dispatched_total"),
		corruptedHeaders:   newCounter("corrupted_headers_total"),
		serverCorrelations: newCounter("server_correlation_errors_total"),
		clientCorrelations: newCounter("client_correlation_errors_total"),
		connects:           newCounter("connects_total"),
		disconnects:        newCounter("disconnects_total"),
		connectionErrors:   newCounter("connection_errors_total"),
		outBytes:           newCounter("out_bytes_total"),
		inBytes:            newCounter("in_bytes_total"),
		latency:            gometrics.NewTimer(),
	}
}

// --------------------------------------------------------------------------
// Counter updates (called by the transport)
// --------------------------------------------------------------------------

// Request counts a request entering the transport
func (p *ClientProbe) Request() { p.requests.Inc() }

// RequestCompleted counts a successfully delivered response and records the
// request latency
func (p *ClientProbe) RequestCompleted(started time.Time) {
	p.requestsCompleted.Inc()
	p.latency.UpdateSince(started)
}

// RequestError counts a request that was resolved with an error
func (p *ClientProbe) RequestError() { p.requestErrors.Inc() }

// RequestTimeout counts a request whose per-call timer fired
func (p *ClientProbe) RequestTimeout() { p.requestTimeouts.Inc() }

// RequestBlockedOnMemory counts a request that had to wait at the memory
// admission gate
func (p *ClientProbe) RequestBlockedOnMemory() { p.requestsBlocked.Inc() }

// ReadDispatched counts a response header that was matched and handed to its
// waiter
func (p *ClientProbe) ReadDispatched() { p.readsDispatched.Inc() }

// HeaderCorrupted counts a received header that failed its checksum
func (p *ClientProbe) HeaderCorrupted() { p.corruptedHeaders.Inc() }

// ServerCorrelationError counts a response whose correlation id matched no
// pending request (stale response after a local timeout)
func (p *ClientProbe) ServerCorrelationError() { p.serverCorrelations.Inc() }

// ClientCorrelationError counts a correlation slot that could not be
// registered
func (p *ClientProbe) ClientCorrelationError() { p.clientCorrelations.Inc() }

// ConnectionEstablished counts a successful connect
func (p *ClientProbe) ConnectionEstablished() { p.connects.Inc() }

// ConnectionClosed counts a teardown of the socket
func (p *ClientProbe) ConnectionClosed() { p.disconnects.Inc() }

// ConnectionError counts a failed connect
func (p *ClientProbe) ConnectionError() { p.connectionErrors.Inc() }

// AddOutBytes accounts bytes written to the socket
func (p *ClientProbe) AddOutBytes(n int) { p.outBytes.Add(n) }

// AddInBytes accounts bytes read from the socket
func (p *ClientProbe) AddInBytes(n int) { p.inBytes.Add(n) }

// Latency returns a read-only snapshot of the request latency distribution
func (p *ClientProbe) Latency() gometrics.Timer { return p.latency.Snapshot() }

// --------------------------------------------------------------------------
// Counter reads (host introspection)
// --------------------------------------------------------------------------

// RequestsTotal returns the number of requests that entered the transport
func (p *ClientProbe) RequestsTotal() uint64 { return p.requests.Get() }

// RequestTimeoutsTotal returns the number of requests whose timer fired
func (p *ClientProbe) RequestTimeoutsTotal() uint64 { return p.requestTimeouts.Get() }

// StaleResponsesTotal returns the number of responses dropped because no
// pending request matched their correlation id
func (p *ClientProbe) StaleResponsesTotal() uint64 { return p.serverCorrelations.Get() }

// CorruptedHeadersTotal returns the number of received headers that failed
// their checksum
func (p *ClientProbe) CorruptedHeadersTotal() uint64 { return p.corruptedHeaders.Get() }

// ReadsDispatchedTotal returns the number of responses handed to a waiter
func (p *ClientProbe) ReadsDispatchedTotal() uint64 { return p.readsDispatched.Get() }

// RequestsBlockedTotal returns the number of requests that had to wait at
// the memory admission gate
func (p *ClientProbe) RequestsBlockedTotal() uint64 { return p.requestsBlocked.Get() }
