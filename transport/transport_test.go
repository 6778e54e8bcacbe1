package transport

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/aRPC/codec"
	"github.com/ValentinKolb/aRPC/common"
	"github.com/ValentinKolb/aRPC/serializer"
	"github.com/ValentinKolb/aRPC/transport/transporttest"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

// testConnector dials plain TCP without any tuning
type testConnector struct{}

func (testConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("tcp", endpoint)
}
func (testConnector) GetName() string { return "tcp" }
func (testConnector) UpgradeConnection(net.Conn, common.ClientConfig) error {
	return nil
}

// testMsg is the payload used by the typed send tests
type testMsg struct {
	Text string
	N    int
}

func newTestTransport(t *testing.T, addr string, mutate ...func(*common.ClientConfig)) *Transport {
	t.Helper()
	cfg := common.ClientConfig{
		ServerAddr:     addr,
		DisableMetrics: true,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	tr := NewTransport(cfg, testConnector{}, serializer.NewJSONSerializer())
	require.NoError(t, tr.Connect())
	t.Cleanup(tr.Stop)
	return tr
}

// stopped runs Stop and reports whether it finished within the deadline
func stopped(tr *Transport, deadline time.Duration) bool {
	done := make(chan struct{})
	go func() {
		tr.Stop()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(deadline):
		return false
	}
}

// --------------------------------------------------------------------------
// Round Trips
// --------------------------------------------------------------------------

// TestSendTypedEcho tests the basic typed round trip
func TestSendTypedEcho(t *testing.T) {
	srv, err := transporttest.NewServer(transporttest.EchoHandler)
	require.NoError(t, err)
	defer srv.Close()

	tr := newTestTransport(t, srv.Addr())

	ctx, err := SendTyped[testMsg, testMsg](tr, testMsg{Text: "hello", N: 42}, 1, CallOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, testMsg{Text: "hello", N: 42}, ctx.Data)
	require.Equal(t, codec.StatusSuccess, ctx.Header.Status())
	require.True(t, tr.IsValid())
}

// TestStatusMapping tests that every server status maps to its client error
func TestStatusMapping(t *testing.T) {
	tests := map[string]struct {
		status codec.Status
		want   error
	}{
		"request timeout":  {codec.StatusRequestTimeout, common.ErrClientRequestTimeout},
		"server error":     {codec.StatusServerError, common.ErrServiceError},
		"method not found": {codec.StatusMethodNotFound, common.ErrMethodNotFound},
		"reserved status":  {codec.Status(77), common.ErrServiceError},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			srv, err := transporttest.NewServer(func(_ uint32, _ []byte) (codec.Status, []byte) {
				return tc.status, nil
			})
			require.NoError(t, err)
			defer srv.Close()

			tr := newTestTransport(t, srv.Addr())
			_, err = SendTyped[testMsg, testMsg](tr, testMsg{}, 1, CallOptions{Timeout: 5 * time.Second})
			require.ErrorIs(t, err, tc.want)
		})
	}
}

// TestResponseReordering tests that out-of-order responses reach their own
// callers (scenario: submit A, B, C - server responds C, A, B)
func TestResponseReordering(t *testing.T) {
	srv, err := transporttest.NewManualServer()
	require.NoError(t, err)
	defer srv.Close()

	tr := newTestTransport(t, srv.Addr())

	type result struct {
		sent string
		got  string
		err  error
	}
	results := make(chan result, 3)

	var wg sync.WaitGroup
	for _, text := range []string{"A", "B", "C"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, err := SendTyped[testMsg, testMsg](tr, testMsg{Text: text}, 1, CallOptions{Timeout: 5 * time.Second})
			if err != nil {
				results <- result{sent: text, err: err}
				return
			}
			results <- result{sent: text, got: ctx.Data.Text}
		}()
	}

	reqs := make([]transporttest.Request, 3)
	for i := range reqs {
		reqs[i] = <-srv.Requests()
	}

	// answer in a different order than received
	for _, i := range []int{2, 0, 1} {
		require.NoError(t, srv.Respond(reqs[i], codec.StatusSuccess, reqs[i].Payload))
	}
	wg.Wait()
	close(results)

	for r := range results {
		require.NoError(t, r.err)
		require.Equal(t, r.sent, r.got, "caller received a foreign response")
	}
}

// TestOrderPreservation tests that concurrent calls hit the wire with
// strictly increasing correlation ids
func TestOrderPreservation(t *testing.T) {
	srv, err := transporttest.NewManualServer()
	require.NoError(t, err)
	defer srv.Close()

	tr := newTestTransport(t, srv.Addr())

	const calls = 24
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = SendTyped[testMsg, testMsg](tr, testMsg{N: i}, 1, CallOptions{Timeout: 5 * time.Second})
		}()
	}

	ids := make([]uint32, calls)
	reqs := make([]transporttest.Request, calls)
	for i := 0; i < calls; i++ {
		reqs[i] = <-srv.Requests()
		ids[i] = reqs[i].Header.CorrelationID
	}

	for i := 1; i < calls; i++ {
		require.Greater(t, ids[i], ids[i-1],
			"correlation ids not strictly increasing on the wire: %v", ids)
	}

	for _, req := range reqs {
		require.NoError(t, srv.Respond(req, codec.StatusSuccess, req.Payload))
	}
	wg.Wait()
}

// --------------------------------------------------------------------------
// Timeouts and Stale Responses
// --------------------------------------------------------------------------

// TestTimeoutAndStaleResponse tests that a silent server triggers the call
// timeout and the late response is dropped and counted
func TestTimeoutAndStaleResponse(t *testing.T) {
	srv, err := transporttest.NewManualServer()
	require.NoError(t, err)
	defer srv.Close()

	tr := newTestTransport(t, srv.Addr())

	done := make(chan error, 1)
	go func() {
		_, err := SendTyped[testMsg, testMsg](tr, testMsg{Text: "late"}, 1, CallOptions{Timeout: 50 * time.Millisecond})
		done <- err
	}()

	req := <-srv.Requests()
	require.ErrorIs(t, <-done, common.ErrClientRequestTimeout)
	require.Equal(t, uint64(1), tr.Probe().RequestTimeoutsTotal())

	// the response arrives after the local timer fired
	require.NoError(t, srv.Respond(req, codec.StatusSuccess, req.Payload))

	require.Eventually(t, func() bool {
		return tr.Probe().StaleResponsesTotal() == 1
	}, 2*time.Second, 10*time.Millisecond, "stale response was not counted")

	// the connection is still usable after the stale frame was skipped
	srv2 := make(chan transporttest.Request, 1)
	go func() { srv2 <- <-srv.Requests() }()
	resp := make(chan error, 1)
	go func() {
		_, err := SendTyped[testMsg, testMsg](tr, testMsg{Text: "next"}, 1, CallOptions{Timeout: 5 * time.Second})
		resp <- err
	}()
	req2 := <-srv2
	require.NoError(t, srv.Respond(req2, codec.StatusSuccess, req2.Payload))
	require.NoError(t, <-resp)
}

// --------------------------------------------------------------------------
// Failure Paths
// --------------------------------------------------------------------------

// TestDisconnectFailsPending tests that killing the socket mid-flight fails
// every pending call and Stop still drains promptly
func TestDisconnectFailsPending(t *testing.T) {
	srv, err := transporttest.NewManualServer()
	require.NoError(t, err)
	defer srv.Close()

	tr := newTestTransport(t, srv.Addr())

	const pending = 5
	errs := make(chan error, pending)
	for i := 0; i < pending; i++ {
		go func() {
			_, err := SendTyped[testMsg, testMsg](tr, testMsg{N: i}, 1, CallOptions{Timeout: 10 * time.Second})
			errs <- err
		}()
	}

	// wait until all five frames reached the server, then cut the socket
	for i := 0; i < pending; i++ {
		<-srv.Requests()
	}
	srv.CloseConns()

	for i := 0; i < pending; i++ {
		require.ErrorIs(t, <-errs, common.ErrDisconnected)
	}
	require.True(t, stopped(tr, 2*time.Second), "Stop did not drain in time")
	require.False(t, tr.IsValid())
}

// TestCorruptHeaderClosesConnection tests that a response with a damaged
// header fails the outstanding calls and closes the transport
func TestCorruptHeaderClosesConnection(t *testing.T) {
	srv, err := transporttest.NewServer(transporttest.EchoHandler)
	require.NoError(t, err)
	defer srv.Close()

	tr := newTestTransport(t, srv.Addr())

	// first call proves the connection works
	_, err = SendTyped[testMsg, testMsg](tr, testMsg{Text: "ok"}, 1, CallOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)

	srv.CorruptNextHeader()
	_, err = SendTyped[testMsg, testMsg](tr, testMsg{Text: "boom"}, 1, CallOptions{Timeout: 5 * time.Second})
	require.ErrorIs(t, err, common.ErrDisconnected)

	require.Equal(t, uint64(1), tr.Probe().CorruptedHeadersTotal())
	require.Eventually(t, func() bool { return !tr.IsValid() }, 2*time.Second, 10*time.Millisecond)
}

// TestOversizedRequest tests that a payload above the cap is rejected at
// admission and later calls are not stalled behind its sequence
func TestOversizedRequest(t *testing.T) {
	srv, err := transporttest.NewServer(transporttest.EchoHandler)
	require.NoError(t, err)
	defer srv.Close()

	tr := newTestTransport(t, srv.Addr(), func(c *common.ClientConfig) {
		c.MaxPayloadBytes = 64
	})

	_, err = SendTyped[testMsg, testMsg](tr, testMsg{Text: string(bytes.Repeat([]byte("x"), 256))}, 1, CallOptions{Timeout: 5 * time.Second})
	require.ErrorIs(t, err, common.ErrRequestOversized)

	// the aborted sequence must not block the next call
	_, err = SendTyped[testMsg, testMsg](tr, testMsg{Text: "small"}, 1, CallOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)
}

// --------------------------------------------------------------------------
// Admission Control
// --------------------------------------------------------------------------

// TestAdmissionBound tests that with a small budget only a bounded number
// of calls pass admission at once and all of them eventually complete
func TestAdmissionBound(t *testing.T) {
	srv, err := transporttest.NewManualServer()
	require.NoError(t, err)
	defer srv.Close()

	payload := string(bytes.Repeat([]byte("p"), 1024))
	tr := newTestTransport(t, srv.Addr(), func(c *common.ClientConfig) {
		c.MemoryBudgetBytes = 4 * 1024
	})

	const calls = 10
	errs := make(chan error, calls)
	for i := 0; i < calls; i++ {
		go func() {
			_, err := SendTyped[testMsg, testMsg](tr, testMsg{Text: payload}, 1, CallOptions{Timeout: 10 * time.Second})
			errs <- err
		}()
	}

	// collect everything that passes admission until the stream goes
	// quiet - the budget must keep it well below the total
	admitted := make([]transporttest.Request, 0, calls)
collect:
	for {
		select {
		case req := <-srv.Requests():
			admitted = append(admitted, req)
		case <-time.After(200 * time.Millisecond):
			break collect
		}
	}
	require.NotEmpty(t, admitted)
	require.LessOrEqual(t, len(admitted), 4, "more calls passed admission than the budget allows")

	// responding frees budget units and lets the rest through
	responded := 0
	for _, req := range admitted {
		require.NoError(t, srv.Respond(req, codec.StatusSuccess, req.Payload))
		responded++
	}
	for responded < calls {
		req := <-srv.Requests()
		require.NoError(t, srv.Respond(req, codec.StatusSuccess, req.Payload))
		responded++
	}

	for i := 0; i < calls; i++ {
		require.NoError(t, <-errs)
	}
	require.GreaterOrEqual(t, tr.Probe().RequestsBlockedTotal(), uint64(1))
}

// --------------------------------------------------------------------------
// Teardown
// --------------------------------------------------------------------------

// TestStopRejectsNewWork tests the dispatch gate after Stop
func TestStopRejectsNewWork(t *testing.T) {
	srv, err := transporttest.NewServer(transporttest.EchoHandler)
	require.NoError(t, err)
	defer srv.Close()

	tr := newTestTransport(t, srv.Addr())
	_, err = SendTyped[testMsg, testMsg](tr, testMsg{Text: "ok"}, 1, CallOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)

	tr.Stop()
	require.False(t, tr.IsValid())
	require.Equal(t, StateClosed, tr.State())

	_, err = SendTyped[testMsg, testMsg](tr, testMsg{Text: "rejected"}, 1, CallOptions{Timeout: time.Second})
	require.ErrorIs(t, err, common.ErrShuttingDown)
}

// TestShutdownUnblocksWaiters tests that Shutdown aborts a call that has no
// timeout armed
func TestShutdownUnblocksWaiters(t *testing.T) {
	srv, err := transporttest.NewManualServer()
	require.NoError(t, err)
	defer srv.Close()

	tr := newTestTransport(t, srv.Addr())

	done := make(chan error, 1)
	go func() {
		_, err := SendTyped[testMsg, testMsg](tr, testMsg{Text: "forever"}, 1, CallOptions{})
		done <- err
	}()
	<-srv.Requests()

	tr.Shutdown()
	require.ErrorIs(t, <-done, common.ErrDisconnected)
}

// --------------------------------------------------------------------------
// Compression
// --------------------------------------------------------------------------

// TestCompressedCall tests that a large payload travels compressed and
// round trips to the original bytes
func TestCompressedCall(t *testing.T) {
	srv, err := transporttest.NewManualServer()
	require.NoError(t, err)
	defer srv.Close()

	tr := newTestTransport(t, srv.Addr())

	text := string(bytes.Repeat([]byte("abcdefgh"), 128*1024)) // 1 MiB of payload
	opts := CallOptions{
		Timeout:             10 * time.Second,
		Compression:         codec.CompressionZstd,
		MinCompressionBytes: 1024,
	}

	done := make(chan error, 1)
	var got testMsg
	go func() {
		ctx, err := SendTyped[testMsg, testMsg](tr, testMsg{Text: text}, 1, opts)
		if err == nil {
			got = ctx.Data
		}
		done <- err
	}()

	req := <-srv.Requests()
	require.Equal(t, codec.CompressionZstd, req.Header.Compression)
	require.Less(t, int(req.Header.PayloadSize), len(text), "payload was not compressed on the wire")

	// echo back compressed as well
	require.NoError(t, srv.RespondWith(req, codec.StatusSuccess, req.Payload, codec.CompressionZstd, 1024))
	require.NoError(t, <-done)
	require.Equal(t, text, got.Text)
}

// --------------------------------------------------------------------------
// Misc
// --------------------------------------------------------------------------

// TestConnectFailure tests the failed state after an unreachable endpoint
func TestConnectFailure(t *testing.T) {
	tr := NewTransport(common.ClientConfig{
		ServerAddr:     "127.0.0.1:1", // nothing listens here
		DisableMetrics: true,
	}, testConnector{}, serializer.NewJSONSerializer())

	require.Error(t, tr.Connect())
	require.Equal(t, StateFailed, tr.State())
	require.False(t, tr.IsValid())
}

// TestConnectTwice tests that the lifecycle is monotonic
func TestConnectTwice(t *testing.T) {
	srv, err := transporttest.NewServer(transporttest.EchoHandler)
	require.NoError(t, err)
	defer srv.Close()

	tr := newTestTransport(t, srv.Addr())
	err = tr.Connect()
	require.Error(t, err)
	require.Contains(t, fmt.Sprint(err), "cannot connect")
}
