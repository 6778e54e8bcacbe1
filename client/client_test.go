package client_test

import (
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/aRPC/client"
	"github.com/ValentinKolb/aRPC/codec"
	"github.com/ValentinKolb/aRPC/common"
	"github.com/ValentinKolb/aRPC/serializer"
	"github.com/ValentinKolb/aRPC/transport"
	"github.com/ValentinKolb/aRPC/transport/transporttest"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test Server
// --------------------------------------------------------------------------

// kvHandler implements the demo protocol over an in-memory map
func kvHandler() transporttest.HandlerFunc {
	var mu sync.Mutex
	store := map[string][]byte{}

	respond := func(msg client.Message) (codec.Status, []byte) {
		b, err := json.Marshal(msg)
		if err != nil {
			return codec.StatusServerError, nil
		}
		return codec.StatusSuccess, b
	}

	return func(method uint32, payload []byte) (codec.Status, []byte) {
		var req client.Message
		if err := json.Unmarshal(payload, &req); err != nil {
			return codec.StatusServerError, nil
		}

		mu.Lock()
		defer mu.Unlock()

		switch method {
		case client.MethodKVSet:
			store[req.Key] = req.Value
			return respond(client.Message{})
		case client.MethodKVGet:
			v, ok := store[req.Key]
			return respond(client.Message{Value: v, Ok: ok})
		case client.MethodKVHas:
			_, ok := store[req.Key]
			return respond(client.Message{Ok: ok})
		case client.MethodKVDelete:
			delete(store, req.Key)
			return respond(client.Message{})
		case client.MethodLockAcquire:
			if _, held := store["lock/"+req.Key]; held {
				return respond(client.Message{Ok: false})
			}
			owner := []byte("owner-" + req.Key)
			store["lock/"+req.Key] = owner
			return respond(client.Message{Ok: true, Value: owner})
		case client.MethodLockRelease:
			delete(store, "lock/"+req.Key)
			return respond(client.Message{Ok: true})
		default:
			return codec.StatusMethodNotFound, nil
		}
	}
}

// testConnector dials plain TCP without any tuning
type testConnector struct{}

func (testConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("tcp", endpoint)
}
func (testConnector) GetName() string { return "tcp" }
func (testConnector) UpgradeConnection(net.Conn, common.ClientConfig) error {
	return nil
}

func newTestClient(t *testing.T) *client.Client {
	t.Helper()

	srv, err := transporttest.NewServer(kvHandler())
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	opts := transport.CallOptions{Timeout: 5 * time.Second}
	c := client.New(
		common.ClientConfig{ServerAddr: srv.Addr(), DisableMetrics: true},
		testConnector{},
		serializer.NewJSONSerializer(),
		client.NewKVFacade(opts),
		client.NewLockFacade(opts),
	)
	require.NoError(t, c.Connect())
	t.Cleanup(c.Stop)
	return c
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestFacadeLookup tests that the composition exposes every constructed
// facade by type
func TestFacadeLookup(t *testing.T) {
	c := newTestClient(t)

	kv, ok := client.Facade[*client.KVClient](c)
	require.True(t, ok)
	require.NotNil(t, kv)

	lock, ok := client.Facade[*client.LockClient](c)
	require.True(t, ok)
	require.NotNil(t, lock)

	_, ok = client.Facade[string](c)
	require.False(t, ok)
}

// TestKVFacade tests the key-value methods end to end
func TestKVFacade(t *testing.T) {
	c := newTestClient(t)
	kv, _ := client.Facade[*client.KVClient](c)

	require.NoError(t, kv.Set("greeting", []byte("hello")))

	value, loaded, err := kv.Get("greeting")
	require.NoError(t, err)
	require.True(t, loaded)
	require.Equal(t, []byte("hello"), value)

	has, err := kv.Has("greeting")
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, kv.Delete("greeting"))

	has, err = kv.Has("greeting")
	require.NoError(t, err)
	require.False(t, has)
}

// TestLockFacade tests the lock methods sharing the same transport
func TestLockFacade(t *testing.T) {
	c := newTestClient(t)
	lock, _ := client.Facade[*client.LockClient](c)

	ok, owner, err := lock.Acquire("resource", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, owner)

	// a second acquire must fail while the lock is held
	ok, _, err = lock.Acquire("resource", 0)
	require.NoError(t, err)
	require.False(t, ok)

	released, err := lock.Release("resource", owner)
	require.NoError(t, err)
	require.True(t, released)

	ok, _, err = lock.Acquire("resource", 0)
	require.NoError(t, err)
	require.True(t, ok)
}

// TestUnknownMethod tests that the server side status surfaces as the typed
// client error
func TestUnknownMethod(t *testing.T) {
	srv, err := transporttest.NewServer(func(uint32, []byte) (codec.Status, []byte) {
		return codec.StatusMethodNotFound, nil
	})
	require.NoError(t, err)
	defer srv.Close()

	c := client.New(
		common.ClientConfig{ServerAddr: srv.Addr(), DisableMetrics: true},
		testConnector{},
		serializer.NewJSONSerializer(),
		client.NewKVFacade(transport.CallOptions{Timeout: 5 * time.Second}),
	)
	require.NoError(t, c.Connect())
	defer c.Stop()

	kv, _ := client.Facade[*client.KVClient](c)
	_, err = kv.Has("anything")
	require.ErrorIs(t, err, common.ErrMethodNotFound)
}

// TestClientLifecycle tests the delegated lifecycle operations
func TestClientLifecycle(t *testing.T) {
	c := newTestClient(t)

	require.True(t, c.IsValid())
	require.NotEmpty(t, c.ServerAddress())

	c.Stop()
	require.False(t, c.IsValid())
}
