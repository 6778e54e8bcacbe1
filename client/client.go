package client

import (
	"github.com/ValentinKolb/aRPC/common"
	"github.com/ValentinKolb/aRPC/serializer"
	"github.com/ValentinKolb/aRPC/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("client")

// --------------------------------------------------------------------------
// Client Composition
// --------------------------------------------------------------------------

// FacadeConstructor builds one protocol facade over a borrowed transport.
// Constructors run after the transport exists; the facade must not keep the
// transport beyond the client's lifetime.
type FacadeConstructor func(t *transport.Transport) any

// Client parameterizes a single owned transport with any number of
// protocol facades. It exposes only lifecycle operations - the typed RPC
// methods live on the facades.
type Client struct {
	transport *transport.Transport
	facades   []any
}

// New creates a client over the given connector and serializer and
// constructs every facade with a reference to the shared transport
func New(cfg common.ClientConfig, connector transport.IClientConnector, ser serializer.IRPCSerializer, ctors ...FacadeConstructor) *Client {
	t := transport.NewTransport(cfg, connector, ser)
	c := &Client{transport: t}
	for _, ctor := range ctors {
		c.facades = append(c.facades, ctor(t))
	}
	return c
}

// Facade returns the first facade of type F
func Facade[F any](c *Client) (F, bool) {
	for _, f := range c.facades {
		if typed, ok := f.(F); ok {
			return typed, true
		}
	}
	var zero F
	return zero, false
}

// --------------------------------------------------------------------------
// Lifecycle (delegated to the transport)
// --------------------------------------------------------------------------

// Connect establishes the connection and starts the response read loop
func (c *Client) Connect() error {
	return c.transport.Connect()
}

// Stop rejects new work, fails pending requests with ErrShuttingDown,
// closes the socket and waits for in-flight operations to finish
func (c *Client) Stop() {
	c.transport.Stop()
}

// Shutdown forcibly aborts the socket
func (c *Client) Shutdown() {
	c.transport.Shutdown()
}

// IsValid reports whether the connection is usable
func (c *Client) IsValid() bool {
	return c.transport.IsValid()
}

// ServerAddress returns the configured endpoint
func (c *Client) ServerAddress() string {
	return c.transport.ServerAddress()
}
