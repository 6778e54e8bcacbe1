package client

import (
	"github.com/ValentinKolb/aRPC/common"
	"github.com/ValentinKolb/aRPC/transport"
)

// KVClient is the protocol facade for a remote key-value service. All
// methods issue one typed call over the shared transport.
type KVClient struct {
	t    *transport.Transport
	opts transport.CallOptions
}

// NewKVFacade returns the constructor for a KVClient using opts for every
// call
func NewKVFacade(opts transport.CallOptions) FacadeConstructor {
	return func(t *transport.Transport) any {
		return &KVClient{t: t, opts: opts}
	}
}

// Probe exposes the metrics probe of the underlying transport
func (c *KVClient) Probe() *common.ClientProbe {
	return c.t.Probe()
}

// --------------------------------------------------------------------------
// Typed Methods
// --------------------------------------------------------------------------

// Set stores a key-value pair
func (c *KVClient) Set(key string, value []byte) error {
	_, err := invoke(c.t, NewSetRequest(key, value), MethodKVSet, c.opts)
	return err
}

// Get loads the value of a key
func (c *KVClient) Get(key string) (value []byte, loaded bool, err error) {
	resp, err := invoke(c.t, NewGetRequest(key), MethodKVGet, c.opts)
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

// Has checks whether a key exists
func (c *KVClient) Has(key string) (loaded bool, err error) {
	resp, err := invoke(c.t, NewHasRequest(key), MethodKVHas, c.opts)
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

// Delete removes a key
func (c *KVClient) Delete(key string) error {
	_, err := invoke(c.t, NewDeleteRequest(key), MethodKVDelete, c.opts)
	return err
}
