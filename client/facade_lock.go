package client

import (
	"github.com/ValentinKolb/aRPC/transport"
)

// LockClient is the protocol facade for a remote lock service
type LockClient struct {
	t    *transport.Transport
	opts transport.CallOptions
}

// NewLockFacade returns the constructor for a LockClient using opts for
// every call
func NewLockFacade(opts transport.CallOptions) FacadeConstructor {
	return func(t *transport.Transport) any {
		return &LockClient{t: t, opts: opts}
	}
}

// --------------------------------------------------------------------------
// Typed Methods
// --------------------------------------------------------------------------

// Acquire tries to take the lock for key. With deleteIn > 0 the lock is
// released automatically by the server after the given number of seconds.
// On success the returned owner id is needed to release the lock.
func (c *LockClient) Acquire(key string, deleteIn uint64) (ok bool, ownerId []byte, err error) {
	resp, err := invoke(c.t, NewAcquireRequest(key, deleteIn), MethodLockAcquire, c.opts)
	if err != nil {
		return false, nil, err
	}
	return resp.Ok, resp.Value, nil
}

// Release gives the lock for key back
func (c *LockClient) Release(key string, ownerId []byte) (ok bool, err error) {
	resp, err := invoke(c.t, NewReleaseRequest(key, ownerId), MethodLockRelease, c.opts)
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}
