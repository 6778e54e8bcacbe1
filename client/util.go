package client

import (
	"fmt"

	"github.com/ValentinKolb/aRPC/transport"
)

// invoke is the helper shared by all facades. It sends the request under
// the given method id, awaits the typed response and surfaces remote
// application errors carried inside the message.
func invoke(t *transport.Transport, req *Message, methodID uint32, opts transport.CallOptions) (*Message, error) {
	ctx, err := transport.SendTyped[*Message, Message](t, req, methodID, opts)
	if err != nil {
		return nil, err
	}

	resp := &ctx.Data

	// Check if the response carries an application error
	if resp.Err != "" {
		return nil, fmt.Errorf("remote error: %s", resp.Err)
	}

	return resp, nil
}
