// Package transport implements the asynchronous, multiplexed RPC client
// transport: a single connection shared by many concurrent callers.
//
// Each call is serialized, admitted under a memory budget, assigned a
// monotonically increasing sequence and correlation id, and written to the
// wire in sequence order by a single-flight dispatcher. A read loop decodes
// response headers as they arrive and resolves the matching completion slot;
// responses for unknown correlation ids (stale after a local timeout) are
// skipped and counted.
//
// Every call completes exactly once - with its response, with a timeout, or
// with a transport failure. Stop closes the dispatch gate to new work, fails
// pending calls, closes the socket and then waits for in-flight work to
// drain out of the gate; Shutdown aborts the socket for immediate unblock.
//
// The concrete medium (tcp, unix) is plugged in through IClientConnector,
// see the tcp and unix subpackages.
package transport
