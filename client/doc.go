// Package client composes one transport with any number of protocol
// facades. The client owns the transport and exposes only lifecycle
// operations (Connect, Stop, Shutdown, IsValid, ServerAddress); the typed
// RPC methods live on the facades, which borrow the transport and are
// constructed after it. Facades must not outlive the client.
//
// Two reference facades are included: KVClient for a remote key-value
// service and LockClient for a remote lock service. They speak the demo
// Message protocol defined in proto.go and double as the vocabulary of the
// test suite and the diagnostic CLI.
package client
