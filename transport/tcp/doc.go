// Package tcp provides the TCP connector for the RPC client transport.
// It dials plain TCP connections and applies the socket tuning from the
// client configuration (NoDelay, buffer sizes, keep-alive, linger).
package tcp
