// Package unix provides the unix domain socket connector for the RPC
// client transport. Useful when client and server share a host and the
// TCP stack overhead is unwanted.
package unix
