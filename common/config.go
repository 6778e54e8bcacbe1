package common

import (
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	// DefaultMemoryBudgetBytes bounds the total serialized payload bytes
	// that may be in flight on one transport at any time.
	DefaultMemoryBudgetBytes = 64 * 1024 * 1024

	// DefaultReadBufferSize is the size of the buffered input stream.
	DefaultReadBufferSize = 512 * 1024
)

// --------------------------------------------------------------------------
// RPC client configuration structs
// --------------------------------------------------------------------------

// SocketConf holds socket buffer settings shared by all stream transports
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific settings, ignored by the unix transport
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// TLSConf holds the optional TLS settings of a connection. If Credentials
// is nil the connection stays in plaintext.
type TLSConf struct {
	// Credentials enables TLS when set
	Credentials *tls.Config
	// SNIHostname overrides the server name indication sent during the
	// handshake. Only used when Credentials is set.
	SNIHostname string
}

// ClientConfig holds all configuration parameters for a single transport.
// One config describes exactly one connection to one server.
type ClientConfig struct {
	// ServerAddr is the endpoint of the server (host:port or socket path)
	ServerAddr string

	// TLS settings (plaintext if zero value)
	TLS TLSConf

	// MemoryBudgetBytes is the admission ceiling for in-flight payloads.
	// Zero selects DefaultMemoryBudgetBytes.
	MemoryBudgetBytes int64

	// MaxPayloadBytes rejects single payloads larger than this at
	// admission. Zero disables the check.
	MaxPayloadBytes int64

	// DisableMetrics suppresses probe registration
	DisableMetrics bool

	// Socket tuning
	Socket SocketConf
	TCP    TCPConf
}

// MemoryBudget returns the configured admission ceiling with the default
// applied
func (c *ClientConfig) MemoryBudget() int64 {
	if c.MemoryBudgetBytes <= 0 {
		return DefaultMemoryBudgetBytes
	}
	return c.MemoryBudgetBytes
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General client settings
	addSection("Client Configuration")
	addField("Server Address", c.ServerAddr)
	addField("TLS", strconv.FormatBool(c.TLS.Credentials != nil))
	if c.TLS.Credentials != nil && c.TLS.SNIHostname != "" {
		addField("TLS SNI Hostname", c.TLS.SNIHostname)
	}
	addField("Memory Budget", fmt.Sprintf("%d bytes", c.MemoryBudget()))
	if c.MaxPayloadBytes > 0 {
		addField("Max Payload", fmt.Sprintf("%d bytes", c.MaxPayloadBytes))
	}
	addField("Metrics", strconv.FormatBool(!c.DisableMetrics))

	// Socket settings
	addSection("Socket")
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Socket.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Socket.ReadBufferSize))
	addField("TCP NoDelay", strconv.FormatBool(c.TCP.TCPNoDelay))
	addField("TCP KeepAlive", fmt.Sprintf("%d sec", c.TCP.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.TCP.TCPLingerSec))

	return sb.String()
}
