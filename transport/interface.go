package transport

import (
	"net"

	"github.com/ValentinKolb/aRPC/common"
)

// IClientConnector defines the interface for transport-specific connection
// operations
type IClientConnector interface {
	// Connect establishes a single connection to the given endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g. "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an
	// established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}
