// Package util provides the shared flag and environment handling of the
// arpc diagnostic commands
package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/aRPC/codec"
	"github.com/ValentinKolb/aRPC/common"
	"github.com/ValentinKolb/aRPC/serializer"
	"github.com/ValentinKolb/aRPC/transport"
	"github.com/ValentinKolb/aRPC/transport/tcp"
	"github.com/ValentinKolb/aRPC/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "server-addr"
	cmd.PersistentFlags().String(key, "localhost:9092", WrapString("The address of the RPC server"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The per request timeout in seconds"))

	key = "memory-budget"
	cmd.PersistentFlags().Int64(key, 0, WrapString("The admission ceiling for in-flight payload bytes (0 = default)"))

	key = "compression-min-bytes"
	cmd.PersistentFlags().Int(key, 1024, WrapString("Compress payloads of at least this many bytes (requires --compression)"))

	key = "compression"
	cmd.PersistentFlags().Bool(key, false, WrapString("Whether to compress payloads with zstd"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket write buffer (in KB)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket read buffer (in KB)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("arpc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() common.ClientConfig {
	return common.ClientConfig{
		ServerAddr:        viper.GetString("server-addr"),
		MemoryBudgetBytes: viper.GetInt64("memory-budget"),
		Socket: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCP: common.TCPConf{
			TCPNoDelay: viper.GetBool("transport-tcp-nodelay"),
		},
	}
}

// GetCallOptions reads the per call options from viper
func GetCallOptions() transport.CallOptions {
	opts := transport.CallOptions{
		Timeout: time.Duration(viper.GetInt("timeout")) * time.Second,
	}
	if viper.GetBool("compression") {
		opts.Compression = codec.CompressionZstd
		opts.MinCompressionBytes = viper.GetInt("compression-min-bytes")
	}
	return opts
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "cbor":
		return serializer.NewCBORSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetConnector creates a connector based on configuration
func GetConnector() (transport.IClientConnector, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewConnector(), nil
	case "unix":
		return unix.NewConnector(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
