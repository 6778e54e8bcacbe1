package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/aRPC/cmd/bench"
	"github.com/ValentinKolb/aRPC/cmd/ping"
	"github.com/ValentinKolb/aRPC/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "arpc",
		Short: "asynchronous RPC client transport",
		Long: fmt.Sprintf(`aRPC (v%s)

Diagnostic tooling for the aRPC client transport: measure round trips and
drive load against a live server.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of aRPC",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("aRPC v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(ping.PingCmd)
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, cbor)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute runs RootCmd and exits the process with status 1 on error. The
// child commands and flags are registered in init. This module contains no
// main package that calls Execute.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
