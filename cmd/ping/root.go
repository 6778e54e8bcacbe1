// Package ping implements the arpc ping command
package ping

import (
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/aRPC/client"
	"github.com/ValentinKolb/aRPC/cmd/util"
	"github.com/spf13/cobra"
)

// PingCmd measures a single request round trip against a live server
var PingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure a single round trip to the server",
	PreRun: func(cmd *cobra.Command, args []string) {
		util.InitClientConfig()
		if err := util.BindCommandFlags(cmd); err != nil {
			fmt.Printf("Error binding flags: %v\n", err)
			os.Exit(1)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		ser, err := util.GetSerializer()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		connector, err := util.GetConnector()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		conf := util.GetClientConfig()
		opts := util.GetCallOptions()

		c := client.New(conf, connector, ser, client.NewKVFacade(opts))
		if err := c.Connect(); err != nil {
			fmt.Printf("Error connecting to %s: %v\n", conf.ServerAddr, err)
			os.Exit(1)
		}
		defer c.Stop()

		kv, _ := client.Facade[*client.KVClient](c)

		started := time.Now()
		if _, err := kv.Has("ping"); err != nil {
			fmt.Printf("Error pinging %s: %v\n", conf.ServerAddr, err)
			os.Exit(1)
		}
		fmt.Printf("round trip to %s: %v\n", conf.ServerAddr, time.Since(started))
	},
}

func init() {
	util.SetupRPCClientFlags(PingCmd)
}
