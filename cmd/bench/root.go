// Package bench implements the arpc bench command
package bench

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/aRPC/async"
	"github.com/ValentinKolb/aRPC/client"
	"github.com/ValentinKolb/aRPC/cmd/util"
	"github.com/ValentinKolb/aRPC/common"
	"github.com/ValentinKolb/aRPC/serializer"
	"github.com/ValentinKolb/aRPC/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// BenchCmd drives concurrent load against a live server and prints the
// latency distribution of the transport probe
var BenchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Issue concurrent requests and print latency statistics",
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

		if err := run(conf, connector, ser, opts); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	util.SetupRPCClientFlags(BenchCmd)
	BenchCmd.Flags().Int("requests", 1000, util.WrapString("Total number of requests to issue"))
	BenchCmd.Flags().Int("payload-size", 128, util.WrapString("Payload size in bytes of every request"))
}

func run(conf common.ClientConfig, connector transport.IClientConnector, ser serializer.IRPCSerializer, opts transport.CallOptions) error {
	c := client.New(conf, connector, ser, client.NewKVFacade(opts))
	if err := c.Connect(); err != nil {
		return fmt.Errorf("connecting to %s: %w", conf.ServerAddr, err)
	}
	defer c.Stop()

	kv, _ := client.Facade[*client.KVClient](c)

	requests := viper.GetInt("requests")
	payload := make([]byte, viper.GetInt("payload-size"))
	if _, err := rand.Read(payload); err != nil {
		return err
	}

	keys := make([]string, requests)
	for i := range keys {
		keys[i] = fmt.Sprintf("bench-%d", i)
	}

	started := time.Now()
	_, err := async.ParallelTransform(context.Background(), keys,
		func(_ context.Context, key string) (struct{}, error) {
			return struct{}{}, kv.Set(key, payload)
		})
	if err != nil {
		return err
	}
	elapsed := time.Since(started)

	// latency distribution comes from the transport probe
	// (the probe is reachable through the facade's transport)
	fmt.Printf("%d requests in %v (%.0f req/s)\n",
		requests, elapsed, float64(requests)/elapsed.Seconds())
	printLatency(kv)
	return nil
}

func printLatency(kv *client.KVClient) {
	lat := kv.Probe().Latency()
	fmt.Printf("latency mean=%v p95=%v p99=%v max=%v\n",
		time.Duration(lat.Mean()),
		time.Duration(lat.Percentile(0.95)),
		time.Duration(lat.Percentile(0.99)),
		time.Duration(lat.Max()))
}
