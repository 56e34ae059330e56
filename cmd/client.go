package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/Conflux-Chain/go-conflux-util/cmd"
	viperUtil "github.com/Conflux-Chain/go-conflux-util/viper"
	"github.com/goccy/go-json"
	"github.com/peerquery/peerquery/client"
	"github.com/peerquery/peerquery/parse"
	"github.com/peerquery/peerquery/pipeline"
	"github.com/peerquery/peerquery/rpc"
	"github.com/peerquery/peerquery/types"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func mustLoadConfig() client.Config {
	config := client.DefaultConfig()

	viperUtil.MustUnmarshalKey("rpc", &config.RPC)
	viperUtil.MustUnmarshalKey("resolver", &config.Resolver)
	viperUtil.MustUnmarshalKey("peer", &config.Peer)
	viperUtil.MustUnmarshalKey("dispatch", &config.Dispatch)
	viperUtil.MustUnmarshalKey("cache", &config.Cache)
	viperUtil.MustUnmarshalKey("index", &config.Index)

	if parser := viper.GetString("parser"); len(parser) > 0 {
		config.Parser = parser
	}

	if viper.IsSet("bpu") {
		var bpu parse.BpuConfig
		viperUtil.MustUnmarshalKey("bpu", &bpu)
		config.Bpu = &bpu
	}

	if viper.IsSet("reorgWindow") {
		config.ReorgWindow = viper.GetInt("reorgWindow")
	}

	return config
}

// mustNewRPCClient creates a node RPC client without peer connection.
func mustNewRPCClient() *rpc.Client {
	config := mustLoadConfig()
	cmd.FatalIfErr(config.RPC.Validate(), "Invalid RPC config")

	node, err := rpc.NewClient(config.RPC)
	cmd.FatalIfErr(err, "Failed to create RPC client")

	return node
}

// mustNewClient creates a client and waits for the peer handshake.
func mustNewClient(ctx context.Context) *client.Client {
	config := mustLoadConfig()

	c, err := client.New(ctx, config)
	cmd.FatalIfErr(err, "Failed to create client")

	select {
	case <-c.Ready():
	case <-c.Done():
		logrus.Fatal("Peer disconnected before handshake completed")
	case <-ctx.Done():
		logrus.WithError(ctx.Err()).Fatal("Failed to wait for peer handshake")
	}

	logrus.WithFields(logrus.Fields{
		"peer":    config.Peer.Address,
		"network": config.Peer.Network,
		"parser":  config.Parser,
	}).Debug("Client ready")

	return c
}

func printJson(v any) {
	data, err := json.MarshalIndent(v, "", "    ")
	cmd.FatalIfErr(err, "Failed to JSON marshal result")
	fmt.Println(string(data))
}

// printStream prints records of the given stream line by line.
func printStream(factory pipeline.Factory, chunkSize int) {
	stream, err := factory(chunkSize)
	cmd.FatalIfErr(err, "Failed to open stream")
	defer stream.Close()

	encoder := json.NewEncoder(os.Stdout)
	for stream.Next() {
		for _, v := range stream.Records() {
			cmd.FatalIfErr(encoder.Encode(v), "Failed to JSON encode record")
		}
	}

	cmd.FatalIfErr(stream.Err(), "Failed to read stream")
}

func printRecords(records []types.Record, factory pipeline.Factory, chunkSize int) {
	if factory != nil {
		printStream(factory, chunkSize)
		return
	}

	for _, v := range records {
		printJson(v)
	}
}
