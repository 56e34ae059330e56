package cmd

import (
	"github.com/Conflux-Chain/go-conflux-util/config"
	"github.com/Conflux-Chain/go-conflux-util/log"
	"github.com/peerquery/peerquery/parse"
	"github.com/peerquery/peerquery/peer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "peerquery",
	Short: "Query blocks, headers and mempool of a Bitcoin SV node over p2p and JSON-RPC",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(func() {
		config.MustInit("PEERQUERY")
	})

	log.BindFlags(rootCmd)

	rootCmd.PersistentFlags().String("peer", peer.DefaultConfig().Address, "Peer address")
	viper.BindPFlag("peer.address", rootCmd.PersistentFlags().Lookup("peer"))

	rootCmd.PersistentFlags().String("network", peer.DefaultConfig().Network, "Peer network: mainnet, testnet or regtest")
	viper.BindPFlag("peer.network", rootCmd.PersistentFlags().Lookup("network"))

	rootCmd.PersistentFlags().String("parser", parse.DefaultStrategy, "Parse strategy: hex, txo, bob, or bpu with split rules in the bpu config section")
	viper.BindPFlag("parser", rootCmd.PersistentFlags().Lookup("parser"))

	rootCmd.PersistentFlags().Bool("cache", false, "Enable chain cache of raw transactions")
	viper.BindPFlag("cache.enabled", rootCmd.PersistentFlags().Lookup("cache"))
}

// Execute is the command line entrypoint.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("Failed to execute command")
	}
}
