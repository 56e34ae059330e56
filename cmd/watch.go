package cmd

import (
	"context"
	"sync"

	"github.com/Conflux-Chain/go-conflux-util/cmd"
	"github.com/peerquery/peerquery/client"
	"github.com/peerquery/peerquery/types"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	watchArgs struct {
		blocks  bool
		mempool bool
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Print new blocks and mempool transactions announced by peer",
		Run:   watch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchArgs.blocks, "blocks", true, "Watch new blocks")
	watchCmd.Flags().BoolVar(&watchArgs.mempool, "mempool", true, "Watch new mempool transactions")

	rootCmd.AddCommand(watchCmd)
}

func watch(*cobra.Command, []string) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	c := mustNewClient(ctx)

	if watchArgs.blocks {
		c.OnBlock(func(block *client.Block) {
			printJson(block.Header)
			printRecords(block.Tx, block.Stream, 0)
		})
	}

	if watchArgs.mempool {
		c.OnMempool(func(record types.Record) {
			printJson(record)
		})
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		select {
		case <-ctx.Done():
		case <-c.Done():
			logrus.Warn("Peer disconnected, press Ctrl+C to exit")
		}

		<-ctx.Done()
		c.Close()
	}()

	// wait for terminate signal to shutdown gracefully
	cmd.GracefulShutdown(&wg, cancel)
}
