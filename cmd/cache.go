package cmd

import (
	"context"
	"strconv"

	"github.com/Conflux-Chain/go-conflux-util/cmd"
	"github.com/peerquery/peerquery/store/file"
	"github.com/peerquery/peerquery/types"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cacheArgs struct {
		at   int64
		from int64
		to   int64
	}

	invalidateCmd = &cobra.Command{
		Use:   "invalidate",
		Short: "Delete cached blocks at a height, or in range [from, to]",
		Run:   invalidate,
	}

	pruneCmd = &cobra.Command{
		Use:   "prune [count]",
		Short: "Retain the most recent cached blocks and delete the rest",
		Args:  cobra.MaximumNArgs(1),
		Run:   prune,
	}

	indexCmd = &cobra.Command{
		Use:   "index",
		Short: "Fetch confirmed headers via peer and write into the header index",
		Run:   index,
	}
)

func init() {
	invalidateCmd.Flags().Int64Var(&cacheArgs.at, "at", -1, "Block height to invalidate")
	invalidateCmd.Flags().Int64Var(&cacheArgs.from, "from", -1, "Block height to invalidate from (inclusive)")
	invalidateCmd.Flags().Int64Var(&cacheArgs.to, "to", -1, "Block height to invalidate to (inclusive), default to the highest cached")

	indexCmd.Flags().Int64Var(&cacheArgs.from, "from", -1, "Block height to index from, default to resume from the latest indexed")

	rootCmd.AddCommand(invalidateCmd, pruneCmd, indexCmd)
}

// mustOpenCache opens the chain cache without connecting to the node.
func mustOpenCache() *file.Store {
	config := mustLoadConfig()

	cache, err := file.NewStore(config.Cache.Config)
	cmd.FatalIfErr(err, "Failed to open chain cache")

	return cache
}

func invalidate(*cobra.Command, []string) {
	var r types.Range
	if cacheArgs.at >= 0 {
		r = types.RangeAt(cacheArgs.at)
	} else if cacheArgs.to >= 0 {
		r = types.RangeBetween(cacheArgs.from, cacheArgs.to)
	} else if cacheArgs.from >= 0 {
		r = types.RangeFrom(cacheArgs.from)
	}

	cmd.FatalIfErr(r.Validate(), "Invalid range")
	cmd.FatalIfErr(mustOpenCache().Invalidate(r), "Failed to invalidate chain cache")

	logrus.WithField("range", r).Info("Chain cache invalidated")
}

func prune(_ *cobra.Command, args []string) {
	cache := mustOpenCache()

	if len(args) == 0 {
		cmd.FatalIfErr(cache.AutoPrune(), "Failed to prune chain cache")
		return
	}

	count, err := strconv.Atoi(args[0])
	cmd.FatalIfErr(err, "Invalid prune count")
	cmd.FatalIfErr(cache.Prune(count), "Failed to prune chain cache")

	logrus.WithField("retain", count).Info("Chain cache pruned")
}

func index(*cobra.Command, []string) {
	ctx := context.Background()
	c := mustNewClient(ctx)
	defer c.Close()

	indexed, err := c.IndexHeaders(ctx, cacheArgs.from)
	cmd.FatalIfErr(err, "Failed to index headers")

	logrus.WithField("indexed", indexed).Info("Header index updated")
}
