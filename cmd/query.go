package cmd

import (
	"context"
	"strings"

	"github.com/Conflux-Chain/go-conflux-util/cmd"
	"github.com/goccy/go-json"
	"github.com/peerquery/peerquery/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	queryArgs struct {
		chunk int
		at    string
		from  string
		to    string
	}

	blockCmd = &cobra.Command{
		Use:   "block <height|hash>",
		Short: "Get block header and parsed transactions",
		Args:  cobra.ExactArgs(1),
		Run:   getBlock,
	}

	headerCmd = &cobra.Command{
		Use:   "header",
		Short: "Get header at a block, or headers in range [from, to]",
		Run:   getHeaders,
	}

	mempoolCmd = &cobra.Command{
		Use:   "mempool",
		Short: "Get a snapshot of the peer mempool",
		Run:   getMempool,
	}

	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Get node blockchain info",
		Run:   getInfo,
	}

	rpcCmd = &cobra.Command{
		Use:   "rpc <method> [args...]",
		Short: "Call node JSON-RPC method, where args are decoded as JSON if possible",
		Args:  cobra.MinimumNArgs(1),
		Run:   callRPC,
	}
)

func init() {
	blockCmd.Flags().IntVar(&queryArgs.chunk, "chunk", 0, "Number of records per batch when reading from chain cache")
	blockCmd.Flags().Int("retain", 0, "Number of cached blocks to retain, 0 for unlimited")
	viper.BindPFlag("cache.retain", blockCmd.Flags().Lookup("retain"))

	headerCmd.Flags().StringVar(&queryArgs.at, "at", "", "Block height or hash")
	headerCmd.Flags().StringVar(&queryArgs.from, "from", "", "Block height or hash to query from (inclusive)")
	headerCmd.Flags().StringVar(&queryArgs.to, "to", "", "Block height or hash to query to (inclusive), default to peer tip")

	mempoolCmd.Flags().IntVar(&queryArgs.chunk, "chunk", 0, "Number of records per batch when reading from chain cache")

	rootCmd.AddCommand(blockCmd, headerCmd, mempoolCmd, infoCmd, rpcCmd)
}

func getBlock(_ *cobra.Command, args []string) {
	id, err := types.ParseBlockID(args[0])
	cmd.FatalIfErr(err, "Invalid block id")

	ctx := context.Background()
	c := mustNewClient(ctx)
	defer c.Close()

	block, err := c.GetBlock(ctx, id)
	cmd.FatalIfErr(err, "Failed to get block")

	printJson(block.Header)
	printRecords(block.Tx, block.Stream, queryArgs.chunk)
}

func parseOptionalBlockID(s string) *types.BlockID {
	if len(s) == 0 {
		return nil
	}

	id, err := types.ParseBlockID(s)
	cmd.FatalIfErr(err, "Invalid block id")

	return &id
}

func getHeaders(*cobra.Command, []string) {
	query := types.HeaderQuery{
		At:   parseOptionalBlockID(queryArgs.at),
		From: parseOptionalBlockID(queryArgs.from),
		To:   parseOptionalBlockID(queryArgs.to),
	}
	cmd.FatalIfErr(query.Validate(), "Invalid header query")

	ctx := context.Background()
	c := mustNewClient(ctx)
	defer c.Close()

	headers, err := c.GetHeaders(ctx, query)
	cmd.FatalIfErr(err, "Failed to get headers")

	printJson(headers)
}

func getMempool(*cobra.Command, []string) {
	ctx := context.Background()
	c := mustNewClient(ctx)
	defer c.Close()

	mempool, err := c.GetMempool(ctx)
	cmd.FatalIfErr(err, "Failed to get mempool")

	printRecords(mempool.Tx, mempool.Stream, queryArgs.chunk)
}

func getInfo(*cobra.Command, []string) {
	info, err := mustNewRPCClient().GetBlockchainInfo(context.Background())
	cmd.FatalIfErr(err, "Failed to get blockchain info")

	printJson(info)
}

func callRPC(_ *cobra.Command, args []string) {
	params := make([]any, 0, len(args)-1)
	for _, v := range args[1:] {
		var param any
		if err := json.Unmarshal([]byte(v), &param); err != nil {
			param = strings.TrimSpace(v)
		}

		params = append(params, param)
	}

	result, err := mustNewRPCClient().Call(context.Background(), args[0], params...)
	cmd.FatalIfErr(err, "Failed to call RPC")

	printJson(result)
}
