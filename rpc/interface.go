package rpc

import (
	"context"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/peerquery/peerquery/types"
)

// Interface is the node JSON-RPC surface consumed by the client.
type Interface interface {
	// GetBlockHash returns the hash of the main chain block at the given height.
	GetBlockHash(ctx context.Context, height int64) (string, error)

	// GetBlockHeader returns the verbose block header for the given block hash.
	GetBlockHeader(ctx context.Context, hash string) (*btcjson.GetBlockHeaderVerboseResult, error)

	// GetBlockSize returns the serialized size in bytes of the given block.
	GetBlockSize(ctx context.Context, hash string) (int64, error)

	// GetRawBlock returns the serialized block of the given hash.
	GetRawBlock(ctx context.Context, hash string) ([]byte, error)

	// GetMempoolInfo returns the node mempool status.
	GetMempoolInfo(ctx context.Context) (*btcjson.GetMempoolInfoResult, error)

	// GetBlockchainInfo returns the node status.
	GetBlockchainInfo(ctx context.Context) (*btcjson.GetBlockChainInfoResult, error)

	// Call invokes any supported RPC method and returns the raw result.
	Call(ctx context.Context, method string, args ...any) (types.Lazy[any], error)
}

// HeaderIndex persists confirmed headers across restarts.
type HeaderIndex interface {
	Write(headers ...types.Header) error
	GetHeaderByHash(hash string) (*types.Header, error)
	GetHeaderByHeight(height int64) (*types.Header, error)
}
