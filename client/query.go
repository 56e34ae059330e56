package client

import (
	"context"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/peerquery/peerquery/dispatch"
	"github.com/peerquery/peerquery/pipeline"
	"github.com/peerquery/peerquery/store/file"
	"github.com/peerquery/peerquery/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Block is a block with parsed transactions.
//
// If chain cache enabled, transactions are persisted and available via Stream,
// otherwise parsed eagerly into Tx.
type Block struct {
	Header types.Header     `json:"header"`
	Tx     []types.Record   `json:"tx,omitempty"`
	Stream pipeline.Factory `json:"-"`
}

// Mempool is a snapshot of the peer mempool with parsed transactions.
type Mempool struct {
	Tx     []types.Record   `json:"tx,omitempty"`
	Stream pipeline.Factory `json:"-"`
}

// GetBlock returns the block of the given id, from chain cache if available.
func (c *Client) GetBlock(ctx context.Context, id types.BlockID) (*Block, error) {
	header, err := c.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	if block, ok := c.cachedBlock(header); ok {
		logrus.WithField("height", header.Height).Debug("Block served from chain cache")
		return block, nil
	}

	hash, err := header.BlockHash()
	if err != nil {
		return nil, errors.WithMessagef(err, "Invalid block hash %v", header.Hash)
	}

	msg, err := c.fetchOversized(ctx, *hash)
	if err != nil {
		return nil, err
	}

	if msg == nil {
		if msg, err = c.dispatcher.GetBlock(ctx, *hash); err != nil {
			return nil, errors.WithMessagef(err, "Failed to get block %v", header.Hash)
		}
	}

	return c.newBlock(header, msg)
}

// cachedBlock returns the block of the given header if available in chain cache.
func (c *Client) cachedBlock(header types.Header) (*Block, bool) {
	key := file.BlockKey(header.Height)
	if c.cache == nil || !c.cache.Ready(key) {
		return nil, false
	}

	return &Block{
		Header: header,
		Stream: c.pipeline().Factory(c.opener(key), header.Meta()),
	}, true
}

// newBlock parses or caches transactions of the given block, whose height is
// carried from the resolved header.
func (c *Client) newBlock(header types.Header, msg *wire.MsgBlock) (*Block, error) {
	if c.cache == nil {
		records, err := c.pipeline().Run(msg.Transactions, header.Meta())
		if err != nil {
			return nil, err
		}

		return &Block{Header: header, Tx: records}, nil
	}

	key := file.BlockKey(header.Height)
	if err := c.cache.Write(key, msg.Transactions); err != nil {
		return nil, err
	}

	if err := c.cache.AutoPrune(); err != nil {
		logrus.WithError(err).Warn("Failed to prune chain cache")
	}

	return &Block{
		Header: header,
		Stream: c.pipeline().Factory(c.opener(key), header.Meta()),
	}, nil
}

func (c *Client) opener(key string) pipeline.Opener {
	return func() (io.ReadCloser, error) {
		return c.cache.Open(key)
	}
}

// GetMempool returns a snapshot of the peer mempool, which overwrites the
// cached snapshot if chain cache enabled.
//
// The peer does not respond to an empty mempool, so the node mempool is
// checked via RPC first.
func (c *Client) GetMempool(ctx context.Context) (*Mempool, error) {
	info, err := c.node.GetMempoolInfo(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to get mempool info")
	}

	var txs []*wire.MsgTx
	if info.Size > 0 {
		if txs, err = c.dispatcher.GetMempool(ctx); err != nil {
			return nil, errors.WithMessage(err, "Failed to get mempool")
		}
	}

	if c.cache == nil {
		records, err := c.pipeline().Run(txs, nil)
		if err != nil {
			return nil, err
		}

		return &Mempool{Tx: records}, nil
	}

	if err = c.cache.Write(types.MempoolKey, txs); err != nil {
		return nil, err
	}

	return &Mempool{
		Stream: c.pipeline().Factory(c.opener(types.MempoolKey), nil),
	}, nil
}

// GetHeaders returns the header at the given block, or the contiguous headers
// from..to inclusive, where to defaults to the peer tip.
func (c *Client) GetHeaders(ctx context.Context, query types.HeaderQuery) ([]types.Header, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	if query.At != nil {
		header, err := c.resolver.Resolve(ctx, *query.At)
		if err != nil {
			return nil, err
		}

		return []types.Header{header}, nil
	}

	// locate from the previous hash so that from is included
	prev, from, hasPrev, err := c.resolver.Previous(ctx, *query.From)
	if err != nil {
		return nil, err
	}

	var stop *chainhash.Hash
	if query.To != nil {
		to, err := c.resolver.Resolve(ctx, *query.To)
		if err != nil {
			return nil, err
		}

		if to.Height < from.Height {
			return nil, errors.Errorf("Invalid header range, from = %v, to = %v", from.Height, to.Height)
		}

		if stop, err = to.BlockHash(); err != nil {
			return nil, err
		}
	}

	paginator, err := c.newHeaderPaginator(prev, from, hasPrev, stop)
	if err != nil {
		return nil, err
	}

	headers, err := c.dispatcher.GetHeaders(ctx, paginator)
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to get headers")
	}

	return c.assignHeights(ctx, headers, from)
}

func (c *Client) newHeaderPaginator(prev string, from types.Header, hasPrev bool, stop *chainhash.Hash) (*dispatch.HeaderPaginator, error) {
	if hasPrev {
		locator, err := chainhash.NewHashFromStr(prev)
		if err != nil {
			return nil, errors.WithMessagef(err, "Invalid previous hash %v", prev)
		}

		return dispatch.NewHeaderPaginator(*locator, stop), nil
	}

	// genesis has no predecessor, so seed it and locate from itself
	genesis := c.conn.Params().GenesisBlock.Header
	hash := genesis.BlockHash()
	if hash.String() != from.Hash {
		return nil, errors.Errorf("Genesis mismatch between peer network and node, peer = %v, node = %v", hash, from.Hash)
	}

	return dispatch.NewHeaderPaginator(hash, stop, &genesis), nil
}

// assignHeights assigns heights by offset from the first header.
func (c *Client) assignHeights(ctx context.Context, headers []wire.BlockHeader, from types.Header) ([]types.Header, error) {
	if len(headers) == 0 {
		return []types.Header{}, nil
	}

	base := from.Height
	if first := headers[0].BlockHash(); first.String() != from.Hash {
		height, err := c.resolver.Height(ctx, first.String())
		if err != nil {
			return nil, errors.WithMessage(err, "Failed to resolve base height")
		}

		base = height
	}

	result := make([]types.Header, 0, len(headers))
	for i := range headers {
		result = append(result, types.NewHeader(&headers[i], base+int64(i)))
	}

	return result, nil
}

// Get is a string keyed entrypoint over the typed queries, i.e. block, header,
// mempool, info and rpc.
func (c *Client) Get(ctx context.Context, kind string, args ...any) (any, error) {
	switch kind {
	case "block":
		if len(args) == 0 {
			return nil, errors.New("block id required")
		}

		id, err := toBlockID(args[0])
		if err != nil {
			return nil, err
		}

		return c.GetBlock(ctx, id)
	case "header":
		if len(args) == 0 {
			return nil, errors.New("header query required")
		}

		query, ok := args[0].(types.HeaderQuery)
		if !ok {
			return nil, errors.Errorf("Invalid header query type %T", args[0])
		}

		return c.GetHeaders(ctx, query)
	case "mempool":
		return c.GetMempool(ctx)
	case "info":
		return c.GetInfo(ctx)
	case "rpc":
		if len(args) == 0 {
			return nil, errors.New("rpc method required")
		}

		method, ok := args[0].(string)
		if !ok {
			return nil, errors.Errorf("Invalid rpc method type %T", args[0])
		}

		return c.CallRPC(ctx, method, args[1:]...)
	default:
		return nil, errors.WithMessagef(ErrUnsupportedOperation, "get %v", kind)
	}
}

func toBlockID(v any) (types.BlockID, error) {
	switch id := v.(type) {
	case types.BlockID:
		return id, nil
	case types.Header:
		return types.BlockIDWithHeader(id), nil
	case int:
		return types.BlockIDWithHeight(int64(id)), nil
	case int64:
		return types.BlockIDWithHeight(id), nil
	case string:
		return types.ParseBlockID(id)
	default:
		return types.BlockID{}, errors.Errorf("Invalid block id type %T", v)
	}
}
