package client

import (
	"bytes"
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// fetchOversized fetches the block via RPC if its size exceeds the wire payload
// limit, on which the peer connection would be dropped. It returns nil if the
// block could be requested from the peer.
func (c *Client) fetchOversized(ctx context.Context, hash chainhash.Hash) (*wire.MsgBlock, error) {
	size, err := c.node.GetBlockSize(ctx, hash.String())
	if err != nil {
		return nil, errors.WithMessagef(err, "Failed to get size of block %v", hash)
	}

	if size <= wire.MaxBlockPayload {
		return nil, nil
	}

	logrus.WithFields(logrus.Fields{
		"hash": hash,
		"size": size,
	}).Info("Block exceeds wire payload limit, fetch via RPC")

	raw, err := c.node.GetRawBlock(ctx, hash.String())
	if err != nil {
		return nil, errors.WithMessagef(err, "Failed to get raw block %v", hash)
	}

	var block wire.MsgBlock
	if err = block.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, errors.WithMessagef(err, "Failed to decode raw block %v", hash)
	}

	if actual := block.BlockHash(); actual != hash {
		return nil, errors.Errorf("Block hash mismatch, expected %v got %v", hash, actual)
	}

	return &block, nil
}
