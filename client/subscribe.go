package client

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/peerquery/peerquery/types"
	"github.com/sirupsen/logrus"
)

// OnBlock subscribes to blocks announced by the peer, and returns a func to unsubscribe.
//
// Height of an announced block is resolved via RPC, since a block message does
// not carry its height.
func (c *Client) OnBlock(handler func(*Block)) func() {
	return c.dispatcher.SubscribeBlocks(func(msg *wire.MsgBlock) {
		hash := msg.BlockHash().String()

		header, err := c.resolver.Resolve(c.ctx, types.BlockIDWithHash(hash))
		if err != nil {
			logrus.WithError(err).WithField("hash", hash).Warn("Failed to resolve announced block")
			return
		}

		// no rewrite if already tracked and cached, e.g. for another subscriber
		block, ok := c.cachedBlock(header)
		if c.trackAnnounced(header) || !ok {
			block, err = c.newBlock(header, msg)
		}

		if err != nil {
			logrus.WithError(err).WithField("hash", hash).Warn("Failed to handle announced block")
			return
		}

		handler(block)
	})
}

// OnMempool subscribes to every newly announced mempool transaction, and
// returns a func to unsubscribe.
func (c *Client) OnMempool(handler func(types.Record)) func() {
	return c.dispatcher.SubscribeMempool(func(tx *wire.MsgTx) {
		record, ok, err := c.pipeline().Apply(tx, nil)
		if err != nil {
			logrus.WithError(err).WithField("hash", tx.TxHash()).Warn("Failed to parse mempool tx")
			return
		}

		if ok {
			handler(record)
		}
	})
}

// OnReady subscribes to the peer handshake completion, which fires immediately
// if already completed.
func (c *Client) OnReady(handler func()) func() {
	return c.dispatcher.SubscribeReady(handler)
}
