package dispatch

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"
)

// BlockGuard is consulted before an announced block is requested from the peer.
//
// It returns the block fetched out of band if the block is not safe to relay
// over the peer connection, e.g. exceeds the wire payload limit, or nil to
// request the block from the peer.
type BlockGuard func(ctx context.Context, hash chainhash.Hash) (*wire.MsgBlock, error)

// UseBlockGuard installs the guard for blocks announced to block subscribers.
func (d *Dispatcher) UseBlockGuard(guard BlockGuard) {
	d.exec(func() { d.guard = guard })
}

// requestAnnounced requests announced blocks for block subscribers.
func (d *Dispatcher) requestAnnounced(blocks []*wire.InvVect) {
	d.expireWanted(time.Now())

	if d.guard == nil {
		d.requestBlocks(blocks)
		return
	}

	// guard may block, so it runs off the loop
	guard := d.guard
	for _, iv := range blocks {
		hash := iv.Hash
		d.notify(func() { d.guardAnnounced(guard, hash) }, 0)
	}
}

func (d *Dispatcher) guardAnnounced(guard BlockGuard, hash chainhash.Hash) {
	ctx, cancel := context.WithTimeout(d.ctx, d.config.RequestTimeout)
	defer cancel()

	block, err := guard(ctx, hash)
	if err != nil {
		logrus.WithError(err).WithField("hash", hash).Warn("Failed to check announced block")
		return
	}

	if block == nil {
		d.exec(func() {
			d.requestBlocks([]*wire.InvVect{wire.NewInvVect(wire.InvTypeBlock, &hash)})
		})
		return
	}

	d.exec(func() {
		for _, sub := range d.subs.block {
			handler := sub.handler
			d.notify(func() { handler(block) }, block.SerializeSize())
		}
	})
}

func (d *Dispatcher) requestBlocks(blocks []*wire.InvVect) {
	now := time.Now()

	getdata := wire.NewMsgGetDataSizeHint(uint(len(blocks)))
	for _, iv := range blocks {
		getdata.AddInvVect(iv)
		d.blockWanted[iv.Hash] = now
	}

	if err := d.sender.Send(getdata); err != nil {
		logrus.WithError(err).Warn("Failed to request announced blocks")
	}
}

// expireWanted forgets announced blocks the peer never delivered within the request timeout.
func (d *Dispatcher) expireWanted(now time.Time) {
	for hash, requested := range d.blockWanted {
		if now.Sub(requested) > d.config.RequestTimeout {
			delete(d.blockWanted, hash)

			logrus.WithField("hash", hash).Debug("Announced block request expired")
		}
	}
}
