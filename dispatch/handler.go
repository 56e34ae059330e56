package dispatch

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// post enqueues a peer event, and blocks the peer input if the loop falls behind.
func (d *Dispatcher) post(fn func()) {
	d.exec(fn)
}

func (d *Dispatcher) OnReady() {
	d.post(d.handleReady)
}

func (d *Dispatcher) OnHeaders(msg *wire.MsgHeaders) {
	d.post(func() { d.handleHeaders(msg) })
}

func (d *Dispatcher) OnInv(msg *wire.MsgInv) {
	d.post(func() { d.handleInv(msg) })
}

func (d *Dispatcher) OnTx(msg *wire.MsgTx) {
	d.post(func() { d.handleTx(msg) })
}

func (d *Dispatcher) OnBlock(msg *wire.MsgBlock) {
	d.post(func() { d.handleBlock(msg) })
}

func (d *Dispatcher) OnNotFound(msg *wire.MsgNotFound) {
	d.post(func() { d.handleNotFound(msg) })
}

func (d *Dispatcher) OnDisconnect(err error) {
	d.post(func() {
		logrus.WithError(err).Info("Dispatcher stopped serving due to peer disconnected")
		d.markDown(ErrConnectionClosed)
		d.reject(ErrConnectionClosed)
	})
}

func (d *Dispatcher) handleReady() {
	if d.ready {
		return
	}

	d.ready = true
	close(d.readyCh)

	for _, sub := range d.subs.ready {
		d.notify(sub.handler, 0)
	}
}

func (d *Dispatcher) handleHeaders(msg *wire.MsgHeaders) {
	req := d.request
	if req == nil || req.Kind != KindHeader {
		d.violation(msg.Command(), logrus.Fields{"headers": len(msg.Headers)})
		return
	}

	step, next := req.headers.Handle(msg)

	logrus.WithFields(logrus.Fields{
		"headers": len(msg.Headers),
		"step":    step,
	}).Debug("Headers batch handled")

	switch step {
	case StepContinue:
		if err := d.sender.Send(next); err != nil {
			d.complete(nil, err)
		}
	case StepComplete:
		d.complete(req.headers.Headers(), nil)
	default:
		d.violation(msg.Command(), logrus.Fields{"headers": len(msg.Headers)})
	}
}

func (d *Dispatcher) handleInv(msg *wire.MsgInv) {
	var txs, blocks []*wire.InvVect
	for _, iv := range msg.InvList {
		switch iv.Type {
		case wire.InvTypeTx:
			txs = append(txs, iv)
		case wire.InvTypeBlock:
			blocks = append(blocks, iv)
		}
	}

	if len(blocks) > 0 && len(d.subs.block) > 0 {
		d.requestAnnounced(blocks)
	}

	if len(txs) == 0 {
		return
	}

	// the most recent announcement fully replaces the live expectation set
	hashes := make([]chainhash.Hash, 0, len(txs))
	d.live = make(map[chainhash.Hash]struct{}, len(txs))
	for _, iv := range txs {
		hashes = append(hashes, iv.Hash)
		d.live[iv.Hash] = struct{}{}
	}

	arming := false
	if req := d.request; req != nil && req.Kind == KindMempool {
		arming = req.mempool.Arm(hashes)
	}

	if !arming && len(d.subs.mempool) == 0 {
		return
	}

	getdata := wire.NewMsgGetDataSizeHint(uint(len(txs)))
	for _, iv := range txs {
		getdata.AddInvVect(iv)
	}

	if err := d.sender.Send(getdata); err != nil {
		logrus.WithError(err).WithField("txs", len(txs)).Warn("Failed to request announced txs")

		if arming {
			d.complete(nil, err)
		}
	}
}

func (d *Dispatcher) handleTx(tx *wire.MsgTx) {
	hash := tx.TxHash()
	admitted := false

	if req := d.request; req != nil && req.Kind == KindMempool && req.mempool.Add(tx) {
		admitted = true

		if req.mempool.Complete() {
			d.complete(req.mempool.Collected(), nil)
		}
	}

	if _, ok := d.live[hash]; ok {
		delete(d.live, hash)
		admitted = true

		for _, sub := range d.subs.mempool {
			handler := sub.handler
			d.notify(func() { handler(tx) }, tx.SerializeSize())
		}
	}

	if admitted {
		dispatchMetrics.MempoolAdmitted().Inc(1)
	} else {
		dispatchMetrics.MempoolIgnored().Inc(1)
		d.violation(tx.Command(), logrus.Fields{"hash": hash})
	}
}

func (d *Dispatcher) handleBlock(block *wire.MsgBlock) {
	hash := block.BlockHash()
	served := false

	if req := d.request; req != nil && req.Kind == KindBlock && req.block == hash {
		d.complete(block, nil)
		served = true
	}

	if _, ok := d.blockWanted[hash]; ok {
		delete(d.blockWanted, hash)
		served = true

		for _, sub := range d.subs.block {
			handler := sub.handler
			d.notify(func() { handler(block) }, block.SerializeSize())
		}
	}

	if !served {
		d.violation(block.Command(), logrus.Fields{"hash": hash})
	}
}

func (d *Dispatcher) handleNotFound(msg *wire.MsgNotFound) {
	req := d.request

	for _, iv := range msg.InvList {
		switch iv.Type {
		case wire.InvTypeBlock:
			delete(d.blockWanted, iv.Hash)

			if req != nil && req.Kind == KindBlock && req.block == iv.Hash {
				d.complete(nil, errors.WithMessagef(ErrBlockNotFound, "hash %v", iv.Hash))
			}
		case wire.InvTypeTx:
			delete(d.live, iv.Hash)

			if req != nil && req.Kind == KindMempool && req.mempool.Drop(iv.Hash) && req.mempool.Complete() {
				d.complete(req.mempool.Collected(), nil)
			}
		}
	}
}
