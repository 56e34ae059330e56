package dispatch

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// MempoolCollector collects a mempool snapshot announced by one inv message.
//
// Only transactions announced in the armed inv are admitted, and each once.
type MempoolCollector struct {
	armed     bool
	expected  map[chainhash.Hash]struct{}
	count     int
	collected []*wire.MsgTx
}

func NewMempoolCollector() *MempoolCollector {
	return &MempoolCollector{}
}

// Request returns the message that asks the peer to announce its mempool.
func (c *MempoolCollector) Request() wire.Message {
	return wire.NewMsgMemPool()
}

func (c *MempoolCollector) Armed() bool {
	return c.armed
}

// Arm captures the expectation set from the first inv. It returns false if already armed.
func (c *MempoolCollector) Arm(hashes []chainhash.Hash) bool {
	if c.armed {
		return false
	}

	c.armed = true
	c.expected = make(map[chainhash.Hash]struct{}, len(hashes))
	for _, h := range hashes {
		c.expected[h] = struct{}{}
	}
	c.count = len(c.expected)

	return true
}

// Expects returns whether the tx of specified hash is still expected.
func (c *MempoolCollector) Expects(hash chainhash.Hash) bool {
	_, ok := c.expected[hash]
	return ok
}

// Add admits the tx if expected, and returns false for unexpected or duplicate tx.
func (c *MempoolCollector) Add(tx *wire.MsgTx) bool {
	hash := tx.TxHash()
	if !c.Expects(hash) {
		return false
	}

	delete(c.expected, hash)
	c.collected = append(c.collected, tx)

	return true
}

// Drop gives up an expected tx, e.g. evicted from the peer mempool before delivered.
func (c *MempoolCollector) Drop(hash chainhash.Hash) bool {
	if !c.Expects(hash) {
		return false
	}

	delete(c.expected, hash)
	c.count--

	return true
}

// Expected returns the number of txs to complete the snapshot.
func (c *MempoolCollector) Expected() int {
	return c.count
}

func (c *MempoolCollector) Complete() bool {
	return c.armed && len(c.collected) == c.count
}

// Collected returns the admitted txs in arrival order.
func (c *MempoolCollector) Collected() []*wire.MsgTx {
	return c.collected
}
