package dispatch

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Step is the transition of a paginator after handling a headers batch.
type Step int

const (
	// StepIgnored means the batch does not extend the accumulated chain, e.g. an
	// unsolicited new block announcement.
	StepIgnored Step = iota
	// StepContinue means more headers are expected, and the next getheaders should be sent.
	StepContinue
	// StepComplete means the query is done.
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepContinue:
		return "continue"
	case StepComplete:
		return "complete"
	default:
		return "ignored"
	}
}

// HeaderPaginator drives the getheaders/headers protocol to completion, and
// accumulates a hash-chained header sequence.
//
// Peer returns headers after the locator hash, so the locator should be the
// hash previous to the first expected header. For a query starting at genesis,
// the genesis header is seeded and used as locator.
type HeaderPaginator struct {
	locator chainhash.Hash
	stop    *chainhash.Hash

	tip     chainhash.Hash
	headers []wire.BlockHeader
	done    bool
}

// NewHeaderPaginator creates a paginator to request headers after `prev` and
// stop at `stop` (inclusive) if specified, otherwise until the peer tip.
func NewHeaderPaginator(prev chainhash.Hash, stop *chainhash.Hash, seed ...*wire.BlockHeader) *HeaderPaginator {
	p := HeaderPaginator{
		locator: prev,
		stop:    stop,
		tip:     prev,
	}

	for _, h := range seed {
		p.headers = append(p.headers, *h)
	}

	if stop != nil && len(seed) > 0 && p.tip == *stop {
		p.done = true
	}

	return &p
}

// Request returns the getheaders message to continue from the current tip.
func (p *HeaderPaginator) Request() *wire.MsgGetHeaders {
	msg := wire.NewMsgGetHeaders()
	msg.ProtocolVersion = wire.ProtocolVersion
	msg.AddBlockLocatorHash(&p.locator)

	if p.stop != nil {
		msg.HashStop = *p.stop
	}

	return msg
}

// Handle consumes a headers batch. For StepContinue, the returned message
// should be sent to the peer.
func (p *HeaderPaginator) Handle(msg *wire.MsgHeaders) (Step, *wire.MsgGetHeaders) {
	if p.done {
		return StepIgnored, nil
	}

	if len(msg.Headers) == 0 {
		p.done = true
		return StepComplete, nil
	}

	if msg.Headers[0].PrevBlock != p.tip {
		return StepIgnored, nil
	}

	for _, h := range msg.Headers {
		// chain breaks within a batch, accept what is linked
		if h.PrevBlock != p.tip {
			p.done = true
			return StepComplete, nil
		}

		p.headers = append(p.headers, *h)
		p.tip = h.BlockHash()

		if p.stop != nil && p.tip == *p.stop {
			p.done = true
			return StepComplete, nil
		}
	}

	p.locator = p.tip

	return StepContinue, p.Request()
}

// Done returns whether the query completed.
func (p *HeaderPaginator) Done() bool {
	return p.done
}

// Headers returns the accumulated headers in chain order.
func (p *HeaderPaginator) Headers() []wire.BlockHeader {
	return append([]wire.BlockHeader(nil), p.headers...)
}
