package dispatch

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Kind is the kind of a one-shot request.
type Kind int

const (
	KindNone Kind = iota
	KindHeader
	KindBlock
	KindMempool
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindBlock:
		return "block"
	case KindMempool:
		return "mempool"
	default:
		return "none"
	}
}

type result struct {
	value any
	err   error
}

// RequestContext is the outstanding one-shot request of a dispatcher, which is
// owned by the dispatcher loop until resolved.
type RequestContext struct {
	Kind Kind

	headers *HeaderPaginator
	block   chainhash.Hash
	mempool *MempoolCollector

	result chan result
	once   sync.Once
}

func newRequestContext(kind Kind) *RequestContext {
	return &RequestContext{
		Kind:   kind,
		result: make(chan result, 1),
	}
}

// resolve completes the request exactly once, and later calls are ignored.
func (rc *RequestContext) resolve(value any, err error) bool {
	resolved := false

	rc.once.Do(func() {
		rc.result <- result{value, err}
		resolved = true
	})

	return resolved
}
