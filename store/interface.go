package store

import (
	"io"

	"github.com/btcsuite/btcd/wire"
	"github.com/peerquery/peerquery/types"
)

// Writable is implemented by stores that persist items of type T.
type Writable[T any] interface {
	Write(...T) error
}

// ChainCache persists raw transaction logs of blocks and mempool snapshots.
type ChainCache interface {
	Write(key string, txs []*wire.MsgTx) error
	Ready(key string) bool
	Open(key string) (io.ReadCloser, error)
	Invalidate(r types.Range) error
	Prune(count int) error
	AutoPrune() error
	Retain() int
}

// HeaderIndex persists confirmed block headers by hash and height.
type HeaderIndex interface {
	io.Closer
	Writable[types.Header]

	LatestHeight() (int64, bool, error)
	DeleteFrom(height int64) error
	GetHeaderByHash(hash string) (*types.Header, error)
	GetHeaderByHeight(height int64) (*types.Header, error)
}
