package types

import (
	"github.com/DmitriyVTitov/size"
	"github.com/btcsuite/btcd/wire"
)

// Sizable is the interface implemented by types that support to compute memory size.
type Sizable interface {
	Size() int // memory size in bytes
}

// Sized wraps a value with its precomputed memory size in bytes.
type Sized[T any] struct {
	Value T
	Size  int
}

// NewSized constructs a Sized wrapper around a value with an optional precomputed size in bytes.
//
// If `bytes` not specified, it is computed via `Sizable`, the serialized size of
// wire messages, or reflection.
func NewSized[T any](value T, bytes ...int) Sized[T] {
	var calSize int

	switch v := any(value).(type) {
	case nil:
	case Sizable:
		calSize = v.Size()
	case *wire.MsgTx:
		calSize = v.SerializeSize()
	case *wire.MsgBlock:
		calSize = v.SerializeSize()
	default:
		calSize = size.Of(value)
	}

	if len(bytes) > 0 {
		calSize = bytes[0]
	}

	return Sized[T]{
		Value: value,
		Size:  calSize,
	}
}
