package types

import (
	"github.com/btcsuite/btcd/wire"
)

// MempoolKey is the reserved cache key of the mempool snapshot.
const MempoolKey = "mempool"

// BlockMeta annotates records that belong to a block.
type BlockMeta struct {
	I int64  `json:"i"` // height
	H string `json:"h"` // hash
	T int64  `json:"t"` // timestamp
}

// TxRef references the transaction a record is derived from.
type TxRef struct {
	H string `json:"h"`           // txid
	R string `json:"r,omitempty"` // raw transaction in hex
}

// Cell is a decomposed script token, either an opcode or a data push.
type Cell struct {
	I   int    `json:"i"`   // index in tape
	II  int    `json:"ii"`  // index in script
	Op  *byte  `json:"op,omitempty"`
	Ops string `json:"ops,omitempty"`
	B   string `json:"b,omitempty"` // base64
	S   string `json:"s,omitempty"` // utf8
	H   string `json:"h,omitempty"` // hex
	LB  string `json:"lb,omitempty"`
	LS  string `json:"ls,omitempty"`
	LH  string `json:"lh,omitempty"`
}

// Tape is a group of cells split by a delimiter token.
type Tape struct {
	I    int    `json:"i"`
	Cell []Cell `json:"cell"`
}

// Edge links an input to the spent output, or an output to its value and receiver.
type Edge struct {
	H string `json:"h,omitempty"` // previous txid of input
	I uint32 `json:"i"`           // previous output index of input, or output index
	A string `json:"a,omitempty"` // address
	V *int64 `json:"v,omitempty"` // output value in satoshis
}

// IO is a decomposed transaction input or output.
type IO struct {
	I    int    `json:"i"`
	Seq  uint32 `json:"seq,omitempty"`
	Cell []Cell `json:"cell,omitempty"`
	Tape []Tape `json:"tape,omitempty"`
	E    Edge   `json:"e"`
}

// Record is the structured output of a parse strategy for one transaction.
//
// Once mapped, the strategy output is replaced by the mapped value under "$",
// while the transaction reference and block annotation are kept.
type Record struct {
	Tx     TxRef      `json:"tx"`
	In     []IO       `json:"in,omitempty"`
	Out    []IO       `json:"out,omitempty"`
	Lock   uint32     `json:"lock,omitempty"`
	Blk    *BlockMeta `json:"blk,omitempty"`
	Mapped any        `json:"$,omitempty"`

	raw *wire.MsgTx
}

// NewRecord creates a record that references the given transaction.
func NewRecord(tx *wire.MsgTx, blk *BlockMeta) Record {
	return Record{
		Tx:  TxRef{H: tx.TxHash().String()},
		Blk: blk,
		raw: tx,
	}
}

// Raw returns the underlying transaction if still attached.
func (r Record) Raw() *wire.MsgTx {
	return r.raw
}

// Size implements the Sizable interface.
func (r Record) Size() int {
	if r.raw != nil {
		return r.raw.SerializeSize()
	}

	return NewSized(r.Tx).Size
}

// WithMapped returns a record that only keeps the transaction reference and
// block annotation along with the mapped value.
func (r Record) WithMapped(v any) Record {
	return Record{
		Tx:     r.Tx,
		Blk:    r.Blk,
		Mapped: v,
		raw:    r.raw,
	}
}
