package parse

import (
	"encoding/base64"
	"encoding/hex"

	"github.com/btcsuite/btcd/txscript"
	"github.com/peerquery/peerquery/types"
)

// opcodeNames maps opcode to its name, where the lexicographically smallest
// name is chosen among aliases, e.g. OP_0 rather than OP_FALSE.
var opcodeNames = func() map[byte]string {
	names := make(map[byte]string, len(txscript.OpcodeByName))

	for name, op := range txscript.OpcodeByName {
		if existing, ok := names[op]; !ok || name < existing {
			names[op] = name
		}
	}

	return names
}()

func isDataPush(op byte) bool {
	return op > txscript.OP_0 && op <= txscript.OP_PUSHDATA4
}

func newOpCell(op byte) types.Cell {
	return types.Cell{Op: &op, Ops: opcodeNames[op]}
}

// newDataCell creates a data cell, and moves the payload into the large fields
// if it exceeds the large threshold (non-positive means never).
func newDataCell(data []byte, large int) types.Cell {
	b := base64.StdEncoding.EncodeToString(data)
	s := string(data)
	h := hex.EncodeToString(data)

	if large > 0 && len(data) > large {
		return types.Cell{LB: b, LS: s, LH: h}
	}

	return types.Cell{B: b, S: s, H: h}
}

// decompose tokenizes a script into cells.
//
// Scripts are not required to be well formed, e.g. coinbase scripts or data
// after OP_RETURN. Any trailing bytes that cannot be tokenized are kept as a
// single data cell.
func decompose(script []byte, large int) []types.Cell {
	cells := make([]types.Cell, 0, 8)

	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		var cell types.Cell
		if op := tokenizer.Opcode(); isDataPush(op) {
			cell = newDataCell(tokenizer.Data(), large)
		} else {
			cell = newOpCell(op)
		}

		cell.I = len(cells)
		cell.II = len(cells)
		cells = append(cells, cell)
	}

	if tokenizer.Err() != nil {
		if offset := int(tokenizer.ByteIndex()); offset < len(script) {
			cell := newDataCell(script[offset:], large)
			cell.I = len(cells)
			cell.II = len(cells)
			cells = append(cells, cell)
		}
	}

	return cells
}
