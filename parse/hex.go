package parse

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/wire"
	"github.com/peerquery/peerquery/types"
	"github.com/pkg/errors"
)

// EncodeTx returns the hex encoded raw transaction.
func EncodeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())

	if err := tx.Serialize(&buf); err != nil {
		return "", errors.WithMessage(err, "Failed to serialize tx")
	}

	return hex.EncodeToString(buf.Bytes()), nil
}

// DecodeTx decodes a hex encoded raw transaction.
func DecodeTx(s string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.WithMessage(err, "Invalid hex")
	}

	var tx wire.MsgTx
	if err = tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, errors.WithMessage(err, "Failed to deserialize tx")
	}

	return &tx, nil
}

func newHexStrategy(any) (Strategy, error) {
	return StrategyFunc(func(tx *wire.MsgTx, blk *types.BlockMeta) (types.Record, error) {
		encoded, err := EncodeTx(tx)
		if err != nil {
			return types.Record{}, err
		}

		record := types.NewRecord(tx, blk)
		record.Tx.R = encoded

		return record, nil
	}), nil
}
