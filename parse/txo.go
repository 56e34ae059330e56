package parse

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/peerquery/peerquery/types"
	"github.com/pkg/errors"
)

// paramsOf returns the chain params to encode addresses, main net by default.
func paramsOf(arg any) (*chaincfg.Params, error) {
	switch v := arg.(type) {
	case nil:
		return &chaincfg.MainNetParams, nil
	case *chaincfg.Params:
		return v, nil
	default:
		return nil, errors.Errorf("Invalid chain params type %T", arg)
	}
}

// inputAddress returns the address of a pay-to-pubkey-hash unlocking script,
// that is a signature followed by a public key.
func inputAddress(script []byte, params *chaincfg.Params) string {
	pushes, err := txscript.PushedData(script)
	if err != nil || len(pushes) != 2 {
		return ""
	}

	pubkey := pushes[1]
	if len(pubkey) != 33 && len(pubkey) != 65 {
		return ""
	}

	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pubkey), params)
	if err != nil {
		return ""
	}

	return addr.EncodeAddress()
}

// outputAddress returns the address of a standard locking script if any.
func outputAddress(script []byte, params *chaincfg.Params) string {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil || len(addrs) != 1 {
		return ""
	}

	return addrs[0].EncodeAddress()
}

func inputEdge(in *wire.TxIn, params *chaincfg.Params) types.Edge {
	return types.Edge{
		H: in.PreviousOutPoint.Hash.String(),
		I: in.PreviousOutPoint.Index,
		A: inputAddress(in.SignatureScript, params),
	}
}

func outputEdge(index int, out *wire.TxOut, params *chaincfg.Params) types.Edge {
	value := out.Value

	return types.Edge{
		I: uint32(index),
		A: outputAddress(out.PkScript, params),
		V: &value,
	}
}

// txoStrategy decomposes every script into a flat cell list.
type txoStrategy struct {
	params *chaincfg.Params
}

func newTxoStrategy(arg any) (Strategy, error) {
	params, err := paramsOf(arg)
	if err != nil {
		return nil, err
	}

	return &txoStrategy{params}, nil
}

func (s *txoStrategy) Parse(tx *wire.MsgTx, blk *types.BlockMeta) (types.Record, error) {
	record := types.NewRecord(tx, blk)
	record.Lock = tx.LockTime

	record.In = make([]types.IO, 0, len(tx.TxIn))
	for i, in := range tx.TxIn {
		record.In = append(record.In, types.IO{
			I:    i,
			Seq:  in.Sequence,
			Cell: decompose(in.SignatureScript, 0),
			E:    inputEdge(in, s.params),
		})
	}

	record.Out = make([]types.IO, 0, len(tx.TxOut))
	for i, out := range tx.TxOut {
		record.Out = append(record.Out, types.IO{
			I:    i,
			Cell: decompose(out.PkScript, 0),
			E:    outputEdge(i, out, s.params),
		})
	}

	return record, nil
}
