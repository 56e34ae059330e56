package types

import (
	"strconv"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

// HeightUnknown is the height of a header that has not been resolved yet.
const HeightUnknown int64 = -1

// Header is a block header annotated with its height in the main chain.
type Header struct {
	Hash       string `json:"hash"`
	Version    int32  `json:"version"`
	PrevHash   string `json:"prevHash"`
	MerkleRoot string `json:"merkleRoot"`
	Time       int64  `json:"time"`
	Bits       uint32 `json:"bits"`
	Nonce      uint32 `json:"nonce"`
	Height     int64  `json:"height"`
}

// NewHeader converts a wire header into Header with the given height.
func NewHeader(h *wire.BlockHeader, height int64) Header {
	return Header{
		Hash:       h.BlockHash().String(),
		Version:    h.Version,
		PrevHash:   h.PrevBlock.String(),
		MerkleRoot: h.MerkleRoot.String(),
		Time:       h.Timestamp.Unix(),
		Bits:       h.Bits,
		Nonce:      h.Nonce,
		Height:     height,
	}
}

// NewHeaderFromVerbose converts the verbose getblockheader RPC result into Header.
func NewHeaderFromVerbose(r *btcjson.GetBlockHeaderVerboseResult) (Header, error) {
	bits, err := strconv.ParseUint(r.Bits, 16, 32)
	if err != nil {
		return Header{}, errors.WithMessagef(err, "Invalid bits %v", r.Bits)
	}

	// genesis block has no previous block hash
	prev := r.PreviousHash
	if len(prev) == 0 {
		prev = chainhash.Hash{}.String()
	}

	return Header{
		Hash:       r.Hash,
		Version:    r.Version,
		PrevHash:   prev,
		MerkleRoot: r.MerkleRoot,
		Time:       r.Time,
		Bits:       uint32(bits),
		Nonce:      uint32(r.Nonce),
		Height:     int64(r.Height),
	}, nil
}

// BlockHash parses the hex block hash.
func (h Header) BlockHash() (*chainhash.Hash, error) {
	return chainhash.NewHashFromStr(h.Hash)
}

// Meta returns the block annotation attached to parsed records.
func (h Header) Meta() *BlockMeta {
	return &BlockMeta{I: h.Height, H: h.Hash, T: h.Time}
}
