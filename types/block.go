package types

import (
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// BlockID identifies a block by height, hash or an already known header.
type BlockID struct {
	height *int64
	hash   string
	header *Header
}

func BlockIDWithHeight(height int64) BlockID {
	return BlockID{height: &height}
}

func BlockIDWithHash(hash string) BlockID {
	return BlockID{hash: hash}
}

func BlockIDWithHeader(header Header) BlockID {
	return BlockID{header: &header}
}

// ParseBlockID parses a decimal height or a 64 chars hex block hash.
func ParseBlockID(s string) (BlockID, error) {
	if height, err := strconv.ParseInt(s, 10, 64); err == nil {
		if height < 0 {
			return BlockID{}, errors.Errorf("Negative block height %v", height)
		}

		return BlockIDWithHeight(height), nil
	}

	if _, err := chainhash.NewHashFromStr(s); err != nil || len(s) != chainhash.MaxHashStringSize {
		return BlockID{}, errors.Errorf("Invalid block height or hash %v", s)
	}

	return BlockIDWithHash(s), nil
}

// Height returns the block height if identified by height.
func (id BlockID) Height() (int64, bool) {
	if id.height != nil {
		return *id.height, true
	}

	return 0, false
}

// Hash returns the block hash if identified by hash.
func (id BlockID) Hash() (string, bool) {
	return id.hash, len(id.hash) > 0
}

// Header returns the block header if identified by header.
func (id BlockID) Header() (*Header, bool) {
	return id.header, id.header != nil
}

// IsGenesis indicates whether it identifies the block at height 0.
func (id BlockID) IsGenesis() bool {
	if id.height != nil {
		return *id.height == 0
	}

	return id.header != nil && id.header.Height == 0
}

func (id BlockID) IsZero() bool {
	return id.height == nil && len(id.hash) == 0 && id.header == nil
}

func (id BlockID) String() string {
	switch {
	case id.height != nil:
		return strconv.FormatInt(*id.height, 10)
	case id.header != nil:
		return fmt.Sprintf("header(%v)", id.header.Hash)
	default:
		return id.hash
	}
}

func (id BlockID) MarshalJSON() ([]byte, error) {
	switch {
	case id.height != nil:
		return json.Marshal(*id.height)
	case id.header != nil:
		return json.Marshal(id.header)
	default:
		return json.Marshal(id.hash)
	}
}

func (id *BlockID) UnmarshalJSON(data []byte) error {
	*id = BlockID{}

	if len(data) == 0 {
		return errors.New("Empty block id")
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &id.hash)
	case '{':
		id.header = new(Header)
		return json.Unmarshal(data, id.header)
	default:
		id.height = new(int64)
		return json.Unmarshal(data, id.height)
	}
}
