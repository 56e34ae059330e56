package types

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
)

const testHash = "00000000000000000350c5e4e2d9a87b1d63e2d3b43ae9de2b99ba7ebc1f6d7a"

func TestBlockIDHeight(t *testing.T) {
	id := BlockIDWithHeight(600000)

	height, ok := id.Height()
	assert.True(t, ok)
	assert.Equal(t, int64(600000), height)

	_, ok = id.Hash()
	assert.False(t, ok)

	encoded, err := json.Marshal(id)
	assert.Nil(t, err)
	assert.Equal(t, "600000", string(encoded))

	var decoded BlockID
	assert.Nil(t, json.Unmarshal([]byte("77"), &decoded))
	height, ok = decoded.Height()
	assert.True(t, ok)
	assert.Equal(t, int64(77), height)
}

func TestBlockIDHash(t *testing.T) {
	id := BlockIDWithHash(testHash)

	hash, ok := id.Hash()
	assert.True(t, ok)
	assert.Equal(t, testHash, hash)

	encoded, err := json.Marshal(id)
	assert.Nil(t, err)
	assert.Equal(t, `"`+testHash+`"`, string(encoded))

	var decoded BlockID
	assert.Nil(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, id, decoded)
}

func TestBlockIDHeader(t *testing.T) {
	id := BlockIDWithHeader(Header{Hash: testHash, Height: 0})
	assert.True(t, id.IsGenesis())

	header, ok := id.Header()
	assert.True(t, ok)
	assert.Equal(t, testHash, header.Hash)

	encoded, err := json.Marshal(id)
	assert.Nil(t, err)

	var decoded BlockID
	assert.Nil(t, json.Unmarshal(encoded, &decoded))
	header, ok = decoded.Header()
	assert.True(t, ok)
	assert.Equal(t, testHash, header.Hash)
}

func TestParseBlockID(t *testing.T) {
	id, err := ParseBlockID("0")
	assert.Nil(t, err)
	assert.True(t, id.IsGenesis())

	id, err = ParseBlockID(testHash)
	assert.Nil(t, err)
	hash, _ := id.Hash()
	assert.Equal(t, testHash, hash)

	_, err = ParseBlockID("-1")
	assert.Error(t, err)

	_, err = ParseBlockID("abc")
	assert.Error(t, err)
}
