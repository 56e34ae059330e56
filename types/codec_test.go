package types

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
)

type blockchainInfo struct {
	Chain  string
	Blocks int64
}

func assertLazyByUnmarshal[T any](t *testing.T, s1 T) {
	encoded1, err := json.Marshal(s1)
	assert.Nil(t, err)

	var s2 Lazy[T]
	assert.Nil(t, json.Unmarshal(encoded1, &s2))

	assert.Equal(t, s1, s2.MustLoad())

	encoded2, err := json.Marshal(s2)
	assert.Nil(t, err)
	assert.Equal(t, encoded1, encoded2)
}

func TestLazyByUnmarshal(t *testing.T) {
	assertLazyByUnmarshal(t, blockchainInfo{Chain: "main", Blocks: 600000})
	assertLazyByUnmarshal(t, &blockchainInfo{Chain: "test", Blocks: 1})
	assertLazyByUnmarshal(t, (*blockchainInfo)(nil))
	assertLazyByUnmarshal(t, []blockchainInfo{{Chain: "main"}, {Chain: "regtest"}})
	assertLazyByUnmarshal(t, []blockchainInfo{})
	assertLazyByUnmarshal(t, "0100000001")
}

func TestLazyEmpty(t *testing.T) {
	var lazy Lazy[*blockchainInfo]
	assert.True(t, lazy.IsEmptyOrNull())

	val, err := lazy.Load()
	assert.Nil(t, err)
	assert.Nil(t, val)

	encoded, err := json.Marshal(lazy)
	assert.Nil(t, err)
	assert.Equal(t, "null", string(encoded))
}

func TestLazyRaw(t *testing.T) {
	lazy, err := NewLazy(map[string]int{"blocks": 7})
	assert.Nil(t, err)
	assert.Equal(t, `{"blocks":7}`, string(lazy.Raw()))
	assert.False(t, lazy.IsEmptyOrNull())
}
