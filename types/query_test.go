package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeContains(t *testing.T) {
	at := RangeAt(100)
	assert.True(t, at.Contains(100, 200))
	assert.False(t, at.Contains(101, 200))

	between := RangeBetween(100, 105)
	assert.False(t, between.Contains(99, 200))
	assert.True(t, between.Contains(100, 200))
	assert.True(t, between.Contains(105, 200))
	assert.False(t, between.Contains(106, 200))

	from := RangeFrom(100)
	assert.True(t, from.Contains(150, 200))
	assert.False(t, from.Contains(201, 200))
}

func TestRangeValidate(t *testing.T) {
	assert.Nil(t, RangeAt(1).Validate())
	assert.Nil(t, RangeFrom(1).Validate())
	assert.Nil(t, RangeBetween(1, 1).Validate())
	assert.Error(t, RangeBetween(2, 1).Validate())
	assert.Error(t, Range{}.Validate())

	at := int64(3)
	assert.Error(t, Range{At: &at, From: &at}.Validate())
}

func TestHeaderQueryValidate(t *testing.T) {
	from := BlockIDWithHeight(10)
	at := BlockIDWithHeight(0)

	assert.Nil(t, HeaderQuery{From: &from}.Validate())
	assert.Nil(t, HeaderQuery{At: &at}.Validate())
	assert.Error(t, HeaderQuery{}.Validate())
	assert.Error(t, HeaderQuery{At: &at, From: &from}.Validate())
}
