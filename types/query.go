package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// HeaderQuery selects either a single header (At) or a contiguous range From..To.
//
// The range is inclusive on both ends. If To is nil, the range extends to the
// current tip announced by the peer.
type HeaderQuery struct {
	At   *BlockID `json:"at,omitempty"`
	From *BlockID `json:"from,omitempty"`
	To   *BlockID `json:"to,omitempty"`
}

func (q HeaderQuery) Validate() error {
	if q.At != nil {
		if q.From != nil || q.To != nil {
			return errors.New("at is exclusive with from and to")
		}

		return nil
	}

	if q.From == nil {
		return errors.New("either at or from is required")
	}

	return nil
}

// Range selects cached block entries by height.
//
// At selects a single entry, otherwise From..To inclusive. If To is nil, the
// range extends to the highest cached height.
type Range struct {
	At   *int64 `json:"at,omitempty"`
	From *int64 `json:"from,omitempty"`
	To   *int64 `json:"to,omitempty"`
}

func RangeAt(height int64) Range {
	return Range{At: &height}
}

func RangeFrom(from int64) Range {
	return Range{From: &from}
}

func RangeBetween(from, to int64) Range {
	return Range{From: &from, To: &to}
}

func (r Range) Validate() error {
	if r.At != nil {
		if r.From != nil || r.To != nil {
			return errors.New("at is exclusive with from and to")
		}

		return nil
	}

	if r.From == nil {
		return errors.New("either at or from is required")
	}

	if r.To != nil && *r.To < *r.From {
		return errors.Errorf("Invalid range, from = %v, to = %v", *r.From, *r.To)
	}

	return nil
}

// Contains indicates whether the given height is selected, where max is the
// upper bound used when To is not specified.
func (r Range) Contains(height, max int64) bool {
	if r.At != nil {
		return height == *r.At
	}

	if r.From == nil || height < *r.From {
		return false
	}

	if r.To != nil {
		return height <= *r.To
	}

	return height <= max
}

func (r Range) String() string {
	if r.At != nil {
		return fmt.Sprintf("at %v", *r.At)
	}

	if r.From == nil {
		return "empty"
	}

	if r.To == nil {
		return fmt.Sprintf("from %v", *r.From)
	}

	return fmt.Sprintf("from %v to %v", *r.From, *r.To)
}
