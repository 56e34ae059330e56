package client

import (
	"context"

	"github.com/peerquery/peerquery/store"
	"github.com/peerquery/peerquery/types"
	"github.com/sirupsen/logrus"
)

// IndexHeaders fetches confirmed headers from the given height via peer, and
// writes them into the header index in batches. If from is negative, it resumes
// from the latest indexed height.
//
// It returns the number of headers indexed.
func (c *Client) IndexHeaders(ctx context.Context, from int64) (int, error) {
	if c.index == nil {
		return 0, ErrIndexDisabled
	}

	if from < 0 {
		latest, ok, err := c.index.LatestHeight()
		if err != nil {
			return 0, err
		}

		from = 0
		if ok {
			from = latest + 1
		}
	}

	info, err := c.GetInfo(ctx)
	if err != nil {
		return 0, err
	}

	// headers with enough confirmations only
	to := int64(info.Blocks) - c.config.Resolver.MinConfirmations + 1
	if from > to {
		return 0, nil
	}

	fromID, toID := types.BlockIDWithHeight(from), types.BlockIDWithHeight(to)

	headers, err := c.GetHeaders(ctx, types.HeaderQuery{From: &fromID, To: &toID})
	if err != nil {
		return 0, err
	}

	writer := store.NewBatchWriter[types.Header](c.index, c.config.Index.Writer)
	for _, v := range headers {
		writer.Process(ctx, v)
	}
	writer.Close(ctx)

	if err = ctx.Err(); err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"from":    from,
		"to":      to,
		"indexed": len(headers),
	}).Info("Headers indexed")

	return len(headers), nil
}
