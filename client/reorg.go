package client

import (
	"github.com/peerquery/peerquery/types"
	"github.com/sirupsen/logrus"
)

// trackAnnounced pushes the header of an announced block into the window, and
// invalidates cached blocks that are reorged out of the main chain.
//
// It returns false if the block has already been tracked.
func (c *Client) trackAnnounced(header types.Header) bool {
	c.reorgMu.Lock()
	defer c.reorgMu.Unlock()

	for {
		latest, hash, ok := c.window.Peek()
		if !ok {
			break
		}

		if latest == header.Height && hash == header.Hash {
			return false
		}

		if latest+1 == header.Height && hash == header.PrevHash {
			break
		}

		// gap since the last announced block
		if latest+1 < header.Height {
			for c.window.Len() > 0 {
				c.window.Pop()
			}

			break
		}

		c.window.Pop()

		logrus.WithFields(logrus.Fields{
			"height":   latest,
			"reorged":  hash,
			"incoming": header.Hash,
		}).Warn("Chain reorg detected")

		if c.cache != nil {
			if err := c.cache.Invalidate(types.RangeAt(latest)); err != nil {
				logrus.WithError(err).WithField("height", latest).Warn("Failed to invalidate reorged block in cache")
			}
		}
	}

	if err := c.window.Push(header.Height, header.Hash); err != nil {
		logrus.WithError(err).Warn("Failed to track announced block")
	}

	return true
}
