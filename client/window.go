package client

import (
	"sync"

	"github.com/pkg/errors"
)

// hashWindow caches hashes of recently announced blocks in a ring buffer for reorg check.
type hashWindow struct {
	mu     sync.RWMutex
	next   int      // index for next write
	count  int      // current number of elements
	buff   []string // ring buffer of block hashes
	latest int64    // latest block height
}

func newHashWindow(size int) *hashWindow {
	if size <= 0 {
		panic("window size must be positive")
	}

	return &hashWindow{
		buff: make([]string, size),
	}
}

// Len returns current number of elements in the buffer.
func (w *hashWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.count
}

// Push inserts a new block hash into the ring buffer.
func (w *hashWindow) Push(height int64, hash string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count > 0 && height != w.latest+1 {
		return errors.Errorf("block height not continuous, expected %v got %v", w.latest+1, height)
	}

	w.latest = height
	w.buff[w.next] = hash

	w.next = (w.next + 1) % len(w.buff)
	if w.count < len(w.buff) {
		w.count++
	}

	return nil
}

// Peek returns the latest block height and hash.
func (w *hashWindow) Peek() (height int64, hash string, found bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.count == 0 {
		return
	}

	idx := (w.next - 1 + len(w.buff)) % len(w.buff)
	return w.latest, w.buff[idx], true
}

// Pop removes and returns the latest block hash.
func (w *hashWindow) Pop() (height int64, hash string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count == 0 {
		return
	}

	idx := (w.next - 1 + len(w.buff)) % len(w.buff)
	height, hash = w.latest, w.buff[idx]

	w.next = idx
	w.buff[w.next] = ""

	w.latest--
	w.count--

	return height, hash
}
