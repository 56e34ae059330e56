package dispatch

import (
	"container/list"
	"sync"

	"github.com/peerquery/peerquery/types"
	"github.com/pkg/errors"
)

var ErrChannelClosed = errors.New("channel closed")

// MemoryBoundedChannel is an unbounded FIFO queue limited by the memory size of buffered items.
type MemoryBoundedChannel[T any] struct {
	mu           sync.Mutex
	size         int        // current memory size used by buffered items
	capacity     int        // memory limit in bytes
	buffer       *list.List // buffered items to receive (FIFO)
	notFullCond  *sync.Cond // signals when memory is not full
	notEmptyCond *sync.Cond // signals when buffer is not empty
	closed       bool
}

// NewMemoryBoundedChannel creates a new memory-bounded channel.
func NewMemoryBoundedChannel[T any](capacity int) *MemoryBoundedChannel[T] {
	if capacity <= 0 {
		panic("capacity must be greater than 0")
	}

	m := &MemoryBoundedChannel[T]{
		capacity: capacity,
		buffer:   list.New(),
	}
	m.notFullCond = sync.NewCond(&m.mu)
	m.notEmptyCond = sync.NewCond(&m.mu)
	return m
}

// full returns true if the item cannot be buffered. An item larger than the
// capacity is still accepted if nothing buffered.
func (m *MemoryBoundedChannel[T]) full(item types.Sized[T]) bool {
	return m.size+item.Size > m.capacity && m.buffer.Len() > 0
}

// Send blocks until enough memory is available to buffer the item, or returns an error if the channel is closed.
func (m *MemoryBoundedChannel[T]) Send(item types.Sized[T]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for !m.closed && m.full(item) {
		m.notFullCond.Wait()
	}

	if m.closed {
		return ErrChannelClosed
	}

	m.enqueue(item)
	return nil
}

// TrySend attempts to send without blocking.
// It returns false if over memory limit, or an error if the channel is closed.
func (m *MemoryBoundedChannel[T]) TrySend(item types.Sized[T]) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrChannelClosed
	}

	if m.full(item) {
		return false, nil
	}

	m.enqueue(item)
	return true, nil
}

// Receive blocks until an item is available and returns it, or returns an error
// if the channel is closed and drained.
func (m *MemoryBoundedChannel[T]) Receive() (v T, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for !m.closed && m.buffer.Len() == 0 {
		m.notEmptyCond.Wait()
	}

	if m.buffer.Len() > 0 {
		return m.dequeue(), nil
	}

	return v, ErrChannelClosed
}

// Len returns the number of items in the channel.
func (m *MemoryBoundedChannel[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffer.Len()
}

// Close closes the channel, while buffered items are still available to receive.
func (m *MemoryBoundedChannel[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		m.notEmptyCond.Broadcast()
		m.notFullCond.Broadcast()
	}
}

func (m *MemoryBoundedChannel[T]) enqueue(item types.Sized[T]) {
	dispatchMetrics.QueueSize().Update(int64(m.size + item.Size))

	m.buffer.PushBack(item)
	m.size += item.Size

	m.notEmptyCond.Broadcast()
}

func (m *MemoryBoundedChannel[T]) dequeue() T {
	elem := m.buffer.Front()
	m.buffer.Remove(elem)

	item := elem.Value.(types.Sized[T])
	m.size -= item.Size

	m.notFullCond.Broadcast()
	return item.Value
}
