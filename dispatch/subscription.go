package dispatch

import (
	"github.com/btcsuite/btcd/wire"
)

type subscriber[T any] struct {
	id      uint64
	handler T
}

type subscriberList[T any] []subscriber[T]

func (list subscriberList[T]) remove(id uint64) subscriberList[T] {
	for i, v := range list {
		if v.id == id {
			return append(list[:i:i], list[i+1:]...)
		}
	}

	return list
}

// subscriptions is the set of persistent handlers, which is confined to the dispatcher loop.
type subscriptions struct {
	nextID  uint64
	block   subscriberList[func(*wire.MsgBlock)]
	mempool subscriberList[func(*wire.MsgTx)]
	ready   subscriberList[func()]
}

func (s *subscriptions) id() uint64 {
	s.nextID++
	return s.nextID
}

// SubscribeBlocks registers a handler for blocks announced by the peer, and
// returns a func to unsubscribe.
func (d *Dispatcher) SubscribeBlocks(handler func(*wire.MsgBlock)) func() {
	return d.subscribe(func(s *subscriptions) func(*subscriptions) {
		id := s.id()
		s.block = append(s.block, subscriber[func(*wire.MsgBlock)]{id, handler})
		return func(s *subscriptions) { s.block = s.block.remove(id) }
	})
}

// SubscribeMempool registers a handler for every admitted mempool tx, and
// returns a func to unsubscribe.
func (d *Dispatcher) SubscribeMempool(handler func(*wire.MsgTx)) func() {
	return d.subscribe(func(s *subscriptions) func(*subscriptions) {
		id := s.id()
		s.mempool = append(s.mempool, subscriber[func(*wire.MsgTx)]{id, handler})
		return func(s *subscriptions) { s.mempool = s.mempool.remove(id) }
	})
}

// SubscribeReady registers a handler for peer handshake completion, which is
// called immediately if already ready.
func (d *Dispatcher) SubscribeReady(handler func()) func() {
	return d.subscribe(func(s *subscriptions) func(*subscriptions) {
		if d.ready {
			d.notify(handler, 0)
		}

		id := s.id()
		s.ready = append(s.ready, subscriber[func()]{id, handler})
		return func(s *subscriptions) { s.ready = s.ready.remove(id) }
	})
}

func (d *Dispatcher) subscribe(add func(s *subscriptions) func(*subscriptions)) func() {
	removed := make(chan func(*subscriptions), 1)

	if err := d.exec(func() { removed <- add(&d.subs) }); err != nil {
		return func() {}
	}

	return func() {
		d.exec(func() {
			select {
			case remove := <-removed:
				remove(&d.subs)
			default:
			}
		})
	}
}
