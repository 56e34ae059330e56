package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeSender struct {
	sent chan wire.Message
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(chan wire.Message, 64)}
}

func (s *fakeSender) Send(msg wire.Message) error {
	s.sent <- msg
	return nil
}

func (s *fakeSender) next(t *testing.T) wire.Message {
	select {
	case msg := <-s.sent:
		return msg
	case <-time.After(time.Second):
		require.FailNow(t, "no message sent to peer")
		return nil
	}
}

func (s *fakeSender) assertIdle(t *testing.T) {
	select {
	case msg := <-s.sent:
		assert.Failf(t, "unexpected message sent to peer", "%v", msg.Command())
	default:
	}
}

func makeChain(n int) []*wire.BlockHeader {
	headers := make([]*wire.BlockHeader, n)

	var prev chainhash.Hash
	for i := range headers {
		headers[i] = wire.NewBlockHeader(1, &prev, &chainhash.Hash{}, 0x207fffff, uint32(i))
		prev = headers[i].BlockHash()
	}

	return headers
}

func orphanHeader() *wire.BlockHeader {
	return wire.NewBlockHeader(1, &chainhash.Hash{0xff}, &chainhash.Hash{}, 0x207fffff, 0)
}

func headersMsg(headers ...*wire.BlockHeader) *wire.MsgHeaders {
	msg := wire.NewMsgHeaders()
	for _, h := range headers {
		msg.AddBlockHeader(h)
	}

	return msg
}

func newTx(seed byte) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{seed}, 0), []byte{seed}, nil))
	tx.AddTxOut(wire.NewTxOut(int64(seed)*1000, []byte{0x51}))
	return tx
}

func txInv(txs ...*wire.MsgTx) *wire.MsgInv {
	msg := wire.NewMsgInv()
	for _, tx := range txs {
		hash := tx.TxHash()
		msg.AddInvVect(wire.NewInvVect(wire.InvTypeTx, &hash))
	}

	return msg
}

func newBlock(nonce uint32, txs ...*wire.MsgTx) *wire.MsgBlock {
	header := wire.NewBlockHeader(1, &chainhash.Hash{}, &chainhash.Hash{}, 0x207fffff, nonce)
	block := wire.NewMsgBlock(header)
	for _, tx := range txs {
		block.AddTransaction(tx)
	}

	return block
}

func newTestDispatcher(timeout ...time.Duration) (*Dispatcher, *fakeSender) {
	config := DefaultConfig()
	config.RequestTimeout = 5 * time.Second
	if len(timeout) > 0 {
		config.RequestTimeout = timeout[0]
	}

	sender := newFakeSender()
	d := New(sender, config)
	d.OnReady()

	return d, sender
}

// flush waits until all events posted before are processed by the loop.
func flush(t *testing.T, d *Dispatcher) {
	done := make(chan struct{})
	require.Nil(t, d.exec(func() { close(done) }))
	<-done
}

type outcome[T any] struct {
	value T
	err   error
}

func async[T any](fn func() (T, error)) <-chan outcome[T] {
	ch := make(chan outcome[T], 1)
	go func() {
		v, err := fn()
		ch <- outcome[T]{v, err}
	}()
	return ch
}

func await[T any](t *testing.T, ch <-chan outcome[T]) (T, error) {
	select {
	case o := <-ch:
		return o.value, o.err
	case <-time.After(2 * time.Second):
		require.FailNow(t, "request not resolved")
		var zero T
		return zero, nil
	}
}

func TestDispatcherHeaders(t *testing.T) {
	d, sender := newTestDispatcher()
	defer d.Close()

	chain := makeChain(6)
	locator := chain[0].BlockHash()
	stop := chain[4].BlockHash()

	ch := async(func() ([]wire.BlockHeader, error) {
		return d.GetHeaders(context.Background(), NewHeaderPaginator(locator, &stop))
	})

	msg := sender.next(t).(*wire.MsgGetHeaders)
	assert.Equal(t, []*chainhash.Hash{&locator}, msg.BlockLocatorHashes)
	assert.Equal(t, stop, msg.HashStop)

	// unsolicited announcement ignored
	d.OnHeaders(headersMsg(orphanHeader()))

	d.OnHeaders(headersMsg(chain[1], chain[2]))
	msg = sender.next(t).(*wire.MsgGetHeaders)
	assert.Equal(t, chain[2].BlockHash(), *msg.BlockLocatorHashes[0])

	// trailing header after stop discarded
	d.OnHeaders(headersMsg(chain[3], chain[4], chain[5]))

	headers, err := await(t, ch)
	assert.Nil(t, err)
	assert.Equal(t, 4, len(headers))
	for i, h := range headers {
		assert.Equal(t, chain[i+1].BlockHash(), h.BlockHash())
	}

	sender.assertIdle(t)
}

func TestDispatcherHeadersUntilTip(t *testing.T) {
	d, sender := newTestDispatcher()
	defer d.Close()

	chain := makeChain(4)

	ch := async(func() ([]wire.BlockHeader, error) {
		return d.GetHeaders(context.Background(), NewHeaderPaginator(chain[0].BlockHash(), nil))
	})

	sender.next(t)
	d.OnHeaders(headersMsg(chain[1:]...))
	sender.next(t)
	d.OnHeaders(headersMsg())

	headers, err := await(t, ch)
	assert.Nil(t, err)
	assert.Equal(t, 3, len(headers))
}

func TestDispatcherBlock(t *testing.T) {
	d, sender := newTestDispatcher()
	defer d.Close()

	block := newBlock(600000, newTx(1), newTx(2))
	hash := block.BlockHash()

	ch := async(func() (*wire.MsgBlock, error) {
		return d.GetBlock(context.Background(), hash)
	})

	getdata := sender.next(t).(*wire.MsgGetData)
	assert.Equal(t, 1, len(getdata.InvList))
	assert.Equal(t, wire.InvTypeBlock, getdata.InvList[0].Type)
	assert.Equal(t, hash, getdata.InvList[0].Hash)

	// unrelated block ignored
	d.OnBlock(newBlock(1))
	d.OnBlock(block)

	result, err := await(t, ch)
	assert.Nil(t, err)
	assert.Equal(t, hash, result.BlockHash())
	assert.Equal(t, 2, len(result.Transactions))
}

func TestDispatcherBlockNotFound(t *testing.T) {
	d, sender := newTestDispatcher()
	defer d.Close()

	hash := newBlock(1).BlockHash()
	ch := async(func() (*wire.MsgBlock, error) {
		return d.GetBlock(context.Background(), hash)
	})

	sender.next(t)

	notfound := wire.NewMsgNotFound()
	notfound.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &hash))
	d.OnNotFound(notfound)

	_, err := await(t, ch)
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

func TestDispatcherBlockSubscription(t *testing.T) {
	d, sender := newTestDispatcher()
	defer d.Close()

	blocks := make(chan *wire.MsgBlock, 4)
	unsubscribe := d.SubscribeBlocks(func(b *wire.MsgBlock) { blocks <- b })

	block := newBlock(7, newTx(1))
	hash := block.BlockHash()

	inv := wire.NewMsgInv()
	inv.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &hash))
	d.OnInv(inv)

	getdata := sender.next(t).(*wire.MsgGetData)
	assert.Equal(t, hash, getdata.InvList[0].Hash)

	// one-shot for the same block
	ch := async(func() (*wire.MsgBlock, error) {
		return d.GetBlock(context.Background(), hash)
	})
	sender.next(t)

	d.OnBlock(block)

	result, err := await(t, ch)
	assert.Nil(t, err)
	assert.Equal(t, hash, result.BlockHash())

	select {
	case b := <-blocks:
		assert.Equal(t, hash, b.BlockHash())
	case <-time.After(time.Second):
		assert.FailNow(t, "block subscriber not notified")
	}

	// no block requested without subscribers
	unsubscribe()
	d.OnInv(inv)
	flush(t, d)
	sender.assertIdle(t)
}

func TestDispatcherMempoolSnapshotAndLive(t *testing.T) {
	defer goleak.VerifyNone(t)

	d, sender := newTestDispatcher()
	defer d.Close()

	live := make(chan *wire.MsgTx, 8)
	d.SubscribeMempool(func(tx *wire.MsgTx) { live <- tx })

	ch := async(func() ([]*wire.MsgTx, error) {
		return d.GetMempool(context.Background())
	})

	_, ok := sender.next(t).(*wire.MsgMemPool)
	assert.True(t, ok)

	tx1, tx2, stray := newTx(1), newTx(2), newTx(3)
	d.OnInv(txInv(tx1, tx2))

	getdata := sender.next(t).(*wire.MsgGetData)
	assert.Equal(t, 2, len(getdata.InvList))

	d.OnTx(tx1)

	// live subscriber is not gated by the snapshot completion
	select {
	case tx := <-live:
		assert.Equal(t, tx1.TxHash(), tx.TxHash())
	case <-time.After(time.Second):
		assert.FailNow(t, "mempool subscriber not notified")
	}

	select {
	case <-ch:
		assert.FailNow(t, "snapshot resolved before complete")
	default:
	}

	// not announced
	d.OnTx(stray)
	// duplicate
	d.OnTx(tx1)
	d.OnTx(tx2)

	txs, err := await(t, ch)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(txs))
	assert.Equal(t, tx1.TxHash(), txs[0].TxHash())
	assert.Equal(t, tx2.TxHash(), txs[1].TxHash())

	select {
	case tx := <-live:
		assert.Equal(t, tx2.TxHash(), tx.TxHash())
	case <-time.After(time.Second):
		assert.FailNow(t, "mempool subscriber not notified")
	}

	flush(t, d)
	assert.Equal(t, 0, len(live))
}

func TestDispatcherMempoolNotFound(t *testing.T) {
	d, sender := newTestDispatcher()
	defer d.Close()

	ch := async(func() ([]*wire.MsgTx, error) {
		return d.GetMempool(context.Background())
	})
	sender.next(t)

	tx1, tx2 := newTx(1), newTx(2)
	d.OnInv(txInv(tx1, tx2))
	sender.next(t)

	d.OnTx(tx1)

	hash := tx2.TxHash()
	notfound := wire.NewMsgNotFound()
	notfound.AddInvVect(wire.NewInvVect(wire.InvTypeTx, &hash))
	d.OnNotFound(notfound)

	txs, err := await(t, ch)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(txs))
}

func TestDispatcherUnsolicitedTxIgnored(t *testing.T) {
	d, sender := newTestDispatcher()
	defer d.Close()

	live := make(chan *wire.MsgTx, 1)
	d.SubscribeMempool(func(tx *wire.MsgTx) { live <- tx })

	d.OnTx(newTx(1))
	flush(t, d)
	sender.assertIdle(t)

	// the newest inv replaces the expectation set
	d.OnInv(txInv(newTx(2)))
	sender.next(t)
	d.OnInv(txInv(newTx(3)))
	sender.next(t)
	d.OnTx(newTx(2))
	flush(t, d)

	select {
	case <-live:
		assert.FailNow(t, "unexpected tx delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatcherDisconnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	d, sender := newTestDispatcher()
	defer d.Close()

	ch := async(func() (*wire.MsgBlock, error) {
		return d.GetBlock(context.Background(), newBlock(1).BlockHash())
	})
	sender.next(t)

	d.OnDisconnect(nil)

	_, err := await(t, ch)
	assert.ErrorIs(t, err, ErrConnectionClosed)

	// fail fast afterwards
	_, err = d.GetMempool(context.Background())
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.ErrorIs(t, d.Err(), ErrConnectionClosed)
}

func TestDispatcherClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	d, sender := newTestDispatcher()

	ch := async(func() ([]*wire.MsgTx, error) {
		return d.GetMempool(context.Background())
	})
	sender.next(t)

	d.Close()

	_, err := await(t, ch)
	assert.ErrorIs(t, err, ErrConnectionClosed)

	// idempotent
	d.Close()
}

func TestDispatcherTimeout(t *testing.T) {
	d, sender := newTestDispatcher(50 * time.Millisecond)
	defer d.Close()

	block := newBlock(1)

	_, err := d.GetBlock(context.Background(), block.BlockHash())
	assert.ErrorIs(t, err, ErrRequestTimeout)
	sender.next(t)

	// late response ignored, and next request served
	d.OnBlock(block)

	ch := async(func() (*wire.MsgBlock, error) {
		return d.GetBlock(context.Background(), block.BlockHash())
	})
	sender.next(t)
	d.OnBlock(block)

	result, err := await(t, ch)
	assert.Nil(t, err)
	assert.Equal(t, block.BlockHash(), result.BlockHash())
}

func TestDispatcherWaitReady(t *testing.T) {
	d := New(newFakeSender(), DefaultConfig())
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := d.GetMempool(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ready := make(chan struct{}, 2)
	d.SubscribeReady(func() { ready <- struct{}{} })
	d.OnReady()

	select {
	case <-d.Ready():
	case <-time.After(time.Second):
		assert.FailNow(t, "not ready")
	}

	// late subscriber notified immediately
	d.SubscribeReady(func() { ready <- struct{}{} })

	for i := 0; i < 2; i++ {
		select {
		case <-ready:
		case <-time.After(time.Second):
			assert.FailNow(t, "ready subscriber not notified")
		}
	}
}

func TestDispatcherSerializesRequests(t *testing.T) {
	d, sender := newTestDispatcher()
	defer d.Close()

	b1, b2 := newBlock(1), newBlock(2)

	ch1 := async(func() (*wire.MsgBlock, error) {
		return d.GetBlock(context.Background(), b1.BlockHash())
	})
	assert.Equal(t, b1.BlockHash(), sender.next(t).(*wire.MsgGetData).InvList[0].Hash)

	ch2 := async(func() (*wire.MsgBlock, error) {
		return d.GetBlock(context.Background(), b2.BlockHash())
	})

	// queued until the first resolves
	time.Sleep(20 * time.Millisecond)
	sender.assertIdle(t)

	d.OnBlock(b1)
	_, err := await(t, ch1)
	assert.Nil(t, err)

	assert.Equal(t, b2.BlockHash(), sender.next(t).(*wire.MsgGetData).InvList[0].Hash)
	d.OnBlock(b2)
	_, err = await(t, ch2)
	assert.Nil(t, err)
}

func TestDispatcherSubscriberPanicRecovered(t *testing.T) {
	d, _ := newTestDispatcher()
	defer d.Close()

	d.SubscribeReady(func() { panic("boom") })

	ready := make(chan struct{}, 1)
	d.SubscribeReady(func() { ready <- struct{}{} })

	select {
	case <-ready:
	case <-time.After(time.Second):
		assert.FailNow(t, "notifier stopped after panic")
	}
}
