package dispatch

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
)

func TestHeaderPaginatorStop(t *testing.T) {
	chain := makeChain(5)
	stop := chain[2].BlockHash()

	p := NewHeaderPaginator(chain[0].BlockHash(), &stop)
	assert.False(t, p.Done())

	step, next := p.Handle(headersMsg(chain[1], chain[2], chain[3]))
	assert.Equal(t, StepComplete, step)
	assert.Nil(t, next)
	assert.True(t, p.Done())
	assert.Equal(t, 2, len(p.Headers()))

	// no more batches accepted
	step, _ = p.Handle(headersMsg(chain[4]))
	assert.Equal(t, StepIgnored, step)
}

func TestHeaderPaginatorContinue(t *testing.T) {
	chain := makeChain(5)
	p := NewHeaderPaginator(chain[0].BlockHash(), nil)

	step, next := p.Handle(headersMsg(chain[1], chain[2]))
	assert.Equal(t, StepContinue, step)
	assert.Equal(t, chain[2].BlockHash(), *next.BlockLocatorHashes[0])

	step, _ = p.Handle(headersMsg(chain[3], chain[4]))
	assert.Equal(t, StepContinue, step)

	step, _ = p.Handle(headersMsg())
	assert.Equal(t, StepComplete, step)

	headers := p.Headers()
	assert.Equal(t, 4, len(headers))
	for i := 1; i < len(headers); i++ {
		assert.Equal(t, headers[i-1].BlockHash(), headers[i].PrevBlock)
	}
}

func TestHeaderPaginatorEmptyInitialBatch(t *testing.T) {
	chain := makeChain(2)
	p := NewHeaderPaginator(chain[1].BlockHash(), nil)

	step, _ := p.Handle(headersMsg())
	assert.Equal(t, StepComplete, step)
	assert.Empty(t, p.Headers())
}

func TestHeaderPaginatorUnlinked(t *testing.T) {
	chain := makeChain(4)
	p := NewHeaderPaginator(chain[0].BlockHash(), nil)

	step, _ := p.Handle(headersMsg(chain[2], chain[3]))
	assert.Equal(t, StepIgnored, step)
	assert.False(t, p.Done())

	// chain breaks within batch
	step, _ = p.Handle(headersMsg(chain[1], orphanHeader()))
	assert.Equal(t, StepComplete, step)
	assert.Equal(t, 1, len(p.Headers()))
}

func TestHeaderPaginatorGenesisSeed(t *testing.T) {
	chain := makeChain(3)
	genesis := chain[0].BlockHash()

	p := NewHeaderPaginator(genesis, nil, chain[0])
	assert.Equal(t, genesis, *p.Request().BlockLocatorHashes[0])

	step, _ := p.Handle(headersMsg(chain[1], chain[2]))
	assert.Equal(t, StepContinue, step)
	p.Handle(headersMsg())

	headers := p.Headers()
	assert.Equal(t, 3, len(headers))
	assert.Equal(t, genesis, headers[0].BlockHash())

	// genesis only
	p = NewHeaderPaginator(genesis, &genesis, chain[0])
	assert.True(t, p.Done())
	assert.Equal(t, []wire.BlockHeader{*chain[0]}, p.Headers())
}

func TestMempoolCollector(t *testing.T) {
	c := NewMempoolCollector()
	assert.False(t, c.Armed())
	assert.False(t, c.Complete())

	tx1, tx2, tx3 := newTx(1), newTx(2), newTx(3)

	assert.True(t, c.Arm([]chainhash.Hash{tx1.TxHash(), tx2.TxHash(), tx3.TxHash(), tx1.TxHash()}))
	assert.Equal(t, 3, c.Expected())

	// arms only once
	assert.False(t, c.Arm(nil))

	assert.False(t, c.Add(newTx(4)))
	assert.True(t, c.Add(tx2))
	assert.False(t, c.Add(tx2))
	assert.True(t, c.Drop(tx3.TxHash()))
	assert.False(t, c.Drop(tx3.TxHash()))
	assert.False(t, c.Complete())

	assert.True(t, c.Add(tx1))
	assert.True(t, c.Complete())
	assert.Equal(t, []*wire.MsgTx{tx2, tx1}, c.Collected())
}
