package parse

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/peerquery/peerquery/types"
	"github.com/stretchr/testify/assert"
)

func mustScript(t *testing.T, builder *txscript.ScriptBuilder) []byte {
	script, err := builder.Script()
	assert.Nil(t, err)
	return script
}

func createTestTx(t *testing.T, outputs ...[]byte) *wire.MsgTx {
	tx := wire.NewMsgTx(1)

	prev := chainhash.DoubleHashH([]byte("prev"))
	sig := mustScript(t, txscript.NewScriptBuilder().
		AddData(make([]byte, 71)).
		AddData(append([]byte{0x02}, make([]byte, 32)...)))
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prev, 3), sig, nil))

	for _, v := range outputs {
		tx.AddTxOut(wire.NewTxOut(546, v))
	}

	return tx
}

func createTestOpReturn(t *testing.T, pushes ...string) []byte {
	builder := txscript.NewScriptBuilder().AddOp(txscript.OP_FALSE).AddOp(txscript.OP_RETURN)
	for _, v := range pushes {
		builder.AddData([]byte(v))
	}

	return mustScript(t, builder)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"bob", "bpu", "hex", "txo"}, Names())

	_, err := New("unknown")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	// bpu requires split config
	_, err = New("bpu")
	assert.Error(t, err)

	_, err = New("bpu", BpuConfig{Split: []SplitRule{{Include: IncludeLeft}}})
	assert.Error(t, err)

	_, err = New("txo", "mainnet")
	assert.Error(t, err)

	strategy, err := New("hex")
	assert.Nil(t, err)
	assert.NotNil(t, strategy)
}

func TestHexStrategy(t *testing.T) {
	tx := createTestTx(t, createTestOpReturn(t, "hello"))

	strategy, err := New("hex")
	assert.Nil(t, err)

	blk := &types.BlockMeta{I: 600000, H: "00ab", T: 1571443461}
	record, err := strategy.Parse(tx, blk)
	assert.Nil(t, err)
	assert.Equal(t, tx.TxHash().String(), record.Tx.H)
	assert.Equal(t, blk, record.Blk)
	assert.Same(t, tx, record.Raw())

	decoded, err := DecodeTx(record.Tx.R)
	assert.Nil(t, err)
	assert.Equal(t, tx.TxHash(), decoded.TxHash())

	_, err = DecodeTx("zz")
	assert.Error(t, err)
}

func TestTxoStrategy(t *testing.T) {
	pkHash := make([]byte, 20)
	addr, err := btcutil.NewAddressPubKeyHash(pkHash, &chaincfg.MainNetParams)
	assert.Nil(t, err)
	p2pkh, err := txscript.PayToAddrScript(addr)
	assert.Nil(t, err)

	tx := createTestTx(t, p2pkh, createTestOpReturn(t, "hello", "world"))

	strategy, err := New("txo")
	assert.Nil(t, err)

	record, err := strategy.Parse(tx, nil)
	assert.Nil(t, err)
	assert.Nil(t, record.Blk)

	// input
	assert.Len(t, record.In, 1)
	assert.Equal(t, chainhash.DoubleHashH([]byte("prev")).String(), record.In[0].E.H)
	assert.Equal(t, uint32(3), record.In[0].E.I)
	assert.NotEmpty(t, record.In[0].E.A)
	assert.Len(t, record.In[0].Cell, 2)

	// p2pkh output
	assert.Len(t, record.Out, 2)
	assert.Equal(t, addr.EncodeAddress(), record.Out[0].E.A)
	assert.Equal(t, int64(546), *record.Out[0].E.V)
	assert.Equal(t, "OP_DUP", record.Out[0].Cell[0].Ops)

	// op_return output
	cells := record.Out[1].Cell
	assert.Len(t, cells, 4)
	assert.Equal(t, "OP_0", cells[0].Ops)
	assert.Equal(t, byte(txscript.OP_RETURN), *cells[1].Op)
	assert.Equal(t, "hello", cells[2].S)
	assert.Equal(t, "68656c6c6f", cells[2].H)
	assert.Equal(t, "aGVsbG8=", cells[2].B)
	assert.Equal(t, 3, cells[3].II)
	assert.Empty(t, record.Out[1].E.A)
}

func TestDecomposeMalformed(t *testing.T) {
	// OP_PUSHDATA1 announces 10 bytes but only 2 follow
	script := []byte{txscript.OP_RETURN, txscript.OP_PUSHDATA1, 10, 0x01, 0x02}

	cells := decompose(script, 0)
	assert.Len(t, cells, 2)
	assert.Equal(t, "OP_RETURN", cells[0].Ops)
	assert.Equal(t, "4c0a0102", cells[1].H)
}

func TestBobStrategy(t *testing.T) {
	script := createTestOpReturn(t, "19HxigV4QyBv3tHpQVcUEQyq1pzZVdoAut", "hello", "|", "1PuQa7K62MiKCtssSLKy1kh56WWU7MtUR5", "SET")
	tx := createTestTx(t, script)

	strategy, err := New("bob")
	assert.Nil(t, err)

	record, err := strategy.Parse(tx, nil)
	assert.Nil(t, err)

	tapes := record.Out[0].Tape
	assert.Len(t, tapes, 3)

	// OP_RETURN kept in the left tape
	assert.Len(t, tapes[0].Cell, 2)
	assert.Equal(t, "OP_RETURN", tapes[0].Cell[1].Ops)

	// pipe dropped
	assert.Len(t, tapes[1].Cell, 2)
	assert.Equal(t, "19HxigV4QyBv3tHpQVcUEQyq1pzZVdoAut", tapes[1].Cell[0].S)
	assert.Equal(t, 0, tapes[1].Cell[0].I)
	assert.Equal(t, 2, tapes[1].Cell[0].II)

	assert.Equal(t, 2, tapes[2].I)
	assert.Equal(t, "SET", tapes[2].Cell[1].S)
	assert.Equal(t, 1, tapes[2].Cell[1].I)
	assert.Equal(t, 6, tapes[2].Cell[1].II)
}

func TestBobLargePush(t *testing.T) {
	large := strings.Repeat("a", 600)
	script := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_FALSE).
		AddOp(txscript.OP_RETURN).
		AddFullData([]byte(large)))
	tx := createTestTx(t, script)

	strategy, err := New("bob")
	assert.Nil(t, err)

	record, err := strategy.Parse(tx, nil)
	assert.Nil(t, err)

	cell := record.Out[0].Tape[1].Cell[0]
	assert.Empty(t, cell.S)
	assert.Equal(t, large, cell.LS)
	assert.NotEmpty(t, cell.LB)
	assert.NotEmpty(t, cell.LH)
}

func TestBpuIncludeRight(t *testing.T) {
	sep := "#"
	strategy, err := New("bpu", BpuConfig{
		Split: []SplitRule{{Token: Token{S: &sep}, Include: IncludeRight}},
	})
	assert.Nil(t, err)

	tx := createTestTx(t, createTestOpReturn(t, "a", "#", "b"))
	record, err := strategy.Parse(tx, nil)
	assert.Nil(t, err)

	tapes := record.Out[0].Tape
	assert.Len(t, tapes, 2)
	assert.Len(t, tapes[0].Cell, 3)
	assert.Equal(t, "#", tapes[1].Cell[0].S)
	assert.Equal(t, "b", tapes[1].Cell[1].S)
}

func TestStrategyFunc(t *testing.T) {
	var called bool
	strategy := StrategyFunc(func(tx *wire.MsgTx, blk *types.BlockMeta) (types.Record, error) {
		called = true
		return types.NewRecord(tx, blk), nil
	})

	Register("custom", func(any) (Strategy, error) { return strategy, nil })

	custom, err := New("custom")
	assert.Nil(t, err)

	_, err = custom.Parse(createTestTx(t), nil)
	assert.Nil(t, err)
	assert.True(t, called)
}
