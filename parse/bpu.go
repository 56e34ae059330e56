package parse

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/peerquery/peerquery/types"
	"github.com/pkg/errors"
)

// Where the delimiter token goes when splitting.
const (
	IncludeNone  = ""  // dropped
	IncludeLeft  = "l" // last cell of the left tape
	IncludeRight = "r" // first cell of the right tape
)

// Token matches a script token by pushed data or opcode.
type Token struct {
	S  *string `json:"s,omitempty"`
	Op *byte   `json:"op,omitempty"`
}

func (t Token) match(cell types.Cell, data []byte) bool {
	if t.Op != nil {
		return cell.Op != nil && *cell.Op == *t.Op
	}

	if t.S != nil {
		return cell.Op == nil && bytes.Equal(data, []byte(*t.S))
	}

	return false
}

// SplitRule splits a script into tapes at the matched token.
type SplitRule struct {
	Token   Token  `json:"token"`
	Include string `json:"include,omitempty"`
}

// BpuConfig configures how scripts are split into tapes.
type BpuConfig struct {
	Split []SplitRule

	// pushes larger than this are stored in the large fields, 0 to disable
	Large int

	// chain params to encode addresses, main net by default
	Params *chaincfg.Params
}

func (config BpuConfig) validate() error {
	for i, v := range config.Split {
		if v.Token.S == nil && v.Token.Op == nil {
			return errors.Errorf("Empty token of split rule %v", i)
		}

		switch v.Include {
		case IncludeNone, IncludeLeft, IncludeRight:
		default:
			return errors.Errorf("Invalid include %q of split rule %v", v.Include, i)
		}
	}

	return nil
}

// BobConfig returns the config of bob schema, which splits on the "|" push and
// on OP_RETURN, keeping OP_RETURN in the left tape.
func BobConfig() BpuConfig {
	pipe := "|"
	opReturn := byte(txscript.OP_RETURN)

	return BpuConfig{
		Split: []SplitRule{
			{Token: Token{S: &pipe}},
			{Token: Token{Op: &opReturn}, Include: IncludeLeft},
		},
		Large: 512,
	}
}

type bpuStrategy struct {
	config BpuConfig
}

func newBpuStrategy(arg any) (Strategy, error) {
	var config BpuConfig

	switch v := arg.(type) {
	case BpuConfig:
		config = v
	case *BpuConfig:
		if v == nil {
			return nil, errors.New("Split config required")
		}
		config = *v
	default:
		return nil, errors.Errorf("Split config required, got %T", arg)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	if config.Params == nil {
		config.Params = &chaincfg.MainNetParams
	}

	return &bpuStrategy{config}, nil
}

func newBobStrategy(arg any) (Strategy, error) {
	config := BobConfig()

	if arg != nil {
		params, err := paramsOf(arg)
		if err != nil {
			return nil, err
		}

		config.Params = params
	}

	return newBpuStrategy(config)
}

func (s *bpuStrategy) Parse(tx *wire.MsgTx, blk *types.BlockMeta) (types.Record, error) {
	record := types.NewRecord(tx, blk)
	record.Lock = tx.LockTime

	record.In = make([]types.IO, 0, len(tx.TxIn))
	for i, in := range tx.TxIn {
		record.In = append(record.In, types.IO{
			I:    i,
			Seq:  in.Sequence,
			Tape: s.tapes(in.SignatureScript),
			E:    inputEdge(in, s.config.Params),
		})
	}

	record.Out = make([]types.IO, 0, len(tx.TxOut))
	for i, out := range tx.TxOut {
		record.Out = append(record.Out, types.IO{
			I:    i,
			Tape: s.tapes(out.PkScript),
			E:    outputEdge(i, out, s.config.Params),
		})
	}

	return record, nil
}

// tapes splits the decomposed script by the configured rules.
func (s *bpuStrategy) tapes(script []byte) []types.Tape {
	cells := decompose(script, 0)
	tapes := make([]types.Tape, 0, 2)

	var current []types.Cell

	flush := func() {
		if len(current) == 0 {
			return
		}

		for i := range current {
			current[i].I = i
		}

		tapes = append(tapes, types.Tape{I: len(tapes), Cell: current})
		current = nil
	}

	for _, cell := range cells {
		data := cellData(cell)
		rule, ok := s.match(cell, data)

		// apply large threshold after matching on the original payload
		if cell.Op == nil && s.config.Large > 0 && len(data) > s.config.Large {
			ii := cell.II
			cell = newDataCell(data, s.config.Large)
			cell.II = ii
		}

		if !ok {
			current = append(current, cell)
			continue
		}

		switch rule.Include {
		case IncludeLeft:
			current = append(current, cell)
			flush()
		case IncludeRight:
			flush()
			current = append(current, cell)
		default:
			flush()
		}
	}

	flush()

	return tapes
}

func (s *bpuStrategy) match(cell types.Cell, data []byte) (SplitRule, bool) {
	for _, v := range s.config.Split {
		if v.Token.match(cell, data) {
			return v, true
		}
	}

	return SplitRule{}, false
}

// cellData returns the pushed data of a data cell decomposed without large threshold.
func cellData(cell types.Cell) []byte {
	if cell.Op != nil {
		return nil
	}

	return []byte(cell.S)
}
