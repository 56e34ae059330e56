package pipeline

import (
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/peerquery/peerquery/parse"
	"github.com/peerquery/peerquery/types"
	"github.com/pkg/errors"
)

// ErrParse indicates a parse strategy failure, which only fails the enclosing run.
var ErrParse = errors.New("parse error")

// Filter reports whether a parsed record should be kept.
type Filter func(record types.Record) bool

// Mapper transforms a parsed record into an arbitrary value.
type Mapper func(record types.Record) any

// Pipeline applies parse, filter and map to raw transactions in order.
type Pipeline struct {
	strategy parse.Strategy
	filter   Filter
	mapper   Mapper
}

// New creates a pipeline. Strategy defaults to hex if nil, while filter and mapper are optional.
func New(strategy parse.Strategy, filter Filter, mapper Mapper) *Pipeline {
	if strategy == nil {
		strategy, _ = parse.New(parse.DefaultStrategy)
	}

	return &Pipeline{strategy, filter, mapper}
}

func (p *Pipeline) parse(tx *wire.MsgTx, blk *types.BlockMeta) (types.Record, error) {
	record, err := p.strategy.Parse(tx, blk)
	if err != nil {
		return types.Record{}, errors.WithMessagef(ErrParse, "tx = %v, error = %v", tx.TxHash(), err)
	}

	return record, nil
}

func (p *Pipeline) transform(record types.Record) (types.Record, bool) {
	if p.filter != nil && !p.filter(record) {
		return types.Record{}, false
	}

	if p.mapper != nil {
		record = record.WithMapped(p.mapper(record))
	}

	return record, true
}

// Apply runs the pipeline for a single transaction, and returns false if filtered out.
func (p *Pipeline) Apply(tx *wire.MsgTx, blk *types.BlockMeta) (types.Record, bool, error) {
	record, err := p.parse(tx, blk)
	if err != nil {
		return types.Record{}, false, err
	}

	record, ok := p.transform(record)

	return record, ok, nil
}

// Run eagerly parses all the given transactions, and then applies filter and map in order.
func (p *Pipeline) Run(txs []*wire.MsgTx, blk *types.BlockMeta) ([]types.Record, error) {
	start := time.Now()

	parsed := make([]types.Record, 0, len(txs))
	for _, tx := range txs {
		record, err := p.parse(tx, blk)
		if err != nil {
			return nil, err
		}

		parsed = append(parsed, record)
	}

	result := parsed[:0]
	for _, v := range parsed {
		if record, ok := p.transform(v); ok {
			result = append(result, record)
		}
	}

	pipelineMetrics.Run().UpdateSince(start)
	pipelineMetrics.NumTxs().Update(int64(len(txs)))

	return result, nil
}
