package parse

import (
	"sort"
	"sync"

	"github.com/btcsuite/btcd/wire"
	"github.com/peerquery/peerquery/types"
	"github.com/pkg/errors"
)

// DefaultStrategy is used when no strategy is configured.
const DefaultStrategy = "hex"

var ErrUnknownStrategy = errors.New("unknown parse strategy")

// Strategy decomposes a raw transaction into a structured record.
type Strategy interface {
	// Parse parses the given transaction, which is optionally included in a block.
	Parse(tx *wire.MsgTx, blk *types.BlockMeta) (types.Record, error)
}

// StrategyFunc is an adapter to allow the use of ordinary functions as parse strategy.
type StrategyFunc func(tx *wire.MsgTx, blk *types.BlockMeta) (types.Record, error)

func (f StrategyFunc) Parse(tx *wire.MsgTx, blk *types.BlockMeta) (types.Record, error) {
	return f(tx, blk)
}

// Constructor creates a strategy with an optional strategy specific argument.
type Constructor func(arg any) (Strategy, error)

var (
	mu       sync.RWMutex
	registry = map[string]Constructor{}
)

func init() {
	Register("hex", newHexStrategy)
	Register("txo", newTxoStrategy)
	Register("bpu", newBpuStrategy)
	Register("bob", newBobStrategy)
}

// Register registers a named strategy, and overrides the existing one if any.
func Register(name string, constructor Constructor) {
	mu.Lock()
	defer mu.Unlock()

	registry[name] = constructor
}

// New creates a registered strategy by name.
func New(name string, arg ...any) (Strategy, error) {
	mu.RLock()
	constructor, ok := registry[name]
	mu.RUnlock()

	if !ok {
		return nil, errors.WithMessagef(ErrUnknownStrategy, "name = %v", name)
	}

	var v any
	if len(arg) > 0 {
		v = arg[0]
	}

	strategy, err := constructor(v)
	if err != nil {
		return nil, errors.WithMessagef(err, "Failed to create %v strategy", name)
	}

	return strategy, nil
}

// Names returns the sorted names of all registered strategies.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}
