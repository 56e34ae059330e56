package rpc

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mcuadros/go-defaults"
	"github.com/peerquery/peerquery/store/leveldb"
	"github.com/peerquery/peerquery/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var _ HeaderIndex = (*leveldb.Store)(nil)

// ResolverConfig holds the configurations of block resolver.
type ResolverConfig struct {
	// CacheSize is the number of headers cached in memory.
	CacheSize int `default:"4096"`

	// MinConfirmations is the number of confirmations required to cache a header,
	// so that height to hash lookups are not affected by chain reorg.
	MinConfirmations int64 `default:"6"`
}

func DefaultResolverConfig() (config ResolverConfig) {
	defaults.SetDefaults(&config)
	return
}

// Resolver resolves block height, hash or header into a block header with height.
type Resolver struct {
	node   Interface
	index  HeaderIndex // optional
	config ResolverConfig

	hash2Header  *lru.Cache[string, types.Header]
	height2Hash  *lru.Cache[int64, string]
	lastResolved atomic.Pointer[types.Header]
}

// NewResolver creates a resolver with an optional persistent header index.
func NewResolver(node Interface, config ResolverConfig, index ...HeaderIndex) (*Resolver, error) {
	hash2Header, err := lru.New[string, types.Header](config.CacheSize)
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to create header cache")
	}

	height2Hash, err := lru.New[int64, string](config.CacheSize)
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to create height cache")
	}

	resolver := Resolver{
		node:        node,
		config:      config,
		hash2Header: hash2Header,
		height2Hash: height2Hash,
	}

	if len(index) > 0 && index[0] != nil {
		resolver.index = index[0]
	}

	return &resolver, nil
}

// Resolve resolves the given block id, and records the result as current.
//
// A height requires a hash lookup and a header lookup, a hash requires a header
// lookup only, while a header requires no RPC at all.
func (r *Resolver) Resolve(ctx context.Context, id types.BlockID) (types.Header, error) {
	var (
		header types.Header
		err    error
	)

	if h, ok := id.Header(); ok {
		header = *h
	} else if hash, ok := id.Hash(); ok {
		header, err = r.ResolveHash(ctx, hash)
	} else if height, ok := id.Height(); ok {
		header, err = r.ResolveHeight(ctx, height)
	} else {
		err = errors.New("Empty block id")
	}

	if err != nil {
		return types.Header{}, err
	}

	r.lastResolved.Store(&header)

	return header, nil
}

// Current returns the last resolved header if any.
func (r *Resolver) Current() (types.Header, bool) {
	if header := r.lastResolved.Load(); header != nil {
		return *header, true
	}

	return types.Header{}, false
}

// Height returns the height of the given block hash.
func (r *Resolver) Height(ctx context.Context, hash string) (int64, error) {
	header, err := r.ResolveHash(ctx, hash)
	if err != nil {
		return 0, err
	}

	return header.Height, nil
}

// Previous returns the hash of the block before the given one, and false for genesis.
//
// The wire protocol returns headers after the locator hash, so locating from the
// previous hash makes the given block itself included.
func (r *Resolver) Previous(ctx context.Context, id types.BlockID) (string, types.Header, bool, error) {
	header, err := r.Resolve(ctx, id)
	if err != nil {
		return "", types.Header{}, false, err
	}

	if header.Height == 0 {
		return "", header, false, nil
	}

	return header.PrevHash, header, true, nil
}

// ResolveHeight returns the main chain header at the given height.
func (r *Resolver) ResolveHeight(ctx context.Context, height int64) (types.Header, error) {
	if height < 0 {
		return types.Header{}, errors.Errorf("Invalid block height %v", height)
	}

	if hash, ok := r.height2Hash.Get(height); ok {
		return r.ResolveHash(ctx, hash)
	}

	if header, ok := r.loadIndex(func(index HeaderIndex) (*types.Header, error) {
		return index.GetHeaderByHeight(height)
	}); ok {
		return header, nil
	}

	hash, err := r.node.GetBlockHash(ctx, height)
	if err != nil {
		return types.Header{}, errors.WithMessagef(err, "Failed to get block hash at %v", height)
	}

	return r.ResolveHash(ctx, hash)
}

// ResolveHash returns the header of the given block hash.
func (r *Resolver) ResolveHash(ctx context.Context, hash string) (types.Header, error) {
	if header, ok := r.hash2Header.Get(hash); ok {
		rpcMetrics.ResolveHit().Inc(1)
		return header, nil
	}

	if header, ok := r.loadIndex(func(index HeaderIndex) (*types.Header, error) {
		return index.GetHeaderByHash(hash)
	}); ok {
		return header, nil
	}

	rpcMetrics.ResolveMiss().Inc(1)

	verbose, err := r.node.GetBlockHeader(ctx, hash)
	if err != nil {
		return types.Header{}, errors.WithMessagef(err, "Failed to get block header %v", hash)
	}

	header, err := types.NewHeaderFromVerbose(verbose)
	if err != nil {
		return types.Header{}, err
	}

	if verbose.Confirmations >= r.config.MinConfirmations {
		r.add(header, true)
	}

	return header, nil
}

func (r *Resolver) loadIndex(load func(index HeaderIndex) (*types.Header, error)) (types.Header, bool) {
	if r.index == nil {
		return types.Header{}, false
	}

	header, err := load(r.index)
	if err != nil {
		logrus.WithError(err).Warn("Failed to load header from index")
		return types.Header{}, false
	}

	if header == nil {
		return types.Header{}, false
	}

	rpcMetrics.ResolveHit().Inc(1)
	r.add(*header, false)

	return *header, true
}

func (r *Resolver) add(header types.Header, persist bool) {
	r.hash2Header.Add(header.Hash, header)
	r.height2Hash.Add(header.Height, header.Hash)

	if !persist || r.index == nil {
		return
	}

	if err := r.index.Write(header); err != nil {
		logrus.WithError(err).WithField("hash", header.Hash).Warn("Failed to write header into index")
	}
}
