package client

import (
	"context"
	"sync"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/peerquery/peerquery/dispatch"
	"github.com/peerquery/peerquery/parse"
	"github.com/peerquery/peerquery/peer"
	"github.com/peerquery/peerquery/pipeline"
	"github.com/peerquery/peerquery/rpc"
	"github.com/peerquery/peerquery/store"
	"github.com/peerquery/peerquery/store/file"
	"github.com/peerquery/peerquery/store/leveldb"
	"github.com/peerquery/peerquery/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrMissingCredentials is returned if RPC user or pass not configured.
	ErrMissingCredentials = rpc.ErrMissingCredentials

	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrCacheDisabled        = errors.New("chain cache disabled")
	ErrIndexDisabled        = errors.New("header index disabled")
)

// peerConn is the peer connection used by client.
type peerConn interface {
	dispatch.Sender

	Connect(ctx context.Context, handler peer.Handler) error
	Params() *chaincfg.Params
	Close()
}

// Client provides synchronous queries over a peer connection and the node RPC.
type Client struct {
	config Config

	node       rpc.Interface
	resolver   *rpc.Resolver
	index      store.HeaderIndex // optional
	cache      store.ChainCache  // optional
	conn       peerConn
	dispatcher *dispatch.Dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	// recently announced blocks for reorg check
	reorgMu sync.Mutex
	window  *hashWindow

	mu       sync.RWMutex
	strategy parse.Strategy
	filter   pipeline.Filter
	mapper   pipeline.Mapper
}

// New validates the config, and then connects to the node.
//
// Note, ErrMissingCredentials returned if RPC credentials not configured, in
// which case no connection attempted.
func New(ctx context.Context, config Config) (*Client, error) {
	if err := config.RPC.Validate(); err != nil {
		return nil, err
	}

	node, err := rpc.NewClient(config.RPC)
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to create RPC client")
	}

	conn, err := peer.NewConn(config.Peer)
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to create peer connection")
	}

	return newClient(ctx, config, node, conn)
}

// newStrategy creates the configured parse strategy, where the bpu strategy
// requires the split config.
func newStrategy(config Config, params *chaincfg.Params) (parse.Strategy, error) {
	if config.Parser != "bpu" {
		return parse.New(config.Parser)
	}

	if config.Bpu == nil {
		return nil, errors.New("Split config of bpu parser required")
	}

	bpu := *config.Bpu
	if bpu.Params == nil {
		bpu.Params = params
	}

	return parse.New(config.Parser, bpu)
}

func newClient(ctx context.Context, config Config, node rpc.Interface, conn peerConn) (*Client, error) {
	strategy, err := newStrategy(config, conn.Params())
	if err != nil {
		return nil, err
	}

	c := Client{
		config:   config,
		node:     node,
		conn:     conn,
		strategy: strategy,
		window:   newHashWindow(max(config.ReorgWindow, 1)),
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())

	if err = c.open(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return &c, nil
}

func (c *Client) open(ctx context.Context) error {
	var index rpc.HeaderIndex

	if c.config.Index.Enabled {
		db, err := leveldb.NewStore(c.config.Index.Config)
		if err != nil {
			return errors.WithMessage(err, "Failed to open header index")
		}

		c.index, index = db, db

		logrus.WithField("path", c.config.Index.Path).Info("Header index opened")
	}

	resolver, err := rpc.NewResolver(c.node, c.config.Resolver, index)
	if err != nil {
		return err
	}
	c.resolver = resolver

	if c.config.Cache.Enabled {
		cache, err := file.NewStore(c.config.Cache.Config)
		if err != nil {
			return errors.WithMessage(err, "Failed to open chain cache")
		}

		c.cache = cache

		logrus.WithField("config", c.config.Cache).Info("Chain cache opened")
	}

	c.dispatcher = dispatch.New(c.conn, c.config.Dispatch)
	c.dispatcher.UseBlockGuard(c.fetchOversized)

	if err = c.conn.Connect(ctx, c.dispatcher); err != nil {
		return errors.WithMessage(err, "Failed to connect peer")
	}

	return nil
}

// Ready returns a channel that is closed once the peer handshake completes.
func (c *Client) Ready() <-chan struct{} {
	return c.dispatcher.Ready()
}

// Done returns a channel that is closed once the peer connection is closed.
func (c *Client) Done() <-chan struct{} {
	return c.dispatcher.Done()
}

// Params returns the chain params of the connected network.
func (c *Client) Params() *chaincfg.Params {
	return c.conn.Params()
}

// Close disconnects the peer and releases all resources.
func (c *Client) Close() error {
	c.cancel()

	if c.conn != nil {
		c.conn.Close()
	}

	if c.dispatcher != nil {
		c.dispatcher.Close()
	}

	if c.index != nil {
		return c.index.Close()
	}

	return nil
}

// UseParser selects a registered parse strategy by name with an optional argument.
func (c *Client) UseParser(name string, arg ...any) error {
	strategy, err := parse.New(name, arg...)
	if err != nil {
		return err
	}

	c.UseParseFunc(strategy)

	return nil
}

// UseParseFunc sets a custom parse strategy.
func (c *Client) UseParseFunc(strategy parse.Strategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategy = strategy
}

// UseFilter sets the filter to exclude parsed records, or nil to keep all.
func (c *Client) UseFilter(filter pipeline.Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = filter
}

// UseMap sets the mapper to attach to parsed records, or nil to disable.
func (c *Client) UseMap(mapper pipeline.Mapper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mapper = mapper
}

func (c *Client) pipeline() *pipeline.Pipeline {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return pipeline.New(c.strategy, c.filter, c.mapper)
}

// GetInfo returns the node blockchain status.
func (c *Client) GetInfo(ctx context.Context) (*btcjson.GetBlockChainInfoResult, error) {
	return c.node.GetBlockchainInfo(ctx)
}

// CallRPC passes the call through to the node, and rpc.ErrUnsupportedMethod
// returned for unknown method.
func (c *Client) CallRPC(ctx context.Context, method string, args ...any) (types.Lazy[any], error) {
	return c.node.Call(ctx, method, args...)
}

// Invalidate deletes the cached block entries in the given range.
func (c *Client) Invalidate(r types.Range) error {
	if c.cache == nil {
		return ErrCacheDisabled
	}

	return c.cache.Invalidate(r)
}

// Prune retains the given number of most recent cached blocks, or the configured
// retention count if not specified.
func (c *Client) Prune(count ...int) error {
	if c.cache == nil {
		return ErrCacheDisabled
	}

	if len(count) > 0 {
		return c.cache.Prune(count[0])
	}

	return c.cache.AutoPrune()
}
