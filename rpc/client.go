package rpc

import (
	"context"
	"encoding/hex"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/mcuadros/go-defaults"
	providers "github.com/openweb3/go-rpc-provider/provider_wrapper"
	"github.com/peerquery/peerquery/types"
	"github.com/pkg/errors"
)

var (
	_ Interface = (*Client)(nil)

	ErrMissingCredentials = errors.New("rpc user and pass required")
)

// Config holds the configurations to connect the node JSON-RPC endpoint.
type Config struct {
	Host string `default:"127.0.0.1"`
	Port int    `default:"8332"`
	User string
	Pass string

	RequestTimeout time.Duration `default:"30s"`
	RetryCount     int
	RetryInterval  time.Duration `default:"1s"`

	// ExtraMethods are additional method names allowed for passthrough calls.
	ExtraMethods []string
}

func DefaultConfig() (config Config) {
	defaults.SetDefaults(&config)
	return
}

// Validate checks the required credentials.
func (config Config) Validate() error {
	if len(config.User) == 0 || len(config.Pass) == 0 {
		return ErrMissingCredentials
	}

	return nil
}

// URL returns the endpoint URL with credentials for HTTP basic auth.
func (config Config) URL() string {
	u := url.URL{
		Scheme: "http",
		User:   url.UserPassword(config.User, config.Pass),
		Host:   net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
	}

	return u.String()
}

// Client is the RPC client to interact with the node.
type Client struct {
	*providers.MiddlewarableProvider

	endpoint string
	methods  methodRegistry
}

// NewClient creates a new client instance. Note, no connection is attempted if credentials missing.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	provider, err := providers.NewProviderWithOption(config.URL(), providers.Option{
		RetryCount:     config.RetryCount,
		RetryInterval:  config.RetryInterval,
		RequestTimeout: config.RequestTimeout,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to create RPC provider")
	}

	return &Client{
		MiddlewarableProvider: provider,
		endpoint:              net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		methods:               newMethodRegistry(config.ExtraMethods...),
	}, nil
}

// String returns the endpoint of RPC server without credentials.
func (c *Client) String() string {
	return c.endpoint
}

func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	start := time.Now()

	err := c.CallContext(ctx, result, method, args...)

	rpcMetrics.Call(method).UpdateSince(start)

	if isMethodNotFoundError(err) {
		return errors.WithMessagef(ErrUnsupportedMethod, "method = %v", method)
	}

	if err != nil {
		rpcMetrics.Errors(method).Inc(1)
		return errors.WithMessagef(err, "Failed to call %v", method)
	}

	return nil
}

func (c *Client) GetBlockHash(ctx context.Context, height int64) (string, error) {
	var hash string
	err := c.call(ctx, &hash, "getblockhash", height)
	return hash, err
}

func (c *Client) GetBlockHeader(ctx context.Context, hash string) (*btcjson.GetBlockHeaderVerboseResult, error) {
	var header btcjson.GetBlockHeaderVerboseResult
	if err := c.call(ctx, &header, "getblockheader", hash, true); err != nil {
		return nil, err
	}

	return &header, nil
}

func (c *Client) GetBlockSize(ctx context.Context, hash string) (int64, error) {
	var block struct {
		Size int64 `json:"size"`
	}

	if err := c.call(ctx, &block, "getblock", hash, 1); err != nil {
		return 0, err
	}

	return block.Size, nil
}

func (c *Client) GetRawBlock(ctx context.Context, hash string) ([]byte, error) {
	var encoded string
	if err := c.call(ctx, &encoded, "getblock", hash, 0); err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, errors.WithMessagef(err, "Invalid raw block %v", hash)
	}

	return raw, nil
}

func (c *Client) GetMempoolInfo(ctx context.Context) (*btcjson.GetMempoolInfoResult, error) {
	var info btcjson.GetMempoolInfoResult
	if err := c.call(ctx, &info, "getmempoolinfo"); err != nil {
		return nil, err
	}

	return &info, nil
}

func (c *Client) GetBlockchainInfo(ctx context.Context) (*btcjson.GetBlockChainInfoResult, error) {
	var info btcjson.GetBlockChainInfoResult
	if err := c.call(ctx, &info, "getblockchaininfo"); err != nil {
		return nil, err
	}

	return &info, nil
}

// Call invokes the given method if supported, e.g. getRawTransaction or getrawtransaction.
func (c *Client) Call(ctx context.Context, method string, args ...any) (types.Lazy[any], error) {
	var result types.Lazy[any]

	name, err := c.methods.normalize(method)
	if err != nil {
		return result, err
	}

	err = c.call(ctx, &result, name, args...)

	return result, err
}
