package peer

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
)

// Network magic of Bitcoin SV, which shares genesis blocks with Bitcoin.
const (
	MagicMainNet wire.BitcoinNet = 0xe8f3e1e3
	MagicTestNet wire.BitcoinNet = 0xf4f3e5f4
	MagicRegTest wire.BitcoinNet = 0xfabfb5da
)

var networks = map[string]struct {
	params *chaincfg.Params
	magic  wire.BitcoinNet
}{
	"mainnet": {&chaincfg.MainNetParams, MagicMainNet},
	"testnet": {&chaincfg.TestNet3Params, MagicTestNet},
	"regtest": {&chaincfg.RegressionNetParams, MagicRegTest},
}

// Config holds the configurations of the upstream peer.
type Config struct {
	Address string `default:"127.0.0.1:8333"`
	Network string `default:"mainnet"`

	// Magic overrides the network magic if not zero.
	Magic uint32

	ProtocolVersion  uint32        `default:"70015"`
	UserAgentName    string        `default:"peerquery"`
	UserAgentVersion string        `default:"0.1.0"`
	DialTimeout      time.Duration `default:"10s"`
}

func DefaultConfig() (config Config) {
	defaults.SetDefaults(&config)
	return
}

// Params returns the chain params of the configured network with its wire magic.
func (config Config) Params() (*chaincfg.Params, error) {
	network, ok := networks[config.Network]
	if !ok {
		return nil, errors.Errorf("Unsupported network %v", config.Network)
	}

	params := *network.params
	params.Net = network.magic

	if config.Magic != 0 {
		params.Net = wire.BitcoinNet(config.Magic)
	}

	return &params, nil
}
