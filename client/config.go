package client

import (
	"github.com/mcuadros/go-defaults"
	"github.com/peerquery/peerquery/dispatch"
	"github.com/peerquery/peerquery/parse"
	"github.com/peerquery/peerquery/peer"
	"github.com/peerquery/peerquery/rpc"
	"github.com/peerquery/peerquery/store"
	"github.com/peerquery/peerquery/store/file"
	"github.com/peerquery/peerquery/store/leveldb"
)

// CacheConfig enables the on-disk chain cache of raw transactions.
type CacheConfig struct {
	Enabled     bool
	file.Config `mapstructure:",squash"`
}

// IndexConfig enables the persistent header index of confirmed blocks.
type IndexConfig struct {
	Enabled        bool
	leveldb.Config `mapstructure:",squash"`

	Writer store.BatchWriteOption
}

type Config struct {
	RPC      rpc.Config
	Resolver rpc.ResolverConfig
	Peer     peer.Config
	Dispatch dispatch.Config
	Cache    CacheConfig
	Index    IndexConfig

	// Parser is the name of the default parse strategy.
	Parser string `default:"hex"`

	// Bpu is the split config of the bpu parser.
	Bpu *parse.BpuConfig

	// ReorgWindow is the number of recently announced blocks tracked to
	// invalidate reorged blocks in chain cache.
	ReorgWindow int `default:"64"`
}

func DefaultConfig() (config Config) {
	defaults.SetDefaults(&config)

	if len(config.Parser) == 0 {
		config.Parser = parse.DefaultStrategy
	}

	return
}
