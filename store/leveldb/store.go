package leveldb

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/mcuadros/go-defaults"
	"github.com/peerquery/peerquery/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	dberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var keyLatestHeight = []byte("latestHeight")

// Config holds the configurations for LevelDB database.
type Config struct {
	// LevelDB database path.
	Path string `default:"index"`
}

func DefaultConfig() (config Config) {
	defaults.SetDefaults(&config)
	return
}

// Store is a persistent index of main chain block headers.
type Store struct {
	db *leveldb.DB

	// use object pool for memory saving
	keyHash2HeaderPool *KeyPool
	keyHeight2HashPool *KeyPool

	metrics Metrics
}

// NewStore opens or creates a DB for the given path.
//
// If corruption detected for an existing DB, it will try to recover the DB.
func NewStore(config Config, options ...opt.Options) (*Store, error) {
	var opt *opt.Options
	if len(options) > 0 {
		opt = &options[0]
	}

	// open or create database
	db, err := leveldb.OpenFile(config.Path, opt)
	if dberrors.IsCorrupted(err) {
		// try to recover database
		logrus.WithError(err).WithField("path", config.Path).Warn("Failed to open corrupted file, try to recover")
		db, err = leveldb.RecoverFile(config.Path, opt)
		if err != nil {
			return nil, errors.WithMessagef(err, "Failed to recover file %v", config.Path)
		}
	} else if err != nil {
		return nil, errors.WithMessagef(err, "Failed to open file %v", config.Path)
	}

	return &Store{
		db:                 db,
		keyHash2HeaderPool: NewKeyPool("h2h", 32),
		keyHeight2HashPool: NewKeyPool("n2h", 8),
	}, nil
}

// Close closes the underlying LevelDB database.
func (store *Store) Close() error {
	return store.db.Close()
}

// Write writes the given headers in batch. Headers of unknown height are not allowed.
func (store *Store) Write(headers ...types.Header) error {
	if len(headers) == 0 {
		return nil
	}

	start := time.Now()
	batch := new(leveldb.Batch)

	latest, _, err := store.LatestHeight()
	if err != nil {
		return err
	}

	for _, v := range headers {
		if v.Height < 0 {
			return errors.Errorf("Header height unknown, hash = %v", v.Hash)
		}

		hash, err := v.BlockHash()
		if err != nil {
			return errors.WithMessagef(err, "Invalid header hash %v", v.Hash)
		}

		// block hash -> header
		store.writeJson(batch, store.keyHash2HeaderPool, hash[:], v)

		// block height -> block hash
		store.write(batch, store.keyHeight2HashPool, heightKey(v.Height), hash[:])

		latest = max(latest, v.Height)
	}

	batch.Put(keyLatestHeight, heightKey(latest))

	if err := store.db.Write(batch, nil); err != nil {
		return errors.WithMessage(err, "Failed to write headers")
	}

	store.metrics.Latest().Update(latest)
	store.metrics.Write().UpdateSince(start)

	return nil
}

// LatestHeight returns the highest indexed block height if any.
func (store *Store) LatestHeight() (int64, bool, error) {
	height, ok, err := store.readUint64(keyLatestHeight)
	if err != nil || !ok {
		return 0, false, err
	}

	return int64(height), true, nil
}

// DeleteFrom deletes all indexed headers from the given height, e.g. upon chain reorg.
func (store *Store) DeleteFrom(height int64) error {
	latest, ok, err := store.LatestHeight()
	if err != nil || !ok || latest < height {
		return err
	}

	startKey := store.keyHeight2HashPool.Get(heightKey(height))
	defer store.keyHeight2HashPool.Put(startKey)

	iter := store.db.NewIterator(&util.Range{
		Start: *startKey,
		Limit: util.BytesPrefix([]byte("n2h")).Limit,
	}, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
		store.delete(batch, store.keyHash2HeaderPool, iter.Value())
	}

	if err := iter.Error(); err != nil {
		return errors.WithMessage(err, "Failed to iterate headers")
	}

	if height > 0 {
		batch.Put(keyLatestHeight, heightKey(height-1))
	} else {
		batch.Delete(keyLatestHeight)
	}

	if err := store.db.Write(batch, nil); err != nil {
		return errors.WithMessage(err, "Failed to delete headers")
	}

	store.metrics.Latest().Update(height - 1)

	return nil
}

// GetHeaderByHash returns the indexed header for the given block hash. If not found, returns nil.
func (store *Store) GetHeaderByHash(hash string) (*types.Header, error) {
	h, err := chainhash.NewHashFromStr(hash)
	if err != nil {
		return nil, errors.WithMessagef(err, "Invalid block hash %v", hash)
	}

	var header types.Header
	ok, err := store.readJson(store.keyHash2HeaderPool, h[:], &header)
	if err != nil || !ok {
		return nil, err
	}

	return &header, nil
}

// GetHeaderByHeight returns the indexed header for the given block height. If not found, returns nil.
func (store *Store) GetHeaderByHeight(height int64) (*types.Header, error) {
	hash, ok, err := store.read(store.keyHeight2HashPool, heightKey(height), chainhash.HashSize)
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to get block hash by height")
	}

	if !ok {
		return nil, nil
	}

	var header types.Header
	if ok, err = store.readJson(store.keyHash2HeaderPool, hash, &header); err != nil || !ok {
		return nil, err
	}

	return &header, nil
}
