package file

import (
	"bufio"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/goccy/go-json"
	"github.com/mcuadros/go-defaults"
	"github.com/peerquery/peerquery/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	extLog     = ".tx"
	extSidecar = ".json"
	extTemp    = ".tmp"
)

// Config holds the configurations for the chain cache.
type Config struct {
	// Cache directory path.
	Path string `default:"cache"`

	// Retain is the number of block entries retained after each block write, 0 for unlimited.
	Retain int
}

func DefaultConfig() (config Config) {
	defaults.SetDefaults(&config)
	return
}

// BlockKey returns the cache key of the block at the given height.
func BlockKey(height int64) string {
	return strconv.FormatInt(height, 10)
}

type sidecar struct {
	Sync bool `json:"sync"`
}

// Store persists raw transactions of blocks and mempool snapshots on disk.
//
// Each entry consists of a newline delimited hex transaction log K.tx, and a
// sidecar K.json that indicates whether the log has been completely written.
type Store struct {
	path   string
	retain int

	mu    sync.Mutex
	locks map[string]*sync.RWMutex

	metrics Metrics
}

// NewStore opens or creates the cache directory.
func NewStore(config Config) (*Store, error) {
	if len(config.Path) == 0 {
		return nil, errors.New("Cache path not specified")
	}

	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, errors.WithMessagef(err, "Failed to create cache directory %v", config.Path)
	}

	return &Store{
		path:   config.Path,
		retain: config.Retain,
		locks:  make(map[string]*sync.RWMutex),
	}, nil
}

func (store *Store) String() string {
	return store.path
}

func (store *Store) lock(key string) *sync.RWMutex {
	store.mu.Lock()
	defer store.mu.Unlock()

	l, ok := store.locks[key]
	if !ok {
		l = new(sync.RWMutex)
		store.locks[key] = l
	}

	return l
}

func (store *Store) logPath(key string) string {
	return filepath.Join(store.path, key+extLog)
}

func (store *Store) sidecarPath(key string) string {
	return filepath.Join(store.path, key+extSidecar)
}

func (store *Store) writeSidecar(key string, sync bool) error {
	encoded, _ := json.Marshal(sidecar{sync})

	if err := os.WriteFile(store.sidecarPath(key), encoded, 0644); err != nil {
		return errors.WithMessagef(err, "Failed to write sidecar of %v", key)
	}

	return nil
}

func (store *Store) readSidecar(key string) (sidecar, bool, error) {
	var value sidecar

	encoded, err := os.ReadFile(store.sidecarPath(key))
	if os.IsNotExist(err) {
		return value, false, nil
	}

	if err != nil {
		return value, false, errors.WithMessagef(err, "Failed to read sidecar of %v", key)
	}

	if err = json.Unmarshal(encoded, &value); err != nil {
		return value, false, errors.WithMessagef(err, "Failed to unmarshal sidecar of %v", key)
	}

	return value, true, nil
}

// Write writes the transaction log of the given key.
//
// The sidecar flips to synchronized only after the log is flushed and closed,
// so that partially written logs are never offered to readers.
func (store *Store) Write(key string, txs []*wire.MsgTx) error {
	l := store.lock(key)
	l.Lock()
	defer l.Unlock()

	start := time.Now()

	if err := store.writeSidecar(key, false); err != nil {
		return err
	}

	if err := store.writeLog(key, txs); err != nil {
		return err
	}

	if err := store.writeSidecar(key, true); err != nil {
		return err
	}

	store.metrics.Write().UpdateSince(start)
	store.metrics.NumTxs().Update(int64(len(txs)))

	logrus.WithFields(logrus.Fields{
		"key": key,
		"txs": len(txs),
	}).Debug("Cache entry written")

	return nil
}

// writeLog writes the log into a temp file and renames it over the live log,
// so that readers opened before keep reading the replaced content.
func (store *Store) writeLog(key string, txs []*wire.MsgTx) error {
	path := store.logPath(key)
	tmp := path + extTemp

	if err := store.writeTemp(tmp, key, txs); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.WithMessagef(err, "Failed to replace log of %v", key)
	}

	return nil
}

func (store *Store) writeTemp(path, key string, txs []*wire.MsgTx) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return errors.WithMessagef(err, "Failed to create log of %v", key)
	}

	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = errors.WithMessagef(cerr, "Failed to close log of %v", key)
		}
	}()

	writer := bufio.NewWriterSize(file, 64*1024)
	encoder := hex.NewEncoder(writer)

	for _, v := range txs {
		if err = v.Serialize(encoder); err != nil {
			return errors.WithMessagef(err, "Failed to write tx %v into log of %v", v.TxHash(), key)
		}

		if err = writer.WriteByte('\n'); err != nil {
			return errors.WithMessagef(err, "Failed to write log of %v", key)
		}
	}

	if err = writer.Flush(); err != nil {
		return errors.WithMessagef(err, "Failed to flush log of %v", key)
	}

	if err = file.Sync(); err != nil {
		return errors.WithMessagef(err, "Failed to sync log of %v", key)
	}

	return nil
}

// Ready indicates whether the entry of the given key is completely written.
//
// Any inconsistency between sidecar and log, e.g. missing log or incomplete
// write, is treated as a cache miss.
func (store *Store) Ready(key string) bool {
	l := store.lock(key)
	l.RLock()
	defer l.RUnlock()

	ready := store.ready(key)
	if ready {
		store.metrics.Hit().Inc(1)
	} else {
		store.metrics.Miss().Inc(1)
	}

	return ready
}

func (store *Store) ready(key string) bool {
	value, ok, err := store.readSidecar(key)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Cache inconsistent, treat as miss")
		return false
	}

	_, statErr := os.Stat(store.logPath(key))
	logExists := statErr == nil

	if !ok {
		if logExists {
			logrus.WithField("key", key).Warn("Cache log without sidecar, treat as miss")
		}

		return false
	}

	if !value.Sync {
		logrus.WithField("key", key).Debug("Cache entry not synchronized yet")
		return false
	}

	if !logExists {
		logrus.WithField("key", key).Warn("Cache sidecar without log, treat as miss")
		return false
	}

	return true
}

// Open opens the transaction log of the given key for read.
func (store *Store) Open(key string) (io.ReadCloser, error) {
	l := store.lock(key)
	l.RLock()
	defer l.RUnlock()

	if !store.ready(key) {
		return nil, errors.Errorf("Cache entry %v not ready", key)
	}

	file, err := os.Open(store.logPath(key))
	if err != nil {
		return nil, errors.WithMessagef(err, "Failed to open log of %v", key)
	}

	return file, nil
}

// Keys returns all cached block heights in ascending order.
func (store *Store) Keys() ([]int64, error) {
	entries, err := os.ReadDir(store.path)
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to read cache directory")
	}

	seen := make(map[int64]struct{})
	for _, v := range entries {
		if v.IsDir() {
			continue
		}

		name := v.Name()
		ext := filepath.Ext(name)
		if ext != extLog && ext != extSidecar {
			continue
		}

		// mempool and any other non-numeric entries excluded
		height, err := strconv.ParseInt(strings.TrimSuffix(name, ext), 10, 64)
		if err != nil || height < 0 {
			continue
		}

		seen[height] = struct{}{}
	}

	keys := make([]int64, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	store.metrics.Entries().Update(int64(len(keys)))

	return keys, nil
}

// Delete deletes both files of the given key, and it is a no-op if not found.
func (store *Store) Delete(key string) error {
	l := store.lock(key)
	l.Lock()
	defer l.Unlock()

	for _, path := range []string{store.sidecarPath(key), store.logPath(key)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.WithMessagef(err, "Failed to delete %v", path)
		}
	}

	return nil
}

// Invalidate deletes the cached block entries selected by the given range.
//
// If range end not specified, it deletes up to the maximum cached height.
func (store *Store) Invalidate(r types.Range) error {
	if err := r.Validate(); err != nil {
		return errors.WithMessage(err, "Invalid range")
	}

	if r.At != nil {
		return store.Delete(BlockKey(*r.At))
	}

	keys, err := store.Keys()
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		return nil
	}

	highest := keys[len(keys)-1]

	var deleted int
	for _, v := range keys {
		if !r.Contains(v, highest) {
			continue
		}

		if err = store.Delete(BlockKey(v)); err != nil {
			return err
		}

		deleted++
	}

	logrus.WithFields(logrus.Fields{
		"range":   r,
		"deleted": deleted,
	}).Debug("Cache invalidated")

	return nil
}

// Prune retains the given number of highest block entries, and deletes the rest.
//
// The mempool entry never participates in pruning.
func (store *Store) Prune(count int) error {
	if count < 0 {
		return errors.Errorf("Invalid prune count %v", count)
	}

	keys, err := store.Keys()
	if err != nil {
		return err
	}

	if len(keys) <= count {
		return nil
	}

	stale := keys[:len(keys)-count]
	for _, v := range stale {
		if err = store.Delete(BlockKey(v)); err != nil {
			return err
		}
	}

	store.metrics.Pruned().Inc(int64(len(stale)))

	logrus.WithFields(logrus.Fields{
		"retain": count,
		"pruned": len(stale),
	}).Debug("Cache pruned")

	return nil
}

// Retain returns the configured number of block entries to retain, 0 for unlimited.
func (store *Store) Retain() int {
	return store.retain
}

// AutoPrune prunes with the configured retention count if any.
func (store *Store) AutoPrune() error {
	if store.retain <= 0 {
		return nil
	}

	return store.Prune(store.retain)
}
