package persistence

import (
	"FlightSurety/internal/core"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrCacheClosed     = errors.New("snapshot cache: closed")
	ErrChecksumFailure = errors.New("snapshot cache: checksum mismatch")
)

var snapshotPrefix = []byte("snap/")

// LocalSnapshotCache keeps recent snapshots on local disk so a restart does
// not need a round trip to Postgres. Each value is blake2b-256(json) || json.
type LocalSnapshotCache struct {
	db     *pebble.DB
	keep   int
	closed bool
	mu     sync.RWMutex
}

// OpenLocalSnapshotCache opens (or creates) the cache at path, retaining the
// newest keep snapshots.
func OpenLocalSnapshotCache(path string, keep int) (*LocalSnapshotCache, error) {
	if keep <= 0 {
		keep = 3
	}
	opts := &pebble.Options{
		Cache:        pebble.NewCache(8 * 1024 * 1024),
		MemTableSize: 4 * 1024 * 1024,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot cache: %w", err)
	}
	return &LocalSnapshotCache{db: db, keep: keep}, nil
}

func snapshotKey(sequence int64) []byte {
	key := make([]byte, len(snapshotPrefix)+8)
	copy(key, snapshotPrefix)
	binary.BigEndian.PutUint64(key[len(snapshotPrefix):], uint64(sequence))
	return key
}

func prefixUpperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	end[len(end)-1]++
	return end
}

// Put stores snap and prunes anything older than the retention window.
func (c *LocalSnapshotCache) Put(snap *core.SnapshotState) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	sum := blake2b.Sum256(data)
	value := make([]byte, 0, len(sum)+len(data))
	value = append(value, sum[:]...)
	value = append(value, data...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}

	if err := c.db.Set(snapshotKey(snap.Sequence), value, pebble.Sync); err != nil {
		return err
	}
	return c.prune()
}

// prune must be called with mu held.
func (c *LocalSnapshotCache) prune() error {
	keys, err := c.keys()
	if err != nil {
		return err
	}
	if len(keys) <= c.keep {
		return nil
	}
	b := c.db.NewBatch()
	defer b.Close()
	for _, k := range keys[:len(keys)-c.keep] {
		if err := b.Delete(k, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// keys returns the stored snapshot keys, oldest first.
func (c *LocalSnapshotCache) keys() ([][]byte, error) {
	iter, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: snapshotPrefix,
		UpperBound: prefixUpperBound(snapshotPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var keys [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		keys = append(keys, bytes.Clone(iter.Key()))
	}
	return keys, iter.Error()
}

// Latest returns the newest cached snapshot, or nil if the cache is empty.
func (c *LocalSnapshotCache) Latest() (*core.SnapshotState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrCacheClosed
	}

	iter, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: snapshotPrefix,
		UpperBound: prefixUpperBound(snapshotPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	if !iter.Last() {
		return nil, iter.Error()
	}
	value, err := iter.ValueAndErr()
	if err != nil {
		return nil, err
	}
	return decodeCachedSnapshot(value)
}

func decodeCachedSnapshot(value []byte) (*core.SnapshotState, error) {
	if len(value) < blake2b.Size256 {
		return nil, ErrChecksumFailure
	}
	data := value[blake2b.Size256:]
	sum := blake2b.Sum256(data)
	if !bytes.Equal(sum[:], value[:blake2b.Size256]) {
		return nil, ErrChecksumFailure
	}
	var snap core.SnapshotState
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal cached snapshot: %w", err)
	}
	return &snap, nil
}

// Sequences lists cached snapshot sequences, oldest first.
func (c *LocalSnapshotCache) Sequences() ([]int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrCacheClosed
	}
	keys, err := c.keys()
	if err != nil {
		return nil, err
	}
	seqs := make([]int64, 0, len(keys))
	for _, k := range keys {
		seqs = append(seqs, int64(binary.BigEndian.Uint64(k[len(snapshotPrefix):])))
	}
	return seqs, nil
}

func (c *LocalSnapshotCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}
