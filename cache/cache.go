// Package cache stores the raw output of prober queries such that repeated
// extractions of the same files don't need to run the prober again.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// Cache is a key/value store for prober output.
type Cache interface {
	// Get returns the data stored for the key and whether the key has been found.
	Get(key string) ([]byte, bool)

	// Put stores the data for the key.
	Put(key string, data []byte) error

	// Close releases all resources of the cache.
	Close() error
}

// ErrInvalidKey is returned if a key can't be derived for a file.
var ErrInvalidKey = errors.New("invalid cache key")

// Key returns a key for the output of a query with the given arguments on the file
// at path. The key changes whenever the size or the modification time of the file
// changes.
func Key(path string, args []string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	finfo, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	h := sha256.New()
	h.Write([]byte(abs))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(finfo.Size(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(finfo.ModTime().UnixNano(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(args, "\x00")))

	return hex.EncodeToString(h.Sum(nil)), nil
}

var bucketName = []byte("probe")

type boltCache struct {
	db *bbolt.DB
}

// NewBolt returns a Cache that is persisted in a bbolt database at the given path.
func NewBolt(path string) (Cache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: %w", err)
	}

	return &boltCache{
		db: db,
	}, nil
}

func (c *boltCache) Get(key string) ([]byte, bool) {
	var data []byte

	c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}

		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}

		// The value is only valid during the transaction
		data = make([]byte, len(v))
		copy(data, v)

		return nil
	})

	return data, data != nil
}

func (c *boltCache) Put(key string, data []byte) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		return b.Put([]byte(key), data)
	})
}

func (c *boltCache) Close() error {
	return c.db.Close()
}

type memCache struct {
	data map[string][]byte
	lock sync.RWMutex
}

// MemoryFile is the name of the cache file that selects a cache that lives
// only as long as the process.
const MemoryFile = ":memory:"

// NewMemory returns a Cache that lives only in memory.
func NewMemory() Cache {
	return &memCache{
		data: map[string][]byte{},
	}
}

func (c *memCache) Get(key string) ([]byte, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	data, ok := c.data[key]
	if !ok {
		return nil, false
	}

	return append([]byte(nil), data...), true
}

func (c *memCache) Put(key string, data []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.data[key] = append([]byte(nil), data...)

	return nil
}

func (c *memCache) Close() error {
	return nil
}
