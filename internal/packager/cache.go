// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

package packager

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/internal/utils"
)

const (
	cacheDirPerm  = os.FileMode(0o700)
	cacheFilePerm = os.FileMode(0o600)

	// cacheOpenTimeout bounds the wait for the bbolt file lock.
	cacheOpenTimeout = 5 * time.Second
)

var entriesBucket = []byte("entries")

// cacheEntry is the bbolt-persisted index record for one cached blob.
// Payload bytes live next to the index as plain files; only bookkeeping
// goes through bbolt so a crash never loses payload and index together.
type cacheEntry struct {
	Key        string `json:"key"`
	Size       int64  `json:"size"`
	StoredAt   int64  `json:"storedAt"`
	LastAccess int64  `json:"lastAccess"`
}

// Cache is a time- and size-bounded LRU disk cache for downloaded
// attachment packages. Eviction scans entries ascending by last-access
// time and frees space until the incoming blob fits.
type Cache struct {
	dir      string
	maxBytes int64
	ttl      time.Duration
	clock    utils.Clock
	logger   *logger.Logger

	db *bolt.DB
}

// OpenCache opens (creating if needed) the cache at dir.
func OpenCache(dir string, maxBytes int64, ttl time.Duration, clock utils.Clock, log *logger.Logger) (*Cache, error) {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if err := os.MkdirAll(dir, cacheDirPerm); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dir, "index.db"), cacheFilePerm, &bolt.Options{Timeout: cacheOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening cache index: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache bucket: %w", err)
	}

	return &Cache{
		dir:      dir,
		maxBytes: maxBytes,
		ttl:      ttl,
		clock:    clock,
		logger:   log,
		db:       db,
	}, nil
}

// Close releases the index database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached blob for key and refreshes its last-access time.
// Expired entries are removed and reported as a miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	var entry cacheEntry
	found := false

	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return b.Delete([]byte(key))
		}

		now := c.clock.Now()
		if c.ttl > 0 && now.Sub(time.UnixMilli(entry.StoredAt)) > c.ttl {
			_ = os.Remove(c.blobPath(key))
			return b.Delete([]byte(key))
		}

		entry.LastAccess = now.UnixMilli()
		updated, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		found = true
		return b.Put([]byte(key), updated)
	})
	if err != nil || !found {
		return nil, false
	}

	data, err := os.ReadFile(c.blobPath(key))
	if err != nil {
		// Index said hit but the blob is gone; drop the stale record.
		_ = c.Remove(key)
		return nil, false
	}
	return data, true
}

// Put stores a blob, evicting least-recently-accessed entries first until
// the new blob fits under the size cap. Blobs larger than the cap are not
// cached at all.
func (c *Cache) Put(key string, data []byte) error {
	size := int64(len(data))
	if c.maxBytes > 0 && size > c.maxBytes {
		return nil
	}

	if err := c.evictFor(size); err != nil {
		return err
	}

	if err := os.WriteFile(c.blobPath(key), data, cacheFilePerm); err != nil {
		return fmt.Errorf("writing cache blob: %w", err)
	}

	now := c.clock.Now().UnixMilli()
	entry := cacheEntry{Key: key, Size: size, StoredAt: now, LastAccess: now}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).Put([]byte(key), raw)
	})
}

// Remove drops one entry and its blob.
func (c *Cache) Remove(key string) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).Delete([]byte(key))
	})
	if rmErr := os.Remove(c.blobPath(key)); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = errors.Join(err, rmErr)
	}
	return err
}

// Size reports the summed size of all indexed blobs.
func (c *Cache) Size() (int64, error) {
	var total int64
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).ForEach(func(_, raw []byte) error {
			var entry cacheEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				return nil
			}
			total += entry.Size
			return nil
		})
	})
	return total, err
}

// evictFor frees space until incoming fits under the cap, removing
// entries in ascending last-access order. Expired entries go first
// regardless of size pressure.
func (c *Cache) evictFor(incoming int64) error {
	if c.maxBytes <= 0 {
		return nil
	}

	var entries []cacheEntry
	var total int64

	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).ForEach(func(_, raw []byte) error {
			var entry cacheEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				return nil
			}
			entries = append(entries, entry)
			total += entry.Size
			return nil
		})
	})
	if err != nil {
		return err
	}

	now := c.clock.Now()
	alive := entries[:0]
	for _, entry := range entries {
		if c.ttl > 0 && now.Sub(time.UnixMilli(entry.StoredAt)) > c.ttl {
			if err := c.Remove(entry.Key); err == nil {
				total -= entry.Size
				continue
			}
		}
		alive = append(alive, entry)
	}
	entries = alive

	if total+incoming <= c.maxBytes {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].LastAccess < entries[j].LastAccess })

	for _, entry := range entries {
		if total+incoming <= c.maxBytes {
			break
		}
		if err := c.Remove(entry.Key); err != nil {
			c.logger.Warn().Err(err).Str("key", entry.Key).Msg("cache eviction failed for entry")
			continue
		}
		total -= entry.Size
	}

	return nil
}

func (c *Cache) blobPath(key string) string {
	// Keys are package names (uuid-derived); safe as file names.
	return filepath.Join(c.dir, key+".blob")
}
