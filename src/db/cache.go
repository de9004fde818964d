package db

import (
	"bytes"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

const DefaultCacheEntries = 10000

// VaultCache keeps serialized vault documents keyed by user id. Documents
// hold only ciphertext, so nothing decrypted ever lands in memory here.
type VaultCache struct {
	cache *ristretto.Cache[int64, []byte]
}

func NewVaultCache(maxEntries int64) (*VaultCache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	cache, err := ristretto.NewCache(&ristretto.Config[int64, []byte]{
		NumCounters: maxEntries * 10, // number of keys to track frequency of
		MaxCost:     maxEntries,
		BufferItems: 64, // number of keys per Get buffer
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return &VaultCache{cache: cache}, nil
}

func (c *VaultCache) Get(userID int64) ([]byte, bool) {
	doc, ok := c.cache.Get(userID)
	if !ok {
		return nil, false
	}
	return bytes.Clone(doc), true
}

// Set replaces the cached document. A pending delete for the same user is
// applied first so the newest write wins.
func (c *VaultCache) Set(userID int64, doc []byte) {
	c.cache.Del(userID)
	c.cache.Set(userID, bytes.Clone(doc), 1)
}

func (c *VaultCache) Del(userID int64) {
	c.cache.Del(userID)
}

// Wait blocks until buffered writes are applied.
func (c *VaultCache) Wait() {
	c.cache.Wait()
}

func (c *VaultCache) Close() {
	c.cache.Close()
}
