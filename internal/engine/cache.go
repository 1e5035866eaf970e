package engine

import (
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// CacheEntry is one stored response.
type CacheEntry struct {
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	StoredAt    time.Time `json:"stored_at"`
}

// Cache is the HTTP cache: an in-memory layer over compressed files named by
// the blake2b hash of the URL.
type Cache struct {
	dir    string
	logger *zap.Logger

	mu  sync.RWMutex
	mem map[string]*CacheEntry
}

func newCache(cacheDir string, logger *zap.Logger) *Cache {
	return &Cache{
		dir:    filepath.Join(cacheDir, "http"),
		logger: logger,
		mem:    make(map[string]*CacheEntry),
	}
}

func cacheKey(url string) string {
	sum := blake2b.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) Put(entry *CacheEntry) {
	key := cacheKey(entry.URL)
	c.mu.Lock()
	c.mem[key] = entry
	c.mu.Unlock()

	data, err := pack(entry)
	if err == nil {
		err = writeFile(filepath.Join(c.dir, key), data)
	}
	if err != nil {
		c.logger.Debug("cache write failed", zap.Error(err))
	}
}

func (c *Cache) Get(url string) (*CacheEntry, bool) {
	key := cacheKey(url)
	c.mu.RLock()
	entry, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		return entry, true
	}

	data, err := os.ReadFile(filepath.Join(c.dir, key))
	if err != nil {
		return nil, false
	}
	entry = &CacheEntry{}
	if err := unpack(data, entry); err != nil || entry.URL != url {
		return nil, false
	}

	c.mu.Lock()
	c.mem[key] = entry
	c.mu.Unlock()
	return entry, true
}

// Clear drops the memory layer and, with includeDiskFiles, the files too.
func (c *Cache) Clear(includeDiskFiles bool) {
	c.mu.Lock()
	c.mem = make(map[string]*CacheEntry)
	c.mu.Unlock()

	if !includeDiskFiles {
		return
	}
	if err := os.RemoveAll(c.dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Debug("cache purge failed", zap.Error(err))
	}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mem)
}
