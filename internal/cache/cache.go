// Package cache stores backend query results on disk so repeated queries
// within the TTL skip the network round trip.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kyleking/ae-columns/internal/logging"
)

// ErrMiss is returned by Get when the key is absent or expired
var ErrMiss = errors.New("cache miss")

const (
	dataSuffix = ".data"
	metaSuffix = ".meta"
)

// Cache is the result cache used by the analytics client
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Cleanup(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Stats summarises cache contents and effectiveness
type Stats struct {
	Entries int64   `json:"entries"`
	Bytes   int64   `json:"bytes"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

type entryMeta struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Size      int64     `json:"size"`
}

// QueryKey derives the cache key for a query issued against an account with
// a given token. Entries are never shared between tokens.
func QueryKey(accountID, apiToken, sql string) string {
	token := sha256.Sum256([]byte(apiToken))
	sum := sha256.Sum256([]byte(accountID + "\x00" + hex.EncodeToString(token[:]) + "\x00" + sql))

	return hex.EncodeToString(sum[:])
}

// FileCache keeps one data file and one metadata file per entry
type FileCache struct {
	directory  string
	maxBytes   int64
	defaultTTL time.Duration

	mu     sync.Mutex
	hits   int64
	misses int64

	stop     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewFileCache creates the cache directory and starts periodic cleanup when
// cleanupFreq is positive.
func NewFileCache(directory string, maxSizeMB int, defaultTTL, cleanupFreq time.Duration) (*FileCache, error) {
	if strings.HasPrefix(directory, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}

		directory = filepath.Join(home, directory[2:])
	}

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &FileCache{
		directory:  directory,
		maxBytes:   int64(maxSizeMB) * 1024 * 1024,
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
		now:        time.Now,
	}

	if cleanupFreq > 0 {
		go c.backgroundCleanup(cleanupFreq)
	}

	return c, nil
}

// Get returns the stored bytes for key, or ErrMiss
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	meta, err := c.readMeta(c.metaPath(key))
	if err != nil {
		c.misses++
		return nil, ErrMiss
	}

	if c.now().After(meta.ExpiresAt) {
		c.misses++
		c.removeEntry(c.name(key))

		return nil, ErrMiss
	}

	data, err := os.ReadFile(c.dataPath(key))
	if err != nil {
		c.misses++
		return nil, ErrMiss
	}

	c.hits++

	return data, nil
}

// Set stores data under key; a zero ttl uses the default
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(len(data))
	if c.maxBytes > 0 && size > c.maxBytes {
		return fmt.Errorf("entry of %d bytes exceeds cache limit of %d bytes", size, c.maxBytes)
	}

	if err := c.evictFor(size); err != nil {
		return fmt.Errorf("failed to enforce cache size: %w", err)
	}

	now := c.now()

	metaData, err := json.Marshal(entryMeta{
		Key:       key,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Size:      size,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache metadata: %w", err)
	}

	if err := os.WriteFile(c.dataPath(key), data, 0o600); err != nil {
		return fmt.Errorf("failed to write cache data: %w", err)
	}

	if err := os.WriteFile(c.metaPath(key), metaData, 0o600); err != nil {
		_ = os.Remove(c.dataPath(key))
		return fmt.Errorf("failed to write cache metadata: %w", err)
	}

	return nil
}

// Delete removes key if present
func (c *FileCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(c.name(key))

	return nil
}

// Clear removes every entry and resets counters
func (c *FileCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.directory)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && (strings.HasSuffix(name, dataSuffix) || strings.HasSuffix(name, metaSuffix)) {
			_ = os.Remove(filepath.Join(c.directory, name))
		}
	}

	c.hits, c.misses = 0, 0

	return nil
}

// Cleanup removes expired entries and reports how many were dropped
func (c *FileCache) Cleanup(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	metas, err := c.listMeta()
	if err != nil {
		return 0, err
	}

	now := c.now()
	removed := 0

	for name, meta := range metas {
		if now.After(meta.ExpiresAt) {
			c.removeEntry(name)
			removed++
		}
	}

	return removed, nil
}

// Stats reports entry count, bytes on disk and hit rate
func (c *FileCache) Stats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	size, count, err := c.usage()
	if err != nil {
		return nil, err
	}

	stats := &Stats{Entries: count, Bytes: size, Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}

	return stats, nil
}

// Close stops background cleanup
func (c *FileCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *FileCache) name(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (c *FileCache) dataPath(key string) string {
	return filepath.Join(c.directory, c.name(key)+dataSuffix)
}

func (c *FileCache) metaPath(key string) string {
	return filepath.Join(c.directory, c.name(key)+metaSuffix)
}

func (c *FileCache) removeEntry(name string) {
	_ = os.Remove(filepath.Join(c.directory, name+dataSuffix))
	_ = os.Remove(filepath.Join(c.directory, name+metaSuffix))
}

func (c *FileCache) readMeta(path string) (*entryMeta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var meta entryMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// listMeta maps entry file names (without suffix) to their metadata.
// Unreadable metadata is skipped.
func (c *FileCache) listMeta() (map[string]*entryMeta, error) {
	entries, err := os.ReadDir(c.directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	metas := make(map[string]*entryMeta)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metaSuffix) {
			continue
		}

		meta, err := c.readMeta(filepath.Join(c.directory, entry.Name()))
		if err != nil {
			continue
		}

		metas[strings.TrimSuffix(entry.Name(), metaSuffix)] = meta
	}

	return metas, nil
}

func (c *FileCache) usage() (int64, int64, error) {
	var size, count int64

	err := filepath.WalkDir(c.directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(path, dataSuffix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		size += info.Size()
		count++

		return nil
	})

	return size, count, err
}

// evictFor removes the oldest entries until incoming bytes fit
func (c *FileCache) evictFor(incoming int64) error {
	if c.maxBytes <= 0 {
		return nil
	}

	size, _, err := c.usage()
	if err != nil {
		return err
	}

	if size+incoming <= c.maxBytes {
		return nil
	}

	metas, err := c.listMeta()
	if err != nil {
		return err
	}

	type candidate struct {
		name    string
		created time.Time
		size    int64
	}

	candidates := make([]candidate, 0, len(metas))
	for name, meta := range metas {
		candidates = append(candidates, candidate{name: name, created: meta.CreatedAt, size: meta.Size})
	}

	slices.SortFunc(candidates, func(a, b candidate) int {
		return a.created.Compare(b.created)
	})

	excess := size + incoming - c.maxBytes

	for _, cand := range candidates {
		if excess <= 0 {
			break
		}

		c.removeEntry(cand.name)
		excess -= cand.size
	}

	return nil
}

func (c *FileCache) backgroundCleanup(freq time.Duration) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, err := c.Cleanup(context.Background()); err != nil {
				logging.Debugf("cache cleanup failed: %v", err)
			} else if n > 0 {
				logging.Debugf("cache cleanup removed %d expired entries", n)
			}
		case <-c.stop:
			return
		}
	}
}
