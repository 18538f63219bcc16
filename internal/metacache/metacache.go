package metacache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"image-browser/internal/filesystem"
	"image-browser/internal/logging"
	"image-browser/internal/media"
	"image-browser/internal/pathlock"
)

const (
	// FileVersion is the on-disk format version. Files with another version
	// are ignored.
	FileVersion = 1
	// DefaultRetention drops entries cached longer ago than this on load.
	DefaultRetention = 30 * 24 * time.Hour
)

// Clock abstracts time retrieval so retention is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

type entry struct {
	FileSize     int64               `json:"file_size"`
	ModifiedTime int64               `json:"modified_time"`
	Metadata     media.ImageMetadata `json:"metadata"`
	CachedAt     time.Time           `json:"cached_at"`
}

type cacheFile struct {
	Version int              `json:"version"`
	Entries map[string]entry `json:"entries"`
}

// Cache maps normalized image paths to their last extracted metadata. The
// mutex guards the map only; Flush writes a snapshot outside it.
type Cache struct {
	file      string
	retention time.Duration
	clock     Clock

	mu      sync.Mutex
	entries map[string]entry
	dirty   bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(mc *Cache) { mc.clock = c }
}

// Open loads the cache from file. A missing, corrupt or foreign-version file
// yields an empty cache; the problem is logged, never returned. An empty
// file name keeps the cache in memory only. retention <= 0 selects
// DefaultRetention.
func Open(file string, retention time.Duration, opts ...Option) *Cache {
	if retention <= 0 {
		retention = DefaultRetention
	}
	c := &Cache{
		file:      file,
		retention: retention,
		clock:     RealClock{},
		entries:   make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	if file == "" {
		return c
	}

	loaded, err := load(file)
	if err != nil {
		logging.Warn("Ignoring metadata cache %s: %v", file, err)
		return c
	}

	cutoff := c.clock.Now().Add(-retention)
	expired := 0
	for path, e := range loaded {
		if e.CachedAt.Before(cutoff) {
			expired++
			continue
		}
		c.entries[path] = e
	}
	if expired > 0 {
		c.dirty = true
	}
	logging.Debug("Metadata cache loaded: %d entries, %d expired", len(c.entries), expired)
	return c
}

func load(file string) (map[string]entry, error) {
	data, err := filesystem.ReadFileWithRetry(file, filesystem.DefaultRetryConfig())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata cache: %w", err)
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("unmarshal metadata cache: %w", err)
	}
	if cf.Version != FileVersion {
		return nil, fmt.Errorf("metadata cache version %d, want %d", cf.Version, FileVersion)
	}
	return cf.Entries, nil
}

// Get returns the cached metadata when the file's size and modification
// time still match. Get and Put copy the metadata, so callers never share
// pointers with the cache.
func (c *Cache) Get(path string, id media.Identity) (media.ImageMetadata, bool) {
	key := pathlock.Normalize(path)

	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()

	if !ok || e.FileSize != id.FileSize || e.ModifiedTime != id.ModifiedTime {
		return media.ImageMetadata{}, false
	}
	return e.Metadata.Clone(), true
}

// Put records metadata for path at identity id.
func (c *Cache) Put(path string, id media.Identity, md media.ImageMetadata) {
	key := pathlock.Normalize(path)
	e := entry{
		FileSize:     id.FileSize,
		ModifiedTime: id.ModifiedTime,
		Metadata:     md.Clone(),
		CachedAt:     c.clock.Now().UTC(),
	}

	c.mu.Lock()
	c.entries[key] = e
	c.dirty = true
	c.mu.Unlock()
}

// Invalidate forgets path.
func (c *Cache) Invalidate(path string) {
	key := pathlock.Normalize(path)

	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.dirty = true
	}
	c.mu.Unlock()
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Flush writes the cache to its file if anything changed since it was
// loaded or last flushed.
func (c *Cache) Flush() error {
	if c.file == "" {
		return nil
	}

	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	snapshot := cacheFile{Version: FileVersion, Entries: make(map[string]entry, len(c.entries))}
	for k, v := range c.entries {
		snapshot.Entries[k] = v
	}
	c.dirty = false
	c.mu.Unlock()

	err := c.write(snapshot)
	if err != nil {
		c.mu.Lock()
		c.dirty = true
		c.mu.Unlock()
	}
	return err
}

func (c *Cache) write(snapshot cacheFile) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal metadata cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.file), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := filesystem.WriteFileAtomic(c.file, data, 0o644); err != nil {
		return fmt.Errorf("write metadata cache: %w", err)
	}
	logging.Debug("Metadata cache flushed: %d entries", len(snapshot.Entries))
	return nil
}
