package thumbcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"image-browser/internal/filesystem"
	"image-browser/internal/imageformat"
	"image-browser/internal/logging"
	"image-browser/internal/media"
	"image-browser/internal/metrics"
	"image-browser/internal/pathlock"
)

const sidecarExt = ".json"

// Entry is the JSON sidecar stored next to each thumbnail.
type Entry struct {
	SourceIdentity    media.Identity        `json:"source_identity"`
	Config            media.ThumbnailConfig `json:"generation_config"`
	ThumbnailFilename string                `json:"thumbnail_filename"`
	Width             int                   `json:"thumbnail_width"`
	Height            int                   `json:"thumbnail_height"`
	MIMEType          string                `json:"thumbnail_mime_type"`
	Metadata          *media.ImageMetadata  `json:"metadata,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
}

// Cache stores thumbnails as <key>-<gen>.<ext> plus a <key>.json sidecar in one
// directory.
type Cache struct {
	dir   string
	retry filesystem.RetryConfig
}

// New creates the cache directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, media.NewError(media.KindCache, "create cache dir", dir, err)
	}
	return &Cache{dir: dir, retry: filesystem.DefaultRetryConfig()}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Key is the first 64 bits of the xxhash of the normalized path, as 16 hex
// characters.
func Key(path string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(pathlock.Normalize(path)))
}

func (c *Cache) sidecarPath(key string) string {
	return filepath.Join(c.dir, key+sidecarExt)
}

// thumbnailName names one generation's thumbnail: the key, a tag derived
// from the config and creation time, and the format extension. A sidecar
// therefore never points at bytes written for another config.
func thumbnailName(key string, entry Entry, ext string) string {
	tag := xxhash.Sum64String(fmt.Sprintf("%d/%d/%s/%d",
		entry.Config.Size, entry.Config.Quality, entry.Config.Format, entry.CreatedAt.UnixNano()))
	return fmt.Sprintf("%s-%08x%s", key, uint32(tag), ext)
}

// thumbnails lists the thumbnail files key owns, including the
// <key>.<ext> names older caches used.
func (c *Cache) thumbnails(key string) []string {
	var names []string
	for _, ext := range []string{imageformat.WebP.Extension(), imageformat.JPEG.Extension()} {
		names = append(names, filepath.Join(c.dir, key+ext))
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return names
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), key+"-") {
			names = append(names, filepath.Join(c.dir, e.Name()))
		}
	}
	return names
}

func miss(reason string) {
	metrics.ThumbnailCacheMisses.WithLabelValues(reason).Inc()
}

// Lookup returns the cached thumbnail for path when the sidecar exists and
// both the source identity and the generation config match. A corrupt
// sidecar is a miss. Only unexpected I/O failures return an error.
func (c *Cache) Lookup(path string, id media.Identity, cfg media.ThumbnailConfig) (*Entry, []byte, bool, error) {
	key := Key(path)
	log := logging.ForPath(path)

	raw, err := filesystem.ReadFileWithRetry(c.sidecarPath(key), c.retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			miss("missing")
			return nil, nil, false, nil
		}
		return nil, nil, false, media.NewError(media.KindCache, "read sidecar", path, err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		log.Warn("corrupt thumbnail sidecar %s: %v", key+sidecarExt, err)
		miss("corrupt")
		return nil, nil, false, nil
	}
	if !entry.SourceIdentity.Matches(id) {
		miss("identity")
		return nil, nil, false, nil
	}
	if entry.Config != cfg {
		miss("config")
		return nil, nil, false, nil
	}
	if filepath.Base(entry.ThumbnailFilename) != entry.ThumbnailFilename || !strings.HasPrefix(entry.ThumbnailFilename, key) {
		log.Warn("thumbnail sidecar %s names invalid file %q", key+sidecarExt, entry.ThumbnailFilename)
		miss("corrupt")
		return nil, nil, false, nil
	}

	data, err := filesystem.ReadFileWithRetry(filepath.Join(c.dir, entry.ThumbnailFilename), c.retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			miss("missing")
			return nil, nil, false, nil
		}
		return nil, nil, false, media.NewError(media.KindCache, "read thumbnail", path, err)
	}

	metrics.ThumbnailCacheHits.Inc()
	return &entry, data, true, nil
}

// Store writes the thumbnail under a new name and then its sidecar, each
// atomically. Thumbnails from earlier generations are removed only after
// the new sidecar is in place, so a concurrent Lookup that read the old
// sidecar either gets the old bytes or a miss.
func (c *Cache) Store(path string, entry Entry, data []byte) error {
	key := Key(path)
	ext := imageformat.JPEG.Extension()
	if entry.MIMEType == imageformat.WebP.MIMEType() {
		ext = imageformat.WebP.Extension()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.ThumbnailFilename = thumbnailName(key, entry, ext)
	current := filepath.Join(c.dir, entry.ThumbnailFilename)

	if err := filesystem.WriteFileAtomic(current, data, 0o644); err != nil {
		return media.NewError(media.KindCache, "store thumbnail", path, err)
	}

	raw, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return media.NewError(media.KindCache, "encode sidecar", path, err)
	}
	if err := filesystem.WriteFileAtomic(c.sidecarPath(key), raw, 0o644); err != nil {
		_ = os.Remove(current)
		return media.NewError(media.KindCache, "store sidecar", path, err)
	}

	for _, old := range c.thumbnails(key) {
		if old == current {
			continue
		}
		if err := os.Remove(old); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.ForPath(path).Debug("failed to remove stale thumbnail %s: %v", filepath.Base(old), err)
		}
	}
	return nil
}

// Invalidate removes the sidecar and every thumbnail for path.
func (c *Cache) Invalidate(path string) error {
	key := Key(path)
	var errs []error
	for _, name := range append([]string{c.sidecarPath(key)}, c.thumbnails(key)...) {
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return media.NewError(media.KindCache, "invalidate", path, err)
	}
	return nil
}

// Clear removes every file in the cache directory. Failures are collected
// and the remaining files are still attempted.
func (c *Cache) Clear() (removed int, err error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, media.NewError(media.KindCache, "clear", c.dir, err)
	}

	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if rmErr := os.Remove(filepath.Join(c.dir, e.Name())); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			errs = append(errs, rmErr)
			continue
		}
		if strings.HasSuffix(e.Name(), sidecarExt) {
			removed++
		}
	}

	if len(errs) > 0 {
		logging.Warn("Thumbnail cache clear left %d files behind", len(errs))
		return removed, media.NewError(media.KindCache, "clear", c.dir, errors.Join(errs...))
	}
	return removed, nil
}

// Stats returns the number of files and their total size.
func (c *Cache) Stats() (files int, bytes int64) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, 0
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files++
		bytes += info.Size()
	}
	return files, bytes
}
