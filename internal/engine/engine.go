package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"image-browser/internal/filesystem"
	"image-browser/internal/imageformat"
	"image-browser/internal/logging"
	"image-browser/internal/media"
	"image-browser/internal/metacache"
	"image-browser/internal/metadata"
	"image-browser/internal/metrics"
	"image-browser/internal/pathlock"
	"image-browser/internal/thumbcache"
	"image-browser/internal/workers"
)

// File names under Config.CacheDir.
const (
	ThumbnailDirName  = "thumbnails"
	MetadataCacheName = "metadata-cache.json"
)

var errEmptyPath = errors.New("empty path")

// Config configures an Engine.
type Config struct {
	// CacheDir holds the thumbnail directory and the metadata cache file.
	CacheDir string
	// Thumbnail is the default generation config.
	Thumbnail media.ThumbnailConfig
	// MetadataRetention drops metadata cache entries older than this on
	// start. Zero selects 30 days.
	MetadataRetention time.Duration
	// Workers sizes the CPU pool. Zero selects workers.ForCPU(0).
	Workers int
	// UseVips enables libvips for WebP thumbnails.
	UseVips bool
	// MetadataClock overrides the metadata cache clock in tests.
	MetadataClock metacache.Clock
	// Memory, when set, holds batch thumbnail work under memory pressure.
	Memory Gate
}

// Gate blocks batch work until it may proceed. *memory.Monitor
// implements it.
type Gate interface {
	Wait(ctx context.Context) error
}

// Engine serves metadata reads, thumbnail generation and rating writes.
// Work on one path is serialized by its path lock; CPU-heavy steps run on
// the worker pool.
type Engine struct {
	locks    *pathlock.Service
	thumbs   *thumbcache.Cache
	meta     *metacache.Cache
	gen      *media.Generator
	pool     *workers.Pool
	thumbCfg media.ThumbnailConfig
	retry    filesystem.RetryConfig
	vips     bool
	memory   Gate
}

// New creates an engine, its cache directory and, when enabled, starts
// libvips.
func New(cfg Config) (*Engine, error) {
	if cfg.CacheDir == "" {
		return nil, media.NewError(media.KindInvalidInput, "new engine", "", errors.New("cache dir is required"))
	}
	thumbCfg := cfg.Thumbnail
	if thumbCfg == (media.ThumbnailConfig{}) {
		thumbCfg = media.DefaultThumbnailConfig()
	}
	if err := thumbCfg.Validate(); err != nil {
		return nil, media.NewError(media.KindInvalidInput, "new engine", "", err)
	}

	thumbs, err := thumbcache.New(filepath.Join(cfg.CacheDir, ThumbnailDirName))
	if err != nil {
		return nil, err
	}

	var opts []metacache.Option
	if cfg.MetadataClock != nil {
		opts = append(opts, metacache.WithClock(cfg.MetadataClock))
	}
	meta := metacache.Open(filepath.Join(cfg.CacheDir, MetadataCacheName), cfg.MetadataRetention, opts...)

	size := cfg.Workers
	if size <= 0 {
		size = workers.ForCPU(0)
	}

	useVips := false
	if cfg.UseVips {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, thumbnails will be JPEG: %v", err)
		} else {
			useVips = true
		}
	}

	return &Engine{
		locks:    pathlock.New(),
		thumbs:   thumbs,
		meta:     meta,
		gen:      media.NewGenerator(useVips),
		pool:     workers.NewPool(size),
		thumbCfg: thumbCfg,
		retry:    filesystem.DefaultRetryConfig(),
		vips:     useVips,
		memory:   cfg.Memory,
	}, nil
}

// ThumbnailConfig returns the default generation config.
func (e *Engine) ThumbnailConfig() media.ThumbnailConfig {
	return e.thumbCfg
}

// VipsEnabled reports whether WebP thumbnails go through libvips.
func (e *Engine) VipsEnabled() bool {
	return e.vips
}

// Close flushes the metadata cache and stops libvips if this engine
// started it.
func (e *Engine) Close() error {
	err := e.meta.Flush()
	if err != nil {
		logging.Error("Failed to flush metadata cache: %v", err)
	}
	if e.vips {
		media.ShutdownVips()
	}
	return err
}

func (e *Engine) stat(op, path string) (os.FileInfo, media.Identity, error) {
	if path == "" {
		return nil, media.Identity{}, media.NewError(media.KindInvalidInput, op, path, errEmptyPath)
	}
	info, err := filesystem.StatWithRetry(path, e.retry)
	if err != nil {
		return nil, media.Identity{}, media.NewError(media.KindIO, op, path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, media.Identity{}, media.NewError(media.KindInvalidInput, op, path, errors.New("not a regular file"))
	}
	return info, media.IdentityOf(path, info), nil
}

// describe builds ImageMetadata from one byte view: sniff, header
// dimensions, then the embedded metadata. Only the first two can fail.
func describe(op, path string, data []byte, size int64) (media.ImageMetadata, imageformat.Format, error) {
	f, err := imageformat.Sniff(data)
	if err != nil {
		return media.ImageMetadata{}, f, media.NewError(media.KindUnknownFormat, op, path, err)
	}
	w, h, err := imageformat.Dimensions(data, f)
	if err != nil {
		return media.ImageMetadata{}, f, media.NewError(media.KindOf(err), op, path, err)
	}

	emb := metadata.Read(data, f)
	log := logging.ForPath(path)
	if emb.ExifErr != nil {
		log.Debug("EXIF ignored: %v", emb.ExifErr)
	}
	if f == imageformat.PNG && emb.Parameters == nil {
		log.Debug("no generation parameters: %v", emb.ParametersErr)
	}

	return media.ImageMetadata{
		Width:                w,
		Height:               h,
		FileSize:             size,
		MimeType:             f.MIMEType(),
		Rating:               emb.Rating,
		CaptureDates:         emb.Dates,
		GenerationParameters: emb.Parameters,
	}, f, nil
}

// ReadMetadata returns dimensions, MIME type, rating, capture dates and
// generation parameters for path.
func (e *Engine) ReadMetadata(ctx context.Context, path string) (media.ImageMetadata, error) {
	const op = "read metadata"
	_, id, err := e.stat(op, path)
	if err != nil {
		return media.ImageMetadata{}, err
	}
	if md, ok := e.meta.Get(path, id); ok {
		metrics.MetadataReadsTotal.WithLabelValues("cache", "success").Inc()
		return md, nil
	}

	md, err := pathlock.Do(ctx, e.locks, path, func() (media.ImageMetadata, error) {
		info, id, err := e.stat(op, path)
		if err != nil {
			return media.ImageMetadata{}, err
		}
		if md, ok := e.meta.Get(path, id); ok {
			return md, nil
		}

		view, err := filesystem.MapFile(path, e.retry)
		if err != nil {
			return media.ImageMetadata{}, media.NewError(media.KindIO, op, path, err)
		}
		defer view.Close()

		md, _, err := describe(op, path, view.Bytes(), info.Size())
		if err != nil {
			return media.ImageMetadata{}, err
		}
		e.meta.Put(path, id, md)
		return md, nil
	})
	if err != nil {
		metrics.MetadataReadsTotal.WithLabelValues("decode", "error").Inc()
		return media.ImageMetadata{}, err
	}
	metrics.MetadataReadsTotal.WithLabelValues("decode", "success").Inc()
	return md, nil
}

// ReadRating returns the resolved star rating, or nil when the file has
// none.
func (e *Engine) ReadRating(ctx context.Context, path string) (*int, error) {
	md, err := e.ReadMetadata(ctx, path)
	if err != nil {
		return nil, err
	}
	return md.Rating, nil
}

// GenerateThumbnail returns the thumbnail for path at the default config.
func (e *Engine) GenerateThumbnail(ctx context.Context, path string) (media.Thumbnail, error) {
	return e.GenerateThumbnailWithConfig(ctx, path, e.thumbCfg)
}

// GenerateThumbnailWithConfig serves the cached thumbnail when the source
// and cfg are unchanged, and otherwise decodes, resizes, encodes and caches
// a new one.
func (e *Engine) GenerateThumbnailWithConfig(ctx context.Context, path string, cfg media.ThumbnailConfig) (media.Thumbnail, error) {
	const op = "generate thumbnail"
	if err := cfg.Validate(); err != nil {
		return media.Thumbnail{}, media.NewError(media.KindInvalidInput, op, path, err)
	}
	_, id, err := e.stat(op, path)
	if err != nil {
		return media.Thumbnail{}, err
	}
	if thumb, ok := e.cachedThumbnail(path, id, cfg); ok {
		return thumb, nil
	}

	return pathlock.Do(ctx, e.locks, path, func() (media.Thumbnail, error) {
		info, id, err := e.stat(op, path)
		if err != nil {
			return media.Thumbnail{}, err
		}
		// Another request may have produced it while this one waited.
		if thumb, ok := e.cachedThumbnail(path, id, cfg); ok {
			return thumb, nil
		}
		return e.generate(ctx, path, info, id, cfg)
	})
}

func (e *Engine) cachedThumbnail(path string, id media.Identity, cfg media.ThumbnailConfig) (media.Thumbnail, bool) {
	entry, data, ok, err := e.thumbs.Lookup(path, id, cfg)
	if err != nil {
		logging.ForPath(path).Warn("thumbnail cache lookup failed: %v", err)
		return media.Thumbnail{}, false
	}
	if !ok {
		return media.Thumbnail{}, false
	}
	if entry.Metadata != nil {
		if _, cached := e.meta.Get(path, id); !cached {
			e.meta.Put(path, id, *entry.Metadata)
		}
	}
	return media.Thumbnail{Data: data, Width: entry.Width, Height: entry.Height, MIMEType: entry.MIMEType}, true
}

// generate runs with the path lock held.
func (e *Engine) generate(ctx context.Context, path string, info os.FileInfo, id media.Identity, cfg media.ThumbnailConfig) (media.Thumbnail, error) {
	const op = "generate thumbnail"
	log := logging.ForPath(path)

	view, err := filesystem.MapFile(path, e.retry)
	if err != nil {
		return media.Thumbnail{}, media.NewError(media.KindIO, op, path, err)
	}
	defer view.Close()
	data := view.Bytes()

	md, f, err := describe(op, path, data, info.Size())
	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues(f.String(), "error_decode").Inc()
		return media.Thumbnail{}, err
	}

	var thumb media.Thumbnail
	status := "success"
	err = e.pool.Do(ctx, func() error {
		start := time.Now()
		img, err := media.Decode(data, f)
		metrics.ThumbnailGenerationDuration.WithLabelValues("decode").Observe(time.Since(start).Seconds())
		if err != nil {
			status = "error_decode"
			return media.NewError(media.KindOf(err), op, path, err)
		}
		thumb, err = e.encode(img, cfg)
		if err != nil {
			status = "error_encode"
			return media.NewError(media.KindDecode, op, path, err)
		}
		return nil
	})
	if err != nil {
		if status == "success" {
			status = "error_decode"
		}
		metrics.ThumbnailGenerationsTotal.WithLabelValues(f.String(), status).Inc()
		return media.Thumbnail{}, err
	}

	start := time.Now()
	entry := thumbcache.Entry{
		SourceIdentity: id,
		Config:         cfg,
		Width:          thumb.Width,
		Height:         thumb.Height,
		MIMEType:       thumb.MIMEType,
		Metadata:       &md,
	}
	if err := e.thumbs.Store(path, entry, thumb.Data); err != nil {
		log.Warn("thumbnail not cached: %v", err)
		status = "error_store"
	}
	metrics.ThumbnailGenerationDuration.WithLabelValues("store").Observe(time.Since(start).Seconds())
	metrics.ThumbnailGenerationsTotal.WithLabelValues(f.String(), status).Inc()

	e.meta.Put(path, id, md)
	log.Debug("thumbnail generated: %dx%d %s, %d bytes", thumb.Width, thumb.Height, thumb.MIMEType, len(thumb.Data))
	return thumb, nil
}

func (e *Engine) encode(img image.Image, cfg media.ThumbnailConfig) (media.Thumbnail, error) {
	thumb, err := e.gen.Generate(img, cfg)
	if err != nil {
		return media.Thumbnail{}, fmt.Errorf("encode %s: %w", cfg.Format, err)
	}
	return thumb, nil
}

// WriteRating stores rating (0-5) in the file's EXIF and XMP. The file is
// rewritten once, atomically, keeping its mode. A failed XMP update is
// logged and does not fail the write.
func (e *Engine) WriteRating(ctx context.Context, path string, rating int) error {
	const op = "write rating"
	if rating < 0 || rating > metadata.MaxRating {
		return media.NewError(media.KindInvalidInput, op, path,
			fmt.Errorf("rating %d: %w", rating, metadata.ErrRatingOutOfRange))
	}

	return e.locks.WithExclusiveAccess(ctx, e.locks.GetOrCreate(path), path, func() error {
		info, _, err := e.stat(op, path)
		if err != nil {
			return err
		}
		log := logging.ForPath(path)

		data, err := filesystem.ReadFileWithRetry(path, e.retry)
		if err != nil {
			return media.NewError(media.KindIO, op, path, err)
		}
		f, err := imageformat.Sniff(data)
		if err != nil {
			return media.NewError(media.KindUnknownFormat, op, path, err)
		}

		update, err := metadata.WriteRating(data, f, rating)
		if err != nil {
			metrics.RatingWritesTotal.WithLabelValues(f.String(), "error").Inc()
			return media.NewError(media.KindOf(err), op, path, err)
		}
		status := "success"
		if update.XMPWarning != nil {
			log.Warn("rating written to EXIF only, XMP update failed: %v", update.XMPWarning)
			metrics.XMPWriteWarnings.Inc()
			status = "xmp_warning"
		}

		if err := filesystem.WriteFileAtomic(path, update.Data, info.Mode().Perm()); err != nil {
			metrics.RatingWritesTotal.WithLabelValues(f.String(), "error").Inc()
			return media.NewError(media.KindIO, op, path, err)
		}
		metrics.RatingWritesTotal.WithLabelValues(f.String(), status).Inc()

		e.invalidate(path)
		log.Info("rating set to %d", rating)
		return nil
	})
}

// Invalidate drops both cache entries for path. It is called for files
// changed outside the engine.
func (e *Engine) Invalidate(path string) {
	e.invalidate(path)
}

func (e *Engine) invalidate(path string) {
	e.meta.Invalidate(path)
	if err := e.thumbs.Invalidate(path); err != nil {
		logging.ForPath(path).Warn("thumbnail cache invalidation failed: %v", err)
	}
}

// ClearThumbnailCache removes every cached thumbnail and returns how many
// entries were removed.
func (e *Engine) ClearThumbnailCache(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	removed, err := e.thumbs.Clear()
	logging.Info("Thumbnail cache cleared: %d entries removed", removed)
	return removed, err
}

// GetStats implements metrics.StatsProvider.
func (e *Engine) GetStats() metrics.Stats {
	files, size := e.thumbs.Stats()
	return metrics.Stats{
		MetadataCacheEntries: e.meta.Len(),
		PathLocks:            e.locks.Len(),
		ThumbnailFiles:       files,
		ThumbnailBytes:       size,
		WorkerPoolSize:       e.pool.Size(),
	}
}
