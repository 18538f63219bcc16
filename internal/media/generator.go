package media

import (
	"bytes"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"

	"image-browser/internal/imageformat"
	"image-browser/internal/logging"
	"image-browser/internal/metrics"
)

// prescaleLimit is the largest edge that is resized directly with Lanczos.
// Bigger sources are first reduced with a cheap linear filter.
const prescaleLimit = 512

// Generator turns decoded images into encoded thumbnails.
type Generator struct {
	useVips bool
}

// NewGenerator creates a generator. WebP output needs libvips; with useVips
// false, or when libvips failed to start, thumbnails are JPEG.
func NewGenerator(useVips bool) *Generator {
	return &Generator{useVips: useVips}
}

// WebPAvailable reports whether WebP thumbnails can be produced.
func (g *Generator) WebPAvailable() bool {
	return g.useVips && IsVipsAvailable()
}

// Resize fits img inside a size×size box, preserving aspect ratio without
// letterboxing.
func Resize(img image.Image, size int) *image.NRGBA {
	b := img.Bounds()
	if max(b.Dx(), b.Dy()) > prescaleLimit {
		pre := max(min(size*4, prescaleLimit), size)
		img = imaging.Fit(img, pre, pre, imaging.Linear)
	}
	return imaging.Fit(img, size, size, imaging.Lanczos)
}

// Generate resizes and encodes img according to cfg.
func (g *Generator) Generate(img image.Image, cfg ThumbnailConfig) (Thumbnail, error) {
	start := time.Now()
	thumb := Resize(img, cfg.Size)
	metrics.ThumbnailGenerationDuration.WithLabelValues("resize").Observe(time.Since(start).Seconds())

	start = time.Now()
	defer func() {
		metrics.ThumbnailGenerationDuration.WithLabelValues("encode").Observe(time.Since(start).Seconds())
	}()

	bounds := thumb.Bounds()
	out := Thumbnail{Width: bounds.Dx(), Height: bounds.Dy()}

	if cfg.Format == FormatWebP && g.WebPAvailable() {
		data, err := encodeWebP(thumb, cfg.Quality)
		if err == nil {
			out.Data, out.MIMEType = data, imageformat.WebP.MIMEType()
			return out, nil
		}
		logging.Warn("WebP encode failed, falling back to JPEG: %v", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(cfg.Quality)); err != nil {
		return Thumbnail{}, fmt.Errorf("encode jpeg thumbnail: %w", err)
	}
	out.Data, out.MIMEType = buf.Bytes(), imageformat.JPEG.MIMEType()
	return out, nil
}
