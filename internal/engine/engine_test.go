package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"image-browser/internal/imageformat"
	"image-browser/internal/media"
	"image-browser/internal/metadata"
	"image-browser/internal/metrics"
)

const sampleParameters = "masterpiece, (best quality:1.2), 1girl\n" +
	"Negative prompt: lowres, bad anatomy\n" +
	"Steps: 28, Sampler: Euler a, CFG scale: 7, Seed: 1234, Size: 512x768, Model: anything-v5"

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{CacheDir: t.TempDir(), Workers: 4})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

// writePNG writes a w×h PNG, with a tEXt "parameters" chunk when params is
// not empty.
func writePNG(t *testing.T, dir, name string, w, h int, params string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(w, h)); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	if params != "" {
		chunks, err := imageformat.ParsePNG(data)
		if err != nil {
			t.Fatal(err)
		}
		text := append([]byte("parameters\x00"), params...)
		chunks = imageformat.InsertChunkBefore(chunks, "IDAT", imageformat.NewChunk("tEXt", text))
		data = imageformat.EncodePNG(chunks)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeJPEG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 85}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{}); media.KindOf(err) != media.KindInvalidInput {
		t.Errorf("missing cache dir: KindOf = %v", media.KindOf(err))
	}
	bad := Config{CacheDir: t.TempDir(), Thumbnail: media.ThumbnailConfig{Size: 1, Quality: 70, Format: "webp"}}
	if _, err := New(bad); media.KindOf(err) != media.KindInvalidInput {
		t.Errorf("bad thumbnail config: KindOf = %v", media.KindOf(err))
	}
}

func TestReadMetadata(t *testing.T) {
	e := newEngine(t)
	dir := t.TempDir()
	path := writePNG(t, dir, "gen.png", 64, 48, sampleParameters)

	md, err := e.ReadMetadata(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadMetadata() error = %v", err)
	}
	if md.Width != 64 || md.Height != 48 || md.MimeType != "image/png" {
		t.Errorf("ReadMetadata() = %dx%d %s", md.Width, md.Height, md.MimeType)
	}
	info, _ := os.Stat(path)
	if md.FileSize != info.Size() {
		t.Errorf("FileSize = %d, want %d", md.FileSize, info.Size())
	}
	if md.Rating != nil {
		t.Errorf("Rating = %d, want nil", *md.Rating)
	}
	p := md.GenerationParameters
	if p == nil {
		t.Fatal("GenerationParameters = nil")
	}
	if p.Steps != "28" || p.Seed != "1234" || len(p.NegativeTags) != 2 || p.RawText != sampleParameters {
		t.Errorf("GenerationParameters = %+v", p)
	}

	before := testutil.ToFloat64(metrics.MetadataReadsTotal.WithLabelValues("cache", "success"))
	if _, err := e.ReadMetadata(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if testutil.ToFloat64(metrics.MetadataReadsTotal.WithLabelValues("cache", "success"))-before != 1 {
		t.Error("second read should be served from the metadata cache")
	}
}

func TestReadMetadataMissingNegativePrompt(t *testing.T) {
	e := newEngine(t)
	path := writePNG(t, t.TempDir(), "a.png", 32, 32, "a cat, sitting\nSteps: 20, Sampler: Euler")

	md, err := e.ReadMetadata(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadMetadata() error = %v", err)
	}
	if md.GenerationParameters != nil {
		t.Errorf("GenerationParameters = %+v, want nil", md.GenerationParameters)
	}
	if md.Width != 32 {
		t.Errorf("Width = %d", md.Width)
	}
}

func TestReadMetadataJPEG(t *testing.T) {
	e := newEngine(t)
	path := writeJPEG(t, t.TempDir(), "a.jpg", 40, 20)

	md, err := e.ReadMetadata(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if md.Width != 40 || md.Height != 20 || md.MimeType != "image/jpeg" || md.GenerationParameters != nil {
		t.Errorf("ReadMetadata() = %+v", md)
	}
}

func TestReadMetadataErrors(t *testing.T) {
	e := newEngine(t)
	dir := t.TempDir()

	full := writePNG(t, dir, "full.png", 16, 16, "")
	data, _ := os.ReadFile(full)
	truncated := filepath.Join(dir, "truncated.png")
	if err := os.WriteFile(truncated, data[:20], 0o644); err != nil {
		t.Fatal(err)
	}
	text := filepath.Join(dir, "notes.png")
	if err := os.WriteFile(text, []byte("not an image at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	cut := writePNG(t, dir, "cut.png", 64, 64, sampleParameters)
	cutData, _ := os.ReadFile(cut)
	if err := os.WriteFile(cut, cutData[:len(cutData)-30], 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		kind media.Kind
	}{
		{"empty path", "", media.KindInvalidInput},
		{"missing file", filepath.Join(dir, "missing.png"), media.KindIO},
		{"directory", dir, media.KindInvalidInput},
		{"unknown format", text, media.KindUnknownFormat},
		{"truncated header", truncated, media.KindMalformedHeader},
		{"truncated mid-chunk", cut, media.KindMalformedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ReadMetadata(context.Background(), tt.path)
			if err == nil {
				t.Fatal("ReadMetadata() succeeded, want error")
			}
			if got := media.KindOf(err); got != tt.kind {
				t.Errorf("KindOf() = %v, want %v (%v)", got, tt.kind, err)
			}
		})
	}

	if _, err := e.GenerateThumbnail(context.Background(), cut); media.KindOf(err) != media.KindMalformedHeader {
		t.Errorf("GenerateThumbnail(truncated mid-chunk) KindOf = %v (%v)", media.KindOf(err), err)
	}

	_, err := e.ReadMetadata(context.Background(), filepath.Join(dir, "missing.png"))
	if !media.IsNotExist(err) {
		t.Errorf("IsNotExist(%v) = false", err)
	}
}

func generations(format string) float64 {
	return testutil.ToFloat64(metrics.ThumbnailGenerationsTotal.WithLabelValues(format, "success"))
}

func TestGenerateThumbnailCaching(t *testing.T) {
	e := newEngine(t)
	path := writePNG(t, t.TempDir(), "big.png", 1000, 500, "")
	ctx := context.Background()

	before := generations("png")
	thumb, err := e.GenerateThumbnail(ctx, path)
	if err != nil {
		t.Fatalf("GenerateThumbnail() error = %v", err)
	}
	if thumb.Width != 256 || thumb.Height != 128 {
		t.Errorf("thumbnail = %dx%d, want 256x128", thumb.Width, thumb.Height)
	}
	if len(thumb.Data) == 0 {
		t.Fatal("empty thumbnail")
	}
	if generations("png")-before != 1 {
		t.Fatal("first request should generate")
	}

	again, err := e.GenerateThumbnail(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if generations("png")-before != 1 {
		t.Error("second request should be served from cache")
	}
	if !bytes.Equal(again.Data, thumb.Data) || again.MIMEType != thumb.MIMEType {
		t.Error("cached thumbnail differs from generated one")
	}

	// A touch within the same second must still invalidate.
	info, _ := os.Stat(path)
	touched := info.ModTime().Add(time.Millisecond)
	if err := os.Chtimes(path, touched, touched); err != nil {
		t.Fatal(err)
	}
	if _, err := e.GenerateThumbnail(ctx, path); err != nil {
		t.Fatal(err)
	}
	if generations("png")-before != 2 {
		t.Error("mtime change should force regeneration")
	}

	small, err := e.GenerateThumbnailWithConfig(ctx, path, media.ThumbnailConfig{Size: 128, Quality: 70, Format: "jpeg"})
	if err != nil {
		t.Fatal(err)
	}
	if generations("png")-before != 3 {
		t.Error("config change should force regeneration")
	}
	if small.Width != 128 || small.MIMEType != "image/jpeg" {
		t.Errorf("small thumbnail = %dx%d %s", small.Width, small.Height, small.MIMEType)
	}

	if _, err := e.GenerateThumbnailWithConfig(ctx, path, media.ThumbnailConfig{Size: 128, Quality: 40, Format: "jpeg"}); err != nil {
		t.Fatal(err)
	}
	if generations("png")-before != 4 {
		t.Error("quality change should force regeneration")
	}
}

func TestGenerateThumbnailPrimesMetadata(t *testing.T) {
	e := newEngine(t)
	path := writePNG(t, t.TempDir(), "a.png", 300, 200, sampleParameters)
	ctx := context.Background()

	if _, err := e.GenerateThumbnail(ctx, path); err != nil {
		t.Fatal(err)
	}
	before := testutil.ToFloat64(metrics.MetadataReadsTotal.WithLabelValues("cache", "success"))
	md, err := e.ReadMetadata(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if testutil.ToFloat64(metrics.MetadataReadsTotal.WithLabelValues("cache", "success"))-before != 1 {
		t.Error("metadata should come from the cache primed by thumbnail generation")
	}
	if md.Width != 300 || md.GenerationParameters == nil {
		t.Errorf("ReadMetadata() = %+v", md)
	}
}

func TestGenerateThumbnailErrors(t *testing.T) {
	e := newEngine(t)
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", 32, 32, "")

	if _, err := e.GenerateThumbnailWithConfig(context.Background(), path, media.ThumbnailConfig{Size: 0, Quality: 70, Format: "webp"}); media.KindOf(err) != media.KindInvalidInput {
		t.Errorf("invalid config: KindOf = %v", media.KindOf(err))
	}

	data, _ := os.ReadFile(path)
	chunks, err := imageformat.ParsePNG(data)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range chunks {
		if c.Type == "IDAT" {
			chunks[i] = imageformat.NewChunk("IDAT", c.Data[:len(c.Data)/2])
		}
	}
	corrupt := filepath.Join(dir, "corrupt.png")
	if err := os.WriteFile(corrupt, imageformat.EncodePNG(chunks), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := e.GenerateThumbnail(context.Background(), corrupt); media.KindOf(err) != media.KindDecode {
		t.Errorf("corrupt pixels: KindOf = %v (%v)", media.KindOf(err), err)
	}
}

func TestWriteRating(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"png", writePNG(t, dir, "a.png", 64, 64, sampleParameters)},
		{"jpeg", writeJPEG(t, dir, "a.jpg", 64, 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t)
			ctx := context.Background()

			// Prime both caches so the write has something to invalidate.
			if _, err := e.GenerateThumbnail(ctx, tt.path); err != nil {
				t.Fatal(err)
			}
			before, _ := os.Stat(tt.path)

			for _, r := range []int{2, 5, 0, 3} {
				if err := e.WriteRating(ctx, tt.path, r); err != nil {
					t.Fatalf("WriteRating(%d) error = %v", r, err)
				}
				got, err := e.ReadRating(ctx, tt.path)
				if err != nil {
					t.Fatal(err)
				}
				if got == nil || *got != r {
					t.Fatalf("ReadRating() after WriteRating(%d) = %v", r, got)
				}
			}

			after, _ := os.Stat(tt.path)
			if after.Mode().Perm() != before.Mode().Perm() {
				t.Errorf("mode changed from %v to %v", before.Mode(), after.Mode())
			}

			data, _ := os.ReadFile(tt.path)
			if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
				t.Errorf("rewritten file no longer decodes: %v", err)
			}
			if files, _ := e.thumbs.Stats(); files != 0 {
				t.Errorf("thumbnail cache has %d files after write, want 0", files)
			}
		})
	}
}

func TestWriteRatingKeepsParameters(t *testing.T) {
	e := newEngine(t)
	path := writePNG(t, t.TempDir(), "a.png", 32, 32, sampleParameters)
	ctx := context.Background()

	if err := e.WriteRating(ctx, path, 4); err != nil {
		t.Fatal(err)
	}
	md, err := e.ReadMetadata(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if md.GenerationParameters == nil || md.GenerationParameters.RawText != sampleParameters {
		t.Errorf("parameters lost after rating write: %+v", md.GenerationParameters)
	}
}

func TestWriteRatingErrors(t *testing.T) {
	e := newEngine(t)
	dir := t.TempDir()
	pngPath := writePNG(t, dir, "a.png", 16, 16, "")

	webp := filepath.Join(dir, "a.webp")
	webpData := []byte("RIFF\x1a\x00\x00\x00WEBPVP8L\x0d\x00\x00\x00\x2f\x00\x00\x00\x10\x07\x10\x11\x11\x88\x88\xfe\x07\x00")
	if err := os.WriteFile(webp, webpData, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		path   string
		rating int
		kind   media.Kind
	}{
		{"rating too high", pngPath, 6, media.KindInvalidInput},
		{"negative rating", pngPath, -1, media.KindInvalidInput},
		{"read-only webp", webp, 3, media.KindUnsupportedVariant},
		{"missing file", filepath.Join(dir, "missing.png"), 3, media.KindIO},
		{"empty path", "", 3, media.KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.WriteRating(context.Background(), tt.path, tt.rating)
			if got := media.KindOf(err); got != tt.kind {
				t.Errorf("KindOf() = %v, want %v (%v)", got, tt.kind, err)
			}
		})
	}

	if err := e.WriteRating(context.Background(), pngPath, 6); !errors.Is(err, metadata.ErrRatingOutOfRange) {
		t.Errorf("WriteRating(6) = %v, want ErrRatingOutOfRange", err)
	}
	got, _ := os.ReadFile(webp)
	if !bytes.Equal(got, webpData) {
		t.Error("failed write modified the file")
	}
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	e := newEngine(t)
	path := writePNG(t, t.TempDir(), "busy.png", 200, 100, sampleParameters)
	ctx := context.Background()

	const ops = 50
	var wg sync.WaitGroup
	errs := make(chan error, ops)
	for i := 0; i < ops; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			switch i % 3 {
			case 0:
				err = e.WriteRating(ctx, path, i%6)
			case 1:
				_, err = e.ReadMetadata(ctx, path)
			default:
				_, err = e.GenerateThumbnail(ctx, path)
			}
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent operation failed: %v", err)
	}

	// The cached view must agree with what is actually in the file.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	onDisk := metadata.Read(data, imageformat.PNG)
	cached, err := e.ReadRating(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if onDisk.Rating == nil || cached == nil || *onDisk.Rating != *cached {
		t.Errorf("cached rating %v disagrees with file %v", cached, onDisk.Rating)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("file corrupted by concurrent writes: %v", err)
	}
	if e.locks.Len() != 1 {
		t.Errorf("path locks = %d, want 1", e.locks.Len())
	}
}

func TestBatch(t *testing.T) {
	e := newEngine(t)
	dir := t.TempDir()
	paths := []string{
		writePNG(t, dir, "a.png", 100, 50, ""),
		filepath.Join(dir, "missing.png"),
		writeJPEG(t, dir, "b.jpg", 50, 100),
	}
	ctx := context.Background()

	thumbs := e.GenerateThumbnails(ctx, paths)
	if len(thumbs) != 3 {
		t.Fatalf("GenerateThumbnails() returned %d results", len(thumbs))
	}
	for i, r := range thumbs {
		if r.Path != paths[i] {
			t.Errorf("result %d path = %q", i, r.Path)
		}
	}
	if thumbs[0].Err != nil || thumbs[2].Err != nil {
		t.Errorf("unexpected errors: %v, %v", thumbs[0].Err, thumbs[2].Err)
	}
	if !media.IsNotExist(thumbs[1].Err) {
		t.Errorf("missing file error = %v", thumbs[1].Err)
	}
	if thumbs[2].Thumbnail.Width != 50 || thumbs[2].Thumbnail.Height != 100 {
		t.Errorf("b.jpg thumbnail = %dx%d", thumbs[2].Thumbnail.Width, thumbs[2].Thumbnail.Height)
	}

	mds := e.ReadMetadataBatch(ctx, paths)
	if mds[0].Err != nil || mds[0].Metadata.Width != 100 {
		t.Errorf("a.png = %+v", mds[0])
	}
	if mds[1].Err == nil {
		t.Error("missing file should fail")
	}
	if mds[2].Metadata.MimeType != "image/jpeg" {
		t.Errorf("b.jpg = %+v", mds[2])
	}
}

type blockedGate struct{ calls int32 }

func (g *blockedGate) Wait(ctx context.Context) error {
	atomic.AddInt32(&g.calls, 1)
	return errors.New("memory critical")
}

func TestBatchMemoryGate(t *testing.T) {
	gate := &blockedGate{}
	e, err := New(Config{CacheDir: t.TempDir(), Workers: 2, Memory: gate})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	dir := t.TempDir()
	paths := []string{writePNG(t, dir, "a.png", 10, 10, ""), writePNG(t, dir, "b.png", 10, 10, "")}
	for _, r := range e.GenerateThumbnails(context.Background(), paths) {
		if r.Err == nil || r.Err.Error() != "memory critical" {
			t.Errorf("%s: Err = %v, want gate error", r.Path, r.Err)
		}
	}
	if atomic.LoadInt32(&gate.calls) != 2 {
		t.Errorf("gate called %d times, want 2", gate.calls)
	}

	// Single requests bypass the gate.
	if _, err := e.GenerateThumbnail(context.Background(), paths[0]); err != nil {
		t.Errorf("GenerateThumbnail() error = %v", err)
	}
}

func TestClearThumbnailCache(t *testing.T) {
	e := newEngine(t)
	dir := t.TempDir()
	ctx := context.Background()
	for _, name := range []string{"a.png", "b.png"} {
		if _, err := e.GenerateThumbnail(ctx, writePNG(t, dir, name, 40, 40, "")); err != nil {
			t.Fatal(err)
		}
	}
	if stats := e.GetStats(); stats.ThumbnailFiles != 4 || stats.MetadataCacheEntries != 2 {
		t.Errorf("GetStats() = %+v", stats)
	}

	removed, err := e.ClearThumbnailCache(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if stats := e.GetStats(); stats.ThumbnailFiles != 0 {
		t.Errorf("ThumbnailFiles = %d after clear", stats.ThumbnailFiles)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := e.ClearThumbnailCache(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled clear = %v", err)
	}
}

func TestCloseFlushesMetadata(t *testing.T) {
	cacheDir := t.TempDir()
	path := writePNG(t, t.TempDir(), "a.png", 20, 20, "")

	e, err := New(Config{CacheDir: cacheDir})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.ReadMetadata(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, MetadataCacheName)); err != nil {
		t.Errorf("metadata cache not written: %v", err)
	}

	reopened, err := New(Config{CacheDir: cacheDir})
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if reopened.GetStats().MetadataCacheEntries != 1 {
		t.Errorf("reopened cache entries = %d, want 1", reopened.GetStats().MetadataCacheEntries)
	}
}

func TestInvalidate(t *testing.T) {
	e := newEngine(t)
	path := writePNG(t, t.TempDir(), "a.png", 40, 40, "")
	if _, err := e.GenerateThumbnail(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	e.Invalidate(path)
	if stats := e.GetStats(); stats.ThumbnailFiles != 0 || stats.MetadataCacheEntries != 0 {
		t.Errorf("GetStats() after Invalidate = %+v", stats)
	}
}
