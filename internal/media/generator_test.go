package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"image-browser/internal/imageformat"
)

// govips cannot be restarted within one process, so it is started once for
// the package.
func init() {
	_ = InitVips()
}

func createTestImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	src := createTestImage(40, 30)

	tests := []struct {
		name   string
		data   []byte
		format imageformat.Format
	}{
		{"png", encodePNG(t, src), imageformat.PNG},
		{"jpeg", encodeJPEG(t, src), imageformat.JPEG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(tt.data, tt.format)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
				t.Errorf("bounds = %dx%d, want 40x30", b.Dx(), b.Dy())
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	full := encodePNG(t, createTestImage(64, 64))

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], 20000)
	binary.BigEndian.PutUint32(ihdr[4:8], 20000)
	ihdr[8], ihdr[9] = 8, 6
	chunks, err := imageformat.ParsePNG(full)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range chunks {
		if c.Type == "IDAT" {
			chunks[i] = imageformat.NewChunk("IDAT", c.Data[:len(c.Data)/2])
		}
	}
	shortIDAT := imageformat.EncodePNG(chunks)

	huge := imageformat.EncodePNG([]imageformat.Chunk{
		imageformat.NewChunk("IHDR", ihdr),
		imageformat.NewChunk("IEND", nil),
	})

	tests := []struct {
		name   string
		data   []byte
		format imageformat.Format
		want   error
		kind   Kind
	}{
		{"truncated pixel data", shortIDAT, imageformat.PNG, ErrDecode, KindDecode},
		{"truncated mid-chunk", full[:len(full)/2], imageformat.PNG, imageformat.ErrMalformedHeader, KindMalformedHeader},
		{"canvas too large", huge, imageformat.PNG, ErrDecode, KindDecode},
		{"truncated header", full[:12], imageformat.PNG, imageformat.ErrMalformedHeader, KindMalformedHeader},
		{"unknown format", []byte("hello"), imageformat.Unknown, imageformat.ErrUnknownFormat, KindUnknownFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, tt.format)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.want)
			}
			if KindOf(err) != tt.kind {
				t.Errorf("KindOf() = %v, want %v", KindOf(err), tt.kind)
			}
		})
	}
}

func TestResize(t *testing.T) {
	tests := []struct {
		name       string
		w, h, size int
		wantW      int
		wantH      int
	}{
		{"landscape above prescale limit", 1000, 500, 256, 256, 128},
		{"large source small target", 2000, 1000, 128, 128, 64},
		{"portrait", 256, 512, 256, 128, 256},
		{"square", 300, 300, 256, 256, 256},
		{"smaller than target is not upscaled", 100, 50, 256, 100, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Resize(createTestImage(tt.w, tt.h), tt.size)
			if b := out.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("Resize() = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestGenerateJPEGFallback(t *testing.T) {
	g := NewGenerator(false)
	if g.WebPAvailable() {
		t.Fatal("WebP should be unavailable with vips disabled")
	}

	thumb, err := g.Generate(createTestImage(1000, 500), DefaultThumbnailConfig())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if thumb.MIMEType != "image/jpeg" {
		t.Errorf("MIMEType = %q, want image/jpeg", thumb.MIMEType)
	}
	if thumb.Width != 256 || thumb.Height != 128 {
		t.Errorf("size = %dx%d, want 256x128", thumb.Width, thumb.Height)
	}
	if thumb.Extension() != ".jpg" {
		t.Errorf("Extension() = %q, want .jpg", thumb.Extension())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb.Data))
	if err != nil {
		t.Fatalf("thumbnail does not decode: %v", err)
	}
	if cfg.Width != thumb.Width || cfg.Height != thumb.Height {
		t.Errorf("encoded size %dx%d differs from reported %dx%d", cfg.Width, cfg.Height, thumb.Width, thumb.Height)
	}
}

func TestGenerateQualityChangesOutput(t *testing.T) {
	g := NewGenerator(false)
	img := createTestImage(300, 300)

	low, err := g.Generate(img, ThumbnailConfig{Size: 128, Quality: 10, Format: FormatJPEG})
	if err != nil {
		t.Fatal(err)
	}
	high, err := g.Generate(img, ThumbnailConfig{Size: 128, Quality: 95, Format: FormatJPEG})
	if err != nil {
		t.Fatal(err)
	}
	if len(low.Data) >= len(high.Data) {
		t.Errorf("quality 10 produced %d bytes, quality 95 produced %d", len(low.Data), len(high.Data))
	}
}

func TestGenerateWebP(t *testing.T) {
	g := NewGenerator(true)
	if !g.WebPAvailable() {
		t.Skip("libvips not available")
	}

	thumb, err := g.Generate(createTestImage(640, 480), DefaultThumbnailConfig())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if f, err := imageformat.Sniff(thumb.Data); err != nil || f != imageformat.WebP {
		t.Errorf("Sniff() = %v, %v; want webp", f, err)
	}
	if thumb.Extension() != ".webp" {
		t.Errorf("Extension() = %q, want .webp", thumb.Extension())
	}
}
