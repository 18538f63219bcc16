package media

import (
	"bytes"
	"fmt"
	"image"

	"image-browser/internal/imageformat"

	// Decoders registered for imaging.Decode.
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// MaxDecodePixels bounds the canvas size Decode accepts. A 100MP RGBA
// image already needs about 400MB.
const MaxDecodePixels = 100_000_000

// Decode decodes data, applying the EXIF orientation. The canvas size is
// checked from the headers before any pixel work, and decoder panics on
// corrupt input are returned as ErrDecode.
func Decode(data []byte, f imageformat.Format) (img image.Image, err error) {
	w, h, err := imageformat.Dimensions(data, f)
	if err != nil {
		return nil, err
	}
	if w*h > MaxDecodePixels {
		return nil, fmt.Errorf("%dx%d exceeds %d pixels: %w", w, h, MaxDecodePixels, ErrDecode)
	}

	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("%s decoder panic: %v: %w", f, r, ErrDecode)
		}
	}()

	img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", f, err, ErrDecode)
	}
	return img, nil
}
