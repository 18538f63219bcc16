package imageformat

import (
	"bytes"
	"errors"
)

// Format is the closed set of container formats the engine understands.
type Format int

const (
	// Unknown is the zero value; Sniff never returns it without an error.
	Unknown Format = iota
	PNG
	JPEG
	WebP
)

var (
	// ErrUnknownFormat means the bytes match none of the supported magics.
	ErrUnknownFormat = errors.New("unknown image format")
	// ErrMalformedHeader means a signature or mandatory header is missing or
	// truncated.
	ErrMalformedHeader = errors.New("malformed image header")
	// ErrSegmentNotFound means a required JPEG segment was not found before
	// the end of the buffer.
	ErrSegmentNotFound = errors.New("required segment not found")
	// ErrUnsupportedVariant means a recognised container holds a sub-format
	// the parser does not handle.
	ErrUnsupportedVariant = errors.New("unsupported format variant")
	// ErrSegmentTooLarge means a JPEG segment payload exceeds 65533 bytes.
	ErrSegmentTooLarge = errors.New("segment payload too large")
)

var (
	pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpegSOI      = []byte{0xFF, 0xD8}
)

// Sniff identifies the format from magic bytes.
func Sniff(data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return PNG, nil
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return JPEG, nil
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return WebP, nil
	default:
		return Unknown, ErrUnknownFormat
	}
}

// MIMEType returns the IANA media type.
func (f Format) MIMEType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPEG:
		return "image/jpeg"
	case WebP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the canonical file extension including the dot.
func (f Format) Extension() string {
	switch f {
	case PNG:
		return ".png"
	case JPEG:
		return ".jpg"
	case WebP:
		return ".webp"
	default:
		return ""
	}
}

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case JPEG:
		return "jpeg"
	case WebP:
		return "webp"
	default:
		return "unknown"
	}
}

// Dimensions reads width and height from the container headers without
// decoding pixel data.
func Dimensions(data []byte, f Format) (width, height int, err error) {
	switch f {
	case PNG:
		return PNGDimensions(data)
	case JPEG:
		return JPEGDimensions(data)
	case WebP:
		return WebPDimensions(data)
	default:
		return 0, 0, ErrUnknownFormat
	}
}
