package media

import (
	"context"
	"errors"
	"io/fs"

	"image-browser/internal/imageformat"
	"image-browser/internal/metadata"
	"image-browser/internal/sdparams"
)

// Kind classifies failures so that transports can map them to responses.
type Kind int

const (
	KindUnknown Kind = iota
	KindIO
	KindMalformedHeader
	KindSegmentNotFound
	KindUnsupportedVariant
	KindUnknownFormat
	KindMetadataDecode
	KindDecode
	KindParse
	KindInvalidInput
	KindCache
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindIO:                 "io",
	KindMalformedHeader:    "malformed_header",
	KindSegmentNotFound:    "segment_not_found",
	KindUnsupportedVariant: "unsupported_variant",
	KindUnknownFormat:      "unknown_format",
	KindMetadataDecode:     "metadata_decode",
	KindDecode:             "decode",
	KindParse:              "parse",
	KindInvalidInput:       "invalid_input",
	KindCache:              "cache",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ErrDecode is returned when pixel data cannot be decoded.
var ErrDecode = errors.New("image decode failed")

// Error carries a Kind along with the operation and path that failed.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a kind. A nil err yields nil.
func NewError(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf classifies err. Explicit *Error kinds win; otherwise the package
// sentinels are recognized through errors.Is.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != KindUnknown {
		return e.Kind
	}

	switch {
	case errors.Is(err, imageformat.ErrMalformedHeader):
		return KindMalformedHeader
	case errors.Is(err, imageformat.ErrSegmentNotFound):
		return KindSegmentNotFound
	case errors.Is(err, imageformat.ErrUnsupportedVariant),
		errors.Is(err, imageformat.ErrSegmentTooLarge),
		errors.Is(err, metadata.ErrReadOnlyFormat):
		return KindUnsupportedVariant
	case errors.Is(err, imageformat.ErrUnknownFormat):
		return KindUnknownFormat
	case errors.Is(err, metadata.ErrRatingOutOfRange):
		return KindInvalidInput
	case errors.Is(err, metadata.ErrMetadataDecode),
		errors.Is(err, metadata.ErrMalformedTIFF),
		errors.Is(err, metadata.ErrXMPParse),
		errors.Is(err, metadata.ErrNoDescription):
		return KindMetadataDecode
	case errors.Is(err, sdparams.ErrEmpty), errors.Is(err, sdparams.ErrSectionNotFound):
		return KindParse
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindUnknown
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return KindIO
	}
	return KindUnknown
}

// IsNotExist reports whether err is an I/O error for a missing file.
func IsNotExist(err error) bool {
	return KindOf(err) == KindIO && errors.Is(err, fs.ErrNotExist)
}
