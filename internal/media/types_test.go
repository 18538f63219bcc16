package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"image-browser/internal/imageformat"
	"image-browser/internal/metadata"
	"image-browser/internal/sdparams"
)

func TestThumbnailConfigValidate(t *testing.T) {
	tests := []struct {
		name       string
		cfg        ThumbnailConfig
		wantErr    bool
		wantFormat string
	}{
		{"defaults", DefaultThumbnailConfig(), false, FormatWebP},
		{"jpg alias", ThumbnailConfig{Size: 128, Quality: 80, Format: " JPG "}, false, FormatJPEG},
		{"size too small", ThumbnailConfig{Size: 8, Quality: 70, Format: "webp"}, true, ""},
		{"size too large", ThumbnailConfig{Size: 4096, Quality: 70, Format: "webp"}, true, ""},
		{"quality zero", ThumbnailConfig{Size: 256, Quality: 0, Format: "webp"}, true, ""},
		{"unknown format", ThumbnailConfig{Size: 256, Quality: 70, Format: "gif"}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && cfg.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", cfg.Format, tt.wantFormat)
			}
		})
	}
}

func TestIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	id := IdentityOf(path, info)
	if id.FileSize != 10 || id.ModifiedTime != info.ModTime().UnixNano() {
		t.Errorf("IdentityOf() = %+v", id)
	}

	moved := id
	moved.Path = "/elsewhere.png"
	if !id.Matches(moved) {
		t.Error("identity should not depend on path")
	}

	touched := id
	touched.ModifiedTime += int64(time.Millisecond)
	if id.Matches(touched) {
		t.Error("sub-second mtime change should not match")
	}

	grown := id
	grown.FileSize++
	if id.Matches(grown) {
		t.Error("size change should not match")
	}
}

func TestKindOf(t *testing.T) {
	_, statErr := os.Stat(filepath.Join(t.TempDir(), "missing"))

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"explicit kind", NewError(KindCache, "store", "/a", errors.New("disk full")), KindCache},
		{"wrapped malformed header", fmt.Errorf("read: %w", imageformat.ErrMalformedHeader), KindMalformedHeader},
		{"segment not found", imageformat.ErrSegmentNotFound, KindSegmentNotFound},
		{"unsupported variant", imageformat.ErrUnsupportedVariant, KindUnsupportedVariant},
		{"read-only format", metadata.ErrReadOnlyFormat, KindUnsupportedVariant},
		{"unknown format", imageformat.ErrUnknownFormat, KindUnknownFormat},
		{"rating out of range", metadata.ErrRatingOutOfRange, KindInvalidInput},
		{"xmp parse", metadata.ErrXMPParse, KindMetadataDecode},
		{"parameters", sdparams.ErrSectionNotFound, KindParse},
		{"decode", ErrDecode, KindDecode},
		{"stat error", statErr, KindIO},
		{"context", context.Canceled, KindUnknown},
		{"plain", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}

	if !IsNotExist(NewError(KindIO, "stat", "/missing", statErr)) {
		t.Error("IsNotExist() should see through *Error")
	}
}

func TestNewErrorNil(t *testing.T) {
	if NewError(KindIO, "stat", "/a", nil) != nil {
		t.Error("NewError(nil) should be nil")
	}
	err := NewError(KindIO, "stat", "/a", os.ErrNotExist)
	if err.Error() != "stat /a: file does not exist" {
		t.Errorf("Error() = %q", err.Error())
	}
}
