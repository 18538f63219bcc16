package metadata

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"image-browser/internal/imageformat"
)

const (
	// PNGExifChunk is the standard PNG chunk for EXIF.
	PNGExifChunk = "eXIf"
	// rawProfileKeyword is the ImageMagick-style text chunk some tools still
	// write instead of eXIf.
	rawProfileKeyword = "Raw profile type exif"
)

var exifPrefix = []byte("Exif\x00\x00")

const (
	fieldRating        exif.FieldName = "Rating"
	fieldRatingPercent exif.FieldName = "RatingPercent"
)

var ratingFields = map[uint16]exif.FieldName{
	TagRating:        fieldRating,
	TagRatingPercent: fieldRatingPercent,
}

type exifValues struct {
	dates   Dates
	rating  *int
	percent *int
}

// stripExifPrefix removes an optional "Exif\0\0" header so the result starts
// with the TIFF byte-order mark.
func stripExifPrefix(b []byte) []byte {
	return bytes.TrimPrefix(b, exifPrefix)
}

// pngExif returns the TIFF blob from eXIf, falling back to a raw-profile text
// chunk.
func pngExif(chunks []imageformat.Chunk) []byte {
	if i := imageformat.FindChunk(chunks, PNGExifChunk, nil); i >= 0 {
		return stripExifPrefix(chunks[i].Data)
	}
	if text, ok := imageformat.FindText(chunks, rawProfileKeyword); ok {
		if b, err := decodeRawProfile(text); err == nil {
			return stripExifPrefix(b)
		}
	}
	return nil
}

// decodeRawProfile decodes "\nexif\n   <len>\n<hex lines>".
func decodeRawProfile(text string) ([]byte, error) {
	fields := strings.Fields(text)
	if len(fields) < 3 {
		return nil, fmt.Errorf("raw profile: %w", ErrMalformedTIFF)
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("raw profile length %q: %w", fields[1], ErrMalformedTIFF)
	}
	b, err := hex.DecodeString(strings.Join(fields[2:], ""))
	if err != nil {
		return nil, fmt.Errorf("raw profile: %w", err)
	}
	if len(b) > n {
		b = b[:n]
	}
	return b, nil
}

// decodeExif reads dates and rating tags from a TIFF blob. goexif rejects a
// whole IFD over one bad value offset, so when it fails the entries are
// walked directly and only the unreadable ones are skipped. Fields goexif
// left empty after a partial decode are filled the same way.
func decodeExif(blob []byte) (exifValues, error) {
	if len(blob) == 0 {
		return exifValues{}, nil
	}
	v, err := goexifValues(blob)
	if err == nil {
		return v, nil
	}
	walked, walkErr := walkExif(blob)
	if walkErr != nil {
		return v, err
	}
	setString(&walked.dates.Original, v.dates.Original)
	setString(&walked.dates.Created, v.dates.Created)
	setString(&walked.dates.Modified, v.dates.Modified)
	if walked.rating == nil {
		walked.rating = v.rating
	}
	if walked.percent == nil {
		walked.percent = v.percent
	}
	return walked, nil
}

func goexifValues(blob []byte) (v exifValues, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = exifValues{}, fmt.Errorf("%w: panic: %v", ErrMetadataDecode, r)
		}
	}()

	x, err := exif.Decode(bytes.NewReader(blob))
	if x == nil {
		return v, fmt.Errorf("%w: %v", ErrMetadataDecode, err)
	}
	if x.Tiff != nil && len(x.Tiff.Dirs) > 0 {
		x.LoadTags(x.Tiff.Dirs[0], ratingFields, false)
	}

	v.dates.Original = exifString(x, exif.DateTimeOriginal)
	v.dates.Created = exifString(x, exif.DateTimeDigitized)
	v.dates.Modified = exifString(x, exif.DateTime)
	if v.dates.Original == "" {
		v.dates.Original = v.dates.Modified
	}
	v.rating = exifInt(x, fieldRating)
	v.percent = exifInt(x, fieldRatingPercent)
	if err != nil {
		return v, fmt.Errorf("%w: %v", ErrMetadataDecode, err)
	}
	return v, nil
}

// walkExif reads IFD0 and the Exif sub-IFD entry by entry.
func walkExif(blob []byte) (exifValues, error) {
	var v exifValues
	h, err := readTIFFHeader(blob)
	if err != nil {
		return v, err
	}
	entries, _, err := readIFD(blob, h.order, h.ifd0)
	if err != nil {
		return v, err
	}

	var sub uint32
	for _, e := range entries {
		switch e.tag {
		case tagDateTime:
			v.dates.Modified, _ = e.stringValue(blob, h.order)
		case TagRating:
			v.rating = uintPtr(e.uintValue(blob, h.order))
		case TagRatingPercent:
			v.percent = uintPtr(e.uintValue(blob, h.order))
		case tagExifIFD:
			sub, _ = e.uintValue(blob, h.order)
		}
	}
	if sub != 0 {
		if entries, _, err := readIFD(blob, h.order, sub); err == nil {
			for _, e := range entries {
				switch e.tag {
				case tagDateTimeOriginal:
					v.dates.Original, _ = e.stringValue(blob, h.order)
				case tagDateTimeDigitized:
					v.dates.Created, _ = e.stringValue(blob, h.order)
				}
			}
		}
	}
	if v.dates.Original == "" {
		v.dates.Original = v.dates.Modified
	}
	return v, nil
}

func uintPtr(n uint32, ok bool) *int {
	if !ok {
		return nil
	}
	i := int(n)
	return &i
}

func exifString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

// exifInt reads a numeric tag, also accepting ASCII digits.
func exifInt(x *exif.Exif, name exif.FieldName) *int {
	tag, err := x.Get(name)
	if err != nil || tag == nil || tag.Count == 0 {
		return nil
	}
	switch tag.Format() {
	case tiff.IntVal:
		n, err := tag.Int(0)
		if err != nil {
			return nil
		}
		return &n
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimRight(s, "\x00")))
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// ratingTIFF patches the rating tags into blob, creating a TIFF if needed.
func ratingTIFF(blob []byte, rating int) ([]byte, error) {
	return SetIFD0Shorts(blob, map[uint16]uint16{
		TagRating:        uint16(rating),
		TagRatingPercent: uint16(PercentFromRating(rating)),
	})
}
