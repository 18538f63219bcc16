package metadata

import (
	"errors"
	"fmt"

	"image-browser/internal/imageformat"
	"image-browser/internal/sdparams"
)

var (
	// ErrRatingOutOfRange is returned for ratings outside 0-5.
	ErrRatingOutOfRange = errors.New("rating out of range")
	// ErrReadOnlyFormat is returned when writing to a format the codec
	// only reads.
	ErrReadOnlyFormat = errors.New("format is read-only")
	// ErrMetadataDecode marks an EXIF container that could not be decoded.
	ErrMetadataDecode = errors.New("metadata decode failed")
	// ErrMalformedTIFF marks a TIFF blob the IFD patcher cannot walk.
	ErrMalformedTIFF = errors.New("malformed tiff structure")
	// ErrXMPParse marks an XMP packet that is not well-formed XML.
	ErrXMPParse = errors.New("xmp packet does not parse")
	// ErrNoDescription means an XMP packet has no rdf:Description to carry
	// the rating.
	ErrNoDescription = errors.New("xmp packet has no rdf:Description")
)

// Dates holds capture timestamps exactly as stored in the file: EXIF style
// "2006:01:02 15:04:05" or XMP ISO 8601.
type Dates struct {
	Original string `json:"original,omitempty"`
	Created  string `json:"created,omitempty"`
	Modified string `json:"modified,omitempty"`
}

// Embedded is everything the codec reads from one file. Rating is the
// resolved star rating; the per-source values are kept for diagnostics.
type Embedded struct {
	Dates       Dates
	Rating      *int
	ExifRating  *int
	ExifPercent *int
	XMPRating   *int
	XMPPercent  *int

	// Parameters is set for PNGs carrying a parseable "parameters" text.
	// ParametersErr records why it is nil.
	Parameters    *sdparams.Parameters
	ParametersErr error
	// ExifErr is set when an EXIF container was present but undecodable.
	ExifErr error
}

// Read extracts dates, rating and generation parameters from data. It never
// fails: unreadable containers simply contribute nothing.
func Read(data []byte, f imageformat.Format) Embedded {
	var exifBlob, xmpPacket []byte
	e := Embedded{ParametersErr: sdparams.ErrSectionNotFound}

	switch f {
	case imageformat.PNG:
		chunks, err := imageformat.ParsePNG(data)
		if err != nil {
			e.ParametersErr = err
			return e
		}
		exifBlob = pngExif(chunks)
		if text, ok := imageformat.FindText(chunks, xmpKeyword); ok {
			xmpPacket = []byte(text)
		}
		e.Parameters, e.ParametersErr = sdparams.FromPNGText(chunks)
	case imageformat.JPEG:
		j, err := imageformat.ParseJPEG(data)
		if err != nil {
			return e
		}
		if b, ok := j.APP1Payload(exifPrefix); ok {
			exifBlob = b
		}
		xmpPacket, _ = j.APP1Payload(xmpAPP1Prefix)
	case imageformat.WebP:
		chunks, _ := imageformat.WebPChunks(data)
		if b, ok := imageformat.FindRIFFChunk(chunks, "EXIF"); ok {
			exifBlob = stripExifPrefix(b)
		}
		xmpPacket, _ = imageformat.FindRIFFChunk(chunks, "XMP ")
	}

	ev, err := decodeExif(exifBlob)
	e.ExifErr = err
	xv := readXMP(xmpPacket)

	e.Dates = ev.dates
	setString(&e.Dates.Original, xv.dates.Original)
	setString(&e.Dates.Created, xv.dates.Created)
	setString(&e.Dates.Modified, xv.dates.Modified)

	e.ExifRating, e.ExifPercent = ev.rating, ev.percent
	e.XMPRating, e.XMPPercent = xv.rating, xv.percent
	e.Rating = resolveRating(&e)
	return e
}

// RatingUpdate is the rewritten file. XMPWarning is set when the XMP packet
// could not be updated; Data still carries the EXIF update.
type RatingUpdate struct {
	Data       []byte
	XMPWarning error
}

// WriteRating returns a copy of data with the rating written to EXIF IFD0
// (Rating and RatingPercent) and to XMP. An EXIF failure fails the write.
// Pixel data and unrelated metadata are copied through.
func WriteRating(data []byte, f imageformat.Format, rating int) (RatingUpdate, error) {
	if rating < 0 || rating > MaxRating {
		return RatingUpdate{}, fmt.Errorf("rating %d: %w", rating, ErrRatingOutOfRange)
	}

	switch f {
	case imageformat.PNG:
		return writePNG(data, rating)
	case imageformat.JPEG:
		return writeJPEG(data, rating)
	case imageformat.WebP:
		return RatingUpdate{}, fmt.Errorf("webp: %w", ErrReadOnlyFormat)
	default:
		return RatingUpdate{}, imageformat.ErrUnknownFormat
	}
}

// isXMPChunk matches the XMP text chunk whatever its text-chunk type, so a
// legacy tEXt/zTXt packet is upgraded in place instead of shadowing the new
// one.
func isXMPChunk(c imageformat.Chunk) bool {
	return imageformat.IsTextChunk(c.Type) && imageformat.HasKeyword(c, xmpKeyword)
}

func writePNG(data []byte, rating int) (RatingUpdate, error) {
	chunks, err := imageformat.ParsePNG(data)
	if err != nil {
		return RatingUpdate{}, err
	}

	blob, err := ratingTIFF(pngExif(chunks), rating)
	if err != nil {
		return RatingUpdate{}, fmt.Errorf("png exif: %w", err)
	}
	chunks = imageformat.ReplaceOrInsertChunk(chunks, PNGExifChunk, nil, "IDAT",
		imageformat.NewChunk(PNGExifChunk, blob))

	var existing []byte
	if text, ok := imageformat.FindText(chunks, xmpKeyword); ok {
		existing = []byte(text)
	}
	packet, xmpErr := updateXMP(existing, rating)
	if xmpErr == nil {
		chunks = imageformat.ReplaceOrInsertChunk(chunks, "", isXMPChunk, "IEND",
			imageformat.NewITXtChunk(xmpKeyword, string(packet)))
	}
	return RatingUpdate{Data: imageformat.EncodePNG(chunks), XMPWarning: xmpErr}, nil
}

// leadingHeaders matches the JFIF and EXIF segments that readers expect
// before any other APP segment.
func leadingHeaders(s imageformat.Segment) bool {
	return imageformat.IsAPP0(s) || imageformat.IsAPP1(exifPrefix)(s)
}

func writeJPEG(data []byte, rating int) (RatingUpdate, error) {
	j, err := imageformat.ParseJPEG(data)
	if err != nil {
		return RatingUpdate{}, err
	}

	existing, _ := j.APP1Payload(exifPrefix)
	blob, err := ratingTIFF(existing, rating)
	if err != nil {
		return RatingUpdate{}, fmt.Errorf("jpeg exif: %w", err)
	}
	if err := j.SetAPP1(exifPrefix, blob, imageformat.IsAPP0); err != nil {
		return RatingUpdate{}, fmt.Errorf("jpeg exif: %w", err)
	}

	packet, _ := j.APP1Payload(xmpAPP1Prefix)
	updated, xmpErr := updateXMP(packet, rating)
	if xmpErr == nil {
		xmpErr = j.SetAPP1(xmpAPP1Prefix, updated, leadingHeaders)
	}
	return RatingUpdate{Data: j.Encode(), XMPWarning: xmpErr}, nil
}
