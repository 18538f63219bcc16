package imageformat

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MaxSegmentPayload is the largest payload a JPEG marker segment can carry.
const MaxSegmentPayload = 0xFFFF - 2

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerAPP0 = 0xE0
	markerAPP1 = 0xE1
)

// Segment is one JPEG marker segment before the scan data. Fill counts the
// extra 0xFF padding bytes that preceded the marker in the source.
type Segment struct {
	Marker     byte
	Data       []byte
	Standalone bool
	Fill       int
}

// JPEGStream is a parsed JPEG stream: the marker segments up to and
// including SOS, followed by the opaque remainder (entropy-coded data and
// EOI).
type JPEGStream struct {
	Segments []Segment
	Tail     []byte
}

func isStandalone(marker byte) bool {
	return marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) || marker == markerSOI || marker == markerEOI
}

// JPEGDimensions scans segments for the first SOF0–SOF2 marker and reads
// height and width from it.
func JPEGDimensions(data []byte) (int, int, error) {
	if !bytes.HasPrefix(data, jpegSOI) {
		return 0, 0, fmt.Errorf("jpeg: missing SOI: %w", ErrMalformedHeader)
	}

	pos := 2
	for pos < len(data) {
		if data[pos] != 0xFF {
			return 0, 0, fmt.Errorf("jpeg: expected marker at offset %d: %w", pos, ErrSegmentNotFound)
		}
		for pos < len(data) && data[pos] == 0xFF {
			pos++
		}
		if pos >= len(data) {
			break
		}
		marker := data[pos]
		pos++

		if isStandalone(marker) {
			if marker == markerEOI {
				break
			}
			continue
		}
		if marker == markerSOS {
			break
		}
		if pos+2 > len(data) {
			break
		}
		length := int(binary.BigEndian.Uint16(data[pos : pos+2]))
		if length < 2 || pos+length > len(data) {
			break
		}
		if marker >= 0xC0 && marker <= 0xC2 {
			if length < 7 {
				return 0, 0, fmt.Errorf("jpeg: short SOF segment: %w", ErrMalformedHeader)
			}
			h := int(binary.BigEndian.Uint16(data[pos+3 : pos+5]))
			w := int(binary.BigEndian.Uint16(data[pos+5 : pos+7]))
			return w, h, nil
		}
		pos += length
	}
	return 0, 0, fmt.Errorf("jpeg: no SOF0-2 marker: %w", ErrSegmentNotFound)
}

// ParseJPEG splits a JPEG stream into marker segments. Parsing stops after
// the SOS header; anything the walker cannot interpret is kept in Tail so
// that Encode reproduces the input exactly.
func ParseJPEG(data []byte) (*JPEGStream, error) {
	if !bytes.HasPrefix(data, jpegSOI) {
		return nil, fmt.Errorf("jpeg: missing SOI: %w", ErrMalformedHeader)
	}

	j := &JPEGStream{}
	pos := 2
	for pos < len(data) {
		if data[pos] != 0xFF {
			break
		}
		start := pos
		fill := 0
		for pos+1 < len(data) && data[pos+1] == 0xFF {
			pos++
			fill++
		}
		if pos+1 >= len(data) {
			pos = start
			break
		}
		marker := data[pos+1]
		if isStandalone(marker) {
			j.Segments = append(j.Segments, Segment{Marker: marker, Standalone: true, Fill: fill})
			pos += 2
			if marker == markerEOI {
				break
			}
			continue
		}
		if pos+4 > len(data) {
			pos = start
			break
		}
		length := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		end := pos + 2 + length
		if length < 2 || end > len(data) {
			pos = start
			break
		}
		j.Segments = append(j.Segments, Segment{Marker: marker, Data: data[pos+4 : end : end], Fill: fill})
		pos = end
		if marker == markerSOS {
			break
		}
	}
	j.Tail = data[pos:]
	return j, nil
}

// Encode serializes the stream.
func (j *JPEGStream) Encode() []byte {
	size := 2 + len(j.Tail)
	for _, s := range j.Segments {
		size += 4 + s.Fill + len(s.Data)
	}

	out := make([]byte, 0, size)
	out = append(out, jpegSOI...)
	for _, s := range j.Segments {
		out = append(out, bytes.Repeat([]byte{0xFF}, s.Fill)...)
		out = append(out, 0xFF, s.Marker)
		if s.Standalone {
			continue
		}
		out = binary.BigEndian.AppendUint16(out, uint16(len(s.Data)+2))
		out = append(out, s.Data...)
	}
	return append(out, j.Tail...)
}

// FindAPP1 returns the index of the first APP1 segment whose payload starts
// with prefix, or -1.
func (j *JPEGStream) FindAPP1(prefix []byte) int {
	for i, s := range j.Segments {
		if s.Marker == markerAPP1 && bytes.HasPrefix(s.Data, prefix) {
			return i
		}
	}
	return -1
}

// APP1Payload returns the payload after prefix of the first matching APP1
// segment.
func (j *JPEGStream) APP1Payload(prefix []byte) ([]byte, bool) {
	i := j.FindAPP1(prefix)
	if i < 0 {
		return nil, false
	}
	return j.Segments[i].Data[len(prefix):], true
}

// IsAPP0 matches a JFIF/JFXX APP0 header segment.
func IsAPP0(s Segment) bool { return s.Marker == markerAPP0 }

// IsAPP1 returns a matcher for APP1 segments whose payload starts with
// prefix.
func IsAPP1(prefix []byte) func(Segment) bool {
	return func(s Segment) bool {
		return s.Marker == markerAPP1 && bytes.HasPrefix(s.Data, prefix)
	}
}

// SetAPP1 replaces the APP1 segment carrying prefix in place, or inserts a
// new one directly after SOI. A non-nil after skips the leading run of
// segments it matches, so headers that must come first stay first. body is
// the payload without prefix.
func (j *JPEGStream) SetAPP1(prefix, body []byte, after func(Segment) bool) error {
	if len(prefix)+len(body) > MaxSegmentPayload {
		return fmt.Errorf("jpeg: APP1 payload of %d bytes: %w", len(prefix)+len(body), ErrSegmentTooLarge)
	}
	data := make([]byte, 0, len(prefix)+len(body))
	data = append(data, prefix...)
	data = append(data, body...)

	if i := j.FindAPP1(prefix); i >= 0 {
		j.Segments[i] = Segment{Marker: markerAPP1, Data: data, Fill: j.Segments[i].Fill}
		return nil
	}

	at := 0
	for after != nil && at < len(j.Segments) && after(j.Segments[at]) {
		at++
	}
	segs := make([]Segment, 0, len(j.Segments)+1)
	segs = append(segs, j.Segments[:at]...)
	segs = append(segs, Segment{Marker: markerAPP1, Data: data})
	j.Segments = append(segs, j.Segments[at:]...)
	return nil
}
