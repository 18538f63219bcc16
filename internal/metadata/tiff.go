package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

// TIFF field types used by the patcher and the entry reader.
const (
	tiffASCII = 2
	tiffShort = 3
	tiffLong  = 4

	ifdEntrySize = 12
)

// Rating tags in IFD0.
const (
	TagRating        uint16 = 0x4746 // 18246
	TagRatingPercent uint16 = 0x4749 // 18249
)

// Date tags and the Exif sub-IFD pointer.
const (
	tagDateTime          uint16 = 0x0132
	tagExifIFD           uint16 = 0x8769
	tagDateTimeOriginal  uint16 = 0x9003
	tagDateTimeDigitized uint16 = 0x9004
)

// byteOrder is what encoding/binary's LittleEndian and BigEndian provide.
type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

type ifdEntry struct {
	tag uint16
	raw [ifdEntrySize]byte
}

type tiffHeader struct {
	order byteOrder
	ifd0  uint32
}

func readTIFFHeader(b []byte) (tiffHeader, error) {
	if len(b) < 8 {
		return tiffHeader{}, fmt.Errorf("tiff header of %d bytes: %w", len(b), ErrMalformedTIFF)
	}
	var order byteOrder
	switch string(b[0:4]) {
	case "II*\x00":
		order = binary.LittleEndian
	case "MM\x00*":
		order = binary.BigEndian
	default:
		return tiffHeader{}, fmt.Errorf("bad tiff byte-order mark %q: %w", b[0:4], ErrMalformedTIFF)
	}
	return tiffHeader{order: order, ifd0: order.Uint32(b[4:8])}, nil
}

// readIFD returns the raw entries of the IFD at off and its next-IFD pointer.
func readIFD(b []byte, order byteOrder, off uint32) ([]ifdEntry, uint32, error) {
	pos := int(off)
	if off < 8 || pos+2 > len(b) {
		return nil, 0, fmt.Errorf("ifd offset %d outside %d-byte blob: %w", off, len(b), ErrMalformedTIFF)
	}
	n := int(order.Uint16(b[pos : pos+2]))
	pos += 2
	if pos+n*ifdEntrySize+4 > len(b) {
		return nil, 0, fmt.Errorf("ifd with %d entries overruns blob: %w", n, ErrMalformedTIFF)
	}
	entries := make([]ifdEntry, n)
	for i := range entries {
		e := &entries[i]
		copy(e.raw[:], b[pos:pos+ifdEntrySize])
		e.tag = order.Uint16(e.raw[0:2])
		pos += ifdEntrySize
	}
	return entries, order.Uint32(b[pos : pos+4]), nil
}

// value returns the entry's field type, count and value bytes, read inline
// or from the offset it points at.
func (e ifdEntry) value(b []byte, order byteOrder) (typ uint16, count uint32, val []byte, err error) {
	typ = order.Uint16(e.raw[2:4])
	count = order.Uint32(e.raw[4:8])
	var unit uint64
	switch typ {
	case tiffASCII:
		unit = 1
	case tiffShort:
		unit = 2
	case tiffLong:
		unit = 4
	default:
		return typ, count, nil, fmt.Errorf("tag 0x%04x has unsupported type %d: %w", e.tag, typ, ErrMalformedTIFF)
	}
	size := unit * uint64(count)
	if size <= 4 {
		return typ, count, e.raw[8 : 8+size], nil
	}
	off := uint64(order.Uint32(e.raw[8:12]))
	if off+size > uint64(len(b)) {
		return typ, count, nil, fmt.Errorf("tag 0x%04x value at %d overruns blob: %w", e.tag, off, ErrMalformedTIFF)
	}
	return typ, count, b[off : off+size], nil
}

// uintValue reads the first SHORT or LONG of an entry.
func (e ifdEntry) uintValue(b []byte, order byteOrder) (uint32, bool) {
	typ, count, val, err := e.value(b, order)
	if err != nil || count == 0 {
		return 0, false
	}
	switch typ {
	case tiffShort:
		return uint32(order.Uint16(val)), true
	case tiffLong:
		return order.Uint32(val), true
	}
	return 0, false
}

// stringValue reads an ASCII entry without its NUL terminator.
func (e ifdEntry) stringValue(b []byte, order byteOrder) (string, bool) {
	typ, _, val, err := e.value(b, order)
	if err != nil || typ != tiffASCII {
		return "", false
	}
	if i := bytes.IndexByte(val, 0); i >= 0 {
		val = val[:i]
	}
	return strings.TrimSpace(string(val)), true
}

func shortEntry(order byteOrder, tag, value uint16) ifdEntry {
	e := ifdEntry{tag: tag}
	order.PutUint16(e.raw[0:2], tag)
	order.PutUint16(e.raw[2:4], tiffShort)
	order.PutUint32(e.raw[4:8], 1)
	order.PutUint16(e.raw[8:10], value)
	return e
}

// newTIFF builds a minimal little-endian TIFF holding only the given SHORT
// tags in IFD0.
func newTIFF(values map[uint16]uint16) []byte {
	order := binary.LittleEndian
	entries := make([]ifdEntry, 0, len(values))
	for tag, v := range values {
		entries = append(entries, shortEntry(order, tag, v))
	}
	out := []byte("II*\x00")
	out = order.AppendUint32(out, 8)
	return appendIFD(out, order, entries, 0)
}

func appendIFD(out []byte, order byteOrder, entries []ifdEntry, next uint32) []byte {
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })
	out = order.AppendUint16(out, uint16(len(entries)))
	for _, e := range entries {
		out = append(out, e.raw[:]...)
	}
	return order.AppendUint32(out, next)
}

// SetIFD0Shorts sets SHORT tags in IFD0 of a TIFF blob and returns the new
// blob; the input is never modified. An empty input yields a fresh TIFF.
//
// When every tag already exists as a single SHORT its value is patched in
// place. Otherwise a rewritten IFD0 is appended at the end of the blob and
// the header repointed to it. Entries are copied verbatim, so every value
// offset into the rest of the blob stays valid.
func SetIFD0Shorts(blob []byte, values map[uint16]uint16) ([]byte, error) {
	if len(blob) == 0 {
		return newTIFF(values), nil
	}

	h, err := readTIFFHeader(blob)
	if err != nil {
		return nil, err
	}
	entries, next, err := readIFD(blob, h.order, h.ifd0)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(blob), len(blob)+2+(len(entries)+len(values))*ifdEntrySize+5)
	copy(out, blob)

	pending := make(map[uint16]uint16, len(values))
	for tag, v := range values {
		pending[tag] = v
	}
	entryStart := int(h.ifd0) + 2
	for i, e := range entries {
		v, ok := pending[e.tag]
		if !ok {
			continue
		}
		if h.order.Uint16(e.raw[2:4]) == tiffShort && h.order.Uint32(e.raw[4:8]) == 1 {
			valueAt := entryStart + i*ifdEntrySize + 8
			h.order.PutUint16(out[valueAt:valueAt+2], v)
			delete(pending, e.tag)
		}
	}
	if len(pending) == 0 {
		return out, nil
	}

	rewritten := make([]ifdEntry, 0, len(entries)+len(pending))
	for _, e := range entries {
		if _, replace := pending[e.tag]; replace {
			continue
		}
		if v, patched := values[e.tag]; patched {
			e = shortEntry(h.order, e.tag, v)
		}
		rewritten = append(rewritten, e)
	}
	for tag, v := range pending {
		rewritten = append(rewritten, shortEntry(h.order, tag, v))
	}

	if len(out)%2 == 1 {
		out = append(out, 0)
	}
	newIFD := uint32(len(out))
	out = appendIFD(out, h.order, rewritten, next)
	h.order.PutUint32(out[4:8], newIFD)
	return out, nil
}
