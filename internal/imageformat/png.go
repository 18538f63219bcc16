package imageformat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Chunk is one PNG chunk. Data aliases the parsed buffer; CRC is the value
// stored in the file (or computed by NewChunk) and is written back verbatim.
type Chunk struct {
	Type string
	Data []byte
	CRC  uint32
}

// NewChunk builds a chunk and computes its CRC32 over type and data.
func NewChunk(typ string, data []byte) Chunk {
	return Chunk{Type: typ, Data: data, CRC: chunkCRC(typ, data)}
}

func chunkCRC(typ string, data []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write([]byte(typ))
	h.Write(data)
	return h.Sum32()
}

// PNGDimensions reads width and height from IHDR, which must be the first
// chunk and complete. The rest of the chunk list is walked up to IEND, so a
// file truncated mid-chunk fails with ErrMalformedHeader.
func PNGDimensions(data []byte) (int, int, error) {
	// signature(8) + length(4) + "IHDR"(4) + 13 bytes of header + crc(4)
	if len(data) < 33 || !bytes.HasPrefix(data, pngSignature) {
		return 0, 0, fmt.Errorf("png: %w", ErrMalformedHeader)
	}
	if string(data[12:16]) != "IHDR" || binary.BigEndian.Uint32(data[8:12]) != 13 {
		return 0, 0, fmt.Errorf("png: IHDR is not the first chunk: %w", ErrMalformedHeader)
	}
	w := binary.BigEndian.Uint32(data[16:20])
	h := binary.BigEndian.Uint32(data[20:24])
	if w == 0 || h == 0 || w > 1<<31-1 || h > 1<<31-1 {
		return 0, 0, fmt.Errorf("png: invalid size %dx%d: %w", w, h, ErrMalformedHeader)
	}
	if _, err := ParsePNG(data); err != nil {
		return 0, 0, err
	}
	return int(w), int(h), nil
}

// ParsePNG walks the chunk list from the signature to IEND inclusive.
// Bytes after IEND are ignored.
func ParsePNG(data []byte) ([]Chunk, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, fmt.Errorf("png: bad signature: %w", ErrMalformedHeader)
	}

	var chunks []Chunk
	pos := len(pngSignature)
	for {
		if pos+8 > len(data) {
			return nil, fmt.Errorf("png: truncated before IEND at offset %d: %w", pos, ErrMalformedHeader)
		}
		length := binary.BigEndian.Uint32(data[pos : pos+4])
		typ := string(data[pos+4 : pos+8])
		if length > 1<<31-1 || uint64(pos)+12+uint64(length) > uint64(len(data)) {
			return nil, fmt.Errorf("png: chunk %q at offset %d overruns buffer: %w", typ, pos, ErrMalformedHeader)
		}
		start := pos + 8
		end := start + int(length)
		chunks = append(chunks, Chunk{
			Type: typ,
			Data: data[start:end:end],
			CRC:  binary.BigEndian.Uint32(data[end : end+4]),
		})
		pos = end + 4
		if typ == "IEND" {
			return chunks, nil
		}
	}
}

// EncodePNG serializes the signature and chunks in order.
func EncodePNG(chunks []Chunk) []byte {
	size := len(pngSignature)
	for _, c := range chunks {
		size += 12 + len(c.Data)
	}

	out := make([]byte, 0, size)
	out = append(out, pngSignature...)
	for _, c := range chunks {
		out = binary.BigEndian.AppendUint32(out, uint32(len(c.Data)))
		out = append(out, c.Type...)
		out = append(out, c.Data...)
		out = binary.BigEndian.AppendUint32(out, c.CRC)
	}
	return out
}

// FindChunk returns the index of the first chunk of type typ for which match
// returns true, or -1. A nil match accepts any chunk of that type; an empty
// typ leaves the choice to match.
func FindChunk(chunks []Chunk, typ string, match func(Chunk) bool) int {
	for i, c := range chunks {
		if (typ == "" || c.Type == typ) && (match == nil || match(c)) {
			return i
		}
	}
	return -1
}

// InsertChunkBefore inserts c before the first chunk of type before. If no
// such chunk exists it is inserted before IEND.
func InsertChunkBefore(chunks []Chunk, before string, c Chunk) []Chunk {
	i := FindChunk(chunks, before, nil)
	if i < 0 {
		i = FindChunk(chunks, "IEND", nil)
	}
	if i < 0 {
		i = len(chunks)
	}
	out := make([]Chunk, 0, len(chunks)+1)
	out = append(out, chunks[:i]...)
	out = append(out, c)
	return append(out, chunks[i:]...)
}

// ReplaceOrInsertChunk replaces the first chunk of type typ accepted by match
// with c, keeping its position. Without a match c goes before the first
// chunk of type before (or IEND).
func ReplaceOrInsertChunk(chunks []Chunk, typ string, match func(Chunk) bool, before string, c Chunk) []Chunk {
	if i := FindChunk(chunks, typ, match); i >= 0 {
		out := make([]Chunk, len(chunks))
		copy(out, chunks)
		out[i] = c
		return out
	}
	return InsertChunkBefore(chunks, before, c)
}
