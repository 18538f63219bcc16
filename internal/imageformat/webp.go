package imageformat

import (
	"encoding/binary"
	"fmt"
)

// RIFFChunk is one sub-chunk of a WebP RIFF container.
type RIFFChunk struct {
	FourCC string
	Data   []byte
}

// WebPDimensions reads the canvas size from the first sub-chunk.
func WebPDimensions(data []byte) (int, int, error) {
	if len(data) < 20 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return 0, 0, fmt.Errorf("webp: %w", ErrMalformedHeader)
	}
	fourCC := string(data[12:16])
	payload := data[20:]

	switch fourCC {
	case "VP8 ":
		// frame tag (3 bytes), start code 9d 01 2a, then 14-bit width/height
		if len(payload) < 10 || payload[3] != 0x9D || payload[4] != 0x01 || payload[5] != 0x2A {
			return 0, 0, fmt.Errorf("webp: bad VP8 frame header: %w", ErrMalformedHeader)
		}
		w := int(binary.LittleEndian.Uint16(payload[6:8]) & 0x3FFF)
		h := int(binary.LittleEndian.Uint16(payload[8:10]) & 0x3FFF)
		return w, h, nil
	case "VP8L":
		if len(payload) < 5 || payload[0] != 0x2F {
			return 0, 0, fmt.Errorf("webp: bad VP8L signature: %w", ErrMalformedHeader)
		}
		bits := binary.LittleEndian.Uint32(payload[1:5])
		w := int(bits&0x3FFF) + 1
		h := int((bits>>14)&0x3FFF) + 1
		return w, h, nil
	case "VP8X":
		if len(payload) < 10 {
			return 0, 0, fmt.Errorf("webp: short VP8X chunk: %w", ErrMalformedHeader)
		}
		w := int(uint32(payload[4])|uint32(payload[5])<<8|uint32(payload[6])<<16) + 1
		h := int(uint32(payload[7])|uint32(payload[8])<<8|uint32(payload[9])<<16) + 1
		return w, h, nil
	default:
		return 0, 0, fmt.Errorf("webp: sub-chunk %q: %w", fourCC, ErrUnsupportedVariant)
	}
}

// WebPChunks lists the RIFF sub-chunks. On truncation it returns the chunks
// read so far together with ErrMalformedHeader.
func WebPChunks(data []byte) ([]RIFFChunk, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil, fmt.Errorf("webp: %w", ErrMalformedHeader)
	}

	var chunks []RIFFChunk
	pos := 12
	for pos+8 <= len(data) {
		fourCC := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		start := pos + 8
		if size < 0 || start+size > len(data) {
			return chunks, fmt.Errorf("webp: chunk %q overruns buffer: %w", fourCC, ErrMalformedHeader)
		}
		chunks = append(chunks, RIFFChunk{FourCC: fourCC, Data: data[start : start+size : start+size]})
		pos = start + size + size&1
	}
	return chunks, nil
}

// FindRIFFChunk returns the payload of the first sub-chunk with fourCC.
func FindRIFFChunk(chunks []RIFFChunk, fourCC string) ([]byte, bool) {
	for _, c := range chunks {
		if c.FourCC == fourCC {
			return c.Data, true
		}
	}
	return nil, false
}
