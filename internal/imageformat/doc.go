// Package imageformat contains byte-level readers and writers for the PNG,
// JPEG and WebP containers.
//
// Sniff maps magic bytes to the closed Format enum; Dimensions reads the
// canvas size from headers without touching pixel data.
//
// For metadata surgery the package exposes the container structure:
//
//   - PNG: ParsePNG/EncodePNG over an ordered []Chunk. Unmodified chunks are
//     written back with their original CRC; NewChunk computes a fresh one.
//   - JPEG: ParseJPEG/Encode over marker segments up to SOS, with the scan
//     data kept opaque. SetAPP1 replaces or inserts an identified APP1.
//   - WebP: WebPChunks lists RIFF sub-chunks (read only).
//
// Truncated or corrupt input yields ErrMalformedHeader, ErrSegmentNotFound
// or ErrUnsupportedVariant and never panics.
package imageformat
