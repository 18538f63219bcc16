// Package media holds the image-level pieces of the engine: the shared
// result types, the error kinds, pixel decoding, thumbnail generation and
// the directory scanner.
//
// Thumbnails are produced in two steps. Images whose longest edge exceeds
// 512 pixels are first reduced with a linear filter, then fitted into the
// target box with Lanczos. WebP output goes through libvips (InitVips must
// have been called); without it, or for the jpeg format, imaging encodes a
// JPEG.
//
// Errors carry a Kind so that the HTTP layer and the CLI can map them to
// status codes without string matching:
//
//	if media.KindOf(err) == media.KindInvalidInput { ... }
package media
