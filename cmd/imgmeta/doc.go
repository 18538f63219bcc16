// Command imgmeta runs the image engine from the command line, without the
// HTTP server. It shares the server's configuration (environment and
// CONFIG_FILE) and cache directory, so ratings and cached thumbnails are
// seen by both.
//
// Usage:
//
//	imgmeta metadata a.png b.jpg          # JSON, one entry per file
//	imgmeta thumbnail a.png -o a.webp --size 512
//	imgmeta rate a.png 4
//	imgmeta clear-cache
//	imgmeta version
//
// Paths are taken relative to the current directory.
package main
