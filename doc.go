// Package main provides the entry point for the Image Browser server.
//
// Image Browser serves a directory tree of PNG, JPEG and WebP images over
// HTTP. It reads dimensions, star ratings, capture dates and embedded
// Stable Diffusion generation parameters, generates cached thumbnails and
// writes ratings back into the files' EXIF and XMP.
//
// # Application Lifecycle
//
//  1. Memory Configuration: sets GOMEMLIMIT from MEMORY_LIMIT or the cgroup limit
//  2. Configuration Loading: .env, CONFIG_FILE and environment variables; the
//     image root and cache directory are checked
//  3. Metrics: registers Prometheus collectors and the filesystem observer
//  4. Component Initialization:
//     - Memory Monitor: pauses batch thumbnail work above the high water mark
//     - Engine: path locks, thumbnail cache, metadata cache, worker pool and,
//     when enabled, libvips
//     - Metrics Collector: refreshes cache gauges every METRICS_INTERVAL
//     - File Watcher: invalidates cached entries for files changed on disk
//  5. HTTP Server Setup: routes, metrics, logging and compression middleware
//  6. Graceful Shutdown: SIGINT/SIGTERM stop the server, the watcher and the
//     collector, then flush the metadata cache
//
// # HTTP Server
//
// One server on PORT (default 8080) serves:
//
//   - /api/files, /api/metadata, /api/rating, /api/thumbnail and batch endpoints
//   - /health, /livez, /readyz and /version
//   - /metrics for Prometheus
//
// See package startup for the full list of environment variables, and the
// imgmeta command for the same operations from a shell.
package main
