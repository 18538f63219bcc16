// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] loads a .env file if present, then builds the configuration
// in three layers: built-in defaults, the optional TOML file named by
// CONFIG_FILE, and environment variables. Later layers win.
//
//   - IMAGE_ROOT: Directory served by the API (default: /images)
//   - CACHE_DIR: Thumbnail and metadata cache directory (default: /cache)
//   - PORT: HTTP server port (default: 8080)
//   - THUMBNAIL_SIZE: Longest thumbnail side in pixels (default: 256)
//   - THUMBNAIL_QUALITY: Encoder quality 1-100 (default: 70)
//   - THUMBNAIL_FORMAT: webp or jpeg (default: webp)
//   - METADATA_CACHE_RETENTION: Go duration (default: 720h)
//   - VIPS_ENABLED: Use libvips for WebP thumbnails (default: true)
//   - WATCH_ENABLED: Invalidate caches when files change (default: true)
//   - IMAGE_WORKERS: CPU worker pool size (default: GOMAXPROCS)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_THUMBNAILS: Log single thumbnail requests (default: false)
//   - LOG_HEALTH_CHECKS: Log probe requests (default: true)
//   - CORS_ALLOWED_ORIGINS: Comma-separated origins allowed to call the API
//     from a browser (default: none, CORS disabled)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// A config file uses the same settings in snake case:
//
//	image_root = "/srv/images"
//	cache_dir = "/var/cache/image-browser"
//	metadata_cache_retention = "168h"
//	cors_allowed_origins = ["http://localhost:5173"]
//
//	[thumbnail]
//	size = 320
//	format = "jpeg"
//
//	[logging]
//	thumbnails = true
//
// [ReadConfig] performs the same layering without logging or touching the
// filesystem, and is what the CLI uses.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
//   - [LogMemoryConfig]: GOMEMLIMIT setup
//   - [LogEngineInit]: thumbnail defaults, worker count and libvips
//   - [LogWatcherInit]: file watching
//   - [LogHTTPRoutes]: registered routes (debug level)
//   - [LogServerStarted]: endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownStep], [LogShutdownComplete]
package startup
