package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_browser_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_browser_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_browser_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_browser_thumbnail_generations_total",
			Help: "Total number of thumbnail generations by source format and status",
		},
		[]string{"format", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_browser_thumbnail_phase_duration_seconds",
			Help:    "Thumbnail generation duration by phase (decode, resize, encode, store)",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"phase"},
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_browser_thumbnail_cache_hits_total",
			Help: "Thumbnail requests served from the sidecar cache",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_browser_thumbnail_cache_misses_total",
			Help: "Thumbnail cache misses by reason",
		},
		[]string{"reason"},
	)

	ThumbnailCacheFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_browser_thumbnail_cache_files",
			Help: "Number of files in the thumbnail cache directory",
		},
	)

	ThumbnailCacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_browser_thumbnail_cache_size_bytes",
			Help: "Total size of the thumbnail cache directory in bytes",
		},
	)
)

// Metadata metrics
var (
	MetadataReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_browser_metadata_reads_total",
			Help: "Metadata reads by source (cache or decode) and status",
		},
		[]string{"source", "status"},
	)

	MetadataCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_browser_metadata_cache_entries",
			Help: "Entries held in the in-process metadata cache",
		},
	)

	RatingWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_browser_rating_writes_total",
			Help: "Rating writes by format and status",
		},
		[]string{"format", "status"},
	)

	XMPWriteWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_browser_xmp_write_warnings_total",
			Help: "Rating writes where EXIF succeeded but the XMP update failed",
		},
	)
)

// Path lock metrics
var (
	PathLockWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_browser_path_lock_wait_seconds",
			Help:    "Time spent waiting for exclusive access to a path",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	PathLocksRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_browser_path_locks_registered",
			Help: "Distinct paths with a registered lock",
		},
	)

	WorkerPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_browser_worker_pool_size",
			Help: "Slots in the CPU worker pool",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_browser_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_browser_memory_paused",
			Help: "1 while batch work is paused for memory pressure",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_browser_memory_pauses_total",
			Help: "Times batch work was paused for memory pressure",
		},
	)
)

// Scanner metrics
var (
	ScannerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_browser_scanner_operations_total",
			Help: "Directory listings by status",
		},
		[]string{"operation", "status"},
	)

	ScannerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_browser_scanner_operation_duration_seconds",
			Help:    "Directory listing duration",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"operation"},
	)

	ScannerWatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_browser_scanner_watched_directories",
			Help: "Directories registered with the file watcher",
		},
	)

	ScannerWatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_browser_scanner_watcher_events_total",
			Help: "File watcher events by type",
		},
		[]string{"event"},
	)

	ScannerWatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_browser_scanner_watcher_errors_total",
			Help: "File watcher errors",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_browser_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_browser_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_browser_filesystem_retry_attempts_total",
			Help: "Retries after a stale NFS file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_browser_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_browser_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_browser_filesystem_stale_errors_total",
			Help: "ESTALE errors seen",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_browser_filesystem_retry_duration_seconds",
			Help:    "Total duration of retried filesystem operations",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"operation", "volume"},
	)
)

// AppInfo exposes build information as labels.
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "image_browser_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version"},
)
