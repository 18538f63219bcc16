/*
Package metrics declares the Prometheus collectors for the image browser
engine. All collectors are registered on the default registry through
promauto and exposed by the /metrics handler.

# Metric families

HTTP:
  - image_browser_http_requests_total{method,path,status}
  - image_browser_http_request_duration_seconds{method,path}
  - image_browser_http_requests_in_flight

Thumbnails:
  - image_browser_thumbnail_generations_total{format,status}
  - image_browser_thumbnail_phase_duration_seconds{phase}
  - image_browser_thumbnail_cache_hits_total
  - image_browser_thumbnail_cache_misses_total{reason}
  - image_browser_thumbnail_cache_files, _size_bytes

Metadata and ratings:
  - image_browser_metadata_reads_total{source,status}
  - image_browser_metadata_cache_entries
  - image_browser_rating_writes_total{format,status}
  - image_browser_xmp_write_warnings_total

Concurrency:
  - image_browser_path_lock_wait_seconds
  - image_browser_path_locks_registered
  - image_browser_worker_pool_size

Memory (set by memory.Monitor):
  - image_browser_memory_usage_ratio
  - image_browser_memory_paused
  - image_browser_memory_pauses_total

Filesystem (recorded through filesystem.Observer):
  - image_browser_filesystem_operation_duration_seconds{volume,operation}
  - image_browser_filesystem_operation_errors_total{volume,operation}
  - image_browser_filesystem_retry_*{operation,volume}

# Collector

Gauges that describe state rather than events are refreshed by Collector,
which polls a StatsProvider on an interval:

	c := metrics.NewCollector(engine, time.Minute)
	c.Start()
	defer c.Stop()

Call InitializeMetrics once at startup so labelled series exist before the
first event.
*/
package metrics
