package metrics

// InitializeMetrics pre-populates the expected label combinations so that
// every series is exported from the first Prometheus scrape.
func InitializeMetrics() {
	volumes := []string{"images", "cache", "unknown"}

	for _, vol := range volumes {
		for _, op := range []string{"stat", "open", "read", "map", "write"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open", "read"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, format := range []string{"png", "jpeg", "webp", "unknown"} {
		for _, status := range []string{"success", "error_decode", "error_encode", "error_store"} {
			ThumbnailGenerationsTotal.WithLabelValues(format, status)
		}
		for _, status := range []string{"success", "error", "xmp_warning"} {
			RatingWritesTotal.WithLabelValues(format, status)
		}
	}

	for _, phase := range []string{"decode", "resize", "encode", "store"} {
		ThumbnailGenerationDuration.WithLabelValues(phase)
	}

	for _, reason := range []string{"missing", "identity", "config", "corrupt"} {
		ThumbnailCacheMisses.WithLabelValues(reason)
	}

	for _, source := range []string{"cache", "decode"} {
		MetadataReadsTotal.WithLabelValues(source, "success")
		MetadataReadsTotal.WithLabelValues(source, "error")
	}
}
