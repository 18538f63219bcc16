package metrics

import (
	"time"

	"image-browser/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats is a point-in-time view of the engine's caches and locks.
type Stats struct {
	MetadataCacheEntries int
	PathLocks            int
	ThumbnailFiles       int
	ThumbnailBytes       int64
	WorkerPoolSize       int
}

// Collector periodically copies engine stats into gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	MetadataCacheEntries.Set(float64(stats.MetadataCacheEntries))
	PathLocksRegistered.Set(float64(stats.PathLocks))
	ThumbnailCacheFiles.Set(float64(stats.ThumbnailFiles))
	ThumbnailCacheSizeBytes.Set(float64(stats.ThumbnailBytes))
	WorkerPoolSize.Set(float64(stats.WorkerPoolSize))

	logging.Debug("Metrics collected: metadata=%d, locks=%d, thumbnails=%d (%d bytes)",
		stats.MetadataCacheEntries, stats.PathLocks, stats.ThumbnailFiles, stats.ThumbnailBytes)
}
