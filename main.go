package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"image-browser/internal/engine"
	"image-browser/internal/filesystem"
	"image-browser/internal/handlers"
	"image-browser/internal/logging"
	"image-browser/internal/media"
	"image-browser/internal/memory"
	"image-browser/internal/metrics"
	"image-browser/internal/middleware"
	"image-browser/internal/startup"
)

func main() {
	startTime := time.Now()

	memResult := memory.ApplyLimit()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	// Metrics plumbing
	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion).Set(1)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"images": config.ImageRoot,
		"cache":  config.CacheDir,
	}))

	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	memMonitor.Start()

	// Initialize engine
	eng, err := engine.New(engine.Config{
		CacheDir:          config.CacheDir,
		Thumbnail:         config.Thumbnail,
		MetadataRetention: config.MetadataRetention,
		Workers:           config.Workers,
		UseVips:           config.VipsEnabled,
		Memory:            memMonitor,
	})
	if err != nil {
		startup.LogFatal("Failed to initialize engine: %v", err)
	}
	startup.LogEngineInit(eng.ThumbnailConfig(), config.Workers, eng.VipsEnabled(), config.CacheDir)

	collector := metrics.NewCollector(eng, config.MetricsInterval)
	collector.Start()

	scanner := media.NewScanner(config.ImageRoot)

	// Invalidate caches for files changed outside the API
	watchCtx, stopWatch := context.WithCancel(context.Background())
	watchDone := make(chan struct{})
	startup.LogWatcherInit(config.WatchEnabled)
	if config.WatchEnabled {
		go func() {
			defer close(watchDone)
			if err := scanner.Watch(watchCtx, eng.Invalidate); err != nil {
				logging.Warn("File watcher stopped: %v", err)
			}
		}()
	} else {
		close(watchDone)
	}

	// Initialize handlers
	h := handlers.New(eng, scanner)

	handler := newHandler(h, config)

	// Create server
	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Start graceful shutdown handler
	shutdownDone := make(chan struct{})
	go func() {
		handleShutdown(srv, func() {
			startup.LogShutdownStep("Stopping file watcher")
			stopWatch()
			<-watchDone
			startup.LogShutdownStepComplete("File watcher stopped")

			collector.Stop()
			memMonitor.Stop()

			startup.LogShutdownStep("Flushing metadata cache")
			if err := eng.Close(); err != nil {
				logging.Warn("Engine close error: %v", err)
			} else {
				startup.LogShutdownStepComplete("Metadata cache flushed")
			}
		})
		close(shutdownDone)
	}()

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
	<-shutdownDone
}

// newHandler builds the router and wraps it in the logging, compression
// and CORS middleware.
func newHandler(h *handlers.Handlers, config *startup.Config) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	h.Register(router)

	startup.LogHTTPRoutes(router, config.LogThumbnails, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogThumbnails = config.LogThumbnails
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(router)

	compressed := middleware.Compression(middleware.DefaultCompressionConfig())(loggedHandler)
	return middleware.CORS(config.CORSOrigins)(compressed)
}

func handleShutdown(srv *http.Server, cleanup func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	cleanup()
	startup.LogShutdownComplete()
}
