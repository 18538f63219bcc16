package handlers

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"image-browser/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Ready       bool   `json:"ready"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	ImageRoot   string `json:"imageRoot"`
	RootError   string `json:"rootError,omitempty"`
	VipsEnabled bool   `json:"vipsEnabled"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Engine stats
	MetadataCacheEntries int   `json:"metadataCacheEntries"`
	PathLocks            int   `json:"pathLocks"`
	ThumbnailFiles       int   `json:"thumbnailFiles"`
	ThumbnailBytes       int64 `json:"thumbnailBytes"`
	Workers              int   `json:"workers"`
}

// rootError reports why the image root cannot be served, or nil.
func (h *Handlers) rootError() error {
	info, err := os.Stat(h.scanner.Root())
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "stat", Path: h.scanner.Root(), Err: os.ErrInvalid}
	}
	return nil
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	stats := h.engine.GetStats()

	response := HealthResponse{
		Status:               statusHealthy,
		Ready:                true,
		Version:              startup.Version,
		Uptime:               time.Since(h.started).Round(time.Second).String(),
		ImageRoot:            h.scanner.Root(),
		VipsEnabled:          h.engine.VipsEnabled(),
		GoVersion:            runtime.Version(),
		NumCPU:               runtime.NumCPU(),
		NumGoroutine:         runtime.NumGoroutine(),
		MetadataCacheEntries: stats.MetadataCacheEntries,
		PathLocks:            stats.PathLocks,
		ThumbnailFiles:       stats.ThumbnailFiles,
		ThumbnailBytes:       stats.ThumbnailBytes,
		Workers:              stats.WorkerPoolSize,
	}

	if err := h.rootError(); err != nil {
		response.Status = statusDegraded
		response.Ready = false
		response.RootError = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")

	// Return 503 only if not ready at all
	if !response.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the image root can be served
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if err := h.rootError(); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
		return
	}
	writeJSONStatus(w, "ready")
}
