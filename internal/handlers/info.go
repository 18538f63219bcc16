package handlers

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"image-browser/internal/imageformat"
	"image-browser/internal/logging"
	"image-browser/internal/media"
	"image-browser/internal/startup"
)

// VersionResponse is the build information plus what this instance can
// read and produce.
type VersionResponse struct {
	startup.BuildInfo
	Formats   []string              `json:"formats"`
	Thumbnail media.ThumbnailConfig `json:"thumbnail"`
	WebP      bool                  `json:"webpThumbnails"`
}

var readableFormats = []string{
	imageformat.PNG.MIMEType(),
	imageformat.JPEG.MIMEType(),
	imageformat.WebP.MIMEType(),
}

// GetVersion returns the build information and engine capabilities.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, VersionResponse{
		BuildInfo: startup.GetBuildInfo(),
		Formats:   readableFormats,
		Thumbnail: h.engine.ThumbnailConfig(),
		WebP:      h.engine.VipsEnabled(),
	})
}

// promErrorLog sends scrape errors to the application log.
type promErrorLog struct{}

func (promErrorLog) Println(v ...interface{}) {
	logging.Error("metrics: %s", fmt.Sprint(v...))
}

// MetricsHandler serves the default registry. A collector that fails is
// logged and skipped so that one bad gauge does not hide the rest.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorLog:      promErrorLog{},
			ErrorHandling: promhttp.ContinueOnError,
		}),
	)
}
