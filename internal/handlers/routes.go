package handlers

import (
	"github.com/gorilla/mux"
)

// Register adds every API, probe and metrics route to r.
func (h *Handlers) Register(r *mux.Router) {
	// Probes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	r.Handle("/metrics", h.MetricsHandler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/files", h.ListFiles).Methods("GET")
	api.HandleFunc("/metadata", h.GetMetadata).Methods("GET")
	api.HandleFunc("/metadata/batch", h.GetMetadataBatch).Methods("POST")
	api.HandleFunc("/rating", h.GetRating).Methods("GET")
	api.HandleFunc("/rating", h.SetRating).Methods("PUT")
	api.HandleFunc("/thumbnail", h.GetThumbnail).Methods("GET", "HEAD")
	api.HandleFunc("/thumbnails/batch", h.GenerateThumbnails).Methods("POST")
	api.HandleFunc("/thumbnails", h.ClearThumbnails).Methods("DELETE")
}
