package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS returns middleware that answers cross-origin requests from the
// given origins. With no origins it passes requests through unchanged.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{"X-Thumbnail-Width", "X-Thumbnail-Height", RequestIDHeader},
		MaxAge:         300,
	})
	return c.Handler
}
