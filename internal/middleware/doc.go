// Package middleware provides HTTP middleware for the image API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics keyed by route template
//   - gzip compression of JSON responses
//   - Request IDs, echoed in X-Request-ID and the access log
//   - CORS for configured origins
//
// Thumbnail requests and probes are high-volume; both can be left out of
// the access log.
package middleware
