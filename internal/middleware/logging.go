package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"image-browser/internal/logging"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 64

// accessRecorder captures what the access log needs from a response.
type accessRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int64
	started bool
}

func newAccessRecorder(w http.ResponseWriter) *accessRecorder {
	return &accessRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (a *accessRecorder) WriteHeader(code int) {
	if a.started {
		return
	}
	a.status = code
	a.started = true
	a.ResponseWriter.WriteHeader(code)
}

func (a *accessRecorder) Write(b []byte) (int, error) {
	a.started = true
	n, err := a.ResponseWriter.Write(b)
	a.bytes += int64(n)
	return n, err
}

func (a *accessRecorder) Flush() {
	if f, ok := a.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingConfig selects which requests reach the access log.
type LoggingConfig struct {
	SkipPaths       []string
	LogThumbnails   bool
	LogHealthChecks bool
}

// DefaultLoggingConfig logs probes but not thumbnail fetches.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{"/metrics"},
		LogHealthChecks: true,
	}
}

// thumbnailPath is the single-thumbnail route; a gallery page issues one
// request per image.
const thumbnailPath = "/api/thumbnail"

var probePaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

func (c LoggingConfig) skips(path string) bool {
	for _, p := range c.SkipPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	switch {
	case probePaths[path]:
		return !c.LogHealthChecks
	case path == thumbnailPath:
		return !c.LogThumbnails
	}
	return false
}

// Logger returns middleware that assigns every request an ID and writes
// one W3C extended log line per request:
//
//	date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken sc(Content-Encoding) cs(User-Agent) cs(Referer) x-request-id
//
// The ID is echoed in X-Request-ID even for requests that are not logged.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := requestID(r)
			w.Header().Set(RequestIDHeader, id)

			if config.skips(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := newAccessRecorder(w)
			next.ServeHTTP(rec, r)

			//nolint:gosec // G706: every request-derived field passes through sanitizeLogField.
			logging.Printf("%s", accessLine(r, rec, id, start, time.Since(start)))
		})
	}
}

// requestID reuses a client-supplied ID when it is printable and short,
// otherwise it generates one.
func requestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" && len(id) <= maxRequestIDLen {
		if clean := sanitizeLogField(id); clean == id && !strings.ContainsAny(id, " \t\"") {
			return id
		}
	}
	return uuid.NewString()
}

func accessLine(r *http.Request, rec *accessRecorder, id string, start time.Time, took time.Duration) string {
	now := start.Add(took).UTC()
	fields := []string{
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		orDash(sanitizeLogField(getClientIP(r))),
		sanitizeLogField(r.Method),
		sanitizeLogField(r.URL.Path),
		orDash(sanitizeLogField(r.URL.RawQuery)),
		strconv.Itoa(rec.status),
		strconv.FormatInt(rec.bytes, 10),
		strconv.FormatInt(took.Milliseconds(), 10),
		orDash(rec.Header().Get("Content-Encoding")),
		orDash(quoteW3C(sanitizeLogField(r.Header.Get("User-Agent")))),
		orDash(quoteW3C(sanitizeLogField(r.Header.Get("Referer")))),
		id,
	}
	return strings.Join(fields, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// sanitizeLogField turns newlines into spaces and drops other control
// characters except tab.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

// quoteW3C wraps a value containing whitespace or quotes in double quotes,
// doubling any embedded quote.
func quoteW3C(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
