package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"image-browser/internal/metrics"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

func TestAccessRecorder(t *testing.T) {
	rec := newAccessRecorder(httptest.NewRecorder())
	if rec.status != http.StatusOK || rec.started {
		t.Fatalf("new recorder = %+v", rec)
	}

	rec.WriteHeader(http.StatusNotFound)
	rec.WriteHeader(http.StatusInternalServerError)
	if rec.status != http.StatusNotFound {
		t.Errorf("status = %d, want first WriteHeader to win", rec.status)
	}

	if n, err := rec.Write([]byte("test data")); err != nil || n != 9 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if rec.bytes != 9 {
		t.Errorf("bytes = %d", rec.bytes)
	}
}

func TestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		target string
		config LoggingConfig
		logged bool
	}{
		{"regular request", "/api/metadata?path=a.png", DefaultLoggingConfig(), true},
		{"thumbnail skipped by default", "/api/thumbnail?path=a.png", DefaultLoggingConfig(), false},
		{"thumbnail logged when enabled", "/api/thumbnail?path=a.png", LoggingConfig{LogThumbnails: true}, true},
		{"thumbnail batch is not skipped", "/api/thumbnails/batch", DefaultLoggingConfig(), true},
		{"health logged when enabled", "/health", LoggingConfig{LogHealthChecks: true}, true},
		{"health skipped when disabled", "/health", LoggingConfig{LogHealthChecks: false}, false},
		{"skip path", "/metrics", DefaultLoggingConfig(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			req := httptest.NewRequest(http.MethodGet, tt.target, http.NoBody)
			w := httptest.NewRecorder()
			Logger(tt.config)(okHandler("ok")).ServeHTTP(w, req)

			if got := buf.Len() > 0; got != tt.logged {
				t.Errorf("logged = %v, want %v (%q)", got, tt.logged, buf.String())
			}
		})
	}
}

func TestLoggerW3CLine(t *testing.T) {
	buf := captureLog(t)
	req := httptest.NewRequest(http.MethodGet, "/api/metadata?path=a.png", http.NoBody)
	req.Header.Set("User-Agent", "test agent\nforged")
	req.Header.Set(RequestIDHeader, "abc-123")
	req.RemoteAddr = "10.0.0.1:5555"
	w := httptest.NewRecorder()
	Logger(DefaultLoggingConfig())(okHandler("hello")).ServeHTTP(w, req)

	line := strings.TrimSpace(buf.String())
	if strings.Count(line, "\n") != 0 {
		t.Fatalf("log line contains a newline: %q", line)
	}
	for _, want := range []string{"10.0.0.1", "GET", "/api/metadata", "path=a.png", " 200 5 ", `"test agent forged"`, " - abc-123"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q lacks %q", line, want)
		}
	}
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("%s = %q, want client ID echoed", RequestIDHeader, got)
	}
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		reuse  bool
	}{
		{"none", "", false},
		{"client id", "req-42", true},
		{"contains space", "a b", false},
		{"control char", "a\x1bb", false},
		{"too long", strings.Repeat("x", maxRequestIDLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			Logger(DefaultLoggingConfig())(okHandler("ok")).ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			if tt.reuse && got != tt.header {
				t.Errorf("ID = %q, want %q", got, tt.header)
			}
			if !tt.reuse && (got == tt.header || len(got) != 36) {
				t.Errorf("ID = %q, want a generated UUID", got)
			}
		})
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"a\nb\rc", "a b c"},
		{"\x1b[31mred", "[31mred"},
		{"del\x7f", "del"},
		{"nul\x00byte", "nulbyte"},
		{"tab\tok", "tab\tok"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "3.3.3.3:1", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "4.4.4.4"}, "3.3.3.3:1", "4.4.4.4"},
		{"remote addr", nil, "3.3.3.3:1", "3.3.3.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics(DefaultMetricsConfig()))
	r.Handle("/api/metadata", okHandler("{}")).Methods("GET")
	r.Handle("/healthz", okHandler("{}")).Methods("GET")

	counter := metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/metadata", "200")
	before := testutil.ToFloat64(counter)

	for _, target := range []string{"/api/metadata?path=a.png", "/api/metadata?path=b.png", "/healthz"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, http.NoBody))
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("requests recorded for /api/metadata = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/healthz", "200")); got != 0 {
		t.Errorf("probe recorded %v times", got)
	}
}

func TestMetricsResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newMetricsResponseWriter(w)
	if rw.statusCode != http.StatusOK {
		t.Errorf("default status = %d", rw.statusCode)
	}
	rw.WriteHeader(http.StatusTeapot)
	if rw.statusCode != http.StatusTeapot || w.Code != http.StatusTeapot {
		t.Errorf("status = %d / %d", rw.statusCode, w.Code)
	}
}

func TestCompression(t *testing.T) {
	large := `{"items":"` + strings.Repeat("a", 4096) + `"}`

	tests := []struct {
		name         string
		acceptGzip   bool
		contentType  string
		body         string
		wantEncoding string
	}{
		{"large json", true, "application/json", large, "gzip"},
		{"small json", true, "application/json", `{"a":1}`, ""},
		{"client without gzip", false, "application/json", large, ""},
		{"image body", true, "image/webp", large, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusCreated)
				// Split writes exercise the buffering path.
				half := len(tt.body) / 2
				_, _ = w.Write([]byte(tt.body[:half]))
				_, _ = w.Write([]byte(tt.body[half:]))
			})

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.acceptGzip {
				req.Header.Set("Accept-Encoding", "gzip, deflate")
			}
			w := httptest.NewRecorder()
			Compression(DefaultCompressionConfig())(handler).ServeHTTP(w, req)

			if w.Code != http.StatusCreated {
				t.Errorf("status = %d", w.Code)
			}
			if got := w.Header().Get("Content-Encoding"); got != tt.wantEncoding {
				t.Fatalf("Content-Encoding = %q, want %q", got, tt.wantEncoding)
			}

			body := w.Body.Bytes()
			if tt.wantEncoding == "gzip" {
				zr, err := gzip.NewReader(bytes.NewReader(body))
				if err != nil {
					t.Fatal(err)
				}
				if body, err = io.ReadAll(zr); err != nil {
					t.Fatal(err)
				}
			}
			if string(body) != tt.body {
				t.Errorf("body length %d, want %d", len(body), len(tt.body))
			}
		})
	}
}

func TestCORS(t *testing.T) {
	next := okHandler("{}")

	t.Run("disabled", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/metadata", http.NoBody)
		req.Header.Set("Origin", "http://example.com")
		w := httptest.NewRecorder()
		CORS(nil)(next).ServeHTTP(w, req)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want none", got)
		}
	})

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/metadata", http.NoBody)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		CORS([]string{"http://localhost:5173"})(next).ServeHTTP(w, req)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Errorf("Allow-Origin = %q", got)
		}
		if got := w.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "X-Thumbnail-Width") {
			t.Errorf("Expose-Headers = %q", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/rating", http.NoBody)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		w := httptest.NewRecorder()
		called := false
		h := CORS([]string{"http://localhost:5173"})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
		h.ServeHTTP(w, req)
		if called {
			t.Error("preflight reached the handler")
		}
		if got := w.Header().Get("Access-Control-Allow-Methods"); got != http.MethodPut {
			t.Errorf("Allow-Methods = %q", got)
		}
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/metadata", http.NoBody)
		req.Header.Set("Origin", "http://evil.test")
		w := httptest.NewRecorder()
		CORS([]string{"http://localhost:5173"})(next).ServeHTTP(w, req)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want none", got)
		}
	})
}
