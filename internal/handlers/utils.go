package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"image-browser/internal/logging"
	"image-browser/internal/media"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": status})
}

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	if media.IsNotExist(err) {
		return http.StatusNotFound
	}
	switch media.KindOf(err) {
	case media.KindInvalidInput:
		return http.StatusBadRequest
	case media.KindMalformedHeader, media.KindSegmentNotFound, media.KindUnsupportedVariant,
		media.KindUnknownFormat, media.KindDecode:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError logs err and writes it with the status for its kind.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Error("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		logging.Debug("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSONError(w, err.Error(), status)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return media.NewError(media.KindInvalidInput, "decode request", "", fmt.Errorf("invalid JSON body: %w", err))
	}
	if dec.More() {
		return media.NewError(media.KindInvalidInput, "decode request", "", errors.New("trailing data after JSON body"))
	}
	return nil
}

// errorString returns err's message, or "" for nil.
func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
