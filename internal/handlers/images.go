package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"image-browser/internal/logging"
	"image-browser/internal/media"
)

// maxBatchPaths caps the paths accepted by the batch endpoints.
const maxBatchPaths = 500

var errPathRequired = errors.New("path is required")

// resolve maps a root-relative request path to an absolute one.
func (h *Handlers) resolve(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", media.NewError(media.KindInvalidInput, "resolve", "", errPathRequired)
	}
	return h.scanner.Resolve(rel)
}

// ListFiles returns one directory of the image root.
//
// GET /api/files?path=&sort=name|date|size&order=asc|desc
func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sortField := media.SortField(q.Get("sort"))
	switch sortField {
	case "":
		sortField = media.SortByName
	case media.SortByName, media.SortByDate, media.SortBySize:
	default:
		writeJSONError(w, fmt.Sprintf("invalid sort %q", sortField), http.StatusBadRequest)
		return
	}
	sortOrder := media.SortOrder(q.Get("order"))
	switch sortOrder {
	case "":
		sortOrder = media.SortAsc
	case media.SortAsc, media.SortDesc:
	default:
		writeJSONError(w, fmt.Sprintf("invalid order %q", sortOrder), http.StatusBadRequest)
		return
	}

	listing, err := h.scanner.List(q.Get("path"), sortField, sortOrder)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, listing)
}

// GetMetadata returns the metadata of one image.
//
// GET /api/metadata?path=
func (h *Handlers) GetMetadata(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolve(r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	md, err := h.engine.ReadMetadata(r.Context(), path)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, md)
}

// batchRequest is the body of the batch endpoints.
type batchRequest struct {
	Paths []string `json:"paths"`
}

// resolveBatch validates a batch body. Paths that fail to resolve are
// reported per item by the caller.
func (h *Handlers) resolveBatch(w http.ResponseWriter, r *http.Request) ([]string, []string, []error, bool) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return nil, nil, nil, false
	}
	if len(req.Paths) == 0 {
		writeJSONError(w, "paths is required", http.StatusBadRequest)
		return nil, nil, nil, false
	}
	if len(req.Paths) > maxBatchPaths {
		writeJSONError(w, fmt.Sprintf("at most %d paths per request", maxBatchPaths), http.StatusBadRequest)
		return nil, nil, nil, false
	}

	abs := make([]string, len(req.Paths))
	errs := make([]error, len(req.Paths))
	for i, p := range req.Paths {
		abs[i], errs[i] = h.resolve(p)
	}
	return req.Paths, abs, errs, true
}

// MetadataBatchItem is one entry of a batch metadata response.
type MetadataBatchItem struct {
	Path     string               `json:"path"`
	Metadata *media.ImageMetadata `json:"metadata,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// GetMetadataBatch reads metadata for many images. Each item carries
// either metadata or an error; the response itself is 200.
//
// POST /api/metadata/batch {"paths": [...]}
func (h *Handlers) GetMetadataBatch(w http.ResponseWriter, r *http.Request) {
	rel, abs, resolveErrs, ok := h.resolveBatch(w, r)
	if !ok {
		return
	}

	items := make([]MetadataBatchItem, len(rel))
	var valid []string
	var index []int
	for i := range rel {
		items[i].Path = rel[i]
		if resolveErrs[i] != nil {
			items[i].Error = resolveErrs[i].Error()
			continue
		}
		valid = append(valid, abs[i])
		index = append(index, i)
	}

	for j, res := range h.engine.ReadMetadataBatch(r.Context(), valid) {
		i := index[j]
		if res.Err != nil {
			items[i].Error = errorString(res.Err)
			continue
		}
		md := res.Metadata
		items[i].Metadata = &md
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, items)
}

// RatingResponse is returned by the rating endpoints.
type RatingResponse struct {
	Path   string `json:"path"`
	Rating *int   `json:"rating"`
}

// GetRating returns the rating of one image, or null when it has none.
//
// GET /api/rating?path=
func (h *Handlers) GetRating(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	path, err := h.resolve(rel)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rating, err := h.engine.ReadRating(r.Context(), path)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, RatingResponse{Path: rel, Rating: rating})
}

type setRatingRequest struct {
	Path   string `json:"path"`
	Rating *int   `json:"rating"`
}

// SetRating writes a 0-5 rating into the image's EXIF and XMP.
//
// PUT /api/rating {"path": "...", "rating": 4}
func (h *Handlers) SetRating(w http.ResponseWriter, r *http.Request) {
	var req setRatingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Rating == nil {
		writeJSONError(w, "rating is required", http.StatusBadRequest)
		return
	}
	path, err := h.resolve(req.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.engine.WriteRating(r.Context(), path, *req.Rating); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, RatingResponse(req))
}

// thumbnailConfig builds a generation config from query overrides on top
// of the engine default.
func (h *Handlers) thumbnailConfig(r *http.Request) (media.ThumbnailConfig, error) {
	cfg := h.engine.ThumbnailConfig()
	q := r.URL.Query()

	parseInt := func(name string, dst *int) error {
		s := q.Get(name)
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return media.NewError(media.KindInvalidInput, "thumbnail config", "", fmt.Errorf("invalid %s %q", name, s))
		}
		*dst = n
		return nil
	}
	if err := parseInt("size", &cfg.Size); err != nil {
		return cfg, err
	}
	if err := parseInt("quality", &cfg.Quality); err != nil {
		return cfg, err
	}
	if f := q.Get("format"); f != "" {
		cfg.Format = f
	}
	if err := cfg.Validate(); err != nil {
		return cfg, media.NewError(media.KindInvalidInput, "thumbnail config", "", err)
	}
	return cfg, nil
}

// GetThumbnail returns the thumbnail bytes of one image, generating and
// caching them on a miss.
//
// GET /api/thumbnail?path=&size=&quality=&format=webp|jpeg
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolve(r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	cfg, err := h.thumbnailConfig(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	thumb, err := h.engine.GenerateThumbnailWithConfig(r.Context(), path, cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", thumb.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(thumb.Data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("X-Thumbnail-Width", strconv.Itoa(thumb.Width))
	w.Header().Set("X-Thumbnail-Height", strconv.Itoa(thumb.Height))
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(thumb.Data); err != nil {
		logging.Debug("thumbnail write aborted: %v", err)
	}
}

// ThumbnailBatchItem is one entry of a batch thumbnail response.
type ThumbnailBatchItem struct {
	Path     string `json:"path"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Bytes    int    `json:"bytes,omitempty"`
	Error    string `json:"error,omitempty"`
}

// GenerateThumbnails warms the thumbnail cache for many images with the
// default config. Bytes are not returned; clients fetch them with
// GetThumbnail afterwards.
//
// POST /api/thumbnails/batch {"paths": [...]}
func (h *Handlers) GenerateThumbnails(w http.ResponseWriter, r *http.Request) {
	rel, abs, resolveErrs, ok := h.resolveBatch(w, r)
	if !ok {
		return
	}

	items := make([]ThumbnailBatchItem, len(rel))
	var valid []string
	var index []int
	for i := range rel {
		items[i].Path = rel[i]
		if resolveErrs[i] != nil {
			items[i].Error = resolveErrs[i].Error()
			continue
		}
		valid = append(valid, abs[i])
		index = append(index, i)
	}

	for j, res := range h.engine.GenerateThumbnails(r.Context(), valid) {
		i := index[j]
		if res.Err != nil {
			items[i].Error = errorString(res.Err)
			continue
		}
		items[i].Width = res.Thumbnail.Width
		items[i].Height = res.Thumbnail.Height
		items[i].MIMEType = res.Thumbnail.MIMEType
		items[i].Bytes = len(res.Thumbnail.Data)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, items)
}

// ClearThumbnails empties the thumbnail cache.
//
// DELETE /api/thumbnails
func (h *Handlers) ClearThumbnails(w http.ResponseWriter, r *http.Request) {
	removed, err := h.engine.ClearThumbnailCache(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]int{"removed": removed})
}
