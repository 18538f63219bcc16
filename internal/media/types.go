package media

import (
	"fmt"
	"os"
	"strings"
	"time"

	"image-browser/internal/imageformat"
	"image-browser/internal/metadata"
	"image-browser/internal/sdparams"
)

// Identity is what the caches compare to decide whether a file changed.
// ModifiedTime is in Unix nanoseconds so that a touch within the same
// second still counts.
type Identity struct {
	Path         string `json:"-"`
	FileSize     int64  `json:"file_size"`
	ModifiedTime int64  `json:"modified_time"`
}

// IdentityOf builds the identity of path from a stat result.
func IdentityOf(path string, info os.FileInfo) Identity {
	return Identity{
		Path:         path,
		FileSize:     info.Size(),
		ModifiedTime: info.ModTime().UnixNano(),
	}
}

// Matches reports whether two identities describe the same file contents.
// The path is not compared.
func (id Identity) Matches(other Identity) bool {
	return id.FileSize == other.FileSize && id.ModifiedTime == other.ModifiedTime
}

// ImageMetadata is the result of a metadata read.
type ImageMetadata struct {
	Width                int                  `json:"width"`
	Height               int                  `json:"height"`
	FileSize             int64                `json:"file_size"`
	MimeType             string               `json:"mime_type"`
	Rating               *int                 `json:"rating,omitempty"`
	CaptureDates         metadata.Dates       `json:"capture_dates"`
	GenerationParameters *sdparams.Parameters `json:"generation_parameters,omitempty"`
}

// Clone returns a copy of m that shares no pointers with it.
func (m ImageMetadata) Clone() ImageMetadata {
	if m.Rating != nil {
		r := *m.Rating
		m.Rating = &r
	}
	m.GenerationParameters = m.GenerationParameters.Clone()
	return m
}

// Thumbnail format names accepted in ThumbnailConfig.Format.
const (
	FormatWebP = "webp"
	FormatJPEG = "jpeg"
)

// Thumbnail defaults and limits.
const (
	DefaultThumbnailSize    = 256
	DefaultThumbnailQuality = 70
	DefaultThumbnailFormat  = FormatWebP

	MinThumbnailSize = 16
	MaxThumbnailSize = 2048
)

// ThumbnailConfig controls how a thumbnail is produced. It is stored in the
// cache sidecar; a different config forces regeneration.
type ThumbnailConfig struct {
	Size    int    `json:"size"`
	Quality int    `json:"quality"`
	Format  string `json:"format"`
}

// DefaultThumbnailConfig returns size 256, quality 70, WebP.
func DefaultThumbnailConfig() ThumbnailConfig {
	return ThumbnailConfig{
		Size:    DefaultThumbnailSize,
		Quality: DefaultThumbnailQuality,
		Format:  DefaultThumbnailFormat,
	}
}

// Validate checks the config ranges and normalizes the format name.
func (c *ThumbnailConfig) Validate() error {
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format == "jpg" {
		c.Format = FormatJPEG
	}
	switch {
	case c.Size < MinThumbnailSize || c.Size > MaxThumbnailSize:
		return fmt.Errorf("thumbnail size %d outside %d-%d", c.Size, MinThumbnailSize, MaxThumbnailSize)
	case c.Quality < 1 || c.Quality > 100:
		return fmt.Errorf("thumbnail quality %d outside 1-100", c.Quality)
	case c.Format != FormatWebP && c.Format != FormatJPEG:
		return fmt.Errorf("thumbnail format %q is not webp or jpeg", c.Format)
	}
	return nil
}

// Thumbnail is an encoded preview.
type Thumbnail struct {
	Data     []byte
	Width    int
	Height   int
	MIMEType string
}

// Extension returns the file extension matching the thumbnail's MIME type.
func (t Thumbnail) Extension() string {
	if t.MIMEType == imageformat.WebP.MIMEType() {
		return imageformat.WebP.Extension()
	}
	return imageformat.JPEG.Extension()
}

// SortField names a directory listing sort key.
type SortField string

// SortOrder is ascending or descending.
type SortOrder string

const (
	SortByName SortField = "name"
	SortByDate SortField = "date"
	SortBySize SortField = "size"

	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Entry is one item of a directory listing: a folder or a supported image.
type Entry struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	IsDir        bool      `json:"is_dir"`
	Size         int64     `json:"size"`
	ModTime      time.Time `json:"mod_time"`
	MimeType     string    `json:"mime_type,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	ItemCount    int       `json:"item_count,omitempty"`
}

// PathPart is one breadcrumb element.
type PathPart struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// DirectoryListing is the content of one directory under the image root.
type DirectoryListing struct {
	Path       string     `json:"path"`
	Name       string     `json:"name"`
	Parent     string     `json:"parent"`
	Breadcrumb []PathPart `json:"breadcrumb"`
	Items      []Entry    `json:"items"`
}
