package media

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/facette/natsort"
	"github.com/fsnotify/fsnotify"

	"image-browser/internal/imageformat"
	"image-browser/internal/logging"
	"image-browser/internal/metrics"
)

// ErrOutsideRoot is returned for paths that resolve outside the image root.
var ErrOutsideRoot = errors.New("path escapes image root")

// imageExtensions maps the listed file extensions to their container format.
// The format used for decoding always comes from sniffing; this only
// decides what a listing shows.
var imageExtensions = map[string]imageformat.Format{
	".png":  imageformat.PNG,
	".jpg":  imageformat.JPEG,
	".jpeg": imageformat.JPEG,
	".webp": imageformat.WebP,
}

// IsImageFile reports whether name has a supported image extension.
func IsImageFile(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Scanner lists and watches the image directory tree.
type Scanner struct {
	root string
}

// NewScanner creates a scanner rooted at root.
func NewScanner(root string) *Scanner {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	return &Scanner{root: abs}
}

// Root returns the absolute image root.
func (s *Scanner) Root() string {
	return s.root
}

// Resolve maps a root-relative path to an absolute one, rejecting anything
// that would leave the root.
func (s *Scanner) Resolve(relativePath string) (string, error) {
	relativePath = normalizePath(relativePath)
	full := filepath.Join(s.root, relativePath)

	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", NewError(KindInvalidInput, "resolve", relativePath, ErrOutsideRoot)
	}
	return full, nil
}

// Relative is the inverse of Resolve. Paths outside the root are returned
// unchanged.
func (s *Scanner) Relative(absPath string) string {
	rel, err := filepath.Rel(s.root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return absPath
	}
	return filepath.ToSlash(rel)
}

// List returns the folders and supported images of one directory. Folders
// always sort first.
func (s *Scanner) List(relativePath string, sortField SortField, sortOrder SortOrder) (listing *DirectoryListing, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.ScannerOperationsTotal.WithLabelValues("list", status).Inc()
		metrics.ScannerOperationDuration.WithLabelValues("list").Observe(time.Since(start).Seconds())
	}()

	relativePath = normalizePath(relativePath)
	fullPath, err := s.Resolve(relativePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, NewError(KindIO, "list", relativePath, err)
	}
	if !info.IsDir() {
		return nil, NewError(KindInvalidInput, "list", relativePath, errors.New("not a directory"))
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, NewError(KindIO, "list", relativePath, err)
	}

	items := make([]Entry, 0, len(entries))
	for _, de := range entries {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		if item, ok := s.toEntry(de, relativePath, fullPath); ok {
			items = append(items, item)
		}
	}
	sortEntries(items, sortField, sortOrder)

	return s.buildListing(relativePath, items), nil
}

// normalizePath cleans a root-relative path. The root itself is "".
func normalizePath(relativePath string) string {
	relativePath = filepath.Clean("/" + filepath.FromSlash(relativePath))
	relativePath = strings.TrimPrefix(relativePath, string(filepath.Separator))
	if relativePath == "." {
		return ""
	}
	return relativePath
}

func (s *Scanner) toEntry(de os.DirEntry, relativePath, fullPath string) (Entry, bool) {
	info, err := de.Info()
	if err != nil {
		return Entry{}, false
	}
	entryPath := filepath.ToSlash(filepath.Join(relativePath, de.Name()))

	if de.IsDir() {
		return Entry{
			Name:      de.Name(),
			Path:      entryPath,
			IsDir:     true,
			ModTime:   info.ModTime(),
			ItemCount: countDirItems(filepath.Join(fullPath, de.Name())),
		}, true
	}

	format, ok := imageExtensions[strings.ToLower(filepath.Ext(de.Name()))]
	if !ok || !info.Mode().IsRegular() {
		return Entry{}, false
	}
	return Entry{
		Name:         de.Name(),
		Path:         entryPath,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		MimeType:     format.MIMEType(),
		ThumbnailURL: "/api/thumbnail?path=" + url.QueryEscape(entryPath),
	}, true
}

func countDirItems(path string) int {
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0
	}
	count := 0
	for _, de := range entries {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		if de.IsDir() || IsImageFile(de.Name()) {
			count++
		}
	}
	return count
}

func (s *Scanner) buildListing(relativePath string, items []Entry) *DirectoryListing {
	var parent string
	if relativePath != "" {
		parent = filepath.ToSlash(filepath.Dir(relativePath))
		if parent == "." {
			parent = ""
		}
	}

	name := filepath.Base(relativePath)
	if relativePath == "" {
		name = "Images"
	}

	return &DirectoryListing{
		Path:       filepath.ToSlash(relativePath),
		Name:       name,
		Parent:     parent,
		Breadcrumb: buildBreadcrumb(relativePath),
		Items:      items,
	}
}

func buildBreadcrumb(relativePath string) []PathPart {
	crumbs := []PathPart{{Name: "Images", Path: ""}}
	if relativePath == "" {
		return crumbs
	}

	current := ""
	for _, part := range strings.Split(relativePath, string(filepath.Separator)) {
		if part == "" {
			continue
		}
		if current == "" {
			current = part
		} else {
			current = current + "/" + part
		}
		crumbs = append(crumbs, PathPart{Name: part, Path: current})
	}
	return crumbs
}

// sortEntries orders folders first. Names compare case-insensitively with
// digit runs taken as numbers, so img2 sorts before img10.
func sortEntries(items []Entry, field SortField, order SortOrder) {
	less := func(a, b Entry) bool {
		switch field {
		case SortByDate:
			return a.ModTime.Before(b.ModTime)
		case SortBySize:
			return a.Size < b.Size
		default:
			return natsort.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsDir != items[j].IsDir {
			return items[i].IsDir
		}
		if order == SortDesc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

// Watch reports changed image files under the root until ctx is done.
// onChange receives the absolute path of every image that was written,
// removed or renamed; new directories are added to the watch set.
func (s *Scanner) Watch(ctx context.Context, onChange func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.ScannerWatcherErrors.Inc()
		return err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logging.Error("failed to close file watcher: %v", err)
		}
	}()

	count := s.addDirectoriesToWatcher(watcher)
	metrics.ScannerWatchedDirectories.Set(float64(count))
	logging.Debug("Scanner watcher started, watching %d directories", count)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleWatcherEvent(watcher, event, onChange)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("Watcher error: %v", err)
			metrics.ScannerWatcherErrors.Inc()
		}
	}
}

func (s *Scanner) addDirectoriesToWatcher(watcher *fsnotify.Watcher) int {
	count := 0
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != s.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if addErr := watcher.Add(path); addErr != nil {
			logging.Warn("failed to add path to watcher %s: %v", path, addErr)
			metrics.ScannerWatcherErrors.Inc()
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		logging.Error("failed to walk image directory for watcher: %v", err)
		metrics.ScannerWatcherErrors.Inc()
	}
	return count
}

func (s *Scanner) handleWatcherEvent(watcher *fsnotify.Watcher, event fsnotify.Event, onChange func(string)) {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}
	metrics.ScannerWatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if addErr := watcher.Add(event.Name); addErr != nil {
				logging.Warn("failed to add new directory to watcher %s: %v", event.Name, addErr)
				metrics.ScannerWatcherErrors.Inc()
			} else {
				logging.Debug("Added new directory to watcher: %s", event.Name)
				metrics.ScannerWatchedDirectories.Inc()
			}
			return
		}
	}

	if !IsImageFile(event.Name) || onChange == nil {
		return
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Create) {
		onChange(event.Name)
	}
}

func eventType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Chmod):
		return "chmod"
	default:
		return "unknown"
	}
}
