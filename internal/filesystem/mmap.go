package filesystem

import (
	"fmt"
	"io"
	"math"
	"time"
)

// View is a read-only byte view of a file. It is backed by a memory mapping
// when the platform supports it and by an ordinary buffer otherwise; callers
// cannot tell the difference. Bytes() must not be written to or used after
// Close.
type View struct {
	data   []byte
	mapped bool
	unmap  func() error
}

// Bytes returns the file content.
func (v *View) Bytes() []byte {
	return v.data
}

// Len returns the content length.
func (v *View) Len() int {
	return len(v.data)
}

// Mapped reports whether the view is a memory mapping.
func (v *View) Mapped() bool {
	return v.mapped
}

// Close releases the mapping. It is safe to call more than once.
func (v *View) Close() error {
	if v.unmap == nil {
		return nil
	}
	unmap := v.unmap
	v.unmap = nil
	v.data = nil
	return unmap()
}

// MapFile opens path and returns a read-only view of its content. Empty
// files, files too large to address and platforms without mmap fall back to
// a buffered read.
func MapFile(path string, config RetryConfig) (view *View, err error) {
	start := time.Now()
	defer func() {
		if obs := observe(); obs != nil {
			obs.ObserveOperation(config.resolveVolume(path), "map", time.Since(start).Seconds(), err)
		}
	}()

	f, err := OpenWithRetry(path, config)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	size := info.Size()
	if size > 0 && size < math.MaxInt32 {
		if data, unmap, mapErr := mapFile(f, int(size)); mapErr == nil {
			return &View{data: data, mapped: true, unmap: unmap}, nil
		}
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &View{data: data}, nil
}
