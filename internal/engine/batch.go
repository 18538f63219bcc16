package engine

import (
	"context"

	"image-browser/internal/media"
	"image-browser/internal/workers"
)

// ThumbnailResult is one entry of a batch thumbnail request.
type ThumbnailResult struct {
	Path      string
	Thumbnail media.Thumbnail
	Err       error
}

// MetadataResult is one entry of a batch metadata request.
type MetadataResult struct {
	Path     string
	Metadata media.ImageMetadata
	Err      error
}

// GenerateThumbnails produces thumbnails for paths in parallel, at most
// one per pool slot. Results are in input order; a failure only affects
// its own entry. Each item first waits on the memory gate, if any.
func (e *Engine) GenerateThumbnails(ctx context.Context, paths []string) []ThumbnailResult {
	results := make([]ThumbnailResult, len(paths))
	errs := workers.ForEach(ctx, e.pool.Size(), len(paths), func(ctx context.Context, i int) error {
		if e.memory != nil {
			if err := e.memory.Wait(ctx); err != nil {
				results[i] = ThumbnailResult{Path: paths[i], Err: err}
				return err
			}
		}
		thumb, err := e.GenerateThumbnail(ctx, paths[i])
		results[i] = ThumbnailResult{Path: paths[i], Thumbnail: thumb, Err: err}
		return err
	})
	for i, err := range errs {
		results[i].Path = paths[i]
		if results[i].Err == nil {
			results[i].Err = err
		}
	}
	return results
}

// ReadMetadataBatch reads metadata for paths in parallel. Results are in
// input order; a failure only affects its own entry.
func (e *Engine) ReadMetadataBatch(ctx context.Context, paths []string) []MetadataResult {
	results := make([]MetadataResult, len(paths))
	errs := workers.ForEach(ctx, e.pool.Size(), len(paths), func(ctx context.Context, i int) error {
		md, err := e.ReadMetadata(ctx, paths[i])
		results[i] = MetadataResult{Path: paths[i], Metadata: md, Err: err}
		return err
	})
	for i, err := range errs {
		results[i].Path = paths[i]
		if results[i].Err == nil {
			results[i].Err = err
		}
	}
	return results
}
