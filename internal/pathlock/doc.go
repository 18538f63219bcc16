// Package pathlock serializes work on a single image file.
//
// Every read-modify-write on a path (metadata extraction, thumbnail
// generation, rating writes) runs while holding that path's Lock, so
// operations on one file are totally ordered while different files proceed
// in parallel. Locks are created on first use and kept for the life of the
// Service.
//
//	err := svc.WithExclusiveAccess(ctx, svc.GetOrCreate(path), path, func() error {
//		return rewrite(path)
//	})
package pathlock
