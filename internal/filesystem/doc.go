// Package filesystem wraps the file operations the engine performs on
// image and cache volumes.
//
// # NFS resilience
//
// Image libraries frequently live on NFS, where a file replaced on the server
// can surface as ESTALE on the client. StatWithRetry, OpenWithRetry and
// ReadFileWithRetry retry those errors with capped exponential backoff and
// pass every other error through unchanged.
//
// # Byte views
//
// MapFile returns a read-only View of a file. On unix it is an mmap of the
// file; empty files and other platforms get a buffered read with the same
// content. A view stays valid after the file is replaced by rename, which is
// how WriteFileAtomic updates files.
//
// # Atomic writes
//
// WriteFileAtomic writes to a uniquely named temporary sibling, fsyncs and
// renames it over the target, keeping the target's existing mode.
//
// # Metrics
//
// The package reports through the Observer interface. The metrics package
// installs an implementation at startup with SetObserver; volume labels come
// from the VolumeResolver set with SetDefaultVolumeResolver.
package filesystem
