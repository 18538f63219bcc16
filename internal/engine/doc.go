/*
Package engine is the request surface of the image metadata and thumbnail
service. The HTTP handlers and the imgmeta CLI both drive one Engine.

	eng, err := engine.New(engine.Config{CacheDir: "/var/cache/image-browser"})
	md, err := eng.ReadMetadata(ctx, "/images/a.png")
	thumb, err := eng.GenerateThumbnail(ctx, "/images/a.png")
	err = eng.WriteRating(ctx, "/images/a.png", 4)
	n, err := eng.ClearThumbnailCache(ctx)
	err = eng.Close() // flushes the metadata cache

# Caching

Reads consult the metadata cache or the thumbnail cache first. Both are
keyed by path and checked against the file's size and nanosecond mtime, so
any change to the file, including a rating write, forces a fresh read.

# Concurrency

Every operation that touches a file's bytes holds that file's path lock,
so reads never observe a half-written rating and two writers never
interleave. Decode, resize and encode run on a worker pool sized from
GOMAXPROCS. The caller's context bounds the wait for the lock and for a
pool slot; work that has started is not abandoned.
*/
package engine
