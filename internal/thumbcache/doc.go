// Package thumbcache persists generated thumbnails on disk.
//
// Each source path maps to a key, the xxhash64 of its normalized absolute
// path in hex. A key owns two files in the cache directory:
//
//	<key>.json                 sidecar: source identity, generation config, metadata
//	<key>-<gen>.webp | .jpg    the encoded thumbnail
//
// <gen> is derived from the generation config and creation time, so every
// Store writes a fresh thumbnail name. Lookup runs without the path lock and
// treats the entry as valid only while the source file's size and
// modification time and the generation config are unchanged. Both files are
// written with filesystem.WriteFileAtomic, thumbnail first, and older
// thumbnails are removed after the new sidecar lands. A reader holding an
// old sidecar therefore gets the bytes that sidecar describes, or a miss.
package thumbcache
