// Package metacache keeps extracted image metadata between runs.
//
// Entries are keyed by normalized path and are valid only while the file's
// size and nanosecond modification time are unchanged. The cache lives in
// memory and is persisted as one versioned JSON document:
//
//	{"version": 1, "entries": {"/images/a.png": {"file_size": ..., "modified_time": ..., "metadata": {...}, "cached_at": ...}}}
//
// Open drops entries older than the retention period (30 days by default).
// Flush is called once during shutdown.
package metacache
