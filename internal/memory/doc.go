// Package memory sets the Go soft memory limit for containers and pauses
// batch image work when the heap nears it.
//
// # Limit
//
// GOMEMLIMIT is not derived from cgroups the way GOMAXPROCS is, so
// [ApplyLimit] sets it from the container limit:
//
//	func main() {
//	    memory.ApplyLimit()
//	    // ...
//	}
//
// Environment variables:
//
//   - GOMEMLIMIT: standard Go variable; when set it wins and is only reported
//   - MEMORY_LIMIT: container limit in bytes, usually from the Downward API
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap (default 0.85)
//
// The remainder is left for libvips, memory-mapped source files and
// goroutine stacks.
//
// # Backpressure
//
// A [Monitor] samples heap allocation on an interval. Once usage crosses
// the critical mark it pauses: [Monitor.Wait] blocks until usage drops
// below the high mark again. Batch thumbnail generation calls Wait before
// each image so a folder of large PNGs cannot push the process past its
// limit. Single requests are never paused.
//
// Without a limit the monitor is inert and Wait returns immediately.
package memory
