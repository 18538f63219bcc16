/*
Package workers sizes and runs the CPU worker pool used for image decode,
resize and encode work.

# Sizing

runtime.NumCPU reports host CPUs, not the container limit. Count scales from
runtime.GOMAXPROCS(0) instead, which Go sets from cgroup limits:

	n := workers.ForCPU(8) // one worker per available CPU, at most 8
	n := workers.ForIO(16) // two per CPU, for I/O-heavy fan-out

Operators can pin the count with IMAGE_WORKERS:

	env:
	- name: IMAGE_WORKERS
	  value: "4"

# Pool

Pool is a counting semaphore. Request goroutines hand their decode and
encode steps to Pool.Do so that at most Size() of them burn CPU at once:

	err := pool.Do(ctx, func() error {
		img, err = media.Decode(data)
		return err
	})

ForEach fans a batch out over goroutines with its own concurrency gate.
Callers pass the pool size as the limit so batch parallelism matches the
pool without a job ever waiting on a slot it already holds.
*/
package workers
