package workers

import (
	"context"
	"sync"
)

// Pool bounds how many CPU-heavy jobs run at once. Callers block in Do until
// a slot frees up, so request goroutines never pile decode work onto the
// scheduler beyond the pool size.
type Pool struct {
	slots chan struct{}
}

// NewPool creates a pool with size slots. A size below 1 is treated as 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return cap(p.slots)
}

// Do runs fn once a slot is available. ctx only bounds the wait; fn itself
// runs to completion.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slots }()
	return fn()
}

// ForEach calls fn for every index in [0, n) with at most limit calls in
// flight. It uses its own semaphore so fn may itself call Pool.Do without
// starving the pool. The returned slice is indexed like the input.
func ForEach(ctx context.Context, limit, n int, fn func(ctx context.Context, i int) error) []error {
	gate := NewPool(limit)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = gate.Do(ctx, func() error { return fn(ctx, i) })
		}(i)
	}
	wg.Wait()
	return errs
}
