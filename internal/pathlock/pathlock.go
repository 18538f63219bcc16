package pathlock

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"image-browser/internal/logging"
	"image-browser/internal/metrics"
)

// Lock is an exclusive ticket for one path. It is a one-slot semaphore so
// that waiting can be abandoned when the caller's context ends.
type Lock struct {
	slot chan struct{}
}

func newLock() *Lock {
	return &Lock{slot: make(chan struct{}, 1)}
}

func (l *Lock) acquire(ctx context.Context) error {
	select {
	case l.slot <- struct{}{}:
		return nil
	default:
	}
	select {
	case l.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lock) release() {
	<-l.slot
}

// Service hands out one Lock per normalized path.
type Service struct {
	mu    sync.Mutex
	locks map[string]*Lock
}

// New creates an empty lock service.
func New() *Service {
	return &Service{locks: make(map[string]*Lock)}
}

// Normalize returns the key a path is locked under.
func Normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// GetOrCreate returns the lock for path, creating it on first use.
func (s *Service) GetOrCreate(path string) *Lock {
	key := Normalize(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = newLock()
		s.locks[key] = l
	}
	return l
}

// Len returns the number of paths that have a lock.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

// WithExclusiveAccess runs fn while holding lock. ctx bounds only the wait;
// once fn starts it runs to completion. The lock is released when fn
// returns or panics.
func (s *Service) WithExclusiveAccess(ctx context.Context, lock *Lock, path string, fn func() error) error {
	start := time.Now()
	if err := lock.acquire(ctx); err != nil {
		return fmt.Errorf("waiting for lock on %s: %w", path, err)
	}
	defer lock.release()

	waited := time.Since(start)
	metrics.PathLockWaitDuration.Observe(waited.Seconds())
	if waited > time.Second {
		logging.ForPath(path).Debug("lock acquired after %v", waited)
	}
	return fn()
}

// Do runs fn under the lock for path and returns its result.
func Do[T any](ctx context.Context, s *Service, path string, fn func() (T, error)) (T, error) {
	var out T
	err := s.WithExclusiveAccess(ctx, s.GetOrCreate(path), path, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}
