package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cleaner is implemented by caches that can drop their own stale entries.
type Cleaner interface {
	CleanExpired(ctx context.Context) int
}

// Janitor periodically removes stale entries from registered caches.
type Janitor struct {
	mu          sync.Mutex
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	stopOnce    sync.Once
}

// NewJanitor creates a janitor with no registered caches.
func NewJanitor() *Janitor {
	return &Janitor{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the cleanup rounds.
func (j *Janitor) Register(c Cleaner) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.caches = append(j.caches, c)
}

// CleanOnce runs one cleanup round and returns the number of entries removed.
func (j *Janitor) CleanOnce(ctx context.Context) int {
	j.mu.Lock()
	caches := append([]Cleaner(nil), j.caches...)
	j.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired(ctx)
	}
	return total
}

// StartCleanup begins periodic cleanup until Stop is called or ctx ends.
func (j *Janitor) StartCleanup(ctx context.Context, interval time.Duration) {
	go j.cleanup(ctx, interval)
}

func (j *Janitor) cleanup(ctx context.Context, interval time.Duration) {
	defer close(j.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := j.CleanOnce(ctx); n > 0 {
				slog.InfoContext(ctx, "Removed expired cache entries", "count", n)
			}
		case <-ctx.Done():
			return
		case <-j.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup routine and waits for it. Only valid after StartCleanup.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopCleanup)
		<-j.cleanupDone
	})
}
