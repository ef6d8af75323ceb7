// Package cache memoizes report and analytics results. Every write to the
// store purges the cache, so entries never outlive the data they summarize
// by more than one write.
package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache is a keyed result cache. Backends that talk to the network log
// and swallow their errors: a failing cache behaves like a miss.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, data T)
	// Purge drops every key.
	Purge(ctx context.Context)
}

// Noop never stores anything.
type Noop[T any] struct{}

func (Noop[T]) Get(context.Context, string) (T, bool) {
	var zero T
	return zero, false
}

func (Noop[T]) Set(context.Context, string, T) {}

func (Noop[T]) Purge(context.Context) {}

// Cleaner is implemented by caches that expire entries in process.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically cleans expired entries from registered caches.
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds c if it supports cleaning. Other caches are ignored.
func (m *Manager) Register(c any) {
	if cleaner, ok := c.(Cleaner); ok {
		m.caches = append(m.caches, cleaner)
	}
}

func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := 0
			for _, c := range m.caches {
				cleaned += c.CleanExpired()
			}
			if cleaned > 0 {
				slog.Debug("Expired cache entries removed", "count", cleaned)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup loop. It must only be called after StartCleanup.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
