// Package loader fetches and decodes textures in the background. Loads return
// a texture handle immediately; a LoadingManager tracks every item and
// reports start, progress, completion and errors through callbacks.
package loader

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency bounds simultaneous fetches per manager.
const DefaultConcurrency = 4

// LoadingManager tracks a group of loads. Callbacks run on loader goroutines,
// one at a time.
type LoadingManager struct {
	// OnStart is called when the first item of a batch starts.
	OnStart func(url string, loaded, total int)
	// OnProgress is called each time an item finishes, successfully or not.
	OnProgress func(url string, loaded, total int)
	// OnLoad is called when every started item has finished.
	OnLoad func()
	// OnError is called for each item that fails.
	OnError func(url string, err error)

	logger *slog.Logger
	sem    *semaphore.Weighted

	mu      sync.Mutex
	loading bool
	loaded  int
	total   int
	failed  int
	idle    chan struct{}

	notify sync.Mutex
}

// ManagerOption configures a LoadingManager.
type ManagerOption func(*LoadingManager)

// WithConcurrency limits how many items are fetched at once.
func WithConcurrency(n int) ManagerOption {
	return func(m *LoadingManager) {
		if n > 0 {
			m.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithLogger sets the logger used for item lifecycle messages.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *LoadingManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewLoadingManager creates an idle manager.
func NewLoadingManager(opts ...ManagerOption) *LoadingManager {
	m := &LoadingManager{
		logger: slog.Default(),
		sem:    semaphore.NewWeighted(DefaultConcurrency),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Counts returns the finished, started and failed item counts.
func (m *LoadingManager) Counts() (loaded, total, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded, m.total, m.failed
}

// Loading reports whether any started item is unfinished.
func (m *LoadingManager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Wait blocks until every started item has finished or ctx is done.
func (m *LoadingManager) Wait(ctx context.Context) error {
	m.mu.Lock()
	if !m.loading {
		m.mu.Unlock()
		return nil
	}
	idle := m.idle
	m.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire takes a fetch slot.
func (m *LoadingManager) acquire(ctx context.Context) error {
	return m.sem.Acquire(ctx, 1)
}

func (m *LoadingManager) release() {
	m.sem.Release(1)
}

func (m *LoadingManager) itemStart(url string) {
	m.mu.Lock()
	m.total++
	first := !m.loading
	if first {
		m.loading = true
		m.idle = make(chan struct{})
	}
	loaded, total := m.loaded, m.total
	m.mu.Unlock()

	m.logger.Debug("load started", "url", url, "loaded", loaded, "total", total)
	if first && m.OnStart != nil {
		m.notify.Lock()
		m.OnStart(url, loaded, total)
		m.notify.Unlock()
	}
}

func (m *LoadingManager) itemError(url string, err error) {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()

	m.logger.Warn("load failed", "url", url, "err", err)
	if m.OnError != nil {
		m.notify.Lock()
		m.OnError(url, err)
		m.notify.Unlock()
	}
}

func (m *LoadingManager) itemEnd(url string) {
	m.mu.Lock()
	m.loaded++
	loaded, total := m.loaded, m.total
	done := loaded == total
	var idle chan struct{}
	if done {
		m.loading = false
		idle = m.idle
	}
	m.mu.Unlock()

	m.logger.Debug("load finished", "url", url, "loaded", loaded, "total", total)

	m.notify.Lock()
	if m.OnProgress != nil {
		m.OnProgress(url, loaded, total)
	}
	if done && m.OnLoad != nil {
		m.OnLoad()
	}
	m.notify.Unlock()

	if idle != nil {
		close(idle)
	}
}
