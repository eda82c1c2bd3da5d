package session

import (
	"context"
	"sync"
	"time"
)

// Sweeper expires idle sessions on a fixed interval and notifies
// registered listeners of each non-empty sweep.
type Sweeper struct {
	store    *Store
	ttl      time.Duration
	interval time.Duration

	mu        sync.RWMutex
	listeners []func(expired []string)
}

// NewSweeper builds a Sweeper that drops sessions unused for longer than
// ttl, checking every interval. A non-positive interval defaults to ttl/4.
func NewSweeper(store *Store, ttl, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = ttl / 4
	}
	return &Sweeper{store: store, ttl: ttl, interval: interval}
}

// AddListener registers a callback invoked after every sweep that expired
// at least one session.
func (w *Sweeper) AddListener(fn func(expired []string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Sweep runs one expiry pass and returns the expired IDs.
func (w *Sweeper) Sweep(ctx context.Context) []string {
	if w.ttl <= 0 {
		return nil
	}
	expired := w.store.Expire(ctx, w.store.now().Add(-w.ttl))
	if len(expired) == 0 {
		return nil
	}

	w.mu.RLock()
	listeners := append([]func([]string){}, w.listeners...)
	w.mu.RUnlock()
	for _, fn := range listeners {
		fn(expired)
	}
	return expired
}

// Start sweeps in a separate goroutine until ctx is cancelled. The returned
// channel is closed when the goroutine exits. A non-positive ttl disables
// sweeping and the channel closes immediately.
func (w *Sweeper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if w.ttl <= 0 || w.interval <= 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Sweep(ctx)
			}
		}
	}()
	return done
}
