package totp

import (
	"context"
	"sync"
	"time"

	"github.com/org/authvault/pkg/models"
)

// Refresher recomputes codes for an in-memory account snapshot on a fixed
// interval. It never reads the vault file, so a concurrent foreground
// mutation cannot tear a refresh; callers push new snapshots with SetAccounts.
type Refresher struct {
	engine   *Engine
	interval time.Duration
	now      func() time.Time
	publish  func([]Result)

	mu       sync.RWMutex
	accounts []models.Account
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithClock overrides the time source.
func WithClock(now func() time.Time) RefresherOption {
	return func(r *Refresher) { r.now = now }
}

// NewRefresher creates a Refresher that calls publish with fresh results
// every interval.
func NewRefresher(engine *Engine, interval time.Duration, publish func([]Result), opts ...RefresherOption) *Refresher {
	if interval <= 0 {
		interval = time.Second
	}
	r := &Refresher{
		engine:   engine,
		interval: interval,
		now:      time.Now,
		publish:  publish,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetAccounts replaces the snapshot used by subsequent refreshes.
func (r *Refresher) SetAccounts(accounts []models.Account) {
	snapshot := make([]models.Account, len(accounts))
	copy(snapshot, accounts)

	r.mu.Lock()
	r.accounts = snapshot
	r.mu.Unlock()
}

// Refresh computes results for the current snapshot.
func (r *Refresher) Refresh() []Result {
	r.mu.RLock()
	accounts := r.accounts
	r.mu.RUnlock()
	return r.engine.BatchGenerate(accounts, r.now())
}

// Run publishes immediately and then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.publish(r.Refresh())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.publish(r.Refresh())
		}
	}
}
