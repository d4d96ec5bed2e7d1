package usage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"telecopy/internal/logger"
	"telecopy/internal/poller"
)

type Fetcher interface {
	UsageStats(ctx context.Context) (Stats, error)
}

// Keeper caches the latest usage snapshot and refreshes it in the
// background so the create gate can answer synchronously. Without a
// snapshot the gate waves creates through; the server still validates.
type Keeper struct {
	fetch    Fetcher
	vis      poller.Visibility
	clock    poller.Clock
	interval time.Duration

	mu    sync.RWMutex
	stats Stats
	ok    bool

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewKeeper(fetch Fetcher, vis poller.Visibility, clock poller.Clock, interval time.Duration) *Keeper {
	return &Keeper{
		fetch:    fetch,
		vis:      vis,
		clock:    clock,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Refresh fetches a snapshot immediately. One-shot commands call it once
// instead of running the background loop.
func (k *Keeper) Refresh(ctx context.Context) error {
	stats, err := k.fetch.UsageStats(ctx)
	if err != nil {
		return err
	}

	k.mu.Lock()
	k.stats = stats
	k.ok = true
	k.mu.Unlock()

	return nil
}

func (k *Keeper) Current() (Stats, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.stats, k.ok
}

// AllowCreate gates a create against the cached snapshot.
func (k *Keeper) AllowCreate(realTime bool) error {
	stats, ok := k.Current()
	if !ok {
		return nil
	}
	return stats.AllowCreate(realTime)
}

func (k *Keeper) Start() {
	go k.run()
}

func (k *Keeper) Stop() {
	k.stopOnce.Do(func() {
		close(k.stopCh)
	})
	<-k.done
}

func (k *Keeper) run() {
	defer close(k.done)

	if k.vis.Visible() {
		k.tryRefresh()
	}

	ticker := k.clock.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-k.stopCh:
			return

		case visible := <-k.vis.Changes():
			if visible {
				k.tryRefresh()
			}

		case <-ticker.C():
			if !k.vis.Visible() {
				continue
			}
			k.tryRefresh()
		}
	}
}

func (k *Keeper) tryRefresh() {
	if err := k.Refresh(context.Background()); err != nil {
		logger.Log.Warn("usage snapshot refresh failed",
			zap.Error(err))
	}
}
