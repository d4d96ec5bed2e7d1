// Package poller keeps the job cache fresh by polling the copy service.
// Cadence adapts to the cached data: collections with pending or running
// jobs poll fast, quiet collections poll slow, hidden views poll not at
// all. Refresh failures are logged and swallowed; the next tick retries.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"telecopy/internal/cache"
	"telecopy/internal/logger"
	"telecopy/internal/model"
)

type Lister interface {
	ListJobs(ctx context.Context, owner string) ([]model.Job, error)
}

// ListPoller refreshes one owner's whole job collection.
type ListPoller struct {
	client Lister
	store  *cache.Store
	owner  string
	vis    Visibility
	clock  Clock
	active time.Duration
	idle   time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewListPoller(client Lister, store *cache.Store, owner string, vis Visibility, clock Clock, active, idle time.Duration) *ListPoller {
	return &ListPoller{
		client: client,
		store:  store,
		owner:  owner,
		vis:    vis,
		clock:  clock,
		active: active,
		idle:   idle,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (p *ListPoller) Start() {
	go p.run()
}

func (p *ListPoller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	<-p.done
}

func (p *ListPoller) run() {
	defer close(p.done)

	events, cancel := p.store.Subscribe()
	defer cancel()

	// A mutation may settle while the view is hidden; the authoritative
	// refresh it asked for is deferred until visibility returns.
	pendingInvalidate := false

	if p.vis.Visible() {
		p.refresh(false)
	}

	ticker := p.clock.NewTicker(p.interval())
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return

		case visible := <-p.vis.Changes():
			if !visible {
				continue
			}
			p.refresh(pendingInvalidate)
			pendingInvalidate = false
			ticker.Reset(p.interval())

		case ev := <-events:
			if ev.Type != cache.EventInvalidate || ev.Owner != p.owner {
				continue
			}
			if !p.vis.Visible() {
				pendingInvalidate = true
				continue
			}
			p.refresh(true)
			ticker.Reset(p.interval())

		case <-ticker.C():
			if !p.vis.Visible() {
				continue
			}
			p.refresh(false)
			ticker.Reset(p.interval())
		}
	}
}

func (p *ListPoller) interval() time.Duration {
	if p.store.HasActive(p.owner) {
		return p.active
	}
	return p.idle
}

func (p *ListPoller) refresh(authoritative bool) {
	at := p.store.Seq()

	jobs, err := p.client.ListJobs(context.Background(), p.owner)
	if err != nil {
		logger.Log.Warn("job list refresh failed",
			zap.String("owner", p.owner),
			zap.Error(err))
		return
	}

	if authoritative {
		p.store.ApplyList(p.owner, jobs)
	} else {
		p.store.Reconcile(p.owner, jobs, at)
	}
}
