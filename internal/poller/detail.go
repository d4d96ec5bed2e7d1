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

type Getter interface {
	GetJob(ctx context.Context, id string) (model.Job, error)
}

// DetailPoller refreshes a single job while it is non-terminal. Once a
// terminal status is observed the poller quits for good; a new view needs
// a new poller.
type DetailPoller struct {
	client   Getter
	store    *cache.Store
	id       string
	vis      Visibility
	clock    Clock
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewDetailPoller(client Getter, store *cache.Store, id string, vis Visibility, clock Clock, interval time.Duration) *DetailPoller {
	return &DetailPoller{
		client:   client,
		store:    store,
		id:       id,
		vis:      vis,
		clock:    clock,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *DetailPoller) Start() {
	go p.run()
}

func (p *DetailPoller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	<-p.done
}

// Done closes once the poller has quiesced, either by Stop or because the
// job reached a terminal status.
func (p *DetailPoller) Done() <-chan struct{} {
	return p.done
}

func (p *DetailPoller) run() {
	defer close(p.done)

	if p.terminal() {
		return
	}

	if p.vis.Visible() {
		p.refresh()
		if p.terminal() {
			return
		}
	}

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return

		case visible := <-p.vis.Changes():
			if !visible {
				continue
			}
			p.refresh()
			if p.terminal() {
				return
			}

		case <-ticker.C():
			if !p.vis.Visible() {
				continue
			}
			p.refresh()
			if p.terminal() {
				return
			}
		}
	}
}

func (p *DetailPoller) terminal() bool {
	job, ok := p.store.Job(p.id)
	return ok && job.Status.Terminal()
}

func (p *DetailPoller) refresh() {
	at := p.store.Seq()

	job, err := p.client.GetJob(context.Background(), p.id)
	if err != nil {
		logger.Log.Warn("job detail refresh failed",
			zap.String("id", p.id),
			zap.Error(err))
		return
	}

	p.store.ReconcileJob(job, at)
}
