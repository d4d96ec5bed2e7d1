package devserver

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"telecopy/internal/logger"
	"telecopy/internal/model"
)

const (
	simStartDelay       = 2 * time.Second
	simHistoricalTarget = 150
)

// Simulator advances non-terminal jobs the way the real service would:
// pending jobs start after a short delay, running jobs copy messages in
// bursts, historical jobs complete once they reach their target. Paused
// jobs sit still.
type Simulator struct {
	store    *Store
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewSimulator(store *Store, interval time.Duration) *Simulator {
	return &Simulator{
		store:    store,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Simulator) Start() {
	go s.run()
}

func (s *Simulator) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.done
}

func (s *Simulator) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.step()
		}
	}
}

func (s *Simulator) step() {
	recs, err := s.store.NonTerminal()
	if err != nil {
		logger.Log.Warn("simulator scan failed", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	for _, rec := range recs {
		switch model.JobStatus(rec.Status) {
		case model.JobStatusPending:
			if now.Sub(rec.CreatedAt) < simStartDelay {
				continue
			}
			rec.Status = string(model.JobStatusRunning)
			started := now
			rec.StartedAt = &started

		case model.JobStatusRunning:
			rec.MessagesCopied += 5 + rand.Intn(20)
			if rand.Intn(10) == 0 {
				rec.MessagesFailed++
			}
			if !rec.RealTime && rec.MessagesCopied >= simHistoricalTarget {
				rec.Status = string(model.JobStatusCompleted)
				completed := now
				rec.CompletedAt = &completed
			}

		default:
			continue
		}

		if err := s.store.Update(rec); err != nil {
			logger.Log.Warn("simulator update failed",
				zap.String("id", rec.ID),
				zap.Error(err))
		}
	}
}
