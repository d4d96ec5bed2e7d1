package poller

import (
	"testing"
	"time"

	"telecopy/internal/cache"
	"telecopy/internal/model"
)

func startDetailPoller(getter *fakeGetter, store *cache.Store, vis Visibility) (*DetailPoller, *fakeClock) {
	clock := newFakeClock()
	p := NewDetailPoller(getter, store, "j1", vis, clock, activeInterval)
	p.Start()
	return p, clock
}

func waitDone(t *testing.T, p *DetailPoller) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poller never quiesced")
	}
}

func TestDetailPollerPollsUntilTerminal(t *testing.T) {
	getter := newFakeGetter(testJob("j1", model.JobStatusRunning, 10))
	store := cache.NewStore()

	p, clock := startDetailPoller(getter, store, AlwaysVisible())

	waitCall(t, getter.calls) // initial refresh
	ticker := clock.wait(t)

	ticker.Tick()
	waitCall(t, getter.calls)

	getter.setJob(testJob("j1", model.JobStatusCompleted, 50))
	ticker.Tick()
	waitCall(t, getter.calls)

	waitDone(t, p)

	job, ok := store.Job("j1")
	if !ok || job.Status != model.JobStatusCompleted {
		t.Fatalf("cache should hold the terminal record, got %+v", job)
	}
	assertNoCall(t, getter.calls)
}

// A job that is already terminal in the cache is never polled at all.
func TestDetailPollerTerminalQuiescence(t *testing.T) {
	getter := newFakeGetter(testJob("j1", model.JobStatusStopped, 50))
	store := cache.NewStore()
	store.Apply(testJob("j1", model.JobStatusStopped, 50))

	p, _ := startDetailPoller(getter, store, AlwaysVisible())

	waitDone(t, p)
	assertNoCall(t, getter.calls)
}

// A paused job keeps polling: pause is not terminal.
func TestDetailPollerPollsPausedJob(t *testing.T) {
	getter := newFakeGetter(testJob("j1", model.JobStatusPaused, 10))
	store := cache.NewStore()

	p, clock := startDetailPoller(getter, store, AlwaysVisible())
	defer p.Stop()

	waitCall(t, getter.calls)
	ticker := clock.wait(t)

	ticker.Tick()
	waitCall(t, getter.calls)
}

func TestDetailPollerVisibilityBackpressure(t *testing.T) {
	getter := newFakeGetter(testJob("j1", model.JobStatusRunning, 10))
	store := cache.NewStore()
	vis := NewSwitch(false)

	p, clock := startDetailPoller(getter, store, vis)
	defer p.Stop()

	ticker := clock.wait(t)
	assertNoCall(t, getter.calls)

	ticker.Tick()
	assertNoCall(t, getter.calls)

	vis.Set(true)
	waitCall(t, getter.calls)
	assertNoCall(t, getter.calls)
}
