package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"telecopy/internal/model"
)

// fakeTicker is driven by hand. Tick blocks until the poller consumes the
// tick, which keeps test ordering deterministic.
type fakeTicker struct {
	mu        sync.Mutex
	ch        chan time.Time
	durations []time.Duration
}

func newFakeTicker(d time.Duration) *fakeTicker {
	return &fakeTicker{
		ch:        make(chan time.Time),
		durations: []time.Duration{d},
	}
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Reset(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.durations = append(t.durations, d)
}

func (t *fakeTicker) Stop() {}

func (t *fakeTicker) Tick() {
	t.ch <- time.Now()
}

func (t *fakeTicker) Last() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.durations[len(t.durations)-1]
}

type fakeClock struct {
	created chan *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{created: make(chan *fakeTicker, 4)}
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	t := newFakeTicker(d)
	c.created <- t
	return t
}

func (c *fakeClock) wait(t *testing.T) *fakeTicker {
	t.Helper()
	select {
	case ticker := <-c.created:
		return ticker
	case <-time.After(time.Second):
		t.Fatal("poller never created its ticker")
		return nil
	}
}

type fakeLister struct {
	mu    sync.Mutex
	jobs  []model.Job
	block chan struct{}
	calls chan string
}

func newFakeLister(jobs ...model.Job) *fakeLister {
	return &fakeLister{jobs: jobs, calls: make(chan string, 16)}
}

func (l *fakeLister) ListJobs(_ context.Context, owner string) ([]model.Job, error) {
	l.mu.Lock()
	jobs := append([]model.Job(nil), l.jobs...)
	block := l.block
	l.mu.Unlock()

	l.calls <- owner
	if block != nil {
		<-block
	}
	return jobs, nil
}

func (l *fakeLister) blockOn(ch chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.block = ch
}

func (l *fakeLister) setJobs(jobs ...model.Job) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs = jobs
}

type fakeGetter struct {
	mu    sync.Mutex
	job   model.Job
	calls chan string
}

func newFakeGetter(job model.Job) *fakeGetter {
	return &fakeGetter{job: job, calls: make(chan string, 16)}
}

func (g *fakeGetter) GetJob(_ context.Context, id string) (model.Job, error) {
	g.mu.Lock()
	job := g.job
	g.mu.Unlock()

	g.calls <- id
	return job, nil
}

func (g *fakeGetter) setJob(job model.Job) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.job = job
}

func waitCall(t *testing.T, calls <-chan string) {
	t.Helper()
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a poll")
	}
}

func assertNoCall(t *testing.T, calls <-chan string) {
	t.Helper()
	select {
	case <-calls:
		t.Fatal("unexpected poll")
	case <-time.After(50 * time.Millisecond):
	}
}

func testJob(id string, status model.JobStatus, copied int) model.Job {
	return model.Job{ID: id, Owner: "555", Status: status, MessagesCopied: copied}
}
