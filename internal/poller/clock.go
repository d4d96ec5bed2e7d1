package poller

import "time"

// Ticker mirrors the time.Ticker surface the pollers need, so tests can
// drive ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

func RealClock() Clock {
	return realClock{}
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time {
	return r.t.C
}

func (r *realTicker) Reset(d time.Duration) {
	r.t.Reset(d)
}

func (r *realTicker) Stop() {
	r.t.Stop()
}
